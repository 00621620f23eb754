// Package service holds the resource operations of the API.  Factory gives
// every resource the same get-all, get-one, create, update and delete
// behaviour; the resource files plug in what differs through a Definition.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/iliyamo/tour-booking/internal/apperror"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/query"
	"github.com/iliyamo/tour-booking/internal/repository"
)

// Rule is a validator beyond struct tags: cross-field checks and lookups
// of referenced documents.  It returns one message per violation.
type Rule[T any] func(ctx context.Context, doc *T) ([]string, error)

// Mutator prepares a document before validation and storage: derived
// fields, defaults, timestamps.  isNew is true on create.
type Mutator[T any] func(ctx context.Context, doc *T, isNew bool) error

// Hook runs after a write has been stored.  before is nil on create and
// after is nil on delete.  The write stands even when a hook fails; the
// failure is logged.
type Hook[T any] func(ctx context.Context, before, after *T) error

// Definition describes one resource to the Factory.
type Definition[T any] struct {
	// Name is the singular resource name used in messages.
	Name       string
	Collection repository.Collection[T]
	// Base is AND-ed into every read; clients cannot override it.
	Base bson.D
	// Hidden fields are projected out of reads.
	Hidden []string
	// Protected JSON fields are dropped from client payloads.
	Protected []string
	Sort      string

	Rules      []Rule[T]
	BeforeSave []Mutator[T]
	AfterWrite []Hook[T]
	// Populate fills relation views on every read.
	Populate func(ctx context.Context, docs []*T) error
	// PopulateOne fills the extra relations of a single-document read.
	PopulateOne func(ctx context.Context, doc *T) error

	Log zerolog.Logger
}

// Factory implements the generic operations for T.
type Factory[T any, PT model.DocPtr[T]] struct {
	def Definition[T]
	val *Validator
}

func NewFactory[T any, PT model.DocPtr[T]](def Definition[T], val *Validator) *Factory[T, PT] {
	return &Factory[T, PT]{def: def, val: val}
}

func (f *Factory[T, PT]) defaults() query.Defaults {
	return query.Defaults{Sort: f.def.Sort, Hidden: f.def.Hidden}
}

func (f *Factory[T, PT]) hiddenProjection() bson.D {
	var p bson.D
	for _, h := range f.def.Hidden {
		p = append(p, bson.E{Key: h, Value: 0})
	}
	return p
}

// GetAll runs the client query within scope, which callers use for nested
// routes such as the reviews of one tour.  An empty result is not an error.
func (f *Factory[T, PT]) GetAll(ctx context.Context, values url.Values, scope bson.D) ([]*T, error) {
	docs, err := query.New(f.def.Collection, repository.And(f.def.Base, scope), values, f.defaults()).
		Filter().
		Sort().
		LimitFields().
		Paginate().
		Exec(ctx)
	if err != nil {
		return nil, f.translate(err)
	}
	if f.def.Populate != nil && len(docs) > 0 {
		if err := f.def.Populate(ctx, docs); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// GetOne fetches a visible document by id.  populate also resolves the
// relations that only single reads carry.
func (f *Factory[T, PT]) GetOne(ctx context.Context, id bson.ObjectID, populate bool) (*T, error) {
	doc, err := f.def.Collection.FindOne(ctx, repository.And(f.def.Base, repository.ByID(id)), f.hiddenProjection())
	if err != nil {
		return nil, f.translate(err)
	}
	if f.def.Populate != nil {
		if err := f.def.Populate(ctx, []*T{doc}); err != nil {
			return nil, err
		}
	}
	if populate && f.def.PopulateOne != nil {
		if err := f.def.PopulateOne(ctx, doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// CreateOne decodes a client payload, lets set stamp server-owned fields
// (author, parent id) and stores the result.
func (f *Factory[T, PT]) CreateOne(ctx context.Context, payload []byte, set func(*T)) (*T, error) {
	doc := new(T)
	if err := f.decode(payload, doc); err != nil {
		return nil, err
	}
	if set != nil {
		set(doc)
	}
	if err := f.Create(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Create assigns an id, runs mutators and validators and inserts doc.
func (f *Factory[T, PT]) Create(ctx context.Context, doc *T) error {
	PT(doc).SetID(bson.NewObjectID())
	if err := f.prepare(ctx, doc, true); err != nil {
		return err
	}
	if err := f.def.Collection.Insert(ctx, doc); err != nil {
		return f.translate(err)
	}
	f.after(ctx, nil, doc)
	return nil
}

// UpdateOne merges payload onto the stored document, re-validates the
// merged result and replaces it.  Protected fields and the id cannot be
// changed this way.
func (f *Factory[T, PT]) UpdateOne(ctx context.Context, id bson.ObjectID, payload []byte) (*T, error) {
	before, err := f.def.Collection.FindOne(ctx, repository.ByID(id), nil)
	if err != nil {
		return nil, f.translate(err)
	}
	current, err := clone(before)
	if err != nil {
		return nil, err
	}
	if err := f.decode(payload, current); err != nil {
		return nil, err
	}
	PT(current).SetID(id)
	if err := f.Replace(ctx, before, current); err != nil {
		return nil, err
	}
	return current, nil
}

// Replace validates and stores doc in place of before.
func (f *Factory[T, PT]) Replace(ctx context.Context, before, doc *T) error {
	if err := f.prepare(ctx, doc, false); err != nil {
		return err
	}
	if err := f.def.Collection.Replace(ctx, PT(doc).GetID(), doc); err != nil {
		return f.translate(err)
	}
	f.after(ctx, before, doc)
	return nil
}

// DeleteOne removes the document and runs the after-write hooks with the
// removed state.
func (f *Factory[T, PT]) DeleteOne(ctx context.Context, id bson.ObjectID) error {
	existing, err := f.def.Collection.FindOne(ctx, repository.ByID(id), nil)
	if err != nil {
		return f.translate(err)
	}
	if err := f.def.Collection.Delete(ctx, id); err != nil {
		return f.translate(err)
	}
	f.after(ctx, existing, nil)
	return nil
}

// Violations returns every struct-tag and rule violation of doc.
func (f *Factory[T, PT]) Violations(ctx context.Context, doc *T) ([]string, error) {
	msgs := f.val.Struct(doc)
	for _, rule := range f.def.Rules {
		m, err := rule(ctx, doc)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m...)
	}
	return msgs, nil
}

func (f *Factory[T, PT]) prepare(ctx context.Context, doc *T, isNew bool) error {
	for _, m := range f.def.BeforeSave {
		if err := m(ctx, doc, isNew); err != nil {
			return err
		}
	}
	msgs, err := f.Violations(ctx, doc)
	if err != nil {
		return err
	}
	if len(msgs) > 0 {
		return apperror.Validation(msgs)
	}
	return nil
}

func (f *Factory[T, PT]) after(ctx context.Context, before, after *T) {
	for _, h := range f.def.AfterWrite {
		if err := h(ctx, before, after); err != nil {
			f.def.Log.Error().Err(err).Str("resource", f.def.Name).Msg("after-write hook failed")
		}
	}
}

// clone deep-copies a stored document through its bson form.
func clone[T any](doc *T) (*T, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("clone document: %w", err)
	}
	out := new(T)
	if err := bson.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("clone document: %w", err)
	}
	return out, nil
}

// decode strips protected keys from a JSON object and unmarshals the rest
// onto doc.  Unknown keys are ignored.
func (f *Factory[T, PT]) decode(payload []byte, doc *T) error {
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return apperror.Wrap(apperror.KindBadRequest, "Request body must be a JSON object", err)
	}
	for key := range fields {
		if key == "id" || key == "_id" || slices.Contains(f.def.Protected, key) {
			delete(fields, key)
		}
	}
	clean, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(clean, doc); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			return apperror.Validation([]string{fmt.Sprintf("Invalid %s: expected %s", te.Field, te.Type)})
		}
		return apperror.Validation([]string{err.Error()})
	}
	return nil
}

// translate maps store errors to API errors.
func (f *Factory[T, PT]) translate(err error) error {
	var dup *repository.DuplicateError
	switch {
	case errors.As(err, &dup):
		return apperror.Wrap(apperror.KindDuplicateKey,
			fmt.Sprintf("Duplicate field value: %v. Please use another value!", dup.Value), err)
	case errors.Is(err, repository.ErrDuplicate):
		return apperror.Wrap(apperror.KindDuplicateKey, "Duplicate field value. Please use another value!", err)
	case errors.Is(err, repository.ErrNotFound):
		return apperror.Wrap(apperror.KindNotFound, fmt.Sprintf("No %s found with that ID", f.def.Name), err)
	}
	return err
}
