package query

import (
	"context"
	"net/url"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/iliyamo/tour-booking/internal/apperror"
	"github.com/iliyamo/tour-booking/internal/repository"
)

// Builder is a deferred query against one collection.  Each step reads its
// control keys from the request values; nothing touches the store until
// Exec or Count.  Steps that are not called leave their part of the query
// unset, so New(...).Filter().Exec(ctx) is an unsorted, unpaginated find.
type Builder[T any] struct {
	col      repository.Collection[T]
	base     bson.D
	values   url.Values
	defaults Defaults
	spec     Spec
	errs     []string
}

// New starts a builder.  base is AND-ed with whatever the client asks for
// and cannot be overridden by it.
func New[T any](col repository.Collection[T], base bson.D, values url.Values, d Defaults) *Builder[T] {
	if values == nil {
		values = url.Values{}
	}
	return &Builder[T]{col: col, base: base, values: values, defaults: d}
}

func (b *Builder[T]) Filter() *Builder[T] {
	b.errs = append(b.errs, parseFilter(b.values, b.defaults, &b.spec)...)
	return b
}

func (b *Builder[T]) Sort() *Builder[T] {
	b.errs = append(b.errs, parseSort(b.values, b.defaults, &b.spec)...)
	return b
}

func (b *Builder[T]) LimitFields() *Builder[T] {
	b.errs = append(b.errs, parseFields(b.values, b.defaults, &b.spec)...)
	return b
}

func (b *Builder[T]) Paginate() *Builder[T] {
	b.errs = append(b.errs, parsePage(b.values, b.defaults, &b.spec)...)
	return b
}

// All applies every step in the usual order.
func (b *Builder[T]) All() *Builder[T] {
	return b.Filter().Sort().LimitFields().Paginate()
}

// Spec returns the query built so far.
func (b *Builder[T]) Spec() (Spec, error) {
	if len(b.errs) > 0 {
		return Spec{}, apperror.Validation(b.errs)
	}
	return b.spec, nil
}

// Exec runs the query.  A page requested explicitly that starts past the
// last matching document fails with PageOutOfRange; the first page never
// does, so an empty collection reads as an empty list.
func (b *Builder[T]) Exec(ctx context.Context) ([]*T, error) {
	spec, err := b.Spec()
	if err != nil {
		return nil, err
	}
	filter := repository.And(b.base, spec.Filter)
	if spec.PageGiven && spec.Page > 1 {
		total, err := b.col.Count(ctx, filter)
		if err != nil {
			return nil, err
		}
		if spec.Skip() >= total {
			return nil, apperror.ErrPageOutOfRange
		}
	}
	return b.col.Find(ctx, repository.Query{
		Filter:     filter,
		Sort:       spec.Sort,
		Projection: spec.Projection,
		Skip:       spec.Skip(),
		Limit:      spec.Limit,
	})
}

// Count returns the number of documents matching the filter, ignoring
// pagination.
func (b *Builder[T]) Count(ctx context.Context) (int64, error) {
	spec, err := b.Spec()
	if err != nil {
		return 0, err
	}
	return b.col.Count(ctx, repository.And(b.base, spec.Filter))
}
