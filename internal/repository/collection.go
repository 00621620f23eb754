package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Query is an executable find: filter, ordering, projection and window.
// Zero Skip/Limit mean "from the start" and "no limit".
type Query struct {
	Filter     bson.D
	Sort       bson.D
	Projection bson.D
	Skip       int64
	Limit      int64
}

// Collection is a typed handle on one collection of documents.
type Collection[T any] interface {
	// Find returns every document matching q, never nil.
	Find(ctx context.Context, q Query) ([]*T, error)
	// Count returns the number of documents matching filter.
	Count(ctx context.Context, filter bson.D) (int64, error)
	// FindOne returns the first match or ErrNotFound.  A nil projection
	// returns whole documents.
	FindOne(ctx context.Context, filter, projection bson.D) (*T, error)
	// Insert stores doc, which must already carry its id.
	Insert(ctx context.Context, doc *T) error
	// Replace overwrites the document with the given id.
	Replace(ctx context.Context, id bson.ObjectID, doc *T) error
	// Update applies $set/$unset/$inc operators to the first document
	// matching filter and reports how many matched (0 or 1).
	Update(ctx context.Context, filter, update bson.D) (int64, error)
	// Delete removes the document with the given id.
	Delete(ctx context.Context, id bson.ObjectID) error
	// Aggregate runs a pipeline and returns raw result rows.
	Aggregate(ctx context.Context, pipeline bson.A) ([]bson.M, error)
}

// ByID is the filter selecting a single document by id.
func ByID(id bson.ObjectID) bson.D {
	return bson.D{{Key: "_id", Value: id}}
}

// And combines filters with $and, dropping empty ones.
func And(filters ...bson.D) bson.D {
	var parts bson.A
	for _, f := range filters {
		if len(f) > 0 {
			parts = append(parts, f)
		}
	}
	switch len(parts) {
	case 0:
		return bson.D{}
	case 1:
		return parts[0].(bson.D)
	}
	return bson.D{{Key: "$and", Value: parts}}
}

// DecodeAll converts aggregation rows into typed values.
func DecodeAll[R any](rows []bson.M) ([]R, error) {
	out := make([]R, 0, len(rows))
	for _, row := range rows {
		raw, err := bson.Marshal(row)
		if err != nil {
			return nil, err
		}
		var r R
		if err := bson.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
