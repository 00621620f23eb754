package repository

import (
	"context"
	"errors"
	"regexp"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoCollection implements Collection on a MongoDB collection.
type MongoCollection[T any] struct {
	col *mongo.Collection
}

// NewMongoCollection wraps the named collection of db.
func NewMongoCollection[T any](db *mongo.Database, name string) *MongoCollection[T] {
	return &MongoCollection[T]{col: db.Collection(name)}
}

var dupKeyPattern = regexp.MustCompile(`dup key: \{ ?"?([A-Za-z0-9_.]+)"?: (.+?) ?\}`)

// wrapError converts driver errors into the package sentinels.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	if mongo.IsDuplicateKeyError(err) {
		dup := &DuplicateError{}
		if m := dupKeyPattern.FindStringSubmatch(err.Error()); m != nil {
			dup.Field, dup.Value = m[1], m[2]
		}
		return dup
	}
	return err
}

func orEmpty(d bson.D) bson.D {
	if d == nil {
		return bson.D{}
	}
	return d
}

func (m *MongoCollection[T]) Find(ctx context.Context, q Query) ([]*T, error) {
	opts := options.Find()
	if len(q.Sort) > 0 {
		opts.SetSort(q.Sort)
	}
	if len(q.Projection) > 0 {
		opts.SetProjection(q.Projection)
	}
	if q.Skip > 0 {
		opts.SetSkip(q.Skip)
	}
	if q.Limit > 0 {
		opts.SetLimit(q.Limit)
	}
	cursor, err := m.col.Find(ctx, orEmpty(q.Filter), opts)
	if err != nil {
		return nil, wrapError(err)
	}
	defer cursor.Close(ctx)

	results := []*T{}
	for cursor.Next(ctx) {
		var item T
		if err := cursor.Decode(&item); err != nil {
			return nil, err
		}
		results = append(results, &item)
	}
	return results, cursor.Err()
}

func (m *MongoCollection[T]) Count(ctx context.Context, filter bson.D) (int64, error) {
	n, err := m.col.CountDocuments(ctx, orEmpty(filter))
	return n, wrapError(err)
}

func (m *MongoCollection[T]) FindOne(ctx context.Context, filter, projection bson.D) (*T, error) {
	opts := options.FindOne()
	if len(projection) > 0 {
		opts.SetProjection(projection)
	}
	var result T
	if err := m.col.FindOne(ctx, orEmpty(filter), opts).Decode(&result); err != nil {
		return nil, wrapError(err)
	}
	return &result, nil
}

func (m *MongoCollection[T]) Insert(ctx context.Context, doc *T) error {
	_, err := m.col.InsertOne(ctx, doc)
	return wrapError(err)
}

func (m *MongoCollection[T]) Replace(ctx context.Context, id bson.ObjectID, doc *T) error {
	res, err := m.col.ReplaceOne(ctx, ByID(id), doc)
	if err != nil {
		return wrapError(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoCollection[T]) Update(ctx context.Context, filter, update bson.D) (int64, error) {
	res, err := m.col.UpdateOne(ctx, orEmpty(filter), update)
	if err != nil {
		return 0, wrapError(err)
	}
	return res.MatchedCount, nil
}

func (m *MongoCollection[T]) Delete(ctx context.Context, id bson.ObjectID) error {
	res, err := m.col.DeleteOne(ctx, ByID(id))
	if err != nil {
		return wrapError(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoCollection[T]) Aggregate(ctx context.Context, pipeline bson.A) ([]bson.M, error) {
	cursor, err := m.col.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, wrapError(err)
	}
	rows := []bson.M{}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
