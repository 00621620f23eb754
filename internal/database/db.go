package database

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/iliyamo/tour-booking/internal/model"
)

// Open connects to MongoDB, verifies the connection and makes sure the
// indexes the API relies on exist.  Index failures are logged, not fatal.
func Open(ctx context.Context, uri, name string, log zerolog.Logger) (*mongo.Client, *mongo.Database, error) {
	client, err := mongo.Connect(options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(25).
		SetServerSelectionTimeout(5 * time.Second))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	// Ping with timeout
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(name)
	if err := EnsureIndexes(ctx, db); err != nil {
		log.Warn().Err(err).Msg("ensure indexes failed")
	}
	return client, db, nil
}

// EnsureIndexes creates the unique and lookup indexes of every collection.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	type idx struct {
		col    string
		keys   bson.D
		unique bool
	}
	indexes := []idx{
		{model.ColUsers, bson.D{{Key: "email", Value: 1}}, true},
		{model.ColUsers, bson.D{{Key: "passwordResetToken", Value: 1}}, false},

		{model.ColTours, bson.D{{Key: "name", Value: 1}}, true},
		{model.ColTours, bson.D{{Key: "slug", Value: 1}}, false},
		{model.ColTours, bson.D{{Key: "price", Value: 1}, {Key: "ratingsAverage", Value: -1}}, false},

		// one review per user per tour
		{model.ColReviews, bson.D{{Key: "tour", Value: 1}, {Key: "user", Value: 1}}, true},

		{model.ColBookings, bson.D{{Key: "tour", Value: 1}}, false},
		{model.ColBookings, bson.D{{Key: "user", Value: 1}}, false},
	}
	for _, ix := range indexes {
		m := mongo.IndexModel{Keys: ix.keys}
		if ix.unique {
			m.Options = options.Index().SetUnique(true)
		}
		if _, err := db.Collection(ix.col).Indexes().CreateOne(ctx, m); err != nil {
			return fmt.Errorf("index %s%v: %w", ix.col, ix.keys, err)
		}
	}
	return nil
}
