package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/iliyamo/tour-booking/internal/model"
)

// mongoTestDB connects to MONGO_TEST_URI or skips the test.
func mongoTestDB(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx, nil); err != nil {
		t.Skipf("mongo unavailable: %v", err)
	}
	db := client.Database("tours_test_" + bson.NewObjectID().Hex())
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return db
}

func TestMongoCollectionRoundTrip(t *testing.T) {
	db := mongoTestDB(t)
	ctx := context.Background()
	_, err := db.Collection(model.ColTours).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	require.NoError(t, err)

	col := NewMongoCollection[model.Tour](db, model.ColTours)
	tours := seedTours(t, col, 300, 100, 200)

	got, err := col.Find(ctx, Query{Sort: bson.D{{Key: "price", Value: 1}}, Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 100.0, got[0].Price)

	dup := &model.Tour{ID: bson.NewObjectID(), Name: tours[0].Name}
	err = col.Insert(ctx, dup)
	assert.ErrorIs(t, err, ErrDuplicate)

	assert.ErrorIs(t, col.Delete(ctx, bson.NewObjectID()), ErrNotFound)
	_, err = col.FindOne(ctx, ByID(bson.NewObjectID()), nil)
	assert.ErrorIs(t, err, ErrNotFound)
}
