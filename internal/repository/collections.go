package repository

import (
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/iliyamo/tour-booking/internal/model"
)

// Collections bundles the handles of every collection the API uses.
type Collections struct {
	Users    Collection[model.User]
	Tours    Collection[model.Tour]
	Reviews  Collection[model.Review]
	Bookings Collection[model.Booking]
}

// NewMongoCollections binds the collections to db.
func NewMongoCollections(db *mongo.Database) Collections {
	return Collections{
		Users:    NewMongoCollection[model.User](db, model.ColUsers),
		Tours:    NewMongoCollection[model.Tour](db, model.ColTours),
		Reviews:  NewMongoCollection[model.Review](db, model.ColReviews),
		Bookings: NewMongoCollection[model.Booking](db, model.ColBookings),
	}
}

// NewMemoryCollections returns empty in-process collections with the same
// single-field unique constraints as the MongoDB indexes.
func NewMemoryCollections() Collections {
	return Collections{
		Users:    NewMemoryCollection[model.User]("email"),
		Tours:    NewMemoryCollection[model.Tour]("name"),
		Reviews:  NewMemoryCollection[model.Review](),
		Bookings: NewMemoryCollection[model.Booking](),
	}
}
