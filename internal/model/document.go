// Package model declares the documents stored by the API.  Field names in
// bson and json are camelCase so stored documents, query strings and
// response bodies all use the same names.
package model

import "go.mongodb.org/mongo-driver/v2/bson"

// Collection names.
const (
	ColUsers    = "users"
	ColTours    = "tours"
	ColReviews  = "reviews"
	ColBookings = "bookings"
)

// Document is implemented by every stored resource so generic code can
// read and assign identifiers.
type Document interface {
	GetID() bson.ObjectID
	SetID(bson.ObjectID)
}

// DocPtr constrains a type parameter to a pointer to T implementing
// Document.
type DocPtr[T any] interface {
	*T
	Document
}
