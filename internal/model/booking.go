package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Booking records that a user bought a place on a tour.  Price defaults to
// the tour price and Paid to true when the client leaves them out.
type Booking struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id,omitzero"`
	Tour      bson.ObjectID `bson:"tour,omitempty" json:"tour,omitzero" validate:"required"`
	User      bson.ObjectID `bson:"user,omitempty" json:"user,omitzero" validate:"required"`
	Price     float64       `bson:"price,omitempty" json:"price,omitempty" validate:"gt=0"`
	Paid      *bool         `bson:"paid,omitempty" json:"paid,omitempty"`
	CreatedAt time.Time     `bson:"createdAt,omitempty" json:"createdAt,omitzero"`

	TourInfo *TourRef `bson:"-" json:"tourInfo,omitempty"`
	Author   *Author  `bson:"-" json:"userInfo,omitempty"`
}

func (b *Booking) GetID() bson.ObjectID   { return b.ID }
func (b *Booking) SetID(id bson.ObjectID) { b.ID = id }
