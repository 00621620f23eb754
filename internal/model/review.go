package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Review is a rated comment on a tour written by a user.
type Review struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id,omitzero"`
	Review    string        `bson:"review,omitempty" json:"review,omitempty" validate:"required"`
	Rating    int           `bson:"rating,omitempty" json:"rating,omitempty" validate:"required,min=1,max=5"`
	Tour      bson.ObjectID `bson:"tour,omitempty" json:"tour,omitzero" validate:"required"`
	User      bson.ObjectID `bson:"user,omitempty" json:"user,omitzero" validate:"required"`
	CreatedAt time.Time     `bson:"createdAt,omitempty" json:"createdAt,omitzero"`

	// Populated views, never stored.
	TourInfo *TourRef `bson:"-" json:"tourInfo,omitempty"`
	Author   *Author  `bson:"-" json:"author,omitempty"`
}

func (r *Review) GetID() bson.ObjectID   { return r.ID }
func (r *Review) SetID(id bson.ObjectID) { r.ID = id }

// TourRef is the populated form of a tour reference.
type TourRef struct {
	ID   bson.ObjectID `json:"id"`
	Name string        `json:"name"`
}

// Author is the populated form of a user reference.
type Author struct {
	Name  string `json:"name"`
	Photo string `json:"photo,omitempty"`
}
