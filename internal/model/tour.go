package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Difficulty levels accepted for a tour.
const (
	DifficultyEasy      = "easy"
	DifficultyMedium    = "medium"
	DifficultyDifficult = "difficult"
)

// Default rating statistics of a tour without reviews.
const (
	DefaultRatingsAverage  = 4.5
	DefaultRatingsQuantity = 0
)

// Tour is a bookable trip.  RatingsAverage and RatingsQuantity are derived
// from the tour's reviews and are never taken from client input.  Slug is
// derived from Name.  SecretTour hides the document from every read.
type Tour struct {
	ID              bson.ObjectID `bson:"_id,omitempty" json:"id,omitzero"`
	Name            string        `bson:"name,omitempty" json:"name,omitempty" validate:"required,min=10,max=40"`
	Slug            string        `bson:"slug,omitempty" json:"slug,omitempty"`
	Duration        int           `bson:"duration,omitempty" json:"duration,omitempty" validate:"required,gt=0"`
	MaxGroupSize    int           `bson:"maxGroupSize,omitempty" json:"maxGroupSize,omitempty" validate:"required,gt=0"`
	Difficulty      string        `bson:"difficulty,omitempty" json:"difficulty,omitempty" validate:"required,oneof=easy medium difficult"`
	RatingsAverage  float64       `bson:"ratingsAverage" json:"ratingsAverage,omitempty" validate:"gte=1,lte=5"`
	RatingsQuantity int           `bson:"ratingsQuantity" json:"ratingsQuantity"`
	Price           float64       `bson:"price,omitempty" json:"price,omitempty" validate:"required,gt=0"`
	PriceDiscount   float64       `bson:"priceDiscount,omitempty" json:"priceDiscount,omitempty" validate:"gte=0"`
	Summary         string        `bson:"summary,omitempty" json:"summary,omitempty"`
	Description     string        `bson:"description,omitempty" json:"description,omitempty" validate:"required"`
	ImageCover      string        `bson:"imageCover,omitempty" json:"imageCover,omitempty" validate:"required"`
	Images          []string      `bson:"images,omitempty" json:"images,omitempty"`
	StartDates      []time.Time   `bson:"startDates,omitempty" json:"startDates,omitempty"`
	SecretTour      bool          `bson:"secretTour" json:"secretTour,omitempty"`
	CreatedAt       time.Time     `bson:"createdAt,omitempty" json:"createdAt,omitzero"`

	// Reviews is filled by population on single-tour reads.
	Reviews []*Review `bson:"-" json:"reviews,omitempty"`
}

func (t *Tour) GetID() bson.ObjectID   { return t.ID }
func (t *Tour) SetID(id bson.ObjectID) { t.ID = id }

// TourStats is one row of the per-difficulty statistics report.
type TourStats struct {
	Difficulty string  `bson:"_id" json:"difficulty"`
	NumTours   int     `bson:"numTours" json:"numTours"`
	NumRatings int     `bson:"numRatings" json:"numRatings"`
	AvgRating  float64 `bson:"avgRating" json:"avgRating"`
	AvgPrice   float64 `bson:"avgPrice" json:"avgPrice"`
	MinPrice   float64 `bson:"minPrice" json:"minPrice"`
	MaxPrice   float64 `bson:"maxPrice" json:"maxPrice"`
}
