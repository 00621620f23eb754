package service

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/repository"
)

// VisibleTours hides secret tours from every read.
var VisibleTours = bson.D{{Key: "secretTour", Value: bson.D{{Key: "$ne", Value: true}}}}

// Tours is the tour resource.
type Tours struct {
	*Factory[model.Tour, *model.Tour]
	col repository.Collection[model.Tour]
	// reviews is wired after construction; the two resources refer to
	// each other.
	reviews *Reviews
}

func NewTours(col repository.Collection[model.Tour], val *Validator, now func() time.Time, log zerolog.Logger) *Tours {
	t := &Tours{col: col}
	t.Factory = NewFactory[model.Tour](Definition[model.Tour]{
		Name:       "tour",
		Log:        log,
		Collection: col,
		Base:       VisibleTours,
		Protected:  []string{"slug", "ratingsAverage", "ratingsQuantity", "createdAt", "reviews"},
		Rules:      []Rule[model.Tour]{discountBelowPrice},
		BeforeSave: []Mutator[model.Tour]{
			func(_ context.Context, tour *model.Tour, isNew bool) error {
				tour.Name = strings.TrimSpace(tour.Name)
				tour.Summary = strings.TrimSpace(tour.Summary)
				tour.Slug = Slugify(tour.Name)
				if isNew {
					tour.RatingsAverage = model.DefaultRatingsAverage
					tour.RatingsQuantity = model.DefaultRatingsQuantity
					tour.CreatedAt = now().UTC()
				}
				return nil
			},
		},
		PopulateOne: func(ctx context.Context, tour *model.Tour) error {
			if t.reviews == nil {
				return nil
			}
			list, err := t.reviews.ForTour(ctx, tour.ID)
			if err != nil {
				return err
			}
			tour.Reviews = list
			return nil
		},
	}, val)
	return t
}

func discountBelowPrice(_ context.Context, tour *model.Tour) ([]string, error) {
	if tour.PriceDiscount > 0 && tour.PriceDiscount >= tour.Price {
		return []string{"Discount price should be below the regular price"}, nil
	}
	return nil, nil
}

// Exists reports whether a tour with the given id is stored, secret or not.
func (t *Tours) Exists(ctx context.Context, id bson.ObjectID) (bool, error) {
	n, err := t.col.Count(ctx, repository.ByID(id))
	return n > 0, err
}

// Lookup returns the stored tour with the given id, secret or not.
func (t *Tours) Lookup(ctx context.Context, id bson.ObjectID) (*model.Tour, error) {
	tour, err := t.col.FindOne(ctx, repository.ByID(id), nil)
	if err != nil {
		return nil, t.translate(err)
	}
	return tour, nil
}

// SetRatings writes the derived rating statistics of a tour.
func (t *Tours) SetRatings(ctx context.Context, id bson.ObjectID, quantity int, average float64) error {
	_, err := t.col.Update(ctx, repository.ByID(id), bson.D{{Key: "$set", Value: bson.D{
		{Key: "ratingsQuantity", Value: quantity},
		{Key: "ratingsAverage", Value: average},
	}}})
	return err
}

// Stats groups the well rated visible tours by difficulty.
func (t *Tours) Stats(ctx context.Context) ([]model.TourStats, error) {
	rows, err := t.col.Aggregate(ctx, bson.A{
		bson.D{{Key: "$match", Value: repository.And(VisibleTours, bson.D{
			{Key: "ratingsAverage", Value: bson.D{{Key: "$gte", Value: model.DefaultRatingsAverage}}},
		})}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$difficulty"},
			{Key: "numTours", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "numRatings", Value: bson.D{{Key: "$sum", Value: "$ratingsQuantity"}}},
			{Key: "avgRating", Value: bson.D{{Key: "$avg", Value: "$ratingsAverage"}}},
			{Key: "avgPrice", Value: bson.D{{Key: "$avg", Value: "$price"}}},
			{Key: "minPrice", Value: bson.D{{Key: "$min", Value: "$price"}}},
			{Key: "maxPrice", Value: bson.D{{Key: "$max", Value: "$price"}}},
		}}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "avgPrice", Value: 1}}}},
	})
	if err != nil {
		return nil, err
	}
	return repository.DecodeAll[model.TourStats](rows)
}

// Slugify lower-cases s, strips accents and joins words with dashes.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, s)
	if err != nil {
		plain = s
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(plain) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
		default:
			dash = true
		}
	}
	return b.String()
}
