package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/iliyamo/tour-booking/internal/apperror"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/repository"
)

// Reviews is the review resource.  Every stored change recomputes the
// rating statistics of the tours involved.
type Reviews struct {
	*Factory[model.Review, *model.Review]
	col      repository.Collection[model.Review]
	tours    *Tours
	users    repository.Collection[model.User]
	bookings repository.Collection[model.Booking]
}

func NewReviews(cols repository.Collections, tours *Tours, val *Validator, now func() time.Time, log zerolog.Logger) *Reviews {
	r := &Reviews{col: cols.Reviews, tours: tours, users: cols.Users, bookings: cols.Bookings}
	r.Factory = NewFactory[model.Review](Definition[model.Review]{
		Name:       "review",
		Log:        log,
		Collection: cols.Reviews,
		Protected:  []string{"user", "createdAt", "tourInfo", "author"},
		Rules:      []Rule[model.Review]{r.tourMustExist, r.oncePerTour, r.bookedWhenMoved},
		BeforeSave: []Mutator[model.Review]{
			func(_ context.Context, rev *model.Review, isNew bool) error {
				rev.Review = strings.TrimSpace(rev.Review)
				if isNew {
					rev.CreatedAt = now().UTC()
				}
				return nil
			},
		},
		Populate:   r.populate,
		AfterWrite: []Hook[model.Review]{r.recompute},
	}, val)
	return r
}

func (r *Reviews) tourMustExist(ctx context.Context, rev *model.Review) ([]string, error) {
	if rev.Tour.IsZero() {
		return nil, nil
	}
	ok, err := r.tours.Exists(ctx, rev.Tour)
	if err != nil || ok {
		return nil, err
	}
	return []string{"Review must belong to an existing tour"}, nil
}

func (r *Reviews) oncePerTour(ctx context.Context, rev *model.Review) ([]string, error) {
	if rev.Tour.IsZero() || rev.User.IsZero() {
		return nil, nil
	}
	n, err := r.col.Count(ctx, bson.D{
		{Key: "tour", Value: rev.Tour},
		{Key: "user", Value: rev.User},
		{Key: "_id", Value: bson.D{{Key: "$ne", Value: rev.ID}}},
	})
	if err != nil || n == 0 {
		return nil, err
	}
	return []string{"You have already reviewed this tour"}, nil
}

// bookedWhenMoved applies the booking requirement to a stored review whose
// tour changes: the author must have booked the new tour too.
func (r *Reviews) bookedWhenMoved(ctx context.Context, rev *model.Review) ([]string, error) {
	if rev.ID.IsZero() || rev.Tour.IsZero() {
		return nil, nil
	}
	stored, err := r.col.FindOne(ctx, repository.ByID(rev.ID), bson.D{{Key: "tour", Value: 1}})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if stored.Tour == rev.Tour {
		return nil, nil
	}
	return nil, r.EnsureBooked(ctx, rev.User, rev.Tour)
}

func (r *Reviews) populate(ctx context.Context, list []*model.Review) error {
	userIDs := make([]bson.ObjectID, 0, len(list))
	tourIDs := make([]bson.ObjectID, 0, len(list))
	for _, rev := range list {
		userIDs = append(userIDs, rev.User)
		tourIDs = append(tourIDs, rev.Tour)
	}
	byUser, err := authors(ctx, r.users, userIDs)
	if err != nil {
		return err
	}
	byTour, err := tourRefs(ctx, r.tours.col, tourIDs)
	if err != nil {
		return err
	}
	for _, rev := range list {
		rev.Author = byUser[rev.User]
		rev.TourInfo = byTour[rev.Tour]
	}
	return nil
}

// recompute refreshes the statistics of the tour before and after the
// write; a review moved to another tour touches both.
func (r *Reviews) recompute(ctx context.Context, before, after *model.Review) error {
	var ids []bson.ObjectID
	if before != nil {
		ids = append(ids, before.Tour)
	}
	if after != nil {
		ids = append(ids, after.Tour)
	}
	for _, id := range distinct(ids) {
		if err := r.CalcAverageRatings(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// CalcAverageRatings recomputes {ratingsQuantity, ratingsAverage} of a tour
// from its reviews.  A tour without reviews goes back to {0, 4.5}.
func (r *Reviews) CalcAverageRatings(ctx context.Context, tourID bson.ObjectID) error {
	rows, err := r.col.Aggregate(ctx, bson.A{
		bson.D{{Key: "$match", Value: bson.D{{Key: "tour", Value: tourID}}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$tour"},
			{Key: "nRating", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "avgRating", Value: bson.D{{Key: "$avg", Value: "$rating"}}},
		}}},
	})
	if err != nil {
		return err
	}
	type stat struct {
		NRating   int     `bson:"nRating"`
		AvgRating float64 `bson:"avgRating"`
	}
	stats, err := repository.DecodeAll[stat](rows)
	if err != nil {
		return err
	}
	if len(stats) == 0 || stats[0].NRating == 0 {
		return r.tours.SetRatings(ctx, tourID, model.DefaultRatingsQuantity, model.DefaultRatingsAverage)
	}
	return r.tours.SetRatings(ctx, tourID, stats[0].NRating, math.Round(stats[0].AvgRating*10)/10)
}

// ForTour lists the reviews of a tour, newest first, with authors.
func (r *Reviews) ForTour(ctx context.Context, tourID bson.ObjectID) ([]*model.Review, error) {
	list, err := r.col.Find(ctx, repository.Query{
		Filter: bson.D{{Key: "tour", Value: tourID}},
		Sort:   bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		return nil, err
	}
	if err := r.populate(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// EnsureBooked fails with Forbidden unless the user booked the tour.
func (r *Reviews) EnsureBooked(ctx context.Context, userID, tourID bson.ObjectID) error {
	n, err := r.bookings.Count(ctx, bson.D{{Key: "tour", Value: tourID}, {Key: "user", Value: userID}})
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.New(apperror.KindForbidden, "You can only review tours you have booked")
	}
	return nil
}

// EnsureAuthor fails with Forbidden unless u wrote the review or is an
// admin.
func (r *Reviews) EnsureAuthor(ctx context.Context, u *model.User, reviewID bson.ObjectID) error {
	if u.Role == model.RoleAdmin {
		return nil
	}
	rev, err := r.col.FindOne(ctx, repository.ByID(reviewID), bson.D{{Key: "user", Value: 1}})
	if err != nil {
		return r.translate(err)
	}
	if rev.User != u.ID {
		return apperror.New(apperror.KindForbidden, "You can only change your own reviews")
	}
	return nil
}
