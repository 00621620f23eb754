package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/iliyamo/tour-booking/internal/apperror"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/repository"
)

// BookingEvents receives notice of stored bookings.  Delivery is best
// effort: a failure is logged and never fails the booking.
type BookingEvents interface {
	BookingCreated(ctx context.Context, b *model.Booking) error
}

// Bookings is the booking resource.
type Bookings struct {
	*Factory[model.Booking, *model.Booking]
	tours  *Tours
	users  repository.Collection[model.User]
	events BookingEvents
	log    zerolog.Logger
}

func NewBookings(cols repository.Collections, tours *Tours, val *Validator, events BookingEvents, now func() time.Time, log zerolog.Logger) *Bookings {
	b := &Bookings{tours: tours, users: cols.Users, events: events, log: log}
	b.Factory = NewFactory[model.Booking](Definition[model.Booking]{
		Name:       "booking",
		Collection: cols.Bookings,
		Protected:  []string{"createdAt", "tourInfo", "userInfo"},
		Rules:      []Rule[model.Booking]{b.refsExist},
		BeforeSave: []Mutator[model.Booking]{b.defaults(now)},
		Populate:   b.populate,
		AfterWrite: []Hook[model.Booking]{b.publish},
		Log:        log,
	}, val)
	return b
}

func (b *Bookings) defaults(now func() time.Time) Mutator[model.Booking] {
	return func(ctx context.Context, bk *model.Booking, isNew bool) error {
		if !isNew {
			return nil
		}
		bk.CreatedAt = now().UTC()
		if bk.Paid == nil {
			paid := true
			bk.Paid = &paid
		}
		if bk.Price == 0 && !bk.Tour.IsZero() {
			tour, err := b.tours.Lookup(ctx, bk.Tour)
			switch {
			case err == nil:
				bk.Price = tour.Price
			case !errors.Is(err, apperror.ErrNotFound):
				return err
			}
		}
		return nil
	}
}

func (b *Bookings) refsExist(ctx context.Context, bk *model.Booking) ([]string, error) {
	var msgs []string
	if !bk.Tour.IsZero() {
		ok, err := b.tours.Exists(ctx, bk.Tour)
		if err != nil {
			return nil, err
		}
		if !ok {
			msgs = append(msgs, "Booking must belong to an existing tour")
		}
	}
	if !bk.User.IsZero() {
		n, err := b.users.Count(ctx, repository.And(repository.ActiveUsers, repository.ByID(bk.User)))
		if err != nil {
			return nil, err
		}
		if n == 0 {
			msgs = append(msgs, "Booking must belong to an existing user")
		}
	}
	return msgs, nil
}

func (b *Bookings) populate(ctx context.Context, list []*model.Booking) error {
	userIDs := make([]bson.ObjectID, 0, len(list))
	tourIDs := make([]bson.ObjectID, 0, len(list))
	for _, bk := range list {
		userIDs = append(userIDs, bk.User)
		tourIDs = append(tourIDs, bk.Tour)
	}
	byUser, err := authors(ctx, b.users, userIDs)
	if err != nil {
		return err
	}
	byTour, err := tourRefs(ctx, b.tours.col, tourIDs)
	if err != nil {
		return err
	}
	for _, bk := range list {
		bk.Author = byUser[bk.User]
		bk.TourInfo = byTour[bk.Tour]
	}
	return nil
}

func (b *Bookings) publish(ctx context.Context, before, after *model.Booking) error {
	if before != nil || after == nil || b.events == nil {
		return nil
	}
	if err := b.events.BookingCreated(ctx, after); err != nil {
		b.log.Warn().Err(err).Str("booking", after.ID.Hex()).Msg("publish booking event failed")
	}
	return nil
}
