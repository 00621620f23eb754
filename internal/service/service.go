package service

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/tour-booking/internal/auth"
	"github.com/iliyamo/tour-booking/internal/mailer"
	"github.com/iliyamo/tour-booking/internal/repository"
)

// Deps are the collaborators shared by the resources.
type Deps struct {
	Collections repository.Collections
	Credentials *auth.Manager
	Mailer      mailer.Mailer
	// Events may be nil; bookings are then stored without notice.
	Events BookingEvents
	Log    zerolog.Logger
}

// Services bundles every resource of the API.
type Services struct {
	Tours    *Tours
	Reviews  *Reviews
	Bookings *Bookings
	Users    *Users
	Accounts *Accounts
}

func New(d Deps) *Services {
	val := NewValidator()
	now := time.Now
	if d.Credentials != nil {
		now = d.Credentials.Now
	}
	tours := NewTours(d.Collections.Tours, val, now, d.Log)
	reviews := NewReviews(d.Collections, tours, val, now, d.Log)
	tours.reviews = reviews
	users := NewUsers(d.Collections.Users, val, now, d.Log)
	return &Services{
		Tours:    tours,
		Reviews:  reviews,
		Bookings: NewBookings(d.Collections, tours, val, d.Events, now, d.Log),
		Users:    users,
		Accounts: NewAccounts(users, repository.NewUserRepo(d.Collections.Users), d.Credentials, d.Mailer, d.Log),
	}
}
