// Package queue carries booking events over RabbitMQ.
package queue

import (
	"time"

	"github.com/iliyamo/tour-booking/internal/model"
)

// BookingQueue is the durable queue booking events are published to.
const BookingQueue = "booking.created"

// BookingCreatedEvent is published when a booking is stored.  It carries
// enough for consumers to notify or account without reading the store.
type BookingCreatedEvent struct {
	BookingID string    `json:"booking_id"`
	TourID    string    `json:"tour_id"`
	UserID    string    `json:"user_id"`
	Price     float64   `json:"price"`
	Paid      bool      `json:"paid"`
	CreatedAt time.Time `json:"created_at"`
}

func NewBookingCreatedEvent(b *model.Booking) BookingCreatedEvent {
	return BookingCreatedEvent{
		BookingID: b.ID.Hex(),
		TourID:    b.Tour.Hex(),
		UserID:    b.User.Hex(),
		Price:     b.Price,
		Paid:      b.Paid != nil && *b.Paid,
		CreatedAt: b.CreatedAt,
	}
}
