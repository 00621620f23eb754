package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/service"
)

// BookingHandler serves bookings to staff.
type BookingHandler struct {
	Bookings *service.Bookings
}

func NewBookingHandler(bookings *service.Bookings) *BookingHandler {
	return &BookingHandler{Bookings: bookings}
}

func (h *BookingHandler) GetAll(c echo.Context) error {
	tourID, nested, err := tourScope(c)
	if err != nil {
		return err
	}
	var scope bson.D
	if nested {
		scope = bson.D{{Key: "tour", Value: tourID}}
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	bookings, err := h.Bookings.GetAll(ctx, c.QueryParams(), scope)
	if err != nil {
		return err
	}
	return sendList(c, "bookings", bookings)
}

func (h *BookingHandler) GetOne(c echo.Context) error {
	id, err := objectID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	b, err := h.Bookings.GetOne(ctx, id, false)
	if err != nil {
		return err
	}
	return sendOne(c, http.StatusOK, "booking", b)
}

// Create books a tour for the user named in the body, or for the caller
// when the body names none.
func (h *BookingHandler) Create(c echo.Context) error {
	u, err := identity(c)
	if err != nil {
		return err
	}
	tourID, nested, err := tourScope(c)
	if err != nil {
		return err
	}
	body, err := readBody(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	b, err := h.Bookings.CreateOne(ctx, body, func(b *model.Booking) {
		if nested {
			b.Tour = tourID
		}
		if b.User.IsZero() {
			b.User = u.ID
		}
	})
	if err != nil {
		return err
	}
	return sendOne(c, http.StatusCreated, "booking", b)
}

func (h *BookingHandler) Update(c echo.Context) error {
	id, err := objectID(c, "id")
	if err != nil {
		return err
	}
	body, err := readBody(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	b, err := h.Bookings.UpdateOne(ctx, id, body)
	if err != nil {
		return err
	}
	return sendOne(c, http.StatusOK, "booking", b)
}

func (h *BookingHandler) Delete(c echo.Context) error {
	id, err := objectID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Bookings.DeleteOne(ctx, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
