package handler

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/iliyamo/tour-booking/internal/apperror"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/service"
)

// ReviewHandler serves reviews, top level and nested under a tour.
type ReviewHandler struct {
	Reviews *service.Reviews
}

func NewReviewHandler(reviews *service.Reviews) *ReviewHandler {
	return &ReviewHandler{Reviews: reviews}
}

// tourScope returns the tour of a nested route, if any.
func tourScope(c echo.Context) (bson.ObjectID, bool, error) {
	if c.Param("tourId") == "" {
		return bson.ObjectID{}, false, nil
	}
	id, err := objectID(c, "tourId")
	return id, err == nil, err
}

func (h *ReviewHandler) GetAll(c echo.Context) error {
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

	reviews, err := h.Reviews.GetAll(ctx, c.QueryParams(), scope)
	if err != nil {
		return err
	}
	return sendList(c, "reviews", reviews)
}

func (h *ReviewHandler) GetOne(c echo.Context) error {
	id, err := objectID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	r, err := h.Reviews.GetOne(ctx, id, false)
	if err != nil {
		return err
	}
	return sendOne(c, http.StatusOK, "review", r)
}

// Create stores a review by the caller.  The tour comes from the path on
// nested routes and from the body otherwise; either way the caller must
// have booked it.
func (h *ReviewHandler) Create(c echo.Context) error {
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
	if !nested {
		var ref struct {
			Tour bson.ObjectID `json:"tour"`
		}
		if len(body) > 0 {
			if err := json.Unmarshal(body, &ref); err != nil {
				return apperror.Wrap(apperror.KindBadRequest, "Invalid tour in request body", err)
			}
		}
		tourID = ref.Tour
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if !tourID.IsZero() {
		if err := h.Reviews.EnsureBooked(ctx, u.ID, tourID); err != nil {
			return err
		}
	}
	r, err := h.Reviews.CreateOne(ctx, body, func(r *model.Review) {
		r.User = u.ID
		if nested {
			r.Tour = tourID
		}
	})
	if err != nil {
		return err
	}
	return sendOne(c, http.StatusCreated, "review", r)
}

func (h *ReviewHandler) Update(c echo.Context) error {
	u, err := identity(c)
	if err != nil {
		return err
	}
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

	if err := h.Reviews.EnsureAuthor(ctx, u, id); err != nil {
		return err
	}
	r, err := h.Reviews.UpdateOne(ctx, id, body)
	if err != nil {
		return err
	}
	return sendOne(c, http.StatusOK, "review", r)
}

func (h *ReviewHandler) Delete(c echo.Context) error {
	u, err := identity(c)
	if err != nil {
		return err
	}
	id, err := objectID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Reviews.EnsureAuthor(ctx, u, id); err != nil {
		return err
	}
	if err := h.Reviews.DeleteOne(ctx, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
