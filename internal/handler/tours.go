package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking/internal/query"
	"github.com/iliyamo/tour-booking/internal/service"
)

// TourHandler serves the tour resource.
type TourHandler struct {
	Tours *service.Tours
}

func NewTourHandler(tours *service.Tours) *TourHandler { return &TourHandler{Tours: tours} }

func (h *TourHandler) GetAll(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	tours, err := h.Tours.GetAll(ctx, c.QueryParams(), nil)
	if err != nil {
		return err
	}
	return sendList(c, "tours", tours)
}

// TopCheap is GetAll preset to the five best rated, cheapest tours.
func (h *TourHandler) TopCheap(c echo.Context) error {
	values := c.QueryParams()
	values.Set(query.KeyLimit, "5")
	values.Set(query.KeySort, "-ratingsAverage,price")
	values.Set(query.KeyFields, "name,price,ratingsAverage,summary,difficulty")
	return h.GetAll(c)
}

func (h *TourHandler) Stats(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	stats, err := h.Tours.Stats(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"status": "success",
		"data":   echo.Map{"stats": stats},
	})
}

func (h *TourHandler) GetOne(c echo.Context) error {
	id, err := objectID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	tour, err := h.Tours.GetOne(ctx, id, true)
	if err != nil {
		return err
	}
	return sendOne(c, http.StatusOK, "tour", tour)
}

func (h *TourHandler) Create(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	tour, err := h.Tours.CreateOne(ctx, body, nil)
	if err != nil {
		return err
	}
	return sendOne(c, http.StatusCreated, "tour", tour)
}

func (h *TourHandler) Update(c echo.Context) error {
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

	tour, err := h.Tours.UpdateOne(ctx, id, body)
	if err != nil {
		return err
	}
	return sendOne(c, http.StatusOK, "tour", tour)
}

func (h *TourHandler) Delete(c echo.Context) error {
	id, err := objectID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Tours.DeleteOne(ctx, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
