package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking/internal/middleware"
	"github.com/iliyamo/tour-booking/internal/model"
)

func registerTours(api *echo.Group, d Deps) {
	g := api.Group("/tours")
	g.GET("", d.Tours.GetAll, d.Cache)
	g.GET("/top-5-cheap", d.Tours.TopCheap, d.Cache)
	g.GET("/tour-stats", d.Tours.Stats, d.Cache)
	g.GET("/:id", d.Tours.GetOne, d.Cache)

	staff := []echo.MiddlewareFunc{d.Protect, middleware.RestrictTo(model.RoleAdmin, model.RoleLeadGuide)}
	g.POST("", d.Tours.Create, append(staff, d.Purge)...)
	g.PATCH("/:id", d.Tours.Update, append(staff, d.Purge)...)
	g.DELETE("/:id", d.Tours.Delete, append(staff, d.Purge)...)

	// Reviews and bookings of one tour.
	g.GET("/:tourId/reviews", d.Reviews.GetAll)
	g.POST("/:tourId/reviews", d.Reviews.Create, d.Protect, middleware.RestrictTo(model.RoleUser), d.Purge)
	g.GET("/:tourId/bookings", d.Bookings.GetAll, staff...)
	g.POST("/:tourId/bookings", d.Bookings.Create, staff...)
}
