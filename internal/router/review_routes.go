package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking/internal/middleware"
	"github.com/iliyamo/tour-booking/internal/model"
)

func registerReviews(api *echo.Group, d Deps) {
	g := api.Group("/reviews")
	g.GET("", d.Reviews.GetAll)
	g.GET("/:id", d.Reviews.GetOne)

	// Review writes change tour ratings, so cached tour reads are purged.
	g.POST("", d.Reviews.Create, d.Protect, middleware.RestrictTo(model.RoleUser), d.Purge)
	author := []echo.MiddlewareFunc{d.Protect, middleware.RestrictTo(model.RoleUser, model.RoleAdmin), d.Purge}
	g.PATCH("/:id", d.Reviews.Update, author...)
	g.DELETE("/:id", d.Reviews.Delete, author...)
}

func registerBookings(api *echo.Group, d Deps) {
	g := api.Group("/bookings")
	staff := []echo.MiddlewareFunc{d.Protect, middleware.RestrictTo(model.RoleAdmin, model.RoleLeadGuide)}
	g.GET("", d.Bookings.GetAll, staff...)
	g.POST("", d.Bookings.Create, staff...)
	g.GET("/:id", d.Bookings.GetOne, staff...)
	g.PATCH("/:id", d.Bookings.Update, staff...)
	g.DELETE("/:id", d.Bookings.Delete, staff...)
}
