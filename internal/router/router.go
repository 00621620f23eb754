// Package router registers the /api/v1 routes on an echo instance.
package router

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tour-booking/internal/apperror"
	"github.com/iliyamo/tour-booking/internal/handler"
)

// APIPrefix is the root of every resource route.
const APIPrefix = "/api/v1"

// Deps carries the handlers and the middleware the routes are built from.
// Cache, Purge and RateLimit may be nil.
type Deps struct {
	Auth     *handler.AuthHandler
	Users    *handler.UserHandler
	Tours    *handler.TourHandler
	Reviews  *handler.ReviewHandler
	Bookings *handler.BookingHandler

	// Protect is the access gate; RestrictTo runs after it.
	Protect   echo.MiddlewareFunc
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
	Purge     echo.MiddlewareFunc

	Health  echo.HandlerFunc
	Metrics echo.HandlerFunc
}

func orNoop(m echo.MiddlewareFunc) echo.MiddlewareFunc {
	if m == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return m
}

// Register wires every route of the API.
func Register(e *echo.Echo, d Deps) {
	d.RateLimit = orNoop(d.RateLimit)
	d.Cache = orNoop(d.Cache)
	d.Purge = orNoop(d.Purge)

	if d.Health != nil {
		e.GET("/healthz", d.Health)
	}
	if d.Metrics != nil {
		e.GET("/metrics", d.Metrics)
	}

	e.Use(underAPI(d.RateLimit))

	// Groups carry no middleware; echo would otherwise answer unknown
	// paths below them with the group chain instead of NotFound.
	api := e.Group(APIPrefix)
	registerUsers(api, d)
	registerTours(api, d)
	registerReviews(api, d)
	registerBookings(api, d)

	e.RouteNotFound("/*", NotFound)
}

// underAPI applies m only to requests below APIPrefix.
func underAPI(m echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		limited := m(next)
		return func(c echo.Context) error {
			if strings.HasPrefix(c.Request().URL.Path, APIPrefix+"/") {
				return limited(c)
			}
			return next(c)
		}
	}
}

// NotFound answers every request no route matched.
func NotFound(c echo.Context) error {
	return apperror.New(apperror.KindNotFound, fmt.Sprintf("Can't find %s on this server!", c.Request().URL.Path))
}
