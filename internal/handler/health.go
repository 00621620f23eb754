package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Health answers load balancer probes.  With a store pinger it also checks
// the database and reports 503 when it is unreachable.
func Health(store Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if store != nil {
			ctx, cancel := requestContext(c)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "error", "store": "down"})
			}
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	}
}
