package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Handler returns the echo error boundary.  Every error a handler or
// middleware returns ends up here and is rendered as the fail/error
// envelope.  In development the response also carries the raw error and
// its kind; in production non-operational errors collapse to a generic 500.
func Handler(production bool, log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		e, operational := classify(err)

		if !operational {
			log.Error().Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("unhandled error")
		}

		body := echo.Map{
			"status":  statusText(e.Status),
			"message": e.Message,
		}
		if len(e.Details) > 0 {
			body["errors"] = e.Details
		}
		if !production {
			body["error"] = err.Error()
			body["kind"] = e.Kind
			if !operational {
				body["message"] = err.Error()
			}
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(e.Status)
		} else {
			werr = c.JSON(e.Status, body)
		}
		if werr != nil {
			log.Error().Err(werr).Msg("write error response")
		}
	}
}

// classify converts err to an operational *Error.  The boolean is false
// when err is a programming error; the returned value is then the generic
// internal error.
func classify(err error) (*Error, bool) {
	if e, ok := As(err); ok {
		return e, true
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		kind := KindBadRequest
		switch {
		case he.Code == http.StatusNotFound:
			kind = KindNotFound
		case he.Code == http.StatusUnauthorized:
			kind = KindUnauthenticated
		case he.Code == http.StatusForbidden:
			kind = KindForbidden
		case he.Code == http.StatusTooManyRequests:
			kind = KindTooManyRequests
		case he.Code >= 500:
			return ErrInternal, false
		}
		return &Error{Kind: kind, Status: he.Code, Message: msg, Err: err}, true
	}
	return ErrInternal, false
}

func statusText(code int) string {
	if code >= 500 {
		return "error"
	}
	return "fail"
}
