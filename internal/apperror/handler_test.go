package apperror

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, production bool, err error) (int, map[string]any) {
	t.Helper()
	e := echo.New()
	e.HTTPErrorHandler = Handler(production, zerolog.New(io.Discard))
	e.GET("/x", func(c echo.Context) error { return err })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("load: %w", Newf(KindNotFound, "no tour %s", "x"))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrForbidden))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestHandlerOperationalProduction(t *testing.T) {
	code, body := serve(t, true, Validation([]string{"name is required", "price must be greater than 0"}))

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "fail", body["status"])
	assert.Len(t, body["errors"], 2)
	assert.NotContains(t, body, "kind")
}

func TestHandlerHidesProgrammingErrorsInProduction(t *testing.T) {
	code, body := serve(t, true, errors.New("nil map write"))

	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, ErrInternal.Message, body["message"])
	assert.NotContains(t, body, "error")
}

func TestHandlerDetailsInDevelopment(t *testing.T) {
	code, body := serve(t, false, errors.New("nil map write"))

	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "nil map write", body["message"])
	assert.Equal(t, string(KindInternal), body["kind"])
}

func TestHandlerEchoHTTPError(t *testing.T) {
	code, body := serve(t, true, echo.NewHTTPError(http.StatusNotFound, "Can't find /nope on this server"))

	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "fail", body["status"])
	assert.Equal(t, "Can't find /nope on this server", body["message"])
}

func TestDeliveryErrorIsServerSide(t *testing.T) {
	code, body := serve(t, true, Wrap(KindDeliveryError, ErrDeliveryError.Message, errors.New("smtp: 421")))

	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, ErrDeliveryError.Message, body["message"])
}
