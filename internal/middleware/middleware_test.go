package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/iliyamo/tour-booking/internal/apperror"
	"github.com/iliyamo/tour-booking/internal/auth"
	"github.com/iliyamo/tour-booking/internal/config"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/repository"
)

type directory map[bson.ObjectID]*model.User

func (d directory) Resolve(_ context.Context, id bson.ObjectID) (*model.User, error) {
	if u, ok := d[id]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

type gate struct {
	now   time.Time
	creds *auth.Manager
	users directory
	e     *echo.Echo
}

func newGate(t *testing.T) *gate {
	t.Helper()
	g := &gate{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), users: directory{}}
	g.creds = auth.NewManager(auth.Options{
		Secret:     "0123456789abcdef0123456789abcdef",
		TokenTTL:   time.Hour,
		BcryptCost: 4,
		Now:        func() time.Time { return g.now },
	})
	g.e = echo.New()
	g.e.HTTPErrorHandler = apperror.Handler(true, zerolog.Nop())
	protected := g.e.Group("", Protect(g.creds, g.users))
	protected.GET("/me", func(c echo.Context) error {
		u, ok := CurrentUser(c)
		require.True(t, ok)
		fromCtx, ok := auth.IdentityFrom(c.Request().Context())
		require.True(t, ok)
		assert.Same(t, u, fromCtx)
		return c.String(http.StatusOK, u.Name)
	})
	protected.GET("/admin", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		RestrictTo(model.RoleAdmin, model.RoleLeadGuide))
	return g
}

func (g *gate) user(t *testing.T, role model.Role) (*model.User, string) {
	t.Helper()
	u := &model.User{ID: bson.NewObjectID(), Name: "Ann", Role: role}
	g.users[u.ID] = u
	tok, err := g.creds.IssueToken(u.ID)
	require.NoError(t, err)
	return u, tok.Raw
}

func (g *gate) get(path, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authz != "" {
		req.Header.Set(echo.HeaderAuthorization, authz)
	}
	rec := httptest.NewRecorder()
	g.e.ServeHTTP(rec, req)
	return rec
}

func TestProtectAdmitsValidToken(t *testing.T) {
	g := newGate(t)
	_, tok := g.user(t, model.RoleUser)

	rec := g.get("/me", "Bearer "+tok)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ann", rec.Body.String())
}

func TestProtectStates(t *testing.T) {
	g := newGate(t)
	gone, goneTok := g.user(t, model.RoleUser)
	delete(g.users, gone.ID)
	rotated, rotatedTok := g.user(t, model.RoleUser)
	changed := g.now.Add(10 * time.Second)
	rotated.PasswordChangedAt = &changed

	cases := []struct {
		name, authz, message string
	}{
		{"missing header", "", apperror.ErrUnauthenticated.Message},
		{"wrong scheme", "Basic abc", apperror.ErrUnauthenticated.Message},
		{"empty bearer", "Bearer ", apperror.ErrUnauthenticated.Message},
		{"garbage token", "Bearer not.a.jwt", apperror.ErrInvalidToken.Message},
		{"identity gone", "Bearer " + goneTok, apperror.ErrIdentityGone.Message},
		{"stale token", "Bearer " + rotatedTok, apperror.ErrStaleToken.Message},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := g.get("/me", tc.authz)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.message)
			assert.Contains(t, rec.Body.String(), `"status":"fail"`)
		})
	}
}

func TestProtectRejectsExpiredToken(t *testing.T) {
	g := newGate(t)
	_, tok := g.user(t, model.RoleUser)
	g.now = g.now.Add(2 * time.Hour)

	rec := g.get("/me", "Bearer "+tok)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRestrictTo(t *testing.T) {
	g := newGate(t)
	_, userTok := g.user(t, model.RoleUser)
	_, leadTok := g.user(t, model.RoleLeadGuide)

	rec := g.get("/admin", "Bearer "+userTok)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), apperror.ErrForbidden.Message)

	rec = g.get("/admin", "Bearer "+leadTok)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tours", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/v1/tours")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip"}
	assert.Equal(t, "rl:ip:10.0.0.1", buildRateKey(cfg, c))

	cfg.KeyStrategy = "user_route"
	assert.Equal(t, "rl:user:anon:route:GET /api/v1/tours", buildRateKey(cfg, c))

	u := &model.User{ID: bson.NewObjectID()}
	c.Set(identityKey, u)
	cfg.KeyStrategy = "ip_user"
	assert.Equal(t, "rl:ip:10.0.0.1:user:"+u.ID.Hex(), buildRateKey(cfg, c))

	assert.Equal(t, 0, retryAfterSeconds(-5))
	assert.Equal(t, 2, retryAfterSeconds(1001))
}

func TestDisabledRedisMiddlewarePassesThrough(t *testing.T) {
	e := echo.New()
	e.Use(NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, zerolog.Nop()))
	e.Use(NewRedisCache(config.CacheConfig{Enabled: true}, nil, zerolog.Nop()))
	e.GET("/", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestCachePayloadEncoding(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"status":"success"}`))
	require.NoError(t, err)

	status, gotHdr, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", gotHdr.Get("Content-Type"))
	assert.JSONEq(t, `{"status":"success"}`, string(body))

	_, _, _, ok = decodePayload(bs[:5])
	assert.False(t, ok)
}

func TestCacheKeySeparatesPaths(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}
	key := func(path string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, path, nil), httptest.NewRecorder())
		c.SetPath("/api/v1/tours/:id")
		return cacheKeyFrom(cfg, c)
	}
	assert.NotEqual(t, key("/api/v1/tours/a"), key("/api/v1/tours/b"))
	assert.Equal(t, key("/api/v1/tours/a"), key("/api/v1/tours/a"))
	assert.True(t, strings.HasPrefix(key("/x"), "cache:"))
}

func TestCaptureWriterStopsAtLimit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, limit: 4}
	_, _ = cw.Write([]byte("abc"))
	_, _ = cw.Write([]byte("def"))

	assert.True(t, cw.truncated)
	assert.Equal(t, "abcdef", rec.Body.String())
}

func TestMetricsAndRequestLog(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "tours")
	var logs strings.Builder

	e := echo.New()
	e.HTTPErrorHandler = apperror.Handler(true, zerolog.Nop())
	e.Use(RequestLogger(zerolog.New(&logs)), m.Middleware())
	e.GET("/tours/:id", func(c echo.Context) error { return apperror.ErrNotFound })
	e.GET("/metrics", m.Handler())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tours/abc", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, logs.String(), `"status":404`)
	assert.Contains(t, logs.String(), `"path":"/tours/abc"`)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `tours_http_requests_total{method="GET",path="/tours/:id",status="404"} 1`)
}
