package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/iliyamo/tour-booking/internal/apperror"
	"github.com/iliyamo/tour-booking/internal/auth"
	"github.com/iliyamo/tour-booking/internal/handler"
	"github.com/iliyamo/tour-booking/internal/mailer"
	"github.com/iliyamo/tour-booking/internal/middleware"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/repository"
	"github.com/iliyamo/tour-booking/internal/service"
)

type nopMailer struct{}

func (nopMailer) Send(context.Context, mailer.Email) error { return nil }

type api struct {
	e    *echo.Echo
	cols repository.Collections
}

func newAPI(t *testing.T) *api {
	t.Helper()
	cols := repository.NewMemoryCollections()
	creds := auth.NewManager(auth.Options{
		Secret:     "0123456789abcdef0123456789abcdef",
		TokenTTL:   time.Hour,
		BcryptCost: 4,
	})
	svc := service.New(service.Deps{Collections: cols, Credentials: creds, Mailer: nopMailer{}, Log: zerolog.Nop()})

	e := echo.New()
	e.HTTPErrorHandler = apperror.Handler(true, zerolog.Nop())
	Register(e, Deps{
		Auth:     handler.NewAuthHandler(svc.Accounts, "http://localhost"),
		Users:    handler.NewUserHandler(svc.Users, svc.Accounts),
		Tours:    handler.NewTourHandler(svc.Tours),
		Reviews:  handler.NewReviewHandler(svc.Reviews),
		Bookings: handler.NewBookingHandler(svc.Bookings),
		Protect:  middleware.Protect(creds, svc.Accounts),
		Health:   handler.Health(nil),
	})
	return &api{e: e, cols: cols}
}

type reply struct {
	Code int
	Body map[string]any
}

func (a *api) do(t *testing.T, method, path, token, body string) reply {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	r := reply{Code: rec.Code}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r.Body), rec.Body.String())
	}
	return r
}

// signup registers a user, optionally promotes it and returns its id and
// token.
func (a *api) signup(t *testing.T, email string, role model.Role) (string, string) {
	t.Helper()
	r := a.do(t, http.MethodPost, "/api/v1/users/signup", "",
		fmt.Sprintf(`{"name":"Someone","email":%q,"password":"pass1234","passwordConfirm":"pass1234","role":"admin"}`, email))
	require.Equal(t, http.StatusCreated, r.Code, r.Body)
	user := r.Body["data"].(map[string]any)["user"].(map[string]any)
	assert.Equal(t, model.RoleUser, user["role"])
	id := user["id"].(string)
	if role != model.RoleUser {
		oid, err := bson.ObjectIDFromHex(id)
		require.NoError(t, err)
		_, err = a.cols.Users.Update(context.Background(), repository.ByID(oid),
			bson.D{{Key: "$set", Value: bson.D{{Key: "role", Value: role}}}})
		require.NoError(t, err)
	}
	return id, r.Body["token"].(string)
}

func data(t *testing.T, r reply, key string) map[string]any {
	t.Helper()
	d, ok := r.Body["data"].(map[string]any)
	require.True(t, ok, r.Body)
	v, ok := d[key].(map[string]any)
	require.True(t, ok, r.Body)
	return v
}

const tourBody = `{"name":"The Forest Hiker","duration":5,"maxGroupSize":25,"difficulty":"easy",
	"price":397,"summary":"Breathtaking hike","description":"Long","imageCover":"tour-1-cover.jpg"}`

func TestHealthAndUnknownRoute(t *testing.T) {
	a := newAPI(t)
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/healthz", "", "").Code)

	r := a.do(t, http.MethodGet, "/api/v1/nothing-here", "", "")
	assert.Equal(t, http.StatusNotFound, r.Code)
	assert.Equal(t, "fail", r.Body["status"])
	assert.Equal(t, "Can't find /api/v1/nothing-here on this server!", r.Body["message"])
}

func TestTourLifecycle(t *testing.T) {
	a := newAPI(t)
	_, userTok := a.signup(t, "user@example.com", model.RoleUser)
	_, adminTok := a.signup(t, "admin@example.com", model.RoleAdmin)

	assert.Equal(t, http.StatusUnauthorized, a.do(t, http.MethodPost, "/api/v1/tours", "", tourBody).Code)
	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodPost, "/api/v1/tours", userTok, tourBody).Code)

	r := a.do(t, http.MethodPost, "/api/v1/tours", adminTok, tourBody)
	require.Equal(t, http.StatusCreated, r.Code, r.Body)
	tour := data(t, r, "tour")
	id := tour["id"].(string)
	assert.Equal(t, "the-forest-hiker", tour["slug"])

	r = a.do(t, http.MethodPost, "/api/v1/tours", adminTok, tourBody)
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.Contains(t, r.Body["message"], "Duplicate field value")

	r = a.do(t, http.MethodPost, "/api/v1/tours", adminTok, `{"name":"x"}`)
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.NotEmpty(t, r.Body["errors"])

	r = a.do(t, http.MethodGet, "/api/v1/tours?price[lt]=400&fields=name,price", "", "")
	require.Equal(t, http.StatusOK, r.Code)
	assert.EqualValues(t, 1, r.Body["results"])

	r = a.do(t, http.MethodGet, "/api/v1/tours?page=2", "", "")
	assert.Equal(t, http.StatusNotFound, r.Code)

	r = a.do(t, http.MethodGet, "/api/v1/tours?price[regex]=1", "", "")
	assert.Equal(t, http.StatusBadRequest, r.Code)

	r = a.do(t, http.MethodGet, "/api/v1/tours/top-5-cheap", "", "")
	require.Equal(t, http.StatusOK, r.Code)
	list := r.Body["data"].(map[string]any)["tours"].([]any)
	require.Len(t, list, 1)
	assert.NotContains(t, list[0], "description")

	r = a.do(t, http.MethodGet, "/api/v1/tours/tour-stats", "", "")
	require.Equal(t, http.StatusOK, r.Code)

	r = a.do(t, http.MethodGet, "/api/v1/tours/not-an-id", "", "")
	assert.Equal(t, http.StatusBadRequest, r.Code)

	r = a.do(t, http.MethodPatch, "/api/v1/tours/"+id, adminTok, `{"price":297}`)
	require.Equal(t, http.StatusOK, r.Code, r.Body)
	assert.EqualValues(t, 297, data(t, r, "tour")["price"])

	assert.Equal(t, http.StatusNoContent, a.do(t, http.MethodDelete, "/api/v1/tours/"+id, adminTok, "").Code)
	assert.Equal(t, http.StatusNotFound, a.do(t, http.MethodGet, "/api/v1/tours/"+id, "", "").Code)
}

func TestReviewsRequireBooking(t *testing.T) {
	a := newAPI(t)
	userID, userTok := a.signup(t, "user@example.com", model.RoleUser)
	_, otherTok := a.signup(t, "other@example.com", model.RoleUser)
	_, leadTok := a.signup(t, "lead@example.com", model.RoleLeadGuide)

	r := a.do(t, http.MethodPost, "/api/v1/tours", leadTok, tourBody)
	require.Equal(t, http.StatusCreated, r.Code, r.Body)
	tourID := data(t, r, "tour")["id"].(string)
	reviewPath := "/api/v1/tours/" + tourID + "/reviews"

	r = a.do(t, http.MethodPost, reviewPath, userTok, `{"review":"Great","rating":5}`)
	assert.Equal(t, http.StatusForbidden, r.Code)

	r = a.do(t, http.MethodPost, "/api/v1/tours/"+tourID+"/bookings", leadTok, fmt.Sprintf(`{"user":%q}`, userID))
	require.Equal(t, http.StatusCreated, r.Code, r.Body)
	assert.EqualValues(t, 397, data(t, r, "booking")["price"])

	r = a.do(t, http.MethodPost, reviewPath, userTok, `{"review":"Great","rating":5}`)
	require.Equal(t, http.StatusCreated, r.Code, r.Body)
	reviewID := data(t, r, "review")["id"].(string)

	r = a.do(t, http.MethodGet, "/api/v1/tours/"+tourID, "", "")
	require.Equal(t, http.StatusOK, r.Code)
	tour := data(t, r, "tour")
	assert.EqualValues(t, 1, tour["ratingsQuantity"])
	assert.EqualValues(t, 5, tour["ratingsAverage"])
	assert.Len(t, tour["reviews"], 1)

	r = a.do(t, http.MethodGet, reviewPath, "", "")
	require.Equal(t, http.StatusOK, r.Code)
	assert.EqualValues(t, 1, r.Body["results"])

	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodPatch, "/api/v1/reviews/"+reviewID, otherTok, `{"rating":1}`).Code)
	r = a.do(t, http.MethodPatch, "/api/v1/reviews/"+reviewID, userTok, `{"rating":3}`)
	require.Equal(t, http.StatusOK, r.Code, r.Body)
	assert.Equal(t, http.StatusNoContent, a.do(t, http.MethodDelete, "/api/v1/reviews/"+reviewID, userTok, "").Code)

	r = a.do(t, http.MethodGet, "/api/v1/tours/"+tourID, "", "")
	assert.EqualValues(t, 0, data(t, r, "tour")["ratingsQuantity"])
	assert.EqualValues(t, 4.5, data(t, r, "tour")["ratingsAverage"])
}

func TestAccountRoutes(t *testing.T) {
	a := newAPI(t)
	_, tok := a.signup(t, "ann@example.com", model.RoleUser)
	_, adminTok := a.signup(t, "admin@example.com", model.RoleAdmin)

	r := a.do(t, http.MethodPost, "/api/v1/users/login", "", `{"email":"ann@example.com","password":"nope-nope"}`)
	assert.Equal(t, http.StatusUnauthorized, r.Code)
	assert.Equal(t, "Incorrect email or password", r.Body["message"])

	r = a.do(t, http.MethodGet, "/api/v1/users/me", tok, "")
	require.Equal(t, http.StatusOK, r.Code)
	me := data(t, r, "user")
	assert.Equal(t, "ann@example.com", me["email"])
	assert.NotContains(t, me, "password")

	r = a.do(t, http.MethodPatch, "/api/v1/users/updateMe", tok, `{"password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, r.Code)

	assert.Equal(t, http.StatusForbidden, a.do(t, http.MethodGet, "/api/v1/users", tok, "").Code)
	r = a.do(t, http.MethodGet, "/api/v1/users", adminTok, "")
	require.Equal(t, http.StatusOK, r.Code)
	assert.EqualValues(t, 2, r.Body["results"])
	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodGet, "/api/v1/users?password[gte]=$2a$04$", adminTok, "").Code)
	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodGet, "/api/v1/users?sort=password", adminTok, "").Code)
	assert.Equal(t, http.StatusBadRequest, a.do(t, http.MethodPost, "/api/v1/users", adminTok, "{}").Code)

	time.Sleep(20 * time.Millisecond)
	r = a.do(t, http.MethodPatch, "/api/v1/users/updateMyPassword", tok,
		`{"passwordCurrent":"pass1234","password":"newpass123","passwordConfirm":"newpass123"}`)
	require.Equal(t, http.StatusOK, r.Code, r.Body)
	fresh := r.Body["token"].(string)

	r = a.do(t, http.MethodGet, "/api/v1/users/me", tok, "")
	assert.Equal(t, http.StatusUnauthorized, r.Code)
	assert.Equal(t, apperror.ErrStaleToken.Message, r.Body["message"])
	assert.Equal(t, http.StatusOK, a.do(t, http.MethodGet, "/api/v1/users/me", fresh, "").Code)

	assert.Equal(t, http.StatusNoContent, a.do(t, http.MethodDelete, "/api/v1/users/deleteMe", fresh, "").Code)
	r = a.do(t, http.MethodGet, "/api/v1/users/me", fresh, "")
	assert.Equal(t, http.StatusUnauthorized, r.Code)
	assert.Equal(t, apperror.ErrIdentityGone.Message, r.Body["message"])
}

func TestReviewCannotMoveToUnbookedTour(t *testing.T) {
	a := newAPI(t)
	userID, userTok := a.signup(t, "user@example.com", model.RoleUser)
	_, leadTok := a.signup(t, "lead@example.com", model.RoleLeadGuide)

	r := a.do(t, http.MethodPost, "/api/v1/tours", leadTok, tourBody)
	require.Equal(t, http.StatusCreated, r.Code, r.Body)
	booked := data(t, r, "tour")["id"].(string)
	r = a.do(t, http.MethodPost, "/api/v1/tours", leadTok, strings.Replace(tourBody, "The Forest Hiker", "The Sea Explorer", 1))
	require.Equal(t, http.StatusCreated, r.Code, r.Body)
	other := data(t, r, "tour")["id"].(string)

	r = a.do(t, http.MethodPost, "/api/v1/tours/"+booked+"/bookings", leadTok, fmt.Sprintf(`{"user":%q}`, userID))
	require.Equal(t, http.StatusCreated, r.Code, r.Body)
	r = a.do(t, http.MethodPost, "/api/v1/tours/"+booked+"/reviews", userTok, `{"review":"Great","rating":1}`)
	require.Equal(t, http.StatusCreated, r.Code, r.Body)
	reviewID := data(t, r, "review")["id"].(string)

	r = a.do(t, http.MethodPatch, "/api/v1/reviews/"+reviewID, userTok, fmt.Sprintf(`{"tour":%q}`, other))
	assert.Equal(t, http.StatusForbidden, r.Code)
	assert.Equal(t, "You can only review tours you have booked", r.Body["message"])

	r = a.do(t, http.MethodGet, "/api/v1/tours/"+other, "", "")
	require.Equal(t, http.StatusOK, r.Code)
	assert.EqualValues(t, 0, data(t, r, "tour")["ratingsQuantity"])
	r = a.do(t, http.MethodGet, "/api/v1/tours/"+booked, "", "")
	assert.EqualValues(t, 1, data(t, r, "tour")["ratingsQuantity"])
}

func TestReviewCreateRejectsMalformedTour(t *testing.T) {
	a := newAPI(t)
	_, userTok := a.signup(t, "user@example.com", model.RoleUser)

	r := a.do(t, http.MethodPost, "/api/v1/reviews", userTok, `{"review":"Great","rating":5,"tour":"not-an-id"}`)
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.Equal(t, "Invalid tour in request body", r.Body["message"])
}
