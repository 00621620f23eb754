// Package middleware holds the echo middleware of the API: the access
// control gate, rate limiting, response caching, metrics and request
// logging.
package middleware

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/iliyamo/tour-booking/internal/apperror"
	"github.com/iliyamo/tour-booking/internal/auth"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/repository"
)

// identityKey is the echo context key of the resolved identity.
const identityKey = "identity"

// TokenVerifier checks session tokens and password rotation.
type TokenVerifier interface {
	VerifyToken(raw string) (auth.Claims, error)
	WasPasswordChangedAfter(u *model.User, t time.Time) bool
}

// IdentityResolver loads the active identity with the given id.  It
// returns repository.ErrNotFound when there is none.
type IdentityResolver interface {
	Resolve(ctx context.Context, id bson.ObjectID) (*model.User, error)
}

// Protect admits a request only with a valid bearer session token whose
// identity still exists and has not rotated its password since the token
// was issued.  The identity is stored on the echo context and on the
// request context.
func Protect(tokens TokenVerifier, identities IdentityResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return apperror.ErrUnauthenticated
			}
			claims, err := tokens.VerifyToken(raw)
			if err != nil {
				return err
			}
			ctx := c.Request().Context()
			u, err := identities.Resolve(ctx, claims.UserID)
			if errors.Is(err, repository.ErrNotFound) {
				return apperror.ErrIdentityGone
			}
			if err != nil {
				return err
			}
			if tokens.WasPasswordChangedAfter(u, claims.IssuedAt) {
				return apperror.ErrStaleToken
			}
			c.Set(identityKey, u)
			c.SetRequest(c.Request().WithContext(auth.WithIdentity(ctx, u)))
			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	scheme, raw, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

// RestrictTo admits only identities holding one of roles.  It must run
// after Protect.
func RestrictTo(roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u, ok := CurrentUser(c)
			if !ok {
				return apperror.ErrUnauthenticated
			}
			if !slices.Contains(roles, u.Role) {
				return apperror.ErrForbidden
			}
			return next(c)
		}
	}
}

// CurrentUser returns the identity admitted by Protect.
func CurrentUser(c echo.Context) (*model.User, bool) {
	u, ok := c.Get(identityKey).(*model.User)
	return u, ok && u != nil
}

// currentUserID is the hex id of the admitted identity or "anon".
func currentUserID(c echo.Context) string {
	if u, ok := CurrentUser(c); ok {
		return u.ID.Hex()
	}
	return "anon"
}
