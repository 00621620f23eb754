package auth

import (
	"context"

	"github.com/iliyamo/tour-booking/internal/model"
)

type identityKey struct{}

// WithIdentity returns a context carrying the authenticated user.
func WithIdentity(ctx context.Context, u *model.User) context.Context {
	return context.WithValue(ctx, identityKey{}, u)
}

// IdentityFrom returns the authenticated user stored in ctx, if any.
func IdentityFrom(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(identityKey{}).(*model.User)
	return u, ok && u != nil
}
