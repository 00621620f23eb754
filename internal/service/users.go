package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/repository"
)

// Users is the administrative user resource.  Credentials are owned by
// Accounts; this resource can neither read nor write them.
type Users struct {
	*Factory[model.User, *model.User]
}

func NewUsers(col repository.Collection[model.User], val *Validator, now func() time.Time, log zerolog.Logger) *Users {
	return &Users{Factory: NewFactory[model.User](Definition[model.User]{
		Name:       "user",
		Log:        log,
		Collection: col,
		Base:       repository.ActiveUsers,
		Hidden:     model.UserHiddenFields,
		Protected: []string{
			"password", "passwordConfirm", "passwordChangedAt",
			"passwordResetToken", "passwordResetExpires", "active", "createdAt",
		},
		Sort: "name",
		BeforeSave: []Mutator[model.User]{
			func(_ context.Context, u *model.User, isNew bool) error {
				u.Name = strings.TrimSpace(u.Name)
				u.Email = repository.NormalizeEmail(u.Email)
				if u.Photo == "" {
					u.Photo = model.DefaultPhoto
				}
				if u.Role == "" {
					u.Role = model.RoleUser
				}
				if isNew {
					u.Active = true
					u.CreatedAt = now().UTC()
				}
				return nil
			},
		},
	}, val)}
}
