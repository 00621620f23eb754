package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/iliyamo/tour-booking/internal/apperror"
	"github.com/iliyamo/tour-booking/internal/auth"
	"github.com/iliyamo/tour-booking/internal/mailer"
	"github.com/iliyamo/tour-booking/internal/model"
	"github.com/iliyamo/tour-booking/internal/repository"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// SignupInput is the payload of a signup.  Any role sent by the client is
// ignored; new identities always start as users.
type SignupInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Photo           string `json:"photo"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// PasswordInput carries a new password and its confirmation.  Current is
// only read by UpdatePassword.
type PasswordInput struct {
	Current         string `json:"passwordCurrent"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

// Session is a freshly issued token and the identity it belongs to.
type Session struct {
	Token auth.Token
	User  *model.User
}

// Accounts owns the credential lifecycle: signup, login, password reset
// and rotation, profile self-service.
type Accounts struct {
	users *Users
	repo  *repository.UserRepo
	creds *auth.Manager
	mail  mailer.Mailer
	log   zerolog.Logger
}

func NewAccounts(users *Users, repo *repository.UserRepo, creds *auth.Manager, mail mailer.Mailer, log zerolog.Logger) *Accounts {
	return &Accounts{users: users, repo: repo, creds: creds, mail: mail, log: log}
}

func passwordViolations(password, confirm string) []string {
	var msgs []string
	switch {
	case password == "":
		msgs = append(msgs, "Please provide a password")
	case len(password) < MinPasswordLength:
		msgs = append(msgs, fmt.Sprintf("password must be at least %d characters in length", MinPasswordLength))
	}
	if password != confirm {
		msgs = append(msgs, "Passwords are not the same!")
	}
	return msgs
}

func (a *Accounts) session(u *model.User) (*Session, error) {
	tok, err := a.creds.IssueToken(u.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Token: tok, User: u}, nil
}

// Signup creates an identity and logs it in.  Every violation, password
// ones included, is reported at once.
func (a *Accounts) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	u := &model.User{
		Name:  strings.TrimSpace(in.Name),
		Email: repository.NormalizeEmail(in.Email),
		Photo: in.Photo,
		Role:  model.RoleUser,
	}
	if u.Photo == "" {
		u.Photo = model.DefaultPhoto
	}
	msgs, err := a.users.Violations(ctx, u)
	if err != nil {
		return nil, err
	}
	msgs = append(msgs, passwordViolations(in.Password, in.PasswordConfirm)...)
	if len(msgs) > 0 {
		return nil, apperror.Validation(msgs)
	}
	if err := a.creds.SetPassword(u, in.Password, true); err != nil {
		return nil, err
	}
	if err := a.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return a.session(u)
}

// Login checks an email and password pair.  An unknown email and a wrong
// password fail the same way.
func (a *Accounts) Login(ctx context.Context, email, password string) (*Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, apperror.New(apperror.KindBadRequest, "Please provide email and password!")
	}
	u, err := a.repo.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !a.creds.VerifyPassword(password, u.PasswordHash) {
		return nil, apperror.ErrInvalidCredentials
	}
	return a.session(u)
}

// Resolve loads the active identity a session token points at.
func (a *Accounts) Resolve(ctx context.Context, id bson.ObjectID) (*model.User, error) {
	return a.repo.GetByID(ctx, id)
}

// ForgotPassword issues a reset token and mails a link built on baseURL.
// When the mail cannot be delivered the token is withdrawn again.
func (a *Accounts) ForgotPassword(ctx context.Context, email, baseURL string) error {
	u, err := a.repo.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.New(apperror.KindNotFound, "There is no user with that email address.")
	}
	if err != nil {
		return err
	}
	tok, err := a.creds.NewResetToken()
	if err != nil {
		return err
	}
	if err := a.repo.SetResetToken(ctx, u.ID, tok.Hash, tok.Expires); err != nil {
		return err
	}

	link := strings.TrimRight(baseURL, "/") + "/api/v1/users/resetPassword/" + tok.Plain
	err = a.mail.Send(ctx, mailer.Email{
		To:      []string{u.Email},
		Subject: "Your password reset token (valid for 10 min)",
		Body: "Forgot your password? Submit a PATCH request with your new password and passwordConfirm to: " +
			link + "\nIf you didn't forget your password, please ignore this email!",
	})
	if err == nil {
		return nil
	}
	a.log.Error().Err(err).Str("user", u.ID.Hex()).Msg("send reset email")
	if cerr := a.repo.ClearResetToken(ctx, u.ID); cerr != nil {
		a.log.Error().Err(cerr).Str("user", u.ID.Hex()).Msg("withdraw reset token")
	}
	return apperror.Wrap(apperror.KindDeliveryError, apperror.ErrDeliveryError.Message, err)
}

// ResetPassword redeems a reset token.  The new password is checked first,
// so a rejected password leaves the token usable.
func (a *Accounts) ResetPassword(ctx context.Context, plain string, in PasswordInput) (*Session, error) {
	if msgs := passwordViolations(in.Password, in.PasswordConfirm); len(msgs) > 0 {
		return nil, apperror.Validation(msgs)
	}
	hash, err := a.creds.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	now := a.creds.Now()
	id, err := a.repo.ConsumeResetToken(ctx, auth.HashResetToken(plain), hash, a.creds.ChangeTime(), now)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.ErrTokenInvalidOrExpired
	}
	if err != nil {
		return nil, err
	}
	u, err := a.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.session(u)
}

// UpdatePassword rotates the password of a logged-in identity after
// re-checking the current one.  Older session tokens become stale.
func (a *Accounts) UpdatePassword(ctx context.Context, id bson.ObjectID, in PasswordInput) (*Session, error) {
	u, err := a.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.ErrIdentityGone
	}
	if err != nil {
		return nil, err
	}
	if !a.creds.VerifyPassword(in.Current, u.PasswordHash) {
		return nil, apperror.New(apperror.KindInvalidCredentials, "Your current password is wrong.")
	}
	if msgs := passwordViolations(in.Password, in.PasswordConfirm); len(msgs) > 0 {
		return nil, apperror.Validation(msgs)
	}
	if err := a.creds.SetPassword(u, in.Password, false); err != nil {
		return nil, err
	}
	if err := a.repo.SetPassword(ctx, u.ID, u.PasswordHash, *u.PasswordChangedAt); err != nil {
		return nil, err
	}
	return a.session(u)
}

var selfEditable = []string{"name", "email", "photo"}

// UpdateMe lets an identity change its own name, email and photo.
// Password fields are refused and anything else is dropped.
func (a *Accounts) UpdateMe(ctx context.Context, id bson.ObjectID, payload []byte) (*model.User, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, apperror.Wrap(apperror.KindBadRequest, "Request body must be a JSON object", err)
	}
	if _, ok := fields["password"]; ok {
		return nil, apperror.New(apperror.KindBadRequest, "This route is not for password updates. Please use /updateMyPassword.")
	}
	if _, ok := fields["passwordConfirm"]; ok {
		return nil, apperror.New(apperror.KindBadRequest, "This route is not for password updates. Please use /updateMyPassword.")
	}
	kept := map[string]json.RawMessage{}
	for _, k := range selfEditable {
		if v, ok := fields[k]; ok {
			kept[k] = v
		}
	}
	patch, err := json.Marshal(kept)
	if err != nil {
		return nil, err
	}
	if _, err := a.users.UpdateOne(ctx, id, patch); err != nil {
		return nil, err
	}
	return a.users.GetOne(ctx, id, false)
}

// DeleteMe deactivates the identity; it disappears from every read.
func (a *Accounts) DeleteMe(ctx context.Context, id bson.ObjectID) error {
	err := a.repo.Deactivate(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.ErrIdentityGone
	}
	return err
}
