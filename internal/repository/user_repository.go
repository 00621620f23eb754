package repository

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/iliyamo/tour-booking/internal/model"
)

// ActiveUsers is the base filter hiding soft-deleted identities.
var ActiveUsers = bson.D{{Key: "active", Value: bson.D{{Key: "$ne", Value: false}}}}

// UserRepo holds the identity lookups and the conditional writes of the
// credential lifecycle on top of a user collection.
type UserRepo struct{ Col Collection[model.User] }

func NewUserRepo(col Collection[model.User]) *UserRepo { return &UserRepo{Col: col} }

// NormalizeEmail lower-cases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GetByEmail fetches an active user by normalized email, credentials
// included.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.Col.FindOne(ctx, And(ActiveUsers, bson.D{{Key: "email", Value: NormalizeEmail(email)}}), nil)
}

// GetByID fetches an active user by id, credentials included.
func (r *UserRepo) GetByID(ctx context.Context, id bson.ObjectID) (*model.User, error) {
	return r.Col.FindOne(ctx, And(ActiveUsers, ByID(id)), nil)
}

// SetResetToken stores the hash and expiry of a freshly issued reset token.
func (r *UserRepo) SetResetToken(ctx context.Context, id bson.ObjectID, hash string, expires time.Time) error {
	return r.updateByID(ctx, id, bson.D{{Key: "$set", Value: bson.D{
		{Key: "passwordResetToken", Value: hash},
		{Key: "passwordResetExpires", Value: expires},
	}}})
}

// ClearResetToken removes any pending reset token.
func (r *UserRepo) ClearResetToken(ctx context.Context, id bson.ObjectID) error {
	return r.updateByID(ctx, id, bson.D{{Key: "$unset", Value: bson.D{
		{Key: "passwordResetToken", Value: ""},
		{Key: "passwordResetExpires", Value: ""},
	}}})
}

// ConsumeResetToken sets a new password hash on the active user holding an
// unexpired token with the given hash and clears the token in the same
// write.  Since the token hash is part of the filter, concurrent calls with
// the same token can succeed at most once; the losers get ErrNotFound.
func (r *UserRepo) ConsumeResetToken(ctx context.Context, hash, passwordHash string, changedAt, now time.Time) (bson.ObjectID, error) {
	filter := And(ActiveUsers, bson.D{
		{Key: "passwordResetToken", Value: hash},
		{Key: "passwordResetExpires", Value: bson.D{{Key: "$gt", Value: now}}},
	})
	holder, err := r.Col.FindOne(ctx, filter, bson.D{{Key: "_id", Value: 1}})
	if err != nil {
		return bson.ObjectID{}, err
	}
	n, err := r.Col.Update(ctx, And(filter, ByID(holder.ID)), bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "password", Value: passwordHash},
			{Key: "passwordChangedAt", Value: changedAt},
		}},
		{Key: "$unset", Value: bson.D{
			{Key: "passwordResetToken", Value: ""},
			{Key: "passwordResetExpires", Value: ""},
		}},
	})
	if err != nil {
		return bson.ObjectID{}, err
	}
	if n == 0 {
		return bson.ObjectID{}, ErrNotFound
	}
	return holder.ID, nil
}

// SetPassword stores a new hash and change time and drops any reset token.
func (r *UserRepo) SetPassword(ctx context.Context, id bson.ObjectID, passwordHash string, changedAt time.Time) error {
	return r.updateByID(ctx, id, bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "password", Value: passwordHash},
			{Key: "passwordChangedAt", Value: changedAt},
		}},
		{Key: "$unset", Value: bson.D{
			{Key: "passwordResetToken", Value: ""},
			{Key: "passwordResetExpires", Value: ""},
		}},
	})
}

// Deactivate soft-deletes a user.
func (r *UserRepo) Deactivate(ctx context.Context, id bson.ObjectID) error {
	return r.updateByID(ctx, id, bson.D{{Key: "$set", Value: bson.D{{Key: "active", Value: false}}}})
}

func (r *UserRepo) updateByID(ctx context.Context, id bson.ObjectID, update bson.D) error {
	n, err := r.Col.Update(ctx, And(ActiveUsers, ByID(id)), update)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
