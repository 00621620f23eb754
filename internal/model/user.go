package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Role is the authorization level of an identity.
type Role = string

const (
	RoleUser      Role = "user"
	RoleGuide     Role = "guide"
	RoleLeadGuide Role = "lead-guide"
	RoleAdmin     Role = "admin"
)

// DefaultPhoto is assigned to identities that never uploaded one.
const DefaultPhoto = "default.jpg"

// User is an authenticated principal.
//
// The credential fields never leave the server: they carry json:"-" and the
// user definition also excludes them from query projections.  Active is a
// soft-delete marker; reads filter out documents where it is false.
type User struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id,omitzero"`
	Name      string        `bson:"name,omitempty" json:"name,omitempty" validate:"required"`
	Email     string        `bson:"email,omitempty" json:"email,omitempty" validate:"required,email"`
	Photo     string        `bson:"photo,omitempty" json:"photo,omitempty"`
	Role      Role          `bson:"role,omitempty" json:"role,omitempty" validate:"required,oneof=user guide lead-guide admin"`
	Active    bool          `bson:"active" json:"-"`
	CreatedAt time.Time     `bson:"createdAt,omitempty" json:"createdAt,omitzero"`

	PasswordHash         string     `bson:"password,omitempty" json:"-"`
	PasswordChangedAt    *time.Time `bson:"passwordChangedAt,omitempty" json:"-"`
	PasswordResetToken   string     `bson:"passwordResetToken,omitempty" json:"-"`
	PasswordResetExpires *time.Time `bson:"passwordResetExpires,omitempty" json:"-"`
}

func (u *User) GetID() bson.ObjectID   { return u.ID }
func (u *User) SetID(id bson.ObjectID) { u.ID = id }

// UserHiddenFields are excluded from every projection unless asked for.
var UserHiddenFields = []string{"password", "passwordChangedAt", "passwordResetToken", "passwordResetExpires", "active"}
