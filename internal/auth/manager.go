// Package auth is the credential manager: password hashing, session tokens,
// password reset tokens and the password-rotation check that invalidates
// older sessions.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/tour-booking/internal/apperror"
	"github.com/iliyamo/tour-booking/internal/model"
)

// Precision is the resolution at which token issue times and password
// change stamps are compared.  It matches the resolution of stored dates.
const Precision = time.Millisecond

// Options configures a Manager.  Secret signs every session token and is
// never embedded in code.
type Options struct {
	Secret        string
	TokenTTL      time.Duration
	BcryptCost    int
	ResetTokenTTL time.Duration
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Manager issues and checks credentials.  It is safe for concurrent use.
type Manager struct {
	secret   []byte
	ttl      time.Duration
	cost     int
	resetTTL time.Duration
	now      func() time.Time
}

func NewManager(o Options) *Manager {
	now := o.Now
	if now == nil {
		now = time.Now
	}
	cost := o.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	resetTTL := o.ResetTokenTTL
	if resetTTL <= 0 {
		resetTTL = 10 * time.Minute
	}
	return &Manager{secret: []byte(o.Secret), ttl: o.TokenTTL, cost: cost, resetTTL: resetTTL, now: now}
}

// Now returns the manager's clock reading in UTC.
func (m *Manager) Now() time.Time { return m.now().UTC() }

// HashPassword returns a salted bcrypt hash of plain.
func (m *Manager) HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), m.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword compares plain against hash with bcrypt's constant-time
// comparison.
func (m *Manager) VerifyPassword(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// Token is a signed session token and its expiry.
type Token struct {
	Raw     string
	Expires time.Time
}

// Claims are the verified contents of a session token.
type Claims struct {
	UserID   bson.ObjectID
	IssuedAt time.Time
}

// sessionClaims carries the issue time twice: iat in whole seconds for
// standard validation and iat_ms for the password rotation check.
type sessionClaims struct {
	jwt.RegisteredClaims
	IssuedAtMs int64 `json:"iat_ms"`
}

// IssueToken signs an HS256 token with sub = id, iat = now and
// exp = now + TokenTTL.
func (m *Manager) IssueToken(id bson.ObjectID) (Token, error) {
	now := m.Now()
	exp := now.Add(m.ttl)
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Hex(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		IssuedAtMs: now.UnixMilli(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return Token{}, err
	}
	return Token{Raw: signed, Expires: exp}, nil
}

// VerifyToken checks signature, algorithm and expiry and returns the
// embedded identity.  Every failure is ErrInvalidToken.
func (m *Manager) VerifyToken(raw string) (Claims, error) {
	var sc sessionClaims
	_, err := jwt.ParseWithClaims(raw, &sc, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Claims{}, apperror.Wrap(apperror.KindInvalidToken, apperror.ErrInvalidToken.Message, err)
	}
	id, err := bson.ObjectIDFromHex(sc.Subject)
	if err != nil || sc.IssuedAt == nil || sc.IssuedAtMs/1000 != sc.IssuedAt.Unix() {
		return Claims{}, apperror.Wrap(apperror.KindInvalidToken, apperror.ErrInvalidToken.Message, errors.New("malformed subject or issue time"))
	}
	return Claims{UserID: id, IssuedAt: time.UnixMilli(sc.IssuedAtMs).UTC()}, nil
}

// WasPasswordChangedAfter reports whether u rotated its password strictly
// after t, comparing both at Precision.
func (m *Manager) WasPasswordChangedAfter(u *model.User, t time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.Truncate(Precision).After(t.Truncate(Precision))
}

// SetPassword hashes plain into u.  Callers invoke it only when the write
// actually carries a new password.  For an existing identity the change
// time is stamped; a token issued afterwards, even in the same
// millisecond, stays valid.  Any pending reset token is dropped.
func (m *Manager) SetPassword(u *model.User, plain string, isNew bool) error {
	hash, err := m.HashPassword(plain)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = hash
	u.PasswordResetToken = ""
	u.PasswordResetExpires = nil
	if !isNew {
		changed := m.ChangeTime()
		u.PasswordChangedAt = &changed
	}
	return nil
}

// ChangeTime is the PasswordChangedAt stamp for a change made now.
func (m *Manager) ChangeTime() time.Time { return m.Now().Truncate(Precision) }

// ResetToken is a freshly issued password reset token.  Plain goes to the
// user; only Hash and Expires are stored.
type ResetToken struct {
	Plain   string
	Hash    string
	Expires time.Time
}

// NewResetToken draws 32 random bytes for a reset token valid for the
// configured TTL.
func (m *Manager) NewResetToken() (ResetToken, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return ResetToken{}, err
	}
	plain := hex.EncodeToString(buf)
	return ResetToken{
		Plain:   plain,
		Hash:    HashResetToken(plain),
		Expires: m.Now().Add(m.resetTTL),
	}, nil
}

// HashResetToken returns the SHA-256 hex digest under which a reset token
// is stored.
func HashResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
