// Package apperror defines the error taxonomy shared by every layer of the
// API.  Operational errors carry a Kind and an HTTP status and are safe to
// describe to the client; anything else reaching the boundary is treated as
// a programming error.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind names a class of failure.
type Kind string

const (
	KindValidationFailed      Kind = "ValidationFailed"
	KindDuplicateKey          Kind = "DuplicateKey"
	KindInvalidID             Kind = "InvalidID"
	KindBadRequest            Kind = "BadRequest"
	KindNotFound              Kind = "NotFound"
	KindUnauthenticated       Kind = "Unauthenticated"
	KindInvalidToken          Kind = "InvalidToken"
	KindIdentityGone          Kind = "IdentityGone"
	KindStaleToken            Kind = "StaleToken"
	KindInvalidCredentials    Kind = "InvalidCredentials"
	KindForbidden             Kind = "Forbidden"
	KindPageOutOfRange        Kind = "PageOutOfRange"
	KindTokenInvalidOrExpired Kind = "TokenInvalidOrExpired"
	KindDeliveryError         Kind = "DeliveryError"
	KindTooManyRequests       Kind = "TooManyRequests"
	KindInternal              Kind = "InternalError"
)

var statusByKind = map[Kind]int{
	KindValidationFailed:      http.StatusBadRequest,
	KindDuplicateKey:          http.StatusBadRequest,
	KindInvalidID:             http.StatusBadRequest,
	KindBadRequest:            http.StatusBadRequest,
	KindNotFound:              http.StatusNotFound,
	KindUnauthenticated:       http.StatusUnauthorized,
	KindInvalidToken:          http.StatusUnauthorized,
	KindIdentityGone:          http.StatusUnauthorized,
	KindStaleToken:            http.StatusUnauthorized,
	KindInvalidCredentials:    http.StatusUnauthorized,
	KindForbidden:             http.StatusForbidden,
	KindPageOutOfRange:        http.StatusNotFound,
	KindTokenInvalidOrExpired: http.StatusBadRequest,
	KindDeliveryError:         http.StatusInternalServerError,
	KindTooManyRequests:       http.StatusTooManyRequests,
	KindInternal:              http.StatusInternalServerError,
}

// Error is an operational failure.  Details holds one message per violated
// field for ValidationFailed; Err is the optional underlying cause.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so sentinels below work with
// errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidationFailed      = New(KindValidationFailed, "invalid input data")
	ErrDuplicateKey          = New(KindDuplicateKey, "duplicate field value")
	ErrInvalidID             = New(KindInvalidID, "invalid id")
	ErrBadRequest            = New(KindBadRequest, "bad request")
	ErrNotFound              = New(KindNotFound, "no document found with that ID")
	ErrUnauthenticated       = New(KindUnauthenticated, "You are not logged in! Please log in to get access.")
	ErrInvalidToken          = New(KindInvalidToken, "Invalid token. Please log in again!")
	ErrIdentityGone          = New(KindIdentityGone, "The user belonging to this token does no longer exist.")
	ErrStaleToken            = New(KindStaleToken, "User recently changed password! Please log in again.")
	ErrInvalidCredentials    = New(KindInvalidCredentials, "Incorrect email or password")
	ErrForbidden             = New(KindForbidden, "You do not have permission to perform this action")
	ErrPageOutOfRange        = New(KindPageOutOfRange, "This page does not exist")
	ErrTokenInvalidOrExpired = New(KindTokenInvalidOrExpired, "Token is invalid or has expired")
	ErrDeliveryError         = New(KindDeliveryError, "There was an error sending the email. Try again later!")
	ErrTooManyRequests       = New(KindTooManyRequests, "Too many requests from this IP, please try again in an hour!")
	ErrInternal              = New(KindInternal, "Something went very wrong!")
)

// New builds an operational error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Status: StatusOf(kind), Message: msg}
}

// Newf is New with formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap attaches a cause to a new operational error.
func Wrap(kind Kind, msg string, err error) *Error {
	e := New(kind, msg)
	e.Err = err
	return e
}

// Validation aggregates field violations into a single ValidationFailed.
func Validation(details []string) *Error {
	e := New(KindValidationFailed, "Invalid input data. "+strings.Join(details, ". "))
	e.Details = details
	return e
}

// StatusOf maps a kind to its HTTP status; unknown kinds are 500.
func StatusOf(kind Kind) int {
	if s, ok := statusByKind[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// As returns the operational error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf reports the kind of err, or KindInternal for non-operational errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}
