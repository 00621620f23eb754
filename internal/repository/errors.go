// Package repository defines the document collections the services work
// against.  Two implementations exist: MongoCollection talks to MongoDB and
// MemoryCollection keeps documents in process for tests and local runs.
// Both report failures with the sentinel values below so higher layers can
// tell a missing document from a uniqueness violation.
package repository

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when no document matches an id or filter.
var ErrNotFound = errors.New("document not found")

// ErrDuplicate is returned when a write would violate a unique index.
// The concrete error is a *DuplicateError naming the field when known.
var ErrDuplicate = errors.New("duplicate key")

// DuplicateError carries the offending field and value of a unique index
// violation.  It matches ErrDuplicate with errors.Is.
type DuplicateError struct {
	Field string
	Value any
}

func (e *DuplicateError) Error() string {
	if e.Field == "" {
		return ErrDuplicate.Error()
	}
	return fmt.Sprintf("duplicate key: %s: %v", e.Field, e.Value)
}

func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }
