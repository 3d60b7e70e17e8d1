// Package domain provides shared domain-level sentinel errors.
package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists indicates an attempt to create an entity that exists.
var ErrAlreadyExists = errors.New("already exists")

// ErrValidation indicates a command failed input or business-rule validation.
var ErrValidation = errors.New("validation failed")

// ErrUnauthorized indicates the caller lacks valid credentials or permission.
var ErrUnauthorized = errors.New("unauthorized")

// ErrSerialization indicates an event payload could not be encoded.
var ErrSerialization = errors.New("serialization failed")

// ErrDeserialization indicates an event payload could not be decoded.
var ErrDeserialization = errors.New("deserialization failed")

// ConcurrencyError indicates an optimistic concurrency conflict: the
// aggregate was modified between load and save.
type ConcurrencyError struct {
	Expected uint64
	Actual   uint64
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("concurrency conflict: expected version %d, found %d", e.Expected, e.Actual)
}

// IsConcurrency reports whether err is (or wraps) a ConcurrencyError.
func IsConcurrency(err error) bool {
	var ce *ConcurrencyError
	return errors.As(err, &ce)
}
