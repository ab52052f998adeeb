// Package apperr holds sentinel errors shared across packages.
package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	// ErrHost marks failures reported by, or while reaching, the host API.
	ErrHost = errors.New("host api")
)
