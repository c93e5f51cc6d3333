// Package common defines shared sentinel errors and small helpers used across
// MediSoft server layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound             = errors.New("not found")
	ErrStoreCorrupt           = errors.New("user store is corrupt")
	ErrConcurrentModification = errors.New("user store was modified concurrently")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Account errors.
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrDuplicateID        = errors.New("user id already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrValidation         = errors.New("validation error")

	// Session token errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Upload errors.
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrFileTooLarge    = errors.New("file too large")
)
