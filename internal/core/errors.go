package core

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state transition")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnavailable marks transient storage failures. Callers may retry;
	// the issuance unit is atomic, so a retry can never duplicate writes.
	ErrUnavailable = errors.New("storage unavailable")
)
