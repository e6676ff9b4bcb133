// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalid indicates malformed or out-of-range input, detected before
	// any mutation.
	ErrInvalid = errors.New("invalid request")

	// ErrForbidden indicates failed authentication. It carries no detail on
	// purpose; callers must not learn which check failed.
	ErrForbidden = errors.New("forbidden")

	// ErrAlreadyExists indicates a unique constraint violation.
	ErrAlreadyExists = errors.New("already exists")

	// ErrDeviceConflict indicates an identity is already enrolled from a
	// different device.
	ErrDeviceConflict = errors.New("device conflict")

	// ErrDuplicateNonce indicates a nonce value has been seen before.
	ErrDuplicateNonce = errors.New("nonce already used")
)
