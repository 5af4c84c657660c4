// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service/relay layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication (bad token or credentials).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the user lacks rights for the operation (not admin).
	ErrForbidden = errors.New("forbidden")

	// ErrNotMember indicates the user is not a member of the target room.
	ErrNotMember = errors.New("not a room member")

	// ErrAlreadyExists indicates a unique constraint violation (email or slug taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")
)
