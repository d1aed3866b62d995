// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates a missing, malformed, expired or revoked session
	// token, or bad credentials at login.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRevoked indicates a session token that was logged out. It matches ErrUnauthorized.
	ErrRevoked = fmt.Errorf("%w: token has been invalidated", ErrUnauthorized)

	// ErrUnauthorizedRole indicates the user has no recognised access label.
	ErrUnauthorizedRole = errors.New("unauthorized role")

	// ErrAccessDenied indicates an authenticated user may not see the document.
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalidOrExpired indicates a resource token failed signature or expiry checks.
	ErrInvalidOrExpired = errors.New("invalid or expired resource token")

	// ErrNoLongerValid indicates a resource token is not in the active registry
	// (already used, revoked by logout, or being fetched concurrently).
	ErrNoLongerValid = errors.New("resource token no longer valid")

	// ErrNotFoundOrDenied indicates the document row or its payload is absent for the caller.
	ErrNotFoundOrDenied = errors.New("document not found or access denied")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")
)
