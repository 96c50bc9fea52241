// Package auth provides JWT bearer authentication for the Casebook API.
package auth

import "errors"

// Authentication errors.
var (
	// ErrMissingAuthorizationHeader indicates no Authorization header was sent.
	ErrMissingAuthorizationHeader = errors.New("missing authorization header")

	// ErrInvalidAuthorizationHeader indicates the Authorization header is malformed.
	ErrInvalidAuthorizationHeader = errors.New("invalid authorization header")

	// ErrInvalidToken indicates the token failed verification or has expired.
	ErrInvalidToken = errors.New("invalid or expired token")
)
