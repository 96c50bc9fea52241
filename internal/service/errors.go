// Package service provides business logic services for Casebook.
package service

import "errors"

// Common service errors.
var (
	// ErrInvalidPassword indicates a password below the minimum length.
	ErrInvalidPassword = errors.New("invalid password: must be at least 8 characters")

	// ErrInvalidEmail indicates an email that failed basic validation.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrSubmissionLocked indicates another submission for the same case key
	// is in flight and the lock could not be acquired in time.
	ErrSubmissionLocked = errors.New("a submission for this case is already in progress")

	// ErrTooManyImages indicates a submission above the per-request image cap.
	ErrTooManyImages = errors.New("too many images in one upload")

	// ErrInternalError wraps unexpected infrastructure failures.
	ErrInternalError = errors.New("internal server error")
)
