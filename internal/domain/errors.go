// Package domain contains the core business entities for Casebook.
package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-readable classification of a failure.
// Handlers map kinds to HTTP status codes; clients can branch on them.
type ErrorKind string

const (
	// KindValidation indicates malformed or missing caller input. Never retried.
	KindValidation ErrorKind = "validation"

	// KindConflict indicates a uniqueness violation (e.g. duplicate patient identity).
	KindConflict ErrorKind = "conflict"

	// KindNotFound indicates a referenced entity does not exist.
	KindNotFound ErrorKind = "not_found"

	// KindStorage indicates a database or blob-store fault. Retryable where
	// the underlying operation is idempotent.
	KindStorage ErrorKind = "storage"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).
var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailAlreadyRegistered indicates a user with the same email exists.
	ErrEmailAlreadyRegistered = errors.New("email already registered")

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrPatientNotFound indicates the requested patient does not exist.
	ErrPatientNotFound = errors.New("patient not found")

	// ErrPatientAlreadyExists indicates the owner already has a patient with
	// this national id.
	ErrPatientAlreadyExists = errors.New("patient with this national id already exists")

	// ErrCaseNotFound indicates the requested case does not exist.
	ErrCaseNotFound = errors.New("case not found")

	// ErrImageNotFound indicates the requested image does not exist.
	ErrImageNotFound = errors.New("image not found")

	// ErrTaxonomyNodeNotFound indicates the requested taxonomy entry does not exist.
	ErrTaxonomyNodeNotFound = errors.New("taxonomy entry not found")

	// ErrFavoriteNotFound indicates the image was not marked as favorite.
	ErrFavoriteNotFound = errors.New("favorite not found")

	// ErrFavoriteAlreadyExists indicates the image is already a favorite.
	ErrFavoriteAlreadyExists = errors.New("image already marked as favorite")

	// ErrResetTokenNotFound indicates the password reset token is unknown.
	ErrResetTokenNotFound = errors.New("password reset token not found")

	// ErrResetTokenExpired indicates the password reset token is expired or used.
	ErrResetTokenExpired = errors.New("password reset token expired")

	// ErrInvalidPhase indicates a clinical phase outside {pre, intra, post}.
	ErrInvalidPhase = errors.New("invalid phase: must be pre, intra or post")
)

// Error wraps a failure with a machine-readable kind and a human-readable
// message. No stack traces or internal identifiers are exposed to callers.
type Error struct {
	// Kind classifies the failure.
	Kind ErrorKind

	// Message is the human-readable description.
	Message string

	// Field names the offending input field for validation errors.
	Field string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field %s)", e.Kind, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError creates a field-level validation error.
func NewValidationError(field, message string) *Error {
	return &Error{Kind: KindValidation, Message: message, Field: field}
}

// NewConflictError creates a conflict error wrapping a domain sentinel.
func NewConflictError(err error, message string) *Error {
	return &Error{Kind: KindConflict, Message: message, Err: err}
}

// NewNotFoundError creates a not-found error wrapping a domain sentinel.
func NewNotFoundError(err error, message string) *Error {
	return &Error{Kind: KindNotFound, Message: message, Err: err}
}

// NewStorageError creates a storage error wrapping an infrastructure fault.
func NewStorageError(err error, message string) *Error {
	return &Error{Kind: KindStorage, Message: message, Err: err}
}

// KindOf classifies an arbitrary error. Unclassified errors are treated as
// storage faults so they surface as 5xx rather than leaking details.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	switch {
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrPatientNotFound),
		errors.Is(err, ErrCaseNotFound),
		errors.Is(err, ErrImageNotFound),
		errors.Is(err, ErrTaxonomyNodeNotFound),
		errors.Is(err, ErrFavoriteNotFound),
		errors.Is(err, ErrResetTokenNotFound):
		return KindNotFound
	case errors.Is(err, ErrEmailAlreadyRegistered),
		errors.Is(err, ErrPatientAlreadyExists),
		errors.Is(err, ErrFavoriteAlreadyExists):
		return KindConflict
	case errors.Is(err, ErrInvalidPhase),
		errors.Is(err, ErrResetTokenExpired),
		errors.Is(err, ErrInvalidCredentials):
		return KindValidation
	default:
		return KindStorage
	}
}
