package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered medical professional. Users own their patients,
// cases and taxonomy entries; nothing is shared across accounts.
type User struct {
	// ID is the unique identifier for this user.
	ID int64 `json:"id"`

	// GivenName is the user's first name.
	GivenName string `json:"given_name"`

	// FamilyName is the user's last name.
	FamilyName string `json:"family_name"`

	// Email is the unique login identifier.
	Email string `json:"email"`

	// PasswordHash is the bcrypt hash of the password. Never serialized.
	PasswordHash string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUser creates a user with timestamps set.
func NewUser(givenName, familyName, email, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		GivenName:    givenName,
		FamilyName:   familyName,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// PasswordResetToken is a single-use token mailed to a user who requested a
// password reset.
type PasswordResetToken struct {
	// Token is the opaque token value sent to the user.
	Token uuid.UUID `json:"token"`

	// UserID is the user the token was issued for.
	UserID int64 `json:"user_id"`

	// ExpiresAt is the instant the token stops being valid.
	ExpiresAt time.Time `json:"expires_at"`

	// Used marks a consumed token. Tokens are single-use.
	Used bool `json:"used"`

	CreatedAt time.Time `json:"created_at"`
}

// NewPasswordResetToken issues a token valid for the given duration.
func NewPasswordResetToken(userID int64, ttl time.Duration) *PasswordResetToken {
	now := time.Now().UTC()
	return &PasswordResetToken{
		Token:     uuid.New(),
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// IsValid reports whether the token can still be redeemed at the given instant.
func (t *PasswordResetToken) IsValid(at time.Time) bool {
	return !t.Used && at.Before(t.ExpiresAt)
}
