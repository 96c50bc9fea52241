// Package repository defines data access interfaces for Casebook.
// These interfaces abstract database operations, allowing for different
// implementations (PostgreSQL, SQLite, mocks for testing) while keeping the
// service layer clean. Repositories are constructed once at process start
// and passed by reference to the services that need them.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/prn-tf/casebook/internal/domain"
)

// =============================================================================
// User Repository
// =============================================================================

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create creates a new user.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// ExistsByEmail checks if a user with the given email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// UpdatePassword replaces the stored password hash.
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}

// PasswordResetTokenRepository defines the interface for reset token access.
type PasswordResetTokenRepository interface {
	// Create stores a newly issued token.
	Create(ctx context.Context, token *domain.PasswordResetToken) error

	// Get retrieves a token by its value.
	Get(ctx context.Context, token uuid.UUID) (*domain.PasswordResetToken, error)

	// MarkUsed consumes a token so it cannot be redeemed again.
	MarkUsed(ctx context.Context, token uuid.UUID) error
}

// =============================================================================
// Patient Repository
// =============================================================================

// PatientRepository defines the interface for patient data access.
type PatientRepository interface {
	// Create creates a new patient. Returns domain.ErrPatientAlreadyExists
	// when the (owner, national id) pair is already taken.
	Create(ctx context.Context, patient *domain.Patient) error

	// GetByID retrieves a patient by ID.
	GetByID(ctx context.Context, id int64) (*domain.Patient, error)

	// GetByOwnerAndNationalID retrieves the owner's patient with the given
	// national id. Returns domain.ErrPatientNotFound when absent.
	GetByOwnerAndNationalID(ctx context.Context, ownerUserID int64, nationalID string) (*domain.Patient, error)

	// ListByOwner returns all patients owned by a user.
	ListByOwner(ctx context.Context, ownerUserID int64) ([]*domain.Patient, error)
}

// =============================================================================
// Case Repository
// =============================================================================

// DuplicateQuery is the compound key the duplicate lookup is indexed on.
type DuplicateQuery struct {
	// NationalID is the patient identity carried on the case.
	NationalID string

	// Region and Diagnosis are the clinical descriptors that must match.
	Region    string
	Diagnosis string

	// UploadedBy scopes the lookup to one professional.
	UploadedBy int64

	// From and To bound created_at (inclusive).
	From time.Time
	To   time.Time
}

// CaseFilter narrows case listings. Zero-valued fields are ignored.
type CaseFilter struct {
	NationalID string
	Region     string
	Etiology   string
	Tissue     string
	Diagnosis  string
	Treatment  string
	Phase      domain.Phase
}

// CaseRepository defines the interface for case data access.
type CaseRepository interface {
	// Create creates a new case.
	Create(ctx context.Context, c *domain.Case) error

	// GetByID retrieves a case by ID. Images are not loaded.
	GetByID(ctx context.Context, id int64) (*domain.Case, error)

	// FindLatestMatch returns the case matching the duplicate query with the
	// most recent created_at, or domain.ErrCaseNotFound when none matches.
	FindLatestMatch(ctx context.Context, q DuplicateQuery) (*domain.Case, error)

	// Update persists changes to an existing case and bumps updated_at.
	Update(ctx context.Context, c *domain.Case) error

	// Delete deletes a case row. Image rows must be removed first.
	Delete(ctx context.Context, id int64) error

	// ListByOwner returns the owner's cases matching the filter.
	ListByOwner(ctx context.Context, ownerUserID int64, filter CaseFilter) ([]*domain.Case, error)

	// ListIncompleteByOwner returns the owner's cases that still have a null
	// etiology, tissue or treatment, most recent first.
	ListIncompleteByOwner(ctx context.Context, ownerUserID int64, limit int) ([]*domain.Case, error)
}

// =============================================================================
// Image Repository
// =============================================================================

// ImageRepository defines the interface for image data access.
type ImageRepository interface {
	// Create creates a new image row.
	Create(ctx context.Context, img *domain.Image) error

	// GetByID retrieves an image by ID.
	GetByID(ctx context.Context, id int64) (*domain.Image, error)

	// ListByCase returns all images attached to a case.
	ListByCase(ctx context.Context, caseID int64) ([]*domain.Image, error)

	// DeleteByCase removes all image rows for a case. Returns the number of
	// rows removed.
	DeleteByCase(ctx context.Context, caseID int64) (int64, error)

	// Delete removes a single image row.
	Delete(ctx context.Context, id int64) error
}

// =============================================================================
// Taxonomy Repository
// =============================================================================

// TaxonomyRepository defines the interface for the per-user clinical
// hierarchy. Every level shares the same shape, so one interface serves all
// five tables.
type TaxonomyRepository interface {
	// Create creates a new entry at the given level.
	Create(ctx context.Context, node *domain.TaxonomyNode) error

	// Get retrieves an entry by level and ID, scoped to its owner.
	Get(ctx context.Context, level domain.TaxonomyLevel, ownerUserID, id int64) (*domain.TaxonomyNode, error)

	// Rename updates an entry's name.
	Rename(ctx context.Context, level domain.TaxonomyLevel, ownerUserID, id int64, name string) error

	// Delete removes an entry and, via foreign keys, its descendants.
	Delete(ctx context.Context, level domain.TaxonomyLevel, ownerUserID, id int64) error

	// ListByOwner returns all of the owner's entries at one level,
	// ordered by ID.
	ListByOwner(ctx context.Context, level domain.TaxonomyLevel, ownerUserID int64) ([]*domain.TaxonomyNode, error)
}

// =============================================================================
// Favorite Repository
// =============================================================================

// FavoriteRepository defines the interface for favorite data access.
type FavoriteRepository interface {
	// Create marks an image as a favorite. Returns
	// domain.ErrFavoriteAlreadyExists when already marked.
	Create(ctx context.Context, fav *domain.Favorite) error

	// Delete unmarks a favorite. Returns domain.ErrFavoriteNotFound when the
	// image was not marked.
	Delete(ctx context.Context, userID, imageID int64) error

	// ListByUser returns the user's favorites, most recent first.
	ListByUser(ctx context.Context, userID int64) ([]*domain.Favorite, error)
}

// Repositories bundles every repository implementation for injection.
type Repositories struct {
	Users      UserRepository
	ResetToken PasswordResetTokenRepository
	Patients   PatientRepository
	Cases      CaseRepository
	Images     ImageRepository
	Taxonomy   TaxonomyRepository
	Favorites  FavoriteRepository
}

// DatabaseHealth is implemented by database wrappers for health endpoints.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Close() error
}
