package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/prn-tf/casebook/internal/domain"
	"github.com/prn-tf/casebook/internal/repository"
)

// userRepository implements repository.UserRepository for SQLite.
type userRepository struct {
	db *DB
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(db *DB) repository.UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user.
func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (given_name, family_name, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		user.GivenName, user.FamilyName, user.Email, user.PasswordHash,
		formatTime(user.CreatedAt), formatTime(user.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailAlreadyRegistered
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get user id: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `
		SELECT id, given_name, family_name, email, password_hash, created_at, updated_at
		FROM users WHERE id = ?
	`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves a user by email.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT id, given_name, family_name, email, password_hash, created_at, updated_at
		FROM users WHERE email = ?
	`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// ExistsByEmail checks if a user with the given email exists.
func (r *userRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email existence: %w", err)
	}
	return exists, nil
}

// UpdatePassword replaces the stored password hash.
func (r *userRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		passwordHash, formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	user := &domain.User{}
	var createdAt, updatedAt string
	err := row.Scan(
		&user.ID, &user.GivenName, &user.FamilyName, &user.Email,
		&user.PasswordHash, &createdAt, &updatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if user.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return user, nil
}

// resetTokenRepository implements repository.PasswordResetTokenRepository for SQLite.
type resetTokenRepository struct {
	db *DB
}

// NewResetTokenRepository creates a new SQLite reset token repository.
func NewResetTokenRepository(db *DB) repository.PasswordResetTokenRepository {
	return &resetTokenRepository{db: db}
}

// Create stores a newly issued token.
func (r *resetTokenRepository) Create(ctx context.Context, token *domain.PasswordResetToken) error {
	query := `
		INSERT INTO password_reset_tokens (token, user_id, expires_at, used, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		token.Token.String(), token.UserID,
		formatTime(token.ExpiresAt), token.Used, formatTime(token.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create reset token: %w", err)
	}
	return nil
}

// Get retrieves a token by its value.
func (r *resetTokenRepository) Get(ctx context.Context, token uuid.UUID) (*domain.PasswordResetToken, error) {
	query := `
		SELECT token, user_id, expires_at, used, created_at
		FROM password_reset_tokens WHERE token = ?
	`
	t := &domain.PasswordResetToken{}
	var rawToken, expiresAt, createdAt string
	err := r.db.QueryRowContext(ctx, query, token.String()).Scan(
		&rawToken, &t.UserID, &expiresAt, &t.Used, &createdAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrResetTokenNotFound
		}
		return nil, fmt.Errorf("failed to get reset token: %w", err)
	}
	t.Token, err = uuid.Parse(rawToken)
	if err != nil {
		return nil, fmt.Errorf("failed to parse reset token: %w", err)
	}
	if t.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return t, nil
}

// MarkUsed consumes a token.
func (r *resetTokenRepository) MarkUsed(ctx context.Context, token uuid.UUID) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE password_reset_tokens SET used = 1 WHERE token = ?`, token.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark reset token used: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrResetTokenNotFound
	}
	return nil
}
