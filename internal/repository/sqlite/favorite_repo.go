package sqlite

import (
	"context"
	"fmt"

	"github.com/prn-tf/casebook/internal/domain"
	"github.com/prn-tf/casebook/internal/repository"
)

// favoriteRepository implements repository.FavoriteRepository for SQLite.
type favoriteRepository struct {
	db *DB
}

// NewFavoriteRepository creates a new SQLite favorite repository.
func NewFavoriteRepository(db *DB) repository.FavoriteRepository {
	return &favoriteRepository{db: db}
}

// Create marks an image as a favorite.
func (r *favoriteRepository) Create(ctx context.Context, fav *domain.Favorite) error {
	query := `
		INSERT INTO favorites (user_id, image_id, created_at)
		VALUES (?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		fav.UserID, fav.ImageID, formatTime(fav.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrFavoriteAlreadyExists
		}
		return fmt.Errorf("failed to create favorite: %w", err)
	}
	fav.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get favorite id: %w", err)
	}
	return nil
}

// Delete unmarks a favorite.
func (r *favoriteRepository) Delete(ctx context.Context, userID, imageID int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = ? AND image_id = ?`,
		userID, imageID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete favorite: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrFavoriteNotFound
	}
	return nil
}

// ListByUser returns the user's favorites, most recent first.
func (r *favoriteRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.Favorite, error) {
	query := `
		SELECT id, user_id, image_id, created_at
		FROM favorites
		WHERE user_id = ?
		ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	defer rows.Close()

	var favorites []*domain.Favorite
	for rows.Next() {
		f := &domain.Favorite{}
		var createdAt string
		if err := rows.Scan(&f.ID, &f.UserID, &f.ImageID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		created, err := parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		f.CreatedAt = created
		favorites = append(favorites, f)
	}
	return favorites, rows.Err()
}

// NewRepositories bundles all SQLite repositories.
func NewRepositories(db *DB) *repository.Repositories {
	return &repository.Repositories{
		Users:      NewUserRepository(db),
		ResetToken: NewResetTokenRepository(db),
		Patients:   NewPatientRepository(db),
		Cases:      NewCaseRepository(db),
		Images:     NewImageRepository(db),
		Taxonomy:   NewTaxonomyRepository(db),
		Favorites:  NewFavoriteRepository(db),
	}
}
