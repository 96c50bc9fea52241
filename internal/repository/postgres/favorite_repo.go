package postgres

import (
	"context"
	"fmt"

	"github.com/prn-tf/casebook/internal/domain"
	"github.com/prn-tf/casebook/internal/repository"
)

// favoriteRepository implements repository.FavoriteRepository.
type favoriteRepository struct {
	db *DB
}

// NewFavoriteRepository creates a new PostgreSQL favorite repository.
func NewFavoriteRepository(db *DB) repository.FavoriteRepository {
	return &favoriteRepository{db: db}
}

// Create marks an image as a favorite.
func (r *favoriteRepository) Create(ctx context.Context, fav *domain.Favorite) error {
	query := `
		INSERT INTO favorites (user_id, image_id, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	err := r.db.Pool.QueryRow(ctx, query, fav.UserID, fav.ImageID, fav.CreatedAt).Scan(&fav.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrFavoriteAlreadyExists
		}
		return fmt.Errorf("failed to create favorite: %w", err)
	}
	return nil
}

// Delete unmarks a favorite.
func (r *favoriteRepository) Delete(ctx context.Context, userID, imageID int64) error {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM favorites WHERE user_id = $1 AND image_id = $2`,
		userID, imageID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete favorite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrFavoriteNotFound
	}
	return nil
}

// ListByUser returns the user's favorites, most recent first.
func (r *favoriteRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.Favorite, error) {
	query := `
		SELECT id, user_id, image_id, created_at
		FROM favorites
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	defer rows.Close()

	var favorites []*domain.Favorite
	for rows.Next() {
		f := &domain.Favorite{}
		if err := rows.Scan(&f.ID, &f.UserID, &f.ImageID, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		favorites = append(favorites, f)
	}
	return favorites, rows.Err()
}

// NewRepositories bundles all PostgreSQL repositories.
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
