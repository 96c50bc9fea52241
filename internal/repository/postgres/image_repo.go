package postgres

import (
	"context"
	"fmt"

	"github.com/prn-tf/casebook/internal/domain"
	"github.com/prn-tf/casebook/internal/repository"
)

// imageRepository implements repository.ImageRepository.
type imageRepository struct {
	db *DB
}

// NewImageRepository creates a new PostgreSQL image repository.
func NewImageRepository(db *DB) repository.ImageRepository {
	return &imageRepository{db: db}
}

// Create creates a new image row.
func (r *imageRepository) Create(ctx context.Context, img *domain.Image) error {
	query := `
		INSERT INTO images (case_id, url, phase, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := r.db.Pool.QueryRow(ctx, query,
		img.CaseID, img.URL, img.Phase, img.CreatedAt,
	).Scan(&img.ID)
	if err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}
	return nil
}

// GetByID retrieves an image by ID.
func (r *imageRepository) GetByID(ctx context.Context, id int64) (*domain.Image, error) {
	query := `SELECT id, case_id, url, phase, created_at FROM images WHERE id = $1`
	img := &domain.Image{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&img.ID, &img.CaseID, &img.URL, &img.Phase, &img.CreatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return img, nil
}

// ListByCase returns all images attached to a case.
func (r *imageRepository) ListByCase(ctx context.Context, caseID int64) ([]*domain.Image, error) {
	query := `
		SELECT id, case_id, url, phase, created_at
		FROM images
		WHERE case_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.Pool.Query(ctx, query, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	var images []*domain.Image
	for rows.Next() {
		img := &domain.Image{}
		if err := rows.Scan(&img.ID, &img.CaseID, &img.URL, &img.Phase, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// DeleteByCase removes all image rows for a case.
func (r *imageRepository) DeleteByCase(ctx context.Context, caseID int64) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM images WHERE case_id = $1`, caseID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete case images: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Delete removes a single image row.
func (r *imageRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrImageNotFound
	}
	return nil
}
