package sqlite

import (
	"context"
	"fmt"

	"github.com/prn-tf/casebook/internal/domain"
	"github.com/prn-tf/casebook/internal/repository"
)

// imageRepository implements repository.ImageRepository for SQLite.
type imageRepository struct {
	db *DB
}

// NewImageRepository creates a new SQLite image repository.
func NewImageRepository(db *DB) repository.ImageRepository {
	return &imageRepository{db: db}
}

// Create creates a new image row.
func (r *imageRepository) Create(ctx context.Context, img *domain.Image) error {
	query := `
		INSERT INTO images (case_id, url, phase, created_at)
		VALUES (?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		img.CaseID, img.URL, string(img.Phase), formatTime(img.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}
	img.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get image id: %w", err)
	}
	return nil
}

// GetByID retrieves an image by ID.
func (r *imageRepository) GetByID(ctx context.Context, id int64) (*domain.Image, error) {
	query := `SELECT id, case_id, url, phase, created_at FROM images WHERE id = ?`
	return scanImage(r.db.QueryRowContext(ctx, query, id))
}

// ListByCase returns all images attached to a case.
func (r *imageRepository) ListByCase(ctx context.Context, caseID int64) ([]*domain.Image, error) {
	query := `
		SELECT id, case_id, url, phase, created_at
		FROM images
		WHERE case_id = ?
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	var images []*domain.Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// DeleteByCase removes all image rows for a case.
func (r *imageRepository) DeleteByCase(ctx context.Context, caseID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM images WHERE case_id = ?`, caseID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete case images: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted images: %w", err)
	}
	return n, nil
}

// Delete removes a single image row.
func (r *imageRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrImageNotFound
	}
	return nil
}

func scanImage(row rowScanner) (*domain.Image, error) {
	img := &domain.Image{}
	var phase, createdAt string
	err := row.Scan(&img.ID, &img.CaseID, &img.URL, &phase, &createdAt)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	img.Phase = domain.Phase(phase)
	if img.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return img, nil
}
