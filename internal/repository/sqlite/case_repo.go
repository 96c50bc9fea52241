package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prn-tf/casebook/internal/domain"
	"github.com/prn-tf/casebook/internal/repository"
)

// caseRepository implements repository.CaseRepository for SQLite.
type caseRepository struct {
	db *DB
}

// NewCaseRepository creates a new SQLite case repository.
func NewCaseRepository(db *DB) repository.CaseRepository {
	return &caseRepository{db: db}
}

const caseColumns = `id, patient_id, national_id, region, etiology, tissue,
	diagnosis, treatment, phase, status, uploaded_by, created_at, updated_at`

// Create creates a new case.
func (r *caseRepository) Create(ctx context.Context, c *domain.Case) error {
	query := `
		INSERT INTO cases (patient_id, national_id, region, etiology, tissue,
			diagnosis, treatment, phase, status, uploaded_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		c.PatientID, c.NationalID, c.Region, c.Etiology, c.Tissue,
		c.Diagnosis, c.Treatment, phaseValue(c.Phase), c.Status, c.UploadedBy,
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create case: %w", err)
	}
	c.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get case id: %w", err)
	}
	return nil
}

// GetByID retrieves a case by ID.
func (r *caseRepository) GetByID(ctx context.Context, id int64) (*domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = ?`
	return scanCase(r.db.QueryRowContext(ctx, query, id))
}

// FindLatestMatch returns the most recent case matching the duplicate query.
func (r *caseRepository) FindLatestMatch(ctx context.Context, q repository.DuplicateQuery) (*domain.Case, error) {
	query := `
		SELECT ` + caseColumns + `
		FROM cases
		WHERE national_id = ? AND region = ? AND diagnosis = ?
			AND uploaded_by = ?
			AND created_at BETWEEN ? AND ?
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanCase(r.db.QueryRowContext(ctx, query,
		q.NationalID, q.Region, q.Diagnosis, q.UploadedBy,
		formatTime(q.From), formatTime(q.To),
	))
}

// Update persists changes to an existing case.
func (r *caseRepository) Update(ctx context.Context, c *domain.Case) error {
	c.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE cases
		SET region = ?, etiology = ?, tissue = ?, diagnosis = ?,
			treatment = ?, phase = ?, status = ?, national_id = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		c.Region, c.Etiology, c.Tissue, c.Diagnosis,
		c.Treatment, phaseValue(c.Phase), c.Status, c.NationalID,
		formatTime(c.UpdatedAt), c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update case: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrCaseNotFound
	}
	return nil
}

// Delete deletes a case row.
func (r *caseRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM cases WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete case: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrCaseNotFound
	}
	return nil
}

// ListByOwner returns the owner's cases matching the filter.
func (r *caseRepository) ListByOwner(ctx context.Context, ownerUserID int64, filter repository.CaseFilter) ([]*domain.Case, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + caseColumns + ` FROM cases WHERE uploaded_by = ?`)
	args := []any{ownerUserID}

	addFilter := func(column, value string) {
		if value == "" {
			return
		}
		sb.WriteString(" AND " + column + " = ?")
		args = append(args, value)
	}
	addFilter("national_id", filter.NationalID)
	addFilter("region", filter.Region)
	addFilter("etiology", filter.Etiology)
	addFilter("tissue", filter.Tissue)
	addFilter("diagnosis", filter.Diagnosis)
	addFilter("treatment", filter.Treatment)
	addFilter("phase", string(filter.Phase))
	sb.WriteString(" ORDER BY created_at DESC")

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	var cases []*domain.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

// ListIncompleteByOwner returns cases with a missing descriptor field.
func (r *caseRepository) ListIncompleteByOwner(ctx context.Context, ownerUserID int64, limit int) ([]*domain.Case, error) {
	query := `
		SELECT ` + caseColumns + `
		FROM cases
		WHERE uploaded_by = ?
			AND (etiology IS NULL OR tissue IS NULL OR treatment IS NULL)
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, ownerUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list incomplete cases: %w", err)
	}
	defer rows.Close()

	var cases []*domain.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

// phaseValue converts an optional phase to a driver-friendly value.
func phaseValue(p *domain.Phase) any {
	if p == nil {
		return nil
	}
	return string(*p)
}

func scanCase(row rowScanner) (*domain.Case, error) {
	c := &domain.Case{}
	var phase *string
	var createdAt, updatedAt string
	err := row.Scan(
		&c.ID, &c.PatientID, &c.NationalID, &c.Region, &c.Etiology,
		&c.Tissue, &c.Diagnosis, &c.Treatment, &phase, &c.Status,
		&c.UploadedBy, &createdAt, &updatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrCaseNotFound
		}
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	if phase != nil {
		p := domain.Phase(*phase)
		c.Phase = &p
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return c, nil
}
