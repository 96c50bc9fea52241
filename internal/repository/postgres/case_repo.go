package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prn-tf/casebook/internal/domain"
	"github.com/prn-tf/casebook/internal/repository"
)

// caseRepository implements repository.CaseRepository.
type caseRepository struct {
	db *DB
}

// NewCaseRepository creates a new PostgreSQL case repository.
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	err := r.db.Pool.QueryRow(ctx, query,
		c.PatientID, c.NationalID, c.Region, c.Etiology, c.Tissue,
		c.Diagnosis, c.Treatment, c.Phase, c.Status, c.UploadedBy,
		c.CreatedAt, c.UpdatedAt,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to create case: %w", err)
	}
	return nil
}

// GetByID retrieves a case by ID.
func (r *caseRepository) GetByID(ctx context.Context, id int64) (*domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1`
	return r.scanCase(r.db.Pool.QueryRow(ctx, query, id))
}

// FindLatestMatch returns the most recent case matching the duplicate query.
// This query is served by the compound index on (national_id, region,
// diagnosis, uploaded_by, created_at).
func (r *caseRepository) FindLatestMatch(ctx context.Context, q repository.DuplicateQuery) (*domain.Case, error) {
	query := `
		SELECT ` + caseColumns + `
		FROM cases
		WHERE national_id = $1 AND region = $2 AND diagnosis = $3
			AND uploaded_by = $4
			AND created_at BETWEEN $5 AND $6
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.scanCase(r.db.Pool.QueryRow(ctx, query,
		q.NationalID, q.Region, q.Diagnosis, q.UploadedBy, q.From, q.To,
	))
}

// Update persists changes to an existing case.
func (r *caseRepository) Update(ctx context.Context, c *domain.Case) error {
	c.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE cases
		SET region = $1, etiology = $2, tissue = $3, diagnosis = $4,
			treatment = $5, phase = $6, status = $7, national_id = $8,
			updated_at = $9
		WHERE id = $10
	`
	tag, err := r.db.Pool.Exec(ctx, query,
		c.Region, c.Etiology, c.Tissue, c.Diagnosis,
		c.Treatment, c.Phase, c.Status, c.NationalID,
		c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update case: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCaseNotFound
	}
	return nil
}

// Delete deletes a case row.
func (r *caseRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM cases WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete case: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCaseNotFound
	}
	return nil
}

// ListByOwner returns the owner's cases matching the filter.
func (r *caseRepository) ListByOwner(ctx context.Context, ownerUserID int64, filter repository.CaseFilter) ([]*domain.Case, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + caseColumns + ` FROM cases WHERE uploaded_by = $1`)
	args := []any{ownerUserID}

	addFilter := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		sb.WriteString(" AND " + column + " = $" + strconv.Itoa(len(args)))
	}
	addFilter("national_id", filter.NationalID)
	addFilter("region", filter.Region)
	addFilter("etiology", filter.Etiology)
	addFilter("tissue", filter.Tissue)
	addFilter("diagnosis", filter.Diagnosis)
	addFilter("treatment", filter.Treatment)
	addFilter("phase", string(filter.Phase))
	sb.WriteString(" ORDER BY created_at DESC")

	rows, err := r.db.Pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()
	return r.collectCases(rows)
}

// ListIncompleteByOwner returns cases with a missing descriptor field.
func (r *caseRepository) ListIncompleteByOwner(ctx context.Context, ownerUserID int64, limit int) ([]*domain.Case, error) {
	query := `
		SELECT ` + caseColumns + `
		FROM cases
		WHERE uploaded_by = $1
			AND (etiology IS NULL OR tissue IS NULL OR treatment IS NULL)
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Pool.Query(ctx, query, ownerUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list incomplete cases: %w", err)
	}
	defer rows.Close()
	return r.collectCases(rows)
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func (r *caseRepository) collectCases(rows pgxRows) ([]*domain.Case, error) {
	var cases []*domain.Case
	for rows.Next() {
		c := &domain.Case{}
		err := rows.Scan(
			&c.ID, &c.PatientID, &c.NationalID, &c.Region, &c.Etiology,
			&c.Tissue, &c.Diagnosis, &c.Treatment, &c.Phase, &c.Status,
			&c.UploadedBy, &c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

func (r *caseRepository) scanCase(row rowScanner) (*domain.Case, error) {
	c := &domain.Case{}
	err := row.Scan(
		&c.ID, &c.PatientID, &c.NationalID, &c.Region, &c.Etiology,
		&c.Tissue, &c.Diagnosis, &c.Treatment, &c.Phase, &c.Status,
		&c.UploadedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrCaseNotFound
		}
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	return c, nil
}
