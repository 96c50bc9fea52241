package postgres

import (
	"context"
	"fmt"

	"github.com/prn-tf/casebook/internal/domain"
	"github.com/prn-tf/casebook/internal/repository"
)

// patientRepository implements repository.PatientRepository.
type patientRepository struct {
	db *DB
}

// NewPatientRepository creates a new PostgreSQL patient repository.
func NewPatientRepository(db *DB) repository.PatientRepository {
	return &patientRepository{db: db}
}

// Create creates a new patient. The unique index on (owner_user_id,
// national_id) enforces per-professional identity.
func (r *patientRepository) Create(ctx context.Context, patient *domain.Patient) error {
	query := `
		INSERT INTO patients (owner_user_id, national_id, given_name, family_name, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.db.Pool.QueryRow(ctx, query,
		patient.OwnerUserID, patient.NationalID,
		patient.GivenName, patient.FamilyName, patient.CreatedAt,
	).Scan(&patient.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrPatientAlreadyExists
		}
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

// GetByID retrieves a patient by ID.
func (r *patientRepository) GetByID(ctx context.Context, id int64) (*domain.Patient, error) {
	query := `
		SELECT id, owner_user_id, national_id, given_name, family_name, created_at
		FROM patients
		WHERE id = $1
	`
	return r.scanPatient(r.db.Pool.QueryRow(ctx, query, id))
}

// GetByOwnerAndNationalID retrieves the owner's patient with the given
// national id.
func (r *patientRepository) GetByOwnerAndNationalID(ctx context.Context, ownerUserID int64, nationalID string) (*domain.Patient, error) {
	query := `
		SELECT id, owner_user_id, national_id, given_name, family_name, created_at
		FROM patients
		WHERE owner_user_id = $1 AND national_id = $2
	`
	return r.scanPatient(r.db.Pool.QueryRow(ctx, query, ownerUserID, nationalID))
}

// ListByOwner returns all patients owned by a user.
func (r *patientRepository) ListByOwner(ctx context.Context, ownerUserID int64) ([]*domain.Patient, error) {
	query := `
		SELECT id, owner_user_id, national_id, given_name, family_name, created_at
		FROM patients
		WHERE owner_user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Pool.Query(ctx, query, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	defer rows.Close()

	var patients []*domain.Patient
	for rows.Next() {
		p := &domain.Patient{}
		if err := rows.Scan(&p.ID, &p.OwnerUserID, &p.NationalID, &p.GivenName, &p.FamilyName, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan patient: %w", err)
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

func (r *patientRepository) scanPatient(row rowScanner) (*domain.Patient, error) {
	p := &domain.Patient{}
	err := row.Scan(&p.ID, &p.OwnerUserID, &p.NationalID, &p.GivenName, &p.FamilyName, &p.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrPatientNotFound
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return p, nil
}
