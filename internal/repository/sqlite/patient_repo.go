package sqlite

import (
	"context"
	"fmt"

	"github.com/prn-tf/casebook/internal/domain"
	"github.com/prn-tf/casebook/internal/repository"
)

// patientRepository implements repository.PatientRepository for SQLite.
type patientRepository struct {
	db *DB
}

// NewPatientRepository creates a new SQLite patient repository.
func NewPatientRepository(db *DB) repository.PatientRepository {
	return &patientRepository{db: db}
}

// Create creates a new patient.
func (r *patientRepository) Create(ctx context.Context, patient *domain.Patient) error {
	query := `
		INSERT INTO patients (owner_user_id, national_id, given_name, family_name, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		patient.OwnerUserID, patient.NationalID,
		patient.GivenName, patient.FamilyName, formatTime(patient.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrPatientAlreadyExists
		}
		return fmt.Errorf("failed to create patient: %w", err)
	}
	patient.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get patient id: %w", err)
	}
	return nil
}

// GetByID retrieves a patient by ID.
func (r *patientRepository) GetByID(ctx context.Context, id int64) (*domain.Patient, error) {
	query := `
		SELECT id, owner_user_id, national_id, given_name, family_name, created_at
		FROM patients WHERE id = ?
	`
	return scanPatient(r.db.QueryRowContext(ctx, query, id))
}

// GetByOwnerAndNationalID retrieves the owner's patient with the given
// national id.
func (r *patientRepository) GetByOwnerAndNationalID(ctx context.Context, ownerUserID int64, nationalID string) (*domain.Patient, error) {
	query := `
		SELECT id, owner_user_id, national_id, given_name, family_name, created_at
		FROM patients WHERE owner_user_id = ? AND national_id = ?
	`
	return scanPatient(r.db.QueryRowContext(ctx, query, ownerUserID, nationalID))
}

// ListByOwner returns all patients owned by a user.
func (r *patientRepository) ListByOwner(ctx context.Context, ownerUserID int64) ([]*domain.Patient, error) {
	query := `
		SELECT id, owner_user_id, national_id, given_name, family_name, created_at
		FROM patients WHERE owner_user_id = ? ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	defer rows.Close()

	var patients []*domain.Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

func scanPatient(row rowScanner) (*domain.Patient, error) {
	p := &domain.Patient{}
	var createdAt string
	err := row.Scan(&p.ID, &p.OwnerUserID, &p.NationalID, &p.GivenName, &p.FamilyName, &createdAt)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrPatientNotFound
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return p, nil
}
