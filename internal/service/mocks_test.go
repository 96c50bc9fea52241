package service

import (
	"context"
	"sort"
	"time"

	"github.com/prn-tf/casebook/internal/domain"
	"github.com/prn-tf/casebook/internal/repository"
)

// =============================================================================
// Mock Repositories
// =============================================================================

// MockCaseRepository is a map-backed implementation of repository.CaseRepository.
type MockCaseRepository struct {
	cases     map[int64]*domain.Case
	nextID    int64
	createErr error
	findErr   error
	updateErr error
	deleteErr error
}

func NewMockCaseRepository() *MockCaseRepository {
	return &MockCaseRepository{
		cases:  make(map[int64]*domain.Case),
		nextID: 1,
	}
}

func (m *MockCaseRepository) Create(ctx context.Context, c *domain.Case) error {
	if m.createErr != nil {
		return m.createErr
	}
	c.ID = m.nextID
	m.nextID++
	m.cases[c.ID] = c
	return nil
}

func (m *MockCaseRepository) GetByID(ctx context.Context, id int64) (*domain.Case, error) {
	if c, exists := m.cases[id]; exists {
		return c, nil
	}
	return nil, domain.ErrCaseNotFound
}

func (m *MockCaseRepository) FindLatestMatch(ctx context.Context, q repository.DuplicateQuery) (*domain.Case, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	var latest *domain.Case
	for _, c := range m.cases {
		if c.NationalID != q.NationalID || c.Region != q.Region ||
			c.Diagnosis != q.Diagnosis || c.UploadedBy != q.UploadedBy {
			continue
		}
		if c.CreatedAt.Before(q.From) || c.CreatedAt.After(q.To) {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, domain.ErrCaseNotFound
	}
	return latest, nil
}

func (m *MockCaseRepository) Update(ctx context.Context, c *domain.Case) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, exists := m.cases[c.ID]; !exists {
		return domain.ErrCaseNotFound
	}
	c.UpdatedAt = time.Now().UTC()
	m.cases[c.ID] = c
	return nil
}

func (m *MockCaseRepository) Delete(ctx context.Context, id int64) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, exists := m.cases[id]; !exists {
		return domain.ErrCaseNotFound
	}
	delete(m.cases, id)
	return nil
}

func (m *MockCaseRepository) ListByOwner(ctx context.Context, ownerUserID int64, filter repository.CaseFilter) ([]*domain.Case, error) {
	var result []*domain.Case
	for _, c := range m.cases {
		if c.UploadedBy != ownerUserID {
			continue
		}
		if filter.NationalID != "" && c.NationalID != filter.NationalID {
			continue
		}
		if filter.Region != "" && c.Region != filter.Region {
			continue
		}
		if filter.Diagnosis != "" && c.Diagnosis != filter.Diagnosis {
			continue
		}
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MockCaseRepository) ListIncompleteByOwner(ctx context.Context, ownerUserID int64, limit int) ([]*domain.Case, error) {
	var result []*domain.Case
	for _, c := range m.cases {
		if c.UploadedBy == ownerUserID && !c.IsComplete() {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// MockPatientRepository is a map-backed implementation of repository.PatientRepository.
type MockPatientRepository struct {
	patients  map[int64]*domain.Patient
	nextID    int64
	createErr error
}

func NewMockPatientRepository() *MockPatientRepository {
	return &MockPatientRepository{
		patients: make(map[int64]*domain.Patient),
		nextID:   1,
	}
}

func (m *MockPatientRepository) Create(ctx context.Context, patient *domain.Patient) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, p := range m.patients {
		if p.OwnerUserID == patient.OwnerUserID && p.NationalID == patient.NationalID {
			return domain.ErrPatientAlreadyExists
		}
	}
	patient.ID = m.nextID
	m.nextID++
	m.patients[patient.ID] = patient
	return nil
}

func (m *MockPatientRepository) GetByID(ctx context.Context, id int64) (*domain.Patient, error) {
	if p, exists := m.patients[id]; exists {
		return p, nil
	}
	return nil, domain.ErrPatientNotFound
}

func (m *MockPatientRepository) GetByOwnerAndNationalID(ctx context.Context, ownerUserID int64, nationalID string) (*domain.Patient, error) {
	for _, p := range m.patients {
		if p.OwnerUserID == ownerUserID && p.NationalID == nationalID {
			return p, nil
		}
	}
	return nil, domain.ErrPatientNotFound
}

func (m *MockPatientRepository) ListByOwner(ctx context.Context, ownerUserID int64) ([]*domain.Patient, error) {
	var result []*domain.Patient
	for _, p := range m.patients {
		if p.OwnerUserID == ownerUserID {
			result = append(result, p)
		}
	}
	return result, nil
}

// MockImageRepository is a map-backed implementation of repository.ImageRepository.
// createErrAfter makes Create fail once n rows exist, to exercise mid-batch
// compensation.
type MockImageRepository struct {
	images         map[int64]*domain.Image
	nextID         int64
	createErr      error
	createErrAfter int
}

func NewMockImageRepository() *MockImageRepository {
	return &MockImageRepository{
		images:         make(map[int64]*domain.Image),
		nextID:         1,
		createErrAfter: -1,
	}
}

func (m *MockImageRepository) Create(ctx context.Context, img *domain.Image) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.createErrAfter >= 0 && len(m.images) >= m.createErrAfter {
		return domain.NewStorageError(nil, "injected create failure")
	}
	img.ID = m.nextID
	m.nextID++
	m.images[img.ID] = img
	return nil
}

func (m *MockImageRepository) GetByID(ctx context.Context, id int64) (*domain.Image, error) {
	if img, exists := m.images[id]; exists {
		return img, nil
	}
	return nil, domain.ErrImageNotFound
}

func (m *MockImageRepository) ListByCase(ctx context.Context, caseID int64) ([]*domain.Image, error) {
	var result []*domain.Image
	for _, img := range m.images {
		if img.CaseID == caseID {
			result = append(result, img)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MockImageRepository) DeleteByCase(ctx context.Context, caseID int64) (int64, error) {
	var count int64
	for id, img := range m.images {
		if img.CaseID == caseID {
			delete(m.images, id)
			count++
		}
	}
	return count, nil
}

func (m *MockImageRepository) Delete(ctx context.Context, id int64) error {
	if _, exists := m.images[id]; !exists {
		return domain.ErrImageNotFound
	}
	delete(m.images, id)
	return nil
}
