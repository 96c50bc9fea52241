package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/casebook/internal/domain"
	"github.com/prn-tf/casebook/internal/lock"
	"github.com/prn-tf/casebook/internal/metrics"
	"github.com/prn-tf/casebook/internal/repository"
)

// CaseService coordinates case submission, mutation and deletion. Submission
// is the multi-step path: patient find-or-create, duplicate resolution, case
// create-or-merge and image attachment, with partial work compensated on
// failure.
type CaseService struct {
	caseRepo    repository.CaseRepository
	patientRepo repository.PatientRepository
	imageRepo   repository.ImageRepository
	dedup       *DedupService
	images      *ImageService
	locker      lock.Locker
	lockTTL     time.Duration
	maxImages   int
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewCaseService creates a new CaseService.
func NewCaseService(
	repos *repository.Repositories,
	dedup *DedupService,
	images *ImageService,
	locker lock.Locker,
	lockTTL time.Duration,
	maxImages int,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *CaseService {
	return &CaseService{
		caseRepo:    repos.Cases,
		patientRepo: repos.Patients,
		imageRepo:   repos.Images,
		dedup:       dedup,
		images:      images,
		locker:      locker,
		lockTTL:     lockTTL,
		maxImages:   maxImages,
		metrics:     m,
		logger:      logger.With().Str("service", "case").Logger(),
	}
}

// =============================================================================
// Input/Output Structs
// =============================================================================

// SubmitCaseInput contains the data for one case submission.
type SubmitCaseInput struct {
	OwnerUserID int64

	// Patient identity. GivenName and FamilyName are only used when the
	// patient does not exist yet.
	NationalID string
	GivenName  *string
	FamilyName *string

	// Clinical descriptors. Region and Diagnosis are required; the rest are
	// optional and fill in later via merge or update.
	Region    string
	Etiology  *string
	Tissue    *string
	Diagnosis string
	Treatment *string

	// Phase is the raw phase string; empty defaults to "pre".
	Phase string

	// Uploads are the image files to attach.
	Uploads []Upload
}

// SubmitCaseOutput contains the result of a submission.
type SubmitCaseOutput struct {
	// Case is the created or merged case, with images loaded.
	Case *domain.Case

	// Patient is the patient the case is keyed to.
	Patient *domain.Patient

	// Merged is true when the submission was absorbed by an existing case.
	Merged bool

	// DedupOutcome reports how the duplicate check resolved.
	DedupOutcome DedupOutcome
}

// UpdateCaseInput contains mutable case fields. Nil pointers leave the field
// unchanged; Region, Diagnosis and Status are replaced only when non-empty.
type UpdateCaseInput struct {
	OwnerUserID int64
	CaseID      int64

	Region    string
	Diagnosis string
	Status    string
	Etiology  *string
	Tissue    *string
	Treatment *string
	Phase     string
}

// AddImagesInput contains the data to attach images to an existing case.
type AddImagesInput struct {
	OwnerUserID int64
	CaseID      int64
	Phase       string
	Uploads     []Upload
}

// =============================================================================
// Submission
// =============================================================================

// Submit processes one case submission end to end. When a duplicate exists
// inside the dedup window, the submission merges into it: null descriptors
// fill in and the images attach to the existing case. Otherwise a new case is
// created. On mid-flight failure, completed steps are compensated in reverse
// order and the original error is returned.
func (s *CaseService) Submit(ctx context.Context, input SubmitCaseInput) (*SubmitCaseOutput, error) {
	if err := s.validateSubmit(&input); err != nil {
		return nil, err
	}
	phase, err := domain.ParsePhase(input.Phase)
	if err != nil {
		return nil, domain.NewValidationError("phase", err.Error())
	}

	// Serialize submissions on the duplicate-lookup key so two concurrent
	// submissions cannot both miss the check and insert twice.
	lockKey := lock.Keys.CaseSubmission(input.OwnerUserID, input.NationalID, input.Region, input.Diagnosis)
	acquired, err := s.locker.AcquireWithRetry(ctx, lockKey, s.lockTTL, 3, 200*time.Millisecond)
	switch {
	case err != nil:
		// The lock is a best-effort race mitigation; a broken locker must
		// not take submissions down with it.
		s.logger.Warn().Err(err).Str("lock", lockKey).Msg("lock acquisition failed, proceeding unlocked")
	case !acquired:
		return nil, domain.NewConflictError(ErrSubmissionLocked, ErrSubmissionLocked.Error())
	default:
		defer s.locker.Release(context.WithoutCancel(ctx), lockKey)
	}

	patient, err := s.findOrCreatePatient(ctx, input)
	if err != nil {
		return nil, err
	}

	resolution := s.dedup.Resolve(ctx, input.NationalID, input.Region, input.Diagnosis, input.OwnerUserID, time.Now())
	if resolution.IsDuplicate() {
		return s.mergeSubmission(ctx, input, phase, patient, resolution)
	}
	return s.createSubmission(ctx, input, phase, patient, resolution)
}

// mergeSubmission absorbs the submission into an existing case.
func (s *CaseService) mergeSubmission(ctx context.Context, input SubmitCaseInput, phase domain.Phase, patient *domain.Patient, resolution Resolution) (*SubmitCaseOutput, error) {
	existing := resolution.Existing

	if existing.MergeDescriptors(input.Etiology, input.Tissue, input.Treatment) {
		if err := s.caseRepo.Update(ctx, existing); err != nil {
			s.logger.Error().Err(err).Int64("case_id", existing.ID).Msg("failed to merge descriptors")
			return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
		}
	}

	if _, err := s.images.Attach(ctx, existing.ID, input.OwnerUserID, phase, input.Uploads); err != nil {
		// The case keeps its pre-merge images; Attach cleaned up its own
		// partial work.
		return nil, err
	}

	if err := s.loadImages(ctx, existing); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.CasesMerged.Inc()
	}
	s.logger.Info().
		Int64("case_id", existing.ID).
		Int64("owner_id", input.OwnerUserID).
		Int("images", len(input.Uploads)).
		Msg("submission merged into existing case")

	return &SubmitCaseOutput{Case: existing, Patient: patient, Merged: true, DedupOutcome: resolution.Outcome}, nil
}

// createSubmission creates a new case and attaches the images, compensating
// the case row if attachment fails.
func (s *CaseService) createSubmission(ctx context.Context, input SubmitCaseInput, phase domain.Phase, patient *domain.Patient, resolution Resolution) (*SubmitCaseOutput, error) {
	c := domain.NewCase(patient.ID, input.NationalID, input.Region, input.Diagnosis, input.OwnerUserID)
	c.Etiology = input.Etiology
	c.Tissue = input.Tissue
	c.Treatment = input.Treatment
	c.Phase = &phase

	if err := s.caseRepo.Create(ctx, c); err != nil {
		s.logger.Error().Err(err).Int64("patient_id", patient.ID).Msg("failed to create case")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	images, err := s.images.Attach(ctx, c.ID, input.OwnerUserID, phase, input.Uploads)
	if err != nil {
		// Unwind the case row so a failed submission leaves nothing behind.
		cleanupCtx := context.WithoutCancel(ctx)
		if delErr := s.caseRepo.Delete(cleanupCtx, c.ID); delErr != nil {
			s.logger.Error().
				Err(errors.Join(err, delErr)).
				Int64("case_id", c.ID).
				Msg("compensation failed, orphan case row left behind")
		}
		return nil, err
	}
	c.Images = images

	if s.metrics != nil {
		s.metrics.CasesCreated.Inc()
	}
	s.logger.Info().
		Int64("case_id", c.ID).
		Int64("owner_id", input.OwnerUserID).
		Int("images", len(images)).
		Str("dedup_outcome", string(resolution.Outcome)).
		Msg("case created")

	return &SubmitCaseOutput{Case: c, Patient: patient, Merged: false, DedupOutcome: resolution.Outcome}, nil
}

func (s *CaseService) validateSubmit(input *SubmitCaseInput) error {
	input.NationalID = strings.TrimSpace(input.NationalID)
	input.Region = strings.TrimSpace(input.Region)
	input.Diagnosis = strings.TrimSpace(input.Diagnosis)

	if input.NationalID == "" {
		// Anonymous submissions still need a stable patient key.
		input.NationalID = syntheticNationalID(time.Now())
	}
	if input.Region == "" {
		return domain.NewValidationError("region", "region is required")
	}
	if input.Diagnosis == "" {
		return domain.NewValidationError("diagnosis", "diagnosis is required")
	}
	if s.maxImages > 0 && len(input.Uploads) > s.maxImages {
		return domain.NewValidationError("images", ErrTooManyImages.Error())
	}
	return nil
}

// findOrCreatePatient returns the owner's patient for the national id,
// creating it when absent. A concurrent create by the same owner is resolved
// by re-reading.
func (s *CaseService) findOrCreatePatient(ctx context.Context, input SubmitCaseInput) (*domain.Patient, error) {
	patient, err := s.patientRepo.GetByOwnerAndNationalID(ctx, input.OwnerUserID, input.NationalID)
	if err == nil {
		return patient, nil
	}
	if !errors.Is(err, domain.ErrPatientNotFound) {
		s.logger.Error().Err(err).Str("national_id", input.NationalID).Msg("failed to look up patient")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	patient = domain.NewPatient(input.OwnerUserID, input.NationalID, input.GivenName, input.FamilyName)
	err = s.patientRepo.Create(ctx, patient)
	if err == nil {
		s.logger.Info().Int64("patient_id", patient.ID).Int64("owner_id", input.OwnerUserID).Msg("patient created")
		return patient, nil
	}
	if errors.Is(err, domain.ErrPatientAlreadyExists) {
		// Lost a race with a concurrent submission; use the winner's row.
		return s.patientRepo.GetByOwnerAndNationalID(ctx, input.OwnerUserID, input.NationalID)
	}
	s.logger.Error().Err(err).Str("national_id", input.NationalID).Msg("failed to create patient")
	return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
}

// =============================================================================
// Reads
// =============================================================================

// Get returns a case with its images. Cases are only visible to their owner.
func (s *CaseService) Get(ctx context.Context, ownerUserID, caseID int64) (*domain.Case, error) {
	c, err := s.ownedCase(ctx, ownerUserID, caseID)
	if err != nil {
		return nil, err
	}
	if err := s.loadImages(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// List returns the owner's cases matching the filter, without images.
func (s *CaseService) List(ctx context.Context, ownerUserID int64, filter repository.CaseFilter) ([]*domain.Case, error) {
	cases, err := s.caseRepo.ListByOwner(ctx, ownerUserID, filter)
	if err != nil {
		s.logger.Error().Err(err).Int64("owner_id", ownerUserID).Msg("failed to list cases")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return cases, nil
}

// ListIncomplete returns the owner's cases missing a descriptor, most recent
// first, so they can be surfaced for completion.
func (s *CaseService) ListIncomplete(ctx context.Context, ownerUserID int64, limit int) ([]*domain.Case, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	cases, err := s.caseRepo.ListIncompleteByOwner(ctx, ownerUserID, limit)
	if err != nil {
		s.logger.Error().Err(err).Int64("owner_id", ownerUserID).Msg("failed to list incomplete cases")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return cases, nil
}

// ListPatients returns the owner's patient registry, most recent first.
func (s *CaseService) ListPatients(ctx context.Context, ownerUserID int64) ([]*domain.Patient, error) {
	patients, err := s.patientRepo.ListByOwner(ctx, ownerUserID)
	if err != nil {
		s.logger.Error().Err(err).Int64("owner_id", ownerUserID).Msg("failed to list patients")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return patients, nil
}

// =============================================================================
// Mutation
// =============================================================================

// Update modifies a case's descriptors. Unlike merge, updates overwrite.
func (s *CaseService) Update(ctx context.Context, input UpdateCaseInput) (*domain.Case, error) {
	c, err := s.ownedCase(ctx, input.OwnerUserID, input.CaseID)
	if err != nil {
		return nil, err
	}

	if input.Region != "" {
		c.Region = input.Region
	}
	if input.Diagnosis != "" {
		c.Diagnosis = input.Diagnosis
	}
	if input.Status != "" {
		c.Status = input.Status
	}
	if input.Etiology != nil {
		c.Etiology = input.Etiology
	}
	if input.Tissue != nil {
		c.Tissue = input.Tissue
	}
	if input.Treatment != nil {
		c.Treatment = input.Treatment
	}
	if input.Phase != "" {
		phase, err := domain.ParsePhase(input.Phase)
		if err != nil {
			return nil, domain.NewValidationError("phase", err.Error())
		}
		c.Phase = &phase
	}

	if err := s.caseRepo.Update(ctx, c); err != nil {
		s.logger.Error().Err(err).Int64("case_id", c.ID).Msg("failed to update case")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if err := s.loadImages(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// AddImages attaches more images to an existing case.
func (s *CaseService) AddImages(ctx context.Context, input AddImagesInput) ([]*domain.Image, error) {
	if len(input.Uploads) == 0 {
		return nil, domain.NewValidationError("images", "at least one image is required")
	}
	if s.maxImages > 0 && len(input.Uploads) > s.maxImages {
		return nil, domain.NewValidationError("images", ErrTooManyImages.Error())
	}
	phase, err := domain.ParsePhase(input.Phase)
	if err != nil {
		return nil, domain.NewValidationError("phase", err.Error())
	}

	if _, err := s.ownedCase(ctx, input.OwnerUserID, input.CaseID); err != nil {
		return nil, err
	}
	return s.images.Attach(ctx, input.CaseID, input.OwnerUserID, phase, input.Uploads)
}

// =============================================================================
// Deletion
// =============================================================================

// Delete removes a case, its image rows and their blobs, and returns how
// many images went with it. Database rows go first; blob removal is
// best-effort afterwards, so a blob-store outage can orphan blobs but never
// block the delete or leave dangling rows.
func (s *CaseService) Delete(ctx context.Context, ownerUserID, caseID int64) (int, error) {
	c, err := s.ownedCase(ctx, ownerUserID, caseID)
	if err != nil {
		return 0, err
	}

	images, err := s.imageRepo.ListByCase(ctx, caseID)
	if err != nil {
		s.logger.Error().Err(err).Int64("case_id", caseID).Msg("failed to list images for deletion")
		return 0, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if _, err := s.imageRepo.DeleteByCase(ctx, caseID); err != nil {
		s.logger.Error().Err(err).Int64("case_id", caseID).Msg("failed to delete image rows")
		return 0, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if err := s.caseRepo.Delete(ctx, caseID); err != nil {
		if errors.Is(err, domain.ErrCaseNotFound) {
			return 0, domain.NewNotFoundError(err, "case not found")
		}
		s.logger.Error().Err(err).Int64("case_id", caseID).Msg("failed to delete case")
		return 0, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	cleanupCtx := context.WithoutCancel(ctx)
	for _, img := range images {
		s.images.RemoveBlob(cleanupCtx, img.URL)
	}

	if s.metrics != nil {
		s.metrics.CasesDeleted.Inc()
	}
	s.logger.Info().
		Int64("case_id", c.ID).
		Int64("owner_id", ownerUserID).
		Int("images", len(images)).
		Msg("case deleted")
	return len(images), nil
}

// DeleteImage removes a single image row and, best-effort, its blob.
func (s *CaseService) DeleteImage(ctx context.Context, ownerUserID, imageID int64) error {
	img, err := s.imageRepo.GetByID(ctx, imageID)
	if err != nil {
		if errors.Is(err, domain.ErrImageNotFound) {
			return domain.NewNotFoundError(err, "image not found")
		}
		s.logger.Error().Err(err).Int64("image_id", imageID).Msg("failed to get image")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if _, err := s.ownedCase(ctx, ownerUserID, img.CaseID); err != nil {
		return err
	}

	if err := s.imageRepo.Delete(ctx, imageID); err != nil {
		if errors.Is(err, domain.ErrImageNotFound) {
			return domain.NewNotFoundError(err, "image not found")
		}
		s.logger.Error().Err(err).Int64("image_id", imageID).Msg("failed to delete image row")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.images.RemoveBlob(context.WithoutCancel(ctx), img.URL)
	s.logger.Info().Int64("image_id", imageID).Int64("case_id", img.CaseID).Msg("image deleted")
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// ownedCase loads a case and verifies ownership. Cases owned by another
// professional read as not found rather than forbidden, so ownership is not
// probeable.
func (s *CaseService) ownedCase(ctx context.Context, ownerUserID, caseID int64) (*domain.Case, error) {
	c, err := s.caseRepo.GetByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, domain.ErrCaseNotFound) {
			return nil, domain.NewNotFoundError(err, "case not found")
		}
		s.logger.Error().Err(err).Int64("case_id", caseID).Msg("failed to get case")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if c.UploadedBy != ownerUserID {
		return nil, domain.NewNotFoundError(domain.ErrCaseNotFound, "case not found")
	}
	return c, nil
}

// syntheticNationalID keys anonymous submissions. The millisecond timestamp
// keeps concurrent anonymous patients distinguishable without colliding with
// any real national id.
func syntheticNationalID(now time.Time) string {
	return "anon-" + strconv.FormatInt(now.UnixMilli(), 10)
}

func (s *CaseService) loadImages(ctx context.Context, c *domain.Case) error {
	images, err := s.imageRepo.ListByCase(ctx, c.ID)
	if err != nil {
		s.logger.Error().Err(err).Int64("case_id", c.ID).Msg("failed to load images")
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	c.Images = images
	return nil
}
