package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/casebook/internal/domain"
	"github.com/prn-tf/casebook/internal/metrics"
	"github.com/prn-tf/casebook/internal/repository"
)

// DedupOutcome classifies a duplicate check result. The check failing is a
// distinct outcome, not an error: submission proceeds either way, and callers
// that care (metrics, logs) can tell a clean miss from a failed lookup.
type DedupOutcome string

const (
	// NoDuplicate means the lookup ran and found nothing in the window.
	NoDuplicate DedupOutcome = "no_duplicate"

	// DuplicateFound means a matching case exists inside the window.
	DuplicateFound DedupOutcome = "duplicate_found"

	// CheckFailed means the lookup itself failed. The submission is treated
	// as non-duplicate so a database hiccup never blocks clinical intake.
	CheckFailed DedupOutcome = "check_failed"
)

// Resolution is the result of a duplicate check.
type Resolution struct {
	Outcome DedupOutcome

	// Existing is the matched case when Outcome is DuplicateFound.
	Existing *domain.Case

	// Err is the lookup failure when Outcome is CheckFailed. Informational;
	// callers proceed regardless.
	Err error
}

// IsDuplicate reports whether an existing case should absorb the submission.
func (r Resolution) IsDuplicate() bool {
	return r.Outcome == DuplicateFound
}

// DedupService decides whether a submission duplicates a recent case.
type DedupService struct {
	caseRepo     repository.CaseRepository
	windowMonths int
	metrics      *metrics.Metrics
	logger       zerolog.Logger
}

// NewDedupService creates a new DedupService. windowMonths is how many
// calendar months back the check looks; zero disables it.
func NewDedupService(
	caseRepo repository.CaseRepository,
	windowMonths int,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *DedupService {
	return &DedupService{
		caseRepo:     caseRepo,
		windowMonths: windowMonths,
		metrics:      m,
		logger:       logger.With().Str("service", "dedup").Logger(),
	}
}

// Resolve looks for the most recent case with the same national id, region
// and diagnosis submitted by the same professional within the window ending
// at "at". A match older than the window, or owned by another professional,
// is not a duplicate.
//
// The check fails open: if the lookup errors, Resolve returns CheckFailed
// and the submission continues as a new case.
func (s *DedupService) Resolve(ctx context.Context, nationalID, region, diagnosis string, ownerUserID int64, at time.Time) Resolution {
	if s.windowMonths <= 0 {
		return s.resolved(Resolution{Outcome: NoDuplicate})
	}

	q := repository.DuplicateQuery{
		NationalID: nationalID,
		Region:     region,
		Diagnosis:  diagnosis,
		UploadedBy: ownerUserID,
		From:       at.AddDate(0, -s.windowMonths, 0),
		To:         at,
	}

	existing, err := s.caseRepo.FindLatestMatch(ctx, q)
	if err != nil {
		if errors.Is(err, domain.ErrCaseNotFound) {
			return s.resolved(Resolution{Outcome: NoDuplicate})
		}
		s.logger.Warn().Err(err).
			Str("national_id", nationalID).
			Str("region", region).
			Str("diagnosis", diagnosis).
			Int64("owner_id", ownerUserID).
			Msg("duplicate check failed, proceeding as new case")
		return s.resolved(Resolution{Outcome: CheckFailed, Err: err})
	}

	s.logger.Info().
		Int64("case_id", existing.ID).
		Str("national_id", nationalID).
		Msg("duplicate case found")
	return s.resolved(Resolution{Outcome: DuplicateFound, Existing: existing})
}

func (s *DedupService) resolved(r Resolution) Resolution {
	if s.metrics != nil {
		s.metrics.DedupOutcomes.WithLabelValues(string(r.Outcome)).Inc()
	}
	return r
}
