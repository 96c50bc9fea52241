package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/casebook/internal/domain"
)

func newDedupService(repo *MockCaseRepository, windowMonths int) *DedupService {
	return NewDedupService(repo, windowMonths, nil, zerolog.Nop())
}

func seedCase(repo *MockCaseRepository, nationalID, region, diagnosis string, owner int64, createdAt time.Time) *domain.Case {
	c := domain.NewCase(1, nationalID, region, diagnosis, owner)
	c.CreatedAt = createdAt
	repo.Create(context.Background(), c)
	return c
}

func TestDedupService_Resolve(t *testing.T) {
	now := time.Now().UTC()

	t.Run("no match", func(t *testing.T) {
		repo := NewMockCaseRepository()
		svc := newDedupService(repo, 6)

		res := svc.Resolve(context.Background(), "12345678", "leg", "ulcer", 1, now)
		assert.Equal(t, NoDuplicate, res.Outcome)
		assert.False(t, res.IsDuplicate())
		assert.Nil(t, res.Existing)
	})

	t.Run("match inside window", func(t *testing.T) {
		repo := NewMockCaseRepository()
		existing := seedCase(repo, "12345678", "leg", "ulcer", 1, now.AddDate(0, -2, 0))
		svc := newDedupService(repo, 6)

		res := svc.Resolve(context.Background(), "12345678", "leg", "ulcer", 1, now)
		require.Equal(t, DuplicateFound, res.Outcome)
		assert.True(t, res.IsDuplicate())
		assert.Equal(t, existing.ID, res.Existing.ID)
	})

	t.Run("match outside window is not a duplicate", func(t *testing.T) {
		repo := NewMockCaseRepository()
		seedCase(repo, "12345678", "leg", "ulcer", 1, now.AddDate(0, -7, 0))
		svc := newDedupService(repo, 6)

		res := svc.Resolve(context.Background(), "12345678", "leg", "ulcer", 1, now)
		assert.Equal(t, NoDuplicate, res.Outcome)
	})

	t.Run("other professional's case is not a duplicate", func(t *testing.T) {
		repo := NewMockCaseRepository()
		seedCase(repo, "12345678", "leg", "ulcer", 2, now.AddDate(0, -1, 0))
		svc := newDedupService(repo, 6)

		res := svc.Resolve(context.Background(), "12345678", "leg", "ulcer", 1, now)
		assert.Equal(t, NoDuplicate, res.Outcome)
	})

	t.Run("different diagnosis is not a duplicate", func(t *testing.T) {
		repo := NewMockCaseRepository()
		seedCase(repo, "12345678", "leg", "ulcer", 1, now.AddDate(0, -1, 0))
		svc := newDedupService(repo, 6)

		res := svc.Resolve(context.Background(), "12345678", "leg", "burn", 1, now)
		assert.Equal(t, NoDuplicate, res.Outcome)
	})

	t.Run("most recent match wins", func(t *testing.T) {
		repo := NewMockCaseRepository()
		seedCase(repo, "12345678", "leg", "ulcer", 1, now.AddDate(0, -5, 0))
		latest := seedCase(repo, "12345678", "leg", "ulcer", 1, now.AddDate(0, -1, 0))
		svc := newDedupService(repo, 6)

		res := svc.Resolve(context.Background(), "12345678", "leg", "ulcer", 1, now)
		require.Equal(t, DuplicateFound, res.Outcome)
		assert.Equal(t, latest.ID, res.Existing.ID)
	})

	t.Run("lookup failure fails open", func(t *testing.T) {
		repo := NewMockCaseRepository()
		repo.findErr = errors.New("connection refused")
		svc := newDedupService(repo, 6)

		res := svc.Resolve(context.Background(), "12345678", "leg", "ulcer", 1, now)
		assert.Equal(t, CheckFailed, res.Outcome)
		assert.False(t, res.IsDuplicate())
		assert.Error(t, res.Err)
	})

	t.Run("zero window disables the check", func(t *testing.T) {
		repo := NewMockCaseRepository()
		seedCase(repo, "12345678", "leg", "ulcer", 1, now.AddDate(0, -1, 0))
		svc := newDedupService(repo, 0)

		res := svc.Resolve(context.Background(), "12345678", "leg", "ulcer", 1, now)
		assert.Equal(t, NoDuplicate, res.Outcome)
	})
}
