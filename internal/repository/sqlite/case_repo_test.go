package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/casebook/internal/domain"
	"github.com/prn-tf/casebook/internal/repository"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := NewDB(ctx, Config{
		Path:            ":memory:",
		MaxOpenConns:    1,
		JournalMode:     "MEMORY",
		SynchronousMode: "OFF",
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))
	return db
}

func seedOwnerAndPatient(t *testing.T, db *DB, nationalID string) (*domain.User, *domain.Patient) {
	t.Helper()
	ctx := context.Background()

	user := domain.NewUser("Ada", "Lovelace", "ada@example.com", "hash")
	require.NoError(t, NewUserRepository(db).Create(ctx, user))

	patient := domain.NewPatient(user.ID, nationalID, nil, nil)
	require.NoError(t, NewPatientRepository(db).Create(ctx, patient))

	return user, patient
}

func seedCase(t *testing.T, repo repository.CaseRepository, patient *domain.Patient, createdAt time.Time) *domain.Case {
	t.Helper()
	c := domain.NewCase(patient.ID, patient.NationalID, "leg", "ulcer", patient.OwnerUserID)
	c.CreatedAt = createdAt
	c.UpdatedAt = createdAt
	require.NoError(t, repo.Create(context.Background(), c))
	return c
}

// Timestamps live in a TEXT column, so ORDER BY compares strings. Two cases
// in the same second with different fractional parts must still come back
// newest first.
func TestCaseRepository_FindLatestMatchFractionalSeconds(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, patient := seedOwnerAndPatient(t, db, "12345678")
	cases := NewCaseRepository(db)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	earlier := seedCase(t, cases, patient, base.Add(500*time.Millisecond))
	later := seedCase(t, cases, patient, base.Add(510*time.Millisecond))

	got, err := cases.FindLatestMatch(ctx, repository.DuplicateQuery{
		NationalID: patient.NationalID,
		Region:     "leg",
		Diagnosis:  "ulcer",
		UploadedBy: patient.OwnerUserID,
		From:       base.AddDate(0, -6, 0),
		To:         base.Add(time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, later.ID, got.ID)
	assert.NotEqual(t, earlier.ID, got.ID)
	assert.True(t, got.CreatedAt.Equal(later.CreatedAt))
}

func TestCaseRepository_FindLatestMatchWindowBounds(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	_, patient := seedOwnerAndPatient(t, db, "12345678")
	cases := NewCaseRepository(db)

	now := time.Date(2026, 8, 1, 12, 0, 0, 250000000, time.UTC)
	inside := seedCase(t, cases, patient, now.AddDate(0, -6, 0))
	seedCase(t, cases, patient, now.AddDate(0, -6, 0).Add(-time.Second))

	got, err := cases.FindLatestMatch(ctx, repository.DuplicateQuery{
		NationalID: patient.NationalID,
		Region:     "leg",
		Diagnosis:  "ulcer",
		UploadedBy: patient.OwnerUserID,
		From:       now.AddDate(0, -6, 0),
		To:         now,
	})
	require.NoError(t, err)
	assert.Equal(t, inside.ID, got.ID)
}

func TestCaseRepository_TimestampRoundTrip(t *testing.T) {
	db := newTestDB(t)
	_, patient := seedOwnerAndPatient(t, db, "12345678")
	cases := NewCaseRepository(db)

	createdAt := time.Date(2026, 8, 1, 12, 0, 0, 123456789, time.UTC)
	c := seedCase(t, cases, patient, createdAt)

	got, err := cases.GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.Equal(createdAt))
}
