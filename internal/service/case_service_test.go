package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/casebook/internal/blobstore"
	"github.com/prn-tf/casebook/internal/domain"
	"github.com/prn-tf/casebook/internal/lock"
	"github.com/prn-tf/casebook/internal/repository"
)

type caseServiceFixture struct {
	svc      *CaseService
	cases    *MockCaseRepository
	patients *MockPatientRepository
	images   *MockImageRepository
	store    *blobstore.MemoryStore
}

func newCaseServiceFixture() *caseServiceFixture {
	cases := NewMockCaseRepository()
	patients := NewMockPatientRepository()
	images := NewMockImageRepository()
	store := blobstore.NewMemoryStore()

	logger := zerolog.Nop()
	imageSvc := NewImageService(images, store, store.Bucket(), nil, logger)
	dedup := NewDedupService(cases, 6, nil, logger)

	repos := &repository.Repositories{
		Cases:    cases,
		Patients: patients,
		Images:   images,
	}
	svc := NewCaseService(repos, dedup, imageSvc, lock.NewMemoryLocker(), 30*time.Second, 10, nil, logger)

	return &caseServiceFixture{
		svc:      svc,
		cases:    cases,
		patients: patients,
		images:   images,
		store:    store,
	}
}

// brokenLocker simulates a locker whose backend is unreachable.
type brokenLocker struct{}

func (brokenLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return false, errors.New("dial tcp: connection refused")
}

func (brokenLocker) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	return false, errors.New("dial tcp: connection refused")
}

func (brokenLocker) Release(ctx context.Context, key string) (bool, error) {
	return false, errors.New("dial tcp: connection refused")
}

func strptr(s string) *string { return &s }

func upload(name, content string) Upload {
	return Upload{
		Filename:    name,
		ContentType: "image/jpeg",
		Size:        int64(len(content)),
		Body:        strings.NewReader(content),
	}
}

func TestCaseService_SubmitNewCase(t *testing.T) {
	f := newCaseServiceFixture()

	out, err := f.svc.Submit(context.Background(), SubmitCaseInput{
		OwnerUserID: 1,
		NationalID:  "12345678",
		GivenName:   strptr("Ana"),
		Region:      "leg",
		Diagnosis:   "ulcer",
		Etiology:    strptr("venous"),
		Phase:       "pre",
		Uploads:     []Upload{upload("a.jpg", "photo-a"), upload("b.jpg", "photo-b")},
	})
	require.NoError(t, err)

	assert.False(t, out.Merged)
	assert.Equal(t, NoDuplicate, out.DedupOutcome)
	assert.Equal(t, "open", out.Case.Status)
	assert.Equal(t, "12345678", out.Case.NationalID)
	require.NotNil(t, out.Case.Phase)
	assert.Equal(t, domain.PhasePre, *out.Case.Phase)
	assert.Len(t, out.Case.Images, 2)

	// Patient was created lazily.
	patient, err := f.patients.GetByOwnerAndNationalID(context.Background(), 1, "12345678")
	require.NoError(t, err)
	assert.Equal(t, patient.ID, out.Case.PatientID)
	require.NotNil(t, out.Patient)
	assert.Equal(t, patient.ID, out.Patient.ID)

	// Blobs made it to storage.
	assert.Equal(t, 2, f.store.Len())
}

func TestCaseService_SubmitReusesPatient(t *testing.T) {
	f := newCaseServiceFixture()
	ctx := context.Background()

	first, err := f.svc.Submit(ctx, SubmitCaseInput{
		OwnerUserID: 1, NationalID: "12345678", Region: "leg", Diagnosis: "ulcer",
	})
	require.NoError(t, err)

	second, err := f.svc.Submit(ctx, SubmitCaseInput{
		OwnerUserID: 1, NationalID: "12345678", Region: "arm", Diagnosis: "burn",
	})
	require.NoError(t, err)

	assert.Equal(t, first.Case.PatientID, second.Case.PatientID)
	assert.NotEqual(t, first.Case.ID, second.Case.ID)
}

func TestCaseService_SubmitMergesDuplicate(t *testing.T) {
	f := newCaseServiceFixture()
	ctx := context.Background()

	first, err := f.svc.Submit(ctx, SubmitCaseInput{
		OwnerUserID: 1,
		NationalID:  "12345678",
		Region:      "leg",
		Diagnosis:   "ulcer",
		Etiology:    strptr("venous"),
		Uploads:     []Upload{upload("a.jpg", "photo-a")},
	})
	require.NoError(t, err)

	second, err := f.svc.Submit(ctx, SubmitCaseInput{
		OwnerUserID: 1,
		NationalID:  "12345678",
		Region:      "leg",
		Diagnosis:   "ulcer",
		Etiology:    strptr("arterial"), // must NOT overwrite
		Tissue:      strptr("granulation"),
		Uploads:     []Upload{upload("b.jpg", "photo-b")},
	})
	require.NoError(t, err)

	assert.True(t, second.Merged)
	assert.Equal(t, DuplicateFound, second.DedupOutcome)
	assert.Equal(t, first.Case.ID, second.Case.ID)

	// Null fields fill in; existing values survive.
	require.NotNil(t, second.Case.Etiology)
	assert.Equal(t, "venous", *second.Case.Etiology)
	require.NotNil(t, second.Case.Tissue)
	assert.Equal(t, "granulation", *second.Case.Tissue)

	// Both submissions' images hang off the one case.
	assert.Len(t, second.Case.Images, 2)
	assert.Len(t, f.cases.cases, 1)
}

func TestCaseService_SubmitFailsOpenOnDedupError(t *testing.T) {
	f := newCaseServiceFixture()
	f.cases.findErr = errors.New("connection refused")

	out, err := f.svc.Submit(context.Background(), SubmitCaseInput{
		OwnerUserID: 1, NationalID: "12345678", Region: "leg", Diagnosis: "ulcer",
	})
	require.NoError(t, err)
	assert.False(t, out.Merged)
	assert.Equal(t, CheckFailed, out.DedupOutcome)
}

func TestCaseService_SubmitProceedsWhenLockerDown(t *testing.T) {
	f := newCaseServiceFixture()
	f.svc.locker = brokenLocker{}

	out, err := f.svc.Submit(context.Background(), SubmitCaseInput{
		OwnerUserID: 1, NationalID: "12345678", Region: "leg", Diagnosis: "ulcer",
	})
	require.NoError(t, err)
	assert.False(t, out.Merged)
}

func TestCaseService_SubmitAnonymousGetsSyntheticID(t *testing.T) {
	f := newCaseServiceFixture()

	out, err := f.svc.Submit(context.Background(), SubmitCaseInput{
		OwnerUserID: 1, Region: "leg", Diagnosis: "ulcer",
	})
	require.NoError(t, err)
	assert.Regexp(t, `^anon-\d+$`, out.Case.NationalID)

	// The synthetic id keys a real patient row like any other.
	assert.Len(t, f.patients.patients, 1)
}

func TestCaseService_SubmitValidation(t *testing.T) {
	f := newCaseServiceFixture()
	ctx := context.Background()

	tests := []struct {
		name  string
		input SubmitCaseInput
		field string
	}{
		{
			name:  "missing region",
			input: SubmitCaseInput{OwnerUserID: 1, NationalID: "12345678", Diagnosis: "ulcer"},
			field: "region",
		},
		{
			name:  "missing diagnosis",
			input: SubmitCaseInput{OwnerUserID: 1, NationalID: "12345678", Region: "leg"},
			field: "diagnosis",
		},
		{
			name: "bad phase",
			input: SubmitCaseInput{
				OwnerUserID: 1, NationalID: "12345678", Region: "leg",
				Diagnosis: "ulcer", Phase: "during",
			},
			field: "phase",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Submit(ctx, tt.input)
			require.Error(t, err)
			assert.Equal(t, domain.KindValidation, domain.KindOf(err))

			var de *domain.Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.field, de.Field)
		})
	}
}

func TestCaseService_SubmitCompensatesOnUploadFailure(t *testing.T) {
	f := newCaseServiceFixture()
	f.store.FailPut = ".bad"

	_, err := f.svc.Submit(context.Background(), SubmitCaseInput{
		OwnerUserID: 1,
		NationalID:  "12345678",
		Region:      "leg",
		Diagnosis:   "ulcer",
		Uploads:     []Upload{upload("ok.jpg", "photo"), upload("broken.bad", "photo")},
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindStorage, domain.KindOf(err))

	// Case row unwound, no image rows, no stray blobs.
	assert.Empty(t, f.cases.cases)
	assert.Empty(t, f.images.images)
	assert.Equal(t, 0, f.store.Len())

	// The patient row survives on purpose; it is reusable state, not
	// submission-scoped work.
	_, err = f.patients.GetByOwnerAndNationalID(context.Background(), 1, "12345678")
	assert.NoError(t, err)
}

func TestCaseService_SubmitCompensatesOnRowFailure(t *testing.T) {
	f := newCaseServiceFixture()
	f.images.createErrAfter = 1 // second insert fails

	_, err := f.svc.Submit(context.Background(), SubmitCaseInput{
		OwnerUserID: 1,
		NationalID:  "12345678",
		Region:      "leg",
		Diagnosis:   "ulcer",
		Uploads:     []Upload{upload("a.jpg", "photo-a"), upload("b.jpg", "photo-b")},
	})
	require.Error(t, err)

	assert.Empty(t, f.cases.cases)
	assert.Empty(t, f.images.images)
	assert.Equal(t, 0, f.store.Len())
}

func TestCaseService_SubmitTooManyImages(t *testing.T) {
	f := newCaseServiceFixture()

	uploads := make([]Upload, 11)
	for i := range uploads {
		uploads[i] = upload("x.jpg", "photo")
	}
	_, err := f.svc.Submit(context.Background(), SubmitCaseInput{
		OwnerUserID: 1, NationalID: "12345678", Region: "leg", Diagnosis: "ulcer",
		Uploads: uploads,
	})
	require.Error(t, err)
	assert.Equal(t, domain.KindValidation, domain.KindOf(err))
}

func TestCaseService_Delete(t *testing.T) {
	f := newCaseServiceFixture()
	ctx := context.Background()

	out, err := f.svc.Submit(ctx, SubmitCaseInput{
		OwnerUserID: 1, NationalID: "12345678", Region: "leg", Diagnosis: "ulcer",
		Uploads: []Upload{upload("a.jpg", "photo-a"), upload("b.jpg", "photo-b")},
	})
	require.NoError(t, err)
	require.Equal(t, 2, f.store.Len())

	deleted, err := f.svc.Delete(ctx, 1, out.Case.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	assert.Empty(t, f.cases.cases)
	assert.Empty(t, f.images.images)
	assert.Equal(t, 0, f.store.Len())
}

func TestCaseService_DeleteSurvivesBlobFailure(t *testing.T) {
	f := newCaseServiceFixture()
	ctx := context.Background()

	out, err := f.svc.Submit(ctx, SubmitCaseInput{
		OwnerUserID: 1, NationalID: "12345678", Region: "leg", Diagnosis: "ulcer",
		Uploads: []Upload{upload("a.jpg", "photo-a")},
	})
	require.NoError(t, err)

	f.store.FailDelete = "/" // every key

	// Blob deletion is best-effort: rows go, the delete still succeeds.
	deleted, err := f.svc.Delete(ctx, 1, out.Case.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.Empty(t, f.cases.cases)
	assert.Empty(t, f.images.images)
	assert.Equal(t, 1, f.store.Len())
}

func TestCaseService_DeleteNotOwned(t *testing.T) {
	f := newCaseServiceFixture()
	ctx := context.Background()

	out, err := f.svc.Submit(ctx, SubmitCaseInput{
		OwnerUserID: 1, NationalID: "12345678", Region: "leg", Diagnosis: "ulcer",
	})
	require.NoError(t, err)

	_, err = f.svc.Delete(ctx, 2, out.Case.ID)
	require.Error(t, err)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))
	assert.Len(t, f.cases.cases, 1)
}

func TestCaseService_DeleteImage(t *testing.T) {
	f := newCaseServiceFixture()
	ctx := context.Background()

	out, err := f.svc.Submit(ctx, SubmitCaseInput{
		OwnerUserID: 1, NationalID: "12345678", Region: "leg", Diagnosis: "ulcer",
		Uploads: []Upload{upload("a.jpg", "photo-a"), upload("b.jpg", "photo-b")},
	})
	require.NoError(t, err)
	target := out.Case.Images[0]

	err = f.svc.DeleteImage(ctx, 1, target.ID)
	require.NoError(t, err)

	assert.Len(t, f.images.images, 1)
	assert.Equal(t, 1, f.store.Len())

	// The case itself is untouched.
	c, err := f.svc.Get(ctx, 1, out.Case.ID)
	require.NoError(t, err)
	assert.Len(t, c.Images, 1)
}

func TestCaseService_Update(t *testing.T) {
	f := newCaseServiceFixture()
	ctx := context.Background()

	out, err := f.svc.Submit(ctx, SubmitCaseInput{
		OwnerUserID: 1, NationalID: "12345678", Region: "leg", Diagnosis: "ulcer",
		Etiology: strptr("venous"),
	})
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, UpdateCaseInput{
		OwnerUserID: 1,
		CaseID:      out.Case.ID,
		Etiology:    strptr("arterial"), // updates overwrite, unlike merge
		Treatment:   strptr("compression"),
		Status:      "closed",
	})
	require.NoError(t, err)

	assert.Equal(t, "arterial", *updated.Etiology)
	assert.Equal(t, "compression", *updated.Treatment)
	assert.Equal(t, "closed", updated.Status)
	assert.Equal(t, "leg", updated.Region)
}

func TestCaseService_ListIncomplete(t *testing.T) {
	f := newCaseServiceFixture()
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, SubmitCaseInput{
		OwnerUserID: 1, NationalID: "11111111", Region: "leg", Diagnosis: "ulcer",
		Etiology: strptr("venous"), Tissue: strptr("granulation"), Treatment: strptr("compression"),
	})
	require.NoError(t, err)

	incompleteOut, err := f.svc.Submit(ctx, SubmitCaseInput{
		OwnerUserID: 1, NationalID: "22222222", Region: "arm", Diagnosis: "burn",
	})
	require.NoError(t, err)

	incomplete, err := f.svc.ListIncomplete(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, incomplete, 1)
	assert.Equal(t, incompleteOut.Case.ID, incomplete[0].ID)
}

func TestCaseService_ListPatients(t *testing.T) {
	f := newCaseServiceFixture()
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, SubmitCaseInput{
		OwnerUserID: 1, NationalID: "11111111", Region: "leg", Diagnosis: "ulcer",
	})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, SubmitCaseInput{
		OwnerUserID: 1, NationalID: "22222222", Region: "arm", Diagnosis: "burn",
	})
	require.NoError(t, err)

	// Another professional's patients stay out of the listing.
	_, err = f.svc.Submit(ctx, SubmitCaseInput{
		OwnerUserID: 2, NationalID: "33333333", Region: "leg", Diagnosis: "ulcer",
	})
	require.NoError(t, err)

	patients, err := f.svc.ListPatients(ctx, 1)
	require.NoError(t, err)
	require.Len(t, patients, 2)
	for _, p := range patients {
		assert.Equal(t, int64(1), p.OwnerUserID)
	}
}
