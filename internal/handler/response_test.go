package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/casebook/internal/domain"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorDetail {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{
			name:       "validation",
			err:        domain.NewValidationError("region", "region is required"),
			wantStatus: http.StatusBadRequest,
			wantKind:   "validation",
		},
		{
			name:       "conflict",
			err:        domain.NewConflictError(domain.ErrFavoriteAlreadyExists, "image already marked as favorite"),
			wantStatus: http.StatusConflict,
			wantKind:   "conflict",
		},
		{
			name:       "not found",
			err:        domain.NewNotFoundError(domain.ErrCaseNotFound, "case not found"),
			wantStatus: http.StatusNotFound,
			wantKind:   "not_found",
		},
		{
			name:       "bare sentinel",
			err:        domain.ErrCaseNotFound,
			wantStatus: http.StatusNotFound,
			wantKind:   "not_found",
		},
		{
			name:       "unclassified",
			err:        errors.New("connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantKind:   "storage",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			detail := decodeError(t, rec)
			assert.Equal(t, tt.wantKind, detail.Kind)
			assert.NotEmpty(t, detail.Message)
		})
	}
}

func TestWriteErrorMasksStorageDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, domain.NewStorageError(errors.New("dial tcp 10.0.0.5:5432: i/o timeout"), "upload failed"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, "internal server error", detail.Message)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestWriteErrorIncludesField(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, domain.NewValidationError("phase", "must be pre, intra or post"))

	detail := decodeError(t, rec)
	assert.Equal(t, "phase", detail.Field)
	assert.Equal(t, "must be pre, intra or post", detail.Message)
}
