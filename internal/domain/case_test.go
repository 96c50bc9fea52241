package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePhase(t *testing.T) {
	tests := []struct {
		in      string
		want    Phase
		wantErr bool
	}{
		{"pre", PhasePre, false},
		{"PRE", PhasePre, false},
		{"Intra", PhaseIntra, false},
		{"post", PhasePost, false},
		{"", PhasePre, false},
		{"during", "", true},
		{"pre ", "", true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.in), func(t *testing.T) {
			got, err := ParsePhase(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidPhase)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCaseMergeDescriptors(t *testing.T) {
	trauma := "trauma"
	bone := "bone"
	debride := "debridement"
	other := "infection"

	c := &Case{Etiology: &trauma}

	changed := c.MergeDescriptors(&other, &bone, nil)
	assert.True(t, changed)
	assert.Equal(t, "trauma", *c.Etiology, "existing value must not be overwritten")
	assert.Equal(t, "bone", *c.Tissue)
	assert.Nil(t, c.Treatment)

	changed = c.MergeDescriptors(nil, nil, &debride)
	assert.True(t, changed)
	assert.Equal(t, "debridement", *c.Treatment)

	// Everything filled; nothing left to merge.
	changed = c.MergeDescriptors(&other, &other, &other)
	assert.False(t, changed)
	assert.Equal(t, "trauma", *c.Etiology)
}

func TestCaseIsComplete(t *testing.T) {
	v := "x"
	c := NewCase(1, "123", "leg", "ulcer", 1)
	assert.False(t, c.IsComplete())

	c.Etiology, c.Tissue = &v, &v
	assert.False(t, c.IsComplete())

	c.Treatment = &v
	assert.True(t, c.IsComplete())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(ErrCaseNotFound))
	assert.Equal(t, KindNotFound, KindOf(fmt.Errorf("wrapped: %w", ErrImageNotFound)))
	assert.Equal(t, KindConflict, KindOf(ErrPatientAlreadyExists))
	assert.Equal(t, KindValidation, KindOf(ErrInvalidPhase))
	assert.Equal(t, KindValidation, KindOf(NewValidationError("region", "required")))
	assert.Equal(t, KindStorage, KindOf(errors.New("connection refused")))
	assert.Equal(t, KindStorage, KindOf(NewStorageError(errors.New("timeout"), "upload failed")))
}

func TestErrorMessage(t *testing.T) {
	e := NewValidationError("phase", "must be pre, intra or post")
	assert.Equal(t, "validation: must be pre, intra or post (field phase)", e.Error())

	e2 := NewNotFoundError(ErrCaseNotFound, "case not found")
	assert.ErrorIs(t, e2, ErrCaseNotFound)
}
