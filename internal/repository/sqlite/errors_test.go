package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTimeLexicographicOrder(t *testing.T) {
	// The half-second value would lose its trailing zeros under a
	// variable-width layout and sort after the later instant.
	a := time.Date(2026, 8, 1, 12, 0, 0, 500000000, time.UTC)
	b := time.Date(2026, 8, 1, 12, 0, 0, 510000000, time.UTC)

	assert.Less(t, formatTime(a), formatTime(b))
	assert.Len(t, formatTime(a), len(formatTime(b)))
}

func TestFormatTimeParseTimeRoundTrip(t *testing.T) {
	in := time.Date(2026, 8, 1, 12, 0, 0, 123456789, time.UTC)

	out, err := parseTime(formatTime(in))
	require.NoError(t, err)
	assert.True(t, out.Equal(in))
}

func TestParseTimeRejectsCorruptValue(t *testing.T) {
	_, err := parseTime("not-a-timestamp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not-a-timestamp")
}
