package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLockerAcquireRelease(t *testing.T) {
	ml := NewMemoryLocker()
	ctx := context.Background()
	key := Keys.CaseSubmission(1, "12345678", "leg", "ulcer")

	acquired, err := ml.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	// Held lock blocks a second acquire.
	acquired, err = ml.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, acquired)

	released, err := ml.Release(ctx, key)
	require.NoError(t, err)
	assert.True(t, released)

	acquired, err = ml.Acquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestMemoryLockerExpiry(t *testing.T) {
	ml := NewMemoryLocker()
	ctx := context.Background()

	acquired, err := ml.Acquire(ctx, "k", 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, acquired)

	time.Sleep(20 * time.Millisecond)

	// Expired locks are acquirable even before the cleanup loop runs.
	acquired, err = ml.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestMemoryLockerAcquireWithRetry(t *testing.T) {
	ml := NewMemoryLocker()
	ctx := context.Background()

	acquired, err := ml.Acquire(ctx, "k", 30*time.Millisecond)
	require.NoError(t, err)
	require.True(t, acquired)

	// The holder's TTL elapses while we retry.
	acquired, err = ml.AcquireWithRetry(ctx, "k", time.Minute, 5, 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestMemoryLockerReleaseUnheld(t *testing.T) {
	ml := NewMemoryLocker()

	released, err := ml.Release(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, released)
}

func TestMemoryLockerCanceledContext(t *testing.T) {
	ml := NewMemoryLocker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ml.Acquire(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
