package retrypolicy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialBackoffRespectsMaxAttempts(t *testing.T) {
	b := NewExponentialBackoff()
	b.MaxAttempts = 3

	_, ok := b.NextDelay(0)
	assert.True(t, ok)
	_, ok = b.NextDelay(2)
	assert.True(t, ok)
	_, ok = b.NextDelay(3)
	assert.False(t, ok)
}

func TestRetrySucceedsEventually(t *testing.T) {
	b := NewExponentialBackoff()
	b.InitialDelay = time.Millisecond
	b.MaxDelay = 2 * time.Millisecond

	attempts := 0
	err := Retry(context.Background(), b, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	b := NewExponentialBackoff()
	b.InitialDelay = time.Millisecond
	b.MaxDelay = 2 * time.Millisecond
	b.MaxAttempts = 2

	attempts := 0
	err := Retry(context.Background(), b, func() error {
		attempts++
		return errors.New("always fails")
	})

	require.Error(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	b := NewExponentialBackoff()
	b.InitialDelay = 50 * time.Millisecond
	b.MaxAttempts = 5

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, b, func() error {
		return errors.New("fails")
	})

	require.Error(t, err)
}
