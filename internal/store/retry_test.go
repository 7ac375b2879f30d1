package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"auctionengine/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryRecoversFromTransientErrors(t *testing.T) {
	calls := 0
	err := RetryPolicy{Attempts: 3, Backoff: time.Millisecond}.Do(context.Background(), "test", func() error {
		calls++
		if calls < 3 {
			return ErrLockTimeout
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustionIsTryAgain(t *testing.T) {
	calls := 0
	err := RetryPolicy{Attempts: 2, Backoff: time.Millisecond}.Do(context.Background(), "test", func() error {
		calls++
		return ErrConflict
	})
	assert.Equal(t, 2, calls)
	assert.ErrorIs(t, err, domain.ErrTryAgain)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRetryDoesNotRepeatBusinessErrors(t *testing.T) {
	calls := 0
	err := RetryPolicy{Attempts: 5}.Do(context.Background(), "test", func() error {
		calls++
		return domain.ErrBidTooLow
	})
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, domain.ErrBidTooLow)
	assert.False(t, errors.Is(err, domain.ErrTryAgain))
}

func TestRetryNeverRepeatsUnknownCommit(t *testing.T) {
	calls := 0
	err := RetryPolicy{Attempts: 5}.Do(context.Background(), "test", func() error {
		calls++
		return ErrCommitUnknown
	})
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, domain.ErrTryAgain)
}
