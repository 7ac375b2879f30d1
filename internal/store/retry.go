package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auctionengine/internal/domain"

	"go.uber.org/zap"
)

type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// Do runs fn until it succeeds, fails for a non-transient reason, or the
// attempts are used up. Exhaustion and unknown commit outcomes are reported
// as domain.ErrTryAgain wrapping the last cause.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func() error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.Backoff

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrCommitUnknown) {
			return fmt.Errorf("%w: %w", domain.ErrTryAgain, err)
		}
		if !IsTransient(err) {
			return err
		}
		zap.L().Debug("store.retry",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", domain.ErrTryAgain, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	zap.L().Warn("store.retry_exhausted", zap.String("op", op), zap.Int("attempts", attempts), zap.Error(err))
	return fmt.Errorf("%w: %w", domain.ErrTryAgain, err)
}
