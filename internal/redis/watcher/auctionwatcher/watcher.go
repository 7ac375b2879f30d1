package auctionwatcher

import (
	"context"
	"errors"
	"strings"

	"auctionengine/internal/domain"
	"auctionengine/internal/services/settlement"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Settler interface {
	Settle(ctx context.Context, auctionID uuid.UUID, opts settlement.Options) (*domain.Settlement, error)
}

// Run listens to key-expiry events and settles the auction whose timer
// fired. Run must be started once at service boot.
func Run(ctx context.Context, rdb *redis.Client, svc Settler) {
	if err := rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
		zap.L().Warn("auctionwatcher.config_set", zap.Error(err))
	}
	ps := rdb.PSubscribe(ctx, "__keyevent@*__:expired")
	defer ps.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-ps.Channel():
			if !ok {
				return
			}
			if id, ok := ParseTimerKey(m.Payload); ok {
				OnExpired(ctx, svc, id)
			}
		}
	}
}

// OnExpired settles an auction whose end timer fired. An auction that was
// extended after the timer was armed is not due yet; its new timer covers it.
func OnExpired(ctx context.Context, svc Settler, id uuid.UUID) {
	st, err := svc.Settle(ctx, id, settlement.Options{})
	switch {
	case err == nil:
		zap.L().Info("auction_timer_settled",
			zap.String("auction_id", id.String()),
			zap.String("outcome", string(st.Outcome)))
	case errors.Is(err, domain.ErrNotReadyToSettle), errors.Is(err, domain.ErrAuctionNotFound):
		zap.L().Debug("auction_timer_skipped", zap.String("auction_id", id.String()), zap.Error(err))
	default:
		// the scheduler sweep retries it
		zap.L().Warn("auction_timer_settle_failed", zap.String("auction_id", id.String()), zap.Error(err))
	}
}

func ParseTimerKey(key string) (uuid.UUID, bool) {
	if !strings.HasPrefix(key, timerKeyPrefix) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimPrefix(key, timerKeyPrefix))
	return id, err == nil
}
