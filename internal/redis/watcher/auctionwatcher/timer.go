package auctionwatcher

import (
	"context"
	"fmt"
	"time"

	"auctionengine/internal/domain"
	"auctionengine/internal/notify"
	"auctionengine/internal/redis/redis_functions"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	timerKeyPrefix = "auc_t:"

	// keeps the timer from firing a hair before the end time
	timerSlack = 250 * time.Millisecond
)

func TimerKey(id uuid.UUID) string { return timerKeyPrefix + id.String() }

type timerStore interface {
	FCall(ctx context.Context, function string, keys []string, args ...interface{}) *redis.Cmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// TimerSink arms one expiring key per live auction. Going live or being
// extended re-arms it with a TTL up to the end time it carries, unless the
// key already holds a later end; cancelling removes it.
type TimerSink struct {
	rdb timerStore
	now func() time.Time
}

var _ notify.Sink = (*TimerSink)(nil)

func NewTimerSink(rdb timerStore) *TimerSink {
	return &TimerSink{rdb: rdb, now: time.Now}
}

func (s *TimerSink) Name() string { return "auction_timer" }

func (s *TimerSink) Deliver(ctx context.Context, ev domain.Event) error {
	if !ev.AuctionID.Valid {
		return nil
	}
	key := TimerKey(ev.AuctionID.UUID)

	switch ev.Type {
	case domain.EventAuctionLive, domain.EventAuctionExtended:
		raw, _ := ev.Data["end_time"].(string)
		end, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return fmt.Errorf("event %s: bad end_time %q: %w", ev.ID, raw, err)
		}
		ttl := max(end.Sub(s.now())+timerSlack, timerSlack)
		armed, err := s.rdb.FCall(ctx, redis_functions.ArmTimer, []string{key},
			end.UnixMilli(), ttl.Milliseconds()).Int()
		if err != nil {
			return err
		}
		if armed == 0 {
			zap.L().Debug("auction_timer_kept_later_end",
				zap.String("auction_id", ev.AuctionID.UUID.String()),
				zap.String("event_id", ev.ID.String()),
			)
		}
		return nil
	case domain.EventAuctionCancelled:
		return s.rdb.Del(ctx, key).Err()
	default:
		return nil
	}
}
