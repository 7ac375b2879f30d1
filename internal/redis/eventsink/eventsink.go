// Package eventsink publishes committed domain events to Redis: every event is
// appended to the notification stream and fanned out on the pub/sub channels
// of its auction and its recipient, in one function call.
package eventsink

import (
	"context"
	"encoding/json"
	"fmt"

	"auctionengine/internal/domain"
	"auctionengine/internal/notify"
	"auctionengine/internal/redis/redis_functions"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultMaxLen = 100_000
	systemChannel = "system:events"
)

func AuctionChannel(id uuid.UUID) string { return "auc:" + id.String() + ":events" }
func UserChannel(id uuid.UUID) string    { return "user:" + id.String() + ":events" }

// Channels lists the pub/sub channels an event is published on. Events tied
// to neither an auction nor a user go to the system channel.
func Channels(ev domain.Event) []string {
	var out []string
	if ev.AuctionID.Valid {
		out = append(out, AuctionChannel(ev.AuctionID.UUID))
	}
	if ev.UserID.Valid {
		out = append(out, UserChannel(ev.UserID.UUID))
	}
	if len(out) == 0 {
		out = append(out, systemChannel)
	}
	return out
}

type functionCaller interface {
	FCall(ctx context.Context, function string, keys []string, args ...interface{}) *redis.Cmd
}

type Sink struct {
	rdb    functionCaller
	stream string
	maxLen int64
}

var _ notify.Sink = (*Sink)(nil)

func New(rdb functionCaller, stream string, maxLen int64) *Sink {
	if maxLen <= 0 {
		maxLen = defaultMaxLen
	}
	return &Sink{rdb: rdb, stream: stream, maxLen: maxLen}
}

func (s *Sink) Name() string { return "redis_events" }

func (s *Sink) Deliver(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", ev.ID, err)
	}
	keys := append([]string{s.stream}, Channels(ev)...)
	return s.rdb.FCall(ctx, redis_functions.PublishEvent, keys, ev.ID.String(), payload, s.maxLen).Err()
}
