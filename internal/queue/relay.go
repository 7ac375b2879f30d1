package queue

import (
	"context"
	"fmt"
	"time"

	"auctionengine/internal/domain"
	"auctionengine/internal/redis/streamconsumer"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

type publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// RelayHandler forwards a stream entry to Kafka. The entry is acked only
// after the broker confirmed the write.
func RelayHandler(p publisher) streamconsumer.Handler {
	return func(ctx context.Context, ev domain.Event) error {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		if err := p.Publish(pubCtx, ev); err != nil {
			return fmt.Errorf("publish audit %s: %w", ev.ID, err)
		}
		return nil
	}
}

// RunRelay tails the notification stream in its own consumer group and
// copies every event to the audit topic.
func RunRelay(ctx context.Context, rdb *redis.Client, p *Producer, stream, group, consumer string) {
	c := streamconsumer.New(rdb, stream, group, consumer, RelayHandler(p))
	go func() {
		if err := c.Run(ctx); err != nil {
			zap.L().Error("audit_relay.stopped", zap.Error(err))
		}
	}()
}
