package syncnotify

import (
	"context"
	"fmt"

	"auctionengine/internal/domain"
	"auctionengine/internal/redis/streamconsumer"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Saver interface {
	SaveNotification(ctx context.Context, ev domain.Event) error
}

// Handler persists one stream entry. Saves are idempotent by event id, so an
// entry redelivered after a crash between insert and ack is harmless.
func Handler(saver Saver) streamconsumer.Handler {
	return func(ctx context.Context, ev domain.Event) error {
		if err := saver.SaveNotification(ctx, ev); err != nil {
			return fmt.Errorf("save notification %s: %w", ev.ID, err)
		}
		zap.L().Debug("notification_persisted",
			zap.String("event_id", ev.ID.String()),
			zap.String("type", string(ev.Type)))
		return nil
	}
}

// Run tails the notification stream as a member of group and persists every
// event into the notifications table.
func Run(ctx context.Context, rdc *redis.Client, saver Saver, stream, group, consumer string) {
	c := streamconsumer.New(rdc, stream, group, consumer, Handler(saver))
	go func() {
		if err := c.Run(ctx); err != nil {
			zap.L().Error("syncnotify.stopped", zap.Error(err))
		}
	}()
}
