// Package streamconsumer reads the notification stream through a consumer
// group. An entry is acknowledged only after its handler succeeded, so a
// crashed or failing consumer picks it up again from its pending list.
package streamconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"auctionengine/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	batchSize  = 16
	blockFor   = 2 * time.Second
	retryPause = 300 * time.Millisecond
)

type Handler func(ctx context.Context, ev domain.Event) error

type Consumer struct {
	rdb    redis.Cmdable
	stream string
	group  string
	name   string
	handle Handler
}

func New(rdb redis.Cmdable, stream, group, name string, handle Handler) *Consumer {
	return &Consumer{rdb: rdb, stream: stream, group: group, name: name, handle: handle}
}

// Run consumes until ctx is cancelled. Pending entries of this consumer are
// drained before new ones are read.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.ensureGroup(ctx); err != nil {
		return fmt.Errorf("ensure group %s: %w", c.group, err)
	}
	log := zap.L().With(zap.String("stream", c.stream), zap.String("group", c.group), zap.String("consumer", c.name))

	for ctx.Err() == nil {
		msgs, err := c.read(ctx, "0", 0)
		if err == nil && len(msgs) == 0 {
			msgs, err = c.read(ctx, ">", blockFor)
		}
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				break
			}
			log.Warn("stream_read_failed", zap.Error(err))
			sleep(ctx, retryPause)
			continue
		}

		for _, m := range msgs {
			if err := c.process(ctx, m); err != nil {
				// not acked; it stays pending and is retried on the next pass
				log.Warn("stream_entry_failed", zap.String("entry_id", m.ID), zap.Error(err))
				sleep(ctx, retryPause)
				break
			}
		}
	}
	return nil
}

func (c *Consumer) ensureGroup(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (c *Consumer) read(ctx context.Context, id string, block time.Duration) ([]redis.XMessage, error) {
	streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.name,
		Streams:  []string{c.stream, id},
		Count:    batchSize,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []redis.XMessage
	for _, s := range streams {
		out = append(out, s.Messages...)
	}
	return out, nil
}

func (c *Consumer) process(ctx context.Context, m redis.XMessage) error {
	ev, err := Decode(m.Values)
	if err != nil {
		// a malformed entry would block the group forever
		zap.L().Error("stream_entry_dropped", zap.String("stream", c.stream), zap.String("entry_id", m.ID), zap.Error(err))
		return c.rdb.XAck(ctx, c.stream, c.group, m.ID).Err()
	}
	if err := c.handle(ctx, ev); err != nil {
		return err
	}
	return c.rdb.XAck(ctx, c.stream, c.group, m.ID).Err()
}

// Decode reads the event written by the publish function.
func Decode(values map[string]interface{}) (domain.Event, error) {
	var ev domain.Event
	raw, ok := values["payload"]
	if !ok {
		return ev, errors.New("missing field payload")
	}
	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return ev, fmt.Errorf("unsupported payload type %T", raw)
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, fmt.Errorf("decode payload: %w", err)
	}
	return ev, nil
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
