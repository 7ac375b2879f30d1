package notify

import (
	"context"
	"sync"
	"time"

	"auctionengine/internal/domain"

	"go.uber.org/zap"
)

// Emitter accepts events produced by a committed unit of work. Emit never
// blocks the caller for longer than the enqueue timeout.
type Emitter interface {
	Emit(events ...domain.Event)
}

// Sink delivers one event to one destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev domain.Event) error
}

type Options struct {
	QueueSize      int
	Workers        int
	MaxAttempts    int
	Backoff        time.Duration
	EnqueueTimeout time.Duration
}

// Dispatcher fans events out to its sinks from a bounded queue. Delivery is
// at-least-once per sink within MaxAttempts; an event that cannot be queued
// is dropped and logged.
type Dispatcher struct {
	opts  Options
	sinks []Sink
	queue chan domain.Event

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(opts Options, sinks ...Sink) *Dispatcher {
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.EnqueueTimeout <= 0 {
		opts.EnqueueTimeout = 100 * time.Millisecond
	}
	return &Dispatcher{
		opts:  opts,
		sinks: sinks,
		queue: make(chan domain.Event, opts.QueueSize),
	}
}

// Start launches the workers. Deliveries carry ctx values but not its
// cancellation: events queued before Close are still delivered after ctx is
// done.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for ev := range d.queue {
				d.deliver(ctx, ev)
			}
		}()
	}
}

func (d *Dispatcher) Emit(events ...domain.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	for _, ev := range events {
		select {
		case d.queue <- ev:
			continue
		default:
		}

		timer := time.NewTimer(d.opts.EnqueueTimeout)
		select {
		case d.queue <- ev:
		case <-timer.C:
			zap.L().Error("notify.queue_full_dropped",
				zap.String("event_id", ev.ID.String()),
				zap.String("type", string(ev.Type)),
			)
		}
		timer.Stop()
	}
}

// Close stops accepting events and waits until the queue is drained.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, ev domain.Event) {
	for _, s := range d.sinks {
		backoff := d.opts.Backoff
		var err error
		for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
			if err = s.Deliver(ctx, ev); err == nil {
				break
			}
			zap.L().Warn("notify.delivery_retry",
				zap.String("sink", s.Name()),
				zap.String("event_id", ev.ID.String()),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			if attempt == d.opts.MaxAttempts || ctx.Err() != nil {
				break
			}
			select {
			case <-ctx.Done():
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		if err != nil {
			zap.L().Error("notify.delivery_failed",
				zap.String("sink", s.Name()),
				zap.String("event_id", ev.ID.String()),
				zap.String("type", string(ev.Type)),
				zap.Error(err),
			)
		}
	}
}

type discard struct{}

func (discard) Emit(...domain.Event) {}

// Discard drops every event.
var Discard Emitter = discard{}
