// Package scheduler drives the time-based transitions: it activates auctions
// whose start has passed and settles those whose end has passed. A Redis
// lease keeps concurrent instances from sweeping at the same time.
package scheduler

import (
	"context"
	"time"

	"auctionengine/internal/services/settlement"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const leaseKey = "scheduler:lease"

type Activator interface {
	ActivateDue(ctx context.Context, now time.Time) (int, error)
}

type Settler interface {
	SettleDue(ctx context.Context, now time.Time) (settlement.SweepResult, error)
}

type Scheduler struct {
	rdb       redis.Cmdable
	interval  time.Duration
	activator Activator
	settler   Settler
	owner     string
	now       func() time.Time
}

func New(rdb redis.Cmdable, interval time.Duration, activator Activator, settler Settler) *Scheduler {
	return &Scheduler{
		rdb:       rdb,
		interval:  interval,
		activator: activator,
		settler:   settler,
		owner:     uuid.NewString(),
		now:       time.Now,
	}
}

// Run ticks every interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	tk := time.NewTicker(s.interval)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				s.Tick(ctx)
			}
		}
	}()
}

// Tick runs one sweep if this instance wins the lease. It reports whether
// the sweep ran.
func (s *Scheduler) Tick(ctx context.Context) bool {
	ok, err := s.rdb.SetNX(ctx, leaseKey, s.owner, s.interval).Result()
	if err != nil {
		zap.L().Warn("scheduler.lease_failed", zap.Error(err))
		return false
	}
	if !ok {
		return false
	}

	now := s.now().UTC()
	activated, err := s.activator.ActivateDue(ctx, now)
	if err != nil {
		zap.L().Error("scheduler.activate_failed", zap.Error(err))
	}

	res, err := s.settler.SettleDue(ctx, now)
	if err != nil {
		zap.L().Error("scheduler.settle_failed", zap.Error(err))
	}

	if activated > 0 || res.Settled > 0 || res.Failed > 0 {
		zap.L().Info("scheduler.sweep",
			zap.Int("activated", activated),
			zap.Int("settled", res.Settled),
			zap.Int("skipped", res.Skipped),
			zap.Int("failed", res.Failed))
	}
	return true
}
