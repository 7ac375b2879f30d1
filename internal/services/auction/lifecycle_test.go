package auction

import (
	"testing"
	"time"

	"auctionengine/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extendable(end time.Time) *domain.Auction {
	return &domain.Auction{
		Status:                   domain.AuctionLive,
		EndTime:                  end,
		AutoExtend:               true,
		ExtensionTriggerMinutes:  5,
		ExtensionDurationMinutes: 10,
		MaxExtensions:            1,
	}
}

func TestTryActivate(t *testing.T) {
	now := time.Now()
	a := &domain.Auction{Status: domain.AuctionScheduled, StartTime: now.Add(time.Minute)}

	assert.False(t, TryActivate(a, now))
	assert.Equal(t, domain.AuctionScheduled, a.Status)

	assert.True(t, TryActivate(a, now.Add(time.Minute)))
	assert.Equal(t, domain.AuctionLive, a.Status)

	// Already live.
	assert.False(t, TryActivate(a, now.Add(time.Hour)))
}

func TestExtensionAppliesOnceWithinCap(t *testing.T) {
	end := time.Date(2025, 7, 27, 18, 0, 0, 0, time.UTC)
	a := extendable(end)

	require.True(t, ApplyExtension(a, end.Add(-time.Minute)))
	assert.Equal(t, end.Add(10*time.Minute), a.EndTime)
	assert.Equal(t, 1, a.ExtensionsUsed)

	assert.False(t, ApplyExtension(a, a.EndTime.Add(-time.Minute)))
	assert.Equal(t, end.Add(10*time.Minute), a.EndTime)
}

func TestExtensionOutsideWindow(t *testing.T) {
	end := time.Now().Add(time.Hour)
	tests := []struct {
		name   string
		mutate func(a *domain.Auction)
		bidAt  time.Time
	}{
		{"before trigger window", func(*domain.Auction) {}, end.Add(-6 * time.Minute)},
		{"auto extend off", func(a *domain.Auction) { a.AutoExtend = false }, end.Add(-time.Minute)},
		{"not live", func(a *domain.Auction) { a.Status = domain.AuctionEnded }, end.Add(-time.Minute)},
		{"no extensions allowed", func(a *domain.Auction) { a.MaxExtensions = 0 }, end.Add(-time.Minute)},
		{"after end", func(*domain.Auction) {}, end.Add(time.Second)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := extendable(end)
			tt.mutate(a)
			assert.False(t, ApplyExtension(a, tt.bidAt))
			assert.Equal(t, end, a.EndTime)
		})
	}
}

func TestExtensionAtTriggerBoundary(t *testing.T) {
	end := time.Now().Add(time.Hour)
	a := extendable(end)
	assert.True(t, ApplyExtension(a, end.Add(-5*time.Minute)))
}

func TestCancel(t *testing.T) {
	for _, st := range []domain.AuctionStatus{domain.AuctionScheduled, domain.AuctionLive} {
		a := &domain.Auction{Status: st}
		require.NoError(t, Cancel(a))
		assert.Equal(t, domain.AuctionCancelled, a.Status)
	}
	for _, st := range []domain.AuctionStatus{domain.AuctionEnded, domain.AuctionCancelled} {
		a := &domain.Auction{Status: st}
		assert.ErrorIs(t, Cancel(a), domain.ErrAlreadyTerminal)
		assert.Equal(t, st, a.Status)
	}
}

func TestIsDue(t *testing.T) {
	now := time.Now()
	assert.True(t, IsDue(&domain.Auction{Status: domain.AuctionLive, EndTime: now}, now))
	assert.False(t, IsDue(&domain.Auction{Status: domain.AuctionLive, EndTime: now.Add(time.Second)}, now))
	assert.False(t, IsDue(&domain.Auction{Status: domain.AuctionScheduled, EndTime: now}, now))
}
