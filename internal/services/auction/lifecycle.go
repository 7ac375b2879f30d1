package auction

import (
	"time"

	"auctionengine/internal/domain"
)

// TryActivate moves a SCHEDULED auction to LIVE once its start time has
// passed. It reports whether the auction changed.
func TryActivate(a *domain.Auction, now time.Time) bool {
	if a.Status != domain.AuctionScheduled || now.Before(a.StartTime) {
		return false
	}
	a.Status = domain.AuctionLive
	return true
}

// ApplyExtension pushes EndTime forward when a bid at bidAt lands inside the
// trigger window and the auction still has extensions left. Must be called on
// a locked auction in the same unit of work that accepts the bid.
func ApplyExtension(a *domain.Auction, bidAt time.Time) bool {
	if a.Status != domain.AuctionLive || !a.AutoExtend || a.ExtensionsUsed >= a.MaxExtensions {
		return false
	}
	if a.ExtensionDurationMinutes <= 0 || bidAt.After(a.EndTime) {
		return false
	}
	trigger := time.Duration(a.ExtensionTriggerMinutes) * time.Minute
	if a.EndTime.Sub(bidAt) > trigger {
		return false
	}
	a.EndTime = a.EndTime.Add(time.Duration(a.ExtensionDurationMinutes) * time.Minute)
	a.ExtensionsUsed++
	return true
}

// Cancel is allowed from SCHEDULED and LIVE only.
func Cancel(a *domain.Auction) error {
	if a.Status.Terminal() {
		return domain.Reject(domain.ReasonAlreadyTerminal, "auction %s is %s", a.ID, a.Status)
	}
	a.Status = domain.AuctionCancelled
	return nil
}

// IsDue reports whether a LIVE auction has reached its end time.
func IsDue(a *domain.Auction, now time.Time) bool {
	return a.Status == domain.AuctionLive && !now.Before(a.EndTime)
}
