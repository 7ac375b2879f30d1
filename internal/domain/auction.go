package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AuctionStatus string

const (
	AuctionScheduled AuctionStatus = "SCHEDULED"
	AuctionLive      AuctionStatus = "LIVE"
	AuctionEnded     AuctionStatus = "ENDED"
	AuctionCancelled AuctionStatus = "CANCELLED"
)

// Terminal reports whether no further transition is possible.
func (s AuctionStatus) Terminal() bool {
	return s == AuctionEnded || s == AuctionCancelled
}

// Auction is the bidding state embedded in a product listing.
type Auction struct {
	ID       uuid.UUID `json:"id"`
	SellerID uuid.UUID `json:"seller_id"`
	Title    string    `json:"title"`

	StartingBid  decimal.Decimal     `json:"starting_bid"`
	CurrentBid   decimal.NullDecimal `json:"current_bid"`
	BidIncrement decimal.Decimal     `json:"bid_increment"`
	ReservePrice decimal.NullDecimal `json:"reserve_price"`
	BidCount     int                 `json:"bid_count"`

	// HighBidderMax is the proxy ceiling of the current leader, equal to
	// CurrentBid for a manual bid.
	HighBidderID  uuid.NullUUID       `json:"high_bidder_id"`
	HighBidderMax decimal.NullDecimal `json:"-"`

	Status    AuctionStatus `json:"status"     example:"LIVE"`
	StartTime time.Time     `json:"start_time" example:"2025-07-27T16:05:05Z"`
	EndTime   time.Time     `json:"end_time"   example:"2025-07-27T18:05:05Z"`

	AutoExtend               bool `json:"auto_extend"`
	ExtensionTriggerMinutes  int  `json:"extension_trigger_minutes"`
	ExtensionDurationMinutes int  `json:"extension_duration_minutes"`
	MaxExtensions            int  `json:"max_extensions"`
	ExtensionsUsed           int  `json:"extensions_used"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Price is the current bid, or the starting bid while nobody has bid.
func (a *Auction) Price() decimal.Decimal {
	if a.CurrentBid.Valid {
		return a.CurrentBid.Decimal
	}
	return a.StartingBid
}

// CheckInvariants reports a corrupted or mis-configured auction row.
func (a *Auction) CheckInvariants() error {
	switch {
	case !a.BidIncrement.IsPositive():
		return Invariantf("auction %s: bid increment %s must be positive", a.ID, a.BidIncrement)
	case a.StartingBid.IsNegative():
		return Invariantf("auction %s: starting bid %s is negative", a.ID, a.StartingBid)
	case a.BidCount < 0:
		return Invariantf("auction %s: negative bid count %d", a.ID, a.BidCount)
	case a.BidCount > 0 && !a.CurrentBid.Valid:
		return Invariantf("auction %s: %d bids but no current bid", a.ID, a.BidCount)
	case a.ExtensionsUsed < 0 || (a.MaxExtensions >= 0 && a.ExtensionsUsed > a.MaxExtensions):
		return Invariantf("auction %s: extensions used %d exceeds max %d", a.ID, a.ExtensionsUsed, a.MaxExtensions)
	case !a.EndTime.After(a.StartTime):
		return Invariantf("auction %s: end time %s not after start time %s", a.ID, a.EndTime, a.StartTime)
	}
	return nil
}
