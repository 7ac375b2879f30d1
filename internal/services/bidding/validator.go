package bidding

import (
	"time"

	"auctionengine/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Proposal is a bid as submitted, before it is accepted.
type Proposal struct {
	UserID    uuid.UUID
	Amount    decimal.Decimal
	Type      domain.BidType
	MaxAmount decimal.NullDecimal
}

// Ceiling is the most the bidder has agreed to pay.
func (p Proposal) Ceiling() decimal.Decimal {
	if p.Type == domain.BidAutomatic && p.MaxAmount.Valid {
		return p.MaxAmount.Decimal
	}
	return p.Amount
}

// Rule is an additional acceptance check run after the built-in ones.
type Rule func(a *domain.Auction, p Proposal) error

// MinimumBid is the smallest amount the next bid may have.
func MinimumBid(a *domain.Auction) decimal.Decimal {
	return a.Price().Add(a.BidIncrement)
}

// Validate decides whether p can be accepted against a. It has no side
// effects. A corrupted auction yields domain.ErrInvariant, every other
// failure is a domain.Rejection.
func Validate(a *domain.Auction, p Proposal, now time.Time, rules ...Rule) error {
	if err := a.CheckInvariants(); err != nil {
		return err
	}

	switch a.Status {
	case domain.AuctionLive:
	case domain.AuctionEnded:
		return domain.Reject(domain.ReasonAuctionEnded, "auction %s has ended", a.ID)
	default:
		return domain.Reject(domain.ReasonAuctionNotLive, "auction %s is %s", a.ID, a.Status)
	}
	if now.After(a.EndTime) {
		return domain.Reject(domain.ReasonAuctionEnded, "auction %s ended at %s", a.ID, a.EndTime.Format(time.RFC3339))
	}

	if !p.Amount.IsPositive() {
		return domain.Reject(domain.ReasonInvalidBid, "amount must be positive")
	}
	if !domain.OnScale(p.Amount) || (p.MaxAmount.Valid && !domain.OnScale(p.MaxAmount.Decimal)) {
		return domain.Reject(domain.ReasonInvalidBid, "amounts allow at most %d decimal places", domain.MoneyScale)
	}
	switch p.Type {
	case domain.BidManual:
		if p.MaxAmount.Valid {
			return domain.Reject(domain.ReasonInvalidBid, "max amount is only allowed on automatic bids")
		}
	case domain.BidAutomatic:
		if !p.MaxAmount.Valid || p.MaxAmount.Decimal.LessThan(p.Amount) {
			return domain.Reject(domain.ReasonInvalidBid, "automatic bid needs a max amount of at least %s", p.Amount)
		}
	default:
		return domain.Reject(domain.ReasonInvalidBid, "unknown bid type %q", p.Type)
	}

	if minBid := MinimumBid(a); p.Amount.LessThan(minBid) {
		return domain.Reject(domain.ReasonBidTooLow, "minimum bid is %s", minBid)
	}

	for _, rule := range rules {
		if err := rule(a, p); err != nil {
			return err
		}
	}
	return nil
}

// RejectSelfRaise stops the current leader from raising their own bid.
func RejectSelfRaise(a *domain.Auction, p Proposal) error {
	if a.HighBidderID.Valid && a.HighBidderID.UUID == p.UserID {
		return domain.Reject(domain.ReasonSelfRaise, "you are already the highest bidder")
	}
	return nil
}

func RejectSellerBid(a *domain.Auction, p Proposal) error {
	if a.SellerID == p.UserID {
		return domain.Reject(domain.ReasonSellerBid, "sellers cannot bid on their own auction")
	}
	return nil
}
