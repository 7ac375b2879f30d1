package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BidType string

const (
	BidManual    BidType = "MANUAL"
	BidAutomatic BidType = "AUTOMATIC"
)

func (t BidType) Valid() bool {
	return t == BidManual || t == BidAutomatic
}

// Bid is immutable once inserted.
type Bid struct {
	ID        uuid.UUID           `json:"id"`
	AuctionID uuid.UUID           `json:"product_id"`
	UserID    uuid.UUID           `json:"user_id"`
	Amount    decimal.Decimal     `json:"amount"`
	BidType   BidType             `json:"bid_type"`
	MaxAmount decimal.NullDecimal `json:"max_amount"`
	Sequence  int                 `json:"sequence"`
	CreatedAt time.Time           `json:"created_at"`
}

type SettlementOutcome string

const (
	OutcomeSold          SettlementOutcome = "SOLD"
	OutcomeNoBids        SettlementOutcome = "NO_BIDS"
	OutcomeReserveNotMet SettlementOutcome = "RESERVE_NOT_MET"
	OutcomePaymentFailed SettlementOutcome = "PAYMENT_FAILED"
)

// Settlement is the stored result of ending an auction. There is at most one
// per auction.
type Settlement struct {
	AuctionID     uuid.UUID           `json:"product_id"`
	Outcome       SettlementOutcome   `json:"outcome"`
	WinnerID      uuid.NullUUID       `json:"winner_id"`
	Amount        decimal.NullDecimal `json:"amount"`
	TransactionID uuid.NullUUID       `json:"transaction_id"`
	Forced        bool                `json:"forced"`
	SettledBy     uuid.NullUUID       `json:"settled_by"`
	SettledAt     time.Time           `json:"settled_at"`
}
