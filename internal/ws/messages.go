package ws

import (
	"encoding/json"

	"auctionengine/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Envelope wraps every WS frame.
type Envelope struct {
	Event string          `json:"event"`          // e.g. "auctions/bid"
	Body  json.RawMessage `json:"body,omitempty"` // arbitrary JSON object
}

// ConnContext identifies the socket a frame arrived on.
type ConnContext struct {
	AuctionID uuid.UUID
	// UserID is Nil for anonymous watchers.
	UserID uuid.UUID
}

// BidRequest is the body for "auctions/bid".
type BidRequest struct {
	Amount    decimal.Decimal     `json:"amount"`
	BidType   domain.BidType      `json:"bid_type,omitempty"`
	MaxAmount decimal.NullDecimal `json:"max_amount"`
}

type ErrorBody struct {
	Error     string `json:"error"`
	Reason    string `json:"reason,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}
