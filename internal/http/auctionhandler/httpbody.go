package auctionhandler

import (
	"time"

	"auctionengine/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateAuctionBody struct {
	// Defaults to the caller when omitted.
	SellerID                 string              `json:"seller_id"                  binding:"omitempty,uuid"`
	Title                    string              `json:"title"                      binding:"required,max=200" example:"1967 Ford Mustang"`
	StartingBid              decimal.Decimal     `json:"starting_bid"               swaggertype:"string" example:"100"`
	BidIncrement             decimal.Decimal     `json:"bid_increment"              swaggertype:"string" example:"10"`
	ReservePrice             decimal.NullDecimal `json:"reserve_price"              swaggertype:"string" example:"500"`
	StartTime                time.Time           `json:"start_time"                 binding:"required" example:"2025-07-27T16:05:05Z"`
	EndTime                  time.Time           `json:"end_time"                   binding:"required" example:"2025-07-27T18:05:05Z"`
	AutoExtend               bool                `json:"auto_extend"`
	ExtensionTriggerMinutes  int                 `json:"extension_trigger_minutes"  binding:"gte=0" example:"5"`
	ExtensionDurationMinutes int                 `json:"extension_duration_minutes" binding:"gte=0" example:"5"`
	MaxExtensions            int                 `json:"max_extensions"             binding:"gte=0" example:"3"`
} // @name CreateAuctionRequest

type PlaceBidBody struct {
	Amount    decimal.Decimal     `json:"amount"     swaggertype:"string" example:"110"`
	BidType   domain.BidType      `json:"bid_type"   binding:"omitempty,oneof=MANUAL AUTOMATIC" example:"MANUAL"`
	MaxAmount decimal.NullDecimal `json:"max_amount" swaggertype:"string" example:"250"`
} // @name PlaceBidRequest

type ListAuctionsQuery struct {
	Status string `form:"status"           binding:"omitempty,oneof=SCHEDULED LIVE ENDED CANCELLED"`
	Limit  int    `form:"limit,default=20" binding:"gte=0,lte=100"`
	Offset int    `form:"offset,default=0" binding:"gte=0"`
} // @name ListAuctionsQuery

type PageQuery struct {
	Limit  int `form:"limit,default=50" binding:"gte=0,lte=200"`
	Offset int `form:"offset,default=0" binding:"gte=0"`
} // @name PageQuery

// BidView is a bid as shown to other watchers. Proxy ceilings stay private.
type BidView struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"   swaggertype:"string"`
	BidType   domain.BidType  `json:"bid_type"`
	Sequence  int             `json:"sequence"`
	CreatedAt time.Time       `json:"created_at"`
} // @name Bid

func publicBids(bids []domain.Bid) []BidView {
	out := make([]BidView, 0, len(bids))
	for _, b := range bids {
		out = append(out, BidView{
			ID:        b.ID,
			UserID:    b.UserID,
			Amount:    b.Amount,
			BidType:   b.BidType,
			Sequence:  b.Sequence,
			CreatedAt: b.CreatedAt,
		})
	}
	return out
}
