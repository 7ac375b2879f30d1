package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits every stored amount keeps.
const MoneyScale int32 = 4

// OnScale reports whether d is representable at MoneyScale without rounding.
func OnScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MoneyScale))
}

type Balance struct {
	UserID         uuid.UUID       `json:"user_id"`
	BalanceReal    decimal.Decimal `json:"balance_real"`
	BalanceVirtual decimal.Decimal `json:"balance_virtual"`
	BalanceUSD     decimal.Decimal `json:"balance_usd"`
	Version        int64           `json:"version"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type TransactionType string

const (
	TxAuctionWin        TransactionType = "AUCTION_WIN"
	TxAdminAdjustment   TransactionType = "ADMIN_ADJUSTMENT"
	TxVirtualConversion TransactionType = "VIRTUAL_CONVERSION"
	TxReversal          TransactionType = "REVERSAL"
)

type TransactionStatus string

const (
	TxPending   TransactionStatus = "PENDING"
	TxCompleted TransactionStatus = "COMPLETED"
	TxFailed    TransactionStatus = "FAILED"
)

// Related entity kinds referenced by ledger entries.
const (
	RelatedAuction     = "auction"
	RelatedAdjustment  = "balance_adjustment"
	RelatedTransaction = "transaction"
)

// Transaction is an append-only ledger entry.
type Transaction struct {
	ID              uuid.UUID         `json:"id"`
	UserID          uuid.UUID         `json:"user_id"`
	TransactionType TransactionType   `json:"transaction_type"`
	AmountReal      decimal.Decimal   `json:"amount_real"`
	AmountVirtual   decimal.Decimal   `json:"amount_virtual"`
	AmountUSD       decimal.Decimal   `json:"amount_usd"`
	Currency        string            `json:"currency"`
	Status          TransactionStatus `json:"status"`
	RelatedID       uuid.NullUUID     `json:"related_id"`
	RelatedType     string            `json:"related_type,omitempty"`
	Metadata        json.RawMessage   `json:"metadata,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	ProcessedAt     *time.Time        `json:"processed_at,omitempty"`
}

type BalanceField string

const (
	FieldReal    BalanceField = "real"
	FieldVirtual BalanceField = "virtual"
	FieldUSD     BalanceField = "usd"
)

func (f BalanceField) Valid() bool {
	return f == FieldReal || f == FieldVirtual || f == FieldUSD
}

// BalanceAdjustment is always written together with its Transaction.
type BalanceAdjustment struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	Field         BalanceField    `json:"field"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	Reason        string          `json:"reason"`
	AdjustedBy    uuid.UUID       `json:"adjusted_by"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Get returns the value of a balance column.
func (b *Balance) Get(f BalanceField) decimal.Decimal {
	switch f {
	case FieldVirtual:
		return b.BalanceVirtual
	case FieldUSD:
		return b.BalanceUSD
	default:
		return b.BalanceReal
	}
}
