package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"

	"auctionengine/internal/domain"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

const auctionColumns = `id, seller_id, title, starting_bid, current_bid, bid_increment, reserve_price,
	bid_count, high_bidder_id, high_bidder_max, status, start_time, end_time, auto_extend,
	extension_trigger_minutes, extension_duration_minutes, max_extensions, extensions_used,
	version, created_at, updated_at`

func scanAuction(row scanner) (*domain.Auction, error) {
	var a domain.Auction
	err := row.Scan(
		&a.ID, &a.SellerID, &a.Title, &a.StartingBid, &a.CurrentBid, &a.BidIncrement, &a.ReservePrice,
		&a.BidCount, &a.HighBidderID, &a.HighBidderMax, &a.Status, &a.StartTime, &a.EndTime, &a.AutoExtend,
		&a.ExtensionTriggerMinutes, &a.ExtensionDurationMinutes, &a.MaxExtensions, &a.ExtensionsUsed,
		&a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, classify(err)
	}
	return &a, nil
}

const bidColumns = `id, auction_id, user_id, amount, bid_type, max_amount, sequence, created_at`

func scanBid(row scanner) (*domain.Bid, error) {
	var b domain.Bid
	err := row.Scan(&b.ID, &b.AuctionID, &b.UserID, &b.Amount, &b.BidType, &b.MaxAmount, &b.Sequence, &b.CreatedAt)
	if err != nil {
		return nil, classify(err)
	}
	return &b, nil
}

const balanceColumns = `user_id, balance_real, balance_virtual, balance_usd, version, updated_at`

func scanBalance(row scanner) (*domain.Balance, error) {
	var b domain.Balance
	err := row.Scan(&b.UserID, &b.BalanceReal, &b.BalanceVirtual, &b.BalanceUSD, &b.Version, &b.UpdatedAt)
	if err != nil {
		return nil, classify(err)
	}
	return &b, nil
}

const transactionColumns = `id, user_id, transaction_type, amount_real, amount_virtual, amount_usd, currency,
	status, related_id, related_type, metadata, created_at, processed_at`

func scanTransaction(row scanner) (*domain.Transaction, error) {
	var (
		t           domain.Transaction
		relatedType sql.NullString
		metadata    []byte
		processedAt sql.NullTime
	)
	err := row.Scan(&t.ID, &t.UserID, &t.TransactionType, &t.AmountReal, &t.AmountVirtual, &t.AmountUSD,
		&t.Currency, &t.Status, &t.RelatedID, &relatedType, &metadata, &t.CreatedAt, &processedAt)
	if err != nil {
		return nil, classify(err)
	}
	t.RelatedType = relatedType.String
	if len(metadata) > 0 {
		t.Metadata = json.RawMessage(metadata)
	}
	if processedAt.Valid {
		at := processedAt.Time
		t.ProcessedAt = &at
	}
	return &t, nil
}

const settlementColumns = `auction_id, outcome, winner_id, amount, transaction_id, forced, settled_by, settled_at`

func scanSettlement(row scanner) (*domain.Settlement, error) {
	var s domain.Settlement
	err := row.Scan(&s.AuctionID, &s.Outcome, &s.WinnerID, &s.Amount, &s.TransactionID, &s.Forced, &s.SettledBy, &s.SettledAt)
	if err != nil {
		return nil, classify(err)
	}
	return &s, nil
}

func collect[T any](rows *sql.Rows, scan func(scanner) (*T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, classify(rows.Err())
}

// limitArg maps a non-positive limit to NULL, which Postgres reads as no limit.
func limitArg(limit int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(limit), Valid: limit > 0}
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
