package pgstore

import (
	"context"
	"fmt"

	"auctionengine/internal/domain"
	"auctionengine/internal/store"

	"github.com/google/uuid"
)

type tx struct {
	q querier
}

func (t *tx) LockAuction(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	return scanAuction(t.q.QueryRowContext(ctx,
		`SELECT `+auctionColumns+` FROM auctions WHERE id = $1 FOR UPDATE`, id))
}

func (t *tx) CreateAuction(ctx context.Context, a *domain.Auction) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO auctions (id, seller_id, title, starting_bid, bid_increment, reserve_price, status,
		                       start_time, end_time, auto_extend, extension_trigger_minutes,
		                       extension_duration_minutes, max_extensions, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1, $14, $15)`,
		a.ID, a.SellerID, a.Title, a.StartingBid, a.BidIncrement, a.ReservePrice, string(a.Status),
		a.StartTime, a.EndTime, a.AutoExtend, a.ExtensionTriggerMinutes,
		a.ExtensionDurationMinutes, a.MaxExtensions, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return classify(err)
	}
	a.Version = 1
	return nil
}

func (t *tx) UpdateAuction(ctx context.Context, a *domain.Auction) error {
	res, err := t.q.ExecContext(ctx,
		`UPDATE auctions
		    SET current_bid = $2, bid_count = $3, high_bidder_id = $4, high_bidder_max = $5,
		        status = $6, end_time = $7, extensions_used = $8, updated_at = $9,
		        version = version + 1
		  WHERE id = $1 AND version = $10`,
		a.ID, a.CurrentBid, a.BidCount, a.HighBidderID, a.HighBidderMax,
		string(a.Status), a.EndTime, a.ExtensionsUsed, a.UpdatedAt, a.Version)
	if err != nil {
		return classify(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return classify(err)
	} else if n == 0 {
		return fmt.Errorf("%w: auction %s version %d is stale", store.ErrConflict, a.ID, a.Version)
	}
	a.Version++
	return nil
}

func (t *tx) InsertBid(ctx context.Context, b *domain.Bid) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO bids (`+bidColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		b.ID, b.AuctionID, b.UserID, b.Amount, string(b.BidType), b.MaxAmount, b.Sequence, b.CreatedAt)
	return classify(err)
}

func (t *tx) LatestBid(ctx context.Context, auctionID uuid.UUID) (*domain.Bid, error) {
	return scanBid(t.q.QueryRowContext(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE auction_id = $1 ORDER BY sequence DESC LIMIT 1`, auctionID))
}

func (t *tx) GetBalance(ctx context.Context, userID uuid.UUID) (*domain.Balance, error) {
	return getBalance(ctx, t.q, userID)
}

func (t *tx) LockBalance(ctx context.Context, userID uuid.UUID) (*domain.Balance, error) {
	if _, err := t.q.ExecContext(ctx,
		`INSERT INTO balances (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return nil, classify(err)
	}
	return scanBalance(t.q.QueryRowContext(ctx,
		`SELECT `+balanceColumns+` FROM balances WHERE user_id = $1 FOR UPDATE`, userID))
}

func (t *tx) UpdateBalance(ctx context.Context, b *domain.Balance) error {
	res, err := t.q.ExecContext(ctx,
		`UPDATE balances
		    SET balance_real = $2, balance_virtual = $3, balance_usd = $4, updated_at = $5,
		        version = version + 1
		  WHERE user_id = $1 AND version = $6`,
		b.UserID, b.BalanceReal, b.BalanceVirtual, b.BalanceUSD, b.UpdatedAt, b.Version)
	if err != nil {
		return classify(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return classify(err)
	} else if n == 0 {
		return fmt.Errorf("%w: balance %s version %d is stale", store.ErrConflict, b.UserID, b.Version)
	}
	b.Version++
	return nil
}

func (t *tx) InsertTransaction(ctx context.Context, tr *domain.Transaction) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		tr.ID, tr.UserID, string(tr.TransactionType), tr.AmountReal, tr.AmountVirtual, tr.AmountUSD,
		tr.Currency, string(tr.Status), tr.RelatedID, nullString(tr.RelatedType), nullJSON(tr.Metadata),
		tr.CreatedAt, tr.ProcessedAt)
	return classify(err)
}

func (t *tx) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return scanTransaction(t.q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
}

func (t *tx) FindReversal(ctx context.Context, originalID uuid.UUID) (*domain.Transaction, error) {
	return scanTransaction(t.q.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		  WHERE related_id = $1 AND transaction_type = 'REVERSAL'
		  LIMIT 1`, originalID))
}

func (t *tx) InsertAdjustment(ctx context.Context, adj *domain.BalanceAdjustment) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO balance_adjustments (id, user_id, field, balance_before, balance_after, reason,
		                                  adjusted_by, transaction_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		adj.ID, adj.UserID, string(adj.Field), adj.BalanceBefore, adj.BalanceAfter, adj.Reason,
		adj.AdjustedBy, adj.TransactionID, adj.CreatedAt)
	return classify(err)
}

func (t *tx) GetSettlement(ctx context.Context, auctionID uuid.UUID) (*domain.Settlement, error) {
	return getSettlement(ctx, t.q, auctionID)
}

func (t *tx) InsertSettlement(ctx context.Context, s *domain.Settlement) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO settlements (`+settlementColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.AuctionID, string(s.Outcome), s.WinnerID, s.Amount, s.TransactionID, s.Forced, s.SettledBy, s.SettledAt)
	return classify(err)
}
