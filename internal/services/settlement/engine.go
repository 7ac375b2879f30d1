package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"auctionengine/internal/domain"
	"auctionengine/internal/notify"
	"auctionengine/internal/services/ledger"
	"auctionengine/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	dueBatchSize      = 100
	negativeScanLimit = 500
)

type Options struct {
	// Force settles before the end time.
	Force   bool
	ActorID uuid.NullUUID
}

type SweepResult struct {
	Settled int `json:"settled"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type Engine struct {
	store       store.Store
	ledger      *ledger.Ledger
	events      notify.Emitter
	retry       store.RetryPolicy
	reserve     ReservePolicy
	concurrency int
	now         func() time.Time
}

func NewEngine(st store.Store, l *ledger.Ledger, events notify.Emitter, retry store.RetryPolicy, reserve ReservePolicy, concurrency int) *Engine {
	if events == nil {
		events = notify.Discard
	}
	if reserve == nil {
		reserve = RequireReserve
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{
		store:       st,
		ledger:      l,
		events:      events,
		retry:       retry,
		reserve:     reserve,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Settle ends a LIVE auction whose end time has passed and charges the
// winner in the same unit of work. Settling an ENDED auction returns the
// stored result and changes nothing.
func (e *Engine) Settle(ctx context.Context, auctionID uuid.UUID, opts Options) (*domain.Settlement, error) {
	res, _, err := e.settle(ctx, auctionID, opts)
	return res, err
}

type outcome struct {
	settlement domain.Settlement
	auction    domain.Auction
	txn        *domain.Transaction
	balance    *domain.Balance
}

func (e *Engine) settle(ctx context.Context, auctionID uuid.UUID, opts Options) (*domain.Settlement, bool, error) {
	var out *outcome
	var prior *domain.Settlement
	err := e.retry.Do(ctx, "settle_auction", func() error {
		out, prior = nil, nil
		return e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			out, prior, err = e.settleInTx(ctx, tx, auctionID, opts)
			return err
		})
	})
	if err != nil {
		if !domain.IsRejection(err) && !errors.Is(err, domain.ErrAuctionNotFound) {
			zap.L().Error("settlement.failed", zap.String("auction_id", auctionID.String()), zap.Error(err))
		}
		return nil, false, err
	}
	if prior != nil {
		return prior, false, nil
	}

	s := &out.settlement
	zap.L().Info("auction_settled",
		zap.String("auction_id", auctionID.String()),
		zap.String("outcome", string(s.Outcome)),
		zap.Bool("forced", s.Forced),
	)
	e.events.Emit(settlementEvents(out)...)
	return s, true, nil
}

func (e *Engine) settleInTx(ctx context.Context, tx store.Tx, auctionID uuid.UUID, opts Options) (*outcome, *domain.Settlement, error) {
	a, err := tx.LockAuction(ctx, auctionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, domain.ErrAuctionNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	if a.Status == domain.AuctionEnded {
		prior, err := tx.GetSettlement(ctx, a.ID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, domain.Invariantf("auction %s ended without a settlement record", a.ID)
		}
		return nil, prior, err
	}
	if a.Status != domain.AuctionLive {
		return nil, nil, domain.Reject(domain.ReasonNotReadyToSettle, "auction %s is %s", a.ID, a.Status)
	}
	if err := a.CheckInvariants(); err != nil {
		return nil, nil, err
	}

	now := e.now().UTC()
	early := now.Before(a.EndTime)
	if early && !opts.Force {
		return nil, nil, domain.Reject(domain.ReasonNotReadyToSettle, "auction %s ends at %s", a.ID, a.EndTime.Format(time.RFC3339))
	}

	out := &outcome{settlement: domain.Settlement{
		AuctionID: a.ID,
		Outcome:   domain.OutcomeNoBids,
		Forced:    opts.Force && early,
		SettledBy: opts.ActorID,
		SettledAt: now,
	}}

	if a.BidCount > 0 {
		win, err := tx.LatestBid(ctx, a.ID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, domain.Invariantf("auction %s has %d bids but no bid rows", a.ID, a.BidCount)
		}
		if err != nil {
			return nil, nil, err
		}
		if !win.Amount.Equal(a.CurrentBid.Decimal) {
			return nil, nil, domain.Invariantf("auction %s current bid %s differs from latest bid %s",
				a.ID, a.CurrentBid.Decimal, win.Amount)
		}
		if err := e.charge(ctx, tx, a, win, out); err != nil {
			return nil, nil, err
		}
	}

	a.Status = domain.AuctionEnded
	a.UpdatedAt = now
	if err := tx.UpdateAuction(ctx, a); err != nil {
		return nil, nil, err
	}
	if err := tx.InsertSettlement(ctx, &out.settlement); err != nil {
		return nil, nil, err
	}
	out.auction = *a
	return out, nil, nil
}

func (e *Engine) charge(ctx context.Context, tx store.Tx, a *domain.Auction, win *domain.Bid, out *outcome) error {
	s := &out.settlement
	s.WinnerID = uuid.NullUUID{UUID: win.UserID, Valid: true}
	s.Amount = decimal.NewNullDecimal(win.Amount)

	if !e.reserve(a, win.Amount) {
		s.Outcome = domain.OutcomeReserveNotMet
		return nil
	}

	entry := ledger.Entry{
		Type:        domain.TxAuctionWin,
		RelatedID:   uuid.NullUUID{UUID: a.ID, Valid: true},
		RelatedType: domain.RelatedAuction,
		Metadata: map[string]any{
			"bid_id": win.ID.String(),
			"amount": win.Amount.String(),
			"title":  a.Title,
		},
	}
	t, err := e.ledger.Charge(ctx, tx, win.UserID, win.Amount, entry)
	if err == nil {
		s.Outcome = domain.OutcomeSold
		s.TransactionID = uuid.NullUUID{UUID: t.ID, Valid: true}
		out.txn = t
		bal, err := tx.GetBalance(ctx, win.UserID)
		if err != nil {
			return err
		}
		out.balance = bal
		return nil
	}
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		return fmt.Errorf("charge winner: %w", err)
	}

	zap.L().Warn("settlement.payment_failed",
		zap.String("auction_id", a.ID.String()),
		zap.String("winner_id", win.UserID.String()),
		zap.String("amount", win.Amount.String()),
		zap.Error(err),
	)
	entry.UserID = win.UserID
	entry.RealDelta = win.Amount.Neg()
	failed, err2 := e.ledger.RecordFailed(ctx, tx, entry, err.Error())
	if err2 != nil {
		return err2
	}
	s.Outcome = domain.OutcomePaymentFailed
	s.TransactionID = uuid.NullUUID{UUID: failed.ID, Valid: true}
	return nil
}

// SettleDue settles every LIVE auction whose end time is not after now. Safe
// to call repeatedly and from several instances.
func (e *Engine) SettleDue(ctx context.Context, now time.Time) (SweepResult, error) {
	var res SweepResult
	ids, err := e.store.DueForSettlement(ctx, now, dueBatchSize)
	if err != nil {
		return res, err
	}

	var mu sync.Mutex
	var errs []error
	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			_, fresh, err := e.settle(ctx, id, Options{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && fresh:
				res.Settled++
			case err == nil, errors.Is(err, domain.ErrNotReadyToSettle):
				// Settled elsewhere or extended since the scan.
				res.Skipped++
			default:
				res.Failed++
				errs = append(errs, fmt.Errorf("settle %s: %w", id, err))
			}
			return nil
		})
	}
	_ = g.Wait()

	if res.Settled > 0 || res.Failed > 0 {
		zap.L().Info("settlement_sweep",
			zap.Int("settled", res.Settled),
			zap.Int("skipped", res.Skipped),
			zap.Int("failed", res.Failed),
		)
	}
	return res, errors.Join(errs...)
}

// CheckNegativeBalances reports users whose real balance is below zero and
// raises a warning for each. Balances are never modified.
func (e *Engine) CheckNegativeBalances(ctx context.Context) ([]domain.Balance, error) {
	list, err := e.store.NegativeBalances(ctx, negativeScanLimit)
	if err != nil {
		return nil, err
	}

	events := make([]domain.Event, 0, len(list))
	for i := range list {
		b := &list[i]
		zap.L().Warn("ledger.negative_balance",
			zap.String("user_id", b.UserID.String()),
			zap.String("balance_real", b.BalanceReal.String()),
		)
		events = append(events, domain.NewEvent(domain.EventBalanceNegative, nil, &b.UserID,
			"Negative balance", "Your balance is below zero", map[string]any{
				"severity":        "warning",
				"balance_real":    b.BalanceReal.String(),
				"balance_virtual": b.BalanceVirtual.String(),
			}))
	}
	e.events.Emit(events...)
	return list, nil
}
