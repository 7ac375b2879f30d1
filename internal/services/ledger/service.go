package ledger

import (
	"context"
	"errors"

	"auctionengine/internal/domain"
	"auctionengine/internal/notify"
	"auctionengine/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type AdjustRequest struct {
	UserID     uuid.UUID
	Field      domain.BalanceField
	Delta      decimal.Decimal
	Reason     string
	AdjustedBy uuid.UUID

	// AllowNegative lets an administrator push the column below zero.
	AllowNegative bool
}

type AdjustResult struct {
	Adjustment  domain.BalanceAdjustment `json:"adjustment"`
	Transaction domain.Transaction       `json:"transaction"`
	Balance     domain.Balance           `json:"balance"`
}

type ReverseRequest struct {
	TransactionID uuid.UUID
	ActorID       uuid.UUID
	Reason        string
}

type Service struct {
	store  store.Store
	ledger *Ledger
	events notify.Emitter
	retry  store.RetryPolicy
}

func NewService(st store.Store, l *Ledger, events notify.Emitter, retry store.RetryPolicy) *Service {
	if events == nil {
		events = notify.Discard
	}
	return &Service{store: st, ledger: l, events: events, retry: retry}
}

func (s *Service) Ledger() *Ledger { return s.ledger }

func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (*domain.Balance, error) {
	return s.store.GetBalance(ctx, userID)
}

func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	return s.store.ListTransactions(ctx, userID, limit, offset)
}

// AdjustBalance applies an administrative correction and records the
// adjustment together with its ledger transaction.
func (s *Service) AdjustBalance(ctx context.Context, req AdjustRequest) (*AdjustResult, error) {
	if !req.Field.Valid() {
		return nil, domain.Reject(domain.ReasonInvalidRequest, "unknown balance field %q", req.Field)
	}
	if req.Delta.IsZero() {
		return nil, domain.Reject(domain.ReasonInvalidRequest, "adjustment amount must not be zero")
	}
	if !domain.OnScale(req.Delta) {
		return nil, domain.Reject(domain.ReasonInvalidRequest, "adjustment allows at most %d decimal places", domain.MoneyScale)
	}
	if req.Reason == "" {
		return nil, domain.Reject(domain.ReasonInvalidRequest, "adjustment reason is required")
	}

	var res AdjustResult
	err := s.retry.Do(ctx, "adjust_balance", func() error {
		return s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			before, err := tx.LockBalance(ctx, req.UserID)
			if err != nil {
				return err
			}

			adjID := uuid.New()
			e := Entry{
				UserID:        req.UserID,
				Type:          domain.TxAdminAdjustment,
				RelatedID:     uuid.NullUUID{UUID: adjID, Valid: true},
				RelatedType:   domain.RelatedAdjustment,
				Metadata:      map[string]any{"reason": req.Reason, "field": req.Field, "adjusted_by": req.AdjustedBy},
				AllowNegative: req.AllowNegative,
			}
			switch req.Field {
			case domain.FieldReal:
				e.RealDelta = req.Delta
			case domain.FieldVirtual:
				e.VirtualDelta = req.Delta
			case domain.FieldUSD:
				e.USDDelta = req.Delta
			}

			t, after, err := s.ledger.Apply(ctx, tx, e)
			if err != nil {
				return err
			}
			adj := domain.BalanceAdjustment{
				ID:            adjID,
				UserID:        req.UserID,
				Field:         req.Field,
				BalanceBefore: before.Get(req.Field),
				BalanceAfter:  after.Get(req.Field),
				Reason:        req.Reason,
				AdjustedBy:    req.AdjustedBy,
				TransactionID: t.ID,
				CreatedAt:     t.CreatedAt,
			}
			if err := tx.InsertAdjustment(ctx, &adj); err != nil {
				return err
			}
			res = AdjustResult{Adjustment: adj, Transaction: *t, Balance: *after}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if res.Adjustment.BalanceAfter.IsNegative() {
		zap.L().Warn("ledger.adjusted_below_zero",
			zap.String("user_id", req.UserID.String()),
			zap.String("field", string(req.Field)),
			zap.String("balance_after", res.Adjustment.BalanceAfter.String()),
			zap.String("adjusted_by", req.AdjustedBy.String()),
		)
	}
	zap.L().Info("ledger.balance_adjusted",
		zap.String("user_id", req.UserID.String()),
		zap.String("transaction_id", res.Transaction.ID.String()),
	)
	s.events.Emit(balanceChanged(&res.Balance, &res.Transaction))
	return &res, nil
}

// ConvertToVirtual moves amount of real balance into virtual balance at the
// configured multiplier.
func (s *Service) ConvertToVirtual(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, domain.Reject(domain.ReasonInvalidRequest, "conversion amount must be positive")
	}
	if !domain.OnScale(amount) {
		return nil, domain.Reject(domain.ReasonInvalidRequest, "conversion allows at most %d decimal places", domain.MoneyScale)
	}
	virtual := s.ledger.ToVirtual(amount)
	if !virtual.IsPositive() {
		return nil, domain.Reject(domain.ReasonInvalidRequest, "conversion amount %s is too small", amount)
	}

	var t *domain.Transaction
	var bal *domain.Balance
	err := s.retry.Do(ctx, "convert_to_virtual", func() error {
		return s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			var err error
			t, bal, err = s.ledger.Apply(ctx, tx, Entry{
				UserID:       userID,
				RealDelta:    amount.Neg(),
				VirtualDelta: virtual,
				Type:         domain.TxVirtualConversion,
				Metadata:     map[string]any{"multiplier": s.ledger.Multiplier().String()},
			})
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	s.events.Emit(balanceChanged(bal, t))
	return t, nil
}

// Reverse books the exact opposite of a completed transaction. A transaction
// is reversed at most once.
func (s *Service) Reverse(ctx context.Context, req ReverseRequest) (*domain.Transaction, error) {
	var t *domain.Transaction
	var bal *domain.Balance
	err := s.retry.Do(ctx, "reverse_transaction", func() error {
		return s.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			orig, err := tx.GetTransaction(ctx, req.TransactionID)
			if errors.Is(err, store.ErrNotFound) {
				return domain.ErrTransactionNotFound
			}
			if err != nil {
				return err
			}
			if orig.Status != domain.TxCompleted {
				return domain.Reject(domain.ReasonInvalidRequest, "transaction %s is %s", orig.ID, orig.Status)
			}
			if orig.TransactionType == domain.TxReversal {
				return domain.Reject(domain.ReasonInvalidRequest, "a reversal cannot be reversed")
			}

			// The balance lock serializes concurrent reversals of one user.
			if _, err := tx.LockBalance(ctx, orig.UserID); err != nil {
				return err
			}
			if _, err := tx.FindReversal(ctx, orig.ID); err == nil {
				return domain.Reject(domain.ReasonAlreadyReversed, "transaction %s", orig.ID)
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}

			t, bal, err = s.ledger.Apply(ctx, tx, Entry{
				UserID:       orig.UserID,
				RealDelta:    orig.AmountReal.Neg(),
				VirtualDelta: orig.AmountVirtual.Neg(),
				USDDelta:     orig.AmountUSD.Neg(),
				Type:         domain.TxReversal,
				RelatedID:    uuid.NullUUID{UUID: orig.ID, Valid: true},
				RelatedType:  domain.RelatedTransaction,
				Metadata:     map[string]any{"reason": req.Reason, "reversed_by": req.ActorID},
			})
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("ledger.transaction_reversed",
		zap.String("original_id", req.TransactionID.String()),
		zap.String("reversal_id", t.ID.String()),
	)
	s.events.Emit(balanceChanged(bal, t))
	return t, nil
}

func balanceChanged(b *domain.Balance, t *domain.Transaction) domain.Event {
	return domain.NewEvent(domain.EventBalanceChanged, nil, &b.UserID,
		"Balance updated", string(t.TransactionType), map[string]any{
			"transaction_id":  t.ID.String(),
			"balance_real":    b.BalanceReal.String(),
			"balance_virtual": b.BalanceVirtual.String(),
			"balance_usd":     b.BalanceUSD.String(),
		})
}
