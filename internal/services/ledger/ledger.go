package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"auctionengine/internal/domain"
	"auctionengine/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Entry is one signed change to a user's balance.
type Entry struct {
	UserID       uuid.UUID
	RealDelta    decimal.Decimal
	VirtualDelta decimal.Decimal
	USDDelta     decimal.Decimal
	Type         domain.TransactionType
	RelatedID    uuid.NullUUID
	RelatedType  string
	Metadata     map[string]any

	// AllowNegative lets a debit take a column below zero.
	AllowNegative bool
}

// Ledger keeps balances and their transactions in step. Every method runs
// inside the caller's unit of work.
type Ledger struct {
	multiplier decimal.Decimal
	currency   string
	now        func() time.Time
}

func New(multiplier decimal.Decimal, currency string) *Ledger {
	if !multiplier.IsPositive() {
		panic("ledger: virtual multiplier must be positive")
	}
	return &Ledger{multiplier: multiplier, currency: currency, now: time.Now}
}

func (l *Ledger) Multiplier() decimal.Decimal { return l.multiplier }

// ToVirtual converts a real amount into virtual units, rounded down to the
// money scale.
func (l *Ledger) ToVirtual(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(l.multiplier).RoundFloor(domain.MoneyScale)
}

// SpendingPower is what a user can pay in real currency units, counting
// virtual balance at the configured multiplier.
func (l *Ledger) SpendingPower(b *domain.Balance) decimal.Decimal {
	power := decimal.Max(b.BalanceReal, decimal.Zero)
	if b.BalanceVirtual.IsPositive() {
		power = power.Add(b.BalanceVirtual.Div(l.multiplier).RoundFloor(domain.MoneyScale))
	}
	return power
}

// Split decides how amount is paid: real balance first, the remainder from
// virtual balance, rounded up to the money scale. ok is false when the user
// cannot cover the amount.
func (l *Ledger) Split(b *domain.Balance, amount decimal.Decimal) (fromReal, fromVirtual decimal.Decimal, ok bool) {
	fromReal = decimal.Min(decimal.Max(b.BalanceReal, decimal.Zero), amount)
	fromVirtual = amount.Sub(fromReal).Mul(l.multiplier).RoundCeil(domain.MoneyScale)
	return fromReal, fromVirtual, !fromVirtual.GreaterThan(decimal.Max(b.BalanceVirtual, decimal.Zero))
}

// Apply locks the user's balance, applies the entry and records a COMPLETED
// transaction. A debit that would leave a column negative is rejected with
// InsufficientBalance unless the entry allows it.
func (l *Ledger) Apply(ctx context.Context, tx store.Tx, e Entry) (*domain.Transaction, *domain.Balance, error) {
	if e.UserID == uuid.Nil || e.Type == "" {
		return nil, nil, domain.Invariantf("ledger entry without user or type")
	}
	if !domain.OnScale(e.RealDelta) || !domain.OnScale(e.VirtualDelta) || !domain.OnScale(e.USDDelta) {
		return nil, nil, domain.Invariantf("ledger entry for %s below money scale: real %s virtual %s usd %s",
			e.UserID, e.RealDelta, e.VirtualDelta, e.USDDelta)
	}
	bal, err := tx.LockBalance(ctx, e.UserID)
	if err != nil {
		return nil, nil, err
	}

	next := *bal
	next.BalanceReal = bal.BalanceReal.Add(e.RealDelta)
	next.BalanceVirtual = bal.BalanceVirtual.Add(e.VirtualDelta)
	next.BalanceUSD = bal.BalanceUSD.Add(e.USDDelta)

	if !e.AllowNegative {
		for _, c := range []struct {
			field domain.BalanceField
			delta decimal.Decimal
			value decimal.Decimal
		}{
			{domain.FieldReal, e.RealDelta, next.BalanceReal},
			{domain.FieldVirtual, e.VirtualDelta, next.BalanceVirtual},
			{domain.FieldUSD, e.USDDelta, next.BalanceUSD},
		} {
			if c.delta.IsNegative() && c.value.IsNegative() {
				return nil, nil, domain.Reject(domain.ReasonInsufficientBalance,
					"%s balance %s cannot cover %s", c.field, c.value.Sub(c.delta), c.delta.Neg())
			}
		}
	}

	now := l.now().UTC()
	next.UpdatedAt = now
	if err := tx.UpdateBalance(ctx, &next); err != nil {
		return nil, nil, err
	}

	t, err := l.transaction(e, domain.TxCompleted, now, nil)
	if err != nil {
		return nil, nil, err
	}
	t.ProcessedAt = &now
	if err := tx.InsertTransaction(ctx, t); err != nil {
		return nil, nil, err
	}
	return t, &next, nil
}

// RecordFailed writes a FAILED transaction for an entry that was not applied.
// The balance is left untouched.
func (l *Ledger) RecordFailed(ctx context.Context, tx store.Tx, e Entry, cause string) (*domain.Transaction, error) {
	t, err := l.transaction(e, domain.TxFailed, l.now().UTC(), map[string]any{"failure_reason": cause})
	if err != nil {
		return nil, err
	}
	if err := tx.InsertTransaction(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Charge debits amount from the user, real balance first. When the user
// cannot pay the returned error is an InsufficientBalance rejection and
// nothing is written.
func (l *Ledger) Charge(ctx context.Context, tx store.Tx, userID uuid.UUID, amount decimal.Decimal, e Entry) (*domain.Transaction, error) {
	bal, err := tx.LockBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	fromReal, fromVirtual, ok := l.Split(bal, amount)
	if !ok {
		return nil, domain.Reject(domain.ReasonInsufficientBalance,
			"spending power %s below %s", l.SpendingPower(bal), amount)
	}

	e.UserID = userID
	e.RealDelta = fromReal.Neg()
	e.VirtualDelta = fromVirtual.Neg()
	t, _, err := l.Apply(ctx, tx, e)
	return t, err
}

func (l *Ledger) transaction(e Entry, status domain.TransactionStatus, at time.Time, extra map[string]any) (*domain.Transaction, error) {
	meta := make(map[string]any, len(e.Metadata)+len(extra))
	for k, v := range e.Metadata {
		meta[k] = v
	}
	for k, v := range extra {
		meta[k] = v
	}
	var raw json.RawMessage
	if len(meta) > 0 {
		b, err := json.Marshal(meta)
		if err != nil {
			return nil, fmt.Errorf("marshal transaction metadata: %w", err)
		}
		raw = b
	}

	return &domain.Transaction{
		ID:              uuid.New(),
		UserID:          e.UserID,
		TransactionType: e.Type,
		AmountReal:      e.RealDelta,
		AmountVirtual:   e.VirtualDelta,
		AmountUSD:       e.USDDelta,
		Currency:        l.currency,
		Status:          status,
		RelatedID:       e.RelatedID,
		RelatedType:     e.RelatedType,
		Metadata:        raw,
		CreatedAt:       at,
	}, nil
}
