// Package memstore is an in-process implementation of store.Store. Row locks
// behave like SELECT ... FOR UPDATE: they are held until the unit of work ends
// and waiting on them is bounded by the lock timeout.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"auctionengine/internal/domain"
	"auctionengine/internal/store"

	"github.com/google/uuid"
)

type Store struct {
	mu          sync.Mutex
	rowLocks    map[string]chan struct{}
	auctions    map[uuid.UUID]domain.Auction
	bids        map[uuid.UUID][]domain.Bid
	balances    map[uuid.UUID]domain.Balance
	txs         []domain.Transaction
	adjustments []domain.BalanceAdjustment
	settlements map[uuid.UUID]domain.Settlement

	lockTimeout time.Duration

	// Faults, when set, is consulted at "begin" and "commit" of every unit of
	// work; a non-nil return aborts the unit with that error.
	Faults func(op string) error
}

var _ store.Store = (*Store)(nil)

func New(lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	return &Store{
		rowLocks:    make(map[string]chan struct{}),
		auctions:    make(map[uuid.UUID]domain.Auction),
		bids:        make(map[uuid.UUID][]domain.Bid),
		balances:    make(map[uuid.UUID]domain.Balance),
		settlements: make(map[uuid.UUID]domain.Settlement),
		lockTimeout: lockTimeout,
	}
}

// Seed stores rows directly, bypassing locks. Test and bootstrap helper.
func (s *Store) Seed(auctions []domain.Auction, balances []domain.Balance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range auctions {
		s.auctions[a.ID] = a
	}
	for _, b := range balances {
		s.balances[b.UserID] = b
	}
}

// Transactions returns every committed ledger entry in insertion order.
func (s *Store) Transactions() []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Transaction(nil), s.txs...)
}

func (s *Store) Adjustments() []domain.BalanceAdjustment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.BalanceAdjustment(nil), s.adjustments...)
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := s.fault("begin"); err != nil {
		return err
	}
	t := &tx{
		s:           s,
		held:        make(map[string]chan struct{}),
		auctions:    make(map[uuid.UUID]domain.Auction),
		bids:        make(map[uuid.UUID][]domain.Bid),
		balances:    make(map[uuid.UUID]domain.Balance),
		settlements: make(map[uuid.UUID]domain.Settlement),
	}
	defer t.release()

	if err := fn(ctx, t); err != nil {
		return err
	}
	if err := s.fault("commit"); err != nil {
		return err
	}
	t.commit()
	return nil
}

func (s *Store) fault(op string) error {
	if s.Faults == nil {
		return nil
	}
	return s.Faults(op)
}

func (s *Store) acquire(ctx context.Context, key string) (chan struct{}, error) {
	s.mu.Lock()
	ch, ok := s.rowLocks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		s.rowLocks[key] = ch
	}
	s.mu.Unlock()

	timer := time.NewTimer(s.lockTimeout)
	defer timer.Stop()
	select {
	case ch <- struct{}{}:
		return ch, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s", store.ErrLockTimeout, key)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", store.ErrLockTimeout, ctx.Err())
	}
}

// ─────────────────────────────── snapshot reads ──────────────────────────────

func (s *Store) GetAuction(_ context.Context, id uuid.UUID) (*domain.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.auctions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (s *Store) ListAuctions(_ context.Context, f store.AuctionFilter) ([]domain.Auction, error) {
	s.mu.Lock()
	list := make([]domain.Auction, 0, len(s.auctions))
	for _, a := range s.auctions {
		if f.Status == "" || a.Status == f.Status {
			list = append(list, a)
		}
	}
	s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].EndTime.After(list[j].EndTime) })
	return page(list, f.Limit, f.Offset), nil
}

func (s *Store) ListBids(_ context.Context, auctionID uuid.UUID, limit, offset int) ([]domain.Bid, error) {
	s.mu.Lock()
	src := s.bids[auctionID]
	list := make([]domain.Bid, len(src))
	for i := range src {
		list[len(src)-1-i] = src[i]
	}
	s.mu.Unlock()
	return page(list, limit, offset), nil
}

func (s *Store) DueForActivation(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return s.due(limit, func(a domain.Auction) (time.Time, bool) {
		return a.StartTime, a.Status == domain.AuctionScheduled && !now.Before(a.StartTime)
	}), nil
}

func (s *Store) DueForSettlement(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return s.due(limit, func(a domain.Auction) (time.Time, bool) {
		return a.EndTime, a.Status == domain.AuctionLive && !now.Before(a.EndTime)
	}), nil
}

func (s *Store) due(limit int, match func(domain.Auction) (time.Time, bool)) []uuid.UUID {
	type item struct {
		id uuid.UUID
		at time.Time
	}
	s.mu.Lock()
	var items []item
	for _, a := range s.auctions {
		if at, ok := match(a); ok {
			items = append(items, item{a.ID, at})
		}
	}
	s.mu.Unlock()

	sort.Slice(items, func(i, j int) bool { return items[i].at.Before(items[j].at) })
	ids := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.id)
	}
	return page(ids, limit, 0)
}

func (s *Store) GetSettlement(_ context.Context, auctionID uuid.UUID) (*domain.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settlements[auctionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &st, nil
}

func (s *Store) GetBalance(_ context.Context, userID uuid.UUID) (*domain.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.balanceLocked(userID)
	return &b, nil
}

func (s *Store) balanceLocked(userID uuid.UUID) domain.Balance {
	if b, ok := s.balances[userID]; ok {
		return b
	}
	return domain.Balance{UserID: userID}
}

func (s *Store) NegativeBalances(_ context.Context, limit int) ([]domain.Balance, error) {
	s.mu.Lock()
	var list []domain.Balance
	for _, b := range s.balances {
		if b.BalanceReal.IsNegative() {
			list = append(list, b)
		}
	}
	s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].BalanceReal.LessThan(list[j].BalanceReal) })
	return page(list, limit, 0), nil
}

func (s *Store) ListTransactions(_ context.Context, userID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	s.mu.Lock()
	var list []domain.Transaction
	for i := len(s.txs) - 1; i >= 0; i-- {
		if s.txs[i].UserID == userID {
			list = append(list, s.txs[i])
		}
	}
	s.mu.Unlock()
	return page(list, limit, offset), nil
}

func page[T any](list []T, limit, offset int) []T {
	if offset >= len(list) {
		return []T{}
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}
