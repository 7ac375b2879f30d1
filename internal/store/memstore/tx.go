package memstore

import (
	"context"
	"fmt"

	"auctionengine/internal/domain"
	"auctionengine/internal/store"

	"github.com/google/uuid"
)

// tx stages every write and applies them to the store on commit.
type tx struct {
	s    *Store
	held map[string]chan struct{}

	auctions    map[uuid.UUID]domain.Auction
	bids        map[uuid.UUID][]domain.Bid
	balances    map[uuid.UUID]domain.Balance
	txs         []domain.Transaction
	adjustments []domain.BalanceAdjustment
	settlements map[uuid.UUID]domain.Settlement
}

func (t *tx) lock(ctx context.Context, key string) error {
	if _, ok := t.held[key]; ok {
		return nil
	}
	ch, err := t.s.acquire(ctx, key)
	if err != nil {
		return err
	}
	t.held[key] = ch
	return nil
}

func (t *tx) release() {
	for key, ch := range t.held {
		<-ch
		delete(t.held, key)
	}
}

func (t *tx) commit() {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range t.auctions {
		s.auctions[id] = a
	}
	for id, bids := range t.bids {
		s.bids[id] = append(s.bids[id], bids...)
	}
	for id, b := range t.balances {
		s.balances[id] = b
	}
	s.txs = append(s.txs, t.txs...)
	s.adjustments = append(s.adjustments, t.adjustments...)
	for id, st := range t.settlements {
		s.settlements[id] = st
	}
}

func auctionKey(id uuid.UUID) string { return "auction:" + id.String() }
func balanceKey(id uuid.UUID) string { return "balance:" + id.String() }

func (t *tx) auction(id uuid.UUID) (domain.Auction, bool) {
	if a, ok := t.auctions[id]; ok {
		return a, true
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	a, ok := t.s.auctions[id]
	return a, ok
}

func (t *tx) LockAuction(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	if err := t.lock(ctx, auctionKey(id)); err != nil {
		return nil, err
	}
	a, ok := t.auction(id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (t *tx) CreateAuction(ctx context.Context, a *domain.Auction) error {
	if _, ok := t.auction(a.ID); ok {
		return fmt.Errorf("%w: auction %s exists", store.ErrConflict, a.ID)
	}
	if err := t.lock(ctx, auctionKey(a.ID)); err != nil {
		return err
	}
	a.Version = 1
	t.auctions[a.ID] = *a
	return nil
}

func (t *tx) UpdateAuction(_ context.Context, a *domain.Auction) error {
	if _, ok := t.held[auctionKey(a.ID)]; !ok {
		return domain.Invariantf("auction %s updated without lock", a.ID)
	}
	cur, ok := t.auction(a.ID)
	if !ok {
		return store.ErrNotFound
	}
	if cur.Version != a.Version {
		return fmt.Errorf("%w: auction %s version %d != %d", store.ErrConflict, a.ID, a.Version, cur.Version)
	}
	a.Version++
	t.auctions[a.ID] = *a
	return nil
}

func (t *tx) InsertBid(_ context.Context, b *domain.Bid) error {
	t.bids[b.AuctionID] = append(t.bids[b.AuctionID], *b)
	return nil
}

func (t *tx) LatestBid(_ context.Context, auctionID uuid.UUID) (*domain.Bid, error) {
	if staged := t.bids[auctionID]; len(staged) > 0 {
		b := staged[len(staged)-1]
		return &b, nil
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	committed := t.s.bids[auctionID]
	if len(committed) == 0 {
		return nil, store.ErrNotFound
	}
	b := committed[len(committed)-1]
	return &b, nil
}

func (t *tx) GetBalance(_ context.Context, userID uuid.UUID) (*domain.Balance, error) {
	if b, ok := t.balances[userID]; ok {
		return &b, nil
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	b := t.s.balanceLocked(userID)
	return &b, nil
}

func (t *tx) LockBalance(ctx context.Context, userID uuid.UUID) (*domain.Balance, error) {
	if err := t.lock(ctx, balanceKey(userID)); err != nil {
		return nil, err
	}
	return t.GetBalance(ctx, userID)
}

func (t *tx) UpdateBalance(ctx context.Context, b *domain.Balance) error {
	if _, ok := t.held[balanceKey(b.UserID)]; !ok {
		return domain.Invariantf("balance %s updated without lock", b.UserID)
	}
	cur, _ := t.GetBalance(ctx, b.UserID)
	if cur.Version != b.Version {
		return fmt.Errorf("%w: balance %s version %d != %d", store.ErrConflict, b.UserID, b.Version, cur.Version)
	}
	b.Version++
	t.balances[b.UserID] = *b
	return nil
}

func (t *tx) InsertTransaction(_ context.Context, tr *domain.Transaction) error {
	t.txs = append(t.txs, *tr)
	return nil
}

func (t *tx) findTransaction(match func(domain.Transaction) bool) (*domain.Transaction, error) {
	for i := range t.txs {
		if match(t.txs[i]) {
			tr := t.txs[i]
			return &tr, nil
		}
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i := range t.s.txs {
		if match(t.s.txs[i]) {
			tr := t.s.txs[i]
			return &tr, nil
		}
	}
	return nil, store.ErrNotFound
}

func (t *tx) GetTransaction(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return t.findTransaction(func(tr domain.Transaction) bool { return tr.ID == id })
}

func (t *tx) FindReversal(_ context.Context, originalID uuid.UUID) (*domain.Transaction, error) {
	return t.findTransaction(func(tr domain.Transaction) bool {
		return tr.TransactionType == domain.TxReversal &&
			tr.RelatedID.Valid && tr.RelatedID.UUID == originalID
	})
}

func (t *tx) InsertAdjustment(_ context.Context, adj *domain.BalanceAdjustment) error {
	t.adjustments = append(t.adjustments, *adj)
	return nil
}

func (t *tx) GetSettlement(_ context.Context, auctionID uuid.UUID) (*domain.Settlement, error) {
	if st, ok := t.settlements[auctionID]; ok {
		return &st, nil
	}
	return t.s.GetSettlement(context.Background(), auctionID)
}

func (t *tx) InsertSettlement(ctx context.Context, st *domain.Settlement) error {
	if _, err := t.GetSettlement(ctx, st.AuctionID); err == nil {
		return fmt.Errorf("%w: auction %s already settled", store.ErrConflict, st.AuctionID)
	}
	t.settlements[st.AuctionID] = *st
	return nil
}
