package bidding

import (
	"context"
	"sync"
	"testing"
	"time"

	"auctionengine/internal/domain"
	"auctionengine/internal/notify/notifytest"
	"auctionengine/internal/services/ledger"
	"auctionengine/internal/store"
	"auctionengine/internal/store/memstore"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	st  *memstore.Store
	rec *notifytest.Recorder
	ac  *Acceptor
	a   domain.Auction
}

func newHarness(t *testing.T, mutate func(a *domain.Auction), rules ...Rule) *harness {
	t.Helper()
	a := *liveAuction(time.Now())
	if mutate != nil {
		mutate(&a)
	}
	st := memstore.New(2 * time.Second)
	st.Seed([]domain.Auction{a}, nil)
	rec := &notifytest.Recorder{}
	ac := NewAcceptor(st, ledger.New(decimal.NewFromInt(10), "TRY"), rec,
		store.RetryPolicy{Attempts: 3, Backoff: time.Millisecond}, rules...)
	return &harness{st: st, rec: rec, ac: ac, a: a}
}

// funded creates a user able to pay up to amount.
func (h *harness) funded(amount int64) uuid.UUID {
	id := uuid.New()
	h.st.Seed(nil, []domain.Balance{{UserID: id, BalanceReal: d(amount)}})
	return id
}

func (h *harness) bid(user uuid.UUID, amount int64) (*Placement, error) {
	return h.ac.PlaceBid(context.Background(), PlaceBidRequest{
		AuctionID: h.a.ID, UserID: user, Amount: d(amount), Type: domain.BidManual,
	})
}

func (h *harness) proxy(user uuid.UUID, amount, max int64) (*Placement, error) {
	return h.ac.PlaceBid(context.Background(), PlaceBidRequest{
		AuctionID: h.a.ID, UserID: user, Amount: d(amount), Type: domain.BidAutomatic,
		MaxAmount: decimal.NewNullDecimal(d(max)),
	})
}

func (h *harness) auction(t *testing.T) *domain.Auction {
	t.Helper()
	a, err := h.st.GetAuction(context.Background(), h.a.ID)
	require.NoError(t, err)
	return a
}

func (h *harness) history(t *testing.T) []domain.Bid {
	t.Helper()
	bids, err := h.st.ListBids(context.Background(), h.a.ID, 0, 0)
	require.NoError(t, err)
	// newest first; flip to acceptance order
	for i, j := 0, len(bids)-1; i < j; i, j = i+1, j-1 {
		bids[i], bids[j] = bids[j], bids[i]
	}
	return bids
}

func TestScenarioMinimumAndConcurrentBids(t *testing.T) {
	h := newHarness(t, nil)
	first := h.funded(1000)

	_, err := h.bid(first, 105)
	assert.ErrorIs(t, err, domain.ErrBidTooLow)

	placed, err := h.bid(first, 110)
	require.NoError(t, err)
	assert.True(t, placed.Leading)
	a := h.auction(t)
	assert.True(t, a.CurrentBid.Decimal.Equal(d(110)))
	assert.Equal(t, 1, a.BidCount)

	u1, u2 := h.funded(1000), h.funded(1000)
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, u := range []uuid.UUID{u1, u2} {
		wg.Add(1)
		go func(i int, u uuid.UUID) {
			defer wg.Done()
			_, errs[i] = h.bid(u, 120)
		}(i, u)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrBidTooLow)
	}
	assert.Equal(t, 1, accepted)

	a = h.auction(t)
	assert.True(t, a.CurrentBid.Decimal.Equal(d(120)))
	assert.Equal(t, 2, a.BidCount)
}

func TestConcurrentBidsStayMonotonic(t *testing.T) {
	h := newHarness(t, nil)
	const bidders = 24

	users := make([]uuid.UUID, bidders)
	for i := range users {
		users[i] = h.funded(100000)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i, u := range users {
		wg.Add(1)
		go func(i int, u uuid.UUID) {
			defer wg.Done()
			// Every bidder aims for the same minimum, then retries once above it.
			for _, amount := range []int64{110, 110 + int64(i+1)*10} {
				if _, err := h.bid(u, amount); err == nil {
					mu.Lock()
					accepted++
					mu.Unlock()
				} else {
					assert.True(t, domain.IsRejection(err), "unexpected error %v", err)
				}
			}
		}(i, u)
	}
	wg.Wait()

	bids := h.history(t)
	require.Len(t, bids, accepted)
	a := h.auction(t)
	assert.Equal(t, accepted, a.BidCount)

	prev := a.StartingBid
	for i, b := range bids {
		assert.Equal(t, i+1, b.Sequence)
		assert.True(t, b.Amount.GreaterThanOrEqual(prev.Add(a.BidIncrement)),
			"bid %d amount %s after %s", i, b.Amount, prev)
		prev = b.Amount
	}
	assert.True(t, a.CurrentBid.Decimal.Equal(bids[len(bids)-1].Amount))
	assert.Equal(t, bids[len(bids)-1].UserID, a.HighBidderID.UUID)
}

func TestBidsOnDifferentAuctionsRunInParallel(t *testing.T) {
	h := newHarness(t, nil)
	other := *liveAuction(time.Now())
	h.st.Seed([]domain.Auction{other}, nil)
	user := h.funded(1000)

	// Hold the first auction's row lock while bidding on the second.
	locked := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = h.st.RunInTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
			_, err := tx.LockAuction(ctx, h.a.ID)
			close(locked)
			<-done
			return err
		})
	}()
	<-locked

	_, err := h.ac.PlaceBid(context.Background(), PlaceBidRequest{
		AuctionID: other.ID, UserID: user, Amount: d(110), Type: domain.BidManual,
	})
	close(done)
	require.NoError(t, err)
}

func TestLockTimeoutSurfacesTryAgain(t *testing.T) {
	h := newHarness(t, nil)
	h.st.Faults = func(op string) error {
		if op == "begin" {
			return store.ErrLockTimeout
		}
		return nil
	}
	_, err := h.bid(h.funded(1000), 110)
	assert.ErrorIs(t, err, domain.ErrTryAgain)
	assert.False(t, domain.IsRejection(err))
	assert.Zero(t, h.auction(t).BidCount)
}

func TestTransientFailureIsRetried(t *testing.T) {
	h := newHarness(t, nil)
	var mu sync.Mutex
	failures := 2
	h.st.Faults = func(op string) error {
		mu.Lock()
		defer mu.Unlock()
		if op == "commit" && failures > 0 {
			failures--
			return store.ErrConflict
		}
		return nil
	}

	_, err := h.bid(h.funded(1000), 110)
	require.NoError(t, err)
	assert.Equal(t, 1, h.auction(t).BidCount)
	assert.Len(t, h.history(t), 1)
}

func TestRejectedBidWritesNothing(t *testing.T) {
	h := newHarness(t, nil)
	user := h.funded(50)

	_, err := h.bid(user, 110)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Empty(t, h.history(t))
	assert.Empty(t, h.rec.Events())
	assert.EqualValues(t, 1, h.auction(t).Version)
}

func TestVirtualBalanceCountsTowardsFunding(t *testing.T) {
	h := newHarness(t, nil)
	user := uuid.New()
	h.st.Seed(nil, []domain.Balance{{UserID: user, BalanceReal: d(60), BalanceVirtual: d(500)}})

	_, err := h.bid(user, 110)
	require.NoError(t, err)
}

func TestUnknownAuction(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.ac.PlaceBid(context.Background(), PlaceBidRequest{
		AuctionID: uuid.New(), UserID: h.funded(1000), Amount: d(110),
	})
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)
}

func TestSellerRule(t *testing.T) {
	h := newHarness(t, nil, RejectSellerBid)
	h.st.Seed(nil, []domain.Balance{{UserID: h.a.SellerID, BalanceReal: d(1000)}})
	_, err := h.bid(h.a.SellerID, 110)
	assert.ErrorIs(t, err, domain.ErrSellerBid)
}

func TestNotificationsAfterCommit(t *testing.T) {
	h := newHarness(t, nil)
	first, second := h.funded(1000), h.funded(1000)

	_, err := h.bid(first, 110)
	require.NoError(t, err)
	require.Len(t, h.rec.For(first), 1)
	assert.Equal(t, domain.EventBidPlaced, h.rec.For(first)[0].Type)
	assert.Empty(t, h.rec.OfType(domain.EventBidOutbid))

	_, err = h.bid(second, 120)
	require.NoError(t, err)
	outbid := h.rec.OfType(domain.EventBidOutbid)
	require.Len(t, outbid, 1)
	assert.Equal(t, first, outbid[0].UserID.UUID)

	// Raising your own lead notifies nobody else.
	h.rec.Reset()
	_, err = h.bid(second, 130)
	require.NoError(t, err)
	assert.Empty(t, h.rec.OfType(domain.EventBidOutbid))
}

func TestExtensionDuringBid(t *testing.T) {
	var end time.Time
	h := newHarness(t, func(a *domain.Auction) {
		end = time.Now().Add(time.Minute)
		a.EndTime = end
		a.AutoExtend = true
		a.ExtensionTriggerMinutes = 5
		a.ExtensionDurationMinutes = 10
		a.MaxExtensions = 1
	})
	first, second := h.funded(1000), h.funded(1000)

	placed, err := h.bid(first, 110)
	require.NoError(t, err)
	assert.True(t, placed.Extended)
	assert.Equal(t, end.Add(10*time.Minute), h.auction(t).EndTime)

	extended := h.rec.OfType(domain.EventAuctionExtended)
	require.Len(t, extended, 1)
	assert.False(t, extended[0].UserID.Valid)

	placed, err = h.bid(second, 120)
	require.NoError(t, err)
	assert.False(t, placed.Extended)
	a := h.auction(t)
	assert.Equal(t, end.Add(10*time.Minute), a.EndTime)
	assert.Equal(t, 1, a.ExtensionsUsed)
}

func TestBidAfterEndIsRejected(t *testing.T) {
	h := newHarness(t, func(a *domain.Auction) {
		a.EndTime = time.Now().Add(-time.Second)
	})
	_, err := h.bid(h.funded(1000), 110)
	assert.ErrorIs(t, err, domain.ErrAuctionEnded)
}
