package auction

import (
	"context"
	"testing"
	"time"

	"auctionengine/internal/domain"
	"auctionengine/internal/notify/notifytest"
	"auctionengine/internal/store"
	"auctionengine/internal/store/memstore"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*auctionService, *memstore.Store, *notifytest.Recorder) {
	t.Helper()
	st := memstore.New(time.Second)
	rec := &notifytest.Recorder{}
	svc := NewAuctionService(st, rec, store.RetryPolicy{Attempts: 2, Backoff: time.Millisecond}).(*auctionService)
	return svc, st, rec
}

func createRequest(start, end time.Time) CreateAuctionRequest {
	return CreateAuctionRequest{
		SellerID:     uuid.New(),
		Title:        "Vintage camera",
		StartingBid:  decimal.NewFromInt(100),
		BidIncrement: decimal.NewFromInt(10),
		StartTime:    start,
		EndTime:      end,
	}
}

func TestCreateAuctionScheduledOrLive(t *testing.T) {
	svc, _, rec := newTestService(t)
	now := time.Now()

	future, err := svc.CreateAuction(context.Background(), createRequest(now.Add(time.Hour), now.Add(2*time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionScheduled, future.Status)
	assert.EqualValues(t, 1, future.Version)
	assert.Empty(t, rec.Events())

	started, err := svc.CreateAuction(context.Background(), createRequest(now.Add(-time.Minute), now.Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionLive, started.Status)
	require.Len(t, rec.OfType(domain.EventAuctionLive), 1)
	assert.Contains(t, rec.Events()[0].Data, "end_time")
}

func TestCreateAuctionValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	now := time.Now()

	tests := []struct {
		name   string
		mutate func(r *CreateAuctionRequest)
	}{
		{"zero increment", func(r *CreateAuctionRequest) { r.BidIncrement = decimal.Zero }},
		{"negative starting bid", func(r *CreateAuctionRequest) { r.StartingBid = decimal.NewFromInt(-1) }},
		{"end before start", func(r *CreateAuctionRequest) { r.EndTime = r.StartTime.Add(-time.Minute) }},
		{"no title", func(r *CreateAuctionRequest) { r.Title = "  " }},
		{"no seller", func(r *CreateAuctionRequest) { r.SellerID = uuid.Nil }},
		{"increment below money scale", func(r *CreateAuctionRequest) { r.BidIncrement = decimal.RequireFromString("0.00001") }},
		{"reserve below money scale", func(r *CreateAuctionRequest) {
			r.ReservePrice = decimal.NewNullDecimal(decimal.RequireFromString("150.12345"))
		}},
		{"auto extend without extensions", func(r *CreateAuctionRequest) { r.AutoExtend = true }},
		{"ended already", func(r *CreateAuctionRequest) {
			r.StartTime, r.EndTime = now.Add(-2*time.Hour), now.Add(-time.Hour)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := createRequest(now.Add(time.Hour), now.Add(2*time.Hour))
			tt.mutate(&req)
			_, err := svc.CreateAuction(context.Background(), req)
			assert.ErrorIs(t, err, domain.ErrInvalidAuction)
		})
	}
}

func TestActivateDueIsIdempotent(t *testing.T) {
	svc, st, rec := newTestService(t)
	now := time.Now()
	a, err := svc.CreateAuction(context.Background(), createRequest(now.Add(time.Minute), now.Add(time.Hour)))
	require.NoError(t, err)

	n, err := svc.ActivateDue(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = svc.ActivateDue(context.Background(), now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = svc.ActivateDue(context.Background(), now.Add(3*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := st.GetAuction(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionLive, got.Status)
	assert.Len(t, rec.OfType(domain.EventAuctionLive), 1)
}

func TestCancelAuction(t *testing.T) {
	svc, st, rec := newTestService(t)
	now := time.Now()
	a, err := svc.CreateAuction(context.Background(), createRequest(now.Add(-time.Minute), now.Add(time.Hour)))
	require.NoError(t, err)
	rec.Reset()

	got, err := svc.CancelAuction(context.Background(), a.ID, uuid.New(), "counterfeit")
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionCancelled, got.Status)
	assert.NotEmpty(t, rec.For(a.SellerID))

	_, err = svc.CancelAuction(context.Background(), a.ID, uuid.New(), "again")
	assert.ErrorIs(t, err, domain.ErrAlreadyTerminal)

	stored, _ := st.GetAuction(context.Background(), a.ID)
	assert.Equal(t, domain.AuctionCancelled, stored.Status)
}

func TestCancelEndedAuctionIsRejected(t *testing.T) {
	svc, st, _ := newTestService(t)
	a := domain.Auction{
		ID:           uuid.New(),
		StartingBid:  decimal.NewFromInt(1),
		BidIncrement: decimal.NewFromInt(1),
		Status:       domain.AuctionEnded,
		EndTime:      time.Now(),
		Version:      1,
	}
	st.Seed([]domain.Auction{a}, nil)

	_, err := svc.CancelAuction(context.Background(), a.ID, uuid.New(), "late")
	assert.ErrorIs(t, err, domain.ErrAlreadyTerminal)
}

func TestGetAndListUnknownAuction(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.GetAuction(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)

	_, err = svc.ListBids(context.Background(), uuid.New(), 10, 0)
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)

	_, err = svc.ListAuctions(context.Background(), "running", 10, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}
