package auctionhandler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"auctionengine/internal/domain"
	"auctionengine/internal/http/middleware"
	"auctionengine/internal/services/auction"
	"auctionengine/internal/services/bidding"
	"auctionengine/internal/services/ledger"
	"auctionengine/internal/store"
	"auctionengine/internal/store/memstore"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	r  *gin.Engine
	st *memstore.Store
	a  domain.Auction
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := memstore.New(time.Second)
	now := time.Now().UTC()
	a := domain.Auction{
		ID:           uuid.New(),
		SellerID:     uuid.New(),
		Title:        "lamp",
		StartingBid:  decimal.NewFromInt(100),
		BidIncrement: decimal.NewFromInt(10),
		Status:       domain.AuctionLive,
		StartTime:    now.Add(-time.Hour),
		EndTime:      now.Add(time.Hour),
		Version:      1,
	}
	st.Seed([]domain.Auction{a}, nil)

	retry := store.RetryPolicy{Attempts: 2, Backoff: time.Millisecond}
	svc := auction.NewAuctionService(st, nil, retry)
	ac := bidding.NewAcceptor(st, ledger.New(decimal.NewFromInt(1), "TRY"), nil, retry)

	r := gin.New()
	r.Use(middleware.Identity())
	New(svc, ac).Register(r)
	return &env{r: r, st: st, a: a}
}

func (e *env) funded(amount int64) uuid.UUID {
	id := uuid.New()
	e.st.Seed(nil, []domain.Balance{{UserID: id, BalanceReal: decimal.NewFromInt(amount)}})
	return id
}

func (e *env) do(method, path string, user uuid.UUID, role string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != uuid.Nil {
		req.Header.Set(middleware.HeaderUserID, user.String())
	}
	if role != "" {
		req.Header.Set(middleware.HeaderUserRole, role)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestPlaceBid(t *testing.T) {
	e := newEnv(t)
	path := "/auctions/" + e.a.ID.String() + "/bids"
	bidder := e.funded(1000)

	w := e.do(http.MethodPost, path, bidder, "", map[string]any{"amount": "100"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BidTooLow", decode[map[string]any](t, w)["reason"])

	w = e.do(http.MethodPost, path, bidder, "", map[string]any{"amount": "110"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	p := decode[bidding.Placement](t, w)
	assert.True(t, p.Leading)
	assert.Equal(t, 1, p.Auction.BidCount)

	w = e.do(http.MethodPost, path, e.funded(1000), "", map[string]any{"amount": "105"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "BidTooLow", decode[map[string]any](t, w)["reason"])

	w = e.do(http.MethodPost, path, e.funded(50), "", map[string]any{"amount": "120"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InsufficientBalance", decode[map[string]any](t, w)["reason"])
}

func TestPlaceBidErrors(t *testing.T) {
	e := newEnv(t)
	bidder := e.funded(1000)

	w := e.do(http.MethodPost, "/auctions/"+e.a.ID.String()+"/bids", uuid.Nil, "", map[string]any{"amount": "100"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(http.MethodPost, "/auctions/"+uuid.NewString()+"/bids", bidder, "", map[string]any{"amount": "100"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodPost, "/auctions/nope/bids", bidder, "", map[string]any{"amount": "100"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(http.MethodPost, "/auctions/"+e.a.ID.String()+"/bids", bidder, "", map[string]any{"amount": "100", "bid_type": "SNIPE"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBidListingHidesProxyCeiling(t *testing.T) {
	e := newEnv(t)
	path := "/auctions/" + e.a.ID.String() + "/bids"

	w := e.do(http.MethodPost, path, e.funded(1000), "", map[string]any{
		"amount": "110", "bid_type": "AUTOMATIC", "max_amount": "400",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(http.MethodGet, path, uuid.Nil, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "max_amount")
	bids := decode[[]BidView](t, w)
	require.Len(t, bids, 1)
	assert.Equal(t, domain.BidAutomatic, bids[0].BidType)
}

func TestCreateAuctionRequiresAgentOrAdmin(t *testing.T) {
	e := newEnv(t)
	now := time.Now().UTC()
	body := map[string]any{
		"title":         "bicycle",
		"starting_bid":  "50",
		"bid_increment": "5",
		"start_time":    now.Add(-time.Minute),
		"end_time":      now.Add(time.Hour),
	}

	w := e.do(http.MethodPost, "/auctions", uuid.New(), middleware.RoleUser, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	agent := uuid.New()
	w = e.do(http.MethodPost, "/auctions", agent, middleware.RoleAgent, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	a := decode[domain.Auction](t, w)
	assert.Equal(t, domain.AuctionLive, a.Status)
	assert.Equal(t, agent, a.SellerID)

	body["seller_id"] = "not-a-uuid"
	w = e.do(http.MethodPost, "/auctions", agent, middleware.RoleAgent, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	delete(body, "seller_id")

	body["bid_increment"] = "0"
	w = e.do(http.MethodPost, "/auctions", agent, middleware.RoleAgent, body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidAuction", decode[map[string]any](t, w)["reason"])
}

func TestGetAndListAuctions(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodGet, "/auctions/"+e.a.ID.String(), uuid.Nil, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, e.a.ID, decode[domain.Auction](t, w).ID)

	w = e.do(http.MethodGet, "/auctions/"+uuid.NewString(), uuid.Nil, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(http.MethodGet, "/auctions?status=LIVE", uuid.Nil, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.Auction](t, w), 1)

	w = e.do(http.MethodGet, "/auctions?status=RUNNING", uuid.Nil, "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
