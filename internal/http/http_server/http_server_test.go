package http_server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"auctionengine/internal/http/accounthandler"
	"auctionengine/internal/http/adminhandler"
	"auctionengine/internal/http/auctionhandler"
	"auctionengine/internal/http/middleware"
	"auctionengine/internal/services/auction"
	"auctionengine/internal/services/bidding"
	"auctionengine/internal/services/ledger"
	"auctionengine/internal/services/settlement"
	"auctionengine/internal/store"
	"auctionengine/internal/store/memstore"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type denyAll struct{ calls int }

func (d *denyAll) Allow(context.Context, string) (bool, error) {
	d.calls++
	return false, nil
}

func newRouter(limiter middleware.Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	st := memstore.New(time.Second)
	retry := store.RetryPolicy{Attempts: 1}
	book := ledger.New(decimal.NewFromInt(1), "TRY")
	auctions := auction.NewAuctionService(st, nil, retry)
	acceptor := bidding.NewAcceptor(st, book, nil, retry)
	engine := settlement.NewEngine(st, book, nil, retry, settlement.RequireReserve, 1)

	h := Handlers{
		Auctions:   auctionhandler.New(auctions, acceptor),
		Accounts:   accounthandler.New(ledger.NewService(st, book, nil, retry), book),
		Admin:      adminhandler.New(engine, auctions),
		BidLimiter: limiter,
	}
	return NewHttpServer(context.Background(), 0, h).Router()
}

func request(r *gin.Engine, method, path, role string) int {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set(middleware.HeaderUserID, uuid.NewString())
	if role != "" {
		req.Header.Set(middleware.HeaderUserRole, role)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRoutesAndGuards(t *testing.T) {
	r := newRouter(nil)

	assert.Equal(t, http.StatusNoContent, request(r, http.MethodGet, "/healthz", ""))
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/auctions", ""))
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/me/balance", ""))
	assert.Equal(t, http.StatusForbidden, request(r, http.MethodPost, "/admin/auctions/activate-due", ""))
	assert.Equal(t, http.StatusOK, request(r, http.MethodPost, "/admin/auctions/activate-due", middleware.RoleAdmin))
}

func TestBidLimiterGuardsPlacement(t *testing.T) {
	limiter := &denyAll{}
	r := newRouter(limiter)

	assert.Equal(t, http.StatusTooManyRequests, request(r, http.MethodPost, "/auctions/"+uuid.NewString()+"/bids", ""))
	assert.Equal(t, 1, limiter.calls)
	assert.Equal(t, http.StatusOK, request(r, http.MethodGet, "/auctions", ""))
	assert.Equal(t, 1, limiter.calls)
}
