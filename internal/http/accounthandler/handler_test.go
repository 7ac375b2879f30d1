package accounthandler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"auctionengine/internal/domain"
	"auctionengine/internal/http/middleware"
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
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := memstore.New(time.Second)
	l := ledger.New(decimal.NewFromInt(10), "TRY")
	svc := ledger.NewService(st, l, nil, store.RetryPolicy{Attempts: 2, Backoff: time.Millisecond})

	r := gin.New()
	r.Use(middleware.Identity())
	me := r.Group("", middleware.RequireUser())
	admin := r.Group("", middleware.RequireRole(middleware.RoleAdmin))
	New(svc, l).Register(me, admin)
	return &env{r: r, st: st}
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

func field(t *testing.T, w *httptest.ResponseRecorder, key string) any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())
	return m[key]
}

func TestBalanceShowsSpendingPower(t *testing.T) {
	e := newEnv(t)
	user := uuid.New()
	e.st.Seed(nil, []domain.Balance{{UserID: user, BalanceReal: decimal.NewFromInt(100), BalanceVirtual: decimal.NewFromInt(50)}})

	w := e.do(http.MethodGet, "/me/balance", user, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "105", field(t, w, "spending_power"))
	assert.Equal(t, "100", field(t, w, "balance_real"))

	assert.Equal(t, http.StatusUnauthorized, e.do(http.MethodGet, "/me/balance", uuid.Nil, "", nil).Code)
}

func TestConvertAndListTransactions(t *testing.T) {
	e := newEnv(t)
	user := uuid.New()
	e.st.Seed(nil, []domain.Balance{{UserID: user, BalanceReal: decimal.NewFromInt(100)}})

	w := e.do(http.MethodPost, "/me/balance/convert", user, "", map[string]any{"amount": "20"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, string(domain.TxVirtualConversion), field(t, w, "transaction_type"))

	w = e.do(http.MethodPost, "/me/balance/convert", user, "", map[string]any{"amount": "500"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InsufficientBalance", field(t, w, "reason"))

	w = e.do(http.MethodGet, "/me/transactions", user, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var txs []domain.Transaction
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &txs))
	require.Len(t, txs, 1)
	assert.Equal(t, user, txs[0].UserID)
}

func TestAdminAdjustAndReverse(t *testing.T) {
	e := newEnv(t)
	admin, user := uuid.New(), uuid.New()
	path := "/admin/balances/" + user.String() + "/adjust"

	w := e.do(http.MethodPost, path, user, middleware.RoleUser, map[string]any{"field": "real", "delta": "10", "reason": "x"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(http.MethodPost, path, admin, middleware.RoleAdmin, map[string]any{"field": "real", "delta": "-10", "reason": "chargeback"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InsufficientBalance", field(t, w, "reason"))

	w = e.do(http.MethodPost, path, admin, middleware.RoleAdmin, map[string]any{
		"field": "real", "delta": "-10", "reason": "chargeback", "allow_negative": true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res ledger.AdjustResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.True(t, res.Balance.BalanceReal.Equal(decimal.NewFromInt(-10)))

	reverse := "/admin/transactions/" + res.Transaction.ID.String() + "/reverse"
	w = e.do(http.MethodPost, reverse, admin, middleware.RoleAdmin, map[string]any{"reason": "mistake"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = e.do(http.MethodPost, reverse, admin, middleware.RoleAdmin, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "AlreadyReversed", field(t, w, "reason"))

	w = e.do(http.MethodPost, "/admin/transactions/"+uuid.NewString()+"/reverse", admin, middleware.RoleAdmin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
