package accounthandler

import (
	"context"
	"net/http"
	"strings"

	"auctionengine/internal/domain"
	"auctionengine/internal/http/httperr"
	"auctionengine/internal/http/middleware"
	"auctionengine/internal/services/ledger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Accounts interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (*domain.Balance, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Transaction, error)
	ConvertToVirtual(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*domain.Transaction, error)
	AdjustBalance(ctx context.Context, req ledger.AdjustRequest) (*ledger.AdjustResult, error)
	Reverse(ctx context.Context, req ledger.ReverseRequest) (*domain.Transaction, error)
}

type Handler struct {
	svc    Accounts
	ledger *ledger.Ledger
}

func New(svc Accounts, l *ledger.Ledger) *Handler { return &Handler{svc: svc, ledger: l} }

// Register mounts the caller's own routes on me and the administrative ones
// on admin. Both groups are expected to be authenticated already.
func (h *Handler) Register(me, admin gin.IRoutes) {
	me.GET("/me/balance", h.balance)
	me.GET("/me/transactions", h.transactions)
	me.POST("/me/balance/convert", h.convert)

	admin.POST("/admin/balances/:userId/adjust", h.adjust)
	admin.POST("/admin/transactions/:id/reverse", h.reverse)
}

// @Summary		My balance
// @Tags			Balance
// @Param			X-User-ID	header		string	true	"Caller"
// @Success		200			{object}	BalanceView
// @Router			/me/balance [get]
func (h *Handler) balance(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	b, err := h.svc.GetBalance(c.Request.Context(), userID)
	if err != nil {
		httperr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, BalanceView{Balance: *b, SpendingPower: h.ledger.SpendingPower(b)})
}

// @Summary		My transactions
// @Description	Ledger entries of the caller, newest first.
// @Tags			Balance
// @Param			X-User-ID	header	string	true	"Caller"
// @Param			limit		query	int		false	"Max results (0-200)"	default(50)
// @Param			offset		query	int		false	"Offset for pagination"	default(0)
// @Success		200			{array}	domain.Transaction
// @Router			/me/transactions [get]
func (h *Handler) transactions(c *gin.Context) {
	var q PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httperr.Abort(c, http.StatusBadRequest, err.Error())
		return
	}
	userID, _ := middleware.UserID(c)
	out, err := h.svc.ListTransactions(c.Request.Context(), userID, q.Limit, q.Offset)
	if err != nil {
		httperr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		Convert real balance to virtual
// @Tags			Balance
// @Param			X-User-ID	header		string		true	"Caller"
// @Param			body		body		ConvertBody	true	"Amount of real currency"
// @Success		201			{object}	domain.Transaction
// @Failure		400			{object}	httperr.ErrorResponse
// @Router			/me/balance/convert [post]
func (h *Handler) convert(c *gin.Context) {
	var body ConvertBody
	if err := c.ShouldBindJSON(&body); err != nil {
		httperr.Abort(c, http.StatusBadRequest, err.Error())
		return
	}
	userID, _ := middleware.UserID(c)
	t, err := h.svc.ConvertToVirtual(c.Request.Context(), userID, body.Amount)
	if err != nil {
		httperr.Write(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// @Summary		Adjust a balance
// @Description	Admin correction of one balance column. allow_negative permits a result below zero.
// @Tags			Admin
// @Param			userId		path		string		true	"User ID"
// @Param			X-User-ID	header		string		true	"Admin"
// @Param			body		body		AdjustBody	true	"Adjustment"
// @Success		201			{object}	ledger.AdjustResult
// @Failure		400			{object}	httperr.ErrorResponse
// @Router			/admin/balances/{userId}/adjust [post]
func (h *Handler) adjust(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		httperr.Abort(c, http.StatusBadRequest, "invalid user id")
		return
	}
	var body AdjustBody
	if err := c.ShouldBindJSON(&body); err != nil {
		httperr.Abort(c, http.StatusBadRequest, err.Error())
		return
	}
	admin, _ := middleware.UserID(c)

	res, err := h.svc.AdjustBalance(c.Request.Context(), ledger.AdjustRequest{
		UserID:        userID,
		Field:         domain.BalanceField(strings.ToLower(body.Field)),
		Delta:         body.Delta,
		Reason:        body.Reason,
		AdjustedBy:    admin,
		AllowNegative: body.AllowNegative,
	})
	if err != nil {
		httperr.Write(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// @Summary		Reverse a transaction
// @Description	Writes a correcting entry for a completed transaction. Each transaction can be reversed once.
// @Tags			Admin
// @Param			id			path		string		true	"Transaction ID"
// @Param			X-User-ID	header		string		true	"Admin"
// @Param			body		body		ReverseBody	false	"Reason"
// @Success		201			{object}	domain.Transaction
// @Failure		400			{object}	httperr.ErrorResponse
// @Failure		404			{object}	httperr.ErrorResponse
// @Router			/admin/transactions/{id}/reverse [post]
func (h *Handler) reverse(c *gin.Context) {
	txID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httperr.Abort(c, http.StatusBadRequest, "invalid transaction id")
		return
	}
	var body ReverseBody
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			httperr.Abort(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	admin, _ := middleware.UserID(c)

	t, err := h.svc.Reverse(c.Request.Context(), ledger.ReverseRequest{TransactionID: txID, ActorID: admin, Reason: body.Reason})
	if err != nil {
		httperr.Write(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}
