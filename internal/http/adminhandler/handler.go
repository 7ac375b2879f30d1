package adminhandler

import (
	"context"
	"net/http"
	"time"

	"auctionengine/internal/domain"
	"auctionengine/internal/http/httperr"
	"auctionengine/internal/http/middleware"
	"auctionengine/internal/services/settlement"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Settler interface {
	Settle(ctx context.Context, auctionID uuid.UUID, opts settlement.Options) (*domain.Settlement, error)
	SettleDue(ctx context.Context, now time.Time) (settlement.SweepResult, error)
	CheckNegativeBalances(ctx context.Context) ([]domain.Balance, error)
}

type Auctions interface {
	ActivateDue(ctx context.Context, now time.Time) (int, error)
	CancelAuction(ctx context.Context, id, actor uuid.UUID, reason string) (*domain.Auction, error)
}

type Handler struct {
	settler  Settler
	auctions Auctions
	now      func() time.Time
}

func New(settler Settler, auctions Auctions) *Handler {
	return &Handler{settler: settler, auctions: auctions, now: time.Now}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.POST("/admin/settlement", h.settlement)
	r.POST("/admin/auctions/activate-due", h.activateDue)
	r.POST("/admin/auctions/settle-due", h.settleDue)
	r.POST("/admin/auctions/:id/cancel", h.cancel)
}

// @Summary		Settle an auction or check balances
// @Description	action=settle ends one auction (force settles before its end time); action=check_negative reports users below zero.
// @Tags			Admin
// @Param			X-User-ID	header		string			true	"Admin"
// @Param			body		body		SettlementBody	true	"Command"
// @Success		200			{object}	SettlementResponse
// @Failure		400			{object}	httperr.ErrorResponse
// @Failure		404			{object}	httperr.ErrorResponse
// @Failure		409			{object}	httperr.ErrorResponse
// @Router			/admin/settlement [post]
func (h *Handler) settlement(c *gin.Context) {
	var body SettlementBody
	if err := c.ShouldBindJSON(&body); err != nil {
		httperr.Abort(c, http.StatusBadRequest, err.Error())
		return
	}
	ctx := c.Request.Context()

	switch body.Action {
	case ActionCheckNegative:
		list, err := h.settler.CheckNegativeBalances(ctx)
		if err != nil {
			httperr.Write(c, err)
			return
		}
		c.JSON(http.StatusOK, SettlementResponse{Action: body.Action, NegativeBalances: list, Count: len(list)})
	default:
		if body.ProductID == "" {
			httperr.Abort(c, http.StatusBadRequest, "productId is required for settle")
			return
		}
		auctionID, err := uuid.Parse(body.ProductID)
		if err != nil {
			httperr.Abort(c, http.StatusBadRequest, "productId must be a uuid")
			return
		}
		admin, _ := middleware.UserID(c)
		st, err := h.settler.Settle(ctx, auctionID, settlement.Options{
			Force:   body.Force,
			ActorID: uuid.NullUUID{UUID: admin, Valid: true},
		})
		if err != nil {
			httperr.Write(c, err)
			return
		}
		c.JSON(http.StatusOK, SettlementResponse{Action: ActionSettle, Settlement: st})
	}
}

// @Summary		Activate due auctions
// @Tags			Admin
// @Param			X-User-ID	header		string	true	"Admin"
// @Success		200			{object}	SweepResponse
// @Router			/admin/auctions/activate-due [post]
func (h *Handler) activateDue(c *gin.Context) {
	n, err := h.auctions.ActivateDue(c.Request.Context(), h.now().UTC())
	c.JSON(http.StatusOK, sweepResponse(SweepResponse{Activated: n}, err))
}

// @Summary		Settle due auctions
// @Tags			Admin
// @Param			X-User-ID	header		string	true	"Admin"
// @Success		200			{object}	SweepResponse
// @Router			/admin/auctions/settle-due [post]
func (h *Handler) settleDue(c *gin.Context) {
	res, err := h.settler.SettleDue(c.Request.Context(), h.now().UTC())
	c.JSON(http.StatusOK, sweepResponse(SweepResponse{SweepResult: res}, err))
}

// @Summary		Cancel an auction
// @Tags			Admin
// @Param			id			path		string		true	"Auction ID"
// @Param			X-User-ID	header		string		true	"Admin"
// @Param			body		body		CancelBody	true	"Reason"
// @Success		200			{object}	domain.Auction
// @Failure		400			{object}	httperr.ErrorResponse
// @Failure		404			{object}	httperr.ErrorResponse
// @Router			/admin/auctions/{id}/cancel [post]
func (h *Handler) cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httperr.Abort(c, http.StatusBadRequest, "invalid auction id")
		return
	}
	var body CancelBody
	if err := c.ShouldBindJSON(&body); err != nil {
		httperr.Abort(c, http.StatusBadRequest, err.Error())
		return
	}
	admin, _ := middleware.UserID(c)
	a, err := h.auctions.CancelAuction(c.Request.Context(), id, admin, body.Reason)
	if err != nil {
		httperr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// Sweeps report partial progress; individual failures are listed instead of
// failing the whole request.
func sweepResponse(r SweepResponse, err error) SweepResponse {
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
