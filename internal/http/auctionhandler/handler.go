package auctionhandler

import (
	"context"
	"net/http"

	"auctionengine/internal/http/httperr"
	"auctionengine/internal/http/middleware"
	"auctionengine/internal/services/auction"
	"auctionengine/internal/services/bidding"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Bidder interface {
	PlaceBid(ctx context.Context, req bidding.PlaceBidRequest) (*bidding.Placement, error)
}

type Handler struct {
	svc    auction.IAuctionService
	bidder Bidder
}

func New(svc auction.IAuctionService, bidder Bidder) *Handler {
	return &Handler{svc: svc, bidder: bidder}
}

// Register mounts the auction routes. bidGuards run in front of bid
// placement, after authentication.
func (h *Handler) Register(r gin.IRoutes, bidGuards ...gin.HandlerFunc) {
	r.GET("/auctions", h.list)
	r.GET("/auctions/:id", h.info)
	r.GET("/auctions/:id/bids", h.bids)
	r.POST("/auctions", middleware.RequireRole(middleware.RoleAdmin, middleware.RoleAgent), h.create)

	place := append([]gin.HandlerFunc{middleware.RequireUser()}, bidGuards...)
	r.POST("/auctions/:id/bids", append(place, h.bid)...)
}

func auctionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httperr.Abort(c, http.StatusBadRequest, "invalid auction id")
		return uuid.Nil, false
	}
	return id, true
}

// @Summary		Create an auction
// @Description	Agents and admins list an item. The auction goes live at start_time.
// @Tags			Auctions
// @Param			body	body		CreateAuctionBody	true	"Auction"
// @Success		201		{object}	domain.Auction
// @Failure		400		{object}	httperr.ErrorResponse
// @Failure		403		{object}	httperr.ErrorResponse
// @Router			/auctions [post]
func (h *Handler) create(c *gin.Context) {
	var body CreateAuctionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		httperr.Abort(c, http.StatusBadRequest, err.Error())
		return
	}
	seller, _ := middleware.UserID(c)
	if body.SellerID != "" {
		id, err := uuid.Parse(body.SellerID)
		if err != nil {
			httperr.Abort(c, http.StatusBadRequest, "seller_id must be a uuid")
			return
		}
		seller = id
	}

	a, err := h.svc.CreateAuction(c.Request.Context(), auction.CreateAuctionRequest{
		SellerID:                 seller,
		Title:                    body.Title,
		StartingBid:              body.StartingBid,
		BidIncrement:             body.BidIncrement,
		ReservePrice:             body.ReservePrice,
		StartTime:                body.StartTime,
		EndTime:                  body.EndTime,
		AutoExtend:               body.AutoExtend,
		ExtensionTriggerMinutes:  body.ExtensionTriggerMinutes,
		ExtensionDurationMinutes: body.ExtensionDurationMinutes,
		MaxExtensions:            body.MaxExtensions,
	})
	if err != nil {
		httperr.Write(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// @Summary		Get auction details
// @Description	Returns full information about a single auction.
// @Tags			Auctions
// @Param			id	path		string	true	"Auction ID"
// @Success		200	{object}	domain.Auction
// @Failure		404	{object}	httperr.ErrorResponse
// @Router			/auctions/{id} [get]
func (h *Handler) info(c *gin.Context) {
	id, ok := auctionID(c)
	if !ok {
		return
	}
	a, err := h.svc.GetAuction(c.Request.Context(), id)
	if err != nil {
		httperr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// @Summary		List auctions
// @Description	Retrieves a paginated list of auctions, optionally filtered by status.
// @Tags			Auctions
// @Param			status	query		string	false	"Status filter"			Enums(SCHEDULED,LIVE,ENDED,CANCELLED)
// @Param			limit	query		int		false	"Max results (0-100)"	minimum(0)	maximum(100)	default(20)
// @Param			offset	query		int		false	"Offset for pagination"	minimum(0)	default(0)
// @Success		200		{array}		domain.Auction
// @Failure		400		{object}	httperr.ErrorResponse
// @Router			/auctions [get]
func (h *Handler) list(c *gin.Context) {
	var q ListAuctionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httperr.Abort(c, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.svc.ListAuctions(c.Request.Context(), q.Status, q.Limit, q.Offset)
	if err != nil {
		httperr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		List bids
// @Description	Bid history of an auction, newest first.
// @Tags			Auctions
// @Param			id		path	string	true	"Auction ID"
// @Param			limit	query	int		false	"Max results (0-200)"	default(50)
// @Param			offset	query	int		false	"Offset for pagination"	default(0)
// @Success		200		{array}		BidView
// @Failure		404		{object}	httperr.ErrorResponse
// @Router			/auctions/{id}/bids [get]
func (h *Handler) bids(c *gin.Context) {
	id, ok := auctionID(c)
	if !ok {
		return
	}
	var q PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httperr.Abort(c, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.svc.ListBids(c.Request.Context(), id, q.Limit, q.Offset)
	if err != nil {
		httperr.Write(c, err)
		return
	}
	c.JSON(http.StatusOK, publicBids(out))
}

// @Summary		Place a bid
// @Description	Places a manual bid, or an automatic bid with a proxy ceiling.
// @Tags			Bids
// @Param			id			path		string			true	"Auction ID"
// @Param			X-User-ID	header		string			true	"Bidder"
// @Param			body		body		PlaceBidBody	true	"Bid payload"
// @Success		201			{object}	bidding.Placement
// @Failure		400			{object}	httperr.ErrorResponse
// @Failure		404			{object}	httperr.ErrorResponse
// @Failure		409			{object}	httperr.ErrorResponse
// @Failure		429			{object}	httperr.ErrorResponse
// @Router			/auctions/{id}/bids [post]
func (h *Handler) bid(c *gin.Context) {
	id, ok := auctionID(c)
	if !ok {
		return
	}
	var body PlaceBidBody
	if err := c.ShouldBindJSON(&body); err != nil {
		httperr.Abort(c, http.StatusBadRequest, err.Error())
		return
	}
	userID, _ := middleware.UserID(c)

	p, err := h.bidder.PlaceBid(c.Request.Context(), bidding.PlaceBidRequest{
		AuctionID: id,
		UserID:    userID,
		Amount:    body.Amount,
		Type:      body.BidType,
		MaxAmount: body.MaxAmount,
	})
	if err != nil {
		httperr.Write(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}
