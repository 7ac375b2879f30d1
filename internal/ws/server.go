package ws

import (
	"context"
	"net/http"
	"time"

	"auctionengine/internal/domain"
	"auctionengine/internal/http/httperr"
	"auctionengine/internal/http/middleware"
	"auctionengine/internal/services/bidding"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 30 * time.Second
	pingPeriod      = pongWait * 9 / 10 // must be < pongWait
	maxMessageSize  = 1024
	dispatchTimeout = 3 * time.Second
)

type AuctionReader interface {
	GetAuction(ctx context.Context, id uuid.UUID) (*domain.Auction, error)
}

type Bidder interface {
	PlaceBid(ctx context.Context, req bidding.PlaceBidRequest) (*bidding.Placement, error)
}

type WsServer struct {
	hub      *Hub
	feed     Feed
	router   *Router
	auctions AuctionReader
	bidder   Bidder
	upgrader websocket.Upgrader
}

func NewWsServer(h *Hub, feed Feed, auctions AuctionReader, bidder Bidder) *WsServer {
	srv := &WsServer{
		hub:      h,
		feed:     feed,
		router:   NewRouter(dispatchTimeout),
		auctions: auctions,
		bidder:   bidder,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// origin policy is enforced by the gateway
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	srv.registerHandlers()
	return srv
}

// Handle upgrades GET /ws?auction_id=<id>. The caller identity comes from the
// gateway headers; anonymous sockets may watch but not bid.
func (s *WsServer) Handle(ginCtx *gin.Context) {
	auctionID, err := uuid.Parse(ginCtx.Query("auction_id"))
	if err != nil {
		httperr.Abort(ginCtx, http.StatusBadRequest, "auction_id is required")
		return
	}
	a, err := s.auctions.GetAuction(ginCtx.Request.Context(), auctionID)
	if err != nil {
		httperr.Write(ginCtx, err)
		return
	}
	userID, _ := middleware.UserID(ginCtx)

	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.upgrade", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(maxMessageSize)

	wsConn := &clientConn{rawConn: rawConn, userID: userID}
	s.hub.Join(auctionID, wsConn)
	s.feed.Subscribe(auctionID) // may be a no-op (already subscribed)

	if err := wsConn.writeJSON(map[string]any{"event": "auctions/snapshot", "body": a}); err != nil {
		zap.L().Debug("ws.snapshot", zap.Error(err))
	}

	done := make(chan struct{})
	go s.reader(&ConnContext{AuctionID: auctionID, UserID: userID}, wsConn, done)
	go s.pinger(wsConn, done)
}

func (s *WsServer) registerHandlers() {
	Register(
		s.router,
		"auctions/bid",
		func(ctx context.Context, cc *ConnContext, req BidRequest) (*bidding.Placement, error) {
			return s.bidder.PlaceBid(ctx, bidding.PlaceBidRequest{
				AuctionID: cc.AuctionID,
				UserID:    cc.UserID,
				Amount:    req.Amount,
				Type:      req.BidType,
				MaxAmount: req.MaxAmount,
			})
		},
		Authenticated(),
	)
}

func (s *WsServer) reader(cc *ConnContext, conn *clientConn, done chan struct{}) {
	defer func() {
		close(done)
		s.hub.Leave(cc.AuctionID, conn)
		s.feed.Unsubscribe(cc.AuctionID)
	}()

	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.rawConn.ReadMessage()
		if err != nil {
			return // client closed or errored
		}

		_ = conn.writeJSON(s.router.Serve(context.Background(), cc, data))
	}
}

func (s *WsServer) pinger(conn *clientConn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				conn.close()
				return
			}
		}
	}
}
