package http_server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"auctionengine/internal/http/accounthandler"
	"auctionengine/internal/http/adminhandler"
	"auctionengine/internal/http/auctionhandler"
	"auctionengine/internal/http/middleware"
	"auctionengine/internal/ws"

	"github.com/abrar71/swaggerfilesv2" // swagger embed files
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers bundles the REST surface mounted by the server.
type Handlers struct {
	Auctions *auctionhandler.Handler
	Accounts *accounthandler.Handler
	Admin    *adminhandler.Handler
	Ws       *ws.WsServer

	// BidLimiter, when set, throttles bid placement per user.
	BidLimiter middleware.Limiter
}

type httpServer struct {
	listenPort uint16
	srv        http.Server
	ln         net.Listener
	handlers   Handlers
	ctx        context.Context
}

func NewHttpServer(ctx context.Context, listenPort uint16, handlers Handlers) *httpServer {
	return &httpServer{
		listenPort: listenPort,
		handlers:   handlers,
		ctx:        ctx,
	}
}

// Router builds the gin engine with every route mounted.
func (h *httpServer) Router() *gin.Engine {
	routerEngine := gin.New()

	// Swagger UI and API specs
	routerEngine.StaticFS("/swagger-apis", http.FS(swaggerfilesv2.FS))
	routerEngine.Static("/api-specs", "api_specs")

	routerEngine.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	routerEngine.Use(ginzap.RecoveryWithZap(zap.L(), true))
	routerEngine.Use(middleware.Identity())

	routerEngine.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	// websocket endpoint
	if h.handlers.Ws != nil {
		routerEngine.GET("/ws", h.handlers.Ws.Handle)
	}

	var bidGuards []gin.HandlerFunc
	if h.handlers.BidLimiter != nil {
		bidGuards = append(bidGuards, middleware.RateLimit(h.handlers.BidLimiter, "bids"))
	}
	h.handlers.Auctions.Register(routerEngine, bidGuards...)

	me := routerEngine.Group("", middleware.RequireUser())
	admin := routerEngine.Group("", middleware.RequireRole(middleware.RoleAdmin))
	h.handlers.Accounts.Register(me, admin)
	h.handlers.Admin.Register(admin)

	return routerEngine
}

func (h *httpServer) Start() error {
	var err error
	listenAddr := fmt.Sprintf(":%d", h.listenPort)
	h.ln, err = net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	h.srv = http.Server{
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return h.ctx },
	}
	zap.L().Info("http_listening", zap.String("addr", listenAddr))

	err = h.srv.Serve(h.ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Dispose gracefully shuts the HTTP server down.
// It waits up to 10 s for in-flight requests to finish.
func (h *httpServer) Dispose() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := h.srv.Shutdown(ctx); err != nil {
		zap.L().Error("http_dispose", zap.Error(err))
		return err // e.g. active conns didn't finish in time
	}
	return nil
}
