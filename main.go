package main

//go:generate go tool swag init --output api_specs --outputTypes json,yaml

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auctionengine/internal/config"
	"auctionengine/internal/database/db_client"
	"auctionengine/internal/database/pgstore"
	"auctionengine/internal/http/accounthandler"
	"auctionengine/internal/http/adminhandler"
	"auctionengine/internal/http/auctionhandler"
	"auctionengine/internal/http/http_server"
	"auctionengine/internal/http/middleware"
	"auctionengine/internal/notify"
	"auctionengine/internal/queue"
	"auctionengine/internal/redis/eventsink"
	"auctionengine/internal/redis/redis_client"
	"auctionengine/internal/redis/redis_functions"
	"auctionengine/internal/redis/watcher/auctionwatcher"
	"auctionengine/internal/scheduler"
	"auctionengine/internal/services/auction"
	"auctionengine/internal/services/bidding"
	"auctionengine/internal/services/ledger"
	"auctionengine/internal/services/settlement"
	"auctionengine/internal/store"
	"auctionengine/internal/syncnotify"
	"auctionengine/internal/ws"

	"go.uber.org/zap"
)

var (
	Log, _ = zap.NewDevelopment()
)

// @title			Auction engine API
// @version		1.0
// @description	Bidding, settlement and ledger API. Identity comes from the X-User-ID and X-User-Role gateway headers.
func main() {
	zap.ReplaceGlobals(Log)

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if cfg.LogFormat == "json" {
		if prod, err := zap.NewProduction(); err == nil {
			Log = prod
			zap.ReplaceGlobals(Log)
		}
	}
	defer Log.Sync()
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	instance := cfg.InstanceName
	if instance == "" {
		instance, _ = os.Hostname()
	}

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis
	redisClient, err := redis_client.NewRedisClient(redis_client.Options{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		Log.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()

	// Load the Redis Functions lua
	if err := redis_functions.LoadAll(ctx, redisClient); err != nil {
		Log.Fatal("load-redis-funcs", zap.Error(err))
	}

	// 4. Postgres
	pgDb, err := db_client.Open(db_client.Options{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPassword,
		Database: cfg.PostgresDb,
		MaxConns: cfg.PostgresMaxConns,
	})
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()

	pg := pgstore.New(pgDb, cfg.BidLockTimeout)
	if err := pg.EnsureSchema(ctx); err != nil {
		Log.Fatal("pg-schema", zap.Error(err))
	}

	// 5. Post-commit notifications
	dispatcher := notify.NewDispatcher(notify.Options{
		QueueSize:   cfg.NotifyQueueSize,
		Workers:     cfg.NotifyWorkers,
		MaxAttempts: cfg.NotifyMaxAttempts,
		Backoff:     100 * time.Millisecond,
	},
		eventsink.New(redisClient, cfg.NotifyStream, 0),
		auctionwatcher.NewTimerSink(redisClient),
	)
	dispatcher.Start(ctx)

	// 6. Services
	retry := store.RetryPolicy{Attempts: cfg.BidRetryAttempts, Backoff: cfg.BidRetryBackoff}
	book := ledger.New(cfg.Multiplier(), cfg.Currency)

	var rules []bidding.Rule
	if cfg.BidBlockSeller {
		rules = append(rules, bidding.RejectSellerBid)
	}
	if cfg.BidBlockSelf {
		rules = append(rules, bidding.RejectSelfRaise)
	}

	auctionService := auction.NewAuctionService(pg, dispatcher, retry)
	acceptor := bidding.NewAcceptor(pg, book, dispatcher, retry, rules...)
	ledgerService := ledger.NewService(pg, book, dispatcher, retry)
	engine := settlement.NewEngine(pg, book, dispatcher, retry,
		settlement.PolicyByName(cfg.ReservePolicy), cfg.SettlementConcurrency)

	// 7. Background workers
	go auctionwatcher.Run(ctx, redisClient, engine)
	syncnotify.Run(ctx, redisClient, pg, cfg.NotifyStream, cfg.NotifyGroup, instance)

	if len(cfg.KafkaBrokers) > 0 {
		producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaAuditTopic)
		defer producer.Close()
		queue.RunRelay(ctx, redisClient, producer, cfg.NotifyStream, cfg.KafkaRelayGroup, instance)
	}
	if cfg.SchedulerEnabled {
		scheduler.New(redisClient, cfg.SchedulerInterval, auctionService, engine).Run(ctx)
	}

	// 8. WebSockets hub + Redis fan-out
	hub := ws.NewHub()
	wsSrv := ws.NewWsServer(hub, ws.NewRedisFeed(redisClient, hub), auctionService, acceptor)

	// 9. HTTP + WS server
	handlers := http_server.Handlers{
		Auctions: auctionhandler.New(auctionService, acceptor),
		Accounts: accounthandler.New(ledgerService, book),
		Admin:    adminhandler.New(engine, auctionService),
		Ws:       wsSrv,
	}
	if cfg.BidRateLimit > 0 {
		handlers.BidLimiter = middleware.NewRedisLimiter(redisClient, cfg.BidRateLimit, cfg.BidRateWindow)
	}
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, handlers)

	disposed := make(chan struct{})
	go func() {
		<-ctx.Done()
		_ = httpServer.Dispose()
		close(disposed)
	}()
	if err := httpServer.Start(); err != nil {
		Log.Error("Failed to start HTTP server", zap.Error(err))
		stop()
	}

	// requests finishing during Dispose still emit; drain only after them
	<-disposed
	dispatcher.Close()
	Log.Info("shutdown_complete")
}
