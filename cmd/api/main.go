package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/floroz/auctioneer/internal/adapters/api"
	"github.com/floroz/auctioneer/internal/adapters/cache"
	adapterdb "github.com/floroz/auctioneer/internal/adapters/database"
	adapterevents "github.com/floroz/auctioneer/internal/adapters/events"
	"github.com/floroz/auctioneer/internal/adapters/funds"
	"github.com/floroz/auctioneer/internal/domain/auction"
	"github.com/floroz/auctioneer/internal/domain/ledger"
	"github.com/floroz/auctioneer/pkg/auth"
	pkgdb "github.com/floroz/auctioneer/pkg/database"
	pkgevents "github.com/floroz/auctioneer/pkg/events"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load environment variables (local overrides .env)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	ctx := context.Background()

	// 1. Postgres connection pool
	dbURL := os.Getenv("ENGINE_DB_URL")
	if dbURL == "" {
		logger.Error("ENGINE_DB_URL is not set")
		os.Exit(1)
	}

	dbConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		logger.Error("Unable to parse database config", "error", err)
		os.Exit(1)
	}

	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		logger.Error("Unable to create connection pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if pingErr := pool.Ping(ctx); pingErr != nil {
		logger.Error("Unable to ping database", "error", pingErr)
		os.Exit(1)
	}
	logger.Info("Postgres Connected")

	// 2. RabbitMQ
	rabbitURL := os.Getenv("RABBITMQ_URL")
	if rabbitURL == "" {
		logger.Error("RABBITMQ_URL is not set")
		os.Exit(1)
	}

	amqpConn, err := amqp091.Dial(rabbitURL)
	if err != nil {
		logger.Error("Failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()
	logger.Info("RabbitMQ Connected")

	rabbitPublisher, err := adapterevents.NewRabbitMQPublisher(amqpConn)
	if err != nil {
		logger.Error("Failed to create RabbitMQ publisher", "error", err)
		os.Exit(1)
	}
	defer rabbitPublisher.Close()

	// 3. Redis (optional profit read cache)
	var profitCache *cache.ProfitCache
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisURL})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis connection failed, profit reads will skip the cache", "error", err)
		} else {
			logger.Info("Redis Connected")
			profitCache = cache.NewProfitCache(rdb, 5*time.Second)
		}
	}

	// 4. Treasury (external fund-transfer primitive)
	treasuryURL := os.Getenv("TREASURY_URL")
	if treasuryURL == "" {
		logger.Error("TREASURY_URL is not set")
		os.Exit(1)
	}
	transferer := funds.NewHTTPTransferer(treasuryURL, 10*time.Second)

	// 5. Auth (validate-only signer)
	publicKeyPEM := os.Getenv("JWT_PUBLIC_KEY")
	if publicKeyPEM == "" {
		logger.Error("JWT_PUBLIC_KEY is not set")
		os.Exit(1)
	}
	signer, err := auth.NewSignerFromPublicKey([]byte(publicKeyPEM), "auctioneer")
	if err != nil {
		logger.Error("Failed to load JWT public key", "error", err)
		os.Exit(1)
	}

	// 6. Repositories and domain wiring
	txManager := pkgdb.NewPostgresTransactionManager(pool, 3*time.Second)
	itemRepo := adapterdb.NewPostgresItemRepository(pool)
	bidRepo := adapterdb.NewPostgresBidHistoryRepository(pool)
	ledgerRepo := adapterdb.NewPostgresLedgerRepository(pool)
	outboxRepo := adapterdb.NewPostgresOutboxRepository(pool)

	profitLedger := ledger.NewLedger(ledgerRepo)
	engine := auction.NewEngine(txManager, itemRepo, bidRepo, profitLedger, outboxRepo, transferer)

	// 7. HTTP router
	handler := api.NewEngineHandler(engine, profitCache, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(signer))
		handler.RegisterRoutes(r)
	})

	// 8. Outbox relay alongside the server
	outboxRelay := pkgevents.NewOutboxRelay(
		outboxRepo,
		rabbitPublisher,
		txManager,
		10,                     // batch size
		1*time.Second,          // interval
		adapterevents.Exchange, // exchange
		logger,
	)

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	// h2c for HTTP/2 without TLS (internal services / local dev)
	srv := &http.Server{
		Addr:    addr,
		Handler: h2c.NewHandler(r, &http2.Server{}),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting Outbox Relay...")
		return outboxRelay.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("Starting Settlement Engine API", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
