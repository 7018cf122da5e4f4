package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	adapterdb "github.com/floroz/auctioneer/internal/adapters/database"
	adapterevents "github.com/floroz/auctioneer/internal/adapters/events"
	pkgdb "github.com/floroz/auctioneer/pkg/database"
	pkgevents "github.com/floroz/auctioneer/pkg/events"
)

// Standalone worker: relays staged outbox events to RabbitMQ and consumes
// settlement events for the audit trail. Runs separately from the API so
// event delivery survives API restarts.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	ctx := context.Background()

	dbURL := os.Getenv("ENGINE_DB_URL")
	if dbURL == "" {
		logger.Error("ENGINE_DB_URL is not set")
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, dbURL)
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

	txManager := pkgdb.NewPostgresTransactionManager(pool, 3*time.Second)
	outboxRepo := adapterdb.NewPostgresOutboxRepository(pool)

	relay := pkgevents.NewOutboxRelay(
		outboxRepo,
		rabbitPublisher,
		txManager,
		10,
		1*time.Second,
		adapterevents.Exchange,
		logger,
	)

	consumer := adapterevents.NewSettlementConsumer(amqpConn, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting Outbox Relay...")
		return relay.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("Starting Settlement Consumer...")
		return consumer.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker failed", "error", err)
		os.Exit(1)
	}
}
