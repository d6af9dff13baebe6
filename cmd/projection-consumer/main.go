// Command projection-consumer runs the Projection Consumer (C7): it
// consumes the wallet event stream and idempotently updates the
// read-model tables in the read database, per spec §4.7.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fandangolas/wallet-ledger/internal/config"
	"github.com/fandangolas/wallet-ledger/internal/messaging/rabbitmq"
	"github.com/fandangolas/wallet-ledger/internal/pkg/logging"
	"github.com/fandangolas/wallet-ledger/internal/pkg/migration"
	"github.com/fandangolas/wallet-ledger/internal/projection"
)

const readMigrationsPath = "migrations/read"

func main() {
	cfg := config.Load()
	logging.Init(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migration.Up(cfg.ReadDB.DSN(), readMigrationsPath, cfg.ReadDB.Name); err != nil {
		log.Fatalf("migrate read db: %v", err)
	}

	readPool, err := pgxpool.New(ctx, cfg.ReadDB.DSN())
	if err != nil {
		log.Fatalf("connect read db: %v", err)
	}
	defer readPool.Close()

	store := projection.NewStore(readPool)

	conn := rabbitmq.NewConnection(&rabbitmq.Config{
		Host: cfg.RabbitMQ.Host, Port: cfg.RabbitMQ.Port,
		User: cfg.RabbitMQ.User, Password: cfg.RabbitMQ.Password,
	})
	defer conn.Close()

	consumer := rabbitmq.NewConsumer(conn, rabbitmq.ProjectionQueue)

	logging.Info("projection-consumer starting", nil)
	if err := consumer.Run(ctx, store.Handle); err != nil && ctx.Err() == nil {
		log.Fatalf("projection-consumer exited with error: %v", err)
	}
	logging.Info("projection-consumer stopped", nil)
}
