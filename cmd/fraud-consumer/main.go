// Command fraud-consumer runs the Fraud Consumer described by contract
// in spec §4.8: it maintains a sliding window of recent wallet events
// per wallet, evaluates the three fraud rules, and advances risk
// profiles in the fraud database.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fandangolas/wallet-ledger/internal/config"
	"github.com/fandangolas/wallet-ledger/internal/fraud"
	"github.com/fandangolas/wallet-ledger/internal/messaging/rabbitmq"
	"github.com/fandangolas/wallet-ledger/internal/pkg/logging"
	"github.com/fandangolas/wallet-ledger/internal/pkg/migration"
)

const fraudMigrationsPath = "migrations/fraud"

func main() {
	cfg := config.Load()
	logging.Init(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migration.Up(cfg.FraudDB.DSN(), fraudMigrationsPath, cfg.FraudDB.Name); err != nil {
		log.Fatalf("migrate fraud db: %v", err)
	}

	fraudPool, err := pgxpool.New(ctx, cfg.FraudDB.DSN())
	if err != nil {
		log.Fatalf("connect fraud db: %v", err)
	}
	defer fraudPool.Close()

	store := fraud.NewStore(fraudPool)
	consumer := fraud.NewConsumer(store)

	conn := rabbitmq.NewConnection(&rabbitmq.Config{
		Host: cfg.RabbitMQ.Host, Port: cfg.RabbitMQ.Port,
		User: cfg.RabbitMQ.User, Password: cfg.RabbitMQ.Password,
	})
	defer conn.Close()

	busConsumer := rabbitmq.NewConsumer(conn, rabbitmq.FraudQueue)

	logging.Info("fraud-consumer starting", nil)
	if err := busConsumer.Run(ctx, consumer.Handle); err != nil && ctx.Err() == nil {
		log.Fatalf("fraud-consumer exited with error: %v", err)
	}
	logging.Info("fraud-consumer stopped", nil)
}
