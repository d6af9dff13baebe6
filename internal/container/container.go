// Package container wires the command-api process's collaborators,
// adapted from the teacher's internal/pkg/components.Container
// sync.Once singleton pattern to the event-sourced wallet's wider
// dependency graph (two databases, write and read, plus a broker and a
// cache instead of one database and one broker).
package container

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fandangolas/wallet-ledger/internal/api/handlers"
	"github.com/fandangolas/wallet-ledger/internal/api/routes"
	"github.com/fandangolas/wallet-ledger/internal/application/mediator"
	"github.com/fandangolas/wallet-ledger/internal/config"
	"github.com/fandangolas/wallet-ledger/internal/eventstore"
	"github.com/fandangolas/wallet-ledger/internal/idempotency"
	"github.com/fandangolas/wallet-ledger/internal/messaging"
	"github.com/fandangolas/wallet-ledger/internal/messaging/rabbitmq"
	"github.com/fandangolas/wallet-ledger/internal/pkg/logging"
	"github.com/fandangolas/wallet-ledger/internal/pkg/migration"
	"github.com/fandangolas/wallet-ledger/internal/projection"
	"github.com/fandangolas/wallet-ledger/internal/saga"
)

// Container holds every collaborator the command-api process needs.
type Container struct {
	Config *config.Config

	WriteDB *pgxpool.Pool
	ReadDB  *pgxpool.Pool

	RabbitMQ  *rabbitmq.Connection
	Publisher eventstore.Publisher

	Idempotency *idempotency.Store

	EventStore     eventstore.Store
	Repository     *eventstore.Repository
	SagaStore      saga.Store
	Orchestrator   *saga.Orchestrator
	Recovery       *saga.Recovery
	Mediator       *mediator.Mediator
	ProjectionRead *projection.Store

	Router *gin.Engine
	Server *http.Server

	recoveryCancel context.CancelFunc
}

var (
	instance     *Container
	instanceOnce sync.Once
	instanceErr  error
)

// GetInstance returns the singleton container, initializing it on
// first call.
func GetInstance() (*Container, error) {
	instanceOnce.Do(func() {
		instance, instanceErr = newContainer()
	})
	return instance, instanceErr
}

func newContainer() (*Container, error) {
	c := &Container{}

	c.Config = config.Load()
	logging.Init(c.Config.Logging.Level, c.Config.Logging.Format)

	if err := c.initDatabases(); err != nil {
		return nil, fmt.Errorf("init databases: %w", err)
	}
	if err := c.initBroker(); err != nil {
		return nil, fmt.Errorf("init broker: %w", err)
	}
	if err := c.initIdempotency(); err != nil {
		return nil, fmt.Errorf("init idempotency store: %w", err)
	}

	c.EventStore = eventstore.NewPostgresStore(c.WriteDB)
	c.Repository = eventstore.NewRepository(c.EventStore, c.Publisher)
	c.SagaStore = saga.NewPostgresStore(c.WriteDB)
	c.Orchestrator = saga.NewOrchestrator(c.Repository, c.SagaStore, c.Publisher)
	c.Recovery = saga.NewRecovery(c.Orchestrator, c.SagaStore, c.Config.Saga.RecoveryInterval, c.Config.Saga.RecoveryThreshold)
	c.Mediator = mediator.NewMediator(c.Repository, c.Orchestrator, c.Idempotency)
	c.ProjectionRead = projection.NewStore(c.ReadDB)

	if err := c.initServer(); err != nil {
		return nil, fmt.Errorf("init server: %w", err)
	}

	logging.Info("command-api container initialized", nil)
	return c, nil
}

const (
	writeMigrationsPath = "migrations/write"
	readMigrationsPath  = "migrations/read"
)

func (c *Container) initDatabases() error {
	ctx := context.Background()

	if err := migration.Up(c.Config.WriteDB.DSN(), writeMigrationsPath, c.Config.WriteDB.Name); err != nil {
		return fmt.Errorf("migrate write db: %w", err)
	}
	if err := migration.Up(c.Config.ReadDB.DSN(), readMigrationsPath, c.Config.ReadDB.Name); err != nil {
		return fmt.Errorf("migrate read db: %w", err)
	}

	writePool, err := pgxpool.New(ctx, c.Config.WriteDB.DSN())
	if err != nil {
		return fmt.Errorf("connect write db: %w", err)
	}
	if err := writePool.Ping(ctx); err != nil {
		return fmt.Errorf("ping write db: %w", err)
	}
	c.WriteDB = writePool

	readPool, err := pgxpool.New(ctx, c.Config.ReadDB.DSN())
	if err != nil {
		return fmt.Errorf("connect read db: %w", err)
	}
	if err := readPool.Ping(ctx); err != nil {
		return fmt.Errorf("ping read db: %w", err)
	}
	c.ReadDB = readPool

	logging.Info("databases connected", map[string]interface{}{
		"write_db": c.Config.WriteDB.Name, "read_db": c.Config.ReadDB.Name,
	})
	return nil
}

// initBroker connects to RabbitMQ, falling back to a no-op publisher if
// it's unreachable — the command side must still be able to commit
// events to the log even when the bus is down, per spec §4.3's
// best-effort publish guarantee.
func (c *Container) initBroker() error {
	conn := rabbitmq.NewConnection(&rabbitmq.Config{
		Host:     c.Config.RabbitMQ.Host,
		Port:     c.Config.RabbitMQ.Port,
		User:     c.Config.RabbitMQ.User,
		Password: c.Config.RabbitMQ.Password,
	})
	if err := conn.Connect(context.Background()); err != nil {
		logging.Warn("failed to connect to rabbitmq, using no-op publisher", map[string]interface{}{"error": err.Error()})
		c.Publisher = messaging.NewNoOpPublisher()
		return nil
	}

	c.RabbitMQ = conn
	c.Publisher = rabbitmq.NewPublisher(conn)
	logging.Info("connected to rabbitmq", nil)
	return nil
}

func (c *Container) initIdempotency() error {
	redisConn := idempotency.NewConnection(c.Config.Redis.Host, c.Config.Redis.Port)
	client, err := redisConn.Client(context.Background())
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	c.Idempotency = idempotency.NewStore(client, c.Config.Idempotency.TTL)
	return nil
}

func (c *Container) initServer() error {
	if os.Getenv("ENVIRONMENT") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	c.Router = gin.New()
	c.Router.Use(gin.Recovery())

	routes.RegisterRoutes(c.Router, c, c.Config)

	c.Server = &http.Server{
		Addr:           ":" + c.Config.Server.Port,
		Handler:        c.Router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	return nil
}

// Start launches the saga recovery scanner and serves HTTP until an
// interrupt, then gracefully shuts everything down.
func (c *Container) Start() error {
	recoveryCtx, cancel := context.WithCancel(context.Background())
	c.recoveryCancel = cancel
	go c.Recovery.Run(recoveryCtx)

	go func() {
		logging.Info("starting http server", map[string]interface{}{"address": c.Server.Addr})
		if err := c.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("http server failed", err, nil)
			os.Exit(1)
		}
	}()

	c.waitForShutdown()
	return nil
}

func (c *Container) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info("shutting down command-api", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.Shutdown(ctx); err != nil {
		logging.Error("forced shutdown", err, nil)
	}

	logging.Info("shutdown complete", nil)
}

func (c *Container) Shutdown(ctx context.Context) error {
	if c.recoveryCancel != nil {
		c.recoveryCancel()
	}

	if err := c.Server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if c.RabbitMQ != nil {
		if err := c.RabbitMQ.Close(); err != nil {
			logging.Error("failed to close rabbitmq connection", err, nil)
		}
	}

	c.WriteDB.Close()
	c.ReadDB.Close()

	return nil
}

// GetMediator, GetRepository and GetProjectionStore implement
// handlers.Dependencies.
func (c *Container) GetMediator() *mediator.Mediator         { return c.Mediator }
func (c *Container) GetRepository() *eventstore.Repository   { return c.Repository }
func (c *Container) GetProjectionStore() *projection.Store   { return c.ProjectionRead }

var _ handlers.Dependencies = (*Container)(nil)
