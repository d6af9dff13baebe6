package rabbitmq

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/fandangolas/wallet-ledger/internal/pkg/logging"
)

// Connection is a hub that deals with the single broker connection and
// hands out channels to producers and consumers. Grounded on the
// connect-once, lazily-reconnect shape of LerianStudio-midaz's
// common/mrabbitmq.RabbitMQConnection, adapted to amqp091-go and to
// topic-exchange-plus-dead-letter topology declaration.
type Connection struct {
	url string

	mu        sync.Mutex
	conn      *amqp.Connection
	connected bool
}

func NewConnection(cfg *Config) *Connection {
	return &Connection{url: cfg.URL()}
}

// Connect dials the broker. Safe to call more than once; subsequent
// calls are no-ops while the connection is healthy.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected && !c.conn.IsClosed() {
		return nil
	}

	logging.Info("connecting to rabbitmq", nil)

	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}

	c.conn = conn
	c.connected = true

	logging.Info("connected to rabbitmq", nil)
	return nil
}

// Channel returns a fresh AMQP channel, reconnecting first if needed.
func (c *Connection) Channel(ctx context.Context) (*amqp.Channel, error) {
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, nil
}

// HealthCheck reports whether the underlying connection is currently open.
func (c *Connection) HealthCheck() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && c.conn != nil && !c.conn.IsClosed()
}

// Close tears down the broker connection.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
