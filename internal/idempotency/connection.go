package idempotency

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/fandangolas/wallet-ledger/internal/pkg/logging"
)

// Connection is a singleton Redis client holder, grounded on
// LerianStudio-midaz's common/mredis.RedisConnection.
type Connection struct {
	addr string

	mu     sync.Mutex
	client *redis.Client
}

func NewConnection(host, port string) *Connection {
	return &Connection{addr: fmt.Sprintf("%s:%s", host, port)}
}

func (c *Connection) Client(ctx context.Context) (*redis.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	client := redis.NewClient(&redis.Options{Addr: c.addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", c.addr, err)
	}

	logging.Info("connected to redis", map[string]interface{}{"addr": c.addr})
	c.client = client
	return c.client, nil
}

func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}
