package rabbitmq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/fandangolas/wallet-ledger/internal/pkg/logging"
)

// Handler processes one delivery's body. Returning an error causes the
// delivery to be rejected without requeue, sending it to the queue's
// dead-letter queue (spec §4.4) — handlers must be idempotent because
// redelivery can occur after a crash between work and ack.
type Handler func(ctx context.Context, body []byte) error

// Consumer drives a single durable queue with prefetch 1 and manual
// acknowledgment, at-least-once semantics per spec §4.4.
type Consumer struct {
	conn *Connection
	spec QueueSpec
}

func NewConsumer(conn *Connection, spec QueueSpec) *Consumer {
	return &Consumer{conn: conn, spec: spec}
}

// Run declares the topology and blocks, dispatching each delivery to
// handle until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	ch, err := c.conn.Channel(ctx)
	if err != nil {
		return fmt.Errorf("acquire channel for %s: %w", c.spec.Name, err)
	}
	defer ch.Close()

	if err := DeclareTopology(ctx, ch, c.spec); err != nil {
		return fmt.Errorf("declare topology for %s: %w", c.spec.Name, err)
	}

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set prefetch for %s: %w", c.spec.Name, err)
	}

	deliveries, err := ch.Consume(c.spec.Name, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.spec.Name, err)
	}

	logging.Info("consumer started", map[string]interface{}{"queue": c.spec.Name})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed for %s", c.spec.Name)
			}
			c.dispatch(ctx, handle, d)
		}
	}
}

func (c *Consumer) dispatch(ctx context.Context, handle Handler, d amqp.Delivery) {
	if err := handle(ctx, d.Body); err != nil {
		logging.Error("consumer handler failed, dead-lettering", err, map[string]interface{}{
			"queue": c.spec.Name,
		})
		if nackErr := d.Nack(false, false); nackErr != nil {
			logging.Error("failed to nack delivery", nackErr, map[string]interface{}{"queue": c.spec.Name})
		}
		return
	}

	if err := d.Ack(false); err != nil {
		logging.Error("failed to ack delivery", err, map[string]interface{}{"queue": c.spec.Name})
	}
}
