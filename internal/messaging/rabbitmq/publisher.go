package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/fandangolas/wallet-ledger/internal/pkg/logging"
)

// Publisher publishes durable messages onto the topic exchange, one
// routing key per call, grounded on the
// ProducerRabbitMQRepository.ProducerDefault shape in
// LerianStudio-midaz's components/consumer rabbitmq adapter.
type Publisher struct {
	conn *Connection

	declareOnce sync.Once
	declareErr  error
}

func NewPublisher(conn *Connection) *Publisher {
	return &Publisher{conn: conn}
}

// Publish marshals message to JSON and publishes it as a persistent
// message under routingKey on the wallet events exchange. The exchange
// is declared lazily on first use so a publisher started before any
// consumer process has run still has somewhere to publish to.
func (p *Publisher) Publish(ctx context.Context, routingKey string, message any) error {
	ch, err := p.conn.Channel(ctx)
	if err != nil {
		return fmt.Errorf("acquire channel to publish %s: %w", routingKey, err)
	}
	defer ch.Close()

	p.declareOnce.Do(func() {
		p.declareErr = ch.ExchangeDeclare(EventsExchange, amqp.ExchangeTopic, true, false, false, false, nil)
	})
	if p.declareErr != nil {
		return fmt.Errorf("declare exchange %s: %w", EventsExchange, p.declareErr)
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message for %s: %w", routingKey, err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = ch.PublishWithContext(publishCtx, EventsExchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		logging.Error("failed to publish event", err, map[string]interface{}{"routing_key": routingKey})
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	return nil
}
