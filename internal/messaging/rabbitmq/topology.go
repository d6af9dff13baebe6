package rabbitmq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EventsExchange is the single topic exchange every wallet event is
// published to. Consumers bind their own durable queue against a
// routing pattern (wallet.# catches every wallet event, per spec §4.4).
const EventsExchange = "wallet.events"

// QueueSpec names a durable consumer queue, its binding pattern, and
// the dead-letter queue unhandled/rejected messages flow to.
type QueueSpec struct {
	Name       string
	BindingKey string
}

var (
	ProjectionQueue = QueueSpec{Name: "wallet.projection", BindingKey: "wallet.#"}
	FraudQueue      = QueueSpec{Name: "wallet.fraud", BindingKey: "wallet.#"}
)

func deadLetterExchange(queue string) string { return queue + ".dlx" }
func deadLetterQueue(queue string) string    { return queue + ".dlq" }

// DeclareTopology idempotently declares the topic exchange, a queue's
// dead-letter exchange/queue pair, and the queue itself wired to dead-
// letter into that pair — matching spec §4.4's "per-consumer dead-
// letter queue" requirement.
func DeclareTopology(ctx context.Context, ch *amqp.Channel, spec QueueSpec) error {
	if err := ch.ExchangeDeclare(EventsExchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", EventsExchange, err)
	}

	dlx := deadLetterExchange(spec.Name)
	dlq := deadLetterQueue(spec.Name)

	if err := ch.ExchangeDeclare(dlx, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead-letter exchange %s: %w", dlx, err)
	}

	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dead-letter queue %s: %w", dlq, err)
	}

	if err := ch.QueueBind(dlq, "", dlx, false, nil); err != nil {
		return fmt.Errorf("bind dead-letter queue %s: %w", dlq, err)
	}

	args := amqp.Table{"x-dead-letter-exchange": dlx}
	if _, err := ch.QueueDeclare(spec.Name, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare queue %s: %w", spec.Name, err)
	}

	if err := ch.QueueBind(spec.Name, spec.BindingKey, EventsExchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", spec.Name, spec.BindingKey, err)
	}

	return nil
}
