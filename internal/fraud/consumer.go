package fraud

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// incomingMessage is the subset of the bus's wallet event envelope the
// fraud consumer cares about; it deliberately ignores saga/transfer
// lifecycle messages, which carry no "amount"/"eventType" shape the
// rules can evaluate.
type incomingMessage struct {
	EventType string `json:"eventType"`
	Data      struct {
		Timestamp     time.Time       `json:"timestamp"`
		TransactionID string          `json:"transactionId"`
		WalletID      string          `json:"walletId"`
		Amount        decimal.Decimal `json:"amount"`
	} `json:"data"`
}

// Consumer evaluates fraud rules against the wallet event stream.
type Consumer struct {
	store *Store
}

func NewConsumer(store *Store) *Consumer {
	return &Consumer{store: store}
}

var evaluableEventTypes = map[string]bool{
	"MoneyDeposited": true,
	"MoneyWithdrawn": true,
}

// Handle decodes one delivery, records it in the sliding window,
// evaluates the three rules, and persists any alerts. Duplicate
// delivery of the same transaction_id is safe: RecordEvent keeps one
// window row per transaction_id and RecordAlerts deduplicates by
// (transaction_id, rule_id), so redelivery after a
// crash between commit and ack never double-counts risk (spec §4.8,
// scenario S6).
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
	var msg incomingMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("unmarshal fraud candidate message: %w", err)
	}

	if !evaluableEventTypes[msg.EventType] {
		return nil
	}

	incoming := RecentEvent{
		WalletID:      msg.Data.WalletID,
		EventType:     msg.EventType,
		Amount:        msg.Data.Amount,
		TransactionID: msg.Data.TransactionID,
		CreatedAt:     msg.Data.Timestamp,
	}

	if err := c.store.RecordEvent(ctx, incoming); err != nil {
		return err
	}

	window, err := c.store.RecentWindow(ctx, incoming.WalletID, incoming.CreatedAt.Add(-velocityWindow))
	if err != nil {
		return err
	}

	alerts := Evaluate(incoming, window)
	if len(alerts) == 0 {
		return nil
	}

	return c.store.RecordAlerts(ctx, alerts)
}
