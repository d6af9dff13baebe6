package projection

import (
	"context"
	"encoding/json"
	"fmt"
)

// applicableEventTypes are the only event types the read model knows
// how to project. The queue's "wallet.#" binding (spec §4.4) also
// delivers saga transfer-lifecycle messages, which carry no
// wallet_id/transaction_id/version in this shape and must be ignored
// rather than upserted as garbage rows.
var applicableEventTypes = map[string]bool{
	"MoneyDeposited": true,
	"MoneyWithdrawn": true,
}

// classifyTxKind resolves the spec §3 transaction type to store: the
// producer's explicit classification for a transfer leg or refund, or
// the plain deposit/withdrawal default when it sent none.
func classifyTxKind(eventType, txKind string) string {
	if txKind != "" {
		return txKind
	}
	switch eventType {
	case "MoneyDeposited":
		return "DEPOSIT"
	case "MoneyWithdrawn":
		return "WITHDRAWAL"
	default:
		return eventType
	}
}

// Handle decodes one wallet event message and applies it to the read
// model. Returning an error causes the bus consumer (C4) to dead-letter
// the delivery rather than commit a half-applied projection, mirroring
// the teacher's "retry on database failure" branch in processDepositRequest.
func (s *Store) Handle(ctx context.Context, body []byte) error {
	var msg WalletEventMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("unmarshal wallet event message: %w", err)
	}

	if !applicableEventTypes[msg.EventType] {
		return nil
	}

	txKind := classifyTxKind(msg.EventType, msg.Data.TxKind)
	return s.ApplyEvent(ctx, msg.Data.WalletID, txKind, msg.Data.RelatedWalletID, msg.Data.TransactionID,
		msg.Data.Amount, msg.Data.BalanceAfter, msg.Data.Version, msg.Data.Timestamp)
}
