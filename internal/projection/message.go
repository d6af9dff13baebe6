package projection

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletEventMessage mirrors internal/eventstore's wire message, the
// projection consumer's input, grounded on the teacher's
// DepositRequestedEvent/DepositCompletedEvent split between producer and
// consumer-side message shapes.
type WalletEventMessage struct {
	EventType   string    `json:"eventType"`
	Data        EventData `json:"data"`
	PublishedAt time.Time `json:"publishedAt"`
}

type EventData struct {
	Timestamp       time.Time       `json:"timestamp"`
	TransactionID   string          `json:"transactionId"`
	WalletID        string          `json:"walletId"`
	Amount          decimal.Decimal `json:"amount"`
	BalanceAfter    decimal.Decimal `json:"balanceAfter"`
	Version         int             `json:"version"`
	TxKind          string          `json:"txKind,omitempty"`
	RelatedWalletID string          `json:"relatedWalletId,omitempty"`
}
