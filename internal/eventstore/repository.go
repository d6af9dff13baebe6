package eventstore

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fandangolas/wallet-ledger/internal/domain/wallet"
)

const aggregateTypeWallet = "wallet"

// Publisher is the Event Bus producer contract (C4) as seen by the
// repository: routing key plus an opaque, JSON-serializable message.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// routingKeyFor maps a wallet event type to the bus routing key it is
// announced under, per spec §4.4.
func routingKeyFor(t wallet.EventType) string {
	switch t {
	case wallet.EventMoneyDeposited:
		return "wallet.money.deposited"
	case wallet.EventMoneyWithdrawn:
		return "wallet.money.withdrawn"
	default:
		return "wallet.money.unknown"
	}
}

// WalletEventMessage is the bit-exact bus payload shape from spec §6.
type WalletEventMessage struct {
	EventType   string    `json:"eventType"`
	Data        EventData `json:"data"`
	PublishedAt time.Time `json:"publishedAt"`
}

// EventData is the event-specific payload carried by WalletEventMessage.
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

// EventContext carries the classification a caller already knows about
// an event (a transfer leg, a compensation refund) that the aggregate
// itself has no concept of, so the projection consumer (spec §3's
// transaction type/related_wallet_id) doesn't have to guess it back out
// of a plain MoneyDeposited/MoneyWithdrawn event.
type EventContext struct {
	TxKind          string
	RelatedWalletID string
}

// classify resolves the transaction type to publish: an explicit
// override from the caller (transfer leg, refund) or, absent one, the
// plain deposit/withdrawal default.
func classify(t wallet.EventType, override string) string {
	if override != "" {
		return override
	}
	switch t {
	case wallet.EventMoneyDeposited:
		return "DEPOSIT"
	case wallet.EventMoneyWithdrawn:
		return "WITHDRAWAL"
	default:
		return ""
	}
}

// Repository implements the load-fold-append-publish protocol from
// spec §4.3 (C3), the only place that stitches the pure aggregate (C2)
// to the durable log (C1) and the bus (C4).
type Repository struct {
	store     Store
	publisher Publisher
}

func NewRepository(store Store, publisher Publisher) *Repository {
	return &Repository{store: store, publisher: publisher}
}

// Op is the pure operation the caller wants applied to the loaded
// state: it returns the new event to append, or an error if the
// operation is invalid against that state (e.g. insufficient funds).
type Op func(state wallet.State) (wallet.Event, error)

// Execute runs the repository protocol for a single wallet: load,
// fold, apply op, append with optimistic concurrency, then best-effort
// publish. It does not retry on ErrConflict — spec §4.3 makes zero
// automatic retries the default, surfacing the conflict to the caller.
func (r *Repository) Execute(ctx context.Context, walletID string, op Op) (wallet.Event, error) {
	return r.execute(ctx, walletID, op, EventContext{})
}

func (r *Repository) execute(ctx context.Context, walletID string, op Op, txCtx EventContext) (wallet.Event, error) {
	events, err := r.store.Load(ctx, walletID)
	if err != nil {
		return wallet.Event{}, fmt.Errorf("load wallet %s: %w", walletID, err)
	}

	state := wallet.Fold(walletID, events)
	baseVersion := state.CurrentVersion

	newEvent, err := op(state)
	if err != nil {
		return wallet.Event{}, err
	}

	if err := r.store.Append(ctx, walletID, aggregateTypeWallet, []wallet.Event{newEvent}, baseVersion); err != nil {
		return wallet.Event{}, err
	}

	// Best-effort publish: the event is already committed, so a publish
	// failure here must never roll back the log (spec §4.3). TODO: a
	// transactional outbox would close the gap between commit and
	// publish; spec §9 open question #1 leaves this unresolved by
	// design for this scope.
	if r.publisher != nil {
		msg := WalletEventMessage{
			EventType: string(newEvent.Type),
			Data: EventData{
				Timestamp:       newEvent.Timestamp,
				TransactionID:   newEvent.TransactionID,
				WalletID:        walletID,
				Amount:          newEvent.Amount,
				BalanceAfter:    newEvent.BalanceAfter,
				Version:         newEvent.Version,
				TxKind:          classify(newEvent.Type, txCtx.TxKind),
				RelatedWalletID: txCtx.RelatedWalletID,
			},
			PublishedAt: newEvent.Timestamp,
		}
		_ = r.publisher.Publish(ctx, routingKeyFor(newEvent.Type), msg)
	}

	return newEvent, nil
}

// Deposit is sugar over Execute for a plain deposit, classified as
// spec §3's DEPOSIT transaction type.
func (r *Repository) Deposit(ctx context.Context, walletID string, amount decimal.Decimal) (wallet.Event, error) {
	return r.execute(ctx, walletID, func(state wallet.State) (wallet.Event, error) {
		return wallet.Deposit(state, amount)
	}, EventContext{})
}

// Withdraw is sugar over Execute for a plain withdrawal, classified as
// spec §3's WITHDRAWAL transaction type.
func (r *Repository) Withdraw(ctx context.Context, walletID string, amount decimal.Decimal) (wallet.Event, error) {
	return r.execute(ctx, walletID, func(state wallet.State) (wallet.Event, error) {
		return wallet.Withdraw(state, amount)
	}, EventContext{})
}

// WithdrawForTransfer is the saga's source-debit step: the withdrawal
// is classified as TRANSFER_OUT against relatedWalletID rather than a
// plain WITHDRAWAL, so the transaction history can tell a transfer leg
// apart from an ordinary withdrawal (spec §3).
func (r *Repository) WithdrawForTransfer(ctx context.Context, walletID, relatedWalletID string, amount decimal.Decimal) (wallet.Event, error) {
	return r.execute(ctx, walletID, func(state wallet.State) (wallet.Event, error) {
		return wallet.Withdraw(state, amount)
	}, EventContext{TxKind: "TRANSFER_OUT", RelatedWalletID: relatedWalletID})
}

// DepositForTransfer is the saga's destination-credit step, classified
// as TRANSFER_IN against relatedWalletID.
func (r *Repository) DepositForTransfer(ctx context.Context, walletID, relatedWalletID string, amount decimal.Decimal) (wallet.Event, error) {
	return r.execute(ctx, walletID, func(state wallet.State) (wallet.Event, error) {
		return wallet.Deposit(state, amount)
	}, EventContext{TxKind: "TRANSFER_IN", RelatedWalletID: relatedWalletID})
}

// DepositRefund is the saga's compensation step: crediting the source
// wallet back after a failed credit, classified as REFUND rather than
// a plain DEPOSIT or TRANSFER_IN.
func (r *Repository) DepositRefund(ctx context.Context, walletID, relatedWalletID string, amount decimal.Decimal) (wallet.Event, error) {
	return r.execute(ctx, walletID, func(state wallet.State) (wallet.Event, error) {
		return wallet.Deposit(state, amount)
	}, EventContext{TxKind: "REFUND", RelatedWalletID: relatedWalletID})
}

// Balance loads and folds walletID without mutation, for read paths
// that need the authoritative balance without going through the
// (eventually consistent) projection.
func (r *Repository) Balance(ctx context.Context, walletID string) (wallet.State, error) {
	events, err := r.store.Load(ctx, walletID)
	if err != nil {
		return wallet.State{}, fmt.Errorf("load wallet %s: %w", walletID, err)
	}
	return wallet.Fold(walletID, events), nil
}
