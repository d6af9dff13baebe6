// Package saga orchestrates the two-aggregate transfer operation (C5)
// with explicit compensation, since two wallets cannot be committed
// atomically under optimistic concurrency. Grounded on the
// idempotency-checked, explicit-compensation step shape of
// other_examples' saga_market_order order_saga.go, adapted from its
// event-driven trigger to a synchronous orchestration call invoked
// directly by the command mediator.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fandangolas/wallet-ledger/internal/eventstore"
)

// Status is the saga's one-way state machine, per spec §4.5.
type Status string

const (
	StatusInitiated     Status = "INITIATED"
	StatusSourceDebited Status = "SOURCE_DEBITED"
	StatusCompleted     Status = "COMPLETED"
	StatusCompensating  Status = "COMPENSATING"
	StatusFailed        Status = "FAILED"
)

// State is the persistent saga row from spec §3.
type State struct {
	SagaID              string
	FromWalletID        string
	ToWalletID          string
	Amount              decimal.Decimal
	Status              Status
	DebitTxID           string
	CreditTxID          string
	CompensationTxID    string
	ErrorMessage        string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Store persists saga rows. Implemented against the write database.
type Store interface {
	Create(ctx context.Context, s State) error
	Update(ctx context.Context, s State) error
	Get(ctx context.Context, sagaID string) (State, error)
	ListStuck(ctx context.Context, olderThan time.Time) ([]State, error)
}

// Publisher publishes saga lifecycle events onto the bus, per the
// transfer routing keys in spec §4.4.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Result is what the orchestrator reports back to the mediator/HTTP edge.
type Result struct {
	Success     bool
	FromBalance decimal.Decimal
	ToBalance   decimal.Decimal
	Message     string
	Critical    bool
}

// ErrCompensationFailed signals the CriticalCompensationFailure kind
// from spec §7: the saga is stuck in COMPENSATING and needs operator
// attention.
var ErrCompensationFailed = errors.New("compensation failed: saga stuck in COMPENSATING, operator attention required")

// Orchestrator drives the transfer saga's state machine.
type Orchestrator struct {
	repo  *eventstore.Repository
	store Store
	pub   Publisher
}

func NewOrchestrator(repo *eventstore.Repository, store Store, pub Publisher) *Orchestrator {
	return &Orchestrator{repo: repo, store: store, pub: pub}
}

type sagaEventMessage struct {
	EventType   string         `json:"eventType"`
	Data        map[string]any `json:"data"`
	PublishedAt time.Time      `json:"publishedAt"`
}

func (o *Orchestrator) publish(ctx context.Context, routingKey, eventType string, data map[string]any) {
	if o.pub == nil {
		return
	}
	_ = o.pub.Publish(ctx, routingKey, sagaEventMessage{
		EventType:   eventType,
		Data:        data,
		PublishedAt: time.Now().UTC(),
	})
}

// Transfer runs the debit-then-credit saga described in spec §4.5. The
// source debit is always attempted before the destination credit, and
// no credit is ever applied without a committed debit, so neither side
// can go negative.
func (o *Orchestrator) Transfer(ctx context.Context, fromWalletID, toWalletID string, amount decimal.Decimal) (Result, error) {
	sagaID := uuid.NewString()
	now := time.Now().UTC()

	state := State{
		SagaID:       sagaID,
		FromWalletID: fromWalletID,
		ToWalletID:   toWalletID,
		Amount:       amount,
		Status:       StatusInitiated,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := o.store.Create(ctx, state); err != nil {
		return Result{}, fmt.Errorf("create saga %s: %w", sagaID, err)
	}
	o.publish(ctx, "wallet.transfer.initiated", "TransferInitiated", map[string]any{
		"sagaId": sagaID, "fromWalletId": fromWalletID, "toWalletId": toWalletID,
		"amount": amount.String(), "timestamp": now,
	})

	return o.driveFromInitiated(ctx, state)
}

// driveFromInitiated executes the debit step. Split out so the
// recovery scanner can re-enter the state machine at this point for a
// saga that crashed before the debit was attempted.
func (o *Orchestrator) driveFromInitiated(ctx context.Context, state State) (Result, error) {
	debitEvent, err := o.repo.WithdrawForTransfer(ctx, state.FromWalletID, state.ToWalletID, state.Amount)
	if err != nil {
		state.Status = StatusFailed
		state.ErrorMessage = err.Error()
		state.UpdatedAt = time.Now().UTC()
		_ = o.store.Update(ctx, state)

		o.publish(ctx, "wallet.transfer.failed", "TransferFailed", map[string]any{
			"sagaId": state.SagaID, "reason": err.Error(), "timestamp": state.UpdatedAt,
		})

		return Result{Success: false, Message: err.Error()}, nil
	}

	state.Status = StatusSourceDebited
	state.DebitTxID = debitEvent.TransactionID
	state.UpdatedAt = time.Now().UTC()
	if err := o.store.Update(ctx, state); err != nil {
		return Result{}, fmt.Errorf("persist SOURCE_DEBITED for %s: %w", state.SagaID, err)
	}

	o.publish(ctx, "wallet.transfer.source.debited", "SourceWalletDebited", map[string]any{
		"sagaId": state.SagaID, "walletId": state.FromWalletID,
		"transactionId": debitEvent.TransactionID, "balanceAfter": debitEvent.BalanceAfter.String(),
		"timestamp": state.UpdatedAt,
	})

	return o.driveFromSourceDebited(ctx, state)
}

// driveFromSourceDebited executes the credit step, or compensates on
// failure. This is also the recovery scanner's re-entry point for a
// saga stuck in SOURCE_DEBITED.
func (o *Orchestrator) driveFromSourceDebited(ctx context.Context, state State) (Result, error) {
	creditEvent, err := o.repo.DepositForTransfer(ctx, state.ToWalletID, state.FromWalletID, state.Amount)
	if err != nil {
		return o.compensate(ctx, state, err)
	}

	state.Status = StatusCompleted
	state.CreditTxID = creditEvent.TransactionID
	state.UpdatedAt = time.Now().UTC()
	if err := o.store.Update(ctx, state); err != nil {
		return Result{}, fmt.Errorf("persist COMPLETED for %s: %w", state.SagaID, err)
	}

	o.publish(ctx, "wallet.transfer.destination.credited", "DestinationWalletCredited", map[string]any{
		"sagaId": state.SagaID, "walletId": state.ToWalletID,
		"transactionId": creditEvent.TransactionID, "balanceAfter": creditEvent.BalanceAfter.String(),
		"timestamp": state.UpdatedAt,
	})
	o.publish(ctx, "wallet.transfer.completed", "TransferCompleted", map[string]any{
		"sagaId": state.SagaID, "fromWalletId": state.FromWalletID, "toWalletId": state.ToWalletID,
		"timestamp": state.UpdatedAt,
	})

	fromState, ferr := o.repo.Balance(ctx, state.FromWalletID)
	toState, terr := o.repo.Balance(ctx, state.ToWalletID)
	if ferr != nil || terr != nil {
		return Result{Success: true, Message: "transfer completed"}, nil
	}

	return Result{
		Success:     true,
		FromBalance: fromState.Balance,
		ToBalance:   toState.Balance,
		Message:     "transfer completed",
	}, nil
}

// compensate refunds the source wallet after a credit failure. On
// success the saga reaches FAILED (refunded); on failure it stays in
// COMPENSATING, a terminal-from-automation state requiring a human.
func (o *Orchestrator) compensate(ctx context.Context, state State, creditErr error) (Result, error) {
	state.Status = StatusCompensating
	state.ErrorMessage = creditErr.Error()
	state.UpdatedAt = time.Now().UTC()
	if err := o.store.Update(ctx, state); err != nil {
		return Result{}, fmt.Errorf("persist COMPENSATING for %s: %w", state.SagaID, err)
	}

	o.publish(ctx, "wallet.transfer.compensation.initiated", "CompensationInitiated", map[string]any{
		"sagaId": state.SagaID, "reason": creditErr.Error(), "timestamp": state.UpdatedAt,
	})

	refundEvent, err := o.repo.DepositRefund(ctx, state.FromWalletID, state.ToWalletID, state.Amount)
	if err != nil {
		// Compensation itself failed: leave the saga in COMPENSATING.
		// This is the CriticalCompensationFailure kind from spec §7.
		state.ErrorMessage = fmt.Sprintf("compensation failed: %s", err.Error())
		state.UpdatedAt = time.Now().UTC()
		_ = o.store.Update(ctx, state)

		return Result{Success: false, Critical: true, Message: state.ErrorMessage}, ErrCompensationFailed
	}

	state.Status = StatusFailed
	state.CompensationTxID = refundEvent.TransactionID
	state.UpdatedAt = time.Now().UTC()
	if err := o.store.Update(ctx, state); err != nil {
		return Result{}, fmt.Errorf("persist FAILED (refunded) for %s: %w", state.SagaID, err)
	}

	o.publish(ctx, "wallet.transfer.source.refunded", "SourceWalletRefunded", map[string]any{
		"sagaId": state.SagaID, "walletId": state.FromWalletID,
		"transactionId": refundEvent.TransactionID, "timestamp": state.UpdatedAt,
	})
	o.publish(ctx, "wallet.transfer.failed", "TransferFailed", map[string]any{
		"sagaId": state.SagaID, "reason": fmt.Sprintf("refunded: %s", creditErr.Error()), "timestamp": state.UpdatedAt,
	})

	return Result{Success: false, Message: fmt.Sprintf("transfer failed and was refunded: %s", creditErr.Error())}, nil
}
