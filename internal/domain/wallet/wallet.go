// Package wallet implements the wallet aggregate: pure, in-process state
// derived by folding an ordered event stream. Nothing here performs I/O.
package wallet

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType is the closed set of events a wallet aggregate can emit.
type EventType string

const (
	EventMoneyDeposited EventType = "MoneyDeposited"
	EventMoneyWithdrawn EventType = "MoneyWithdrawn"
)

// Event is a single immutable fact in a wallet's history.
type Event struct {
	WalletID      string
	Type          EventType
	Amount        decimal.Decimal
	BalanceAfter  decimal.Decimal
	Version       int
	TransactionID string
	Timestamp     time.Time
}

// State is the aggregate's derived, in-memory representation.
type State struct {
	WalletID       string
	Balance        decimal.Decimal
	CurrentVersion int
}

var (
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Fold replays an ordered event slice into a State. It is deterministic
// and order-sensitive: callers must pass events sorted by Version
// ascending. An empty slice yields the zero-balance, version-0 state.
func Fold(walletID string, events []Event) State {
	state := State{WalletID: walletID, Balance: decimal.Zero}
	for _, e := range events {
		switch e.Type {
		case EventMoneyDeposited:
			state.Balance = state.Balance.Add(e.Amount)
		case EventMoneyWithdrawn:
			state.Balance = state.Balance.Sub(e.Amount)
		}
		state.CurrentVersion = e.Version
	}
	return state
}

// Deposit validates amount and produces the event that would result from
// depositing it into state. It does not mutate state.
func Deposit(state State, amount decimal.Decimal) (Event, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return Event{}, ErrInvalidAmount
	}

	return Event{
		WalletID:      state.WalletID,
		Type:          EventMoneyDeposited,
		Amount:        amount,
		BalanceAfter:  state.Balance.Add(amount),
		Version:       state.CurrentVersion + 1,
		TransactionID: uuid.NewString(),
		Timestamp:     time.Now().UTC(),
	}, nil
}

// Withdraw validates amount against the current balance and produces the
// event that would result from withdrawing it. It does not mutate state.
func Withdraw(state State, amount decimal.Decimal) (Event, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return Event{}, ErrInvalidAmount
	}
	if amount.GreaterThan(state.Balance) {
		return Event{}, ErrInsufficientFunds
	}

	return Event{
		WalletID:      state.WalletID,
		Type:          EventMoneyWithdrawn,
		Amount:        amount,
		BalanceAfter:  state.Balance.Sub(amount),
		Version:       state.CurrentVersion + 1,
		TransactionID: uuid.NewString(),
		Timestamp:     time.Now().UTC(),
	}, nil
}
