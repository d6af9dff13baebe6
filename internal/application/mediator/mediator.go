// Package mediator wraps the three wallet commands (deposit, withdraw,
// transfer) in the idempotency envelope from spec §4.6, then dispatches
// to the event-log repository or the transfer saga. Grounded on the
// teacher's handlers calling straight into domain logic, generalized
// with an idempotency check-and-lock step the teacher's handlers never
// had (their GenerateKey approach derives a key instead of accepting
// one from the client).
package mediator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fandangolas/wallet-ledger/internal/domain/wallet"
	"github.com/fandangolas/wallet-ledger/internal/eventstore"
	"github.com/fandangolas/wallet-ledger/internal/idempotency"
	"github.com/fandangolas/wallet-ledger/internal/saga"
)

type DepositResult struct {
	WalletID      string          `json:"walletId"`
	TransactionID string          `json:"transactionId"`
	Balance       decimal.Decimal `json:"balance"`
}

type WithdrawResult struct {
	WalletID      string          `json:"walletId"`
	TransactionID string          `json:"transactionId"`
	Balance       decimal.Decimal `json:"balance"`
	Success       bool            `json:"success"`
	Message       string          `json:"message,omitempty"`
}

type TransferResult struct {
	FromWalletID string          `json:"fromWalletId"`
	ToWalletID   string          `json:"toWalletId"`
	FromBalance  decimal.Decimal `json:"fromBalance"`
	ToBalance    decimal.Decimal `json:"toBalance"`
	Success      bool            `json:"success"`
	Message      string          `json:"message,omitempty"`
}

// Mediator dispatches validated commands through the idempotency
// envelope to the domain layer.
type Mediator struct {
	repo         *eventstore.Repository
	orchestrator *saga.Orchestrator
	idempotency  *idempotency.Store
}

func NewMediator(repo *eventstore.Repository, orchestrator *saga.Orchestrator, idem *idempotency.Store) *Mediator {
	return &Mediator{repo: repo, orchestrator: orchestrator, idempotency: idem}
}

// ErrIdempotencyConflict distinguishes a key replayed with a different
// request body from any other idempotency infrastructure failure.
var ErrIdempotencyConflict = errors.New("idempotency key reused with a different request")

// ErrIdempotencyInFlight is returned when a concurrent request already
// holds the lock on this key and hasn't completed yet.
var ErrIdempotencyInFlight = errors.New("a request with this idempotency key is already in progress")

// idempotencyTimeout bounds each call the envelope makes to the
// idempotency store.
const idempotencyTimeout = time.Second

// fingerprint derives a stable hash of a command's shape so a reused
// idempotency key can be checked against the original request. The
// check only applies while the original request is still in flight: a
// different shape then gets a mismatch. Once the key has completed, its
// stored response is replayed whatever the new request's shape.
func fingerprint(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// run executes fn under the check-and-lock/complete/release envelope,
// replaying a stored response verbatim when the key already completed
// — regardless of whether this call's fingerprint matches the original
// (spec §4.6/§8 scenario S2) — and translating the store's in-flight
// mismatch sentinel into the mediator's own error.
func run[T any](ctx context.Context, store *idempotency.Store, key, fp string, fn func() (T, error)) (T, bool, error) {
	var zero T

	lockCtx, cancelLock := context.WithTimeout(ctx, idempotencyTimeout)
	existing, done, err := store.CheckAndLock(lockCtx, key, fp)
	cancelLock()
	switch {
	case errors.Is(err, idempotency.ErrMismatch):
		return zero, false, ErrIdempotencyConflict
	case errors.Is(err, idempotency.ErrInFlight):
		return zero, false, ErrIdempotencyInFlight
	case err != nil:
		return zero, false, err
	}

	if done {
		var replay T
		if unmarshalErr := json.Unmarshal(existing.ResponseBody, &replay); unmarshalErr != nil {
			return zero, false, fmt.Errorf("unmarshal replayed idempotency response: %w", unmarshalErr)
		}
		return replay, true, nil
	}

	result, err := fn()
	if err != nil {
		// Detached from ctx so the lock is still released when ctx has
		// already passed its deadline or been cancelled.
		releaseCtx, cancelRelease := context.WithTimeout(context.WithoutCancel(ctx), idempotencyTimeout)
		defer cancelRelease()
		if releaseErr := store.Release(releaseCtx, key); releaseErr != nil {
			return zero, false, fmt.Errorf("%w (and release failed: %s)", err, releaseErr)
		}
		return zero, false, err
	}

	body, err := json.Marshal(result)
	if err != nil {
		return zero, false, fmt.Errorf("marshal command result for idempotency store: %w", err)
	}
	completeCtx, cancelComplete := context.WithTimeout(ctx, idempotencyTimeout)
	defer cancelComplete()
	if err := store.Complete(completeCtx, key, fp, 200, body); err != nil {
		return zero, false, fmt.Errorf("persist idempotency completion: %w", err)
	}

	return result, false, nil
}

func (m *Mediator) Deposit(ctx context.Context, idempotencyKey, walletID string, amount decimal.Decimal) (DepositResult, bool, error) {
	fp := fingerprint("deposit", walletID, amount.String())

	return run(ctx, m.idempotency, idempotencyKey, fp, func() (DepositResult, error) {
		event, err := m.repo.Deposit(ctx, walletID, amount)
		if err != nil {
			return DepositResult{}, err
		}
		return DepositResult{WalletID: walletID, TransactionID: event.TransactionID, Balance: event.BalanceAfter}, nil
	})
}

// Withdraw treats insufficient funds as a successful command outcome
// carrying success:false, per spec §7's open question #3 — it is not
// an error path, and the idempotency envelope still records and
// replays that outcome like any other result.
func (m *Mediator) Withdraw(ctx context.Context, idempotencyKey, walletID string, amount decimal.Decimal) (WithdrawResult, bool, error) {
	fp := fingerprint("withdraw", walletID, amount.String())

	return run(ctx, m.idempotency, idempotencyKey, fp, func() (WithdrawResult, error) {
		event, err := m.repo.Withdraw(ctx, walletID, amount)
		if err != nil {
			if errors.Is(err, wallet.ErrInsufficientFunds) {
				return WithdrawResult{WalletID: walletID, Success: false, Message: err.Error()}, nil
			}
			return WithdrawResult{}, err
		}
		return WithdrawResult{
			WalletID: walletID, TransactionID: event.TransactionID,
			Balance: event.BalanceAfter, Success: true,
		}, nil
	})
}

func (m *Mediator) Transfer(ctx context.Context, idempotencyKey, fromWalletID, toWalletID string, amount decimal.Decimal) (TransferResult, bool, error) {
	fp := fingerprint("transfer", fromWalletID, toWalletID, amount.String())

	return run(ctx, m.idempotency, idempotencyKey, fp, func() (TransferResult, error) {
		result, err := m.orchestrator.Transfer(ctx, fromWalletID, toWalletID, amount)
		if err != nil {
			return TransferResult{}, err
		}
		return TransferResult{
			FromWalletID: fromWalletID, ToWalletID: toWalletID,
			FromBalance: result.FromBalance, ToBalance: result.ToBalance,
			Success: result.Success, Message: result.Message,
		}, nil
	})
}
