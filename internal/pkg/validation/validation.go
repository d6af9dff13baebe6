// Package validation holds request-level checks shared by the API
// handlers, adapted from the teacher's src/validation/validation.go.
package validation

import (
	"errors"

	"github.com/shopspring/decimal"
)

const (
	MaxWalletIDLen = 100
	MinWalletIDLen = 1
)

var maxAmount = decimal.NewFromInt(1_000_000)

// ValidateAmount enforces amount > 0 per spec §5's request contract;
// the aggregate itself re-checks this (wallet.ErrInvalidAmount) since
// the handler and domain layers must not trust each other.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("amount must be greater than zero")
	}
	if amount.GreaterThan(maxAmount) {
		return errors.New("amount exceeds maximum limit of 1,000,000")
	}
	return nil
}

func ValidateWalletID(id string) error {
	if len(id) < MinWalletIDLen {
		return errors.New("wallet id must not be empty")
	}
	if len(id) > MaxWalletIDLen {
		return errors.New("wallet id exceeds maximum length")
	}
	return nil
}

// ValidateTransfer additionally rejects a wallet transferring to itself.
func ValidateTransfer(fromWalletID, toWalletID string, amount decimal.Decimal) error {
	if err := ValidateWalletID(fromWalletID); err != nil {
		return err
	}
	if err := ValidateWalletID(toWalletID); err != nil {
		return err
	}
	if fromWalletID == toWalletID {
		return errors.New("cannot transfer to the same wallet")
	}
	return ValidateAmount(amount)
}

// ValidateIdempotencyKey enforces the client-supplied key per spec
// §4.6; the key namespace is intentionally global, not per-endpoint.
func ValidateIdempotencyKey(key string) error {
	if key == "" {
		return errors.New("idempotency key is required")
	}
	if len(key) > 255 {
		return errors.New("idempotency key exceeds maximum length")
	}
	return nil
}
