package wallet_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fandangolas/wallet-ledger/internal/domain/wallet"
)

func amt(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestFold_EmptyEventsYieldsZeroBalance(t *testing.T) {
	state := wallet.Fold("w1", nil)

	require.True(t, state.Balance.Equal(decimal.Zero))
	require.Equal(t, 0, state.CurrentVersion)
}

func TestDeposit_IncreasesBalanceAndVersion(t *testing.T) {
	state := wallet.Fold("w1", nil)

	event, err := wallet.Deposit(state, amt("100.00"))
	require.NoError(t, err)
	require.Equal(t, wallet.EventMoneyDeposited, event.Type)
	require.True(t, event.BalanceAfter.Equal(amt("100.00")))
	require.Equal(t, 1, event.Version)
	require.NotEmpty(t, event.TransactionID)
}

func TestDeposit_RejectsNonPositiveAmount(t *testing.T) {
	state := wallet.Fold("w1", nil)

	_, err := wallet.Deposit(state, amt("0"))
	require.ErrorIs(t, err, wallet.ErrInvalidAmount)

	_, err = wallet.Deposit(state, amt("-5"))
	require.ErrorIs(t, err, wallet.ErrInvalidAmount)
}

func TestWithdraw_RejectsInsufficientFunds(t *testing.T) {
	state := wallet.Fold("w1", []wallet.Event{
		{Type: wallet.EventMoneyDeposited, Amount: amt("50.00"), BalanceAfter: amt("50.00"), Version: 1},
	})

	_, err := wallet.Withdraw(state, amt("50.01"))
	require.ErrorIs(t, err, wallet.ErrInsufficientFunds)
}

func TestWithdraw_RejectsNonPositiveAmount(t *testing.T) {
	state := wallet.Fold("w1", []wallet.Event{
		{Type: wallet.EventMoneyDeposited, Amount: amt("50.00"), BalanceAfter: amt("50.00"), Version: 1},
	})

	_, err := wallet.Withdraw(state, amt("0"))
	require.ErrorIs(t, err, wallet.ErrInvalidAmount)
}

func TestReplayFidelity_FoldMatchesLastBalanceAfter(t *testing.T) {
	events := []wallet.Event{
		{Type: wallet.EventMoneyDeposited, Amount: amt("100.00"), BalanceAfter: amt("100.00"), Version: 1},
		{Type: wallet.EventMoneyWithdrawn, Amount: amt("30.00"), BalanceAfter: amt("70.00"), Version: 2},
		{Type: wallet.EventMoneyDeposited, Amount: amt("10.00"), BalanceAfter: amt("80.00"), Version: 3},
	}

	state := wallet.Fold("w1", events)

	require.True(t, state.Balance.Equal(events[len(events)-1].BalanceAfter))
	require.Equal(t, 3, state.CurrentVersion)
}

func TestBalanceInvariant_NeverNegativeAcrossSequentialOps(t *testing.T) {
	state := wallet.Fold("w1", nil)

	depositEvt, err := wallet.Deposit(state, amt("20.00"))
	require.NoError(t, err)
	state = wallet.Fold("w1", []wallet.Event{depositEvt})

	_, err = wallet.Withdraw(state, amt("20.01"))
	require.Error(t, err)
	require.True(t, state.Balance.GreaterThanOrEqual(decimal.Zero))
}
