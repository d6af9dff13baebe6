package eventstore_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fandangolas/wallet-ledger/internal/domain/wallet"
	"github.com/fandangolas/wallet-ledger/internal/eventstore"
	"github.com/fandangolas/wallet-ledger/test/integration/testenv"
)

type recordingPublisher struct {
	published []eventstore.WalletEventMessage
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, message any) error {
	if msg, ok := message.(eventstore.WalletEventMessage); ok {
		p.published = append(p.published, msg)
	}
	return nil
}

func newRepository(t *testing.T) (*eventstore.Repository, *recordingPublisher) {
	t.Helper()
	dsn := testenv.PostgresDSN(t, "../../../migrations/write")

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	publisher := &recordingPublisher{}
	store := eventstore.NewPostgresStore(pool)
	return eventstore.NewRepository(store, publisher), publisher
}

func TestRepository_DepositThenWithdrawFoldsToExpectedBalance(t *testing.T) {
	repo, publisher := newRepository(t)
	ctx := context.Background()

	_, err := repo.Deposit(ctx, "w1", decimal.NewFromInt(100))
	require.NoError(t, err)

	_, err = repo.Withdraw(ctx, "w1", decimal.NewFromInt(30))
	require.NoError(t, err)

	state, err := repo.Balance(ctx, "w1")
	require.NoError(t, err)
	require.True(t, state.Balance.Equal(decimal.NewFromInt(70)))
	require.Equal(t, 2, state.CurrentVersion)

	require.Len(t, publisher.published, 2)
	require.Equal(t, string(wallet.EventMoneyDeposited), publisher.published[0].EventType)
	require.Equal(t, string(wallet.EventMoneyWithdrawn), publisher.published[1].EventType)
}

func TestRepository_WithdrawBeyondBalanceLeavesNoNewEvent(t *testing.T) {
	repo, _ := newRepository(t)
	ctx := context.Background()

	_, err := repo.Deposit(ctx, "w2", decimal.NewFromInt(10))
	require.NoError(t, err)

	_, err = repo.Withdraw(ctx, "w2", decimal.NewFromInt(50))
	require.ErrorIs(t, err, wallet.ErrInsufficientFunds)

	state, err := repo.Balance(ctx, "w2")
	require.NoError(t, err)
	require.True(t, state.Balance.Equal(decimal.NewFromInt(10)))
	require.Equal(t, 1, state.CurrentVersion)
}

func TestRepository_ReplayAfterManyEventsMatchesIncrementalBalance(t *testing.T) {
	repo, _ := newRepository(t)
	ctx := context.Background()

	_, err := repo.Deposit(ctx, "w3", decimal.NewFromInt(1000))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := repo.Withdraw(ctx, "w3", decimal.NewFromInt(50))
		require.NoError(t, err)
	}

	state, err := repo.Balance(ctx, "w3")
	require.NoError(t, err)
	require.True(t, state.Balance.Equal(decimal.NewFromInt(750)))
	require.Equal(t, 6, state.CurrentVersion)
}
