package saga_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fandangolas/wallet-ledger/internal/domain/wallet"
	"github.com/fandangolas/wallet-ledger/internal/eventstore"
	"github.com/fandangolas/wallet-ledger/internal/saga"
)

func TestRecovery_RedrivesSagaStuckAtInitiated(t *testing.T) {
	store := newFakeEventStore()
	seedBalance(t, store, "alice", decimal.NewFromInt(100))

	repo := eventstore.NewRepository(store, noopPublisher{})
	sagaStore := newFakeSagaStore()
	orchestrator := saga.NewOrchestrator(repo, sagaStore, noopPublisher{})

	stuck := saga.State{
		SagaID: "stuck-1", FromWalletID: "alice", ToWalletID: "bob",
		Amount: decimal.NewFromInt(25), Status: saga.StatusInitiated,
		CreatedAt: time.Now().UTC().Add(-time.Hour), UpdatedAt: time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, sagaStore.Create(context.Background(), stuck))

	recovery := saga.NewRecovery(orchestrator, sagaStore, 10*time.Millisecond, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	recovery.Run(ctx)

	redriven, err := sagaStore.Get(context.Background(), "stuck-1")
	require.NoError(t, err)
	require.Equal(t, saga.StatusCompleted, redriven.Status)

	bobEvents, _ := store.Load(context.Background(), "bob")
	require.Len(t, bobEvents, 1)
	require.Equal(t, wallet.EventMoneyDeposited, bobEvents[0].Type)
}

func TestRecovery_NeverTouchesCompensatingSagas(t *testing.T) {
	store := newFakeEventStore()
	repo := eventstore.NewRepository(store, noopPublisher{})
	sagaStore := newFakeSagaStore()
	orchestrator := saga.NewOrchestrator(repo, sagaStore, noopPublisher{})

	compensating := saga.State{
		SagaID: "stuck-2", FromWalletID: "alice", ToWalletID: "bob",
		Amount: decimal.NewFromInt(25), Status: saga.StatusCompensating,
		CreatedAt: time.Now().UTC().Add(-time.Hour), UpdatedAt: time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, sagaStore.Create(context.Background(), compensating))

	recovery := saga.NewRecovery(orchestrator, sagaStore, 10*time.Millisecond, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	recovery.Run(ctx)

	untouched, err := sagaStore.Get(context.Background(), "stuck-2")
	require.NoError(t, err)
	require.Equal(t, saga.StatusCompensating, untouched.Status, "COMPENSATING sagas require operator attention, never automatic redrive")
}
