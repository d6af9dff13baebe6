package saga_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fandangolas/wallet-ledger/internal/domain/wallet"
	"github.com/fandangolas/wallet-ledger/internal/eventstore"
	"github.com/fandangolas/wallet-ledger/internal/saga"
)

var errSimulatedAppendFailure = errors.New("simulated append failure")

// fakeEventStore is an in-memory stand-in for eventstore.Store. failOnCall
// lets a test force the Nth Append against a given wallet to fail, so the
// orchestrator's credit-failure and compensation-failure paths can be
// exercised deterministically.
type fakeEventStore struct {
	mu         sync.Mutex
	events     map[string][]wallet.Event
	appends    map[string]int
	failOnCall map[string]int
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{
		events:     make(map[string][]wallet.Event),
		appends:    make(map[string]int),
		failOnCall: make(map[string]int),
	}
}

func (s *fakeEventStore) Append(ctx context.Context, aggregateID, aggregateType string, events []wallet.Event, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appends[aggregateID]++
	if n, ok := s.failOnCall[aggregateID]; ok && s.appends[aggregateID] == n {
		return errSimulatedAppendFailure
	}

	s.events[aggregateID] = append(s.events[aggregateID], events...)
	return nil
}

func (s *fakeEventStore) Load(ctx context.Context, aggregateID string) ([]wallet.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]wallet.Event(nil), s.events[aggregateID]...), nil
}

func (s *fakeEventStore) LatestVersion(ctx context.Context, aggregateID string) (int, error) {
	events, _ := s.Load(ctx, aggregateID)
	if len(events) == 0 {
		return 0, nil
	}
	return events[len(events)-1].Version, nil
}

var _ eventstore.Store = (*fakeEventStore)(nil)

// fakeSagaStore is an in-memory stand-in for saga.Store.
type fakeSagaStore struct {
	mu    sync.Mutex
	sagas map[string]saga.State
}

func newFakeSagaStore() *fakeSagaStore {
	return &fakeSagaStore{sagas: make(map[string]saga.State)}
}

func (s *fakeSagaStore) Create(ctx context.Context, state saga.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sagas[state.SagaID] = state
	return nil
}

func (s *fakeSagaStore) Update(ctx context.Context, state saga.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sagas[state.SagaID] = state
	return nil
}

func (s *fakeSagaStore) Get(ctx context.Context, sagaID string) (saga.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sagas[sagaID], nil
}

func (s *fakeSagaStore) ListStuck(ctx context.Context, olderThan time.Time) ([]saga.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stuck []saga.State
	for _, state := range s.sagas {
		if (state.Status == saga.StatusInitiated || state.Status == saga.StatusSourceDebited) && state.UpdatedAt.Before(olderThan) {
			stuck = append(stuck, state)
		}
	}
	return stuck, nil
}

var _ saga.Store = (*fakeSagaStore)(nil)

type noopPublisher struct{}

func (noopPublisher) Publish(ctx context.Context, routingKey string, message any) error { return nil }

func seedBalance(t *testing.T, store *fakeEventStore, walletID string, amount decimal.Decimal) {
	t.Helper()
	repo := eventstore.NewRepository(store, noopPublisher{})
	_, err := repo.Deposit(context.Background(), walletID, amount)
	require.NoError(t, err)
}

func TestTransfer_SucceedsAndMovesBalanceBetweenWallets(t *testing.T) {
	store := newFakeEventStore()
	seedBalance(t, store, "alice", decimal.NewFromInt(100))

	repo := eventstore.NewRepository(store, noopPublisher{})
	orchestrator := saga.NewOrchestrator(repo, newFakeSagaStore(), noopPublisher{})

	result, err := orchestrator.Transfer(context.Background(), "alice", "bob", decimal.NewFromInt(40))

	require.NoError(t, err)
	require.True(t, result.Success)
	require.True(t, result.FromBalance.Equal(decimal.NewFromInt(60)))
	require.True(t, result.ToBalance.Equal(decimal.NewFromInt(40)))
}

func TestTransfer_InsufficientFundsFailsWithoutTouchingDestination(t *testing.T) {
	store := newFakeEventStore()
	seedBalance(t, store, "alice", decimal.NewFromInt(10))

	repo := eventstore.NewRepository(store, noopPublisher{})
	orchestrator := saga.NewOrchestrator(repo, newFakeSagaStore(), noopPublisher{})

	result, err := orchestrator.Transfer(context.Background(), "alice", "bob", decimal.NewFromInt(40))

	require.NoError(t, err)
	require.False(t, result.Success)

	bobEvents, _ := store.Load(context.Background(), "bob")
	require.Empty(t, bobEvents)
}

func TestTransfer_CreditFailureCompensatesWithRefund(t *testing.T) {
	store := newFakeEventStore()
	seedBalance(t, store, "alice", decimal.NewFromInt(100))
	store.failOnCall["bob"] = 1 // the credit attempt

	repo := eventstore.NewRepository(store, noopPublisher{})
	orchestrator := saga.NewOrchestrator(repo, newFakeSagaStore(), noopPublisher{})

	result, err := orchestrator.Transfer(context.Background(), "alice", "bob", decimal.NewFromInt(40))

	require.NoError(t, err)
	require.False(t, result.Success)

	aliceEvents, _ := store.Load(context.Background(), "alice")
	state := wallet.Fold("alice", aliceEvents)
	require.True(t, state.Balance.Equal(decimal.NewFromInt(100)), "debit should be refunded back to the original balance")
}

func TestTransfer_CompensationFailureReturnsCriticalError(t *testing.T) {
	store := newFakeEventStore()
	seedBalance(t, store, "alice", decimal.NewFromInt(100)) // alice's 1st Append
	store.failOnCall["bob"] = 1                              // the credit attempt
	store.failOnCall["alice"] = 3                             // seed(1), debit(2), refund(3)

	repo := eventstore.NewRepository(store, noopPublisher{})
	orchestrator := saga.NewOrchestrator(repo, newFakeSagaStore(), noopPublisher{})

	result, err := orchestrator.Transfer(context.Background(), "alice", "bob", decimal.NewFromInt(40))

	require.ErrorIs(t, err, saga.ErrCompensationFailed)
	require.True(t, result.Critical)
}
