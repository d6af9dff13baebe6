package idempotency_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/fandangolas/wallet-ledger/internal/idempotency"
	"github.com/fandangolas/wallet-ledger/test/integration/testenv"
)

func newStore(t *testing.T) *idempotency.Store {
	t.Helper()
	addr := testenv.RedisAddr(t)
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { client.Close() })
	return idempotency.NewStore(client, time.Minute)
}

func TestCheckAndLock_FirstCallLocksAndReturnsNotDone(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	record, done, err := store.CheckAndLock(ctx, "key-1", "fp-1")
	require.NoError(t, err)
	require.False(t, done)
	require.Nil(t, record)
}

func TestCheckAndLock_SecondCallWhileInFlightReturnsErrInFlight(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, _, err := store.CheckAndLock(ctx, "key-2", "fp-2")
	require.NoError(t, err)

	_, _, err = store.CheckAndLock(ctx, "key-2", "fp-2")
	require.ErrorIs(t, err, idempotency.ErrInFlight)
}

func TestCheckAndLock_DifferentFingerprintReturnsErrMismatch(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, _, err := store.CheckAndLock(ctx, "key-3", "fp-a")
	require.NoError(t, err)

	_, _, err = store.CheckAndLock(ctx, "key-3", "fp-b")
	require.ErrorIs(t, err, idempotency.ErrMismatch)
}

func TestCompleteThenCheckAndLock_ReplaysStoredResponse(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, _, err := store.CheckAndLock(ctx, "key-4", "fp-4")
	require.NoError(t, err)

	require.NoError(t, store.Complete(ctx, "key-4", "fp-4", 201, []byte(`{"ok":true}`)))

	record, done, err := store.CheckAndLock(ctx, "key-4", "fp-4")
	require.NoError(t, err)
	require.True(t, done)
	require.Equal(t, 201, record.ResponseCode)
	require.JSONEq(t, `{"ok":true}`, string(record.ResponseBody))
}

func TestRelease_AllowsRetryOfAnInFlightKey(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, _, err := store.CheckAndLock(ctx, "key-5", "fp-5")
	require.NoError(t, err)

	require.NoError(t, store.Release(ctx, "key-5"))

	_, done, err := store.CheckAndLock(ctx, "key-5", "fp-5")
	require.NoError(t, err)
	require.False(t, done)
}
