package projection_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fandangolas/wallet-ledger/internal/projection"
	"github.com/fandangolas/wallet-ledger/test/integration/testenv"
)

func newStore(t *testing.T) *projection.Store {
	t.Helper()
	dsn := testenv.PostgresDSN(t, "../../../migrations/read")

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return projection.NewStore(pool)
}

func TestApplyEvent_UpdatesBalanceAndAppendsTransactionHistory(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	// timestamptz keeps microseconds, so compare against a value that
	// survives the round trip unchanged.
	now := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, store.ApplyEvent(ctx, "w1", "DEPOSIT", "", "tx1", decimal.NewFromInt(100), decimal.NewFromInt(100), 1, now))
	require.NoError(t, store.ApplyEvent(ctx, "w1", "WITHDRAWAL", "", "tx2", decimal.NewFromInt(40), decimal.NewFromInt(60), 2, now.Add(time.Second)))

	balance, err := store.Balance(ctx, "w1")
	require.NoError(t, err)
	require.True(t, balance.Balance.Equal(decimal.NewFromInt(60)))
	require.Equal(t, 2, balance.LastVersion)
	require.True(t, balance.CreatedAt.Equal(now), "created_at is fixed at the first insert, unlike updated_at")
	require.True(t, balance.UpdatedAt.Equal(now.Add(time.Second)))

	txs, err := store.Transactions(ctx, "w1", 10)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	require.Equal(t, "tx2", txs[0].TransactionID, "most recent transaction first")
}

func TestApplyEvent_IsIdempotentOnRedeliveredTransactionID(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.ApplyEvent(ctx, "w2", "DEPOSIT", "", "tx1", decimal.NewFromInt(100), decimal.NewFromInt(100), 1, now))
	require.NoError(t, store.ApplyEvent(ctx, "w2", "DEPOSIT", "", "tx1", decimal.NewFromInt(100), decimal.NewFromInt(100), 1, now))

	txs, err := store.Transactions(ctx, "w2", 10)
	require.NoError(t, err)
	require.Len(t, txs, 1, "redelivery of the same transaction_id must not duplicate the history row")

	balance, err := store.Balance(ctx, "w2")
	require.NoError(t, err)
	require.True(t, balance.Balance.Equal(decimal.NewFromInt(100)))
}

func TestHandle_IgnoresSagaLifecycleMessages(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	sagaMessage := []byte(`{"eventType":"TransferInitiated","data":{"sagaId":"s1","fromWalletId":"w9","toWalletId":"w10"},"publishedAt":"2026-01-01T00:00:00Z"}`)
	require.NoError(t, store.Handle(ctx, sagaMessage))

	_, err := store.Balance(ctx, "w9")
	require.Error(t, err, "a saga lifecycle message must never create a wallet projection row")
}

func TestHandle_ClassifiesTransferLegsAndRefunds(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	debit := []byte(`{"eventType":"MoneyWithdrawn","data":{"timestamp":"` + now.Format(time.RFC3339Nano) + `","transactionId":"tx-out","walletId":"w4","amount":"40","balanceAfter":"60","version":1,"txKind":"TRANSFER_OUT","relatedWalletId":"w5"},"publishedAt":"` + now.Format(time.RFC3339Nano) + `"}`)
	require.NoError(t, store.Handle(ctx, debit))

	credit := []byte(`{"eventType":"MoneyDeposited","data":{"timestamp":"` + now.Format(time.RFC3339Nano) + `","transactionId":"tx-in","walletId":"w5","amount":"40","balanceAfter":"40","version":1,"txKind":"TRANSFER_IN","relatedWalletId":"w4"},"publishedAt":"` + now.Format(time.RFC3339Nano) + `"}`)
	require.NoError(t, store.Handle(ctx, credit))

	outTxs, err := store.Transactions(ctx, "w4", 10)
	require.NoError(t, err)
	require.Len(t, outTxs, 1)
	require.Equal(t, "TRANSFER_OUT", outTxs[0].Type)
	require.NotNil(t, outTxs[0].RelatedWalletID)
	require.Equal(t, "w5", *outTxs[0].RelatedWalletID)

	inTxs, err := store.Transactions(ctx, "w5", 10)
	require.NoError(t, err)
	require.Len(t, inTxs, 1)
	require.Equal(t, "TRANSFER_IN", inTxs[0].Type)
	require.NotNil(t, inTxs[0].RelatedWalletID)
	require.Equal(t, "w4", *inTxs[0].RelatedWalletID)
}

func TestApplyEvent_PlainDepositClassifiesWithNoRelatedWallet(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.ApplyEvent(ctx, "w6", "DEPOSIT", "", "tx-plain", decimal.NewFromInt(25), decimal.NewFromInt(25), 1, now))

	txs, err := store.Transactions(ctx, "w6", 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, "DEPOSIT", txs[0].Type)
	require.Nil(t, txs[0].RelatedWalletID)
}

func TestApplyEvent_IgnoresOutOfOrderStaleVersion(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.ApplyEvent(ctx, "w3", "DEPOSIT", "", "tx1", decimal.NewFromInt(100), decimal.NewFromInt(100), 1, now))
	require.NoError(t, store.ApplyEvent(ctx, "w3", "DEPOSIT", "", "tx2", decimal.NewFromInt(50), decimal.NewFromInt(150), 2, now.Add(time.Second)))

	// A redelivered, older version must not roll the wallet balance back.
	require.NoError(t, store.ApplyEvent(ctx, "w3", "DEPOSIT", "", "tx3", decimal.NewFromInt(100), decimal.NewFromInt(100), 1, now))

	balance, err := store.Balance(ctx, "w3")
	require.NoError(t, err)
	require.Equal(t, 2, balance.LastVersion)
	require.True(t, balance.Balance.Equal(decimal.NewFromInt(150)))
}
