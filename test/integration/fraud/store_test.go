package fraud_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fandangolas/wallet-ledger/internal/fraud"
	"github.com/fandangolas/wallet-ledger/test/integration/testenv"
)

func newStore(t *testing.T) *fraud.Store {
	t.Helper()
	dsn := testenv.PostgresDSN(t, "../../../migrations/fraud")

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return fraud.NewStore(pool)
}

func TestRecordEvent_ThenRecentWindow_ReturnsNewestFirst(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.RecordEvent(ctx, fraud.RecentEvent{
		WalletID: "w1", EventType: "MoneyDeposited", Amount: decimal.NewFromInt(100), TransactionID: "tx1", CreatedAt: now,
	}))
	require.NoError(t, store.RecordEvent(ctx, fraud.RecentEvent{
		WalletID: "w1", EventType: "MoneyWithdrawn", Amount: decimal.NewFromInt(50), TransactionID: "tx2", CreatedAt: now.Add(time.Second),
	}))

	window, err := store.RecentWindow(ctx, "w1", now.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, window, 2)
	require.Equal(t, "tx2", window[0].TransactionID, "most recent event first")
}

func TestRecentWindow_ExcludesEventsBeforeSince(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.RecordEvent(ctx, fraud.RecentEvent{
		WalletID: "w2", EventType: "MoneyDeposited", Amount: decimal.NewFromInt(100), TransactionID: "tx1", CreatedAt: now.Add(-time.Hour),
	}))

	window, err := store.RecentWindow(ctx, "w2", now.Add(-time.Minute))
	require.NoError(t, err)
	require.Empty(t, window)
}

func TestRecordAlerts_DedupsByTransactionAndRule(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	alert := fraud.Alert{
		WalletID: "w3", RuleID: fraud.RuleLargeTransaction, RuleName: "Large transaction",
		Severity: fraud.SeverityHigh, TransactionID: "tx1", EventType: "MoneyWithdrawn", CreatedAt: now,
	}

	require.NoError(t, store.RecordAlerts(ctx, []fraud.Alert{alert}))
	require.NoError(t, store.RecordAlerts(ctx, []fraud.Alert{alert}), "redelivery of the same alert must not fail or double-count")

	profile, err := store.RiskProfile(ctx, "w3")
	require.NoError(t, err)
	require.Equal(t, 1, profile.AlertCount, "a deduplicated alert must not advance the risk profile twice")
}

func TestRecordAlerts_AdvancesRiskProfileAndCapsScoreAt100(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	var alerts []fraud.Alert
	for i := 0; i < 5; i++ {
		alerts = append(alerts, fraud.Alert{
			WalletID: "w4", RuleID: fraud.RuleHighVelocity, RuleName: "High velocity",
			Severity: fraud.SeverityCritical, TransactionID: genTxID(i), EventType: "MoneyWithdrawn", CreatedAt: now,
		})
	}

	for _, a := range alerts {
		require.NoError(t, store.RecordAlerts(ctx, []fraud.Alert{a}))
	}

	profile, err := store.RiskProfile(ctx, "w4")
	require.NoError(t, err)
	require.Equal(t, 5, profile.AlertCount)
	require.LessOrEqual(t, profile.RiskScore, 100, "risk score must never exceed the cap")
	require.Equal(t, fraud.LevelFor(profile.RiskScore), profile.RiskLevel)
}

func genTxID(i int) string {
	digits := "0123456789"
	return "tx-" + string(digits[i%10])
}
