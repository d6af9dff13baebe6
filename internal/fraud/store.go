package fraud

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RiskProfile mirrors spec §3's "Fraud — Risk profile" row.
type RiskProfile struct {
	WalletID   string
	RiskScore  int
	RiskLevel  Severity
	AlertCount int
	LastUpdated time.Time
}

// Store is the fraud database's sole writer, isolated from the write
// and read databases per spec §3's ownership rule.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// RecentWindow returns the sliding window of recent events for a
// wallet, newest first, bounded to since.
func (s *Store) RecentWindow(ctx context.Context, walletID string, since time.Time) ([]RecentEvent, error) {
	const query = `
		SELECT wallet_id, event_type, amount, transaction_id, created_at
		FROM fraud_recent_events
		WHERE wallet_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
	`
	rows, err := s.pool.Query(ctx, query, walletID, since)
	if err != nil {
		return nil, fmt.Errorf("query recent events for %s: %w", walletID, err)
	}
	defer rows.Close()

	var events []RecentEvent
	for rows.Next() {
		var e RecentEvent
		if err := rows.Scan(&e.WalletID, &e.EventType, &e.Amount, &e.TransactionID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recent event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// RecordEvent appends one row to the sliding window, unless a row with
// the same transaction_id is already there (a redelivery), so the
// window never counts one event twice. Older rows may be pruned
// elsewhere without affecting correctness of past alerts, per spec §3.
func (s *Store) RecordEvent(ctx context.Context, e RecentEvent) error {
	const insert = `
		INSERT INTO fraud_recent_events (wallet_id, event_type, amount, transaction_id, created_at)
		SELECT $1::text, $2::text, $3::numeric, $4::text, $5::timestamptz
		WHERE NOT EXISTS (SELECT 1 FROM fraud_recent_events WHERE transaction_id = $4::text)
	`
	_, err := s.pool.Exec(ctx, insert, e.WalletID, e.EventType, e.Amount, e.TransactionID, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("record fraud window event: %w", err)
	}
	return nil
}

// PruneBefore deletes window rows older than cutoff, bounding table
// growth without touching alerts or risk profiles.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM fraud_recent_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return fmt.Errorf("prune fraud window: %w", err)
	}
	return nil
}

// RecordAlerts inserts each alert (ON CONFLICT DO NOTHING on the
// (transaction_id, rule_id) uniqueness constraint) and, for each alert
// actually inserted (not a duplicate), advances the wallet's risk
// profile. Both happen in one transaction so a crash between the two
// can never double-count an alert that didn't actually get inserted.
func (s *Store) RecordAlerts(ctx context.Context, alerts []Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin fraud alert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var accepted []Alert
	for _, a := range alerts {
		const insertAlert = `
			INSERT INTO fraud_alerts (wallet_id, rule_id, rule_name, severity, transaction_id, event_type, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (transaction_id, rule_id) DO NOTHING
		`
		tag, err := tx.Exec(ctx, insertAlert, a.WalletID, a.RuleID, a.RuleName, a.Severity, a.TransactionID, a.EventType, a.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert fraud alert %s/%s: %w", a.TransactionID, a.RuleID, err)
		}
		if tag.RowsAffected() > 0 {
			accepted = append(accepted, a)
		}
	}

	if len(accepted) > 0 {
		if err := s.advanceRiskProfile(ctx, tx, accepted); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *Store) advanceRiskProfile(ctx context.Context, tx pgx.Tx, accepted []Alert) error {
	delta := ScoreDelta(accepted)
	walletID := accepted[0].WalletID
	now := time.Now().UTC()

	const upsert = `
		INSERT INTO fraud_risk_profiles (wallet_id, risk_score, alert_count, last_updated)
		VALUES ($1, LEAST($2, 100), $3, $4)
		ON CONFLICT (wallet_id) DO UPDATE
		SET risk_score = LEAST(fraud_risk_profiles.risk_score + $2, 100),
		    alert_count = fraud_risk_profiles.alert_count + $3,
		    last_updated = $4
	`
	if _, err := tx.Exec(ctx, upsert, walletID, delta, len(accepted), now); err != nil {
		return fmt.Errorf("advance risk profile for %s: %w", walletID, err)
	}
	return nil
}

func (s *Store) RiskProfile(ctx context.Context, walletID string) (RiskProfile, error) {
	const query = `
		SELECT wallet_id, risk_score, alert_count, last_updated
		FROM fraud_risk_profiles
		WHERE wallet_id = $1
	`
	var p RiskProfile
	err := s.pool.QueryRow(ctx, query, walletID).Scan(&p.WalletID, &p.RiskScore, &p.AlertCount, &p.LastUpdated)
	if err != nil {
		return RiskProfile{}, fmt.Errorf("read risk profile for %s: %w", walletID, err)
	}
	p.RiskLevel = LevelFor(p.RiskScore)
	return p, nil
}
