// Package eventstore is the append-only durable log of aggregate events
// (C1) and the repository that replays/appends against it (C3).
package eventstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fandangolas/wallet-ledger/internal/domain/wallet"
)

// ErrConflict is returned when the (aggregate_id, version) uniqueness
// constraint rejects an append — another writer committed first.
var ErrConflict = errors.New("concurrency conflict: aggregate version already committed")

const uniqueViolation = "23505"

// Store is the append-only event log contract from spec §4.1.
type Store interface {
	Append(ctx context.Context, aggregateID, aggregateType string, events []wallet.Event, expectedVersion int) error
	Load(ctx context.Context, aggregateID string) ([]wallet.Event, error)
	LatestVersion(ctx context.Context, aggregateID string) (int, error)
}

// PostgresStore implements Store against the write database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an already-connected pool. The pool is expected
// to point at the write database (DB_WRITE_*).
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Append inserts events atomically at expectedVersion+1..+N. A unique
// violation on (aggregate_id, version) is mapped to ErrConflict; any
// other failure leaves no partial state because the whole call runs
// inside one transaction.
func (s *PostgresStore) Append(ctx context.Context, aggregateID, aggregateType string, events []wallet.Event, expectedVersion int) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const insert = `
		INSERT INTO wallet_events
			(aggregate_id, aggregate_type, event_type, payload, version, transaction_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for i, e := range events {
		version := expectedVersion + i + 1
		payload := map[string]any{
			"amount":        e.Amount.String(),
			"balance_after": e.BalanceAfter.String(),
		}

		_, err := tx.Exec(ctx, insert,
			aggregateID, aggregateType, string(e.Type), payload, version, e.TransactionID, e.Timestamp,
		)
		if err != nil {
			var pgErr interface{ SQLState() string }
			if errors.As(err, &pgErr) && pgErr.SQLState() == uniqueViolation {
				return ErrConflict
			}
			return fmt.Errorf("append event at version %d: %w", version, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit append transaction: %w", err)
	}

	return nil
}

// Load returns every event for aggregateID ordered by version ascending.
func (s *PostgresStore) Load(ctx context.Context, aggregateID string) ([]wallet.Event, error) {
	const query = `
		SELECT event_type, payload, version, transaction_id, created_at
		FROM wallet_events
		WHERE aggregate_id = $1
		ORDER BY version ASC
	`

	rows, err := s.pool.Query(ctx, query, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("load events for %s: %w", aggregateID, err)
	}
	defer rows.Close()

	var events []wallet.Event
	for rows.Next() {
		var (
			eventType     string
			payload       map[string]any
			version       int
			transactionID string
			createdAt     time.Time
		)

		if err := rows.Scan(&eventType, &payload, &version, &transactionID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}

		amount, err := decimal.NewFromString(fmt.Sprintf("%v", payload["amount"]))
		if err != nil {
			return nil, fmt.Errorf("parse amount for version %d: %w", version, err)
		}
		balanceAfter, err := decimal.NewFromString(fmt.Sprintf("%v", payload["balance_after"]))
		if err != nil {
			return nil, fmt.Errorf("parse balance_after for version %d: %w", version, err)
		}

		events = append(events, wallet.Event{
			WalletID:      aggregateID,
			Type:          wallet.EventType(eventType),
			Amount:        amount,
			BalanceAfter:  balanceAfter,
			Version:       version,
			TransactionID: transactionID,
			Timestamp:     createdAt,
		})
	}

	return events, rows.Err()
}

// LatestVersion returns the highest version committed for aggregateID,
// or 0 if no events exist.
func (s *PostgresStore) LatestVersion(ctx context.Context, aggregateID string) (int, error) {
	const query = `SELECT COALESCE(MAX(version), 0) FROM wallet_events WHERE aggregate_id = $1`

	var version int
	if err := s.pool.QueryRow(ctx, query, aggregateID).Scan(&version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("latest version for %s: %w", aggregateID, err)
	}

	return version, nil
}
