package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresStore persists saga rows in the write database. A row is
// written by the command that created it and, once it has sat
// unchanged past the recovery threshold, by the recovery scanner;
// saga_ids are unique.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, state State) error {
	const insert = `
		INSERT INTO transfer_sagas
			(saga_id, from_wallet_id, to_wallet_id, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.pool.Exec(ctx, insert,
		state.SagaID, state.FromWalletID, state.ToWalletID, state.Amount,
		state.Status, state.CreatedAt, state.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create saga %s: %w", state.SagaID, err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, state State) error {
	const update = `
		UPDATE transfer_sagas
		SET status = $1, debit_tx_id = $2, credit_tx_id = $3, compensation_tx_id = $4,
		    error_message = $5, updated_at = $6
		WHERE saga_id = $7
	`
	_, err := s.pool.Exec(ctx, update,
		state.Status, nullable(state.DebitTxID), nullable(state.CreditTxID),
		nullable(state.CompensationTxID), nullable(state.ErrorMessage),
		state.UpdatedAt, state.SagaID,
	)
	if err != nil {
		return fmt.Errorf("update saga %s: %w", state.SagaID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, sagaID string) (State, error) {
	const query = `
		SELECT saga_id, from_wallet_id, to_wallet_id, amount, status,
		       COALESCE(debit_tx_id, ''), COALESCE(credit_tx_id, ''),
		       COALESCE(compensation_tx_id, ''), COALESCE(error_message, ''),
		       created_at, updated_at
		FROM transfer_sagas
		WHERE saga_id = $1
	`
	var state State
	var amount decimal.Decimal
	err := s.pool.QueryRow(ctx, query, sagaID).Scan(
		&state.SagaID, &state.FromWalletID, &state.ToWalletID, &amount, &state.Status,
		&state.DebitTxID, &state.CreditTxID, &state.CompensationTxID, &state.ErrorMessage,
		&state.CreatedAt, &state.UpdatedAt,
	)
	if err != nil {
		return State{}, fmt.Errorf("get saga %s: %w", sagaID, err)
	}
	state.Amount = amount
	return state, nil
}

// ListStuck returns non-terminal sagas (INITIATED or SOURCE_DEBITED)
// last updated before olderThan, the recovery scanner's candidate set.
func (s *PostgresStore) ListStuck(ctx context.Context, olderThan time.Time) ([]State, error) {
	const query = `
		SELECT saga_id, from_wallet_id, to_wallet_id, amount, status,
		       COALESCE(debit_tx_id, ''), COALESCE(credit_tx_id, ''),
		       COALESCE(compensation_tx_id, ''), COALESCE(error_message, ''),
		       created_at, updated_at
		FROM transfer_sagas
		WHERE status IN ('INITIATED', 'SOURCE_DEBITED') AND updated_at < $1
	`
	rows, err := s.pool.Query(ctx, query, olderThan)
	if err != nil {
		return nil, fmt.Errorf("list stuck sagas: %w", err)
	}
	defer rows.Close()

	var states []State
	for rows.Next() {
		var state State
		var amount decimal.Decimal
		if err := rows.Scan(
			&state.SagaID, &state.FromWalletID, &state.ToWalletID, &amount, &state.Status,
			&state.DebitTxID, &state.CreditTxID, &state.CompensationTxID, &state.ErrorMessage,
			&state.CreatedAt, &state.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan stuck saga row: %w", err)
		}
		state.Amount = amount
		states = append(states, state)
	}
	return states, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
