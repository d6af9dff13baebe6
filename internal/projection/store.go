package projection

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// WalletProjection is a read-model row for a single wallet's current
// balance, per spec §4.7.
type WalletProjection struct {
	WalletID    string          `json:"id"`
	Balance     decimal.Decimal `json:"balance"`
	LastVersion int             `json:"-"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// TransactionProjection is a read-model row for one applied event, the
// denormalized history spec §3/§4.7 describes for the balance/history
// query endpoints. Type is one of DEPOSIT, WITHDRAWAL, TRANSFER_IN,
// TRANSFER_OUT, REFUND; RelatedWalletID is set only for the latter
// three, naming the wallet on the other side of the transfer/refund.
type TransactionProjection struct {
	TransactionID   string          `json:"id"`
	WalletID        string          `json:"walletId"`
	Type            string          `json:"type"`
	RelatedWalletID *string         `json:"relatedWalletId,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	BalanceAfter    decimal.Decimal `json:"balanceAfter"`
	CreatedAt       time.Time       `json:"timestamp"`
}

// Store is the read database's projection writer, the sole writer of
// the wallet_projections/transaction_projections tables.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ApplyEvent upserts both projection rows for one wallet event inside a
// single transaction. It is idempotent by transaction_id: redelivery of
// the same event (at-least-once delivery, spec §4.4) is a no-op on the
// transaction row and a no-op on the wallet row when a newer version is
// already applied. txKind is the spec §3 transaction type (DEPOSIT,
// WITHDRAWAL, TRANSFER_IN, TRANSFER_OUT, REFUND); relatedWalletID is
// empty except for the latter three.
func (s *Store) ApplyEvent(ctx context.Context, walletID, txKind, relatedWalletID, transactionID string, amount, balanceAfter decimal.Decimal, version int, occurredAt time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin projection tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var relatedWallet *string
	if relatedWalletID != "" {
		relatedWallet = &relatedWalletID
	}

	const insertTransaction = `
		INSERT INTO transaction_projections
			(transaction_id, wallet_id, type, related_wallet_id, amount, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (transaction_id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, insertTransaction, transactionID, walletID, txKind, relatedWallet, amount, balanceAfter, occurredAt); err != nil {
		return fmt.Errorf("insert transaction projection: %w", err)
	}

	const upsertWallet = `
		INSERT INTO wallet_projections (wallet_id, balance, last_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (wallet_id) DO UPDATE
		SET balance = EXCLUDED.balance, last_version = EXCLUDED.last_version, updated_at = EXCLUDED.updated_at
		WHERE wallet_projections.last_version < EXCLUDED.last_version
	`
	if _, err := tx.Exec(ctx, upsertWallet, walletID, balanceAfter, version, occurredAt); err != nil {
		return fmt.Errorf("upsert wallet projection: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *Store) Balance(ctx context.Context, walletID string) (WalletProjection, error) {
	const query = `
		SELECT wallet_id, balance, last_version, created_at, updated_at
		FROM wallet_projections
		WHERE wallet_id = $1
	`
	var p WalletProjection
	err := s.pool.QueryRow(ctx, query, walletID).Scan(&p.WalletID, &p.Balance, &p.LastVersion, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return WalletProjection{}, fmt.Errorf("read wallet projection %s: %w", walletID, err)
	}
	return p, nil
}

func (s *Store) Transactions(ctx context.Context, walletID string, limit int) ([]TransactionProjection, error) {
	const query = `
		SELECT transaction_id, wallet_id, type, related_wallet_id, amount, balance_after, created_at
		FROM transaction_projections
		WHERE wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, walletID, limit)
	if err != nil {
		return nil, fmt.Errorf("read transaction projections for %s: %w", walletID, err)
	}
	defer rows.Close()

	var out []TransactionProjection
	for rows.Next() {
		var t TransactionProjection
		if err := rows.Scan(&t.TransactionID, &t.WalletID, &t.Type, &t.RelatedWalletID, &t.Amount, &t.BalanceAfter, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction projection: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
