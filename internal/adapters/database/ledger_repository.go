package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedgerRepository implements ledger.Repository
type PostgresLedgerRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresLedgerRepository(pool *pgxpool.Pool) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{pool: pool}
}

// GetBalanceForUpdate returns the account's balance with its row locked,
// creating a zero-balance row first if the account has no history. The row
// lock gives per-account atomicity for the read-modify-write done by the
// checked credit/debit operations.
func (r *PostgresLedgerRepository) GetBalanceForUpdate(ctx context.Context, tx pgx.Tx, account uuid.UUID) (int64, error) {
	insert := `
		INSERT INTO profit_ledger (account, balance, created_at, updated_at)
		VALUES ($1, 0, NOW(), NOW())
		ON CONFLICT (account) DO NOTHING
	`
	if _, err := tx.Exec(ctx, insert, account); err != nil {
		return 0, fmt.Errorf("failed to ensure ledger row: %w", err)
	}

	var balance int64
	err := tx.QueryRow(ctx, `SELECT balance FROM profit_ledger WHERE account = $1 FOR UPDATE`, account).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("failed to read ledger balance: %w", err)
	}
	return balance, nil
}

// SetBalance overwrites the account's balance within the transaction.
func (r *PostgresLedgerRepository) SetBalance(ctx context.Context, tx pgx.Tx, account uuid.UUID, balance int64) error {
	query := `UPDATE profit_ledger SET balance = $2, updated_at = NOW() WHERE account = $1`
	if _, err := tx.Exec(ctx, query, account, balance); err != nil {
		return fmt.Errorf("failed to write ledger balance: %w", err)
	}
	return nil
}

// GetBalance reads the account's balance; accounts without history read as 0.
func (r *PostgresLedgerRepository) GetBalance(ctx context.Context, account uuid.UUID) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, `SELECT balance FROM profit_ledger WHERE account = $1`, account).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read ledger balance: %w", err)
	}
	return balance, nil
}
