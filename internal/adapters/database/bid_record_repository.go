package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresBidHistoryRepository implements auction.BidHistoryRepository.
// Rows are zeroed rather than deleted so participation history stays
// queryable.
type PostgresBidHistoryRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresBidHistoryRepository(pool *pgxpool.Pool) *PostgresBidHistoryRepository {
	return &PostgresBidHistoryRepository{pool: pool}
}

// Set records the currently escrowed amount for (item, bidder), replacing
// any prior record. A re-bid swaps the escrow, it does not add to it.
func (r *PostgresBidHistoryRepository) Set(ctx context.Context, tx pgx.Tx, itemID, bidder uuid.UUID, amount int64) error {
	query := `
		INSERT INTO bid_records (item_id, bidder_account, amount, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (item_id, bidder_account) DO UPDATE SET
			amount = EXCLUDED.amount,
			updated_at = NOW()
	`
	if _, err := tx.Exec(ctx, query, itemID, bidder, amount); err != nil {
		return fmt.Errorf("failed to set bid record: %w", err)
	}
	return nil
}

// GetForUpdate returns the escrowed amount with the row locked, or 0 when
// the bidder never bid on the item.
func (r *PostgresBidHistoryRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, itemID, bidder uuid.UUID) (int64, error) {
	query := `
		SELECT amount FROM bid_records
		WHERE item_id = $1 AND bidder_account = $2
		FOR UPDATE
	`
	var amount int64
	err := tx.QueryRow(ctx, query, itemID, bidder).Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read bid record: %w", err)
	}
	return amount, nil
}

// Get returns the escrowed amount without locking.
func (r *PostgresBidHistoryRepository) Get(ctx context.Context, itemID, bidder uuid.UUID) (int64, error) {
	query := `SELECT amount FROM bid_records WHERE item_id = $1 AND bidder_account = $2`
	var amount int64
	err := r.pool.QueryRow(ctx, query, itemID, bidder).Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read bid record: %w", err)
	}
	return amount, nil
}

// Clear zeroes the record (logical delete).
func (r *PostgresBidHistoryRepository) Clear(ctx context.Context, tx pgx.Tx, itemID, bidder uuid.UUID) error {
	query := `
		UPDATE bid_records SET amount = 0, updated_at = NOW()
		WHERE item_id = $1 AND bidder_account = $2
	`
	if _, err := tx.Exec(ctx, query, itemID, bidder); err != nil {
		return fmt.Errorf("failed to clear bid record: %w", err)
	}
	return nil
}
