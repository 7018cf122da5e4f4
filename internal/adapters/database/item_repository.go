package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/auctioneer/internal/domain/auction"
)

const uniqueViolationCode = "23505"

// PostgresItemRepository implements auction.ItemRepository
type PostgresItemRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresItemRepository(pool *pgxpool.Pool) *PostgresItemRepository {
	return &PostgresItemRepository{pool: pool}
}

// CreateItem inserts a new item row. The primary key enforces
// register-at-most-once; a duplicate id maps to auction.ErrAlreadyRegistered.
func (r *PostgresItemRepository) CreateItem(ctx context.Context, tx pgx.Tx, item *auction.Item) error {
	query := `
		INSERT INTO auction_items (id, owner_account, highest_bid, highest_bidder, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.Exec(ctx, query,
		item.ID,
		item.Owner,
		item.HighestBid,
		item.HighestBidder,
		item.Active,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return auction.ErrAlreadyRegistered
		}
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

// GetItemForUpdate locks the item row for the duration of the transaction.
// All mutating operations on one item serialize on this lock.
func (r *PostgresItemRepository) GetItemForUpdate(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) (*auction.Item, error) {
	query := `
		SELECT id, owner_account, highest_bid, highest_bidder, active, created_at, updated_at
		FROM auction_items
		WHERE id = $1
		FOR UPDATE
	`
	return scanItem(tx.QueryRow(ctx, query, itemID))
}

// GetItem reads the item without locking.
func (r *PostgresItemRepository) GetItem(ctx context.Context, itemID uuid.UUID) (*auction.Item, error) {
	query := `
		SELECT id, owner_account, highest_bid, highest_bidder, active, created_at, updated_at
		FROM auction_items
		WHERE id = $1
	`
	return scanItem(r.pool.QueryRow(ctx, query, itemID))
}

// UpdateItem writes the item's mutable fields within the transaction.
func (r *PostgresItemRepository) UpdateItem(ctx context.Context, tx pgx.Tx, item *auction.Item) error {
	query := `
		UPDATE auction_items
		SET owner_account = $2, highest_bid = $3, highest_bidder = $4, active = $5, updated_at = $6
		WHERE id = $1
	`
	tag, err := tx.Exec(ctx, query,
		item.ID,
		item.Owner,
		item.HighestBid,
		item.HighestBidder,
		item.Active,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auction.ErrItemNotFound
	}
	return nil
}

func scanItem(row pgx.Row) (*auction.Item, error) {
	var item auction.Item
	err := row.Scan(
		&item.ID,
		&item.Owner,
		&item.HighestBid,
		&item.HighestBidder,
		&item.Active,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auction.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to scan item: %w", err)
	}
	return &item, nil
}
