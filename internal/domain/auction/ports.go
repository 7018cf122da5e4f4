package auction

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/floroz/auctioneer/pkg/events"
)

// ItemRepository defines the interface for item persistence.
type ItemRepository interface {
	// CreateItem inserts a new item. Returns ErrAlreadyRegistered if the id
	// already has an owner.
	CreateItem(ctx context.Context, tx pgx.Tx, item *Item) error

	// GetItemForUpdate retrieves an item and locks its row for the duration
	// of the transaction. This is what serializes all mutating operations on
	// one item id. Returns ErrItemNotFound for unregistered ids.
	GetItemForUpdate(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) (*Item, error)

	// GetItem retrieves an item without locking.
	GetItem(ctx context.Context, itemID uuid.UUID) (*Item, error)

	// UpdateItem writes the item's mutable fields within the transaction.
	UpdateItem(ctx context.Context, tx pgx.Tx, item *Item) error
}

// BidHistoryRepository defines the interface for per-(item, bidder) escrow
// records. Amounts are always >= 0; a zero amount means no funds are held.
type BidHistoryRepository interface {
	// Set records the bidder's currently escrowed amount, replacing any
	// prior record for the same (item, bidder) pair.
	Set(ctx context.Context, tx pgx.Tx, itemID, bidder uuid.UUID, amount int64) error

	// GetForUpdate returns the escrowed amount with the row locked,
	// or 0 if the bidder never bid on the item.
	GetForUpdate(ctx context.Context, tx pgx.Tx, itemID, bidder uuid.UUID) (int64, error)

	// Get returns the escrowed amount without locking.
	Get(ctx context.Context, itemID, bidder uuid.UUID) (int64, error)

	// Clear zeroes the record. The row itself is kept (logical delete).
	Clear(ctx context.Context, tx pgx.Tx, itemID, bidder uuid.UUID) error
}

// OutboxRepository defines the interface for staging domain events in the
// same transaction as the state change that produced them.
type OutboxRepository interface {
	SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error
}

// FundTransferer is the external primitive that actually moves value to an
// account. It must be assumed fallible and potentially reentrant: it may
// call back into the engine before returning. The engine stages every state
// effect a reentrant call could exploit before invoking it.
type FundTransferer interface {
	Transfer(ctx context.Context, to uuid.UUID, amount int64) error
}
