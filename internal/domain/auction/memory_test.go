package auction

import (
	"context"
	"fmt"
	"maps"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/floroz/auctioneer/pkg/events"
)

// In-memory implementations of the engine's ports with real transaction
// semantics: writes go to a per-transaction overlay and reach the store only
// on commit. This is what lets the tests below verify that a failed transfer
// leaves no partial state behind.

type bidKey struct {
	item   uuid.UUID
	bidder uuid.UUID
}

type memoryStore struct {
	items    map[uuid.UUID]Item
	bids     map[bidKey]int64
	balances map[uuid.UUID]int64
	events   []events.OutboxEvent
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		items:    make(map[uuid.UUID]Item),
		bids:     make(map[bidKey]int64),
		balances: make(map[uuid.UUID]int64),
	}
}

type memoryTx struct {
	pgx.Tx
	store     *memoryStore
	items     map[uuid.UUID]Item
	bids      map[bidKey]int64
	balances  map[uuid.UUID]int64
	events    []events.OutboxEvent
	committed bool
}

func (t *memoryTx) Commit(ctx context.Context) error {
	t.store.items = t.items
	t.store.bids = t.bids
	t.store.balances = t.balances
	t.store.events = t.events
	t.committed = true
	return nil
}

func (t *memoryTx) Rollback(ctx context.Context) error {
	return nil
}

type memoryTxManager struct {
	store  *memoryStore
	lastTx *memoryTx
}

func (m *memoryTxManager) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx := &memoryTx{
		store:    m.store,
		items:    maps.Clone(m.store.items),
		bids:     maps.Clone(m.store.bids),
		balances: maps.Clone(m.store.balances),
		events:   append([]events.OutboxEvent(nil), m.store.events...),
	}
	m.lastTx = tx
	return tx, nil
}

func asMemoryTx(tx pgx.Tx) *memoryTx {
	mt, ok := tx.(*memoryTx)
	if !ok {
		panic(fmt.Sprintf("expected *memoryTx, got %T", tx))
	}
	return mt
}

type memoryItemRepo struct {
	store *memoryStore
}

func (r *memoryItemRepo) CreateItem(ctx context.Context, tx pgx.Tx, item *Item) error {
	mt := asMemoryTx(tx)
	if _, exists := mt.items[item.ID]; exists {
		return ErrAlreadyRegistered
	}
	mt.items[item.ID] = *item
	return nil
}

func (r *memoryItemRepo) GetItemForUpdate(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) (*Item, error) {
	mt := asMemoryTx(tx)
	item, ok := mt.items[itemID]
	if !ok {
		return nil, ErrItemNotFound
	}
	return &item, nil
}

func (r *memoryItemRepo) GetItem(ctx context.Context, itemID uuid.UUID) (*Item, error) {
	item, ok := r.store.items[itemID]
	if !ok {
		return nil, ErrItemNotFound
	}
	return &item, nil
}

func (r *memoryItemRepo) UpdateItem(ctx context.Context, tx pgx.Tx, item *Item) error {
	mt := asMemoryTx(tx)
	if _, ok := mt.items[item.ID]; !ok {
		return ErrItemNotFound
	}
	mt.items[item.ID] = *item
	return nil
}

type memoryBidRepo struct {
	store *memoryStore
}

func (r *memoryBidRepo) Set(ctx context.Context, tx pgx.Tx, itemID, bidder uuid.UUID, amount int64) error {
	asMemoryTx(tx).bids[bidKey{itemID, bidder}] = amount
	return nil
}

func (r *memoryBidRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, itemID, bidder uuid.UUID) (int64, error) {
	return asMemoryTx(tx).bids[bidKey{itemID, bidder}], nil
}

func (r *memoryBidRepo) Get(ctx context.Context, itemID, bidder uuid.UUID) (int64, error) {
	return r.store.bids[bidKey{itemID, bidder}], nil
}

func (r *memoryBidRepo) Clear(ctx context.Context, tx pgx.Tx, itemID, bidder uuid.UUID) error {
	asMemoryTx(tx).bids[bidKey{itemID, bidder}] = 0
	return nil
}

type memoryLedgerRepo struct {
	store *memoryStore
}

func (r *memoryLedgerRepo) GetBalanceForUpdate(ctx context.Context, tx pgx.Tx, account uuid.UUID) (int64, error) {
	return asMemoryTx(tx).balances[account], nil
}

func (r *memoryLedgerRepo) SetBalance(ctx context.Context, tx pgx.Tx, account uuid.UUID, balance int64) error {
	asMemoryTx(tx).balances[account] = balance
	return nil
}

func (r *memoryLedgerRepo) GetBalance(ctx context.Context, account uuid.UUID) (int64, error) {
	return r.store.balances[account], nil
}

type memoryOutboxRepo struct{}

func (r *memoryOutboxRepo) SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error {
	mt := asMemoryTx(tx)
	mt.events = append(mt.events, *event)
	return nil
}

type recordedTransfer struct {
	to     uuid.UUID
	amount int64
}

// fakeTransferer records successful transfers and can be told to fail.
type fakeTransferer struct {
	failures  int
	transfers []recordedTransfer
}

func (t *fakeTransferer) Transfer(ctx context.Context, to uuid.UUID, amount int64) error {
	if t.failures > 0 {
		t.failures--
		return fmt.Errorf("treasury unavailable")
	}
	t.transfers = append(t.transfers, recordedTransfer{to: to, amount: amount})
	return nil
}
