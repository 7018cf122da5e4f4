package auction

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/floroz/auctioneer/internal/domain/ledger"
	"github.com/floroz/auctioneer/pkg/database"
	"github.com/floroz/auctioneer/pkg/events"
)

// Validation errors
var (
	ErrInvalidCaller               = fmt.Errorf("caller account identifier is required")
	ErrItemNotFound                = fmt.Errorf("item not found")
	ErrAlreadyRegistered           = fmt.Errorf("item is already registered")
	ErrNotOwner                    = fmt.Errorf("only the item owner can perform this action")
	ErrInvalidPrice                = fmt.Errorf("start price must be greater than 0")
	ErrAuctionAlreadyActive        = fmt.Errorf("auction is already active")
	ErrAuctionNotActive            = fmt.Errorf("auction is not active")
	ErrSelfBid                     = fmt.Errorf("owner cannot bid on their own item")
	ErrBidTooLow                   = fmt.Errorf("bid amount is below the current highest bid")
	ErrAuctionStillActive          = fmt.Errorf("auction is still active")
	ErrOwnerCannotWithdraw         = fmt.Errorf("item owner cannot withdraw")
	ErrHighestBidderCannotWithdraw = fmt.Errorf("current highest bidder cannot withdraw")
	ErrTransferFailed              = fmt.Errorf("fund transfer failed")
)

// Engine owns the per-item auction state machine and drives the bid history
// store, the profit ledger and the external fund-transfer primitive.
//
// Every mutating operation runs inside one transaction that locks the item
// row first, so operations on the same item are fully serialized while
// different items proceed concurrently. The external transfer is always the
// last step before commit: all state effects a reentrant transfer callback
// could exploit are staged beforehand, and a failed transfer rolls the whole
// operation back.
type Engine struct {
	txManager  database.TransactionManager
	itemRepo   ItemRepository
	bidRepo    BidHistoryRepository
	ledger     *ledger.Ledger
	outboxRepo OutboxRepository
	transferer FundTransferer
}

// NewEngine creates a new auction engine.
func NewEngine(
	txManager database.TransactionManager,
	itemRepo ItemRepository,
	bidRepo BidHistoryRepository,
	profitLedger *ledger.Ledger,
	outboxRepo OutboxRepository,
	transferer FundTransferer,
) *Engine {
	return &Engine{
		txManager:  txManager,
		itemRepo:   itemRepo,
		bidRepo:    bidRepo,
		ledger:     profitLedger,
		outboxRepo: outboxRepo,
		transferer: transferer,
	}
}

// RegisterItem creates the item with its first owner. An item id is
// registered at most once; afterwards ownership changes only through
// settlement.
func (e *Engine) RegisterItem(ctx context.Context, cmd RegisterItemCommand) (*Item, error) {
	if cmd.Owner == uuid.Nil {
		return nil, ErrInvalidCaller
	}

	tx, err := e.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	now := time.Now()
	item := &Item{
		ID:            cmd.ItemID,
		Owner:         cmd.Owner,
		HighestBid:    0,
		HighestBidder: uuid.Nil,
		Active:        false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := e.itemRepo.CreateItem(ctx, tx, item); err != nil {
		return nil, err
	}

	if err := e.stageEvent(ctx, tx, EventTypeItemRegistered, ItemRegisteredEvent{
		ItemID:    item.ID,
		Owner:     item.Owner,
		Timestamp: now,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return item, nil
}

// StartAuction opens bidding on a registered, inactive item. The start price
// becomes the floor for the first bid; nothing is escrowed by starting.
func (e *Engine) StartAuction(ctx context.Context, cmd StartAuctionCommand) (*Item, error) {
	if cmd.Caller == uuid.Nil {
		return nil, ErrInvalidCaller
	}
	if cmd.StartPrice <= 0 {
		return nil, ErrInvalidPrice
	}

	tx, err := e.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	item, err := e.itemRepo.GetItemForUpdate(ctx, tx, cmd.ItemID)
	if err != nil {
		return nil, err
	}

	if item.Active {
		return nil, ErrAuctionAlreadyActive
	}
	if !item.IsOwnedBy(cmd.Caller) {
		return nil, ErrNotOwner
	}

	item.HighestBid = cmd.StartPrice
	item.HighestBidder = uuid.Nil
	item.Active = true
	item.UpdatedAt = time.Now()

	if err := e.itemRepo.UpdateItem(ctx, tx, item); err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}

	if err := e.stageEvent(ctx, tx, EventTypeAuctionStarted, AuctionStartedEvent{
		ItemID:     item.ID,
		Owner:      item.Owner,
		StartPrice: cmd.StartPrice,
		Timestamp:  item.UpdatedAt,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return item, nil
}

// PlaceBid accepts a bid on an active auction. The amount must match or beat
// the current highest bid. The bidder's funds are considered received
// atomically with the call: the escrow record is replaced (a re-bid swaps the
// old escrow, it does not add to it) and the bidder's profit ledger is
// debited with checked arithmetic.
//
// An outbid bidder is NOT refunded here; their escrow stays recorded until
// they withdraw after the auction concludes.
func (e *Engine) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (*Item, error) {
	if cmd.Bidder == uuid.Nil {
		return nil, ErrInvalidCaller
	}

	tx, err := e.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	item, err := e.itemRepo.GetItemForUpdate(ctx, tx, cmd.ItemID)
	if err != nil {
		return nil, err
	}

	if item.IsOwnedBy(cmd.Bidder) {
		return nil, ErrSelfBid
	}
	if !item.Active {
		return nil, ErrAuctionNotActive
	}
	if cmd.Amount < item.HighestBid {
		return nil, ErrBidTooLow
	}

	item.HighestBid = cmd.Amount
	item.HighestBidder = cmd.Bidder
	item.UpdatedAt = time.Now()

	if err := e.itemRepo.UpdateItem(ctx, tx, item); err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}

	if err := e.bidRepo.Set(ctx, tx, cmd.ItemID, cmd.Bidder, cmd.Amount); err != nil {
		return nil, fmt.Errorf("failed to record escrow: %w", err)
	}

	if err := e.ledger.Debit(ctx, tx, cmd.Bidder, cmd.Amount); err != nil {
		return nil, err
	}

	if err := e.stageEvent(ctx, tx, EventTypeBidPlaced, BidPlacedEvent{
		ItemID:    item.ID,
		Bidder:    cmd.Bidder,
		Amount:    cmd.Amount,
		Timestamp: item.UpdatedAt,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return item, nil
}

// EndAuction settles an active auction. With an accepted bid the winning
// escrow is cleared, the proceeds are credited to the outgoing owner's
// ledger, ownership moves to the highest bidder and the auction fields are
// reset -- all staged before the external transfer of the proceeds is
// invoked, so a reentrant call cannot observe the pre-settlement state. If
// the transfer fails nothing is persisted.
func (e *Engine) EndAuction(ctx context.Context, cmd EndAuctionCommand) (*Item, error) {
	if cmd.Caller == uuid.Nil {
		return nil, ErrInvalidCaller
	}

	tx, err := e.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	item, err := e.itemRepo.GetItemForUpdate(ctx, tx, cmd.ItemID)
	if err != nil {
		return nil, err
	}

	if !item.Active {
		return nil, ErrAuctionNotActive
	}
	if !item.IsOwnedBy(cmd.Caller) {
		return nil, ErrNotOwner
	}

	seller := item.Owner
	buyer := item.HighestBidder
	price := item.HighestBid
	sold := item.HasBidder()

	if sold {
		if err := e.bidRepo.Clear(ctx, tx, item.ID, buyer); err != nil {
			return nil, fmt.Errorf("failed to clear winning escrow: %w", err)
		}
		if err := e.ledger.Credit(ctx, tx, seller, price); err != nil {
			return nil, err
		}
		item.Owner = buyer
	}

	item.HighestBid = 0
	item.HighestBidder = uuid.Nil
	item.Active = false
	item.UpdatedAt = time.Now()

	if err := e.itemRepo.UpdateItem(ctx, tx, item); err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}

	settled := AuctionSettledEvent{
		ItemID:    item.ID,
		Seller:    seller,
		Timestamp: item.UpdatedAt,
	}
	if sold {
		settled.Buyer = buyer
		settled.Price = price
	}
	if err := e.stageEvent(ctx, tx, EventTypeAuctionSettled, settled); err != nil {
		return nil, err
	}

	if sold {
		if err := e.transferer.Transfer(ctx, seller, price); err != nil {
			return nil, fmt.Errorf("paying %d to %s: %w", price, seller, ErrTransferFailed)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return item, nil
}

// Withdraw pays back the caller's escrowed amount for an item once its
// auction has concluded. The escrow record is zeroed and the ledger credited
// before the transfer is invoked, so a reentrant withdraw cannot be paid
// twice. A failed transfer leaves the record untouched and is retryable.
// Withdrawing with no escrow on record is a successful no-op.
func (e *Engine) Withdraw(ctx context.Context, cmd WithdrawCommand) (int64, error) {
	if cmd.Caller == uuid.Nil {
		return 0, ErrInvalidCaller
	}

	tx, err := e.txManager.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	item, err := e.itemRepo.GetItemForUpdate(ctx, tx, cmd.ItemID)
	if err != nil {
		return 0, err
	}

	if item.Active {
		return 0, ErrAuctionStillActive
	}
	if item.IsOwnedBy(cmd.Caller) {
		return 0, ErrOwnerCannotWithdraw
	}
	if item.HasBidder() && item.HighestBidder == cmd.Caller {
		return 0, ErrHighestBidderCannotWithdraw
	}

	amount, err := e.bidRepo.GetForUpdate(ctx, tx, cmd.ItemID, cmd.Caller)
	if err != nil {
		return 0, fmt.Errorf("failed to read escrow: %w", err)
	}

	if amount == 0 {
		return 0, tx.Commit(ctx)
	}

	if err := e.bidRepo.Clear(ctx, tx, cmd.ItemID, cmd.Caller); err != nil {
		return 0, fmt.Errorf("failed to clear escrow: %w", err)
	}

	if err := e.ledger.Credit(ctx, tx, cmd.Caller, amount); err != nil {
		return 0, err
	}

	if err := e.stageEvent(ctx, tx, EventTypeFundsWithdrawn, FundsWithdrawnEvent{
		ItemID:    cmd.ItemID,
		Account:   cmd.Caller,
		Amount:    amount,
		Timestamp: time.Now(),
	}); err != nil {
		return 0, err
	}

	if err := e.transferer.Transfer(ctx, cmd.Caller, amount); err != nil {
		return 0, fmt.Errorf("refunding %d to %s: %w", amount, cmd.Caller, ErrTransferFailed)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return amount, nil
}

// GetProfit returns the caller's signed net cash flow through the engine.
func (e *Engine) GetProfit(ctx context.Context, account uuid.UUID) (int64, error) {
	if account == uuid.Nil {
		return 0, ErrInvalidCaller
	}
	return e.ledger.Balance(ctx, account)
}

// GetItem returns the item's current auction state.
func (e *Engine) GetItem(ctx context.Context, itemID uuid.UUID) (*Item, error) {
	return e.itemRepo.GetItem(ctx, itemID)
}

// GetBidRecord returns the amount currently escrowed by an account on an item.
func (e *Engine) GetBidRecord(ctx context.Context, itemID, account uuid.UUID) (int64, error) {
	return e.bidRepo.Get(ctx, itemID, account)
}

func (e *Engine) stageEvent(ctx context.Context, tx pgx.Tx, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return e.outboxRepo.SaveEvent(ctx, tx, &events.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   body,
		Status:    events.OutboxStatusPending,
		CreatedAt: time.Now(),
	})
}
