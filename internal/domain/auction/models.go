package auction

import (
	"time"

	"github.com/google/uuid"
)

// Item is the auctionable unit tracked by the engine. The zero UUID in
// HighestBidder means no bid has been accepted since the auction (re)started.
type Item struct {
	ID            uuid.UUID `db:"id"`
	Owner         uuid.UUID `db:"owner_account"`
	HighestBid    int64     `db:"highest_bid"`
	HighestBidder uuid.UUID `db:"highest_bidder"`
	Active        bool      `db:"active"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// IsOwnedBy reports whether the given account currently owns the item.
func (i *Item) IsOwnedBy(account uuid.UUID) bool {
	return i.Owner == account
}

// HasBidder reports whether a bid has been accepted since the auction started.
func (i *Item) HasBidder() bool {
	return i.HighestBidder != uuid.Nil
}

// BidRecord is the currently escrowed amount a bidder holds on an item.
// Rows are zeroed on settlement or withdrawal, never removed, so a history
// of participation stays queryable.
type BidRecord struct {
	ItemID    uuid.UUID `db:"item_id"`
	Bidder    uuid.UUID `db:"bidder_account"`
	Amount    int64     `db:"amount"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// RegisterItemCommand represents the command to register a new item.
type RegisterItemCommand struct {
	ItemID uuid.UUID
	Owner  uuid.UUID
}

// StartAuctionCommand represents the command to open bidding on an item.
type StartAuctionCommand struct {
	ItemID     uuid.UUID
	Caller     uuid.UUID
	StartPrice int64
}

// PlaceBidCommand represents the command to place a bid on an active auction.
type PlaceBidCommand struct {
	ItemID uuid.UUID
	Bidder uuid.UUID
	Amount int64
}

// EndAuctionCommand represents the command to settle an active auction.
type EndAuctionCommand struct {
	ItemID uuid.UUID
	Caller uuid.UUID
}

// WithdrawCommand represents the command to reclaim escrowed funds after an
// auction has concluded.
type WithdrawCommand struct {
	ItemID uuid.UUID
	Caller uuid.UUID
}
