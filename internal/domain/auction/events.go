package auction

import (
	"time"

	"github.com/google/uuid"
)

// Domain event types, used as routing keys on the auction.events exchange.
const (
	EventTypeItemRegistered = "item.registered"
	EventTypeAuctionStarted = "auction.started"
	EventTypeBidPlaced      = "bid.placed"
	EventTypeAuctionSettled = "auction.settled"
	EventTypeFundsWithdrawn = "funds.withdrawn"
)

// ItemRegisteredEvent is published when an item id gets its first owner.
type ItemRegisteredEvent struct {
	ItemID    uuid.UUID `json:"item_id"`
	Owner     uuid.UUID `json:"owner"`
	Timestamp time.Time `json:"timestamp"`
}

// AuctionStartedEvent is published when bidding opens on an item.
type AuctionStartedEvent struct {
	ItemID     uuid.UUID `json:"item_id"`
	Owner      uuid.UUID `json:"owner"`
	StartPrice int64     `json:"start_price"`
	Timestamp  time.Time `json:"timestamp"`
}

// BidPlacedEvent is published for every accepted bid.
type BidPlacedEvent struct {
	ItemID    uuid.UUID `json:"item_id"`
	Bidder    uuid.UUID `json:"bidder"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// AuctionSettledEvent is published when an auction concludes. Buyer is the
// zero UUID and Price is 0 when the auction ended without an accepted bid.
type AuctionSettledEvent struct {
	ItemID    uuid.UUID `json:"item_id"`
	Seller    uuid.UUID `json:"seller"`
	Buyer     uuid.UUID `json:"buyer,omitempty"`
	Price     int64     `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// FundsWithdrawnEvent is published when an outbid bidder reclaims escrow.
type FundsWithdrawnEvent struct {
	ItemID    uuid.UUID `json:"item_id"`
	Account   uuid.UUID `json:"account"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}
