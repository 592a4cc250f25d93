package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a participant in the auction
type User struct {
	UserID   string          `json:"user_id"`
	Username string          `json:"username"`
	Balance  decimal.Decimal `json:"balance"`
}

// Auction represents an item up for auction and its live price state
type Auction struct {
	AuctionID       string          `json:"auction_id"`
	Title           string          `json:"title"`
	SellerID        string          `json:"seller_id"`
	StartingPrice   decimal.Decimal `json:"starting_price"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	Increment       decimal.Decimal `json:"increment"`
	StartTime       time.Time       `json:"start_time"`
	EndTime         time.Time       `json:"end_time"`
	HighestBidderID string          `json:"highest_bidder_id,omitempty"`
	BidIDs          []string        `json:"bid_ids"`
	LastBidAt       time.Time       `json:"last_bid_at"`
	Version         uint64          `json:"version"`
}

// IsActive reports whether bids may be accepted at the given instant.
// The window is half-open: [StartTime, EndTime).
func (a Auction) IsActive(at time.Time) bool {
	return !at.Before(a.StartTime) && at.Before(a.EndTime)
}

// Bid represents an accepted bid. Bids are never modified once stored.
type Bid struct {
	BidID     string          `json:"bid_id"`
	AuctionID string          `json:"auction_id"`
	BidderID  string          `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// BidCommit is the unit handed to the ledger's atomic commit.
// ObservedPrice is the current price the engine validated against.
type BidCommit struct {
	Bid           Bid
	ObservedPrice decimal.Decimal
	Now           time.Time
}

// CommitResult describes the ledger state change made by a successful commit
type CommitResult struct {
	Bid              Bid
	PreviousBidderID string
	AuctionTitle     string
}

// BidAcceptedEvent is broadcast to every viewer of an auction after a commit
type BidAcceptedEvent struct {
	AuctionID string          `json:"auction_id"`
	BidID     string          `json:"bid_id"`
	BidderID  string          `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

// OutbidNotice tells a former highest bidder they were overtaken
type OutbidNotice struct {
	PreviousBidderID string          `json:"previous_bidder_id"`
	AuctionID        string          `json:"auction_id"`
	AuctionTitle     string          `json:"auction_title"`
	NewAmount        decimal.Decimal `json:"new_amount"`
}
