package repository

import (
	"context"
	"fmt"
	"time"

	"auction-bidding/internal/biddingerrors"
	model "auction-bidding/internal/models"
)

// LedgerStore is the durable record of auctions, bids and balances.
//
// CommitBid is the only way to change an auction's price. It must run as one atomic
// unit per auction: re-check the window and the current price, then persist the bid and
// the new price together, or change nothing at all.
type LedgerStore interface {
	GetAuction(ctx context.Context, auctionID string) (model.Auction, error)
	GetUser(ctx context.Context, userID string) (model.User, error)
	CommitBid(ctx context.Context, commit model.BidCommit) (model.CommitResult, error)
	GetBidsByAuction(ctx context.Context, auctionID string) ([]model.Bid, error)
	GetWinningBid(ctx context.Context, auctionID string) (model.Bid, error)
	GetAuctionsByUser(ctx context.Context, userID string) ([]model.Auction, error)
	EndAuction(ctx context.Context, auctionID string, at time.Time) (model.Auction, error)
	CreateAuction(ctx context.Context, auction model.Auction) error
	SaveUser(ctx context.Context, user model.User) error
	Ping(ctx context.Context) error
	Close() error
}

// checkCommit decides whether commit may be applied on top of the auction's latest state.
// A price that moved since the engine's read and now covers the amount means the bid lost a race.
func checkCommit(auction model.Auction, commit model.BidCommit) error {
	if !auction.IsActive(commit.Now) {
		return fmt.Errorf("commit bid for auction %s: %w", auction.AuctionID, biddingerrors.ErrAuctionNotActive)
	}

	if commit.Bid.Amount.LessThanOrEqual(auction.CurrentPrice) {
		if !auction.CurrentPrice.Equal(commit.ObservedPrice) {
			return fmt.Errorf("commit bid for auction %s: current price %s: %w",
				auction.AuctionID, auction.CurrentPrice, biddingerrors.ErrStaleBid)
		}
		return fmt.Errorf("commit bid for auction %s: current price %s: %w",
			auction.AuctionID, auction.CurrentPrice, biddingerrors.ErrBidTooLow)
	}

	return nil
}

// applyCommit returns the auction after the bid is accepted together with the stored bid.
// The bid timestamp is strictly after the previous accepted bid.
func applyCommit(auction model.Auction, commit model.BidCommit) (model.Auction, model.CommitResult) {
	bid := commit.Bid
	bid.AuctionID = auction.AuctionID
	bid.CreatedAt = nextBidTime(auction.LastBidAt, commit.Now)

	result := model.CommitResult{
		Bid:              bid,
		PreviousBidderID: auction.HighestBidderID,
		AuctionTitle:     auction.Title,
	}

	auction.CurrentPrice = bid.Amount
	auction.HighestBidderID = bid.BidderID
	auction.BidIDs = append(append([]string(nil), auction.BidIDs...), bid.BidID)
	auction.LastBidAt = bid.CreatedAt
	auction.Version++

	return auction, result
}

func nextBidTime(last, now time.Time) time.Time {
	now = now.UTC()
	if !now.After(last) {
		return last.Add(time.Microsecond)
	}
	return now
}

// endAt clamps an early termination instant into [StartTime, EndTime]
func endAt(auction model.Auction, at time.Time) model.Auction {
	if at.Before(auction.StartTime) {
		at = auction.StartTime
	}
	if at.Before(auction.EndTime) {
		auction.EndTime = at.UTC()
		auction.Version++
	}
	return auction
}

// prepareAuction fills the derived fields of a freshly created auction
func prepareAuction(auction model.Auction) model.Auction {
	if auction.CurrentPrice.IsZero() {
		auction.CurrentPrice = auction.StartingPrice
	}
	if auction.BidIDs == nil {
		auction.BidIDs = []string{}
	}
	auction.StartTime = auction.StartTime.UTC()
	auction.EndTime = auction.EndTime.UTC()
	return auction
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, biddingerrors.ErrPersistence, err)
}
