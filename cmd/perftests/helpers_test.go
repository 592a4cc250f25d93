package perftests

import (
	"context"
	"fmt"
	"time"

	bidding "auction-bidding/internal/biddingService"
	model "auction-bidding/internal/models"
	"auction-bidding/internal/repository"

	"github.com/shopspring/decimal"
)

// rich enough that no benchmark bid is refused for funds
const benchBalance = 1_000_000_000

func benchAuction(id string, startingPrice int64) model.Auction {
	now := time.Now().UTC()
	return model.Auction{
		AuctionID:     id,
		Title:         "bench " + id,
		SellerID:      "bench-seller",
		StartingPrice: decimal.NewFromInt(startingPrice),
		Increment:     decimal.NewFromInt(1),
		StartTime:     now.Add(-time.Minute),
		EndTime:       now.Add(24 * time.Hour),
	}
}

func userID(i int) string { return fmt.Sprintf("user_%d", i) }

// seedStore creates numAuctions auctions named auction_<i> and numUsers funded bidders
func seedStore(store repository.LedgerStore, numAuctions, numUsers int, startingPrice int64) {
	ctx := context.Background()
	for i := 0; i < numAuctions; i++ {
		if err := store.CreateAuction(ctx, benchAuction(fmt.Sprintf("auction_%d", i), startingPrice)); err != nil {
			panic(err)
		}
	}
	for i := 0; i < numUsers; i++ {
		if err := store.SaveUser(ctx, model.User{UserID: userID(i), Username: userID(i), Balance: decimal.NewFromInt(benchBalance)}); err != nil {
			panic(err)
		}
	}
}

func newMemoryService(numAuctions, numUsers int, startingPrice int64) (*repository.MemoryRepo, *bidding.BiddingService) {
	repo := repository.NewMemoryRepo()
	seedStore(repo, numAuctions, numUsers, startingPrice)
	return repo, bidding.NewBiddingService(repo, nil)
}

type discardPublisher struct{}

func (discardPublisher) Name() string { return "discard" }

func (discardPublisher) PublishBidAccepted(context.Context, model.BidAcceptedEvent) error { return nil }

func (discardPublisher) PublishOutbid(context.Context, model.OutbidNotice) error { return nil }
