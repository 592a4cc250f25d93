package repository

import (
	"fmt"
	"time"

	model "auction-bidding/internal/models"

	"github.com/shopspring/decimal"
)

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// Helper to create an auction whose window is open at time.Now()
func newAuction(auctionID, title string, startingPrice int64) model.Auction {
	now := time.Now().UTC()
	return model.Auction{
		AuctionID:     auctionID,
		Title:         title,
		SellerID:      "seller-" + auctionID,
		StartingPrice: dec(startingPrice),
		Increment:     dec(1),
		StartTime:     now.Add(-time.Hour),
		EndTime:       now.Add(time.Hour),
	}
}

// Helper to create a commit request
func newCommit(bidID, auctionID, bidderID string, amount, observed int64) model.BidCommit {
	return model.BidCommit{
		Bid: model.Bid{
			BidID:     bidID,
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    dec(amount),
		},
		ObservedPrice: dec(observed),
		Now:           time.Now().UTC(),
	}
}

func newUser(userID string, balance int64) model.User {
	return model.User{
		UserID:   userID,
		Username: fmt.Sprintf("%s-name", userID),
		Balance:  dec(balance),
	}
}
