package helpers

import (
	"time"

	model "auction-bidding/internal/models"
)

// Request/Response DTOs
type PlaceBidRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

type BidResponse struct {
	BidID     string  `json:"bid_id"`
	AuctionID string  `json:"auction_id"`
	BidderID  string  `json:"bidder_id"`
	Amount    float64 `json:"amount"`
	CreatedAt string  `json:"created_at"`
}

type AuctionResponse struct {
	AuctionID       string  `json:"auction_id"`
	Title           string  `json:"title"`
	SellerID        string  `json:"seller_id"`
	StartingPrice   float64 `json:"starting_price"`
	CurrentPrice    float64 `json:"current_price"`
	Increment       float64 `json:"increment"`
	StartTime       string  `json:"start_time"`
	EndTime         string  `json:"end_time"`
	HighestBidderID string  `json:"highest_bidder_id,omitempty"`
	BidCount        int     `json:"bid_count"`
	Active          bool    `json:"active"`
}

type ViewersResponse struct {
	AuctionID string `json:"auction_id"`
	Viewers   int    `json:"viewers"`
}

func NewBidResponse(bid model.Bid) BidResponse {
	return BidResponse{
		BidID:     bid.BidID,
		AuctionID: bid.AuctionID,
		BidderID:  bid.BidderID,
		Amount:    bid.Amount.InexactFloat64(),
		CreatedAt: bid.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func NewBidResponses(bids []model.Bid) []BidResponse {
	resp := make([]BidResponse, 0, len(bids))
	for _, bid := range bids {
		resp = append(resp, NewBidResponse(bid))
	}
	return resp
}

// NewAuctionResponse renders an auction as seen at now
func NewAuctionResponse(auction model.Auction, now time.Time) AuctionResponse {
	return AuctionResponse{
		AuctionID:       auction.AuctionID,
		Title:           auction.Title,
		SellerID:        auction.SellerID,
		StartingPrice:   auction.StartingPrice.InexactFloat64(),
		CurrentPrice:    auction.CurrentPrice.InexactFloat64(),
		Increment:       auction.Increment.InexactFloat64(),
		StartTime:       auction.StartTime.UTC().Format(time.RFC3339),
		EndTime:         auction.EndTime.UTC().Format(time.RFC3339),
		HighestBidderID: auction.HighestBidderID,
		BidCount:        len(auction.BidIDs),
		Active:          auction.IsActive(now),
	}
}

func NewAuctionResponses(auctions []model.Auction, now time.Time) []AuctionResponse {
	resp := make([]AuctionResponse, 0, len(auctions))
	for _, a := range auctions {
		resp = append(resp, NewAuctionResponse(a, now))
	}
	return resp
}
