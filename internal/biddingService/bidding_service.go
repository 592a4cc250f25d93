package bidding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auction-bidding/internal/biddingerrors"
	"auction-bidding/internal/events"
	"auction-bidding/internal/models"
	"auction-bidding/internal/repository"
	"auction-bidding/utils"

	"github.com/shopspring/decimal"
)

// BidTracker records admission outcomes; *monitoring.Monitor satisfies it
type BidTracker interface {
	TrackBid(outcome string, duration time.Duration)
}

// BiddingService admits bids against the ledger and emits events for accepted ones
type BiddingService struct {
	repo    repository.LedgerStore
	emitter events.Emitter
	tracker BidTracker
	now     func() time.Time
}

type Option func(*BiddingService)

// WithClock replaces the wall clock used for the auction window and bid timestamps
func WithClock(now func() time.Time) Option {
	return func(s *BiddingService) { s.now = now }
}

func WithTracker(tracker BidTracker) Option {
	return func(s *BiddingService) { s.tracker = tracker }
}

// NewBiddingService creates a new BiddingService instance. emitter may be nil.
func NewBiddingService(repo repository.LedgerStore, emitter events.Emitter, opts ...Option) *BiddingService {
	s := &BiddingService{
		repo:    repo,
		emitter: emitter,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitBid validates a bid against the auction's current state and commits it.
//
// Validation runs against a snapshot; the ledger re-checks window and price inside its atomic
// commit, so a bid overtaken in between fails with ErrStaleBid instead of lowering the price.
// Events are only emitted after the commit succeeded.
func (s *BiddingService) SubmitBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (bid models.Bid, err error) {
	start := time.Now()
	defer func() {
		if s.tracker != nil {
			s.tracker.TrackBid(Outcome(err), time.Since(start))
		}
	}()

	if auctionID == "" || bidderID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - missing auctionID or bidderID", biddingerrors.ErrInvalidBid)
	}
	if !amount.IsPositive() {
		return models.Bid{}, fmt.Errorf("service: %w - non-positive bid amount", biddingerrors.ErrInvalidBid)
	}

	auction, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to load auction %s: %w", auctionID, err)
	}

	if !auction.IsActive(s.now()) {
		return models.Bid{}, fmt.Errorf("service: %w - auction %s accepts bids from %s until %s",
			biddingerrors.ErrAuctionNotActive, auctionID,
			auction.StartTime.Format(time.RFC3339), auction.EndTime.Format(time.RFC3339))
	}

	if amount.LessThanOrEqual(auction.CurrentPrice) {
		return models.Bid{}, fmt.Errorf("service: %w - current price is %s", biddingerrors.ErrBidTooLow, auction.CurrentPrice)
	}

	user, err := s.repo.GetUser(ctx, bidderID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to load bidder %s: %w", bidderID, err)
	}
	if user.Balance.LessThan(amount) {
		return models.Bid{}, fmt.Errorf("service: %w - balance %s below bid %s", biddingerrors.ErrInsufficientFunds, user.Balance, amount)
	}

	commit := models.BidCommit{
		Bid: models.Bid{
			BidID:     utils.GenerateID(),
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    amount,
		},
		ObservedPrice: auction.CurrentPrice,
		Now:           s.now().UTC(),
	}

	result, err := s.repo.CommitBid(ctx, commit)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to commit bid for auction %s by user %s: %w", auctionID, bidderID, err)
	}

	s.emit(result)
	return result.Bid, nil
}

func (s *BiddingService) emit(result models.CommitResult) {
	if s.emitter == nil {
		return
	}
	bid := result.Bid

	err := s.emitter.EmitBidAccepted(models.BidAcceptedEvent{
		AuctionID: bid.AuctionID,
		BidID:     bid.BidID,
		BidderID:  bid.BidderID,
		Amount:    bid.Amount,
		Timestamp: bid.CreatedAt,
	})
	if err != nil {
		utils.Error("failed to emit bid accepted event", map[string]any{
			"auction_id": bid.AuctionID,
			"bid_id":     bid.BidID,
			"error":      err.Error(),
		})
	}

	if result.PreviousBidderID == "" || result.PreviousBidderID == bid.BidderID {
		return
	}
	err = s.emitter.EmitOutbid(models.OutbidNotice{
		PreviousBidderID: result.PreviousBidderID,
		AuctionID:        bid.AuctionID,
		AuctionTitle:     result.AuctionTitle,
		NewAmount:        bid.Amount,
	})
	if err != nil {
		utils.Error("failed to emit outbid notice", map[string]any{
			"auction_id":         bid.AuctionID,
			"previous_bidder_id": result.PreviousBidderID,
			"error":              err.Error(),
		})
	}
}

// Outcome names the admission result for metrics and logs
func Outcome(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, biddingerrors.ErrInvalidBid):
		return "invalid"
	case errors.Is(err, biddingerrors.ErrAuctionNotFound), errors.Is(err, biddingerrors.ErrUserNotFound):
		return "not_found"
	case errors.Is(err, biddingerrors.ErrAuctionNotActive):
		return "not_active"
	case errors.Is(err, biddingerrors.ErrBidTooLow):
		return "too_low"
	case errors.Is(err, biddingerrors.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, biddingerrors.ErrStaleBid):
		return "stale"
	case errors.Is(err, biddingerrors.ErrPersistence):
		return "persistence_failure"
	default:
		return "error"
	}
}

// GetBidsForAuction returns all bids for an auction, newest first
func (s *BiddingService) GetBidsForAuction(ctx context.Context, auctionID string) ([]models.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	bids, err := s.repo.GetBidsByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}

	return bids, nil
}

// GetWinningBid returns the highest bid for an auction
func (s *BiddingService) GetWinningBid(ctx context.Context, auctionID string) (models.Bid, error) {
	if auctionID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	winningBid, err := s.repo.GetWinningBid(ctx, auctionID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to get winning bid for auction %s: %w", auctionID, err)
	}

	return winningBid, nil
}

// GetAuction returns a snapshot of an auction
func (s *BiddingService) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	if auctionID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	auction, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}

	return auction, nil
}

// GetAuctionsByUser returns all auctions a user has placed bids on
func (s *BiddingService) GetAuctionsByUser(ctx context.Context, userID string) ([]models.Auction, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidBid)
	}

	auctions, err := s.repo.GetAuctionsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get auctions for user %s: %w", userID, err)
	}

	return auctions, nil
}

// EndAuction closes bidding now. The price and bids are left as they are.
func (s *BiddingService) EndAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	if auctionID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	auction, err := s.repo.EndAuction(ctx, auctionID, s.now().UTC())
	if err != nil {
		return models.Auction{}, fmt.Errorf("service: failed to end auction %s: %w", auctionID, err)
	}

	utils.Info("auction ended early", map[string]any{
		"auction_id": auctionID,
		"end_time":   auction.EndTime.Format(time.RFC3339Nano),
	})
	return auction, nil
}

// Ping reports whether the ledger is reachable
func (s *BiddingService) Ping(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return fmt.Errorf("service: ledger health check: %w", err)
	}
	return nil
}
