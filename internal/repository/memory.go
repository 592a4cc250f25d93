package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"auction-bidding/internal/biddingerrors"
	model "auction-bidding/internal/models"
)

// auctionState is the per-auction serialization boundary of the memory ledger
type auctionState struct {
	mu      sync.Mutex
	auction model.Auction
	bids    []model.Bid // commit order
}

// MemoryRepo is a concurrency-safe in-memory implementation of LedgerStore.
// The map lock is only held to find an auction's state, so commits on
// different auctions never wait on each other.
type MemoryRepo struct {
	mu       sync.RWMutex
	auctions map[string]*auctionState
	users    map[string]model.User

	indexMu      sync.RWMutex
	userAuctions map[string][]string // key: userID -> value: auctionIDs the user has bid on

	commitHook func(model.Bid) error
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		auctions:     make(map[string]*auctionState),
		users:        make(map[string]model.User),
		userAuctions: make(map[string][]string),
	}
}

// SetCommitHook installs a function called inside CommitBid right before the write.
// A non-nil error aborts the commit. This method is intended for fault injection in tests.
func (r *MemoryRepo) SetCommitHook(hook func(model.Bid) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commitHook = hook
}

func (r *MemoryRepo) state(auctionID string) (*auctionState, func(model.Bid) error, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.auctions[auctionID]
	return st, r.commitHook, ok
}

// CreateAuction adds or replaces an auction
func (r *MemoryRepo) CreateAuction(_ context.Context, auction model.Auction) error {
	if auction.AuctionID == "" {
		return fmt.Errorf("create auction: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.auctions[auction.AuctionID] = &auctionState{auction: prepareAuction(auction)}
	return nil
}

// SaveUser adds or replaces a user
func (r *MemoryRepo) SaveUser(_ context.Context, user model.User) error {
	if user.UserID == "" {
		return fmt.Errorf("save user: %w - empty user ID", biddingerrors.ErrInvalidBid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.UserID] = user
	return nil
}

// GetAuction returns a snapshot of an auction
func (r *MemoryRepo) GetAuction(_ context.Context, auctionID string) (model.Auction, error) {
	st, _, ok := r.state(auctionID)
	if !ok {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return copyAuction(st.auction), nil
}

// GetUser returns a user with their balance
func (r *MemoryRepo) GetUser(_ context.Context, userID string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[userID]
	if !ok {
		return model.User{}, fmt.Errorf("get user %s: %w", userID, biddingerrors.ErrUserNotFound)
	}
	return user, nil
}

// CommitBid atomically re-validates and records a bid under the auction's lock
func (r *MemoryRepo) CommitBid(_ context.Context, commit model.BidCommit) (model.CommitResult, error) {
	auctionID := commit.Bid.AuctionID
	st, hook, ok := r.state(auctionID)
	if !ok {
		return model.CommitResult{}, fmt.Errorf("commit bid for auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if err := checkCommit(st.auction, commit); err != nil {
		return model.CommitResult{}, err
	}

	updated, result := applyCommit(st.auction, commit)

	if hook != nil {
		if err := hook(result.Bid); err != nil {
			return model.CommitResult{}, persistenceError("commit bid for auction "+auctionID, err)
		}
	}

	st.auction = updated
	st.bids = append(st.bids, result.Bid)
	r.indexUserAuction(result.Bid.BidderID, auctionID)

	return result, nil
}

func (r *MemoryRepo) indexUserAuction(userID, auctionID string) {
	r.indexMu.Lock()
	defer r.indexMu.Unlock()

	for _, id := range r.userAuctions[userID] {
		if id == auctionID {
			return
		}
	}
	r.userAuctions[userID] = append(r.userAuctions[userID], auctionID)
}

// GetBidsByAuction returns all bids for an auction, newest first
func (r *MemoryRepo) GetBidsByAuction(_ context.Context, auctionID string) ([]model.Bid, error) {
	st, _, ok := r.state(auctionID)
	if !ok {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	bids := make([]model.Bid, 0, len(st.bids))
	for i := len(st.bids) - 1; i >= 0; i-- {
		bids = append(bids, st.bids[i])
	}
	return bids, nil
}

// GetWinningBid returns the highest bid for an auction. Accepted amounts only ever
// increase, so that is the most recently committed bid.
func (r *MemoryRepo) GetWinningBid(_ context.Context, auctionID string) (model.Bid, error) {
	st, _, ok := r.state(auctionID)
	if !ok {
		return model.Bid{}, fmt.Errorf("get winning bid for auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if len(st.bids) == 0 {
		return model.Bid{}, fmt.Errorf("get winning bid for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	return st.bids[len(st.bids)-1], nil
}

// GetAuctionsByUser returns all auctions a user has bid on
func (r *MemoryRepo) GetAuctionsByUser(ctx context.Context, userID string) ([]model.Auction, error) {
	r.indexMu.RLock()
	auctionIDs := append([]string(nil), r.userAuctions[userID]...)
	r.indexMu.RUnlock()

	if len(auctionIDs) == 0 {
		return nil, fmt.Errorf("get auctions for user %s: %w", userID, biddingerrors.ErrUserNoBids)
	}

	auctions := make([]model.Auction, 0, len(auctionIDs))
	for _, id := range auctionIDs {
		auction, err := r.GetAuction(ctx, id)
		if err != nil {
			continue
		}
		auctions = append(auctions, auction)
	}
	return auctions, nil
}

// EndAuction moves the end of the bidding window to at, never later than the current end
func (r *MemoryRepo) EndAuction(_ context.Context, auctionID string, at time.Time) (model.Auction, error) {
	st, _, ok := r.state(auctionID)
	if !ok {
		return model.Auction{}, fmt.Errorf("end auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	st.auction = endAt(st.auction, at)
	return copyAuction(st.auction), nil
}

func (r *MemoryRepo) Ping(context.Context) error { return nil }

func (r *MemoryRepo) Close() error { return nil }

func copyAuction(a model.Auction) model.Auction {
	a.BidIDs = append([]string{}, a.BidIDs...)
	return a
}

var _ LedgerStore = (*MemoryRepo)(nil)
