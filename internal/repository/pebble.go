package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"auction-bidding/internal/biddingerrors"
	"auction-bidding/internal/keylock"
	model "auction-bidding/internal/models"

	"github.com/cockroachdb/pebble"
)

// PebbleStore keeps the ledger on local disk.
//
// keys: auction/<id>, bid/<auctionID>/<20-digit seq>, user/<id>, user-auction/<userID>/<auctionID>,
// where every id except the trailing auctionID is written as <len>:<id>.
//
// Pebble has no read-modify-write transactions, so every mutation of an auction runs
// under that auction's key lock and lands in one synced batch.
type PebbleStore struct {
	db    *pebble.DB
	locks *keylock.Locker
}

func NewPebbleStore(path string, opts *pebble.Options) (*PebbleStore, error) {
	if opts == nil {
		opts = &pebble.Options{}
	}
	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble ledger at %s: %w", path, err)
	}
	return &PebbleStore{db: db, locks: keylock.New()}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

// idSeg length-prefixes an id so no id's keys are a prefix of another id's keys
func idSeg(id string) string { return strconv.Itoa(len(id)) + ":" + id }

func kAuction(id string) []byte { return []byte("auction/" + idSeg(id)) }
func kUser(id string) []byte    { return []byte("user/" + idSeg(id)) }
func kBidPrefix(auctionID string) []byte {
	return []byte("bid/" + idSeg(auctionID) + "/")
}
func kBid(auctionID string, seq int) []byte {
	return []byte(fmt.Sprintf("bid/%s/%020d", idSeg(auctionID), seq))
}
func kUserAuctionPrefix(userID string) []byte {
	return []byte("user-auction/" + idSeg(userID) + "/")
}
func kUserAuction(userID, auctionID string) []byte {
	return append(kUserAuctionPrefix(userID), auctionID...)
}

// prefixUpperBound returns the smallest key greater than every key starting with prefix
func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func (s *PebbleStore) getJSON(key []byte, out any) (bool, error) {
	val, closer, err := s.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer closer.Close()

	if err := json.Unmarshal(val, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *PebbleStore) loadAuction(auctionID string) (model.Auction, error) {
	var auction model.Auction
	found, err := s.getJSON(kAuction(auctionID), &auction)
	if err != nil {
		return model.Auction{}, persistenceError("load auction "+auctionID, err)
	}
	if !found {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	if auction.BidIDs == nil {
		auction.BidIDs = []string{}
	}
	return auction, nil
}

// CreateAuction adds or replaces an auction
func (s *PebbleStore) CreateAuction(_ context.Context, auction model.Auction) error {
	if auction.AuctionID == "" {
		return fmt.Errorf("create auction: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	unlock := s.locks.Lock(auction.AuctionID)
	defer unlock()

	data, err := json.Marshal(prepareAuction(auction))
	if err != nil {
		return fmt.Errorf("create auction %s: %w", auction.AuctionID, err)
	}
	if err := s.db.Set(kAuction(auction.AuctionID), data, pebble.Sync); err != nil {
		return persistenceError("create auction "+auction.AuctionID, err)
	}
	return nil
}

// SaveUser adds or replaces a user
func (s *PebbleStore) SaveUser(_ context.Context, user model.User) error {
	if user.UserID == "" {
		return fmt.Errorf("save user: %w - empty user ID", biddingerrors.ErrInvalidBid)
	}

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("save user %s: %w", user.UserID, err)
	}
	if err := s.db.Set(kUser(user.UserID), data, pebble.Sync); err != nil {
		return persistenceError("save user "+user.UserID, err)
	}
	return nil
}

// GetAuction returns the stored auction
func (s *PebbleStore) GetAuction(_ context.Context, auctionID string) (model.Auction, error) {
	return s.loadAuction(auctionID)
}

// GetUser returns a user with their balance
func (s *PebbleStore) GetUser(_ context.Context, userID string) (model.User, error) {
	var user model.User
	found, err := s.getJSON(kUser(userID), &user)
	if err != nil {
		return model.User{}, persistenceError("load user "+userID, err)
	}
	if !found {
		return model.User{}, fmt.Errorf("get user %s: %w", userID, biddingerrors.ErrUserNotFound)
	}
	return user, nil
}

// CommitBid re-validates and writes auction, bid and user index in one batch
func (s *PebbleStore) CommitBid(_ context.Context, commit model.BidCommit) (model.CommitResult, error) {
	auctionID := commit.Bid.AuctionID

	unlock := s.locks.Lock(auctionID)
	defer unlock()

	auction, err := s.loadAuction(auctionID)
	if err != nil {
		return model.CommitResult{}, err
	}

	if err := checkCommit(auction, commit); err != nil {
		return model.CommitResult{}, err
	}

	updated, result := applyCommit(auction, commit)

	auctionData, err := json.Marshal(updated)
	if err != nil {
		return model.CommitResult{}, fmt.Errorf("commit bid for auction %s: %w", auctionID, err)
	}
	bidData, err := json.Marshal(result.Bid)
	if err != nil {
		return model.CommitResult{}, fmt.Errorf("commit bid for auction %s: %w", auctionID, err)
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(kAuction(auctionID), auctionData, nil); err != nil {
		return model.CommitResult{}, persistenceError("commit bid for auction "+auctionID, err)
	}
	if err := batch.Set(kBid(auctionID, len(updated.BidIDs)), bidData, nil); err != nil {
		return model.CommitResult{}, persistenceError("commit bid for auction "+auctionID, err)
	}
	if err := batch.Set(kUserAuction(result.Bid.BidderID, auctionID), nil, nil); err != nil {
		return model.CommitResult{}, persistenceError("commit bid for auction "+auctionID, err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return model.CommitResult{}, persistenceError("commit bid for auction "+auctionID, err)
	}

	return result, nil
}

// GetBidsByAuction returns all bids for an auction, newest first
func (s *PebbleStore) GetBidsByAuction(_ context.Context, auctionID string) ([]model.Bid, error) {
	if _, err := s.loadAuction(auctionID); err != nil {
		return nil, err
	}

	prefix := kBidPrefix(auctionID)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, persistenceError("list bids for auction "+auctionID, err)
	}
	defer iter.Close()

	bids := []model.Bid{}
	for iter.Last(); iter.Valid(); iter.Prev() {
		var bid model.Bid
		if err := json.Unmarshal(iter.Value(), &bid); err != nil {
			return nil, fmt.Errorf("decode bid %s: %w", iter.Key(), err)
		}
		bids = append(bids, bid)
	}
	return bids, nil
}

// GetWinningBid returns the most recently committed, and therefore highest, bid
func (s *PebbleStore) GetWinningBid(_ context.Context, auctionID string) (model.Bid, error) {
	auction, err := s.loadAuction(auctionID)
	if err != nil {
		return model.Bid{}, err
	}
	if len(auction.BidIDs) == 0 {
		return model.Bid{}, fmt.Errorf("get winning bid for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}

	var bid model.Bid
	found, err := s.getJSON(kBid(auctionID, len(auction.BidIDs)), &bid)
	if err != nil {
		return model.Bid{}, persistenceError("load winning bid for auction "+auctionID, err)
	}
	if !found {
		return model.Bid{}, fmt.Errorf("get winning bid for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	return bid, nil
}

// GetAuctionsByUser returns all auctions a user has bid on
func (s *PebbleStore) GetAuctionsByUser(_ context.Context, userID string) ([]model.Auction, error) {
	prefix := kUserAuctionPrefix(userID)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, persistenceError("list auctions for user "+userID, err)
	}

	var auctionIDs []string
	for iter.First(); iter.Valid(); iter.Next() {
		auctionIDs = append(auctionIDs, string(iter.Key()[len(prefix):]))
	}
	if err := iter.Close(); err != nil {
		return nil, persistenceError("list auctions for user "+userID, err)
	}

	if len(auctionIDs) == 0 {
		return nil, fmt.Errorf("get auctions for user %s: %w", userID, biddingerrors.ErrUserNoBids)
	}

	auctions := make([]model.Auction, 0, len(auctionIDs))
	for _, id := range auctionIDs {
		auction, err := s.loadAuction(id)
		if err != nil {
			continue
		}
		auctions = append(auctions, auction)
	}
	return auctions, nil
}

// EndAuction moves the end of the bidding window to at, never later than the current end
func (s *PebbleStore) EndAuction(_ context.Context, auctionID string, at time.Time) (model.Auction, error) {
	unlock := s.locks.Lock(auctionID)
	defer unlock()

	auction, err := s.loadAuction(auctionID)
	if err != nil {
		return model.Auction{}, err
	}

	auction = endAt(auction, at)
	data, err := json.Marshal(auction)
	if err != nil {
		return model.Auction{}, fmt.Errorf("end auction %s: %w", auctionID, err)
	}
	if err := s.db.Set(kAuction(auctionID), data, pebble.Sync); err != nil {
		return model.Auction{}, persistenceError("end auction "+auctionID, err)
	}
	return auction, nil
}

// Ping checks the database still answers reads
func (s *PebbleStore) Ping(context.Context) error {
	_, closer, err := s.db.Get([]byte("health"))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil
	}
	if err != nil {
		return persistenceError("ping pebble ledger", err)
	}
	return closer.Close()
}

var _ LedgerStore = (*PebbleStore)(nil)
