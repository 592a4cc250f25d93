package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"auction-bidding/internal/biddingerrors"
	model "auction-bidding/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// commitBidScript is the atomic section of the redis ledger.
// KEYS: auction hash, bids list, bidder's auction set.
// ARGV: bid id, bidder id, amount, observed price, now (unix micros), auction id.
// Replies {status[, created_at_us, previous_bidder, title]}.
const commitBidScript = `
if redis.call('EXISTS', KEYS[1]) == 0 then
  return {'not_found'}
end
local f = redis.call('HMGET', KEYS[1], 'current_price', 'start_at', 'end_at', 'highest_bidder', 'last_bid_at', 'title')
local now = tonumber(ARGV[5])
if now < tonumber(f[2]) or now >= tonumber(f[3]) then
  return {'not_active'}
end
if tonumber(ARGV[3]) <= tonumber(f[1]) then
  if f[1] ~= ARGV[4] then
    return {'stale', f[1]}
  end
  return {'too_low', f[1]}
end
local ts = now
local last = tonumber(f[5]) or 0
if ts <= last then
  ts = last + 1
end
local created = string.format('%d', ts)
local bid = cjson.encode({bid_id = ARGV[1], auction_id = ARGV[6], bidder_id = ARGV[2], amount = ARGV[3], created_at_us = created})
redis.call('LPUSH', KEYS[2], bid)
redis.call('HSET', KEYS[1], 'current_price', ARGV[3], 'highest_bidder', ARGV[2], 'last_bid_at', created)
redis.call('HINCRBY', KEYS[1], 'version', 1)
redis.call('SADD', KEYS[3], ARGV[6])
return {'ok', created, f[4] or '', f[6] or ''}
`

// endAuctionScript clamps end_at to max(start_at, min(end_at, ARGV[1])).
const endAuctionScript = `
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
local f = redis.call('HMGET', KEYS[1], 'start_at', 'end_at')
local at = tonumber(ARGV[1])
if at < tonumber(f[1]) then
  at = tonumber(f[1])
end
if at < tonumber(f[2]) then
  redis.call('HSET', KEYS[1], 'end_at', string.format('%d', at))
  redis.call('HINCRBY', KEYS[1], 'version', 1)
end
return 1
`

// RedisStore keeps the ledger in Redis. Every price change goes through commitBidScript,
// which Redis runs without interleaving other commands. Timestamps have microsecond precision.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func auctionKey(id string) string      { return "auction:" + id }
func auctionBidsKey(id string) string  { return "auction:" + id + ":bids" }
func userKey(id string) string         { return "user:" + id }
func userAuctionsKey(id string) string { return "user:" + id + ":auctions" }

// redisBid is the JSON layout written by commitBidScript
type redisBid struct {
	BidID       string `json:"bid_id"`
	AuctionID   string `json:"auction_id"`
	BidderID    string `json:"bidder_id"`
	Amount      string `json:"amount"`
	CreatedAtUs string `json:"created_at_us"`
}

func (b redisBid) toModel() (model.Bid, error) {
	amount, err := decimal.NewFromString(b.Amount)
	if err != nil {
		return model.Bid{}, fmt.Errorf("decode bid %s amount: %w", b.BidID, err)
	}
	us, err := strconv.ParseInt(b.CreatedAtUs, 10, 64)
	if err != nil {
		return model.Bid{}, fmt.Errorf("decode bid %s timestamp: %w", b.BidID, err)
	}
	return model.Bid{
		BidID:     b.BidID,
		AuctionID: b.AuctionID,
		BidderID:  b.BidderID,
		Amount:    amount,
		CreatedAt: time.UnixMicro(us).UTC(),
	}, nil
}

func micros(t time.Time) string {
	return strconv.FormatInt(t.UnixMicro(), 10)
}

func parseMicros(fields map[string]string, name string) (time.Time, error) {
	raw, ok := fields[name]
	if !ok || raw == "" {
		return time.Time{}, nil
	}
	us, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode %s: %w", name, err)
	}
	return time.UnixMicro(us).UTC(), nil
}

func parseDecimal(fields map[string]string, name string) (decimal.Decimal, error) {
	raw, ok := fields[name]
	if !ok || raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode %s: %w", name, err)
	}
	return d, nil
}

// CreateAuction adds or replaces an auction hash
func (s *RedisStore) CreateAuction(ctx context.Context, auction model.Auction) error {
	if auction.AuctionID == "" {
		return fmt.Errorf("create auction: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}
	auction = prepareAuction(auction)

	err := s.client.HSet(ctx, auctionKey(auction.AuctionID), map[string]any{
		"auction_id":     auction.AuctionID,
		"title":          auction.Title,
		"seller_id":      auction.SellerID,
		"starting_price": auction.StartingPrice.String(),
		"current_price":  auction.CurrentPrice.String(),
		"increment":      auction.Increment.String(),
		"start_at":       micros(auction.StartTime),
		"end_at":         micros(auction.EndTime),
		"version":        strconv.FormatUint(auction.Version, 10),
	}).Err()
	if err != nil {
		return persistenceError("create auction "+auction.AuctionID, err)
	}
	return nil
}

// SaveUser adds or replaces a user hash
func (s *RedisStore) SaveUser(ctx context.Context, user model.User) error {
	if user.UserID == "" {
		return fmt.Errorf("save user: %w - empty user ID", biddingerrors.ErrInvalidBid)
	}

	err := s.client.HSet(ctx, userKey(user.UserID), map[string]any{
		"user_id":  user.UserID,
		"username": user.Username,
		"balance":  user.Balance.String(),
	}).Err()
	if err != nil {
		return persistenceError("save user "+user.UserID, err)
	}
	return nil
}

// GetAuction reads the auction hash and its bid ids
func (s *RedisStore) GetAuction(ctx context.Context, auctionID string) (model.Auction, error) {
	fields, err := s.client.HGetAll(ctx, auctionKey(auctionID)).Result()
	if err != nil {
		return model.Auction{}, persistenceError("load auction "+auctionID, err)
	}
	if len(fields) == 0 {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}

	auction, err := decodeAuction(auctionID, fields)
	if err != nil {
		return model.Auction{}, err
	}

	bids, err := s.listBids(ctx, auctionID)
	if err != nil {
		return model.Auction{}, err
	}
	auction.BidIDs = make([]string, 0, len(bids))
	for i := len(bids) - 1; i >= 0; i-- {
		auction.BidIDs = append(auction.BidIDs, bids[i].BidID)
	}
	return auction, nil
}

func decodeAuction(auctionID string, fields map[string]string) (model.Auction, error) {
	auction := model.Auction{
		AuctionID:       auctionID,
		Title:           fields["title"],
		SellerID:        fields["seller_id"],
		HighestBidderID: fields["highest_bidder"],
	}

	var err error
	if auction.StartingPrice, err = parseDecimal(fields, "starting_price"); err != nil {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, err)
	}
	if auction.CurrentPrice, err = parseDecimal(fields, "current_price"); err != nil {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, err)
	}
	if auction.Increment, err = parseDecimal(fields, "increment"); err != nil {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, err)
	}
	if auction.StartTime, err = parseMicros(fields, "start_at"); err != nil {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, err)
	}
	if auction.EndTime, err = parseMicros(fields, "end_at"); err != nil {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, err)
	}
	if auction.LastBidAt, err = parseMicros(fields, "last_bid_at"); err != nil {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, err)
	}
	if v := fields["version"]; v != "" {
		if auction.Version, err = strconv.ParseUint(v, 10, 64); err != nil {
			return model.Auction{}, fmt.Errorf("get auction %s: decode version: %w", auctionID, err)
		}
	}
	return auction, nil
}

// GetUser reads a user hash
func (s *RedisStore) GetUser(ctx context.Context, userID string) (model.User, error) {
	fields, err := s.client.HGetAll(ctx, userKey(userID)).Result()
	if err != nil {
		return model.User{}, persistenceError("load user "+userID, err)
	}
	if len(fields) == 0 {
		return model.User{}, fmt.Errorf("get user %s: %w", userID, biddingerrors.ErrUserNotFound)
	}

	balance, err := parseDecimal(fields, "balance")
	if err != nil {
		return model.User{}, fmt.Errorf("get user %s: %w", userID, err)
	}
	return model.User{UserID: userID, Username: fields["username"], Balance: balance}, nil
}

// CommitBid runs commitBidScript and maps its status reply onto ledger errors
func (s *RedisStore) CommitBid(ctx context.Context, commit model.BidCommit) (model.CommitResult, error) {
	bid := commit.Bid
	auctionID := bid.AuctionID

	reply, err := s.client.Eval(ctx, commitBidScript,
		[]string{auctionKey(auctionID), auctionBidsKey(auctionID), userAuctionsKey(bid.BidderID)},
		bid.BidID, bid.BidderID, bid.Amount.String(), commit.ObservedPrice.String(), micros(commit.Now), auctionID,
	).StringSlice()
	if err != nil {
		return model.CommitResult{}, persistenceError("commit bid for auction "+auctionID, err)
	}
	if len(reply) == 0 {
		return model.CommitResult{}, persistenceError("commit bid for auction "+auctionID, fmt.Errorf("empty script reply"))
	}

	switch reply[0] {
	case "ok":
	case "not_found":
		return model.CommitResult{}, fmt.Errorf("commit bid for auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	case "not_active":
		return model.CommitResult{}, fmt.Errorf("commit bid for auction %s: %w", auctionID, biddingerrors.ErrAuctionNotActive)
	case "stale":
		return model.CommitResult{}, fmt.Errorf("commit bid for auction %s: current price %s: %w", auctionID, replyField(reply, 1), biddingerrors.ErrStaleBid)
	case "too_low":
		return model.CommitResult{}, fmt.Errorf("commit bid for auction %s: current price %s: %w", auctionID, replyField(reply, 1), biddingerrors.ErrBidTooLow)
	default:
		return model.CommitResult{}, persistenceError("commit bid for auction "+auctionID, fmt.Errorf("unexpected script status %q", reply[0]))
	}

	if len(reply) < 4 {
		return model.CommitResult{}, persistenceError("commit bid for auction "+auctionID, fmt.Errorf("short script reply %v", reply))
	}
	us, err := strconv.ParseInt(reply[1], 10, 64)
	if err != nil {
		return model.CommitResult{}, persistenceError("commit bid for auction "+auctionID, err)
	}

	bid.CreatedAt = time.UnixMicro(us).UTC()
	return model.CommitResult{
		Bid:              bid,
		PreviousBidderID: reply[2],
		AuctionTitle:     reply[3],
	}, nil
}

func replyField(reply []string, i int) string {
	if i < len(reply) {
		return reply[i]
	}
	return ""
}

func (s *RedisStore) listBids(ctx context.Context, auctionID string) ([]model.Bid, error) {
	raw, err := s.client.LRange(ctx, auctionBidsKey(auctionID), 0, -1).Result()
	if err != nil {
		return nil, persistenceError("list bids for auction "+auctionID, err)
	}

	bids := make([]model.Bid, 0, len(raw))
	for _, item := range raw {
		var rb redisBid
		if err := json.Unmarshal([]byte(item), &rb); err != nil {
			return nil, fmt.Errorf("decode bid for auction %s: %w", auctionID, err)
		}
		bid, err := rb.toModel()
		if err != nil {
			return nil, err
		}
		bids = append(bids, bid)
	}
	return bids, nil
}

// GetBidsByAuction returns all bids for an auction, newest first
func (s *RedisStore) GetBidsByAuction(ctx context.Context, auctionID string) ([]model.Bid, error) {
	exists, err := s.client.Exists(ctx, auctionKey(auctionID)).Result()
	if err != nil {
		return nil, persistenceError("list bids for auction "+auctionID, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return s.listBids(ctx, auctionID)
}

// GetWinningBid returns the head of the bids list
func (s *RedisStore) GetWinningBid(ctx context.Context, auctionID string) (model.Bid, error) {
	exists, err := s.client.Exists(ctx, auctionKey(auctionID)).Result()
	if err != nil {
		return model.Bid{}, persistenceError("load winning bid for auction "+auctionID, err)
	}
	if exists == 0 {
		return model.Bid{}, fmt.Errorf("get winning bid for auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}

	raw, err := s.client.LIndex(ctx, auctionBidsKey(auctionID), 0).Result()
	if err == redis.Nil {
		return model.Bid{}, fmt.Errorf("get winning bid for auction %s: %w", auctionID, biddingerrors.ErrNoBids)
	}
	if err != nil {
		return model.Bid{}, persistenceError("load winning bid for auction "+auctionID, err)
	}

	var rb redisBid
	if err := json.Unmarshal([]byte(raw), &rb); err != nil {
		return model.Bid{}, fmt.Errorf("decode winning bid for auction %s: %w", auctionID, err)
	}
	return rb.toModel()
}

// GetAuctionsByUser returns all auctions a user has bid on
func (s *RedisStore) GetAuctionsByUser(ctx context.Context, userID string) ([]model.Auction, error) {
	ids, err := s.client.SMembers(ctx, userAuctionsKey(userID)).Result()
	if err != nil {
		return nil, persistenceError("list auctions for user "+userID, err)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("get auctions for user %s: %w", userID, biddingerrors.ErrUserNoBids)
	}

	auctions := make([]model.Auction, 0, len(ids))
	for _, id := range ids {
		auction, err := s.GetAuction(ctx, id)
		if err != nil {
			continue
		}
		auctions = append(auctions, auction)
	}
	return auctions, nil
}

// EndAuction moves the end of the bidding window to at, never later than the current end
func (s *RedisStore) EndAuction(ctx context.Context, auctionID string, at time.Time) (model.Auction, error) {
	found, err := s.client.Eval(ctx, endAuctionScript, []string{auctionKey(auctionID)}, micros(at)).Int()
	if err != nil {
		return model.Auction{}, persistenceError("end auction "+auctionID, err)
	}
	if found == 0 {
		return model.Auction{}, fmt.Errorf("end auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return s.GetAuction(ctx, auctionID)
}

// Ping checks the redis connection
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return persistenceError("redis health check", err)
	}
	return nil
}

func (s *RedisStore) Close() error { return s.client.Close() }

var _ LedgerStore = (*RedisStore)(nil)
