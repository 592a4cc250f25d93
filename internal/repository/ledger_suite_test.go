package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"auction-bidding/internal/biddingerrors"
	model "auction-bidding/internal/models"

	"github.com/stretchr/testify/require"
)

// runLedgerStoreSuite checks the LedgerStore contract against any implementation
func runLedgerStoreSuite(t *testing.T, newStore func(t *testing.T) LedgerStore) {
	ctx := context.Background()

	t.Run("create_and_get_auction", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.CreateAuction(ctx, newAuction("a1", "Lamp", 100)))

		auction, err := store.GetAuction(ctx, "a1")
		require.NoError(t, err)
		require.Equal(t, "Lamp", auction.Title)
		require.True(t, auction.CurrentPrice.Equal(dec(100)), "current price starts at starting price")
		require.Empty(t, auction.BidIDs)

		_, err = store.GetAuction(ctx, "missing")
		require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
	})

	t.Run("get_user", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.SaveUser(ctx, newUser("u1", 500)))

		user, err := store.GetUser(ctx, "u1")
		require.NoError(t, err)
		require.True(t, user.Balance.Equal(dec(500)))

		_, err = store.GetUser(ctx, "nobody")
		require.ErrorIs(t, err, biddingerrors.ErrUserNotFound)
	})

	t.Run("commit_sequence", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.CreateAuction(ctx, newAuction("x", "Auction X", 100)))

		tests := []struct {
			name         string
			commit       model.BidCommit
			wantErr      error
			wantPrice    int64
			wantPrevious string
		}{
			{name: "equal_to_current_price", commit: newCommit("b0", "x", "u1", 100, 100), wantErr: biddingerrors.ErrBidTooLow, wantPrice: 100},
			{name: "first_bid", commit: newCommit("b1", "x", "u1", 150, 100), wantPrice: 150},
			{name: "lost_race_same_amount", commit: newCommit("b2", "x", "u2", 150, 100), wantErr: biddingerrors.ErrStaleBid, wantPrice: 150},
			{name: "higher_bid", commit: newCommit("b3", "x", "u2", 200, 150), wantPrice: 200, wantPrevious: "u1"},
			{name: "lost_race_lower_amount", commit: newCommit("b4", "x", "u3", 175, 100), wantErr: biddingerrors.ErrStaleBid, wantPrice: 200},
			{name: "price_moved_but_still_highest", commit: newCommit("b5", "x", "u3", 250, 100), wantPrice: 250, wantPrevious: "u2"},
			{name: "one_unit_above", commit: newCommit("b6", "x", "u1", 251, 250), wantPrice: 251, wantPrevious: "u3"},
		}

		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				result, err := store.CommitBid(ctx, tc.commit)
				if tc.wantErr != nil {
					require.ErrorIs(t, err, tc.wantErr)
				} else {
					require.NoError(t, err)
					require.Equal(t, tc.commit.Bid.BidID, result.Bid.BidID)
					require.Equal(t, tc.wantPrevious, result.PreviousBidderID)
					require.Equal(t, "Auction X", result.AuctionTitle)
					require.False(t, result.Bid.CreatedAt.IsZero())
				}

				auction, err := store.GetAuction(ctx, "x")
				require.NoError(t, err)
				require.True(t, auction.CurrentPrice.Equal(dec(tc.wantPrice)),
					"want price %d, got %s", tc.wantPrice, auction.CurrentPrice)
			})
		}

		bids, err := store.GetBidsByAuction(ctx, "x")
		require.NoError(t, err)
		require.Len(t, bids, 4)
		wantOrder := []string{"b6", "b5", "b3", "b1"}
		for i, bid := range bids {
			require.Equal(t, wantOrder[i], bid.BidID, "bids are newest first")
		}

		winning, err := store.GetWinningBid(ctx, "x")
		require.NoError(t, err)
		require.Equal(t, "b6", winning.BidID)
		require.True(t, winning.Amount.Equal(dec(251)))

		auction, err := store.GetAuction(ctx, "x")
		require.NoError(t, err)
		require.Equal(t, []string{"b1", "b3", "b5", "b6"}, auction.BidIDs)
		require.Equal(t, "u1", auction.HighestBidderID)
	})

	t.Run("commit_outside_window", func(t *testing.T) {
		store := newStore(t)
		ended := newAuction("y", "Auction Y", 100)
		ended.StartTime = time.Now().Add(-2 * time.Hour)
		ended.EndTime = time.Now().Add(-time.Hour)
		require.NoError(t, store.CreateAuction(ctx, ended))

		notStarted := newAuction("z", "Auction Z", 100)
		notStarted.StartTime = time.Now().Add(time.Hour)
		notStarted.EndTime = time.Now().Add(2 * time.Hour)
		require.NoError(t, store.CreateAuction(ctx, notStarted))

		_, err := store.CommitBid(ctx, newCommit("b1", "y", "u1", 500, 100))
		require.ErrorIs(t, err, biddingerrors.ErrAuctionNotActive)

		_, err = store.CommitBid(ctx, newCommit("b2", "z", "u1", 500, 100))
		require.ErrorIs(t, err, biddingerrors.ErrAuctionNotActive)

		_, err = store.GetWinningBid(ctx, "y")
		require.ErrorIs(t, err, biddingerrors.ErrNoBids)
	})

	t.Run("commit_missing_auction", func(t *testing.T) {
		store := newStore(t)
		_, err := store.CommitBid(ctx, newCommit("b1", "nope", "u1", 500, 100))
		require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
	})

	t.Run("timestamps_strictly_increase", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.CreateAuction(ctx, newAuction("t", "Clock", 10)))

		now := time.Now().UTC()
		var last time.Time
		for i := 0; i < 5; i++ {
			commit := newCommit(fmt.Sprintf("b%d", i), "t", "u1", int64(11+i), int64(10+i))
			commit.Now = now // same clock reading for every commit
			result, err := store.CommitBid(ctx, commit)
			require.NoError(t, err)
			require.True(t, result.Bid.CreatedAt.After(last), "timestamp must move forward")
			last = result.Bid.CreatedAt
		}
	})

	t.Run("concurrent_commits_are_monotonic", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.CreateAuction(ctx, newAuction("hot", "Hot item", 100)))

		const bidders = 50
		var wg sync.WaitGroup
		errs := make([]error, bidders)

		for i := 0; i < bidders; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				commit := newCommit(fmt.Sprintf("bid-%d", i), "hot", fmt.Sprintf("user-%d", i), int64(101+i), 100)
				_, errs[i] = store.CommitBid(ctx, commit)
			}(i)
		}
		wg.Wait()

		accepted := 0
		for _, err := range errs {
			if err == nil {
				accepted++
				continue
			}
			require.ErrorIs(t, err, biddingerrors.ErrStaleBid, "race losers must see a stale bid")
		}
		require.GreaterOrEqual(t, accepted, 1)

		bids, err := store.GetBidsByAuction(ctx, "hot")
		require.NoError(t, err)
		require.Len(t, bids, accepted)
		for i := 1; i < len(bids); i++ {
			require.True(t, bids[i-1].Amount.GreaterThan(bids[i].Amount), "amounts strictly increase in commit order")
			require.True(t, bids[i-1].CreatedAt.After(bids[i].CreatedAt))
		}

		winning, err := store.GetWinningBid(ctx, "hot")
		require.NoError(t, err)
		require.True(t, winning.Amount.Equal(dec(100+bidders)), "the highest amount always commits")
	})

	t.Run("auctions_by_user", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.CreateAuction(ctx, newAuction("a1", "One", 10)))
		require.NoError(t, store.CreateAuction(ctx, newAuction("a2", "Two", 10)))

		_, err := store.CommitBid(ctx, newCommit("b1", "a1", "u1", 20, 10))
		require.NoError(t, err)
		_, err = store.CommitBid(ctx, newCommit("b2", "a2", "u1", 20, 10))
		require.NoError(t, err)
		_, err = store.CommitBid(ctx, newCommit("b3", "a1", "u1", 30, 20))
		require.NoError(t, err)

		auctions, err := store.GetAuctionsByUser(ctx, "u1")
		require.NoError(t, err)
		ids := []string{}
		for _, a := range auctions {
			ids = append(ids, a.AuctionID)
		}
		require.ElementsMatch(t, []string{"a1", "a2"}, ids)

		_, err = store.GetAuctionsByUser(ctx, "u2")
		require.ErrorIs(t, err, biddingerrors.ErrUserNoBids)
	})

	t.Run("end_auction", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.CreateAuction(ctx, newAuction("e", "Ends early", 100)))
		_, err := store.CommitBid(ctx, newCommit("b1", "e", "u1", 150, 100))
		require.NoError(t, err)

		ended, err := store.EndAuction(ctx, "e", time.Now().Add(-time.Second))
		require.NoError(t, err)
		require.True(t, ended.CurrentPrice.Equal(dec(150)), "ending never touches the price")

		_, err = store.CommitBid(ctx, newCommit("b2", "e", "u2", 500, 150))
		require.ErrorIs(t, err, biddingerrors.ErrAuctionNotActive)

		// a later end time never extends the window
		again, err := store.EndAuction(ctx, "e", time.Now().Add(24*time.Hour))
		require.NoError(t, err)
		require.True(t, again.EndTime.Equal(ended.EndTime))

		_, err = store.EndAuction(ctx, "missing", time.Now())
		require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)
	})

	t.Run("bids_for_missing_auction", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetBidsByAuction(ctx, "missing")
		require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)

		require.NoError(t, store.CreateAuction(ctx, newAuction("empty", "Empty", 1)))
		bids, err := store.GetBidsByAuction(ctx, "empty")
		require.NoError(t, err)
		require.Empty(t, bids)
	})

	t.Run("winning_bid_for_missing_auction", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetWinningBid(ctx, "missing")
		require.ErrorIs(t, err, biddingerrors.ErrAuctionNotFound)

		require.NoError(t, store.CreateAuction(ctx, newAuction("quiet", "No bids", 1)))
		_, err = store.GetWinningBid(ctx, "quiet")
		require.ErrorIs(t, err, biddingerrors.ErrNoBids)
	})

	t.Run("ids_sharing_a_prefix_stay_separate", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.CreateAuction(ctx, newAuction("a", "Parent", 100)))
		require.NoError(t, store.CreateAuction(ctx, newAuction("a/b", "Child", 100)))

		_, err := store.CommitBid(ctx, newCommit("b1", "a/b", "u/v", 150, 100))
		require.NoError(t, err)

		bids, err := store.GetBidsByAuction(ctx, "a")
		require.NoError(t, err)
		require.Empty(t, bids)

		_, err = store.GetWinningBid(ctx, "a")
		require.ErrorIs(t, err, biddingerrors.ErrNoBids)

		_, err = store.GetAuctionsByUser(ctx, "u")
		require.ErrorIs(t, err, biddingerrors.ErrUserNoBids)

		auctions, err := store.GetAuctionsByUser(ctx, "u/v")
		require.NoError(t, err)
		require.Len(t, auctions, 1)
		require.Equal(t, "a/b", auctions[0].AuctionID)
	})
}
