package integrationtests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	bidding "auction-bidding/internal/biddingService"
	"auction-bidding/internal/events"
	"auction-bidding/internal/fanout"
	model "auction-bidding/internal/models"
	"auction-bidding/internal/repository"
	"auction-bidding/internal/server"
	"auction-bidding/services/bidding/helpers"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// testEnv is the full service stack on an in-memory ledger
type testEnv struct {
	router *gin.Engine
	repo   *repository.MemoryRepo
	hub    *fanout.Hub
}

func openAuction(id string, startingPrice int64) model.Auction {
	now := time.Now().UTC()
	return model.Auction{
		AuctionID:     id,
		Title:         "title-" + id,
		SellerID:      "seller",
		StartingPrice: decimal.NewFromInt(startingPrice),
		Increment:     decimal.NewFromInt(1),
		StartTime:     now.Add(-time.Hour),
		EndTime:       now.Add(time.Hour),
	}
}

func funded(id string, balance int64) model.User {
	return model.User{UserID: id, Username: id, Balance: decimal.NewFromInt(balance)}
}

// SetupTestEnv wires ledger, dispatcher, hub and router the way main does
func SetupTestEnv(t *testing.T, auctions []model.Auction, users ...model.User) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	repo := repository.NewMemoryRepo()
	for _, a := range auctions {
		require.NoError(t, repo.CreateAuction(ctx, a))
	}
	for _, u := range users {
		require.NoError(t, repo.SaveUser(ctx, u))
	}

	hub := fanout.NewHub(nil)
	go hub.Run(ctx)

	dispatcher := events.NewDispatcher(events.Options{Workers: 2, RetryBackoff: time.Millisecond}, nil, hub)
	service := bidding.NewBiddingService(repo, dispatcher)

	t.Cleanup(func() {
		closeCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		_ = dispatcher.Close(closeCtx)
		cancel()
	})

	return &testEnv{router: server.SetupRouter(service, hub), repo: repo, hub: hub}
}

// ExecuteRequestAndParse executes an HTTP request as userID and parses the envelope
func ExecuteRequestAndParse(t *testing.T, router *gin.Engine, method, url, userID string, body any) (map[string]any, *httptest.ResponseRecorder) {
	t.Helper()
	var reqBody []byte
	var err error

	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	default:
		reqBody, err = json.Marshal(v)
		require.NoError(t, err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(helpers.UserIDHeader, userID)
	}
	router.ServeHTTP(w, req)

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return resp, w
}

// PlaceBid submits a bid and returns the response recorder
func PlaceBid(t *testing.T, router *gin.Engine, auctionID, userID string, amount float64) *httptest.ResponseRecorder {
	t.Helper()
	_, w := ExecuteRequestAndParse(t, router, "POST", "/auctions/"+auctionID+"/bids", userID, helpers.PlaceBidRequest{Amount: amount})
	return w
}

// DialViewer opens a websocket against a live server and subscribes to channels
func DialViewer(t *testing.T, srv *httptest.Server, channels ...string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.WriteJSON(fanout.SubscribeRequest{Op: "subscribe", Channels: channels}))
	return conn
}

func ReadFrame(t *testing.T, conn *websocket.Conn) fanout.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg fanout.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}
