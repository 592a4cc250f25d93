package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"auction-bidding/internal/biddingerrors"
	model "auction-bidding/internal/models"
	"auction-bidding/services/bidding/helpers"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// decimalEq matches a decimal by value, ignoring its internal scale
type decimalEq struct{ want decimal.Decimal }

func (m decimalEq) Matches(x interface{}) bool {
	d, ok := x.(decimal.Decimal)
	return ok && d.Equal(m.want)
}

func (m decimalEq) String() string { return "is equal to " + m.want.String() }

func amountOf(s string) gomock.Matcher { return decimalEq{want: decimal.RequireFromString(s)} }

type fixedViewers map[string]int

func (v fixedViewers) ViewerCount(auctionID string) int { return v[auctionID] }

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestPlaceBidHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService, nil)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/auctions/:auction_id/bids", handler.PlaceBidHandler)

	now := time.Now().UTC()

	tests := []struct {
		name           string
		auctionID      string
		bidderID       string
		requestBody    any
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
		retryable      bool
		validateData   func(t *testing.T, data map[string]any)
	}{
		{
			name:        "success_valid_bid",
			auctionID:   "auc1",
			bidderID:    "user1",
			requestBody: helpers.PlaceBidRequest{Amount: 150},
			mockSetup: func() {
				mockService.EXPECT().
					SubmitBid(gomock.Any(), "auc1", "user1", amountOf("150")).
					Return(model.Bid{
						BidID:     uuid.NewString(),
						AuctionID: "auc1",
						BidderID:  "user1",
						Amount:    decimal.RequireFromString("150"),
						CreatedAt: now,
					}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedMsg:    "bid recorded successfully",
			validateData: func(t *testing.T, data map[string]any) {
				bidID := data["bid_id"].(string)
				_, parseErr := uuid.Parse(bidID)
				require.NoError(t, parseErr, "BidID should be a valid UUID")
				require.Equal(t, "auc1", data["auction_id"])
				require.Equal(t, "user1", data["bidder_id"])
				require.Equal(t, 150.0, data["amount"])
				require.Equal(t, now.Format(time.RFC3339Nano), data["created_at"])
			},
		},
		{
			name:           "missing_identity",
			auctionID:      "auc1",
			requestBody:    helpers.PlaceBidRequest{Amount: 150},
			mockSetup:      func() {},
			expectedStatus: http.StatusUnauthorized,
			expectedMsg:    "bidder identity required",
		},
		{
			name:           "invalid_json",
			auctionID:      "auc1",
			bidderID:       "user1",
			requestBody:    `{invalid json}`,
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:           "invalid_amount_zero",
			auctionID:      "auc1",
			bidderID:       "user1",
			requestBody:    helpers.PlaceBidRequest{Amount: 0},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:           "negative_amount",
			auctionID:      "auc1",
			bidderID:       "user1",
			requestBody:    helpers.PlaceBidRequest{Amount: -10},
			mockSetup:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:        "auction_not_found",
			auctionID:   "missing",
			bidderID:    "user1",
			requestBody: helpers.PlaceBidRequest{Amount: 10},
			mockSetup: func() {
				mockService.EXPECT().
					SubmitBid(gomock.Any(), "missing", "user1", amountOf("10")).
					Return(model.Bid{}, fmt.Errorf("service: %w", biddingerrors.ErrAuctionNotFound))
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "auction not found",
		},
		{
			name:        "auction_not_active",
			auctionID:   "ended",
			bidderID:    "user1",
			requestBody: helpers.PlaceBidRequest{Amount: 200},
			mockSetup: func() {
				mockService.EXPECT().
					SubmitBid(gomock.Any(), "ended", "user1", amountOf("200")).
					Return(model.Bid{}, biddingerrors.ErrAuctionNotActive)
			},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "auction is not active",
		},
		{
			name:        "bid_too_low",
			auctionID:   "auc1",
			bidderID:    "user1",
			requestBody: helpers.PlaceBidRequest{Amount: 50},
			mockSetup: func() {
				mockService.EXPECT().
					SubmitBid(gomock.Any(), "auc1", "user1", amountOf("50")).
					Return(model.Bid{}, biddingerrors.ErrBidTooLow)
			},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "bid amount too low",
		},
		{
			name:        "insufficient_funds",
			auctionID:   "auc1",
			bidderID:    "poor",
			requestBody: helpers.PlaceBidRequest{Amount: 500},
			mockSetup: func() {
				mockService.EXPECT().
					SubmitBid(gomock.Any(), "auc1", "poor", amountOf("500")).
					Return(model.Bid{}, biddingerrors.ErrInsufficientFunds)
			},
			expectedStatus: http.StatusForbidden,
			expectedMsg:    "insufficient funds",
		},
		{
			name:        "stale_bid_is_retryable",
			auctionID:   "auc1",
			bidderID:    "user2",
			requestBody: helpers.PlaceBidRequest{Amount: 160},
			mockSetup: func() {
				mockService.EXPECT().
					SubmitBid(gomock.Any(), "auc1", "user2", amountOf("160")).
					Return(model.Bid{}, fmt.Errorf("service: commit: %w", biddingerrors.ErrStaleBid))
			},
			expectedStatus: http.StatusConflict,
			expectedMsg:    "outbid by a concurrent bid",
			retryable:      true,
		},
		{
			name:        "ledger_unavailable",
			auctionID:   "auc1",
			bidderID:    "user1",
			requestBody: helpers.PlaceBidRequest{Amount: 175.5},
			mockSetup: func() {
				mockService.EXPECT().
					SubmitBid(gomock.Any(), "auc1", "user1", amountOf("175.5")).
					Return(model.Bid{}, biddingerrors.ErrPersistence)
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedMsg:    "bid ledger unavailable",
			retryable:      true,
		},
		{
			name:        "service_generic_error",
			auctionID:   "auc1",
			bidderID:    "user1",
			requestBody: helpers.PlaceBidRequest{Amount: 100},
			mockSetup: func() {
				mockService.EXPECT().
					SubmitBid(gomock.Any(), "auc1", "user1", amountOf("100")).
					Return(model.Bid{}, errors.New("boom"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "internal server error",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var reqBody []byte
			var err error
			switch v := tc.requestBody.(type) {
			case string:
				reqBody = []byte(v)
			default:
				reqBody, err = json.Marshal(v)
				require.NoError(t, err)
			}

			tc.mockSetup()

			req := httptest.NewRequest(http.MethodPost, "/auctions/"+tc.auctionID+"/bids", bytes.NewReader(reqBody))
			req.Header.Set("Content-Type", "application/json")
			if tc.bidderID != "" {
				req.Header.Set(helpers.UserIDHeader, tc.bidderID)
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			require.Equal(t, tc.expectedStatus, w.Code)

			resp := decodeBody(t, w)
			require.Contains(t, resp["message"], tc.expectedMsg)

			if w.Code != http.StatusCreated {
				require.Equal(t, tc.retryable, resp["retryable"])
			}
			if tc.validateData != nil && w.Code == http.StatusCreated {
				tc.validateData(t, resp["data"].(map[string]any))
			}
		})
	}
}

func TestPlaceBidHandler_IdentityFromContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService, nil)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/auctions/:auction_id/bids", func(c *gin.Context) {
		c.Set(helpers.UserIDKey, "ctx-user")
		c.Next()
	}, handler.PlaceBidHandler)

	mockService.EXPECT().
		SubmitBid(gomock.Any(), "auc1", "ctx-user", amountOf("101")).
		Return(model.Bid{BidID: "b1", AuctionID: "auc1", BidderID: "ctx-user", Amount: decimal.NewFromInt(101)}, nil)

	req := httptest.NewRequest(http.MethodPost, "/auctions/auc1/bids", bytes.NewBufferString(`{"amount":101}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
}

func TestGetBidsByAuctionHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService, nil)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/auctions/:auction_id/bids", handler.GetBidsByAuctionHandler)

	now := time.Now().UTC()

	tests := []struct {
		name           string
		auctionID      string
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
		validateData   func(t *testing.T, data []any)
	}{
		{
			name:      "success_multiple_bids",
			auctionID: "auc1",
			mockSetup: func() {
				mockService.EXPECT().
					GetBidsForAuction(gomock.Any(), "auc1").
					Return([]model.Bid{
						{BidID: uuid.NewString(), AuctionID: "auc1", BidderID: "user2", Amount: decimal.NewFromInt(150), CreatedAt: now.Add(time.Second)},
						{BidID: uuid.NewString(), AuctionID: "auc1", BidderID: "user1", Amount: decimal.NewFromInt(100), CreatedAt: now},
					}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "bids retrieved successfully",
			validateData: func(t *testing.T, data []any) {
				require.Len(t, data, 2)
				require.Equal(t, 150.0, data[0].(map[string]any)["amount"])
				require.Equal(t, "user1", data[1].(map[string]any)["bidder_id"])
			},
		},
		{
			name:      "no_bids_is_empty_list",
			auctionID: "auc2",
			mockSetup: func() {
				mockService.EXPECT().
					GetBidsForAuction(gomock.Any(), "auc2").
					Return(nil, biddingerrors.ErrNoBids)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "bids retrieved successfully",
			validateData: func(t *testing.T, data []any) {
				require.Len(t, data, 0)
			},
		},
		{
			name:      "auction_not_found",
			auctionID: "missing",
			mockSetup: func() {
				mockService.EXPECT().
					GetBidsForAuction(gomock.Any(), "missing").
					Return(nil, biddingerrors.ErrAuctionNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "auction not found",
		},
		{
			name:      "service_generic_error",
			auctionID: "auc4",
			mockSetup: func() {
				mockService.EXPECT().
					GetBidsForAuction(gomock.Any(), "auc4").
					Return(nil, errors.New("database failure"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "internal server error",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tc.mockSetup()

			req := httptest.NewRequest(http.MethodGet, "/auctions/"+tc.auctionID+"/bids", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, tc.expectedStatus, w.Code)

			resp := decodeBody(t, w)
			require.Contains(t, resp["message"], tc.expectedMsg)

			if tc.validateData != nil {
				tc.validateData(t, resp["data"].([]any))
			}
		})
	}
}

func TestGetWinningBidHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService, nil)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/auctions/:auction_id/winning", handler.GetWinningBidHandler)

	tests := []struct {
		name           string
		auctionID      string
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
	}{
		{
			name:      "success_winning_bid",
			auctionID: "auc1",
			mockSetup: func() {
				mockService.EXPECT().
					GetWinningBid(gomock.Any(), "auc1").
					Return(model.Bid{BidID: "b1", AuctionID: "auc1", BidderID: "user1", Amount: decimal.NewFromInt(150)}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "winning bid retrieved successfully",
		},
		{
			name:      "no_winning_bid",
			auctionID: "auc2",
			mockSetup: func() {
				mockService.EXPECT().
					GetWinningBid(gomock.Any(), "auc2").
					Return(model.Bid{}, biddingerrors.ErrNoBids)
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "no winning bid found",
		},
		{
			name:      "auction_not_found",
			auctionID: "missing",
			mockSetup: func() {
				mockService.EXPECT().
					GetWinningBid(gomock.Any(), "missing").
					Return(model.Bid{}, biddingerrors.ErrAuctionNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "auction not found",
		},
		{
			name:      "service_error_generic",
			auctionID: "auc3",
			mockSetup: func() {
				mockService.EXPECT().
					GetWinningBid(gomock.Any(), "auc3").
					Return(model.Bid{}, errors.New("DB connection failed"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "internal server error",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tc.mockSetup()

			req := httptest.NewRequest(http.MethodGet, "/auctions/"+tc.auctionID+"/winning", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, tc.expectedStatus, w.Code)
			require.Contains(t, decodeBody(t, w)["message"], tc.expectedMsg)
		})
	}
}

func TestAuctionHandlers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService, fixedViewers{"auc1": 3})

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/auctions/:auction_id", handler.GetAuctionHandler)
	router.POST("/auctions/:auction_id/end", handler.EndAuctionHandler)
	router.GET("/auctions/:auction_id/viewers", handler.GetViewersHandler)

	now := time.Now().UTC()
	live := model.Auction{
		AuctionID:       "auc1",
		Title:           "Vintage Watch",
		SellerID:        "seller",
		StartingPrice:   decimal.NewFromInt(100),
		CurrentPrice:    decimal.NewFromInt(150),
		Increment:       decimal.NewFromInt(1),
		StartTime:       now.Add(-time.Hour),
		EndTime:         now.Add(time.Hour),
		HighestBidderID: "user1",
		BidIDs:          []string{"b1", "b2"},
	}
	ended := live
	ended.EndTime = now.Add(-time.Second)

	tests := []struct {
		name           string
		method         string
		path           string
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
		validateData   func(t *testing.T, data map[string]any)
	}{
		{
			name:   "get_live_auction",
			method: http.MethodGet,
			path:   "/auctions/auc1",
			mockSetup: func() {
				mockService.EXPECT().GetAuction(gomock.Any(), "auc1").Return(live, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "auction retrieved successfully",
			validateData: func(t *testing.T, data map[string]any) {
				require.Equal(t, "Vintage Watch", data["title"])
				require.Equal(t, 150.0, data["current_price"])
				require.Equal(t, 2.0, data["bid_count"])
				require.Equal(t, true, data["active"])
			},
		},
		{
			name:   "get_missing_auction",
			method: http.MethodGet,
			path:   "/auctions/nope",
			mockSetup: func() {
				mockService.EXPECT().GetAuction(gomock.Any(), "nope").Return(model.Auction{}, biddingerrors.ErrAuctionNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "auction not found",
		},
		{
			name:   "end_auction",
			method: http.MethodPost,
			path:   "/auctions/auc1/end",
			mockSetup: func() {
				mockService.EXPECT().EndAuction(gomock.Any(), "auc1").Return(ended, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "auction ended",
			validateData: func(t *testing.T, data map[string]any) {
				require.Equal(t, false, data["active"])
				require.Equal(t, "user1", data["highest_bidder_id"])
			},
		},
		{
			name:   "end_missing_auction",
			method: http.MethodPost,
			path:   "/auctions/nope/end",
			mockSetup: func() {
				mockService.EXPECT().EndAuction(gomock.Any(), "nope").Return(model.Auction{}, biddingerrors.ErrAuctionNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "auction not found",
		},
		{
			name:   "viewers",
			method: http.MethodGet,
			path:   "/auctions/auc1/viewers",
			mockSetup: func() {
				mockService.EXPECT().GetAuction(gomock.Any(), "auc1").Return(live, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "viewers retrieved successfully",
			validateData: func(t *testing.T, data map[string]any) {
				require.Equal(t, "auc1", data["auction_id"])
				require.Equal(t, 3.0, data["viewers"])
			},
		},
		{
			name:   "viewers_of_missing_auction",
			method: http.MethodGet,
			path:   "/auctions/nope/viewers",
			mockSetup: func() {
				mockService.EXPECT().GetAuction(gomock.Any(), "nope").Return(model.Auction{}, biddingerrors.ErrAuctionNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "auction not found",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tc.mockSetup()

			req := httptest.NewRequest(tc.method, tc.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, tc.expectedStatus, w.Code)

			resp := decodeBody(t, w)
			require.Contains(t, resp["message"], tc.expectedMsg)
			if tc.validateData != nil {
				tc.validateData(t, resp["data"].(map[string]any))
			}
		})
	}
}

func TestGetAuctionsByUserHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService, nil)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/users/:user_id/auctions", handler.GetAuctionsByUserHandler)

	tests := []struct {
		name           string
		userID         string
		mockSetup      func()
		expectedStatus int
		expectedMsg    string
		expectedCount  int
	}{
		{
			name:   "success_with_auctions",
			userID: "user1",
			mockSetup: func() {
				mockService.EXPECT().
					GetAuctionsByUser(gomock.Any(), "user1").
					Return([]model.Auction{
						{AuctionID: "auc1", Title: "title1", CurrentPrice: decimal.NewFromInt(50)},
						{AuctionID: "auc2", Title: "title2", CurrentPrice: decimal.NewFromInt(100)},
					}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "auctions retrieved successfully",
			expectedCount:  2,
		},
		{
			name:   "user_no_bids",
			userID: "user2",
			mockSetup: func() {
				mockService.EXPECT().
					GetAuctionsByUser(gomock.Any(), "user2").
					Return(nil, biddingerrors.ErrUserNoBids)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "auctions retrieved successfully",
			expectedCount:  0,
		},
		{
			name:   "service_generic_error",
			userID: "user3",
			mockSetup: func() {
				mockService.EXPECT().
					GetAuctionsByUser(gomock.Any(), "user3").
					Return(nil, errors.New("database failure"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "internal server error",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tc.mockSetup()

			req := httptest.NewRequest(http.MethodGet, "/users/"+tc.userID+"/auctions", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, tc.expectedStatus, w.Code)

			resp := decodeBody(t, w)
			require.Contains(t, resp["message"], tc.expectedMsg)
			if w.Code == http.StatusOK {
				require.Len(t, resp["data"].([]any), tc.expectedCount)
			}
		})
	}
}
