package server

import (
	"context"
	"net/http"
	"time"

	bidding "auction-bidding/internal/biddingService"
	"auction-bidding/internal/fanout"
	handler "auction-bidding/services/bidding/handler"
	"auction-bidding/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const healthTimeout = 2 * time.Second

// SetupRouter configures all Gin routes for the application. hub may be nil, then /ws is not
// served and viewer counts are 0.
func SetupRouter(biddingService *bidding.BiddingService, hub *fanout.Hub) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(IdentityMiddleware)      // X-User-ID -> context
	router.Use(RequestLoggerMiddleware) // custom request logging

	var viewers handler.ViewerCounter
	if hub != nil {
		viewers = hub
		router.GET("/ws", gin.WrapF(hub.ServeWS))
	}
	biddingHandler := handler.NewBiddingHandler(biddingService, viewers)

	auctions := router.Group("/auctions")
	{
		auctions.GET("/:auction_id", biddingHandler.GetAuctionHandler)
		auctions.POST("/:auction_id/bids", biddingHandler.PlaceBidHandler)
		auctions.GET("/:auction_id/bids", biddingHandler.GetBidsByAuctionHandler)
		auctions.GET("/:auction_id/winning", biddingHandler.GetWinningBidHandler)
		auctions.POST("/:auction_id/end", biddingHandler.EndAuctionHandler)
		auctions.GET("/:auction_id/viewers", biddingHandler.GetViewersHandler)
	}

	users := router.Group("/users")
	{
		users.GET("/:user_id/auctions", biddingHandler.GetAuctionsByUserHandler)
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", healthHandler(biddingService))

	return router
}

func healthHandler(svc *bidding.BiddingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		if err := svc.Ping(ctx); err != nil {
			utils.JSONError(c, http.StatusServiceUnavailable, err, "ledger unavailable")
			utils.Error("health check failed", map[string]any{"error": err.Error()})
			return
		}
		utils.JSONResponse(c, http.StatusOK, gin.H{"ledger": "ok"}, "healthy")
	}
}
