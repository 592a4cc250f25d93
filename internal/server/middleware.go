package server

import (
	"time"

	"auction-bidding/services/bidding/helpers"
	"auction-bidding/utils"

	"github.com/gin-gonic/gin"
)

// RequestLoggerMiddleware logs incoming requests with timing
func RequestLoggerMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next() // process request

	fields := map[string]any{
		"method":  c.Request.Method,
		"path":    c.Request.URL.Path,
		"status":  c.Writer.Status(),
		"latency": time.Since(start).String(),
	}
	if userID := c.GetString(helpers.UserIDKey); userID != "" {
		fields["user_id"] = userID
	}
	utils.Info("HTTP Request", fields)
}

// IdentityMiddleware copies the authenticated user from the gateway header into the context.
// Requests without it pass through; handlers that need a bidder reject them.
func IdentityMiddleware(c *gin.Context) {
	if userID := c.GetHeader(helpers.UserIDHeader); userID != "" {
		c.Set(helpers.UserIDKey, userID)
	}
	c.Next()
}
