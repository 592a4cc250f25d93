package utils

import (
	"auction-bidding/internal/biddingerrors"

	"github.com/gin-gonic/gin"
)

// JSONResponse sends a structured JSON response
func JSONResponse(c *gin.Context, status int, data any, message string) {
	c.JSON(status, gin.H{
		"status":  status,
		"message": message,
		"data":    data,
	})
}

// JSONError sends a structured error response. Retryable tells the client whether
// resubmitting after refreshing the auction price can succeed.
func JSONError(c *gin.Context, status int, err error, message string) {
	c.JSON(status, gin.H{
		"status":    status,
		"message":   message,
		"error":     err.Error(),
		"retryable": biddingerrors.IsRetryable(err),
	})
}
