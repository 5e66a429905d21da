package api

import (
	"net/http"

	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// internalError answers 500. The cause is logged and only shown to the
// client in development
func (a *API) internalError(c *gin.Context, msg string, err error) {
	requestID := c.GetString("requestID")

	body := gin.H{
		"error":     "Internal server error",
		"requestID": requestID,
	}

	if a.dev {
		body["detail"] = err.Error()
	}

	c.JSON(http.StatusInternalServerError, body)

	zap.L().Error(msg, zap.Error(err), zap.String("requestID", requestID))
}

// bindError answers a body that couldn't be decoded
func bindError(c *gin.Context, err error) {
	requestID := c.GetString("requestID")

	if middleware.IsBodyTooLarge(err) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":     "Request body size exceeds limit",
			"requestID": requestID,
		})
		return
	}

	zap.L().Debug("Can't bind request body", zap.Error(err), zap.String("requestID", requestID))

	c.JSON(http.StatusBadRequest, gin.H{
		"error":     "Invalid request body",
		"requestID": requestID,
	})
}
