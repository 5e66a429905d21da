package api

import (
	"errors"
	"net/http"

	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

// Verify redeems the token from the emailed link. The first redemption marks
// the address verified, later ones just return the report again until the
// token expires
func (a *API) Verify(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	report, err := a.Verifier.Redeem(c.Request.Context(), c.Query("token"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingToken):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "No verification token provided",
				"requestID": requestID,
			})
		case errors.Is(err, service.ErrInvalidToken):
			c.JSON(http.StatusNotFound, gin.H{
				"error":     "Verification link is invalid",
				"requestID": requestID,
			})
		case errors.Is(err, service.ErrTokenExpired):
			c.JSON(http.StatusGone, gin.H{
				"error":     "Verification link has expired, please request a new analysis",
				"requestID": requestID,
			})
		default:
			a.internalError(c, "Failed to redeem verification token", err)
		}
		return
	}

	c.JSON(http.StatusOK, report)
}
