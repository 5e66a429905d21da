package api

import (
	"errors"
	"net/http"

	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

type resendBody struct {
	Email string `json:"email" binding:"required"`
}

func (a *API) AnalysisResend(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	var data resendBody
	if err := c.ShouldBindJSON(&data); err != nil {
		bindError(c, err)
		return
	}

	err := a.Verifier.Resend(c.Request.Context(), c.Param("id"), data.Email)
	if err != nil {
		var verr *service.ValidationError

		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     verr.Error(),
				"field":     verr.Field,
				"requestID": requestID,
			})
		case errors.Is(err, service.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":     "Analysis not found",
				"requestID": requestID,
			})
		case errors.Is(err, service.ErrTokenExpired):
			c.JSON(http.StatusGone, gin.H{
				"error":     "Verification link has expired, please request a new analysis",
				"requestID": requestID,
			})
		case errors.Is(err, service.ErrAlreadyVerified):
			c.JSON(http.StatusConflict, gin.H{
				"error":     "Email address is already verified",
				"requestID": requestID,
			})
		case errors.Is(err, service.ErrResendThrottled):
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":     "Too many resend requests, please try again later",
				"requestID": requestID,
			})
		default:
			a.internalError(c, "Failed to resend verification email", err)
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Verification email sent",
	})
}
