package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/hubspot"
	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/pkg/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type contactBody struct {
	Email     string `json:"email" binding:"required"`
	FirstName string `json:"firstName" binding:"max=100"`
	LastName  string `json:"lastName" binding:"max=100"`
	Phone     string `json:"phone" binding:"max=32"`
	Company   string `json:"company" binding:"max=200"`
	Message   string `json:"message" binding:"required,max=5000"`
}

// Contact captures a lead from the contact form straight into the CRM
func (a *API) Contact(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	var data contactBody
	if err := c.ShouldBindJSON(&data); err != nil {
		bindError(c, err)
		return
	}

	data.Email = strings.TrimSpace(data.Email)

	if err := validators.EmailValidator(data.Email); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"field":     "email",
			"requestID": requestID,
		})
		return
	}

	if err := validators.PhoneValidator(strings.TrimSpace(data.Phone)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"field":     "phone",
			"requestID": requestID,
		})
		return
	}

	_, err := a.CRM.UpsertContact(c.Request.Context(), hubspot.Contact{
		Email:     data.Email,
		FirstName: strings.TrimSpace(data.FirstName),
		LastName:  strings.TrimSpace(data.LastName),
		Phone:     strings.TrimSpace(data.Phone),
		Company:   strings.TrimSpace(data.Company),
		Message:   strings.TrimSpace(data.Message),
	})
	if err != nil {
		if errors.Is(err, hubspot.ErrDisabled) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":     "The contact form is currently unavailable",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusBadGateway, gin.H{
			"error":     "Failed to submit your message, please try again later",
			"requestID": requestID,
		})

		zap.L().Error("Failed to upsert contact", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Thanks, we'll be in touch soon",
	})
}
