package api

import (
	"errors"
	"net/http"

	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/internal/service"
	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type deliveryBody struct {
	OrderNumber       string `json:"orderNumber" binding:"required"`
	Postcode          string `json:"postcode" binding:"required"`
	DeliveryConfirmed bool   `json:"deliveryConfirmed"`
}

// BookingDelivery is the first step of the installation flow. It creates the
// draft and hands out the session cookie the later steps require
func (a *API) BookingDelivery(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	var data deliveryBody
	if err := c.ShouldBindJSON(&data); err != nil {
		bindError(c, err)
		return
	}

	draft, err := a.Bookings.ConfirmDelivery(c.Request.Context(), service.DeliveryConfirmation{
		OrderNumber: data.OrderNumber,
		Postcode:    data.Postcode,
		Delivered:   data.DeliveryConfirmed,
	})
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     verr.Err.Error(),
				"field":     verr.Field,
				"requestID": requestID,
			})
			return
		}

		a.internalError(c, "Failed to create booking draft", err)
		return
	}

	tok, err := a.Sessions.Sign(draft.ID)
	if err != nil {
		a.internalError(c, "Failed to sign booking session", err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.BookingSessionCookie, tok, int(a.Sessions.TTL().Seconds()), "/", "", a.secure, true)

	c.JSON(http.StatusCreated, draft)
}
