package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type scheduleBody struct {
	Start time.Time `json:"start" binding:"required"`
}

func (a *API) BookingSchedule(c *gin.Context) {
	var data scheduleBody
	if err := c.ShouldBindJSON(&data); err != nil {
		bindError(c, err)
		return
	}

	draft, err := a.Bookings.Schedule(c.Request.Context(), c.GetString("bookingID"), data.Start)
	if err != nil {
		a.bookingError(c, err, "Failed to schedule booking")
		return
	}

	c.JSON(http.StatusOK, draft)
}

func (a *API) BookingCurrent(c *gin.Context) {
	draft, err := a.Bookings.Get(c.Request.Context(), c.GetString("bookingID"))
	if err != nil {
		a.bookingError(c, err, "Failed to fetch booking")
		return
	}

	c.JSON(http.StatusOK, draft)
}

// bookingError maps the booking flow errors to responses
func (a *API) bookingError(c *gin.Context, err error, msg string) {
	requestID := c.GetString("requestID")

	var verr *service.ValidationError

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     verr.Err.Error(),
			"field":     verr.Field,
			"requestID": requestID,
		})
	case errors.Is(err, service.ErrBookingNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Booking not found, please start again",
			"requestID": requestID,
		})
	case errors.Is(err, service.ErrStageOrder):
		c.JSON(http.StatusConflict, gin.H{
			"error":     "This step can't be completed yet, please go back a step",
			"requestID": requestID,
		})
	case errors.Is(err, service.ErrSlotUnavailable):
		c.JSON(http.StatusConflict, gin.H{
			"error":     "The selected time is no longer available, please pick another",
			"requestID": requestID,
		})
	case errors.Is(err, service.ErrUpstream):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     "Scheduling is temporarily unavailable, please try again later",
			"requestID": requestID,
		})

		zap.L().Error(msg, zap.Error(err), zap.String("requestID", requestID))
	default:
		a.internalError(c, msg, err)
	}
}
