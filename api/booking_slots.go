package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const defaultSlotWindow = 14 * 24 * time.Hour

// BookingSlots lists open slots between start and end (RFC 3339). Without
// them the next two weeks are returned
func (a *API) BookingSlots(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	start := time.Now()
	if s := c.Query("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "start must be an RFC 3339 timestamp",
				"requestID": requestID,
			})
			return
		}
		start = t
	}

	end := start.Add(defaultSlotWindow)
	if s := c.Query("end"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "end must be an RFC 3339 timestamp",
				"requestID": requestID,
			})
			return
		}
		end = t
	}

	slots, err := a.Bookings.Slots(c.Request.Context(), start, end)
	if err != nil {
		a.bookingError(c, err, "Failed to fetch slots")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"slots": slots,
	})
}
