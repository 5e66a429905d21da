package middleware

import (
	"net/http"

	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/pkg/security"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BookingSessionCookie holds the signed booking draft ID between the steps of
// the installation booking flow
const BookingSessionCookie = "booking_session"

// NewBookingSessionMiddleware rejects requests without a valid booking
// session and sets bookingID for the handlers that follow
func NewBookingSessionMiddleware(signer *security.BookingSigner) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetString("requestID")

		tokenStr, err := c.Cookie(BookingSessionCookie)
		if err != nil || tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "No booking in progress, please confirm your delivery first",
				"requestID": requestID,
			})
			return
		}

		bookingID, err := signer.Parse(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "Booking session expired, please start again",
				"requestID": requestID,
			})

			zap.L().Debug("Rejected booking session", zap.Error(err), zap.String("requestID", requestID))
			return
		}

		c.Set("bookingID", bookingID)
		c.Next()
	}
}
