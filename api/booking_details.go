package api

import (
	"net/http"

	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

type detailsBody struct {
	FirstName   string `json:"firstName" binding:"required,max=100"`
	LastName    string `json:"lastName" binding:"max=100"`
	Email       string `json:"email" binding:"required"`
	Phone       string `json:"phone" binding:"max=32"`
	AddressLine string `json:"addressLine" binding:"required,max=200"`
	Suburb      string `json:"suburb" binding:"max=100"`
	City        string `json:"city" binding:"max=100"`
	Notes       string `json:"notes" binding:"max=2000"`
}

func (a *API) BookingDetails(c *gin.Context) {
	var data detailsBody
	if err := c.ShouldBindJSON(&data); err != nil {
		bindError(c, err)
		return
	}

	draft, err := a.Bookings.SaveDetails(c.Request.Context(), c.GetString("bookingID"), service.BookingDetails{
		FirstName:   data.FirstName,
		LastName:    data.LastName,
		Email:       data.Email,
		Phone:       data.Phone,
		AddressLine: data.AddressLine,
		Suburb:      data.Suburb,
		City:        data.City,
		Notes:       data.Notes,
	})
	if err != nil {
		a.bookingError(c, err, "Failed to save booking details")
		return
	}

	c.JSON(http.StatusOK, draft)
}
