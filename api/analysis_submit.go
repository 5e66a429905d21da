package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/internal/service"
	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/pkg/util"

	"github.com/gin-gonic/gin"
)

type analysisBody struct {
	URL            string `json:"url" binding:"required"`
	Report         string `json:"report" binding:"required"`
	Email          string `json:"email" binding:"required"`
	FirstName      string `json:"firstName" binding:"max=100"`
	ScreenshotURL  string `json:"screenshotUrl"`
	ScreenshotData string `json:"screenshotData"`
}

func (a *API) AnalysisSubmit(c *gin.Context) {
	requestID := c.MustGet("requestID").(string)

	var data analysisBody
	if err := c.ShouldBindJSON(&data); err != nil {
		bindError(c, err)
		return
	}

	screenshot := data.ScreenshotURL

	if data.ScreenshotData != "" {
		if !a.Screenshots.Enabled() {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "Screenshot uploads are not enabled",
				"requestID": requestID,
			})
			return
		}

		key, err := util.NewID(16)
		if err != nil {
			a.internalError(c, "Failed to generate screenshot key", err)
			return
		}

		screenshot, err = a.Screenshots.Upload(c.Request.Context(), key, data.ScreenshotData)
		if err != nil {
			if errors.Is(err, service.ErrScreenshotInvalid) || errors.Is(err, service.ErrScreenshotTooLarge) {
				c.JSON(http.StatusBadRequest, gin.H{
					"error":     err.Error(),
					"requestID": requestID,
				})
				return
			}

			a.internalError(c, "Failed to upload screenshot", err)
			return
		}
	}

	rec, err := a.Verifier.Submit(c.Request.Context(), service.Submission{
		URL:        data.URL,
		Report:     data.Report,
		Screenshot: screenshot,
		Email:      data.Email,
		FirstName:  data.FirstName,
	})
	if err != nil {
		var verr *service.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     verr.Error(),
				"field":     verr.Field,
				"requestID": requestID,
			})
			return
		}

		a.internalError(c, "Failed to store analysis", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":             rec.ID,
		"tokenExpiresAt": rec.TokenExpiresAt.UTC().Format(time.RFC3339),
	})
}
