package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/hubspot"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	TaskVerificationMail    = "email:verification"
	TaskCRMEmailVerified    = "crm:email_verified"
	TaskBookingConfirmation = "email:booking_confirmation"
)

type verificationMailPayload struct {
	RecordID string `json:"record_id"`
}

type crmVerifiedPayload struct {
	ContactID string `json:"contact_id"`
	RecordID  string `json:"record_id"`
}

type bookingMailPayload struct {
	BookingID string `json:"booking_id"`
}

// TaskHandlers runs the background side of the request flows. Any field
// may be nil, the tasks that need it are then dropped with a log line
type TaskHandlers struct {
	Records  VerificationStore
	Bookings BookingStore
	Mailer   *Mailer
	CRM      CRM
	TimeZone string

	now func() time.Time
}

// Register installs every task handler on q
func (h *TaskHandlers) Register(q TaskQueue) {
	q.Handle(TaskVerificationMail, h.verificationMail)
	q.Handle(TaskCRMEmailVerified, h.crmEmailVerified)
	q.Handle(TaskBookingConfirmation, h.bookingConfirmation)
}

func (h *TaskHandlers) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}

func (h *TaskHandlers) verificationMail(ctx context.Context, payload []byte) error {
	var p verificationMailPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("failed to decode payload, %w", err)
	}

	if h.Records == nil || h.Mailer == nil {
		zap.L().Warn("Mailer not configured, verification mail dropped", zap.String("record_id", p.RecordID))
		return nil
	}

	rec, err := h.Records.FindByID(ctx, p.RecordID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			zap.L().Warn("Verification record vanished before its mail was sent", zap.String("record_id", p.RecordID))
			return nil
		}
		return fmt.Errorf("failed to look up verification record, %w", err)
	}

	if rec.EmailVerified || rec.Expired(h.clock()) {
		zap.L().Debug("Skipping verification mail", zap.String("record_id", rec.ID))
		return nil
	}

	return h.Mailer.SendVerification(ctx, VerificationMail{
		Email:         rec.Email,
		FirstName:     rec.FirstName,
		Token:         rec.VerificationToken,
		ScreenshotURL: rec.Screenshot,
		ExpiresAt:     rec.TokenExpiresAt,
	})
}

func (h *TaskHandlers) crmEmailVerified(ctx context.Context, payload []byte) error {
	var p crmVerifiedPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("failed to decode payload, %w", err)
	}

	if h.CRM == nil {
		return nil
	}

	err := h.CRM.SetEmailVerified(ctx, p.ContactID, true)
	switch {
	case err == nil:
		zap.L().Debug("CRM contact marked verified", zap.String("contact_id", p.ContactID))
		return nil
	case errors.Is(err, hubspot.ErrDisabled):
		return nil
	case errors.Is(err, hubspot.ErrContactNotFound):
		// Retrying can't bring a deleted contact back
		zap.L().Warn("CRM contact no longer exists",
			zap.String("contact_id", p.ContactID),
			zap.String("record_id", p.RecordID))
		return nil
	default:
		return fmt.Errorf("failed to update CRM contact, %w", err)
	}
}

func (h *TaskHandlers) bookingConfirmation(ctx context.Context, payload []byte) error {
	var p bookingMailPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("failed to decode payload, %w", err)
	}

	if h.Bookings == nil || h.Mailer == nil {
		zap.L().Warn("Mailer not configured, booking confirmation dropped", zap.String("booking_id", p.BookingID))
		return nil
	}

	b, err := h.Bookings.FindByID(ctx, p.BookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			zap.L().Warn("Booking vanished before its confirmation was sent", zap.String("booking_id", p.BookingID))
			return nil
		}
		return fmt.Errorf("failed to look up booking, %w", err)
	}

	return h.Mailer.SendBookingConfirmation(ctx, b, h.TimeZone)
}
