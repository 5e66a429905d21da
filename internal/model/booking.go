package model

import "time"

// Stages of the installation booking flow, in order
const (
	StageDeliveryConfirmed = "delivery_confirmed"
	StageDetailsCaptured   = "details_captured"
	// StageScheduling holds the draft while the provider books the slot
	StageScheduling = "scheduling"
	StageScheduled  = "scheduled"
)

// BookingDraft follows a customer through delivery confirmation, booking
// details and finally the scheduler
type BookingDraft struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	OrderNumber string `gorm:"index;not null" json:"order_number"`
	Postcode    string `json:"postcode"`
	Stage       string `gorm:"index;not null" json:"stage"`

	FirstName   string  `json:"first_name,omitempty"`
	LastName    string  `json:"last_name,omitempty"`
	Email       string  `json:"email,omitempty"`
	Phone       string  `json:"phone,omitempty"`
	AddressLine string  `json:"address_line,omitempty"`
	Suburb      string  `json:"suburb,omitempty"`
	City        string  `json:"city,omitempty"`
	Notes       string  `gorm:"type:text" json:"notes,omitempty"`
	HubspotID   *string `json:"-"`

	ProviderBookingUID string     `json:"provider_booking_uid,omitempty"`
	ScheduledStart     *time.Time `json:"scheduled_start,omitzero"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName joins first and last name for external systems
func (b *BookingDraft) FullName() string {
	switch {
	case b.LastName == "":
		return b.FirstName
	case b.FirstName == "":
		return b.LastName
	}

	return b.FirstName + " " + b.LastName
}
