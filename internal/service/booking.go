package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/calcom"
	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/hubspot"
	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/internal/model"
	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/pkg/validators"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrBookingNotFound = errors.New("booking not found")
	ErrStageOrder      = errors.New("booking step is out of order")
	ErrSlotUnavailable = errors.New("the selected time is no longer available")
	ErrUpstream        = errors.New("scheduling provider is unavailable")
)

// BookingStore is implemented by db.BookingStore. Lookups that find nothing
// return gorm.ErrRecordNotFound
type BookingStore interface {
	Create(ctx context.Context, b *model.BookingDraft) error
	FindByID(ctx context.Context, id string) (*model.BookingDraft, error)
	Save(ctx context.Context, b *model.BookingDraft) error
	Advance(ctx context.Context, id, from, to string) (bool, error)
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

// Scheduler is implemented by *calcom.Client
type Scheduler interface {
	GetSlots(ctx context.Context, start, end time.Time) (map[string][]calcom.Slot, error)
	CreateBooking(ctx context.Context, r calcom.BookingRequest) (*calcom.Booking, error)
	TimeZone() string
}

// Bookings drives the installation booking flow
type Bookings struct {
	store      BookingStore
	scheduler  Scheduler
	crm        CRM
	queue      TaskQueue
	crmTimeout time.Duration
	now        func() time.Time
}

func NewBookings(store BookingStore, scheduler Scheduler, crm CRM, queue TaskQueue) *Bookings {
	return &Bookings{
		store:      store,
		scheduler:  scheduler,
		crm:        crm,
		queue:      queue,
		crmTimeout: defaultCRMTimout,
		now:        time.Now,
	}
}

type DeliveryConfirmation struct {
	OrderNumber string
	Postcode    string
	Delivered   bool
}

// ConfirmDelivery starts a new draft once the customer confirms the goods
// have arrived
func (s *Bookings) ConfirmDelivery(ctx context.Context, d DeliveryConfirmation) (*model.BookingDraft, error) {
	if err := validators.OrderNumberValidator(d.OrderNumber); err != nil {
		return nil, &ValidationError{Field: "order_number", Err: err}
	}

	if err := validators.PostcodeValidator(d.Postcode); err != nil {
		return nil, &ValidationError{Field: "postcode", Err: err}
	}

	if !d.Delivered {
		return nil, &ValidationError{Field: "delivered", Err: errors.New("installation can only be booked once the order is delivered")}
	}

	b := &model.BookingDraft{
		ID:          uuid.NewString(),
		OrderNumber: strings.ToUpper(strings.TrimSpace(d.OrderNumber)),
		Postcode:    strings.TrimSpace(d.Postcode),
		Stage:       model.StageDeliveryConfirmed,
	}

	if err := s.store.Create(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to create booking draft, %w", err)
	}

	return b, nil
}

type BookingDetails struct {
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	AddressLine string
	Suburb      string
	City        string
	Notes       string
}

func (d *BookingDetails) validate() error {
	d.FirstName = strings.TrimSpace(d.FirstName)
	d.LastName = strings.TrimSpace(d.LastName)
	d.Email = strings.TrimSpace(d.Email)
	d.Phone = strings.TrimSpace(d.Phone)
	d.AddressLine = strings.TrimSpace(d.AddressLine)

	if d.FirstName == "" {
		return &ValidationError{Field: "first_name", Err: errors.New("no first name provided")}
	}

	if err := validators.EmailValidator(d.Email); err != nil {
		return &ValidationError{Field: "email", Err: err}
	}

	if err := validators.PhoneValidator(d.Phone); err != nil {
		return &ValidationError{Field: "phone", Err: err}
	}

	if d.AddressLine == "" {
		return &ValidationError{Field: "address_line", Err: errors.New("no installation address provided")}
	}

	return nil
}

// Get loads the draft behind a booking session
func (s *Bookings) Get(ctx context.Context, id string) (*model.BookingDraft, error) {
	b, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to look up booking, %w", err)
	}

	return b, nil
}

// SaveDetails stores the contact and address details. It may be repeated
// until the appointment is scheduled
func (s *Bookings) SaveDetails(ctx context.Context, id string, d BookingDetails) (*model.BookingDraft, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}

	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if b.Stage == model.StageScheduling || b.Stage == model.StageScheduled {
		return nil, ErrStageOrder
	}

	b.FirstName = d.FirstName
	b.LastName = d.LastName
	b.Email = d.Email
	b.Phone = d.Phone
	b.AddressLine = d.AddressLine
	b.Suburb = strings.TrimSpace(d.Suburb)
	b.City = strings.TrimSpace(d.City)
	b.Notes = strings.TrimSpace(d.Notes)
	b.Stage = model.StageDetailsCaptured

	if id := s.syncContact(ctx, b); id != nil {
		b.HubspotID = id
	}

	if err := s.store.Save(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to save booking details, %w", err)
	}

	return b, nil
}

func (s *Bookings) syncContact(ctx context.Context, b *model.BookingDraft) *string {
	if s.crm == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.crmTimeout)
	defer cancel()

	id, err := s.crm.UpsertContact(ctx, hubspot.Contact{
		Email:     b.Email,
		FirstName: b.FirstName,
		LastName:  b.LastName,
		Phone:     b.Phone,
	})
	if err != nil {
		if !errors.Is(err, hubspot.ErrDisabled) {
			zap.L().Warn("Failed to sync booking contact to CRM", zap.String("booking_id", b.ID), zap.Error(err))
		}
		return nil
	}

	return &id
}

// Slots lists the open appointment slots in [start, end)
func (s *Bookings) Slots(ctx context.Context, start, end time.Time) (map[string][]calcom.Slot, error) {
	if err := validators.SlotRangeValidator(start, end); err != nil {
		return nil, &ValidationError{Field: "end", Err: err}
	}

	slots, err := s.scheduler.GetSlots(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w, %w", ErrUpstream, err)
	}

	return slots, nil
}

// Schedule books the appointment with the provider and finishes the draft
func (s *Bookings) Schedule(ctx context.Context, id string, start time.Time) (*model.BookingDraft, error) {
	if err := validators.SlotStartValidator(start, s.now()); err != nil {
		return nil, &ValidationError{Field: "start", Err: err}
	}

	b, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if b.Stage != model.StageDetailsCaptured {
		return nil, ErrStageOrder
	}

	// Only one request gets to call the provider for a draft
	reserved, err := s.store.Advance(ctx, b.ID, model.StageDetailsCaptured, model.StageScheduling)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve booking, %w", err)
	}
	if !reserved {
		return nil, ErrStageOrder
	}

	booking, err := s.scheduler.CreateBooking(ctx, calcom.BookingRequest{
		Start: start,
		Attendee: calcom.Attendee{
			Name:        b.FullName(),
			Email:       b.Email,
			TimeZone:    s.scheduler.TimeZone(),
			PhoneNumber: b.Phone,
		},
		Location: strings.Join(nonEmpty(b.AddressLine, b.Suburb, b.City), ", "),
		Metadata: map[string]string{
			"booking_id":   b.ID,
			"order_number": b.OrderNumber,
		},
	})
	if err != nil {
		s.release(ctx, b.ID)

		var apiErr *calcom.APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
			zap.L().Info("Slot rejected by scheduling provider", zap.String("booking_id", b.ID), zap.Error(err))
			return nil, ErrSlotUnavailable
		}
		return nil, fmt.Errorf("%w, %w", ErrUpstream, err)
	}

	scheduled := booking.Start
	if scheduled.IsZero() {
		scheduled = start
	}

	b.Stage = model.StageScheduled
	b.ProviderBookingUID = booking.UID
	b.ScheduledStart = &scheduled

	if err := s.store.Save(ctx, b); err != nil {
		// The provider booking exists at this point, keep its uid in the logs
		zap.L().Error("Failed to save scheduled booking",
			zap.String("booking_id", b.ID),
			zap.String("provider_uid", booking.UID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to save scheduled booking, %w", err)
	}

	enqueue(ctx, s.queue, TaskBookingConfirmation, bookingMailPayload{BookingID: b.ID})

	return b, nil
}

// release hands a reserved draft back after the provider refused it
func (s *Bookings) release(ctx context.Context, id string) {
	ok, err := s.store.Advance(context.WithoutCancel(ctx), id, model.StageScheduling, model.StageDetailsCaptured)
	if err != nil || !ok {
		zap.L().Error("Failed to release booking reservation", zap.String("booking_id", id), zap.Bool("released", ok), zap.Error(err))
	}
}

func nonEmpty(parts ...string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
