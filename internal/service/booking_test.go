package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/calcom"
	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/db"
	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScheduler struct {
	slots    map[string][]calcom.Slot
	err      error
	requests []calcom.BookingRequest
	// onCreate runs inside CreateBooking, before the booking is made
	onCreate func()
}

func (s *fakeScheduler) GetSlots(context.Context, time.Time, time.Time) (map[string][]calcom.Slot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.slots, nil
}

func (s *fakeScheduler) CreateBooking(_ context.Context, r calcom.BookingRequest) (*calcom.Booking, error) {
	if s.onCreate != nil {
		s.onCreate()
	}
	if s.err != nil {
		return nil, s.err
	}
	s.requests = append(s.requests, r)
	return &calcom.Booking{ID: 7, UID: "uid-7", Status: "accepted", Start: r.Start}, nil
}

func (s *fakeScheduler) TimeZone() string { return "Pacific/Auckland" }

type bookingFixture struct {
	b         *Bookings
	scheduler *fakeScheduler
	queue     *recordingQueue
	crm       *fakeCRM
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()

	f := &bookingFixture{
		scheduler: &fakeScheduler{},
		queue:     &recordingQueue{},
		crm:       &fakeCRM{contactID: "900"},
	}
	f.b = NewBookings(db.NewBookingStore(newTestDB(t)), f.scheduler, f.crm, f.queue)
	f.b.now = func() time.Time { return t0 }

	return f
}

var validDetails = BookingDetails{
	FirstName:   "Aroha",
	LastName:    "Ngata",
	Email:       "a@b.co",
	Phone:       "021 555 0101",
	AddressLine: "1 Queen St",
	City:        "Auckland",
}

func TestBookingFlow(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	draft, err := f.b.ConfirmDelivery(ctx, DeliveryConfirmation{OrderNumber: "td-1001", Postcode: "1010", Delivered: true})
	require.NoError(t, err)
	assert.Equal(t, model.StageDeliveryConfirmed, draft.Stage)
	assert.Equal(t, "TD-1001", draft.OrderNumber)

	// Scheduling before the details are in is out of order
	_, err = f.b.Schedule(ctx, draft.ID, t0.Add(48*time.Hour))
	assert.ErrorIs(t, err, ErrStageOrder)

	draft, err = f.b.SaveDetails(ctx, draft.ID, validDetails)
	require.NoError(t, err)
	assert.Equal(t, model.StageDetailsCaptured, draft.Stage)
	require.NotNil(t, draft.HubspotID)
	assert.Equal(t, "900", *draft.HubspotID)

	start := t0.Add(48 * time.Hour)
	draft, err = f.b.Schedule(ctx, draft.ID, start)
	require.NoError(t, err)
	assert.Equal(t, model.StageScheduled, draft.Stage)
	assert.Equal(t, "uid-7", draft.ProviderBookingUID)

	require.Len(t, f.scheduler.requests, 1)
	req := f.scheduler.requests[0]
	assert.Equal(t, "Aroha Ngata", req.Attendee.Name)
	assert.Equal(t, "1 Queen St, Auckland", req.Location)
	assert.Equal(t, draft.ID, req.Metadata["booking_id"])

	assert.Len(t, f.queue.ofType(TaskBookingConfirmation), 1)

	stored, err := f.b.Get(ctx, draft.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ScheduledStart)
	assert.True(t, start.Equal(*stored.ScheduledStart))

	_, err = f.b.Schedule(ctx, draft.ID, start)
	assert.ErrorIs(t, err, ErrStageOrder)

	_, err = f.b.SaveDetails(ctx, draft.ID, validDetails)
	assert.ErrorIs(t, err, ErrStageOrder)
}

func TestConfirmDeliveryValidation(t *testing.T) {
	f := newBookingFixture(t)

	cases := map[string]DeliveryConfirmation{
		"order_number": {OrderNumber: "#1", Postcode: "1010", Delivered: true},
		"postcode":     {OrderNumber: "TD-1001", Postcode: "10", Delivered: true},
		"delivered":    {OrderNumber: "TD-1001", Postcode: "1010"},
	}

	for field, d := range cases {
		_, err := f.b.ConfirmDelivery(context.Background(), d)

		var verr *ValidationError
		require.ErrorAs(t, err, &verr, field)
		assert.Equal(t, field, verr.Field)
	}
}

func TestBookingUnknownDraft(t *testing.T) {
	f := newBookingFixture(t)

	_, err := f.b.SaveDetails(context.Background(), "missing", validDetails)
	assert.ErrorIs(t, err, ErrBookingNotFound)

	_, err = f.b.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestScheduleProviderErrors(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	draft, err := f.b.ConfirmDelivery(ctx, DeliveryConfirmation{OrderNumber: "TD-1001", Postcode: "1010", Delivered: true})
	require.NoError(t, err)
	_, err = f.b.SaveDetails(ctx, draft.ID, validDetails)
	require.NoError(t, err)

	_, err = f.b.Schedule(ctx, draft.ID, t0.Add(-time.Hour))
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	f.scheduler.err = &calcom.APIError{Status: 400, Body: "slot taken"}
	_, err = f.b.Schedule(ctx, draft.ID, t0.Add(time.Hour))
	assert.ErrorIs(t, err, ErrSlotUnavailable)

	f.scheduler.err = &calcom.APIError{Status: 503}
	_, err = f.b.Schedule(ctx, draft.ID, t0.Add(time.Hour))
	assert.ErrorIs(t, err, ErrUpstream)

	stored, err := f.b.Get(ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StageDetailsCaptured, stored.Stage)
	assert.Empty(t, f.queue.ofType(TaskBookingConfirmation))

	f.scheduler.err = nil
	stored, err = f.b.Schedule(ctx, draft.ID, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, model.StageScheduled, stored.Stage)
}

func TestScheduleCallsProviderOnce(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()
	start := t0.Add(48 * time.Hour)

	draft, err := f.b.ConfirmDelivery(ctx, DeliveryConfirmation{OrderNumber: "TD-1001", Postcode: "1010", Delivered: true})
	require.NoError(t, err)
	_, err = f.b.SaveDetails(ctx, draft.ID, validDetails)
	require.NoError(t, err)

	var during, detailsDuring error
	f.scheduler.onCreate = func() {
		_, during = f.b.Schedule(ctx, draft.ID, start)
		_, detailsDuring = f.b.SaveDetails(ctx, draft.ID, validDetails)
	}

	scheduled, err := f.b.Schedule(ctx, draft.ID, start)
	require.NoError(t, err)
	assert.Equal(t, model.StageScheduled, scheduled.Stage)

	assert.ErrorIs(t, during, ErrStageOrder)
	assert.ErrorIs(t, detailsDuring, ErrStageOrder)
	assert.Len(t, f.scheduler.requests, 1)
	assert.Len(t, f.queue.ofType(TaskBookingConfirmation), 1)
}

func TestSlots(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	f.scheduler.slots = map[string][]calcom.Slot{"2026-03-04": {{Start: t0.Add(48 * time.Hour)}}}

	slots, err := f.b.Slots(ctx, t0, t0.Add(7*24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, slots["2026-03-04"], 1)

	_, err = f.b.Slots(ctx, t0, t0.Add(40*24*time.Hour))
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	f.scheduler.err = calcom.ErrNotConfigured
	_, err = f.b.Slots(ctx, t0, t0.Add(24*time.Hour))
	assert.ErrorIs(t, err, ErrUpstream)
	assert.ErrorIs(t, err, calcom.ErrNotConfigured)
}

func TestBookingCleanupRun(t *testing.T) {
	store := db.NewBookingStore(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &model.BookingDraft{ID: "old", OrderNumber: "TD-1", Stage: model.StageDeliveryConfirmed}))

	c, err := NewBookingCleanup(store, "@every 1h", 7*24*time.Hour)
	require.NoError(t, err)

	n, err := c.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	c.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	n, err = c.Run(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = NewBookingCleanup(store, "not a schedule", time.Hour)
	assert.Error(t, err)

	c.Start()
	c.Stop()
}

func TestCRMErrorDoesNotBlockDetails(t *testing.T) {
	f := newBookingFixture(t)
	f.crm.upsertErr = errors.New("hubspot down")
	ctx := context.Background()

	draft, err := f.b.ConfirmDelivery(ctx, DeliveryConfirmation{OrderNumber: "TD-1001", Postcode: "1010", Delivered: true})
	require.NoError(t, err)

	draft, err = f.b.SaveDetails(ctx, draft.ID, validDetails)
	require.NoError(t, err)
	assert.Nil(t, draft.HubspotID)
}
