package validators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEmailValidator(t *testing.T) {
	tests := []struct {
		in   string
		want error
	}{
		{"", ErrEmailEmpty},
		{"   ", ErrEmailEmpty},
		{"nope", ErrEmailInvalid},
		{"Jo <jo@example.com>", ErrEmailInvalid},
		{"jo@example.com", nil},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, EmailValidator(tt.in))
		})
	}
}

func TestURLValidator(t *testing.T) {
	tests := []struct {
		in   string
		want error
	}{
		{"", ErrURLEmpty},
		{"example.com", ErrURLInvalid},
		{"ftp://example.com", ErrURLInvalid},
		{"https://", ErrURLInvalid},
		{"https://example.com/pricing?x=1", nil},
		{"http://localhost:3000", nil},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, URLValidator(tt.in))
		})
	}
}

func TestBookingValidators(t *testing.T) {
	assert.NoError(t, OrderNumberValidator("TD-100234"))
	assert.ErrorIs(t, OrderNumberValidator("x"), ErrOrderNumberInvalid)
	assert.ErrorIs(t, OrderNumberValidator("TD 100"), ErrOrderNumberInvalid)

	assert.NoError(t, PostcodeValidator("1010"))
	assert.ErrorIs(t, PostcodeValidator("10101"), ErrPostcodeInvalid)

	assert.NoError(t, PhoneValidator(""))
	assert.NoError(t, PhoneValidator("+64 21 555 0101"))
	assert.ErrorIs(t, PhoneValidator("call me"), ErrPhoneInvalid)

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.NoError(t, SlotStartValidator(now.Add(time.Hour), now))
	assert.ErrorIs(t, SlotStartValidator(now, now), ErrSlotInPast)

	assert.NoError(t, SlotRangeValidator(now, now.Add(7*24*time.Hour)))
	assert.ErrorIs(t, SlotRangeValidator(now, now), ErrSlotRange)
	assert.ErrorIs(t, SlotRangeValidator(now, now.Add(40*24*time.Hour)), ErrSlotRange)
}
