package validators

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

var (
	ErrOrderNumberInvalid = errors.New("order number must be 4 to 20 letters, digits or dashes")
	ErrPostcodeInvalid    = errors.New("postcode must be 4 digits")
	ErrPhoneInvalid       = errors.New("invalid phone number provided")
	ErrSlotInPast         = errors.New("appointment start must be in the future")
	ErrSlotRange          = errors.New("slot range must end after it starts and span at most 31 days")
)

var (
	orderNumberRe = regexp.MustCompile(`^[A-Za-z0-9-]{4,20}$`)
	postcodeRe    = regexp.MustCompile(`^[0-9]{4}$`)
	phoneRe       = regexp.MustCompile(`^\+?[0-9 ()-]{7,20}$`)
)

const maxSlotRange = 31 * 24 * time.Hour

func OrderNumberValidator(s string) error {
	if !orderNumberRe.MatchString(strings.TrimSpace(s)) {
		return ErrOrderNumberInvalid
	}

	return nil
}

func PostcodeValidator(s string) error {
	if !postcodeRe.MatchString(strings.TrimSpace(s)) {
		return ErrPostcodeInvalid
	}

	return nil
}

// PhoneValidator accepts an empty number, the field is optional
func PhoneValidator(s string) error {
	if s == "" {
		return nil
	}

	if !phoneRe.MatchString(s) {
		return ErrPhoneInvalid
	}

	return nil
}

func SlotStartValidator(start, now time.Time) error {
	if !start.After(now) {
		return ErrSlotInPast
	}

	return nil
}

func SlotRangeValidator(start, end time.Time) error {
	if !end.After(start) || end.Sub(start) > maxSlotRange {
		return ErrSlotRange
	}

	return nil
}
