// Package calcom talks to the Cal.com v2 API, the scheduling provider behind
// the installation booking flow
package calcom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	slotsAPIVersion    = "2024-09-04"
	bookingsAPIVersion = "2024-08-13"
)

var ErrNotConfigured = errors.New("scheduling provider is not configured")

// APIError is returned for any non 2xx answer
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cal.com responded with status %d: %s", e.Status, e.Body)
}

type Options struct {
	BaseURL     string
	APIKey      string
	EventTypeID int
	TimeZone    string
	HTTPClient  *http.Client
}

type Client struct {
	baseURL     string
	apiKey      string
	eventTypeID int
	timeZone    string
	http        *http.Client
}

func New(o Options) *Client {
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}

	if o.TimeZone == "" {
		o.TimeZone = "UTC"
	}

	return &Client{
		baseURL:     strings.TrimRight(o.BaseURL, "/"),
		apiKey:      o.APIKey,
		eventTypeID: o.EventTypeID,
		timeZone:    o.TimeZone,
		http:        o.HTTPClient,
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.apiKey != "" && c.eventTypeID > 0
}

func (c *Client) TimeZone() string {
	return c.timeZone
}

type Slot struct {
	Start time.Time `json:"start"`
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// GetSlots returns the open slots between start and end, keyed by date
// (YYYY-MM-DD) in the client's time zone
func (c *Client) GetSlots(ctx context.Context, start, end time.Time) (map[string][]Slot, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	q := url.Values{}
	q.Set("eventTypeId", strconv.Itoa(c.eventTypeID))
	q.Set("start", start.UTC().Format(time.RFC3339))
	q.Set("end", end.UTC().Format(time.RFC3339))
	q.Set("timeZone", c.timeZone)

	var slots map[string][]Slot
	if err := c.do(ctx, http.MethodGet, "/v2/slots?"+q.Encode(), slotsAPIVersion, nil, &slots); err != nil {
		return nil, err
	}

	if slots == nil {
		slots = map[string][]Slot{}
	}

	return slots, nil
}

type Attendee struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	TimeZone    string `json:"timeZone"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

type BookingRequest struct {
	Start    time.Time
	Attendee Attendee
	Location string
	Metadata map[string]string
}

type bookingBody struct {
	Start       string            `json:"start"`
	EventTypeID int               `json:"eventTypeId"`
	Attendee    Attendee          `json:"attendee"`
	Location    string            `json:"location,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type Booking struct {
	ID     int       `json:"id"`
	UID    string    `json:"uid"`
	Status string    `json:"status"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
}

func (c *Client) CreateBooking(ctx context.Context, r BookingRequest) (*Booking, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	if r.Attendee.TimeZone == "" {
		r.Attendee.TimeZone = c.timeZone
	}

	body := bookingBody{
		Start:       r.Start.UTC().Format(time.RFC3339),
		EventTypeID: c.eventTypeID,
		Attendee:    r.Attendee,
		Location:    r.Location,
		Metadata:    r.Metadata,
	}

	var b Booking
	if err := c.do(ctx, http.MethodPost, "/v2/bookings", bookingsAPIVersion, body, &b); err != nil {
		return nil, err
	}

	if b.UID == "" {
		return nil, errors.New("cal.com returned a booking without uid")
	}

	return &b, nil
}

func (c *Client) do(ctx context.Context, method, path, version string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("cal-api-version", version)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cal.com request failed, %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read cal.com response, %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return fmt.Errorf("failed to decode cal.com response, %w", err)
	}

	if env.Status != "success" {
		return &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode cal.com data, %w", err)
	}

	return nil
}
