// Package hubspot is a small client for the HubSpot CRM contacts API
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const contactsPath = "/crm/v3/objects/contacts"

var (
	ErrDisabled        = errors.New("hubspot integration is disabled")
	ErrContactNotFound = errors.New("hubspot contact not found")
)

// APIError is returned for any non 2xx answer HubSpot gives
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hubspot responded with status %d: %s", e.Status, e.Body)
}

// Contact holds the properties this site writes. Empty fields are not sent
// so an update never blanks a value HubSpot already has
type Contact struct {
	Email          string
	FirstName      string
	LastName       string
	Phone          string
	Company        string
	Website        string
	Message        string
	LifecycleStage string
}

func (c Contact) properties() map[string]string {
	props := map[string]string{}

	set := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			props[k] = v
		}
	}

	set("email", c.Email)
	set("firstname", c.FirstName)
	set("lastname", c.LastName)
	set("phone", c.Phone)
	set("company", c.Company)
	set("website", c.Website)
	set("message", c.Message)
	set("lifecyclestage", c.LifecycleStage)

	return props
}

type Options struct {
	BaseURL     string
	AccessToken string
	// Contact property mirroring the email verification state
	VerifiedProperty string
	HTTPClient       *http.Client
	Cache            *ContactCache
}

type Client struct {
	baseURL          string
	token            string
	verifiedProperty string
	http             *http.Client
	cache            *ContactCache
}

// New creates a client. A client without access token is disabled and
// answers every call with ErrDisabled
func New(o Options) *Client {
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}

	if o.VerifiedProperty == "" {
		o.VerifiedProperty = "email_verified"
	}

	return &Client{
		baseURL:          strings.TrimRight(o.BaseURL, "/"),
		token:            o.AccessToken,
		verifiedProperty: o.VerifiedProperty,
		http:             o.HTTPClient,
		cache:            o.Cache,
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.token != ""
}

type objectResponse struct {
	ID string `json:"id"`
}

type searchFilter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

type searchFilterGroup struct {
	Filters []searchFilter `json:"filters"`
}

type searchRequest struct {
	FilterGroups []searchFilterGroup `json:"filterGroups"`
	Properties   []string            `json:"properties"`
	Limit        int                 `json:"limit"`
}

type searchResponse struct {
	Total   int              `json:"total"`
	Results []objectResponse `json:"results"`
}

type propertiesBody struct {
	Properties map[string]string `json:"properties"`
}

// SearchContactByEmail returns the ID of the contact with the given email or
// ErrContactNotFound
func (c *Client) SearchContactByEmail(ctx context.Context, email string) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}

	body := searchRequest{
		FilterGroups: []searchFilterGroup{{
			Filters: []searchFilter{{PropertyName: "email", Operator: "EQ", Value: email}},
		}},
		Properties: []string{"email"},
		Limit:      1,
	}

	var res searchResponse
	if err := c.do(ctx, http.MethodPost, contactsPath+"/search", body, &res); err != nil {
		return "", err
	}

	if len(res.Results) == 0 {
		return "", ErrContactNotFound
	}

	return res.Results[0].ID, nil
}

func (c *Client) CreateContact(ctx context.Context, contact Contact) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}

	var res objectResponse
	if err := c.do(ctx, http.MethodPost, contactsPath, propertiesBody{Properties: contact.properties()}, &res); err != nil {
		return "", err
	}

	if res.ID == "" {
		return "", errors.New("hubspot returned a contact without an ID")
	}

	return res.ID, nil
}

// UpdateContact writes props onto an existing contact. A missing contact
// results in ErrContactNotFound
func (c *Client) UpdateContact(ctx context.Context, id string, props map[string]string) error {
	if !c.Enabled() {
		return ErrDisabled
	}

	err := c.do(ctx, http.MethodPatch, contactsPath+"/"+url.PathEscape(id), propertiesBody{Properties: props}, nil)

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		c.cache.InvalidateID(id)
		return ErrContactNotFound
	}

	return err
}

// UpsertContact finds the contact by email, updating it with the given
// properties, or creates it. The resulting contact ID is cached by email
func (c *Client) UpsertContact(ctx context.Context, contact Contact) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}

	if contact.Email == "" {
		return "", errors.New("contact email is required")
	}

	props := contact.properties()

	if id, ok := c.cache.Get(contact.Email); ok {
		err := c.UpdateContact(ctx, id, props)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, ErrContactNotFound) {
			return "", err
		}

		zap.L().Debug("Cached HubSpot contact is gone, looking it up again", zap.String("contact_id", id))
	}

	id, err := c.SearchContactByEmail(ctx, contact.Email)
	switch {
	case err == nil:
		if err := c.UpdateContact(ctx, id, props); err != nil {
			return "", fmt.Errorf("failed to update contact, %w", err)
		}
	case errors.Is(err, ErrContactNotFound):
		id, err = c.CreateContact(ctx, contact)
		if err != nil {
			return "", fmt.Errorf("failed to create contact, %w", err)
		}
	default:
		return "", fmt.Errorf("failed to search contact, %w", err)
	}

	c.cache.Set(contact.Email, id)
	return id, nil
}

// SetEmailVerified mirrors the verification state onto the contact
func (c *Client) SetEmailVerified(ctx context.Context, contactID string, verified bool) error {
	if contactID == "" {
		return errors.New("no contact ID provided")
	}

	return c.UpdateContact(ctx, contactID, map[string]string{
		c.verifiedProperty: fmt.Sprintf("%t", verified),
	})
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
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

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("hubspot request failed, %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read hubspot response, %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode hubspot response, %w", err)
	}

	return nil
}
