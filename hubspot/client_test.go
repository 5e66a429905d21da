package hubspot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHubSpot keeps contacts in memory and serves the endpoints the client uses
type fakeHubSpot struct {
	mu       sync.Mutex
	contacts map[string]map[string]string
	nextID   int
	calls    []string
}

func newFakeHubSpot(t *testing.T) (*fakeHubSpot, *httptest.Server) {
	f := &fakeHubSpot{contacts: map[string]map[string]string{}, nextID: 100}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		f.calls = append(f.calls, r.Method+" "+r.URL.Path)

		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		switch {
		case r.Method == http.MethodPost && r.URL.Path == contactsPath+"/search":
			var req searchRequest
			json.NewDecoder(r.Body).Decode(&req)
			email := req.FilterGroups[0].Filters[0].Value

			res := searchResponse{}
			for id, props := range f.contacts {
				if props["email"] == email {
					res.Results = append(res.Results, objectResponse{ID: id})
				}
			}
			res.Total = len(res.Results)
			json.NewEncoder(w).Encode(res)

		case r.Method == http.MethodPost && r.URL.Path == contactsPath:
			var body propertiesBody
			json.NewDecoder(r.Body).Decode(&body)
			f.nextID++
			id := strconv.Itoa(f.nextID)
			f.contacts[id] = body.Properties
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(objectResponse{ID: id})

		case r.Method == http.MethodPatch && strings.HasPrefix(r.URL.Path, contactsPath+"/"):
			id := strings.TrimPrefix(r.URL.Path, contactsPath+"/")
			props, ok := f.contacts[id]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"status":"error","message":"resource not found"}`))
				return
			}
			var body propertiesBody
			json.NewDecoder(r.Body).Decode(&body)
			for k, v := range body.Properties {
				props[k] = v
			}
			json.NewEncoder(w).Encode(objectResponse{ID: id})

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)

	return f, srv
}

func newTestClient(srv *httptest.Server, cache *ContactCache) *Client {
	return New(Options{
		BaseURL:     srv.URL,
		AccessToken: "test-token",
		Cache:       cache,
	})
}

func TestUpsertContactCreatesThenUpdates(t *testing.T) {
	f, srv := newFakeHubSpot(t)
	cache := NewContactCache(10, time.Hour)
	defer cache.Close()

	c := newTestClient(srv, cache)
	ctx := context.Background()

	id, err := c.UpsertContact(ctx, Contact{Email: "jo@example.com", FirstName: "Jo", Website: "https://jo.dev"})
	require.NoError(t, err)
	assert.Equal(t, "101", id)
	assert.Equal(t, "Jo", f.contacts[id]["firstname"])

	cached, ok := cache.Get("JO@example.com")
	require.True(t, ok)
	assert.Equal(t, id, cached)

	again, err := c.UpsertContact(ctx, Contact{Email: "jo@example.com", Phone: "021 555 0101"})
	require.NoError(t, err)
	assert.Equal(t, id, again)
	assert.Equal(t, "021 555 0101", f.contacts[id]["phone"])
	assert.Equal(t, "Jo", f.contacts[id]["firstname"], "empty fields must not blank existing values")
	assert.Len(t, f.contacts, 1)
}

func TestUpsertContactFindsExistingContact(t *testing.T) {
	f, srv := newFakeHubSpot(t)
	f.contacts["55"] = map[string]string{"email": "sam@example.com"}

	c := newTestClient(srv, nil)

	id, err := c.UpsertContact(context.Background(), Contact{Email: "sam@example.com", Company: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "55", id)
	assert.Equal(t, "Acme", f.contacts["55"]["company"])
}

func TestUpsertContactRecoversFromStaleCache(t *testing.T) {
	f, srv := newFakeHubSpot(t)
	cache := NewContactCache(10, time.Hour)
	defer cache.Close()

	cache.Set("jo@example.com", "999")

	c := newTestClient(srv, cache)

	id, err := c.UpsertContact(context.Background(), Contact{Email: "jo@example.com"})
	require.NoError(t, err)
	assert.NotEqual(t, "999", id)
	assert.Contains(t, f.contacts, id)

	cached, _ := cache.Get("jo@example.com")
	assert.Equal(t, id, cached)
}

func TestSetEmailVerified(t *testing.T) {
	f, srv := newFakeHubSpot(t)
	f.contacts["7"] = map[string]string{"email": "a@example.com"}

	c := newTestClient(srv, nil)

	require.NoError(t, c.SetEmailVerified(context.Background(), "7", true))
	assert.Equal(t, "true", f.contacts["7"]["email_verified"])

	err := c.SetEmailVerified(context.Background(), "8", true)
	assert.ErrorIs(t, err, ErrContactNotFound)

	assert.Error(t, c.SetEmailVerified(context.Background(), "", true))
}

func TestAPIErrorsSurface(t *testing.T) {
	_, srv := newFakeHubSpot(t)

	c := New(Options{BaseURL: srv.URL, AccessToken: "wrong"})

	_, err := c.SearchContactByEmail(context.Background(), "a@example.com")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestDisabledClient(t *testing.T) {
	c := New(Options{BaseURL: "http://unused"})

	assert.False(t, c.Enabled())

	_, err := c.UpsertContact(context.Background(), Contact{Email: "a@example.com"})
	assert.ErrorIs(t, err, ErrDisabled)
	assert.ErrorIs(t, c.SetEmailVerified(context.Background(), "1", true), ErrDisabled)
}

func TestContactCacheBounded(t *testing.T) {
	cache := NewContactCache(2, time.Hour)
	defer cache.Close()

	cache.Set("a@example.com", "1")
	cache.Set("b@example.com", "2")
	cache.Set("c@example.com", "3")

	assert.LessOrEqual(t, cache.Len(), 2)

	cache.InvalidateID("3")
	_, ok := cache.Get("c@example.com")
	assert.False(t, ok)

	var nilCache *ContactCache
	nilCache.Set("a@example.com", "1")
	_, ok = nilCache.Get("a@example.com")
	assert.False(t, ok)
}
