package config

import (
	"testing"

	v "github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetConfig(t *testing.T) {
	t.Helper()

	v.Reset()
	BindEnvs()
	SetDefaults()
	v.Set("security.booking_secret", "secret")

	t.Cleanup(v.Reset)
}

func TestDefaultsAreValid(t *testing.T) {
	resetConfig(t)

	require.NoError(t, Validate())
	assert.False(t, IsDevelopment())
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(){
		"env":             func() { v.Set("app.env", "staging") },
		"log level":       func() { v.Set("app.log_level", "loud") },
		"base url":        func() { v.Set("host.base_url", "/relative") },
		"db driver":       func() { v.Set("db.driver", "mysql") },
		"ssl":             func() { v.Set("host.ssl.enabled", true) },
		"hubspot":         func() { v.Set("hubspot.enabled", true) },
		"mail":            func() { v.Set("mail.enabled", true) },
		"s3 bucket":       func() { v.Set("storage.type", "s3") },
		"storage type":    func() { v.Set("storage.type", "ftp") },
		"r2 account":      func() { v.Set("storage.type", "r2") },
		"turnstile":       func() { v.Set("cloudflare.turnstile.enabled", true) },
		"queue type":      func() { v.Set("queue.type", "kafka") },
		"cache type":      func() { v.Set("cache.type", "disk") },
		"resend limit":    func() { v.Set("verification.resend_daily_limit", 0) },
		"contacts cache":  func() { v.Set("cache.contacts_capacity", 0) },
		"public base url": func() { v.Set("storage.type", "s3"); v.Set("aws.bucket", "b"); v.Set("aws.region", "r") },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			resetConfig(t)
			mutate()
			assert.Error(t, Validate())
		})
	}
}

func TestIsDevelopment(t *testing.T) {
	resetConfig(t)

	v.Set("app.env", "development")
	assert.True(t, IsDevelopment())
}
