// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
)

var (
	configPath = pflag.String("config", ".", "Directory containing config.toml")

	validEnvs         = []string{"development", "production"}
	validLogLevels    = []string{"debug", "info", "warn", "error", "fatal"}
	validDBDrivers    = []string{"sqlite", "postgres"}
	validStorageTypes = []string{"none", "s3", "r2"}
	validQueueTypes   = []string{"memory", "redis"}
	validCacheTypes   = []string{"memory", "redis"}
)

func genSecret() string {
	b := make([]byte, 64)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() error {
	pflag.Parse()
	v.BindPFlags(pflag.CommandLine)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(*configPath)

	v.AutomaticEnv()

	BindEnvs()
	SetDefaults()

	// The config file is optional, containers are usually configured
	// through the environment only
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(v.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file, %w", err)
		}
	}

	if v.GetString("security.booking_secret") == "" {
		fmt.Println("WARNING: You haven't set a booking session secret, so it has been generated for you. Please set it as an environment variable or in the config.toml file.\nYour random secret:\n\n" + genSecret() + "\n\nPaste it into your config.toml file.")
		os.Exit(0)
	}

	return Validate()
}

// BindEnvs maps every config key to its environment variable
func BindEnvs() {
	v.BindEnv("app.env", "APP_ENV")
	v.BindEnv("app.log_level", "APP_LOG_LEVEL")

	v.BindEnv("host.port", "HOST_PORT")
	v.BindEnv("host.base_url", "HOST_BASE_URL")
	v.BindEnv("host.cors_origins", "HOST_CORS")

	v.BindEnv("host.ssl.enabled", "HOST_SSL_ENABLED")
	v.BindEnv("host.ssl.certificate_path", "HOST_SSL_CERTIFICATE_PATH")
	v.BindEnv("host.ssl.certificate_key_path", "HOST_SSL_CERTIFICATE_KEY_PATH")

	v.BindEnv("db.driver", "DB_DRIVER")
	v.BindEnv("db.dsn", "DB_DSN")

	v.BindEnv("verification.resend_cooldown", "VERIFICATION_RESEND_COOLDOWN")
	v.BindEnv("verification.resend_daily_limit", "VERIFICATION_RESEND_DAILY_LIMIT")

	v.BindEnv("security.rate_limit", "SECURITY_RATE_LIMIT")
	v.BindEnv("security.booking_secret", "SECURITY_BOOKING_SECRET")

	v.BindEnv("booking.session_ttl", "BOOKING_SESSION_TTL")
	v.BindEnv("booking.draft_ttl", "BOOKING_DRAFT_TTL")
	v.BindEnv("cleanup.schedule", "CLEANUP_SCHEDULE")

	v.BindEnv("hubspot.enabled", "HUBSPOT_ENABLED")
	v.BindEnv("hubspot.access_token", "HUBSPOT_ACCESS_TOKEN")
	v.BindEnv("hubspot.base_url", "HUBSPOT_BASE_URL")
	v.BindEnv("hubspot.verified_property", "HUBSPOT_VERIFIED_PROPERTY")

	v.BindEnv("mail.enabled", "MAIL_ENABLED")
	v.BindEnv("mail.host", "MAIL_HOST")
	v.BindEnv("mail.port", "MAIL_PORT")
	v.BindEnv("mail.username", "MAIL_USERNAME")
	v.BindEnv("mail.password", "MAIL_PASSWORD")
	v.BindEnv("mail.sender_address", "MAIL_SENDER_ADDRESS")
	v.BindEnv("mail.sender_name", "MAIL_SENDER_NAME")

	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.public_base_url", "STORAGE_PUBLIC_BASE_URL")
	v.BindEnv("storage.max_screenshot_size", "STORAGE_MAX_SCREENSHOT_SIZE")

	v.BindEnv("aws.access_key", "AWS_ACCESS_KEY")
	v.BindEnv("aws.secret_access_key", "AWS_SECRET_ACCESS_KEY")
	v.BindEnv("aws.region", "AWS_REGION")
	v.BindEnv("aws.bucket", "AWS_BUCKET")

	v.BindEnv("cloudflare.account_id", "CLOUDFLARE_ACCOUNT_ID")
	v.BindEnv("cloudflare.access_key_id", "CLOUDFLARE_ACCESS_KEY_ID")
	v.BindEnv("cloudflare.secret_access_key", "CLOUDFLARE_SECRET_ACCESS_KEY")
	v.BindEnv("cloudflare.bucket", "CLOUDFLARE_BUCKET")

	v.BindEnv("cloudflare.turnstile.enabled", "CLOUDFLARE_TURNSTILE_ENABLED")
	v.BindEnv("cloudflare.turnstile.secret_token", "CLOUDFLARE_TURNSTILE_SECRET_TOKEN")

	v.BindEnv("calcom.base_url", "CALCOM_BASE_URL")
	v.BindEnv("calcom.api_key", "CALCOM_API_KEY")
	v.BindEnv("calcom.event_type_id", "CALCOM_EVENT_TYPE_ID")
	v.BindEnv("calcom.time_zone", "CALCOM_TIME_ZONE")

	v.BindEnv("queue.type", "QUEUE_TYPE")
	v.BindEnv("queue.workers", "QUEUE_WORKERS")
	v.BindEnv("queue.size", "QUEUE_SIZE")

	v.BindEnv("redis.addr", "REDIS_ADDR")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")

	v.BindEnv("cache.type", "CACHE_TYPE")
	v.BindEnv("cache.contacts_capacity", "CACHE_CONTACTS_CAPACITY")
	v.BindEnv("cache.contacts_ttl", "CACHE_CONTACTS_TTL")
}

// SetDefaults sets every default value the application relies on
func SetDefaults() {
	v.SetDefault("app.env", "production")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.base_url", "http://localhost:3000")
	v.SetDefault("host.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("host.ssl.enabled", false)

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "database.db")

	v.SetDefault("verification.resend_cooldown", "60s")
	v.SetDefault("verification.resend_daily_limit", 5)

	v.SetDefault("security.rate_limit", 10)

	v.SetDefault("booking.session_ttl", "2h")
	v.SetDefault("booking.draft_ttl", "168h")
	v.SetDefault("cleanup.schedule", "@every 24h")

	v.SetDefault("hubspot.enabled", false)
	v.SetDefault("hubspot.base_url", "https://api.hubapi.com")
	v.SetDefault("hubspot.verified_property", "email_verified")

	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.port", 587)
	v.SetDefault("mail.sender_name", "Bizbo")

	v.SetDefault("storage.type", "none")
	v.SetDefault("storage.max_screenshot_size", 5)

	v.SetDefault("cloudflare.turnstile.enabled", false)

	v.SetDefault("calcom.base_url", "https://api.cal.com")
	v.SetDefault("calcom.time_zone", "Pacific/Auckland")

	v.SetDefault("queue.type", "memory")
	v.SetDefault("queue.workers", 4)
	v.SetDefault("queue.size", 256)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.contacts_capacity", 1024)
	v.SetDefault("cache.contacts_ttl", "1h")
}

// Validate checks the loaded configuration for values the app can't run with
func Validate() error {
	if !slices.Contains(validEnvs, v.GetString("app.env")) {
		return errors.New("invalid app environment provided")
	}

	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return errors.New("invalid log level provided")
	}

	if v.GetInt("host.port") <= 0 {
		return errors.New("invalid port provided")
	}

	base, err := url.Parse(v.GetString("host.base_url"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return errors.New("host.base_url must be an absolute URL")
	}

	if v.GetBool("host.ssl.enabled") {
		if v.GetString("host.ssl.certificate_path") == "" {
			return errors.New("no ssl certificate path provided")
		}

		if v.GetString("host.ssl.certificate_key_path") == "" {
			return errors.New("no ssl certificate key path provided")
		}
	}

	if !slices.Contains(validDBDrivers, v.GetString("db.driver")) {
		return errors.New("invalid database driver provided")
	}

	if v.GetString("db.dsn") == "" {
		return errors.New("db.dsn can't be empty")
	}

	if v.GetDuration("verification.resend_cooldown") < 0 {
		return errors.New("verification.resend_cooldown can't be negative")
	}

	if v.GetInt("verification.resend_daily_limit") <= 0 {
		return errors.New("verification.resend_daily_limit must be bigger than 0")
	}

	if v.GetInt("security.rate_limit") <= 0 {
		return errors.New("security.rate_limit must be bigger than 0")
	}

	if v.GetDuration("booking.session_ttl") <= 0 {
		return errors.New("booking.session_ttl must be a positive duration")
	}

	if v.GetDuration("booking.draft_ttl") <= 0 {
		return errors.New("booking.draft_ttl must be a positive duration")
	}

	if v.GetBool("hubspot.enabled") && v.GetString("hubspot.access_token") == "" {
		return errors.New("hubspot access token is missing")
	}

	if v.GetBool("mail.enabled") {
		if v.GetString("mail.host") == "" {
			return errors.New("mail host can't be empty")
		}
		if v.GetString("mail.sender_address") == "" {
			return errors.New("mail sender address can't be empty")
		}
	}

	switch v.GetString("storage.type") {
	case "s3":
		if v.GetString("aws.bucket") == "" {
			return errors.New("bucket can't be empty")
		}
		if v.GetString("aws.region") == "" {
			return errors.New("region can't be empty")
		}
	case "r2":
		if v.GetString("cloudflare.account_id") == "" {
			return errors.New("account id can't be empty")
		}
		if v.GetString("cloudflare.access_key_id") == "" {
			return errors.New("account access id can't be empty")
		}
		if v.GetString("cloudflare.secret_access_key") == "" {
			return errors.New("secret access key can't be empty")
		}
		if v.GetString("cloudflare.bucket") == "" {
			return errors.New("bucket can't be empty")
		}
	}

	if !slices.Contains(validStorageTypes, v.GetString("storage.type")) {
		return errors.New("invalid storage type provided")
	}

	if v.GetString("storage.type") != "none" && v.GetString("storage.public_base_url") == "" {
		return errors.New("storage.public_base_url can't be empty")
	}

	if v.GetInt("storage.max_screenshot_size") <= 0 {
		return errors.New("storage.max_screenshot_size must be bigger than 0")
	}

	if v.GetBool("cloudflare.turnstile.enabled") && v.GetString("cloudflare.turnstile.secret_token") == "" {
		return errors.New("turnstile secret token is missing")
	}

	if !slices.Contains(validQueueTypes, v.GetString("queue.type")) {
		return errors.New("invalid queue type provided")
	}

	if v.GetInt("queue.workers") <= 0 {
		return errors.New("queue.workers must be bigger than 0")
	}

	if !slices.Contains(validCacheTypes, v.GetString("cache.type")) {
		return errors.New("invalid cache type provided")
	}

	if v.GetInt("cache.contacts_capacity") <= 0 {
		return errors.New("cache.contacts_capacity must be bigger than 0")
	}

	return nil
}

// IsDevelopment reports whether the app runs in a development environment.
// Internal error details are only exposed to clients when this is true
func IsDevelopment() bool {
	return strings.EqualFold(v.GetString("app.env"), "development")
}
