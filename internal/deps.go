package internal

import (
	"context"
	"errors"
	"fmt"
	"time"

	awsclient "github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/aws"
	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/calcom"
	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/cloudflare"
	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/db"
	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/hubspot"
	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/internal/service"
	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/pkg/security"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"
)

const taskTimeout = 30 * time.Second

// Deps bundles everything the handlers need
type Deps struct {
	DB          *gorm.DB
	Verifier    *service.Verifier
	Bookings    *service.Bookings
	Screenshots *service.ScreenshotStore
	CRM         *hubspot.Client
	Contacts    *hubspot.ContactCache
	Sessions    *security.BookingSigner
	Queue       service.TaskQueue
	Cleanup     *service.BookingCleanup
	// Redis backs the response cache when cache.type is redis
	Redis *redis.Client
}

// NewDeps builds every dependency from the loaded configuration
func NewDeps(ctx context.Context) (*Deps, error) {
	d := &Deps{}

	conn, err := db.New(viper.GetString("db.driver"), viper.GetString("db.dsn"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}
	d.DB = conn

	d.Contacts = hubspot.NewContactCache(viper.GetInt("cache.contacts_capacity"), viper.GetDuration("cache.contacts_ttl"))

	hubspotToken := ""
	if viper.GetBool("hubspot.enabled") {
		hubspotToken = viper.GetString("hubspot.access_token")
	}

	d.CRM = hubspot.New(hubspot.Options{
		BaseURL:          viper.GetString("hubspot.base_url"),
		AccessToken:      hubspotToken,
		VerifiedProperty: viper.GetString("hubspot.verified_property"),
		Cache:            d.Contacts,
	})

	scheduler := calcom.New(calcom.Options{
		BaseURL:     viper.GetString("calcom.base_url"),
		APIKey:      viper.GetString("calcom.api_key"),
		EventTypeID: viper.GetInt("calcom.event_type_id"),
		TimeZone:    viper.GetString("calcom.time_zone"),
	})
	if !scheduler.Configured() {
		zap.L().Warn("Cal.com is not configured, booking slots will be unavailable")
	}

	switch viper.GetString("queue.type") {
	case "redis":
		d.Queue = service.NewAsynqQueue(asynq.RedisClientOpt{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		}, viper.GetInt("queue.workers"), taskTimeout)
	default:
		d.Queue = service.NewJobQueue(viper.GetInt("queue.workers"), viper.GetInt("queue.size"), taskTimeout)
	}

	if viper.GetString("cache.type") == "redis" {
		d.Redis = redis.NewClient(&redis.Options{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		})
	}

	if d.Screenshots, err = newScreenshotStore(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize screenshot storage, %w", err)
	}

	verifications := db.NewVerificationStore(conn)
	bookings := db.NewBookingStore(conn)

	d.Verifier = service.NewVerifier(verifications, d.CRM, d.Queue, service.VerifierConfig{
		ResendCooldown:   viper.GetDuration("verification.resend_cooldown"),
		ResendDailyLimit: viper.GetInt("verification.resend_daily_limit"),
	})

	d.Bookings = service.NewBookings(bookings, scheduler, d.CRM, d.Queue)
	d.Sessions = security.NewBookingSigner(viper.GetString("security.booking_secret"), viper.GetDuration("booking.session_ttl"))

	handlers := &service.TaskHandlers{
		Records:  verifications,
		Bookings: bookings,
		Mailer:   newMailer(),
		CRM:      d.CRM,
		TimeZone: scheduler.TimeZone(),
	}
	handlers.Register(d.Queue)

	d.Cleanup, err = service.NewBookingCleanup(bookings, viper.GetString("cleanup.schedule"), viper.GetDuration("booking.draft_ttl"))
	if err != nil {
		return nil, err
	}

	return d, nil
}

func newMailer() *service.Mailer {
	var sender service.MailSender

	if viper.GetBool("mail.enabled") {
		sender = gomail.NewDialer(
			viper.GetString("mail.host"),
			viper.GetInt("mail.port"),
			viper.GetString("mail.username"),
			viper.GetString("mail.password"),
		)
	} else {
		zap.L().Warn("Mail delivery is disabled, verification links are only logged")
	}

	return service.NewMailer(
		sender,
		viper.GetString("mail.sender_address"),
		viper.GetString("mail.sender_name"),
		viper.GetString("host.base_url"),
	)
}

func newScreenshotStore(ctx context.Context) (*service.ScreenshotStore, error) {
	var (
		client *awsclient.S3Client
		err    error
	)

	switch viper.GetString("storage.type") {
	case "s3":
		client, err = awsclient.NewS3(ctx, awsclient.Options{
			AccessKey:       viper.GetString("aws.access_key"),
			SecretAccessKey: viper.GetString("aws.secret_access_key"),
			Region:          viper.GetString("aws.region"),
			Bucket:          viper.GetString("aws.bucket"),
		})
	case "r2":
		client, err = cloudflare.NewR2(ctx, cloudflare.Options{
			AccountID:       viper.GetString("cloudflare.account_id"),
			AccessKeyID:     viper.GetString("cloudflare.access_key_id"),
			SecretAccessKey: viper.GetString("cloudflare.secret_access_key"),
			Bucket:          viper.GetString("cloudflare.bucket"),
		})
	default:
		return service.NewScreenshotStore(nil, "", "", 0), nil
	}
	if err != nil {
		return nil, err
	}

	return service.NewScreenshotStore(
		client.Uploader(),
		client.Bucket,
		viper.GetString("storage.public_base_url"),
		viper.GetInt64("storage.max_screenshot_size")<<20,
	), nil
}

// Start launches the background workers
func (d *Deps) Start() error {
	if err := d.Queue.Start(); err != nil {
		return fmt.Errorf("failed to start task queue, %w", err)
	}

	d.Cleanup.Start()
	return nil
}

// Close stops the background workers and releases every connection
func (d *Deps) Close() error {
	var errs []error

	if d.Cleanup != nil {
		d.Cleanup.Stop()
	}

	if d.Queue != nil {
		errs = append(errs, d.Queue.Close())
	}

	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}

	if d.Contacts != nil {
		errs = append(errs, d.Contacts.Close())
	}

	if d.DB != nil {
		errs = append(errs, db.Close(d.DB))
	}

	return errors.Join(errs...)
}
