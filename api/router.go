// Package api contains all endpoints available
package api

import (
	"strings"
	"time"

	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/config"
	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/internal"
	"github.com/bizbo-corp/trade-depot-installation-scheduling-sub001/pkg/middleware"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	gray  = "\x1b[90m"
	reset = "\x1b[0m"
)

type Options struct {
	Development      bool
	CORSOrigins      []string
	RateLimit        int
	Turnstile        *middleware.Turnstile
	SecureCookies    bool
	MaxRequestSize   int64
	SlotsCacheExpiry time.Duration
}

// OptionsFromConfig reads the router options from the loaded configuration
func OptionsFromConfig() Options {
	origins := viper.GetStringSlice("host.cors_origins")
	// HOST_CORS arrives as a single comma separated string
	if len(origins) == 1 && strings.Contains(origins[0], ",") {
		origins = strings.Split(origins[0], ",")
	}

	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return Options{
		Development:   config.IsDevelopment(),
		CORSOrigins:   origins,
		RateLimit:     viper.GetInt("security.rate_limit"),
		Turnstile:     middleware.NewTurnstile(viper.GetBool("cloudflare.turnstile.enabled"), viper.GetString("cloudflare.turnstile.secret_token")),
		SecureCookies: viper.GetBool("host.ssl.enabled") || strings.HasPrefix(viper.GetString("host.base_url"), "https://"),
		// base64 screenshots are a third larger than the image itself
		MaxRequestSize: viper.GetInt64("storage.max_screenshot_size")<<20*4/3 + 1<<20,
	}
}

type API struct {
	*internal.Deps

	Router  *gin.Engine
	dev     bool
	secure  bool
	limiter *middleware.RateLimiter
}

func NewRouter(d *internal.Deps, o Options) *API {
	a := &API{
		Deps:   d,
		dev:    o.Development,
		secure: o.SecureCookies,
	}

	if o.RateLimit <= 0 {
		o.RateLimit = 10
	}

	if o.MaxRequestSize <= 0 {
		o.MaxRequestSize = 8 << 20
	}

	if o.SlotsCacheExpiry <= 0 {
		o.SlotsCacheExpiry = time.Minute
	}

	if len(o.CORSOrigins) == 0 {
		o.CORSOrigins = []string{"http://localhost:3000"}
	}

	if o.Turnstile == nil {
		o.Turnstile = middleware.NewTurnstile(false, "")
	}

	router := gin.New()
	a.Router = router

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     o.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "HEAD", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "TurnstileToken"},
			ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		middleware.NewRequestIDMiddleware(),
		ginzap.RecoveryWithZap(zap.L(), true),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString("bookingID"); v != "" {
					fields = append(fields, zap.String("booking_id", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true

	a.limiter = middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: o.RateLimit,
		Burst:             o.RateLimit * 2,
	})

	var store persist.CacheStore = persist.NewMemoryStore(time.Minute)
	if d.Redis != nil {
		store = persist.NewRedisStore(d.Redis)
	}

	turnstile := o.Turnstile.Middleware()
	session := middleware.NewBookingSessionMiddleware(d.Sessions)
	smallBody := middleware.BodySizeLimiter(64 << 10)

	m := router.Group("/api", a.limiter.Middleware())
	{
		// HEAD /api/heartbeat 		-> Used to check if the server is alive
		m.HEAD("/heartbeat", a.Heartbeat)

		// GET /api/health		-> Reports whether the database is reachable
		m.GET("/health", a.Health)

		// GET /api/verify		-> Redeems a verification token and returns the report
		m.GET("/verify", a.Verify)

		// POST /api/contact		-> Lead capture, mirrored into the CRM
		m.POST("/contact", turnstile, smallBody, a.Contact)
	}

	an := m.Group("/analyses")
	{
		// POST /api/analyses		-> Stores an analysis and mails its verification link
		an.POST("", turnstile, middleware.BodySizeLimiter(o.MaxRequestSize), a.AnalysisSubmit)

		// POST /api/analyses/:id/resend	-> Mails the verification link again
		an.POST("/:id/resend", smallBody, a.AnalysisResend)
	}

	b := m.Group("/bookings", smallBody)
	{
		// POST /api/bookings/delivery	-> Confirms delivery and starts a booking session
		b.POST("/delivery", a.BookingDelivery)

		// PUT /api/bookings/details	-> Stores contact and address details
		b.PUT("/details", session, a.BookingDetails)

		// GET /api/bookings/slots	-> Lists open installation slots
		b.GET("/slots", session, cacheFor(store, o.SlotsCacheExpiry), a.BookingSlots)

		// POST /api/bookings/schedule	-> Books the selected slot
		b.POST("/schedule", session, a.BookingSchedule)

		// GET /api/bookings/current	-> Returns the booking of the current session
		b.GET("/current", session, a.BookingCurrent)
	}

	return a
}

// Close releases what the router itself owns
func (a *API) Close() {
	a.limiter.Close()
}

// MakeLogger installs the global logger. Development gets the colored
// console encoder, production logs JSON
func MakeLogger(development bool, level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return err
	}

	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
			pae.AppendString(gray + t.Format("15:04:05.000") + reset)
		}
		cfg.EncoderConfig.EncodeCaller = func(ec zapcore.EntryCaller, pae zapcore.PrimitiveArrayEncoder) {
			pae.AppendString(gray + ec.TrimmedPath() + reset)
		}
	} else {
		cfg = zap.NewProductionConfig()
	}

	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true

	log, err := cfg.Build()
	if err != nil {
		return err
	}

	zap.ReplaceGlobals(log)
	return nil
}

func cacheFor(store persist.CacheStore, d time.Duration) gin.HandlerFunc {
	return cache.CacheByRequestURI(store, d)
}
