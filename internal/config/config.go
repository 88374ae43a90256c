// Package config loads service settings from the environment. Every value
// has a default, so an empty environment yields a runnable SQLite setup with
// notifications parked in the outbox.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig lists the origins allowed to call the API. Empty means any.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig controls Strict-Transport-Security.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig configures trace export over OTLP/gRPC.
type OTELConfig struct {
	Enabled     bool
	Endpoint    string // host:port of the collector
	Insecure    bool
	ServiceName string
	SampleRatio float64 // [0,1], parent-based
}

// DBConfig selects the store. Path is used by sqlite, URL by postgres.
type DBConfig struct {
	Driver string
	Path   string
	URL    string
}

// OutboxConfig tunes the delivery worker and its retry policy.
type OutboxConfig struct {
	TickInterval    time.Duration
	BatchLimit      int
	MaxAttempts     int
	ClaimTTL        time.Duration
	DeliveryTimeout time.Duration
}

// TelegramConfig configures the notification channel. Without a bot token
// nothing is delivered and entries stay pending.
type TelegramConfig struct {
	BotToken        string
	PurchasesChatID int64
	NotifyRequester bool
}

// Enabled reports whether a bot token is configured.
func (t TelegramConfig) Enabled() bool { return strings.TrimSpace(t.BotToken) != "" }

// Config is the complete service configuration.
type Config struct {
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string // debug|release|test

	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string

	DB       DBConfig
	Outbox   OutboxConfig
	Telegram TelegramConfig

	RateRPS   float64
	RateBurst int

	CORS     CORSConfig
	Security SecurityConfig

	IdempotencyTTL time.Duration

	OTEL OTELConfig
}

// MustLoad is Load for main: it panics on an invalid environment.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the environment, fills defaults and validates the result.
// All validation problems are reported together.
func Load() (Config, error) {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", time.Minute),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           getenv("GIN_MODE", "release"),

		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    getenv("API_BASE_PATH", "/api/v1"),

		DB: DBConfig{
			Driver: getenv("DB_DRIVER", "sqlite"),
			Path:   getenv("DB_PATH", "purchases.db"),
			URL:    getenv("DATABASE_URL", ""),
		},
		Outbox: OutboxConfig{
			TickInterval:    getdur("OUTBOX_TICK_INTERVAL", 30*time.Second),
			BatchLimit:      getint("OUTBOX_BATCH_LIMIT", 25),
			MaxAttempts:     getint("OUTBOX_MAX_ATTEMPTS", 10),
			ClaimTTL:        getdur("OUTBOX_CLAIM_TTL", 2*time.Minute),
			DeliveryTimeout: getdur("OUTBOX_DELIVERY_TIMEOUT", 15*time.Second),
		},
		Telegram: TelegramConfig{
			BotToken:        getenv("BOT_TOKEN", ""),
			PurchasesChatID: getint64("PURCHASES_CHAT_ID", 0),
			NotifyRequester: getbool("NOTIFY_REQUESTER", true),
		},

		RateRPS:   getfloat("RATE_RPS", 5),
		RateBurst: getint("RATE_BURST", 10),

		CORS: CORSConfig{AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", ""))},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-purchase-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1),
		},
	}
	cfg.normalize()
	return cfg, cfg.validate()
}

func (c *Config) normalize() {
	c.GinMode = strings.ToLower(strings.TrimSpace(c.GinMode))
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		c.GinMode = "release"
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}
	c.APIBasePath = normalizeBasePath(c.APIBasePath)
	c.DB.Driver = strings.ToLower(strings.TrimSpace(c.DB.Driver))
}

func (c Config) validate() error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q must be one of: debug, info, warn, error, fatal, panic", c.LogLevel))
	}
	check(strings.TrimSpace(c.Port) != "", "PORT must not be empty")
	check(c.ReadTimeout > 0 && c.ReadHeaderTimeout > 0 && c.WriteTimeout > 0 && c.IdleTimeout > 0,
		"server timeouts must be positive durations")
	check(c.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")

	switch c.DB.Driver {
	case "sqlite":
		check(strings.TrimSpace(c.DB.Path) != "", "DB_PATH must not be empty")
	case "postgres":
		check(strings.TrimSpace(c.DB.URL) != "", "DATABASE_URL is required when DB_DRIVER=postgres")
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q must be one of: sqlite, postgres", c.DB.Driver))
	}

	o := c.Outbox
	check(o.TickInterval > 0 && o.ClaimTTL > 0 && o.DeliveryTimeout > 0, "outbox durations must be positive")
	check(o.ClaimTTL > o.DeliveryTimeout, "OUTBOX_CLAIM_TTL must exceed OUTBOX_DELIVERY_TIMEOUT")
	check(o.BatchLimit >= 1 && o.BatchLimit <= 1000, "OUTBOX_BATCH_LIMIT must be in [1,1000]")
	check(o.MaxAttempts >= 1, "OUTBOX_MAX_ATTEMPTS must be >= 1")
	check(!c.Telegram.Enabled() || c.Telegram.PurchasesChatID != 0, "PURCHASES_CHAT_ID is required when BOT_TOKEN is set")

	check(c.RateRPS >= 0, "RATE_RPS must be >= 0")
	check(c.RateBurst >= 1, "RATE_BURST must be >= 1")
	check(c.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(c.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	check(c.OTEL.SampleRatio >= 0 && c.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")

	return errors.Join(errs...)
}

// lookup returns parse(value) for a set, non-blank key; unset keys and
// unparsable values yield def.
func lookup[T any](key string, def T, parse func(string) (T, error)) T {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return def
	}
	out, err := parse(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int { return lookup(key, def, strconv.Atoi) }

func getint64(key string, def int64) int64 {
	return lookup(key, def, func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) })
}

func getfloat(key string, def float64) float64 {
	return lookup(key, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func getdur(key string, def time.Duration) time.Duration {
	return lookup(key, def, time.ParseDuration)
}

var errNotBool = errors.New("not a boolean")

func getbool(key string, def bool) bool {
	return lookup(key, def, func(s string) (bool, error) {
		switch strings.ToLower(s) {
		case "1", "true", "yes", "y", "on":
			return true, nil
		case "0", "false", "no", "n", "off":
			return false, nil
		}
		return false, errNotBool
	})
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeBasePath returns p with one leading slash and no trailing slash;
// blank input becomes "/".
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
