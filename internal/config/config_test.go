package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestMain(m *testing.M) {
	for _, k := range []string{"PORT", "DB_DRIVER", "DB_PATH", "DATABASE_URL", "BOT_TOKEN", "PURCHASES_CHAT_ID"} {
		os.Unsetenv(k)
	}
	os.Exit(m.Run())
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Fatalf("APIBasePath = %q, want /api/v1", cfg.APIBasePath)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.Path != "purchases.db" || cfg.DB.URL != "" {
		t.Fatalf("db defaults unexpected: %+v", cfg.DB)
	}
	want := OutboxConfig{
		TickInterval:    30 * time.Second,
		BatchLimit:      25,
		MaxAttempts:     10,
		ClaimTTL:        2 * time.Minute,
		DeliveryTimeout: 15 * time.Second,
	}
	if cfg.Outbox != want {
		t.Fatalf("outbox defaults = %+v, want %+v", cfg.Outbox, want)
	}
	if cfg.Telegram.Enabled() || !cfg.Telegram.NotifyRequester {
		t.Fatalf("telegram defaults unexpected: %+v", cfg.Telegram)
	}
	if cfg.OTEL.ServiceName != "go-purchase-backend" {
		t.Fatalf("service name = %q", cfg.OTEL.ServiceName)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("GIN_MODE", "weird")
	t.Setenv("LOG_LEVEL", "warning")
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("API_BASE_PATH", "api/v2/")

	t.Setenv("DB_DRIVER", " Postgres ")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/purchases?sslmode=disable")

	t.Setenv("OUTBOX_TICK_INTERVAL", "5s")
	t.Setenv("OUTBOX_BATCH_LIMIT", "50")
	t.Setenv("OUTBOX_MAX_ATTEMPTS", "3")
	t.Setenv("OUTBOX_CLAIM_TTL", "1m")
	t.Setenv("OUTBOX_DELIVERY_TIMEOUT", "10s")

	t.Setenv("BOT_TOKEN", "123456:abcdef")
	t.Setenv("PURCHASES_CHAT_ID", "-1001234567890")
	t.Setenv("NOTIFY_REQUESTER", "off")

	t.Setenv("RATE_RPS", "x")
	t.Setenv("RATE_BURST", "nope")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")
	t.Setenv("IDEMPOTENCY_TTL", "48h")
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "8088" || cfg.ReadTimeout != 2*time.Second || cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}
	if cfg.LogLevel != "warn" || !cfg.LogPretty || cfg.APIBasePath != "/api/v2" {
		t.Fatalf("logging fields unexpected: %+v", cfg)
	}
	if cfg.DB.Driver != "postgres" || !strings.HasPrefix(cfg.DB.URL, "postgres://") {
		t.Fatalf("db unexpected: %+v", cfg.DB)
	}
	if cfg.Outbox.TickInterval != 5*time.Second || cfg.Outbox.BatchLimit != 50 ||
		cfg.Outbox.MaxAttempts != 3 || cfg.Outbox.ClaimTTL != time.Minute ||
		cfg.Outbox.DeliveryTimeout != 10*time.Second {
		t.Fatalf("outbox unexpected: %+v", cfg.Outbox)
	}
	if !cfg.Telegram.Enabled() || cfg.Telegram.PurchasesChatID != -1001234567890 || cfg.Telegram.NotifyRequester {
		t.Fatalf("telegram unexpected: %+v", cfg.Telegram)
	}
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate limiting should fall back to defaults: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors origins unexpected: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security unexpected: %+v", cfg.Security)
	}
	if cfg.IdempotencyTTL != 48*time.Hour {
		t.Fatalf("idempotency ttl unexpected: %v", cfg.IdempotencyTTL)
	}
	if !cfg.OTEL.Enabled || cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel unexpected: %+v", cfg.OTEL)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"log level", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"blank port", map[string]string{"PORT": "   "}, "PORT must not be empty"},
		{"timeouts", map[string]string{"READ_TIMEOUT": "0s"}, "timeouts must be positive"},
		{"header bytes", map[string]string{"MAX_HEADER_BYTES": "0"}, "MAX_HEADER_BYTES"},
		{"unknown driver", map[string]string{"DB_DRIVER": "mysql"}, "DB_DRIVER"},
		{"blank sqlite path", map[string]string{"DB_PATH": "  "}, "DB_PATH must not be empty"},
		{"postgres without url", map[string]string{"DB_DRIVER": "postgres"}, "DATABASE_URL"},
		{"tick interval", map[string]string{"OUTBOX_TICK_INTERVAL": "0s"}, "outbox durations"},
		{"claim ttl below timeout", map[string]string{"OUTBOX_CLAIM_TTL": "10s"}, "OUTBOX_CLAIM_TTL"},
		{"batch limit zero", map[string]string{"OUTBOX_BATCH_LIMIT": "0"}, "OUTBOX_BATCH_LIMIT"},
		{"batch limit huge", map[string]string{"OUTBOX_BATCH_LIMIT": "5000"}, "OUTBOX_BATCH_LIMIT"},
		{"max attempts", map[string]string{"OUTBOX_MAX_ATTEMPTS": "0"}, "OUTBOX_MAX_ATTEMPTS"},
		{"token without chat", map[string]string{"BOT_TOKEN": "123:abc"}, "PURCHASES_CHAT_ID"},
		{"rate rps", map[string]string{"RATE_RPS": "-1"}, "RATE_RPS"},
		{"rate burst", map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		{"hsts", map[string]string{"HSTS_MAX_AGE": "-1s"}, "HSTS_MAX_AGE"},
		{"idempotency ttl", map[string]string{"IDEMPOTENCY_TTL": "0s"}, "IDEMPOTENCY_TTL"},
		{"sample ratio", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Load() err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestLoad_ReportsAllProblems(t *testing.T) {
	t.Setenv("RATE_BURST", "0")
	t.Setenv("OUTBOX_MAX_ATTEMPTS", "0")
	t.Setenv("DB_DRIVER", "mysql")

	_, err := Load()
	if err == nil {
		t.Fatalf("Load() should fail")
	}
	for _, want := range []string{"RATE_BURST", "OUTBOX_MAX_ATTEMPTS", `DB_DRIVER "mysql"`} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestMustLoad(t *testing.T) {
	t.Run("valid defaults", func(t *testing.T) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("MustLoad panicked: %v", r)
			}
		}()
		if cfg := MustLoad(); cfg.Port == "" {
			t.Fatalf("empty config from MustLoad")
		}
	})
	t.Run("invalid panics", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "oracle")
		defer func() {
			if recover() == nil {
				t.Fatalf("MustLoad should panic on invalid config")
			}
		}()
		_ = MustLoad()
	})
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("X_EMPTY", "")
	t.Setenv("X_SET", "val")
	if getenv("X_EMPTY", "d") != "d" || getenv("X_SET", "d") != "val" {
		t.Fatalf("getenv fallback broken")
	}

	t.Setenv("F_OK", "3.14")
	t.Setenv("F_BAD", "nope")
	if getfloat("F_OK", 0) != 3.14 || getfloat("F_BAD", 1.23) != 1.23 {
		t.Fatalf("getfloat broken")
	}

	t.Setenv("I_OK", "42")
	t.Setenv("I_BAD", "x")
	if getint("I_OK", 0) != 42 || getint("I_BAD", 7) != 7 {
		t.Fatalf("getint broken")
	}

	t.Setenv("I64_OK", " -1009876543210 ")
	t.Setenv("I64_BAD", "1e3")
	if getint64("I64_OK", 0) != -1009876543210 || getint64("I64_BAD", 9) != 9 {
		t.Fatalf("getint64 broken")
	}

	t.Setenv("D_OK", "150ms")
	t.Setenv("D_BAD", "zzz")
	if getdur("D_OK", time.Second) != 150*time.Millisecond || getdur("D_BAD", 2*time.Second) != 2*time.Second {
		t.Fatalf("getdur broken")
	}
}

func TestGetbool(t *testing.T) {
	for i, v := range []string{"1", "true", "TRUE", " yes ", "Y", "on"} {
		k := "B_T_" + strconv.Itoa(i)
		t.Setenv(k, v)
		if !getbool(k, false) {
			t.Fatalf("getbool(%q) = false", v)
		}
	}
	for i, v := range []string{"0", "false", " no ", "N", "off"} {
		k := "B_F_" + strconv.Itoa(i)
		t.Setenv(k, v)
		if getbool(k, true) {
			t.Fatalf("getbool(%q) = true", v)
		}
	}
	t.Setenv("B_EMPTY", "")
	if !getbool("B_EMPTY", true) || getbool("B_EMPTY", false) {
		t.Fatalf("getbool default unexpected")
	}
}

func TestSplitCSVAndBasePath(t *testing.T) {
	if splitCSV("") != nil {
		t.Fatalf("splitCSV(\"\") should be nil")
	}
	if got := splitCSV(" a, ,b ,  c  ,"); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("splitCSV = %#v", got)
	}
	for in, want := range map[string]string{"": "/", "v1": "/v1", "/v1/": "/v1", " / ": "/"} {
		if got := normalizeBasePath(in); got != want {
			t.Fatalf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}
