// Package config handles environment-based configuration loading.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// EnvConfig holds all environment-variable-driven settings.
type EnvConfig struct {
	// Directories
	StateDir string

	// Network
	ListenAddress   string
	Port            int
	APIMaxBodyBytes int

	// Auth
	AdminToken string

	// Upstream site
	BaseURL          string
	EventURLTemplate string
	ScrapeTimeout    time.Duration
	ScrapeProxyURL   string
	PageCacheSize    int
	PageCacheTTL     time.Duration

	// Push provider
	PushAppID  string
	PushAPIKey string
	PushAPIURL string

	// Email provider
	EmailAPIKey string
	EmailFrom   string
	EmailAPIURL string

	// Polling
	CheckInterval       time.Duration
	EventPause          time.Duration
	MinScrapeInterval   time.Duration
	MaxScrapesPerMinute int

	// Dispatch
	DelayFreeSeconds    int
	DelayPremiumSeconds int
	DelayProSeconds     int
	DispatchInterval    time.Duration
	DispatchBatchLimit  int
	ClaimTTL            time.Duration
	NotifyTimeout       time.Duration

	// Audit
	AuditQueueSize      int
	AuditFlushBatchSize int
	AuditFlushInterval  time.Duration

	// Metrics / retention
	MetricBucketSeconds int
	RetentionSchedule   string
	CheckRetentionDays  int
	LogRetentionDays    int

	// Logging
	LogLevel string

	// Seed
	SeedFile string
}

// LoadEnvConfig reads environment variables and returns a validated EnvConfig.
// Returns an error if any required variable is missing or any value is invalid.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	// --- Directories / network ---
	cfg.StateDir = envStr("HOOFS_STATE_DIR", "/var/lib/hoofs")
	cfg.ListenAddress = strings.TrimSpace(envStr("HOOFS_LISTEN_ADDRESS", "0.0.0.0"))
	cfg.Port = envInt("HOOFS_PORT", 8090, &errs)
	cfg.APIMaxBodyBytes = envInt("HOOFS_API_MAX_BODY_BYTES", 1<<20, &errs)

	// --- Upstream site ---
	cfg.BaseURL = strings.TrimRight(envStr("HOOFS_BASE_URL", "https://ffecompet.ffe.com"), "/")
	cfg.EventURLTemplate = envStr("HOOFS_EVENT_URL_TEMPLATE", cfg.BaseURL+"/concours/{numero}")
	cfg.ScrapeTimeout = envDuration("HOOFS_SCRAPE_TIMEOUT", 15*time.Second, &errs)
	cfg.ScrapeProxyURL = strings.TrimSpace(envStr("HOOFS_SCRAPE_PROXY_URL", ""))
	cfg.PageCacheSize = envInt("HOOFS_PAGE_CACHE_SIZE", 4096, &errs)
	cfg.PageCacheTTL = envDuration("HOOFS_PAGE_CACHE_TTL", 90*time.Second, &errs)

	// --- Providers (empty key means the channel is disabled) ---
	cfg.PushAppID = envStr("HOOFS_PUSH_APP_ID", "")
	cfg.PushAPIKey = envStr("HOOFS_PUSH_API_KEY", "")
	cfg.PushAPIURL = envStr("HOOFS_PUSH_API_URL", "https://onesignal.com/api/v1/notifications")
	cfg.EmailAPIKey = envStr("HOOFS_EMAIL_API_KEY", "")
	cfg.EmailFrom = envStr("HOOFS_EMAIL_FROM", "")
	cfg.EmailAPIURL = envStr("HOOFS_EMAIL_API_URL", "https://api.resend.com/emails")

	// --- Polling ---
	cfg.CheckInterval = envDuration("HOOFS_CHECK_INTERVAL", 5*time.Second, &errs)
	cfg.EventPause = envDuration("HOOFS_EVENT_PAUSE", time.Second, &errs)
	cfg.MinScrapeInterval = envDuration("HOOFS_MIN_SCRAPE_INTERVAL", 2*time.Second, &errs)
	cfg.MaxScrapesPerMinute = envInt("HOOFS_MAX_SCRAPES_PER_MINUTE", 20, &errs)

	// --- Dispatch ---
	cfg.DelayFreeSeconds = envInt("HOOFS_DELAY_FREE", 600, &errs)
	cfg.DelayPremiumSeconds = envInt("HOOFS_DELAY_PREMIUM", 60, &errs)
	cfg.DelayProSeconds = envInt("HOOFS_DELAY_PRO", 10, &errs)
	cfg.DispatchInterval = envDuration("HOOFS_DISPATCH_INTERVAL", time.Second, &errs)
	cfg.DispatchBatchLimit = envInt("HOOFS_DISPATCH_BATCH_LIMIT", 100, &errs)
	cfg.ClaimTTL = envDuration("HOOFS_CLAIM_TTL", 60*time.Second, &errs)
	cfg.NotifyTimeout = envDuration("HOOFS_NOTIFY_TIMEOUT", 10*time.Second, &errs)

	// --- Audit ---
	cfg.AuditQueueSize = envInt("HOOFS_AUDIT_QUEUE_SIZE", 1024, &errs)
	cfg.AuditFlushBatchSize = envInt("HOOFS_AUDIT_FLUSH_BATCH_SIZE", 256, &errs)
	cfg.AuditFlushInterval = envDuration("HOOFS_AUDIT_FLUSH_INTERVAL", 2*time.Second, &errs)

	// --- Metrics / retention ---
	cfg.MetricBucketSeconds = envInt("HOOFS_METRIC_BUCKET_SECONDS", 3600, &errs)
	cfg.RetentionSchedule = envStr("HOOFS_RETENTION_SCHEDULE", "0 4 * * *")
	cfg.CheckRetentionDays = envInt("HOOFS_CHECK_RETENTION_DAYS", 30, &errs)
	cfg.LogRetentionDays = envInt("HOOFS_LOG_RETENTION_DAYS", 90, &errs)

	// --- Logging ---
	cfg.LogLevel = envStr("HOOFS_LOG_LEVEL", "info")

	// --- Seed ---
	cfg.SeedFile = envStr("HOOFS_SEED_FILE", "")

	// --- Auth (must be defined; empty means auth disabled) ---
	adminToken, hasAdminToken := os.LookupEnv("HOOFS_ADMIN_TOKEN")
	cfg.AdminToken = adminToken

	// --- Validation ---
	if !hasAdminToken {
		errs = append(errs, "HOOFS_ADMIN_TOKEN must be defined (can be empty)")
	}
	if cfg.ListenAddress == "" {
		errs = append(errs, "HOOFS_LISTEN_ADDRESS must not be empty")
	}
	validatePort("HOOFS_PORT", cfg.Port, &errs)
	validatePositive("HOOFS_API_MAX_BODY_BYTES", cfg.APIMaxBodyBytes, &errs)

	if cfg.BaseURL == "" {
		errs = append(errs, "HOOFS_BASE_URL must not be empty")
	}
	if !strings.Contains(cfg.EventURLTemplate, "{numero}") {
		errs = append(errs, fmt.Sprintf("HOOFS_EVENT_URL_TEMPLATE: %q must contain {numero}", cfg.EventURLTemplate))
	}
	if cfg.ScrapeTimeout <= 0 {
		errs = append(errs, "HOOFS_SCRAPE_TIMEOUT must be positive")
	}
	if cfg.ScrapeProxyURL != "" {
		u, err := url.Parse(cfg.ScrapeProxyURL)
		if err != nil {
			errs = append(errs, fmt.Sprintf("HOOFS_SCRAPE_PROXY_URL: invalid URL %q", cfg.ScrapeProxyURL))
		} else if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "socks5" {
			errs = append(errs, fmt.Sprintf("HOOFS_SCRAPE_PROXY_URL: unsupported scheme %q (allowed: http, https, socks5)", u.Scheme))
		}
	}
	validatePositive("HOOFS_PAGE_CACHE_SIZE", cfg.PageCacheSize, &errs)
	if cfg.PageCacheTTL <= 0 {
		errs = append(errs, "HOOFS_PAGE_CACHE_TTL must be positive")
	}

	if cfg.CheckInterval <= 0 {
		errs = append(errs, "HOOFS_CHECK_INTERVAL must be positive")
	}
	if cfg.EventPause < 0 {
		errs = append(errs, "HOOFS_EVENT_PAUSE must not be negative")
	}
	if cfg.MinScrapeInterval <= 0 {
		errs = append(errs, "HOOFS_MIN_SCRAPE_INTERVAL must be positive")
	}
	validatePositive("HOOFS_MAX_SCRAPES_PER_MINUTE", cfg.MaxScrapesPerMinute, &errs)

	validateNonNegative("HOOFS_DELAY_FREE", cfg.DelayFreeSeconds, &errs)
	validateNonNegative("HOOFS_DELAY_PREMIUM", cfg.DelayPremiumSeconds, &errs)
	validateNonNegative("HOOFS_DELAY_PRO", cfg.DelayProSeconds, &errs)
	if cfg.DispatchInterval <= 0 {
		errs = append(errs, "HOOFS_DISPATCH_INTERVAL must be positive")
	}
	validatePositive("HOOFS_DISPATCH_BATCH_LIMIT", cfg.DispatchBatchLimit, &errs)
	if cfg.ClaimTTL <= 0 {
		errs = append(errs, "HOOFS_CLAIM_TTL must be positive")
	}
	if cfg.NotifyTimeout <= 0 {
		errs = append(errs, "HOOFS_NOTIFY_TIMEOUT must be positive")
	}

	validatePositive("HOOFS_AUDIT_QUEUE_SIZE", cfg.AuditQueueSize, &errs)
	validatePositive("HOOFS_AUDIT_FLUSH_BATCH_SIZE", cfg.AuditFlushBatchSize, &errs)
	if cfg.AuditFlushInterval <= 0 {
		errs = append(errs, "HOOFS_AUDIT_FLUSH_INTERVAL must be positive")
	}

	// Queue size must be >= 2x batch size
	if cfg.AuditQueueSize < 2*cfg.AuditFlushBatchSize {
		errs = append(errs, "HOOFS_AUDIT_QUEUE_SIZE must be at least 2x HOOFS_AUDIT_FLUSH_BATCH_SIZE")
	}

	validatePositive("HOOFS_METRIC_BUCKET_SECONDS", cfg.MetricBucketSeconds, &errs)
	if _, err := cron.ParseStandard(cfg.RetentionSchedule); err != nil {
		errs = append(errs, fmt.Sprintf("HOOFS_RETENTION_SCHEDULE: invalid cron expression %q: %v", cfg.RetentionSchedule, err))
	}
	validatePositive("HOOFS_CHECK_RETENTION_DAYS", cfg.CheckRetentionDays, &errs)
	validatePositive("HOOFS_LOG_RETENTION_DAYS", cfg.LogRetentionDays, &errs)

	if cfg.LogLevel != "info" && cfg.LogLevel != "debug" {
		errs = append(errs, fmt.Sprintf("HOOFS_LOG_LEVEL: invalid value %q (allowed: info, debug)", cfg.LogLevel))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}

	return cfg, nil
}

// EventURL expands the event URL template for one numero.
func (c *EnvConfig) EventURL(numero int64) string {
	return strings.Replace(c.EventURLTemplate, "{numero}", strconv.FormatInt(numero, 10), 1)
}

// PlanDelay returns the configured dispatch delay for a plan. Unknown plans
// fall back to the free tier.
func (c *EnvConfig) PlanDelay(plan string) time.Duration {
	switch plan {
	case "pro":
		return time.Duration(c.DelayProSeconds) * time.Second
	case "premium":
		return time.Duration(c.DelayPremiumSeconds) * time.Second
	default:
		return time.Duration(c.DelayFreeSeconds) * time.Second
	}
}

// --- helpers ---

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}

func validatePort(name string, value int, errs *[]string) {
	if value < 1 || value > 65535 {
		*errs = append(*errs, fmt.Sprintf("%s: port must be 1-65535, got %d", name, value))
	}
}

func validatePositive(name string, value int, errs *[]string) {
	if value <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must be positive, got %d", name, value))
	}
}

func validateNonNegative(name string, value int, errs *[]string) {
	if value < 0 {
		*errs = append(*errs, fmt.Sprintf("%s: must not be negative, got %d", name, value))
	}
}
