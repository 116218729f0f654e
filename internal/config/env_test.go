package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// setEnvs sets multiple env vars and returns a cleanup function.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

// requiredEnvs returns the minimum env vars needed for LoadEnvConfig to succeed.
func requiredEnvs() map[string]string {
	return map[string]string{
		"HOOFS_ADMIN_TOKEN": "admin-secret",
	}
}

func TestLoadEnvConfig_Defaults(t *testing.T) {
	setEnvs(t, requiredEnvs())

	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertEqual(t, "StateDir", cfg.StateDir, "/var/lib/hoofs")
	assertEqual(t, "ListenAddress", cfg.ListenAddress, "0.0.0.0")
	assertEqual(t, "Port", cfg.Port, 8090)
	assertEqual(t, "APIMaxBodyBytes", cfg.APIMaxBodyBytes, 1<<20)

	assertEqual(t, "BaseURL", cfg.BaseURL, "https://ffecompet.ffe.com")
	assertEqual(t, "EventURLTemplate", cfg.EventURLTemplate, "https://ffecompet.ffe.com/concours/{numero}")
	assertEqual(t, "ScrapeTimeout", cfg.ScrapeTimeout, 15*time.Second)
	assertEqual(t, "ScrapeProxyURL", cfg.ScrapeProxyURL, "")
	assertEqual(t, "PageCacheSize", cfg.PageCacheSize, 4096)
	assertEqual(t, "PageCacheTTL", cfg.PageCacheTTL, 90*time.Second)

	assertEqual(t, "PushAPIURL", cfg.PushAPIURL, "https://onesignal.com/api/v1/notifications")
	assertEqual(t, "EmailAPIURL", cfg.EmailAPIURL, "https://api.resend.com/emails")

	assertEqual(t, "CheckInterval", cfg.CheckInterval, 5*time.Second)
	assertEqual(t, "EventPause", cfg.EventPause, time.Second)
	assertEqual(t, "MinScrapeInterval", cfg.MinScrapeInterval, 2*time.Second)
	assertEqual(t, "MaxScrapesPerMinute", cfg.MaxScrapesPerMinute, 20)

	assertEqual(t, "DelayFreeSeconds", cfg.DelayFreeSeconds, 600)
	assertEqual(t, "DelayPremiumSeconds", cfg.DelayPremiumSeconds, 60)
	assertEqual(t, "DelayProSeconds", cfg.DelayProSeconds, 10)
	assertEqual(t, "DispatchInterval", cfg.DispatchInterval, time.Second)
	assertEqual(t, "DispatchBatchLimit", cfg.DispatchBatchLimit, 100)
	assertEqual(t, "ClaimTTL", cfg.ClaimTTL, 60*time.Second)
	assertEqual(t, "NotifyTimeout", cfg.NotifyTimeout, 10*time.Second)

	assertEqual(t, "AuditQueueSize", cfg.AuditQueueSize, 1024)
	assertEqual(t, "AuditFlushBatchSize", cfg.AuditFlushBatchSize, 256)
	assertEqual(t, "AuditFlushInterval", cfg.AuditFlushInterval, 2*time.Second)

	assertEqual(t, "MetricBucketSeconds", cfg.MetricBucketSeconds, 3600)
	assertEqual(t, "RetentionSchedule", cfg.RetentionSchedule, "0 4 * * *")
	assertEqual(t, "CheckRetentionDays", cfg.CheckRetentionDays, 30)
	assertEqual(t, "LogRetentionDays", cfg.LogRetentionDays, 90)

	assertEqual(t, "LogLevel", cfg.LogLevel, "info")
	assertEqual(t, "SeedFile", cfg.SeedFile, "")
}

func TestLoadEnvConfig_EnvOverrides(t *testing.T) {
	envs := requiredEnvs()
	envs["HOOFS_STATE_DIR"] = "/tmp/hoofs"
	envs["HOOFS_LISTEN_ADDRESS"] = "127.0.0.1"
	envs["HOOFS_PORT"] = "9000"
	envs["HOOFS_BASE_URL"] = "https://staging.ffecompet.ffe.com/"
	envs["HOOFS_SCRAPE_TIMEOUT"] = "30s"
	envs["HOOFS_SCRAPE_PROXY_URL"] = "socks5://127.0.0.1:1080"
	envs["HOOFS_CHECK_INTERVAL"] = "10s"
	envs["HOOFS_DELAY_PRO"] = "5"
	envs["HOOFS_DISPATCH_BATCH_LIMIT"] = "50"
	envs["HOOFS_CLAIM_TTL"] = "2m"
	envs["HOOFS_RETENTION_SCHEDULE"] = "30 3 * * *"
	envs["HOOFS_LOG_LEVEL"] = "debug"
	setEnvs(t, envs)

	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertEqual(t, "StateDir", cfg.StateDir, "/tmp/hoofs")
	assertEqual(t, "ListenAddress", cfg.ListenAddress, "127.0.0.1")
	assertEqual(t, "Port", cfg.Port, 9000)
	// Trailing slash is trimmed off the base URL and the derived template.
	assertEqual(t, "BaseURL", cfg.BaseURL, "https://staging.ffecompet.ffe.com")
	assertEqual(t, "EventURLTemplate", cfg.EventURLTemplate, "https://staging.ffecompet.ffe.com/concours/{numero}")
	assertEqual(t, "ScrapeTimeout", cfg.ScrapeTimeout, 30*time.Second)
	assertEqual(t, "ScrapeProxyURL", cfg.ScrapeProxyURL, "socks5://127.0.0.1:1080")
	assertEqual(t, "CheckInterval", cfg.CheckInterval, 10*time.Second)
	assertEqual(t, "DelayProSeconds", cfg.DelayProSeconds, 5)
	assertEqual(t, "DispatchBatchLimit", cfg.DispatchBatchLimit, 50)
	assertEqual(t, "ClaimTTL", cfg.ClaimTTL, 2*time.Minute)
	assertEqual(t, "RetentionSchedule", cfg.RetentionSchedule, "30 3 * * *")
	assertEqual(t, "LogLevel", cfg.LogLevel, "debug")
}

func TestLoadEnvConfig_MissingAdminToken(t *testing.T) {
	os.Unsetenv("HOOFS_ADMIN_TOKEN")

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for missing HOOFS_ADMIN_TOKEN")
	}
	assertContains(t, err.Error(), "HOOFS_ADMIN_TOKEN must be defined (can be empty)")
}

func TestLoadEnvConfig_EmptyTokenAllowedWhenDefined(t *testing.T) {
	t.Setenv("HOOFS_ADMIN_TOKEN", "")

	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertEqual(t, "AdminToken", cfg.AdminToken, "")
}

func TestLoadEnvConfig_InvalidPort(t *testing.T) {
	for name, port := range map[string]string{"too_big": "99999", "zero": "0", "not_number": "abc"} {
		t.Run(name, func(t *testing.T) {
			envs := requiredEnvs()
			envs["HOOFS_PORT"] = port
			setEnvs(t, envs)

			_, err := LoadEnvConfig()
			if err == nil {
				t.Fatal("expected error for invalid port")
			}
			assertContains(t, err.Error(), "HOOFS_PORT")
		})
	}
}

func TestLoadEnvConfig_TemplateMissingNumero(t *testing.T) {
	envs := requiredEnvs()
	envs["HOOFS_EVENT_URL_TEMPLATE"] = "https://ffecompet.ffe.com/concours/loose"
	setEnvs(t, envs)

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for template without {numero}")
	}
	assertContains(t, err.Error(), "HOOFS_EVENT_URL_TEMPLATE")
}

func TestLoadEnvConfig_InvalidProxyScheme(t *testing.T) {
	envs := requiredEnvs()
	envs["HOOFS_SCRAPE_PROXY_URL"] = "ftp://127.0.0.1:21"
	setEnvs(t, envs)

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for unsupported proxy scheme")
	}
	assertContains(t, err.Error(), "HOOFS_SCRAPE_PROXY_URL")
}

func TestLoadEnvConfig_InvalidDuration(t *testing.T) {
	envs := requiredEnvs()
	envs["HOOFS_CHECK_INTERVAL"] = "not-a-duration"
	setEnvs(t, envs)

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for invalid duration")
	}
	assertContains(t, err.Error(), "HOOFS_CHECK_INTERVAL")
}

func TestLoadEnvConfig_NegativeDelay(t *testing.T) {
	envs := requiredEnvs()
	envs["HOOFS_DELAY_PREMIUM"] = "-1"
	setEnvs(t, envs)

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for negative delay")
	}
	assertContains(t, err.Error(), "HOOFS_DELAY_PREMIUM")
}

func TestLoadEnvConfig_AuditQueueTooSmall(t *testing.T) {
	envs := requiredEnvs()
	envs["HOOFS_AUDIT_QUEUE_SIZE"] = "100"
	envs["HOOFS_AUDIT_FLUSH_BATCH_SIZE"] = "100"
	setEnvs(t, envs)

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for queue size < 2x batch size")
	}
	assertContains(t, err.Error(), "at least 2x")
}

func TestLoadEnvConfig_InvalidRetentionSchedule(t *testing.T) {
	envs := requiredEnvs()
	envs["HOOFS_RETENTION_SCHEDULE"] = "not-a-cron"
	setEnvs(t, envs)

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for invalid retention schedule")
	}
	assertContains(t, err.Error(), "HOOFS_RETENTION_SCHEDULE")
}

func TestLoadEnvConfig_InvalidLogLevel(t *testing.T) {
	envs := requiredEnvs()
	envs["HOOFS_LOG_LEVEL"] = "trace"
	setEnvs(t, envs)

	_, err := LoadEnvConfig()
	if err == nil {
		t.Fatal("expected error for invalid log level")
	}
	assertContains(t, err.Error(), "HOOFS_LOG_LEVEL")
}

func TestEventURL(t *testing.T) {
	setEnvs(t, requiredEnvs())
	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := cfg.EventURL(202512345)
	want := "https://ffecompet.ffe.com/concours/202512345"
	if got != want {
		t.Fatalf("EventURL: got %q, want %q", got, want)
	}
}

func TestPlanDelay(t *testing.T) {
	setEnvs(t, requiredEnvs())
	cfg, err := LoadEnvConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tests := []struct {
		plan string
		want time.Duration
	}{
		{"pro", 10 * time.Second},
		{"premium", 60 * time.Second},
		{"free", 600 * time.Second},
		{"unknown-tier", 600 * time.Second},
		{"", 600 * time.Second},
	}
	for _, tt := range tests {
		if got := cfg.PlanDelay(tt.plan); got != tt.want {
			t.Errorf("PlanDelay(%q) = %v, want %v", tt.plan, got, tt.want)
		}
	}
}

// --- test helpers ---

func assertEqual[T comparable](t *testing.T, name string, got, want T) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %v, want %v", name, got, want)
	}
}

func assertContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("expected %q to contain %q", s, substr)
	}
}
