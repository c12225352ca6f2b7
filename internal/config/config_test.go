package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv blanks every variable the overlay reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"TELEGRAM_TOKEN", "AUTH_TOKEN", "TELEGRAM_USER_ID", "TELEGRAM_USER_ID2",
		"TELEGRAM_USER_IDS", "TELEGRAM_WEBHOOK_SECRET", "BASE_URL",
		"RENDER_EXTERNAL_URL", "PORT", "REDIS_URL", EnvConfigPath,
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
upstream:
  auth_token: upstream-secret
  timeout: 20s
telegram:
  token: "123:abc"
  recipients: [111, 222]
  parse_mode: ""
scheduler:
  polling_interval: 2m
  bursts:
    - label: lunch
      cron: "30 12 * * *"
      interval: 10s
      cycles: 6
      start: ["lunch burst"]
      stop: "lunch over"
filters:
  cities: [London]
render:
  footer: "Apply now"
`)

	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduler.PollingInterval != 2*time.Minute {
		t.Errorf("PollingInterval = %v, want 2m", cfg.Scheduler.PollingInterval)
	}
	if cfg.Upstream.AuthToken != "upstream-secret" || cfg.Upstream.Timeout != 20*time.Second {
		t.Errorf("Upstream = %+v", cfg.Upstream)
	}
	if cfg.Telegram.Token != "123:abc" || len(cfg.Telegram.Recipients) != 2 {
		t.Errorf("Telegram = %+v", cfg.Telegram)
	}
	if cfg.Telegram.ParseMode != "" {
		t.Errorf("ParseMode = %q", cfg.Telegram.ParseMode)
	}
	if len(cfg.Scheduler.Bursts) != 1 {
		t.Fatalf("Bursts = %+v, want only lunch", cfg.Scheduler.Bursts)
	}
	b := cfg.Scheduler.Bursts[0]
	if b.Label != "lunch" || b.Interval != 10*time.Second || b.Cycles != 6 || b.Stop != "lunch over" {
		t.Errorf("burst = %+v", b)
	}
	if len(cfg.Filters.Cities) != 1 || cfg.Filters.Cities[0] != "London" {
		t.Errorf("Filters = %+v", cfg.Filters)
	}
	if cfg.Render.Footer != "Apply now" {
		t.Errorf("Footer = %q", cfg.Render.Footer)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduler.PollingInterval != 5*time.Minute {
		t.Errorf("PollingInterval = %v, want 5m", cfg.Scheduler.PollingInterval)
	}
	if cfg.Scheduler.Location.String() != "Europe/London" {
		t.Errorf("Location = %v", cfg.Scheduler.Location)
	}
	if len(cfg.Scheduler.Bursts) != 2 {
		t.Fatalf("Bursts = %d, want the morning and night defaults", len(cfg.Scheduler.Bursts))
	}
	night := cfg.Scheduler.Bursts[1]
	if night.Label != "night" || night.Interval != time.Second || night.Cycles != 1200 {
		t.Errorf("night burst = %+v", night)
	}
	if cfg.Telegram.ParseMode != "Markdown" || cfg.Telegram.ChunkSize != 3800 || cfg.Telegram.MaxRetries != 2 {
		t.Errorf("Telegram defaults = %+v", cfg.Telegram)
	}
	if cfg.Upstream.Timeout != 15*time.Second || cfg.Upstream.Endpoint == "" {
		t.Errorf("Upstream defaults = %+v", cfg.Upstream)
	}
	if cfg.State.Backend != "file" || cfg.State.Path != "data.json" {
		t.Errorf("State defaults = %+v", cfg.State)
	}
	if !cfg.History.Enabled || cfg.History.Path != "jobs.db" {
		t.Errorf("History defaults = %+v", cfg.History)
	}
	if cfg.Server.Port != "3000" || cfg.Server.CommandTimeout != time.Minute {
		t.Errorf("Server defaults = %+v", cfg.Server)
	}
	if cfg.Render.MaxListings != 40 {
		t.Errorf("MaxListings = %d, want 40", cfg.Render.MaxListings)
	}
	if err := cfg.RequireTelegram(); err == nil {
		t.Error("RequireTelegram: expected error without a token")
	}
}

func TestLoad_EnvOverlay(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "env-token")
	t.Setenv("AUTH_TOKEN", "env-auth")
	t.Setenv("TELEGRAM_USER_ID", "111")
	t.Setenv("TELEGRAM_USER_ID2", "222")
	t.Setenv("TELEGRAM_USER_IDS", "333, 111,")
	t.Setenv("RENDER_EXTERNAL_URL", "https://render.example.com")
	t.Setenv("PORT", "8080")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	path := writeConfig(t, `
telegram:
  token: file-token
  recipients: [999]
`)
	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Errorf("Token = %q, want env-token", cfg.Telegram.Token)
	}
	if cfg.Upstream.AuthToken != "env-auth" {
		t.Errorf("AuthToken = %q", cfg.Upstream.AuthToken)
	}
	want := []int64{111, 222, 333}
	if len(cfg.Telegram.Recipients) != len(want) {
		t.Fatalf("Recipients = %v, want %v", cfg.Telegram.Recipients, want)
	}
	for i := range want {
		if cfg.Telegram.Recipients[i] != want[i] {
			t.Errorf("Recipients[%d] = %d, want %d", i, cfg.Telegram.Recipients[i], want[i])
		}
	}
	if cfg.Telegram.BaseURL != "https://render.example.com" {
		t.Errorf("BaseURL = %q", cfg.Telegram.BaseURL)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Port = %q", cfg.Server.Port)
	}
	if cfg.State.Backend != "redis" {
		t.Errorf("Backend = %q, want redis when REDIS_URL is set", cfg.State.Backend)
	}
	if _, err := cfg.State.RedisOptions(); err != nil {
		t.Errorf("RedisOptions: %v", err)
	}
}

func TestLoad_BaseURLPrecedence(t *testing.T) {
	clearEnv(t)
	t.Setenv("RENDER_EXTERNAL_URL", "https://render.example.com")
	t.Setenv("BASE_URL", "https://bot.example.com/")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.BaseURL != "https://bot.example.com" {
		t.Errorf("BaseURL = %q, want BASE_URL without trailing slash", cfg.Telegram.BaseURL)
	}
}

func TestLoad_ExpandsEnvInFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("SHIFTALERT_TEST_SECRET", "from-env")
	path := writeConfig(t, `
telegram:
  webhook_secret: ${SHIFTALERT_TEST_SECRET}
`)
	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.WebhookSecret != "from-env" {
		t.Errorf("WebhookSecret = %q", cfg.Telegram.WebhookSecret)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"), false)
	if err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "scheduler: [broken")
	if _, err := Load(path, false); err == nil {
		t.Fatal("Load: expected error for invalid YAML")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := map[string]string{
		"bad duration": `
scheduler:
  polling_interval: soon
`,
		"zero interval": `
scheduler:
  polling_interval: 0s
`,
		"bad cron": `
scheduler:
  bursts:
    - {label: x, cron: "every day", cycles: 1}
`,
		"zero cycles": `
scheduler:
  bursts:
    - {label: x, cron: "0 11 * * *", cycles: 0}
`,
		"duplicate label": `
scheduler:
  bursts:
    - {label: x, cron: "0 11 * * *", cycles: 1}
    - {label: x, cron: "0 12 * * *", cycles: 1}
`,
		"bad timezone": `
scheduler:
  timezone: Mars/Olympus
`,
		"bad parse mode": `
telegram:
  parse_mode: BBCode
`,
		"markdown v2 parse mode": `
telegram:
  parse_mode: MarkdownV2
`,
		"html parse mode": `
telegram:
  parse_mode: HTML
`,
		"chunk too large": `
telegram:
  chunk_size: 5000
`,
		"redis without url": `
state:
  backend: redis
`,
		"unknown backend": `
state:
  backend: etcd
`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			if _, err := Load(writeConfig(t, content), false); err == nil {
				t.Errorf("Load: expected validation error")
			}
		})
	}
}

func TestLoad_EmptyBurstListDisablesBursts(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
scheduler:
  bursts: []
`)
	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Scheduler.Bursts) != 0 {
		t.Errorf("Bursts = %+v, want none", cfg.Scheduler.Bursts)
	}
}

func TestParseRecipients(t *testing.T) {
	got, err := ParseRecipients([]string{" 1 ", "", "-100200", "1"})
	if err != nil {
		t.Fatalf("ParseRecipients: %v", err)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != -100200 {
		t.Errorf("got %v, want [1 -100200]", got)
	}

	if _, err := ParseRecipients([]string{"abc"}); err == nil {
		t.Error("expected error for non-numeric id")
	}
}

func TestResolve(t *testing.T) {
	clearEnv(t)

	if p, opt := Resolve("custom.yaml"); p != "custom.yaml" || opt {
		t.Errorf("flag: got %q optional=%v", p, opt)
	}
	t.Setenv(EnvConfigPath, "/etc/shiftalert.yaml")
	if p, opt := Resolve(""); p != "/etc/shiftalert.yaml" || opt {
		t.Errorf("env: got %q optional=%v", p, opt)
	}
	t.Setenv(EnvConfigPath, "")
	if p, opt := Resolve(""); p != DefaultPath || !opt {
		t.Errorf("default: got %q optional=%v", p, opt)
	}
}
