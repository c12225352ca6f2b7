package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // scheduler.timezone must resolve on minimal images

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the config file when --config is not given.
const EnvConfigPath = "SHIFTALERT_CONFIG"

// DefaultPath is tried last and may be absent.
const DefaultPath = "config.yaml"

// Config is the root configuration for shiftalert.
type Config struct {
	Upstream  UpstreamConfig
	Telegram  TelegramConfig
	Scheduler SchedulerConfig
	Render    RenderConfig
	Filters   FilterConfig
	State     StateConfig
	History   HistoryConfig
	Server    ServerConfig
}

// UpstreamConfig points at the job-search API.
type UpstreamConfig struct {
	Endpoint  string
	AuthToken string
	Timeout   time.Duration
}

// TelegramConfig controls delivery and the webhook.
type TelegramConfig struct {
	Token          string
	APIURL         string
	ParseMode      string // "" (plain text) or "Markdown"
	Recipients     []int64
	WebhookSecret  string
	BaseURL        string // public URL for webhook registration
	SendTimeout    time.Duration
	ChunkSize      int
	MaxRetries     int
	RetryBaseDelay time.Duration
	RatePerSecond  float64
	ChatGap        time.Duration
}

// SchedulerConfig controls baseline polling and bursts.
type SchedulerConfig struct {
	PollingInterval time.Duration
	Timezone        string
	Location        *time.Location
	Bursts          []BurstConfig
	ShutdownGrace   time.Duration
}

// BurstConfig is one time-of-day burst.
type BurstConfig struct {
	Label    string
	Cron     string
	Interval time.Duration
	Cycles   int
	Start    []string
	Stop     string
}

// RenderConfig shapes the broadcast message.
type RenderConfig struct {
	Footer      string `yaml:"footer"`
	MaxListings int    `yaml:"max_listings"` // 0 means 40, negative means unlimited
}

// FilterConfig narrows the board before classification.
type FilterConfig struct {
	Cities        []string `yaml:"cities"`
	ExcludeCities []string `yaml:"exclude_cities"`
	TitleKeywords []string `yaml:"title_keywords"`
}

// StateConfig selects where the last message is kept.
type StateConfig struct {
	Backend     string // "file" or "redis"
	Path        string
	RedisURL    string
	RedisPrefix string
}

// HistoryConfig controls the SQLite job history.
type HistoryConfig struct {
	Enabled   bool
	Path      string
	Retention time.Duration
}

// ServerConfig controls the webhook HTTP server.
type ServerConfig struct {
	Port           string
	Workers        int
	QueueSize      int
	CommandTimeout time.Duration
}

const (
	defaultEndpoint = "https://qy64m4juabaffl7tjakii4gdoa.appsync-api.eu-west-1.amazonaws.com/graphql"
	defaultAPIURL   = "https://api.telegram.org"
)

// DefaultBursts mirror the morning and night windows the bot has always run.
func DefaultBursts() []BurstConfig {
	return []BurstConfig{
		{
			Label:    "morning",
			Cron:     "0 11 * * *",
			Interval: 30 * time.Second,
			Cycles:   40,
			Start: []string{
				"🕚 Clock’s Ticking! ⚡ Job Check Set for 11:00 AM London Time.",
				"⏳ Started 30-second interval fetch for 20 minutes...",
			},
			Stop: "🛑 Search Stopped. Stay Tuned — The Next Hunt Begins At 11:00 PM!",
		},
		{
			Label:    "night",
			Cron:     "0 23 * * *",
			Interval: time.Second,
			Cycles:   1200,
			Start: []string{
				"🕚 Countdown Active: Job Status Update at 11:00 PM London Time.",
				"⏳ Started 1-second interval fetch for 20 minutes...",
			},
			Stop: "💤 System Standby... 🖥️ Scheduled Job Check: 11:00 AM London Time.",
		},
	}
}

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	Upstream  rawUpstreamConfig  `yaml:"upstream"`
	Telegram  rawTelegramConfig  `yaml:"telegram"`
	Scheduler rawSchedulerConfig `yaml:"scheduler"`
	Render    RenderConfig       `yaml:"render"`
	Filters   FilterConfig       `yaml:"filters"`
	State     rawStateConfig     `yaml:"state"`
	History   rawHistoryConfig   `yaml:"history"`
	Server    rawServerConfig    `yaml:"server"`
}

type rawUpstreamConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AuthToken string `yaml:"auth_token"`
	Timeout   string `yaml:"timeout"`
}

type rawTelegramConfig struct {
	Token          string   `yaml:"token"`
	APIURL         string   `yaml:"api_url"`
	ParseMode      *string  `yaml:"parse_mode"`
	Recipients     []int64  `yaml:"recipients"`
	WebhookSecret  string   `yaml:"webhook_secret"`
	BaseURL        string   `yaml:"base_url"`
	SendTimeout    string   `yaml:"send_timeout"`
	ChunkSize      int      `yaml:"chunk_size"`
	MaxRetries     *int     `yaml:"max_retries"`
	RetryBaseDelay string   `yaml:"retry_base_delay"`
	RatePerSecond  *float64 `yaml:"rate_per_second"`
	ChatGap        string   `yaml:"chat_gap"`
}

type rawSchedulerConfig struct {
	PollingInterval string            `yaml:"polling_interval"`
	Timezone        string            `yaml:"timezone"`
	Bursts          *[]rawBurstConfig `yaml:"bursts"`
	ShutdownGrace   string            `yaml:"shutdown_grace"`
}

type rawBurstConfig struct {
	Label    string   `yaml:"label"`
	Cron     string   `yaml:"cron"`
	Interval string   `yaml:"interval"`
	Cycles   int      `yaml:"cycles"`
	Start    []string `yaml:"start"`
	Stop     string   `yaml:"stop"`
}

type rawStateConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	RedisURL    string `yaml:"redis_url"`
	RedisPrefix string `yaml:"redis_prefix"`
}

type rawHistoryConfig struct {
	Enabled   *bool  `yaml:"enabled"`
	Path      string `yaml:"path"`
	Retention string `yaml:"retention"`
}

type rawServerConfig struct {
	Port           string `yaml:"port"`
	Workers        int    `yaml:"workers"`
	QueueSize      int    `yaml:"queue_size"`
	CommandTimeout string `yaml:"command_timeout"`
}

// Resolve picks the config file: the flag value, then $SHIFTALERT_CONFIG,
// then ./config.yaml. optional reports whether the file may be missing.
func Resolve(flagPath string) (path string, optional bool) {
	if flagPath != "" {
		return flagPath, false
	}
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, false
	}
	return DefaultPath, true
}

// Load reads and parses the YAML config file at path, overlays the
// environment, validates it, and returns Config. When optional is set a
// missing file yields defaults plus environment.
func Load(path string, optional bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !optional || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		data = nil
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := applyEnv(&raw, os.Getenv); err != nil {
		return nil, err
	}

	cfg, err := build(&raw)
	if err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overlays the deployment's environment variables on the file.
func applyEnv(raw *rawConfig, getenv func(string) string) error {
	setIf := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	setIf(&raw.Telegram.Token, "TELEGRAM_TOKEN")
	setIf(&raw.Upstream.AuthToken, "AUTH_TOKEN")
	setIf(&raw.Telegram.WebhookSecret, "TELEGRAM_WEBHOOK_SECRET")
	setIf(&raw.Telegram.BaseURL, "RENDER_EXTERNAL_URL")
	setIf(&raw.Telegram.BaseURL, "BASE_URL")
	setIf(&raw.Server.Port, "PORT")
	setIf(&raw.State.RedisURL, "REDIS_URL")

	var ids []string
	for _, key := range []string{"TELEGRAM_USER_ID", "TELEGRAM_USER_ID2"} {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			ids = append(ids, v)
		}
	}
	if v := getenv("TELEGRAM_USER_IDS"); v != "" {
		ids = append(ids, strings.Split(v, ",")...)
	}
	if len(ids) == 0 {
		return nil
	}

	recipients, err := ParseRecipients(ids)
	if err != nil {
		return err
	}
	raw.Telegram.Recipients = recipients
	return nil
}

// ParseRecipients parses chat ids, skipping blanks and duplicates.
func ParseRecipients(ids []string) ([]int64, error) {
	seen := make(map[int64]bool)
	var out []int64
	for _, s := range ids {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse telegram recipient %q: %w", s, err)
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

func build(raw *rawConfig) (*Config, error) {
	var err error
	dur := func(field, value string, def time.Duration) time.Duration {
		if err != nil || value == "" {
			return def
		}
		d, perr := time.ParseDuration(value)
		if perr != nil {
			err = fmt.Errorf("parse %s %q: %w", field, value, perr)
			return def
		}
		return d
	}

	cfg := &Config{
		Upstream: UpstreamConfig{
			Endpoint:  orDefault(raw.Upstream.Endpoint, defaultEndpoint),
			AuthToken: raw.Upstream.AuthToken,
			Timeout:   dur("upstream.timeout", raw.Upstream.Timeout, 15*time.Second),
		},
		Telegram: TelegramConfig{
			Token:          raw.Telegram.Token,
			APIURL:         strings.TrimRight(orDefault(raw.Telegram.APIURL, defaultAPIURL), "/"),
			ParseMode:      "Markdown",
			Recipients:     raw.Telegram.Recipients,
			WebhookSecret:  raw.Telegram.WebhookSecret,
			BaseURL:        strings.TrimRight(raw.Telegram.BaseURL, "/"),
			SendTimeout:    dur("telegram.send_timeout", raw.Telegram.SendTimeout, 10*time.Second),
			ChunkSize:      raw.Telegram.ChunkSize,
			MaxRetries:     2,
			RetryBaseDelay: dur("telegram.retry_base_delay", raw.Telegram.RetryBaseDelay, 500*time.Millisecond),
			RatePerSecond:  25,
			ChatGap:        dur("telegram.chat_gap", raw.Telegram.ChatGap, time.Second),
		},
		Scheduler: SchedulerConfig{
			PollingInterval: dur("scheduler.polling_interval", raw.Scheduler.PollingInterval, 5*time.Minute),
			Timezone:        orDefault(raw.Scheduler.Timezone, "Europe/London"),
			ShutdownGrace:   dur("scheduler.shutdown_grace", raw.Scheduler.ShutdownGrace, 5*time.Second),
		},
		Render: RenderConfig{
			Footer:      raw.Render.Footer,
			MaxListings: raw.Render.MaxListings,
		},
		Filters: raw.Filters,
		State: StateConfig{
			Backend:     raw.State.Backend,
			Path:        orDefault(raw.State.Path, "data.json"),
			RedisURL:    raw.State.RedisURL,
			RedisPrefix: orDefault(raw.State.RedisPrefix, "shiftalert"),
		},
		History: HistoryConfig{
			Enabled:   true,
			Path:      orDefault(raw.History.Path, "jobs.db"),
			Retention: dur("history.retention", raw.History.Retention, 30*24*time.Hour),
		},
		Server: ServerConfig{
			Port:           orDefault(raw.Server.Port, "3000"),
			Workers:        raw.Server.Workers,
			QueueSize:      raw.Server.QueueSize,
			CommandTimeout: dur("server.command_timeout", raw.Server.CommandTimeout, 60*time.Second),
		},
	}

	if raw.Telegram.ParseMode != nil {
		cfg.Telegram.ParseMode = *raw.Telegram.ParseMode
	}
	if raw.Telegram.MaxRetries != nil {
		cfg.Telegram.MaxRetries = *raw.Telegram.MaxRetries
	}
	if raw.Telegram.RatePerSecond != nil {
		cfg.Telegram.RatePerSecond = *raw.Telegram.RatePerSecond
	}
	if cfg.Telegram.ChunkSize == 0 {
		cfg.Telegram.ChunkSize = 3800
	}
	if raw.History.Enabled != nil {
		cfg.History.Enabled = *raw.History.Enabled
	}
	if cfg.Render.MaxListings == 0 {
		cfg.Render.MaxListings = 40
	}
	if cfg.Server.Workers == 0 {
		cfg.Server.Workers = 1
	}
	if cfg.Server.QueueSize == 0 {
		cfg.Server.QueueSize = 64
	}
	if cfg.State.Backend == "" {
		cfg.State.Backend = "file"
		if cfg.State.RedisURL != "" {
			cfg.State.Backend = "redis"
		}
	}

	if raw.Scheduler.Bursts == nil {
		cfg.Scheduler.Bursts = DefaultBursts()
	} else {
		for i, rb := range *raw.Scheduler.Bursts {
			cfg.Scheduler.Bursts = append(cfg.Scheduler.Bursts, BurstConfig{
				Label:    rb.Label,
				Cron:     rb.Cron,
				Interval: dur(fmt.Sprintf("scheduler.bursts[%d].interval", i), rb.Interval, 0),
				Cycles:   rb.Cycles,
				Start:    rb.Start,
				Stop:     rb.Stop,
			})
		}
	}

	if err != nil {
		return nil, err
	}

	loc, lerr := time.LoadLocation(cfg.Scheduler.Timezone)
	if lerr != nil {
		return nil, fmt.Errorf("load scheduler.timezone %q: %w", cfg.Scheduler.Timezone, lerr)
	}
	cfg.Scheduler.Location = loc

	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Scheduler.PollingInterval <= 0 {
		return fmt.Errorf("scheduler.polling_interval must be positive, got %v", cfg.Scheduler.PollingInterval)
	}

	seen := make(map[string]bool)
	for i, b := range cfg.Scheduler.Bursts {
		if b.Label == "" {
			return fmt.Errorf("scheduler.bursts[%d].label is required", i)
		}
		if seen[b.Label] {
			return fmt.Errorf("scheduler.bursts: duplicate label %q", b.Label)
		}
		seen[b.Label] = true
		if _, err := cron.ParseStandard(b.Cron); err != nil {
			return fmt.Errorf("scheduler.bursts[%q].cron: %w", b.Label, err)
		}
		if b.Cycles < 1 {
			return fmt.Errorf("scheduler.bursts[%q].cycles must be at least 1, got %d", b.Label, b.Cycles)
		}
		if b.Interval < 0 {
			return fmt.Errorf("scheduler.bursts[%q].interval must not be negative", b.Label)
		}
	}

	switch cfg.Telegram.ParseMode {
	case "", "Markdown":
	default:
		return fmt.Errorf("telegram.parse_mode must be Markdown or empty, got %q", cfg.Telegram.ParseMode)
	}
	if cfg.Telegram.ChunkSize < 1 || cfg.Telegram.ChunkSize > 4096 {
		return fmt.Errorf("telegram.chunk_size must be between 1 and 4096, got %d", cfg.Telegram.ChunkSize)
	}
	if cfg.Telegram.MaxRetries < 0 {
		return fmt.Errorf("telegram.max_retries must not be negative")
	}
	if cfg.Telegram.RatePerSecond <= 0 {
		return fmt.Errorf("telegram.rate_per_second must be positive")
	}

	switch cfg.State.Backend {
	case "file":
		if cfg.State.Path == "" {
			return fmt.Errorf("state.path is required for the file backend")
		}
	case "redis":
		if _, err := cfg.State.RedisOptions(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("state.backend must be \"file\" or \"redis\", got %q", cfg.State.Backend)
	}

	return nil
}

// RedisOptions parses RedisURL.
func (s StateConfig) RedisOptions() (*redis.Options, error) {
	if s.RedisURL == "" {
		return nil, fmt.Errorf("state.redis_url (or REDIS_URL) is required for the redis backend")
	}
	opts, err := redis.ParseURL(s.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse state.redis_url: %w", err)
	}
	return opts, nil
}

// RequireTelegram reports whether the config can deliver messages.
func (c *Config) RequireTelegram() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram token is not set (telegram.token or TELEGRAM_TOKEN)")
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
