package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/amishk599/shiftalert/internal/classify"
	"github.com/amishk599/shiftalert/internal/config"
	"github.com/amishk599/shiftalert/internal/filter"
	"github.com/amishk599/shiftalert/internal/jobquery"
	"github.com/amishk599/shiftalert/internal/model"
	"github.com/amishk599/shiftalert/internal/notifier"
	"github.com/amishk599/shiftalert/internal/ratelimit"
	"github.com/amishk599/shiftalert/internal/retry"
	"github.com/amishk599/shiftalert/internal/scheduler"
	"github.com/amishk599/shiftalert/internal/state"
	"github.com/amishk599/shiftalert/internal/store"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "shiftalert",
	Short: "Part-time shift alerts on Telegram",
	Long:  "shiftalert polls the job board and tells Telegram subscribers when the part-time listings change.",
	// Default to `start` so that `shiftalert` with no args runs the daemon.
	RunE:          runStart,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: SHIFTALERT_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > SHIFTALERT_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	return config.Load(config.Resolve(path))
}

func setupLogger(dbg bool) *slog.Logger {
	return newLogger(os.Stdout, dbg)
}

// newLogger colours output when w is a terminal.
func newLogger(w io.Writer, dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return slog.New(tint.NewHandler(w, &tint.Options{Level: logLevel, TimeFormat: time.TimeOnly}))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel}))
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupFetcher(cfg *config.Config, logger *slog.Logger) *jobquery.Client {
	if cfg.Upstream.AuthToken == "" {
		logger.Warn("no upstream auth token set (upstream.auth_token or AUTH_TOKEN); requests may be rejected")
	}
	httpClient := &http.Client{Timeout: cfg.Upstream.Timeout + 5*time.Second}
	return jobquery.NewClient(cfg.Upstream.Endpoint, cfg.Upstream.AuthToken, cfg.Upstream.Timeout, httpClient)
}

func setupFilter(cfg *config.Config) *filter.CityAndTitleFilter {
	return filter.NewCityAndTitleFilter(cfg.Filters.Cities, cfg.Filters.ExcludeCities, cfg.Filters.TitleKeywords)
}

func setupRenderer(cfg *config.Config) *classify.Renderer {
	r := classify.NewRenderer(cfg.Render.Footer, notifier.EscaperFor(cfg.Telegram.ParseMode))
	r.MaxListings = max(cfg.Render.MaxListings, 0)
	return r
}

// setupTelegram builds the Bot API client. The caller must have checked the
// token with cfg.RequireTelegram.
func setupTelegram(cfg *config.Config, logger *slog.Logger) (*notifier.TelegramSender, error) {
	httpClient := &http.Client{Timeout: cfg.Telegram.SendTimeout}
	return notifier.NewTelegramSender(cfg.Telegram.APIURL, cfg.Telegram.Token, cfg.Telegram.ParseMode, httpClient, logger)
}

// setupBroadcaster wraps sender with retries and pacing:
// Broadcaster → PacedSender → RetrySender → sender.
func setupBroadcaster(cfg *config.Config, sender model.Sender, logger *slog.Logger) *notifier.Broadcaster {
	var s model.Sender = retry.NewRetrySender(sender, cfg.Telegram.MaxRetries, cfg.Telegram.RetryBaseDelay, logger)
	s = ratelimit.NewPacedSender(s, ratelimit.NewPacer(cfg.Telegram.RatePerSecond, cfg.Telegram.ChatGap))

	if len(cfg.Telegram.Recipients) == 0 {
		logger.Warn("no telegram recipients configured (telegram.recipients or TELEGRAM_USER_ID)")
	}
	return notifier.NewBroadcaster(s, cfg.Telegram.Recipients, cfg.Telegram.ChunkSize, cfg.Telegram.SendTimeout, logger)
}

// setupStateStore opens the configured last-message store. The returned
// close func is never nil.
func setupStateStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (model.StateStore, func(), error) {
	switch cfg.State.Backend {
	case "redis":
		opts, err := cfg.State.RedisOptions()
		if err != nil {
			return nil, func() {}, err
		}
		rs, err := state.NewRedisStore(ctx, opts, cfg.State.RedisPrefix, logger)
		if err != nil {
			return nil, func() {}, err
		}
		logger.Info("using redis state store", "addr", opts.Addr)
		return rs, func() { rs.Close() }, nil
	default:
		logger.Info("using file state store", "path", cfg.State.Path)
		return state.NewFileStore(cfg.State.Path), func() {}, nil
	}
}

// setupHistory opens the job history, or a no-op store when it is disabled.
// Open failures degrade to the no-op store; history is never required.
func setupHistory(ctx context.Context, cfg *config.Config, logger *slog.Logger) (model.HistoryStore, func()) {
	if !cfg.History.Enabled {
		return store.NewNopStore(), func() {}
	}
	sqlStore, err := store.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		logger.Error("failed to open job history, continuing without it", "path", cfg.History.Path, "error", err)
		return store.NewNopStore(), func() {}
	}
	if n, err := sqlStore.Cleanup(ctx, cfg.History.Retention); err != nil {
		logger.Warn("job history cleanup failed", "error", err)
	} else if n > 0 {
		logger.Info("pruned job history", "removed", n, "older_than", cfg.History.Retention.String())
	}
	return sqlStore, func() { sqlStore.Close() }
}

func schedulerBursts(cfg *config.Config) []scheduler.Burst {
	bursts := make([]scheduler.Burst, 0, len(cfg.Scheduler.Bursts))
	for _, b := range cfg.Scheduler.Bursts {
		bursts = append(bursts, scheduler.Burst{
			Label:    b.Label,
			Cron:     b.Cron,
			Interval: b.Interval,
			Cycles:   b.Cycles,
			Start:    b.Start,
			Stop:     b.Stop,
		})
	}
	return bursts
}
