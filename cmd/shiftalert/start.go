package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/amishk599/shiftalert/internal/command"
	"github.com/amishk599/shiftalert/internal/poller"
	"github.com/amishk599/shiftalert/internal/scheduler"
	"github.com/amishk599/shiftalert/internal/server"
	"github.com/amishk599/shiftalert/internal/state"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the polling daemon and webhook server",
	Long:  "Start the scheduler and the Telegram webhook server; blocks until SIGINT/SIGTERM.",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.RequireTelegram(); err != nil {
		logger.Error("cannot start", "error", err)
		os.Exit(1)
	}

	logger.Info("config loaded",
		"interval", cfg.Scheduler.PollingInterval.String(),
		"bursts", len(cfg.Scheduler.Bursts),
		"timezone", cfg.Scheduler.Timezone,
		"recipients", len(cfg.Telegram.Recipients),
		"state_backend", cfg.State.Backend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stateStore, closeState, err := setupStateStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open state store", "error", err)
		os.Exit(1)
	}
	defer closeState()

	history, closeHistory := setupHistory(ctx, cfg, logger)
	defer closeHistory()

	tg, err := setupTelegram(cfg, logger)
	if err != nil {
		logger.Error("failed to create telegram client", "error", err)
		os.Exit(1)
	}
	out := setupBroadcaster(cfg, tg, logger)

	detector := state.NewDetector(ctx, stateStore, logger)
	pipeline := poller.NewPipeline(
		setupFetcher(cfg, logger),
		setupFilter(cfg),
		setupRenderer(cfg),
		detector,
		history,
		out,
		logger,
	)

	sched := scheduler.NewScheduler(pipeline, scheduler.Options{
		Interval:      cfg.Scheduler.PollingInterval,
		Bursts:        schedulerBursts(cfg),
		Location:      cfg.Scheduler.Location,
		ShutdownGrace: cfg.Scheduler.ShutdownGrace,
	}, logger)

	responder := command.NewResponder(pipeline, out, sched, cfg.Scheduler.Location, logger)
	dispatcher := command.NewDispatcher(responder, cfg.Server.Workers, cfg.Server.QueueSize, cfg.Server.CommandTimeout, logger)

	grace := cfg.Scheduler.ShutdownGrace
	srv := server.New(server.Options{
		Token:           cfg.Telegram.Token,
		Secret:          cfg.Telegram.WebhookSecret,
		BaseURL:         cfg.Telegram.BaseURL,
		ShutdownTimeout: grace,
	}, dispatcher, tg, sched, logger)

	if cfg.Telegram.WebhookSecret == "" {
		logger.Warn("no webhook secret set; webhook requests are authenticated by path token only")
	}

	g, gctx := errgroup.WithContext(ctx)

	// One grace period covers the server, the scheduler and the command
	// queue. shutdownCtx expires grace after shutdown begins; a second later
	// the process exits no matter what is still running.
	shutdownCtx, cancelShutdown := context.WithCancel(context.Background())
	defer cancelShutdown()
	context.AfterFunc(gctx, func() {
		time.AfterFunc(grace, cancelShutdown)
		time.AfterFunc(grace+time.Second, func() {
			logger.Error("shutdown grace period exceeded, exiting", "grace", grace)
			os.Exit(1)
		})
	})

	g.Go(func() error {
		return srv.ListenAndServe(gctx, net.JoinHostPort("", cfg.Server.Port))
	})
	g.Go(func() error {
		return sched.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("shiftalert stopped with error", "error", err)
		dispatcher.Shutdown(shutdownCtx)
		os.Exit(1)
	}

	// The server is down, so nothing else can be submitted.
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Warn("pending commands abandoned", "error", err)
	}
	logger.Info("goodbye")
	return nil
}
