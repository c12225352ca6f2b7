package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/shiftalert/internal/classify"
	"github.com/amishk599/shiftalert/internal/model"
	"github.com/amishk599/shiftalert/internal/notifier"
	"github.com/amishk599/shiftalert/internal/poller"
	"github.com/amishk599/shiftalert/internal/state"
	"github.com/amishk599/shiftalert/internal/store"
)

var checkSend bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Fetch once, print the board, exit",
	Long: "One-shot run: fetches the board, prints the message a broadcast would carry, exits. " +
		"Nothing is persisted. With --send the message is broadcast to the configured recipients.",
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkSend, "send", false, "broadcast the message to the configured recipients")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("check mode: last message and job history are left untouched")

	var sender model.Sender = notifier.NewLogSender(logger)
	if checkSend {
		if err := cfg.RequireTelegram(); err != nil {
			logger.Error("--send needs telegram", "error", err)
			os.Exit(1)
		}
		tg, err := setupTelegram(cfg, logger)
		if err != nil {
			logger.Error("failed to create telegram client", "error", err)
			os.Exit(1)
		}
		sender = tg
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A fresh detector over a NopStore always sends, so --send delivers.
	detector := state.NewDetector(ctx, state.NewNopStore(), logger)
	pipeline := poller.NewPipeline(
		setupFetcher(cfg, logger),
		setupFilter(cfg),
		setupRenderer(cfg),
		detector,
		store.NewNopStore(),
		setupBroadcaster(cfg, sender, logger),
		logger,
	)

	if !checkSend {
		snap := pipeline.Preview(ctx)
		printSnapshot(snap)
		return nil
	}

	res, err := pipeline.RunCycle(ctx, "check")
	if err != nil {
		logger.Error("check failed", "error", err)
		os.Exit(1)
	}
	printSnapshot(res.Snapshot)
	for _, o := range res.Outcomes {
		if o.Err != nil {
			logger.Error("delivery failed", "chat_id", o.Recipient, "error", o.Err)
		}
	}
	logger.Info("check complete")
	return nil
}

func printSnapshot(snap poller.Snapshot) {
	if snap.FetchErr == nil {
		s := classify.Summarize(snap.Records)
		fmt.Printf("fetched %d, listed %d (part-time %d, full-time %d, other %d)\n\n",
			snap.Fetched, len(snap.Records), s.PartTime, s.FullTime, s.Other)
	}
	fmt.Println(snap.Message)
}
