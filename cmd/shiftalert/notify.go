package main

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/shiftalert/internal/notifier"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Notification subcommands",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test notification",
	Long:  "Sends a test message to every configured Telegram recipient.",
	RunE:  runNotifyTest,
}

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyTestCmd)
}

func runNotifyTest(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.RequireTelegram(); err != nil {
		logger.Error("cannot send", "error", err)
		os.Exit(1)
	}

	tg, err := setupTelegram(cfg, logger)
	if err != nil {
		logger.Error("failed to create telegram client", "error", err)
		os.Exit(1)
	}
	b := setupBroadcaster(cfg, tg, logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := notifier.SendTestMessage(ctx, b); err != nil {
		logger.Error("test notification failed", "error", err)
		os.Exit(1)
	}
	logger.Info("test notification sent successfully", "recipients", len(b.Recipients()))
	return nil
}
