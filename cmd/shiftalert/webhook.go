package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amishk599/shiftalert/internal/server"
)

var dropPending bool

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Manage the Telegram webhook registration",
}

var webhookSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Point Telegram at <base_url>/webhook/<token>",
	RunE:  runWebhookSet,
}

var webhookDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the webhook registration",
	RunE:  runWebhookDelete,
}

func init() {
	webhookDeleteCmd.Flags().BoolVar(&dropPending, "drop-pending", false, "also drop updates Telegram has queued")
	webhookCmd.AddCommand(webhookSetCmd, webhookDeleteCmd)
	rootCmd.AddCommand(webhookCmd)
}

func runWebhookSet(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.RequireTelegram(); err != nil {
		logger.Error("cannot register webhook", "error", err)
		os.Exit(1)
	}
	if cfg.Telegram.BaseURL == "" {
		logger.Error("telegram.base_url (or BASE_URL / RENDER_EXTERNAL_URL) is required")
		os.Exit(1)
	}

	tg, err := setupTelegram(cfg, logger)
	if err != nil {
		logger.Error("failed to create telegram client", "error", err)
		os.Exit(1)
	}

	url := server.WebhookURL(cfg.Telegram.BaseURL, cfg.Telegram.Token)
	if err := tg.SetWebhook(url, cfg.Telegram.WebhookSecret); err != nil {
		logger.Error("webhook registration failed", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Webhook set to %s/webhook/<token>\n", cfg.Telegram.BaseURL)
	return nil
}

func runWebhookDelete(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.RequireTelegram(); err != nil {
		logger.Error("cannot delete webhook", "error", err)
		os.Exit(1)
	}

	tg, err := setupTelegram(cfg, logger)
	if err != nil {
		logger.Error("failed to create telegram client", "error", err)
		os.Exit(1)
	}
	if err := tg.DeleteWebhook(dropPending); err != nil {
		logger.Error("webhook removal failed", "error", err)
		os.Exit(1)
	}
	fmt.Println("Webhook removed")
	return nil
}
