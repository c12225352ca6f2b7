package notifier

import (
	"context"
	"log/slog"

	"github.com/amishk599/shiftalert/internal/model"
)

// Ensure LogSender implements model.Sender.
var _ model.Sender = (*LogSender)(nil)

// LogSender writes messages to the logger instead of Telegram. Used by
// check mode and when no bot token is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender returns a sender that logs each message via slog.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the message. It never fails.
func (n *LogSender) Send(_ context.Context, chatID int64, text string) error {
	n.logger.Info("message", "chat_id", chatID, "text", text)
	return nil
}
