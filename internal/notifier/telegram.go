package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/amishk599/shiftalert/internal/model"
)

// DefaultAPIURL is the public Telegram Bot API.
const DefaultAPIURL = "https://api.telegram.org"

// Ensure TelegramSender implements model.Sender.
var _ model.Sender = (*TelegramSender)(nil)

// TelegramSender delivers messages through the Telegram Bot API.
type TelegramSender struct {
	bot       *tele.Bot
	parseMode tele.ParseMode
	logger    *slog.Logger
}

// NewTelegramSender builds an offline bot: no getMe round trip at startup.
// httpClient's timeout bounds every API call.
func NewTelegramSender(apiURL, token, parseMode string, httpClient *http.Client, logger *slog.Logger) (*TelegramSender, error) {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	bot, err := tele.NewBot(tele.Settings{
		URL:     strings.TrimRight(apiURL, "/"),
		Token:   token,
		Client:  httpClient,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	return &TelegramSender{
		bot:       bot,
		parseMode: tele.ParseMode(parseMode),
		logger:    logger,
	}, nil
}

// Send posts one message to chatID with link previews disabled.
func (s *TelegramSender) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.bot.Send(tele.ChatID(chatID), text, &tele.SendOptions{
		ParseMode:             s.parseMode,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return classifyError(err)
	}
	s.logger.Debug("telegram message sent", "chat_id", chatID, "length", len(text))
	return nil
}

// SetWebhook registers publicURL with Telegram. A non-empty secret is echoed
// back by Telegram in the X-Telegram-Bot-Api-Secret-Token header.
func (s *TelegramSender) SetWebhook(publicURL, secret string) error {
	err := s.bot.SetWebhook(&tele.Webhook{
		Endpoint:       &tele.WebhookEndpoint{PublicURL: publicURL},
		SecretToken:    secret,
		AllowedUpdates: []string{"message", "edited_message"},
	})
	if err != nil {
		return fmt.Errorf("setting webhook: %w", classifyError(err))
	}
	return nil
}

// DeleteWebhook removes the registered webhook.
func (s *TelegramSender) DeleteWebhook(dropPending bool) error {
	if err := s.bot.RemoveWebhook(dropPending); err != nil {
		return fmt.Errorf("removing webhook: %w", classifyError(err))
	}
	return nil
}

// Token returns the bot token, which is part of the webhook path.
func (s *TelegramSender) Token() string { return s.bot.Token }

// classifyError maps telebot errors onto model.HTTPError so retry logic can
// inspect status codes. Transport errors are returned unchanged.
func classifyError(err error) error {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return &model.HTTPError{
			StatusCode: http.StatusTooManyRequests,
			RetryAfter: time.Duration(flood.RetryAfter) * time.Second,
			Err:        err,
		}
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) && apiErr.Code != 0 {
		return &model.HTTPError{StatusCode: apiErr.Code, Err: err}
	}
	// Unknown API errors only carry their code as "telegram: <desc> (<code>)".
	msg := err.Error()
	if strings.HasPrefix(msg, "telegram: ") && strings.HasSuffix(msg, ")") {
		if i := strings.LastIndex(msg, "("); i >= 0 {
			if code, convErr := strconv.Atoi(msg[i+1 : len(msg)-1]); convErr == nil {
				return &model.HTTPError{StatusCode: code, Err: err}
			}
		}
	}
	return err
}
