package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	tele "gopkg.in/telebot.v3"

	"github.com/amishk599/shiftalert/internal/command"
	"github.com/amishk599/shiftalert/internal/scheduler"
)

// SecretHeader carries the secret token Telegram echoes on every webhook call.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Submitter queues a chat message for the responder.
type Submitter interface {
	Submit(u command.Update) error
}

// WebhookRegistrar points Telegram at our webhook URL.
type WebhookRegistrar interface {
	SetWebhook(publicURL, secret string) error
}

// StateReporter exposes the scheduler mode for health checks.
type StateReporter interface {
	State() scheduler.State
}

// Options configures the HTTP surface.
type Options struct {
	Token   string // bot token; the webhook path must end with it
	Secret  string // optional webhook secret token
	BaseURL string // public base URL used by /setup-webhook

	// ShutdownTimeout bounds graceful shutdown; zero means 5s.
	ShutdownTimeout time.Duration
}

// Server serves the Telegram webhook and health endpoints.
type Server struct {
	opts      Options
	dispatch  Submitter
	registrar WebhookRegistrar
	states    StateReporter
	logger    *slog.Logger
	now       func() time.Time
	engine    *gin.Engine
}

// New builds the router. states may be nil.
func New(opts Options, dispatch Submitter, registrar WebhookRegistrar, states StateReporter, logger *slog.Logger) *Server {
	s := &Server{
		opts:      opts,
		dispatch:  dispatch,
		registrar: registrar,
		states:    states,
		logger:    logger,
		now:       time.Now,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))

	r.GET("/", s.root)
	r.GET("/health", s.health)
	r.GET("/setup-webhook", s.setupWebhook)
	r.POST("/webhook/:token", s.webhook)

	s.engine = r
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	timeout := s.opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// WebhookURL joins the public base URL and the webhook path for token.
func WebhookURL(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/webhook/" + token
}

func (s *Server) root(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (s *Server) health(c *gin.Context) {
	state := scheduler.Idle
	if s.states != nil {
		state = s.states.State()
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":    true,
		"time":  s.now().UTC().Format(time.RFC3339),
		"state": state.String(),
	})
}

func (s *Server) setupWebhook(c *gin.Context) {
	if s.opts.BaseURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "base URL is not configured"})
		return
	}

	url := WebhookURL(s.opts.BaseURL, s.opts.Token)
	if err := s.registrar.SetWebhook(url, s.opts.Secret); err != nil {
		s.logger.Error("webhook registration failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	s.logger.Info("webhook registered", "base_url", s.opts.BaseURL)
	c.JSON(http.StatusOK, gin.H{"ok": true, "url": url})
}

// webhook acknowledges every authenticated update with 200 so Telegram does
// not redeliver it; the work itself runs on the dispatcher.
func (s *Server) webhook(c *gin.Context) {
	if !equalSecret(c.Param("token"), s.opts.Token) {
		c.Status(http.StatusNotFound)
		return
	}
	if s.opts.Secret != "" && !equalSecret(c.GetHeader(SecretHeader), s.opts.Secret) {
		c.Status(http.StatusUnauthorized)
		return
	}

	var upd tele.Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		s.logger.Warn("undecodable webhook update", "error", err)
		c.Status(http.StatusOK)
		return
	}

	msg := upd.Message
	if msg == nil {
		msg = upd.EditedMessage
	}
	if msg == nil || msg.Chat == nil {
		c.Status(http.StatusOK)
		return
	}

	if err := s.dispatch.Submit(command.Update{ChatID: msg.Chat.ID, Text: msg.Text}); err != nil {
		s.logger.Warn("update not queued", "chat_id", msg.Chat.ID, "error", err)
	}
	c.Status(http.StatusOK)
}

func equalSecret(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// requestLogger logs one line per request. It logs the route pattern rather
// than the raw path so the bot token never reaches the logs.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		attrs := []any{
			"method", c.Request.Method,
			"route", route,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String(), attrs...)
			return
		}
		logger.Debug("request processed", attrs...)
	}
}
