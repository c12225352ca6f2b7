package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/amishk599/shiftalert/internal/model"
)

// Pacer keeps outbound messages inside Telegram's limits: a global rate
// across all chats and a minimum gap between messages to the same chat.
type Pacer struct {
	global  *rate.Limiter
	mu      sync.Mutex
	perChat map[int64]*rate.Limiter // key: chat id
	chatGap time.Duration
}

// NewPacer allows perSecond messages overall and one message per chatGap to
// any single chat. Non-positive values disable that limit.
func NewPacer(perSecond float64, chatGap time.Duration) *Pacer {
	global := rate.NewLimiter(rate.Inf, 0)
	if perSecond > 0 {
		global = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return &Pacer{
		global:  global,
		perChat: make(map[int64]*rate.Limiter),
		chatGap: chatGap,
	}
}

// Wait blocks until a message to chatID may be sent.
// Returns an error if the context is cancelled while waiting.
func (p *Pacer) Wait(ctx context.Context, chatID int64) error {
	if lim := p.chatLimiter(chatID); lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return fmt.Errorf("pacing chat %d: %w", chatID, err)
		}
	}
	if err := p.global.Wait(ctx); err != nil {
		return fmt.Errorf("pacing global: %w", err)
	}
	return nil
}

func (p *Pacer) chatLimiter(chatID int64) *rate.Limiter {
	if p.chatGap <= 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	lim, ok := p.perChat[chatID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(p.chatGap), 1)
		p.perChat[chatID] = lim
	}
	return lim
}

// Ensure PacedSender implements model.Sender.
var _ model.Sender = (*PacedSender)(nil)

// PacedSender is a decorator that waits on a Pacer before delegating to the
// wrapped Sender.
type PacedSender struct {
	inner model.Sender
	pacer *Pacer
}

// NewPacedSender wraps a Sender with pacing. Senders sharing a bot token
// should share the Pacer.
func NewPacedSender(inner model.Sender, pacer *Pacer) *PacedSender {
	return &PacedSender{inner: inner, pacer: pacer}
}

// Send waits for the pacer to allow a message, then delegates.
func (s *PacedSender) Send(ctx context.Context, chatID int64, text string) error {
	if err := s.pacer.Wait(ctx, chatID); err != nil {
		return err
	}
	return s.inner.Send(ctx, chatID, text)
}
