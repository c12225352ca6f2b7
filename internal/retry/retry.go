package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/amishk599/shiftalert/internal/model"
)

// Ensure RetrySender implements model.Sender.
var _ model.Sender = (*RetrySender)(nil)

// RetrySender is a decorator that retries transient delivery failures with
// exponential backoff and jitter before delegating to the wrapped Sender.
// It is only used for outbound notifications; upstream fetches are never retried.
type RetrySender struct {
	inner      model.Sender
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

// NewRetrySender wraps a Sender with retry logic.
// maxRetries is the number of additional attempts after the first failure (default: 2).
// baseDelay is the delay before the first retry (default: 500ms), doubled on each subsequent retry.
func NewRetrySender(inner model.Sender, maxRetries int, baseDelay time.Duration, logger *slog.Logger) *RetrySender {
	return &RetrySender{
		inner:      inner,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
	}
}

// Send attempts delivery, retrying on transient errors.
func (s *RetrySender) Send(ctx context.Context, chatID int64, text string) error {
	err := s.inner.Send(ctx, chatID, text)
	if err == nil {
		return nil
	}

	if !isRetryable(err) {
		return err
	}

	lastErr := err
	for attempt := 1; attempt <= s.maxRetries; attempt++ {
		delay := s.backoffDelay(attempt, lastErr)

		s.logger.Warn("retrying delivery after transient error",
			"chat_id", chatID,
			"attempt", attempt,
			"max_retries", s.maxRetries,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		err = s.inner.Send(ctx, chatID, text)
		if err == nil {
			return nil
		}

		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}

	return lastErr
}

// backoffDelay computes the delay for a given attempt with ±30% jitter.
// If the error includes a Retry-After duration (flood control), that takes precedence.
func (s *RetrySender) backoffDelay(attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	// Exponential: baseDelay * 2^(attempt-1)
	delay := s.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}

// isRetryable returns true if the error represents a transient failure worth retrying.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context cancellation: never retry.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == 429 {
			return true
		}
		if httpErr.StatusCode >= 500 {
			return true
		}
		// Blocked bot, chat not found, bad markup: retrying won't help.
		return false
	}

	// Non-HTTP errors (network, DNS) are retryable.
	return true
}
