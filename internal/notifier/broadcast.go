package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/amishk599/shiftalert/internal/model"
)

// DefaultChunkSize stays below Telegram's 4096 character limit with headroom
// for markup escapes.
const DefaultChunkSize = 3800

// Ensure Broadcaster implements model.Broadcaster.
var _ model.Broadcaster = (*Broadcaster)(nil)

// Broadcaster fans a message out to a fixed recipient list, one recipient at a
// time. A failing recipient never stops delivery to the next one.
type Broadcaster struct {
	sender     model.Sender
	recipients []int64
	chunkSize  int
	timeout    time.Duration // per recipient, across all chunks and retries
	logger     *slog.Logger
}

// NewBroadcaster returns a broadcaster. chunkSize <= 0 selects
// DefaultChunkSize; timeout <= 0 disables the per-recipient bound.
func NewBroadcaster(sender model.Sender, recipients []int64, chunkSize int, timeout time.Duration, logger *slog.Logger) *Broadcaster {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Broadcaster{
		sender:     sender,
		recipients: recipients,
		chunkSize:  chunkSize,
		timeout:    timeout,
		logger:     logger,
	}
}

// Recipients returns the configured chat ids.
func (b *Broadcaster) Recipients() []int64 { return b.recipients }

// Broadcast delivers text to every recipient and reports per-recipient
// outcomes. It has no failure mode of its own.
func (b *Broadcaster) Broadcast(ctx context.Context, text string) []model.DeliveryOutcome {
	if text == "" || len(b.recipients) == 0 {
		return nil
	}

	chunks := SplitMessage(text, b.chunkSize)
	outcomes := make([]model.DeliveryOutcome, 0, len(b.recipients))
	failures := 0
	for _, id := range b.recipients {
		sent, err := b.deliver(ctx, id, chunks)
		if err != nil {
			b.logger.Error("telegram delivery failed", "chat_id", id, "chunks_sent", sent, "error", err)
			failures++
		}
		outcomes = append(outcomes, model.DeliveryOutcome{Recipient: id, Chunks: sent, Err: err})
	}

	b.logger.Info("broadcast complete",
		"recipients", len(b.recipients),
		"chunks", len(chunks),
		"sent", len(b.recipients)-failures,
		"failed", failures,
	)
	return outcomes
}

// SendTo delivers text to a single chat, chunked like Broadcast.
func (b *Broadcaster) SendTo(ctx context.Context, chatID int64, text string) error {
	if text == "" {
		return nil
	}
	_, err := b.deliver(ctx, chatID, SplitMessage(text, b.chunkSize))
	return err
}

// deliver sends chunks in order and stops at the first failure, so a
// recipient never sees a message with a hole in it.
func (b *Broadcaster) deliver(ctx context.Context, chatID int64, chunks []string) (int, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	for i, chunk := range chunks {
		if err := b.sender.Send(ctx, chatID, chunk); err != nil {
			return i, fmt.Errorf("deliver to %d (chunk %d/%d): %w", chatID, i+1, len(chunks), err)
		}
	}
	return len(chunks), nil
}

// SplitMessage breaks text into pieces of at most size runes. It cuts at the
// last newline inside the window when there is one (dropping that newline),
// and hard-splits otherwise.
func SplitMessage(text string, size int) []string {
	if size <= 0 || utf8.RuneCountInString(text) <= size {
		return []string{text}
	}

	var chunks []string
	rest := text
	for utf8.RuneCountInString(rest) > size {
		// Byte offset of the rune boundary after `size` runes.
		cut := 0
		for i := 0; i < size; i++ {
			_, w := utf8.DecodeRuneInString(rest[cut:])
			cut += w
		}

		window := rest[:cut]
		if nl := strings.LastIndexByte(window, '\n'); nl > 0 {
			chunks = append(chunks, rest[:nl])
			rest = rest[nl+1:]
			continue
		}
		chunks = append(chunks, window)
		rest = rest[cut:]
	}
	if rest != "" {
		chunks = append(chunks, rest)
	}
	return chunks
}

// SendTestMessage broadcasts a fixed message to verify delivery works.
// It fails only when no recipient received it.
func SendTestMessage(ctx context.Context, b *Broadcaster) error {
	if len(b.recipients) == 0 {
		return fmt.Errorf("no recipients configured")
	}
	outcomes := b.Broadcast(ctx, "🧪 shiftalert test message: delivery is working.")
	failed := 0
	var lastErr error
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			lastErr = o.Err
		}
	}
	if failed == len(outcomes) {
		return fmt.Errorf("all %d test deliveries failed: %w", failed, lastErr)
	}
	return nil
}
