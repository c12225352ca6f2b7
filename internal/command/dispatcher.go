package command

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned by Submit when the backlog is at capacity.
	ErrQueueFull = errors.New("command queue full")
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("dispatcher closed")
)

// DefaultTimeout bounds a single command, including any on-demand fetch.
const DefaultTimeout = 60 * time.Second

// Update is an incoming chat message reduced to what the responder needs.
type Update struct {
	ChatID int64
	Text   string
}

// Handler answers one message.
type Handler interface {
	Handle(ctx context.Context, chatID int64, text string) error
}

// Dispatcher hands webhook updates to background workers so the HTTP
// request can be acknowledged immediately.
type Dispatcher struct {
	handler Handler
	timeout time.Duration
	logger  *slog.Logger

	// base parents every command context; Shutdown cancels it when its
	// deadline passes.
	base   context.Context
	abort  context.CancelFunc
	queue  chan Update
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher starts workers goroutines reading from a queue of queueSize.
func NewDispatcher(handler Handler, workers, queueSize int, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	base, abort := context.WithCancel(context.Background())
	d := &Dispatcher{
		handler: handler,
		timeout: timeout,
		logger:  logger,
		base:    base,
		abort:   abort,
		queue:   make(chan Update, queueSize),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

// Submit enqueues u without blocking.
func (d *Dispatcher) Submit(u Update) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- u:
		return nil
	default:
		d.logger.Warn("command queue full, update dropped", "chat_id", u.ChatID)
		return ErrQueueFull
	}
}

// Close stops accepting updates and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.Shutdown(context.Background())
}

// Shutdown stops accepting updates and waits for queued ones until ctx is
// done. At that point running commands are cancelled, anything still queued
// is dropped, and ctx's error is returned without waiting further.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.abort()
		return nil
	case <-ctx.Done():
		d.abort()
		d.logger.Warn("command queue not drained before shutdown deadline", "error", ctx.Err())
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for u := range d.queue {
		if d.base.Err() != nil {
			d.logger.Debug("dispatcher aborted, update dropped", "chat_id", u.ChatID)
			continue
		}
		ctx, cancel := context.WithTimeout(d.base, d.timeout)
		if err := d.handler.Handle(ctx, u.ChatID, u.Text); err != nil {
			d.logger.Debug("command handled with error", "chat_id", u.ChatID, "error", err)
		}
		cancel()
	}
}
