package state

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/amishk599/shiftalert/internal/model"
)

// Detector decides whether a rendered message differs from the last one
// delivered, and owns persisting that last message.
type Detector struct {
	mu     sync.RWMutex
	state  model.NotificationState
	store  model.StateStore
	logger *slog.Logger
	now    func() time.Time
}

// NewDetector loads the persisted state once. Load failures are logged and
// leave the detector empty; they are never fatal.
func NewDetector(ctx context.Context, store model.StateStore, logger *slog.Logger) *Detector {
	d := &Detector{
		store:  store,
		logger: logger,
		now:    time.Now,
	}

	st, err := store.Load(ctx)
	if err != nil {
		logger.Warn("could not load notification state, starting empty", "error", err)
		return d
	}
	d.state = st
	if st.LastMessage != "" {
		logger.Info("loaded notification state", "updated_at", st.UpdatedAt, "length", len(st.LastMessage))
	}
	return d
}

// ShouldSend reports whether msg must be delivered. With force set it is
// always true; otherwise msg must differ byte-for-byte from the last message.
func (d *Detector) ShouldSend(msg string, force bool) bool {
	if force {
		return true
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return msg != d.state.LastMessage
}

// Commit records msg as delivered and persists it. The in-memory state is
// updated even when persisting fails.
func (d *Detector) Commit(ctx context.Context, msg string) error {
	d.mu.Lock()
	d.state = model.NotificationState{LastMessage: msg, UpdatedAt: d.now()}
	st := d.state
	d.mu.Unlock()

	if err := d.store.Save(ctx, st); err != nil {
		return fmt.Errorf("persisting notification state: %w", err)
	}
	return nil
}

// Last returns a copy of the current state.
func (d *Detector) Last() model.NotificationState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}
