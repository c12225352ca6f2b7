package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/shiftalert/internal/classify"
	"github.com/amishk599/shiftalert/internal/model"
	"github.com/amishk599/shiftalert/internal/state"
)

// ErrCycleInFlight is returned when a run is skipped because another one
// holds the pipeline.
var ErrCycleInFlight = errors.New("pipeline run already in flight")

// BusyReply is sent to a chat whose on-demand request hit a running cycle.
const BusyReply = "⏳ A job check is already running. Try again in a moment."

// RecordFilter narrows the fetched board before rendering.
type RecordFilter interface {
	Apply(records []model.JobRecord) []model.JobRecord
}

// Snapshot is one fetch rendered into a message.
type Snapshot struct {
	Message  string
	Records  []model.JobRecord // after filtering
	Fetched  int               // before filtering
	FetchErr error
}

// CycleResult describes what a RunCycle did.
type CycleResult struct {
	Snapshot
	Sent     bool
	Outcomes []model.DeliveryOutcome
}

// Pipeline owns the fetch → classify → detect → notify routine. Every entry
// point (baseline tick, burst tick, webhook command) goes through the same
// guard, so at most one run is in flight and the detector has one writer.
type Pipeline struct {
	fetcher  model.JobFetcher
	filter   RecordFilter
	renderer *classify.Renderer
	detector *state.Detector
	history  model.HistoryStore
	out      model.Broadcaster
	logger   *slog.Logger

	guard sync.Mutex
	now   func() time.Time
}

// NewPipeline creates a pipeline wired with all its dependencies.
// filter may be nil.
func NewPipeline(
	fetcher model.JobFetcher,
	filter RecordFilter,
	renderer *classify.Renderer,
	detector *state.Detector,
	history model.HistoryStore,
	out model.Broadcaster,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		fetcher:  fetcher,
		filter:   filter,
		renderer: renderer,
		detector: detector,
		history:  history,
		out:      out,
		logger:   logger,
		now:      time.Now,
	}
}

// RunCycle runs one scheduled check and broadcasts the board only if it
// changed since the last delivered message. It returns ErrCycleInFlight
// without doing anything when another run holds the pipeline.
func (p *Pipeline) RunCycle(ctx context.Context, trigger string) (CycleResult, error) {
	if !p.guard.TryLock() {
		p.logger.Warn("cycle skipped, previous run still in flight", "trigger", trigger)
		return CycleResult{}, ErrCycleInFlight
	}
	defer p.guard.Unlock()

	logger := p.logger.With("run_id", uuid.NewString(), "trigger", trigger)
	start := time.Now()

	snap := p.snapshot(ctx, logger)
	if snap.FetchErr == nil {
		p.syncHistory(ctx, snap.Records, logger)
	}

	result := CycleResult{Snapshot: snap}
	if !p.detector.ShouldSend(snap.Message, false) {
		logger.Info("no change, nothing sent", "fetched", snap.Fetched, "duration", time.Since(start))
		return result, nil
	}

	result.Outcomes = p.out.Broadcast(ctx, snap.Message)
	result.Sent = true

	// Partial or total delivery failure still counts as delivered.
	if err := p.detector.Commit(ctx, snap.Message); err != nil {
		logger.Error("state not persisted, continuing in memory", "error", err)
	}

	failed := 0
	for _, o := range result.Outcomes {
		if o.Err != nil {
			failed++
		}
	}
	logger.Info("board changed, broadcast sent",
		"fetched", snap.Fetched,
		"listed", len(snap.Records),
		"recipients", len(result.Outcomes),
		"failed", failed,
		"duration", time.Since(start),
	)
	return result, nil
}

// OnDemand fetches the board and sends it to chatID regardless of what was
// last broadcast. It neither consults nor updates the change detector.
func (p *Pipeline) OnDemand(ctx context.Context, chatID int64) error {
	if !p.guard.TryLock() {
		p.logger.Info("on-demand request skipped, run in flight", "chat_id", chatID)
		return p.out.SendTo(ctx, chatID, BusyReply)
	}
	defer p.guard.Unlock()

	logger := p.logger.With("run_id", uuid.NewString(), "trigger", "command", "chat_id", chatID)
	snap := p.snapshot(ctx, logger)

	if err := p.out.SendTo(ctx, chatID, snap.Message); err != nil {
		return err
	}
	logger.Info("on-demand board sent", "fetched", snap.Fetched, "listed", len(snap.Records))
	return nil
}

// Preview renders the current board without sending or recording anything.
// It does not take the guard.
func (p *Pipeline) Preview(ctx context.Context) Snapshot {
	return p.snapshot(ctx, p.logger)
}

// Announce broadcasts an operational message (burst start/stop). It bypasses
// the guard and the change detector.
func (p *Pipeline) Announce(ctx context.Context, text string) {
	p.out.Broadcast(ctx, text)
}

// LastSent returns the last delivered broadcast.
func (p *Pipeline) LastSent() model.NotificationState {
	return p.detector.Last()
}

// Drain waits up to timeout for the in-flight run, if any, to release the
// pipeline. It reports whether it did.
func (p *Pipeline) Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		p.guard.Lock()
		p.guard.Unlock()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (p *Pipeline) snapshot(ctx context.Context, logger *slog.Logger) Snapshot {
	records, err := p.fetcher.FetchJobs(ctx)
	if err != nil {
		logger.Warn("fetch failed", "error", err)
		return Snapshot{Message: p.renderer.RenderError(err), FetchErr: err}
	}

	fetched := len(records)
	if p.filter != nil {
		records = p.filter.Apply(records)
	}
	return Snapshot{
		Message: p.renderer.Render(records),
		Records: records,
		Fetched: fetched,
	}
}

func (p *Pipeline) syncHistory(ctx context.Context, records []model.JobRecord, logger *slog.Logger) {
	if p.history == nil {
		return
	}
	part, _, _ := classify.Partition(records)
	delta, err := p.history.Sync(ctx, part, p.now())
	if err != nil {
		logger.Error("job history sync failed", "error", err)
		return
	}
	if delta != (model.HistoryDelta{}) {
		logger.Info("job history updated",
			"new", delta.New,
			"reactivated", delta.Reactivated,
			"deactivated", delta.Deactivated,
		)
	}
}
