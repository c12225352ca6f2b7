package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/amishk599/shiftalert/internal/model"
	"github.com/amishk599/shiftalert/internal/poller"
)

// DefaultInterval is the baseline polling interval.
const DefaultInterval = 5 * time.Minute

var (
	// ErrBurstActive is returned by TriggerBurst while another burst is running.
	ErrBurstActive = errors.New("burst already active")
	// ErrStopped is returned by TriggerBurst once shutdown has begun.
	ErrStopped = errors.New("scheduler stopped")
)

// State is the scheduler's coarse mode.
type State int

const (
	Idle State = iota
	BaselinePolling
	Bursting
)

func (s State) String() string {
	switch s {
	case BaselinePolling:
		return "baseline"
	case Bursting:
		return "bursting"
	default:
		return "idle"
	}
}

// Burst is a time-of-day window of rapid polling.
type Burst struct {
	Label    string
	Cron     string        // standard 5-field spec, evaluated in the scheduler's location
	Interval time.Duration // gap before each cycle; 0 runs cycles back to back
	Cycles   int
	Start    []string // announcements broadcast when the burst begins
	Stop     string   // announcement broadcast once after the final cycle
}

// Runner is the part of the pipeline the scheduler drives.
type Runner interface {
	RunCycle(ctx context.Context, trigger string) (poller.CycleResult, error)
	Announce(ctx context.Context, text string)
	Drain(timeout time.Duration) bool
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	State State
	Burst model.BurstSchedule
}

// Options configures a Scheduler.
type Options struct {
	Interval      time.Duration
	Bursts        []Burst
	Location      *time.Location
	ShutdownGrace time.Duration
}

// Scheduler owns every timer: the baseline ticker, the cron entries that
// start bursts, and the burst loop itself.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	bursts   []Burst
	location *time.Location
	grace    time.Duration
	logger   *slog.Logger

	mu       sync.Mutex
	state    State
	burst    model.BurstSchedule
	stopping bool

	// wg tracks cycle and burst goroutines. Add is only called under mu
	// while stopping is false.
	wg sync.WaitGroup
}

// NewScheduler creates a scheduler. A nil location means UTC and a
// non-positive interval means DefaultInterval.
func NewScheduler(runner Runner, opts Options, logger *slog.Logger) *Scheduler {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	grace := opts.ShutdownGrace
	if grace <= 0 {
		grace = 5 * time.Second
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		bursts:   opts.Bursts,
		location: loc,
		grace:    grace,
		logger:   logger,
	}
}

// Run runs one immediate baseline cycle, then ticks on the baseline interval
// and starts bursts on their cron specs. Cycles run in their own goroutines,
// so a slow fetch never delays shutdown. Once ctx is cancelled Run waits at
// most the shutdown grace for in-flight work, then returns nil regardless.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(s.location))
	for _, b := range s.bursts {
		label := b.Label
		if _, err := c.AddFunc(b.Cron, func() {
			if err := s.TriggerBurst(ctx, label); err != nil {
				s.logger.Warn("burst not started", "burst", label, "error", err)
			}
		}); err != nil {
			return fmt.Errorf("schedule burst %q: %w", b.Label, err)
		}
	}

	s.setState(BaselinePolling)
	s.logger.Info("starting scheduler",
		"interval", s.interval.String(),
		"bursts", len(s.bursts),
		"location", s.location.String(),
	)

	c.Start()
	s.goCycle(ctx, "baseline")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.shutdown(c)
			return nil
		case <-ticker.C:
			s.goCycle(ctx, "baseline")
		}
	}
}

// shutdown stops the cron entries and waits for bursts, cycles and the
// pipeline to settle. Everything shares one grace deadline; whatever is still
// running when it passes is abandoned.
func (s *Scheduler) shutdown(c *cron.Cron) {
	s.logger.Info("shutting down scheduler", "grace", s.grace)
	deadline := time.Now().Add(s.grace)

	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		<-c.Stop().Done()
		s.wg.Wait()
		s.runner.Drain(time.Until(deadline))
		close(done)
	}()

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	select {
	case <-done:
		s.logger.Info("scheduler stopped")
	case <-timer.C:
		s.logger.Warn("in-flight work still running after grace period, abandoning it", "grace", s.grace)
	}
	s.setState(Idle)
}

// TriggerBurst starts the named burst in the background. Only one burst runs
// at a time; a trigger during an active burst is ignored with ErrBurstActive.
func (s *Scheduler) TriggerBurst(ctx context.Context, label string) error {
	b, ok := s.lookup(label)
	if !ok {
		return fmt.Errorf("unknown burst %q", label)
	}

	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.burst.Active {
		active := s.burst.Label
		s.mu.Unlock()
		s.logger.Info("burst already active, trigger ignored", "burst", label, "active", active)
		return ErrBurstActive
	}
	s.burst = model.BurstSchedule{
		Label:       b.Label,
		Interval:    b.Interval,
		TotalCycles: b.Cycles,
		Active:      true,
	}
	s.state = Bursting
	s.wg.Add(1)
	s.mu.Unlock()

	go s.runBurst(ctx, b)
	return nil
}

// State reports the current mode.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns the mode together with the current or last burst.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{State: s.state, Burst: s.burst}
}

func (s *Scheduler) runBurst(ctx context.Context, b Burst) {
	defer s.wg.Done()

	logger := s.logger.With("burst", b.Label)
	logger.Info("burst started", "interval", b.Interval.String(), "cycles", b.Cycles)

	// Announcements and cycles finish even when shutdown starts mid-send.
	sendCtx := context.WithoutCancel(ctx)
	for _, msg := range b.Start {
		s.runner.Announce(sendCtx, msg)
	}

	var ticker *time.Ticker
	if b.Interval > 0 {
		ticker = time.NewTicker(b.Interval)
		defer ticker.Stop()
	}

	for i := 0; i < b.Cycles; i++ {
		if ticker != nil {
			select {
			case <-ctx.Done():
				s.endBurst(logger, false)
				return
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			s.endBurst(logger, false)
			return
		}

		s.cycle(ctx, "burst:"+b.Label)

		s.mu.Lock()
		s.burst.CyclesRun++
		s.mu.Unlock()
	}

	if ctx.Err() != nil {
		s.endBurst(logger, false)
		return
	}
	if b.Stop != "" {
		s.runner.Announce(sendCtx, b.Stop)
	}
	s.endBurst(logger, true)
}

func (s *Scheduler) endBurst(logger *slog.Logger, completed bool) {
	s.mu.Lock()
	run := s.burst.CyclesRun
	s.burst.Active = false
	if s.state == Bursting {
		s.state = BaselinePolling
	}
	s.mu.Unlock()

	if completed {
		logger.Info("burst finished", "cycles_run", run)
	} else {
		logger.Info("burst cancelled", "cycles_run", run)
	}
}

// goCycle runs one pipeline pass in the background.
func (s *Scheduler) goCycle(ctx context.Context, trigger string) {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.cycle(ctx, trigger)
	}()
}

// cycle runs one pipeline pass. A skipped pass is not an error.
func (s *Scheduler) cycle(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	_, err := s.runner.RunCycle(context.WithoutCancel(ctx), trigger)
	if err != nil && !errors.Is(err, poller.ErrCycleInFlight) {
		s.logger.Error("cycle failed", "trigger", trigger, "error", err)
	}
}

func (s *Scheduler) lookup(label string) (Burst, bool) {
	for _, b := range s.bursts {
		if b.Label == label {
			return b, true
		}
	}
	return Burst{}, false
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}
