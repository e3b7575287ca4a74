package verification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/gatewarden/gatewarden/pkg/utils"
)

// ErrRunInProgress is returned when a run is triggered while the previous
// run of the same job is still executing.
var ErrRunInProgress = errors.New("previous run still in progress")

// Scheduler owns a recurring timer and a single-flight run guard for one
// periodic job. Runs are strictly serial: a trigger arriving while a run is
// in flight is skipped, delaying the work to the next tick instead of
// stacking runs. A failed or panicking run is contained and the timer keeps
// going.
type Scheduler struct {
	name     string
	interval time.Duration
	run      func(ctx context.Context) error
	// initialDelay, when set, is consulted once at startup to delay the
	// first run, e.g. to resume a persisted schedule after a restart.
	initialDelay func(ctx context.Context) time.Duration
	logger       *zap.Logger

	mu      sync.Mutex
	stop    chan struct{}
	started bool
	busy    atomic.Bool
}

// NewScheduler creates a stopped scheduler for the given job.
func NewScheduler(name string, interval time.Duration, run func(ctx context.Context) error, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		name:     name,
		interval: interval,
		run:      run,
		logger:   logger.Named("scheduler").With(zap.String("job", name)),
	}
}

// WithInitialDelay sets a startup delay callback and returns the scheduler.
func (s *Scheduler) WithInitialDelay(fn func(ctx context.Context) time.Duration) *Scheduler {
	s.initialDelay = fn
	return s
}

// Start launches the timer loop. The context governs in-flight runs and the
// process lifetime; Stop only cancels future triggers.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}

	s.started = true
	s.stop = make(chan struct{})

	go s.loop(ctx, s.stop)

	s.logger.Info("Scheduler started", zap.Duration("interval", s.interval))
}

// Stop cancels the pending timer. A run already in flight is not
// interrupted; cancellation takes effect before the next trigger.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.started = false
	close(s.stop)

	s.logger.Info("Scheduler stopped")
}

// IsRunning reports whether the timer loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.started
}

// RunOnce executes a single run under the single-flight guard, returning
// ErrRunInProgress if a run is already executing. Panics inside the run are
// recovered and returned as errors.
func (s *Scheduler) RunOnce(ctx context.Context) (err error) {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	defer s.busy.Store(false)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("run panicked: %v", r)
		}
	}()

	return s.run(ctx)
}

func (s *Scheduler) loop(ctx context.Context, stop chan struct{}) {
	// The timer context ends on Stop or process shutdown. Runs themselves
	// receive the original context so Stop never interrupts one in flight.
	timerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-stop:
		case <-ctx.Done():
		}

		cancel()
	}()

	if s.initialDelay != nil {
		if delay := s.initialDelay(ctx); delay > 0 {
			s.logger.Info("Delaying first run", zap.Duration("delay", delay))

			if utils.ContextSleepWithLog(timerCtx, delay, s.logger, "First run delay cancelled") == utils.SleepCancelled {
				return
			}
		}
	}

	s.trigger(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.trigger(ctx)
		case <-timerCtx.Done():
			return
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context) {
	start := time.Now()

	err := s.RunOnce(ctx)

	switch {
	case errors.Is(err, ErrRunInProgress):
		s.logger.Warn("Skipping trigger, previous run still in progress")
	case err != nil:
		// The run is abandoned; the timer is unaffected
		s.logger.Error("Run failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
	default:
		s.logger.Debug("Run completed", zap.Duration("duration", time.Since(start)))
	}
}
