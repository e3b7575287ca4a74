package verification

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunOnce(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("run failed")
	scheduler := NewScheduler("test", time.Hour, func(context.Context) error {
		return wantErr
	}, zap.NewNop())

	require.ErrorIs(t, scheduler.RunOnce(t.Context()), wantErr)
}

func TestRunOnceSingleFlight(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})

	var startedOnce sync.Once

	scheduler := NewScheduler("test", time.Hour, func(ctx context.Context) error {
		startedOnce.Do(func() { close(started) })

		select {
		case <-release:
		case <-ctx.Done():
		}

		return nil
	}, zap.NewNop())

	done := make(chan error, 1)

	go func() {
		done <- scheduler.RunOnce(t.Context())
	}()

	<-started

	// Second trigger while the first run is still executing
	require.ErrorIs(t, scheduler.RunOnce(t.Context()), ErrRunInProgress)

	close(release)
	require.NoError(t, <-done)

	// Guard released once the run finished
	require.NoError(t, scheduler.RunOnce(t.Context()))
}

func TestRunOnceRecoversPanic(t *testing.T) {
	t.Parallel()

	scheduler := NewScheduler("test", time.Hour, func(context.Context) error {
		panic("boom")
	}, zap.NewNop())

	err := scheduler.RunOnce(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	// Guard released despite the panic
	require.NotErrorIs(t, scheduler.RunOnce(t.Context()), ErrRunInProgress)
}

func TestSchedulerStartStop(t *testing.T) {
	t.Parallel()

	var runs atomic.Int64

	ran := make(chan struct{}, 16)

	scheduler := NewScheduler("test", 10*time.Millisecond, func(context.Context) error {
		runs.Add(1)

		select {
		case ran <- struct{}{}:
		default:
		}

		return nil
	}, zap.NewNop())

	assert.False(t, scheduler.IsRunning())

	scheduler.Start(t.Context())
	assert.True(t, scheduler.IsRunning())

	// Starting again is a no-op
	scheduler.Start(t.Context())

	// First run fires immediately, then on the ticker
	for range 2 {
		select {
		case <-ran:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for scheduled run")
		}
	}

	scheduler.Stop()
	assert.False(t, scheduler.IsRunning())

	// Stopping again is a no-op
	scheduler.Stop()

	count := runs.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, count, runs.Load(), "no runs after Stop")
}

func TestSchedulerInitialDelay(t *testing.T) {
	t.Parallel()

	var runs atomic.Int64

	scheduler := NewScheduler("test", time.Hour, func(context.Context) error {
		runs.Add(1)
		return nil
	}, zap.NewNop()).WithInitialDelay(func(context.Context) time.Duration {
		return time.Hour
	})

	scheduler.Start(t.Context())
	defer scheduler.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(0), runs.Load(), "first run must wait out the initial delay")
}

func TestSchedulerZeroInitialDelay(t *testing.T) {
	t.Parallel()

	ran := make(chan struct{}, 1)

	scheduler := NewScheduler("test", time.Hour, func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}

		return nil
	}, zap.NewNop()).WithInitialDelay(func(context.Context) time.Duration {
		return 0
	})

	scheduler.Start(t.Context())
	defer scheduler.Stop()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for immediate first run")
	}
}
