package verification

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/gatewarden/gatewarden/internal/platform"
)

// Request is one independent state-changing action against the platform.
// Requests re-verify their own preconditions at execution time.
type Request func(ctx context.Context) error

// Executor runs batches of independent requests with bounded concurrency.
// A failing request is counted and logged, never aborting its siblings.
type Executor struct {
	concurrency int
	logger      *zap.Logger
}

// NewExecutor creates an executor running at most concurrency requests at once.
func NewExecutor(concurrency int, logger *zap.Logger) *Executor {
	if concurrency < 1 {
		concurrency = 1
	}

	return &Executor{
		concurrency: concurrency,
		logger:      logger.Named("executor"),
	}
}

// Execute runs all requests and returns the number that completed without a
// platform-reported failure. Failed requests are tallied by error class.
func (e *Executor) Execute(ctx context.Context, requests []Request) int {
	if len(requests) == 0 {
		return 0
	}

	e.logger.Info("Sending requests", zap.Int("count", len(requests)))

	var (
		success  atomic.Int64
		mu       sync.Mutex
		failures = make(map[string]int)
		p        = pool.New().WithContext(ctx).WithMaxGoroutines(e.concurrency)
	)

	for _, request := range requests {
		p.Go(func(ctx context.Context) error {
			if err := request(ctx); err != nil {
				class := platform.ClassOf(err)

				mu.Lock()
				failures[class]++
				mu.Unlock()

				e.logger.Debug("Request failed",
					zap.String("class", class),
					zap.Error(err))

				// Swallowed so sibling requests keep running
				return nil
			}

			success.Add(1)

			return nil
		})
	}

	_ = p.Wait()

	if len(failures) > 0 {
		e.logger.Info("Some requests have failed",
			zap.Int("failed", len(requests)-int(success.Load())),
			zap.Any("classes", failures))
	}

	return int(success.Load())
}
