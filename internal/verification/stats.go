package verification

import (
	"context"

	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// Counter keys in the statistics namespace.
const (
	StatKicked                   = "verification:kicked"
	StatAcceptedOnDayOne         = "verification:accepted_on_day_one"
	StatAcceptedBeforeUnverified = "verification:accepted_before_unverified"
	StatAcceptedAfterUnverified  = "verification:accepted_after_unverified"
)

// Stats tracks verification counters in Redis. Increments are best-effort:
// a failed increment is logged and never surfaces to the caller.
type Stats struct {
	client rueidis.Client
	logger *zap.Logger
}

// NewStats creates a counter tracker over the given Redis client.
func NewStats(client rueidis.Client, logger *zap.Logger) *Stats {
	return &Stats{
		client: client,
		logger: logger.Named("stats"),
	}
}

// Increment adds n to the named counter.
func (s *Stats) Increment(ctx context.Context, key string, n int64) {
	if n == 0 {
		return
	}

	if err := s.client.Do(ctx, s.client.B().Incrby().Key(key).Increment(n).Build()).Error(); err != nil {
		s.logger.Warn("Failed to increment counter",
			zap.String("key", key),
			zap.Error(err))
	}
}

// Get returns the current value of the named counter, zero if unset.
func (s *Stats) Get(ctx context.Context, key string) (int64, error) {
	value, err := s.client.Do(ctx, s.client.B().Get().Key(key).Build()).AsInt64()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return 0, nil
		}

		return 0, err
	}

	return value, nil
}
