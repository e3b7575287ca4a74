package verification

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/disgoorg/snowflake/v2"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestRedis spins up an in-memory Redis and a rueidis client against it.
func newTestRedis(t *testing.T) rueidis.Client {
	t.Helper()

	mr := miniredis.RunT(t)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return client
}

func TestTaskStateEnabled(t *testing.T) {
	t.Parallel()

	state := NewTaskState(newTestRedis(t), zap.NewNop())
	ctx := t.Context()

	// Absent key means disabled
	enabled, err := state.IsEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, state.SetEnabled(ctx, true))

	enabled, err = state.IsEnabled(ctx)
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, state.SetEnabled(ctx, false))

	enabled, err = state.IsEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestTaskStateReminderCursor(t *testing.T) {
	t.Parallel()

	state := NewTaskState(newTestRedis(t), zap.NewNop())
	ctx := t.Context()

	// No reminder sent yet
	cursor, err := state.ReminderCursor(ctx)
	require.NoError(t, err)
	assert.Nil(t, cursor)

	sentAt := time.Now().Add(-10 * time.Hour).Truncate(time.Millisecond)
	stored := ReminderCursor{
		ChannelID: 42,
		MessageID: snowflake.New(sentAt),
	}

	require.NoError(t, state.SetReminderCursor(ctx, stored))

	cursor, err = state.ReminderCursor(ctx)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.Equal(t, stored, *cursor)

	// Send time is recoverable from the message snowflake
	assert.WithinDuration(t, sentAt, cursor.SentAt(), time.Second)
}

func TestTaskStateCursorOverwrite(t *testing.T) {
	t.Parallel()

	state := NewTaskState(newTestRedis(t), zap.NewNop())
	ctx := t.Context()

	first := ReminderCursor{ChannelID: 1, MessageID: snowflake.New(time.Now().Add(-time.Hour))}
	second := ReminderCursor{ChannelID: 1, MessageID: snowflake.New(time.Now())}

	require.NoError(t, state.SetReminderCursor(ctx, first))
	require.NoError(t, state.SetReminderCursor(ctx, second))

	cursor, err := state.ReminderCursor(ctx)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.Equal(t, second, *cursor)
}

func TestStats(t *testing.T) {
	t.Parallel()

	stats := NewStats(newTestRedis(t), zap.NewNop())
	ctx := t.Context()

	// Unset counter reads as zero
	value, err := stats.Get(ctx, StatKicked)
	require.NoError(t, err)
	assert.Equal(t, int64(0), value)

	stats.Increment(ctx, StatKicked, 3)
	stats.Increment(ctx, StatKicked, 2)
	stats.Increment(ctx, StatKicked, 0) // no-op

	value, err = stats.Get(ctx, StatKicked)
	require.NoError(t, err)
	assert.Equal(t, int64(5), value)

	// Counters are independent
	value, err = stats.Get(ctx, StatAcceptedOnDayOne)
	require.NoError(t, err)
	assert.Equal(t, int64(0), value)
}
