package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/disgoorg/snowflake/v2"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

// Redis keys for the persisted task control state.
const (
	keyTasksRunning = "verification:tasks_running"
	keyLastReminder = "verification:last_reminder"
)

// ReminderCursor locates the most recently sent reminder message. Its send
// time is derived from the message snowflake, which lets a fresh process
// resume the reminder schedule instead of restarting it.
type ReminderCursor struct {
	ChannelID snowflake.ID `json:"channelId"`
	MessageID snowflake.ID `json:"messageId"`
}

// SentAt returns when the reminder was sent.
func (c ReminderCursor) SentAt() time.Time {
	return c.MessageID.Time()
}

// TaskState is the persisted run/paused flag and reminder cursor. It is
// read at process start to decide whether to auto-resume the periodic jobs
// and must survive restarts. Entries are only ever overwritten in place.
type TaskState struct {
	client rueidis.Client
	logger *zap.Logger
}

// NewTaskState creates the task control state over the given Redis client.
func NewTaskState(client rueidis.Client, logger *zap.Logger) *TaskState {
	return &TaskState{
		client: client,
		logger: logger.Named("task_state"),
	}
}

// IsEnabled reports whether the periodic tasks should run.
// An absent key means disabled.
func (s *TaskState) IsEnabled(ctx context.Context) (bool, error) {
	value, err := s.client.Do(ctx, s.client.B().Get().Key(keyTasksRunning).Build()).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read tasks_running: %w", err)
	}

	return value == "1", nil
}

// SetEnabled persists the run/paused flag.
func (s *TaskState) SetEnabled(ctx context.Context, enabled bool) error {
	value := "0"
	if enabled {
		value = "1"
	}

	if err := s.client.Do(ctx, s.client.B().Set().Key(keyTasksRunning).Value(value).Build()).Error(); err != nil {
		return fmt.Errorf("failed to persist tasks_running: %w", err)
	}

	s.logger.Debug("Persisted task flag", zap.Bool("enabled", enabled))

	return nil
}

// ReminderCursor returns the persisted reminder cursor, or nil if no
// reminder has been sent yet.
func (s *TaskState) ReminderCursor(ctx context.Context) (*ReminderCursor, error) {
	value, err := s.client.Do(ctx, s.client.B().Get().Key(keyLastReminder).Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read last_reminder: %w", err)
	}

	var cursor ReminderCursor
	if err := sonic.Unmarshal(value, &cursor); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reminder cursor: %w", err)
	}

	return &cursor, nil
}

// SetReminderCursor persists the cursor of the latest reminder message.
func (s *TaskState) SetReminderCursor(ctx context.Context, cursor ReminderCursor) error {
	value, err := sonic.Marshal(cursor)
	if err != nil {
		return fmt.Errorf("failed to marshal reminder cursor: %w", err)
	}

	cmd := s.client.B().Set().Key(keyLastReminder).Value(rueidis.BinaryString(value)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to persist last_reminder: %w", err)
	}

	return nil
}
