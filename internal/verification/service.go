package verification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatewarden/gatewarden/internal/platform"
)

// ServiceConfig carries the guild layout and tuning the service operates with.
type ServiceConfig struct {
	UnverifiedRoleID snowflake.ID
	VerifiedRoleID   snowflake.ID
	PrivilegedRoleID snowflake.ID

	VerificationChannelID snowflake.ID
	ModLogChannelID       snowflake.ID
	PrivilegedChannelID   snowflake.ID
	BotCommandsChannelID  snowflake.ID

	WarnAfterDays             int
	KickAfterDays             int
	KickConfirmationThreshold float64
	LifecycleInterval         time.Duration
	ReminderInterval          time.Duration
	ConfirmationTimeout       time.Duration
	ExecutorConcurrency       int
}

// Thresholds returns the grace periods as durations.
func (c ServiceConfig) Thresholds() Thresholds {
	return Thresholds{
		WarnAfter: time.Duration(c.WarnAfterDays) * 24 * time.Hour,
		KickAfter: time.Duration(c.KickAfterDays) * 24 * time.Hour,
	}
}

// Service owns the two periodic verification jobs and the engine parts they
// drive. The lifecycle job classifies the roster and executes warning and
// removal batches behind the confirmation guard; the reminder job re-posts
// the periodic reminder and keeps its persisted cursor current.
type Service struct {
	client     platform.Client
	state      *TaskState
	stats      *Stats
	classifier *Classifier
	executor   *Executor
	authorizer *Authorizer
	cfg        ServiceConfig
	logger     *zap.Logger

	lifecycle *Scheduler
	reminder  *Scheduler

	mu          sync.Mutex
	lastSummary string
}

// NewService wires the verification engine for one guild.
func NewService(
	client platform.Client, state *TaskState, stats *Stats, cfg ServiceConfig, logger *zap.Logger,
) *Service {
	logger = logger.Named("verification")

	approver := NewReactionApprover(
		client, cfg.PrivilegedChannelID, cfg.PrivilegedRoleID,
		cfg.KickAfterDays, cfg.ConfirmationTimeout, logger,
	)

	s := &Service{
		client:     client,
		state:      state,
		stats:      stats,
		classifier: NewClassifier(cfg.UnverifiedRoleID, cfg.Thresholds(), logger),
		executor:   NewExecutor(cfg.ExecutorConcurrency, logger),
		authorizer: NewAuthorizer(client, approver, cfg.KickConfirmationThreshold, logger),
		cfg:        cfg,
		logger:     logger,
	}

	s.lifecycle = NewScheduler("lifecycle", cfg.LifecycleInterval, s.runLifecycle, logger)
	s.reminder = NewScheduler("reminder", cfg.ReminderInterval, s.runReminder, logger).
		WithInitialDelay(s.reminderDelay)

	return s
}

// MaybeStartTasks consults the persisted flag and starts both periodic jobs
// if they were running before the last shutdown.
func (s *Service) MaybeStartTasks(ctx context.Context) error {
	enabled, err := s.state.IsEnabled(ctx)
	if err != nil {
		return err
	}

	if enabled {
		s.logger.Info("Resuming background tasks")
		s.Start(ctx)
	}

	return nil
}

// Start launches both periodic jobs and persists the enabled flag.
func (s *Service) Start(ctx context.Context) {
	s.lifecycle.Start(ctx)
	s.reminder.Start(ctx)

	if err := s.state.SetEnabled(ctx, true); err != nil {
		s.logger.Error("Failed to persist task flag", zap.Error(err))
	}
}

// Stop cancels both periodic jobs and persists the disabled flag. Runs in
// flight finish on their own.
func (s *Service) Stop(ctx context.Context) {
	s.lifecycle.Stop()
	s.reminder.Stop()

	if err := s.state.SetEnabled(ctx, false); err != nil {
		s.logger.Error("Failed to persist task flag", zap.Error(err))
	}
}

// Shutdown cancels both periodic jobs without touching the persisted flag,
// so the next process start resumes them.
func (s *Service) Shutdown() {
	s.lifecycle.Stop()
	s.reminder.Stop()
}

// IsRunning reports whether the lifecycle and reminder jobs are active.
func (s *Service) IsRunning() (lifecycleRunning, reminderRunning bool) {
	return s.lifecycle.IsRunning(), s.reminder.IsRunning()
}

// RunLifecycleOnce triggers a single lifecycle run under the scheduler's
// single-flight guard.
func (s *Service) RunLifecycleOnce(ctx context.Context) error {
	return s.lifecycle.RunOnce(ctx)
}

// RunReminderOnce triggers a single reminder run under the scheduler's
// single-flight guard.
func (s *Service) RunReminderOnce(ctx context.Context) error {
	return s.reminder.RunOnce(ctx)
}

// LastSummary returns the summary emitted by the most recent lifecycle run.
func (s *Service) LastSummary() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastSummary
}

// runLifecycle performs one classification-and-act pass over the roster.
func (s *Service) runLifecycle(ctx context.Context) error {
	runID := uuid.New().String()
	logger := s.logger.With(zap.String("runID", runID))

	logger.Info("Updating unverified guild members")

	if err := s.client.WaitUntilReady(ctx); err != nil {
		return fmt.Errorf("guild unavailable: %w", err)
	}

	members, err := s.client.ListMembers(ctx)
	if err != nil {
		return fmt.Errorf("failed to snapshot roster: %w", err)
	}

	set := s.classifier.Classify(members, time.Now())

	var roleReport string

	if len(set.ForRole) == 0 {
		roleReport = "Found no members to be assigned the unverified role."
	} else {
		granted := s.executor.Execute(ctx, s.roleRequests(set.ForRole))
		roleReport = fmt.Sprintf("Assigned the unverified role to `%d`/`%d` members.", granted, len(set.ForRole))
	}

	var kickReport string

	switch {
	case len(set.ForKick) == 0:
		kickReport = "Found no members to be kicked."
	default:
		authorized, err := s.authorizer.Authorize(ctx, len(set.ForKick))
		if err != nil {
			return fmt.Errorf("failed to authorize kick batch: %w", err)
		}

		if !authorized {
			kickReport = fmt.Sprintf("Not authorized to kick `%d` members.", len(set.ForKick))
			break
		}

		kicked := s.executor.Execute(ctx, s.kickRequests(set.ForKick))
		s.stats.Increment(ctx, StatKicked, int64(kicked))
		kickReport = fmt.Sprintf("Kicked `%d`/`%d` members from the guild.", kicked, len(set.ForKick))
	}

	summary := kickReport + "\n" + roleReport

	s.mu.Lock()
	s.lastSummary = summary
	s.mu.Unlock()

	logger.Info("Lifecycle run completed",
		zap.String("kickReport", kickReport),
		zap.String("roleReport", roleReport))

	if _, err := s.client.SendMessage(ctx, s.cfg.ModLogChannelID, summary); err != nil {
		return fmt.Errorf("failed to emit run summary: %w", err)
	}

	return nil
}

// roleRequests builds one marker-role grant request per member. Each request
// re-verifies the member at execution time, since state may have changed
// between classification and execution.
func (s *Service) roleRequests(members []platform.Member) []Request {
	requests := make([]Request, 0, len(members))

	for _, member := range members {
		requests = append(requests, func(ctx context.Context) error {
			fresh, err := s.client.GetMember(ctx, member.ID)
			if err != nil {
				if errors.Is(err, platform.ErrNotFound) {
					return nil // member already left
				}

				return err
			}

			if IsVerified(fresh, s.cfg.UnverifiedRoleID) {
				return nil // member verified in the meantime
			}

			reason := fmt.Sprintf(warnReason, s.cfg.WarnAfterDays)

			return s.client.AddRole(ctx, member.ID, s.cfg.UnverifiedRoleID, reason)
		})
	}

	return requests
}

// kickRequests builds one removal request per member. Each request
// re-verifies the member, then best-effort notifies them privately while
// they can still be messaged, and finally kicks them.
func (s *Service) kickRequests(members []platform.Member) []Request {
	requests := make([]Request, 0, len(members))

	for _, member := range members {
		requests = append(requests, func(ctx context.Context) error {
			fresh, err := s.client.GetMember(ctx, member.ID)
			if err != nil {
				if errors.Is(err, platform.ErrNotFound) {
					return nil // member already left
				}

				return err
			}

			if IsVerified(fresh, s.cfg.UnverifiedRoleID) {
				return nil // member verified in the meantime
			}

			// Delivery failures are outside this system's control
			notice := fmt.Sprintf(kickedMessage, s.cfg.KickAfterDays)
			if err := s.client.SendDirectMessage(ctx, member.ID, notice); err != nil {
				s.logger.Debug("Failed to deliver kick notice",
					zap.Uint64("memberID", uint64(member.ID)),
					zap.Error(err))
			}

			reason := fmt.Sprintf(kickReason, s.cfg.KickAfterDays)

			return s.client.Kick(ctx, member.ID, reason)
		})
	}

	return requests
}

// runReminder deletes the previous reminder, posts a new one and persists
// its cursor.
func (s *Service) runReminder(ctx context.Context) error {
	if err := s.client.WaitUntilReady(ctx); err != nil {
		return fmt.Errorf("guild unavailable: %w", err)
	}

	cursor, err := s.state.ReminderCursor(ctx)
	if err != nil {
		return err
	}

	if cursor != nil {
		// The message may already be gone, which is fine
		if err := s.client.DeleteMessage(ctx, cursor.ChannelID, cursor.MessageID); err != nil {
			s.logger.Debug("Failed to delete previous reminder", zap.Error(err))
		}
	}

	content := fmt.Sprintf(reminderMessage, s.cfg.UnverifiedRoleID, s.cfg.KickAfterDays)

	handle, err := s.client.SendMessage(ctx, s.cfg.VerificationChannelID, content, s.cfg.UnverifiedRoleID)
	if err != nil {
		return fmt.Errorf("failed to send reminder: %w", err)
	}

	newCursor := ReminderCursor{ChannelID: handle.ChannelID, MessageID: handle.MessageID}
	if err := s.state.SetReminderCursor(ctx, newCursor); err != nil {
		// The sent message is now orphaned; the next run will fail to
		// delete it, which is logged and non-fatal there.
		return fmt.Errorf("failed to persist reminder cursor: %w", err)
	}

	s.logger.Info("Sent verification reminder",
		zap.Uint64("messageID", uint64(handle.MessageID)))

	return nil
}

// reminderDelay computes how long to wait before the first reminder run so
// a restart does not reset the schedule. With no prior reminder the first
// run happens immediately.
func (s *Service) reminderDelay(ctx context.Context) time.Duration {
	cursor, err := s.state.ReminderCursor(ctx)
	if err != nil {
		s.logger.Error("Failed to read reminder cursor, running immediately", zap.Error(err))
		return 0
	}

	if cursor == nil {
		return 0
	}

	elapsed := time.Since(cursor.SentAt())
	if remaining := s.cfg.ReminderInterval - elapsed; remaining > 0 {
		return remaining
	}

	return 0
}

// Accept performs the verification state transition for a member who
// accepted the rules: grant the verified role, bump the matching counter,
// drop the marker role and best-effort deliver the welcome-aboard DM.
func (s *Service) Accept(ctx context.Context, member platform.Member) error {
	if err := s.client.AddRole(ctx, member.ID, s.cfg.VerifiedRoleID, acceptReason); err != nil {
		return fmt.Errorf("failed to grant verified role: %w", err)
	}

	// Counted before the marker role is removed
	s.bumpAcceptedStats(ctx, member)

	if member.HasRole(s.cfg.UnverifiedRoleID) {
		if err := s.client.RemoveRole(ctx, member.ID, s.cfg.UnverifiedRoleID, acceptReason); err != nil {
			return fmt.Errorf("failed to remove unverified role: %w", err)
		}
	}

	welcome := fmt.Sprintf(verifiedMessage, s.cfg.BotCommandsChannelID)
	if err := s.client.SendDirectMessage(ctx, member.ID, welcome); err != nil {
		s.logger.Info("Failed to deliver welcome message",
			zap.Uint64("memberID", uint64(member.ID)),
			zap.Error(err))
	}

	return nil
}

// SendJoinMessage best-effort delivers the initial DM to a new member.
func (s *Service) SendJoinMessage(ctx context.Context, memberID snowflake.ID) {
	content := fmt.Sprintf(onJoinMessage, s.cfg.VerificationChannelID)
	if err := s.client.SendDirectMessage(ctx, memberID, content); err != nil {
		s.logger.Debug("Failed to deliver join message",
			zap.Uint64("memberID", uint64(memberID)),
			zap.Error(err))
	}
}

// bumpAcceptedStats increments the verification counter matching how far
// into the lifecycle the member verified.
func (s *Service) bumpAcceptedStats(ctx context.Context, member platform.Member) {
	if member.JoinedAt == nil {
		return
	}

	var key string

	switch {
	case time.Since(*member.JoinedAt) < 24*time.Hour:
		key = StatAcceptedOnDayOne
	case !member.HasRole(s.cfg.UnverifiedRoleID):
		key = StatAcceptedBeforeUnverified
	default:
		key = StatAcceptedAfterUnverified
	}

	s.stats.Increment(ctx, key, 1)
}
