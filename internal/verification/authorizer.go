package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/gatewarden/gatewarden/internal/platform"
)

// ApprovalRequest describes a proposed mass removal awaiting human approval.
type ApprovalRequest struct {
	// Count is the number of members slated for removal.
	Count int
	// Ratio is Count divided by the guild population.
	Ratio float64
}

// Approver obtains a human decision on an approval request. Implementations
// own the transport (reactions, buttons, a CLI prompt) and its timeout;
// an expired prompt is reported as a denial, not an error.
type Approver interface {
	RequestApproval(ctx context.Context, req ApprovalRequest) (bool, error)
}

// Authorizer decides whether a proposed mass removal is safe to execute
// automatically or must be confirmed by a privileged human. This is the
// system's safety mechanism against classification bugs and outage-induced
// backlogs silently removing a large fraction of the community.
type Authorizer struct {
	client    platform.Client
	approver  Approver
	threshold float64
	logger    *zap.Logger
}

// NewAuthorizer creates an authorizer with the given confirmation threshold.
// A threshold of zero requires confirmation for batches of any size.
func NewAuthorizer(client platform.Client, approver Approver, threshold float64, logger *zap.Logger) *Authorizer {
	return &Authorizer{
		client:    client,
		approver:  approver,
		threshold: threshold,
		logger:    logger.Named("authorizer"),
	}
}

// Authorize reports whether kicking n members may proceed.
func (a *Authorizer) Authorize(ctx context.Context, n int) (bool, error) {
	a.logger.Debug("Checking whether members are safe to kick", zap.Int("count", n))

	size, err := a.client.GuildSize(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get guild size: %w", err)
	}

	if size <= 0 {
		return false, fmt.Errorf("invalid guild size: %d", size)
	}

	ratio := float64(n) / float64(size)
	if ratio < a.threshold {
		a.logger.Debug("Kick batch is within the safe threshold",
			zap.Int("count", n),
			zap.Float64("ratio", ratio))
		return true, nil
	}

	a.logger.Info("Kick batch is suspiciously large, requesting confirmation",
		zap.Int("count", n),
		zap.Float64("ratio", ratio))

	return a.approver.RequestApproval(ctx, ApprovalRequest{Count: n, Ratio: ratio})
}

// ReactionApprover implements Approver by posting a prompt to a privileged
// channel and waiting for a reaction from a holder of the privileged role.
type ReactionApprover struct {
	client        platform.Client
	channelID     snowflake.ID
	roleID        snowflake.ID
	kickAfterDays int
	timeout       time.Duration
	logger        *zap.Logger
}

// NewReactionApprover creates a reaction-based approver posting to channelID
// and accepting answers from holders of roleID.
func NewReactionApprover(
	client platform.Client, channelID, roleID snowflake.ID,
	kickAfterDays int, timeout time.Duration, logger *zap.Logger,
) *ReactionApprover {
	return &ReactionApprover{
		client:        client,
		channelID:     channelID,
		roleID:        roleID,
		kickAfterDays: kickAfterDays,
		timeout:       timeout,
		logger:        logger.Named("approver"),
	}
}

// RequestApproval posts the confirmation prompt and waits for the first
// valid reaction. The set of eligible responders is captured when the prompt
// is posted; reactions from anyone else are ignored.
func (r *ReactionApprover) RequestApproval(ctx context.Context, req ApprovalRequest) (bool, error) {
	responders, err := r.eligibleResponders(ctx)
	if err != nil {
		return false, err
	}

	content := fmt.Sprintf(confirmationPrompt, r.roleID, req.Count, r.kickAfterDays, req.Ratio*100)

	handle, err := r.client.SendMessage(ctx, r.channelID, content, r.roleID)
	if err != nil {
		return false, fmt.Errorf("failed to send confirmation prompt: %w", err)
	}

	if err := r.client.AddReactions(ctx, handle.ChannelID, handle.MessageID, OptionApprove, OptionDeny); err != nil {
		return false, fmt.Errorf("failed to add prompt reactions: %w", err)
	}

	reaction, err := r.client.AwaitReaction(
		ctx, handle.MessageID, []string{OptionApprove, OptionDeny}, responders, r.timeout,
	)

	// Best-effort cleanup whether answered or expired
	if clearErr := r.client.ClearReactions(ctx, handle.ChannelID, handle.MessageID); clearErr != nil {
		r.logger.Debug("Failed to clear prompt reactions", zap.Error(clearErr))
	}

	if err != nil {
		if errors.Is(err, platform.ErrPromptExpired) {
			r.logger.Info("Confirmation prompt not answered, denying operation")
			return false, nil
		}

		return false, fmt.Errorf("failed to await prompt reaction: %w", err)
	}

	approved := reaction.Option == OptionApprove
	r.logger.Info("Received confirmation answer",
		zap.String("option", reaction.Option),
		zap.Uint64("responderID", uint64(reaction.UserID)),
		zap.Bool("approved", approved))

	// Edit the prompt message to reflect the final choice, best-effort
	outcome := fmt.Sprintf(deniedOutcome, req.Count)
	if approved {
		outcome = fmt.Sprintf(approvedOutcome, req.Count)
	}

	if editErr := r.client.EditMessage(ctx, handle.ChannelID, handle.MessageID, outcome); editErr != nil {
		r.logger.Debug("Failed to edit prompt outcome", zap.Error(editErr))
	}

	return approved, nil
}

// eligibleResponders returns the IDs of members currently holding the
// privileged role.
func (r *ReactionApprover) eligibleResponders(ctx context.Context) (map[snowflake.ID]struct{}, error) {
	members, err := r.client.ListMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list privileged members: %w", err)
	}

	responders := make(map[snowflake.ID]struct{})

	for _, member := range members {
		if member.HasRole(r.roleID) {
			responders[member.ID] = struct{}{}
		}
	}

	return responders, nil
}
