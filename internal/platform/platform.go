// Package platform defines the narrow boundary between the verification
// engine and the chat platform it acts on. The engine only ever sees these
// types; the Discord implementation lives in the discord subpackage.
package platform

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Member is an immutable snapshot of a guild member, taken once per
// classification pass and never re-queried mid-pass.
type Member struct {
	ID snowflake.ID
	// Roles currently held. The guild's default role is implicit and never
	// listed here.
	RoleIDs []snowflake.ID
	// When the member joined, nil if the platform does not know.
	JoinedAt *time.Time
	Bot      bool
}

// HasRole reports whether the member holds the given role.
func (m Member) HasRole(roleID snowflake.ID) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}

	return false
}

// MessageHandle identifies a message the platform accepted.
type MessageHandle struct {
	ChannelID snowflake.ID
	MessageID snowflake.ID
}

// Reaction is a single reaction response to a prompt message.
type Reaction struct {
	Option string
	UserID snowflake.ID
}

// Client is the platform capability surface the verification engine needs.
// Every method is a suspension point and honors context cancellation.
type Client interface {
	// WaitUntilReady blocks until the guild roster is available.
	WaitUntilReady(ctx context.Context) error

	// ListMembers returns a snapshot of the full guild roster.
	ListMembers(ctx context.Context) ([]Member, error)

	// GetMember returns a fresh snapshot of a single member.
	// Returns ErrNotFound if the member has left the guild.
	GetMember(ctx context.Context, userID snowflake.ID) (Member, error)

	// GuildSize returns the current guild population.
	GuildSize(ctx context.Context) (int, error)

	// SendDirectMessage delivers a private message to a member.
	// Returns ErrPermission if the member blocks direct messages.
	SendDirectMessage(ctx context.Context, userID snowflake.ID, content string) error

	// AddRole grants a role with an audit log reason.
	AddRole(ctx context.Context, userID, roleID snowflake.ID, reason string) error

	// RemoveRole revokes a role with an audit log reason.
	RemoveRole(ctx context.Context, userID, roleID snowflake.ID, reason string) error

	// Kick removes a member from the guild with an audit log reason.
	Kick(ctx context.Context, userID snowflake.ID, reason string) error

	// SendMessage posts to a channel, allowing mentions only for the listed roles.
	SendMessage(ctx context.Context, channelID snowflake.ID, content string, mentionRoles ...snowflake.ID) (MessageHandle, error)

	// DeleteMessage removes a message. Returns ErrNotFound if already gone.
	DeleteMessage(ctx context.Context, channelID, messageID snowflake.ID) error

	// EditMessage replaces the content of a message.
	EditMessage(ctx context.Context, channelID, messageID snowflake.ID, content string) error

	// AddReactions attaches the given reaction options to a message in order.
	AddReactions(ctx context.Context, channelID, messageID snowflake.ID, options ...string) error

	// ClearReactions removes all reactions from a message.
	ClearReactions(ctx context.Context, channelID, messageID snowflake.ID) error

	// AwaitReaction waits for the first reaction on the message that matches
	// one of options and comes from one of responders. Returns
	// ErrPromptExpired once the timeout elapses without a valid response.
	AwaitReaction(
		ctx context.Context, messageID snowflake.ID,
		options []string, responders map[snowflake.ID]struct{}, timeout time.Duration,
	) (Reaction, error)
}
