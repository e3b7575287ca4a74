// Package discord implements the platform boundary on top of disgo.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/gatewarden/gatewarden/internal/platform"
	"github.com/gatewarden/gatewarden/pkg/utils"
)

// memberPageSize is the maximum roster page size the API allows.
const memberPageSize = 1000

// Client adapts a disgo bot client to the platform boundary for one guild.
type Client struct {
	client  bot.Client
	guildID snowflake.ID
	logger  *zap.Logger
	retry   utils.RetryOptions

	readyOnce sync.Once
	ready     chan struct{}
}

// New wraps the given disgo client for the given guild. A gateway listener
// is registered to observe guild availability for WaitUntilReady.
func New(client bot.Client, guildID snowflake.ID, logger *zap.Logger) *Client {
	c := &Client{
		client:  client,
		guildID: guildID,
		logger:  logger.Named("discord"),
		retry:   utils.GetPlatformRetryOptions(),
		ready:   make(chan struct{}),
	}

	client.AddEventListeners(&events.ListenerAdapter{
		OnGuildReady: func(event *events.GuildReady) {
			if event.Guild.ID == c.guildID {
				c.readyOnce.Do(func() { close(c.ready) })
			}
		},
	})

	return c
}

// WaitUntilReady blocks until the guild has been received from the gateway.
func (c *Client) WaitUntilReady(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ListMembers fetches the full guild roster, page by page.
// Pages hitting transient errors are retried with backoff.
func (c *Client) ListMembers(ctx context.Context) ([]platform.Member, error) {
	var (
		members []platform.Member
		after   snowflake.ID
	)

	for {
		chunk, err := utils.WithRetry(ctx, func() ([]discord.Member, error) {
			chunk, err := c.client.Rest().GetMembers(c.guildID, memberPageSize, after, rest.WithCtx(ctx))
			return chunk, retryable(wrapRestErr("list members", err))
		}, c.retry)
		if err != nil {
			return nil, err
		}

		for _, m := range chunk {
			members = append(members, convertMember(m))
		}

		// A short page is the last page
		if len(chunk) < memberPageSize {
			break
		}

		after = chunk[len(chunk)-1].User.ID
	}

	c.logger.Debug("Fetched guild roster", zap.Int("members", len(members)))

	return members, nil
}

// GetMember fetches a fresh snapshot of a single member.
func (c *Client) GetMember(ctx context.Context, userID snowflake.ID) (platform.Member, error) {
	member, err := utils.WithRetry(ctx, func() (*discord.Member, error) {
		member, err := c.client.Rest().GetMember(c.guildID, userID, rest.WithCtx(ctx))
		return member, retryable(wrapRestErr("get member", err))
	}, c.retry)
	if err != nil {
		return platform.Member{}, err
	}

	return convertMember(*member), nil
}

// GuildSize returns the guild's approximate member count.
func (c *Client) GuildSize(ctx context.Context) (int, error) {
	guild, err := utils.WithRetry(ctx, func() (*discord.RestGuild, error) {
		guild, err := c.client.Rest().GetGuild(c.guildID, true, rest.WithCtx(ctx))
		return guild, retryable(wrapRestErr("get guild", err))
	}, c.retry)
	if err != nil {
		return 0, err
	}

	return guild.ApproximateMemberCount, nil
}

// SendDirectMessage opens a DM channel and delivers the message.
func (c *Client) SendDirectMessage(ctx context.Context, userID snowflake.ID, content string) error {
	channel, err := c.client.Rest().CreateDMChannel(userID, rest.WithCtx(ctx))
	if err != nil {
		return wrapRestErr("create dm channel", err)
	}

	_, err = c.client.Rest().CreateMessage(channel.ID(), discord.NewMessageCreateBuilder().
		SetContent(content).
		Build(), rest.WithCtx(ctx))

	return wrapRestErr("send direct message", err)
}

// AddRole grants a role with an audit log reason.
func (c *Client) AddRole(ctx context.Context, userID, roleID snowflake.ID, reason string) error {
	err := c.client.Rest().AddMemberRole(c.guildID, userID, roleID, rest.WithCtx(ctx), rest.WithReason(reason))
	return wrapRestErr("add role", err)
}

// RemoveRole revokes a role with an audit log reason.
func (c *Client) RemoveRole(ctx context.Context, userID, roleID snowflake.ID, reason string) error {
	err := c.client.Rest().RemoveMemberRole(c.guildID, userID, roleID, rest.WithCtx(ctx), rest.WithReason(reason))
	return wrapRestErr("remove role", err)
}

// Kick removes a member from the guild with an audit log reason.
func (c *Client) Kick(ctx context.Context, userID snowflake.ID, reason string) error {
	err := c.client.Rest().RemoveMember(c.guildID, userID, rest.WithCtx(ctx), rest.WithReason(reason))
	return wrapRestErr("kick member", err)
}

// SendMessage posts to a channel. Mentions are suppressed except for the
// explicitly listed roles.
func (c *Client) SendMessage(
	ctx context.Context, channelID snowflake.ID, content string, mentionRoles ...snowflake.ID,
) (platform.MessageHandle, error) {
	message, err := c.client.Rest().CreateMessage(channelID, discord.NewMessageCreateBuilder().
		SetContent(content).
		SetAllowedMentions(&discord.AllowedMentions{Roles: mentionRoles}).
		Build(), rest.WithCtx(ctx))
	if err != nil {
		return platform.MessageHandle{}, wrapRestErr("send message", err)
	}

	return platform.MessageHandle{ChannelID: message.ChannelID, MessageID: message.ID}, nil
}

// DeleteMessage removes a message from a channel.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID snowflake.ID) error {
	err := c.client.Rest().DeleteMessage(channelID, messageID, rest.WithCtx(ctx))
	return wrapRestErr("delete message", err)
}

// EditMessage replaces the content of a message.
func (c *Client) EditMessage(ctx context.Context, channelID, messageID snowflake.ID, content string) error {
	_, err := c.client.Rest().UpdateMessage(channelID, messageID, discord.NewMessageUpdateBuilder().
		SetContent(content).
		Build(), rest.WithCtx(ctx))

	return wrapRestErr("edit message", err)
}

// AddReactions attaches the given reaction options to a message in order.
func (c *Client) AddReactions(ctx context.Context, channelID, messageID snowflake.ID, options ...string) error {
	for _, option := range options {
		if err := c.client.Rest().AddReaction(channelID, messageID, option, rest.WithCtx(ctx)); err != nil {
			return wrapRestErr("add reaction", err)
		}
	}

	return nil
}

// ClearReactions removes all reactions from a message.
func (c *Client) ClearReactions(ctx context.Context, channelID, messageID snowflake.ID) error {
	err := c.client.Rest().RemoveAllReactions(channelID, messageID, rest.WithCtx(ctx))
	return wrapRestErr("clear reactions", err)
}

// convertMember maps a disgo member to the platform snapshot type.
func convertMember(m discord.Member) platform.Member {
	var joinedAt *time.Time
	if !m.JoinedAt.IsZero() {
		t := m.JoinedAt
		joinedAt = &t
	}

	return platform.Member{
		ID:       m.User.ID,
		RoleIDs:  m.RoleIDs,
		JoinedAt: joinedAt,
		Bot:      m.User.Bot,
	}
}

// wrapRestErr maps disgo REST failures onto the platform error taxonomy.
func wrapRestErr(op string, err error) error {
	if err == nil {
		return nil
	}

	var restErr *rest.Error
	if errors.As(err, &restErr) && restErr.Response != nil {
		status := restErr.Response.StatusCode

		switch {
		case status == http.StatusForbidden:
			return fmt.Errorf("%w: %s: %s", platform.ErrPermission, op, restErr.Message)
		case status == http.StatusNotFound:
			return fmt.Errorf("%w: %s", platform.ErrNotFound, op)
		case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %s: status %d", platform.ErrTransient, op, status)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}

// retryable marks non-transient errors as permanent so backoff stops early.
func retryable(err error) error {
	if err == nil {
		return nil
	}

	if !errors.Is(err, platform.ErrTransient) {
		return backoff.Permanent(err)
	}

	return err
}
