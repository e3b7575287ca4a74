package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/gatewarden/gatewarden/internal/verification"
	"github.com/gatewarden/gatewarden/pkg/utils"
)

// messageDeleteDelay is how long hygiene messages linger in the
// verification channel before being removed.
const messageDeleteDelay = 10 * time.Second

// handleMemberJoin greets new members over DM. Failures are logged and
// ignored since many users block DMs from server bots.
func (b *Bot) handleMemberJoin(event *events.GuildMemberJoin) {
	if event.Member.User.Bot {
		return
	}

	b.logger.Info("Member joined", zap.Uint64("memberID", uint64(event.Member.User.ID)))

	go b.service.SendJoinMessage(context.Background(), event.Member.User.ID)
}

// handleMessageCreate keeps the verification channel clean. Anything a
// user posts there besides the slash commands is answered with
// instructions and removed; mentions are forwarded to the moderation log
// before removal.
func (b *Bot) handleMessageCreate(event *events.MessageCreate) {
	msg := event.Message

	if msg.ChannelID != snowflake.ID(b.cfg.Bot.Channels.Verification) {
		return
	}

	if msg.Author.ID == b.client.ApplicationID() {
		return
	}

	ctx := context.Background()

	// Other bots occasionally post here; clear their messages too,
	// after a delay so ephemeral integrations finish first.
	if msg.Author.Bot {
		go b.deleteAfter(ctx, msg.ChannelID, msg.ID, messageDeleteDelay)
		return
	}

	if len(msg.Mentions) > 0 || len(msg.MentionRoles) > 0 {
		b.reportMention(ctx, msg)
	}

	b.logger.Debug("Removing message from verification channel",
		zap.Uint64("authorID", uint64(msg.Author.ID)),
		zap.Uint64("messageID", uint64(msg.ID)))

	reply, err := b.client.Rest().CreateMessage(msg.ChannelID,
		discord.NewMessageCreateBuilder().
			SetContentf(verification.InstructionsMessage, fmt.Sprintf("<@%d>", msg.Author.ID)).
			Build(),
		rest.WithCtx(ctx),
	)
	if err != nil {
		b.logger.Error("Failed to send channel instructions", zap.Error(err))
	}

	if err := b.client.Rest().DeleteMessage(msg.ChannelID, msg.ID, rest.WithCtx(ctx)); err != nil {
		b.logger.Error("Failed to delete message", zap.Error(err))
	}

	if reply != nil {
		go b.deleteAfter(ctx, reply.ChannelID, reply.ID, messageDeleteDelay)
	}
}

// reportMention forwards a pinging message to the moderation log so staff
// can follow up even though the original gets deleted.
func (b *Bot) reportMention(ctx context.Context, msg discord.Message) {
	content := fmt.Sprintf(
		"<@%d> pinged someone in <#%d>:\n>>> %s",
		msg.Author.ID, msg.ChannelID, msg.Content,
	)

	_, err := b.client.Rest().CreateMessage(snowflake.ID(b.cfg.Bot.Channels.ModLog),
		discord.NewMessageCreateBuilder().
			SetContent(content).
			SetAllowedMentions(&discord.AllowedMentions{}).
			Build(),
		rest.WithCtx(ctx),
	)
	if err != nil {
		b.logger.Error("Failed to report mention", zap.Error(err))
	}
}

// deleteAfter removes a message once the delay has passed.
func (b *Bot) deleteAfter(ctx context.Context, channelID, messageID snowflake.ID, delay time.Duration) {
	if utils.ContextSleep(ctx, delay) != utils.SleepCompleted {
		return
	}

	if err := b.client.Rest().DeleteMessage(channelID, messageID, rest.WithCtx(ctx)); err != nil {
		b.logger.Error("Failed to delete delayed message", zap.Error(err))
	}
}
