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

	"github.com/gatewarden/gatewarden/internal/platform"
)

// Command names registered with Discord.
const (
	AcceptCommandName       = "accept"
	SubscribeCommandName    = "subscribe"
	UnsubscribeCommandName  = "unsubscribe"
	VerificationCommandName = "verification"
)

// commandDefinitions returns the guild commands this bot registers.
func commandDefinitions() []discord.ApplicationCommandCreate {
	return []discord.ApplicationCommandCreate{
		discord.SlashCommandCreate{
			Name:        AcceptCommandName,
			Description: "Accept our rules and gain access to the rest of the server",
		},
		discord.SlashCommandCreate{
			Name:        SubscribeCommandName,
			Description: "Subscribe to announcement notifications",
		},
		discord.SlashCommandCreate{
			Name:        UnsubscribeCommandName,
			Description: "Unsubscribe from announcement notifications",
		},
		discord.SlashCommandCreate{
			Name:        VerificationCommandName,
			Description: "Manage the verification background tasks",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionSubCommand{
					Name:        "status",
					Description: "Check whether verification tasks are running",
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        "start",
					Description: "Start verification tasks if they are not already running",
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        "stop",
					Description: "Stop verification tasks",
				},
			},
		},
	}
}

// handleApplicationCommandInteraction dispatches slash commands. Commands
// are processed in a goroutine so the gateway dispatcher is never blocked.
func (b *Bot) handleApplicationCommandInteraction(event *events.ApplicationCommandInteractionCreate) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("Panic in command handler", zap.Any("panic", r))
			}
		}()

		data := event.SlashCommandInteractionData()

		switch data.CommandName() {
		case AcceptCommandName:
			b.handleAccept(event)
		case SubscribeCommandName:
			b.handleSubscribe(event, true)
		case UnsubscribeCommandName:
			b.handleSubscribe(event, false)
		case VerificationCommandName:
			b.handleVerification(event)
		default:
			b.respond(event, "This command is not available.")
		}
	}()
}

// handleAccept grants access to a member who accepts the rules.
func (b *Bot) handleAccept(event *events.ApplicationCommandInteractionCreate) {
	ctx := context.Background()

	if event.ChannelID() != snowflake.ID(b.cfg.Bot.Channels.Verification) {
		b.respond(event, fmt.Sprintf("Please use this command in <#%d>.", b.cfg.Bot.Channels.Verification))
		return
	}

	member := event.Member()
	if member == nil {
		return
	}

	if hasRole(member.RoleIDs, snowflake.ID(b.cfg.Bot.Roles.Verified)) {
		b.logger.Info("Already verified member used /accept",
			zap.Uint64("memberID", uint64(member.User.ID)))
		b.respond(event, "You are already verified!")

		return
	}

	b.logger.Debug("Member accepted the rules", zap.Uint64("memberID", uint64(member.User.ID)))

	snapshot := memberSnapshot(member.Member)
	if err := b.service.Accept(ctx, snapshot); err != nil {
		b.logger.Error("Failed to verify member",
			zap.Uint64("memberID", uint64(member.User.ID)),
			zap.Error(err))
		b.respond(event, "Something went wrong. Please try again or contact a moderator.")

		return
	}

	b.respond(event, "Thanks for verifying yourself! You now have access to the rest of the server.")
}

// handleSubscribe assigns or removes the announcements role.
func (b *Bot) handleSubscribe(event *events.ApplicationCommandInteractionCreate, subscribe bool) {
	ctx := context.Background()

	if event.ChannelID() != snowflake.ID(b.cfg.Bot.Channels.BotCommands) {
		b.respond(event, fmt.Sprintf("Please use this command in <#%d>.", b.cfg.Bot.Channels.BotCommands))
		return
	}

	member := event.Member()
	if member == nil {
		return
	}

	roleID := snowflake.ID(b.cfg.Bot.Roles.Announcements)
	hasIt := hasRole(member.RoleIDs, roleID)

	switch {
	case subscribe && hasIt:
		b.respond(event, "You're already subscribed!")
	case !subscribe && !hasIt:
		b.respond(event, "You're already unsubscribed!")
	case subscribe:
		err := event.Client().Rest().AddMemberRole(
			snowflake.ID(b.cfg.Bot.GuildID), member.User.ID, roleID,
			rest.WithCtx(ctx), rest.WithReason("Subscribed to announcements"),
		)
		if err != nil {
			b.logger.Error("Failed to add announcements role", zap.Error(err))
			b.respond(event, "Something went wrong. Please try again.")

			return
		}

		b.respond(event, fmt.Sprintf("Subscribed to <#%d> notifications.", b.cfg.Bot.Channels.Announcements))
	default:
		err := event.Client().Rest().RemoveMemberRole(
			snowflake.ID(b.cfg.Bot.GuildID), member.User.ID, roleID,
			rest.WithCtx(ctx), rest.WithReason("Unsubscribed from announcements"),
		)
		if err != nil {
			b.logger.Error("Failed to remove announcements role", zap.Error(err))
			b.respond(event, "Something went wrong. Please try again.")

			return
		}

		b.respond(event, fmt.Sprintf("Unsubscribed from <#%d> notifications.", b.cfg.Bot.Channels.Announcements))
	}
}

// handleVerification drives the background task controls. Restricted to
// members holding a moderation role.
func (b *Bot) handleVerification(event *events.ApplicationCommandInteractionCreate) {
	ctx := context.Background()

	member := event.Member()
	if member == nil {
		return
	}

	if !b.isModerator(member.RoleIDs) {
		b.respond(event, "You do not have permission to manage verification tasks.")
		return
	}

	data := event.SlashCommandInteractionData()

	sub := ""
	if data.SubCommandName != nil {
		sub = *data.SubCommandName
	}

	switch sub {
	case "status":
		lifecycleRunning, reminderRunning := b.service.IsRunning()
		b.respond(event, fmt.Sprintf(
			"Member update task running: `%t`\nReminder task running: `%t`",
			lifecycleRunning, reminderRunning,
		))
	case "start":
		b.logger.Info("Starting verification tasks",
			zap.Uint64("operatorID", uint64(member.User.ID)))
		b.service.Start(ctx)
		b.respond(event, "Done. :ok_hand:")
	case "stop":
		b.logger.Info("Stopping verification tasks",
			zap.Uint64("operatorID", uint64(member.User.ID)))
		b.service.Stop(ctx)
		b.respond(event, "Tasks canceled.")
	default:
		b.respond(event, "Unknown subcommand.")
	}
}

// respond sends an ephemeral reply to an interaction.
func (b *Bot) respond(event *events.ApplicationCommandInteractionCreate, content string) {
	err := event.CreateMessage(discord.NewMessageCreateBuilder().
		SetContent(content).
		SetEphemeral(true).
		Build())
	if err != nil {
		b.logger.Error("Failed to respond to interaction", zap.Error(err))
	}
}

// isModerator reports whether any of the roles is a configured moderation role.
func (b *Bot) isModerator(roleIDs []snowflake.ID) bool {
	for _, configured := range b.cfg.Bot.Roles.Moderation {
		if hasRole(roleIDs, snowflake.ID(configured)) {
			return true
		}
	}

	return false
}

// hasRole reports whether roleID appears in roleIDs.
func hasRole(roleIDs []snowflake.ID, roleID snowflake.ID) bool {
	for _, id := range roleIDs {
		if id == roleID {
			return true
		}
	}

	return false
}

// memberSnapshot converts a disgo member to the platform snapshot type.
func memberSnapshot(m discord.Member) platform.Member {
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
