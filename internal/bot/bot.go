// Package bot wires the verification service to Discord: gateway
// listeners, slash commands and the operator control surface.
package bot

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	discordplatform "github.com/gatewarden/gatewarden/internal/platform/discord"
	"github.com/gatewarden/gatewarden/internal/setup"
	"github.com/gatewarden/gatewarden/internal/setup/config"
	"github.com/gatewarden/gatewarden/internal/verification"
)

// Bot holds the Discord client and the verification service it exposes.
type Bot struct {
	client  bot.Client
	service *verification.Service
	cfg     *config.Config
	logger  *zap.Logger
}

// New initializes the Discord client with the required gateway intents and
// event listeners, and constructs the verification service on top of it.
func New(app *setup.App) (*Bot, error) {
	b := &Bot{
		cfg:    app.Config,
		logger: app.Logger.Named("bot"),
	}

	client, err := disgo.New(app.Config.Bot.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMembers,
				gateway.IntentGuildMessages,
				gateway.IntentGuildMessageReactions,
				gateway.IntentDirectMessages,
				gateway.IntentMessageContent,
			),
		),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnApplicationCommandInteraction: b.handleApplicationCommandInteraction,
			OnGuildMemberJoin:               b.handleMemberJoin,
			OnMessageCreate:                 b.handleMessageCreate,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord client: %w", err)
	}

	guildID := snowflake.ID(app.Config.Bot.GuildID)
	platformClient := discordplatform.New(client, guildID, app.Logger)

	taskState := verification.NewTaskState(app.TaskClient, app.Logger)
	stats := verification.NewStats(app.StatsClient, app.Logger)

	b.client = client
	b.service = verification.NewService(
		platformClient, taskState, stats, serviceConfig(app.Config), app.Logger,
	)

	return b, nil
}

// Start registers the guild commands, opens the gateway connection and
// resumes the background tasks if they were running before the last
// shutdown.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Registering commands")

	guildID := snowflake.ID(b.cfg.Bot.GuildID)

	_, err := b.client.Rest().SetGuildCommands(b.client.ApplicationID(), guildID, commandDefinitions())
	if err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	b.logger.Info("Starting bot")

	if err := b.client.OpenGateway(ctx); err != nil {
		return fmt.Errorf("failed to open gateway: %w", err)
	}

	return b.service.MaybeStartTasks(ctx)
}

// Close cancels the background tasks without touching the persisted flag
// and shuts down the gateway connection.
func (b *Bot) Close(ctx context.Context) {
	b.logger.Info("Closing bot")
	b.service.Shutdown()
	b.client.Close(ctx)
}

// Service exposes the verification service, mainly for tests.
func (b *Bot) Service() *verification.Service {
	return b.service
}

// serviceConfig maps the loaded configuration onto the service's view of
// the guild.
func serviceConfig(cfg *config.Config) verification.ServiceConfig {
	return verification.ServiceConfig{
		UnverifiedRoleID:          snowflake.ID(cfg.Bot.Roles.Unverified),
		VerifiedRoleID:            snowflake.ID(cfg.Bot.Roles.Verified),
		PrivilegedRoleID:          snowflake.ID(cfg.Bot.Roles.Privileged),
		VerificationChannelID:     snowflake.ID(cfg.Bot.Channels.Verification),
		ModLogChannelID:           snowflake.ID(cfg.Bot.Channels.ModLog),
		PrivilegedChannelID:       snowflake.ID(cfg.Bot.Channels.Privileged),
		BotCommandsChannelID:      snowflake.ID(cfg.Bot.Channels.BotCommands),
		WarnAfterDays:             cfg.Verification.WarnAfterDays,
		KickAfterDays:             cfg.Verification.KickAfterDays,
		KickConfirmationThreshold: cfg.Verification.KickConfirmationThreshold,
		LifecycleInterval:         cfg.Verification.LifecycleInterval(),
		ReminderInterval:          cfg.Verification.ReminderInterval(),
		ConfirmationTimeout:       cfg.Verification.ConfirmationTimeout(),
		ExecutorConcurrency:       cfg.Verification.ExecutorConcurrency,
	}
}
