package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/gatewarden/gatewarden/internal/bot"
	"github.com/gatewarden/gatewarden/internal/setup"
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cmd := &cli.Command{
		Name:  "gatewarden",
		Usage: "Discord member verification bot",
		Action: func(ctx context.Context, _ *cli.Command) error {
			// Initialize application with required dependencies
			app, err := setup.InitializeApp()
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer app.CleanupApp()

			discordBot, err := bot.New(app)
			if err != nil {
				return fmt.Errorf("failed to create bot: %w", err)
			}

			if err := discordBot.Start(ctx); err != nil {
				return fmt.Errorf("failed to start bot: %w", err)
			}

			app.Logger.Info("Bot has been started. Waiting for interrupt signal to gracefully shutdown...")

			// Wait for interrupt signal to gracefully shutdown the bot
			sc := make(chan os.Signal, 1)
			signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)

			select {
			case <-sc:
			case <-ctx.Done():
			}

			discordBot.Close(context.Background())

			return nil
		},
	}

	return cmd.Run(context.Background(), os.Args)
}
