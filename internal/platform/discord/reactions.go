package discord

import (
	"context"
	"time"

	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/gatewarden/gatewarden/internal/platform"
)

// AwaitReaction waits for the first reaction on the message that matches one
// of options and comes from one of responders. Reactions from anyone else,
// or with any other emoji, are ignored and the wait continues.
func (c *Client) AwaitReaction(
	ctx context.Context, messageID snowflake.ID,
	options []string, responders map[snowflake.ID]struct{}, timeout time.Duration,
) (platform.Reaction, error) {
	optionSet := make(map[string]struct{}, len(options))
	for _, option := range options {
		optionSet[option] = struct{}{}
	}

	// Buffered so a late gateway event never blocks the dispatcher.
	matched := make(chan platform.Reaction, 1)

	listener := &events.ListenerAdapter{
		OnMessageReactionAdd: func(event *events.MessageReactionAdd) {
			if event.MessageID != messageID || event.Emoji.Name == nil {
				return
			}

			if _, ok := optionSet[*event.Emoji.Name]; !ok {
				return
			}

			if _, ok := responders[event.UserID]; !ok {
				c.logger.Debug("Ignoring reaction from ineligible responder",
					zap.Uint64("userID", uint64(event.UserID)))
				return
			}

			select {
			case matched <- platform.Reaction{Option: *event.Emoji.Name, UserID: event.UserID}:
			default:
			}
		},
	}

	c.client.AddEventListeners(listener)
	defer c.client.RemoveEventListeners(listener)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reaction := <-matched:
		return reaction, nil
	case <-timer.C:
		return platform.Reaction{}, platform.ErrPromptExpired
	case <-ctx.Done():
		return platform.Reaction{}, ctx.Err()
	}
}
