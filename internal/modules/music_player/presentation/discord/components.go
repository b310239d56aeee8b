package discord

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodybot/internal/bot"
	"github.com/sglre6355/melodybot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodybot/internal/modules/music_player/application/usecases"
)

// ComponentHandlers returns the handlers of the "Now Playing" controls,
// keyed by custom ID.
func (h *CommandHandlers) ComponentHandlers() map[string]bot.InteractionHandler {
	return map[string]bot.InteractionHandler{
		ports.ControlPause:  h.HandlePauseButton,
		ports.ControlResume: h.HandleResumeButton,
		ports.ControlSkip:   h.HandleSkipButton,
		ports.ControlStop:   h.HandleStopButton,
	}
}

// HandlePauseButton handles the pause control.
func (h *CommandHandlers) HandlePauseButton(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	return h.handleControl(i, r, func(ctx context.Context, guildID snowflake.ID) error {
		return h.controller.Pause(ctx, guildID)
	})
}

// HandleResumeButton handles the resume control.
func (h *CommandHandlers) HandleResumeButton(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	return h.handleControl(i, r, func(ctx context.Context, guildID snowflake.ID) error {
		return h.controller.Resume(ctx, guildID)
	})
}

// HandleSkipButton handles the skip control.
func (h *CommandHandlers) HandleSkipButton(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	return h.handleControl(i, r, func(ctx context.Context, guildID snowflake.ID) error {
		_, err := h.controller.Skip(ctx, usecases.SkipInput{GuildID: guildID})
		return err
	})
}

// HandleStopButton handles the stop control.
func (h *CommandHandlers) HandleStopButton(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	return h.handleControl(i, r, func(ctx context.Context, guildID snowflake.ID) error {
		_, err := h.stop(ctx, guildID)
		return err
	})
}

// handleControl runs a playback control and acknowledges the click without
// posting a message. The "Now Playing" message is re-rendered right away so
// the buttons reflect the new state.
func (h *CommandHandlers) handleControl(
	i *discordgo.InteractionCreate,
	r bot.Responder,
	action func(ctx context.Context, guildID snowflake.ID) error,
) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return respondError(r, capitalize(errGuildOnly.Error()))
	}

	ctx := context.Background()
	if err := action(ctx, guildID); err != nil {
		return respondError(r, userMessage(err))
	}

	if err := r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}); err != nil {
		return err
	}

	slog.Debug("handled playback control",
		"guild", guildID,
		"control", i.MessageComponentData().CustomID,
	)

	h.nowPlaying.Refresh(ctx, guildID)
	return nil
}
