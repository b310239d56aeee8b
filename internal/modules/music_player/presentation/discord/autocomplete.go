package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodybot/internal/modules/music_player/application/usecases"
)

// maxChoices is Discord's limit on autocomplete choices.
const maxChoices = 25

// AutocompleteHandler handles autocomplete requests.
type AutocompleteHandler struct {
	queue     *usecases.QueueService
	playlists *usecases.PlaylistService
}

// NewAutocompleteHandler creates a new AutocompleteHandler.
func NewAutocompleteHandler(
	queue *usecases.QueueService,
	playlists *usecases.PlaylistService,
) *AutocompleteHandler {
	return &AutocompleteHandler{
		queue:     queue,
		playlists: playlists,
	}
}

// Handle routes an autocomplete interaction to the matching suggestion list.
func (h *AutocompleteHandler) Handle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommandAutocomplete {
		return
	}

	data := i.ApplicationCommandData()

	var choices []*discordgo.ApplicationCommandOptionChoice
	switch data.Name {
	case "skip", "remove":
		choices = h.queueChoices(i.GuildID, focusedValue(data.Options))
	case "playlist":
		if len(data.Options) > 0 && data.Options[0].Name == "remove" && i.Member != nil && i.Member.User != nil {
			choices = h.playlistChoices(i.Member.User.ID, focusedValue(data.Options[0].Options))
		}
	default:
		return
	}

	respondChoices(s, i, choices)
}

// queueChoices suggests queue positions whose title matches the typed text.
func (h *AutocompleteHandler) queueChoices(rawGuildID, typed string) []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0)

	guildID, err := snowflake.Parse(rawGuildID)
	if err != nil {
		slog.Warn("failed to parse guild ID in autocomplete", "error", err, "guild", rawGuildID)
		return choices
	}

	output, err := h.queue.List(usecases.QueueListInput{
		GuildID:  guildID,
		Page:     1,
		PageSize: maxChoices,
	})
	if err != nil {
		return choices
	}

	typed = strings.ToLower(strings.TrimSpace(typed))
	for idx, track := range output.Tracks {
		position := output.StartPosition + idx
		if typed != "" &&
			!strings.HasPrefix(strconv.Itoa(position), typed) &&
			!strings.Contains(strings.ToLower(track.Title), typed) {
			continue
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  truncate(fmt.Sprintf("%d. %s", position, track.Title), 100),
			Value: position,
		})
	}
	return choices
}

// playlistChoices suggests entries of the user's playlist matching the typed text.
func (h *AutocompleteHandler) playlistChoices(rawUserID, typed string) []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0)

	userID, err := snowflake.Parse(rawUserID)
	if err != nil {
		return choices
	}

	entries, err := h.playlists.List(context.Background(), userID)
	if err != nil {
		slog.Warn("failed to list playlist for autocomplete", "user", userID, "error", err)
		return choices
	}

	typed = strings.ToLower(strings.TrimSpace(typed))
	for idx, entry := range entries {
		if len(choices) == maxChoices {
			break
		}
		if typed != "" && !strings.Contains(strings.ToLower(entry.Title), typed) {
			continue
		}
		// Positions are what PlaylistService.Remove resolves first
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  truncate(fmt.Sprintf("%d. %s", idx+1, entry.Title), 100),
			Value: strconv.Itoa(idx + 1),
		})
	}
	return choices
}

func focusedValue(options []*discordgo.ApplicationCommandInteractionDataOption) string {
	for _, opt := range options {
		if opt.Focused {
			return fmt.Sprint(opt.Value)
		}
	}
	return ""
}

func respondChoices(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	choices []*discordgo.ApplicationCommandOptionChoice,
) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{
			Choices: choices,
		},
	})
	if err != nil {
		slog.Debug("failed to respond to autocomplete", "error", err)
	}
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
