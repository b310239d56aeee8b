package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodybot/internal/bot"
	"github.com/sglre6355/melodybot/internal/modules/music_player/application/usecases"
)

// Embed colors.
const (
	colorSuccess = 0x08c404
	colorError   = 0xE74C3C
	colorInfo    = 0x5865F2
)

// playlistListLimit caps the entries shown by /playlist list.
const playlistListLimit = 20

var errGuildOnly = errors.New("this command can only be used in a server")

// CommandHandlers holds all the command handlers.
type CommandHandlers struct {
	voiceChannel *usecases.VoiceChannelService
	play         *usecases.PlayService
	controller   *usecases.PlaybackController
	queue        *usecases.QueueService
	nowPlaying   *usecases.NowPlayingService
	playlists    *usecases.PlaylistService
}

// NewCommandHandlers creates new CommandHandlers.
func NewCommandHandlers(
	voiceChannel *usecases.VoiceChannelService,
	play *usecases.PlayService,
	controller *usecases.PlaybackController,
	queue *usecases.QueueService,
	nowPlaying *usecases.NowPlayingService,
	playlists *usecases.PlaylistService,
) *CommandHandlers {
	return &CommandHandlers{
		voiceChannel: voiceChannel,
		play:         play,
		controller:   controller,
		queue:        queue,
		nowPlaying:   nowPlaying,
		playlists:    playlists,
	}
}

// invocation carries the IDs every command needs.
type invocation struct {
	guildID   snowflake.ID
	userID    snowflake.ID
	channelID snowflake.ID
}

func parseInvocation(i *discordgo.InteractionCreate) (invocation, error) {
	if i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		return invocation{}, errGuildOnly
	}

	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return invocation{}, fmt.Errorf("invalid guild: %w", err)
	}
	userID, err := snowflake.Parse(i.Member.User.ID)
	if err != nil {
		return invocation{}, fmt.Errorf("invalid user: %w", err)
	}
	channelID, err := snowflake.Parse(i.ChannelID)
	if err != nil {
		return invocation{}, fmt.Errorf("invalid channel: %w", err)
	}

	return invocation{guildID: guildID, userID: userID, channelID: channelID}, nil
}

// optionMap indexes command options by name.
func optionMap(
	options []*discordgo.ApplicationCommandInteractionDataOption,
) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

func intOption(options map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) int {
	if opt, ok := options[name]; ok {
		return int(opt.IntValue())
	}
	return 0
}

func stringOption(options map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if opt, ok := options[name]; ok {
		return opt.StringValue()
	}
	return ""
}

// HandleJoin handles the /join command.
func (h *CommandHandlers) HandleJoin(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	inv, err := parseInvocation(i)
	if err != nil {
		return respondError(r, capitalize(err.Error()))
	}

	var voiceChannelID snowflake.ID
	if opt, ok := optionMap(i.ApplicationCommandData().Options)["channel"]; ok {
		voiceChannelID, err = snowflake.Parse(opt.ChannelValue(s).ID)
		if err != nil {
			return respondError(r, "Invalid voice channel")
		}
	}

	output, err := h.voiceChannel.Join(context.Background(), usecases.JoinInput{
		GuildID:               inv.guildID,
		UserID:                inv.userID,
		NotificationChannelID: inv.channelID,
		VoiceChannelID:        voiceChannelID,
	})
	if err != nil {
		return respondError(r, userMessage(err))
	}

	if output.AlreadyJoined {
		return respondSuccess(r, fmt.Sprintf("Already connected to <#%d>.", output.VoiceChannelID))
	}
	return respondSuccess(r, fmt.Sprintf("Connected to <#%d>.", output.VoiceChannelID))
}

// HandleLeave handles the /leave command.
func (h *CommandHandlers) HandleLeave(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	inv, err := parseInvocation(i)
	if err != nil {
		return respondError(r, capitalize(err.Error()))
	}

	err = h.voiceChannel.Leave(context.Background(), usecases.LeaveInput{GuildID: inv.guildID})
	if err != nil {
		return respondError(r, userMessage(err))
	}

	return respondSuccess(r, "Disconnected.")
}

// HandlePlay handles the /play command.
// Resolution may take several seconds, so the interaction is deferred first.
func (h *CommandHandlers) HandlePlay(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	inv, err := parseInvocation(i)
	if err != nil {
		return respondError(r, capitalize(err.Error()))
	}

	options := optionMap(i.ApplicationCommandData().Options)
	input := usecases.PlayInput{
		GuildID:               inv.guildID,
		UserID:                inv.userID,
		NotificationChannelID: inv.channelID,
		Query:                 stringOption(options, "query"),
		Count:                 intOption(options, "count"),
	}
	if source := stringOption(options, "source"); source != "" {
		input.Source = usecases.ParseSearchSource(source)
	}

	if err := r.Defer(); err != nil {
		return err
	}

	output, err := h.play.Play(context.Background(), input)
	if err != nil {
		return followupError(r, userMessage(err))
	}

	return followupEnqueued(r, output, "")
}

// HandleSkip handles the /skip command.
func (h *CommandHandlers) HandleSkip(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	inv, err := parseInvocation(i)
	if err != nil {
		return respondError(r, capitalize(err.Error()))
	}

	options := optionMap(i.ApplicationCommandData().Options)
	output, err := h.controller.Skip(context.Background(), usecases.SkipInput{
		GuildID:  inv.guildID,
		Count:    intOption(options, "count"),
		Position: intOption(options, "position"),
	})
	if err != nil {
		return respondError(r, userMessage(err))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Skipped %s.", trackLink(output.Skipped))
	if output.Removed > 0 {
		fmt.Fprintf(&sb, " Removed %d queued %s.", output.Removed, plural(output.Removed, "track"))
	}
	if output.Next != nil {
		fmt.Fprintf(&sb, "\nUp next: %s", trackLink(*output.Next))
	}

	return respondSuccess(r, sb.String())
}

// HandlePause handles the /pause command.
func (h *CommandHandlers) HandlePause(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	inv, err := parseInvocation(i)
	if err != nil {
		return respondError(r, capitalize(err.Error()))
	}

	if err := h.controller.Pause(context.Background(), inv.guildID); err != nil {
		return respondError(r, userMessage(err))
	}

	return respondSuccess(r, "Paused playback.")
}

// HandleResume handles the /resume command.
func (h *CommandHandlers) HandleResume(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	inv, err := parseInvocation(i)
	if err != nil {
		return respondError(r, capitalize(err.Error()))
	}

	if err := h.controller.Resume(context.Background(), inv.guildID); err != nil {
		return respondError(r, userMessage(err))
	}

	return respondSuccess(r, "Resumed playback.")
}

// HandleStop handles the /stop command.
// Stopping clears the queue first so the completion callback finds nothing
// to advance to.
func (h *CommandHandlers) HandleStop(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	inv, err := parseInvocation(i)
	if err != nil {
		return respondError(r, capitalize(err.Error()))
	}

	cleared, err := h.stop(context.Background(), inv.guildID)
	if err != nil {
		return respondError(r, userMessage(err))
	}
	if cleared > 0 {
		return respondSuccess(r, fmt.Sprintf("Stopped playback and cleared %d queued %s.",
			cleared, plural(cleared, "track")))
	}
	return respondSuccess(r, "Stopped playback.")
}

func (h *CommandHandlers) stop(ctx context.Context, guildID snowflake.ID) (int, error) {
	output, err := h.controller.StopAndClear(ctx, guildID)
	if err != nil {
		return 0, err
	}
	return output.Cleared, nil
}

// HandleQueue handles the /queue command.
func (h *CommandHandlers) HandleQueue(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	inv, err := parseInvocation(i)
	if err != nil {
		return respondError(r, capitalize(err.Error()))
	}

	output, err := h.queue.List(usecases.QueueListInput{
		GuildID: inv.guildID,
		Page:    intOption(optionMap(i.ApplicationCommandData().Options), "page"),
	})
	if err != nil {
		return respondError(r, userMessage(err))
	}

	return respondEmbed(r, buildQueueEmbed(output))
}

// HandleRemove handles the /remove command.
func (h *CommandHandlers) HandleRemove(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	inv, err := parseInvocation(i)
	if err != nil {
		return respondError(r, capitalize(err.Error()))
	}

	removed, err := h.queue.Remove(usecases.QueueRemoveInput{
		GuildID:  inv.guildID,
		Position: intOption(optionMap(i.ApplicationCommandData().Options), "position"),
	})
	if err != nil {
		return respondError(r, userMessage(err))
	}

	return respondSuccess(r, fmt.Sprintf("Removed %s from the queue.", trackLink(*removed)))
}

// HandleClear handles the /clear command.
func (h *CommandHandlers) HandleClear(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	inv, err := parseInvocation(i)
	if err != nil {
		return respondError(r, capitalize(err.Error()))
	}

	cleared := h.controller.ClearQueue(inv.guildID)
	if cleared == 0 {
		return respondSuccess(r, "The queue is already empty.")
	}
	return respondSuccess(r, fmt.Sprintf("Cleared %d %s from the queue.", cleared, plural(cleared, "track")))
}

// HandleNowPlaying handles the /nowplaying command.
func (h *CommandHandlers) HandleNowPlaying(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	inv, err := parseInvocation(i)
	if err != nil {
		return respondError(r, capitalize(err.Error()))
	}

	info, ok := h.nowPlaying.NowPlayingInfo(inv.guildID)
	if !ok {
		return respondError(r, userMessage(usecases.ErrNothingPlaying))
	}

	return respondEmbed(r, buildNowPlayingEmbed(info))
}

// HandlePlaylist handles the /playlist command and its subcommands.
func (h *CommandHandlers) HandlePlaylist(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	inv, err := parseInvocation(i)
	if err != nil {
		return respondError(r, capitalize(err.Error()))
	}

	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		return respondError(r, "Invalid subcommand")
	}

	subCmd := options[0]
	switch subCmd.Name {
	case "add":
		return h.handlePlaylistAdd(inv, r, optionMap(subCmd.Options))
	case "list":
		return h.handlePlaylistList(inv, r)
	case "remove":
		return h.handlePlaylistRemove(inv, r, optionMap(subCmd.Options))
	default:
		return respondError(r, "Unknown subcommand")
	}
}

func (h *CommandHandlers) handlePlaylistAdd(
	inv invocation,
	r bot.Responder,
	options map[string]*discordgo.ApplicationCommandInteractionDataOption,
) error {
	if err := r.Defer(); err != nil {
		return err
	}

	output, err := h.playlists.Add(context.Background(), usecases.PlaylistAddInput{
		UserID: inv.userID,
		Query:  stringOption(options, "query"),
	})
	if err != nil {
		return followupError(r, userMessage(err))
	}

	link := linkOrBold(output.Title, output.URL)
	if !output.Added {
		return followupSuccess(r, fmt.Sprintf("%s is already in your playlist.", link))
	}
	return followupSuccess(r, fmt.Sprintf("Added %s to your playlist.", link))
}

func (h *CommandHandlers) handlePlaylistList(inv invocation, r bot.Responder) error {
	entries, err := h.playlists.List(context.Background(), inv.userID)
	if err != nil {
		return respondError(r, userMessage(err))
	}

	embed := &discordgo.MessageEmbed{
		Title: "Your Playlist",
		Color: colorInfo,
	}
	if len(entries) == 0 {
		embed.Description = "Your playlist is empty. Add tracks with `/playlist add`."
		return respondEmbed(r, embed)
	}

	var sb strings.Builder
	for idx, entry := range entries[:min(len(entries), playlistListLimit)] {
		fmt.Fprintf(&sb, "%d\\. %s\n", idx+1, linkOrBold(entry.Title, entry.URL))
	}
	if extra := len(entries) - playlistListLimit; extra > 0 {
		fmt.Fprintf(&sb, "…and %d more\n", extra)
	}

	embed.Description = sb.String()
	embed.Footer = &discordgo.MessageEmbedFooter{
		Text: fmt.Sprintf("%d %s", len(entries), plural(len(entries), "track")),
	}
	return respondEmbed(r, embed)
}

func (h *CommandHandlers) handlePlaylistRemove(
	inv invocation,
	r bot.Responder,
	options map[string]*discordgo.ApplicationCommandInteractionDataOption,
) error {
	removed, err := h.playlists.Remove(context.Background(), usecases.PlaylistRemoveInput{
		UserID:     inv.userID,
		Identifier: stringOption(options, "song"),
	})
	if err != nil {
		return respondError(r, userMessage(err))
	}

	return respondSuccess(r, fmt.Sprintf("Removed %s from your playlist.",
		linkOrBold(removed.Title, removed.URL)))
}

// HandleRandom handles the /random command.
func (h *CommandHandlers) HandleRandom(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	inv, err := parseInvocation(i)
	if err != nil {
		return respondError(r, capitalize(err.Error()))
	}

	count := intOption(optionMap(i.ApplicationCommandData().Options), "count")
	if count == 0 {
		count = 1
	}

	if err := r.Defer(); err != nil {
		return err
	}

	output, err := h.playlists.PlayRandom(context.Background(), usecases.PlayRandomInput{
		GuildID:               inv.guildID,
		UserID:                inv.userID,
		NotificationChannelID: inv.channelID,
		Count:                 count,
	})
	if err != nil {
		return followupError(r, userMessage(err))
	}

	return followupEnqueued(r, output, "from your playlist")
}

// Response helpers.

// userMessage turns an error into text safe to show in Discord. Expected
// conditions carry their own message; anything else is logged.
func userMessage(err error) string {
	expected := []error{
		usecases.ErrNothingPlaying,
		usecases.ErrNotPaused,
		usecases.ErrPositionOutOfRange,
		usecases.ErrNoTracksResolved,
		usecases.ErrResolutionFailed,
		usecases.ErrResolutionTimeout,
		usecases.ErrNotConnected,
		usecases.ErrUserNotInVoice,
		usecases.ErrInvalidCount,
		usecases.ErrInvalidPage,
		usecases.ErrPlaylistEmpty,
		usecases.ErrSongNotFound,
	}
	for _, e := range expected {
		if errors.Is(err, e) {
			return capitalize(e.Error()) + "."
		}
	}

	slog.Error("failed to handle music command", "error", err)
	return "Something went wrong while processing your request."
}

func respondSuccess(r bot.Responder, description string) error {
	return respondEmbed(r, &discordgo.MessageEmbed{
		Description: description,
		Color:       colorSuccess,
	})
}

func respondEmbed(r bot.Responder, embed *discordgo.MessageEmbed) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	})
}

func respondError(r bot.Responder, message string) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Title:       "Error",
					Description: message,
					Color:       colorError,
				},
			},
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
}

func followupSuccess(r bot.Responder, description string) error {
	return r.Followup(&discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{
			{
				Description: description,
				Color:       colorSuccess,
			},
		},
	})
}

func followupError(r bot.Responder, message string) error {
	return r.Followup(&discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{
			{
				Title:       "Error",
				Description: message,
				Color:       colorError,
			},
		},
	})
}

// followupEnqueued reports the outcome of an enqueue. origin, if set,
// describes where the tracks came from.
func followupEnqueued(r bot.Responder, output *usecases.PlayOutput, origin string) error {
	if !output.NowPlaying && output.FirstPosition == 0 {
		return followupError(r, "None of the tracks could be played.")
	}

	suffix := ""
	if origin != "" {
		suffix = " " + origin
	}

	var sb strings.Builder
	count := len(output.Tracks)
	switch {
	case output.NowPlaying:
		fmt.Fprintf(&sb, "Now playing %s%s.", trackLink(*output.Started), suffix)
		if count > 1 {
			fmt.Fprintf(&sb, " Queued %d more %s.", count-1, plural(count-1, "track"))
		}
	case count == 1:
		fmt.Fprintf(&sb, "Added %s%s to the queue at position %d.",
			trackLink(output.Tracks[0]), suffix, output.FirstPosition)
	default:
		fmt.Fprintf(&sb, "Added **%d tracks**%s to the queue starting at position %d.",
			count, suffix, output.FirstPosition)
	}

	return followupSuccess(r, sb.String())
}

// Formatting helpers.

func trackLink(track usecases.Track) string {
	return linkOrBold(track.Title, track.OriginURL)
}

func linkOrBold(title, url string) string {
	title = escapeMarkdownLink(title)
	if url != "" {
		return fmt.Sprintf("[%s](%s)", title, url)
	}
	return fmt.Sprintf("**%s**", title)
}

var markdownLinkEscaper = strings.NewReplacer("[", "\\[", "]", "\\]")

func escapeMarkdownLink(s string) string {
	return markdownLinkEscaper.Replace(s)
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
