package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sglre6355/melodybot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodybot/internal/modules/music_player/application/usecases"
)

// buildQueueEmbed renders one page of the queue. Positions match the ones
// accepted by /skip and /remove.
func buildQueueEmbed(output *usecases.QueueListOutput) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "Queue",
		Color: colorInfo,
	}

	if output.CurrentTrack == nil && output.TotalTracks == 0 {
		embed.Description = "Queue is empty."
		return embed
	}

	var sb strings.Builder
	if output.CurrentTrack != nil {
		sb.WriteString("### Now Playing\n")
		writeTrackLine(&sb, "", *output.CurrentTrack)
		if output.Status == usecases.StatusPaused {
			sb.WriteString("*Paused*\n")
		}
	}

	if len(output.Tracks) > 0 {
		sb.WriteString("### Up Next\n")
		for idx, track := range output.Tracks {
			writeTrackLine(&sb, fmt.Sprintf("%d\\. ", output.StartPosition+idx), track)
		}
	}

	embed.Description = sb.String()
	embed.Footer = &discordgo.MessageEmbedFooter{
		Text: fmt.Sprintf("Page %d/%d • %d %s • %s",
			output.CurrentPage,
			output.TotalPages,
			output.TotalTracks,
			plural(output.TotalTracks, "track"),
			usecases.FormatDuration(output.TotalDuration),
		),
	}
	return embed
}

// writeTrackLine writes a single track line to the string builder.
// The position prefix escapes its period to prevent Discord list formatting.
func writeTrackLine(sb *strings.Builder, prefix string, track usecases.Track) {
	sb.WriteString(prefix)
	sb.WriteString(trackLink(track))
	if track.Artist != "" {
		sb.WriteString(" - ")
		sb.WriteString(track.Artist)
	}
	fmt.Fprintf(sb, " `%s`\n", track.FormattedDuration())
}

// buildNowPlayingEmbed renders the reply to /nowplaying.
func buildNowPlayingEmbed(info ports.NowPlayingInfo) *discordgo.MessageEmbed {
	title := "Now Playing"
	if info.Progress.Status == usecases.StatusPaused {
		title = "Paused"
	}

	var sb strings.Builder
	sb.WriteString(trackLink(info.Track))
	sb.WriteString("\n")
	if info.Track.IsStream {
		fmt.Fprintf(&sb, "%s • LIVE", usecases.FormatDuration(info.Progress.Elapsed))
	} else {
		sb.WriteString(info.Progress.String())
	}

	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: sb.String(),
		Color:       info.Track.Source().Color(),
	}

	if info.Track.Artist != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Artist",
			Value:  info.Track.Artist,
			Inline: true,
		})
	}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   "Queue",
		Value:  fmt.Sprintf("%d %s", info.QueueLength, plural(info.QueueLength, "track")),
		Inline: true,
	})

	if info.RequesterName != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text:    "Requested by " + info.RequesterName,
			IconURL: info.RequesterAvatarURL,
		}
	}
	if !info.Track.EnqueuedAt.IsZero() {
		embed.Timestamp = info.Track.EnqueuedAt.Format(time.RFC3339)
	}

	return embed
}
