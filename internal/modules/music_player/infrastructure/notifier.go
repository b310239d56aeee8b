package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodybot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodybot/internal/modules/music_player/domain"
)

// upNextLimit is the number of queued tracks listed on the message.
const upNextLimit = 3

// Ensure Notifier implements ports.PresenceTransport.
var _ ports.PresenceTransport = (*Notifier)(nil)

// Notifier renders the "Now Playing" message in Discord channels.
type Notifier struct {
	session    *discordgo.Session
	httpClient *http.Client

	// thumbnails remembers the thumbnail of each live message so that
	// progress edits do not probe image URLs again.
	mu         sync.Mutex
	thumbnails map[snowflake.ID]string
}

// NewNotifier creates a new Notifier.
func NewNotifier(session *discordgo.Session) *Notifier {
	return &Notifier{
		session: session,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		thumbnails: make(map[snowflake.ID]string),
	}
}

// SendNowPlaying posts a "Now Playing" embed with playback controls.
func (n *Notifier) SendNowPlaying(
	ctx context.Context,
	channelID snowflake.ID,
	info ports.NowPlayingInfo,
) (domain.ProgressMessage, error) {
	thumbnailURL := n.getBestThumbnail(ctx, info.Track)
	embed := buildNowPlayingEmbed(info, thumbnailURL)

	msg, err := n.session.ChannelMessageSendComplex(channelID.String(), &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: buildControls(info.Progress.Status),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return domain.ProgressMessage{}, mapMessageError(err)
	}

	messageID, err := snowflake.Parse(msg.ID)
	if err != nil {
		return domain.ProgressMessage{}, err
	}

	if thumbnailURL != "" {
		n.mu.Lock()
		n.thumbnails[messageID] = thumbnailURL
		n.mu.Unlock()
	}
	return domain.ProgressMessage{ChannelID: channelID, MessageID: messageID}, nil
}

// SendProgressUpdate edits the embed and controls of an existing message.
func (n *Notifier) SendProgressUpdate(
	ctx context.Context,
	msg domain.ProgressMessage,
	info ports.NowPlayingInfo,
) error {
	n.mu.Lock()
	thumbnailURL := n.thumbnails[msg.MessageID]
	n.mu.Unlock()

	components := buildControls(info.Progress.Status)

	edit := discordgo.NewMessageEdit(msg.ChannelID.String(), msg.MessageID.String())
	edit.Embeds = &[]*discordgo.MessageEmbed{buildNowPlayingEmbed(info, thumbnailURL)}
	edit.Components = &components

	_, err := n.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	return mapMessageError(err)
}

// DeleteMessage deletes a message from the channel.
func (n *Notifier) DeleteMessage(ctx context.Context, msg domain.ProgressMessage) error {
	n.mu.Lock()
	delete(n.thumbnails, msg.MessageID)
	n.mu.Unlock()

	err := n.session.ChannelMessageDelete(
		msg.ChannelID.String(),
		msg.MessageID.String(),
		discordgo.WithContext(ctx),
	)
	return mapMessageError(err)
}

// buildNowPlayingEmbed renders the message body.
func buildNowPlayingEmbed(info ports.NowPlayingInfo, thumbnailURL string) *discordgo.MessageEmbed {
	track := info.Track
	source := track.Source()

	author := "Now Playing"
	if info.Progress.Status == domain.StatusPaused {
		author = "Paused"
	}

	position := info.Progress.String()
	if track.IsStream {
		position = domain.FormatDuration(info.Progress.Elapsed) + " • LIVE"
	}

	embed := &discordgo.MessageEmbed{
		Author: &discordgo.MessageEmbedAuthor{
			Name:    author,
			IconURL: source.IconURL(),
		},
		Title:       track.Title,
		URL:         track.OriginURL,
		Color:       source.Color(),
		Description: position,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Artist",
				Value:  valueOr(track.Artist, "Unknown"),
				Inline: true,
			},
			{
				Name:   "Duration",
				Value:  track.FormattedDuration(),
				Inline: true,
			},
			{
				Name:   "Queue",
				Value:  fmt.Sprintf("%d track(s)", info.QueueLength),
				Inline: true,
			},
		},
	}

	if len(info.Upcoming) > 0 {
		var sb strings.Builder
		for i, next := range info.Upcoming[:min(len(info.Upcoming), upNextLimit)] {
			fmt.Fprintf(&sb, "%d. %s `%s`\n", i+1, next.Title, next.FormattedDuration())
		}
		if rest := info.QueueLength - upNextLimit; rest > 0 {
			fmt.Fprintf(&sb, "…and %d more", rest)
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Up Next",
			Value: strings.TrimSuffix(sb.String(), "\n"),
		})
	}

	if info.RequesterName != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text:    fmt.Sprintf("Requested by %s", info.RequesterName),
			IconURL: info.RequesterAvatarURL,
		}
	}
	if !track.EnqueuedAt.IsZero() {
		embed.Timestamp = track.EnqueuedAt.UTC().Format(time.RFC3339)
	}
	if thumbnailURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: thumbnailURL}
	}

	return embed
}

// buildControls renders the playback buttons. The pause button becomes a
// resume button while paused.
func buildControls(status domain.PlaybackStatus) []discordgo.MessageComponent {
	toggle := discordgo.Button{
		Label:    "Pause",
		Style:    discordgo.SecondaryButton,
		CustomID: ports.ControlPause,
		Emoji:    &discordgo.ComponentEmoji{Name: "⏸️"},
	}
	if status == domain.StatusPaused {
		toggle = discordgo.Button{
			Label:    "Resume",
			Style:    discordgo.SuccessButton,
			CustomID: ports.ControlResume,
			Emoji:    &discordgo.ComponentEmoji{Name: "▶️"},
		}
	}

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				toggle,
				discordgo.Button{
					Label:    "Skip",
					Style:    discordgo.PrimaryButton,
					CustomID: ports.ControlSkip,
					Emoji:    &discordgo.ComponentEmoji{Name: "⏭️"},
				},
				discordgo.Button{
					Label:    "Stop",
					Style:    discordgo.DangerButton,
					CustomID: ports.ControlStop,
					Emoji:    &discordgo.ComponentEmoji{Name: "⏹️"},
				},
			},
		},
	}
}

// mapMessageError translates "unknown message/channel" responses into ports.ErrMessageGone.
func mapMessageError(err error) error {
	if err == nil {
		return nil
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Message != nil {
			switch restErr.Message.Code {
			case discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeUnknownChannel:
				return fmt.Errorf("%w: %w", ports.ErrMessageGone, err)
			}
		}
		if restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %w", ports.ErrMessageGone, err)
		}
	}
	return err
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// getBestThumbnail attempts to find the best quality thumbnail for the track.
// For YouTube, it tries different quality levels (maxresdefault, sddefault, etc.).
// Other sources have no thumbnail.
func (n *Notifier) getBestThumbnail(ctx context.Context, track domain.Track) string {
	if track.Source() != domain.TrackSourceYouTube {
		return ""
	}

	videoID := youTubeVideoID(track.OriginURL)
	if videoID == "" {
		return ""
	}
	return n.getYouTubeThumbnail(ctx, videoID)
}

// getYouTubeThumbnail tries to find the highest quality YouTube thumbnail available.
func (n *Notifier) getYouTubeThumbnail(ctx context.Context, videoID string) string {
	qualities := []string{"maxresdefault", "sddefault", "hqdefault", "mqdefault"}

	for _, quality := range qualities {
		thumbnailURL := fmt.Sprintf("https://img.youtube.com/vi/%s/%s.jpg", videoID, quality)
		if n.urlExists(ctx, thumbnailURL) {
			return thumbnailURL
		}
	}

	return ""
}

// youTubeVideoID extracts the video ID from watch, short and youtu.be URLs.
func youTubeVideoID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch {
	case host == "youtu.be":
		return strings.Trim(u.Path, "/")
	case strings.HasPrefix(u.Path, "/shorts/"):
		return strings.TrimPrefix(u.Path, "/shorts/")
	default:
		return u.Query().Get("v")
	}
}

// urlExists checks if a URL returns a successful response using a HEAD request.
func (n *Notifier) urlExists(ctx context.Context, rawURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}
