package ports

import (
	"context"
	"errors"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodybot/internal/modules/music_player/domain"
)

// ErrMessageGone is returned when the message to edit or delete no longer exists.
var ErrMessageGone = errors.New("message no longer exists")

// NowPlayingInfo contains the data rendered on the "Now Playing" message.
type NowPlayingInfo struct {
	GuildID            snowflake.ID
	Track              domain.Track
	Progress           domain.Progress
	Upcoming           []domain.Track // first few queued tracks
	QueueLength        int
	RequesterName      string
	RequesterAvatarURL string
}

// PresenceTransport renders the live "Now Playing" message.
type PresenceTransport interface {
	// SendNowPlaying posts a new "Now Playing" message and returns its handle.
	SendNowPlaying(
		ctx context.Context,
		channelID snowflake.ID,
		info NowPlayingInfo,
	) (domain.ProgressMessage, error)

	// SendProgressUpdate edits the message in place.
	// Returns ErrMessageGone if the message was deleted.
	SendProgressUpdate(ctx context.Context, msg domain.ProgressMessage, info NowPlayingInfo) error

	// DeleteMessage removes the message. Returns ErrMessageGone if already deleted.
	DeleteMessage(ctx context.Context, msg domain.ProgressMessage) error
}

// Custom IDs of the playback controls attached to the "Now Playing" message.
const (
	ControlPause  = "music_player:pause"
	ControlResume = "music_player:resume"
	ControlSkip   = "music_player:skip"
	ControlStop   = "music_player:stop"
)
