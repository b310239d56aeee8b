package domain

import (
	"github.com/disgoorg/snowflake/v2"
)

// TrackEndedEvent is published by the audio sink's completion callback.
// It fires exactly once per play, whatever the reason the track ended.
type TrackEndedEvent struct {
	GuildID  snowflake.ID
	Sequence uint64 // play that ended
}

// PlaybackStartedEvent is published when a track starts playing.
type PlaybackStartedEvent struct {
	GuildID               snowflake.ID
	Sequence              uint64
	Track                 Track
	NotificationChannelID snowflake.ID

	// PreviousMessage is the "Now Playing" message of the previous track, to be deleted.
	PreviousMessage *ProgressMessage
}

// PlaybackIdleEvent is published when a guild runs out of tracks or is reset.
// This signals that the "Now Playing" message should be deleted.
type PlaybackIdleEvent struct {
	GuildID         snowflake.ID
	ProgressMessage *ProgressMessage // "Now Playing" message to delete
}
