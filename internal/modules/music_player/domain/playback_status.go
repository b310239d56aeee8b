package domain

// PlaybackStatus is the playback state of a guild.
type PlaybackStatus int

const (
	// StatusIdle means no track occupies the audio sink.
	StatusIdle PlaybackStatus = iota
	// StatusPlaying means the current track is being streamed.
	StatusPlaying
	// StatusPaused means the current track is held but not streamed.
	StatusPaused
)

// String returns the string representation of the status.
func (s PlaybackStatus) String() string {
	switch s {
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "idle"
	}
}

// IsActive returns true if a track is loaded, playing or paused.
func (s PlaybackStatus) IsActive() bool {
	return s == StatusPlaying || s == StatusPaused
}
