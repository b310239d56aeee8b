package usecases

import (
	"time"

	"github.com/sglre6355/melodybot/internal/modules/music_player/domain"
)

// Re-export domain types for presentation layer use.
// This allows presentation to depend only on usecases without importing domain directly.

// Track is an alias for domain.Track.
type Track = domain.Track

// Progress is an alias for domain.Progress.
type Progress = domain.Progress

// GuildSnapshot is an alias for domain.GuildSnapshot.
type GuildSnapshot = domain.GuildSnapshot

// PlaybackStatus is an alias for domain.PlaybackStatus.
type PlaybackStatus = domain.PlaybackStatus

// Playback statuses re-exported for presentation.
const (
	StatusIdle    = domain.StatusIdle
	StatusPlaying = domain.StatusPlaying
	StatusPaused  = domain.StatusPaused
)

// SearchSource is an alias for domain.SearchSource.
type SearchSource = domain.SearchSource

// ParseSearchSource converts a user-facing source name to a SearchSource.
func ParseSearchSource(name string) SearchSource {
	return domain.ParseSearchSource(name)
}

// FormatDuration renders a duration as MM:SS, or HH:MM:SS from one hour up.
func FormatDuration(d time.Duration) string {
	return domain.FormatDuration(d)
}
