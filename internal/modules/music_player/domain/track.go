package domain

import (
	"strconv"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Track represents a resolved, playable audio track.
// A Track is immutable once resolved; the queue holds it by value.
type Track struct {
	Title    string
	Artist   string
	Duration time.Duration
	IsStream bool

	// SourceLocator is the playable stream reference handed to the audio sink.
	// Depending on the resolver it is either a direct media URL or an
	// encoded Lavalink track.
	SourceLocator string

	// OriginURL is the canonical page URL, used for history logging and links.
	OriginURL string

	RequesterID snowflake.ID // Discord user who added the track
	EnqueuedAt  time.Time
}

// IsValid returns true if the track has the minimum required fields.
func (t *Track) IsValid() bool {
	return t.SourceLocator != "" && t.Title != ""
}

// Source returns the platform the track originates from.
func (t *Track) Source() TrackSource {
	return SourceFromURL(t.OriginURL)
}

// WithRequester returns a copy of the track attributed to the given user.
func (t Track) WithRequester(requesterID snowflake.ID, at time.Time) Track {
	t.RequesterID = requesterID
	t.EnqueuedAt = at
	return t
}

// FormattedDuration returns the duration as a human-readable string (mm:ss or hh:mm:ss).
func (t *Track) FormattedDuration() string {
	if t.IsStream {
		return "LIVE"
	}
	return FormatDuration(t.Duration)
}

// FormatDuration renders d as MM:SS below one hour and HH:MM:SS above.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	totalSeconds := int(d.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return formatTime(hours, minutes, seconds)
	}
	return formatTimeShort(minutes, seconds)
}

func formatTime(hours, minutes, seconds int) string {
	return pad(hours) + ":" + pad(minutes) + ":" + pad(seconds)
}

func formatTimeShort(minutes, seconds int) string {
	return pad(minutes) + ":" + pad(seconds)
}

func pad(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
