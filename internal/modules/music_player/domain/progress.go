package domain

import (
	"strings"
	"time"
)

// Progress is the rendered playback position of the current track.
type Progress struct {
	Elapsed time.Duration
	Total   time.Duration
	Ratio   float64 // Elapsed/Total in [0, 1]; 0 for unknown durations
	Status  PlaybackStatus
}

// ComputeProgress derives the playback position from a snapshot:
// elapsed = now - started - accumulated pause - (current pause window, if paused),
// clamped to [0, track duration].
func ComputeProgress(s GuildSnapshot, now time.Time) Progress {
	if s.CurrentTrack == nil || s.PlaybackStartedAt.IsZero() {
		return Progress{Status: s.Status}
	}

	elapsed := now.Sub(s.PlaybackStartedAt) - s.AccumulatedPause
	if s.Status == StatusPaused && !s.PausedAt.IsZero() {
		elapsed -= now.Sub(s.PausedAt)
	}

	total := s.CurrentTrack.Duration
	if elapsed < 0 {
		elapsed = 0
	}
	// Streams have no length to clamp to
	if !s.CurrentTrack.IsStream && elapsed > total {
		elapsed = total
	}

	var ratio float64
	if total > 0 && !s.CurrentTrack.IsStream {
		ratio = float64(elapsed) / float64(total)
	}

	return Progress{
		Elapsed: elapsed,
		Total:   total,
		Ratio:   ratio,
		Status:  s.Status,
	}
}

// Remaining returns the time left in the track.
func (p Progress) Remaining() time.Duration {
	if p.Total <= p.Elapsed {
		return 0
	}
	return p.Total - p.Elapsed
}

const (
	barFilled = "▬"
	barMarker = "🔘"
	barEmpty  = "─"
)

// Bar renders a textual progress bar of the given width.
func (p Progress) Bar(width int) string {
	if width <= 0 {
		return ""
	}

	pos := int(p.Ratio * float64(width-1))
	if pos < 0 {
		pos = 0
	}
	if pos > width-1 {
		pos = width - 1
	}

	var sb strings.Builder
	sb.WriteString(strings.Repeat(barFilled, pos))
	sb.WriteString(barMarker)
	sb.WriteString(strings.Repeat(barEmpty, width-1-pos))
	return sb.String()
}

// String renders the position as "elapsed bar total", e.g. "01:05 ▬▬🔘──── 03:30".
func (p Progress) String() string {
	return FormatDuration(p.Elapsed) + " " + p.Bar(progressBarWidth) + " " + FormatDuration(p.Total)
}

const progressBarWidth = 16
