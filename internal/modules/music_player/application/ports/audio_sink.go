package ports

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodybot/internal/modules/music_player/domain"
)

// AudioSink defines the interface for audio playback operations.
type AudioSink interface {
	// Play starts playback of the given track, unpaused even if the previous
	// track was paused.
	// onFinished fires exactly once per successful Play call, whether the track
	// ended naturally, was stopped, was replaced, or failed mid-stream. It runs
	// on the sink's own goroutine and must not block.
	// If Play returns an error, onFinished is never called.
	Play(ctx context.Context, guildID snowflake.ID, track domain.Track, onFinished func()) error

	// Stop halts the current playback, which fires the pending onFinished.
	Stop(ctx context.Context, guildID snowflake.ID) error

	// Pause pauses the current playback without discarding the track.
	Pause(ctx context.Context, guildID snowflake.ID) error

	// Resume resumes the paused playback.
	Resume(ctx context.Context, guildID snowflake.ID) error

	// Status reports what the sink is actually doing for the guild.
	Status(guildID snowflake.ID) domain.PlaybackStatus
}
