package usecases

import "errors"

// Domain errors for the music player module.
// All of them are expected, recoverable conditions reported to the user.
var (
	// ErrNothingPlaying is returned when an operation requires an active track.
	ErrNothingPlaying = errors.New("nothing is currently playing")

	// ErrNotPaused is returned when trying to resume while not paused.
	ErrNotPaused = errors.New("playback is not paused")

	// ErrPositionOutOfRange is returned when a queue position exceeds the queue length.
	ErrPositionOutOfRange = errors.New("queue position is out of range")

	// ErrNoTracksResolved is returned when resolution produced no playable tracks.
	ErrNoTracksResolved = errors.New("no tracks found")

	// ErrResolutionFailed is returned when the resolver could not process the query.
	ErrResolutionFailed = errors.New("failed to resolve tracks")

	// ErrResolutionTimeout is returned when resolution exceeds its time budget.
	ErrResolutionTimeout = errors.New("timed out while resolving tracks")

	// ErrNotConnected is returned when an operation requires the bot to be in a voice channel.
	ErrNotConnected = errors.New("not connected to a voice channel")

	// ErrUserNotInVoice is returned when the user is not in a voice channel.
	ErrUserNotInVoice = errors.New("you must be in a voice channel")

	// ErrInvalidCount is returned for a non-positive count or position.
	ErrInvalidCount = errors.New("count must be at least 1")

	// ErrInvalidPage is returned for a queue page that does not exist.
	ErrInvalidPage = errors.New("invalid queue page")

	// ErrPlaylistEmpty is returned when the user's playlist has no entries.
	ErrPlaylistEmpty = errors.New("your playlist is empty")

	// ErrSongNotFound is returned when no playlist entry matches the identifier.
	ErrSongNotFound = errors.New("song not found in your playlist")
)
