package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodybot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodybot/internal/modules/music_player/domain"
)

// DefaultSinkTimeout bounds every audio sink call made while a guild is locked.
const DefaultSinkTimeout = 10 * time.Second

// EnqueueInput contains the input for the Enqueue use case.
type EnqueueInput struct {
	GuildID               snowflake.ID
	Tracks                []domain.Track
	NotificationChannelID snowflake.ID // Optional: updates notification channel if non-zero

	// RequireVoice rejects the batch with ErrNotConnected if the bot is not in
	// a voice channel, e.g. because the idle reaper disconnected it meanwhile.
	RequireVoice bool
}

// EnqueueOutput contains the result of the Enqueue use case.
type EnqueueOutput struct {
	Accepted int

	// NowPlaying is true if this enqueue started playback.
	NowPlaying bool
	Started    *domain.Track

	// WasBusy reports whether anything was queued or playing before this enqueue.
	WasBusy bool

	// FirstPosition is the 1-based queue position of the first accepted track
	// still waiting in the queue, or 0 if none is waiting.
	FirstPosition int
}

// StopOutput contains the result of StopAndClear.
type StopOutput struct {
	Stopped *domain.Track // nil if nothing was playing
	Cleared int
}

// AdvanceOutput contains the result of advancing the queue.
// Exactly one of Started and WentIdle is set.
type AdvanceOutput struct {
	Started  *domain.Track
	WentIdle bool
}

// SkipInput contains the input for the Skip use case.
// Position takes precedence over Count when both are set.
type SkipInput struct {
	GuildID  snowflake.ID
	Count    int // tracks to skip including the current one; 0 means 1
	Position int // 1-based queue position to jump to; 0 means unset
}

// SkipOutput contains the result of the Skip use case.
type SkipOutput struct {
	Skipped domain.Track
	Removed int           // queued tracks dropped in addition to the current one
	Next    *domain.Track // nil if the queue is empty
}

// PlaybackController is the per-guild playback state machine.
//
// Every operation locks the guild's state for its whole duration. Audio sink
// calls happen under the lock but are bounded by the sink timeout. The sink's
// completion callback only publishes a TrackEndedEvent; the state mutation it
// triggers happens later in HandlePlaybackFinished, which takes the lock again.
type PlaybackController struct {
	store       domain.GuildStateStore
	sink        ports.AudioSink
	publisher   ports.EventPublisher
	now         func() time.Time
	sinkTimeout time.Duration
}

// ControllerOption configures a PlaybackController.
type ControllerOption func(*PlaybackController)

// WithClock overrides the controller's time source.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *PlaybackController) {
		c.now = now
	}
}

// WithSinkTimeout overrides DefaultSinkTimeout.
func WithSinkTimeout(d time.Duration) ControllerOption {
	return func(c *PlaybackController) {
		if d > 0 {
			c.sinkTimeout = d
		}
	}
}

// NewPlaybackController creates a new PlaybackController.
func NewPlaybackController(
	store domain.GuildStateStore,
	sink ports.AudioSink,
	publisher ports.EventPublisher,
	opts ...ControllerOption,
) *PlaybackController {
	c := &PlaybackController{
		store:       store,
		sink:        sink,
		publisher:   publisher,
		now:         time.Now,
		sinkTimeout: DefaultSinkTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enqueue appends tracks to the guild's queue as one contiguous batch.
// If the guild was idle, playback of the queue head starts within the same
// locked operation.
func (c *PlaybackController) Enqueue(ctx context.Context, input EnqueueInput) (*EnqueueOutput, error) {
	if len(input.Tracks) == 0 {
		return nil, ErrNoTracksResolved
	}

	state := c.store.GetOrCreate(input.GuildID)
	state.Lock()
	defer state.Unlock()

	if input.RequireVoice && state.VoiceChannelID() == 0 {
		return nil, ErrNotConnected
	}

	if input.NotificationChannelID != 0 {
		state.SetNotificationChannelID(input.NotificationChannelID)
	}

	queue := state.Queue()
	output := &EnqueueOutput{
		Accepted: len(input.Tracks),
		WasBusy:  state.Status().IsActive() || !queue.IsEmpty(),
	}

	queue.Append(input.Tracks...)
	state.ClearIdle()

	if state.Status() == domain.StatusIdle {
		advanced := c.advanceLocked(ctx, state)
		if advanced.Started != nil {
			output.NowPlaying = true
			output.Started = advanced.Started
		}
	}

	// The batch sits at the tail; anything popped by advance came from the head
	waiting := min(len(input.Tracks), queue.Len())
	if waiting > 0 {
		output.FirstPosition = queue.Len() - waiting + 1
	}

	slog.Debug("enqueued tracks",
		"guild", input.GuildID,
		"count", output.Accepted,
		"now_playing", output.NowPlaying,
	)

	return output, nil
}

// Advance pops the head of the queue and hands it to the audio sink, or marks
// the guild idle if the queue is empty. It is normally driven by the sink's
// completion callback; calling it while a track plays replaces that track.
func (c *PlaybackController) Advance(ctx context.Context, guildID snowflake.ID) AdvanceOutput {
	state := c.store.GetOrCreate(guildID)
	state.Lock()
	defer state.Unlock()

	return c.advanceLocked(ctx, state)
}

// advanceLocked is the only transition into Playing. The caller must hold the lock.
// Tracks the sink refuses are dropped and the next one is tried.
func (c *PlaybackController) advanceLocked(ctx context.Context, state *domain.GuildState) AdvanceOutput {
	guildID := state.GuildID()
	previous := state.TakeProgressMessage()

	for {
		track, ok := state.Queue().Pop()
		if !ok {
			state.MarkIdle(c.now())
			c.publisher.PublishPlaybackIdle(domain.PlaybackIdleEvent{
				GuildID:         guildID,
				ProgressMessage: previous,
			})
			slog.Debug("queue exhausted, went idle", "guild", guildID)
			return AdvanceOutput{WentIdle: true}
		}

		seq := state.StartTrack(track, c.now())

		err := c.withSinkTimeout(ctx, func(ctx context.Context) error {
			return c.sink.Play(ctx, guildID, track, func() {
				c.publisher.PublishTrackEnded(domain.TrackEndedEvent{
					GuildID:  guildID,
					Sequence: seq,
				})
			})
		})
		if err != nil {
			slog.Error("failed to start track, skipping it",
				"guild", guildID,
				"track", track.Title,
				"error", err,
			)
			continue
		}

		c.publisher.PublishPlaybackStarted(domain.PlaybackStartedEvent{
			GuildID:               guildID,
			Sequence:              seq,
			Track:                 track,
			NotificationChannelID: state.NotificationChannelID(),
			PreviousMessage:       previous,
		})

		slog.Info("started track",
			"guild", guildID,
			"track", track.Title,
			"sequence", seq,
		)
		return AdvanceOutput{Started: &track}
	}
}

// HandlePlaybackFinished advances the queue after the play identified by seq
// ended. Completions of plays that are no longer current are ignored, so each
// played track advances the queue exactly once. It never fails: faults are
// logged and the guild is left idle.
func (c *PlaybackController) HandlePlaybackFinished(
	ctx context.Context,
	guildID snowflake.ID,
	seq uint64,
) {
	state := c.store.Get(guildID)
	if state == nil {
		slog.Warn("track ended for unknown guild", "guild", guildID)
		return
	}

	state.Lock()
	defer state.Unlock()

	if seq != state.Sequence() || state.CurrentTrack() == nil {
		slog.Debug("ignored stale track completion",
			"guild", guildID,
			"sequence", seq,
			"current_sequence", state.Sequence(),
		)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("recovered from panic while advancing queue",
				"guild", guildID,
				"panic", r,
			)
			state.MarkIdle(c.now())
		}
	}()

	c.advanceLocked(ctx, state)
}

// Skip stops the current track after dropping queued tracks ahead of the target.
// The sink's completion callback performs the actual advance.
func (c *PlaybackController) Skip(ctx context.Context, input SkipInput) (*SkipOutput, error) {
	if input.Count < 0 || input.Position < 0 {
		return nil, ErrInvalidCount
	}
	count := max(input.Count, 1)

	state := c.store.Get(input.GuildID)
	if state == nil {
		return nil, ErrNothingPlaying
	}

	state.Lock()
	defer state.Unlock()

	if state.Status() != domain.StatusPlaying {
		return nil, ErrNothingPlaying
	}

	queue := state.Queue()
	drop := count - 1
	if input.Position > 0 {
		if input.Position > queue.Len() {
			return nil, ErrPositionOutOfRange
		}
		drop = input.Position - 1
	}

	skipped := *state.CurrentTrack()

	err := c.withSinkTimeout(ctx, func(ctx context.Context) error {
		return c.sink.Stop(ctx, input.GuildID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to stop current track: %w", err)
	}

	// The completion callback cannot advance before the lock is released,
	// so the queue is trimmed before the next track is chosen.
	removed := queue.DropFront(drop)

	output := &SkipOutput{
		Skipped: skipped,
		Removed: removed,
	}
	if next, ok := queue.Peek(); ok {
		output.Next = &next
	}

	slog.Debug("skipped track",
		"guild", input.GuildID,
		"track", skipped.Title,
		"removed", removed,
	)

	return output, nil
}

// Pause pauses the current playback.
func (c *PlaybackController) Pause(ctx context.Context, guildID snowflake.ID) error {
	state := c.store.Get(guildID)
	if state == nil {
		return ErrNothingPlaying
	}

	state.Lock()
	defer state.Unlock()

	if state.Status() != domain.StatusPlaying {
		return ErrNothingPlaying
	}

	err := c.withSinkTimeout(ctx, func(ctx context.Context) error {
		return c.sink.Pause(ctx, guildID)
	})
	if err != nil {
		return fmt.Errorf("failed to pause playback: %w", err)
	}

	state.Pause(c.now())
	return nil
}

// Resume resumes the paused playback.
func (c *PlaybackController) Resume(ctx context.Context, guildID snowflake.ID) error {
	state := c.store.Get(guildID)
	if state == nil {
		return ErrNotPaused
	}

	state.Lock()
	defer state.Unlock()

	if state.Status() != domain.StatusPaused {
		return ErrNotPaused
	}

	err := c.withSinkTimeout(ctx, func(ctx context.Context) error {
		return c.sink.Resume(ctx, guildID)
	})
	if err != nil {
		return fmt.Errorf("failed to resume playback: %w", err)
	}

	state.Resume(c.now())
	return nil
}

// Stop halts the current track. Like Skip, the completion callback drives the
// transition to the next track or to idle.
func (c *PlaybackController) Stop(ctx context.Context, guildID snowflake.ID) (*domain.Track, error) {
	state := c.store.Get(guildID)
	if state == nil {
		return nil, ErrNothingPlaying
	}

	state.Lock()
	defer state.Unlock()

	if !state.Status().IsActive() {
		return nil, ErrNothingPlaying
	}

	stopped := *state.CurrentTrack()

	err := c.withSinkTimeout(ctx, func(ctx context.Context) error {
		return c.sink.Stop(ctx, guildID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to stop playback: %w", err)
	}

	return &stopped, nil
}

// StopAndClear empties the queue and stops the current track in one locked
// operation. It fails with ErrNothingPlaying only when there is nothing to
// stop and nothing to clear. If the sink refuses to stop, the queue is kept.
func (c *PlaybackController) StopAndClear(ctx context.Context, guildID snowflake.ID) (*StopOutput, error) {
	state := c.store.Get(guildID)
	if state == nil {
		return nil, ErrNothingPlaying
	}

	state.Lock()
	defer state.Unlock()

	queue := state.Queue()
	active := state.Status().IsActive()
	if !active && queue.IsEmpty() {
		return nil, ErrNothingPlaying
	}

	output := &StopOutput{}
	if active {
		stopped := *state.CurrentTrack()
		err := c.withSinkTimeout(ctx, func(ctx context.Context) error {
			return c.sink.Stop(ctx, guildID)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to stop playback: %w", err)
		}
		output.Stopped = &stopped
	}

	// The completion callback cannot advance before the lock is released
	output.Cleared = queue.Len()
	queue.Clear()
	if !active {
		if _, ok := state.IdleSince(); !ok {
			state.MarkIdle(c.now())
		}
	}

	slog.Debug("stopped playback and cleared queue",
		"guild", guildID,
		"stopped", output.Stopped != nil,
		"cleared", output.Cleared,
	)

	return output, nil
}

// ClearQueue empties the queue without touching the current track.
// Returns the number of tracks removed.
func (c *PlaybackController) ClearQueue(guildID snowflake.ID) int {
	state := c.store.Get(guildID)
	if state == nil {
		return 0
	}

	state.Lock()
	defer state.Unlock()

	removed := state.Queue().Len()
	state.Queue().Clear()
	if state.Status() == domain.StatusIdle {
		if _, ok := state.IdleSince(); !ok {
			state.MarkIdle(c.now())
		}
	}
	return removed
}

// Touch restarts the guild's idle timer if it is running, so that a request
// still resolving its tracks is not cut off by the idle reaper.
func (c *PlaybackController) Touch(guildID snowflake.ID) {
	state := c.store.Get(guildID)
	if state == nil {
		return
	}

	state.Lock()
	defer state.Unlock()

	state.RefreshIdle(c.now())
}

// Snapshot returns a copy of the guild's state.
func (c *PlaybackController) Snapshot(guildID snowflake.ID) domain.GuildSnapshot {
	return c.store.GetOrCreate(guildID).Snapshot()
}

// Progress returns the playback position of the guild's current track.
func (c *PlaybackController) Progress(guildID snowflake.ID) domain.Progress {
	return domain.ComputeProgress(c.Snapshot(guildID), c.now())
}

// AttachProgressMessage records the "Now Playing" message for the play identified by seq.
// Returns false if that play already ended, in which case the caller owns the message.
func (c *PlaybackController) AttachProgressMessage(
	guildID snowflake.ID,
	seq uint64,
	msg domain.ProgressMessage,
) bool {
	state := c.store.GetOrCreate(guildID)
	state.Lock()
	defer state.Unlock()

	return state.AttachProgressMessage(seq, msg)
}

// DetachProgressMessage stops progress updates for the play identified by seq.
func (c *PlaybackController) DetachProgressMessage(guildID snowflake.ID, seq uint64) {
	state := c.store.GetOrCreate(guildID)
	state.Lock()
	defer state.Unlock()

	state.DetachProgressMessage(seq)
}

// Now returns the controller's current time.
func (c *PlaybackController) Now() time.Time {
	return c.now()
}

func (c *PlaybackController) withSinkTimeout(
	ctx context.Context,
	fn func(ctx context.Context) error,
) error {
	ctx, cancel := context.WithTimeout(ctx, c.sinkTimeout)
	defer cancel()
	return fn(ctx)
}
