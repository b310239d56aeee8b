package domain

import (
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// GuildState is the per-guild playback record: queue, timers and message handles.
//
// Every method except GuildID and Snapshot must be called with the state's
// lock held (Lock/Unlock). The lock is the guild's serialization domain; states
// of different guilds never share a lock.
type GuildState struct {
	mu sync.Mutex

	guildID               snowflake.ID
	voiceChannelID        snowflake.ID
	notificationChannelID snowflake.ID

	queue   Queue
	status  PlaybackStatus
	current *Track

	playbackStartedAt time.Time
	pausedAt          time.Time
	accumulatedPause  time.Duration
	idleSince         time.Time

	progressMessage  *ProgressMessage
	progressDetached bool

	// sequence identifies the current play; completion callbacks carrying an
	// older sequence are stale.
	sequence uint64
}

// NewGuildState creates a zeroed GuildState for the given guild.
func NewGuildState(guildID snowflake.ID) *GuildState {
	return &GuildState{
		guildID: guildID,
		queue:   NewQueue(),
		status:  StatusIdle,
	}
}

// Lock acquires the guild's serialization domain.
func (g *GuildState) Lock() { g.mu.Lock() }

// Unlock releases the guild's serialization domain.
func (g *GuildState) Unlock() { g.mu.Unlock() }

// GuildID returns the guild ID.
func (g *GuildState) GuildID() snowflake.ID {
	// No lock: guildID must not be modified after initialization
	return g.guildID
}

// Queue returns the guild's queue for mutation under the lock.
func (g *GuildState) Queue() *Queue {
	return &g.queue
}

// Status returns the playback status.
func (g *GuildState) Status() PlaybackStatus {
	return g.status
}

// CurrentTrack returns the track occupying the audio sink, or nil when idle.
func (g *GuildState) CurrentTrack() *Track {
	return g.current
}

// Sequence returns the identifier of the current play.
func (g *GuildState) Sequence() uint64 {
	return g.sequence
}

// IdleSince returns when the guild went idle and whether the idle timer is set.
func (g *GuildState) IdleSince() (time.Time, bool) {
	return g.idleSince, !g.idleSince.IsZero()
}

// VoiceChannelID returns the voice channel the bot is connected to, or 0.
func (g *GuildState) VoiceChannelID() snowflake.ID {
	return g.voiceChannelID
}

// SetVoiceChannelID updates the voice channel ID.
func (g *GuildState) SetVoiceChannelID(channelID snowflake.ID) {
	g.voiceChannelID = channelID
}

// NotificationChannelID returns the text channel for notifications.
func (g *GuildState) NotificationChannelID() snowflake.ID {
	return g.notificationChannelID
}

// SetNotificationChannelID updates the notification channel ID.
func (g *GuildState) SetNotificationChannelID(channelID snowflake.ID) {
	g.notificationChannelID = channelID
}

// StartTrack makes track the current track and resets the playback timers.
// Returns the sequence number identifying this play.
func (g *GuildState) StartTrack(track Track, now time.Time) uint64 {
	g.current = &track
	g.status = StatusPlaying
	g.playbackStartedAt = now
	g.pausedAt = time.Time{}
	g.accumulatedPause = 0
	g.idleSince = time.Time{}
	g.progressDetached = false
	g.sequence++
	return g.sequence
}

// MarkIdle clears the current track. The idle timer starts only if the queue
// is also empty. Returns the detached progress message, if any.
func (g *GuildState) MarkIdle(now time.Time) *ProgressMessage {
	g.current = nil
	g.status = StatusIdle
	g.playbackStartedAt = time.Time{}
	g.pausedAt = time.Time{}
	g.accumulatedPause = 0
	if g.queue.IsEmpty() {
		g.idleSince = now
	}
	return g.takeProgressMessage()
}

// RefreshIdle restarts a running idle timer at now. A stopped timer stays stopped.
func (g *GuildState) RefreshIdle(now time.Time) {
	if !g.idleSince.IsZero() {
		g.idleSince = now
	}
}

// ClearIdle cancels the idle timer.
func (g *GuildState) ClearIdle() {
	g.idleSince = time.Time{}
}

// Pause records the start of a pause. It is a no-op unless playing.
func (g *GuildState) Pause(now time.Time) bool {
	if g.status != StatusPlaying {
		return false
	}
	g.status = StatusPaused
	g.pausedAt = now
	return true
}

// Resume folds the pause window into the accumulated pause duration.
// It is a no-op unless paused.
func (g *GuildState) Resume(now time.Time) bool {
	if g.status != StatusPaused {
		return false
	}
	if d := now.Sub(g.pausedAt); d > 0 {
		g.accumulatedPause += d
	}
	g.pausedAt = time.Time{}
	g.status = StatusPlaying
	return true
}

// Reset returns the guild to a disconnected idle state: queue cleared, no
// current track, timers cleared. The sequence is bumped so that completion
// callbacks of the abandoned play are ignored.
// Returns the detached progress message, if any.
func (g *GuildState) Reset() *ProgressMessage {
	g.queue.Clear()
	g.current = nil
	g.status = StatusIdle
	g.playbackStartedAt = time.Time{}
	g.pausedAt = time.Time{}
	g.accumulatedPause = 0
	g.idleSince = time.Time{}
	g.voiceChannelID = 0
	g.sequence++
	return g.takeProgressMessage()
}

// ProgressMessage returns the live progress message, or nil if none is attached
// or updates were detached.
func (g *GuildState) ProgressMessage() *ProgressMessage {
	if g.progressMessage == nil || g.progressDetached {
		return nil
	}
	msg := *g.progressMessage
	return &msg
}

// AttachProgressMessage records the live message for the play identified by seq.
// Returns false, leaving the state untouched, if that play is no longer current.
func (g *GuildState) AttachProgressMessage(seq uint64, msg ProgressMessage) bool {
	if seq != g.sequence || g.current == nil {
		return false
	}
	g.progressMessage = &msg
	g.progressDetached = false
	return true
}

// DetachProgressMessage stops progress updates until the next track starts.
// The message handle is kept so that it can still be deleted later.
func (g *GuildState) DetachProgressMessage(seq uint64) {
	if seq == g.sequence {
		g.progressDetached = true
	}
}

// TakeProgressMessage removes and returns the stored progress message.
func (g *GuildState) TakeProgressMessage() *ProgressMessage {
	return g.takeProgressMessage()
}

func (g *GuildState) takeProgressMessage() *ProgressMessage {
	msg := g.progressMessage
	g.progressMessage = nil
	g.progressDetached = false
	return msg
}

// GuildSnapshot is a point-in-time copy of a GuildState.
type GuildSnapshot struct {
	GuildID               snowflake.ID
	VoiceChannelID        snowflake.ID
	NotificationChannelID snowflake.ID
	Status                PlaybackStatus
	CurrentTrack          *Track
	Queue                 []Track
	PlaybackStartedAt     time.Time
	PausedAt              time.Time
	AccumulatedPause      time.Duration
	IdleSince             time.Time
	ProgressMessage       *ProgressMessage
	Sequence              uint64
}

// Snapshot acquires the lock and returns a copy of the state.
func (g *GuildState) Snapshot() GuildSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.SnapshotLocked()
}

// SnapshotLocked returns a copy of the state. The caller must hold the lock.
func (g *GuildState) SnapshotLocked() GuildSnapshot {
	var current *Track
	if g.current != nil {
		t := *g.current
		current = &t
	}

	return GuildSnapshot{
		GuildID:               g.guildID,
		VoiceChannelID:        g.voiceChannelID,
		NotificationChannelID: g.notificationChannelID,
		Status:                g.status,
		CurrentTrack:          current,
		Queue:                 g.queue.List(),
		PlaybackStartedAt:     g.playbackStartedAt,
		PausedAt:              g.pausedAt,
		AccumulatedPause:      g.accumulatedPause,
		IdleSince:             g.idleSince,
		ProgressMessage:       g.ProgressMessage(),
		Sequence:              g.sequence,
	}
}
