package usecases

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sglre6355/melodybot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodybot/internal/modules/music_player/domain"
)

// Defaults for the idle reaper.
const (
	DefaultIdleTimeout       = 180 * time.Second
	DefaultIdleSweepInterval = 30 * time.Second

	leaveTimeout = 10 * time.Second
)

// IdleReaper disconnects guilds that stayed idle beyond a threshold.
type IdleReaper struct {
	store     domain.GuildStateStore
	voice     ports.VoiceConnection
	sink      ports.AudioSink
	threshold time.Duration
	interval  time.Duration
	now       func() time.Time
}

// NewIdleReaper creates a new IdleReaper.
// Non-positive durations fall back to the defaults.
func NewIdleReaper(
	store domain.GuildStateStore,
	voice ports.VoiceConnection,
	sink ports.AudioSink,
	threshold, interval time.Duration,
	now func() time.Time,
) *IdleReaper {
	if threshold <= 0 {
		threshold = DefaultIdleTimeout
	}
	if interval <= 0 {
		interval = DefaultIdleSweepInterval
	}
	if now == nil {
		now = time.Now
	}
	return &IdleReaper{
		store:     store,
		voice:     voice,
		sink:      sink,
		threshold: threshold,
		interval:  interval,
		now:       now,
	}
}

// Run sweeps on every interval until ctx is cancelled.
func (r *IdleReaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	slog.Debug("idle reaper started", "threshold", r.threshold, "interval", r.interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep disconnects every guild whose idle timer expired and returns how many
// were disconnected.
func (r *IdleReaper) Sweep(ctx context.Context) int {
	disconnected := 0
	for _, guildID := range r.store.GuildIDs() {
		state := r.store.Get(guildID)
		if state == nil {
			continue
		}
		if r.reap(ctx, state) {
			disconnected++
		}
	}
	return disconnected
}

// reap holds the guild lock from the final check through the disconnect,
// so an enqueue either lands before the check or after the disconnect.
func (r *IdleReaper) reap(ctx context.Context, state *domain.GuildState) bool {
	state.Lock()
	defer state.Unlock()

	guildID := state.GuildID()

	since, ok := state.IdleSince()
	if !ok || r.now().Sub(since) < r.threshold {
		return false
	}

	if !state.Queue().IsEmpty() || state.Status() != domain.StatusIdle {
		slog.Warn("cleared stale idle timer", "guild", guildID, "status", state.Status().String())
		state.ClearIdle()
		return false
	}
	if r.sink.Status(guildID).IsActive() {
		slog.Warn("audio sink still active for idle guild, skipping disconnect", "guild", guildID)
		return false
	}

	state.ClearIdle()
	state.SetVoiceChannelID(0)

	leaveCtx, cancel := context.WithTimeout(ctx, leaveTimeout)
	defer cancel()

	err := r.voice.LeaveChannel(leaveCtx, guildID)
	switch {
	case err == nil:
		slog.Info("disconnected idle guild", "guild", guildID, "idle_since", since)
	case errors.Is(err, ports.ErrNoVoiceSession):
		slog.Debug("idle guild was already disconnected", "guild", guildID)
	default:
		slog.Warn("failed to disconnect idle guild", "guild", guildID, "error", err)
	}

	return true
}
