package application

import (
	"context"
	"log/slog"

	"github.com/sglre6355/melodybot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodybot/internal/modules/music_player/application/usecases"
	"github.com/sglre6355/melodybot/internal/modules/music_player/domain"
)

// PlaybackEventHandler advances guild queues when tracks end.
type PlaybackEventHandler struct {
	controller *usecases.PlaybackController
	subscriber ports.EventSubscriber
}

// NewPlaybackEventHandler creates a new PlaybackEventHandler.
func NewPlaybackEventHandler(
	controller *usecases.PlaybackController,
	subscriber ports.EventSubscriber,
) *PlaybackEventHandler {
	return &PlaybackEventHandler{
		controller: controller,
		subscriber: subscriber,
	}
}

// Start registers event handlers with the subscriber.
func (h *PlaybackEventHandler) Start() {
	h.subscriber.OnTrackEnded(h.handleTrackEnded)

	slog.Debug("playback event handlers properly registered")
}

// handleTrackEnded runs each advance on its own goroutine so that a slow
// audio sink in one guild does not hold up completions of the others.
func (h *PlaybackEventHandler) handleTrackEnded(ctx context.Context, event domain.TrackEndedEvent) {
	slog.Debug("track ended, advancing queue", "guild", event.GuildID, "sequence", event.Sequence)

	go h.controller.HandlePlaybackFinished(ctx, event.GuildID, event.Sequence)
}

// NotificationEventHandler keeps the "Now Playing" message in sync with playback.
type NotificationEventHandler struct {
	nowPlaying *usecases.NowPlayingService
	subscriber ports.EventSubscriber
}

// NewNotificationEventHandler creates a new NotificationEventHandler.
func NewNotificationEventHandler(
	nowPlaying *usecases.NowPlayingService,
	subscriber ports.EventSubscriber,
) *NotificationEventHandler {
	return &NotificationEventHandler{
		nowPlaying: nowPlaying,
		subscriber: subscriber,
	}
}

// Start registers event handlers with the subscriber.
func (h *NotificationEventHandler) Start() {
	h.subscriber.OnPlaybackStarted(h.handlePlaybackStarted)
	h.subscriber.OnPlaybackIdle(h.handlePlaybackIdle)

	slog.Debug("notification event handlers properly registered")
}

// handlePlaybackStarted announces on its own goroutine: each announcement
// makes several Discord calls, and one slow guild must not hold up the
// dispatcher shared by all guilds. Stale announcements are discarded by
// their play sequence.
func (h *NotificationEventHandler) handlePlaybackStarted(
	ctx context.Context,
	event domain.PlaybackStartedEvent,
) {
	go h.nowPlaying.Announce(ctx, event)
}

func (h *NotificationEventHandler) handlePlaybackIdle(ctx context.Context, event domain.PlaybackIdleEvent) {
	go h.nowPlaying.Retire(ctx, event)
}
