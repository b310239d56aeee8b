package usecases

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"golang.org/x/time/rate"

	"github.com/sglre6355/melodybot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodybot/internal/modules/music_player/domain"
)

// Defaults for live progress updates.
const (
	DefaultProgressInterval = 10 * time.Second
	DefaultProgressRate     = 4 // message edits per second across all guilds

	upcomingPreview = 5
	presenceTimeout = 5 * time.Second
)

// requesterInfo caches the display info of the current track's requester.
type requesterInfo struct {
	sequence uint64
	info     ports.UserInfo
}

// NowPlayingService owns the live "Now Playing" message of every guild:
// it posts one when a track starts, keeps it updated, and removes it when
// playback ends. All failures are logged and swallowed.
type NowPlayingService struct {
	controller *PlaybackController
	presence   ports.PresenceTransport
	history    ports.HistoryStore
	userInfo   ports.UserInfoProvider
	limiter    *rate.Limiter
	interval   time.Duration

	mu         sync.Mutex
	requesters map[snowflake.ID]requesterInfo
}

// NewNowPlayingService creates a new NowPlayingService.
// history and userInfo may be nil.
func NewNowPlayingService(
	controller *PlaybackController,
	presence ports.PresenceTransport,
	history ports.HistoryStore,
	userInfo ports.UserInfoProvider,
	limiter *rate.Limiter,
	interval time.Duration,
) *NowPlayingService {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Limit(DefaultProgressRate), DefaultProgressRate)
	}
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	return &NowPlayingService{
		controller: controller,
		presence:   presence,
		history:    history,
		userInfo:   userInfo,
		limiter:    limiter,
		interval:   interval,
		requesters: make(map[snowflake.ID]requesterInfo),
	}
}

// Announce records the play in history, replaces the previous "Now Playing"
// message with a new one and attaches it to the guild.
func (s *NowPlayingService) Announce(ctx context.Context, event domain.PlaybackStartedEvent) {
	s.logPlayed(ctx, event)

	if event.PreviousMessage != nil {
		s.deleteMessage(ctx, event.GuildID, *event.PreviousMessage)
	}

	if event.NotificationChannelID == 0 {
		return
	}

	snapshot := s.controller.Snapshot(event.GuildID)
	if snapshot.Sequence != event.Sequence {
		slog.Debug("skipped now playing message for finished track",
			"guild", event.GuildID,
			"track", event.Track.Title,
		)
		return
	}

	info := s.buildInfo(snapshot, event.Sequence)

	sendCtx, cancel := context.WithTimeout(ctx, presenceTimeout)
	defer cancel()

	msg, err := s.presence.SendNowPlaying(sendCtx, event.NotificationChannelID, info)
	if err != nil {
		slog.Warn("failed to send now playing message",
			"guild", event.GuildID,
			"track", event.Track.Title,
			"error", err,
		)
		return
	}

	if !s.controller.AttachProgressMessage(event.GuildID, event.Sequence, msg) {
		// The track ended while the message was being sent
		s.deleteMessage(ctx, event.GuildID, msg)
	}
}

// Retire deletes the "Now Playing" message of a guild that went idle.
func (s *NowPlayingService) Retire(ctx context.Context, event domain.PlaybackIdleEvent) {
	s.mu.Lock()
	delete(s.requesters, event.GuildID)
	s.mu.Unlock()

	if event.ProgressMessage != nil {
		s.deleteMessage(ctx, event.GuildID, *event.ProgressMessage)
	}
}

// Refresh re-renders the "Now Playing" message of one guild.
// If the message is gone, updates stop until the next track starts.
func (s *NowPlayingService) Refresh(ctx context.Context, guildID snowflake.ID) {
	snapshot := s.controller.Snapshot(guildID)
	if !snapshot.Status.IsActive() || snapshot.ProgressMessage == nil {
		return
	}

	info := s.buildInfo(snapshot, snapshot.Sequence)

	updateCtx, cancel := context.WithTimeout(ctx, presenceTimeout)
	defer cancel()

	err := s.presence.SendProgressUpdate(updateCtx, *snapshot.ProgressMessage, info)
	switch {
	case err == nil:
	case errors.Is(err, ports.ErrMessageGone):
		slog.Debug("now playing message is gone, detaching", "guild", guildID)
		s.controller.DetachProgressMessage(guildID, snapshot.Sequence)
	default:
		slog.Warn("failed to update now playing message", "guild", guildID, "error", err)
	}
}

// RefreshAll refreshes every active guild, throttled by the shared limiter.
func (s *NowPlayingService) RefreshAll(ctx context.Context, guildIDs []snowflake.ID) {
	for _, guildID := range guildIDs {
		snapshot := s.controller.Snapshot(guildID)
		if !snapshot.Status.IsActive() || snapshot.ProgressMessage == nil {
			continue
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		s.Refresh(ctx, guildID)
	}
}

// Run refreshes all guilds known to the store on every interval until ctx is cancelled.
func (s *NowPlayingService) Run(ctx context.Context, store domain.GuildStateStore) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RefreshAll(ctx, store.GuildIDs())
		}
	}
}

// NowPlayingInfo renders the current state of a guild, or false if nothing is playing.
func (s *NowPlayingService) NowPlayingInfo(guildID snowflake.ID) (ports.NowPlayingInfo, bool) {
	snapshot := s.controller.Snapshot(guildID)
	if snapshot.CurrentTrack == nil {
		return ports.NowPlayingInfo{}, false
	}
	return s.buildInfo(snapshot, snapshot.Sequence), true
}

func (s *NowPlayingService) buildInfo(snapshot domain.GuildSnapshot, seq uint64) ports.NowPlayingInfo {
	info := ports.NowPlayingInfo{
		GuildID:     snapshot.GuildID,
		Progress:    domain.ComputeProgress(snapshot, s.controller.Now()),
		QueueLength: len(snapshot.Queue),
		Upcoming:    snapshot.Queue[:min(len(snapshot.Queue), upcomingPreview)],
	}
	if snapshot.CurrentTrack == nil {
		return info
	}

	info.Track = *snapshot.CurrentTrack
	requester := s.requester(snapshot.GuildID, seq, snapshot.CurrentTrack.RequesterID)
	info.RequesterName = requester.DisplayName
	info.RequesterAvatarURL = requester.AvatarURL
	return info
}

func (s *NowPlayingService) requester(guildID snowflake.ID, seq uint64, userID snowflake.ID) ports.UserInfo {
	if s.userInfo == nil || userID == 0 {
		return ports.UserInfo{}
	}

	s.mu.Lock()
	cached, ok := s.requesters[guildID]
	s.mu.Unlock()
	if ok && cached.sequence == seq {
		return cached.info
	}

	info, err := s.userInfo.GetUserInfo(guildID, userID)
	if err != nil {
		slog.Debug("failed to fetch requester info", "guild", guildID, "user", userID, "error", err)
		return ports.UserInfo{}
	}

	s.mu.Lock()
	s.requesters[guildID] = requesterInfo{sequence: seq, info: info}
	s.mu.Unlock()
	return info
}

func (s *NowPlayingService) logPlayed(ctx context.Context, event domain.PlaybackStartedEvent) {
	if s.history == nil {
		return
	}

	logCtx, cancel := context.WithTimeout(ctx, presenceTimeout)
	defer cancel()

	url := event.Track.OriginURL
	if url == "" {
		url = event.Track.SourceLocator
	}
	if err := s.history.LogPlayed(logCtx, event.GuildID, url, event.Track.Title); err != nil {
		slog.Warn("failed to log played track", "guild", event.GuildID, "error", err)
	}
}

func (s *NowPlayingService) deleteMessage(ctx context.Context, guildID snowflake.ID, msg domain.ProgressMessage) {
	deleteCtx, cancel := context.WithTimeout(ctx, presenceTimeout)
	defer cancel()

	err := s.presence.DeleteMessage(deleteCtx, msg)
	if err != nil && !errors.Is(err, ports.ErrMessageGone) {
		slog.Warn("failed to delete now playing message",
			"guild", guildID,
			"message", msg.MessageID,
			"error", err,
		)
	}
}
