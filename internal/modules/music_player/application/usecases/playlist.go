package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodybot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodybot/internal/modules/music_player/domain"
)

// PlaylistAddInput contains the input for the PlaylistAdd use case.
type PlaylistAddInput struct {
	UserID snowflake.ID
	Query  string // URL or search term; resolved to its first track
}

// PlaylistAddOutput contains the result of the PlaylistAdd use case.
type PlaylistAddOutput struct {
	Title string
	URL   string
	Added bool // false if the url was already saved
}

// PlaylistRemoveInput contains the input for the PlaylistRemove use case.
type PlaylistRemoveInput struct {
	UserID snowflake.ID
	// Identifier is either a 1-based position in the playlist or a
	// case-insensitive substring of an entry's url or title.
	Identifier string
}

// PlayRandomInput contains the input for the PlayRandom use case.
type PlayRandomInput struct {
	GuildID               snowflake.ID
	UserID                snowflake.ID
	NotificationChannelID snowflake.ID
	Count                 int
}

// PlaylistService manages per-user saved tracks.
type PlaylistService struct {
	store      ports.PlaylistStore
	loader     *TrackLoaderService
	voice      *VoiceChannelService
	controller *PlaybackController
}

// NewPlaylistService creates a new PlaylistService.
func NewPlaylistService(
	store ports.PlaylistStore,
	loader *TrackLoaderService,
	voice *VoiceChannelService,
	controller *PlaybackController,
) *PlaylistService {
	return &PlaylistService{
		store:      store,
		loader:     loader,
		voice:      voice,
		controller: controller,
	}
}

// Add resolves the query and saves its first track to the user's playlist.
func (s *PlaylistService) Add(ctx context.Context, input PlaylistAddInput) (*PlaylistAddOutput, error) {
	loaded, err := s.loader.LoadTracks(ctx, LoadTracksInput{
		Query:       input.Query,
		Count:       1,
		RequesterID: input.UserID,
	})
	if err != nil {
		return nil, err
	}

	track := loaded.Tracks[0]
	url := track.OriginURL
	if url == "" {
		url = strings.TrimSpace(input.Query)
	}

	added, err := s.store.Add(ctx, input.UserID, url, track.Title)
	if err != nil {
		return nil, fmt.Errorf("failed to save playlist entry: %w", err)
	}

	return &PlaylistAddOutput{
		Title: track.Title,
		URL:   url,
		Added: added,
	}, nil
}

// List returns the user's saved tracks, oldest first.
func (s *PlaylistService) List(ctx context.Context, userID snowflake.ID) ([]ports.PlaylistEntry, error) {
	entries, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list playlist: %w", err)
	}
	return entries, nil
}

// Remove deletes the entry matching the identifier.
func (s *PlaylistService) Remove(ctx context.Context, input PlaylistRemoveInput) (*ports.PlaylistEntry, error) {
	entries, err := s.List(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrPlaylistEmpty
	}

	entry, ok := matchPlaylistEntry(entries, input.Identifier)
	if !ok {
		return nil, ErrSongNotFound
	}

	if err := s.store.Remove(ctx, input.UserID, entry.ID); err != nil {
		return nil, fmt.Errorf("failed to remove playlist entry: %w", err)
	}
	return &entry, nil
}

// PlayRandom enqueues up to Count random tracks from the user's playlist as one batch.
// Entries that fail to resolve are skipped.
func (s *PlaylistService) PlayRandom(ctx context.Context, input PlayRandomInput) (*PlayOutput, error) {
	if input.Count < 1 {
		return nil, ErrInvalidCount
	}

	entries, err := s.store.Random(ctx, input.UserID, input.Count)
	if err != nil {
		return nil, fmt.Errorf("failed to pick playlist entries: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrPlaylistEmpty
	}

	_, err = s.voice.Join(ctx, JoinInput{
		GuildID:               input.GuildID,
		UserID:                input.UserID,
		NotificationChannelID: input.NotificationChannelID,
	})
	if err != nil {
		return nil, err
	}
	s.controller.Touch(input.GuildID)

	tracks := make([]domain.Track, 0, len(entries))
	for _, entry := range entries {
		loaded, err := s.loader.LoadTracks(ctx, LoadTracksInput{
			Query:       entry.URL,
			Count:       1,
			RequesterID: input.UserID,
		})
		if err != nil {
			slog.Warn("failed to resolve playlist entry", "url", entry.URL, "error", err)
			continue
		}
		tracks = append(tracks, loaded.Tracks...)
	}

	enqueued, err := s.controller.Enqueue(ctx, EnqueueInput{
		GuildID:               input.GuildID,
		Tracks:                tracks,
		NotificationChannelID: input.NotificationChannelID,
		RequireVoice:          true,
	})
	if err != nil {
		return nil, err
	}

	return &PlayOutput{
		Tracks:        tracks,
		EnqueueOutput: enqueued,
	}, nil
}

func matchPlaylistEntry(entries []ports.PlaylistEntry, identifier string) (ports.PlaylistEntry, bool) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return ports.PlaylistEntry{}, false
	}

	if position, err := strconv.Atoi(identifier); err == nil {
		if position < 1 || position > len(entries) {
			return ports.PlaylistEntry{}, false
		}
		return entries[position-1], true
	}

	needle := strings.ToLower(identifier)
	for _, entry := range entries {
		if strings.Contains(strings.ToLower(entry.URL), needle) ||
			strings.Contains(strings.ToLower(entry.Title), needle) {
			return entry, true
		}
	}
	return ports.PlaylistEntry{}, false
}
