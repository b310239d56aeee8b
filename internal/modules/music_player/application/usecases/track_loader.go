package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodybot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodybot/internal/modules/music_player/domain"
)

// Defaults for track resolution.
const (
	DefaultResolveTimeout = 30 * time.Second
	DefaultMaxTracks      = 25
)

// LoadTracksInput contains the input for the LoadTracks use case.
type LoadTracksInput struct {
	Query       string
	Source      domain.SearchSource // Optional: defaults to YouTube search
	Count       int                 // Max tracks to return; clamped to [1, max tracks]
	RequesterID snowflake.ID
}

// LoadTracksOutput contains the result of the LoadTracks use case.
type LoadTracksOutput struct {
	Tracks []domain.Track
}

// TrackLoaderService resolves queries into playable tracks.
// Resolution never touches guild state, so it runs without any guild lock.
type TrackLoaderService struct {
	resolver  ports.LinkResolver
	timeout   time.Duration
	maxTracks int
	now       func() time.Time
}

// NewTrackLoaderService creates a new TrackLoaderService.
// Non-positive timeout and maxTracks fall back to the defaults.
func NewTrackLoaderService(
	resolver ports.LinkResolver,
	timeout time.Duration,
	maxTracks int,
) *TrackLoaderService {
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}
	if maxTracks <= 0 {
		maxTracks = DefaultMaxTracks
	}
	return &TrackLoaderService{
		resolver:  resolver,
		timeout:   timeout,
		maxTracks: maxTracks,
		now:       time.Now,
	}
}

// LoadTracks resolves the query within the resolve timeout.
func (s *TrackLoaderService) LoadTracks(
	ctx context.Context,
	input LoadTracksInput,
) (*LoadTracksOutput, error) {
	source := input.Source
	if source == "" {
		source = domain.SourceYouTube
	}
	query := domain.NewSearchQueryWithSource(input.Query, source)
	if !query.IsValid() {
		return nil, ErrNoTracksResolved
	}

	count := min(max(input.Count, 1), s.maxTracks)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resolved, err := s.resolver.Resolve(ctx, query, count)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			slog.Warn("timed out while resolving tracks", "query", query.Query, "timeout", s.timeout)
			return nil, ErrResolutionTimeout
		}
		return nil, fmt.Errorf("%w: %w", ErrResolutionFailed, err)
	}

	now := s.now()
	tracks := make([]domain.Track, 0, min(len(resolved), count))
	for _, track := range resolved {
		if !track.IsValid() {
			slog.Debug("dropped unplayable track", "query", query.Query, "title", track.Title)
			continue
		}
		tracks = append(tracks, track.WithRequester(input.RequesterID, now))
		if len(tracks) == count {
			break
		}
	}

	if len(tracks) == 0 {
		return nil, ErrNoTracksResolved
	}

	return &LoadTracksOutput{Tracks: tracks}, nil
}
