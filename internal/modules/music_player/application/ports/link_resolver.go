package ports

import (
	"context"

	"github.com/sglre6355/melodybot/internal/modules/music_player/domain"
)

// LinkResolver converts a search term or URL into playable tracks.
type LinkResolver interface {
	// Resolve returns between 1 and maxTracks tracks, each with a valid
	// SourceLocator. A playlist URL may yield several tracks.
	// An empty result is not an error.
	Resolve(ctx context.Context, query domain.SearchQuery, maxTracks int) ([]domain.Track, error)
}
