package ports

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
)

// HistoryStore records played tracks.
// Failures are reported to the caller but must never block playback.
type HistoryStore interface {
	LogPlayed(ctx context.Context, guildID snowflake.ID, originURL, title string) error
}
