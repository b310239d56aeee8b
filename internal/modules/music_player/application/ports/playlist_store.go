package ports

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// PlaylistEntry is a track saved to a user's personal playlist.
type PlaylistEntry struct {
	ID      int64
	URL     string
	Title   string
	AddedAt time.Time
}

// PlaylistStore persists per-user playlists.
type PlaylistStore interface {
	// Add saves a url for the user. Returns false if the url was already saved.
	Add(ctx context.Context, userID snowflake.ID, url, title string) (bool, error)

	// List returns the user's entries, oldest first.
	List(ctx context.Context, userID snowflake.ID) ([]PlaylistEntry, error)

	// Remove deletes an entry by ID.
	Remove(ctx context.Context, userID snowflake.ID, entryID int64) error

	// Random returns up to n entries in random order.
	Random(ctx context.Context, userID snowflake.ID, n int) ([]PlaylistEntry, error)
}
