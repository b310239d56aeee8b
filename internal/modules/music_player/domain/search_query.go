package domain

import (
	"strconv"
	"strings"
)

// SearchSource represents the source for searching tracks.
type SearchSource string

const (
	// SourceYouTube searches YouTube.
	SourceYouTube SearchSource = "ytsearch"
	// SourceSoundCloud searches SoundCloud.
	SourceSoundCloud SearchSource = "scsearch"
	// SourceDirect indicates a direct URL (no search prefix).
	SourceDirect SearchSource = ""
)

// ParseSearchSource converts a user-facing source name to a SearchSource.
// Unknown names fall back to YouTube.
func ParseSearchSource(name string) SearchSource {
	switch strings.ToLower(name) {
	case "soundcloud", string(SourceSoundCloud):
		return SourceSoundCloud
	default:
		return SourceYouTube
	}
}

// SearchQuery represents a query for resolving tracks.
type SearchQuery struct {
	Query  string       // The search term or URL
	Source SearchSource // The search source
	IsURL  bool         // Whether the query is a direct URL
}

// NewSearchQuery creates a SearchQuery from user input, searching YouTube
// unless the input is a URL.
func NewSearchQuery(input string) SearchQuery {
	return NewSearchQueryWithSource(input, SourceYouTube)
}

// NewSearchQueryWithSource creates a SearchQuery with a specific search source.
// URLs always bypass search.
func NewSearchQueryWithSource(input string, source SearchSource) SearchQuery {
	input = strings.TrimSpace(input)

	if isURL(input) {
		if strings.HasPrefix(input, "www.") {
			input = "https://" + input
		}
		return SearchQuery{
			Query:  input,
			Source: SourceDirect,
			IsURL:  true,
		}
	}

	return SearchQuery{
		Query:  input,
		Source: source,
		IsURL:  false,
	}
}

// LavalinkQuery returns the identifier formatted for Lavalink's loadtracks endpoint.
func (q SearchQuery) LavalinkQuery() string {
	if q.IsURL {
		return q.Query
	}
	return string(q.Source) + ":" + q.Query
}

// YtdlpTarget returns the yt-dlp target. Search terms use yt-dlp's
// "<prefix><n>:<term>" syntax to fetch up to n results.
func (q SearchQuery) YtdlpTarget(n int) string {
	if q.IsURL {
		return q.Query
	}
	if n < 1 {
		n = 1
	}
	return string(q.Source) + strconv.Itoa(n) + ":" + q.Query
}

// IsValid returns true if the query is not empty.
func (q SearchQuery) IsValid() bool {
	return q.Query != ""
}

// isURL checks if the input looks like a URL.
func isURL(input string) bool {
	return strings.HasPrefix(input, "http://") ||
		strings.HasPrefix(input, "https://") ||
		strings.HasPrefix(input, "www.")
}
