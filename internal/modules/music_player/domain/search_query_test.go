package domain

import (
	"testing"
)

func TestNewSearchQuery(t *testing.T) {
	tests := []struct {
		name           string
		input          string
		expectedQuery  string
		expectedSource SearchSource
		expectedIsURL  bool
	}{
		{
			name:           "search term",
			input:          "never gonna give you up",
			expectedQuery:  "never gonna give you up",
			expectedSource: SourceYouTube,
			expectedIsURL:  false,
		},
		{
			name:           "search term with whitespace",
			input:          "  hello world  ",
			expectedQuery:  "hello world",
			expectedSource: SourceYouTube,
			expectedIsURL:  false,
		},
		{
			name:           "https URL",
			input:          "https://youtube.com/watch?v=dQw4w9WgXcQ",
			expectedQuery:  "https://youtube.com/watch?v=dQw4w9WgXcQ",
			expectedSource: SourceDirect,
			expectedIsURL:  true,
		},
		{
			name:           "http URL",
			input:          "http://example.com/audio.mp3",
			expectedQuery:  "http://example.com/audio.mp3",
			expectedSource: SourceDirect,
			expectedIsURL:  true,
		},
		{
			name:           "www URL gains scheme",
			input:          "www.youtube.com/watch?v=abc",
			expectedQuery:  "https://www.youtube.com/watch?v=abc",
			expectedSource: SourceDirect,
			expectedIsURL:  true,
		},
		{
			name:           "empty string",
			input:          "",
			expectedQuery:  "",
			expectedSource: SourceYouTube,
			expectedIsURL:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewSearchQuery(tt.input)

			if q.Query != tt.expectedQuery {
				t.Errorf("Query = %q, expected %q", q.Query, tt.expectedQuery)
			}
			if q.Source != tt.expectedSource {
				t.Errorf("Source = %q, expected %q", q.Source, tt.expectedSource)
			}
			if q.IsURL != tt.expectedIsURL {
				t.Errorf("IsURL = %v, expected %v", q.IsURL, tt.expectedIsURL)
			}
		})
	}
}

func TestNewSearchQueryWithSource_URLIgnoresSource(t *testing.T) {
	q := NewSearchQueryWithSource("https://soundcloud.com/a/b", SourceSoundCloud)

	if !q.IsURL || q.Source != SourceDirect {
		t.Errorf("expected direct URL query, got %+v", q)
	}
}

func TestSearchQuery_LavalinkQuery(t *testing.T) {
	tests := []struct {
		name     string
		query    SearchQuery
		expected string
	}{
		{
			name:     "youtube search",
			query:    NewSearchQuery("lofi beats"),
			expected: "ytsearch:lofi beats",
		},
		{
			name:     "soundcloud search",
			query:    NewSearchQueryWithSource("lofi beats", SourceSoundCloud),
			expected: "scsearch:lofi beats",
		},
		{
			name:     "url",
			query:    NewSearchQuery("https://youtu.be/abc"),
			expected: "https://youtu.be/abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.query.LavalinkQuery(); got != tt.expected {
				t.Errorf("LavalinkQuery() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestSearchQuery_YtdlpTarget(t *testing.T) {
	tests := []struct {
		name     string
		query    SearchQuery
		n        int
		expected string
	}{
		{
			name:     "single result",
			query:    NewSearchQuery("lofi beats"),
			n:        1,
			expected: "ytsearch1:lofi beats",
		},
		{
			name:     "several results",
			query:    NewSearchQuery("lofi beats"),
			n:        5,
			expected: "ytsearch5:lofi beats",
		},
		{
			name:     "non-positive count falls back to one",
			query:    NewSearchQuery("lofi beats"),
			n:        0,
			expected: "ytsearch1:lofi beats",
		},
		{
			name:     "url is passed through",
			query:    NewSearchQuery("https://www.youtube.com/playlist?list=PL1"),
			n:        5,
			expected: "https://www.youtube.com/playlist?list=PL1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.query.YtdlpTarget(tt.n); got != tt.expected {
				t.Errorf("YtdlpTarget(%d) = %q, expected %q", tt.n, got, tt.expected)
			}
		})
	}
}

func TestSearchQuery_IsValid(t *testing.T) {
	if NewSearchQuery("   ").IsValid() {
		t.Error("expected whitespace-only query to be invalid")
	}
	if !NewSearchQuery("song").IsValid() {
		t.Error("expected non-empty query to be valid")
	}
}

func TestParseSearchSource(t *testing.T) {
	tests := []struct {
		name string
		want SearchSource
	}{
		{name: "soundcloud", want: SourceSoundCloud},
		{name: "SoundCloud", want: SourceSoundCloud},
		{name: "scsearch", want: SourceSoundCloud},
		{name: "youtube", want: SourceYouTube},
		{name: "", want: SourceYouTube},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseSearchSource(tt.name); got != tt.want {
				t.Errorf("ParseSearchSource(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}
