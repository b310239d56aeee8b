package infrastructure

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sglre6355/melodybot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodybot/internal/modules/music_player/domain"
)

func testNowPlayingInfo(status domain.PlaybackStatus) ports.NowPlayingInfo {
	return ports.NowPlayingInfo{
		Track: domain.Track{
			Title:     "Song",
			Artist:    "Artist",
			Duration:  3 * time.Minute,
			OriginURL: "https://www.youtube.com/watch?v=abc123",
		},
		Progress: domain.Progress{
			Elapsed: time.Minute,
			Total:   3 * time.Minute,
			Ratio:   1.0 / 3,
			Status:  status,
		},
		Upcoming: []domain.Track{
			{Title: "Next 1", Duration: time.Minute},
			{Title: "Next 2", Duration: time.Minute},
			{Title: "Next 3", Duration: time.Minute},
			{Title: "Next 4", Duration: time.Minute},
		},
		QueueLength:   5,
		RequesterName: "alice",
	}
}

func TestBuildNowPlayingEmbed(t *testing.T) {
	t.Run("playing", func(t *testing.T) {
		embed := buildNowPlayingEmbed(testNowPlayingInfo(domain.StatusPlaying), "https://img/thumb.jpg")

		if embed.Author.Name != "Now Playing" {
			t.Errorf("expected 'Now Playing', got %q", embed.Author.Name)
		}
		if embed.Title != "Song" || embed.URL != "https://www.youtube.com/watch?v=abc123" {
			t.Errorf("unexpected title/url %q %q", embed.Title, embed.URL)
		}
		if embed.Color != domain.TrackSourceYouTube.Color() {
			t.Errorf("expected YouTube color, got %x", embed.Color)
		}
		if !strings.HasPrefix(embed.Description, "01:00 ") || !strings.HasSuffix(embed.Description, " 03:00") {
			t.Errorf("unexpected progress line %q", embed.Description)
		}
		if embed.Footer == nil || embed.Footer.Text != "Requested by alice" {
			t.Errorf("unexpected footer %+v", embed.Footer)
		}
		if embed.Thumbnail == nil || embed.Thumbnail.URL != "https://img/thumb.jpg" {
			t.Errorf("unexpected thumbnail %+v", embed.Thumbnail)
		}

		upNext := embed.Fields[len(embed.Fields)-1]
		if upNext.Name != "Up Next" {
			t.Fatalf("expected Up Next field, got %q", upNext.Name)
		}
		if strings.Contains(upNext.Value, "Next 4") {
			t.Error("expected the preview to be truncated")
		}
		if !strings.Contains(upNext.Value, "and 2 more") {
			t.Errorf("expected remaining count, got %q", upNext.Value)
		}
	})

	t.Run("paused", func(t *testing.T) {
		embed := buildNowPlayingEmbed(testNowPlayingInfo(domain.StatusPaused), "")

		if embed.Author.Name != "Paused" {
			t.Errorf("expected 'Paused', got %q", embed.Author.Name)
		}
		if embed.Thumbnail != nil {
			t.Error("expected no thumbnail")
		}
	})

	t.Run("stream", func(t *testing.T) {
		info := testNowPlayingInfo(domain.StatusPlaying)
		info.Track.IsStream = true
		info.Upcoming = nil

		embed := buildNowPlayingEmbed(info, "")

		if !strings.HasSuffix(embed.Description, "LIVE") {
			t.Errorf("expected LIVE marker, got %q", embed.Description)
		}
		for _, field := range embed.Fields {
			if field.Name == "Up Next" {
				t.Error("expected no Up Next field")
			}
		}
	})
}

func TestBuildControls(t *testing.T) {
	tests := []struct {
		status     domain.PlaybackStatus
		wantToggle string
	}{
		{status: domain.StatusPlaying, wantToggle: ports.ControlPause},
		{status: domain.StatusPaused, wantToggle: ports.ControlResume},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			rows := buildControls(tt.status)
			if len(rows) != 1 {
				t.Fatalf("expected 1 row, got %d", len(rows))
			}
			row, ok := rows[0].(discordgo.ActionsRow)
			if !ok {
				t.Fatalf("expected ActionsRow, got %T", rows[0])
			}

			var ids []string
			for _, c := range row.Components {
				ids = append(ids, c.(discordgo.Button).CustomID)
			}
			want := []string{tt.wantToggle, ports.ControlSkip, ports.ControlStop}
			if strings.Join(ids, ",") != strings.Join(want, ",") {
				t.Errorf("buttons = %v, want %v", ids, want)
			}
		})
	}
}

func TestMapMessageError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantGone bool
	}{
		{name: "nil", err: nil},
		{name: "unrelated", err: errors.New("boom")},
		{
			name: "unknown message",
			err: &discordgo.RESTError{
				Response: &http.Response{StatusCode: http.StatusNotFound},
				Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMessage},
			},
			wantGone: true,
		},
		{
			name:     "not found",
			err:      &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}},
			wantGone: true,
		},
		{
			name: "missing permissions",
			err: &discordgo.RESTError{
				Response: &http.Response{StatusCode: http.StatusForbidden},
				Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeMissingPermissions},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapMessageError(tt.err)
			if errors.Is(got, ports.ErrMessageGone) != tt.wantGone {
				t.Errorf("mapMessageError(%v) = %v, want gone=%v", tt.err, got, tt.wantGone)
			}
			if tt.err == nil && got != nil {
				t.Errorf("expected nil, got %v", got)
			}
		})
	}
}

func TestYouTubeVideoID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{url: "https://www.youtube.com/watch?v=abc123&t=10", want: "abc123"},
		{url: "https://youtu.be/abc123", want: "abc123"},
		{url: "https://youtube.com/shorts/abc123", want: "abc123"},
		{url: "https://soundcloud.com/artist/track", want: ""},
		{url: "", want: ""},
	}

	for _, tt := range tests {
		if got := youTubeVideoID(tt.url); got != tt.want {
			t.Errorf("youTubeVideoID(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}
