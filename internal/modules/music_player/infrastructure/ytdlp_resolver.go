package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/sglre6355/melodybot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodybot/internal/modules/music_player/domain"
)

// ytdlpPrintTemplate prints one tab-separated line per resolved entry.
const ytdlpPrintTemplate = "%(title)s\t%(uploader)s\t%(duration)s\t%(is_live)s\t%(webpage_url)s\t%(url)s"

// Ensure YtdlpResolver implements ports.LinkResolver.
var _ ports.LinkResolver = (*YtdlpResolver)(nil)

// YtdlpConfig contains yt-dlp options.
type YtdlpConfig struct {
	CookiesFile string // Optional: Netscape cookie file passed with --cookies
	Proxy       string // Optional
}

// YtdlpResolver resolves URLs and search terms with the yt-dlp binary.
// Resolved tracks carry the direct stream URL as their source locator.
type YtdlpResolver struct {
	config YtdlpConfig
}

// NewYtdlpResolver creates a new YtdlpResolver.
func NewYtdlpResolver(config YtdlpConfig) *YtdlpResolver {
	return &YtdlpResolver{config: config}
}

// Resolve runs yt-dlp for the query and returns up to maxTracks tracks.
func (r *YtdlpResolver) Resolve(
	ctx context.Context,
	query domain.SearchQuery,
	maxTracks int,
) ([]domain.Track, error) {
	maxTracks = max(maxTracks, 1)

	cmd := ytdlp.New().
		Print(ytdlpPrintTemplate).
		Format("bestaudio/best").
		PlaylistItems(fmt.Sprintf("1-%d", maxTracks)).
		NoWarnings().
		IgnoreConfig()
	if r.config.CookiesFile != "" {
		cmd.Cookies(r.config.CookiesFile)
	}
	if r.config.Proxy != "" {
		cmd.Proxy(r.config.Proxy)
	}

	res, err := cmd.Run(ctx, query.YtdlpTarget(maxTracks))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		stderr := ""
		if res != nil {
			stderr = strings.TrimSpace(res.Stderr)
		}
		return nil, fmt.Errorf("yt-dlp failed: %w: %s", err, stderr)
	}

	tracks := parseYtdlpOutput(res.Stdout)
	slog.Debug("resolved tracks with yt-dlp", "query", query.Query, "count", len(tracks))

	return tracks[:min(len(tracks), maxTracks)], nil
}

// parseYtdlpOutput parses lines printed with ytdlpPrintTemplate.
// Malformed lines are skipped.
func parseYtdlpOutput(stdout string) []domain.Track {
	var tracks []domain.Track
	for line := range strings.SplitSeq(strings.TrimSpace(stdout), "\n") {
		fields := strings.Split(strings.TrimRight(line, "\r"), "\t")
		if len(fields) < 6 {
			continue
		}

		streamURL := ytdlpField(fields[5])
		title := ytdlpField(fields[0])
		if streamURL == "" || title == "" {
			continue
		}

		isLive := strings.EqualFold(fields[3], "true")
		tracks = append(tracks, domain.Track{
			Title:         title,
			Artist:        ytdlpField(fields[1]),
			Duration:      parseYtdlpDuration(fields[2]),
			IsStream:      isLive,
			SourceLocator: streamURL,
			OriginURL:     ytdlpField(fields[4]),
		})
	}
	return tracks
}

// ytdlpField maps yt-dlp's "NA" placeholder to "".
func ytdlpField(value string) string {
	value = strings.TrimSpace(value)
	if value == "NA" {
		return ""
	}
	return value
}

// parseYtdlpDuration parses a duration in (possibly fractional) seconds.
func parseYtdlpDuration(value string) time.Duration {
	seconds, err := strconv.ParseFloat(ytdlpField(value), 64)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
