package music_player

import (
	"fmt"
	"time"
)

// Resolver backends.
const (
	ResolverYtdlp    = "ytdlp"
	ResolverLavalink = "lavalink"
)

// Config holds the music player module configuration.
type Config struct {
	LavalinkAddress  string `env:"LAVALINK_ADDRESS,notEmpty"`
	LavalinkPassword string `env:"LAVALINK_PASSWORD,notEmpty"`
	LavalinkSecure   bool   `env:"LAVALINK_SECURE"            envDefault:"false"`

	// ResolverBackend selects how queries are turned into tracks.
	ResolverBackend string `env:"RESOLVER_BACKEND" envDefault:"ytdlp"`
	YtdlpCookies    string `env:"YTDLP_COOKIES"`
	YtdlpProxy      string `env:"YTDLP_PROXY"`

	DatabasePath string `env:"DATABASE_PATH" envDefault:"melodybot.db"`

	IdleTimeout       time.Duration `env:"IDLE_TIMEOUT"        envDefault:"180s"`
	IdleSweepInterval time.Duration `env:"IDLE_SWEEP_INTERVAL" envDefault:"30s"`
	ResolveTimeout    time.Duration `env:"RESOLVE_TIMEOUT"     envDefault:"30s"`
	ProgressInterval  time.Duration `env:"PROGRESS_INTERVAL"   envDefault:"10s"`
	ProgressRate      int           `env:"PROGRESS_RATE"       envDefault:"4"`
	MaxTracks         int           `env:"MAX_TRACKS"          envDefault:"25"`
}

// Validate checks values the env tags cannot express.
func (c *Config) Validate() error {
	switch c.ResolverBackend {
	case ResolverYtdlp, ResolverLavalink:
	default:
		return fmt.Errorf("unknown resolver backend %q", c.ResolverBackend)
	}

	if c.IdleTimeout <= 0 || c.IdleSweepInterval <= 0 {
		return fmt.Errorf("idle timeout and sweep interval must be positive")
	}
	if c.ResolveTimeout <= 0 || c.ProgressInterval <= 0 {
		return fmt.Errorf("resolve timeout and progress interval must be positive")
	}
	if c.ProgressRate < 1 || c.MaxTracks < 1 {
		return fmt.Errorf("progress rate and max tracks must be at least 1")
	}
	return nil
}
