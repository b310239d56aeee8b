package music_player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/caarlos0/env/v11"
	"golang.org/x/time/rate"

	"github.com/sglre6355/melodybot/internal/bot"
	"github.com/sglre6355/melodybot/internal/modules/music_player/application"
	"github.com/sglre6355/melodybot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodybot/internal/modules/music_player/application/usecases"
	"github.com/sglre6355/melodybot/internal/modules/music_player/infrastructure"
	"github.com/sglre6355/melodybot/internal/modules/music_player/presentation/discord"
)

func init() {
	bot.Register(&MusicPlayerModule{})
}

// Compile-time interface checks.
var (
	_ bot.ConfigurableModule = (*MusicPlayerModule)(nil)
	_ bot.ComponentModule    = (*MusicPlayerModule)(nil)
)

// MusicPlayerModule provides music playback commands.
type MusicPlayerModule struct {
	config          *Config
	commandHandlers *discord.CommandHandlers
	autocomplete    *discord.AutocompleteHandler
	eventHandlers   *discord.EventHandlers
	lavalinkAdapter *infrastructure.LavalinkAdapter
	database        *infrastructure.SQLiteStore

	// Event-driven components
	eventBus            *infrastructure.ChannelEventBus
	playbackHandler     *application.PlaybackEventHandler
	notificationHandler *application.NotificationEventHandler

	// Background loops
	store      *infrastructure.MemoryGuildStateStore
	idleReaper *usecases.IdleReaper
	nowPlaying *usecases.NowPlayingService

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Name returns the module name.
func (m *MusicPlayerModule) Name() string {
	return "music_player"
}

// Commands returns the slash commands for this module.
func (m *MusicPlayerModule) Commands() []*discordgo.ApplicationCommand {
	return discord.Commands()
}

// CommandHandlers returns the command handlers for this module.
func (m *MusicPlayerModule) CommandHandlers() map[string]bot.InteractionHandler {
	return map[string]bot.InteractionHandler{
		"join":       m.commandHandlers.HandleJoin,
		"leave":      m.commandHandlers.HandleLeave,
		"play":       m.commandHandlers.HandlePlay,
		"skip":       m.commandHandlers.HandleSkip,
		"pause":      m.commandHandlers.HandlePause,
		"resume":     m.commandHandlers.HandleResume,
		"stop":       m.commandHandlers.HandleStop,
		"queue":      m.commandHandlers.HandleQueue,
		"remove":     m.commandHandlers.HandleRemove,
		"clear":      m.commandHandlers.HandleClear,
		"nowplaying": m.commandHandlers.HandleNowPlaying,
		"playlist":   m.commandHandlers.HandlePlaylist,
		"random":     m.commandHandlers.HandleRandom,
	}
}

// ComponentHandlers returns the handlers of the "Now Playing" buttons.
func (m *MusicPlayerModule) ComponentHandlers() map[string]bot.InteractionHandler {
	return m.commandHandlers.ComponentHandlers()
}

// EventHandlers returns the event handlers for this module.
func (m *MusicPlayerModule) EventHandlers() []bot.EventHandler {
	return []bot.EventHandler{
		func(s *discordgo.Session, event *discordgo.VoiceServerUpdate) {
			m.handleVoiceServerUpdate(s, event)
		},
		func(s *discordgo.Session, event *discordgo.VoiceStateUpdate) {
			m.handleVoiceStateUpdate(s, event)
		},
		func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			if m.autocomplete != nil {
				m.autocomplete.Handle(s, i)
			}
		},
	}
}

// LoadConfig loads module-specific configuration from environment variables.
func (m *MusicPlayerModule) LoadConfig() error {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.config = cfg
	return nil
}

// Init initializes the module.
func (m *MusicPlayerModule) Init(deps bot.ModuleDependencies) error {
	if deps.Session == nil {
		return errors.New("music_player requires a Discord session")
	}
	if m.config == nil {
		return errors.New("music_player config was not loaded")
	}

	// Create cancellable context for background loops
	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.eventBus = infrastructure.NewChannelEventBus(infrastructure.DefaultEventBufferSize)

	lavalinkAdapter, err := infrastructure.NewLavalinkAdapter(
		deps.Session,
		infrastructure.LavalinkConfig{
			Address:  m.config.LavalinkAddress,
			Password: m.config.LavalinkPassword,
			Secure:   m.config.LavalinkSecure,
		},
	)
	if err != nil {
		return err
	}
	m.lavalinkAdapter = lavalinkAdapter

	database, err := infrastructure.OpenSQLiteStore(m.ctx, m.config.DatabasePath)
	if err != nil {
		return err
	}
	m.database = database

	// Create infrastructure
	m.store = infrastructure.NewMemoryGuildStateStore()
	voiceState := infrastructure.NewVoiceStateProvider(deps.Session)
	userInfo := infrastructure.NewDiscordUserInfoProvider(deps.Session)
	notifier := infrastructure.NewNotifier(deps.Session)

	// Create services
	controller := usecases.NewPlaybackController(m.store, lavalinkAdapter, m.eventBus)
	trackLoader := usecases.NewTrackLoaderService(
		m.resolver(lavalinkAdapter),
		m.config.ResolveTimeout,
		m.config.MaxTracks,
	)
	voiceChannel := usecases.NewVoiceChannelService(
		m.store,
		lavalinkAdapter,
		voiceState,
		m.eventBus,
	)
	queue := usecases.NewQueueService(m.store)
	playlists := usecases.NewPlaylistService(database, trackLoader, voiceChannel, controller)
	m.nowPlaying = usecases.NewNowPlayingService(
		controller,
		notifier,
		database,
		userInfo,
		rate.NewLimiter(rate.Limit(m.config.ProgressRate), m.config.ProgressRate),
		m.config.ProgressInterval,
	)
	m.idleReaper = usecases.NewIdleReaper(
		m.store,
		lavalinkAdapter,
		lavalinkAdapter,
		m.config.IdleTimeout,
		m.config.IdleSweepInterval,
		nil,
	)

	// Register application event handlers
	m.playbackHandler = application.NewPlaybackEventHandler(controller, m.eventBus)
	m.notificationHandler = application.NewNotificationEventHandler(m.nowPlaying, m.eventBus)
	m.playbackHandler.Start()
	m.notificationHandler.Start()

	// Create presentation handlers
	m.commandHandlers = discord.NewCommandHandlers(
		voiceChannel,
		usecases.NewPlayService(voiceChannel, trackLoader, controller),
		controller,
		queue,
		m.nowPlaying,
		playlists,
	)
	m.autocomplete = discord.NewAutocompleteHandler(queue, playlists)
	m.eventHandlers = discord.NewEventHandlers(lavalinkAdapter.BotID(), voiceChannel)

	m.startBackgroundLoops()

	slog.Info("initialized music_player module",
		"resolver", m.config.ResolverBackend,
		"database", m.config.DatabasePath,
	)

	return nil
}

// resolver picks the link resolver selected by configuration.
func (m *MusicPlayerModule) resolver(lavalinkAdapter *infrastructure.LavalinkAdapter) ports.LinkResolver {
	if m.config.ResolverBackend == ResolverLavalink {
		return lavalinkAdapter
	}
	return infrastructure.NewYtdlpResolver(infrastructure.YtdlpConfig{
		CookiesFile: m.config.YtdlpCookies,
		Proxy:       m.config.YtdlpProxy,
	})
}

func (m *MusicPlayerModule) startBackgroundLoops() {
	m.wg.Add(2)
	go func() {
		defer m.wg.Done()
		m.idleReaper.Run(m.ctx)
	}()
	go func() {
		defer m.wg.Done()
		m.nowPlaying.Run(m.ctx, m.store)
	}()
}

// Shutdown cleans up module resources.
func (m *MusicPlayerModule) Shutdown() error {
	// Cancel context first to stop background loops
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()

	if m.eventBus != nil {
		m.eventBus.Close()
	}

	if m.lavalinkAdapter != nil {
		m.lavalinkAdapter.Close()
	}

	if m.database != nil {
		if err := m.database.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}

	return nil
}

// Event handlers.

func (m *MusicPlayerModule) handleVoiceServerUpdate(
	_ *discordgo.Session,
	event *discordgo.VoiceServerUpdate,
) {
	if m.lavalinkAdapter != nil {
		m.lavalinkAdapter.OnVoiceServerUpdate(event)
	}
}

func (m *MusicPlayerModule) handleVoiceStateUpdate(
	s *discordgo.Session,
	event *discordgo.VoiceStateUpdate,
) {
	if m.lavalinkAdapter != nil {
		m.lavalinkAdapter.OnVoiceStateUpdate(event)
	}
	if m.eventHandlers != nil {
		m.eventHandlers.HandleVoiceStateUpdate(s, event)
	}
}
