package discord

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodybot/internal/bot"
	"github.com/sglre6355/melodybot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodybot/internal/modules/music_player/application/usecases"
	"github.com/sglre6355/melodybot/internal/modules/music_player/domain"
	"github.com/sglre6355/melodybot/internal/modules/music_player/infrastructure"
	"golang.org/x/time/rate"
)

const (
	testGuild        = snowflake.ID(1)
	testTextChannel  = snowflake.ID(10)
	testUser         = snowflake.ID(500)
	testVoiceChannel = snowflake.ID(600)
)

// Mock implementations

type mockSink struct {
	mu       sync.Mutex
	finishes map[snowflake.ID]func()
	paused   bool
}

func (m *mockSink) Play(_ context.Context, guildID snowflake.ID, _ domain.Track, onFinished func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finishes[guildID] = onFinished
	return nil
}

func (m *mockSink) Stop(_ context.Context, guildID snowflake.ID) error {
	m.mu.Lock()
	fn := m.finishes[guildID]
	delete(m.finishes, guildID)
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

func (m *mockSink) Pause(context.Context, snowflake.ID) error {
	m.paused = true
	return nil
}

func (m *mockSink) Resume(context.Context, snowflake.ID) error {
	m.paused = false
	return nil
}

func (m *mockSink) Status(snowflake.ID) domain.PlaybackStatus {
	return domain.StatusIdle
}

type mockPublisher struct {
	mu    sync.Mutex
	ended []domain.TrackEndedEvent
}

func (m *mockPublisher) PublishTrackEnded(event domain.TrackEndedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ended = append(m.ended, event)
}

func (m *mockPublisher) PublishPlaybackStarted(domain.PlaybackStartedEvent) {}
func (m *mockPublisher) PublishPlaybackIdle(domain.PlaybackIdleEvent)       {}

type mockVoiceConnection struct{}

func (mockVoiceConnection) JoinChannel(context.Context, snowflake.ID, snowflake.ID) error { return nil }
func (mockVoiceConnection) LeaveChannel(context.Context, snowflake.ID) error              { return nil }

type mockVoiceState struct {
	channels map[snowflake.ID]snowflake.ID
}

func (m *mockVoiceState) GetUserVoiceChannel(_, userID snowflake.ID) (snowflake.ID, error) {
	return m.channels[userID], nil
}

// mockResolver resolves "a b c" into tracks A, B and C.
type mockResolver struct{}

func (mockResolver) Resolve(_ context.Context, query domain.SearchQuery, maxTracks int) ([]domain.Track, error) {
	var tracks []domain.Track
	for _, title := range strings.Fields(query.Query) {
		tracks = append(tracks, testTrack(strings.ToUpper(title)))
	}
	return tracks[:min(len(tracks), maxTracks)], nil
}

type mockPresence struct{}

func (mockPresence) SendNowPlaying(context.Context, snowflake.ID, ports.NowPlayingInfo) (domain.ProgressMessage, error) {
	return domain.ProgressMessage{}, nil
}

func (mockPresence) SendProgressUpdate(context.Context, domain.ProgressMessage, ports.NowPlayingInfo) error {
	return nil
}

func (mockPresence) DeleteMessage(context.Context, domain.ProgressMessage) error { return nil }

type mockPlaylistStore struct {
	nextID  int64
	entries map[snowflake.ID][]ports.PlaylistEntry
}

func (m *mockPlaylistStore) Add(_ context.Context, userID snowflake.ID, url, title string) (bool, error) {
	for _, e := range m.entries[userID] {
		if e.URL == url {
			return false, nil
		}
	}
	m.nextID++
	m.entries[userID] = append(m.entries[userID], ports.PlaylistEntry{
		ID:      m.nextID,
		URL:     url,
		Title:   title,
		AddedAt: time.Now(),
	})
	return true, nil
}

func (m *mockPlaylistStore) List(_ context.Context, userID snowflake.ID) ([]ports.PlaylistEntry, error) {
	return append([]ports.PlaylistEntry(nil), m.entries[userID]...), nil
}

func (m *mockPlaylistStore) Remove(_ context.Context, userID snowflake.ID, entryID int64) error {
	entries := m.entries[userID]
	for i, e := range entries {
		if e.ID == entryID {
			m.entries[userID] = append(entries[:i], entries[i+1:]...)
			break
		}
	}
	return nil
}

func (m *mockPlaylistStore) Random(_ context.Context, userID snowflake.ID, n int) ([]ports.PlaylistEntry, error) {
	entries := m.entries[userID]
	return append([]ports.PlaylistEntry(nil), entries[:min(n, len(entries))]...), nil
}

func testTrack(title string) domain.Track {
	return domain.Track{
		Title:         title,
		Artist:        "artist-" + title,
		Duration:      3 * time.Minute,
		SourceLocator: "locator-" + title,
		OriginURL:     "https://www.youtube.com/watch?v=" + title,
	}
}

// fixture wires real use cases to the mocks above.
type fixture struct {
	sink       *mockSink
	publisher  *mockPublisher
	voiceState *mockVoiceState
	playlists  *mockPlaylistStore
	controller *usecases.PlaybackController
	handlers   *CommandHandlers
	complete   *AutocompleteHandler
}

func newFixture() *fixture {
	store := infrastructure.NewMemoryGuildStateStore()
	f := &fixture{
		sink:       &mockSink{finishes: make(map[snowflake.ID]func())},
		publisher:  &mockPublisher{},
		voiceState: &mockVoiceState{channels: map[snowflake.ID]snowflake.ID{testUser: testVoiceChannel}},
		playlists:  &mockPlaylistStore{entries: make(map[snowflake.ID][]ports.PlaylistEntry)},
	}

	f.controller = usecases.NewPlaybackController(store, f.sink, f.publisher)
	voice := usecases.NewVoiceChannelService(store, mockVoiceConnection{}, f.voiceState, f.publisher)
	loader := usecases.NewTrackLoaderService(mockResolver{}, time.Second, 0)
	queue := usecases.NewQueueService(store)
	nowPlaying := usecases.NewNowPlayingService(
		f.controller, mockPresence{}, nil, nil, rate.NewLimiter(rate.Inf, 1), 0,
	)
	playlists := usecases.NewPlaylistService(f.playlists, loader, voice, f.controller)

	f.handlers = NewCommandHandlers(
		voice,
		usecases.NewPlayService(voice, loader, f.controller),
		f.controller,
		queue,
		nowPlaying,
		playlists,
	)
	f.complete = NewAutocompleteHandler(queue, playlists)
	return f
}

// enqueue queues tracks directly, starting playback if idle.
func (f *fixture) enqueue(t *testing.T, titles ...string) {
	t.Helper()
	tracks := make([]domain.Track, len(titles))
	for i, title := range titles {
		tracks[i] = testTrack(title)
	}
	_, err := f.controller.Enqueue(context.Background(), usecases.EnqueueInput{
		GuildID: testGuild,
		Tracks:  tracks,
	})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
}

// finishPending delivers recorded completions to the controller.
func (f *fixture) finishPending() {
	f.publisher.mu.Lock()
	ended := f.publisher.ended
	f.publisher.ended = nil
	f.publisher.mu.Unlock()

	for _, e := range ended {
		f.controller.HandlePlaybackFinished(context.Background(), e.GuildID, e.Sequence)
	}
}

// Interaction builders

func commandInteraction(
	name string,
	options ...*discordgo.ApplicationCommandInteractionDataOption,
) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:      discordgo.InteractionApplicationCommand,
			GuildID:   testGuild.String(),
			ChannelID: testTextChannel.String(),
			Member:    &discordgo.Member{User: &discordgo.User{ID: testUser.String()}},
			Data: discordgo.ApplicationCommandInteractionData{
				Name:    name,
				Options: options,
			},
		},
	}
}

func componentInteraction(customID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:      discordgo.InteractionMessageComponent,
			GuildID:   testGuild.String(),
			ChannelID: testTextChannel.String(),
			Member:    &discordgo.Member{User: &discordgo.User{ID: testUser.String()}},
			Data: discordgo.MessageComponentInteractionData{
				CustomID: customID,
			},
		},
	}
}

func intOpt(name string, value int) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionInteger,
		Value: float64(value),
	}
}

func strOpt(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionString,
		Value: value,
	}
}

func subCommand(
	name string,
	options ...*discordgo.ApplicationCommandInteractionDataOption,
) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:    name,
		Type:    discordgo.ApplicationCommandOptionSubCommand,
		Options: options,
	}
}

// Response accessors

func responseEmbed(t *testing.T, r *bot.MockResponder) *discordgo.MessageEmbed {
	t.Helper()
	if r.LastResponse == nil || r.LastResponse.Data == nil || len(r.LastResponse.Data.Embeds) == 0 {
		t.Fatal("expected an embed response")
	}
	return r.LastResponse.Data.Embeds[0]
}

func followupEmbed(t *testing.T, r *bot.MockResponder) *discordgo.MessageEmbed {
	t.Helper()
	if !r.Deferred {
		t.Error("expected interaction to be deferred")
	}
	if r.LastFollowup == nil || len(r.LastFollowup.Embeds) == 0 {
		t.Fatal("expected an embed followup")
	}
	return r.LastFollowup.Embeds[0]
}

func assertContains(t *testing.T, got, want string) {
	t.Helper()
	if !strings.Contains(got, want) {
		t.Errorf("expected %q to contain %q", got, want)
	}
}
