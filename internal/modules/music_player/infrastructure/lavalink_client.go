package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/disgolink/v3/disgolink"
	"github.com/disgoorg/disgolink/v3/lavalink"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodybot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodybot/internal/modules/music_player/domain"
)

// voiceConnectionTimeout is the maximum time to wait for voice connection to be established.
const voiceConnectionTimeout = 10 * time.Second

// pendingVoiceConnection tracks the state of a pending voice connection.
type pendingVoiceConnection struct {
	mu             sync.Mutex
	hasVoiceState  bool
	hasVoiceServer bool
	ready          chan struct{}
}

// onEvent marks an event as received and signals ready if both events are present.
func (p *pendingVoiceConnection) onEvent(isVoiceState bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if isVoiceState {
		p.hasVoiceState = true
	} else {
		p.hasVoiceServer = true
	}

	if p.hasVoiceState && p.hasVoiceServer {
		select {
		case <-p.ready:
			// Already closed
		default:
			close(p.ready)
		}
	}
}

// voiceEventBuffer buffers voice events to ensure both VoiceStateUpdate and
// VoiceServerUpdate are received before forwarding to Lavalink.
// This prevents "Partial Lavalink voice state" errors when events arrive out of order.
type voiceEventBuffer struct {
	mu sync.Mutex

	// From VoiceStateUpdate
	hasVoiceState bool
	channelID     *snowflake.ID
	sessionID     string

	// From VoiceServerUpdate
	hasVoiceServer bool
	token          string
	endpoint       string
}

// setVoiceState stores voice state data and returns true if both events are now ready.
func (b *voiceEventBuffer) setVoiceState(channelID *snowflake.ID, sessionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.hasVoiceState = true
	b.channelID = channelID
	b.sessionID = sessionID

	return b.hasVoiceState && b.hasVoiceServer
}

// setVoiceServer stores voice server data and returns true if both events are now ready.
func (b *voiceEventBuffer) setVoiceServer(token, endpoint string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.hasVoiceServer = true
	b.token = token
	b.endpoint = endpoint

	return b.hasVoiceState && b.hasVoiceServer
}

// getData returns the buffered data and resets the buffer.
func (b *voiceEventBuffer) getData() (channelID *snowflake.ID, sessionID, token, endpoint string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	channelID = b.channelID
	sessionID = b.sessionID
	token = b.token
	endpoint = b.endpoint

	// Reset buffer
	b.hasVoiceState = false
	b.hasVoiceServer = false
	b.channelID = nil
	b.sessionID = ""
	b.token = ""
	b.endpoint = ""

	return
}

// pendingPlay is a track handed to Lavalink whose completion has not been reported yet.
type pendingPlay struct {
	encoded    string
	onFinished func()
	once       sync.Once
}

// finish reports the completion of the play. Only the first call has an effect.
func (p *pendingPlay) finish() {
	p.once.Do(p.onFinished)
}

// LavalinkAdapter wraps DisGoLink to implement the audio sink, voice
// connection and link resolver ports.
type LavalinkAdapter struct {
	link    disgolink.Client
	session *discordgo.Session
	botID   snowflake.ID

	pendingMu sync.Mutex
	pending   map[snowflake.ID]*pendingVoiceConnection

	// voiceBuffers holds buffered voice events per guild to handle out-of-order events
	voiceBufferMu sync.Mutex
	voiceBuffers  map[snowflake.ID]*voiceEventBuffer

	playsMu   sync.Mutex
	plays     map[snowflake.ID]*pendingPlay
	connected map[snowflake.ID]bool
}

// LavalinkConfig contains Lavalink connection configuration.
type LavalinkConfig struct {
	Address  string
	Password string
	Secure   bool
}

// NewLavalinkAdapter creates a new LavalinkAdapter.
func NewLavalinkAdapter(
	session *discordgo.Session,
	config LavalinkConfig,
) (*LavalinkAdapter, error) {
	botID, err := snowflake.Parse(session.State.User.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bot ID: %w", err)
	}

	adapter := &LavalinkAdapter{
		session:      session,
		botID:        botID,
		pending:      make(map[snowflake.ID]*pendingVoiceConnection),
		voiceBuffers: make(map[snowflake.ID]*voiceEventBuffer),
		plays:        make(map[snowflake.ID]*pendingPlay),
		connected:    make(map[snowflake.ID]bool),
	}

	// Create DisGoLink client
	link := disgolink.New(botID,
		disgolink.WithListenerFunc(adapter.onTrackStart),
		disgolink.WithListenerFunc(adapter.onTrackEnd),
		disgolink.WithListenerFunc(adapter.onTrackException),
		disgolink.WithListenerFunc(adapter.onTrackStuck),
	)
	adapter.link = link

	// Add Lavalink node
	node, err := link.AddNode(context.Background(), disgolink.NodeConfig{
		Name:     "main",
		Address:  config.Address,
		Password: config.Password,
		Secure:   config.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add Lavalink node: %w", err)
	}

	slog.Info("connected to Lavalink", "node", node.Config().Name, "address", config.Address)

	return adapter, nil
}

// BotID returns the bot's user ID.
func (c *LavalinkAdapter) BotID() snowflake.ID {
	return c.botID
}

// Close disconnects from all Lavalink nodes.
func (c *LavalinkAdapter) Close() {
	c.link.Close()
}

// --- VoiceConnection ---

// JoinChannel connects to a voice channel.
// It waits for both VoiceStateUpdate and VoiceServerUpdate events before returning.
func (c *LavalinkAdapter) JoinChannel(ctx context.Context, guildID, channelID snowflake.ID) error {
	// Create pending connection tracker
	pending := &pendingVoiceConnection{
		ready: make(chan struct{}),
	}

	c.pendingMu.Lock()
	c.pending[guildID] = pending
	c.pendingMu.Unlock()

	// Cleanup pending entry when done
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, guildID)
		c.pendingMu.Unlock()
	}()

	// Use discordgo to update voice state
	err := c.session.ChannelVoiceJoinManual(guildID.String(), channelID.String(), false, true)
	if err != nil {
		return fmt.Errorf("failed to join voice channel: %w", err)
	}

	// Wait for voice connection to be established (both events received)
	select {
	case <-pending.ready:
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while waiting for voice connection: %w", ctx.Err())
	case <-time.After(voiceConnectionTimeout):
		return fmt.Errorf("timeout waiting for voice connection")
	}

	c.playsMu.Lock()
	c.connected[guildID] = true
	c.playsMu.Unlock()
	return nil
}

// LeaveChannel destroys the guild's player and disconnects from voice.
// Returns ports.ErrNoVoiceSession if the guild had neither.
func (c *LavalinkAdapter) LeaveChannel(ctx context.Context, guildID snowflake.ID) error {
	c.playsMu.Lock()
	wasConnected := c.connected[guildID]
	delete(c.connected, guildID)
	c.playsMu.Unlock()

	player := c.link.ExistingPlayer(guildID)
	if player == nil && !wasConnected {
		return ports.ErrNoVoiceSession
	}

	if player != nil {
		if err := player.Destroy(ctx); err != nil {
			slog.Warn("failed to destroy player", "guild", guildID, "error", err)
		}
	}
	// A destroyed player reports no track end
	c.finishPlay(guildID)

	err := c.session.ChannelVoiceJoinManual(guildID.String(), "", false, false)
	if err != nil {
		return fmt.Errorf("failed to leave voice channel: %w", err)
	}
	return nil
}

// --- AudioSink ---

// Play starts the track, replacing whatever the guild's player was playing.
// onFinished is called exactly once when the track finishes, is stopped or is replaced.
func (c *LavalinkAdapter) Play(
	ctx context.Context,
	guildID snowflake.ID,
	track domain.Track,
	onFinished func(),
) error {
	encoded, err := c.encodedTrack(ctx, track)
	if err != nil {
		return err
	}

	play := &pendingPlay{encoded: encoded, onFinished: onFinished}

	c.playsMu.Lock()
	replaced := c.plays[guildID]
	c.plays[guildID] = play
	c.playsMu.Unlock()

	if replaced != nil {
		replaced.finish()
	}

	player := c.link.Player(guildID)

	if err := player.Update(ctx, playUpdate(encoded)...); err != nil {
		c.playsMu.Lock()
		if c.plays[guildID] == play {
			delete(c.plays, guildID)
		}
		c.playsMu.Unlock()
		return fmt.Errorf("failed to play track: %w", err)
	}

	return nil
}

// playUpdate starts the encoded track unpaused. Lavalink keeps a player's
// paused flag across track changes, so it is cleared explicitly.
// WithEncodedTrack avoids sending userData:null.
func playUpdate(encoded string) []lavalink.PlayerUpdateOpt {
	return []lavalink.PlayerUpdateOpt{
		lavalink.WithEncodedTrack(encoded),
		lavalink.WithPaused(false),
	}
}

// stopUpdate clears the track and leaves the player unpaused.
func stopUpdate() []lavalink.PlayerUpdateOpt {
	return []lavalink.PlayerUpdateOpt{
		lavalink.WithNullTrack(),
		lavalink.WithPaused(false),
	}
}

// Stop stops the current playback. The completion callback fires when
// Lavalink reports the track end.
func (c *LavalinkAdapter) Stop(ctx context.Context, guildID snowflake.ID) error {
	player := c.link.ExistingPlayer(guildID)
	if player == nil {
		c.finishPlay(guildID)
		return nil
	}

	if err := player.Update(ctx, stopUpdate()...); err != nil {
		return fmt.Errorf("failed to stop playback: %w", err)
	}

	return nil
}

// Pause pauses the current playback.
func (c *LavalinkAdapter) Pause(ctx context.Context, guildID snowflake.ID) error {
	player := c.link.Player(guildID)

	if err := player.Update(ctx, lavalink.WithPaused(true)); err != nil {
		return fmt.Errorf("failed to pause playback: %w", err)
	}

	return nil
}

// Resume resumes the current playback.
func (c *LavalinkAdapter) Resume(ctx context.Context, guildID snowflake.ID) error {
	player := c.link.Player(guildID)

	if err := player.Update(ctx, lavalink.WithPaused(false)); err != nil {
		return fmt.Errorf("failed to resume playback: %w", err)
	}

	return nil
}

// Status reports what the guild's player is doing.
func (c *LavalinkAdapter) Status(guildID snowflake.ID) domain.PlaybackStatus {
	player := c.link.ExistingPlayer(guildID)
	switch {
	case player == nil || player.Track() == nil:
		return domain.StatusIdle
	case player.Paused():
		return domain.StatusPaused
	default:
		return domain.StatusPlaying
	}
}

// encodedTrack returns the Lavalink-encoded form of a track. Locators that are
// URLs (for example direct stream URLs from yt-dlp) are loaded through the node.
func (c *LavalinkAdapter) encodedTrack(ctx context.Context, track domain.Track) (string, error) {
	if !strings.HasPrefix(track.SourceLocator, "http://") &&
		!strings.HasPrefix(track.SourceLocator, "https://") {
		return track.SourceLocator, nil
	}

	tracks, err := c.load(ctx, track.SourceLocator)
	if err != nil && track.OriginURL != "" {
		slog.Debug("failed to load stream url, falling back to origin url",
			"title", track.Title,
			"error", err,
		)
		tracks, err = c.load(ctx, track.OriginURL)
	}
	if err != nil {
		return "", err
	}
	if len(tracks) == 0 {
		return "", fmt.Errorf("no playable track for %q", track.Title)
	}
	return tracks[0].Encoded, nil
}

// --- LinkResolver ---

// Resolve loads up to maxTracks tracks for the query from the best Lavalink node.
func (c *LavalinkAdapter) Resolve(
	ctx context.Context,
	query domain.SearchQuery,
	maxTracks int,
) ([]domain.Track, error) {
	loaded, err := c.load(ctx, query.LavalinkQuery())
	if err != nil {
		return nil, err
	}

	tracks := make([]domain.Track, 0, min(len(loaded), maxTracks))
	for _, track := range loaded {
		if len(tracks) == maxTracks {
			break
		}
		tracks = append(tracks, convertTrack(track))
	}
	return tracks, nil
}

// load runs a loadtracks request and flattens the result.
func (c *LavalinkAdapter) load(ctx context.Context, identifier string) ([]lavalink.Track, error) {
	node := c.link.BestNode()
	if node == nil {
		return nil, fmt.Errorf("no available Lavalink node")
	}

	result, err := node.LoadTracks(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to load tracks: %w", err)
	}

	switch data := result.Data.(type) {
	case lavalink.Track:
		return []lavalink.Track{data}, nil
	case lavalink.Playlist:
		return data.Tracks, nil
	case lavalink.Search:
		return data, nil
	case lavalink.Exception:
		return nil, fmt.Errorf("lavalink failed to load %q: %s", identifier, data.Message)
	default:
		return nil, nil
	}
}

// convertTrack converts a Lavalink track to a domain track.
func convertTrack(track lavalink.Track) domain.Track {
	info := track.Info

	return domain.Track{
		Title:         info.Title,
		Artist:        info.Author,
		Duration:      time.Duration(info.Length) * time.Millisecond,
		IsStream:      info.IsStream,
		SourceLocator: track.Encoded,
		OriginURL:     getStringPtr(info.URI),
	}
}

func getStringPtr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// --- Discord voice events ---

// OnVoiceServerUpdate handles Discord voice server updates.
// This must be called from the Discord event handler.
func (c *LavalinkAdapter) OnVoiceServerUpdate(event *discordgo.VoiceServerUpdate) {
	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice server update", "error", err)
		return
	}

	// Get or create voice buffer for this guild
	buffer := c.getOrCreateVoiceBuffer(guildID)

	// Store voice server data and check if both events are ready
	if buffer.setVoiceServer(event.Token, event.Endpoint) {
		// Both events received, forward to Lavalink
		c.forwardBufferedVoiceEvents(guildID, buffer)
	}

	// Signal that we received the voice server update (for JoinChannel waiting)
	c.pendingMu.Lock()
	pending := c.pending[guildID]
	c.pendingMu.Unlock()

	if pending != nil {
		pending.onEvent(false)
	}
}

// OnVoiceStateUpdate handles Discord voice state updates.
// This must be called from the Discord event handler.
func (c *LavalinkAdapter) OnVoiceStateUpdate(event *discordgo.VoiceStateUpdate) {
	// Only handle updates for the bot itself
	if event.UserID != c.botID.String() {
		return
	}

	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice state update", "error", err)
		return
	}

	sessionID := event.SessionID

	// Parse the channel ID - if empty, the bot is disconnecting
	var channelID *snowflake.ID
	if event.ChannelID != "" {
		id, err := snowflake.Parse(event.ChannelID)
		if err != nil {
			slog.Error("failed to parse channel ID in voice state update", "error", err)
			return
		}
		channelID = &id
	}

	// Handle disconnect immediately (no need to wait for VoiceServerUpdate)
	if channelID == nil {
		c.link.OnVoiceStateUpdate(context.Background(), guildID, nil, sessionID)
		c.clearVoiceBuffer(guildID)

		c.playsMu.Lock()
		delete(c.connected, guildID)
		c.playsMu.Unlock()
		return
	}

	// Get or create voice buffer for this guild
	buffer := c.getOrCreateVoiceBuffer(guildID)

	// Store voice state data and check if both events are ready
	if buffer.setVoiceState(channelID, sessionID) {
		// Both events received, forward to Lavalink
		c.forwardBufferedVoiceEvents(guildID, buffer)
	}

	// Signal that we received the voice state update (for JoinChannel waiting)
	c.pendingMu.Lock()
	pending := c.pending[guildID]
	c.pendingMu.Unlock()

	if pending != nil {
		pending.onEvent(true)
	}
}

// getOrCreateVoiceBuffer returns the voice buffer for a guild, creating one if needed.
func (c *LavalinkAdapter) getOrCreateVoiceBuffer(guildID snowflake.ID) *voiceEventBuffer {
	c.voiceBufferMu.Lock()
	defer c.voiceBufferMu.Unlock()

	buffer, exists := c.voiceBuffers[guildID]
	if !exists {
		buffer = &voiceEventBuffer{}
		c.voiceBuffers[guildID] = buffer
	}
	return buffer
}

// clearVoiceBuffer removes the voice buffer for a guild.
func (c *LavalinkAdapter) clearVoiceBuffer(guildID snowflake.ID) {
	c.voiceBufferMu.Lock()
	defer c.voiceBufferMu.Unlock()
	delete(c.voiceBuffers, guildID)
}

// forwardBufferedVoiceEvents sends the buffered voice events to Lavalink.
func (c *LavalinkAdapter) forwardBufferedVoiceEvents(
	guildID snowflake.ID,
	buffer *voiceEventBuffer,
) {
	channelID, sessionID, token, endpoint := buffer.getData()

	slog.Debug("forwarding buffered voice events to Lavalink",
		"guild", guildID,
		"channel", channelID,
		"hasSessionID", sessionID != "",
	)

	// Forward to Lavalink in the correct order
	c.link.OnVoiceStateUpdate(context.Background(), guildID, channelID, sessionID)
	c.link.OnVoiceServerUpdate(context.Background(), guildID, token, endpoint)
}

// finishPlay reports the completion of the guild's pending play, if any.
func (c *LavalinkAdapter) finishPlay(guildID snowflake.ID) {
	c.playsMu.Lock()
	play := c.plays[guildID]
	delete(c.plays, guildID)
	c.playsMu.Unlock()

	if play != nil {
		play.finish()
	}
}

func (c *LavalinkAdapter) onTrackStart(player disgolink.Player, event lavalink.TrackStartEvent) {
	slog.Debug("track started", "guild", player.GuildID(), "track", event.Track.Info.Title)
}

func (c *LavalinkAdapter) onTrackEnd(player disgolink.Player, event lavalink.TrackEndEvent) {
	guildID := player.GuildID()
	slog.Debug("track ended", "guild", guildID, "reason", event.Reason)

	// Replaced plays were already reported by Play
	if event.Reason == lavalink.TrackEndReasonReplaced {
		return
	}

	c.playsMu.Lock()
	play := c.plays[guildID]
	if play == nil || play.encoded != event.Track.Encoded {
		c.playsMu.Unlock()
		return
	}
	delete(c.plays, guildID)
	c.playsMu.Unlock()

	play.finish()
}

func (c *LavalinkAdapter) onTrackException(
	player disgolink.Player,
	event lavalink.TrackExceptionEvent,
) {
	// Lavalink follows up with a track end event (reason loadFailed)
	slog.Warn("track exception", "guild", player.GuildID(), "error", event.Exception.Message)
}

func (c *LavalinkAdapter) onTrackStuck(player disgolink.Player, event lavalink.TrackStuckEvent) {
	slog.Warn("track stuck, stopping it", "guild", player.GuildID(), "threshold", event.Threshold)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), voiceConnectionTimeout)
		defer cancel()
		if err := player.Update(ctx, lavalink.WithNullTrack()); err != nil {
			slog.Warn("failed to stop stuck track", "guild", player.GuildID(), "error", err)
		}
	}()
}

// Ensure LavalinkAdapter implements port interfaces.
var (
	_ ports.AudioSink       = (*LavalinkAdapter)(nil)
	_ ports.VoiceConnection = (*LavalinkAdapter)(nil)
	_ ports.LinkResolver    = (*LavalinkAdapter)(nil)
)
