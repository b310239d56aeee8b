package usecases

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodybot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodybot/internal/modules/music_player/domain"
)

const testGuild = snowflake.ID(1)

var errSink = errors.New("sink failure")

func mockTrack(title string) domain.Track {
	return domain.Track{
		Title:         title,
		Duration:      3 * time.Minute,
		SourceLocator: "locator-" + title,
		OriginURL:     "https://www.youtube.com/watch?v=" + title,
		RequesterID:   snowflake.ID(123),
	}
}

func mockTracks(titles ...string) []domain.Track {
	tracks := make([]domain.Track, len(titles))
	for i, title := range titles {
		tracks[i] = mockTrack(title)
	}
	return tracks
}

func trackTitles(tracks []domain.Track) []string {
	result := make([]string, len(tracks))
	for i, t := range tracks {
		result[i] = t.Title
	}
	return result
}

func equalTitles(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// mockStore is a map-backed GuildStateStore.
type mockStore struct {
	mu     sync.Mutex
	states map[snowflake.ID]*domain.GuildState
}

func newMockStore() *mockStore {
	return &mockStore{
		states: make(map[snowflake.ID]*domain.GuildState),
	}
}

func (m *mockStore) GetOrCreate(guildID snowflake.ID) *domain.GuildState {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[guildID]
	if !ok {
		state = domain.NewGuildState(guildID)
		m.states[guildID] = state
	}
	return state
}

func (m *mockStore) Get(guildID snowflake.ID) *domain.GuildState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[guildID]
}

func (m *mockStore) GuildIDs() []snowflake.ID {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]snowflake.ID, 0, len(m.states))
	for id := range m.states {
		ids = append(ids, id)
	}
	return ids
}

// sinkPlay is one Play call received by mockAudioSink.
type sinkPlay struct {
	guildID    snowflake.ID
	track      domain.Track
	onFinished func()
	fired      bool
}

// mockAudioSink records plays and fires completion callbacks on demand.
// Stop fires the pending callback of the guild's current play, like a real sink.
// The paused flag survives Stop; only Resume and Play clear it.
type mockAudioSink struct {
	mu        sync.Mutex
	plays     []*sinkPlay
	current   map[snowflake.ID]*sinkPlay
	paused    map[snowflake.ID]bool
	failOn    map[string]error // track title -> Play error
	stopErr   error
	pauseErr  error
	resumeErr error
	stops     int
	pauses    int
	resumes   int
	status    domain.PlaybackStatus
}

func newMockAudioSink() *mockAudioSink {
	return &mockAudioSink{
		current: make(map[snowflake.ID]*sinkPlay),
		paused:  make(map[snowflake.ID]bool),
		failOn:  make(map[string]error),
	}
}

func (m *mockAudioSink) Play(
	_ context.Context,
	guildID snowflake.ID,
	track domain.Track,
	onFinished func(),
) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failOn[track.Title]; ok {
		return err
	}

	play := &sinkPlay{guildID: guildID, track: track, onFinished: onFinished}
	m.plays = append(m.plays, play)
	m.current[guildID] = play
	m.paused[guildID] = false
	return nil
}

func (m *mockAudioSink) Stop(_ context.Context, guildID snowflake.ID) error {
	m.mu.Lock()
	m.stops++
	if m.stopErr != nil {
		m.mu.Unlock()
		return m.stopErr
	}
	play := m.current[guildID]
	m.mu.Unlock()

	m.fire(play)
	return nil
}

func (m *mockAudioSink) Pause(_ context.Context, guildID snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauses++
	if m.pauseErr != nil {
		return m.pauseErr
	}
	m.paused[guildID] = true
	return nil
}

func (m *mockAudioSink) Resume(_ context.Context, guildID snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resumes++
	if m.resumeErr != nil {
		return m.resumeErr
	}
	m.paused[guildID] = false
	return nil
}

func (m *mockAudioSink) isPaused(guildID snowflake.ID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused[guildID]
}

func (m *mockAudioSink) Status(_ snowflake.ID) domain.PlaybackStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// finishCurrent simulates the current track of the guild ending naturally.
func (m *mockAudioSink) finishCurrent(guildID snowflake.ID) {
	m.mu.Lock()
	play := m.current[guildID]
	m.mu.Unlock()

	m.fire(play)
}

// fire invokes the play's callback at most once.
func (m *mockAudioSink) fire(play *sinkPlay) {
	if play == nil {
		return
	}

	m.mu.Lock()
	if play.fired {
		m.mu.Unlock()
		return
	}
	play.fired = true
	m.mu.Unlock()

	play.onFinished()
}

func (m *mockAudioSink) playedTitles() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]string, len(m.plays))
	for i, p := range m.plays {
		result[i] = p.track.Title
	}
	return result
}

// mockEventPublisher records published events.
type mockEventPublisher struct {
	mu              sync.Mutex
	trackEnded      []domain.TrackEndedEvent
	playbackStarted []domain.PlaybackStartedEvent
	playbackIdle    []domain.PlaybackIdleEvent
	handled         int // trackEnded events already delivered by drain
}

func (m *mockEventPublisher) PublishTrackEnded(event domain.TrackEndedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackEnded = append(m.trackEnded, event)
}

func (m *mockEventPublisher) PublishPlaybackStarted(event domain.PlaybackStartedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playbackStarted = append(m.playbackStarted, event)
}

func (m *mockEventPublisher) PublishPlaybackIdle(event domain.PlaybackIdleEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playbackIdle = append(m.playbackIdle, event)
}

func (m *mockEventPublisher) counts() (ended, started, idle int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trackEnded), len(m.playbackStarted), len(m.playbackIdle)
}

// next returns the next undelivered TrackEndedEvent.
func (m *mockEventPublisher) next() (domain.TrackEndedEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handled >= len(m.trackEnded) {
		return domain.TrackEndedEvent{}, false
	}
	event := m.trackEnded[m.handled]
	m.handled++
	return event, true
}

// drain delivers pending completion events to the controller, the way the
// playback event handler does.
func drain(c *PlaybackController, pub *mockEventPublisher) {
	for {
		event, ok := pub.next()
		if !ok {
			return
		}
		c.HandlePlaybackFinished(context.Background(), event.GuildID, event.Sequence)
	}
}

type mockVoiceConnection struct {
	mu       sync.Mutex
	joinErr  error
	leaveErr error
	joins    []snowflake.ID
	leaves   []snowflake.ID
}

func (m *mockVoiceConnection) JoinChannel(_ context.Context, _, channelID snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.joinErr != nil {
		return m.joinErr
	}
	m.joins = append(m.joins, channelID)
	return nil
}

func (m *mockVoiceConnection) LeaveChannel(_ context.Context, guildID snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaves = append(m.leaves, guildID)
	return m.leaveErr
}

type mockVoiceStateProvider struct {
	channels map[snowflake.ID]snowflake.ID // userID -> channelID
	err      error
}

func (m *mockVoiceStateProvider) GetUserVoiceChannel(
	_, userID snowflake.ID,
) (snowflake.ID, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.channels[userID], nil
}

// mockLinkResolver returns fixed tracks, an error, or blocks until the context ends.
type mockLinkResolver struct {
	mu        sync.Mutex
	tracks    []domain.Track
	byQuery   map[string][]domain.Track
	err       error
	block     bool
	onResolve func() // runs before the result is returned, outside any guild lock
	calls     []domain.SearchQuery
	maxTracks []int
}

func (m *mockLinkResolver) Resolve(
	ctx context.Context,
	query domain.SearchQuery,
	maxTracks int,
) ([]domain.Track, error) {
	m.mu.Lock()
	m.calls = append(m.calls, query)
	m.maxTracks = append(m.maxTracks, maxTracks)
	m.mu.Unlock()

	if m.onResolve != nil {
		m.onResolve()
	}

	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.err != nil {
		return nil, m.err
	}
	if tracks, ok := m.byQuery[query.Query]; ok {
		return tracks, nil
	}
	return m.tracks, nil
}

type mockPresence struct {
	mu        sync.Mutex
	sent      []ports.NowPlayingInfo
	updates   []ports.NowPlayingInfo
	deleted   []domain.ProgressMessage
	sendErr   error
	updateErr error
	deleteErr error
	nextID    snowflake.ID
}

func (m *mockPresence) SendNowPlaying(
	_ context.Context,
	channelID snowflake.ID,
	info ports.NowPlayingInfo,
) (domain.ProgressMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return domain.ProgressMessage{}, m.sendErr
	}
	m.sent = append(m.sent, info)
	m.nextID++
	return domain.ProgressMessage{ChannelID: channelID, MessageID: 1000 + m.nextID}, nil
}

func (m *mockPresence) SendProgressUpdate(
	_ context.Context,
	_ domain.ProgressMessage,
	info ports.NowPlayingInfo,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updates = append(m.updates, info)
	return nil
}

func (m *mockPresence) DeleteMessage(_ context.Context, msg domain.ProgressMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, msg)
	return m.deleteErr
}

type mockHistoryStore struct {
	mu     sync.Mutex
	logged []string
	err    error
}

func (m *mockHistoryStore) LogPlayed(_ context.Context, _ snowflake.ID, originURL, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logged = append(m.logged, originURL)
	return m.err
}

type mockUserInfo struct {
	calls int
}

func (m *mockUserInfo) GetUserInfo(_, userID snowflake.ID) (ports.UserInfo, error) {
	m.calls++
	return ports.UserInfo{DisplayName: "user-" + userID.String()}, nil
}

// mockPlaylistStore keeps entries in memory; Random returns the first n entries.
type mockPlaylistStore struct {
	entries map[snowflake.ID][]ports.PlaylistEntry
	nextID  int64
	err     error
}

func newMockPlaylistStore() *mockPlaylistStore {
	return &mockPlaylistStore{entries: make(map[snowflake.ID][]ports.PlaylistEntry)}
}

func (m *mockPlaylistStore) Add(_ context.Context, userID snowflake.ID, url, title string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	for _, e := range m.entries[userID] {
		if e.URL == url {
			return false, nil
		}
	}
	m.nextID++
	m.entries[userID] = append(m.entries[userID], ports.PlaylistEntry{ID: m.nextID, URL: url, Title: title})
	return true, nil
}

func (m *mockPlaylistStore) List(_ context.Context, userID snowflake.ID) ([]ports.PlaylistEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	return append([]ports.PlaylistEntry(nil), m.entries[userID]...), nil
}

func (m *mockPlaylistStore) Remove(_ context.Context, userID snowflake.ID, entryID int64) error {
	entries := m.entries[userID]
	for i, e := range entries {
		if e.ID == entryID {
			m.entries[userID] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *mockPlaylistStore) Random(_ context.Context, userID snowflake.ID, n int) ([]ports.PlaylistEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	entries := m.entries[userID]
	return append([]ports.PlaylistEntry(nil), entries[:min(n, len(entries))]...), nil
}

// controllerFixture wires a controller to mocks and a fake clock.
type controllerFixture struct {
	store      *mockStore
	sink       *mockAudioSink
	publisher  *mockEventPublisher
	clock      *fakeClock
	controller *PlaybackController
}

func newControllerFixture() *controllerFixture {
	f := &controllerFixture{
		store:     newMockStore(),
		sink:      newMockAudioSink(),
		publisher: &mockEventPublisher{},
		clock:     newFakeClock(),
	}
	f.controller = NewPlaybackController(f.store, f.sink, f.publisher, WithClock(f.clock.Now))
	return f
}

// enqueue adds tracks by title and fails the test on error.
func (f *controllerFixture) enqueue(t *testing.T, titles ...string) *EnqueueOutput {
	t.Helper()

	out, err := f.controller.Enqueue(context.Background(), EnqueueInput{
		GuildID:               testGuild,
		Tracks:                mockTracks(titles...),
		NotificationChannelID: 10,
	})
	if err != nil {
		t.Fatalf("Enqueue(%v) error = %v", titles, err)
	}
	return out
}

// assertState checks the current track title ("" for none) and the queued titles.
func (f *controllerFixture) assertState(t *testing.T, current string, queued ...string) {
	t.Helper()

	snapshot := f.snapshot()
	got := ""
	if snapshot.CurrentTrack != nil {
		got = snapshot.CurrentTrack.Title
	}
	if got != current {
		t.Errorf("current track = %q, want %q", got, current)
	}
	if q := trackTitles(snapshot.Queue); !equalTitles(q, queued) {
		t.Errorf("queue = %v, want %v", q, queued)
	}
}

// finish ends the current track naturally and delivers the completion.
func (f *controllerFixture) finish() {
	f.sink.finishCurrent(testGuild)
	drain(f.controller, f.publisher)
}

func (f *controllerFixture) snapshot() domain.GuildSnapshot {
	return f.controller.Snapshot(testGuild)
}
