package infrastructure

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sglre6355/melodybot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodybot/internal/modules/music_player/domain"
)

// DefaultEventBufferSize is the default buffer size for event channels.
const DefaultEventBufferSize = 100

// Compile-time checks that ChannelEventBus implements ports interfaces.
var (
	_ ports.EventPublisher  = (*ChannelEventBus)(nil)
	_ ports.EventSubscriber = (*ChannelEventBus)(nil)
)

// ChannelEventBus provides a channel-based event bus for async event handling.
// It implements both EventPublisher and EventSubscriber interfaces.
type ChannelEventBus struct {
	// Channels for event delivery
	trackEnded      chan domain.TrackEndedEvent
	playbackStarted chan domain.PlaybackStartedEvent
	playbackIdle    chan domain.PlaybackIdleEvent

	// Handler slices for callback-based subscription
	trackEndedHandlers      []func(context.Context, domain.TrackEndedEvent)
	playbackStartedHandlers []func(context.Context, domain.PlaybackStartedEvent)
	playbackIdleHandlers    []func(context.Context, domain.PlaybackIdleEvent)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
	mu     sync.RWMutex
}

// NewChannelEventBus creates a new ChannelEventBus with the given buffer size.
func NewChannelEventBus(bufferSize int) *ChannelEventBus {
	if bufferSize <= 0 {
		bufferSize = DefaultEventBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	bus := &ChannelEventBus{
		trackEnded:      make(chan domain.TrackEndedEvent, bufferSize),
		playbackStarted: make(chan domain.PlaybackStartedEvent, bufferSize),
		playbackIdle:    make(chan domain.PlaybackIdleEvent, bufferSize),
		ctx:             ctx,
		cancel:          cancel,
	}

	// Start dispatcher goroutines
	bus.wg.Add(3)
	go dispatch(bus, bus.trackEnded, func() []func(context.Context, domain.TrackEndedEvent) {
		return bus.trackEndedHandlers
	})
	go dispatch(bus, bus.playbackStarted, func() []func(context.Context, domain.PlaybackStartedEvent) {
		return bus.playbackStartedHandlers
	})
	go dispatch(bus, bus.playbackIdle, func() []func(context.Context, domain.PlaybackIdleEvent) {
		return bus.playbackIdleHandlers
	})

	return bus
}

// dispatch delivers events from ch to the handlers returned by handlers,
// in publish order, until the bus is closed.
func dispatch[E any](
	b *ChannelEventBus,
	ch <-chan E,
	handlers func() []func(context.Context, E),
) {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			b.mu.RLock()
			registered := handlers()
			b.mu.RUnlock()
			for _, handler := range registered {
				handler(b.ctx, event)
			}
		}
	}
}

// --- EventPublisher interface ---

// PublishTrackEnded publishes a TrackEndedEvent.
// Completions drive the queue forward and are never dropped: if the buffer is
// full, the publisher blocks until there is room or the bus is closed.
func (b *ChannelEventBus) PublishTrackEnded(event domain.TrackEndedEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		slog.Warn("attempted to publish to closed event bus", "type", "TrackEnded")
		return
	}

	select {
	case b.trackEnded <- event:
		slog.Debug("published event", "type", "TrackEnded", "guild", event.GuildID)
	case <-b.ctx.Done():
		slog.Warn("event bus closed while publishing", "type", "TrackEnded", "guild", event.GuildID)
	}
}

// PublishPlaybackStarted publishes a PlaybackStartedEvent.
// Non-blocking: if the channel buffer is full, the event is dropped with a warning.
func (b *ChannelEventBus) PublishPlaybackStarted(event domain.PlaybackStartedEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		slog.Warn("attempted to publish to closed event bus", "type", "PlaybackStarted")
		return
	}

	select {
	case b.playbackStarted <- event:
		slog.Debug("published event", "type", "PlaybackStarted", "guild", event.GuildID)
	default:
		slog.Warn("event buffer full, dropping event", "type", "PlaybackStarted")
	}
}

// PublishPlaybackIdle publishes a PlaybackIdleEvent.
// Non-blocking: if the channel buffer is full, the event is dropped with a warning.
func (b *ChannelEventBus) PublishPlaybackIdle(event domain.PlaybackIdleEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		slog.Warn("attempted to publish to closed event bus", "type", "PlaybackIdle")
		return
	}

	select {
	case b.playbackIdle <- event:
		slog.Debug("published event", "type", "PlaybackIdle", "guild", event.GuildID)
	default:
		slog.Warn("event buffer full, dropping event", "type", "PlaybackIdle")
	}
}

// --- EventSubscriber interface ---

// OnTrackEnded registers a handler for TrackEndedEvent.
func (b *ChannelEventBus) OnTrackEnded(handler func(context.Context, domain.TrackEndedEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trackEndedHandlers = append(b.trackEndedHandlers, handler)
}

// OnPlaybackStarted registers a handler for PlaybackStartedEvent.
func (b *ChannelEventBus) OnPlaybackStarted(
	handler func(context.Context, domain.PlaybackStartedEvent),
) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.playbackStartedHandlers = append(b.playbackStartedHandlers, handler)
}

// OnPlaybackIdle registers a handler for PlaybackIdleEvent.
func (b *ChannelEventBus) OnPlaybackIdle(handler func(context.Context, domain.PlaybackIdleEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.playbackIdleHandlers = append(b.playbackIdleHandlers, handler)
}

// Close closes all event channels and stops dispatchers.
// After calling Close, publishing will no longer send events.
func (b *ChannelEventBus) Close() {
	// Cancel first so that a publisher blocked on a full buffer releases its read lock
	b.cancel()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	// Close channels to unblock any pending reads
	close(b.trackEnded)
	close(b.playbackStarted)
	close(b.playbackIdle)

	// Wait for dispatchers to finish
	b.wg.Wait()

	slog.Debug("channel event bus closed")
}
