package infrastructure

import (
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodybot/internal/modules/music_player/domain"
)

// Ensure MemoryGuildStateStore implements GuildStateStore.
var _ domain.GuildStateStore = (*MemoryGuildStateStore)(nil)

// MemoryGuildStateStore is an in-memory GuildStateStore. States are created
// on first use and live for the lifetime of the process.
type MemoryGuildStateStore struct {
	mu     sync.RWMutex
	states map[snowflake.ID]*domain.GuildState
}

// NewMemoryGuildStateStore creates a new MemoryGuildStateStore.
func NewMemoryGuildStateStore() *MemoryGuildStateStore {
	return &MemoryGuildStateStore{
		states: make(map[snowflake.ID]*domain.GuildState),
	}
}

// GetOrCreate returns the guild's state, creating a zeroed one if needed.
// Concurrent callers for the same guild always receive the same instance.
func (s *MemoryGuildStateStore) GetOrCreate(guildID snowflake.ID) *domain.GuildState {
	s.mu.RLock()
	state, ok := s.states[guildID]
	s.mu.RUnlock()
	if ok {
		return state
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.states[guildID]; ok {
		return state
	}
	state = domain.NewGuildState(guildID)
	s.states[guildID] = state
	return state
}

// Get returns the guild's state, or nil if the guild was never seen.
func (s *MemoryGuildStateStore) Get(guildID snowflake.ID) *domain.GuildState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.states[guildID]
}

// GuildIDs returns the IDs of all known guilds.
func (s *MemoryGuildStateStore) GuildIDs() []snowflake.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]snowflake.ID, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of guild states (for testing/monitoring).
func (s *MemoryGuildStateStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.states)
}
