package domain

import (
	"github.com/disgoorg/snowflake/v2"
)

// GuildStateStore is the keyed registry of per-guild state.
// It guarantees record identity only; serialization is provided by each
// GuildState's own lock.
type GuildStateStore interface {
	// GetOrCreate returns the GuildState for the guild, creating it on first reference.
	// Repeated calls with the same ID return the same instance.
	GetOrCreate(guildID snowflake.ID) *GuildState

	// Get returns the GuildState for the guild, or nil if it was never referenced.
	Get(guildID snowflake.ID) *GuildState

	// GuildIDs returns the IDs of all known guilds.
	GuildIDs() []snowflake.ID
}
