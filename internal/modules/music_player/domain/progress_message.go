package domain

import "github.com/disgoorg/snowflake/v2"

// ProgressMessage identifies the live "Now Playing" message of a guild.
// Both values are needed for edits and deletion since the message may be in a
// different channel than the current notification channel.
type ProgressMessage struct {
	ChannelID snowflake.ID
	MessageID snowflake.ID
}
