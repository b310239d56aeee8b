package ports

import (
	"github.com/disgoorg/snowflake/v2"
)

// UserInfo contains display information for the user who requested a track.
type UserInfo struct {
	DisplayName string
	AvatarURL   string
}

// UserInfoProvider resolves display information for guild members.
type UserInfoProvider interface {
	// GetUserInfo returns display info for the given user in a guild.
	GetUserInfo(guildID, userID snowflake.ID) (UserInfo, error)
}
