package infrastructure

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
)

func TestVoiceStateProvider_GetUserVoiceChannel(t *testing.T) {
	state := discordgo.NewState()
	err := state.GuildAdd(&discordgo.Guild{
		ID: "1",
		VoiceStates: []*discordgo.VoiceState{
			{GuildID: "1", UserID: "100", ChannelID: "600"},
			{GuildID: "1", UserID: "101", ChannelID: ""},
		},
	})
	if err != nil {
		t.Fatalf("GuildAdd() error = %v", err)
	}
	provider := NewVoiceStateProvider(&discordgo.Session{State: state})

	tests := []struct {
		name    string
		guildID snowflake.ID
		userID  snowflake.ID
		want    snowflake.ID
	}{
		{name: "user in voice", guildID: 1, userID: 100, want: 600},
		{name: "user left voice", guildID: 1, userID: 101, want: 0},
		{name: "user never joined", guildID: 1, userID: 102, want: 0},
		{name: "guild not cached", guildID: 2, userID: 100, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := provider.GetUserVoiceChannel(tt.guildID, tt.userID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected channel %d, got %d", tt.want, got)
			}
		})
	}
}
