package usecases

import (
	"context"
	"errors"
	"log/slog"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodybot/internal/modules/music_player/application/ports"
	"github.com/sglre6355/melodybot/internal/modules/music_player/domain"
)

// JoinInput contains the input for the Join use case.
type JoinInput struct {
	GuildID               snowflake.ID
	UserID                snowflake.ID
	NotificationChannelID snowflake.ID
	VoiceChannelID        snowflake.ID // Optional: specific channel to join (0 means use user's channel)
}

// JoinOutput contains the result of the Join use case.
type JoinOutput struct {
	VoiceChannelID snowflake.ID
	AlreadyJoined  bool
}

// LeaveInput contains the input for the Leave use case.
type LeaveInput struct {
	GuildID snowflake.ID
}

// BotVoiceStateChangeInput contains the input for handling bot voice state changes.
type BotVoiceStateChangeInput struct {
	GuildID      snowflake.ID
	NewChannelID *snowflake.ID // nil means disconnected
}

// VoiceChannelService handles voice channel operations.
type VoiceChannelService struct {
	store           domain.GuildStateStore
	voiceConnection ports.VoiceConnection
	voiceState      ports.VoiceStateProvider
	publisher       ports.EventPublisher
}

// NewVoiceChannelService creates a new VoiceChannelService.
func NewVoiceChannelService(
	store domain.GuildStateStore,
	voiceConnection ports.VoiceConnection,
	voiceState ports.VoiceStateProvider,
	publisher ports.EventPublisher,
) *VoiceChannelService {
	return &VoiceChannelService{
		store:           store,
		voiceConnection: voiceConnection,
		voiceState:      voiceState,
		publisher:       publisher,
	}
}

// Join joins the bot to a voice channel. If the bot is already in the target
// channel only the notification channel is updated.
func (v *VoiceChannelService) Join(ctx context.Context, input JoinInput) (*JoinOutput, error) {
	voiceChannelID := input.VoiceChannelID
	if voiceChannelID == 0 {
		userChannel, err := v.voiceState.GetUserVoiceChannel(input.GuildID, input.UserID)
		if err != nil {
			return nil, err
		}
		if userChannel == 0 {
			return nil, ErrUserNotInVoice
		}
		voiceChannelID = userChannel
	}

	state := v.store.GetOrCreate(input.GuildID)

	state.Lock()
	current := state.VoiceChannelID()
	if input.NotificationChannelID != 0 {
		state.SetNotificationChannelID(input.NotificationChannelID)
	}
	state.Unlock()

	if current == voiceChannelID {
		return &JoinOutput{VoiceChannelID: voiceChannelID, AlreadyJoined: true}, nil
	}

	// Joining waits on gateway events, so it happens outside the guild lock
	if err := v.voiceConnection.JoinChannel(ctx, input.GuildID, voiceChannelID); err != nil {
		return nil, err
	}

	state.Lock()
	state.SetVoiceChannelID(voiceChannelID)
	state.Unlock()

	slog.Info("joined voice channel", "guild", input.GuildID, "channel", voiceChannelID)

	return &JoinOutput{VoiceChannelID: voiceChannelID}, nil
}

// Leave resets the guild's playback and leaves the voice channel.
func (v *VoiceChannelService) Leave(ctx context.Context, input LeaveInput) error {
	state := v.store.Get(input.GuildID)
	if state == nil {
		return ErrNotConnected
	}

	state.Lock()
	if state.VoiceChannelID() == 0 && !state.Status().IsActive() {
		state.Unlock()
		return ErrNotConnected
	}
	msg := state.Reset()
	state.Unlock()

	v.publisher.PublishPlaybackIdle(domain.PlaybackIdleEvent{
		GuildID:         input.GuildID,
		ProgressMessage: msg,
	})

	err := v.voiceConnection.LeaveChannel(ctx, input.GuildID)
	if err != nil && !errors.Is(err, ports.ErrNoVoiceSession) {
		return err
	}

	slog.Info("left voice channel", "guild", input.GuildID)
	return nil
}

// HandleBotVoiceStateChange handles external voice state changes (bot moved or disconnected).
// This should be called when the bot's voice state changes due to external factors
// (e.g., being moved by a user or disconnected by Discord).
func (v *VoiceChannelService) HandleBotVoiceStateChange(input BotVoiceStateChangeInput) {
	state := v.store.Get(input.GuildID)
	if state == nil {
		// No guild state exists, nothing to do
		return
	}

	state.Lock()

	if input.NewChannelID == nil {
		if state.VoiceChannelID() == 0 && !state.Status().IsActive() {
			state.Unlock()
			return
		}
		msg := state.Reset()
		state.Unlock()

		slog.Info("bot was disconnected from voice, reset guild", "guild", input.GuildID)
		v.publisher.PublishPlaybackIdle(domain.PlaybackIdleEvent{
			GuildID:         input.GuildID,
			ProgressMessage: msg,
		})
		return
	}

	if *input.NewChannelID != state.VoiceChannelID() {
		state.SetVoiceChannelID(*input.NewChannelID)
	}
	state.Unlock()
}
