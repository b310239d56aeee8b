package usecases

import (
	"context"
	"log/slog"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodybot/internal/modules/music_player/domain"
)

// PlayInput contains the input for the Play use case.
type PlayInput struct {
	GuildID               snowflake.ID
	UserID                snowflake.ID
	NotificationChannelID snowflake.ID
	Query                 string
	Source                domain.SearchSource // Optional: search source for non-URL queries
	Count                 int                 // Max tracks to enqueue (search results or playlist items)
}

// PlayOutput contains the result of the Play use case.
type PlayOutput struct {
	Tracks []domain.Track
	*EnqueueOutput
}

// PlayService joins the requester's channel, resolves the query and enqueues the result.
type PlayService struct {
	voice      *VoiceChannelService
	loader     *TrackLoaderService
	controller *PlaybackController
}

// NewPlayService creates a new PlayService.
func NewPlayService(
	voice *VoiceChannelService,
	loader *TrackLoaderService,
	controller *PlaybackController,
) *PlayService {
	return &PlayService{
		voice:      voice,
		loader:     loader,
		controller: controller,
	}
}

// Play runs join, resolve and enqueue. Resolution holds no guild lock;
// only the final enqueue is serialized.
func (p *PlayService) Play(ctx context.Context, input PlayInput) (*PlayOutput, error) {
	_, err := p.voice.Join(ctx, JoinInput{
		GuildID:               input.GuildID,
		UserID:                input.UserID,
		NotificationChannelID: input.NotificationChannelID,
	})
	if err != nil {
		return nil, err
	}
	p.controller.Touch(input.GuildID)

	loaded, err := p.loader.LoadTracks(ctx, LoadTracksInput{
		Query:       input.Query,
		Source:      input.Source,
		Count:       input.Count,
		RequesterID: input.UserID,
	})
	if err != nil {
		return nil, err
	}

	enqueued, err := p.controller.Enqueue(ctx, EnqueueInput{
		GuildID:               input.GuildID,
		Tracks:                loaded.Tracks,
		NotificationChannelID: input.NotificationChannelID,
		RequireVoice:          true,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("queued tracks from query",
		"guild", input.GuildID,
		"user", input.UserID,
		"count", len(loaded.Tracks),
		"started", enqueued.NowPlaying,
	)

	return &PlayOutput{
		Tracks:        loaded.Tracks,
		EnqueueOutput: enqueued,
	}, nil
}
