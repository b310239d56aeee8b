package usecases

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/melodybot/internal/modules/music_player/domain"
)

const DefaultPageSize = 10

// QueueListInput contains the input for the QueueList use case.
type QueueListInput struct {
	GuildID  snowflake.ID
	Page     int // 1-indexed page number; 0 means the first page
	PageSize int // Items per page (optional, defaults to 10)
}

// QueueListOutput contains the result of the QueueList use case.
type QueueListOutput struct {
	CurrentTrack  *domain.Track
	Status        domain.PlaybackStatus
	Tracks        []domain.Track
	StartPosition int // 1-based queue position of Tracks[0], matching skip positions
	TotalTracks   int
	TotalDuration time.Duration // queued tracks only
	CurrentPage   int
	TotalPages    int
}

// QueueRemoveInput contains the input for the QueueRemove use case.
type QueueRemoveInput struct {
	GuildID  snowflake.ID
	Position int // 1-based queue position
}

// QueueService handles queue inspection and editing.
type QueueService struct {
	store domain.GuildStateStore
}

// NewQueueService creates a new QueueService.
func NewQueueService(store domain.GuildStateStore) *QueueService {
	return &QueueService{
		store: store,
	}
}

// List returns the current track and one page of the queue.
func (q *QueueService) List(input QueueListInput) (*QueueListOutput, error) {
	pageSize := input.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	page := input.Page
	if page <= 0 {
		page = 1
	}

	snapshot := q.store.GetOrCreate(input.GuildID).Snapshot()

	total := len(snapshot.Queue)
	totalPages := max((total+pageSize-1)/pageSize, 1)
	if page > totalPages {
		return nil, ErrInvalidPage
	}

	var duration time.Duration
	for _, track := range snapshot.Queue {
		duration += track.Duration
	}

	start := (page - 1) * pageSize
	end := min(start+pageSize, total)

	return &QueueListOutput{
		CurrentTrack:  snapshot.CurrentTrack,
		Status:        snapshot.Status,
		Tracks:        snapshot.Queue[start:end],
		StartPosition: start + 1,
		TotalTracks:   total,
		TotalDuration: duration,
		CurrentPage:   page,
		TotalPages:    totalPages,
	}, nil
}

// Remove removes the track at a 1-based queue position.
func (q *QueueService) Remove(input QueueRemoveInput) (*domain.Track, error) {
	if input.Position < 1 {
		return nil, ErrInvalidCount
	}

	state := q.store.Get(input.GuildID)
	if state == nil {
		return nil, ErrPositionOutOfRange
	}

	state.Lock()
	defer state.Unlock()

	removed, ok := state.Queue().RemoveAt(input.Position - 1)
	if !ok {
		return nil, ErrPositionOutOfRange
	}
	return &removed, nil
}
