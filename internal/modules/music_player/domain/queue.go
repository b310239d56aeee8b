package domain

// Queue is a FIFO sequence of tracks waiting to be played.
// Insertion order is play order; the head is removed when it starts playing.
type Queue struct {
	tracks []Track
}

// NewQueue creates a new empty Queue.
func NewQueue() Queue {
	return Queue{
		tracks: make([]Track, 0),
	}
}

// IsEmpty returns true if the queue has no tracks.
func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

// Len returns the number of queued tracks.
func (q *Queue) Len() int {
	return len(q.tracks)
}

// Append adds tracks to the end of the queue, preserving their order.
func (q *Queue) Append(tracks ...Track) {
	q.tracks = append(q.tracks, tracks...)
}

// Peek returns the head of the queue without removing it.
func (q *Queue) Peek() (Track, bool) {
	if q.IsEmpty() {
		return Track{}, false
	}
	return q.tracks[0], true
}

// Pop removes and returns the head of the queue.
func (q *Queue) Pop() (Track, bool) {
	if q.IsEmpty() {
		return Track{}, false
	}

	head := q.tracks[0]
	q.tracks[0] = Track{}
	q.tracks = q.tracks[1:]
	return head, true
}

// DropFront removes up to n tracks from the head of the queue.
// Returns the number of tracks actually removed.
func (q *Queue) DropFront(n int) int {
	if n <= 0 {
		return 0
	}
	if n > q.Len() {
		n = q.Len()
	}

	rest := make([]Track, q.Len()-n)
	copy(rest, q.tracks[n:])
	q.tracks = rest
	return n
}

// GetAt returns the track at the given 0-based index without removing it.
func (q *Queue) GetAt(index int) (Track, bool) {
	if index < 0 || index >= q.Len() {
		return Track{}, false
	}
	return q.tracks[index], true
}

// RemoveAt removes and returns the track at the given 0-based index.
func (q *Queue) RemoveAt(index int) (Track, bool) {
	if index < 0 || index >= q.Len() {
		return Track{}, false
	}

	removed := q.tracks[index]
	q.tracks = append(q.tracks[:index], q.tracks[index+1:]...)
	return removed, true
}

// List returns a copy of all queued tracks.
func (q *Queue) List() []Track {
	result := make([]Track, q.Len())
	copy(result, q.tracks)
	return result
}

// Clear removes all tracks from the queue.
func (q *Queue) Clear() {
	q.tracks = make([]Track, 0)
}
