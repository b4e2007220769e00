package domain

// Track is an immutable queue entry. Once enqueued it is only ever moved
// between the queue and the current-track slot, or discarded.
type Track struct {
	ID              string        `json:"id"`
	SourceID        string        `json:"source_id"`
	Title           string        `json:"title"`
	Artist          string        `json:"artist"`
	ThumbnailURL    string        `json:"thumbnail_url"`
	DurationSeconds int           `json:"duration_seconds"`
	Platform        string        `json:"platform"`
	MediaURL        string        `json:"media_url"`
	AddedBy         ParticipantID `json:"added_by"`
}
