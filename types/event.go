package types

import "time"

// Event types published to the events channel.
const (
	EventMovieCreated       = "movie.created"
	EventMovieUpdated       = "movie.updated"
	EventMovieDeleted       = "movie.deleted"
	EventMoviePosterUpdated = "movie.poster_updated"
	EventUserCreated        = "user.created"
)

// Event is a domain change notification. Payloads never carry credentials.
type Event struct {
	Type       string    `json:"type"`
	Subject    string    `json:"subject,omitempty"`
	ResourceID int       `json:"resource_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data,omitempty"`
}
