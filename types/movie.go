package types

import "time"

// Movie is a catalogue entry.
type Movie struct {
	// ID is the unique identifier of the movie.
	ID int `json:"id" db:"id"`

	Title       string `json:"title" db:"title"`
	Director    string `json:"director" db:"director"`
	Genre       string `json:"genre" db:"genre"`
	ReleaseYear int    `json:"release_year" db:"release_year"`
	Description string `json:"description" db:"description"`

	// PosterKey is the object storage key of the poster image, empty when
	// no poster has been uploaded.
	PosterKey string `json:"poster_key,omitempty" db:"poster_key"`

	// CreatedBy is the subject of the user that created the movie.
	CreatedBy string `json:"created_by" db:"created_by"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
