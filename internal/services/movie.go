package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/marquee/apiserver/internal/logging"
	"github.com/marquee/apiserver/internal/storage"
	"github.com/marquee/apiserver/types"
)

const (
	minReleaseYear = 1888
	maxReleaseYear = 2100
)

// ErrPostersDisabled is returned by poster operations when no object store
// is configured.
var ErrPostersDisabled = errors.New("poster storage is not configured")

// MovieRepository defines persistence operations for movies.
type MovieRepository interface {
	List(ctx context.Context, offset, limit int) ([]types.Movie, int, error)
	Get(ctx context.Context, id int) (types.Movie, error)
	Create(ctx context.Context, movie types.Movie) (types.Movie, error)
	Update(ctx context.Context, movie types.Movie) (types.Movie, error)
	SetPosterKey(ctx context.Context, id int, key string) error
	Delete(ctx context.Context, id int) error
}

// PosterStore is the object storage subset used for posters.
type PosterStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// MovieService encapsulates movie use-cases.
type MovieService struct {
	repo    MovieRepository
	posters PosterStore
	events  EventPublisher
}

// NewMovieService constructs a MovieService. posters and events may be nil.
func NewMovieService(repo MovieRepository, posters PosterStore, events EventPublisher) *MovieService {
	return &MovieService{repo: repo, posters: posters, events: events}
}

func (s *MovieService) List(ctx context.Context, offset, limit int) ([]types.Movie, int, error) {
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, offset, limit)
}

func (s *MovieService) Get(ctx context.Context, id int) (types.Movie, error) {
	return s.repo.Get(ctx, id)
}

// Create stores movie on behalf of subject.
func (s *MovieService) Create(ctx context.Context, subject string, movie types.Movie) (types.Movie, error) {
	movie = normalizeMovie(movie)
	if err := validateMovie(movie); err != nil {
		return types.Movie{}, err
	}
	movie.PosterKey = ""
	movie.CreatedBy = subject

	created, err := s.repo.Create(ctx, movie)
	if err != nil {
		return types.Movie{}, err
	}
	publish(ctx, s.events, types.Event{
		Type:       types.EventMovieCreated,
		Subject:    subject,
		ResourceID: created.ID,
		Data:       created,
	})
	return created, nil
}

func (s *MovieService) Update(ctx context.Context, subject string, movie types.Movie) (types.Movie, error) {
	movie = normalizeMovie(movie)
	if err := validateMovie(movie); err != nil {
		return types.Movie{}, err
	}

	updated, err := s.repo.Update(ctx, movie)
	if err != nil {
		return types.Movie{}, err
	}
	publish(ctx, s.events, types.Event{
		Type:       types.EventMovieUpdated,
		Subject:    subject,
		ResourceID: updated.ID,
		Data:       updated,
	})
	return updated, nil
}

// Delete removes the movie and, best effort, its poster object.
func (s *MovieService) Delete(ctx context.Context, subject string, id int) error {
	movie, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if movie.PosterKey != "" && s.posters != nil {
		if err := s.posters.Delete(ctx, movie.PosterKey); err != nil {
			logging.FromContext(ctx).WarnContext(ctx, "delete poster failed",
				"movie_id", id, "key", movie.PosterKey, "err", err)
		}
	}

	publish(ctx, s.events, types.Event{
		Type:       types.EventMovieDeleted,
		Subject:    subject,
		ResourceID: id,
	})
	return nil
}

// PutPoster uploads a poster image and records its key on the movie.
func (s *MovieService) PutPoster(ctx context.Context, subject string, id int, r io.Reader, size int64, contentType string) (types.Movie, error) {
	if s.posters == nil {
		return types.Movie{}, ErrPostersDisabled
	}
	key, ok := storage.PosterKey(id, contentType)
	if !ok {
		return types.Movie{}, fmt.Errorf("%w: unsupported poster content type %q", ErrInvalidInput, contentType)
	}

	movie, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Movie{}, err
	}

	if err := s.posters.Put(ctx, key, r, size, contentType); err != nil {
		return types.Movie{}, fmt.Errorf("upload poster: %w", err)
	}
	if err := s.repo.SetPosterKey(ctx, id, key); err != nil {
		return types.Movie{}, err
	}
	if movie.PosterKey != "" && movie.PosterKey != key {
		if err := s.posters.Delete(ctx, movie.PosterKey); err != nil {
			logging.FromContext(ctx).WarnContext(ctx, "delete replaced poster failed",
				"movie_id", id, "key", movie.PosterKey, "err", err)
		}
	}
	movie.PosterKey = key

	publish(ctx, s.events, types.Event{
		Type:       types.EventMoviePosterUpdated,
		Subject:    subject,
		ResourceID: id,
		Data:       map[string]string{"poster_key": key},
	})
	return movie, nil
}

// GetPoster opens the poster of movie id. The caller closes the reader.
func (s *MovieService) GetPoster(ctx context.Context, id int) (io.ReadCloser, string, error) {
	if s.posters == nil {
		return nil, "", ErrPostersDisabled
	}
	movie, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if movie.PosterKey == "" {
		return nil, "", storage.ErrObjectNotFound
	}
	reader, err := s.posters.Get(ctx, movie.PosterKey)
	if err != nil {
		return nil, "", err
	}
	return reader, posterContentType(movie.PosterKey), nil
}

func posterContentType(key string) string {
	switch {
	case strings.HasSuffix(key, ".png"):
		return "image/png"
	case strings.HasSuffix(key, ".webp"):
		return "image/webp"
	case strings.HasSuffix(key, ".gif"):
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

func normalizeMovie(movie types.Movie) types.Movie {
	movie.Title = strings.TrimSpace(movie.Title)
	movie.Director = strings.TrimSpace(movie.Director)
	movie.Genre = strings.TrimSpace(movie.Genre)
	movie.Description = strings.TrimSpace(movie.Description)
	return movie
}

func validateMovie(movie types.Movie) error {
	if movie.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if movie.ReleaseYear != 0 && (movie.ReleaseYear < minReleaseYear || movie.ReleaseYear > maxReleaseYear) {
		return fmt.Errorf("%w: release_year must be between %d and %d", ErrInvalidInput, minReleaseYear, maxReleaseYear)
	}
	return nil
}
