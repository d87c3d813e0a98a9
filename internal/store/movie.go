package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/marquee/apiserver/types"
)

const movieColumns = `id, title, director, genre, release_year, description, poster_key, created_by, created_at, updated_at`

// MovieRepository handles persistence for movies.
type MovieRepository struct {
	db *sql.DB
}

func NewMovieRepository(db *sql.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

func scanMovie(row rowScanner) (types.Movie, error) {
	var movie types.Movie
	err := row.Scan(
		&movie.ID,
		&movie.Title,
		&movie.Director,
		&movie.Genre,
		&movie.ReleaseYear,
		&movie.Description,
		&movie.PosterKey,
		&movie.CreatedBy,
		&movie.CreatedAt,
		&movie.UpdatedAt,
	)
	return movie, err
}

func (r *MovieRepository) List(ctx context.Context, offset, limit int) ([]types.Movie, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	const countQuery = `SELECT COUNT(1) FROM movies`
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, 0, err
	}

	const listQuery = `
		SELECT ` + movieColumns + `
		FROM movies
		ORDER BY id
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, listQuery, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	movies := make([]types.Movie, 0, limit)
	for rows.Next() {
		movie, err := scanMovie(rows)
		if err != nil {
			return nil, 0, err
		}
		movies = append(movies, movie)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return movies, total, nil
}

func (r *MovieRepository) Get(ctx context.Context, id int) (types.Movie, error) {
	const query = `
		SELECT ` + movieColumns + `
		FROM movies
		WHERE id = $1`
	movie, err := scanMovie(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Movie{}, ErrNotFound
		}
		return types.Movie{}, err
	}
	return movie, nil
}

func (r *MovieRepository) Create(ctx context.Context, movie types.Movie) (types.Movie, error) {
	now := time.Now()
	movie.CreatedAt = now
	movie.UpdatedAt = now

	const query = `
		INSERT INTO movies (title, director, genre, release_year, description, poster_key, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		movie.Title,
		movie.Director,
		movie.Genre,
		movie.ReleaseYear,
		movie.Description,
		movie.PosterKey,
		movie.CreatedBy,
		movie.CreatedAt,
		movie.UpdatedAt,
	).Scan(&movie.ID); err != nil {
		return types.Movie{}, mapWriteError(err)
	}
	return movie, nil
}

// Update overwrites the editable fields and returns the stored row.
func (r *MovieRepository) Update(ctx context.Context, movie types.Movie) (types.Movie, error) {
	const query = `
		UPDATE movies
		SET title = $1,
			director = $2,
			genre = $3,
			release_year = $4,
			description = $5,
			updated_at = $6
		WHERE id = $7
		RETURNING ` + movieColumns
	updated, err := scanMovie(r.db.QueryRowContext(
		ctx,
		query,
		movie.Title,
		movie.Director,
		movie.Genre,
		movie.ReleaseYear,
		movie.Description,
		time.Now(),
		movie.ID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Movie{}, ErrNotFound
		}
		return types.Movie{}, mapWriteError(err)
	}
	return updated, nil
}

func (r *MovieRepository) SetPosterKey(ctx context.Context, id int, key string) error {
	const query = `
		UPDATE movies
		SET poster_key = $1,
			updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, key, time.Now(), id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MovieRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM movies WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
