package handlers

import (
	"bytes"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/marquee/apiserver/internal/auth"
	"github.com/marquee/apiserver/internal/logging"
	"github.com/marquee/apiserver/internal/services"
	"github.com/marquee/apiserver/types"
)

const maxPosterBytes = 10 << 20

// MovieHandler provides HTTP handlers for movies.
type MovieHandler struct {
	movies *services.MovieService
}

func NewMovieHandler(movies *services.MovieService) *MovieHandler {
	return &MovieHandler{movies: movies}
}

// MovieRouter registers movie routes on the given router. Every route is
// guarded by the operation it performs.
func MovieRouter(r chi.Router, movies *services.MovieService, guard *Guard) {
	handler := NewMovieHandler(movies)

	r.With(guard.Require(auth.OpList)).Get("/", handler.ListMovies)
	r.With(guard.Require(auth.OpCreate)).Post("/", handler.CreateMovie)
	r.Route("/{movieID}", func(r chi.Router) {
		r.With(guard.Require(auth.OpRead)).Get("/", handler.GetMovie)
		r.With(guard.Require(auth.OpUpdate)).Put("/", handler.UpdateMovie)
		r.With(guard.Require(auth.OpDelete)).Delete("/", handler.DeleteMovie)
		r.With(guard.Require(auth.OpRead)).Get("/poster", handler.GetPoster)
		r.With(guard.Require(auth.OpUpdate)).Put("/poster", handler.PutPoster)
	})
}

func (h *MovieHandler) ListMovies(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.movies.List(r.Context(), offset, limit)
	if err != nil {
		writeServiceError(w, r, err, "movie not found", "failed to list movies")
		return
	}

	writeJSON(w, http.StatusOK, ListResponse[types.Movie]{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *MovieHandler) GetMovie(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "movieID", "movie")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	movie, err := h.movies.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "movie not found", "failed to fetch movie")
		return
	}

	writeJSON(w, http.StatusOK, movie)
}

func (h *MovieHandler) CreateMovie(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req MovieRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.movies.Create(r.Context(), claims.Subject, req.toMovie(0))
	if err != nil {
		writeServiceError(w, r, err, "movie not found", "failed to create movie")
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (h *MovieHandler) UpdateMovie(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseID(r, "movieID", "movie")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req MovieRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.movies.Update(r.Context(), claims.Subject, req.toMovie(id))
	if err != nil {
		writeServiceError(w, r, err, "movie not found", "failed to update movie")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *MovieHandler) DeleteMovie(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseID(r, "movieID", "movie")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.movies.Delete(r.Context(), claims.Subject, id); err != nil {
		writeServiceError(w, r, err, "movie not found", "failed to delete movie")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PutPoster stores the raw request body as the movie's poster image.
func (h *MovieHandler) PutPoster(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, err := parseID(r, "movieID", "movie")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := readFileLimited(r.Body, maxPosterBytes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "poster body is empty")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	movie, err := h.movies.PutPoster(r.Context(), claims.Subject, id, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		writeServiceError(w, r, err, "movie not found", "failed to store poster")
		return
	}

	writeJSON(w, http.StatusOK, movie)
}

func (h *MovieHandler) GetPoster(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "movieID", "movie")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	reader, contentType, err := h.movies.GetPoster(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err, "movie not found", "failed to fetch poster")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if n, err := io.Copy(w, reader); err != nil {
		logging.FromContext(r.Context()).WarnContext(r.Context(), "poster stream interrupted",
			"movie_id", strconv.Itoa(id), "bytes", n, "err", err)
	}
}

// MovieRequest is the JSON body for creating or replacing a movie.
type MovieRequest struct {
	Title       string `json:"title"`
	Director    string `json:"director"`
	Genre       string `json:"genre"`
	ReleaseYear int    `json:"release_year"`
	Description string `json:"description"`
}

func (req MovieRequest) toMovie(id int) types.Movie {
	return types.Movie{
		ID:          id,
		Title:       req.Title,
		Director:    req.Director,
		Genre:       req.Genre,
		ReleaseYear: req.ReleaseYear,
		Description: req.Description,
	}
}
