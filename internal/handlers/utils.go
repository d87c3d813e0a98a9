package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/marquee/apiserver/internal/auth"
	"github.com/marquee/apiserver/internal/logging"
	"github.com/marquee/apiserver/internal/services"
	"github.com/marquee/apiserver/internal/storage"
	"github.com/marquee/apiserver/internal/store"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
	maxJSONBytes = 1 << 20
)

type contextKey string

const contextClaimsKey contextKey = "claims"

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ListResponse is the paginated list response payload.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

func withClaims(ctx context.Context, claims auth.Claims) context.Context {
	return context.WithValue(ctx, contextClaimsKey, claims)
}

func claimsFromContext(ctx context.Context) (auth.Claims, error) {
	claims, ok := ctx.Value(contextClaimsKey).(auth.Claims)
	if !ok || strings.TrimSpace(claims.Subject) == "" {
		return auth.Claims{}, errors.New("missing subject")
	}
	return claims, nil
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid request")
	}
	return nil
}

// writeServiceError maps service and store errors onto HTTP statuses.
// notFound is the message used for store.ErrNotFound.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, notFound, fallback string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, notFound)
	case errors.Is(err, storage.ErrObjectNotFound):
		writeError(w, http.StatusNotFound, "poster not found")
	case errors.Is(err, services.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, services.ErrPostersDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		logging.FromContext(r.Context()).ErrorContext(r.Context(), fallback, "err", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, errors.New("invalid page")
		}
	}

	rawLimit := strings.TrimSpace(r.URL.Query().Get("limit"))
	if rawLimit == "" {
		rawLimit = strings.TrimSpace(r.URL.Query().Get("per_page"))
	}
	if rawLimit != "" {
		limit, err = strconv.Atoi(rawLimit)
		if err != nil || limit < 1 {
			return 0, 0, 0, errors.New("invalid limit")
		}
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	offset = (page - 1) * limit
	return page, limit, offset, nil
}

func parseID(r *http.Request, param, label string) (int, error) {
	raw := chi.URLParam(r, param)
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid " + label + " id")
	}
	return id, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, errors.New("failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, errors.New("uploaded file too large")
	}
	return data, nil
}
