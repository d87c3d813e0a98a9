package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/marquee/apiserver/internal/auth"
	"github.com/marquee/apiserver/internal/logging"
	"github.com/marquee/apiserver/internal/services"
	"github.com/marquee/apiserver/internal/store"
	"github.com/marquee/apiserver/types"
)

const tokenTypeBearer = "bearer"

// AuthHandler provides token endpoints.
type AuthHandler struct {
	authn   *auth.Authenticator
	users   *services.UserService
	limiter *LoginLimiter
}

// NewAuthHandler constructs an AuthHandler. limiter may be nil.
func NewAuthHandler(authn *auth.Authenticator, users *services.UserService, limiter *LoginLimiter) *AuthHandler {
	return &AuthHandler{
		authn:   authn,
		users:   users,
		limiter: limiter,
	}
}

// TokenRouter registers the OAuth2 password-grant style token endpoint.
func TokenRouter(r chi.Router, handler *AuthHandler) {
	r.Post("/", handler.Token)
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler, guard *Guard) {
	r.Post("/login", handler.Login)
	r.With(guard.Authenticated).Get("/me", handler.Me)
}

// Token accepts form-encoded username and password and returns a bearer token.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if grant := strings.TrimSpace(r.PostForm.Get("grant_type")); grant != "" && grant != "password" {
		writeError(w, http.StatusBadRequest, "unsupported grant_type")
		return
	}

	username := strings.TrimSpace(r.PostForm.Get("username"))
	password := r.PostForm.Get("password")
	if username == "" || password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	session, ok := h.login(w, r, username, password)
	if !ok {
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, TokenResponse{
		AccessToken: session.Token,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   int64(session.Claims.ExpiresAt.Sub(session.Claims.IssuedAt).Seconds()),
		Roles:       session.Claims.Roles,
	})
}

// Login verifies JSON credentials and returns a token with the user record.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	session, ok := h.login(w, r, req.Username, req.Password)
	if !ok {
		return
	}

	user, err := h.users.GetBySubject(r.Context(), session.Claims.Subject)
	if err != nil {
		writeServiceError(w, r, err, "user not found", "failed to load user")
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, AuthResponse{
		Token:     session.Token,
		ExpiresAt: session.Claims.ExpiresAt,
		User:      user,
	})
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.users.GetBySubject(r.Context(), claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		writeServiceError(w, r, err, "user not found", "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, MeResponse{User: user, TokenRoles: claims.Roles})
}

// login runs the rate limit and credential check, writing the error response
// itself when it returns false.
func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request, username, password string) (auth.Session, bool) {
	if ok, retryAfter := h.limiter.Allow(r, username); !ok {
		seconds := max(int(math.Ceil(retryAfter.Seconds())), 1)
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		logging.FromContext(r.Context()).WarnContext(r.Context(), "login rate limit exceeded",
			"username", username, "retry_after", seconds)
		writeError(w, http.StatusTooManyRequests, "too many login attempts")
		return auth.Session{}, false
	}

	session, err := h.authn.Login(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			logging.FromContext(r.Context()).InfoContext(r.Context(), "login failed", "username", username)
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return auth.Session{}, false
		}
		logging.FromContext(r.Context()).ErrorContext(r.Context(), "login error", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return auth.Session{}, false
	}
	return session, true
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse follows the OAuth2 token response shape.
type TokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int64       `json:"expires_in"`
	Roles       []auth.Role `json:"roles"`
}

type AuthResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      types.User `json:"user"`
}

type MeResponse struct {
	User       types.User  `json:"user"`
	TokenRoles []auth.Role `json:"token_roles"`
}
