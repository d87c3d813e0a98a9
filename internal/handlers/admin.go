package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/marquee/apiserver/internal/auth"
	"github.com/marquee/apiserver/internal/logging"
	"github.com/marquee/apiserver/internal/services"
	"github.com/marquee/apiserver/types"
)

// AdminHandler manages user accounts.
type AdminHandler struct {
	users *services.UserService
	authn *auth.Authenticator
}

func NewAdminHandler(users *services.UserService, authn *auth.Authenticator) *AdminHandler {
	return &AdminHandler{users: users, authn: authn}
}

// AdminRouter registers account management routes. Listing needs the admin
// tier; creating an account needs the root tier and a grant check on the
// requested roles.
func AdminRouter(r chi.Router, users *services.UserService, authn *auth.Authenticator, guard *Guard) {
	handler := NewAdminHandler(users, authn)

	r.With(guard.RequireSet(auth.AdminTier())).Get("/users", handler.ListUsers)
	r.With(guard.RequireSet(auth.RootTier())).Post("/users", handler.CreateUser)
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.users.List(r.Context(), offset, limit)
	if err != nil {
		writeServiceError(w, r, err, "user not found", "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, ListResponse[types.User]{
		Items: items,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.authn.AuthorizeGrant(claims, req.Roles); err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidGrant):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrForbidden):
			logging.FromContext(r.Context()).WarnContext(r.Context(), "role grant denied",
				"sub", claims.Subject, "roles", claims.Roles, "requested", req.Roles)
			writeError(w, http.StatusForbidden, "forbidden")
		default:
			writeError(w, http.StatusInternalServerError, "failed to authorize")
		}
		return
	}

	created, err := h.users.Create(r.Context(), claims.Subject, services.NewUser{
		Username: req.Username,
		Password: req.Password,
		Roles:    req.Roles,
		Client:   req.Client,
	})
	if err != nil {
		writeServiceError(w, r, err, "user not found", "failed to create user")
		return
	}

	logging.FromContext(r.Context()).InfoContext(r.Context(), "user created",
		"sub", claims.Subject, "user_id", created.ID, "roles", created.Roles)
	writeJSON(w, http.StatusCreated, created)
}

type CreateUserRequest struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Roles    []auth.Role `json:"roles"`
	Client   string      `json:"client"`
}
