package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/skilltracker/apiserver/internal/identity"
	"github.com/skilltracker/apiserver/internal/services"
	"github.com/skilltracker/apiserver/internal/store"
)

// UserHandler provides the account endpoints.
type UserHandler struct {
	users *services.UserService
	auth  *services.AuthService
}

// NewUserHandler constructs a UserHandler with the provided dependencies.
func NewUserHandler(users *services.UserService, auth *services.AuthService) *UserHandler {
	return &UserHandler{users: users, auth: auth}
}

// UserRouter registers the /users routes. Registration is public; every
// other route requires the caller to be the addressed user.
func UserRouter(r chi.Router, users *services.UserService, auth *services.AuthService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewUserHandler(users, auth)

	r.Post("/", handler.Register)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/{id}", handler.Get)
		r.Put("/{id}", handler.Update)
		r.Delete("/{id}", handler.Delete)
	})
}

// Register creates a new user account.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	user, err := h.users.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyCredentials):
			writeError(w, http.StatusBadRequest, "username and password must not be empty")
		case errors.Is(err, store.ErrDuplicateUsername):
			writeError(w, http.StatusBadRequest, "username already exists")
		default:
			writeError(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// Get returns the user with the embedded skill list.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorizeTarget(w, r)
	if !ok {
		return
	}

	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// Update applies a partial profile update. Empty fields are ignored.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorizeTarget(w, r)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), id, strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		case errors.Is(err, store.ErrStaleWrite):
			writeError(w, http.StatusConflict, "user was modified concurrently")
		case errors.Is(err, store.ErrDuplicateUsername):
			writeError(w, http.StatusBadRequest, "username already exists")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update user")
		}
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// Delete removes the account and its skills. Skills that could not be
// cascade-deleted are reported as warnings; the deletion still succeeds.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorizeTarget(w, r)
	if !ok {
		return
	}

	failed, err := h.users.Delete(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}

	writeJSON(w, http.StatusOK, DeleteUserResponse{Deleted: true, FailedSkillIDs: failed})
}

// authorizeTarget parses the {id} path segment and enforces the ownership
// rule: the authenticated caller must be the addressed user.
func (h *UserHandler) authorizeTarget(w http.ResponseWriter, r *http.Request) (identity.ID, bool) {
	target, err := identity.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return identity.ID{}, false
	}

	caller, err := callerIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return identity.ID{}, false
	}

	if err := h.auth.Authorize(caller, target); err != nil {
		writeError(w, http.StatusForbidden, "forbidden")
		return identity.ID{}, false
	}
	return target, true
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type UpdateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type DeleteUserResponse struct {
	Deleted bool `json:"deleted"`

	// FailedSkillIDs lists skills whose cascade deletion failed and which
	// may remain in the skill store.
	FailedSkillIDs []identity.ID `json:"failed_skill_ids,omitempty"`
}
