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
	"github.com/skilltracker/apiserver/types"
)

// SkillHandler provides the per-user skill endpoints. All mutations go
// through the coordinated operations of the skill service.
type SkillHandler struct {
	skills *services.SkillService
	auth   *services.AuthService
}

// NewSkillHandler constructs a SkillHandler with the provided dependencies.
func NewSkillHandler(skills *services.SkillService, auth *services.AuthService) *SkillHandler {
	return &SkillHandler{skills: skills, auth: auth}
}

// SkillRouter registers the /users/{id}/skills routes. The enclosing
// router applies the auth middleware.
func SkillRouter(r chi.Router, skills *services.SkillService, auth *services.AuthService) {
	handler := NewSkillHandler(skills, auth)

	r.Post("/", handler.Create)
	r.Get("/", handler.List)
	r.Put("/{skillId}", handler.Update)
	r.Delete("/{skillId}", handler.Delete)
}

// Create adds a skill to the addressed user.
func (h *SkillHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorizeTarget(w, r)
	if !ok {
		return
	}

	var req SkillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	created, err := h.skills.AddSkill(r.Context(), userID, types.Skill{
		Name:        strings.TrimSpace(req.Name),
		Proficiency: strings.TrimSpace(req.Proficiency),
	})
	if err != nil {
		h.writeSkillError(w, err, http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

// List returns the user's skills in insertion order.
func (h *SkillHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorizeTarget(w, r)
	if !ok {
		return
	}

	skills, err := h.skills.GetAll(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load skills")
		return
	}
	if skills == nil {
		skills = []types.Skill{}
	}

	writeJSON(w, http.StatusOK, skills)
}

// Update applies a partial patch to one of the user's skills. Empty
// fields are ignored.
func (h *SkillHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorizeTarget(w, r)
	if !ok {
		return
	}
	skillID, err := identity.Parse(chi.URLParam(r, "skillId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid skill id")
		return
	}

	var req SkillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	updated, err := h.skills.UpdateSkill(r.Context(), userID, skillID, types.Skill{
		Name:        strings.TrimSpace(req.Name),
		Proficiency: strings.TrimSpace(req.Proficiency),
	})
	if err != nil {
		h.writeSkillError(w, err, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// Delete removes one of the user's skills.
func (h *SkillHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authorizeTarget(w, r)
	if !ok {
		return
	}
	skillID, err := identity.Parse(chi.URLParam(r, "skillId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid skill id")
		return
	}

	if err := h.skills.RemoveSkill(r.Context(), userID, skillID); err != nil {
		h.writeSkillError(w, err, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// writeSkillError maps coordinator failures to response codes.
// userNotFoundStatus distinguishes create (400, invalid user id) from the
// id-addressed routes (404).
func (h *SkillHandler) writeSkillError(w http.ResponseWriter, err error, userNotFoundStatus int) {
	var partial *services.PartialWriteError
	switch {
	case errors.As(err, &partial):
		writeRetryableError(w, http.StatusInternalServerError, "operation partially applied, retry")
	case errors.Is(err, services.ErrSkillNotFound):
		writeError(w, http.StatusNotFound, "skill not found")
	case errors.Is(err, services.ErrEmptySkillName):
		writeError(w, http.StatusBadRequest, "skill name must not be empty")
	case errors.Is(err, store.ErrDuplicateName):
		writeError(w, http.StatusBadRequest, "skill name already exists")
	case errors.Is(err, store.ErrStaleWrite):
		writeError(w, http.StatusConflict, "user was modified concurrently")
	case errors.Is(err, store.ErrNotFound):
		if userNotFoundStatus == http.StatusBadRequest {
			writeError(w, userNotFoundStatus, "invalid user id")
		} else {
			writeError(w, userNotFoundStatus, "user not found")
		}
	default:
		writeError(w, http.StatusInternalServerError, "failed to apply skill operation")
	}
}

func (h *SkillHandler) authorizeTarget(w http.ResponseWriter, r *http.Request) (identity.ID, bool) {
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

type SkillRequest struct {
	Name        string `json:"name"`
	Proficiency string `json:"proficiency"`
}
