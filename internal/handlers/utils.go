package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/skilltracker/apiserver/internal/identity"
)

type contextKey string

const contextSubjectKey contextKey = "sub"

// ErrorResponse is the uniform error body. Retryable marks failures the
// client may safely retry, such as a surfaced partial write.
type ErrorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

func callerIDFromContext(ctx context.Context) (identity.ID, error) {
	id, ok := ctx.Value(contextSubjectKey).(identity.ID)
	if !ok || id.IsZero() {
		return identity.ID{}, errors.New("missing subject")
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeRetryableError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Retryable: true})
}

// Healthz reports process liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
