// Package api provides HTTP handlers for the PrepWise API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ashureev/prepwise/internal/store"
)

// Handler provides common handler utilities.
type Handler struct {
	repo  store.Repository
	isDev bool
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, isDev bool) *Handler {
	return &Handler{
		repo:  repo,
		isDev: isDev,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a bounded JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}

// secureCookies reports whether cookies must carry the Secure flag.
func (h *Handler) secureCookies() bool {
	return !h.isDev
}
