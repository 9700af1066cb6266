package api

import (
	"log/slog"
	"net/http"

	"github.com/ashureev/prepwise/internal/domain"
	"github.com/ashureev/prepwise/internal/identity"
	"github.com/ashureev/prepwise/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// latestInterviewsLimit caps the community interview list.
const latestInterviewsLimit = 20

// InterviewHandler serves interview and feedback reads for the signed-in user.
type InterviewHandler struct {
	*Handler
}

// NewInterviewHandler creates a new interview handler.
func NewInterviewHandler(base *Handler) *InterviewHandler {
	return &InterviewHandler{Handler: base}
}

// RegisterRoutes registers interview routes behind RequireUser.
func (h *InterviewHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/interviews", func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.Get("/", h.List)
		r.Get("/latest", h.Latest)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/feedback", h.Feedback)
	})
}

// List returns the signed-in user's interviews.
func (h *InterviewHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	interviews, err := h.repo.ListInterviewsByUser(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to list interviews", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to list interviews")
		return
	}
	if interviews == nil {
		interviews = []*domain.Interview{}
	}
	JSON(w, http.StatusOK, interviews)
}

// Latest returns recent finalized interviews created by other users.
func (h *InterviewHandler) Latest(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	interviews, err := h.repo.ListLatestInterviews(r.Context(), userID, latestInterviewsLimit)
	if err != nil {
		slog.Error("Failed to list latest interviews", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to list interviews")
		return
	}
	if interviews == nil {
		interviews = []*domain.Interview{}
	}
	JSON(w, http.StatusOK, interviews)
}

// Get returns one interview.
func (h *InterviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	interview, err := h.repo.GetInterview(r.Context(), id)
	if err != nil {
		slog.Error("Failed to get interview", "error", err, "interview_id", id)
		Error(w, http.StatusInternalServerError, "failed to get interview")
		return
	}
	if interview == nil {
		Error(w, http.StatusNotFound, "interview not found")
		return
	}
	JSON(w, http.StatusOK, interview)
}

// Feedback returns the signed-in user's feedback for an interview.
func (h *InterviewHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID := identity.UserIDFromContext(r.Context())
	feedback, err := h.repo.GetFeedback(r.Context(), id, userID)
	if err != nil {
		slog.Error("Failed to get feedback", "error", err, "interview_id", id, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to get feedback")
		return
	}
	if feedback == nil {
		Error(w, http.StatusNotFound, "feedback not found")
		return
	}
	JSON(w, http.StatusOK, feedback)
}
