package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/ashureev/prepwise/internal/call"
	"github.com/ashureev/prepwise/internal/domain"
	"github.com/ashureev/prepwise/internal/identity"
	"github.com/ashureev/prepwise/internal/interviewer"
	"github.com/go-chi/chi/v5"
)

// generateLocks prevents concurrent generation for the same user.
var generateLocks sync.Map

// InterviewGenerator creates and stores a new interview.
type InterviewGenerator interface {
	GenerateInterview(ctx context.Context, p interviewer.GenerateParams) (*domain.Interview, error)
}

// GenerateHandler serves the question generation endpoint called by the
// voice platform and by generate calls.
type GenerateHandler struct {
	*Handler
	generator InterviewGenerator
	limiter   *userLimiter
}

// NewGenerateHandler creates a new generate handler. ratePerMinute limits
// requests per userid; zero disables limiting.
func NewGenerateHandler(base *Handler, generator InterviewGenerator, ratePerMinute int) *GenerateHandler {
	return &GenerateHandler{
		Handler:   base,
		generator: generator,
		limiter:   newUserLimiter(ratePerMinute),
	}
}

// RegisterRoutes registers generation routes.
func (h *GenerateHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/vapi/generate", h.Ping)
	r.Post("/api/vapi/generate", h.Generate)
}

// Ping answers GET probes of the endpoint.
func (h *GenerateHandler) Ping(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]any{"success": true, "data": "Thank you!"})
}

// Generate generates and stores a question set.
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req call.GenerateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		JSON(w, http.StatusBadRequest, call.GenerateResponse{Success: false, Error: "invalid request body"})
		return
	}

	spec := call.InterviewSpec{
		Role:          req.Role,
		Level:         req.Level,
		TechStack:     call.SplitTechStack(req.TechStack),
		QuestionCount: req.Amount,
		OwnerID:       req.UserID,
	}
	if err := spec.Validate(); err != nil {
		JSON(w, http.StatusBadRequest, call.GenerateResponse{Success: false, Error: err.Error()})
		return
	}

	if current := identity.UserIDFromContext(r.Context()); current != "" && current != spec.OwnerID {
		slog.Warn("Generate request for another user", "user_id", current, "userid", spec.OwnerID)
		JSON(w, http.StatusForbidden, call.GenerateResponse{Success: false, Error: "userid does not match signed-in user"})
		return
	}

	if !h.limiter.Allow(spec.OwnerID) {
		JSON(w, http.StatusTooManyRequests, call.GenerateResponse{Success: false, Error: "rate limit exceeded"})
		return
	}

	release, ok := acquireGenerateLock(spec.OwnerID)
	if !ok {
		slog.Warn("Generation already in progress", "user_id", spec.OwnerID)
		JSON(w, http.StatusConflict, call.GenerateResponse{Success: false, Error: "generation_in_progress"})
		return
	}
	defer release()

	interview, err := h.generator.GenerateInterview(r.Context(), interviewer.GenerateParams{
		Type:      req.Type,
		Role:      spec.Role,
		Level:     spec.Level,
		TechStack: spec.TechStack,
		Amount:    spec.QuestionCount,
		UserID:    spec.OwnerID,
	})
	if err != nil {
		slog.Error("Failed to generate interview", "error", err, "user_id", spec.OwnerID)
		msg := "failed to generate interview"
		if errors.Is(err, interviewer.ErrEmptyQuestions) {
			msg = "model returned no questions"
		}
		JSON(w, http.StatusInternalServerError, call.GenerateResponse{Success: false, Error: msg})
		return
	}

	slog.Info("Interview generated via API", "interview_id", interview.ID, "user_id", spec.OwnerID)
	JSON(w, http.StatusOK, call.GenerateResponse{Success: true})
}

// acquireGenerateLock takes the per-user generation lock and returns its
// release function. It reports false while a generation for userID runs.
// A mutex is removed from generateLocks before it is unlocked, so a mutex that
// is no longer in the map is retired and must not be used.
func acquireGenerateLock(userID string) (func(), bool) {
	for {
		lock, _ := generateLocks.LoadOrStore(userID, &sync.Mutex{})
		mutex := lock.(*sync.Mutex)
		if !mutex.TryLock() {
			return nil, false
		}
		if current, ok := generateLocks.Load(userID); ok && current == mutex {
			return func() {
				generateLocks.CompareAndDelete(userID, mutex)
				mutex.Unlock()
			}, true
		}
		mutex.Unlock()
	}
}
