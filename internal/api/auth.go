package api

import (
	"log/slog"
	"net/http"

	"github.com/ashureev/prepwise/internal/auth"
	"github.com/ashureev/prepwise/internal/identity"
	"github.com/go-chi/chi/v5"
)

// AuthHandler handles sign-in, sign-up and session endpoints.
type AuthHandler struct {
	*Handler
	auth      *auth.Service
	onSignOut func(userID string)
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(base *Handler, svc *auth.Service) *AuthHandler {
	return &AuthHandler{Handler: base, auth: svc}
}

// OnSignOut registers fn to run for the signed-in user on sign-out.
func (h *AuthHandler) OnSignOut(fn func(userID string)) {
	h.onSignOut = fn
}

// RegisterRoutes registers auth routes.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/sign-in", h.SignIn)
		r.Post("/sign-up", h.SignUp)
		r.Post("/sign-out", h.SignOut)
		r.Get("/me", h.Me)
	})
}

type signInRequest struct {
	IDToken string `json:"idToken"`
}

// SignIn exchanges an ID token for a session cookie.
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil || req.IDToken == "" {
		JSON(w, http.StatusBadRequest, auth.Result{Success: false, Message: auth.MsgInvalidToken})
		return
	}

	res, session := h.auth.SignIn(r.Context(), req.IDToken)
	if !res.Success {
		JSON(w, http.StatusUnauthorized, res)
		return
	}

	auth.SetSessionCookie(w, session, h.secureCookies())
	JSON(w, http.StatusOK, res)
}

// SignUp creates or merges the user's account.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req auth.SignUpParams
	if err := decodeJSON(w, r, &req); err != nil {
		JSON(w, http.StatusBadRequest, auth.Result{Success: false, Message: auth.MsgSignUpFailed})
		return
	}

	res := h.auth.SignUp(r.Context(), req)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadRequest
	}
	JSON(w, status, res)
}

// SignOut clears the session cookie.
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.auth.SignOut(r.Context(), auth.SessionToken(r))
	if userID := identity.UserIDFromContext(r.Context()); userID != "" && h.onSignOut != nil {
		h.onSignOut(userID)
	}
	auth.ClearSessionCookie(w, h.secureCookies())
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Me returns the signed-in user, if any.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := identity.UserFromContext(r.Context())
	if user == nil {
		JSON(w, http.StatusOK, map[string]any{
			"authenticated": false,
			"user":          nil,
		})
		return
	}

	slog.Debug("Resolved current user", "user_id", user.ID)
	JSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user":          user,
	})
}
