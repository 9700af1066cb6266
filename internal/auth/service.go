package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/prepwise/internal/domain"
)

// Messages returned to the browser.
const (
	MsgSignedIn         = "Successfully signed in!"
	MsgSignInFailed     = "Failed to sign in. Please try again."
	MsgInvalidToken     = "Invalid authentication token. Please sign in again."
	MsgAccountCreated   = "Account created successfully."
	MsgSignUpFailed     = "Failed to create account. Please try again."
	MsgMissingName      = "Name is required."
	MsgAccountNotActive = "This account is not active."
)

// UserStore is the persistence the auth service needs.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	UpsertUser(ctx context.Context, user *domain.User) error
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
}

// Result is the outcome of a sign-in or sign-up action.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SignUpParams carries the sign-up form. Identity fields come from the ID token.
type SignUpParams struct {
	IDToken  string `json:"idToken"`
	Name     string `json:"name"`
	PhotoURL string `json:"photoURL,omitempty"`
}

// Service implements sign-in, sign-up and session lookups.
type Service struct {
	users    UserStore
	idTokens *IDTokenVerifier
	sessions *SessionIssuer
	now      func() time.Time
	logger   *slog.Logger
}

// NewService creates an auth service.
func NewService(users UserStore, idTokens *IDTokenVerifier, sessions *SessionIssuer) *Service {
	return &Service{
		users:    users,
		idTokens: idTokens,
		sessions: sessions,
		now:      time.Now,
		logger:   slog.Default().With("component", "auth"),
	}
}

// SignIn exchanges an ID token for a session. The session is verified before
// it is returned; on failure the result carries a user-facing message and the
// session is nil.
func (s *Service) SignIn(ctx context.Context, idToken string) (Result, *Session) {
	claims, err := s.idTokens.Verify(idToken)
	if err != nil {
		s.logger.Warn("ID token rejected", "error", err)
		return Result{Success: false, Message: MsgInvalidToken}, nil
	}

	user, err := s.users.GetUser(ctx, claims.Subject)
	if err != nil {
		s.logger.Error("Failed to load user", "error", err, "user_id", claims.Subject)
		return Result{Success: false, Message: MsgSignInFailed}, nil
	}
	if user != nil && !user.IsActive() {
		return Result{Success: false, Message: MsgAccountNotActive}, nil
	}

	session, err := s.sessions.Issue(claims)
	if err != nil {
		s.logger.Error("Failed to create session", "error", err, "user_id", claims.Subject)
		return Result{Success: false, Message: MsgSignInFailed}, nil
	}
	if _, err := s.sessions.Verify(session.Token); err != nil {
		s.logger.Error("Session verification failed", "error", err, "user_id", claims.Subject)
		return Result{Success: false, Message: MsgSignInFailed}, nil
	}

	if user != nil {
		if err := s.users.TouchLastLogin(ctx, claims.Subject, s.now()); err != nil {
			s.logger.Warn("Failed to record last login", "error", err, "user_id", claims.Subject)
		}
	}

	s.logger.Info("User signed in", "user_id", claims.Subject)
	return Result{Success: true, Message: MsgSignedIn}, session
}

// SignUp creates or merges the user document for the identity in the ID token.
func (s *Service) SignUp(ctx context.Context, params SignUpParams) Result {
	claims, err := s.idTokens.Verify(params.IDToken)
	if err != nil {
		s.logger.Warn("ID token rejected at sign-up", "error", err)
		return Result{Success: false, Message: MsgInvalidToken}
	}

	name := strings.TrimSpace(params.Name)
	if name == "" {
		name = strings.TrimSpace(claims.Name)
	}
	if name == "" {
		return Result{Success: false, Message: MsgMissingName}
	}
	photo := params.PhotoURL
	if photo == "" {
		photo = claims.Picture
	}

	existing, err := s.users.GetUser(ctx, claims.Subject)
	if err != nil {
		s.logger.Error("Failed to load user", "error", err, "user_id", claims.Subject)
		return Result{Success: false, Message: MsgSignUpFailed}
	}
	if existing != nil {
		s.logger.Info("User already exists, updating", "user_id", claims.Subject)
	}

	user := domain.NewUser(claims.Subject, name, claims.Email, photo, s.now())
	if err := s.users.UpsertUser(ctx, user); err != nil {
		s.logger.Error("Failed to write user", "error", err, "user_id", claims.Subject)
		return Result{Success: false, Message: MsgSignUpFailed}
	}

	s.logger.Info("User signed up", "user_id", claims.Subject)
	return Result{Success: true, Message: MsgAccountCreated}
}

// CurrentUser resolves the user behind a session token. It returns nil and no
// error when the token is valid but the user document is gone.
func (s *Service) CurrentUser(ctx context.Context, sessionToken string) (*domain.User, error) {
	claims, err := s.sessions.Verify(sessionToken)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUser(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive() {
		return nil, nil
	}
	return user, nil
}

// IsAuthenticated reports whether sessionToken resolves to a user.
func (s *Service) IsAuthenticated(ctx context.Context, sessionToken string) bool {
	user, err := s.CurrentUser(ctx, sessionToken)
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			s.logger.Debug("Authentication check failed", "error", err)
		}
		return false
	}
	return user != nil
}

// SignOut logs the sign-out. The caller clears the cookie.
func (s *Service) SignOut(_ context.Context, sessionToken string) {
	if claims, err := s.sessions.Verify(sessionToken); err == nil {
		s.logger.Info("User signed out", "user_id", claims.Subject)
	}
}

// SessionTTL returns the lifetime of issued sessions.
func (s *Service) SessionTTL() time.Duration {
	return s.sessions.TTL()
}
