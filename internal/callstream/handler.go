package callstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ashureev/prepwise/internal/call"
	"github.com/ashureev/prepwise/internal/domain"
	"github.com/ashureev/prepwise/internal/identity"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const writeTimeout = 10 * time.Second

var (
	errVoiceDisabled     = errors.New("voice calls are not configured")
	errInterviewNotFound = errors.New("interview not found")
	errCallInProgress    = errors.New("a call is already in progress")
)

// InterviewStore is the persistence the call stream reads.
type InterviewStore interface {
	GetInterview(ctx context.Context, interviewID string) (*domain.Interview, error)
	GetFeedback(ctx context.Context, interviewID, userID string) (*domain.Feedback, error)
}

// VoiceFactory creates the voice session for one call.
type VoiceFactory func() call.VoiceSession

// Config wires a WebSocketHandler. NewVoice may be nil, which disables
// interview calls.
type Config struct {
	Store         InterviewStore
	Generator     call.Generator
	Feedback      call.FeedbackService
	NewVoice      VoiceFactory
	AssistantID   string
	Sessions      *SessionManager
	AllowedOrigin string
	IsDev         bool
}

// WebSocketHandler serves browser call connections.
type WebSocketHandler struct {
	cfg Config
	now func() time.Time
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(cfg Config) *WebSocketHandler {
	if cfg.Sessions == nil {
		cfg.Sessions = NewSessionManager()
	}
	return &WebSocketHandler{cfg: cfg, now: time.Now}
}

// inMessage is a browser-to-server message.
type inMessage struct {
	Type        string `json:"type"`
	Mode        string `json:"mode,omitempty"`
	InterviewID string `json:"interviewId,omitempty"`
	Role        string `json:"role,omitempty"`
	Level       string `json:"level,omitempty"`
	TechStack   string `json:"techstack,omitempty"`
	Amount      int    `json:"amount,omitempty"`
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user := identity.UserFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if user == nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	slog.Info("Call WebSocket request", "user_id", user.ID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", user.ID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", user.ID)
		}
	}()

	sess := NewSession(user.ID, sessionID, ws)
	h.cfg.Sessions.Register(sess)
	defer h.cfg.Sessions.Unregister(sess)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := newRelay()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		h.writeLoop(ctx, ws, out, user.ID)
	}()

	h.readLoop(ctx, ws, sess, out, user)
	cancel()

	// The browser is gone; end the call. Feedback continues on its own context.
	if ctrl := sess.Controller(); ctrl != nil {
		ctrl.Disconnect()
		ctrl.Close()
	}
	wg.Wait()
	slog.Info("Call session ended", "user_id", user.ID, "session_id", sessionID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.cfg.IsDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.cfg.AllowedOrigin == "*" {
		return true
	}
	if origin == h.cfg.AllowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.cfg.AllowedOrigin)
	return false
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, sess *Session, out *relay, user *domain.User) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				slog.Debug("WebSocket closed by client", "user_id", user.ID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "user_id", user.ID)
			}
			return
		}

		var msg inMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			out.Error("invalid message")
			continue
		}

		switch msg.Type {
		case "start":
			h.handleStart(ctx, sess, out, user, msg)
		case "disconnect":
			sess.Disconnect()
		case "ping":
			out.push(outMessage{Type: "pong"})
		default:
			out.Error(fmt.Sprintf("unknown message type %q", msg.Type))
		}
	}
}

func (h *WebSocketHandler) writeLoop(ctx context.Context, ws *websocket.Conn, out *relay, userID string) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-out.notify:
			for _, m := range out.drain() {
				writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
				err := wsjson.Write(writeCtx, ws, m)
				cancel()
				if err != nil {
					if ctx.Err() == nil {
						slog.Debug("WebSocket write error", "error", err, "user_id", userID)
					}
					return
				}
			}
		}
	}
}

func (h *WebSocketHandler) handleStart(ctx context.Context, sess *Session, out *relay, user *domain.User, msg inMessage) {
	c, voiceSession, err := h.buildCall(ctx, user, msg)
	if err != nil {
		slog.Warn("Rejected call start", "error", err, "user_id", user.ID, "mode", msg.Mode)
		out.Error(err.Error())
		return
	}

	ctrl := call.NewController(call.Options{
		Voice:       voiceSession,
		AssistantID: h.cfg.AssistantID,
		Generator:   h.cfg.Generator,
		Feedback:    h.cfg.Feedback,
		Navigator:   out,
		Observer:    out,
		Logger:      slog.With("user_id", user.ID, "session_id", sess.SessionID),
	})

	prev, ok := sess.tryBegin(ctrl, h.now())
	if !ok {
		out.Error(errCallInProgress.Error())
		return
	}
	if prev != nil {
		prev.Close()
	}

	// The call outlives the request so feedback is stored after the tab closes.
	callCtx := context.WithoutCancel(ctx)
	go func() {
		defer sess.startDone()
		if err := ctrl.Start(callCtx, c); err != nil {
			out.Error(err.Error())
		}
		if sess.isClosed() {
			// Shut down while the call was starting.
			ctrl.Disconnect()
		}
	}()
}

// buildCall turns a start message into a call and, for interviews, its voice session.
func (h *WebSocketHandler) buildCall(ctx context.Context, user *domain.User, msg inMessage) (call.Call, call.VoiceSession, error) {
	switch msg.Mode {
	case "generate":
		return call.GenerateCall{Spec: call.InterviewSpec{
			Role:          msg.Role,
			Level:         msg.Level,
			TechStack:     call.SplitTechStack(msg.TechStack),
			QuestionCount: msg.Amount,
			OwnerID:       user.ID,
		}}, nil, nil

	case "interview":
		if h.cfg.NewVoice == nil {
			return nil, nil, errVoiceDisabled
		}
		if msg.InterviewID == "" {
			return nil, nil, fmt.Errorf("%w: interviewId", call.ErrMissingField)
		}
		interview, err := h.cfg.Store.GetInterview(ctx, msg.InterviewID)
		if err != nil {
			return nil, nil, fmt.Errorf("load interview: %w", err)
		}
		if interview == nil {
			return nil, nil, errInterviewNotFound
		}

		record := call.InterviewRecord{
			ID:        interview.ID,
			OwnerID:   user.ID,
			Questions: interview.Questions,
		}
		existing, err := h.cfg.Store.GetFeedback(ctx, interview.ID, user.ID)
		if err != nil {
			slog.Warn("Failed to load existing feedback", "error", err, "interview_id", interview.ID, "user_id", user.ID)
		} else if existing != nil {
			record.FeedbackID = existing.ID
		}

		return call.InterviewCall{Interview: record, UserName: user.Name}, h.cfg.NewVoice(), nil

	default:
		return nil, nil, fmt.Errorf("unknown call mode %q", msg.Mode)
	}
}
