// Package callstream serves browser WebSocket connections that drive
// server-side interview calls.
package callstream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/prepwise/internal/call"
	"github.com/coder/websocket"
)

// Session is one browser tab's call connection.
type Session struct {
	UserID    string
	SessionID string
	conn      *websocket.Conn

	mu          sync.Mutex
	ctrl        *call.Controller
	callStarted time.Time
	starting    bool
	closed      bool
	// calls holds this tab's controllers whose follow-up may still be running.
	calls []*call.Controller
}

// NewSession creates a session for conn. conn may be nil in tests.
func NewSession(userID, sessionID string, conn *websocket.Conn) *Session {
	return &Session{UserID: userID, SessionID: sessionID, conn: conn}
}

// Controller returns the controller of the current call, or nil.
func (s *Session) Controller() *call.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl
}

// CallStarted returns when the current call was started.
func (s *Session) CallStarted() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callStarted
}

// tryBegin installs ctrl as the session's call unless the session is closed,
// another call is being started or one is still live. It returns the
// controller it replaced.
func (s *Session) tryBegin(ctrl *call.Controller, at time.Time) (*call.Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.starting {
		return nil, false
	}
	if s.ctrl != nil {
		switch s.ctrl.State() {
		case call.StateConnecting, call.StateActive:
			return nil, false
		}
	}
	prev := s.ctrl
	s.ctrl = ctrl
	s.callStarted = at
	s.starting = true

	kept := s.calls[:0]
	for _, c := range s.calls {
		select {
		case <-c.Done():
		default:
			kept = append(kept, c)
		}
	}
	s.calls = append(kept, ctrl)
	return prev, true
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// shutdown refuses further calls, ends the current one and returns every
// controller whose follow-up may still be running.
func (s *Session) shutdown() []*call.Controller {
	s.mu.Lock()
	s.closed = true
	ctrl := s.ctrl
	calls := append([]*call.Controller(nil), s.calls...)
	s.mu.Unlock()

	if ctrl != nil {
		ctrl.Disconnect()
	}
	return calls
}

// startDone marks the current call's Start as returned.
func (s *Session) startDone() {
	s.mu.Lock()
	s.starting = false
	s.mu.Unlock()
}

// Disconnect ends the current call, if any.
func (s *Session) Disconnect() {
	if ctrl := s.Controller(); ctrl != nil {
		ctrl.Disconnect()
	}
}

func (s *Session) closeConn(reason string) {
	if s.conn != nil {
		_ = s.conn.Close(websocket.StatusNormalClosure, reason)
	}
}

// SessionManager tracks call sessions per user and tab.
type SessionManager struct {
	mu     sync.RWMutex
	active map[string]map[string]*Session
}

// NewSessionManager creates a new session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		active: make(map[string]map[string]*Session),
	}
}

// Register adds a session. A previous session for the same tab is
// disconnected and its socket closed.
func (m *SessionManager) Register(s *Session) {
	m.mu.Lock()
	if _, exists := m.active[s.UserID]; !exists {
		m.active[s.UserID] = make(map[string]*Session)
	}
	existing := m.active[s.UserID][s.SessionID]
	m.active[s.UserID][s.SessionID] = s
	m.mu.Unlock()

	if existing != nil && existing != s {
		existing.Disconnect()
		existing.closeConn("session replaced")
	}
	slog.Info("Call session registered", "user_id", s.UserID, "session_id", s.SessionID)
}

// Unregister removes s if it is still the tab's current session.
func (m *SessionManager) Unregister(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessions, ok := m.active[s.UserID]; ok {
		if current, exists := sessions[s.SessionID]; exists && current == s {
			delete(sessions, s.SessionID)
			if len(sessions) == 0 {
				delete(m.active, s.UserID)
			}
			slog.Info("Call session unregistered", "user_id", s.UserID, "session_id", s.SessionID)
		}
	}
}

// CloseUser ends every call of a user and closes their sockets.
func (m *SessionManager) CloseUser(userID string) {
	m.mu.Lock()
	sessions := m.active[userID]
	delete(m.active, userID)
	m.mu.Unlock()

	for sid, s := range sessions {
		s.Disconnect()
		s.closeConn("session closed")
		slog.Info("Call session closed", "user_id", userID, "session_id", sid)
	}
}

// CloseAll ends every call, closes every socket and waits until the finished
// calls have stored their feedback or ctx expires.
func (m *SessionManager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	active := m.active
	m.active = make(map[string]map[string]*Session)
	m.mu.Unlock()

	var calls []*call.Controller
	for _, sessions := range active {
		for _, s := range sessions {
			calls = append(calls, s.shutdown()...)
			s.closeConn("server shutting down")
		}
	}

	pending := 0
	for _, ctrl := range calls {
		if ctrl.State() != call.StateFinished {
			// Never got past connecting; nothing to wait for.
			continue
		}
		select {
		case <-ctrl.Done():
		case <-ctx.Done():
			pending++
		}
	}
	if pending > 0 {
		return fmt.Errorf("%d calls still finishing: %w", pending, ctx.Err())
	}
	slog.Info("All call sessions closed", "calls", len(calls))
	return nil
}

// Count returns the number of registered sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, sessions := range m.active {
		n += len(sessions)
	}
	return n
}

// snapshot returns all registered sessions.
func (m *SessionManager) snapshot() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Session
	for _, sessions := range m.active {
		for _, s := range sessions {
			out = append(out, s)
		}
	}
	return out
}
