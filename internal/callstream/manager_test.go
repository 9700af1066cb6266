package callstream

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/prepwise/internal/call"
	"github.com/ashureev/prepwise/internal/voice"
)

// activeController returns a controller whose interview call is Active.
func activeController(t *testing.T) (*call.Controller, *fakeVoice) {
	t.Helper()
	fv := newFakeVoice()
	ctrl := call.NewController(call.Options{Voice: fv})
	if err := ctrl.Start(context.Background(), call.InterviewCall{
		Interview: call.InterviewRecord{ID: "i1", Questions: []string{"Q"}},
	}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	fv.emit(voice.CallStart{})
	if ctrl.State() != call.StateActive {
		t.Fatalf("expected Active, got %s", ctrl.State())
	}
	return ctrl, fv
}

// lookup returns the registered session for a user and tab.
func lookup(sm *SessionManager, userID, sessionID string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.active[userID][sessionID]
}

// blockingFeedback holds every CreateFeedback call until release is closed.
type blockingFeedback struct {
	release chan struct{}
	mu      sync.Mutex
	stored  int
}

func (b *blockingFeedback) CreateFeedback(ctx context.Context, _ call.FeedbackRequest) (call.FeedbackResult, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
		return call.FeedbackResult{}, ctx.Err()
	}
	b.mu.Lock()
	b.stored++
	b.mu.Unlock()
	return call.FeedbackResult{Success: true, FeedbackID: "f1"}, nil
}

func (b *blockingFeedback) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stored
}

// answeredSession registers a tab whose interview call is Active with one answer.
func answeredSession(t *testing.T, sm *SessionManager, fb call.FeedbackService) (*Session, *call.Controller) {
	t.Helper()
	fv := newFakeVoice()
	ctrl := call.NewController(call.Options{Voice: fv, Feedback: fb, Navigator: newRelay()})
	if err := ctrl.Start(context.Background(), call.InterviewCall{
		Interview: call.InterviewRecord{ID: "i1", OwnerID: "u1", Questions: []string{"Q"}},
	}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	fv.emit(voice.CallStart{})
	fv.emit(voice.Message{
		Type:           voice.MessageTypeTranscript,
		Role:           "user",
		TranscriptType: voice.TranscriptFinal,
		Transcript:     "my answer",
	})

	s := NewSession("u1", "tab-1", nil)
	if _, ok := s.tryBegin(ctrl, time.Now()); !ok {
		t.Fatal("tryBegin failed")
	}
	s.startDone()
	sm.Register(s)
	return s, ctrl
}

func TestSessionManager_Register(t *testing.T) {
	sm := NewSessionManager()
	s := NewSession("user123", "tab-1", nil)

	sm.Register(s)

	if active := lookup(sm, "user123", "tab-1"); active != s {
		t.Errorf("Expected session %v, got %v", s, active)
	}
}

func TestSessionManager_Unregister(t *testing.T) {
	sm := NewSessionManager()
	s := NewSession("user123", "tab-1", nil)

	sm.Register(s)
	sm.Unregister(s)

	if active := lookup(sm, "user123", "tab-1"); active != nil {
		t.Errorf("Expected nil session, got %v", active)
	}
	if sm.Count() != 0 {
		t.Errorf("Expected no sessions, got %d", sm.Count())
	}
}

func TestSessionManager_UnregisterStale(t *testing.T) {
	sm := NewSessionManager()
	old := NewSession("user123", "tab-1", nil)
	replacement := NewSession("user123", "tab-1", nil)

	sm.Register(old)
	sm.Register(replacement)

	// The replaced session's late unregister must not evict its successor.
	sm.Unregister(old)

	if active := lookup(sm, "user123", "tab-1"); active != replacement {
		t.Errorf("Expected session %v, got %v", replacement, active)
	}
}

func TestSessionManager_ReplaceDisconnectsCall(t *testing.T) {
	sm := NewSessionManager()
	old := NewSession("user123", "tab-1", nil)
	ctrl, fv := activeController(t)
	if _, ok := old.tryBegin(ctrl, time.Now()); !ok {
		t.Fatal("tryBegin failed")
	}
	old.startDone()

	sm.Register(old)
	sm.Register(NewSession("user123", "tab-1", nil))

	if ctrl.State() != call.StateFinished {
		t.Fatalf("expected replaced call to finish, got %s", ctrl.State())
	}
	eventually(t, "voice stop", func() bool { return fv.stops() > 0 })
}

func TestSessionManager_CloseUser(t *testing.T) {
	sm := NewSessionManager()
	s1 := NewSession("user123", "tab-1", nil)
	ctrl, _ := activeController(t)
	s1.tryBegin(ctrl, time.Now())
	s1.startDone()

	sm.Register(s1)
	sm.Register(NewSession("user123", "tab-2", nil))
	sm.Register(NewSession("other", "tab-1", nil))

	sm.CloseUser("user123")

	if sm.Count() != 1 {
		t.Fatalf("expected one remaining session, got %d", sm.Count())
	}
	if ctrl.State() != call.StateFinished {
		t.Fatalf("expected call to finish, got %s", ctrl.State())
	}
}

func TestSessionManager_CloseAllWaitsForFeedback(t *testing.T) {
	sm := NewSessionManager()
	fb := &blockingFeedback{release: make(chan struct{})}
	s, ctrl := answeredSession(t, sm, fb)
	sm.Register(NewSession("u2", "tab-1", nil))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- sm.CloseAll(ctx) }()

	select {
	case err := <-done:
		t.Fatalf("expected CloseAll to wait for feedback, returned %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	if ctrl.State() != call.StateFinished {
		t.Fatalf("expected call to finish, got %s", ctrl.State())
	}

	close(fb.release)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("CloseAll failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for CloseAll")
	}
	if fb.count() != 1 {
		t.Fatalf("expected feedback stored before CloseAll returned, got %d", fb.count())
	}
	if sm.Count() != 0 {
		t.Fatalf("expected no sessions, got %d", sm.Count())
	}
	if _, ok := s.tryBegin(call.NewController(call.Options{}), time.Now()); ok {
		t.Fatal("expected a closed session to refuse new calls")
	}
}

func TestSessionManager_CloseAllHonoursDeadline(t *testing.T) {
	sm := NewSessionManager()
	fb := &blockingFeedback{release: make(chan struct{})}
	defer close(fb.release)
	answeredSession(t, sm, fb)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := sm.CloseAll(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestSessionManager_CloseAllSkipsCallsThatNeverStarted(t *testing.T) {
	sm := NewSessionManager()
	s := NewSession("u1", "tab-1", nil)
	s.tryBegin(call.NewController(call.Options{}), time.Now())
	s.startDone()
	sm.Register(s)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sm.CloseAll(ctx); err != nil {
		t.Fatalf("CloseAll failed: %v", err)
	}
}

func TestSessionTryBeginGuards(t *testing.T) {
	s := NewSession("u", "tab", nil)
	first := call.NewController(call.Options{})
	if _, ok := s.tryBegin(first, time.Now()); !ok {
		t.Fatal("expected first begin to succeed")
	}
	if _, ok := s.tryBegin(call.NewController(call.Options{}), time.Now()); ok {
		t.Fatal("expected begin to fail while a start is running")
	}

	s.startDone()
	second := call.NewController(call.Options{})
	prev, ok := s.tryBegin(second, time.Now())
	if !ok || prev != first {
		t.Fatalf("expected inactive call to be replaced, ok=%v prev=%v", ok, prev)
	}
	s.startDone()

	live, _ := activeController(t)
	s.tryBegin(live, time.Now())
	s.startDone()
	if _, ok := s.tryBegin(call.NewController(call.Options{}), time.Now()); ok {
		t.Fatal("expected begin to fail while a call is live")
	}
}

func TestSessionManager_ConcurrentAccess(t *testing.T) {
	sm := NewSessionManager()
	userID := "concurrentUser"

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			sm.Register(NewSession(userID, "tab-"+strconv.Itoa(i), nil))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			lookup(sm, userID, "tab-"+strconv.Itoa(i))
		}
	}()
	wg.Wait()

	if sm.Count() != 1000 {
		t.Fatalf("expected 1000 sessions, got %d", sm.Count())
	}
}

func TestSweepExpiredCalls(t *testing.T) {
	sm := NewSessionManager()
	now := time.Now()

	expired := NewSession("u1", "tab-1", nil)
	expiredCtrl, fv := activeController(t)
	expired.tryBegin(expiredCtrl, now.Add(-2*time.Hour))
	expired.startDone()

	fresh := NewSession("u2", "tab-1", nil)
	freshCtrl, _ := activeController(t)
	fresh.tryBegin(freshCtrl, now.Add(-time.Minute))
	fresh.startDone()

	idle := NewSession("u3", "tab-1", nil)
	idle.tryBegin(call.NewController(call.Options{}), now.Add(-2*time.Hour))
	idle.startDone()

	for _, s := range []*Session{expired, fresh, idle, NewSession("u4", "tab-1", nil)} {
		sm.Register(s)
	}

	if n := sweepExpiredCalls(sm, 30*time.Minute, now); n != 1 {
		t.Fatalf("expected one swept call, got %d", n)
	}
	if expiredCtrl.State() != call.StateFinished {
		t.Fatalf("expected expired call to finish, got %s", expiredCtrl.State())
	}
	if freshCtrl.State() != call.StateActive {
		t.Fatalf("expected fresh call to stay active, got %s", freshCtrl.State())
	}
	eventually(t, "voice stop", func() bool { return fv.stops() > 0 })

	if n := sweepExpiredCalls(sm, 30*time.Minute, now); n != 0 {
		t.Fatalf("expected nothing left to sweep, got %d", n)
	}
}

func TestStartSweeperDisabled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Returns immediately without starting a goroutine.
	StartSweeper(ctx, NewSessionManager(), 0)
}
