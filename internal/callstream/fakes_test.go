package callstream

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/prepwise/internal/call"
	"github.com/ashureev/prepwise/internal/domain"
	"github.com/ashureev/prepwise/internal/voice"
)

type fakeVoice struct {
	mu         sync.Mutex
	listeners  map[int]voice.Listener
	next       int
	startCalls int
	lastVars   map[string]any
	stopCalls  int
}

func newFakeVoice() *fakeVoice {
	return &fakeVoice{listeners: make(map[int]voice.Listener)}
}

func (f *fakeVoice) On(l voice.Listener) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := f.next
	f.listeners[id] = l
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
	}
}

func (f *fakeVoice) Start(_ context.Context, _ string, vars map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startCalls++
	f.lastVars = vars
	return nil
}

func (f *fakeVoice) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return nil
}

func (f *fakeVoice) emit(ev voice.Event) {
	f.mu.Lock()
	ls := make([]voice.Listener, 0, len(f.listeners))
	for _, l := range f.listeners {
		ls = append(ls, l)
	}
	f.mu.Unlock()
	for _, l := range ls {
		l(ev)
	}
}

func (f *fakeVoice) started() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startCalls > 0 && len(f.listeners) > 0
}

func (f *fakeVoice) stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

func (f *fakeVoice) vars() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastVars
}

type fakeGenerator struct {
	mu    sync.Mutex
	specs []call.InterviewSpec
	err   error
}

func (f *fakeGenerator) Generate(_ context.Context, spec call.InterviewSpec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.specs = append(f.specs, spec)
	return f.err
}

func (f *fakeGenerator) all() []call.InterviewSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call.InterviewSpec(nil), f.specs...)
}

type fakeFeedback struct {
	mu       sync.Mutex
	requests []call.FeedbackRequest
	result   call.FeedbackResult
}

func (f *fakeFeedback) CreateFeedback(_ context.Context, req call.FeedbackRequest) (call.FeedbackResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.result, nil
}

func (f *fakeFeedback) all() []call.FeedbackRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call.FeedbackRequest(nil), f.requests...)
}

type fakeStore struct {
	interviews map[string]*domain.Interview
	feedback   map[string]*domain.Feedback
}

func (f *fakeStore) GetInterview(_ context.Context, id string) (*domain.Interview, error) {
	return f.interviews[id], nil
}

func (f *fakeStore) GetFeedback(_ context.Context, interviewID, userID string) (*domain.Feedback, error) {
	return f.feedback[interviewID+"/"+userID], nil
}

// eventually polls cond until it holds or a second has passed.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
