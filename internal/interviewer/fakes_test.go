package interviewer

import (
	"context"
	"sync"

	"github.com/ashureev/prepwise/internal/domain"
)

type fakeBackend struct {
	mu          sync.Mutex
	questions   []string
	assessment  *Assessment
	err         error
	questionReq []QuestionRequest
	feedbackIn  []FeedbackInput
}

func (f *fakeBackend) GenerateQuestions(_ context.Context, req QuestionRequest) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questionReq = append(f.questionReq, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.questions, nil
}

func (f *fakeBackend) GenerateFeedback(_ context.Context, in FeedbackInput) (*Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedbackIn = append(f.feedbackIn, in)
	if f.err != nil {
		return nil, f.err
	}
	return f.assessment, nil
}

func (f *fakeBackend) Close() error { return nil }

type fakeStore struct {
	mu         sync.Mutex
	interviews map[string]*domain.Interview
	feedback   map[string]*domain.Feedback
	saveErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		interviews: make(map[string]*domain.Interview),
		feedback:   make(map[string]*domain.Feedback),
	}
}

func (f *fakeStore) CreateInterview(_ context.Context, iv *domain.Interview) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interviews[iv.ID] = iv
	return nil
}

func (f *fakeStore) GetInterview(_ context.Context, id string) (*domain.Interview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.interviews[id], nil
}

func (f *fakeStore) SaveFeedback(_ context.Context, fb *domain.Feedback) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.feedback[fb.InterviewID+"/"+fb.UserID] = fb
	return nil
}

func (f *fakeStore) GetFeedback(_ context.Context, interviewID, userID string) (*domain.Feedback, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.feedback[interviewID+"/"+userID], nil
}
