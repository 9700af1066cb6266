package interviewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/ashureev/prepwise/internal/call"
	"github.com/ashureev/prepwise/internal/domain"
	"github.com/google/uuid"
)

// Store is the persistence the interviewer service needs.
type Store interface {
	CreateInterview(ctx context.Context, interview *domain.Interview) error
	GetInterview(ctx context.Context, interviewID string) (*domain.Interview, error)
	SaveFeedback(ctx context.Context, feedback *domain.Feedback) error
	GetFeedback(ctx context.Context, interviewID, userID string) (*domain.Feedback, error)
}

// CoverImages are assigned at random to new interviews.
var CoverImages = []string{
	"/covers/adobe.png",
	"/covers/amazon.png",
	"/covers/facebook.png",
	"/covers/hostinger.png",
	"/covers/pinterest.png",
	"/covers/quora.png",
	"/covers/reddit.png",
	"/covers/skype.png",
	"/covers/spotify.png",
	"/covers/telegram.png",
	"/covers/tiktok.png",
	"/covers/yahoo.png",
}

// GenerateParams is one request of the generation endpoint.
type GenerateParams struct {
	Type      string
	Role      string
	Level     string
	TechStack []string
	Amount    int
	UserID    string
}

// Service composes a Backend with persistence.
type Service struct {
	backend Backend
	store   Store
	now     func() time.Time
	cover   func() string
	logger  *slog.Logger
}

var (
	_ call.FeedbackService = (*Service)(nil)
	_ call.Generator       = (*Service)(nil)
)

// NewService creates an interviewer service.
func NewService(backend Backend, store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backend: backend,
		store:   store,
		now:     time.Now,
		cover:   randomCover,
		logger:  logger,
	}
}

func randomCover() string {
	return CoverImages[rand.IntN(len(CoverImages))]
}

// GenerateInterview generates questions and stores a finalized interview.
func (s *Service) GenerateInterview(ctx context.Context, p GenerateParams) (*domain.Interview, error) {
	interviewType := p.Type
	if interviewType == "" {
		interviewType = call.DefaultInterviewType
	}

	questions, err := s.backend.GenerateQuestions(ctx, QuestionRequest{
		Role:      p.Role,
		Level:     p.Level,
		Type:      interviewType,
		TechStack: p.TechStack,
		Amount:    p.Amount,
	})
	if err != nil {
		return nil, err
	}

	interview := &domain.Interview{
		ID:         uuid.NewString(),
		UserID:     p.UserID,
		Role:       p.Role,
		Level:      p.Level,
		Type:       interviewType,
		TechStack:  p.TechStack,
		Questions:  questions,
		Finalized:  true,
		CoverImage: s.cover(),
		CreatedAt:  s.now(),
	}
	if err := s.store.CreateInterview(ctx, interview); err != nil {
		return nil, fmt.Errorf("store interview: %w", err)
	}

	s.logger.Info("Interview generated",
		"interview_id", interview.ID,
		"user_id", p.UserID,
		"questions", len(questions),
	)
	return interview, nil
}

// Generate implements call.Generator in-process.
func (s *Service) Generate(ctx context.Context, spec call.InterviewSpec) error {
	_, err := s.GenerateInterview(ctx, GenerateParams{
		Type:      call.DefaultInterviewType,
		Role:      spec.Role,
		Level:     spec.Level,
		TechStack: spec.TechStack,
		Amount:    spec.QuestionCount,
		UserID:    spec.OwnerID,
	})
	return err
}

// CreateFeedback scores a finished interview and stores the result. A known
// feedback ID, or the ID of the user's earlier feedback for the interview, is
// reused so a retake overwrites the previous assessment.
func (s *Service) CreateFeedback(ctx context.Context, req call.FeedbackRequest) (call.FeedbackResult, error) {
	if req.InterviewID == "" || req.UserID == "" {
		return call.FeedbackResult{}, errors.New("interview id and user id are required")
	}
	if len(req.Transcript) == 0 {
		return call.FeedbackResult{}, ErrEmptyTranscript
	}

	transcript := make([]domain.TranscriptEntry, 0, len(req.Transcript))
	for _, u := range req.Transcript {
		transcript = append(transcript, domain.TranscriptEntry{Role: string(u.Role), Content: u.Content})
	}

	var role string
	interview, err := s.store.GetInterview(ctx, req.InterviewID)
	if err != nil {
		s.logger.Warn("Failed to load interview for feedback", "error", err, "interview_id", req.InterviewID)
	} else if interview != nil {
		role = interview.Role
	}

	assessment, err := s.backend.GenerateFeedback(ctx, FeedbackInput{
		InterviewID: req.InterviewID,
		Role:        role,
		Transcript:  transcript,
	})
	if err != nil {
		return call.FeedbackResult{}, err
	}

	feedbackID := req.FeedbackID
	if feedbackID == "" {
		existing, err := s.store.GetFeedback(ctx, req.InterviewID, req.UserID)
		if err != nil {
			return call.FeedbackResult{}, fmt.Errorf("load existing feedback: %w", err)
		}
		if existing != nil {
			feedbackID = existing.ID
		} else {
			feedbackID = uuid.NewString()
		}
	}

	feedback := &domain.Feedback{
		ID:                  feedbackID,
		InterviewID:         req.InterviewID,
		UserID:              req.UserID,
		TotalScore:          assessment.TotalScore,
		CategoryScores:      assessment.CategoryScores,
		Strengths:           assessment.Strengths,
		AreasForImprovement: assessment.AreasForImprovement,
		FinalAssessment:     assessment.FinalAssessment,
		Transcript:          transcript,
		CreatedAt:           s.now(),
	}
	if err := s.store.SaveFeedback(ctx, feedback); err != nil {
		return call.FeedbackResult{}, fmt.Errorf("store feedback: %w", err)
	}

	s.logger.Info("Feedback created",
		"interview_id", req.InterviewID,
		"user_id", req.UserID,
		"feedback_id", feedbackID,
		"total_score", feedback.TotalScore,
	)
	return call.FeedbackResult{Success: true, FeedbackID: feedbackID}, nil
}

// Close releases the backend.
func (s *Service) Close() error {
	return s.backend.Close()
}
