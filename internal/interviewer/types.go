// Package interviewer generates interview questions and scores finished interviews.
package interviewer

import (
	"context"
	"errors"

	"github.com/ashureev/prepwise/internal/domain"
)

var (
	// ErrEmptyQuestions is returned when a backend produced no questions.
	ErrEmptyQuestions = errors.New("backend returned no questions")
	// ErrEmptyTranscript is returned when feedback is requested for an empty transcript.
	ErrEmptyTranscript = errors.New("transcript is empty")
)

// QuestionRequest describes the question set to generate.
type QuestionRequest struct {
	Role      string   `json:"role"`
	Level     string   `json:"level"`
	Type      string   `json:"type"`
	TechStack []string `json:"techstack"`
	Amount    int      `json:"amount"`
}

// FeedbackInput is a finished interview to assess.
type FeedbackInput struct {
	InterviewID string                   `json:"interviewId"`
	Role        string                   `json:"role,omitempty"`
	Transcript  []domain.TranscriptEntry `json:"transcript"`
}

// Assessment is a backend's scoring of one interview.
type Assessment struct {
	TotalScore          int                    `json:"totalScore"`
	CategoryScores      []domain.CategoryScore `json:"categoryScores"`
	Strengths           []string               `json:"strengths"`
	AreasForImprovement []string               `json:"areasForImprovement"`
	FinalAssessment     string                 `json:"finalAssessment"`
}

// Backend produces questions and assessments.
type Backend interface {
	// GenerateQuestions returns req.Amount questions suitable for a voice assistant.
	GenerateQuestions(ctx context.Context, req QuestionRequest) ([]string, error)

	// GenerateFeedback scores a finished interview.
	GenerateFeedback(ctx context.Context, in FeedbackInput) (*Assessment, error)

	// Close releases resources.
	Close() error
}

var (
	_ Backend = (*GeminiBackend)(nil)
	_ Backend = (*GRPCBackend)(nil)
)
