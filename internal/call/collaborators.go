package call

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ashureev/prepwise/internal/voice"
)

var (
	// ErrMissingField is returned when a generate call lacks required data.
	ErrMissingField = errors.New("missing required field")
	// ErrNotInactive is returned by Start when the controller already ran a call.
	ErrNotInactive = errors.New("call already started")
)

// VoiceSession is the voice-agent client the controller drives.
type VoiceSession interface {
	Start(ctx context.Context, assistantID string, variables map[string]any) error
	Stop() error
	On(listener voice.Listener) (unsubscribe func())
}

// Generator requests a new interview question set.
type Generator interface {
	Generate(ctx context.Context, spec InterviewSpec) error
}

// FeedbackRequest is the input of a feedback submission.
type FeedbackRequest struct {
	InterviewID string      `json:"interviewId"`
	UserID      string      `json:"userId"`
	Transcript  []Utterance `json:"transcript"`
	FeedbackID  string      `json:"feedbackId,omitempty"`
}

// FeedbackResult is the outcome of a feedback submission.
type FeedbackResult struct {
	Success    bool   `json:"success"`
	FeedbackID string `json:"feedbackId,omitempty"`
}

// FeedbackService turns a finished transcript into stored feedback.
type FeedbackService interface {
	CreateFeedback(ctx context.Context, req FeedbackRequest) (FeedbackResult, error)
}

// Navigator moves the user to another page.
type Navigator interface {
	Navigate(path string)
}

// Observer is notified of controller changes. Methods are called while the
// controller holds its lock, so they must not call back into the controller.
type Observer interface {
	StateChanged(state State)
	UtteranceAdded(u Utterance, latest string)
	SpeakingChanged(speaking bool)
}

// InterviewSpec describes an interview to generate.
type InterviewSpec struct {
	Role          string
	Level         string
	TechStack     []string
	QuestionCount int
	OwnerID       string
}

// Validate reports the first missing required field.
func (s InterviewSpec) Validate() error {
	switch {
	case strings.TrimSpace(s.Role) == "":
		return fmt.Errorf("%w: role", ErrMissingField)
	case strings.TrimSpace(s.Level) == "":
		return fmt.Errorf("%w: level", ErrMissingField)
	case len(s.TechStack) == 0:
		return fmt.Errorf("%w: techstack", ErrMissingField)
	case s.QuestionCount <= 0:
		return fmt.Errorf("%w: amount", ErrMissingField)
	case strings.TrimSpace(s.OwnerID) == "":
		return fmt.Errorf("%w: userid", ErrMissingField)
	}
	return nil
}

// InterviewRecord is an existing interview a live call is conducted for.
type InterviewRecord struct {
	ID         string
	OwnerID    string
	Questions  []string
	FeedbackID string
}

// FormatQuestions renders questions as one "- " prefixed line each.
func FormatQuestions(questions []string) string {
	lines := make([]string, len(questions))
	for i, q := range questions {
		lines[i] = "- " + q
	}
	return strings.Join(lines, "\n")
}
