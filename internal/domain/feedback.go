package domain

import (
	"time"
)

// Feedback categories, in the order they are scored.
const (
	CategoryCommunication  = "Communication Skills"
	CategoryTechnical      = "Technical Knowledge"
	CategoryProblemSolving = "Problem Solving"
	CategoryCulturalFit    = "Cultural Fit"
	CategoryConfidence     = "Confidence and Clarity"
)

// FeedbackCategories lists every scored category in order.
var FeedbackCategories = []string{
	CategoryCommunication,
	CategoryTechnical,
	CategoryProblemSolving,
	CategoryCulturalFit,
	CategoryConfidence,
}

// CategoryScore is the score and comment for one category.
type CategoryScore struct {
	Name    string `json:"name"`
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

// TranscriptEntry is one stored conversation turn.
type TranscriptEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Feedback is the assessment of one interview attempt.
type Feedback struct {
	ID                  string            `json:"id"`
	InterviewID         string            `json:"interviewId"`
	UserID              string            `json:"userId"`
	TotalScore          int               `json:"totalScore"`
	CategoryScores      []CategoryScore   `json:"categoryScores"`
	Strengths           []string          `json:"strengths"`
	AreasForImprovement []string          `json:"areasForImprovement"`
	FinalAssessment     string            `json:"finalAssessment"`
	Transcript          []TranscriptEntry `json:"transcript"`
	CreatedAt           time.Time         `json:"createdAt"`
}

// ClampScore bounds a score to the 0-100 range.
func ClampScore(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}
