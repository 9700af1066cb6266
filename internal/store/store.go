// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/prepwise/internal/domain"
)

// Repository defines the interface for persisting users, interviews and feedback.
// Lookups of records that do not exist return nil and no error.
type Repository interface {
	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates a user or merges profile fields into an existing one.
	// Role, status, onboarding flag and creation time of an existing user are kept.
	UpsertUser(ctx context.Context, user *domain.User) error

	// TouchLastLogin records a successful sign-in.
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error

	// CreateInterview stores a new interview.
	CreateInterview(ctx context.Context, interview *domain.Interview) error

	// GetInterview retrieves an interview by ID.
	GetInterview(ctx context.Context, interviewID string) (*domain.Interview, error)

	// ListInterviewsByUser returns a user's interviews, newest first.
	ListInterviewsByUser(ctx context.Context, userID string) ([]*domain.Interview, error)

	// ListLatestInterviews returns finalized interviews of other users, newest first.
	ListLatestInterviews(ctx context.Context, excludeUserID string, limit int) ([]*domain.Interview, error)

	// SaveFeedback creates or overwrites feedback by ID.
	SaveFeedback(ctx context.Context, feedback *domain.Feedback) error

	// GetFeedback retrieves a user's feedback for an interview.
	GetFeedback(ctx context.Context, interviewID, userID string) (*domain.Feedback, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
