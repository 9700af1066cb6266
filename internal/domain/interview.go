package domain

import (
	"time"
)

// Interview is a generated question set owned by one user.
type Interview struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Role       string    `json:"role"`
	Level      string    `json:"level"`
	Type       string    `json:"type"`
	TechStack  []string  `json:"techstack"`
	Questions  []string  `json:"questions"`
	Finalized  bool      `json:"finalized"`
	CoverImage string    `json:"coverImage,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// OwnedBy reports whether userID owns the interview.
func (i *Interview) OwnedBy(userID string) bool {
	return userID != "" && i.UserID == userID
}
