// Package domain contains core domain types for the PrepWise application.
package domain

import (
	"time"
)

// Defaults applied to users created through sign-up.
const (
	UserRoleDefault  = "user"
	UserStatusActive = "active"
)

// User is an authenticated account. The ID is the identity provider's uid.
type User struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	PhotoURL    string    `json:"photoURL,omitempty"`
	Role        string    `json:"role"`
	Status      string    `json:"status"`
	IsOnboarded bool      `json:"isOnboarded"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	LastLoginAt time.Time `json:"lastLoginAt"`
}

// NewUser returns a user with the sign-up defaults filled in.
func NewUser(id, name, email, photoURL string, now time.Time) *User {
	return &User{
		ID:          id,
		Name:        name,
		Email:       email,
		PhotoURL:    photoURL,
		Role:        UserRoleDefault,
		Status:      UserStatusActive,
		IsOnboarded: false,
		CreatedAt:   now,
		UpdatedAt:   now,
		LastLoginAt: now,
	}
}

// IsActive reports whether the account may sign in.
func (u *User) IsActive() bool {
	return u.Status == "" || u.Status == UserStatusActive
}
