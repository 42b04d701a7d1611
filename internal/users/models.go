package users

import (
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User is a dashboard account. Single-operator product: every user owns
// their agents and transcripts outright, there are no teams or roles.
type User struct {
	ID           string `json:"id" db:"id"`
	Email        string `json:"email" db:"email"`
	PasswordHash string `json:"-" db:"password_hash"`
	FullName     string `json:"full_name,omitempty" db:"full_name"`

	// OnboardingCompleted gates the setup wizard redirect after login.
	OnboardingCompleted bool `json:"onboarding_completed" db:"onboarding_completed"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
