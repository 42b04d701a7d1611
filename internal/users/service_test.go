package users

import (
	"context"
	"errors"
	"testing"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	s := NewService(NewMemoryRepo())

	u, err := s.Register(context.Background(), "  Jo@Example.COM ", "s3cretpass", "Jo Smith")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Email != "jo@example.com" {
		t.Fatalf("expected normalized email, got %q", u.Email)
	}
	if u.PasswordHash == "s3cretpass" || u.PasswordHash == "" {
		t.Fatalf("password must be hashed")
	}

	got, err := s.Authenticate(context.Background(), "JO@example.com", "s3cretpass")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("expected user %s, got %s", u.ID, got.ID)
	}
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	s := NewService(NewMemoryRepo())
	if _, err := s.Register(context.Background(), "jo@example.com", "s3cretpass", ""); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := s.Authenticate(context.Background(), "jo@example.com", "wrongpass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := s.Authenticate(context.Background(), "nobody@example.com", "s3cretpass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	s := NewService(NewMemoryRepo())
	if _, err := s.Register(context.Background(), "jo@example.com", "s3cretpass", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := s.Register(context.Background(), "JO@example.com", "otherpass1", ""); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	s := NewService(NewMemoryRepo())
	if _, err := s.Register(context.Background(), "not-an-email", "s3cretpass", ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for bad email, got %v", err)
	}
	if _, err := s.Register(context.Background(), "jo@example.com", "short", ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for short password, got %v", err)
	}
}

func TestCompleteOnboardingIsIdempotent(t *testing.T) {
	s := NewService(NewMemoryRepo())
	u, err := s.Register(context.Background(), "jo@example.com", "s3cretpass", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	u1, err := s.CompleteOnboarding(context.Background(), u.ID)
	if err != nil || !u1.OnboardingCompleted {
		t.Fatalf("expected onboarding completed, got %+v (%v)", u1, err)
	}
	u2, err := s.CompleteOnboarding(context.Background(), u.ID)
	if err != nil || !u2.OnboardingCompleted {
		t.Fatalf("second completion must be a no-op, got %v", err)
	}
	if u2.UpdatedAt != u1.UpdatedAt {
		t.Fatalf("idempotent completion must not touch the row")
	}
}
