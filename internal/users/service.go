package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Service provides account registration and credential checks.
type Service struct {
	repo Repo
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repo) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// Register creates an account. Emails are normalized to lower case so
// login is case-insensitive.
func (s *Service) Register(ctx context.Context, email, password, fullName string) (User, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return User{}, ErrInvalidArgument
	}
	if len(password) < 8 {
		return User{}, ErrInvalidArgument
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	now := s.clock()
	u := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(fullName),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Authenticate verifies credentials. Unknown email and wrong password
// both return ErrInvalidCredentials; callers must not distinguish them.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (User, error) {
	if id == "" {
		return User{}, ErrInvalidArgument
	}
	return s.repo.GetByID(ctx, id)
}

// CompleteOnboarding flips the wizard-done flag.
func (s *Service) CompleteOnboarding(ctx context.Context, id string) (User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if u.OnboardingCompleted {
		return u, nil
	}
	u.OnboardingCompleted = true
	u.UpdatedAt = s.clock()
	if err := s.repo.Update(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// MarkOnboarded adapts CompleteOnboarding for callers that only need
// the error.
func (s *Service) MarkOnboarded(ctx context.Context, id string) error {
	_, err := s.CompleteOnboarding(ctx, id)
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
