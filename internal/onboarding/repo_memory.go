package onboarding

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory profile repository for tests.
type MemoryRepo struct {
	mu       sync.Mutex
	Profiles map[string]Profile
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{Profiles: map[string]Profile{}} }

func (r *MemoryRepo) Get(ctx context.Context, userID string) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.Profiles[userID]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepo) Upsert(ctx context.Context, p Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Profiles[p.UserID] = p
	return nil
}
