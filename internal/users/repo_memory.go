package users

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory user repository for tests.
type MemoryRepo struct {
	mu    sync.Mutex
	Users map[string]User
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{Users: map[string]User{}} }

func (r *MemoryRepo) Insert(ctx context.Context, u User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.Users {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	r.Users[u.ID] = u
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.Users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *MemoryRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.Users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *MemoryRepo) Update(ctx context.Context, u User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.Users[u.ID]; !ok {
		return ErrNotFound
	}
	r.Users[u.ID] = u
	return nil
}
