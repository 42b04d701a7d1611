package agents

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory agent repository for tests and early
// development. It enforces user scoping on reads the same way the SQL
// queries do.
type MemoryRepo struct {
	mu     sync.Mutex
	Agents map[string]Agent
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{Agents: map[string]Agent{}} }

func (r *MemoryRepo) Insert(ctx context.Context, a Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Agents[a.ID] = a
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, userID, id string) (Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.Agents[id]
	if !ok || a.UserID != userID {
		return Agent{}, ErrNotFound
	}
	return a, nil
}

func (r *MemoryRepo) Update(ctx context.Context, a Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.Agents[a.ID]
	if !ok || cur.UserID != a.UserID {
		return ErrNotFound
	}
	r.Agents[a.ID] = a
	return nil
}

func (r *MemoryRepo) ListActive(ctx context.Context, userID string) ([]Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Agent, 0)
	for _, a := range r.Agents {
		if a.UserID == userID && a.IsActive {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) MostRecentActive(ctx context.Context, userID string) (Agent, error) {
	return r.newest(userID, func(a Agent) bool { return a.IsActive })
}

func (r *MemoryRepo) MostRecentDraft(ctx context.Context, userID string) (Agent, error) {
	return r.newest(userID, func(a Agent) bool { return !a.IsActive && a.AssistantID == "" })
}

func (r *MemoryRepo) newest(userID string, match func(Agent) bool) (Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best Agent
	found := false
	for _, a := range r.Agents {
		if a.UserID != userID || !match(a) {
			continue
		}
		if !found || a.CreatedAt.After(best.CreatedAt) {
			best = a
			found = true
		}
	}
	if !found {
		return Agent{}, ErrNotFound
	}
	return best, nil
}

func (r *MemoryRepo) Deactivate(ctx context.Context, userID, id string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.Agents[id]
	if !ok || a.UserID != userID || !a.IsActive {
		return ErrNotFound
	}
	a.IsActive = false
	a.UpdatedAt = now
	r.Agents[id] = a
	return nil
}
