package transcripts

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory transcript repository for tests and early
// development. AgentNames stands in for the read-side join on the
// agents table.
type MemoryRepo struct {
	mu sync.Mutex

	Records    []Record
	AgentNames map[string]string
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{AgentNames: map[string]string{}} }

func (r *MemoryRepo) Insert(ctx context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Records = append(r.Records, rec)
	return nil
}

func (r *MemoryRepo) Get(ctx context.Context, userID, id string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.Records {
		if rec.UserID == userID && rec.ID == id {
			rec.AgentName = r.AgentNames[rec.AgentID]
			return rec, nil
		}
	}
	return Record{}, ErrNotFound
}

func (r *MemoryRepo) ListByAgent(ctx context.Context, userID, agentID string, limit int) ([]Record, error) {
	return r.list(userID, agentID, limit), nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit int) ([]Record, error) {
	return r.list(userID, "", limit), nil
}

func (r *MemoryRepo) list(userID, agentID string, limit int) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, 0)
	for _, rec := range r.Records {
		if rec.UserID != userID {
			continue
		}
		if agentID != "" && rec.AgentID != agentID {
			continue
		}
		rec.AgentName = r.AgentNames[rec.AgentID]
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
