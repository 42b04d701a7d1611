package transcripts

import (
	"context"
	"time"

	"github.com/google/uuid"

	"voicedash/internal/callsession"
)

const defaultListLimit = 50

// Service provides transcript persistence and history reads. It
// satisfies the call controller's persistence sink.
type Service struct {
	repo Repo
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repo) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var _ callsession.Sink = (*Service)(nil)

// SaveTranscript stores the finalized transcript of one call.
func (s *Service) SaveTranscript(ctx context.Context, t callsession.FinalTranscript) error {
	if t.UserID == "" || t.AgentID == "" || t.CallID == "" {
		return ErrInvalidArgument
	}
	rec := Record{
		ID:              uuid.NewString(),
		UserID:          t.UserID,
		AgentID:         t.AgentID,
		CallID:          t.CallID,
		Text:            t.Text,
		Messages:        t.Messages,
		DurationSeconds: t.DurationSeconds,
		EndedReason:     t.EndedReason,
		CreatedAt:       s.clock(),
	}
	return s.repo.Insert(ctx, rec)
}

func (s *Service) Get(ctx context.Context, userID, id string) (Record, error) {
	if userID == "" || id == "" {
		return Record{}, ErrInvalidArgument
	}
	return s.repo.Get(ctx, userID, id)
}

// ListByAgent returns the agent's call history, newest first.
func (s *Service) ListByAgent(ctx context.Context, userID, agentID string, limit int) ([]Record, error) {
	if userID == "" || agentID == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.repo.ListByAgent(ctx, userID, agentID, limit)
}

// ListByUser returns the user's call history across all agents, newest
// first, with the agent name joined in.
func (s *Service) ListByUser(ctx context.Context, userID string, limit int) ([]Record, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.repo.ListByUser(ctx, userID, limit)
}
