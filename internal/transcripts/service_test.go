package transcripts

import (
	"context"
	"errors"
	"testing"
	"time"

	"voicedash/internal/callsession"
)

func testService(repo Repo) *Service {
	s := NewService(repo)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	s.clock = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Minute)
	}
	return s
}

func TestSaveTranscriptAndListByAgent(t *testing.T) {
	repo := NewMemoryRepo()
	s := testService(repo)

	err := s.SaveTranscript(context.Background(), callsession.FinalTranscript{
		UserID:  "u1",
		AgentID: "a1",
		CallID:  "c1",
		Text:    "You: hi\nAssistant: hello",
		Messages: []callsession.Message{
			{Role: callsession.RoleUser, Text: "hi"},
			{Role: callsession.RoleAssistant, Text: "hello"},
		},
		DurationSeconds: 42,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.ListByAgent(context.Background(), "u1", "a1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if got[0].CallID != "c1" || got[0].DurationSeconds != 42 {
		t.Fatalf("unexpected record %+v", got[0])
	}
	if len(got[0].Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got[0].Messages))
	}
}

func TestSaveTranscriptRequiresIdentifiers(t *testing.T) {
	s := testService(NewMemoryRepo())

	err := s.SaveTranscript(context.Background(), callsession.FinalTranscript{
		UserID:  "u1",
		AgentID: "a1",
		Text:    "You: hi",
	})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument without call id, got %v", err)
	}
}

func TestListByUserIsNewestFirstAndScoped(t *testing.T) {
	repo := NewMemoryRepo()
	repo.AgentNames["a1"] = "Clinic Bot"
	s := testService(repo)

	for i, in := range []callsession.FinalTranscript{
		{UserID: "u1", AgentID: "a1", CallID: "c1", Text: "first"},
		{UserID: "u1", AgentID: "a2", CallID: "c2", Text: "second"},
		{UserID: "u2", AgentID: "a9", CallID: "c3", Text: "other user"},
	} {
		if err := s.SaveTranscript(context.Background(), in); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	got, err := s.ListByUser(context.Background(), "u1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records for u1, got %d", len(got))
	}
	if got[0].CallID != "c2" || got[1].CallID != "c1" {
		t.Fatalf("expected newest first, got %q then %q", got[0].CallID, got[1].CallID)
	}
	if got[1].AgentName != "Clinic Bot" {
		t.Fatalf("expected agent name joined, got %q", got[1].AgentName)
	}
}

func TestGetScopedToUser(t *testing.T) {
	repo := NewMemoryRepo()
	s := testService(repo)
	if err := s.SaveTranscript(context.Background(), callsession.FinalTranscript{
		UserID: "u1", AgentID: "a1", CallID: "c1", Text: "hi",
	}); err != nil {
		t.Fatalf("save: %v", err)
	}
	id := repo.Records[0].ID

	if _, err := s.Get(context.Background(), "u1", id); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := s.Get(context.Background(), "u2", id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other user, got %v", err)
	}
}
