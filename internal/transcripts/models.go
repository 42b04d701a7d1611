package transcripts

import (
	"errors"
	"time"

	"voicedash/internal/callsession"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Record is one saved call transcript. AgentName is joined in on reads
// and survives agent deletion as an empty string.
type Record struct {
	ID              string                `json:"id" db:"id"`
	UserID          string                `json:"user_id" db:"user_id"`
	AgentID         string                `json:"agent_id" db:"agent_id"`
	AgentName       string                `json:"agent_name,omitempty"`
	CallID          string                `json:"call_id" db:"call_id"`
	Text            string                `json:"transcript" db:"transcript"`
	Messages        []callsession.Message `json:"messages"`
	DurationSeconds int                   `json:"duration_seconds" db:"duration_seconds"`
	EndedReason     string                `json:"ended_reason,omitempty" db:"ended_reason"`
	CreatedAt       time.Time             `json:"created_at" db:"created_at"`
}
