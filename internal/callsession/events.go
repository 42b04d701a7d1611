package callsession

import "strings"

// Role identifies the speaker of a transcript fragment.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Event is the normalized session event vocabulary. The provider adapter
// translates its raw callback/event shapes into exactly these types at the
// boundary; nothing downstream inspects raw provider payloads.
type Event interface {
	// EventKind returns the event type string for logging/serialization.
	EventKind() string
}

// StartedEvent is emitted when the provider confirms the call is live.
// CallID may be empty when the provider only supplies it via the start
// return value; the controller converges on whichever arrives first.
type StartedEvent struct {
	CallID string `json:"call_id,omitempty"`
}

func (e StartedEvent) EventKind() string { return "call.started" }

// EndedEvent is emitted exactly when the call is over, whatever the cause:
// local stop, remote hangup, or a provider error classified as benign.
// The provider may emit it more than once; consumers must tolerate that.
type EndedEvent struct {
	Reason string `json:"reason,omitempty"`
}

func (e EndedEvent) EventKind() string { return "call.ended" }

// SpeechStartEvent: the assistant began speaking.
type SpeechStartEvent struct{}

func (e SpeechStartEvent) EventKind() string { return "speech.start" }

// SpeechEndEvent: the assistant finished speaking.
type SpeechEndEvent struct{}

func (e SpeechEndEvent) EventKind() string { return "speech.end" }

// TranscriptEvent is one recognized speech fragment. Final fragments are
// conversation-ordered; partial fragments only replace the per-role preview.
type TranscriptEvent struct {
	Role  Role   `json:"role"`
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

func (e TranscriptEvent) EventKind() string { return "transcript" }

// FailureEvent is a real session fault (already classified: benign
// terminations never surface as failures). The session is over.
type FailureEvent struct {
	Message string `json:"message"`
}

func (e FailureEvent) EventKind() string { return "call.failed" }

// QueuedEvent, RingingEvent and AnsweredEvent mirror the provider's
// pre-connection progress notifications; they only drive status text.
type QueuedEvent struct{}

func (e QueuedEvent) EventKind() string { return "call.queued" }

type RingingEvent struct{}

func (e RingingEvent) EventKind() string { return "call.ringing" }

type AnsweredEvent struct{}

func (e AnsweredEvent) EventKind() string { return "call.answered" }

// benignEndMarkers are the provider phrases that signal a normal hangup
// delivered through the error channel.
var benignEndMarkers = []string{
	"ejection",
	"meeting has ended",
	"meeting ended",
	"call ended",
}

// IsBenignTermination reports whether a provider "error" payload actually
// signals a normal end of call. Matching is case-insensitive over the
// message and any serialized payload text.
func IsBenignTermination(payload string) bool {
	lower := strings.ToLower(payload)
	for _, marker := range benignEndMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
