package callsession

import (
	"strings"
	"sync"
	"time"
)

// Message is one finalized transcript line. Time is seconds since the
// aggregator was reset for this call.
type Message struct {
	Role Role    `json:"role"`
	Text string  `json:"text"`
	Time float64 `json:"time"`
}

// Snapshot is the aggregator's current view: the ordered final messages
// plus the in-flight partial preview per role. Partials are display-only
// and never persisted.
type Snapshot struct {
	Messages         []Message `json:"messages"`
	UserPartial      string    `json:"user_partial,omitempty"`
	AssistantPartial string    `json:"assistant_partial,omitempty"`
}

// Aggregator folds transcript fragments into an ordered conversation.
// Final fragments append in arrival order; partial fragments replace the
// per-role preview. Safe for concurrent use.
type Aggregator struct {
	clock func() time.Time

	mu        sync.Mutex
	startedAt time.Time
	final     []Message
	partials  map[Role]string
	closed    bool
}

func NewAggregator(clock func() time.Time) *Aggregator {
	if clock == nil {
		clock = time.Now
	}
	a := &Aggregator{clock: clock}
	a.Reset()
	return a
}

// Reset clears all state and restarts the call clock. The aggregator
// accepts fragments again after a Reset, even if it was finalized.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.startedAt = a.clock()
	a.final = nil
	a.partials = make(map[Role]string)
	a.closed = false
}

// OnFragment records one recognized fragment. Fragments arriving after
// Finalize are dropped.
func (a *Aggregator) OnFragment(role Role, text string, final bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	if final {
		a.final = append(a.final, Message{
			Role: role,
			Text: text,
			Time: a.clock().Sub(a.startedAt).Seconds(),
		})
		delete(a.partials, role)
		return
	}
	a.partials[role] = text
}

// Snapshot returns a copy of the current conversation state.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{
		Messages:         append([]Message(nil), a.final...),
		UserPartial:      a.partials[RoleUser],
		AssistantPartial: a.partials[RoleAssistant],
	}
}

// Finalize closes the aggregator and returns the final messages. Pending
// partials are discarded, not promoted. Calling Finalize again returns
// the same messages.
func (a *Aggregator) Finalize() []Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.partials = make(map[Role]string)
	return append([]Message(nil), a.final...)
}

// JoinMessages renders messages as the canonical persisted text: one line
// per message, "You:" for the caller and "Assistant:" for the agent.
func JoinMessages(msgs []Message) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteByte('\n')
		}
		if m.Role == RoleUser {
			b.WriteString("You: ")
		} else {
			b.WriteString("Assistant: ")
		}
		b.WriteString(m.Text)
	}
	return b.String()
}
