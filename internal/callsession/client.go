package callsession

import (
	"context"
	"errors"
)

var (
	// ErrNotConfigured means the provider credential is missing and live
	// calls cannot be placed.
	ErrNotConfigured = errors.New("callsession: voice provider is not configured")
	// ErrAlreadyActive means Start was called while a session is running.
	ErrAlreadyActive = errors.New("callsession: a call is already active")
)

// StartOptions tune the provider session.
type StartOptions struct {
	JoinTimeoutSeconds    int
	SilenceTimeoutSeconds int
}

// StartInfo is what the provider returns synchronously from Start. CallID
// may be empty; the session may instead deliver it in StartedEvent.
type StartInfo struct {
	CallID     string
	ControlURL string
}

// Client is one live provider session. Implementations must translate raw
// provider events into the normalized Event vocabulary, classify benign
// terminations as EndedEvent rather than FailureEvent, and make Stop safe
// to call at any time, any number of times.
type Client interface {
	// Start opens the session against the given assistant. It returns
	// once the provider accepted the call attempt; the call becoming
	// live is signalled by StartedEvent.
	Start(ctx context.Context, assistantID string, opts StartOptions) (StartInfo, error)

	// Stop requests session teardown. Idempotent; the resulting
	// EndedEvent still flows through Events.
	Stop()

	// SetMicMuted toggles the caller's microphone.
	SetMicMuted(muted bool)

	// CanMuteSpeaker reports whether assistant audio can be muted in the
	// current session. SetSpeakerMuted is a no-op when it returns false.
	CanMuteSpeaker() bool
	SetSpeakerMuted(muted bool)

	// Events is the session's normalized event stream. It is closed
	// after the terminal EndedEvent or FailureEvent has been delivered.
	Events() <-chan Event
}

// MicGate acquires microphone permission before a session may open. The
// gate runs first: if it fails, no provider session is ever started.
type MicGate interface {
	Acquire(ctx context.Context) error
}

// OpenMicGate is a MicGate that always grants. Used where the transport
// has no permission round-trip.
type OpenMicGate struct{}

func (OpenMicGate) Acquire(context.Context) error { return nil }
