package livecall

import "voicedash/internal/callsession"

// The browser talks to /ws/call with small JSON frames. One connection
// drives at most one call at a time.

// ClientMessage is any frame sent by the browser.
type ClientMessage struct {
	Type string `json:"type"`

	// start
	AgentID string `json:"agent_id,omitempty"`

	// mic / speaker
	Muted bool `json:"muted,omitempty"`

	// mic_permission reply
	Granted bool `json:"granted,omitempty"`
}

const (
	// client -> server
	MsgStart         = "start"
	MsgStop          = "stop"
	MsgMic           = "mic"
	MsgSpeaker       = "speaker"
	MsgMicPermission = "mic_permission"

	// server -> client
	MsgMicRequest = "mic_request"
	MsgStarted    = "started"
	MsgStatus     = "status"
	MsgTranscript = "transcript"
	MsgEnded      = "ended"
	MsgError      = "error"
)

// ServerMessage is any frame sent to the browser.
type ServerMessage struct {
	Type string `json:"type"`

	CallID  string `json:"call_id,omitempty"`
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`

	Snapshot *callsession.Snapshot `json:"snapshot,omitempty"`
}
