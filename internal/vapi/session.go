package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"voicedash/internal/assistant"
	"voicedash/internal/callsession"
)

const controlTimeout = 5 * time.Second

// Factory builds live call sessions against the voice provider. One
// Session per call.
type Factory struct {
	api *assistant.Client
	log *slog.Logger
}

// NewFactory wires the provider REST client for live calls. It fails
// with ErrNotConfigured when no API credential is present so callers can
// degrade the call feature instead of crashing.
func NewFactory(api *assistant.Client, log *slog.Logger) (*Factory, error) {
	if api == nil {
		return nil, callsession.ErrNotConfigured
	}
	if log == nil {
		log = slog.Default()
	}
	return &Factory{api: api, log: log}, nil
}

var _ callsession.ArtifactFetcher = (*Factory)(nil)

// FetchMessages maps the provider's call artifact onto transcript
// messages. System and tool entries carry no spoken text and are skipped.
func (f *Factory) FetchMessages(ctx context.Context, callID string) ([]callsession.Message, error) {
	call, err := f.api.GetCall(ctx, callID)
	if err != nil {
		return nil, err
	}
	var msgs []callsession.Message
	for _, m := range call.Artifact.Messages {
		if m.Message == "" {
			continue
		}
		var role callsession.Role
		switch m.Role {
		case "user":
			role = callsession.RoleUser
		case "assistant", "bot":
			role = callsession.RoleAssistant
		default:
			continue
		}
		msgs = append(msgs, callsession.Message{Role: role, Text: m.Message, Time: m.SecondsFromStart})
	}
	return msgs, nil
}

// NewSession returns a fresh session for one call.
func (f *Factory) NewSession() callsession.Client {
	return &Session{
		api:    f.api,
		log:    f.log,
		dial:   dialWebsocket,
		http:   &http.Client{Timeout: controlTimeout},
		events: make(chan callsession.Event, 32),
	}
}

func dialWebsocket(ctx context.Context, url string) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	return conn, err
}

// Session is one live provider call: a web call created over REST plus a
// websocket attachment to its monitor stream. It translates provider
// monitor messages into the normalized event vocabulary and classifies
// benign terminations before anything reaches the controller.
type Session struct {
	api  *assistant.Client
	log  *slog.Logger
	dial func(ctx context.Context, url string) (*websocket.Conn, error)
	http *http.Client

	events chan callsession.Event

	mu         sync.Mutex
	started    bool
	stopping   bool
	terminal   bool
	callID     string
	controlURL string
	conn       *websocket.Conn

	stopOnce sync.Once
}

var _ callsession.Client = (*Session)(nil)

// Start creates the web call and attaches to its monitor stream.
func (s *Session) Start(ctx context.Context, assistantID string, opts callsession.StartOptions) (callsession.StartInfo, error) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return callsession.StartInfo{}, callsession.ErrAlreadyActive
	}
	s.started = true
	s.mu.Unlock()

	call, err := s.api.CreateWebCall(ctx, assistantID, assistant.CallOptions{
		JoinTimeoutSeconds:    opts.JoinTimeoutSeconds,
		SilenceTimeoutSeconds: opts.SilenceTimeoutSeconds,
	})
	if err != nil {
		s.finishStart()
		return callsession.StartInfo{}, fmt.Errorf("create web call: %w", err)
	}

	conn, err := s.dial(ctx, call.Monitor.ListenURL)
	if err != nil {
		s.finishStart()
		return callsession.StartInfo{}, fmt.Errorf("attach call monitor: %w", err)
	}

	s.mu.Lock()
	s.callID = call.ID
	s.controlURL = call.Monitor.ControlURL
	s.conn = conn
	s.mu.Unlock()

	go s.readLoop(conn)

	return callsession.StartInfo{CallID: call.ID, ControlURL: call.Monitor.ControlURL}, nil
}

// finishStart closes the event stream after a failed Start so consumers
// ranging over Events unwind.
func (s *Session) finishStart() {
	s.mu.Lock()
	if !s.terminal {
		s.terminal = true
		close(s.events)
	}
	s.mu.Unlock()
}

// Stop requests call teardown. Idempotent. The resulting ended event is
// delivered through Events by the monitor read loop; if the transport is
// already gone the loop's close handling emits it.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopping = true
		conn := s.conn
		controlURL := s.controlURL
		callID := s.callID
		s.mu.Unlock()

		if controlURL != "" {
			if err := s.sendControl(map[string]string{"type": "end-call"}); err != nil {
				s.log.Warn("end-call control failed", slog.String("call_id", callID), slog.Any("error", err))
				ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
				defer cancel()
				if callID != "" {
					if err := s.api.EndCall(ctx, callID); err != nil {
						s.log.Warn("end call request failed", slog.String("call_id", callID), slog.Any("error", err))
					}
				}
			}
		}
		if conn != nil {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
			_ = conn.Close()
		}
	})
}

// SetMicMuted toggles the caller audio on the live call.
func (s *Session) SetMicMuted(muted bool) {
	op := "unmute-user"
	if muted {
		op = "mute-user"
	}
	if err := s.sendControl(map[string]string{"type": "control", "control": op}); err != nil {
		s.log.Warn("mic control failed", slog.String("control", op), slog.Any("error", err))
	}
}

// CanMuteSpeaker reports whether assistant audio control is available,
// which requires a control endpoint on the monitor.
func (s *Session) CanMuteSpeaker() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controlURL != ""
}

func (s *Session) SetSpeakerMuted(muted bool) {
	op := "unmute-assistant"
	if muted {
		op = "mute-assistant"
	}
	if err := s.sendControl(map[string]string{"type": "control", "control": op}); err != nil {
		s.log.Warn("speaker control failed", slog.String("control", op), slog.Any("error", err))
	}
}

func (s *Session) Events() <-chan callsession.Event { return s.events }

func (s *Session) sendControl(msg map[string]string) error {
	s.mu.Lock()
	controlURL := s.controlURL
	s.mu.Unlock()
	if controlURL == "" {
		return fmt.Errorf("no control url")
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, controlURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("control endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// monitorMessage is the provider's monitor stream frame. Only the fields
// the dashboard consumes are decoded.
type monitorMessage struct {
	Type           string          `json:"type"`
	Status         string          `json:"status,omitempty"`
	Role           string          `json:"role,omitempty"`
	Transcript     string          `json:"transcript,omitempty"`
	TranscriptType string          `json:"transcriptType,omitempty"`
	EndedReason    string          `json:"endedReason,omitempty"`
	Call           *monitorCall    `json:"call,omitempty"`
	Error          json.RawMessage `json:"error,omitempty"`
}

type monitorCall struct {
	ID string `json:"id"`
}

func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			s.handleReadError(err)
			return
		}
		if messageType != websocket.TextMessage {
			// Binary frames on the monitor carry raw call audio; the
			// dashboard only consumes the JSON event stream.
			continue
		}

		var msg monitorMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Warn("undecodable monitor frame", slog.Any("error", err))
			continue
		}
		if done := s.dispatch(msg); done {
			return
		}
	}
}

func (s *Session) dispatch(msg monitorMessage) bool {
	switch msg.Type {
	case "call-start":
		callID := ""
		if msg.Call != nil {
			callID = msg.Call.ID
		}
		s.emit(callsession.StartedEvent{CallID: callID})
	case "status-update":
		switch msg.Status {
		case "queued":
			s.emit(callsession.QueuedEvent{})
		case "ringing":
			s.emit(callsession.RingingEvent{})
		case "in-progress":
			s.emit(callsession.AnsweredEvent{})
		case "ended":
			return s.emitTerminal(callsession.EndedEvent{Reason: msg.EndedReason})
		}
	case "speech-update":
		if msg.Role != "assistant" {
			return false
		}
		switch msg.Status {
		case "started":
			s.emit(callsession.SpeechStartEvent{})
		case "stopped":
			s.emit(callsession.SpeechEndEvent{})
		}
	case "transcript":
		role := callsession.RoleAssistant
		if msg.Role == "user" {
			role = callsession.RoleUser
		}
		s.emit(callsession.TranscriptEvent{
			Role:  role,
			Text:  msg.Transcript,
			Final: msg.TranscriptType == "final",
		})
	case "call-end", "hangup":
		return s.emitTerminal(callsession.EndedEvent{Reason: msg.EndedReason})
	case "error":
		text := string(msg.Error)
		if callsession.IsBenignTermination(text) {
			return s.emitTerminal(callsession.EndedEvent{Reason: "call ended"})
		}
		return s.emitTerminal(callsession.FailureEvent{Message: text})
	}
	return false
}

func (s *Session) handleReadError(err error) {
	s.mu.Lock()
	stopping := s.stopping
	s.mu.Unlock()

	switch {
	case stopping,
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway),
		callsession.IsBenignTermination(err.Error()):
		s.emitTerminal(callsession.EndedEvent{Reason: "call ended"})
	default:
		s.emitTerminal(callsession.FailureEvent{Message: err.Error()})
	}
}

func (s *Session) emit(ev callsession.Event) {
	s.mu.Lock()
	terminal := s.terminal
	s.mu.Unlock()
	if terminal {
		return
	}
	select {
	case s.events <- ev:
	default:
		// Never block the read loop on a stalled consumer.
	}
}

// emitTerminal delivers the final event exactly once and closes the
// stream. Always returns true so dispatch callers can unwind.
func (s *Session) emitTerminal(ev callsession.Event) bool {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return true
	}
	s.terminal = true
	s.mu.Unlock()

	s.events <- ev
	close(s.events)

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	return true
}
