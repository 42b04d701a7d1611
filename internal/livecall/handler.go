package livecall

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"voicedash/internal/agents"
	"voicedash/internal/auth"
	"voicedash/internal/callsession"
)

const micPermissionTimeout = 15 * time.Second

// Every web call carries these provider timeouts.
const (
	defaultJoinTimeoutSeconds    = 30
	defaultSilenceTimeoutSeconds = 30
)

// SessionFactory builds one provider session per call. Satisfied by the
// voice provider adapter; nil means calls are not available.
type SessionFactory interface {
	NewSession() callsession.Client
}

// Handler bridges a browser websocket to the call lifecycle controller.
// Protocol: the client sends start/stop/mic/speaker frames; the server
// pushes status, live transcript snapshots, the ended marker, and a
// mic_request the client must answer before the call opens.
type Handler struct {
	agents    *agents.Service
	sink      callsession.Sink
	sessions  SessionFactory
	artifacts callsession.ArtifactFetcher
	limiter   Limiter
	log       *slog.Logger
	opts      callsession.StartOptions

	upgrader websocket.Upgrader
}

func NewHandler(agentSvc *agents.Service, sink callsession.Sink, sessions SessionFactory, artifacts callsession.ArtifactFetcher, limiter Limiter, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		agents:    agentSvc,
		sink:      sink,
		sessions:  sessions,
		artifacts: artifacts,
		limiter:   limiter,
		log:       log,
		opts: callsession.StartOptions{
			JoinTimeoutSeconds:    defaultJoinTimeoutSeconds,
			SilenceTimeoutSeconds: defaultSilenceTimeoutSeconds,
		},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handle upgrades the request and runs the connection until the browser
// goes away. Requires an authenticated request context.
func (h *Handler) Handle(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	conn := &connection{
		handler: h,
		ws:      ws,
		userID:  userID,
		micCh:   make(chan bool, 1),
	}
	conn.run()
}

// connection is one browser websocket. It owns the write side; all
// frames go through send so controller goroutines and the read loop
// never interleave writes.
type connection struct {
	handler *Handler
	ws      *websocket.Conn
	userID  string

	writeMu sync.Mutex
	micCh   chan bool

	mu         sync.Mutex
	controller *callsession.Controller
	// pending covers the window between accepting a start frame and the
	// spawned StartCall reflecting it in the controller state.
	pending bool
}

func (c *connection) run() {
	defer c.ws.Close()
	defer c.teardown()

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendError("invalid message")
			continue
		}
		c.dispatch(msg)
	}
}

func (c *connection) dispatch(msg ClientMessage) {
	switch msg.Type {
	case MsgStart:
		c.handleStart(msg.AgentID)
	case MsgStop:
		if ctrl := c.current(); ctrl != nil {
			ctrl.StopCall()
		}
	case MsgMic:
		if ctrl := c.current(); ctrl != nil {
			ctrl.SetMicMuted(msg.Muted)
		}
	case MsgSpeaker:
		ctrl := c.current()
		if ctrl == nil || !ctrl.SetSpeakerMuted(msg.Muted) {
			c.sendError("speaker mute is not available")
		}
	case MsgMicPermission:
		select {
		case c.micCh <- msg.Granted:
		default:
		}
	default:
		c.sendError("unknown message type")
	}
}

func (c *connection) handleStart(agentID string) {
	if c.handler.sessions == nil {
		c.sendError("calls are not available")
		return
	}
	if agentID == "" {
		c.sendError("agent_id is required")
		return
	}

	c.mu.Lock()
	busy := c.pending
	if !busy && c.controller != nil {
		st := c.controller.State()
		busy = st != callsession.StateIdle && st != callsession.StateFailed
	}
	if busy {
		c.mu.Unlock()
		c.sendError("a call is already active")
		return
	}
	c.pending = true
	c.mu.Unlock()

	agent, err := c.handler.agents.Get(context.Background(), c.userID, agentID)
	if err != nil {
		c.clearPending()
		if errors.Is(err, agents.ErrNotFound) {
			c.sendError("agent not found")
		} else {
			c.sendError("failed to load agent")
		}
		return
	}
	if !agent.Usable() {
		c.clearPending()
		c.sendError("agent has no assistant configured")
		return
	}

	if c.handler.limiter != nil {
		ok, err := c.handler.limiter.Acquire(context.Background(), c.userID)
		if err != nil {
			c.clearPending()
			c.handler.log.Warn("call slot acquire failed", slog.Any("error", err))
			c.sendError("failed to start call")
			return
		}
		if !ok {
			c.clearPending()
			c.sendError("another call is already active")
			return
		}
	}

	ctrl := callsession.NewController(callsession.Config{
		Client:      c.handler.sessions.NewSession(),
		Mic:         c,
		Sink:        c.handler.sink,
		Artifacts:   c.handler.artifacts,
		Log:         c.handler.log,
		UserID:      c.userID,
		AgentID:     agent.ID,
		AssistantID: agent.AssistantID,
		Options:     c.handler.opts,
		Hooks: callsession.Hooks{
			Status: func(text string) {
				c.send(ServerMessage{Type: MsgStatus, Text: text})
			},
			Error: func(msg string) {
				c.send(ServerMessage{Type: MsgError, Message: msg})
			},
			Transcript: func(s callsession.Snapshot) {
				snap := s
				c.send(ServerMessage{Type: MsgTranscript, Snapshot: &snap})
			},
			Ended: func() {
				c.releaseSlot()
				c.send(ServerMessage{Type: MsgEnded})
			},
		},
	})

	c.mu.Lock()
	c.controller = ctrl
	c.mu.Unlock()

	// StartCall blocks on the mic permission round-trip, which needs the
	// read loop free to deliver the reply.
	go func() {
		err := ctrl.StartCall(context.Background())
		c.clearPending()
		if err != nil {
			c.releaseSlot()
			c.handler.log.Warn("call start failed",
				slog.String("agent_id", agent.ID), slog.Any("error", err))
			return
		}
		c.send(ServerMessage{Type: MsgStarted, CallID: ctrl.CallID()})
	}()
}

func (c *connection) clearPending() {
	c.mu.Lock()
	c.pending = false
	c.mu.Unlock()
}

// Acquire implements the controller's microphone gate over the
// websocket: ask the browser, wait for the answer.
func (c *connection) Acquire(ctx context.Context) error {
	// Drain a stale reply from a previous attempt.
	select {
	case <-c.micCh:
	default:
	}

	c.send(ServerMessage{Type: MsgMicRequest})

	timer := time.NewTimer(micPermissionTimeout)
	defer timer.Stop()

	select {
	case granted := <-c.micCh:
		if !granted {
			return errors.New("microphone permission denied")
		}
		return nil
	case <-timer.C:
		return errors.New("microphone permission timed out")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// releaseSlot frees the user's call slot. A failed start and a call end
// never both happen for one attempt.
func (c *connection) releaseSlot() {
	if c.handler.limiter == nil {
		return
	}
	if err := c.handler.limiter.Release(context.Background(), c.userID); err != nil {
		c.handler.log.Warn("call slot release failed", slog.Any("error", err))
	}
}

func (c *connection) current() *callsession.Controller {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

// teardown ends the in-flight call when the browser disconnects so the
// transcript is still finalized and persisted.
func (c *connection) teardown() {
	ctrl := c.current()
	if ctrl == nil {
		return
	}
	if ctrl.State() != callsession.StateIdle && ctrl.State() != callsession.StateFailed {
		ctrl.StopCall()
		ctrl.Wait()
	}
}

func (c *connection) send(msg ServerMessage) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteJSON(msg); err != nil {
		c.handler.log.Debug("websocket write failed", slog.Any("error", err))
	}
}

func (c *connection) sendError(msg string) {
	c.send(ServerMessage{Type: MsgError, Message: msg})
}
