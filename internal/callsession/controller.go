package callsession

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// State is the controller lifecycle state.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateActive   State = "active"
	StateEnding   State = "ending"
	StateFailed   State = "failed"
)

const persistTimeout = 10 * time.Second

// FinalTranscript is the persistence payload produced once per call.
type FinalTranscript struct {
	UserID          string
	AgentID         string
	CallID          string
	Text            string
	Messages        []Message
	DurationSeconds int
	EndedReason     string
}

// Sink receives the finalized transcript. The controller calls it at most
// once per call.
type Sink interface {
	SaveTranscript(ctx context.Context, t FinalTranscript) error
}

// ArtifactFetcher retrieves a call's transcript from the provider's
// post-call record. Consulted only when the live stream produced no
// final fragments.
type ArtifactFetcher interface {
	FetchMessages(ctx context.Context, callID string) ([]Message, error)
}

// Hooks are the controller's outbound notifications. Nil hooks are
// skipped. They are invoked from the controller's event goroutine.
type Hooks struct {
	Status     func(text string)
	Error      func(msg string)
	Transcript func(s Snapshot)
	Ended      func()
}

// Config wires a Controller for one user/agent pair.
type Config struct {
	Client    Client
	Mic       MicGate
	Sink      Sink
	Artifacts ArtifactFetcher
	Hooks     Hooks
	Log       *slog.Logger

	UserID      string
	AgentID     string
	AssistantID string
	Options     StartOptions

	Clock func() time.Time
}

// Controller drives one call at a time through its lifecycle: microphone
// gate, provider session, live transcript aggregation, and exactly-once
// finalize-and-persist on termination.
type Controller struct {
	client    Client
	mic       MicGate
	sink      Sink
	artifacts ArtifactFetcher
	hooks     Hooks
	log       *slog.Logger
	clock     func() time.Time

	userID      string
	agentID     string
	assistantID string
	opts        StartOptions

	agg *Aggregator

	mu          sync.Mutex
	state       State
	callID      string
	terminating bool
	finalized   bool
	startedAt   time.Time

	done chan struct{}
}

func NewController(cfg Config) *Controller {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Mic == nil {
		cfg.Mic = OpenMicGate{}
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Controller{
		client:      cfg.Client,
		mic:         cfg.Mic,
		sink:        cfg.Sink,
		artifacts:   cfg.Artifacts,
		hooks:       cfg.Hooks,
		log:         cfg.Log,
		clock:       cfg.Clock,
		userID:      cfg.UserID,
		agentID:     cfg.AgentID,
		assistantID: cfg.AssistantID,
		opts:        cfg.Options,
		agg:         NewAggregator(cfg.Clock),
		state:       StateIdle,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CallID returns the provider call id, or "" if none has arrived yet.
func (c *Controller) CallID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callID
}

// StartCall acquires the microphone, opens the provider session and
// begins consuming its events. It returns once the call attempt has been
// accepted; the call going live is reported through Hooks.Status.
func (c *Controller) StartCall(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle && c.state != StateFailed {
		c.mu.Unlock()
		return ErrAlreadyActive
	}
	c.state = StateStarting
	c.callID = ""
	c.terminating = false
	c.finalized = false
	c.done = make(chan struct{})
	c.mu.Unlock()

	c.agg.Reset()
	c.status("Requesting microphone access...")

	if err := c.mic.Acquire(ctx); err != nil {
		c.log.Warn("microphone permission denied", slog.String("agent_id", c.agentID), slog.Any("error", err))
		c.setState(StateIdle)
		c.reportError("Failed to access microphone")
		c.closeDone()
		return err
	}

	c.status("Starting call...")

	info, err := c.client.Start(ctx, c.assistantID, c.opts)
	if err != nil {
		c.log.Error("call start failed", slog.String("assistant_id", c.assistantID), slog.Any("error", err))
		c.setState(StateFailed)
		c.reportError("Failed to start call")
		c.closeDone()
		return err
	}

	c.mu.Lock()
	c.startedAt = c.clock()
	if c.callID == "" && info.CallID != "" {
		c.callID = info.CallID
	}
	c.mu.Unlock()

	go c.loop()
	return nil
}

// StopCall requests teardown of the active call. Safe to call in any
// state; the session's ended signal drives finalization.
func (c *Controller) StopCall() {
	c.mu.Lock()
	if c.state == StateIdle || c.state == StateFailed {
		c.mu.Unlock()
		return
	}
	c.terminating = true
	c.mu.Unlock()

	c.status("Call ended")
	c.client.Stop()
}

// SetMicMuted toggles the caller microphone on the live session.
func (c *Controller) SetMicMuted(muted bool) {
	c.client.SetMicMuted(muted)
}

// SetSpeakerMuted toggles assistant audio when the session supports it.
// Returns false when speaker muting is unavailable.
func (c *Controller) SetSpeakerMuted(muted bool) bool {
	if !c.client.CanMuteSpeaker() {
		return false
	}
	c.client.SetSpeakerMuted(muted)
	return true
}

// Wait blocks until the current call has fully terminated. Returns
// immediately if no call was started.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (c *Controller) loop() {
	for ev := range c.client.Events() {
		switch e := ev.(type) {
		case StartedEvent:
			c.adoptCallID(e.CallID)
			c.setState(StateActive)
			c.status("Call in progress...")
		case QueuedEvent:
			c.status("Call queued...")
		case RingingEvent:
			c.status("Ringing...")
		case AnsweredEvent:
			c.setState(StateActive)
			c.status("Call in progress...")
		case SpeechStartEvent:
			if !c.isTerminating() {
				c.status("Assistant is speaking...")
			}
		case SpeechEndEvent:
			if !c.isTerminating() && c.State() == StateActive {
				c.status("Listening...")
			}
		case TranscriptEvent:
			c.agg.OnFragment(e.Role, e.Text, e.Final)
			if c.hooks.Transcript != nil {
				c.hooks.Transcript(c.agg.Snapshot())
			}
		case EndedEvent:
			c.finish("", e.Reason)
			return
		case FailureEvent:
			c.finish(e.Message, "error")
			return
		}
	}
	// The stream closed without a terminal event. Treat as ended so the
	// transcript is not lost.
	c.finish("", "stream closed")
}

// finish runs the terminal transition. The finalized guard makes it a
// no-op on every call after the first, whatever the trigger.
func (c *Controller) finish(errMsg, reason string) {
	c.mu.Lock()
	if c.finalized {
		c.mu.Unlock()
		return
	}
	c.finalized = true
	if errMsg != "" {
		c.state = StateFailed
	} else {
		c.state = StateEnding
	}
	callID := c.callID
	startedAt := c.startedAt
	c.mu.Unlock()

	if errMsg != "" {
		c.reportError(errMsg)
	}
	c.status("Call ended")

	msgs := c.agg.Finalize()
	c.persist(callID, startedAt, reason, msgs)

	if errMsg == "" {
		c.setState(StateIdle)
	}
	if c.hooks.Ended != nil {
		c.hooks.Ended()
	}
	c.closeDone()
}

func (c *Controller) persist(callID string, startedAt time.Time, reason string, msgs []Message) {
	if callID == "" {
		c.log.Warn("transcript not saved", slog.String("agent_id", c.agentID), slog.String("reason", "no call id available"))
		c.reportError("no call id available")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if len(msgs) == 0 && c.artifacts != nil {
		fetched, err := c.artifacts.FetchMessages(ctx, callID)
		if err != nil {
			c.log.Warn("call artifact fetch failed",
				slog.String("call_id", callID), slog.Any("error", err))
		} else {
			msgs = fetched
		}
	}
	// A call that never produced finalized speech leaves no record.
	if len(msgs) == 0 {
		c.log.Debug("no transcript to save", slog.String("agent_id", c.agentID))
		return
	}
	if c.sink == nil {
		return
	}

	duration := 0
	if !startedAt.IsZero() {
		duration = int(c.clock().Sub(startedAt).Seconds())
	}

	t := FinalTranscript{
		UserID:          c.userID,
		AgentID:         c.agentID,
		CallID:          callID,
		Text:            JoinMessages(msgs),
		Messages:        msgs,
		DurationSeconds: duration,
		EndedReason:     reason,
	}
	if err := c.sink.SaveTranscript(ctx, t); err != nil {
		c.log.Error("transcript save failed",
			slog.String("call_id", callID),
			slog.String("agent_id", c.agentID),
			slog.Any("error", err))
		c.reportError("Failed to save call transcript")
	}
}

func (c *Controller) adoptCallID(id string) {
	if id == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.callID == "" {
		c.callID = id
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) isTerminating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminating
}

func (c *Controller) status(text string) {
	if c.hooks.Status != nil {
		c.hooks.Status(text)
	}
}

func (c *Controller) reportError(msg string) {
	if c.hooks.Error != nil {
		c.hooks.Error(msg)
	}
}

func (c *Controller) closeDone() {
	c.mu.Lock()
	if c.done != nil {
		close(c.done)
		c.done = nil
	}
	c.mu.Unlock()
}
