package vapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"voicedash/internal/assistant"
	"voicedash/internal/callsession"
	"voicedash/internal/config"
)

func newMonitorServer(t *testing.T, script func(conn *websocket.Conn)) (string, func()) {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		script(conn)
	}))
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	return wsURL, srv.Close
}

func newCallAPI(t *testing.T, listenURL, controlURL string) (*assistant.Client, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/call" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id": "call-mon-1",
				"monitor": map[string]string{
					"listenUrl":  listenURL,
					"controlUrl": controlURL,
				},
			})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	client, err := assistant.NewClient(config.VoiceConfig{BaseURL: srv.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return client, srv.Close
}

func collectEvents(t *testing.T, s callsession.Client) []callsession.Event {
	t.Helper()
	var out []callsession.Event
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("timed out waiting for events, got %d so far", len(out))
		}
	}
}

func writeFrame(conn *websocket.Conn, v any) {
	_ = conn.WriteJSON(v)
}

func TestSessionNormalizesMonitorStream(t *testing.T) {
	wsURL, closeWS := newMonitorServer(t, func(conn *websocket.Conn) {
		writeFrame(conn, map[string]any{"type": "call-start", "call": map[string]string{"id": "call-mon-1"}})
		writeFrame(conn, map[string]any{"type": "speech-update", "status": "started", "role": "assistant"})
		writeFrame(conn, map[string]any{"type": "transcript", "role": "assistant", "transcript": "Hello!", "transcriptType": "final"})
		writeFrame(conn, map[string]any{"type": "transcript", "role": "user", "transcript": "hi th", "transcriptType": "partial"})
		writeFrame(conn, map[string]any{"type": "status-update", "status": "ended", "endedReason": "customer-ended-call"})
		// Give the client a beat to drain before close.
		time.Sleep(50 * time.Millisecond)
	})
	defer closeWS()

	api, closeAPI := newCallAPI(t, wsURL, "")
	defer closeAPI()

	factory, err := NewFactory(api, nil)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	sess := factory.NewSession()

	info, err := sess.Start(context.Background(), "asst-1", callsession.StartOptions{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if info.CallID != "call-mon-1" {
		t.Fatalf("expected call id from create response, got %q", info.CallID)
	}

	events := collectEvents(t, sess)
	if len(events) != 5 {
		t.Fatalf("expected 5 events, got %d: %v", len(events), events)
	}
	if started, ok := events[0].(callsession.StartedEvent); !ok || started.CallID != "call-mon-1" {
		t.Fatalf("expected started event first, got %+v", events[0])
	}
	if _, ok := events[1].(callsession.SpeechStartEvent); !ok {
		t.Fatalf("expected speech start, got %+v", events[1])
	}
	tr, ok := events[2].(callsession.TranscriptEvent)
	if !ok || tr.Role != callsession.RoleAssistant || !tr.Final {
		t.Fatalf("expected final assistant transcript, got %+v", events[2])
	}
	partial, ok := events[3].(callsession.TranscriptEvent)
	if !ok || partial.Final || partial.Role != callsession.RoleUser {
		t.Fatalf("expected partial user transcript, got %+v", events[3])
	}
	if _, ok := events[4].(callsession.EndedEvent); !ok {
		t.Fatalf("expected ended event last, got %+v", events[4])
	}
}

func TestSessionClassifiesBenignErrorAsEnded(t *testing.T) {
	wsURL, closeWS := newMonitorServer(t, func(conn *websocket.Conn) {
		writeFrame(conn, map[string]any{"type": "error", "error": map[string]string{"msg": "Meeting has ended"}})
		time.Sleep(50 * time.Millisecond)
	})
	defer closeWS()

	api, closeAPI := newCallAPI(t, wsURL, "")
	defer closeAPI()

	factory, _ := NewFactory(api, nil)
	sess := factory.NewSession()
	if _, err := sess.Start(context.Background(), "asst-1", callsession.StartOptions{}); err != nil {
		t.Fatalf("start: %v", err)
	}

	events := collectEvents(t, sess)
	if len(events) != 1 {
		t.Fatalf("expected single terminal event, got %d", len(events))
	}
	if _, ok := events[0].(callsession.EndedEvent); !ok {
		t.Fatalf("benign provider error must end the call, got %+v", events[0])
	}
}

func TestSessionSurfacesRealErrorAsFailure(t *testing.T) {
	wsURL, closeWS := newMonitorServer(t, func(conn *websocket.Conn) {
		writeFrame(conn, map[string]any{"type": "error", "error": map[string]string{"msg": "pipeline crashed"}})
		time.Sleep(50 * time.Millisecond)
	})
	defer closeWS()

	api, closeAPI := newCallAPI(t, wsURL, "")
	defer closeAPI()

	factory, _ := NewFactory(api, nil)
	sess := factory.NewSession()
	if _, err := sess.Start(context.Background(), "asst-1", callsession.StartOptions{}); err != nil {
		t.Fatalf("start: %v", err)
	}

	events := collectEvents(t, sess)
	if len(events) != 1 {
		t.Fatalf("expected single terminal event, got %d", len(events))
	}
	fail, ok := events[0].(callsession.FailureEvent)
	if !ok {
		t.Fatalf("expected failure event, got %+v", events[0])
	}
	if !strings.Contains(fail.Message, "pipeline crashed") {
		t.Fatalf("expected provider message preserved, got %q", fail.Message)
	}
}

func TestSessionStopYieldsEndedNotFailure(t *testing.T) {
	hold := make(chan struct{})
	wsURL, closeWS := newMonitorServer(t, func(conn *websocket.Conn) {
		// Keep the stream open until the client tears it down.
		<-hold
	})
	defer closeWS()
	defer close(hold)

	controlSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer controlSrv.Close()

	api, closeAPI := newCallAPI(t, wsURL, controlSrv.URL)
	defer closeAPI()

	factory, _ := NewFactory(api, nil)
	sess := factory.NewSession()
	if _, err := sess.Start(context.Background(), "asst-1", callsession.StartOptions{}); err != nil {
		t.Fatalf("start: %v", err)
	}

	sess.Stop()
	sess.Stop()

	events := collectEvents(t, sess)
	if len(events) != 1 {
		t.Fatalf("expected single ended event after stop, got %d", len(events))
	}
	if _, ok := events[0].(callsession.EndedEvent); !ok {
		t.Fatalf("local stop must end, not fail, got %+v", events[0])
	}
}

func TestSessionForwardsStartOptions(t *testing.T) {
	wsURL, closeWS := newMonitorServer(t, func(conn *websocket.Conn) {
		writeFrame(conn, map[string]any{"type": "status-update", "status": "ended"})
		time.Sleep(50 * time.Millisecond)
	})
	defer closeWS()

	var body struct {
		AssistantID        string `json:"assistantId"`
		AssistantOverrides struct {
			CustomerJoinTimeoutSeconds int `json:"customerJoinTimeoutSeconds"`
			SilenceTimeoutSeconds      int `json:"silenceTimeoutSeconds"`
		} `json:"assistantOverrides"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "call-opt-1",
			"monitor": map[string]string{"listenUrl": wsURL},
		})
	}))
	defer srv.Close()

	api, err := assistant.NewClient(config.VoiceConfig{BaseURL: srv.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	factory, _ := NewFactory(api, nil)
	sess := factory.NewSession()

	opts := callsession.StartOptions{JoinTimeoutSeconds: 30, SilenceTimeoutSeconds: 30}
	if _, err := sess.Start(context.Background(), "asst-1", opts); err != nil {
		t.Fatalf("start: %v", err)
	}
	collectEvents(t, sess)

	if body.AssistantOverrides.CustomerJoinTimeoutSeconds != 30 {
		t.Fatalf("expected join timeout forwarded, got %d", body.AssistantOverrides.CustomerJoinTimeoutSeconds)
	}
	if body.AssistantOverrides.SilenceTimeoutSeconds != 30 {
		t.Fatalf("expected silence timeout forwarded, got %d", body.AssistantOverrides.SilenceTimeoutSeconds)
	}
}

func TestFactoryFetchMessagesMapsArtifact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/call/call-art-1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "call-art-1",
			"artifact": map[string]any{
				"transcript": "AI: Hello\nUser: Hi",
				"messages": []map[string]any{
					{"role": "system", "message": "You are a helpful assistant"},
					{"role": "bot", "message": "Hello", "secondsFromStart": 1.2},
					{"role": "user", "message": "Hi", "secondsFromStart": 3.4},
					{"role": "user", "message": ""},
				},
			},
		})
	}))
	defer srv.Close()

	api, err := assistant.NewClient(config.VoiceConfig{BaseURL: srv.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	factory, _ := NewFactory(api, nil)

	msgs, err := factory.FetchMessages(context.Background(), "call-art-1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 spoken messages, got %d: %+v", len(msgs), msgs)
	}
	if msgs[0].Role != callsession.RoleAssistant || msgs[0].Text != "Hello" {
		t.Fatalf("expected assistant line first, got %+v", msgs[0])
	}
	if msgs[1].Role != callsession.RoleUser || msgs[1].Text != "Hi" {
		t.Fatalf("expected user line second, got %+v", msgs[1])
	}
}

func TestFactoryRequiresCredential(t *testing.T) {
	if _, err := NewFactory(nil, nil); err != callsession.ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
