package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voicedash/internal/config"
)

// ErrNotConfigured means the server-side provider API key is absent.
// Callers surface this as a disabled feature, never as a crash.
var ErrNotConfigured = errors.New("assistant: voice provider API key not configured")

// Client talks to the voice provider's REST API.
//
// Rules:
// - No provider HTTP calls outside this package and internal/vapi.
// - Non-2xx responses are returned as *APIError with the body captured.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// APIError is a non-2xx provider response.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("assistant: provider returned %d: %s", e.StatusCode, e.Body)
}

func NewClient(cfg config.VoiceConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type assistantResponse struct {
	ID string `json:"id"`
}

// CreateAssistant POSTs a full assistant configuration and returns the
// provider-assigned assistant id.
func (c *Client) CreateAssistant(ctx context.Context, p Payload) (string, error) {
	var out assistantResponse
	if err := c.do(ctx, http.MethodPost, "/assistant", p, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("assistant: provider response missing assistant id")
	}
	return out.ID, nil
}

// UpdateAssistant PATCHes a sparse payload onto an existing assistant.
func (c *Client) UpdateAssistant(ctx context.Context, assistantID string, p Payload) error {
	if assistantID == "" {
		return errors.New("assistant: assistant id required")
	}
	return c.do(ctx, http.MethodPatch, "/assistant/"+assistantID, p, nil)
}

// WebCall is the provider's response to a web-call creation request.
type WebCall struct {
	ID         string `json:"id"`
	WebCallURL string `json:"webCallUrl,omitempty"`
	Monitor    struct {
		ListenURL  string `json:"listenUrl,omitempty"`
		ControlURL string `json:"controlUrl,omitempty"`
	} `json:"monitor"`
}

// CallOptions tune a web call at creation time. Zero values are omitted
// so the provider's own defaults apply.
type CallOptions struct {
	JoinTimeoutSeconds    int
	SilenceTimeoutSeconds int
}

type createWebCallRequest struct {
	AssistantID        string              `json:"assistantId"`
	Type               string              `json:"type"`
	AssistantOverrides *assistantOverrides `json:"assistantOverrides,omitempty"`
}

type assistantOverrides struct {
	CustomerJoinTimeoutSeconds int `json:"customerJoinTimeoutSeconds,omitempty"`
	SilenceTimeoutSeconds      int `json:"silenceTimeoutSeconds,omitempty"`
}

// CreateWebCall starts a browser call session against an assistant and
// returns the call metadata (id plus listen/control URLs when available).
func (c *Client) CreateWebCall(ctx context.Context, assistantID string, opts CallOptions) (WebCall, error) {
	if assistantID == "" {
		return WebCall{}, errors.New("assistant: assistant id required")
	}
	req := createWebCallRequest{AssistantID: assistantID, Type: "webCall"}
	if opts.JoinTimeoutSeconds > 0 || opts.SilenceTimeoutSeconds > 0 {
		req.AssistantOverrides = &assistantOverrides{
			CustomerJoinTimeoutSeconds: opts.JoinTimeoutSeconds,
			SilenceTimeoutSeconds:      opts.SilenceTimeoutSeconds,
		}
	}
	var out WebCall
	if err := c.do(ctx, http.MethodPost, "/call", req, &out); err != nil {
		return WebCall{}, err
	}
	return out, nil
}

// CallArtifact is the provider's post-call record. Serves as the fallback
// transcript source when the live monitor stream yielded no final
// fragments for a call that does have an id.
type CallArtifact struct {
	ID       string `json:"id"`
	Artifact struct {
		Transcript string            `json:"transcript"`
		Messages   []ArtifactMessage `json:"messages"`
	} `json:"artifact"`
}

type ArtifactMessage struct {
	Role             string  `json:"role"`
	Message          string  `json:"message"`
	SecondsFromStart float64 `json:"secondsFromStart"`
}

// GetCall fetches a completed call's artifact.
func (c *Client) GetCall(ctx context.Context, callID string) (CallArtifact, error) {
	if callID == "" {
		return CallArtifact{}, errors.New("assistant: call id required")
	}
	var out CallArtifact
	if err := c.do(ctx, http.MethodGet, "/call/"+callID, nil, &out); err != nil {
		return CallArtifact{}, err
	}
	return out, nil
}

// EndCall asks the provider to terminate a call. Best-effort: locally
// initiated web-session stops go through the session client instead.
func (c *Client) EndCall(ctx context.Context, callID string) error {
	if callID == "" {
		return errors.New("assistant: call id required")
	}
	return c.do(ctx, http.MethodPost, "/call/"+callID+"/end", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Cap the captured body; provider errors are small JSON documents.
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
