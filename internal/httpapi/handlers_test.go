package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"voicedash/internal/agents"
	"voicedash/internal/auth"
	"voicedash/internal/config"
	"voicedash/internal/onboarding"
	"voicedash/internal/transcripts"
	"voicedash/internal/users"
)

type fakeProvisioner struct {
	updateErr error
}

func (f *fakeProvisioner) Configured() bool { return true }
func (f *fakeProvisioner) Create(context.Context, agents.FormData) (string, error) {
	return "asst-1", nil
}
func (f *fakeProvisioner) Update(context.Context, string, agents.Changes) error {
	return f.updateErr
}

type testEnv struct {
	router *gin.Engine
	prov   *fakeProvisioner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	manager, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "test-secret",
		JWTIssuer:       "voicedash-test",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}

	prov := &fakeProvisioner{}
	userSvc := users.NewService(users.NewMemoryRepo())

	h := Handlers{
		Users:       userSvc,
		Agents:      agents.NewService(agents.NewMemoryRepo(), prov, nil),
		Transcripts: transcripts.NewService(transcripts.NewMemoryRepo()),
		Onboarding:  onboarding.NewService(onboarding.NewMemoryRepo(), userSvc),
		Auth:        manager,
		Voice:       config.VoiceConfig{APIKey: "k"},
	}

	r := gin.New()
	r.POST("/v1/auth/register", h.Register)
	r.POST("/v1/auth/login", h.Login)
	r.POST("/v1/auth/refresh", h.RefreshToken)

	protected := r.Group("/v1")
	protected.Use(auth.RequireAccessToken(manager))
	{
		protected.GET("/me", h.Me)
		protected.GET("/agents", h.ListAgents)
		protected.POST("/agents", h.CreateAgent)
		protected.GET("/agents/:agent_id", h.GetAgent)
		protected.PATCH("/agents/:agent_id", h.UpdateAgent)
		protected.DELETE("/agents/:agent_id", h.DeleteAgent)
		protected.GET("/voices", h.ListVoices)
		protected.GET("/transcripts", h.ListTranscripts)
		protected.GET("/onboarding", h.GetOnboarding)
		protected.PUT("/onboarding", h.SaveOnboarding)
		protected.POST("/onboarding/complete", h.CompleteOnboarding)
	}

	return &testEnv{router: r, prov: prov}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func (e *testEnv) signup(t *testing.T) tokenResponse {
	t.Helper()
	w := e.do(t, http.MethodPost, "/v1/auth/register", "", gin.H{
		"email": "jo@example.com", "password": "s3cretpass", "full_name": "Jo",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	return decode[tokenResponse](t, w)
}

func TestRegisterLoginAndMe(t *testing.T) {
	env := newTestEnv(t)
	tok := env.signup(t)
	if tok.AccessToken == "" || tok.RefreshToken == "" {
		t.Fatalf("expected token pair, got %+v", tok)
	}

	w := env.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{
		"email": "jo@example.com", "password": "s3cretpass",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/v1/me", tok.AccessToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", w.Code)
	}
	me := decode[users.User](t, w)
	if me.Email != "jo@example.com" {
		t.Fatalf("unexpected me payload %+v", me)
	}

	w = env.do(t, http.MethodGet, "/v1/me", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
}

func TestRefreshTokenRotation(t *testing.T) {
	env := newTestEnv(t)
	tok := env.signup(t)

	w := env.do(t, http.MethodPost, "/v1/auth/refresh", "", gin.H{"refresh_token": tok.RefreshToken})
	if w.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	next := decode[tokenResponse](t, w)
	if next.AccessToken == "" {
		t.Fatalf("expected new access token")
	}

	w = env.do(t, http.MethodPost, "/v1/auth/refresh", "", gin.H{"refresh_token": tok.AccessToken})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("access token must not refresh, got %d", w.Code)
	}
}

func TestAgentLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	tok := env.signup(t)

	form := gin.H{
		"name": "Clinic Bot", "business_type": "clinic", "language": "english",
		"tone": "friendly", "voice_id": "paige",
	}
	w := env.do(t, http.MethodPost, "/v1/agents", tok.AccessToken, form)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	created := decode[agents.Agent](t, w)
	if created.AssistantID != "asst-1" {
		t.Fatalf("expected provisioned agent, got %+v", created)
	}

	// Partial update with a failing provider still commits locally.
	env.prov.updateErr = errors.New("provider down")
	w = env.do(t, http.MethodPatch, "/v1/agents/"+created.ID, tok.AccessToken, gin.H{"name": "Renamed"})
	if w.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	res := decode[agents.UpdateResult](t, w)
	if !res.RemoteSyncFailed || res.Agent.Name != "Renamed" {
		t.Fatalf("expected local commit with sync warning, got %+v", res)
	}
	env.prov.updateErr = nil

	w = env.do(t, http.MethodDelete, "/v1/agents/"+created.ID, tok.AccessToken, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/v1/agents", tok.AccessToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", w.Code)
	}
	list := decode[map[string][]agents.Agent](t, w)
	if len(list["agents"]) != 0 {
		t.Fatalf("expected no active agents, got %+v", list)
	}
}

func TestInvalidAgentRejected(t *testing.T) {
	env := newTestEnv(t)
	tok := env.signup(t)

	w := env.do(t, http.MethodPost, "/v1/agents", tok.AccessToken, gin.H{
		"name": "", "business_type": "clinic", "language": "english", "tone": "friendly",
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing name, got %d", w.Code)
	}

	w = env.do(t, http.MethodGet, "/v1/agents/unknown", tok.AccessToken, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown agent, got %d", w.Code)
	}
}

func TestOnboardingFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	tok := env.signup(t)

	w := env.do(t, http.MethodPut, "/v1/onboarding", tok.AccessToken, gin.H{
		"business_name": "Shiny Cleaners", "business_category": "Cleaning Services",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("save: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodPut, "/v1/onboarding", tok.AccessToken, gin.H{
		"voice_model": "sarah", "test_call_completed": true,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("save voice step: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	p := decode[onboarding.Profile](t, w)
	if p.BusinessName != "Shiny Cleaners" || p.VoiceModel != "sarah" || !p.TestCallCompleted {
		t.Fatalf("expected merged profile, got %+v", p)
	}

	w = env.do(t, http.MethodPost, "/v1/onboarding/complete", tok.AccessToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/v1/me", tok.AccessToken, nil)
	me := decode[users.User](t, w)
	if !me.OnboardingCompleted {
		t.Fatalf("expected account flag flipped, got %+v", me)
	}
}
