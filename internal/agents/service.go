package agents

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotProvisioned  = errors.New("agent has no remote assistant")
)

// Provisioner keeps the remote assistant in sync with local agents.
// Satisfied by the assistant service; fakes cover it in tests.
type Provisioner interface {
	Configured() bool
	Create(ctx context.Context, f FormData) (string, error)
	Update(ctx context.Context, assistantID string, ch Changes) error
}

// Service owns the agent lifecycle.
//
// Ordering invariant on create: the remote assistant is provisioned
// FIRST and the local row written only after success, so an active agent
// always carries a working assistant id. Updates are the other way
// around: the local edit commits even when the remote sync fails, and
// the caller is told about the partial success.
type Service struct {
	repo Repo
	prov Provisioner
	log  *slog.Logger
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repo, prov Provisioner, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, prov: prov, log: log, clock: time.Now}
}

// UpdateResult reports an edit outcome. RemoteSyncFailed means the local
// write committed but the provider still has the previous configuration.
type UpdateResult struct {
	Agent            Agent `json:"agent"`
	RemoteSyncFailed bool  `json:"remote_sync_failed,omitempty"`
}

// Create provisions a remote assistant for the form and persists the
// agent. A provisioning failure blocks the local write entirely.
func (s *Service) Create(ctx context.Context, userID string, f FormData) (Agent, error) {
	if userID == "" {
		return Agent{}, ErrInvalidArgument
	}
	if err := validateForm(f); err != nil {
		return Agent{}, err
	}
	if s.prov == nil || !s.prov.Configured() {
		return Agent{}, ErrNotProvisioned
	}

	normalizeVoice(&f)

	assistantID, err := s.prov.Create(ctx, f)
	if err != nil {
		return Agent{}, err
	}

	now := s.clock()
	a := Agent{
		ID:              uuid.NewString(),
		UserID:          userID,
		Name:            f.Name,
		BusinessType:    f.BusinessType,
		Language:        f.Language,
		Tone:            f.Tone,
		VoiceID:         f.VoiceID,
		VoiceName:       f.VoiceName,
		GreetingMessage: f.GreetingMessage,
		SystemPrompt:    f.SystemPrompt,
		AssistantID:     assistantID,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Insert(ctx, a); err != nil {
		// The remote assistant now exists without a local owner. Log it
		// for cleanup; the provider tolerates orphaned assistants.
		s.log.Error("agent insert failed after provisioning",
			slog.String("assistant_id", assistantID), slog.Any("error", err))
		return Agent{}, err
	}
	return a, nil
}

// Update applies a partial edit. The remote assistant is synced first
// when the agent is provisioned; a sync failure does not block the local
// commit and is reported through UpdateResult.RemoteSyncFailed.
func (s *Service) Update(ctx context.Context, userID, id string, ch Changes) (UpdateResult, error) {
	if userID == "" || id == "" {
		return UpdateResult{}, ErrInvalidArgument
	}
	if err := validateChanges(ch); err != nil {
		return UpdateResult{}, err
	}

	a, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return UpdateResult{}, err
	}
	if !a.IsActive {
		return UpdateResult{}, ErrNotFound
	}
	if ch.Empty() {
		return UpdateResult{Agent: a}, nil
	}

	syncFailed := false
	if a.AssistantID != "" && s.prov != nil && s.prov.Configured() {
		remote := ch
		if remote.SystemPrompt != nil && remote.BusinessType == nil {
			// Prompt re-derivation on the remote side needs the agent's
			// business type even when the edit does not touch it.
			bt := a.BusinessType
			remote.BusinessType = &bt
		}
		if err := s.prov.Update(ctx, a.AssistantID, remote); err != nil {
			s.log.Warn("agent saved locally, remote sync failed",
				slog.String("agent_id", a.ID), slog.Any("error", err))
			syncFailed = true
		}
	}

	applyChanges(&a, ch)
	a.UpdatedAt = s.clock()
	if err := s.repo.Update(ctx, a); err != nil {
		return UpdateResult{}, err
	}
	return UpdateResult{Agent: a, RemoteSyncFailed: syncFailed}, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (Agent, error) {
	if userID == "" || id == "" {
		return Agent{}, ErrInvalidArgument
	}
	return s.repo.Get(ctx, userID, id)
}

// List returns the user's active agents, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Agent, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	return s.repo.ListActive(ctx, userID)
}

// MostRecent returns the newest active agent; the dashboard home loads
// this one by default.
func (s *Service) MostRecent(ctx context.Context, userID string) (Agent, error) {
	if userID == "" {
		return Agent{}, ErrInvalidArgument
	}
	return s.repo.MostRecentActive(ctx, userID)
}

// SoftDelete deactivates the agent. The row and its transcripts remain.
func (s *Service) SoftDelete(ctx context.Context, userID, id string) error {
	if userID == "" || id == "" {
		return ErrInvalidArgument
	}
	return s.repo.Deactivate(ctx, userID, id, s.clock())
}

// SaveDraft persists setup wizard progress without provisioning. Drafts
// are inactive and invisible to List.
func (s *Service) SaveDraft(ctx context.Context, userID string, f FormData) (Agent, error) {
	if userID == "" {
		return Agent{}, ErrInvalidArgument
	}
	if !f.BusinessType.Valid() {
		f.BusinessType = BusinessTypeGeneral
	}
	if !f.Language.Valid() {
		f.Language = LanguageEnglish
	}
	if !f.Tone.Valid() {
		f.Tone = ToneFriendly
	}

	now := s.clock()
	a := Agent{
		ID:              uuid.NewString(),
		UserID:          userID,
		Name:            f.Name,
		BusinessType:    f.BusinessType,
		Language:        f.Language,
		Tone:            f.Tone,
		VoiceID:         f.VoiceID,
		VoiceName:       f.VoiceName,
		GreetingMessage: f.GreetingMessage,
		SystemPrompt:    f.SystemPrompt,
		IsActive:        false,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Insert(ctx, a); err != nil {
		return Agent{}, err
	}
	return a, nil
}

// ResumeDraft returns the newest unfinished draft for the wizard.
func (s *Service) ResumeDraft(ctx context.Context, userID string) (Agent, error) {
	if userID == "" {
		return Agent{}, ErrInvalidArgument
	}
	return s.repo.MostRecentDraft(ctx, userID)
}

// CompleteDraft provisions the draft's assistant and activates it. Like
// Create, a provisioning failure leaves the draft untouched.
func (s *Service) CompleteDraft(ctx context.Context, userID, draftID string, f FormData) (Agent, error) {
	if userID == "" || draftID == "" {
		return Agent{}, ErrInvalidArgument
	}
	if err := validateForm(f); err != nil {
		return Agent{}, err
	}

	a, err := s.repo.Get(ctx, userID, draftID)
	if err != nil {
		return Agent{}, err
	}
	if a.IsActive || a.AssistantID != "" {
		return Agent{}, ErrInvalidArgument
	}
	if s.prov == nil || !s.prov.Configured() {
		return Agent{}, ErrNotProvisioned
	}

	normalizeVoice(&f)

	assistantID, err := s.prov.Create(ctx, f)
	if err != nil {
		return Agent{}, err
	}

	a.Name = f.Name
	a.BusinessType = f.BusinessType
	a.Language = f.Language
	a.Tone = f.Tone
	a.VoiceID = f.VoiceID
	a.VoiceName = f.VoiceName
	a.GreetingMessage = f.GreetingMessage
	a.SystemPrompt = f.SystemPrompt
	a.AssistantID = assistantID
	a.IsActive = true
	a.UpdatedAt = s.clock()

	if err := s.repo.Update(ctx, a); err != nil {
		return Agent{}, err
	}
	return a, nil
}

func validateForm(f FormData) error {
	if f.Name == "" {
		return ErrInvalidArgument
	}
	if !f.BusinessType.Valid() || !f.Language.Valid() || !f.Tone.Valid() {
		return ErrInvalidArgument
	}
	return nil
}

func validateChanges(ch Changes) error {
	if ch.Name != nil && *ch.Name == "" {
		return ErrInvalidArgument
	}
	if ch.BusinessType != nil && !ch.BusinessType.Valid() {
		return ErrInvalidArgument
	}
	if ch.Language != nil && !ch.Language.Valid() {
		return ErrInvalidArgument
	}
	if ch.Tone != nil && !ch.Tone.Valid() {
		return ErrInvalidArgument
	}
	return nil
}

// normalizeVoice fills in the display name from the catalog when the
// form carries only a voice id.
func normalizeVoice(f *FormData) {
	if v, ok := FindVoice(f.VoiceID); ok && f.VoiceName == "" {
		f.VoiceName = v.Name
	}
}

func applyChanges(a *Agent, ch Changes) {
	if ch.Name != nil {
		a.Name = *ch.Name
	}
	if ch.BusinessType != nil {
		a.BusinessType = *ch.BusinessType
	}
	if ch.Language != nil {
		a.Language = *ch.Language
	}
	if ch.Tone != nil {
		a.Tone = *ch.Tone
	}
	if ch.VoiceID != nil {
		a.VoiceID = *ch.VoiceID
		if v, ok := FindVoice(*ch.VoiceID); ok && ch.VoiceName == nil {
			a.VoiceName = v.Name
		}
	}
	if ch.VoiceName != nil {
		a.VoiceName = *ch.VoiceName
	}
	if ch.GreetingMessage != nil {
		a.GreetingMessage = *ch.GreetingMessage
	}
	if ch.SystemPrompt != nil {
		a.SystemPrompt = *ch.SystemPrompt
	}
}
