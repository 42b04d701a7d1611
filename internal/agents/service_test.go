package agents

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeProvisioner struct {
	configured bool
	createErr  error
	updateErr  error

	createCalls int
	updateCalls int
	lastUpdate  Changes
}

func (f *fakeProvisioner) Configured() bool { return f.configured }

func (f *fakeProvisioner) Create(ctx context.Context, _ FormData) (string, error) {
	f.createCalls++
	if f.createErr != nil {
		return "", f.createErr
	}
	return "asst-new", nil
}

func (f *fakeProvisioner) Update(ctx context.Context, _ string, ch Changes) error {
	f.updateCalls++
	f.lastUpdate = ch
	return f.updateErr
}

func testClock() func() time.Time {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Minute)
	}
}

func newTestService(prov Provisioner) (*Service, *MemoryRepo) {
	repo := NewMemoryRepo()
	s := NewService(repo, prov, nil)
	s.clock = testClock()
	return s, repo
}

func validForm() FormData {
	return FormData{
		Name:         "Clinic Bot",
		BusinessType: BusinessTypeClinic,
		Language:     LanguageEnglish,
		Tone:         ToneFriendly,
		VoiceID:      "paige",
	}
}

func TestCreateProvisionsBeforePersisting(t *testing.T) {
	prov := &fakeProvisioner{configured: true}
	s, repo := newTestService(prov)

	a, err := s.Create(context.Background(), "u1", validForm())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.AssistantID != "asst-new" {
		t.Fatalf("expected assistant id set, got %q", a.AssistantID)
	}
	if !a.IsActive {
		t.Fatalf("expected active agent")
	}
	if a.VoiceName != "Paige" {
		t.Fatalf("expected voice name from catalog, got %q", a.VoiceName)
	}
	if len(repo.Agents) != 1 {
		t.Fatalf("expected 1 stored agent, got %d", len(repo.Agents))
	}
}

func TestCreateFailureBlocksLocalWrite(t *testing.T) {
	prov := &fakeProvisioner{configured: true, createErr: errors.New("provider down")}
	s, repo := newTestService(prov)

	if _, err := s.Create(context.Background(), "u1", validForm()); err == nil {
		t.Fatalf("expected create error")
	}
	if len(repo.Agents) != 0 {
		t.Fatalf("agent must not persist when provisioning fails, got %d", len(repo.Agents))
	}
}

func TestCreateRequiresConfiguredProvider(t *testing.T) {
	s, _ := newTestService(&fakeProvisioner{configured: false})
	if _, err := s.Create(context.Background(), "u1", validForm()); !errors.Is(err, ErrNotProvisioned) {
		t.Fatalf("expected ErrNotProvisioned, got %v", err)
	}
}

func TestUpdateCommitsLocallyWhenRemoteSyncFails(t *testing.T) {
	prov := &fakeProvisioner{configured: true}
	s, _ := newTestService(prov)

	a, err := s.Create(context.Background(), "u1", validForm())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	prov.updateErr = errors.New("provider down")
	newName := "Renamed Bot"
	res, err := s.Update(context.Background(), "u1", a.ID, Changes{Name: &newName})
	if err != nil {
		t.Fatalf("update should commit locally, got %v", err)
	}
	if !res.RemoteSyncFailed {
		t.Fatalf("expected remote sync failure reported")
	}
	if res.Agent.Name != "Renamed Bot" {
		t.Fatalf("expected local commit, got %q", res.Agent.Name)
	}

	got, err := s.Get(context.Background(), "u1", a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Renamed Bot" {
		t.Fatalf("expected persisted rename, got %q", got.Name)
	}
}

func TestUpdatePassesOnlyChangedFields(t *testing.T) {
	prov := &fakeProvisioner{configured: true}
	s, _ := newTestService(prov)

	a, err := s.Create(context.Background(), "u1", validForm())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	greeting := "Welcome to the clinic"
	if _, err := s.Update(context.Background(), "u1", a.ID, Changes{GreetingMessage: &greeting}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if prov.updateCalls != 1 {
		t.Fatalf("expected 1 remote update, got %d", prov.updateCalls)
	}
	if prov.lastUpdate.GreetingMessage == nil || prov.lastUpdate.Name != nil || prov.lastUpdate.Language != nil {
		t.Fatalf("expected only greeting in remote changes, got %+v", prov.lastUpdate)
	}
}

func TestUpdateClearedPromptKeepsBusinessType(t *testing.T) {
	prov := &fakeProvisioner{configured: true}
	s, _ := newTestService(prov)

	a, err := s.Create(context.Background(), "u1", validForm())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	empty := ""
	if _, err := s.Update(context.Background(), "u1", a.ID, Changes{SystemPrompt: &empty}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if prov.lastUpdate.BusinessType == nil || *prov.lastUpdate.BusinessType != BusinessTypeClinic {
		t.Fatalf("expected stored business type in remote changes, got %+v", prov.lastUpdate.BusinessType)
	}
	if prov.lastUpdate.SystemPrompt == nil || *prov.lastUpdate.SystemPrompt != "" {
		t.Fatalf("expected cleared prompt forwarded, got %+v", prov.lastUpdate.SystemPrompt)
	}
}

func TestUpdateEmptyChangesIsNoOp(t *testing.T) {
	prov := &fakeProvisioner{configured: true}
	s, _ := newTestService(prov)

	a, err := s.Create(context.Background(), "u1", validForm())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	res, err := s.Update(context.Background(), "u1", a.ID, Changes{})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if prov.updateCalls != 0 {
		t.Fatalf("no remote call expected, got %d", prov.updateCalls)
	}
	if res.Agent.UpdatedAt != a.UpdatedAt {
		t.Fatalf("no-op update must not touch the row")
	}
}

func TestUpdateScopedToOwner(t *testing.T) {
	prov := &fakeProvisioner{configured: true}
	s, _ := newTestService(prov)

	a, err := s.Create(context.Background(), "u1", validForm())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	name := "hijack"
	if _, err := s.Update(context.Background(), "u2", a.ID, Changes{Name: &name}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other user, got %v", err)
	}
}

func TestSoftDeleteHidesFromListAndMostRecent(t *testing.T) {
	prov := &fakeProvisioner{configured: true}
	s, _ := newTestService(prov)

	a1, err := s.Create(context.Background(), "u1", validForm())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	f2 := validForm()
	f2.Name = "Second Bot"
	a2, err := s.Create(context.Background(), "u1", f2)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	mr, err := s.MostRecent(context.Background(), "u1")
	if err != nil || mr.ID != a2.ID {
		t.Fatalf("expected newest agent %s, got %s (%v)", a2.ID, mr.ID, err)
	}

	if err := s.SoftDelete(context.Background(), "u1", a2.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	list, err := s.List(context.Background(), "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != a1.ID {
		t.Fatalf("expected only first agent listed, got %+v", list)
	}

	mr, err = s.MostRecent(context.Background(), "u1")
	if err != nil || mr.ID != a1.ID {
		t.Fatalf("expected fallback to first agent, got %s (%v)", mr.ID, err)
	}

	// Deleting again is not found; the row is already inactive.
	if err := s.SoftDelete(context.Background(), "u1", a2.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestDraftLifecycle(t *testing.T) {
	prov := &fakeProvisioner{configured: true}
	s, _ := newTestService(prov)

	draft, err := s.SaveDraft(context.Background(), "u1", FormData{Name: "WIP"})
	if err != nil {
		t.Fatalf("save draft: %v", err)
	}
	if draft.IsActive || draft.AssistantID != "" {
		t.Fatalf("draft must be inactive and unprovisioned, got %+v", draft)
	}
	if prov.createCalls != 0 {
		t.Fatalf("drafts must not provision, got %d calls", prov.createCalls)
	}

	list, _ := s.List(context.Background(), "u1")
	if len(list) != 0 {
		t.Fatalf("drafts must not be listed, got %d", len(list))
	}

	resumed, err := s.ResumeDraft(context.Background(), "u1")
	if err != nil || resumed.ID != draft.ID {
		t.Fatalf("expected draft resumed, got %v (%v)", resumed.ID, err)
	}

	done, err := s.CompleteDraft(context.Background(), "u1", draft.ID, validForm())
	if err != nil {
		t.Fatalf("complete draft: %v", err)
	}
	if !done.IsActive || done.AssistantID != "asst-new" {
		t.Fatalf("expected provisioned active agent, got %+v", done)
	}
	if _, err := s.ResumeDraft(context.Background(), "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected no drafts left, got %v", err)
	}
}

func TestCompleteDraftFailureLeavesDraft(t *testing.T) {
	prov := &fakeProvisioner{configured: true, createErr: errors.New("provider down")}
	s, _ := newTestService(prov)

	draft, err := s.SaveDraft(context.Background(), "u1", FormData{Name: "WIP"})
	if err != nil {
		t.Fatalf("save draft: %v", err)
	}
	if _, err := s.CompleteDraft(context.Background(), "u1", draft.ID, validForm()); err == nil {
		t.Fatalf("expected provisioning failure")
	}

	resumed, err := s.ResumeDraft(context.Background(), "u1")
	if err != nil || resumed.ID != draft.ID {
		t.Fatalf("draft must survive a failed completion, got %v", err)
	}
}
