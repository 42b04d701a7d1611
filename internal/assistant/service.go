package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"voicedash/internal/agents"
)

// Op tags which provisioning step failed.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
)

// ProvisioningError is a tagged provider sync failure.
//
// Create failures block the local agent write. Update failures do not:
// the caller commits the local edit and reports "saved locally, remote
// sync failed". RemoteSyncFailed distinguishes the two.
type ProvisioningError struct {
	Op  Op
	Err error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("assistant: %s failed: %v", e.Op, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// RemoteSyncFailed is true when the local record may still be committed.
func (e *ProvisioningError) RemoteSyncFailed() bool { return e.Op == OpUpdate }

// ProviderAPI is the REST surface the service needs; satisfied by *Client
// and by test fakes.
type ProviderAPI interface {
	CreateAssistant(ctx context.Context, p Payload) (string, error)
	UpdateAssistant(ctx context.Context, assistantID string, p Payload) error
}

// Service keeps remote assistant configuration in sync with local agents.
type Service struct {
	api ProviderAPI
	log *slog.Logger
}

var ErrInvalidArgument = errors.New("invalid argument")

func NewService(api ProviderAPI, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{api: api, log: log}
}

// Configured reports whether provisioning is possible at all.
func (s *Service) Configured() bool { return s.api != nil }

// Create provisions a new remote assistant and returns its id.
// Always returns *ProvisioningError (Op=create) on failure.
func (s *Service) Create(ctx context.Context, f agents.FormData) (string, error) {
	if s.api == nil {
		return "", &ProvisioningError{Op: OpCreate, Err: ErrNotConfigured}
	}
	if f.Name == "" || !f.BusinessType.Valid() || !f.Language.Valid() {
		return "", &ProvisioningError{Op: OpCreate, Err: ErrInvalidArgument}
	}

	id, err := s.api.CreateAssistant(ctx, BuildCreatePayload(f))
	if err != nil {
		s.log.Error("assistant create failed", "err", err)
		return "", &ProvisioningError{Op: OpCreate, Err: err}
	}
	return id, nil
}

// Update pushes a partial agent edit to the remote assistant.
// Empty or remote-irrelevant edits are a no-op. Failure is tagged Op=update
// so callers can still commit the local write.
func (s *Service) Update(ctx context.Context, assistantID string, ch agents.Changes) error {
	if assistantID == "" {
		return &ProvisioningError{Op: OpUpdate, Err: ErrInvalidArgument}
	}
	if s.api == nil {
		return &ProvisioningError{Op: OpUpdate, Err: ErrNotConfigured}
	}

	p := BuildUpdatePayload(ch)
	if p.Empty() {
		return nil
	}

	if err := s.api.UpdateAssistant(ctx, assistantID, p); err != nil {
		s.log.Error("assistant update failed", "assistant_id", assistantID, "err", err)
		return &ProvisioningError{Op: OpUpdate, Err: err}
	}
	return nil
}
