package onboarding

import (
	"context"
	"errors"
	"time"
)

// AccountMarker flips the account-level onboarding flag once the wizard
// finishes. Satisfied by the users service.
type AccountMarker interface {
	MarkOnboarded(ctx context.Context, userID string) error
}

// Service owns the setup wizard's saved state. Saves are partial merges:
// only the fields a step touched are written, earlier answers survive.
type Service struct {
	repo    Repo
	account AccountMarker
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repo, account AccountMarker) *Service {
	return &Service{repo: repo, account: account, clock: time.Now}
}

// Get returns the user's wizard state; a user who never saved anything
// gets a fresh zero profile, not an error.
func (s *Service) Get(ctx context.Context, userID string) (Profile, error) {
	if userID == "" {
		return Profile{}, ErrInvalidArgument
	}
	p, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return Profile{UserID: userID}, nil
	}
	return p, err
}

// Save merges one step's answers into the profile.
func (s *Service) Save(ctx context.Context, userID string, ch Changes) (Profile, error) {
	if userID == "" {
		return Profile{}, ErrInvalidArgument
	}

	p, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		now := s.clock()
		p = Profile{UserID: userID, CreatedAt: now, UpdatedAt: now}
	} else if err != nil {
		return Profile{}, err
	}

	if ch.BusinessName != nil {
		p.BusinessName = *ch.BusinessName
	}
	if ch.BusinessCategory != nil {
		p.BusinessCategory = *ch.BusinessCategory
	}
	if ch.DefaultLanguage != nil {
		p.DefaultLanguage = *ch.DefaultLanguage
	}
	if ch.Timezone != nil {
		p.Timezone = *ch.Timezone
	}
	if ch.UseBusinessHours != nil {
		p.UseBusinessHours = *ch.UseBusinessHours
	}
	if ch.AIPhoneNumber != nil {
		p.AIPhoneNumber = *ch.AIPhoneNumber
	}
	if ch.PhoneCountryCode != nil {
		p.PhoneCountryCode = *ch.PhoneCountryCode
	}
	if ch.PhoneAreaCode != nil {
		p.PhoneAreaCode = *ch.PhoneAreaCode
	}
	if ch.VoiceModel != nil {
		p.VoiceModel = *ch.VoiceModel
	}
	if ch.VoiceTone != nil {
		p.VoiceTone = *ch.VoiceTone
	}
	if ch.WhatsappConnected != nil {
		p.WhatsappConnected = *ch.WhatsappConnected
	}
	if ch.TelegramConnected != nil {
		p.TelegramConnected = *ch.TelegramConnected
	}
	if ch.TestCallCompleted != nil {
		p.TestCallCompleted = *ch.TestCallCompleted
	}
	p.UpdatedAt = s.clock()

	if err := s.repo.Upsert(ctx, p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Complete marks the wizard done on the account record. Completion does
// not require a saved profile; steps are optional and resumable.
func (s *Service) Complete(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidArgument
	}
	if s.account == nil {
		return nil
	}
	return s.account.MarkOnboarded(ctx, userID)
}
