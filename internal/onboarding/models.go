package onboarding

import (
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Profile is the business profile collected by the setup wizard, one row
// per user. The wizard saves after every step, so any field may still be
// empty before the wizard finishes.
type Profile struct {
	UserID           string `json:"user_id" db:"user_id"`
	BusinessName     string `json:"business_name" db:"business_name"`
	BusinessCategory string `json:"business_category" db:"business_category"`
	DefaultLanguage  string `json:"default_language" db:"default_language"`
	Timezone         string `json:"timezone" db:"timezone"`
	UseBusinessHours bool   `json:"use_business_hours" db:"use_business_hours"`

	AIPhoneNumber    string `json:"ai_phone_number,omitempty" db:"ai_phone_number"`
	PhoneCountryCode string `json:"phone_country_code,omitempty" db:"phone_country_code"`
	PhoneAreaCode    string `json:"phone_area_code,omitempty" db:"phone_area_code"`

	VoiceModel string `json:"voice_model,omitempty" db:"voice_model"`
	VoiceTone  string `json:"voice_tone,omitempty" db:"voice_tone"`

	WhatsappConnected bool `json:"whatsapp_connected" db:"whatsapp_connected"`
	TelegramConnected bool `json:"telegram_connected" db:"telegram_connected"`
	TestCallCompleted bool `json:"test_call_completed" db:"test_call_completed"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Changes is a partial wizard save: nil fields were not touched.
type Changes struct {
	BusinessName     *string `json:"business_name,omitempty"`
	BusinessCategory *string `json:"business_category,omitempty"`
	DefaultLanguage  *string `json:"default_language,omitempty"`
	Timezone         *string `json:"timezone,omitempty"`
	UseBusinessHours *bool   `json:"use_business_hours,omitempty"`

	AIPhoneNumber    *string `json:"ai_phone_number,omitempty"`
	PhoneCountryCode *string `json:"phone_country_code,omitempty"`
	PhoneAreaCode    *string `json:"phone_area_code,omitempty"`

	VoiceModel *string `json:"voice_model,omitempty"`
	VoiceTone  *string `json:"voice_tone,omitempty"`

	WhatsappConnected *bool `json:"whatsapp_connected,omitempty"`
	TelegramConnected *bool `json:"telegram_connected,omitempty"`
	TestCallCompleted *bool `json:"test_call_completed,omitempty"`
}
