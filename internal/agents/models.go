package agents

import "time"

// Agent is a configured AI voice assistant owned by one user.
//
// Tenancy invariant: UserID is required on every row and enforced in queries.
//
// Lifecycle: rows are created as drafts (is_active=false, assistant_id empty)
// by the setup wizard, promoted to active once the remote assistant is
// provisioned, and soft-deleted by clearing is_active. Rows are never hard
// deleted so call history keeps a valid agent reference.
//
// An agent is usable for calls iff AssistantID is non-empty.
type Agent struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`

	Name         string       `json:"name" db:"name"`
	BusinessType BusinessType `json:"business_type" db:"business_type"`
	Language     Language     `json:"language" db:"language"`
	Tone         Tone         `json:"tone" db:"tone"`

	VoiceID   string `json:"voice_id" db:"voice_id"`
	VoiceName string `json:"voice_name" db:"voice_name"`

	GreetingMessage string `json:"greeting_message,omitempty" db:"greeting_message"`
	SystemPrompt    string `json:"system_prompt,omitempty" db:"system_prompt"`

	// AssistantID is the remote provider assistant id; empty until provisioned.
	AssistantID string `json:"assistant_id,omitempty" db:"assistant_id"`

	IsActive bool `json:"is_active" db:"is_active"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Usable reports whether the agent can take live calls.
func (a Agent) Usable() bool {
	return a.AssistantID != ""
}

type BusinessType string

const (
	BusinessTypeCleaning   BusinessType = "cleaning"
	BusinessTypeRealEstate BusinessType = "real_estate"
	BusinessTypeClinic     BusinessType = "clinic"
	BusinessTypeAgency     BusinessType = "agency"
	BusinessTypeGeneral    BusinessType = "general"
)

func (b BusinessType) Valid() bool {
	switch b {
	case BusinessTypeCleaning, BusinessTypeRealEstate, BusinessTypeClinic, BusinessTypeAgency, BusinessTypeGeneral:
		return true
	default:
		return false
	}
}

type Language string

const (
	LanguageEnglish Language = "english"
	LanguageArabic  Language = "arabic"
	LanguageBoth    Language = "both"
)

func (l Language) Valid() bool {
	switch l {
	case LanguageEnglish, LanguageArabic, LanguageBoth:
		return true
	default:
		return false
	}
}

type Tone string

const (
	ToneFriendly     Tone = "friendly"
	ToneProfessional Tone = "professional"
	ToneEnergetic    Tone = "energetic"
)

func (t Tone) Valid() bool {
	switch t {
	case ToneFriendly, ToneProfessional, ToneEnergetic:
		return true
	default:
		return false
	}
}

// FormData is the full set of user-editable agent fields (wizard + edit form).
type FormData struct {
	Name            string       `json:"name"`
	BusinessType    BusinessType `json:"business_type"`
	Language        Language     `json:"language"`
	Tone            Tone         `json:"tone"`
	VoiceID         string       `json:"voice_id"`
	VoiceName       string       `json:"voice_name"`
	GreetingMessage string       `json:"greeting_message"`
	SystemPrompt    string       `json:"system_prompt,omitempty"`
}

// Changes carries a partial edit: nil fields were not touched by the user.
// The provisioning layer derives its sparse remote payload from exactly
// these fields, so "not touched" must stay distinguishable from "set empty".
type Changes struct {
	Name            *string       `json:"name,omitempty"`
	BusinessType    *BusinessType `json:"business_type,omitempty"`
	Language        *Language     `json:"language,omitempty"`
	Tone            *Tone         `json:"tone,omitempty"`
	VoiceID         *string       `json:"voice_id,omitempty"`
	VoiceName       *string       `json:"voice_name,omitempty"`
	GreetingMessage *string       `json:"greeting_message,omitempty"`
	SystemPrompt    *string       `json:"system_prompt,omitempty"`
}

// Empty reports whether the edit touches nothing.
func (c Changes) Empty() bool {
	return c.Name == nil && c.BusinessType == nil && c.Language == nil &&
		c.Tone == nil && c.VoiceID == nil && c.VoiceName == nil &&
		c.GreetingMessage == nil && c.SystemPrompt == nil
}

// VoiceOption is one entry of the selectable voice catalog.
type VoiceOption struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Provider    string `json:"provider"`
	Gender      string `json:"gender"`
	Description string `json:"description"`

	// ProviderVoiceID is the id sent to the voice provider.
	ProviderVoiceID string `json:"provider_voice_id"`
}

// VoiceOptions is the current catalog. All four named options intentionally
// resolve to the same provider voice id for now; distinct ids are pending a
// product decision on the final voice lineup.
var VoiceOptions = []VoiceOption{
	{ID: "elliot", Name: "Elliot", Provider: "11labs", Gender: "male", Description: "Soothing, friendly, and professional", ProviderVoiceID: "cgSgspJ2msm6clMCkdW9"},
	{ID: "paige", Name: "Paige", Provider: "11labs", Gender: "female", Description: "Deeper tone, calming and professional", ProviderVoiceID: "cgSgspJ2msm6clMCkdW9"},
	{ID: "kylie", Name: "Kylie", Provider: "11labs", Gender: "female", Description: "Clear and engaging female voice", ProviderVoiceID: "cgSgspJ2msm6clMCkdW9"},
	{ID: "cole", Name: "Cole", Provider: "11labs", Gender: "male", Description: "Warm and natural male voice", ProviderVoiceID: "cgSgspJ2msm6clMCkdW9"},
}

// FindVoice resolves a catalog entry by its short id.
func FindVoice(id string) (VoiceOption, bool) {
	for _, v := range VoiceOptions {
		if v.ID == id {
			return v, true
		}
	}
	return VoiceOption{}, false
}

// DefaultGreeting is used when an agent has no greeting configured.
const DefaultGreeting = "Hello! How can I help you today?"

// GreetingTemplates suggests a greeting per business type (wizard prefill).
var GreetingTemplates = map[BusinessType]string{
	BusinessTypeCleaning:   "Hi! Thanks for calling [Business Name]. How can I help you with your cleaning needs today?",
	BusinessTypeRealEstate: "Hello! Thank you for calling [Business Name] Real Estate. Are you looking to buy, sell, or rent a property?",
	BusinessTypeClinic:     "Good day! You've reached [Business Name]. How may I assist you with scheduling an appointment or answering your questions?",
	BusinessTypeAgency:     "Hello! Thanks for reaching out to [Business Name]. How can we help you today?",
	BusinessTypeGeneral:    "Hi! Thank you for calling [Business Name]. How can I assist you today?",
}

// SystemPromptTemplates selects the assistant system prompt per business type.
// An explicit Agent.SystemPrompt overrides the template.
var SystemPromptTemplates = map[BusinessType]string{
	BusinessTypeCleaning: `You are a friendly and professional AI receptionist for a cleaning services business. Your role is to:
- Greet callers warmly
- Answer questions about cleaning services (residential, commercial, deep cleaning)
- Collect customer information (name, phone, address)
- Schedule cleaning appointments
- Provide pricing information when asked
- Handle inquiries professionally and efficiently

Always be helpful, patient, and maintain a positive attitude.`,

	BusinessTypeRealEstate: `You are a professional AI assistant for a real estate agency. Your role is to:
- Welcome potential buyers, sellers, and renters
- Qualify leads by asking about their property needs
- Schedule viewings and consultations with agents
- Provide basic information about listings
- Collect contact information for follow-up
- Transfer calls to specific agents when requested

Be professional, knowledgeable, and help guide callers through their real estate journey.`,

	BusinessTypeClinic: `You are a compassionate and professional AI receptionist for a medical clinic. Your role is to:
- Greet patients warmly and professionally
- Schedule, reschedule, or cancel appointments
- Collect patient information (name, DOB, contact details)
- Answer questions about clinic hours and services
- Handle appointment reminders
- Direct urgent matters to medical staff immediately

Always maintain patient confidentiality and show empathy in all interactions.`,

	BusinessTypeAgency: `You are a professional AI assistant for a business agency. Your role is to:
- Welcome clients and prospects professionally
- Understand their business needs and requirements
- Schedule consultations and meetings
- Provide information about agency services
- Collect contact information for follow-up
- Route calls to appropriate team members

Be professional, efficient, and help clients feel valued and understood.`,

	BusinessTypeGeneral: `You are a friendly and professional AI receptionist. Your role is to:
- Greet callers warmly
- Answer general questions about the business
- Collect caller information (name, phone, reason for call)
- Schedule appointments or callbacks
- Route calls to appropriate departments
- Handle inquiries professionally

Always be helpful, courteous, and maintain a positive attitude.`,
}
