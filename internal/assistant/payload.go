package assistant

import (
	"voicedash/internal/agents"
)

// Payload is the provider assistant configuration body.
//
// Create sends the full shape; Update must stay SPARSE: only the blocks
// implied by the fields the user actually changed are present, so a PATCH
// never overwrites unrelated remote configuration with stale local defaults.
// All blocks are therefore pointers/omitempty.
type Payload struct {
	Name               string             `json:"name,omitempty"`
	Model              *ModelConfig       `json:"model,omitempty"`
	Voice              *VoiceConfig       `json:"voice,omitempty"`
	Transcriber        *TranscriberConfig `json:"transcriber,omitempty"`
	FirstMessage       string             `json:"firstMessage,omitempty"`
	MaxDurationSeconds int                `json:"maxDurationSeconds,omitempty"`
	EndCallMessage     string             `json:"endCallMessage,omitempty"`
	EndCallPhrases     []string           `json:"endCallPhrases,omitempty"`
	RecordingEnabled   *bool              `json:"recordingEnabled,omitempty"`
	BackgroundSound    string             `json:"backgroundSound,omitempty"`
	Context            *ContextConfig     `json:"context,omitempty"`
}

type ModelConfig struct {
	Provider    string         `json:"provider"`
	Model       string         `json:"model"`
	Messages    []ModelMessage `json:"messages"`
	Temperature float64        `json:"temperature"`
}

type ModelMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type VoiceConfig struct {
	Provider string `json:"provider"`
	VoiceID  string `json:"voiceId"`
}

type TranscriberConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Language string `json:"language"`
}

type ContextConfig struct {
	Enabled   bool `json:"enabled"`
	MaxLength int  `json:"maxLength"`
}

// Empty reports whether a PATCH with this payload would be a no-op.
func (p Payload) Empty() bool {
	return p.Name == "" && p.Model == nil && p.Voice == nil && p.Transcriber == nil &&
		p.FirstMessage == "" && p.MaxDurationSeconds == 0 && p.EndCallMessage == "" &&
		len(p.EndCallPhrases) == 0 && p.RecordingEnabled == nil && p.BackgroundSound == "" &&
		p.Context == nil
}

const (
	modelProvider    = "openai"
	modelName        = "gpt-3.5-turbo"
	modelTemperature = 0.7

	voiceProvider = "11labs"

	transcriberProvider = "deepgram"
	transcriberModel    = "nova-2"

	maxCallSeconds = 180
	endCallMessage = "Thank you for talking with me today. Have a great day!"
)

var endCallPhrases = []string{"goodbye", "bye", "see you later", "talk to you later"}

// BuildCreatePayload maps the agent form to the full assistant configuration.
// The mapping is deterministic: same form, same payload.
func BuildCreatePayload(f agents.FormData) Payload {
	recording := false

	return Payload{
		Name: f.Name,
		Model: &ModelConfig{
			Provider:    modelProvider,
			Model:       modelName,
			Messages:    []ModelMessage{{Role: "system", Content: systemPromptFor(f.BusinessType, f.SystemPrompt)}},
			Temperature: modelTemperature,
		},
		Voice: &VoiceConfig{
			Provider: voiceProvider,
			VoiceID:  resolveProviderVoiceID(f.VoiceID),
		},
		Transcriber: &TranscriberConfig{
			Provider: transcriberProvider,
			Model:    transcriberModel,
			Language: transcriberLanguage(f.Language),
		},
		FirstMessage:       greetingOrDefault(f.GreetingMessage),
		MaxDurationSeconds: maxCallSeconds,
		EndCallMessage:     endCallMessage,
		EndCallPhrases:     endCallPhrases,
		RecordingEnabled:   &recording,
		BackgroundSound:    "off",
		Context:            &ContextConfig{Enabled: true, MaxLength: 50},
	}
}

// BuildUpdatePayload maps a partial agent edit to the sparse PATCH body.
// Field mapping:
//
//	name                        -> name
//	business_type/system_prompt -> model block (prompt re-derived)
//	language                    -> transcriber block
//	greeting_message            -> firstMessage
//	voice_id/voice_name         -> voice block
//
// Tone is local-only flavor and has no remote representation.
func BuildUpdatePayload(ch agents.Changes) Payload {
	var p Payload

	if ch.Name != nil {
		p.Name = *ch.Name
	}

	if ch.BusinessType != nil || ch.SystemPrompt != nil {
		bt := agents.BusinessTypeGeneral
		if ch.BusinessType != nil {
			bt = *ch.BusinessType
		}
		override := ""
		if ch.SystemPrompt != nil {
			override = *ch.SystemPrompt
		}
		p.Model = &ModelConfig{
			Provider:    modelProvider,
			Model:       modelName,
			Messages:    []ModelMessage{{Role: "system", Content: systemPromptFor(bt, override)}},
			Temperature: modelTemperature,
		}
	}

	if ch.Language != nil {
		p.Transcriber = &TranscriberConfig{
			Provider: transcriberProvider,
			Model:    transcriberModel,
			Language: transcriberLanguage(*ch.Language),
		}
	}

	if ch.GreetingMessage != nil {
		p.FirstMessage = greetingOrDefault(*ch.GreetingMessage)
	}

	if ch.VoiceID != nil || ch.VoiceName != nil {
		id := ""
		if ch.VoiceID != nil {
			id = *ch.VoiceID
		}
		p.Voice = &VoiceConfig{
			Provider: voiceProvider,
			VoiceID:  resolveProviderVoiceID(id),
		}
	}

	return p
}

func systemPromptFor(bt agents.BusinessType, override string) string {
	if override != "" {
		return override
	}
	if tmpl, ok := agents.SystemPromptTemplates[bt]; ok {
		return tmpl
	}
	return agents.SystemPromptTemplates[agents.BusinessTypeGeneral]
}

// transcriberLanguage picks the transcription locale. "both" currently
// degrades to English transcription; this is a known provider limitation,
// not a silent default to be fixed here.
func transcriberLanguage(l agents.Language) string {
	if l == agents.LanguageArabic {
		return "ar-SA"
	}
	return "en-US"
}

func greetingOrDefault(greeting string) string {
	if greeting == "" {
		return agents.DefaultGreeting
	}
	return greeting
}

func resolveProviderVoiceID(catalogID string) string {
	if v, ok := agents.FindVoice(catalogID); ok {
		return v.ProviderVoiceID
	}
	// Unknown catalog id: fall back to the first catalog voice.
	return agents.VoiceOptions[0].ProviderVoiceID
}
