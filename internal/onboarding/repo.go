package onboarding

import (
	"context"
	"database/sql"
	"errors"
)

// Repo is the profile storage contract.
type Repo interface {
	Get(ctx context.Context, userID string) (Profile, error)
	Upsert(ctx context.Context, p Profile) error
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const profileColumns = `
user_id, business_name, business_category, default_language, timezone,
use_business_hours, ai_phone_number, phone_country_code, phone_area_code,
voice_model, voice_tone, whatsapp_connected, telegram_connected,
test_call_completed, created_at, updated_at`

func (r *PostgresRepo) Get(ctx context.Context, userID string) (Profile, error) {
	const q = `SELECT` + profileColumns + `
FROM business_profiles
WHERE user_id = $1
`
	var p Profile
	if err := r.db.QueryRowContext(ctx, q, userID).Scan(
		&p.UserID,
		&p.BusinessName,
		&p.BusinessCategory,
		&p.DefaultLanguage,
		&p.Timezone,
		&p.UseBusinessHours,
		&p.AIPhoneNumber,
		&p.PhoneCountryCode,
		&p.PhoneAreaCode,
		&p.VoiceModel,
		&p.VoiceTone,
		&p.WhatsappConnected,
		&p.TelegramConnected,
		&p.TestCallCompleted,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, err
	}
	return p, nil
}

func (r *PostgresRepo) Upsert(ctx context.Context, p Profile) error {
	const q = `
INSERT INTO business_profiles (` + profileColumns + `
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
)
ON CONFLICT (user_id)
DO UPDATE SET business_name       = EXCLUDED.business_name,
              business_category   = EXCLUDED.business_category,
              default_language    = EXCLUDED.default_language,
              timezone            = EXCLUDED.timezone,
              use_business_hours  = EXCLUDED.use_business_hours,
              ai_phone_number     = EXCLUDED.ai_phone_number,
              phone_country_code  = EXCLUDED.phone_country_code,
              phone_area_code     = EXCLUDED.phone_area_code,
              voice_model         = EXCLUDED.voice_model,
              voice_tone          = EXCLUDED.voice_tone,
              whatsapp_connected  = EXCLUDED.whatsapp_connected,
              telegram_connected  = EXCLUDED.telegram_connected,
              test_call_completed = EXCLUDED.test_call_completed,
              updated_at          = EXCLUDED.updated_at
`
	_, err := r.db.ExecContext(ctx, q,
		p.UserID,
		p.BusinessName,
		p.BusinessCategory,
		p.DefaultLanguage,
		p.Timezone,
		p.UseBusinessHours,
		p.AIPhoneNumber,
		p.PhoneCountryCode,
		p.PhoneAreaCode,
		p.VoiceModel,
		p.VoiceTone,
		p.WhatsappConnected,
		p.TelegramConnected,
		p.TestCallCompleted,
		p.CreatedAt,
		p.UpdatedAt,
	)
	return err
}
