package agents

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Repo is the agent storage contract. PostgresRepo is the real
// implementation; MemoryRepo backs tests.
type Repo interface {
	Insert(ctx context.Context, a Agent) error
	Get(ctx context.Context, userID, id string) (Agent, error)
	Update(ctx context.Context, a Agent) error
	ListActive(ctx context.Context, userID string) ([]Agent, error)
	MostRecentActive(ctx context.Context, userID string) (Agent, error)
	MostRecentDraft(ctx context.Context, userID string) (Agent, error)
	Deactivate(ctx context.Context, userID, id string, now time.Time) error
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Insert(ctx context.Context, a Agent) error {
	return insertAgent(ctx, r.db, a)
}

func (r *PostgresRepo) Get(ctx context.Context, userID, id string) (Agent, error) {
	return getAgent(ctx, r.db, userID, id)
}

func (r *PostgresRepo) Update(ctx context.Context, a Agent) error {
	return updateAgent(ctx, r.db, a)
}

func (r *PostgresRepo) ListActive(ctx context.Context, userID string) ([]Agent, error) {
	return listActive(ctx, r.db, userID)
}

func (r *PostgresRepo) MostRecentActive(ctx context.Context, userID string) (Agent, error) {
	return mostRecent(ctx, r.db, userID, true)
}

func (r *PostgresRepo) MostRecentDraft(ctx context.Context, userID string) (Agent, error) {
	return mostRecent(ctx, r.db, userID, false)
}

func (r *PostgresRepo) Deactivate(ctx context.Context, userID, id string, now time.Time) error {
	return deactivateAgent(ctx, r.db, userID, id, now)
}

const agentColumns = `
id, user_id, name, business_type, language, tone, voice_id, voice_name,
greeting_message, system_prompt, assistant_id, is_active, created_at, updated_at`

func insertAgent(ctx context.Context, db *sql.DB, a Agent) error {
	const q = `
INSERT INTO agents (` + agentColumns + `
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
)
`
	_, err := db.ExecContext(ctx, q,
		a.ID,
		a.UserID,
		a.Name,
		a.BusinessType,
		a.Language,
		a.Tone,
		a.VoiceID,
		a.VoiceName,
		a.GreetingMessage,
		a.SystemPrompt,
		a.AssistantID,
		a.IsActive,
		a.CreatedAt,
		a.UpdatedAt,
	)
	return err
}

func getAgent(ctx context.Context, db *sql.DB, userID, id string) (Agent, error) {
	const q = `
SELECT ` + agentColumns + `
FROM agents
WHERE user_id = $1 AND id = $2
`
	a, err := scanAgent(db.QueryRowContext(ctx, q, userID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Agent{}, ErrNotFound
		}
		return Agent{}, err
	}
	return a, nil
}

func updateAgent(ctx context.Context, db *sql.DB, a Agent) error {
	const q = `
UPDATE agents
SET name = $3, business_type = $4, language = $5, tone = $6,
    voice_id = $7, voice_name = $8, greeting_message = $9, system_prompt = $10,
    assistant_id = $11, is_active = $12, updated_at = $13
WHERE user_id = $1 AND id = $2
`
	res, err := db.ExecContext(ctx, q,
		a.UserID,
		a.ID,
		a.Name,
		a.BusinessType,
		a.Language,
		a.Tone,
		a.VoiceID,
		a.VoiceName,
		a.GreetingMessage,
		a.SystemPrompt,
		a.AssistantID,
		a.IsActive,
		a.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func listActive(ctx context.Context, db *sql.DB, userID string) ([]Agent, error) {
	const q = `
SELECT ` + agentColumns + `
FROM agents
WHERE user_id = $1 AND is_active = TRUE
ORDER BY created_at DESC
`
	rows, err := db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Agent, 0)
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// mostRecent returns the newest active agent or, for active=false, the
// newest unprovisioned draft.
func mostRecent(ctx context.Context, db *sql.DB, userID string, active bool) (Agent, error) {
	const activeQ = `
SELECT ` + agentColumns + `
FROM agents
WHERE user_id = $1 AND is_active = TRUE
ORDER BY created_at DESC
LIMIT 1
`
	const draftQ = `
SELECT ` + agentColumns + `
FROM agents
WHERE user_id = $1 AND is_active = FALSE AND assistant_id = ''
ORDER BY created_at DESC
LIMIT 1
`
	q := activeQ
	if !active {
		q = draftQ
	}
	a, err := scanAgent(db.QueryRowContext(ctx, q, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Agent{}, ErrNotFound
		}
		return Agent{}, err
	}
	return a, nil
}

func deactivateAgent(ctx context.Context, db *sql.DB, userID, id string, now time.Time) error {
	const q = `
UPDATE agents
SET is_active = FALSE, updated_at = $3
WHERE user_id = $1 AND id = $2 AND is_active = TRUE
`
	res, err := db.ExecContext(ctx, q, userID, id, now)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (Agent, error) {
	var a Agent
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Name,
		&a.BusinessType,
		&a.Language,
		&a.Tone,
		&a.VoiceID,
		&a.VoiceName,
		&a.GreetingMessage,
		&a.SystemPrompt,
		&a.AssistantID,
		&a.IsActive,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}
