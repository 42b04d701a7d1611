package transcripts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"voicedash/internal/callsession"
)

// Repo is the transcript storage contract. PostgresRepo is the real
// implementation; MemoryRepo backs tests.
type Repo interface {
	Insert(ctx context.Context, r Record) error
	Get(ctx context.Context, userID, id string) (Record, error)
	ListByAgent(ctx context.Context, userID, agentID string, limit int) ([]Record, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Record, error)
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Insert(ctx context.Context, rec Record) error {
	return insertRecord(ctx, r.db, rec)
}

func (r *PostgresRepo) Get(ctx context.Context, userID, id string) (Record, error) {
	return getRecord(ctx, r.db, userID, id)
}

func (r *PostgresRepo) ListByAgent(ctx context.Context, userID, agentID string, limit int) ([]Record, error) {
	return listByAgent(ctx, r.db, userID, agentID, limit)
}

func (r *PostgresRepo) ListByUser(ctx context.Context, userID string, limit int) ([]Record, error) {
	return listByUser(ctx, r.db, userID, limit)
}

func insertRecord(ctx context.Context, db *sql.DB, rec Record) error {
	msgs, err := json.Marshal(rec.Messages)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO call_transcripts (
  id, user_id, agent_id, call_id, transcript, messages, duration_seconds, ended_reason, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9
)
`
	_, err = db.ExecContext(ctx, q,
		rec.ID,
		rec.UserID,
		rec.AgentID,
		rec.CallID,
		rec.Text,
		msgs,
		rec.DurationSeconds,
		rec.EndedReason,
		rec.CreatedAt,
	)
	return err
}

func getRecord(ctx context.Context, db *sql.DB, userID, id string) (Record, error) {
	const q = `
SELECT t.id, t.user_id, t.agent_id, COALESCE(a.name, ''), t.call_id, t.transcript, t.messages,
       t.duration_seconds, t.ended_reason, t.created_at
FROM call_transcripts t
LEFT JOIN agents a ON a.id = t.agent_id
WHERE t.user_id = $1 AND t.id = $2
`
	rec, err := scanRecord(r1(db.QueryRowContext(ctx, q, userID, id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

func listByAgent(ctx context.Context, db *sql.DB, userID, agentID string, limit int) ([]Record, error) {
	const q = `
SELECT t.id, t.user_id, t.agent_id, COALESCE(a.name, ''), t.call_id, t.transcript, t.messages,
       t.duration_seconds, t.ended_reason, t.created_at
FROM call_transcripts t
LEFT JOIN agents a ON a.id = t.agent_id
WHERE t.user_id = $1 AND t.agent_id = $2
ORDER BY t.created_at DESC
LIMIT $3
`
	rows, err := db.QueryContext(ctx, q, userID, agentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

func listByUser(ctx context.Context, db *sql.DB, userID string, limit int) ([]Record, error) {
	const q = `
SELECT t.id, t.user_id, t.agent_id, COALESCE(a.name, ''), t.call_id, t.transcript, t.messages,
       t.duration_seconds, t.ended_reason, t.created_at
FROM call_transcripts t
LEFT JOIN agents a ON a.id = t.agent_id
WHERE t.user_id = $1
ORDER BY t.created_at DESC
LIMIT $2
`
	rows, err := db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// r1 narrows *sql.Row to the shared scanner shape.
func r1(row *sql.Row) rowScanner { return row }

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var msgs []byte
	if err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.AgentID,
		&rec.AgentName,
		&rec.CallID,
		&rec.Text,
		&msgs,
		&rec.DurationSeconds,
		&rec.EndedReason,
		&rec.CreatedAt,
	); err != nil {
		return Record{}, err
	}
	if len(msgs) > 0 {
		if err := json.Unmarshal(msgs, &rec.Messages); err != nil {
			return Record{}, err
		}
	}
	if rec.Messages == nil {
		rec.Messages = []callsession.Message{}
	}
	return rec, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	out := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
