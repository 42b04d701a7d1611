package users

import (
	"context"
	"database/sql"
	"errors"
	"strings"
)

// Repo is the user storage contract.
type Repo interface {
	Insert(ctx context.Context, u User) error
	GetByID(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	Update(ctx context.Context, u User) error
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Insert(ctx context.Context, u User) error {
	const q = `
INSERT INTO users (
  id, email, password_hash, full_name, onboarding_completed, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7
)
`
	_, err := r.db.ExecContext(ctx, q,
		u.ID,
		u.Email,
		u.PasswordHash,
		u.FullName,
		u.OnboardingCompleted,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil && isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (User, error) {
	const q = `
SELECT id, email, password_hash, full_name, onboarding_completed, created_at, updated_at
FROM users
WHERE id = $1
`
	return scanUser(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	const q = `
SELECT id, email, password_hash, full_name, onboarding_completed, created_at, updated_at
FROM users
WHERE email = $1
`
	return scanUser(r.db.QueryRowContext(ctx, q, email))
}

func (r *PostgresRepo) Update(ctx context.Context, u User) error {
	const q = `
UPDATE users
SET email = $2, password_hash = $3, full_name = $4, onboarding_completed = $5, updated_at = $6
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q,
		u.ID,
		u.Email,
		u.PasswordHash,
		u.FullName,
		u.OnboardingCompleted,
		u.UpdatedAt,
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

func scanUser(row *sql.Row) (User, error) {
	var u User
	if err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FullName,
		&u.OnboardingCompleted,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// isUniqueViolation matches the Postgres unique_violation code without
// depending on a driver-specific error type.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "23505") ||
		strings.Contains(err.Error(), "duplicate key")
}
