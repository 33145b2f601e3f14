package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"meetsched/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS employees (
	id              UUID PRIMARY KEY,
	name            TEXT NOT NULL,
	email           TEXT NOT NULL UNIQUE,
	encrypted_token TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS employees_lower_name_idx ON employees (lower(name));
`

// Postgres stores employees in a single table.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects, pings and ensures the employees table exists.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	if p != nil && p.pool != nil {
		p.pool.Close()
	}
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Create(ctx context.Context, e *models.Employee) error {
	e.Email = strings.ToLower(strings.TrimSpace(e.Email))
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO employees (id, name, email, encrypted_token, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, e.Name, e.Email, e.EncryptedToken, e.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (p *Postgres) FindByName(ctx context.Context, name string) (models.Employee, error) {
	return p.scanOne(ctx, `
		SELECT id, name, email, encrypted_token, created_at
		FROM employees
		WHERE lower(name) = lower($1)
		ORDER BY created_at
		LIMIT 1
	`, strings.TrimSpace(name))
}

func (p *Postgres) FindByEmail(ctx context.Context, email string) (models.Employee, error) {
	return p.scanOne(ctx, `
		SELECT id, name, email, encrypted_token, created_at
		FROM employees
		WHERE email = lower($1)
	`, strings.TrimSpace(email))
}

func (p *Postgres) List(ctx context.Context) ([]models.Employee, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, name, email, encrypted_token, created_at
		FROM employees
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Employee
	for rows.Next() {
		var e models.Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.Email, &e.EncryptedToken, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *Postgres) scanOne(ctx context.Context, query string, arg string) (models.Employee, error) {
	var e models.Employee
	err := p.pool.QueryRow(ctx, query, arg).Scan(&e.ID, &e.Name, &e.Email, &e.EncryptedToken, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Employee{}, ErrNotFound
	}
	if err != nil {
		return models.Employee{}, err
	}
	return e, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
