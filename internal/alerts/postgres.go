package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spigell/job-aggregator/internal/jobs"
)

const schema = `
CREATE TABLE IF NOT EXISTS job_alerts (
	id              TEXT PRIMARY KEY,
	owner           TEXT NOT NULL,
	keywords        TEXT NOT NULL,
	location        TEXT NOT NULL DEFAULT '',
	job_type        TEXT NOT NULL DEFAULT '',
	active          BOOLEAN NOT NULL DEFAULT TRUE,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL,
	last_checked_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS job_alerts_owner_idx ON job_alerts (owner);
CREATE INDEX IF NOT EXISTS job_alerts_active_idx ON job_alerts (active) WHERE active;
`

const columns = `id, owner, keywords, location, job_type, active, created_at, updated_at, last_checked_at`

// querier is the subset of pgxpool.Pool used by PostgresStore.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresStore struct {
	db querier
}

// NewPostgresPool creates and verifies a pgxpool connection pool.
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return pool, nil
}

func NewPostgresStore(db querier) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the alerts table when it is missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("creating alerts schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, owner string) ([]JobAlert, error) {
	return s.query(ctx, `SELECT `+columns+` FROM job_alerts WHERE owner = $1 ORDER BY created_at, id`, owner)
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]JobAlert, error) {
	return s.query(ctx, `SELECT `+columns+` FROM job_alerts WHERE active ORDER BY created_at, id`)
}

func (s *PostgresStore) query(ctx context.Context, sql string, args ...any) ([]JobAlert, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	out := make([]JobAlert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}

	return out, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, owner, id string) (*JobAlert, error) {
	row := s.db.QueryRow(ctx, `SELECT `+columns+` FROM job_alerts WHERE id = $1 AND owner = $2`, id, owner)
	a, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (s *PostgresStore) Create(ctx context.Context, a *JobAlert) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO job_alerts (`+columns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.Owner, a.Keywords, a.Location, string(a.JobType), a.Active, a.CreatedAt, a.UpdatedAt, a.LastCheckedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, a *JobAlert) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE job_alerts
		 SET keywords = $3, location = $4, job_type = $5, active = $6, updated_at = $7
		 WHERE id = $1 AND owner = $2`,
		a.ID, a.Owner, a.Keywords, a.Location, string(a.JobType), a.Active, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, owner, id string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM job_alerts WHERE id = $1 AND owner = $2`, id, owner); err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	return nil
}

func (s *PostgresStore) MarkChecked(ctx context.Context, id string, at time.Time) error {
	tag, err := s.db.Exec(ctx, `UPDATE job_alerts SET last_checked_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark alert checked: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAlert(row pgx.Row) (*JobAlert, error) {
	var (
		a       JobAlert
		jobType string
	)
	if err := row.Scan(
		&a.ID, &a.Owner, &a.Keywords, &a.Location, &jobType, &a.Active,
		&a.CreatedAt, &a.UpdatedAt, &a.LastCheckedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan alert: %w", err)
	}
	a.JobType = jobs.JobType(jobType)
	return &a, nil
}
