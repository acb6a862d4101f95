package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/hunterpro/hunter-cli/internal/db"
	"github.com/hunterpro/hunter-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. The caller keeps ownership.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	phone_number TEXT PRIMARY KEY,
	source       TEXT NOT NULL,
	quality      TEXT NOT NULL,
	segment      TEXT NOT NULL DEFAULT 'NORMAL',
	notes        TEXT NOT NULL DEFAULT '',
	user_id      TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'NEW',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS events (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	type       TEXT NOT NULL,
	actor      TEXT NOT NULL DEFAULT '',
	subject    TEXT NOT NULL DEFAULT '',
	detail     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS hunt_runs (
	id               TEXT PRIMARY KEY,
	actor            TEXT NOT NULL,
	intent           TEXT NOT NULL,
	city             TEXT NOT NULL,
	recency          TEXT NOT NULL,
	mode             TEXT NOT NULL,
	status           TEXT NOT NULL,
	abort_reason     TEXT NOT NULL DEFAULT '',
	queries_issued   INTEGER NOT NULL DEFAULT 0,
	queries_failed   INTEGER NOT NULL DEFAULT 0,
	results_scanned  INTEGER NOT NULL DEFAULT 0,
	results_rejected INTEGER NOT NULL DEFAULT 0,
	leads_found      INTEGER NOT NULL DEFAULT 0,
	leads_created    INTEGER NOT NULL DEFAULT 0,
	duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
	started_at       TIMESTAMPTZ NOT NULL,
	finished_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_hunt_runs_started_at ON hunt_runs(started_at DESC);
`

// leadUpsert keeps status and created_at of an existing lead.
var leadUpsert = db.UpsertConfig{
	Table:        "leads",
	Columns:      []string{"phone_number", "source", "quality", "segment", "notes", "user_id", "status", "created_at", "updated_at"},
	ConflictKeys: []string{"phone_number"},
	UpdateCols:   []string{"source", "quality", "segment", "notes", "user_id", "updated_at"},
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertLead(ctx context.Context, lead model.Lead) (bool, error) {
	created, updated := leadTimes(lead)
	status := lead.Status
	if status == "" {
		status = model.LeadStatusNew
	}
	inserted, err := db.Upsert(ctx, s.pool, leadUpsert, []any{
		lead.Phone, lead.Source, string(lead.Quality), string(lead.Segment),
		lead.Notes, lead.Actor, string(status), created, updated,
	})
	return inserted, eris.Wrapf(err, "postgres: upsert lead %s", lead.Phone)
}

func (s *PostgresStore) GetLead(ctx context.Context, phone string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE phone_number = $1`, phone)
	l, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", phone)
	}
	return l, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	w := leadWhere(filter, dollar)
	query := `SELECT ` + leadColumns + ` FROM leads` + w.sql + ` ORDER BY created_at DESC` + w.page(filter.Limit, filter.Offset)

	rows, err := s.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) CountLeads(ctx context.Context, filter LeadFilter) (int, error) {
	w := leadWhere(filter, dollar)
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM leads`+w.sql, w.args...).Scan(&n)
	return n, eris.Wrap(err, "postgres: count leads")
}

func (s *PostgresStore) AppendEvent(ctx context.Context, evt model.AuditEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		evt.ID, evt.Type, evt.Actor, evt.Subject, evt.Detail, evt.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: append event %s", evt.Type)
}

func (s *PostgresStore) ListEvents(ctx context.Context, limit int) ([]model.AuditEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY created_at DESC LIMIT $1`,
		limitOrDefault(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list events")
	}
	defer rows.Close()

	var events []model.AuditEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan event")
		}
		events = append(events, *e)
	}
	return events, eris.Wrap(rows.Err(), "postgres: list events iterate")
}

func (s *PostgresStore) InsertRun(ctx context.Context, run model.HuntRun) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO hunt_runs (`+runColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		runValues(run)...,
	)
	return eris.Wrapf(err, "postgres: insert run %s", run.ID)
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.HuntRun, error) {
	w := runWhere(filter, dollar)
	query := `SELECT ` + runColumns + ` FROM hunt_runs` + w.sql + ` ORDER BY started_at DESC` + w.page(filter.Limit, filter.Offset)

	rows, err := s.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.HuntRun
	for rows.Next() {
		r, err := scanHuntRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
