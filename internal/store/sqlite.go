package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/hunterpro/hunter-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Upserts read-then-write inside a transaction; one connection keeps
	// them serialized.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	phone_number TEXT PRIMARY KEY,
	source       TEXT NOT NULL,
	quality      TEXT NOT NULL,
	segment      TEXT NOT NULL DEFAULT 'NORMAL',
	notes        TEXT NOT NULL DEFAULT '',
	user_id      TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'NEW',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS events (
	id         TEXT PRIMARY KEY,
	type       TEXT NOT NULL,
	actor      TEXT NOT NULL DEFAULT '',
	subject    TEXT NOT NULL DEFAULT '',
	detail     TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
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
	duration_seconds REAL NOT NULL DEFAULT 0,
	started_at       DATETIME NOT NULL,
	finished_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at);
CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at);
CREATE INDEX IF NOT EXISTS idx_hunt_runs_started_at ON hunt_runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertLead(ctx context.Context, lead model.Lead) (bool, error) {
	created, updated := leadTimes(lead)
	status := lead.Status
	if status == "" {
		status = model.LeadStatusNew
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM leads WHERE phone_number = ?`, lead.Phone).Scan(&exists)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, eris.Wrapf(err, "sqlite: lookup lead %s", lead.Phone)
	}
	inserted := errors.Is(err, sql.ErrNoRows)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO leads (`+leadColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (phone_number) DO UPDATE SET
			source = excluded.source,
			quality = excluded.quality,
			segment = excluded.segment,
			notes = excluded.notes,
			user_id = excluded.user_id,
			updated_at = excluded.updated_at`,
		lead.Phone, lead.Source, string(lead.Quality), string(lead.Segment),
		lead.Notes, lead.Actor, string(status), created, updated,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: upsert lead %s", lead.Phone)
	}
	if err := tx.Commit(); err != nil {
		return false, eris.Wrap(err, "sqlite: commit upsert")
	}
	return inserted, nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, phone string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE phone_number = ?`, phone)
	l, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", phone)
	}
	return l, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	w := leadWhere(filter, question)
	query := `SELECT ` + leadColumns + ` FROM leads` + w.sql + ` ORDER BY created_at DESC, phone_number` + w.page(filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close() //nolint:errcheck

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) CountLeads(ctx context.Context, filter LeadFilter) (int, error) {
	w := leadWhere(filter, question)
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM leads`+w.sql, w.args...).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count leads")
}

func (s *SQLiteStore) AppendEvent(ctx context.Context, evt model.AuditEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		evt.ID, evt.Type, evt.Actor, evt.Subject, evt.Detail, evt.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: append event %s", evt.Type)
}

func (s *SQLiteStore) ListEvents(ctx context.Context, limit int) ([]model.AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY created_at DESC LIMIT ?`,
		limitOrDefault(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list events")
	}
	defer rows.Close() //nolint:errcheck

	var events []model.AuditEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan event")
		}
		events = append(events, *e)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: list events iterate")
}

func (s *SQLiteStore) InsertRun(ctx context.Context, run model.HuntRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO hunt_runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runValues(run)...,
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.HuntRun, error) {
	w := runWhere(filter, question)
	query := `SELECT ` + runColumns + ` FROM hunt_runs` + w.sql + ` ORDER BY started_at DESC` + w.page(filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, w.args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.HuntRun
	for rows.Next() {
		r, err := scanHuntRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}
