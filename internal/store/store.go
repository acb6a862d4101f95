// Package store persists leads, hunt runs and audit events.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/hunterpro/hunter-cli/internal/model"
)

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Status       model.LeadStatus   `json:"status,omitempty"`
	Quality      model.QualityTier  `json:"quality,omitempty"`
	Segment      model.SegmentLevel `json:"segment,omitempty"`
	Actor        string             `json:"user_id,omitempty"`
	CreatedAfter time.Time          `json:"created_after,omitempty"`
	Limit        int                `json:"limit,omitempty"`
	Offset       int                `json:"offset,omitempty"`
}

// RunFilter specifies criteria for listing hunt runs.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	Actor        string          `json:"actor,omitempty"`
	StartedAfter time.Time       `json:"started_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for lead discovery.
type Store interface {
	// Leads
	UpsertLead(ctx context.Context, lead model.Lead) (inserted bool, err error)
	GetLead(ctx context.Context, phone string) (*model.Lead, error) // nil, nil when absent
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	CountLeads(ctx context.Context, filter LeadFilter) (int, error)

	// Audit events
	AppendEvent(ctx context.Context, evt model.AuditEvent) error
	ListEvents(ctx context.Context, limit int) ([]model.AuditEvent, error)

	// Hunt runs
	InsertRun(ctx context.Context, run model.HuntRun) error
	ListRuns(ctx context.Context, filter RunFilter) ([]model.HuntRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

// leadTimes returns the lead's timestamps, filling zero values with the
// current time. UpdatedAt falls back to CreatedAt.
func leadTimes(l model.Lead) (created, updated time.Time) {
	created, updated = l.CreatedAt, l.UpdatedAt
	if created.IsZero() {
		created = time.Now()
	}
	if updated.IsZero() {
		updated = created
	}
	return created.UTC(), updated.UTC()
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}

// whereBuilder accumulates filter clauses with driver-specific placeholders.
type whereBuilder struct {
	ph   func(n int) string
	sql  string
	args []any
}

func (w *whereBuilder) add(clause string, v any) {
	w.args = append(w.args, v)
	w.sql += " AND " + fmt.Sprintf(clause, w.ph(len(w.args)))
}

func (w *whereBuilder) page(limit, offset int) string {
	w.args = append(w.args, limitOrDefault(limit))
	s := " LIMIT " + w.ph(len(w.args))
	if offset > 0 {
		w.args = append(w.args, offset)
		s += " OFFSET " + w.ph(len(w.args))
	}
	return s
}

func dollar(n int) string { return fmt.Sprintf("$%d", n) }

func question(int) string { return "?" }

func leadWhere(f LeadFilter, ph func(int) string) *whereBuilder {
	w := &whereBuilder{ph: ph, sql: " WHERE 1=1"}
	if f.Status != "" {
		w.add("status = %s", string(f.Status))
	}
	if f.Quality != "" {
		w.add("quality = %s", string(f.Quality))
	}
	if f.Segment != "" {
		w.add("segment = %s", string(f.Segment))
	}
	if f.Actor != "" {
		w.add("user_id = %s", f.Actor)
	}
	if !f.CreatedAfter.IsZero() {
		w.add("created_at > %s", f.CreatedAfter.UTC())
	}
	return w
}

func runWhere(f RunFilter, ph func(int) string) *whereBuilder {
	w := &whereBuilder{ph: ph, sql: " WHERE 1=1"}
	if f.Status != "" {
		w.add("status = %s", string(f.Status))
	}
	if f.Actor != "" {
		w.add("actor = %s", f.Actor)
	}
	if !f.StartedAfter.IsZero() {
		w.add("started_at > %s", f.StartedAfter.UTC())
	}
	return w
}

const (
	leadColumns  = "phone_number, source, quality, segment, notes, user_id, status, created_at, updated_at"
	eventColumns = "id, type, actor, subject, detail, created_at"
	runColumns   = "id, actor, intent, city, recency, mode, status, abort_reason, queries_issued, queries_failed, " +
		"results_scanned, results_rejected, leads_found, leads_created, duration_seconds, started_at, finished_at"
)

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*model.Lead, error) {
	var (
		l                        model.Lead
		quality, segment, status string
	)
	if err := row.Scan(&l.Phone, &l.Source, &quality, &segment, &l.Notes, &l.Actor, &status, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.Quality = model.QualityTier(quality)
	l.Segment = model.SegmentLevel(segment)
	l.Status = model.LeadStatus(status)
	return &l, nil
}

func scanEvent(row scannable) (*model.AuditEvent, error) {
	var e model.AuditEvent
	if err := row.Scan(&e.ID, &e.Type, &e.Actor, &e.Subject, &e.Detail, &e.CreatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func scanHuntRun(row scannable) (*model.HuntRun, error) {
	var (
		r      model.HuntRun
		status string
	)
	err := row.Scan(&r.ID, &r.Actor, &r.Intent, &r.City, &r.Recency, &r.Mode, &status, &r.AbortReason,
		&r.QueriesIssued, &r.QueriesFailed, &r.ResultsScanned, &r.ResultsRejected,
		&r.LeadsFound, &r.LeadsCreated, &r.DurationSecs, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	return &r, nil
}

func runValues(r model.HuntRun) []any {
	return []any{
		r.ID, r.Actor, r.Intent, r.City, r.Recency, r.Mode, string(r.Status), r.AbortReason,
		r.QueriesIssued, r.QueriesFailed, r.ResultsScanned, r.ResultsRejected,
		r.LeadsFound, r.LeadsCreated, r.DurationSecs, r.StartedAt.UTC(), r.FinishedAt.UTC(),
	}
}
