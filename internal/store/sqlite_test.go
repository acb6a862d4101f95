package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hunterpro/hunter-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

// --- Leads ---

func TestSQLite_UpsertLead_InsertThenUpdate(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	inserted, err := st.UpsertLead(ctx, model.Lead{
		Phone:   "01012345678",
		Source:  "serper: شقة",
		Quality: model.QualityGood,
		Segment: model.SegmentNormal,
		Notes:   "https://facebook.com/1",
		Actor:   "admin",
	})
	require.NoError(t, err)
	assert.True(t, inserted)

	first, err := st.GetLead(ctx, "01012345678")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, model.LeadStatusNew, first.Status)

	inserted, err = st.UpsertLead(ctx, model.Lead{
		Phone:   "01012345678",
		Source:  "serper: villa",
		Quality: model.QualityExcellent,
		Segment: model.SegmentLuxury,
		Notes:   "https://olx.com.eg/2",
		Actor:   "agent-7",
		Status:  model.LeadStatusNew,
	})
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := st.GetLead(ctx, "01012345678")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "serper: villa", got.Source)
	assert.Equal(t, model.QualityExcellent, got.Quality)
	assert.Equal(t, model.SegmentLuxury, got.Segment)
	assert.Equal(t, "https://olx.com.eg/2", got.Notes)
	assert.Equal(t, "agent-7", got.Actor)
	assert.True(t, got.CreatedAt.Equal(first.CreatedAt))

	n, err := st.CountLeads(ctx, LeadFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLite_UpsertLead_PreservesStatus(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.UpsertLead(ctx, model.Lead{Phone: "01112345678", Source: "s", Quality: model.QualityGood, Segment: model.SegmentNormal, Status: model.LeadStatusContacted})
	require.NoError(t, err)

	_, err = st.UpsertLead(ctx, model.Lead{Phone: "01112345678", Source: "s2", Quality: model.QualityExcellent, Segment: model.SegmentNormal})
	require.NoError(t, err)

	got, err := st.GetLead(ctx, "01112345678")
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusContacted, got.Status)
	assert.Equal(t, "s2", got.Source)
}

func TestSQLite_UpsertLead_UsesLeadTimestamps(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	_, err := st.UpsertLead(ctx, model.Lead{Phone: "01512345678", Source: "s", Quality: model.QualityGood, Segment: model.SegmentNormal, CreatedAt: created, UpdatedAt: created})
	require.NoError(t, err)

	later := created.Add(2 * time.Hour)
	_, err = st.UpsertLead(ctx, model.Lead{Phone: "01512345678", Source: "s2", Quality: model.QualityGood, Segment: model.SegmentNormal, CreatedAt: later, UpdatedAt: later})
	require.NoError(t, err)

	got, err := st.GetLead(ctx, "01512345678")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.CreatedAt.Equal(created), "created_at %s", got.CreatedAt)
	assert.True(t, got.UpdatedAt.Equal(later), "updated_at %s", got.UpdatedAt)
}

func TestSQLite_GetLead_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	l, err := st.GetLead(context.Background(), "01000000000")
	require.NoError(t, err)
	assert.Nil(t, l)
}

func TestSQLite_ListLeads_Filters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, l := range []model.Lead{
		{Phone: "01012345678", Source: "s", Quality: model.QualityExcellent, Segment: model.SegmentLuxury, Actor: "a"},
		{Phone: "01112345678", Source: "s", Quality: model.QualityGood, Segment: model.SegmentNormal, Actor: "a"},
		{Phone: "01212345678", Source: "s", Quality: model.QualityExcellent, Segment: model.SegmentSocial, Actor: "b"},
	} {
		_, err := st.UpsertLead(ctx, l)
		require.NoError(t, err)
	}

	all, err := st.ListLeads(ctx, LeadFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	excellent, err := st.ListLeads(ctx, LeadFilter{Quality: model.QualityExcellent})
	require.NoError(t, err)
	assert.Len(t, excellent, 2)

	byActor, err := st.ListLeads(ctx, LeadFilter{Actor: "b"})
	require.NoError(t, err)
	require.Len(t, byActor, 1)
	assert.Equal(t, "01212345678", byActor[0].Phone)

	limited, err := st.ListLeads(ctx, LeadFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	n, err := st.CountLeads(ctx, LeadFilter{Segment: model.SegmentLuxury})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	none, err := st.ListLeads(ctx, LeadFilter{CreatedAfter: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, none)
}

// --- Events ---

func TestSQLite_Events(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	for i, subject := range []string{"01012345678", "01112345678"} {
		require.NoError(t, st.AppendEvent(ctx, model.AuditEvent{
			ID:        subject,
			Type:      model.EventLeadCreated,
			Actor:     "admin",
			Subject:   subject,
			Detail:    "EXCELLENT/NORMAL",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	events, err := st.ListEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "01112345678", events[0].Subject)
	assert.Equal(t, model.EventLeadCreated, events[1].Type)

	// Duplicate IDs are rejected.
	err = st.AppendEvent(ctx, model.AuditEvent{ID: "01012345678", Type: "x", CreatedAt: base})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite: append event")
}

// --- Runs ---

func TestSQLite_Runs(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	started := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	complete := model.HuntRun{
		ID: "run-1", Actor: "admin", Intent: "apartment wanted", City: "Cairo", Recency: "qdr:m", Mode: "general",
		Status: model.RunStatusComplete, QueriesIssued: 12, ResultsScanned: 40, ResultsRejected: 30,
		LeadsFound: 4, LeadsCreated: 3, DurationSecs: 18.5,
		StartedAt: started, FinishedAt: started.Add(18500 * time.Millisecond),
	}
	aborted := model.HuntRun{
		ID: "run-2", Actor: "ops", Intent: "villa", City: "Giza", Recency: "qdr:w", Mode: "general",
		Status: model.RunStatusAborted, AbortReason: model.AbortNoCredentials,
		StartedAt: started.Add(time.Hour), FinishedAt: started.Add(time.Hour),
	}
	require.NoError(t, st.InsertRun(ctx, complete))
	require.NoError(t, st.InsertRun(ctx, aborted))

	runs, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, model.AbortNoCredentials, runs[0].AbortReason)

	got := runs[1]
	assert.Equal(t, complete.LeadsFound, got.LeadsFound)
	assert.Equal(t, complete.LeadsCreated, got.LeadsCreated)
	assert.InDelta(t, 18.5, got.DurationSecs, 0.001)
	assert.True(t, got.StartedAt.Equal(started))

	onlyAborted, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusAborted})
	require.NoError(t, err)
	require.Len(t, onlyAborted, 1)

	byActor, err := st.ListRuns(ctx, RunFilter{Actor: "admin"})
	require.NoError(t, err)
	require.Len(t, byActor, 1)
	assert.Equal(t, "run-1", byActor[0].ID)

	// Runs are immutable; reinserting the same ID fails.
	require.Error(t, st.InsertRun(ctx, complete))
}
