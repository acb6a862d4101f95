package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hunterpro/hunter-cli/internal/model"
)

// fakePostgREST keeps leads in memory and answers the subset of PostgREST
// the store uses.
type fakePostgREST struct {
	mu      sync.Mutex
	leads   map[string]map[string]any
	events  []map[string]any
	runs    []map[string]any
	prefers []string
}

func newFakePostgREST(t *testing.T) (*fakePostgREST, *httptest.Server) {
	t.Helper()
	f := &fakePostgREST{leads: map[string]map[string]any{}}
	srv := httptest.NewServer(http.HandlerFunc(f.serve(t)))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakePostgREST) serve(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))

		f.mu.Lock()
		defer f.mu.Unlock()
		f.prefers = append(f.prefers, r.Header.Get("Prefer"))

		table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodPost && table == "leads":
			assert.Equal(t, "phone_number", r.URL.Query().Get("on_conflict"))
			assert.Equal(t, "resolution=ignore-duplicates,return=representation", r.Header.Get("Prefer"))
			var row map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&row))
			phone := row["phone_number"].(string)
			w.WriteHeader(http.StatusCreated)
			if _, ok := f.leads[phone]; ok {
				_, _ = w.Write([]byte("[]"))
				return
			}
			f.leads[phone] = row
			_ = json.NewEncoder(w).Encode([]map[string]any{{"phone_number": phone}})

		case r.Method == http.MethodPatch && table == "leads":
			phone := strings.TrimPrefix(r.URL.Query().Get("phone_number"), "eq.")
			var patch map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&patch))
			assert.NotContains(t, patch, "status")
			assert.NotContains(t, patch, "created_at")
			if cur, ok := f.leads[phone]; ok {
				for k, v := range patch {
					cur[k] = v
				}
			}
			w.WriteHeader(http.StatusNoContent)

		case r.Method == http.MethodGet && table == "leads":
			var out []map[string]any
			want := strings.TrimPrefix(r.URL.Query().Get("phone_number"), "eq.")
			quality := strings.TrimPrefix(r.URL.Query().Get("quality"), "eq.")
			for p, row := range f.leads {
				if want != "" && p != want {
					continue
				}
				if quality != "" && row["quality"] != quality {
					continue
				}
				out = append(out, row)
			}
			if r.Header.Get("Prefer") == "count=exact" {
				w.Header().Set("Content-Range", "0-0/"+itoa(len(out)))
				if len(out) > 1 {
					out = out[:1]
				}
			}
			if out == nil {
				out = []map[string]any{}
			}
			_ = json.NewEncoder(w).Encode(out)

		case r.Method == http.MethodPost && table == "events":
			var row map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&row))
			f.events = append(f.events, row)
			w.WriteHeader(http.StatusCreated)

		case r.Method == http.MethodPost && table == "hunt_runs":
			var row map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&row))
			f.runs = append(f.runs, row)
			w.WriteHeader(http.StatusCreated)

		case r.Method == http.MethodGet && table == "hunt_runs":
			assert.Equal(t, "started_at.desc", r.URL.Query().Get("order"))
			_ = json.NewEncoder(w).Encode(f.runs)

		case r.Method == http.MethodGet && table == "events":
			_ = json.NewEncoder(w).Encode(f.events)

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func newTestSupabase(t *testing.T) (*SupabaseStore, *fakePostgREST) {
	t.Helper()
	f, srv := newFakePostgREST(t)
	s, err := NewSupabase(srv.URL+"/", "service-key")
	require.NoError(t, err)
	return s, f
}

func TestSupabase_New_RequiresSettings(t *testing.T) {
	_, err := NewSupabase("", "k")
	require.Error(t, err)
	_, err = NewSupabase("https://x.supabase.co", "")
	require.Error(t, err)
}

func TestSupabase_UpsertLead_InsertThenMerge(t *testing.T) {
	s, f := newTestSupabase(t)
	ctx := context.Background()

	inserted, err := s.UpsertLead(ctx, model.Lead{
		Phone: "01012345678", Source: "serper: شقة", Quality: model.QualityGood,
		Segment: model.SegmentNormal, Notes: "https://a", Actor: "admin",
	})
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, "NEW", f.leads["01012345678"]["status"])

	// Sales moved the lead on; a rediscovery must not reset it.
	f.leads["01012345678"]["status"] = "CONTACTED"

	inserted, err = s.UpsertLead(ctx, model.Lead{
		Phone: "01012345678", Source: "serper: villa", Quality: model.QualityExcellent,
		Segment: model.SegmentLuxury, Notes: "https://b", Actor: "admin",
	})
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := s.GetLead(ctx, "01012345678")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.QualityExcellent, got.Quality)
	assert.Equal(t, model.SegmentLuxury, got.Segment)
	assert.Equal(t, model.LeadStatusContacted, got.Status)
	assert.Len(t, f.leads, 1)
	assert.Contains(t, f.prefers, "return=minimal")
}

func TestSupabase_UpsertLead_ConcurrentSamePhone(t *testing.T) {
	s, f := newTestSupabase(t)
	ctx := context.Background()

	const callers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.UpsertLead(ctx, model.Lead{Phone: "01012345678", Source: "s", Quality: model.QualityGood, Segment: model.SegmentNormal})
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, inserted)
	assert.Len(t, f.leads, 1)
}

func TestSupabase_UpsertLead_UsesLeadTimestamps(t *testing.T) {
	s, _ := newTestSupabase(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	_, err := s.UpsertLead(ctx, model.Lead{Phone: "01112345678", Quality: model.QualityGood, Segment: model.SegmentNormal, CreatedAt: created})
	require.NoError(t, err)

	got, err := s.GetLead(ctx, "01112345678")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.True(t, got.UpdatedAt.Equal(created))
}

func TestSupabase_GetLead_Missing(t *testing.T) {
	s, _ := newTestSupabase(t)

	l, err := s.GetLead(context.Background(), "01000000000")
	require.NoError(t, err)
	assert.Nil(t, l)
}

func TestSupabase_ListAndCountLeads(t *testing.T) {
	s, _ := newTestSupabase(t)
	ctx := context.Background()

	for _, p := range []string{"01012345678", "01112345678"} {
		_, err := s.UpsertLead(ctx, model.Lead{Phone: p, Source: "s", Quality: model.QualityExcellent, Segment: model.SegmentNormal})
		require.NoError(t, err)
	}
	_, err := s.UpsertLead(ctx, model.Lead{Phone: "01212345678", Source: "s", Quality: model.QualityGood, Segment: model.SegmentNormal})
	require.NoError(t, err)

	leads, err := s.ListLeads(ctx, LeadFilter{Quality: model.QualityExcellent})
	require.NoError(t, err)
	assert.Len(t, leads, 2)

	n, err := s.CountLeads(ctx, LeadFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSupabase_EventsAndRuns(t *testing.T) {
	s, f := newTestSupabase(t)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.AppendEvent(ctx, model.AuditEvent{ID: "e1", Type: model.EventLeadCreated, Subject: "01012345678", CreatedAt: now}))
	require.Len(t, f.events, 1)
	assert.Equal(t, "lead.created", f.events[0]["type"])

	events, err := s.ListEvents(ctx, 5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "01012345678", events[0].Subject)

	run := model.HuntRun{ID: "r1", Intent: "x", City: "Cairo", Status: model.RunStatusComplete, LeadsFound: 2, StartedAt: now, FinishedAt: now}
	require.NoError(t, s.InsertRun(ctx, run))
	require.Len(t, f.runs, 1)
	assert.Equal(t, "r1", f.runs[0]["id"])
	assert.EqualValues(t, 2, f.runs[0]["leads_found"])

	runs, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
}

func TestSupabase_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid API key"}`))
	}))
	defer srv.Close()

	s, err := NewSupabase(srv.URL, "bad")
	require.NoError(t, err)

	_, err = s.ListLeads(context.Background(), LeadFilter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	err = s.AppendEvent(context.Background(), model.AuditEvent{Type: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "supabase: append event")
}

func TestParseContentRangeTotal(t *testing.T) {
	n, err := parseContentRangeTotal("0-24/3573")
	require.NoError(t, err)
	assert.Equal(t, 3573, n)

	n, err = parseContentRangeTotal("*/0")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = parseContentRangeTotal("")
	require.Error(t, err)
	_, err = parseContentRangeTotal("0-1/*")
	require.Error(t, err)
}
