package store

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hunterpro/hunter-cli/internal/model"
)

// SupabaseStore implements Store over a Supabase project's PostgREST API.
// The schema is managed in the Supabase project; Migrate is a no-op.
type SupabaseStore struct {
	url        string
	serviceKey string
	http       *http.Client
}

// SupabaseOption configures a SupabaseStore.
type SupabaseOption func(*SupabaseStore)

// WithSupabaseHTTPClient overrides the default http.Client.
func WithSupabaseHTTPClient(hc *http.Client) SupabaseOption {
	return func(s *SupabaseStore) {
		s.http = hc
	}
}

// NewSupabase creates a SupabaseStore for the project at baseURL.
func NewSupabase(baseURL, serviceKey string, opts ...SupabaseOption) (*SupabaseStore, error) {
	if baseURL == "" || serviceKey == "" {
		return nil, eris.New("supabase: url and service key are required")
	}
	s := &SupabaseStore{
		url:        strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		http:       &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func (s *SupabaseStore) Migrate(_ context.Context) error {
	zap.L().Info("supabase: schema is managed by the project, skipping migration")
	return nil
}

func (s *SupabaseStore) Close() error {
	return nil
}

// UpsertLead inserts the lead, ignoring a conflict on phone_number. The
// insert returns the new row only when it created one, so the inserted flag
// is decided by the database. A conflict falls through to a PATCH of the
// merge columns; status and created_at are left alone.
func (s *SupabaseStore) UpsertLead(ctx context.Context, lead model.Lead) (bool, error) {
	created, updated := leadTimes(lead)
	status := lead.Status
	if status == "" {
		status = model.LeadStatusNew
	}

	row := map[string]any{
		"phone_number": lead.Phone,
		"source":       lead.Source,
		"quality":      string(lead.Quality),
		"segment":      string(lead.Segment),
		"notes":        lead.Notes,
		"user_id":      lead.Actor,
		"status":       string(status),
		"created_at":   created,
		"updated_at":   updated,
	}

	var rows []json.RawMessage
	q := url.Values{"on_conflict": {"phone_number"}, "select": {"phone_number"}}
	if err := s.send(ctx, http.MethodPost, "leads", q, row, "resolution=ignore-duplicates,return=representation", &rows); err != nil {
		return false, eris.Wrapf(err, "supabase: insert lead %s", lead.Phone)
	}
	if len(rows) > 0 {
		return true, nil
	}

	merge := map[string]any{
		"source":     lead.Source,
		"quality":    string(lead.Quality),
		"segment":    string(lead.Segment),
		"notes":      lead.Notes,
		"user_id":    lead.Actor,
		"updated_at": updated,
	}
	q = url.Values{"phone_number": {"eq." + lead.Phone}}
	if err := s.send(ctx, http.MethodPatch, "leads", q, merge, "return=minimal", nil); err != nil {
		return false, eris.Wrapf(err, "supabase: merge lead %s", lead.Phone)
	}
	return false, nil
}

func (s *SupabaseStore) GetLead(ctx context.Context, phone string) (*model.Lead, error) {
	q := url.Values{
		"select":       {"*"},
		"phone_number": {"eq." + phone},
		"limit":        {"1"},
	}
	var leads []model.Lead
	if _, err := s.get(ctx, "leads", q, &leads, ""); err != nil {
		return nil, eris.Wrapf(err, "supabase: get lead %s", phone)
	}
	if len(leads) == 0 {
		return nil, nil
	}
	return &leads[0], nil
}

func (s *SupabaseStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	q := leadQuery(filter)
	q.Set("select", "*")
	q.Set("order", "created_at.desc")
	q.Set("limit", strconv.Itoa(limitOrDefault(filter.Limit)))
	if filter.Offset > 0 {
		q.Set("offset", strconv.Itoa(filter.Offset))
	}

	var leads []model.Lead
	if _, err := s.get(ctx, "leads", q, &leads, ""); err != nil {
		return nil, eris.Wrap(err, "supabase: list leads")
	}
	return leads, nil
}

func (s *SupabaseStore) CountLeads(ctx context.Context, filter LeadFilter) (int, error) {
	q := leadQuery(filter)
	q.Set("select", "phone_number")
	q.Set("limit", "1")

	var discard []json.RawMessage
	resp, err := s.get(ctx, "leads", q, &discard, "count=exact")
	if err != nil {
		return 0, eris.Wrap(err, "supabase: count leads")
	}
	n, err := parseContentRangeTotal(resp.Header.Get("Content-Range"))
	return n, eris.Wrap(err, "supabase: count leads")
}

func (s *SupabaseStore) AppendEvent(ctx context.Context, evt model.AuditEvent) error {
	evt.CreatedAt = evt.CreatedAt.UTC()
	return eris.Wrapf(s.post(ctx, "events", nil, evt, "return=minimal"), "supabase: append event %s", evt.Type)
}

func (s *SupabaseStore) ListEvents(ctx context.Context, limit int) ([]model.AuditEvent, error) {
	q := url.Values{
		"select": {"*"},
		"order":  {"created_at.desc"},
		"limit":  {strconv.Itoa(limitOrDefault(limit))},
	}
	var events []model.AuditEvent
	if _, err := s.get(ctx, "events", q, &events, ""); err != nil {
		return nil, eris.Wrap(err, "supabase: list events")
	}
	return events, nil
}

func (s *SupabaseStore) InsertRun(ctx context.Context, run model.HuntRun) error {
	return eris.Wrapf(s.post(ctx, "hunt_runs", nil, run, "return=minimal"), "supabase: insert run %s", run.ID)
}

func (s *SupabaseStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.HuntRun, error) {
	q := url.Values{
		"select": {"*"},
		"order":  {"started_at.desc"},
		"limit":  {strconv.Itoa(limitOrDefault(filter.Limit))},
	}
	if filter.Status != "" {
		q.Set("status", "eq."+string(filter.Status))
	}
	if filter.Actor != "" {
		q.Set("actor", "eq."+filter.Actor)
	}
	if !filter.StartedAfter.IsZero() {
		q.Set("started_at", "gt."+filter.StartedAfter.UTC().Format(time.RFC3339))
	}
	if filter.Offset > 0 {
		q.Set("offset", strconv.Itoa(filter.Offset))
	}

	var runs []model.HuntRun
	if _, err := s.get(ctx, "hunt_runs", q, &runs, ""); err != nil {
		return nil, eris.Wrap(err, "supabase: list runs")
	}
	return runs, nil
}

func leadQuery(f LeadFilter) url.Values {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", "eq."+string(f.Status))
	}
	if f.Quality != "" {
		q.Set("quality", "eq."+string(f.Quality))
	}
	if f.Segment != "" {
		q.Set("segment", "eq."+string(f.Segment))
	}
	if f.Actor != "" {
		q.Set("user_id", "eq."+f.Actor)
	}
	if !f.CreatedAfter.IsZero() {
		q.Set("created_at", "gt."+f.CreatedAfter.UTC().Format(time.RFC3339))
	}
	return q
}

func (s *SupabaseStore) endpoint(table string, q url.Values) string {
	u := s.url + "/rest/v1/" + table
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (s *SupabaseStore) setHeaders(req *http.Request, prefer string) {
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
}

func (s *SupabaseStore) post(ctx context.Context, table string, q url.Values, body any, prefer string) error {
	return s.send(ctx, http.MethodPost, table, q, body, prefer, nil)
}

// send writes body to table. When out is non-nil the response body is
// decoded into it.
func (s *SupabaseStore) send(ctx context.Context, method, table string, q url.Values, body any, prefer string, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "marshal body")
	}
	req, err := http.NewRequestWithContext(ctx, method, s.endpoint(table, q), bytes.NewReader(data))
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	s.setHeaders(req, prefer)

	resp, err := s.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response")
	}
	if resp.StatusCode >= 400 {
		return eris.Errorf("unexpected status %d: %s", resp.StatusCode, string(b))
	}
	if out != nil && len(bytes.TrimSpace(b)) > 0 {
		if err := json.Unmarshal(b, out); err != nil {
			return eris.Wrap(err, "unmarshal response")
		}
	}
	return nil
}

func (s *SupabaseStore) get(ctx context.Context, table string, q url.Values, out any, prefer string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint(table, q), nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	s.setHeaders(req, prefer)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "read response")
	}
	if resp.StatusCode >= 400 {
		return nil, eris.Errorf("unexpected status %d: %s", resp.StatusCode, string(b))
	}
	if err := json.Unmarshal(b, out); err != nil {
		return nil, eris.Wrap(err, "unmarshal response")
	}
	return resp, nil
}

// parseContentRangeTotal reads the total from "0-24/3573" or "*/0".
func parseContentRangeTotal(h string) (int, error) {
	i := strings.LastIndex(h, "/")
	if i < 0 || i == len(h)-1 {
		return 0, eris.Errorf("malformed content-range %q", h)
	}
	n, err := strconv.Atoi(h[i+1:])
	if err != nil {
		return 0, eris.Wrapf(err, "malformed content-range %q", h)
	}
	return n, nil
}
