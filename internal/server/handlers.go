package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/hunterpro/hunter-cli/internal/events"
	"github.com/hunterpro/hunter-cli/internal/hunt"
	"github.com/hunterpro/hunter-cli/internal/model"
	"github.com/hunterpro/hunter-cli/internal/phone"
	"github.com/hunterpro/hunter-cli/internal/store"
)

const (
	maxBodyBytes       = 1 << 20
	maxListLimit       = 500
	defaultRecentLimit = 50
	defaultStatsHours  = 24
)

type handlers struct {
	deps        Deps
	recentLimit int
	now         func() time.Time
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   h.now().UTC(),
	})
}

func (h *handlers) submitHunt(w http.ResponseWriter, r *http.Request) {
	var intent model.SearchIntent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&intent); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_body", "request body must be a JSON search intent")
		return
	}
	intent = intent.WithDefaults()

	if err := hunt.ValidateIntent(intent); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_intent", err.Error())
		return
	}
	if !h.deps.Limits.Allow(intent.Actor) {
		WriteError(w, r, http.StatusTooManyRequests, "rate_limited", "too many hunts submitted, try again shortly")
		return
	}

	ticket, err := h.deps.Hunts.Submit(intent)
	switch {
	case errors.Is(err, hunt.ErrQueueFull):
		WriteError(w, r, http.StatusServiceUnavailable, "queue_full", "hunt queue is full, try again later")
		return
	case errors.Is(err, hunt.ErrInvalidIntent):
		WriteError(w, r, http.StatusBadRequest, "invalid_intent", err.Error())
		return
	case err != nil:
		zap.L().Error("server: submit hunt", zap.Error(err))
		WriteError(w, r, http.StatusInternalServerError, "internal_error", "could not start hunt")
		return
	}

	WriteJSON(w, http.StatusAccepted, ticket)
}

func (h *handlers) listLeads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.LeadFilter{
		Status: model.LeadStatus(q.Get("status")),
		Actor:  q.Get("user_id"),
		Limit:  queryInt(q.Get("limit"), 0, maxListLimit),
		Offset: queryInt(q.Get("offset"), 0, -1),
	}
	if v := q.Get("quality"); v != "" {
		tier, ok := model.ParseQuality(v)
		if !ok {
			WriteError(w, r, http.StatusBadRequest, "invalid_quality", fmt.Sprintf("unknown quality %q", v))
			return
		}
		filter.Quality = tier
	}
	if v := q.Get("segment"); v != "" {
		filter.Segment = model.SegmentLevel(v)
	}

	leads, err := h.deps.Store.ListLeads(r.Context(), filter)
	if err != nil {
		zap.L().Error("server: list leads", zap.Error(err))
		WriteError(w, r, http.StatusInternalServerError, "internal_error", "could not list leads")
		return
	}
	if leads == nil {
		leads = []model.Lead{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"leads": leads, "count": len(leads)})
}

func (h *handlers) listRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	runs, err := h.deps.Store.ListRuns(r.Context(), store.RunFilter{
		Status: model.RunStatus(q.Get("status")),
		Actor:  q.Get("actor"),
		Limit:  queryInt(q.Get("limit"), 0, maxListLimit),
		Offset: queryInt(q.Get("offset"), 0, -1),
	})
	if err != nil {
		zap.L().Error("server: list runs", zap.Error(err))
		WriteError(w, r, http.StatusInternalServerError, "internal_error", "could not list runs")
		return
	}
	if runs == nil {
		runs = []model.HuntRun{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

func (h *handlers) recentEvents(w http.ResponseWriter, r *http.Request) {
	def := h.recentLimit
	if def <= 0 {
		def = defaultRecentLimit
	}
	evts, err := h.deps.Store.ListEvents(r.Context(), queryInt(r.URL.Query().Get("limit"), def, maxListLimit))
	if err != nil {
		zap.L().Error("server: list events", zap.Error(err))
		WriteError(w, r, http.StatusInternalServerError, "internal_error", "could not list events")
		return
	}
	if evts == nil {
		evts = []model.AuditEvent{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"events": evts})
}

func (h *handlers) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, r, http.StatusInternalServerError, "stream_unsupported", "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.deps.Hub.Subscribe()
	defer h.deps.Hub.Unsubscribe(ch)

	if ping, err := events.New(events.TypePing, "", nil).Encode(); err == nil {
		fmt.Fprintf(w, "event: message\ndata: %s\n\n", ping)
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

type extractRequest struct {
	Text string `json:"text"`
}

func (h *handlers) extractPhones(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_body", "request body must be {\"text\": ...}")
		return
	}
	phones := phone.Extract(req.Text)
	if phones == nil {
		phones = []string{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"phones": phones})
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	if h.deps.Stats == nil {
		WriteError(w, r, http.StatusNotFound, "stats_disabled", "stats are not configured")
		return
	}
	hours := queryInt(r.URL.Query().Get("hours"), defaultStatsHours, 24*30)
	snap, err := h.deps.Stats.Collect(r.Context(), hours)
	if err != nil {
		zap.L().Error("server: collect stats", zap.Error(err))
		WriteError(w, r, http.StatusInternalServerError, "internal_error", "could not collect stats")
		return
	}
	WriteJSON(w, http.StatusOK, snap)
}

// queryInt parses a non-negative integer parameter, falling back to def and
// capping at ceiling when ceiling > 0.
func queryInt(raw string, def, ceiling int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	if ceiling > 0 && n > ceiling {
		return ceiling
	}
	return n
}
