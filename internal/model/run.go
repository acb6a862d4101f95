package model

import (
	"strings"
	"time"
)

// RunStatus is the terminal state of a hunt pass.
type RunStatus string

const (
	RunStatusComplete RunStatus = "complete"
	RunStatusAborted  RunStatus = "aborted"
)

// HuntState is the orchestrator's position within one pass.
type HuntState string

const (
	HuntStateInit      HuntState = "init"
	HuntStateExpanding HuntState = "expanding"
	HuntStateQuerying  HuntState = "querying"
	HuntStateComplete  HuntState = "complete"
	HuntStateAborted   HuntState = "aborted"
)

// Abort reasons recorded on aborted runs.
const (
	AbortNoCredentials = "no_credentials"
	AbortCanceled      = "canceled"
)

// DefaultRecency is the provider time filter used when none is given (past month).
const DefaultRecency = "qdr:m"

// DefaultMode labels passes triggered without an explicit mode.
const DefaultMode = "general"

// DefaultActor is used when a trigger carries no actor.
const DefaultActor = "admin"

// Recencies lists the accepted provider time filters.
var Recencies = []string{"qdr:h", "qdr:d", "qdr:w", "qdr:m", "qdr:y"}

// ValidRecency reports whether r is an accepted provider time filter.
func ValidRecency(r string) bool {
	for _, v := range Recencies {
		if r == v {
			return true
		}
	}
	return false
}

// SearchIntent is the input of one hunt pass. It is not modified once the
// pass starts.
type SearchIntent struct {
	Phrase  string `json:"intent"`
	City    string `json:"city"`
	Recency string `json:"time_filter"`
	Actor   string `json:"user_id"`
	Mode    string `json:"mode"`
}

// WithDefaults trims the intent and fills unset optional fields.
func (si SearchIntent) WithDefaults() SearchIntent {
	si.Phrase = strings.TrimSpace(si.Phrase)
	si.City = strings.TrimSpace(si.City)
	if si.Recency == "" {
		si.Recency = DefaultRecency
	}
	if si.Actor == "" {
		si.Actor = DefaultActor
	}
	if si.Mode == "" {
		si.Mode = DefaultMode
	}
	return si
}

// ProviderQuery is one search request derived from an intent.
type ProviderQuery struct {
	Text     string `json:"text"`
	Recency  string `json:"recency"`
	Area     string `json:"area"`
	Template string `json:"template"`
}

// ResultItem is one organic search result.
type ResultItem struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Link    string `json:"link"`
}

// Text returns the title and snippet joined for classification.
func (r ResultItem) Text() string {
	return strings.TrimSpace(r.Title + " " + r.Snippet)
}

// HuntRun summarizes one completed or aborted pass. It is written once and
// never updated.
type HuntRun struct {
	ID              string    `json:"id"`
	Actor           string    `json:"actor"`
	Intent          string    `json:"intent"`
	City            string    `json:"city"`
	Recency         string    `json:"recency"`
	Mode            string    `json:"mode"`
	Status          RunStatus `json:"status"`
	AbortReason     string    `json:"abort_reason,omitempty"`
	QueriesIssued   int       `json:"queries_issued"`
	QueriesFailed   int       `json:"queries_failed"`
	ResultsScanned  int       `json:"results_scanned"`
	ResultsRejected int       `json:"results_rejected"`
	LeadsFound      int       `json:"leads_found"`
	LeadsCreated    int       `json:"leads_created"`
	DurationSecs    float64   `json:"duration_seconds"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}
