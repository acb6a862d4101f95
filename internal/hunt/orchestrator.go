// Package hunt runs lead-discovery passes: one search intent expanded into
// provider queries whose results are classified, mined for phone numbers
// and persisted.
package hunt

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hunterpro/hunter-cli/internal/classify"
	"github.com/hunterpro/hunter-cli/internal/lead"
	"github.com/hunterpro/hunter-cli/internal/model"
	"github.com/hunterpro/hunter-cli/internal/phone"
	"github.com/hunterpro/hunter-cli/internal/query"
	"github.com/hunterpro/hunter-cli/internal/resilience"
	"github.com/hunterpro/hunter-cli/pkg/serper"
)

// ProviderName labels leads found through the search provider.
const ProviderName = "serper"

// DefaultCallTimeout bounds a single provider call.
const DefaultCallTimeout = 30 * time.Second

// RunStore records the outcome of a pass.
type RunStore interface {
	InsertRun(ctx context.Context, run model.HuntRun) error
	AppendEvent(ctx context.Context, evt model.AuditEvent) error
}

// Persister saves discoveries.
type Persister interface {
	Persist(ctx context.Context, d lead.Discovery) (lead.Outcome, error)
}

// Throttler paces provider calls.
type Throttler interface {
	Throttle(ctx context.Context) error
	RateLimited()
}

// Credentials hands out provider keys.
type Credentials interface {
	Next() (string, error)
	Retire(key string) bool
	Size() int
}

// Config holds per-call provider settings.
type Config struct {
	CallTimeout time.Duration
	Num         int
	Country     string
	Language    string
}

// Orchestrator drives hunt passes. It is safe for concurrent use; the
// rotator and governor it holds are shared by every pass.
type Orchestrator struct {
	search     serper.Client
	creds      Credentials
	governor   Throttler
	expander   *query.Expander
	classifier *classify.Classifier
	persister  Persister
	runs       RunStore
	cfg        Config
	now        func() time.Time
}

// Deps bundles the collaborators of an Orchestrator.
type Deps struct {
	Search     serper.Client
	Creds      Credentials
	Governor   Throttler
	Expander   *query.Expander
	Classifier *classify.Classifier
	Persister  Persister
	Runs       RunStore
}

// NewOrchestrator creates an Orchestrator. Nil expander or classifier fall
// back to the embedded tables.
func NewOrchestrator(d Deps, cfg Config) *Orchestrator {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if d.Expander == nil {
		d.Expander = query.DefaultExpander()
	}
	if d.Classifier == nil {
		d.Classifier = classify.Default()
	}
	return &Orchestrator{
		search:     d.Search,
		creds:      d.Creds,
		governor:   d.Governor,
		expander:   d.Expander,
		classifier: d.Classifier,
		persister:  d.Persister,
		runs:       d.Runs,
		cfg:        cfg,
		now:        time.Now,
	}
}

// NewRunID returns a fresh hunt run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// pass is the mutable state of one run.
type pass struct {
	state  model.HuntState
	run    model.HuntRun
	intent model.SearchIntent
	log    *zap.Logger
}

func (p *pass) to(s model.HuntState) {
	p.log.Debug("hunt: state change", zap.String("from", string(p.state)), zap.String("to", string(s)))
	p.state = s
}

func (p *pass) abort(reason string) {
	p.run.Status = model.RunStatusAborted
	p.run.AbortReason = reason
	p.to(model.HuntStateAborted)
}

// Run executes one pass for intent and writes its HuntRun. The returned
// error is non-nil only when the intent is unusable or the run summary
// could not be stored; per-query and per-result failures are absorbed.
func (o *Orchestrator) Run(ctx context.Context, runID string, intent model.SearchIntent) (*model.HuntRun, error) {
	intent = intent.WithDefaults()
	if err := ValidateIntent(intent); err != nil {
		return nil, err
	}
	if runID == "" {
		runID = NewRunID()
	}

	started := o.now()
	p := &pass{
		state:  model.HuntStateInit,
		intent: intent,
		log: zap.L().With(
			zap.String("run_id", runID),
			zap.String("intent", intent.Phrase),
			zap.String("city", intent.City),
		),
		run: model.HuntRun{
			ID:        runID,
			Actor:     intent.Actor,
			Intent:    intent.Phrase,
			City:      intent.City,
			Recency:   intent.Recency,
			Mode:      intent.Mode,
			Status:    model.RunStatusComplete,
			StartedAt: started.UTC(),
		},
	}

	if o.creds.Size() == 0 {
		p.log.Error("hunt: no provider credentials configured")
		p.abort(model.AbortNoCredentials)
	} else {
		o.execute(ctx, p)
	}

	return o.finish(ctx, p, started)
}

func (o *Orchestrator) execute(ctx context.Context, p *pass) {
	p.to(model.HuntStateExpanding)
	queries := o.expander.Expand(p.intent)
	p.log.Info("hunt: queries expanded", zap.Int("queries", len(queries)))

	p.to(model.HuntStateQuerying)
	for i, q := range queries {
		if ctx.Err() != nil {
			p.abort(model.AbortCanceled)
			return
		}
		if err := o.step(ctx, p, q); err != nil {
			if eris.Is(err, resilience.ErrNoCredential) {
				p.log.Error("hunt: credential pool exhausted", zap.Int("query", i))
				p.abort(model.AbortNoCredentials)
				return
			}
			p.abort(model.AbortCanceled)
			return
		}
	}
	p.to(model.HuntStateComplete)
}

// step issues one provider query. It returns an error only for conditions
// that end the pass.
func (o *Orchestrator) step(ctx context.Context, p *pass, q model.ProviderQuery) error {
	if err := o.governor.Throttle(ctx); err != nil {
		return err
	}
	key, err := o.creds.Next()
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	resp, err := o.search.Search(callCtx, key, serper.Request{
		Query:    q.Text,
		Recency:  q.Recency,
		Num:      o.cfg.Num,
		Country:  o.cfg.Country,
		Language: o.cfg.Language,
	})
	cancel()
	p.run.QueriesIssued++

	if err != nil {
		p.run.QueriesFailed++
		log := p.log.With(zap.String("query", q.Text), zap.Error(err))
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case resilience.IsRateLimited(err):
			log.Warn("hunt: provider rate limited, skipping query")
			o.governor.RateLimited()
		case resilience.IsInvalidCredential(err):
			o.creds.Retire(key)
			log.Warn("hunt: provider rejected credential, retired", zap.Int("keys_left", o.creds.Size()))
		default:
			log.Warn("hunt: provider call failed, skipping query", zap.Bool("transient", resilience.IsTransient(err)))
		}
		return nil
	}

	for _, r := range resp.Organic {
		o.handleResult(ctx, p, q, model.ResultItem{Title: r.Title, Snippet: r.Snippet, Link: r.Link})
	}
	return nil
}

func (o *Orchestrator) handleResult(ctx context.Context, p *pass, q model.ProviderQuery, item model.ResultItem) {
	p.run.ResultsScanned++

	res := o.classifier.Classify(item, p.intent.City, q.Area)
	if res.Quality == model.QualityTrash {
		p.run.ResultsRejected++
		return
	}
	phones := phone.Extract(item.Text())
	if len(phones) == 0 {
		p.run.ResultsRejected++
		return
	}

	for _, num := range phones {
		out, err := o.persister.Persist(ctx, lead.Discovery{
			Phone:    num,
			Intent:   p.intent.Phrase,
			Provider: ProviderName,
			Link:     item.Link,
			Quality:  res.Quality,
			Segment:  res.Segment,
			Actor:    p.intent.Actor,
			RunID:    p.run.ID,
		})
		if err != nil {
			p.log.Warn("hunt: save lead failed", zap.String("phone", num), zap.Error(err))
		}
		if out.Accepted {
			p.run.LeadsFound++
		}
		if out.Inserted {
			p.run.LeadsCreated++
		}
	}
}

func (o *Orchestrator) finish(ctx context.Context, p *pass, started time.Time) (*model.HuntRun, error) {
	finished := o.now()
	p.run.FinishedAt = finished.UTC()
	p.run.DurationSecs = finished.Sub(started).Seconds()

	// The summary is written even when the pass was canceled.
	wctx := context.WithoutCancel(ctx)

	if p.run.Status == model.RunStatusAborted {
		evt := model.AuditEvent{
			ID:        uuid.New().String(),
			Type:      model.EventHuntAborted,
			Actor:     p.run.Actor,
			Subject:   p.run.ID,
			Detail:    p.run.AbortReason,
			CreatedAt: p.run.FinishedAt,
		}
		if err := o.runs.AppendEvent(wctx, evt); err != nil {
			p.log.Warn("hunt: audit abort failed", zap.Error(err))
		}
	}

	run := p.run
	if err := o.runs.InsertRun(wctx, run); err != nil {
		return &run, eris.Wrapf(err, "hunt: record run %s", run.ID)
	}

	p.log.Info("hunt: pass finished",
		zap.String("status", string(run.Status)),
		zap.String("abort_reason", run.AbortReason),
		zap.Int("queries_issued", run.QueriesIssued),
		zap.Int("queries_failed", run.QueriesFailed),
		zap.Int("results_scanned", run.ResultsScanned),
		zap.Int("leads_found", run.LeadsFound),
		zap.Int("leads_created", run.LeadsCreated),
		zap.Float64("duration_seconds", run.DurationSecs),
	)
	return &run, nil
}

// ErrInvalidIntent marks a trigger that cannot start a pass.
var ErrInvalidIntent = errors.New("hunt: invalid intent")

// ValidateIntent checks the fields a pass needs. Defaults should be applied
// first.
func ValidateIntent(si model.SearchIntent) error {
	switch {
	case si.Phrase == "":
		return eris.Wrap(ErrInvalidIntent, "intent is required")
	case si.City == "":
		return eris.Wrap(ErrInvalidIntent, "city is required")
	case !model.ValidRecency(si.Recency):
		return eris.Wrapf(ErrInvalidIntent, "unsupported time_filter %q", si.Recency)
	}
	return nil
}
