package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/hunterpro/hunter-cli/internal/cost"
	"github.com/hunterpro/hunter-cli/internal/model"
	"github.com/hunterpro/hunter-cli/internal/store"
)

// Snapshot holds a point-in-time view of lead intake and pass health.
type Snapshot struct {
	// Lead totals (all time).
	LeadsTotal int            `json:"leads_total"`
	ByQuality  map[string]int `json:"by_quality"`
	BySegment  map[string]int `json:"by_segment"`
	LeadsNew   int            `json:"leads_new"`

	// Passes within the lookback window.
	RunsTotal       int     `json:"runs_total"`
	RunsComplete    int     `json:"runs_complete"`
	RunsAborted     int     `json:"runs_aborted"`
	NoCredentials   int     `json:"runs_no_credentials"`
	AbortRate       float64 `json:"abort_rate"`
	QueriesIssued   int     `json:"queries_issued"`
	QueriesFailed   int     `json:"queries_failed"`
	LeadsFound      int     `json:"leads_found"`
	LeadsCreated    int     `json:"leads_created"`
	DroughtStreak   int     `json:"drought_streak"`
	AvgDurationSecs float64 `json:"avg_duration_seconds"`
	CreditsUsed     int     `json:"credits_used"`
	CostUSD         float64 `json:"cost_usd"`

	// Keys still in the rotation pool; -1 when unknown.
	ActiveCredentials int `json:"active_credentials"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Store is the read side the collector needs.
type Store interface {
	CountLeads(ctx context.Context, filter store.LeadFilter) (int, error)
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.HuntRun, error)
}

// PoolSizer reports the live credential count.
type PoolSizer interface {
	Size() int
}

// Collector gathers snapshots from the store.
type Collector struct {
	store Store
	pool  PoolSizer
	calc  *cost.Calculator
	num   int
	now   func() time.Time
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithCost prices runs with calc, assuming num results per query.
func WithCost(calc *cost.Calculator, num int) CollectorOption {
	return func(c *Collector) {
		c.calc = calc
		c.num = num
	}
}

// NewCollector creates a collector. pool may be nil.
func NewCollector(st Store, pool PoolSizer, opts ...CollectorOption) *Collector {
	c := &Collector{store: st, pool: pool, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

const runScanLimit = 10000

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*Snapshot, error) {
	now := c.now().UTC()
	snap := &Snapshot{
		ByQuality:         map[string]int{},
		BySegment:         map[string]int{},
		ActiveCredentials: -1,
		LookbackHours:     lookbackHours,
		CollectedAt:       now,
	}
	if c.pool != nil {
		snap.ActiveCredentials = c.pool.Size()
	}

	total, err := c.store.CountLeads(ctx, store.LeadFilter{})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count leads")
	}
	snap.LeadsTotal = total

	for _, q := range []model.QualityTier{model.QualityExcellent, model.QualityGood} {
		n, err := c.store.CountLeads(ctx, store.LeadFilter{Quality: q})
		if err != nil {
			return nil, eris.Wrapf(err, "monitoring: count %s leads", q)
		}
		snap.ByQuality[string(q)] = n
	}
	for _, s := range model.Segments {
		n, err := c.store.CountLeads(ctx, store.LeadFilter{Segment: s})
		if err != nil {
			return nil, eris.Wrapf(err, "monitoring: count %s leads", s)
		}
		snap.BySegment[string(s)] = n
	}
	if snap.LeadsNew, err = c.store.CountLeads(ctx, store.LeadFilter{Status: model.LeadStatusNew}); err != nil {
		return nil, eris.Wrap(err, "monitoring: count new leads")
	}

	runs, err := c.store.ListRuns(ctx, store.RunFilter{
		StartedAfter: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit:        runScanLimit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}
	summarizeRuns(snap, runs)
	if c.calc != nil {
		for _, r := range runs {
			snap.CreditsUsed += c.calc.Credits(r, c.num)
			snap.CostUSD += c.calc.Run(r, c.num)
		}
	}

	return snap, nil
}

// summarizeRuns folds runs (newest first) into snap.
func summarizeRuns(snap *Snapshot, runs []model.HuntRun) {
	snap.RunsTotal = len(runs)
	var duration float64
	streakOpen := true
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusAborted:
			snap.RunsAborted++
			if r.AbortReason == model.AbortNoCredentials {
				snap.NoCredentials++
			}
		}
		snap.QueriesIssued += r.QueriesIssued
		snap.QueriesFailed += r.QueriesFailed
		snap.LeadsFound += r.LeadsFound
		snap.LeadsCreated += r.LeadsCreated
		duration += r.DurationSecs

		if streakOpen && r.Status == model.RunStatusComplete {
			if r.LeadsCreated == 0 {
				snap.DroughtStreak++
			} else {
				streakOpen = false
			}
		}
	}
	if snap.RunsTotal > 0 {
		snap.AbortRate = float64(snap.RunsAborted) / float64(snap.RunsTotal)
		snap.AvgDurationSecs = duration / float64(snap.RunsTotal)
	}
}
