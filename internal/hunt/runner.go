package hunt

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hunterpro/hunter-cli/internal/events"
	"github.com/hunterpro/hunter-cli/internal/model"
)

// ErrQueueFull is returned by Submit when no queue slot is free.
var ErrQueueFull = errors.New("hunt: queue full")

// Defaults for the background runner.
const (
	DefaultWorkers   = 2
	DefaultQueueSize = 32
)

// StatusStarted is the acknowledgement status returned to triggers.
const StatusStarted = "started"

// Ticket acknowledges a submitted pass.
type Ticket struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
	Intent string `json:"intent"`
	City   string `json:"city"`
}

// Hunter executes a single pass.
type Hunter interface {
	Run(ctx context.Context, runID string, intent model.SearchIntent) (*model.HuntRun, error)
}

type job struct {
	id     string
	intent model.SearchIntent
}

// Runner executes submitted passes on a fixed pool of workers.
type Runner struct {
	hunter  Hunter
	pub     events.Publisher
	workers int
	queue   chan job
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithWorkers sets the number of concurrent passes.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithQueueSize sets how many passes may wait for a worker.
func WithQueueSize(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.queue = make(chan job, n)
		}
	}
}

// WithEvents publishes hunt lifecycle events to p.
func WithEvents(p events.Publisher) RunnerOption {
	return func(r *Runner) {
		if p != nil {
			r.pub = p
		}
	}
}

// NewRunner creates a Runner around h.
func NewRunner(h Hunter, opts ...RunnerOption) *Runner {
	r := &Runner{
		hunter:  h,
		pub:     events.Nop{},
		workers: DefaultWorkers,
		queue:   make(chan job, DefaultQueueSize),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Submit validates intent and enqueues a pass. It never waits for the pass.
func (r *Runner) Submit(intent model.SearchIntent) (Ticket, error) {
	intent = intent.WithDefaults()
	if err := ValidateIntent(intent); err != nil {
		return Ticket{}, err
	}

	j := job{id: NewRunID(), intent: intent}
	select {
	case r.queue <- j:
	default:
		return Ticket{}, ErrQueueFull
	}

	zap.L().Info("hunt: pass queued",
		zap.String("run_id", j.id),
		zap.String("intent", intent.Phrase),
		zap.String("city", intent.City),
		zap.String("actor", intent.Actor),
	)
	return Ticket{RunID: j.id, Status: StatusStarted, Intent: intent.Phrase, City: intent.City}, nil
}

// Pending returns the number of queued passes not yet picked up.
func (r *Runner) Pending() int {
	return len(r.queue)
}

// Start runs the workers until ctx is done. Passes in flight observe the
// cancellation between queries and record an aborted run.
func (r *Runner) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < r.workers; i++ {
		g.Go(func() error {
			r.work(gctx)
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-r.queue:
			r.execute(ctx, j)
		}
	}
}

func (r *Runner) execute(ctx context.Context, j job) {
	log := zap.L().With(zap.String("run_id", j.id))

	r.publish(ctx, events.New(events.TypeHuntStarted, j.id, j.intent))

	run, err := r.hunter.Run(ctx, j.id, j.intent)
	if err != nil {
		log.Error("hunt: pass failed", zap.Error(err))
	}
	if run != nil {
		r.publish(ctx, events.New(events.TypeHuntCompleted, j.id, run))
	}
}

func (r *Runner) publish(ctx context.Context, evt events.Event) {
	if err := r.pub.Publish(context.WithoutCancel(ctx), evt); err != nil {
		zap.L().Warn("hunt: publish event failed", zap.String("type", evt.Type), zap.Error(err))
	}
}
