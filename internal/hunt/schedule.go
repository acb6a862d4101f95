package hunt

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hunterpro/hunter-cli/internal/model"
)

// ScheduledHunt triggers intent on a cron expression.
type ScheduledHunt struct {
	Cron   string
	Intent model.SearchIntent
}

// Submitter accepts passes for background execution.
type Submitter interface {
	Submit(intent model.SearchIntent) (Ticket, error)
}

// Scheduler submits recurring passes.
type Scheduler struct {
	cron    *cron.Cron
	entries int
}

// NewScheduler registers every entry with the cron scheduler. An invalid
// expression or intent fails the whole set.
func NewScheduler(sub Submitter, hunts []ScheduledHunt) (*Scheduler, error) {
	c := cron.New()
	for i, h := range hunts {
		intent := h.Intent.WithDefaults()
		if err := ValidateIntent(intent); err != nil {
			return nil, eris.Wrapf(err, "hunt: schedule entry %d", i)
		}
		_, err := c.AddFunc(h.Cron, func() {
			t, err := sub.Submit(intent)
			if err != nil {
				zap.L().Warn("hunt: scheduled submit failed",
					zap.String("cron", h.Cron),
					zap.String("intent", intent.Phrase),
					zap.Error(err),
				)
				return
			}
			zap.L().Info("hunt: scheduled pass submitted", zap.String("run_id", t.RunID), zap.String("cron", h.Cron))
		})
		if err != nil {
			return nil, eris.Wrapf(err, "hunt: invalid cron expression %q", h.Cron)
		}
	}
	return &Scheduler{cron: c, entries: len(hunts)}, nil
}

// Entries returns the number of registered schedules.
func (s *Scheduler) Entries() int {
	return s.entries
}

// Start runs the scheduler until ctx is done, then waits for running jobs.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.entries == 0 {
		zap.L().Info("hunt: no scheduled hunts configured")
		<-ctx.Done()
		return nil
	}
	s.cron.Start()
	zap.L().Info("hunt: scheduler started", zap.Int("entries", s.entries))
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}
