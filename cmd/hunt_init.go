package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hunterpro/hunter-cli/internal/classify"
	"github.com/hunterpro/hunter-cli/internal/events"
	"github.com/hunterpro/hunter-cli/internal/hunt"
	"github.com/hunterpro/hunter-cli/internal/lead"
	"github.com/hunterpro/hunter-cli/internal/query"
	"github.com/hunterpro/hunter-cli/internal/resilience"
	"github.com/hunterpro/hunter-cli/internal/store"
	"github.com/hunterpro/hunter-cli/pkg/serper"
)

// huntEnv holds everything a hunt pass needs. One env is shared by every
// pass in the process so the rotator and governor see all calls.
type huntEnv struct {
	Store   store.Store
	Rotator *resilience.Rotator
	Hub     *events.Hub
	Events  events.Publisher
	Hunter  *hunt.Orchestrator

	amqp *events.AMQPPublisher
}

// Close releases the broker connection and the store.
func (he *huntEnv) Close() {
	if he.amqp != nil {
		if err := he.amqp.Close(); err != nil {
			zap.L().Warn("close amqp publisher", zap.Error(err))
		}
	}
	if he.Store != nil {
		_ = he.Store.Close()
	}
}

// initHunt validates config for scope, opens the store and builds the
// orchestrator. Callers should defer env.Close().
func initHunt(ctx context.Context, scope string) (*huntEnv, error) {
	if err := cfg.Validate(scope); err != nil {
		return nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &huntEnv{Store: st, Hub: events.NewHub()}

	classifier, expander, err := loadTables()
	if err != nil {
		env.Close()
		return nil, err
	}

	pubs := events.Multi{env.Hub}
	if cfg.Events.AMQPURL != "" {
		ap, err := events.DialAMQP(events.AMQPConfig{
			URL:        cfg.Events.AMQPURL,
			Exchange:   cfg.Events.Exchange,
			RoutingKey: cfg.Events.RoutingKey,
		})
		if err != nil {
			zap.L().Warn("amqp publisher disabled", zap.Error(err))
		} else {
			env.amqp = ap
			pubs = append(pubs, ap)
		}
	}
	env.Events = pubs

	if len(cfg.Serper.Keys) == 0 {
		zap.L().Warn("no serper keys configured (SERPER_KEYS), passes will abort")
	}
	env.Rotator = resilience.NewRotator(cfg.Serper.Keys)

	env.Hunter = hunt.NewOrchestrator(hunt.Deps{
		Search:     serper.NewClient(serper.WithBaseURL(cfg.Serper.BaseURL)),
		Creds:      env.Rotator,
		Governor:   resilience.NewGovernor(cfg.Governor.Resilience()),
		Expander:   expander,
		Classifier: classifier,
		Persister:  lead.NewPersister(st, lead.WithPublisher(env.Events)),
		Runs:       st,
	}, hunt.Config{
		CallTimeout: cfg.Hunt.CallTimeout(),
		Num:         cfg.Hunt.ResultsPerQuery,
		Country:     cfg.Hunt.Country,
		Language:    cfg.Hunt.Language,
	})

	zap.L().Info("hunt engine ready",
		zap.String("store", cfg.Store.Driver),
		zap.Int("credentials", env.Rotator.Size()),
		zap.Bool("amqp", env.amqp != nil),
	)
	return env, nil
}

// loadTables reads the classifier and expansion tables, falling back to the
// embedded ones when no path is configured.
func loadTables() (*classify.Classifier, *query.Expander, error) {
	terms, err := classify.LoadTable(cfg.Classify.TermsPath)
	if err != nil {
		return nil, nil, eris.Wrap(err, "load classifier terms")
	}
	locations, err := query.LoadTable(cfg.Query.TablePath)
	if err != nil {
		return nil, nil, eris.Wrap(err, "load query table")
	}
	return classify.New(terms), query.NewExpander(locations, query.WithMaxQueries(cfg.Hunt.MaxQueries)), nil
}
