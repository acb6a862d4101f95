package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hunterpro/hunter-cli/internal/config"
	"github.com/hunterpro/hunter-cli/internal/cost"
	"github.com/hunterpro/hunter-cli/internal/hunt"
	"github.com/hunterpro/hunter-cli/internal/monitoring"
	"github.com/hunterpro/hunter-cli/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API, background hunt workers and scheduled hunts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		env, err := initHunt(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		runner := hunt.NewRunner(env.Hunter,
			hunt.WithWorkers(cfg.Runner.Workers),
			hunt.WithQueueSize(cfg.Runner.QueueSize),
			hunt.WithEvents(env.Events),
		)

		sched, err := hunt.NewScheduler(runner, scheduledHunts(cfg.Schedule.Hunts))
		if err != nil {
			return err
		}

		collector := monitoring.NewCollector(env.Store, env.Rotator,
			monitoring.WithCost(costCalculator(cfg.Pricing), cfg.Hunt.ResultsPerQuery),
		)
		srv := server.New(cfg.Server, server.Deps{
			Store: env.Store,
			Hunts: runner,
			Hub:   env.Hub,
			Stats: collector,
		})

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return runner.Start(gctx) })
		g.Go(func() error { return sched.Start(gctx) })
		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
			g.Go(func() error {
				checker.Run(gctx)
				return nil
			})
		}
		g.Go(func() error {
			return eris.Wrap(srv.Start(), "server listen")
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout(cfg.Server))
			defer cancel()
			return eris.Wrap(srv.Stop(shutdownCtx), "server shutdown")
		})

		err = g.Wait()
		zap.L().Info("serve stopped", zap.Int("pending_hunts", runner.Pending()))
		return err
	},
}

// scheduledHunts converts config entries to scheduler entries.
func scheduledHunts(in []config.ScheduledHunt) []hunt.ScheduledHunt {
	out := make([]hunt.ScheduledHunt, 0, len(in))
	for _, h := range in {
		out = append(out, hunt.ScheduledHunt{Cron: h.Cron, Intent: h.SearchIntent()})
	}
	return out
}

// costCalculator prices search credits from the pricing config.
func costCalculator(pc config.PricingConfig) *cost.Calculator {
	return cost.NewCalculator(cost.Rates{Serper: cost.SerperRate{
		PerCredit:        pc.Serper.PerCredit,
		ResultsPerCredit: pc.Serper.ResultsPerCredit,
	}})
}

func shutdownTimeout(sc config.ServerConfig) time.Duration {
	if sc.ShutdownSecs <= 0 {
		return 10 * time.Second
	}
	return time.Duration(sc.ShutdownSecs) * time.Second
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
