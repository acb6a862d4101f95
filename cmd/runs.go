package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hunterpro/hunter-cli/internal/cost"
	"github.com/hunterpro/hunter-cli/internal/model"
	"github.com/hunterpro/hunter-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect hunt run history",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List hunt runs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		actor, _ := cmd.Flags().GetString("user")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Actor:  actor,
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate run statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		since, _ := cmd.Flags().GetDuration("since")
		filter := store.RunFilter{Limit: 10000}
		if since > 0 {
			filter.StartedAfter = time.Now().Add(-since)
		}

		runs, err := st.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatRunStats(os.Stdout, computeRunStats(runs, costCalculator(cfg.Pricing), cfg.Hunt.ResultsPerQuery))
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (complete, aborted)")
	runsListCmd.Flags().String("user", "", "filter by actor")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsStatsCmd.Flags().Duration("since", 24*time.Hour, "time window for stats (e.g. 24h, 72h, 168h)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}

// runStats holds aggregate statistics computed from a set of runs.
type runStats struct {
	Total         int
	Complete      int
	Aborted       int
	NoCredentials int
	Canceled      int
	Queries       int
	FailedQueries int
	LeadsFound    int
	LeadsCreated  int
	AvgDurSecs    float64
	Credits       int
	CostUSD       float64
}

// computeRunStats computes aggregate statistics from a list of runs. Search
// spend is priced with calc when it is non-nil.
func computeRunStats(runs []model.HuntRun, calc *cost.Calculator, num int) runStats {
	var s runStats
	s.Total = len(runs)

	var totalDur float64
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			s.Complete++
		case model.RunStatusAborted:
			s.Aborted++
			switch r.AbortReason {
			case model.AbortNoCredentials:
				s.NoCredentials++
			case model.AbortCanceled:
				s.Canceled++
			}
		}
		s.Queries += r.QueriesIssued
		s.FailedQueries += r.QueriesFailed
		s.LeadsFound += r.LeadsFound
		s.LeadsCreated += r.LeadsCreated
		totalDur += r.DurationSecs
		if calc != nil {
			s.Credits += calc.Credits(r, num)
			s.CostUSD += calc.Run(r, num)
		}
	}

	if s.Total > 0 {
		s.AvgDurSecs = totalDur / float64(s.Total)
	}
	return s
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.HuntRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tINTENT\tCITY\tSTATUS\tQUERIES\tLEADS\tNEW\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t------\t----\t------\t-------\t-----\t---\t-------\t--------")

	for _, r := range runs {
		status := string(r.Status)
		if r.AbortReason != "" {
			status += " (" + r.AbortReason + ")"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\t%.1fs\n",
			truncateID(r.ID),
			truncateText(r.Intent, 30),
			r.City,
			status,
			r.QueriesIssued,
			r.LeadsFound,
			r.LeadsCreated,
			r.StartedAt.Format("2006-01-02 15:04"),
			r.DurationSecs,
		)
	}
	_ = w.Flush()
}

// formatRunStats writes aggregate stats to w.
func formatRunStats(out io.Writer, s runStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Complete:\t%d\n", s.Complete)
	_, _ = fmt.Fprintf(w, "Aborted:\t%d\n", s.Aborted)
	_, _ = fmt.Fprintf(w, "  No credentials:\t%d\n", s.NoCredentials)
	_, _ = fmt.Fprintf(w, "  Canceled:\t%d\n", s.Canceled)
	_, _ = fmt.Fprintf(w, "Queries:\t%d (%d failed)\n", s.Queries, s.FailedQueries)
	_, _ = fmt.Fprintf(w, "Leads found:\t%d\n", s.LeadsFound)
	_, _ = fmt.Fprintf(w, "Leads created:\t%d\n", s.LeadsCreated)
	if s.AvgDurSecs > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", s.AvgDurSecs)
	}
	if s.Credits > 0 {
		_, _ = fmt.Fprintf(w, "Search credits:\t%d ($%.3f)\n", s.Credits, s.CostUSD)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncateText shortens s to n runes.
func truncateText(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
