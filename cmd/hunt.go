package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hunterpro/hunter-cli/internal/hunt"
	"github.com/hunterpro/hunter-cli/internal/model"
)

var huntCmd = &cobra.Command{
	Use:   "hunt",
	Short: "Run one discovery pass in the foreground",
	Long:  "Expands the intent over the city's areas, queries the search provider and stores qualifying leads. Prints the run summary when done.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		intent := intentFromFlags(cmd)
		if err := hunt.ValidateIntent(intent.WithDefaults()); err != nil {
			return err
		}

		env, err := initHunt(ctx, "hunt")
		if err != nil {
			return err
		}
		defer env.Close()

		run, err := env.Hunter.Run(ctx, hunt.NewRunID(), intent)
		if err != nil {
			return eris.Wrap(err, "hunt")
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(run)
		}
		formatRun(os.Stdout, run)
		return nil
	},
}

func intentFromFlags(cmd *cobra.Command) model.SearchIntent {
	phrase, _ := cmd.Flags().GetString("intent")
	city, _ := cmd.Flags().GetString("city")
	recency, _ := cmd.Flags().GetString("time-filter")
	actor, _ := cmd.Flags().GetString("user")
	mode, _ := cmd.Flags().GetString("mode")
	return model.SearchIntent{Phrase: phrase, City: city, Recency: recency, Actor: actor, Mode: mode}
}

// formatRun writes a single run summary to w.
func formatRun(out io.Writer, r *model.HuntRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", r.ID)
	_, _ = fmt.Fprintf(w, "Intent:\t%s (%s)\n", r.Intent, r.City)
	_, _ = fmt.Fprintf(w, "Status:\t%s\n", r.Status)
	if r.AbortReason != "" {
		_, _ = fmt.Fprintf(w, "Abort reason:\t%s\n", r.AbortReason)
	}
	_, _ = fmt.Fprintf(w, "Queries:\t%d issued, %d failed\n", r.QueriesIssued, r.QueriesFailed)
	_, _ = fmt.Fprintf(w, "Results:\t%d scanned, %d rejected\n", r.ResultsScanned, r.ResultsRejected)
	_, _ = fmt.Fprintf(w, "Leads:\t%d found, %d new\n", r.LeadsFound, r.LeadsCreated)
	_, _ = fmt.Fprintf(w, "Duration:\t%.1fs\n", r.DurationSecs)
	_ = w.Flush()
}

func init() {
	huntCmd.Flags().String("intent", "", "buyer intent phrase (required)")
	huntCmd.Flags().String("city", "", "target city (required)")
	huntCmd.Flags().String("time-filter", model.DefaultRecency, "provider time filter (qdr:h, qdr:d, qdr:w, qdr:m, qdr:y)")
	huntCmd.Flags().String("user", model.DefaultActor, "actor recorded on leads and the run")
	huntCmd.Flags().String("mode", model.DefaultMode, "free-form pass label")
	huntCmd.Flags().Bool("json", false, "print the run summary as JSON")
	_ = huntCmd.MarkFlagRequired("intent")
	_ = huntCmd.MarkFlagRequired("city")
	rootCmd.AddCommand(huntCmd)
}
