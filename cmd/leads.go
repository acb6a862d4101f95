package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hunterpro/hunter-cli/internal/model"
	"github.com/hunterpro/hunter-cli/internal/phone"
	"github.com/hunterpro/hunter-cli/internal/store"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Inspect and export stored leads",
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		filter, err := leadFilterFromFlags(cmd)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		leads, err := st.ListLeads(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "leads list")
		}
		if len(leads) == 0 {
			fmt.Fprintln(os.Stderr, "No leads found.")
			return nil
		}

		if asCSV, _ := cmd.Flags().GetBool("csv"); asCSV {
			return writeLeadsCSV(os.Stdout, leads)
		}
		formatLeadsList(os.Stdout, leads)
		return nil
	},
}

var leadsCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count leads matching the filters",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		filter, err := leadFilterFromFlags(cmd)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.CountLeads(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "leads count")
		}
		fmt.Println(n)
		return nil
	},
}

func leadFilterFromFlags(cmd *cobra.Command) (store.LeadFilter, error) {
	status, _ := cmd.Flags().GetString("status")
	quality, _ := cmd.Flags().GetString("quality")
	segment, _ := cmd.Flags().GetString("segment")
	actor, _ := cmd.Flags().GetString("user")
	since, _ := cmd.Flags().GetDuration("since")
	limit, _ := cmd.Flags().GetInt("limit")

	f := store.LeadFilter{
		Status:  model.LeadStatus(status),
		Segment: model.SegmentLevel(segment),
		Actor:   actor,
		Limit:   limit,
	}
	if quality != "" {
		q, ok := model.ParseQuality(quality)
		if !ok {
			return f, eris.Errorf("unknown quality %q (EXCELLENT, GOOD, TRASH)", quality)
		}
		f.Quality = q
	}
	if since > 0 {
		f.CreatedAfter = time.Now().Add(-since)
	}
	return f, nil
}

// formatLeadsList writes a tabular list of leads to w.
func formatLeadsList(out io.Writer, leads []model.Lead) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PHONE\tQUALITY\tSEGMENT\tSTATUS\tSOURCE\tCREATED")
	_, _ = fmt.Fprintln(w, "-----\t-------\t-------\t------\t------\t-------")
	for _, l := range leads {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			l.Phone,
			l.Quality,
			l.Segment,
			l.Status,
			truncateText(l.Source, 40),
			l.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

var leadCSVHeader = []string{"phone_number", "international", "quality", "segment", "priority", "status", "source", "link", "user_id", "created_at"}

// writeLeadsCSV exports leads for spreadsheet and dialer import.
func writeLeadsCSV(out io.Writer, leads []model.Lead) error {
	w := csv.NewWriter(out)
	if err := w.Write(leadCSVHeader); err != nil {
		return eris.Wrap(err, "write csv header")
	}
	for _, l := range leads {
		rec := []string{
			l.Phone,
			phone.International(l.Phone),
			string(l.Quality),
			string(l.Segment),
			l.Segment.Priority(),
			string(l.Status),
			l.Source,
			l.Notes,
			l.Actor,
			l.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(rec); err != nil {
			return eris.Wrap(err, "write csv row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "flush csv")
}

func init() {
	for _, c := range []*cobra.Command{leadsListCmd, leadsCountCmd} {
		c.Flags().String("status", "", "filter by lead status (NEW, CONTACTED, ...)")
		c.Flags().String("quality", "", "filter by quality (EXCELLENT, GOOD)")
		c.Flags().String("segment", "", "filter by segment (LUXURY, SOCIAL, COMMERCIAL, NORMAL)")
		c.Flags().String("user", "", "filter by actor")
		c.Flags().Duration("since", 0, "only leads created within this window (e.g. 24h)")
	}
	leadsListCmd.Flags().Int("limit", 100, "max number of leads to display")
	leadsListCmd.Flags().Bool("csv", false, "write CSV instead of a table")

	leadsCmd.AddCommand(leadsListCmd)
	leadsCmd.AddCommand(leadsCountCmd)
	rootCmd.AddCommand(leadsCmd)
}
