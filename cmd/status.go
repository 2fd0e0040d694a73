package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/harvest-cli/internal/model"
	"github.com/sells-group/harvest-cli/internal/monitoring"
)

var (
	statusID         string
	statusCategories bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show harvest progress",
	Long:  "Displays queue and record counts for a harvest. Defaults to the most recent harvest for the configured site.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		col := monitoring.NewCollector(st)

		var snap *model.Snapshot
		if statusID != "" {
			snap, err = col.Collect(ctx, statusID)
		} else {
			snap, err = col.CollectLatest(ctx, cfg.Site.RootURL)
		}
		if eris.Is(err, monitoring.ErrNoHarvests) {
			zap.L().Info("no harvests recorded, run 'harvest run' to start one")
			return nil
		}
		if err != nil {
			return eris.Wrap(err, "status")
		}

		formatSnapshot(os.Stdout, snap, statusCategories)
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusID, "id", "", "harvest to inspect (default latest for the configured site)")
	statusCmd.Flags().BoolVar(&statusCategories, "categories", false, "include the per-category record breakdown")
	rootCmd.AddCommand(statusCmd)
}

// formatSnapshot writes a tabular progress report to w.
func formatSnapshot(out io.Writer, snap *model.Snapshot, withCategories bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Harvest:\t%s\n", truncateID(snap.HarvestID))
	_, _ = fmt.Fprintf(w, "Site:\t%s\n", snap.RootURL)
	_, _ = fmt.Fprintf(w, "Status:\t%s\n", snap.Status)
	_, _ = fmt.Fprintf(w, "Discovered:\t%d\n", snap.Discovered)
	_, _ = fmt.Fprintf(w, "  Pending:\t%d\n", snap.Pending)
	_, _ = fmt.Fprintf(w, "  In progress:\t%d\n", snap.InProgress)
	_, _ = fmt.Fprintf(w, "  Done:\t%d\n", snap.Done)
	_, _ = fmt.Fprintf(w, "  Failed:\t%d\n", snap.Failed)
	_, _ = fmt.Fprintf(w, "Progress:\t%.1f%%\n", monitoring.PercentDone(snap))
	_, _ = fmt.Fprintf(w, "Records:\t%d\n", snap.Records)
	_, _ = fmt.Fprintf(w, "  With phone:\t%d\n", snap.WithPhone)
	_, _ = fmt.Fprintf(w, "  With email:\t%d\n", snap.WithEmail)
	_, _ = fmt.Fprintf(w, "  With website:\t%d\n", snap.WithWebsite)
	_, _ = fmt.Fprintf(w, "  With address:\t%d\n", snap.WithAddress)
	_, _ = fmt.Fprintf(w, "  Incomplete:\t%d\n", snap.Incomplete)

	if withCategories && len(snap.Categories) > 0 {
		_, _ = fmt.Fprintln(w, "Categories:")
		names := make([]string, 0, len(snap.Categories))
		for name := range snap.Categories {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			_, _ = fmt.Fprintf(w, "  %s:\t%d\n", name, snap.Categories[name])
		}
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
