package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fetcharr/fetcharr/internal/history"
)

var historyCmd = &cobra.Command{
	Use:          "history",
	Short:        "Show past download outcomes",
	SilenceUsage: true,
	RunE:         runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum rows to show (0 = all)")
	historyCmd.Flags().String("state", "", "filter by state (completed, failed, cancelled)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return fmt.Errorf("history is disabled in the configuration")
	}

	store, err := history.Open(cfg.History.Path, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	limit, _ := cmd.Flags().GetInt("limit")
	state, _ := cmd.Flags().GetString("state")

	var recs []history.Record
	if state != "" {
		recs, err = store.ByState(ctx, history.State(state))
	} else {
		recs, err = store.Recent(ctx, limit)
	}
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("No history yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tSTATE\tURL\tMESSAGE")
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			r.CreatedAt.Format("2006-01-02 15:04"), r.State, r.URL, r.Message)
	}
	return w.Flush()
}
