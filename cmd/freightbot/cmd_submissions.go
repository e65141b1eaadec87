package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/freightbot/internal/state"
)

var submissionsLimit int

func init() {
	rootCmd.AddCommand(submissionsCmd)
	submissionsCmd.Flags().IntVarP(&submissionsLimit, "limit", "n", 20, "number of recent submissions to show")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

var submissionsCmd = &cobra.Command{
	Use:   "submissions",
	Short: "Show how recent submissions were stored and delivered",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		entries, err := state.NewJournal(journalPath(cfg)).Tail(cmd.Context(), submissionsLimit)
		if err != nil {
			return fmt.Errorf("read journal: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("No submissions recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SEQ\tAT\tKIND\tUSER\tSTORED\tFALLBACK\tDELIVERED")
		for _, e := range entries {
			fallback := e.FallbackFile
			if fallback == "" {
				fallback = "-"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d/%d\n",
				e.Seq,
				e.At.Format("2006-01-02 15:04:05"),
				e.Kind,
				e.UserID,
				yesNo(e.Persisted),
				fallback,
				e.Successes, e.Attempts,
			)
		}
		return w.Flush()
	},
}
