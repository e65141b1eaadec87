package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/freightbot/internal/state"
)

func init() {
	rootCmd.AddCommand(fallbackCmd)
	fallbackCmd.AddCommand(fallbackListCmd, fallbackShowCmd)
}

var fallbackCmd = &cobra.Command{
	Use:   "fallback",
	Short: "Inspect submissions and notifications written to the fallback log",
}

var fallbackListCmd = &cobra.Command{
	Use:   "list",
	Short: "List fallback log files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		files, err := state.NewFallbackLog(fallbackDir(cfg)).Files()
		if err != nil {
			return fmt.Errorf("list fallback files: %w", err)
		}
		if len(files) == 0 {
			fmt.Println("No fallback files found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSIZE\tMODIFIED")
		for _, f := range files {
			fmt.Fprintf(w, "%s\t%d\t%s\n", f.Name, f.Size, f.ModTime.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

var fallbackShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a fallback log file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		content, err := state.NewFallbackLog(fallbackDir(cfg)).Read(args[0])
		if errors.Is(err, state.ErrNotFound) {
			return fmt.Errorf("fallback file not found: %s", args[0])
		}
		if err != nil {
			return err
		}
		fmt.Fprint(os.Stdout, content)
		return nil
	},
}
