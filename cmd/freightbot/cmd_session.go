package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionListCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect conversations in the running daemon",
}

// apiSession mirrors the JSON served by GET /api/sessions.
type apiSession struct {
	UserID    string `json:"user_id"`
	Step      string `json:"step"`
	Username  string `json:"username"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// apiBase returns the daemon's local HTTP address.
func apiBase(listen string) string {
	if strings.HasPrefix(listen, ":") {
		listen = "localhost" + listen
	}
	return "http://" + listen
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active conversations (requires http.enabled)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		client := &http.Client{Timeout: 5 * time.Second}

		resp, err := client.Get(apiBase(cfg.HTTP.Listen) + "/api/sessions")
		if err != nil {
			return fmt.Errorf("query daemon (is it running with http.enabled?): %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("query daemon: unexpected status %s", resp.Status)
		}

		var list []apiSession
		if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
			return fmt.Errorf("decode sessions: %w", err)
		}
		if len(list) == 0 {
			fmt.Println("No active sessions.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "USER\tUSERNAME\tSTEP\tCREATED\tUPDATED")
		for _, s := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.UserID, s.Username, s.Step, s.CreatedAt, s.UpdatedAt)
		}
		return w.Flush()
	},
}
