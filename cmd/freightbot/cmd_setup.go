package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/freightbot/internal/config"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("freightbot setup wizard")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		cfg.Telegram.Token = prompt(scanner, "Telegram bot token", cfg.Telegram.Token)

		operators := prompt(scanner, "Operator chat ids or targets (comma separated)", strings.Join(cfg.Operators, ","))
		cfg.Operators = config.ParseOperators(operators)

		cfg.Store.Backend = prompt(scanner, "Primary store (sheets, sql, none)", cfg.Store.Backend)
		switch cfg.Store.Backend {
		case config.BackendSheets:
			cfg.Store.SpreadsheetID = prompt(scanner, "Spreadsheet id", cfg.Store.SpreadsheetID)
			cfg.Store.SheetName = prompt(scanner, "Worksheet name", cfg.Store.SheetName)
			cfg.Store.CredentialsFile = prompt(scanner, "Service account credentials file", cfg.Store.CredentialsFile)
		case config.BackendSQL:
			cfg.Store.DatabaseURL = prompt(scanner, "Database URL or SQLite path", cfg.Store.DatabaseURL)
		case config.BackendNone:
		default:
			return fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
		}

		cfg.Photos.S3.Bucket = prompt(scanner, "S3 bucket for photos (optional)", cfg.Photos.S3.Bucket)
		if cfg.Photos.S3.Bucket != "" {
			cfg.Photos.S3.Region = prompt(scanner, "S3 region", cfg.Photos.S3.Region)
		}

		cfg.Telegram.WebhookURL = prompt(scanner, "Webhook URL (empty for long polling)", cfg.Telegram.WebhookURL)
		if cfg.Telegram.WebhookURL != "" {
			cfg.HTTP.Enabled = true
			cfg.HTTP.Listen = prompt(scanner, "HTTP listen address", cfg.HTTP.Listen)
		}

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}
