package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/user/freightbot/internal/config"
	"github.com/user/freightbot/internal/delivery"
	"github.com/user/freightbot/internal/types"
)

var (
	sectionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Bold(true).Underline(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	keyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Width(18)
)

var skipStoreCheck bool

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&skipStoreCheck, "offline", false, "skip connecting to the primary store")
}

type checkLevel int

const (
	levelOK checkLevel = iota
	levelWarn
	levelFail
)

type statusLine struct {
	key    string
	level  checkLevel
	detail string
}

func (l statusLine) render() string {
	var mark string
	switch l.level {
	case levelOK:
		mark = okStyle.Render("✅")
	case levelWarn:
		mark = warnStyle.Render("⚠️")
	default:
		mark = failStyle.Render("❌")
	}
	return fmt.Sprintf("%s %s %s", mark, keyStyle.Render(l.key), l.detail)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the bot's configuration and dependency status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		var store statusLine
		if skipStoreCheck {
			store = statusLine{key: "Primary store", level: levelWarn, detail: cfg.Store.Backend + " (not checked)"}
		} else {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			store = checkStore(ctx, cfg)
		}

		fmt.Println(sectionStyle.Render("freightbot status"))
		fmt.Println()
		for _, l := range statusReport(cfg, store) {
			fmt.Println(l.render())
		}
		return nil
	},
}

// checkStore opens the configured primary store and reports its state.
func checkStore(ctx context.Context, cfg *config.Config) statusLine {
	line := statusLine{key: "Primary store"}
	sch, err := loadSchema(cfg)
	if err != nil {
		line.level, line.detail = levelFail, err.Error()
		return line
	}
	st, closer, err := openStore(ctx, cfg, sch)
	if closer != nil {
		defer closer.Close()
	}
	switch {
	case err != nil:
		line.level, line.detail = levelFail, fmt.Sprintf("%s unavailable, submissions go to the fallback log: %v", cfg.Store.Backend, err)
	case st == nil:
		line.level, line.detail = levelWarn, "none, submissions go to the fallback log"
	default:
		line.level, line.detail = levelOK, st.Name()+" connected"
	}
	return line
}

// statusReport builds the status lines for cfg. store is the result of the
// primary store check.
func statusReport(cfg *config.Config, store statusLine) []statusLine {
	var lines []statusLine

	if cfg.Telegram.Token != "" {
		lines = append(lines, statusLine{key: "Bot token", level: levelOK, detail: "configured"})
	} else {
		lines = append(lines, statusLine{key: "Bot token", level: levelFail, detail: "missing (TELEGRAM_BOT_TOKEN)"})
	}

	lines = append(lines, store)

	// Channels that serve would register, without contacting Telegram.
	reg := delivery.NewRegistry()
	noop := func(context.Context, string, *types.Notification) error { return nil }
	if cfg.Telegram.Token != "" {
		reg.Register("telegram:", noop)
	}
	if cfg.Twilio.AccountSID != "" && cfg.Twilio.AuthToken != "" {
		reg.Register("sms:", noop)
		reg.Register("whatsapp:", noop)
	}
	switch {
	case len(cfg.Operators) == 0:
		lines = append(lines, statusLine{key: "Operators", level: levelWarn, detail: "none, notifications go to the fallback log"})
	default:
		var unreachable []string
		for _, t := range cfg.Operators {
			if !reg.Supports(t) {
				unreachable = append(unreachable, t)
			}
		}
		line := statusLine{key: "Operators", level: levelOK, detail: strings.Join(cfg.Operators, ", ")}
		if len(unreachable) > 0 {
			line.level = levelWarn
			line.detail += " (no channel for " + strings.Join(unreachable, ", ") + ")"
		}
		lines = append(lines, line)
	}

	if cfg.Photos.S3.Bucket != "" {
		lines = append(lines, statusLine{key: "Photo storage", level: levelOK, detail: "s3://" + cfg.Photos.S3.Bucket + "/" + cfg.Photos.S3.Prefix})
	} else {
		lines = append(lines, statusLine{key: "Photo storage", level: levelOK, detail: photoDir(cfg)})
	}

	lines = append(lines, statusLine{key: "Fallback log", level: levelOK, detail: fallbackDir(cfg)})

	if cfg.Telegram.WebhookURL != "" {
		lines = append(lines, statusLine{key: "Updates", level: levelOK, detail: "webhook " + cfg.Telegram.WebhookURL})
	} else {
		lines = append(lines, statusLine{key: "Updates", level: levelOK, detail: "long polling"})
	}

	if pid, err := readPID(); err == nil {
		lines = append(lines, statusLine{key: "Daemon", level: levelOK, detail: fmt.Sprintf("running (PID %d)", pid)})
	} else {
		lines = append(lines, statusLine{key: "Daemon", level: levelWarn, detail: err.Error()})
	}
	return lines
}
