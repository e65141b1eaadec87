package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/freightbot/internal/attachment"
	"github.com/user/freightbot/internal/config"
	"github.com/user/freightbot/internal/gateway"
	"github.com/user/freightbot/internal/intake"
	"github.com/user/freightbot/internal/render"
	"github.com/user/freightbot/internal/scheduler"
	"github.com/user/freightbot/internal/state"
	"github.com/user/freightbot/internal/store"
	"github.com/user/freightbot/internal/submission"
	"github.com/user/freightbot/internal/telegram"
	"github.com/user/freightbot/internal/webhook"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the freightbot daemon",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	pidPath := filepath.Join(dataDir, pidFileName)
	pid := os.Getpid()
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return pidPath, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if cfg.Telegram.Token == "" {
		return errors.New("telegram token not configured (set TELEGRAM_BOT_TOKEN or run setup)")
	}
	for _, dir := range []string{cfg.DataDir, fallbackDir(cfg), photoDir(cfg), filepath.Join(cfg.DataDir, tmpDirName)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sch, err := loadSchema(cfg)
	if err != nil {
		return err
	}
	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		return err
	}
	renderer := render.New(sch, loc)
	sessions := state.NewSessionStore()
	fallback := state.NewFallbackLog(fallbackDir(cfg))
	journal := state.NewJournal(journalPath(cfg))

	// Primary store; startup failures degrade to fallback-only mode.
	primary, closer, err := openStore(ctx, cfg, sch)
	if err != nil {
		slog.Warn("primary store unavailable, using fallback log only", "backend", cfg.Store.Backend, "error", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	gw := gateway.New(int64(cfg.MaxConcurrent))

	adapter, err := telegram.New(cfg.Telegram.Token, gw, sch.Labels)
	if err != nil {
		return fmt.Errorf("create telegram adapter: %w", err)
	}

	registry := buildRegistry(adapter, newTwilio(cfg))
	checkOperators(registry, cfg.Operators)

	retry := gw.Retry()
	retry.MaxAttempts = cfg.Store.RetryAttempts
	retry.Retryable = store.IsRetryable
	pipelineOpts := []submission.Option{
		submission.WithTargets(cfg.Operators),
		submission.WithJournal(journal),
		submission.WithRetryPolicy(retry),
		submission.WithTimeouts(
			time.Duration(cfg.Store.TimeoutSeconds)*time.Second,
			time.Duration(cfg.Delivery.TimeoutSeconds)*time.Second,
		),
	}
	if primary != nil {
		pipelineOpts = append(pipelineOpts, submission.WithStore(primary))
	}
	pipeline := submission.New(renderer, registry, fallback, pipelineOpts...)

	resolverOpts := []attachment.Option{
		attachment.WithTimeout(time.Duration(cfg.Photos.DownloadTimeoutSeconds) * time.Second),
		attachment.WithDirs(filepath.Join(cfg.DataDir, tmpDirName), photoDir(cfg)),
	}
	uploader, err := newUploader(ctx, cfg)
	if err != nil {
		slog.Warn("s3 photo storage disabled", "error", err)
	} else if uploader != nil {
		resolverOpts = append(resolverOpts, attachment.WithUploader(uploader))
	}
	resolver := attachment.NewResolver(adapter, resolverOpts...)

	engine := intake.New(sch, sessions, renderer, resolver, pipeline, intake.WithOperators(cfg.Operators))
	gw.Queue.SetProcessor(engine.ProcessRun)

	gw.Start(ctx)
	defer gw.Stop()

	// Housekeeping
	jobs := []scheduler.Job{
		scheduler.SweepJob(cfg.Sessions.SweepSchedule, sessions, time.Duration(cfg.Sessions.IdleMinutes)*time.Minute),
	}
	if primary != nil {
		jobs = append(jobs, scheduler.StoreCheckJob(cfg.Sessions.StoreCheckSchedule, primary))
	}
	sched := scheduler.New(jobs...)
	sched.Start(ctx)
	defer sched.Stop()

	// Telegram intake
	webhookMode := cfg.Telegram.WebhookURL != ""
	if webhookMode {
		if err := adapter.SetWebhook(cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
			return err
		}
		slog.Info("telegram webhook registered", "url", cfg.Telegram.WebhookURL)
	} else {
		go adapter.Start(ctx)
		slog.Info("telegram long polling started")
	}

	// HTTP server
	if cfg.HTTP.Enabled || webhookMode {
		srvOpts := []webhook.Option{
			webhook.WithSessions(sessions),
			webhook.WithFallback(fallback),
			webhook.WithJournal(journal),
		}
		if webhookMode {
			srvOpts = append(srvOpts, webhook.WithUpdates(adapter), webhook.WithSecret(cfg.Telegram.WebhookSecret))
		}
		httpServer := &http.Server{
			Addr:              cfg.HTTP.Listen,
			Handler:           webhook.NewServer(srvOpts...),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("http server started", "listen", cfg.HTTP.Listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpServer.Shutdown(shutdownCtx)
		}()
	}

	storeName := "none"
	if primary != nil {
		storeName = primary.Name()
	}
	slog.Info("freightbot started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"fields", sch.Len(),
		"store", storeName,
		"operators", len(cfg.Operators),
		"channels", registry.Prefixes(),
		"webhook", webhookMode,
		"pid_file", pidPath,
	)

	return waitForSignal(cfg, pidPath)
}

// waitForSignal blocks until SIGINT or SIGTERM. SIGHUP re-execs the binary.
func waitForSignal(cfg *config.Config, pidPath string) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			// Clean up PID file before re-exec
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}
