package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/api/option"

	"github.com/user/freightbot/internal/attachment"
	"github.com/user/freightbot/internal/config"
	"github.com/user/freightbot/internal/delivery"
	"github.com/user/freightbot/internal/schema"
	"github.com/user/freightbot/internal/store"
	"github.com/user/freightbot/internal/twilio"
	"github.com/user/freightbot/internal/types"
)

// Subdirectories of the data directory.
const (
	fallbackDirName = "fallback"
	photoDirName    = "photos"
	tmpDirName      = "tmp"
	pidFileName     = "freightbot.pid"
	journalFileName = "journal.jsonl"
)

func fallbackDir(cfg *config.Config) string { return filepath.Join(cfg.DataDir, fallbackDirName) }

func journalPath(cfg *config.Config) string { return filepath.Join(cfg.DataDir, journalFileName) }

func photoDir(cfg *config.Config) string {
	if cfg.Photos.Dir != "" {
		return cfg.Photos.Dir
	}
	return filepath.Join(cfg.DataDir, photoDirName)
}

// loadLocation resolves the configured timezone. Empty and "Local" mean the
// host zone.
func loadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// loadSchema reads the configured schema file, or the built-in schema.
func loadSchema(cfg *config.Config) (*schema.Schema, error) {
	return schema.Load(cfg.SchemaFile)
}

// openStore connects the configured primary store. It returns a nil
// appender for the "none" backend and when credentials are missing, so the
// bot runs in fallback-only mode.
func openStore(ctx context.Context, cfg *config.Config, s *schema.Schema) (types.RowAppender, io.Closer, error) {
	switch cfg.Store.Backend {
	case config.BackendNone, "":
		return nil, nil, nil
	case config.BackendSQL:
		if cfg.Store.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("store.database_url is required for the sql backend")
		}
		st, err := store.OpenSQL(ctx, cfg.Store.DatabaseURL, s)
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil
	case config.BackendSheets:
		if cfg.Store.SpreadsheetID == "" {
			return nil, nil, fmt.Errorf("store.spreadsheet_id is required for the sheets backend")
		}
		var opts []option.ClientOption
		switch {
		case cfg.Store.CredentialsJSON != "":
			opts = append(opts, option.WithCredentialsJSON([]byte(cfg.Store.CredentialsJSON)))
		case cfg.Store.CredentialsFile != "":
			opts = append(opts, option.WithCredentialsFile(cfg.Store.CredentialsFile))
		}
		st, err := store.NewSheetsStore(ctx, cfg.Store.SpreadsheetID, cfg.Store.SheetName, store.Header(s), opts...)
		if err != nil {
			return nil, nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Store.TimeoutSeconds)*time.Second)
		defer cancel()
		if err := st.Ping(pingCtx); err != nil {
			return nil, nil, err
		}
		return st, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// newUploader returns the S3 uploader when a bucket is configured.
func newUploader(ctx context.Context, cfg *config.Config) (attachment.Uploader, error) {
	s3cfg := cfg.Photos.S3
	if s3cfg.Bucket == "" {
		return nil, nil
	}
	return attachment.NewS3Uploader(ctx, attachment.S3Config{
		Bucket:        s3cfg.Bucket,
		Region:        s3cfg.Region,
		Prefix:        s3cfg.Prefix,
		PublicBaseURL: s3cfg.PublicBaseURL,
		PresignExpiry: time.Duration(s3cfg.PresignExpiryMinutes) * time.Minute,
	})
}

// newTwilio returns a Twilio client when credentials are configured.
func newTwilio(cfg *config.Config) *twilio.Client {
	if cfg.Twilio.AccountSID == "" || cfg.Twilio.AuthToken == "" {
		return nil
	}
	client, err := twilio.NewClient(
		twilio.WithAccountSID(cfg.Twilio.AccountSID),
		twilio.WithAuthToken(cfg.Twilio.AuthToken),
		twilio.WithFromNumber(cfg.Twilio.FromNumber),
		twilio.WithWhatsAppFrom(cfg.Twilio.WhatsAppFrom),
	)
	if err != nil {
		slog.Warn("twilio disabled", "error", err)
		return nil
	}
	return client
}

// telegramDeliverer is the operator-delivery side of the Telegram adapter.
type telegramDeliverer interface {
	Deliver(ctx context.Context, address string, n *types.Notification) error
}

// buildRegistry registers a handler per available operator channel.
func buildRegistry(tg telegramDeliverer, tw *twilio.Client) *delivery.Registry {
	reg := delivery.NewRegistry()
	if tg != nil {
		reg.Register("telegram:", tg.Deliver)
	}
	if tw != nil {
		reg.Register("sms:", tw.SendSMS)
		reg.Register("whatsapp:", tw.SendWhatsApp)
	}
	return reg
}

// checkOperators logs targets no registered channel can reach.
func checkOperators(reg *delivery.Registry, targets []string) []string {
	var unreachable []string
	for _, t := range targets {
		if !reg.Supports(t) {
			unreachable = append(unreachable, t)
			slog.Warn("operator target has no delivery channel", "target", t)
		}
	}
	return unreachable
}
