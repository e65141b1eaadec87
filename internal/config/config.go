// Package config loads the bot's JSON configuration, with .env and
// environment overrides applied on top.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DataDir       string `json:"data_dir"`
	LogLevel      string `json:"log_level"`
	MaxConcurrent int    `json:"max_concurrent"`
	Timezone      string `json:"timezone"`
	SchemaFile    string `json:"schema_file"`
	Telegram      struct {
		Token         string `json:"token"`
		WebhookURL    string `json:"webhook_url"`
		WebhookSecret string `json:"webhook_secret"`
	} `json:"telegram"`
	HTTP struct {
		Enabled bool   `json:"enabled"`
		Listen  string `json:"listen"`
	} `json:"http"`
	Operators []string `json:"operators"`
	Store     struct {
		Backend         string `json:"backend"`
		SpreadsheetID   string `json:"spreadsheet_id"`
		SheetName       string `json:"sheet_name"`
		CredentialsFile string `json:"credentials_file"`
		CredentialsJSON string `json:"credentials_json"`
		DatabaseURL     string `json:"database_url"`
		RetryAttempts   int    `json:"retry_attempts"`
		TimeoutSeconds  int    `json:"timeout_seconds"`
	} `json:"store"`
	Delivery struct {
		TimeoutSeconds int `json:"timeout_seconds"`
	} `json:"delivery"`
	Photos struct {
		Dir                    string `json:"dir"`
		DownloadTimeoutSeconds int    `json:"download_timeout_seconds"`
		S3                     struct {
			Bucket               string `json:"bucket"`
			Region               string `json:"region"`
			Prefix               string `json:"prefix"`
			PublicBaseURL        string `json:"public_base_url"`
			PresignExpiryMinutes int    `json:"presign_expiry_minutes"`
		} `json:"s3"`
	} `json:"photos"`
	Twilio struct {
		AccountSID   string `json:"account_sid"`
		AuthToken    string `json:"auth_token"`
		FromNumber   string `json:"from_number"`
		WhatsAppFrom string `json:"whatsapp_from"`
	} `json:"twilio"`
	Sessions struct {
		IdleMinutes        int    `json:"idle_minutes"`
		SweepSchedule      string `json:"sweep_schedule"`
		StoreCheckSchedule string `json:"store_check_schedule"`
	} `json:"sessions"`
}

// Store backends.
const (
	BackendSheets = "sheets"
	BackendSQL    = "sql"
	BackendNone   = "none"
)

// Defaults returns a Config populated with default values.
func Defaults() *Config {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".freightbot"),
		LogLevel:      "info",
		MaxConcurrent: 4,
		Timezone:      "Local",
	}
	cfg.HTTP.Listen = ":8080"
	cfg.Store.Backend = BackendSheets
	cfg.Store.SheetName = "Sheet1"
	cfg.Store.RetryAttempts = 1
	cfg.Store.TimeoutSeconds = 15
	cfg.Delivery.TimeoutSeconds = 15
	cfg.Photos.DownloadTimeoutSeconds = 30
	cfg.Photos.S3.PresignExpiryMinutes = 7 * 24 * 60
	cfg.Sessions.IdleMinutes = 1440
	cfg.Sessions.SweepSchedule = "@every 10m"
	cfg.Sessions.StoreCheckSchedule = "@every 5m"
	return cfg
}

// Load reads the config at path, writing defaults if the file does not
// exist, then applies .env and environment overrides.
func Load(path string) (*Config, error) {
	loadDotEnv(path)

	cfg := Defaults()

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	clampLimits(cfg)
	return cfg, nil
}

// clampLimits resets non-positive timeouts and limits to their defaults.
// A zero timeout would fail every store write and download immediately.
func clampLimits(cfg *Config) {
	def := Defaults()
	for _, p := range []struct{ v, d *int }{
		{&cfg.MaxConcurrent, &def.MaxConcurrent},
		{&cfg.Store.TimeoutSeconds, &def.Store.TimeoutSeconds},
		{&cfg.Store.RetryAttempts, &def.Store.RetryAttempts},
		{&cfg.Delivery.TimeoutSeconds, &def.Delivery.TimeoutSeconds},
		{&cfg.Photos.DownloadTimeoutSeconds, &def.Photos.DownloadTimeoutSeconds},
		{&cfg.Photos.S3.PresignExpiryMinutes, &def.Photos.S3.PresignExpiryMinutes},
		{&cfg.Sessions.IdleMinutes, &def.Sessions.IdleMinutes},
	} {
		if *p.v <= 0 {
			*p.v = *p.d
		}
	}
}

// loadDotEnv loads .env from the working directory and from the config
// directory. Variables already set in the environment win.
func loadDotEnv(path string) {
	for _, f := range []string{".env", filepath.Join(filepath.Dir(path), ".env")} {
		if err := godotenv.Load(f); err == nil {
			slog.Debug("loaded .env file", "path", f)
		}
	}
}

// applyEnv overrides cfg from the environment (highest precedence).
func applyEnv(cfg *Config) {
	if v := firstEnv("TELEGRAM_BOT_TOKEN", "BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		cfg.Telegram.WebhookURL = v
		cfg.HTTP.Enabled = true
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.HTTP.Listen = ":" + v
	}
	if v := os.Getenv("MANAGER_CHAT_IDS"); v != "" {
		cfg.Operators = ParseOperators(v)
	}
	if v := os.Getenv("SPREADSHEET_ID"); v != "" {
		cfg.Store.SpreadsheetID = v
	}
	if v := os.Getenv("GOOGLE_CREDENTIALS_JSON"); v != "" {
		cfg.Store.CredentialsJSON = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Store.DatabaseURL = v
		cfg.Store.Backend = BackendSQL
	}
	if v := os.Getenv("TWILIO_ACCOUNT_SID"); v != "" {
		cfg.Twilio.AccountSID = v
	}
	if v := os.Getenv("TWILIO_AUTH_TOKEN"); v != "" {
		cfg.Twilio.AuthToken = v
	}
	if v := os.Getenv("TWILIO_FROM_NUMBER"); v != "" {
		cfg.Twilio.FromNumber = v
	}
	if v := os.Getenv("FREIGHTBOT_S3_BUCKET"); v != "" {
		cfg.Photos.S3.Bucket = v
	}
	if v := os.Getenv("FREIGHTBOT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// ParseOperators turns a comma-separated list into delivery targets. Bare
// numeric ids become telegram targets; entries with a prefix are kept.
func ParseOperators(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, err := strconv.ParseInt(part, 10, 64); err == nil {
			part = "telegram:" + part
		}
		out = append(out, part)
	}
	return out
}

// Save writes cfg to path atomically, creating the directory if needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeAtomic(path, append(data, '\n'))
}

func writeAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts cfg to a generic nested map using its JSON field names.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListValues returns the flattened config, optionally with secrets masked.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// GetValue reads one dot-separated key from the config file at path.
func GetValue(path, key string) (any, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	flat, err := ListValues(cfg, false)
	if err != nil {
		return nil, err
	}
	// Keys unknown to Config live only in the raw file.
	if raw, err := readRaw(path); err == nil {
		for k, v := range Flatten(raw) {
			if _, ok := flat[k]; !ok {
				flat[k] = v
			}
		}
	}
	v, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue sets one dot-separated key in the config file at path. The value
// is parsed as JSON when possible (numbers, booleans, lists) and stored as
// a string otherwise. The file must already exist.
func SetValue(path, key, value string) error {
	raw, err := readRaw(path)
	if err != nil {
		return err
	}

	var parsed any
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		parsed = value
	}

	flat := Flatten(raw)
	flat[key] = parsed
	data, err := json.MarshalIndent(Unflatten(flat), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// Reject values that no longer fit the typed config.
	if err := json.Unmarshal(data, Defaults()); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return writeAtomic(path, append(data, '\n'))
}

func readRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return raw, nil
}
