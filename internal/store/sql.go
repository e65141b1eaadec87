package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/user/freightbot/internal/schema"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0o755

// SQLStore appends rows to an intake_rows table in SQLite or PostgreSQL.
// The table has the metadata columns followed by one column per field key.
type SQLStore struct {
	db      *sql.DB
	driver  string
	columns []string
	insertQ string
}

// DetectDriver returns the database/sql driver name for dsn.
func DetectDriver(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite3"
}

// OpenSQL opens dsn, pings it, and creates the table if needed.
func OpenSQL(ctx context.Context, dsn string, s *schema.Schema) (*SQLStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN not set")
	}
	for _, k := range s.Keys() {
		for _, c := range metaColumns {
			if k == c {
				return nil, fmt.Errorf("field key %q clashes with a metadata column", k)
			}
		}
	}
	driver := DetectDriver(dsn)
	if driver == "sqlite3" {
		dsn = strings.TrimPrefix(dsn, "sqlite://")
		if dir := filepath.Dir(dsn); dir != "." && !strings.HasPrefix(dsn, ":memory:") && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}

	st := newSQLStore(db, driver, s)
	if err := st.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	slog.Debug("sql store ready", "driver", driver, "columns", len(st.columns))
	return st, nil
}

func newSQLStore(db *sql.DB, driver string, s *schema.Schema) *SQLStore {
	columns := append(append([]string(nil), metaColumns...), s.Keys()...)
	placeholders := make([]string, len(columns))
	for i := range columns {
		if driver == "postgres" {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
		} else {
			placeholders[i] = "?"
		}
	}
	return &SQLStore{
		db:      db,
		driver:  driver,
		columns: columns,
		insertQ: fmt.Sprintf("INSERT INTO intake_rows (%s) VALUES (%s)",
			strings.Join(columns, ", "), strings.Join(placeholders, ", ")),
	}
}

func (s *SQLStore) createTableQuery() string {
	id := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.driver == "postgres" {
		id = "id BIGSERIAL PRIMARY KEY"
	}
	defs := []string{id}
	for _, c := range s.columns {
		defs = append(defs, c+" TEXT NOT NULL DEFAULT ''")
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS intake_rows (\n\t%s\n)", strings.Join(defs, ",\n\t"))
}

func (s *SQLStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.createTableQuery()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *SQLStore) Name() string { return s.driver }

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AppendRow inserts one row. Cells must follow the column order; missing
// trailing cells are stored as empty strings.
func (s *SQLStore) AppendRow(ctx context.Context, cells []string) error {
	if len(cells) > len(s.columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(cells), len(s.columns))
	}
	args := make([]any, len(s.columns))
	for i := range args {
		if i < len(cells) {
			args[i] = cells[i]
		} else {
			args[i] = ""
		}
	}
	if _, err := s.db.ExecContext(ctx, s.insertQ, args...); err != nil {
		return fmt.Errorf("insert intake row: %w", err)
	}
	return nil
}

// Count returns the number of stored rows.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM intake_rows").Scan(&n); err != nil {
		return 0, fmt.Errorf("count intake rows: %w", err)
	}
	return n, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
