package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/user/freightbot/internal/schema"
)

func TestDetectDriver(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"postgres://u:p@localhost/db", "postgres"},
		{"postgresql://localhost/db", "postgres"},
		{"host=localhost user=bot dbname=freight", "postgres"},
		{"/var/lib/freightbot/intake.db", "sqlite3"},
		{"sqlite://intake.db", "sqlite3"},
		{"file::memory:?cache=shared", "sqlite3"},
	}
	for _, tt := range tests {
		if got := DetectDriver(tt.dsn); got != tt.want {
			t.Errorf("DetectDriver(%q) = %q, want %q", tt.dsn, got, tt.want)
		}
	}
}

func TestSQLStore_AppendRow(t *testing.T) {
	ctx := context.Background()
	s := schema.Default()
	dsn := filepath.Join(t.TempDir(), "nested", "intake.db")

	st, err := OpenSQL(ctx, dsn, s)
	if err != nil {
		t.Fatalf("OpenSQL: %v", err)
	}
	defer st.Close()

	if st.Name() != "sqlite3" {
		t.Errorf("Name = %q, want sqlite3", st.Name())
	}
	if err := st.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	row := []string{"Request", "2026-01-02 03:04:05", "42", "@alice", "Alice", "+100"}
	if err := st.AppendRow(ctx, row); err != nil {
		t.Fatalf("AppendRow: %v", err)
	}
	if err := st.AppendRow(ctx, row[:4]); err != nil {
		t.Fatalf("AppendRow short row: %v", err)
	}

	n, err := st.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}

	var name, phone, cargo string
	err = st.db.QueryRowContext(ctx,
		"SELECT name, phone, cargo FROM intake_rows WHERE user_id = ? ORDER BY id LIMIT 1", "42").
		Scan(&name, &phone, &cargo)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if name != "Alice" || phone != "+100" || cargo != "" {
		t.Errorf("got name=%q phone=%q cargo=%q", name, phone, cargo)
	}
}

func TestSQLStore_TooManyCells(t *testing.T) {
	ctx := context.Background()
	st, err := OpenSQL(ctx, filepath.Join(t.TempDir(), "intake.db"), schema.Default())
	if err != nil {
		t.Fatalf("OpenSQL: %v", err)
	}
	defer st.Close()

	cells := make([]string, len(st.columns)+1)
	if err := st.AppendRow(ctx, cells); err == nil {
		t.Fatal("expected error for oversized row")
	}
}

func TestSQLStore_ReopenKeepsRows(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "intake.db")

	st, err := OpenSQL(ctx, dsn, schema.Default())
	if err != nil {
		t.Fatalf("OpenSQL: %v", err)
	}
	if err := st.AppendRow(ctx, []string{"Help request", "now", "1", "unspecified"}); err != nil {
		t.Fatalf("AppendRow: %v", err)
	}
	st.Close()

	st, err = OpenSQL(ctx, dsn, schema.Default())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	if n, _ := st.Count(ctx); n != 1 {
		t.Errorf("Count after reopen = %d, want 1", n)
	}
}

func TestOpenSQL_Errors(t *testing.T) {
	ctx := context.Background()
	if _, err := OpenSQL(ctx, "", schema.Default()); err == nil {
		t.Error("expected error for empty DSN")
	}

	clash, err := schema.New(schema.Schema{
		NameField: "username",
		HelpField: "username",
		Fields:    []schema.Field{{Key: "username", Label: "User", Prompt: "Who?", Kind: schema.KindFreeText}},
	})
	if err != nil {
		t.Fatalf("schema.New: %v", err)
	}
	_, err = OpenSQL(ctx, filepath.Join(t.TempDir(), "x.db"), clash)
	if err == nil || !strings.Contains(err.Error(), "clashes") {
		t.Errorf("expected clash error, got %v", err)
	}
}

func TestCreateTableQuery_Postgres(t *testing.T) {
	st := newSQLStore(nil, "postgres", schema.Default())
	q := st.createTableQuery()
	if !strings.Contains(q, "BIGSERIAL") {
		t.Errorf("postgres table should use BIGSERIAL: %s", q)
	}
	if !strings.Contains(st.insertQ, "$15") {
		t.Errorf("postgres insert should use numbered placeholders: %s", st.insertQ)
	}
}

func TestHeader(t *testing.T) {
	h := Header(schema.Default())
	if h[0] != "Kind" || h[3] != "Username" || h[4] != "👤 Name" {
		t.Errorf("unexpected header: %v", h)
	}
	if len(h) != 4+schema.Default().Len() {
		t.Errorf("header length = %d", len(h))
	}
}
