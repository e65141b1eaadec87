// internal/state/journal_test.go
package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/freightbot/internal/types"
)

func TestJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.jsonl")
	j := NewJournal(path)
	ctx := context.Background()

	entries, err := j.Tail(ctx, 10)
	if err != nil || entries != nil {
		t.Fatalf("empty journal: %v, %v", entries, err)
	}

	for i := 0; i < 3; i++ {
		e := &JournalEntry{
			SubmissionID: types.NewSubmissionID(),
			Kind:         types.KindRequest,
			UserID:       "42",
			At:           time.Now(),
			Persisted:    i != 1,
			Attempts:     2,
			Successes:    1,
		}
		if err := j.Append(ctx, e); err != nil {
			t.Fatal(err)
		}
		if e.Seq != int64(i+1) {
			t.Errorf("expected seq %d, got %d", i+1, e.Seq)
		}
	}

	entries, err = j.Tail(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Seq != 2 || entries[1].Seq != 3 {
		t.Errorf("unexpected tail order: %d, %d", entries[0].Seq, entries[1].Seq)
	}
	if entries[0].Persisted {
		t.Error("entry 2 should not be persisted")
	}

	count, err := j.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("expected count 3, got %d", count)
	}
}

func TestJournalSeqSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	ctx := context.Background()

	if err := NewJournal(path).Append(ctx, &JournalEntry{Kind: types.KindHelp}); err != nil {
		t.Fatal(err)
	}

	e := &JournalEntry{Kind: types.KindRequest}
	if err := NewJournal(path).Append(ctx, e); err != nil {
		t.Fatal(err)
	}
	if e.Seq != 2 {
		t.Errorf("expected seq 2 after reopen, got %d", e.Seq)
	}
}
