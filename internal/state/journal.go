// internal/state/journal.go
package state

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/freightbot/internal/types"
)

// JournalEntry records how one submission was handled.
type JournalEntry struct {
	Seq                  int64                `json:"seq"`
	SubmissionID         types.SubmissionID   `json:"submission_id"`
	Kind                 types.SubmissionKind `json:"kind"`
	UserID               types.UserID         `json:"user_id"`
	At                   time.Time            `json:"at"`
	Store                string               `json:"store,omitempty"`
	Persisted            bool                 `json:"persisted"`
	FallbackFile         string               `json:"fallback_file,omitempty"`
	Attempts             int                  `json:"attempts"`
	Successes            int                  `json:"successes"`
	NotificationFallback bool                 `json:"notification_fallback,omitempty"`
}

// Journal is a JSONL-backed append-only log of submission outcomes.
type Journal struct {
	path string
	mu   sync.Mutex
	seq  int64
	init bool
}

// NewJournal creates a Journal writing to path.
func NewJournal(path string) *Journal {
	return &Journal{path: path}
}

func (j *Journal) Path() string { return j.path }

// count reads the journal and counts lines. Caller must hold the lock.
func (j *Journal) count() (int64, error) {
	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var count int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan journal: %w", err)
	}
	return count, nil
}

// Append adds an entry with the next sequence number.
func (j *Journal) Append(_ context.Context, entry *JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.init {
		n, err := j.count()
		if err != nil {
			return err
		}
		j.seq, j.init = n, true
	}

	if err := os.MkdirAll(filepath.Dir(j.path), 0o755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}

	entry.Seq = j.seq + 1
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	j.seq++
	return nil
}

// Tail returns the last limit entries, oldest first.
func (j *Journal) Tail(_ context.Context, limit int) ([]*JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var entries []*JournalEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e JournalEntry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("unmarshal journal entry: %w", err)
		}
		entries = append(entries, &e)
		if limit > 0 && len(entries) > limit {
			entries = entries[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	return entries, nil
}

// Count returns the number of entries.
func (j *Journal) Count(_ context.Context) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.count()
}
