// internal/state/fallback.go
package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// NotificationsFile collects operator notifications that reached nobody.
const NotificationsFile = "manager_notifications.txt"

// ErrNotFound is returned when a fallback file does not exist.
var ErrNotFound = errors.New("fallback file not found")

// FallbackLog is an append-only text log used when the primary store or
// every operator delivery is unavailable. Submissions go to one file per
// calendar month; notifications go to a single file.
type FallbackLog struct {
	dir   string
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFallbackLog creates a FallbackLog writing into dir.
func NewFallbackLog(dir string) *FallbackLog {
	return &FallbackLog{
		dir:   dir,
		locks: make(map[string]*sync.Mutex),
	}
}

func (l *FallbackLog) Dir() string { return l.dir }

// getLock returns the per-file mutex, creating one if it doesn't exist.
func (l *FallbackLog) getLock(name string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lock, ok := l.locks[name]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	l.locks[name] = lock
	return lock
}

// SubmissionsFile returns the monthly file name for t.
func SubmissionsFile(t time.Time) string {
	return fmt.Sprintf("submissions_%s.txt", t.Format("200601"))
}

// WriteSubmission appends block to the month file for at and returns the
// file name.
func (l *FallbackLog) WriteSubmission(ctx context.Context, at time.Time, block string) (string, error) {
	name := SubmissionsFile(at)
	return name, l.append(ctx, name, block)
}

// WriteNotification appends block to the notifications file.
func (l *FallbackLog) WriteNotification(ctx context.Context, block string) error {
	return l.append(ctx, NotificationsFile, block)
}

func (l *FallbackLog) append(ctx context.Context, name, block string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lock := l.getLock(name)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("create fallback dir: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(l.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open fallback file: %w", err)
	}
	defer f.Close()

	if !strings.HasSuffix(block, "\n") {
		block += "\n"
	}
	if _, err := f.WriteString(block); err != nil {
		return fmt.Errorf("write fallback block: %w", err)
	}
	return nil
}

// FallbackFile describes one log file.
type FallbackFile struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Files lists the log files, newest name first.
func (l *FallbackLog) Files() ([]FallbackFile, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read fallback dir: %w", err)
	}

	var files []FallbackFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, FallbackFile{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name > files[j].Name })
	return files, nil
}

// Read returns the content of a log file by name.
func (l *FallbackLog) Read(name string) (string, error) {
	if name != filepath.Base(name) {
		return "", fmt.Errorf("invalid fallback file name %q", name)
	}

	lock := l.getLock(name)
	lock.Lock()
	defer lock.Unlock()

	data, err := os.ReadFile(filepath.Join(l.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("read fallback file: %w", err)
	}
	return string(data), nil
}
