package submission

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/freightbot/internal/gateway"
	"github.com/user/freightbot/internal/render"
	"github.com/user/freightbot/internal/schema"
	"github.com/user/freightbot/internal/state"
	"github.com/user/freightbot/internal/types"
)

type fakeStore struct {
	mu    sync.Mutex
	rows  [][]string
	err   error
	calls int
}

func (f *fakeStore) Name() string                 { return "fake" }
func (f *fakeStore) Ping(_ context.Context) error { return nil }
func (f *fakeStore) AppendRow(_ context.Context, cells []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, cells)
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls map[string]int
	fail  map[string]bool
}

func newFakeNotifier(failing ...string) *fakeNotifier {
	n := &fakeNotifier{calls: map[string]int{}, fail: map[string]bool{}}
	for _, t := range failing {
		n.fail[t] = true
	}
	return n
}

func (f *fakeNotifier) Deliver(_ context.Context, target string, _ *types.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[target]++
	if f.fail[target] {
		return errors.New("chat not found")
	}
	return nil
}

func threeFieldSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New(schema.Schema{Fields: []schema.Field{
		{Key: "name", Label: "Name", Prompt: "Name?", Kind: schema.KindFreeText},
		{Key: "phone", Label: "Phone", Prompt: "Phone?", Kind: schema.KindPhone},
		{Key: "city", Label: "City", Prompt: "City?", Kind: schema.KindFreeText},
	}})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func testSubmission() *types.Submission {
	return &types.Submission{
		ID:          types.NewSubmissionID(),
		Kind:        types.KindRequest,
		SubmittedAt: time.Date(2026, 3, 5, 10, 30, 0, 0, time.UTC),
		UserID:      "42",
		Username:    "ivan",
		Values:      []string{"Ivan", "79990000000", "Moscow"},
	}
}

func newPipeline(t *testing.T, notifier types.Notifier, opts ...Option) (*Pipeline, *state.FallbackLog) {
	t.Helper()
	fb := state.NewFallbackLog(t.TempDir())
	r := render.New(threeFieldSchema(t), nil)
	return New(r, notifier, fb, opts...), fb
}

func TestSubmitPersistsOnceAndNotifiesAll(t *testing.T) {
	store := &fakeStore{}
	notifier := newFakeNotifier()
	targets := []string{"telegram:1", "telegram:2", "sms:+100"}
	p, fb := newPipeline(t, notifier, WithStore(store), WithTargets(targets))

	rep := p.Submit(context.Background(), testSubmission())

	if !rep.Persisted || rep.FellBack {
		t.Errorf("expected primary persistence only, got %+v", rep)
	}
	if len(store.rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(store.rows))
	}
	row := store.rows[0]
	if strings.Join(row[4:], "|") != "Ivan|79990000000|Moscow" {
		t.Errorf("unexpected row %v", row)
	}
	for _, target := range targets {
		if notifier.calls[target] != 1 {
			t.Errorf("expected exactly 1 delivery to %s, got %d", target, notifier.calls[target])
		}
	}
	if rep.Successes != 3 || rep.NotificationFallback {
		t.Errorf("unexpected report %+v", rep)
	}
	files, _ := fb.Files()
	if len(files) != 0 {
		t.Errorf("expected no fallback files, got %v", files)
	}
}

func TestSubmitFallsBackWhenStoreFails(t *testing.T) {
	store := &fakeStore{err: errors.New("service temporarily unavailable")}
	p, fb := newPipeline(t, newFakeNotifier(), WithStore(store), WithTargets([]string{"telegram:1"}),
		WithRetryPolicy(&gateway.RetryPolicy{MaxAttempts: 2, InitialDelay: time.Millisecond, Multiplier: 1, MaxDelay: time.Millisecond}))

	rep := p.Submit(context.Background(), testSubmission())

	if rep.Persisted || !rep.FellBack {
		t.Fatalf("expected fallback, got %+v", rep)
	}
	if store.calls != 2 {
		t.Errorf("expected 2 store attempts, got %d", store.calls)
	}
	if rep.FallbackFile != "submissions_202603.txt" {
		t.Errorf("unexpected fallback file %q", rep.FallbackFile)
	}
	content, err := fb.Read(rep.FallbackFile)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range []string{"Ivan", "79990000000", "Moscow"} {
		if !strings.Contains(content, v) {
			t.Errorf("fallback entry missing %q:\n%s", v, content)
		}
	}
}

func TestSubmitWithoutStoreUsesFallback(t *testing.T) {
	p, _ := newPipeline(t, newFakeNotifier(), WithTargets([]string{"telegram:1"}))
	rep := p.Submit(context.Background(), testSubmission())
	if !rep.FellBack || rep.Persisted {
		t.Errorf("expected fallback without store, got %+v", rep)
	}
}

func TestSubmitPartialDeliveryFailure(t *testing.T) {
	notifier := newFakeNotifier("telegram:2")
	targets := []string{"telegram:1", "telegram:2", "telegram:3"}
	p, fb := newPipeline(t, notifier, WithStore(&fakeStore{}), WithTargets(targets))

	rep := p.Submit(context.Background(), testSubmission())

	if rep.Attempts != 3 || rep.Successes != 2 {
		t.Errorf("expected 3 attempts and 2 successes, got %+v", rep)
	}
	for _, target := range targets {
		if notifier.calls[target] != 1 {
			t.Errorf("expected exactly 1 attempt for %s, got %d", target, notifier.calls[target])
		}
	}
	if rep.NotificationFallback {
		t.Error("fallback must not be written when any delivery succeeds")
	}
	if _, err := fb.Read(state.NotificationsFile); !errors.Is(err, state.ErrNotFound) {
		t.Errorf("expected no notifications file, got %v", err)
	}
}

func TestSubmitAllDeliveriesFail(t *testing.T) {
	targets := []string{"telegram:1", "telegram:2"}
	notifier := newFakeNotifier(targets...)
	p, fb := newPipeline(t, notifier, WithStore(&fakeStore{}), WithTargets(targets))

	rep := p.Submit(context.Background(), testSubmission())

	if rep.Successes != 0 || !rep.NotificationFallback {
		t.Fatalf("expected notification fallback, got %+v", rep)
	}
	content, err := fb.Read(state.NotificationsFile)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(content, "Title: New request") != 1 {
		t.Errorf("expected exactly one fallback entry:\n%s", content)
	}
}

func TestSubmitZeroTargets(t *testing.T) {
	store := &fakeStore{}
	p, fb := newPipeline(t, newFakeNotifier(), WithStore(store))

	rep := p.Submit(context.Background(), testSubmission())

	if store.calls != 1 {
		t.Errorf("expected persistence to be attempted once, got %d", store.calls)
	}
	if rep.Attempts != 0 || !rep.NotificationFallback {
		t.Errorf("unexpected report %+v", rep)
	}
	content, err := fb.Read(state.NotificationsFile)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(content, "Title:") != 1 {
		t.Errorf("expected exactly one entry:\n%s", content)
	}
}

type slowNotifier struct{}

func (slowNotifier) Deliver(ctx context.Context, _ string, _ *types.Notification) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestSubmitDeliveryTimeout(t *testing.T) {
	p, _ := newPipeline(t, slowNotifier{}, WithStore(&fakeStore{}),
		WithTargets([]string{"telegram:1", "telegram:2"}),
		WithTimeouts(time.Second, 20*time.Millisecond))

	start := time.Now()
	rep := p.Submit(context.Background(), testSubmission())
	if time.Since(start) > time.Second {
		t.Error("delivery timeout was not enforced")
	}
	if rep.Successes != 0 || !rep.NotificationFallback {
		t.Errorf("unexpected report %+v", rep)
	}
}

func TestSubmitRecordsJournal(t *testing.T) {
	journal := state.NewJournal(filepath.Join(t.TempDir(), "journal.jsonl"))
	store := &fakeStore{}
	p, _ := newPipeline(t, newFakeNotifier("telegram:2"), WithStore(store),
		WithTargets([]string{"telegram:1", "telegram:2"}), WithJournal(journal))

	sub := testSubmission()
	p.Submit(context.Background(), sub)

	entries, err := journal.Tail(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 journal entry, got %d", len(entries))
	}
	e := entries[0]
	if e.SubmissionID != sub.ID || e.Store != "fake" || !e.Persisted {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.Attempts != 2 || e.Successes != 1 || e.NotificationFallback {
		t.Errorf("unexpected delivery counts %+v", e)
	}
}
