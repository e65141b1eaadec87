package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/freightbot/internal/state"
	"github.com/user/freightbot/internal/types"
)

type mockUpdates struct {
	mu      sync.Mutex
	updates []tgbotapi.Update
}

func (m *mockUpdates) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, update)
}

type mockFallback struct {
	files []state.FallbackFile
	err   error
}

func (m *mockFallback) Files() ([]state.FallbackFile, error) { return m.files, m.err }

func TestHealthEndpoint(t *testing.T) {
	srv := NewServer()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %s", resp["status"])
	}
}

func TestIndexEndpoint(t *testing.T) {
	srv := NewServer()
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "freightbot") {
		t.Errorf("unexpected index response: %d %q", w.Code, w.Body.String())
	}
}

func TestWebhookUpdate(t *testing.T) {
	mock := &mockUpdates{}
	srv := NewServer(WithUpdates(mock))

	body := `{"update_id":7,"message":{"message_id":1,"text":"hi","chat":{"id":42,"type":"private"},"from":{"id":42,"first_name":"Alice"}}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if len(mock.updates) != 1 {
		t.Fatalf("expected 1 update, got %d", len(mock.updates))
	}
	got := mock.updates[0]
	if got.UpdateID != 7 || got.Message == nil || got.Message.Text != "hi" || got.Message.Chat.ID != 42 {
		t.Errorf("unexpected update: %+v", got)
	}
}

func TestWebhookUpdate_InvalidJSON(t *testing.T) {
	mock := &mockUpdates{}
	srv := NewServer(WithUpdates(mock))

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if len(mock.updates) != 0 {
		t.Error("invalid body should not reach the handler")
	}
}

func TestWebhookUpdate_Disabled(t *testing.T) {
	srv := NewServer()
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{}")))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 in polling mode, got %d", w.Code)
	}
}

func TestWebhookUpdate_Secret(t *testing.T) {
	mock := &mockUpdates{}
	srv := NewServer(WithUpdates(mock), WithSecret("s3cret"))

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"update_id":1}`))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("missing secret: expected 403, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"update_id":1}`))
	req.Header.Set(secretHeader, "s3cret")
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid secret: expected 200, got %d", w.Code)
	}
	req = httptest.NewRequest(http.MethodPost, "/webhook?secret=s3cret", strings.NewReader(`{"update_id":2}`))
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("secret in query: expected 200, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhook?secret=wrong", strings.NewReader(`{"update_id":3}`))
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("wrong secret: expected 403, got %d", w.Code)
	}
	if len(mock.updates) != 2 {
		t.Errorf("expected 2 updates, got %d", len(mock.updates))
	}
}

func TestAPISessions(t *testing.T) {
	sessions := state.NewSessionStore()
	sess := sessions.Create(types.UserID("42"))
	sess.ChatID = 42
	sess.Username = "alice"
	sess.Step = state.Collecting("phone")
	sessions.Save(sess)

	srv := NewServer(WithSessions(sessions))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp []sessionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp) != 1 {
		t.Fatalf("expected 1 session, got %d", len(resp))
	}
	if resp[0].UserID != "42" || resp[0].Step != "collecting(phone)" || resp[0].Username != "alice" {
		t.Errorf("unexpected session: %+v", resp[0])
	}
}

func TestAPISessions_NotConfigured(t *testing.T) {
	srv := NewServer()
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestAPIFallback(t *testing.T) {
	mod := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	fb := &mockFallback{files: []state.FallbackFile{{Name: "submissions_202603.txt", Size: 120, ModTime: mod}}}
	srv := NewServer(WithFallback(fb))

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/fallback", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp []fallbackResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp) != 1 || resp[0].Name != "submissions_202603.txt" || resp[0].Size != 120 {
		t.Errorf("unexpected response: %+v", resp)
	}

	fb.err = errors.New("disk gone")
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/fallback", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

type mockJournal struct {
	entries   []*state.JournalEntry
	lastLimit int
}

func (m *mockJournal) Tail(ctx context.Context, limit int) ([]*state.JournalEntry, error) {
	m.lastLimit = limit
	return m.entries, nil
}

func TestAPISubmissions(t *testing.T) {
	j := &mockJournal{entries: []*state.JournalEntry{{Seq: 1, Kind: types.KindHelp, UserID: "7", Successes: 1}}}
	srv := NewServer(WithJournal(j))

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/submissions?limit=5", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if j.lastLimit != 5 {
		t.Errorf("expected limit 5, got %d", j.lastLimit)
	}
	var resp []state.JournalEntry
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp) != 1 || resp[0].Kind != types.KindHelp || resp[0].UserID != "7" {
		t.Errorf("unexpected response: %+v", resp)
	}

	j.entries = nil
	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/submissions?limit=bogus", nil))
	if j.lastLimit != 50 {
		t.Errorf("expected default limit 50, got %d", j.lastLimit)
	}
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("expected empty JSON array, got %q", w.Body.String())
	}
}
