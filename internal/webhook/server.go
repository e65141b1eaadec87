// Package webhook serves the bot's HTTP surface: health, Telegram webhook
// delivery, and a read-only debug API.
package webhook

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/freightbot/internal/state"
)

// secretHeader carries the secret token Telegram echoes on webhook calls.
// The "secret" query parameter is accepted as well.
const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateHandler consumes Telegram updates received over HTTP.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update)
}

// SessionLister returns a snapshot of active conversations.
type SessionLister interface {
	List() []*state.Session
}

// FallbackLister lists fallback log files.
type FallbackLister interface {
	Files() ([]state.FallbackFile, error)
}

// JournalReader returns recent submission outcomes.
type JournalReader interface {
	Tail(ctx context.Context, limit int) ([]*state.JournalEntry, error)
}

// Server is the chi-routed HTTP handler.
type Server struct {
	updates  UpdateHandler
	sessions SessionLister
	fallback FallbackLister
	journal  JournalReader
	secret   string
	router   chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithUpdates enables POST /webhook.
func WithUpdates(h UpdateHandler) Option {
	return func(s *Server) { s.updates = h }
}

// WithSecret requires Telegram's secret-token header on POST /webhook.
func WithSecret(secret string) Option {
	return func(s *Server) { s.secret = secret }
}

// WithSessions enables GET /api/sessions.
func WithSessions(l SessionLister) Option {
	return func(s *Server) { s.sessions = l }
}

// WithFallback enables GET /api/fallback.
func WithFallback(l FallbackLister) Option {
	return func(s *Server) { s.fallback = l }
}

// WithJournal enables GET /api/submissions.
func WithJournal(j JournalReader) Option {
	return func(s *Server) { s.journal = j }
}

// NewServer creates a Server with routes registered.
func NewServer(opts ...Option) *Server {
	s := &Server{}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Post("/webhook", s.handleUpdate)
	r.Route("/api", func(r chi.Router) {
		r.Get("/sessions", s.handleAPISessions)
		r.Get("/fallback", s.handleAPIFallback)
		r.Get("/submissions", s.handleAPISubmissions)
	})
	s.router = r
	return s
}

// ServeHTTP delegates to the router, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if s.updates == nil {
		http.Error(w, `{"error":"webhook mode not enabled"}`, http.StatusNotFound)
		return
	}
	if s.secret != "" {
		got := r.Header.Get(secretHeader)
		if got == "" {
			got = r.URL.Query().Get("secret")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.secret)) != 1 {
			http.Error(w, `{"error":"forbidden"}`, http.StatusForbidden)
			return
		}
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}

	// Replies go out asynchronously; Telegram only needs a 200.
	s.updates.HandleUpdate(r.Context(), update)
	w.WriteHeader(http.StatusOK)
}

type sessionResponse struct {
	UserID    string `json:"user_id"`
	ChatID    int64  `json:"chat_id"`
	Step      string `json:"step"`
	Username  string `json:"username,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func (s *Server) handleAPISessions(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		http.Error(w, `{"error":"debug API not configured"}`, http.StatusServiceUnavailable)
		return
	}

	sessions := s.sessions.List()
	result := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, sessionResponse{
			UserID:    string(sess.UserID),
			ChatID:    sess.ChatID,
			Step:      sess.Step.String(),
			Username:  sess.Username,
			CreatedAt: sess.CreatedAt.Format(time.RFC3339),
			UpdatedAt: sess.UpdatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, result)
}

type fallbackResponse struct {
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	ModTime string `json:"mod_time"`
}

func (s *Server) handleAPIFallback(w http.ResponseWriter, r *http.Request) {
	if s.fallback == nil {
		http.Error(w, `{"error":"debug API not configured"}`, http.StatusServiceUnavailable)
		return
	}
	files, err := s.fallback.Files()
	if err != nil {
		slog.Error("list fallback files failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	result := make([]fallbackResponse, 0, len(files))
	for _, f := range files {
		result = append(result, fallbackResponse{Name: f.Name, Size: f.Size, ModTime: f.ModTime.Format(time.RFC3339)})
	}
	writeJSON(w, result)
}

func (s *Server) handleAPISubmissions(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		http.Error(w, `{"error":"debug API not configured"}`, http.StatusServiceUnavailable)
		return
	}

	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := s.journal.Tail(r.Context(), limit)
	if err != nil {
		slog.Error("tail journal failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*state.JournalEntry{}
	}
	writeJSON(w, entries)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("freightbot is running\n"))
}
