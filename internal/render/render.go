// Package render builds the user-facing and operator-facing message texts.
package render

import (
	"fmt"
	"html"
	"log/slog"
	"strings"
	"text/template"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/user/freightbot/internal/schema"
	"github.com/user/freightbot/internal/types"
)

// TimeLayout is the timestamp format used in rows, notifications and logs.
const TimeLayout = "2006-01-02 15:04:05"

var funcs = template.FuncMap{
	"esc": html.EscapeString,
	"last": func(i int, lines []Line) bool {
		return i == len(lines)-1
	},
}

var templates = template.Must(template.New("render").Funcs(funcs).Parse(""))

func init() {
	for name, body := range map[string]string{
		"welcome":              welcomeTemplate,
		"preview":              previewTemplate,
		"correction":           correctionTemplate,
		"acknowledgment":       acknowledgmentTemplate,
		"cancelled":            cancelledTemplate,
		"help_prompt":          helpPromptTemplate,
		"help_thanks":          helpThanksTemplate,
		"admin":                adminTemplate,
		"request_notification": requestNotificationTemplate,
		"help_notification":    helpNotificationTemplate,
		"submission_block":     submissionBlockTemplate,
		"notification_block":   notificationBlockTemplate,
	} {
		template.Must(templates.New(name).Parse(body))
	}
}

// Line is one labelled value in a preview or notification.
type Line struct {
	Label string
	Value string
}

// Renderer renders messages for one schema.
type Renderer struct {
	schema *schema.Schema
	loc    *time.Location
}

// New creates a Renderer. Timestamps are formatted in loc (UTC when nil).
func New(s *schema.Schema, loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{schema: s, loc: loc}
}

func (r *Renderer) execute(name string, data any) string {
	var b strings.Builder
	if err := templates.ExecuteTemplate(&b, name, data); err != nil {
		slog.Error("render template", "template", name, "error", err)
		return ""
	}
	return b.String()
}

// Timestamp formats t in the renderer's location.
func (r *Renderer) Timestamp(t time.Time) string {
	return t.In(r.loc).Format(TimeLayout)
}

// Lines pairs every schema field with its display value. Units are
// appended to real values only.
func (r *Renderer) Lines(values []string) []Line {
	lines := make([]Line, len(r.schema.Fields))
	for i, f := range r.schema.Fields {
		v := schema.NotProvided
		if i < len(values) && values[i] != "" {
			v = values[i]
		}
		if f.Unit != "" && !schema.IsSentinel(v) {
			v = v + " " + f.Unit
		}
		lines[i] = Line{Label: f.Label, Value: v}
	}
	return lines
}

func (r *Renderer) Welcome() string        { return r.execute("welcome", nil) }
func (r *Renderer) CorrectionMenu() string { return r.execute("correction", nil) }
func (r *Renderer) Acknowledgment() string { return r.execute("acknowledgment", nil) }
func (r *Renderer) Cancelled() string      { return r.execute("cancelled", nil) }
func (r *Renderer) HelpPrompt() string     { return r.execute("help_prompt", nil) }
func (r *Renderer) HelpThanks() string     { return r.execute("help_thanks", nil) }

// Preview renders the full record for confirmation.
func (r *Renderer) Preview(rec schema.Record) string {
	return r.execute("preview", struct{ Lines []Line }{r.Lines(rec.Values(r.schema))})
}

// Admin renders the caller's id and the configured operator targets.
func (r *Renderer) Admin(userID types.UserID, targets []string) string {
	return r.execute("admin", struct {
		UserID  types.UserID
		Targets []string
	}{userID, targets})
}

// Notification renders the operator notification for a submission.
func (r *Renderer) Notification(sub *types.Submission) *types.Notification {
	username := sub.Username
	if username == "" {
		username = schema.UnspecifiedUsername
	}
	data := struct {
		Timestamp   string
		UserID      types.UserID
		Username    string
		DisplayName string
		Message     string
		Lines       []Line
	}{
		Timestamp:   r.Timestamp(sub.SubmittedAt),
		UserID:      sub.UserID,
		Username:    username,
		DisplayName: sub.DisplayName,
		Message:     sub.Message,
	}

	if sub.Kind == types.KindHelp {
		return &types.Notification{
			Title: "Help request",
			HTML:  r.execute("help_notification", data),
		}
	}

	data.Lines = r.Lines(sub.Values)
	return &types.Notification{
		Title:     "New request",
		HTML:      r.execute("request_notification", data),
		PhotoRef:  sub.PhotoRef,
		PhotoPath: sub.PhotoPath,
	}
}

// KindLabel is the first cell of a persisted row.
func KindLabel(k types.SubmissionKind) string {
	if k == types.KindHelp {
		return "Help request"
	}
	return "New request"
}

// Row lays out a submission as a primary-store row:
// kind label, timestamp, user id, username, then one cell per field.
func (r *Renderer) Row(sub *types.Submission) []string {
	username := sub.Username
	if username == "" {
		username = schema.UnspecifiedUsername
	}
	row := make([]string, 0, 4+len(sub.Values))
	row = append(row, KindLabel(sub.Kind), r.Timestamp(sub.SubmittedAt), string(sub.UserID), username)
	return append(row, sub.Values...)
}

// SubmissionBlock renders a submission for the local fallback log.
func (r *Renderer) SubmissionBlock(sub *types.Submission) string {
	username := sub.Username
	if username == "" {
		username = schema.UnspecifiedUsername
	}
	return r.execute("submission_block", struct {
		Kind      string
		Timestamp string
		UserID    types.UserID
		Username  string
		Lines     []Line
		PhotoPath string
	}{
		Kind:      KindLabel(sub.Kind),
		Timestamp: r.Timestamp(sub.SubmittedAt),
		UserID:    sub.UserID,
		Username:  username,
		Lines:     r.Lines(sub.Values),
		PhotoPath: sub.PhotoPath,
	})
}

// NotificationBlock renders an undelivered notification as plain text
// for the manager fallback log.
func (r *Renderer) NotificationBlock(at time.Time, n *types.Notification) string {
	text, err := PlainText(n.HTML)
	if err != nil {
		slog.Warn("convert notification to text", "error", err)
		text = n.HTML
	}
	return r.execute("notification_block", struct {
		Timestamp string
		Title     string
		Text      string
	}{r.Timestamp(at), n.Title, text})
}

// PlainText converts Telegram HTML into Markdown-flavoured plain text.
func PlainText(htmlText string) (string, error) {
	md, err := htmltomarkdown.ConvertString(strings.ReplaceAll(htmlText, "\n", "<br>"))
	if err != nil {
		return "", fmt.Errorf("convert html: %w", err)
	}
	return strings.TrimSpace(md), nil
}
