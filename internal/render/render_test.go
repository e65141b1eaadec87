package render

import (
	"strings"
	"testing"
	"time"

	"github.com/user/freightbot/internal/schema"
	"github.com/user/freightbot/internal/types"
)

func testSubmission() *types.Submission {
	s := schema.Default()
	rec := schema.Record{"name": "Ivan", "weight": "12", "cargo": "<tea & cups>"}
	return &types.Submission{
		ID:          types.NewSubmissionID(),
		Kind:        types.KindRequest,
		SubmittedAt: time.Date(2026, 3, 5, 10, 30, 0, 0, time.UTC),
		UserID:      "42",
		Username:    "ivan",
		Values:      rec.Values(s),
	}
}

func TestPreviewListsEveryField(t *testing.T) {
	s := schema.Default()
	r := New(s, nil)

	out := r.Preview(schema.Record{"name": "Ivan", "weight": "12"})
	for _, f := range s.Fields {
		if !strings.Contains(out, f.Label+":") {
			t.Errorf("preview missing label %q", f.Label)
		}
	}
	if !strings.Contains(out, "12 kg") {
		t.Errorf("expected unit appended to weight, got:\n%s", out)
	}
	if strings.Contains(out, schema.NotProvided+" m³") {
		t.Error("unit must not be appended to sentinel values")
	}
}

func TestRowLayout(t *testing.T) {
	r := New(schema.Default(), nil)
	sub := testSubmission()
	sub.Username = ""

	row := r.Row(sub)
	if len(row) != 4+schema.Default().Len() {
		t.Fatalf("expected %d cells, got %d", 4+schema.Default().Len(), len(row))
	}
	if row[0] != "New request" || row[1] != "2026-03-05 10:30:00" || row[2] != "42" {
		t.Errorf("unexpected metadata cells: %v", row[:4])
	}
	if row[3] != schema.UnspecifiedUsername {
		t.Errorf("expected unspecified username, got %q", row[3])
	}
	if row[4] != "Ivan" || row[5] != schema.NotProvided {
		t.Errorf("unexpected field cells: %v", row[4:6])
	}
}

func TestNotificationEscapesHTML(t *testing.T) {
	r := New(schema.Default(), nil)
	n := r.Notification(testSubmission())

	if !strings.Contains(n.HTML, "&lt;tea &amp; cups&gt;") {
		t.Errorf("expected escaped cargo, got:\n%s", n.HTML)
	}
	if !strings.Contains(n.HTML, "└ 💬 Comment") {
		t.Errorf("expected last line to use the closing branch, got:\n%s", n.HTML)
	}
}

func TestHelpNotification(t *testing.T) {
	r := New(schema.Default(), nil)
	sub := testSubmission()
	sub.Kind = types.KindHelp
	sub.DisplayName = "Ivan Petrov"
	sub.Message = "Where is my cargo?"
	sub.PhotoRef = "ignored"

	n := r.Notification(sub)
	if n.Title != "Help request" {
		t.Errorf("unexpected title %q", n.Title)
	}
	if !strings.Contains(n.HTML, "Where is my cargo?") || !strings.Contains(n.HTML, "Ivan Petrov") {
		t.Errorf("help notification missing content:\n%s", n.HTML)
	}
	if n.PhotoRef != "" {
		t.Error("help notifications carry no photo")
	}
}

func TestNotificationBlockIsPlainText(t *testing.T) {
	r := New(schema.Default(), nil)
	n := r.Notification(testSubmission())

	block := r.NotificationBlock(time.Date(2026, 3, 5, 11, 0, 0, 0, time.UTC), n)
	if strings.Contains(block, "<b>") {
		t.Errorf("expected HTML tags to be converted, got:\n%s", block)
	}
	if !strings.Contains(block, "NEW DELIVERY REQUEST") {
		t.Errorf("expected title text to survive conversion, got:\n%s", block)
	}
	if !strings.Contains(block, "Date: 2026-03-05 11:00:00") {
		t.Errorf("expected block timestamp, got:\n%s", block)
	}
}

func TestSubmissionBlock(t *testing.T) {
	r := New(schema.Default(), nil)
	sub := testSubmission()
	sub.PhotoPath = "photo_42_20260305.jpg"

	block := r.SubmissionBlock(sub)
	for _, want := range []string{"Kind: New request", "Username: ivan", "👤 Name: Ivan", "Photo file: photo_42_20260305.jpg"} {
		if !strings.Contains(block, want) {
			t.Errorf("block missing %q:\n%s", want, block)
		}
	}
}

func TestAdmin(t *testing.T) {
	r := New(schema.Default(), nil)
	out := r.Admin("42", []string{"telegram:1", "sms:+100"})
	if !strings.Contains(out, "42") || !strings.Contains(out, "• sms:+100") {
		t.Errorf("unexpected admin text:\n%s", out)
	}
}
