// internal/types/models.go
package types

import (
	"time"
)

// EventKind classifies an inbound user event.
type EventKind string

const (
	EventText    EventKind = "text"
	EventContact EventKind = "contact"
	EventPhoto   EventKind = "photo"
	EventCommand EventKind = "command"
)

// PhotoRef points at a photo held by the chat transport.
type PhotoRef struct {
	FileID   string `json:"file_id"`
	UniqueID string `json:"unique_id,omitempty"`
	Size     int    `json:"size,omitempty"`
}

type InboundEvent struct {
	Source      string    `json:"source"`
	UserID      UserID    `json:"user_id"`
	ChatID      int64     `json:"chat_id"`
	Username    string    `json:"username,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Kind        EventKind `json:"kind"`
	Text        string    `json:"text,omitempty"`
	Command     Command   `json:"command,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Photo       *PhotoRef `json:"photo,omitempty"`
}

// OutboundMessage is a single prompt rendered back to the user.
type OutboundMessage struct {
	UserID         UserID   `json:"user_id"`
	ChatID         int64    `json:"chat_id"`
	Text           string   `json:"text"`
	Replies        []string `json:"replies,omitempty"`
	RequestContact string   `json:"request_contact,omitempty"`
	RemoveKeyboard bool     `json:"remove_keyboard,omitempty"`
}

// SubmissionKind distinguishes intake requests from help requests.
type SubmissionKind string

const (
	KindRequest SubmissionKind = "request"
	KindHelp    SubmissionKind = "help"
)

// Submission is a finalized record handed to the submission pipeline.
// It is never mutated after creation.
type Submission struct {
	ID          SubmissionID   `json:"id"`
	Kind        SubmissionKind `json:"kind"`
	SubmittedAt time.Time      `json:"submitted_at"`
	UserID      UserID         `json:"user_id"`
	Username    string         `json:"username"`
	DisplayName string         `json:"display_name,omitempty"`
	Values      []string       `json:"values"`
	Message     string         `json:"message,omitempty"`
	PhotoRef    string         `json:"photo_ref,omitempty"`
	PhotoPath   string         `json:"photo_path,omitempty"`
}

// Notification is what operators receive for one submission.
type Notification struct {
	Title     string
	HTML      string
	PhotoRef  string
	PhotoPath string
}
