// internal/types/interfaces.go
package types

import (
	"context"
)

// RowAppender is a spreadsheet-like primary store.
type RowAppender interface {
	Name() string
	Ping(ctx context.Context) error
	AppendRow(ctx context.Context, cells []string) error
}

// Notifier delivers a notification to one operator target.
type Notifier interface {
	Deliver(ctx context.Context, target string, n *Notification) error
}
