// Package store provides primary storage backends for submission rows.
package store

import (
	"github.com/user/freightbot/internal/schema"
	"github.com/user/freightbot/internal/types"
)

// Compile-time interface compliance checks.
var _ types.RowAppender = (*SheetsStore)(nil)
var _ types.RowAppender = (*SQLStore)(nil)

// metaHeader names the leading cells of every row.
var metaHeader = []string{"Kind", "Timestamp", "User ID", "Username"}

// metaColumns are the SQL column names for metaHeader.
var metaColumns = []string{"kind", "submitted_at", "user_id", "username"}

// Header returns the spreadsheet header row for s.
func Header(s *schema.Schema) []string {
	return append(append([]string(nil), metaHeader...), s.FieldLabels()...)
}
