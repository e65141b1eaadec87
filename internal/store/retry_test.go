package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"google.golang.org/api/googleapi"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"sheets rate limit", &googleapi.Error{Code: 429}, true},
		{"sheets unavailable", fmt.Errorf("append: %w", &googleapi.Error{Code: 503}), true},
		{"sheets forbidden", &googleapi.Error{Code: 403}, false},
		{"sheets not found", &googleapi.Error{Code: 404}, false},
		{"postgres connection failure", &pq.Error{Code: "08006"}, true},
		{"postgres serialization", &pq.Error{Code: "40001"}, true},
		{"postgres undefined table", &pq.Error{Code: "42P01"}, false},
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, true},
		{"sqlite constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, false},
		{"timeout", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"unknown", errors.New("too many cells"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
