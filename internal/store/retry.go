package store

import (
	"errors"
	"net/http"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"google.golang.org/api/googleapi"

	"github.com/user/freightbot/internal/gateway"
)

// IsRetryable classifies an AppendRow failure from any backend. Rate limits,
// server errors, lost connections and lock contention are retryable; schema,
// permission and validation errors are not.
func IsRetryable(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "40", "53", "57": // connection, rollback, resources, operator intervention
			return true
		}
		return false
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}

	return gateway.IsTransient(err)
}
