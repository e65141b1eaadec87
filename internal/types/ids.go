// internal/types/ids.go
package types

import (
	"strconv"

	"github.com/google/uuid"
)

type UserID string
type RunID string
type SubmissionID string

func NewRunID() RunID {
	return RunID(uuid.New().String())
}

func NewSubmissionID() SubmissionID {
	return SubmissionID(uuid.New().String())
}

// UserIDFromInt formats a transport-native numeric id.
func UserIDFromInt(id int64) UserID {
	return UserID(strconv.FormatInt(id, 10))
}
