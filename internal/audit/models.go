package audit

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Run is one persisted question-to-answer cycle.
type Run struct {
	ID            string
	CreatedAt     time.Time
	Question      string
	OK            bool
	StopReason    string
	FinalSQL      string
	RowCount      int
	AttemptCount  int
	SchemaVersion string
	Attempts      []AttemptRow
}

// AttemptRow is one persisted loop iteration within a Run.
type AttemptRow struct {
	RunID             string
	Number            int
	RawOutput         string
	ExtractedSQL      string
	FinalSQL          string
	ValidationOK      bool
	ValidationReasons string // JSON array stored as text
	FeedbackCategory  string
	FeedbackMessage   string
	LatencyMs         int64
}
