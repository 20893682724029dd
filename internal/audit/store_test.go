package audit

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shuvo-iitkgp/data-query-copilot/internal/executor"
	"github.com/shuvo-iitkgp/data-query-copilot/internal/retry"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult() retry.Result {
	return retry.Result{
		OK:         true,
		StopReason: retry.StopSuccess,
		FinalSQL:   "SELECT state FROM fuel_stations LIMIT 200",
		Execution:  &executor.Result{Columns: []string{"state"}, RowCount: 7},
		Attempts: []retry.Attempt{
			{
				Number:            1,
				RawOutput:         "DELETE FROM fuel_stations",
				ExtractedSQL:      "DELETE FROM fuel_stations",
				ValidationReasons: []string{"not_select_or_with", "forbidden_keyword:DELETE"},
				Feedback:          &retry.Feedback{Category: retry.CategoryValidation, Message: "SQL failed validation rules."},
			},
			{
				Number:       2,
				RawOutput:    "SELECT state FROM fuel_stations",
				ExtractedSQL: "SELECT state FROM fuel_stations",
				FinalSQL:     "SELECT state FROM fuel_stations LIMIT 200",
				ValidationOK: true,
				LatencyMs:    42,
			},
		},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := openTestStore(t)

	id := uuid.NewString()
	run := FromResult(id, "states?", "abc123", sampleResult())
	if err := s.SaveRun(run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	got, err := s.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Question != "states?" || !got.OK || got.StopReason != retry.StopSuccess {
		t.Errorf("run = %+v", got)
	}
	if got.RowCount != 7 || got.AttemptCount != 2 || got.SchemaVersion != "abc123" {
		t.Errorf("run metadata = %+v", got)
	}
	if len(got.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(got.Attempts))
	}

	first := got.Attempts[0]
	if first.Number != 1 || first.ValidationOK {
		t.Errorf("attempt 1 = %+v", first)
	}
	if !strings.Contains(first.ValidationReasons, "forbidden_keyword:DELETE") {
		t.Errorf("reasons json = %q", first.ValidationReasons)
	}
	if first.FeedbackCategory != retry.CategoryValidation {
		t.Errorf("feedback category = %q", first.FeedbackCategory)
	}

	second := got.Attempts[1]
	if !second.ValidationOK || second.LatencyMs != 42 {
		t.Errorf("attempt 2 = %+v", second)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRun("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListRuns(t *testing.T) {
	s := openTestStore(t)

	for i, q := range []string{"first", "second", "third"} {
		res := sampleResult()
		run := FromResult(uuid.NewString(), q, "v", res)
		// Distinct timestamps so ordering is observable.
		run.CreatedAt = run.CreatedAt.Add(-time.Duration(3-i) * time.Minute)
		if err := s.SaveRun(run); err != nil {
			t.Fatalf("SaveRun(%s): %v", q, err)
		}
	}

	runs, err := s.ListRuns(2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].Question != "third" || runs[1].Question != "second" {
		t.Errorf("order = [%s %s], want newest first", runs[0].Question, runs[1].Question)
	}
	if len(runs[0].Attempts) != 0 {
		t.Errorf("list returned attempts, want summaries only")
	}
}

func TestAppliedMigrations_Idempotent(t *testing.T) {
	s := openTestStore(t)
	// Re-running migrate over an initialized database is a no-op.
	if err := s.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}
