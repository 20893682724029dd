package report

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shuvo-iitkgp/data-query-copilot/internal/executor"
	"github.com/shuvo-iitkgp/data-query-copilot/internal/retry"
)

// fakePipeline answers every question with a canned per-question result and
// tracks peak concurrency.
type fakePipeline struct {
	mu      sync.Mutex
	results map[string]retry.Result

	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakePipeline) Run(ctx context.Context, question string) retry.Result {
	cur := f.inFlight.Add(1)
	for {
		p := f.peak.Load()
		if cur <= p || f.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	defer f.inFlight.Add(-1)

	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.results[question]; ok {
		return r
	}
	return retry.Result{StopReason: retry.StopMaxRetries}
}

func okResult(sql string, rows int) retry.Result {
	r := make([][]any, rows)
	for i := range r {
		r[i] = []any{int64(i), "CA"}
	}
	return retry.Result{
		OK:         true,
		StopReason: retry.StopSuccess,
		FinalSQL:   sql,
		Execution:  &executor.Result{Columns: []string{"id", "state"}, Rows: r, RowCount: rows},
		Attempts:   []retry.Attempt{{Number: 1, ValidationOK: true}},
	}
}

func TestRunAll_PreservesOrder(t *testing.T) {
	fp := &fakePipeline{results: map[string]retry.Result{
		"q1": okResult("SELECT 1 LIMIT 200", 1),
		"q2": okResult("SELECT 2 LIMIT 200", 2),
		"q3": okResult("SELECT 3 LIMIT 200", 3),
	}}
	r := NewRunner(fp, 2)

	items := []Item{
		{ID: "a", Question: "q1"},
		{ID: "b", Question: "q2"},
		{ID: "c", Question: "q3"},
	}
	results, err := r.RunAll(context.Background(), items)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d", len(results))
	}
	for i, want := range []string{"a", "b", "c"} {
		if results[i].Item.ID != want {
			t.Errorf("results[%d].Item.ID = %q, want %q", i, results[i].Item.ID, want)
		}
	}
	if results[1].Result.Execution.RowCount != 2 {
		t.Errorf("q2 rows = %d", results[1].Result.Execution.RowCount)
	}
	if got := fp.peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", got)
	}
}

func TestSummarize(t *testing.T) {
	results := []ItemResult{
		{Result: okResult("SELECT 1", 1)},
		{Result: retry.Result{StopReason: retry.StopMaxRetries, Attempts: []retry.Attempt{{Number: 1}, {Number: 2}}}},
		{Result: retry.Result{StopReason: retry.StopOscillation, Attempts: []retry.Attempt{{Number: 1}}}},
	}
	s := Summarize(results)
	if s.Total != 3 || s.Succeeded != 1 || s.Failed != 2 {
		t.Errorf("summary = %+v", s)
	}
	if s.StopReasons[retry.StopMaxRetries] != 1 || s.StopReasons[retry.StopOscillation] != 1 {
		t.Errorf("stop reasons = %v", s.StopReasons)
	}
	if s.Attempts != 4 {
		t.Errorf("attempts = %d, want 4", s.Attempts)
	}
}

func TestSummarizeResult(t *testing.T) {
	res := &executor.Result{
		Columns: []string{"state", "c"},
		Rows: [][]any{
			{"CA", int64(12)},
			{nil, int64(3)},
			{"AZ", int64(40)},
		},
	}
	cols := SummarizeResult(res)
	if len(cols) != 2 {
		t.Fatalf("columns = %d, want 2", len(cols))
	}

	state := cols[0]
	if state.Name != "state" || state.NullCount != 1 || state.Min != "AZ" || state.Max != "CA" {
		t.Errorf("state summary = %+v", state)
	}

	c := cols[1]
	if c.NullCount != 0 || c.Min != "3" || c.Max != "40" {
		t.Errorf("count summary = %+v (numeric columns compare numerically)", c)
	}

	if got := SummarizeResult(nil); got != nil {
		t.Errorf("SummarizeResult(nil) = %v, want nil", got)
	}
}

func TestRenderColumnSummary(t *testing.T) {
	got := RenderColumnSummary([]ColumnSummary{
		{Name: "state", NullCount: 1, Min: "AZ", Max: "CA"},
		{Name: "empty", NullCount: 3},
	})
	if !strings.Contains(got, "- `state`: 1 nulls, min=AZ, max=CA") {
		t.Errorf("missing state line:\n%s", got)
	}
	if !strings.Contains(got, "- `empty`: 3 nulls\n") {
		t.Errorf("all-null column keeps min/max out:\n%s", got)
	}
}

func TestRenderTable(t *testing.T) {
	res := &executor.Result{
		Columns: []string{"state", "c"},
		Rows:    [][]any{{"CA", int64(12)}, {"with|pipe", int64(3)}, {nil, int64(0)}},
	}
	got := RenderTable(res, 10)

	for _, want := range []string{
		"| state | c |",
		"| --- | --- |",
		"| CA | 12 |",
		"with\\|pipe",
		"| NULL | 0 |",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("table missing %q:\n%s", want, got)
		}
	}
}

func TestRenderTable_Truncation(t *testing.T) {
	rows := make([][]any, 25)
	for i := range rows {
		rows[i] = []any{int64(i)}
	}
	got := RenderTable(&executor.Result{Columns: []string{"n"}, Rows: rows}, 20)
	if !strings.Contains(got, "_20 of 25 rows shown_") {
		t.Errorf("missing truncation note:\n%s", got)
	}
}

func TestRenderReport(t *testing.T) {
	results := []ItemResult{
		{Item: Item{Title: "States", Question: "how many states?"}, Result: okResult("SELECT COUNT(*) FROM s LIMIT 200", 1)},
		{Item: Item{Question: "impossible"}, Result: retry.Result{
			StopReason: retry.StopMaxRetries,
			Attempts: []retry.Attempt{{
				Number:            1,
				ValidationReasons: []string{"not_select_or_with"},
				Feedback:          &retry.Feedback{Category: retry.CategoryValidation, Message: "SQL failed validation rules."},
			}},
		}},
	}
	got := RenderReport("Smoke Batch", results)

	for _, want := range []string{
		"# Smoke Batch",
		"**2 questions: 1 succeeded, 1 failed**",
		"## States",
		"```sql\nSELECT COUNT(*) FROM s LIMIT 200\n```",
		"## impossible",
		"**Failed** (max_retries)",
		"validation: SQL failed validation rules.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestWriteReportAndLoadItems(t *testing.T) {
	dir := t.TempDir()
	results := []ItemResult{{Item: Item{ID: "a", Question: "q"}, Result: okResult("SELECT 1 LIMIT 200", 1)}}

	if err := WriteReport(dir, "T", results); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}

	md, err := os.ReadFile(filepath.Join(dir, "report.md"))
	if err != nil {
		t.Fatalf("reading report.md: %v", err)
	}
	if !strings.Contains(string(md), "# T") {
		t.Errorf("report.md missing title")
	}

	raw, err := os.ReadFile(filepath.Join(dir, "run_log.json"))
	if err != nil {
		t.Fatalf("reading run_log.json: %v", err)
	}
	var log struct {
		Title   string       `json:"title"`
		Summary Summary      `json:"summary"`
		Results []ItemResult `json:"results"`
	}
	if err := json.Unmarshal(raw, &log); err != nil {
		t.Fatalf("run_log.json invalid: %v", err)
	}
	if log.Title != "T" || log.Summary.Total != 1 || len(log.Results) != 1 {
		t.Errorf("log = %+v", log)
	}

	// LoadItems round-trips both accepted shapes.
	qpath := filepath.Join(dir, "questions.json")
	if err := os.WriteFile(qpath, []byte(`[{"id":"a","question":"q"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	items, err := LoadItems(qpath)
	if err != nil || len(items) != 1 || items[0].ID != "a" {
		t.Errorf("LoadItems(array) = %v, %v", items, err)
	}

	if err := os.WriteFile(qpath, []byte(`{"items":[{"id":"b","question":"q2"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	items, err = LoadItems(qpath)
	if err != nil || len(items) != 1 || items[0].ID != "b" {
		t.Errorf("LoadItems(object) = %v, %v", items, err)
	}
}
