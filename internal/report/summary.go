package report

import (
	"fmt"

	"github.com/shuvo-iitkgp/data-query-copilot/internal/executor"
)

// Summary aggregates batch outcomes by stop reason.
type Summary struct {
	Total       int            `json:"total"`
	Succeeded   int            `json:"succeeded"`
	Failed      int            `json:"failed"`
	StopReasons map[string]int `json:"stop_reasons"`
	Attempts    int            `json:"attempts"`
}

// Summarize computes batch totals.
func Summarize(results []ItemResult) Summary {
	s := Summary{Total: len(results), StopReasons: make(map[string]int)}
	for _, r := range results {
		if r.Result.OK {
			s.Succeeded++
		} else {
			s.Failed++
		}
		s.StopReasons[r.Result.StopReason]++
		s.Attempts += len(r.Result.Attempts)
	}
	return s
}

// ColumnSummary describes one result column over the returned rows.
type ColumnSummary struct {
	Name      string `json:"name"`
	NullCount int    `json:"null_count"`
	Min       string `json:"min,omitempty"`
	Max       string `json:"max,omitempty"`
}

// SummarizeResult computes per-column null counts and min/max over the rows
// a query actually returned, not the underlying table. Numeric columns
// compare numerically; everything else compares on its string form.
func SummarizeResult(res *executor.Result) []ColumnSummary {
	if res == nil || len(res.Columns) == 0 {
		return nil
	}

	out := make([]ColumnSummary, len(res.Columns))
	for i, name := range res.Columns {
		out[i].Name = name
		var minV, maxV any
		for _, row := range res.Rows {
			if i >= len(row) {
				continue
			}
			v := row[i]
			if v == nil {
				out[i].NullCount++
				continue
			}
			if minV == nil || lessValue(v, minV) {
				minV = v
			}
			if maxV == nil || lessValue(maxV, v) {
				maxV = v
			}
		}
		if minV != nil {
			out[i].Min = formatCell(minV)
			out[i].Max = formatCell(maxV)
		}
	}
	return out
}

func lessValue(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af < bf
	}
	return fmt.Sprintf("%v", a) < fmt.Sprintf("%v", b)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case int:
		return float64(t), true
	default:
		return 0, false
	}
}
