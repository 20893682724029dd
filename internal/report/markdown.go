package report

import (
	"fmt"
	"strings"

	"github.com/shuvo-iitkgp/data-query-copilot/internal/executor"
)

// maxReportRows bounds how many result rows a report section prints.
const maxReportRows = 20

// RenderTable renders an execution result as a markdown pipe table, capped
// at maxRows with a truncation note.
func RenderTable(res *executor.Result, maxRows int) string {
	if res == nil || len(res.Columns) == 0 {
		return "_no rows_\n"
	}
	if maxRows <= 0 {
		maxRows = maxReportRows
	}

	var b strings.Builder
	b.WriteString("| ")
	b.WriteString(strings.Join(res.Columns, " | "))
	b.WriteString(" |\n|")
	for range res.Columns {
		b.WriteString(" --- |")
	}
	b.WriteByte('\n')

	n := len(res.Rows)
	if n > maxRows {
		n = maxRows
	}
	for _, row := range res.Rows[:n] {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatCell(v)
		}
		fmt.Fprintf(&b, "| %s |\n", strings.Join(cells, " | "))
	}
	if len(res.Rows) > maxRows {
		fmt.Fprintf(&b, "\n_%d of %d rows shown_\n", maxRows, len(res.Rows))
	}
	return b.String()
}

func formatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return escapeCell(string(t))
	case string:
		return escapeCell(t)
	default:
		return escapeCell(fmt.Sprintf("%v", t))
	}
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

// RenderColumnSummary renders per-column stats as a bullet list.
func RenderColumnSummary(cols []ColumnSummary) string {
	if len(cols) == 0 {
		return ""
	}
	var b strings.Builder
	for _, c := range cols {
		fmt.Fprintf(&b, "- `%s`: %d nulls", c.Name, c.NullCount)
		if c.Min != "" {
			fmt.Fprintf(&b, ", min=%s, max=%s", c.Min, c.Max)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// RenderSummary renders the batch totals block.
func RenderSummary(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%d questions: %d succeeded, %d failed** (%d attempts total)\n\n", s.Total, s.Succeeded, s.Failed, s.Attempts)
	return b.String()
}

// RenderReport assembles the full markdown document: summary first, then one
// section per question with the final SQL, the attempt trail, and the result
// table.
func RenderReport(title string, results []ItemResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	b.WriteString(RenderSummary(Summarize(results)))

	for _, r := range results {
		heading := r.Item.Title
		if heading == "" {
			heading = r.Item.Question
		}
		fmt.Fprintf(&b, "## %s\n\n", heading)
		fmt.Fprintf(&b, "**Question:** %s\n\n", r.Item.Question)

		if r.Result.OK {
			fmt.Fprintf(&b, "```sql\n%s\n```\n\n", r.Result.FinalSQL)
			b.WriteString(RenderTable(r.Result.Execution, maxReportRows))
			if cs := RenderColumnSummary(SummarizeResult(r.Result.Execution)); cs != "" {
				b.WriteString("\n")
				b.WriteString(cs)
			}
		} else {
			fmt.Fprintf(&b, "**Failed** (%s)\n", r.Result.StopReason)
		}

		if n := len(r.Result.Attempts); n > 1 || !r.Result.OK {
			fmt.Fprintf(&b, "\n<details><summary>%d attempts</summary>\n\n", n)
			for _, a := range r.Result.Attempts {
				fmt.Fprintf(&b, "- attempt %d:", a.Number)
				if a.ValidationOK && a.Feedback == nil {
					b.WriteString(" ok")
				} else if a.Feedback != nil {
					fmt.Fprintf(&b, " %s: %s", a.Feedback.Category, a.Feedback.Message)
				} else {
					fmt.Fprintf(&b, " rejected: %s", strings.Join(a.ValidationReasons, ", "))
				}
				b.WriteByte('\n')
			}
			b.WriteString("\n</details>\n")
		}
		b.WriteByte('\n')
	}
	return b.String()
}
