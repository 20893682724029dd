package schema

import (
	"fmt"
	"strings"
)

// SerializeForPrompt renders the snapshot as compact text for model prompts.
// Output is deterministic for a given schema. When maxChars > 0 and the full
// rendering would exceed it, stats lines are pruned first, then foreign key
// lines; the table and column skeleton is never dropped.
func SerializeForPrompt(s *Schema, maxChars int) string {
	full := render(s, true, true)
	if maxChars <= 0 || len(full) <= maxChars {
		return full
	}
	noStats := render(s, false, true)
	if len(noStats) <= maxChars {
		return noStats
	}
	return render(s, false, false)
}

func render(s *Schema, withStats, withFKs bool) string {
	var b strings.Builder
	for i, t := range s.Tables {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "TABLE %s", t.Name)
		if t.RowCount > 0 {
			fmt.Fprintf(&b, " (%d rows)", t.RowCount)
		}
		b.WriteByte('\n')

		for _, c := range t.Columns {
			fmt.Fprintf(&b, "  %s %s", c.Name, c.Type)
			if c.PrimaryKey {
				b.WriteString(" PRIMARY KEY")
			}
			if c.NotNull {
				b.WriteString(" NOT NULL")
			}
			if withStats && t.Stats != nil {
				if st, ok := t.Stats[c.Name]; ok {
					fmt.Fprintf(&b, "  [nulls=%d", st.NullCount)
					if st.Min != "" || st.Max != "" {
						fmt.Fprintf(&b, " min=%s max=%s", st.Min, st.Max)
					}
					b.WriteByte(']')
				}
			}
			b.WriteByte('\n')
		}

		if withFKs {
			for _, fk := range t.ForeignKeys {
				fmt.Fprintf(&b, "  FK %s -> %s.%s\n", fk.Column, fk.RefTable, fk.RefColumn)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
