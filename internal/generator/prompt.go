package generator

import (
	"fmt"
	"strings"

	"github.com/shuvo-iitkgp/data-query-copilot/internal/policy"
)

// BuildPrompt assembles the full generation prompt: hard rules derived from
// the policy, the schema serialization, the user question, and, on retry
// attempts, the feedback block from the previous failure. The trailing
// "SQL:" line anchors the model to emit a bare statement.
func BuildPrompt(schemaBlob, question string, p policy.Policy, errorContext string) string {
	var b strings.Builder

	b.WriteString("You are a SQL generator for a SQLite database.\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Output exactly one SELECT statement.\n")
	b.WriteString("- No semicolons. No comments. No explanations.\n")
	b.WriteString("- Never write, modify, or inspect anything outside the schema below.\n")
	b.WriteString("- Use only tables and columns from the schema.\n")
	fmt.Fprintf(&b, "- Include a LIMIT clause of at most %d rows.\n", p.DefaultLimit)
	if p.DisallowSelectStar {
		b.WriteString("- Never use SELECT *; list columns explicitly.\n")
	}
	if p.DisallowWith {
		b.WriteString("- Do not use WITH clauses.\n")
	}

	b.WriteString("\nSchema:\n")
	b.WriteString(schemaBlob)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteByte('\n')

	if errorContext != "" {
		b.WriteString("\nYour previous attempt failed:\n")
		b.WriteString(errorContext)
		b.WriteByte('\n')
	}

	b.WriteString("\nSQL:")
	return b.String()
}
