// Package generator turns a natural-language question plus schema context
// into candidate SQL. It owns prompt construction and the extraction of a
// bare statement from free-form model output; it never validates or executes
// what it produces.
package generator

import "context"

// Generation is one candidate produced by a Generator.
type Generation struct {
	// Raw is the unprocessed model output.
	Raw string
	// SQL is the extracted candidate statement.
	SQL string
	// Prompt is the exact prompt sent, kept for audit records.
	Prompt string
	// Model identifies which model produced the candidate.
	Model string
	// LatencyMs is the wall-clock generation time.
	LatencyMs int64
}

// Generator produces a SQL candidate for a question. errorContext carries
// serialized feedback from the previous failed attempt and is empty on the
// first attempt.
type Generator interface {
	GenerateSQL(ctx context.Context, question, errorContext string) (Generation, error)
}
