// Package retry drives the generate, validate, rewrite, execute loop. The
// controller owns attempt accounting, oscillation detection, and the
// feedback channel back to the generator; it is the only component that
// sees the whole pipeline.
package retry

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shuvo-iitkgp/data-query-copilot/internal/executor"
	"github.com/shuvo-iitkgp/data-query-copilot/internal/generator"
	"github.com/shuvo-iitkgp/data-query-copilot/internal/policy"
	"github.com/shuvo-iitkgp/data-query-copilot/internal/rewriter"
	"github.com/shuvo-iitkgp/data-query-copilot/internal/validator"
)

// Stop reasons recorded in a Result.
const (
	StopSuccess     = "success"
	StopMaxRetries  = "max_retries"
	StopOscillation = "oscillation"
	// Reserved for future deadend analysis; never emitted today.
	StopValidationDeadend = "validation_deadend"
	StopExecutionDeadend  = "execution_deadend"
)

// Attempt records everything observed during one loop iteration.
type Attempt struct {
	Number            int       `json:"number"`
	RawOutput         string    `json:"raw_output"`
	ExtractedSQL      string    `json:"extracted_sql"`
	FinalSQL          string    `json:"final_sql,omitempty"`
	AppliedTransforms []string  `json:"applied_transforms,omitempty"`
	ValidationOK      bool      `json:"validation_ok"`
	ValidationReasons []string  `json:"validation_reasons,omitempty"`
	Feedback          *Feedback `json:"feedback,omitempty"`
	LatencyMs         int64     `json:"latency_ms"`
}

// Result is the outcome of one full Run.
type Result struct {
	OK         bool             `json:"ok"`
	StopReason string           `json:"stop_reason"`
	FinalSQL   string           `json:"final_sql,omitempty"`
	Execution  *executor.Result `json:"execution,omitempty"`
	Attempts   []Attempt        `json:"attempts"`
}

// QueryExecutor is the execution dependency of the controller. *executor.Executor
// satisfies it; tests substitute stubs.
type QueryExecutor interface {
	Execute(ctx context.Context, query string) (*executor.Result, error)
}

// Controller runs the retry loop with a fixed policy and attempt budget.
type Controller struct {
	generator    generator.Generator
	executor     QueryExecutor
	policy       policy.Policy
	maxAttempts  int
	stopOnRepeat bool
	logger       *slog.Logger
}

// New creates a Controller. maxAttempts below 1 is clamped to 1; a nil
// logger falls back to slog.Default.
func New(gen generator.Generator, exec QueryExecutor, p policy.Policy, maxAttempts int, stopOnRepeatSQL bool, logger *slog.Logger) *Controller {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		generator:    gen,
		executor:     exec,
		policy:       p,
		maxAttempts:  maxAttempts,
		stopOnRepeat: stopOnRepeatSQL,
		logger:       logger,
	}
}

// normalizeSQL collapses whitespace and uppercases so the oscillation check
// treats trivially reformatted statements as repeats. Only exact matches
// after normalization count; semantically equivalent but textually distinct
// statements do not.
func normalizeSQL(sql string) string {
	return strings.ToUpper(strings.Join(strings.Fields(sql), " "))
}

// Run executes the loop for one question until success, the attempt budget
// is exhausted, or the generator repeats itself.
func (c *Controller) Run(ctx context.Context, question string) Result {
	res := Result{StopReason: StopMaxRetries}

	seen := make(map[string]int, c.maxAttempts)
	var (
		lastSQL      string
		lastFeedback *Feedback
	)

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		errorContext := ""
		if lastFeedback != nil {
			errorContext = formatErrorContext(attempt-1, lastSQL, lastFeedback)
		}

		gen, err := c.generator.GenerateSQL(ctx, question, errorContext)
		if err != nil {
			// A generation failure burns the attempt and feeds back as an
			// unknown-category error.
			c.logger.Warn("generation failed", "attempt", attempt, "error", err)
			fb := Feedback{Category: CategoryUnknown, Message: err.Error()}
			res.Attempts = append(res.Attempts, Attempt{Number: attempt, Feedback: &fb})
			lastFeedback = &fb
			continue
		}

		att := Attempt{
			Number:       attempt,
			RawOutput:    gen.Raw,
			ExtractedSQL: gen.SQL,
			LatencyMs:    gen.LatencyMs,
		}

		// Oscillation check first: a repeated candidate means more feedback
		// cannot help, whatever its validity.
		if c.stopOnRepeat {
			key := normalizeSQL(gen.SQL)
			if prev, ok := seen[key]; ok {
				att.ValidationReasons = []string{"oscillation_detected"}
				att.Feedback = &Feedback{
					Category: CategoryOscillation,
					Message:  "Generator repeated a previous candidate.",
					Details:  map[string]any{"repeated_attempt": prev},
				}
				res.Attempts = append(res.Attempts, att)
				res.StopReason = StopOscillation
				c.logger.Info("run stopped", "reason", StopOscillation, "attempts", attempt)
				return res
			}
			seen[key] = attempt
		}

		dec := validator.Validate(gen.SQL, c.policy)
		att.ValidationOK = dec.OK
		att.ValidationReasons = dec.Reasons
		if !dec.OK {
			fb := Feedback{
				Category: CategoryValidation,
				Message:  "SQL failed validation rules.",
				Details:  map[string]any{"reasons": dec.Reasons},
			}
			att.Feedback = &fb
			res.Attempts = append(res.Attempts, att)
			lastSQL = gen.SQL
			lastFeedback = &fb
			c.logger.Info("attempt rejected", "attempt", attempt, "reasons", dec.Reasons)
			continue
		}

		rw := rewriter.Rewrite(gen.SQL, c.policy)
		att.FinalSQL = rw.SQL
		att.AppliedTransforms = rw.AppliedTransforms

		exec, err := c.executor.Execute(ctx, rw.SQL)
		if err != nil {
			fb := feedbackFromError(err)
			att.Feedback = &fb
			res.Attempts = append(res.Attempts, att)
			lastSQL = rw.SQL
			lastFeedback = &fb
			c.logger.Info("attempt failed", "attempt", attempt, "category", fb.Category, "error", fb.Message)
			continue
		}

		res.Attempts = append(res.Attempts, att)
		res.OK = true
		res.StopReason = StopSuccess
		res.FinalSQL = rw.SQL
		res.Execution = exec
		c.logger.Info("run succeeded", "attempts", attempt, "rows", exec.RowCount)
		return res
	}

	c.logger.Info("run stopped", "reason", res.StopReason, "attempts", len(res.Attempts))
	return res
}
