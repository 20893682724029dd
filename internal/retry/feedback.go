package retry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shuvo-iitkgp/data-query-copilot/internal/executor"
)

// Failure categories carried in feedback and attempt records.
const (
	CategoryValidation  = "validation"
	CategorySQLite      = "sqlite"
	CategoryTimeout     = "timeout"
	CategoryRowLimit    = "row_limit"
	CategoryOscillation = "oscillation"
	CategoryUnknown     = "unknown"
)

// Feedback describes one failure in the structured form handed back to the
// generator on the next attempt.
type Feedback struct {
	Category string         `json:"category"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}

// feedbackEnvelope is the full payload serialized into the retry prompt.
type feedbackEnvelope struct {
	Attempt     int      `json:"attempt"`
	PreviousSQL string   `json:"previous_sql"`
	Error       Feedback `json:"error"`
	Instruction string   `json:"instruction"`
}

const retryInstruction = "Fix the SQL. Use only schema columns. Output SQL only."

// feedbackFromError classifies an execution error into a Feedback. Tagged
// executor errors map to their category; anything else is unknown.
func feedbackFromError(err error) Feedback {
	var execErr *executor.Error
	if errors.As(err, &execErr) {
		var cat string
		switch execErr.Kind {
		case executor.KindTimeout:
			cat = CategoryTimeout
		case executor.KindRowLimit:
			cat = CategoryRowLimit
		default:
			cat = CategorySQLite
		}
		return Feedback{Category: cat, Message: execErr.Message}
	}
	return Feedback{Category: CategoryUnknown, Message: err.Error()}
}

// formatErrorContext serializes the previous failure for the next prompt.
// Attempt 1 has no previous failure and gets an empty string. Struct field
// order is fixed and map keys are emitted sorted, so the same failure always
// produces byte-identical feedback.
func formatErrorContext(attempt int, previousSQL string, fb *Feedback) string {
	if fb == nil {
		return ""
	}
	env := feedbackEnvelope{
		Attempt:     attempt,
		PreviousSQL: previousSQL,
		Error:       *fb,
		Instruction: retryInstruction,
	}
	b, err := json.Marshal(env)
	if err != nil {
		// Details values come from our own code; marshal cannot realistically
		// fail, but degrade to a minimal context rather than dropping it.
		return fmt.Sprintf(`{"attempt":%d,"error":{"category":%q}}`, attempt, fb.Category)
	}
	return string(b)
}
