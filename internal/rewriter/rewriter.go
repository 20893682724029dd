// Package rewriter deterministically tightens validated SQL so that every
// statement reaching the executor carries a bounded LIMIT. Rewriting is
// purely textual; the validator has already constrained the input to a
// single non-destructive SELECT form.
package rewriter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shuvo-iitkgp/data-query-copilot/internal/policy"
)

// Transform tags recorded in a Result.
const (
	TransformAddedLimit  = "added_limit"
	TransformCappedLimit = "capped_limit"
)

var (
	limitRE      = regexp.MustCompile(`(?i)\bLIMIT\b`)
	limitValueRE = regexp.MustCompile(`(?i)\bLIMIT\s+(\d+)\b`)
)

// Result is the rewritten statement plus the ordered transforms applied.
// An empty AppliedTransforms means the input already satisfied the policy.
type Result struct {
	SQL               string
	AppliedTransforms []string
}

// Rewrite normalizes validated SQL against the limit policy. The input is
// assumed to have passed validation; no re-validation happens here.
//
// When no LIMIT keyword is present, " LIMIT {DefaultLimit}" is appended and
// that is the terminal transform for the call. When a LIMIT <integer> is
// present and exceeds MaxLimit, the first such literal is replaced with
// MaxLimit. A limit already within bounds is left untouched, so Rewrite is
// idempotent over its own output.
func Rewrite(validated string, p policy.Policy) Result {
	sql := strings.TrimSpace(validated)

	if !limitRE.MatchString(sql) {
		return Result{
			SQL:               fmt.Sprintf("%s LIMIT %d", sql, p.DefaultLimit),
			AppliedTransforms: []string{TransformAddedLimit},
		}
	}

	if m := limitValueRE.FindStringSubmatch(sql); m != nil {
		lim, err := strconv.Atoi(m[1])
		if err == nil && lim > p.MaxLimit {
			loc := limitValueRE.FindStringIndex(sql)
			sql = sql[:loc[0]] + fmt.Sprintf("LIMIT %d", p.MaxLimit) + sql[loc[1]:]
			return Result{SQL: sql, AppliedTransforms: []string{TransformCappedLimit}}
		}
	}

	return Result{SQL: sql}
}
