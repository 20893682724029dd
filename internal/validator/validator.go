// Package validator decides whether candidate SQL is admissible under a
// policy. Checks are substring and prefix scans over the surface syntax, not
// a SQL parse: the restricted dialect (one read-only SELECT) makes that an
// auditable trust boundary, and the executor's read-only connection plus
// row/time bounds backstop anything the scan cannot catch.
package validator

import (
	"regexp"
	"strings"

	"github.com/shuvo-iitkgp/data-query-copilot/internal/policy"
)

// Reason codes reported in a Decision.
const (
	ReasonEmptySQL          = "empty_sql"
	ReasonContainsSemicolon = "contains_semicolon"
	ReasonContainsComment   = "contains_comment_syntax"
	ReasonNotSelect         = "not_select"
	ReasonNotSelectOrWith   = "not_select_or_with"
	ReasonSelectStar        = "select_star_disallowed"

	// forbiddenKeywordPrefix is followed by the offending keyword,
	// e.g. "forbidden_keyword:DELETE".
	forbiddenKeywordPrefix = "forbidden_keyword:"
)

var (
	startsWithSelectRE = regexp.MustCompile(`(?i)^\s*SELECT\b`)
	startsWithWithRE   = regexp.MustCompile(`(?i)^\s*WITH\b`)
	selectStarRE       = regexp.MustCompile(`(?i)^\s*SELECT\s+\*`)
)

// commentMarkers cover line comments and block comment open/close.
var commentMarkers = []string{"--", "/*", "*/"}

// Decision is the outcome of validating one candidate statement. Reasons are
// additive: every violated rule is recorded, in rule order, so feedback to
// the generator names all problems at once.
type Decision struct {
	OK      bool
	Reasons []string
}

// ForbiddenKeywordReason builds the reason code for a matched keyword.
func ForbiddenKeywordReason(keyword string) string {
	return forbiddenKeywordPrefix + keyword
}

// Validate checks raw candidate SQL against the policy. It is pure and safe
// for concurrent use without synchronization. Empty or whitespace-only input
// short-circuits with empty_sql; otherwise every enabled rule is evaluated
// independently and all violations accumulate.
func Validate(raw string, p policy.Policy) Decision {
	sql := strings.TrimSpace(raw)
	if sql == "" {
		return Decision{Reasons: []string{ReasonEmptySQL}}
	}

	var reasons []string

	// 1. Semicolons are the multi-statement vector.
	if p.DisallowSemicolons && strings.Contains(sql, ";") {
		reasons = append(reasons, ReasonContainsSemicolon)
	}

	// 2. Comment syntax can hide payloads. Reported once regardless of how
	// many markers match.
	if p.DisallowComments {
		for _, m := range commentMarkers {
			if strings.Contains(sql, m) {
				reasons = append(reasons, ReasonContainsComment)
				break
			}
		}
	}

	// 3. Statement must begin with SELECT, or WITH when CTEs are allowed.
	if p.AllowOnlySelect {
		if p.DisallowWith {
			if !startsWithSelectRE.MatchString(sql) {
				reasons = append(reasons, ReasonNotSelect)
			}
		} else if !startsWithSelectRE.MatchString(sql) && !startsWithWithRE.MatchString(sql) {
			reasons = append(reasons, ReasonNotSelectOrWith)
		}
	}

	// 4. Forbidden keywords anywhere in the text. Every match is reported.
	if p.DisallowWrites || p.DisallowPragmaAttach {
		upper := strings.ToUpper(sql)
		for _, kw := range policy.ForbiddenKeywords {
			if strings.Contains(upper, kw) {
				reasons = append(reasons, ForbiddenKeywordReason(kw))
			}
		}
	}

	// 5. Optional SELECT * block.
	if p.DisallowSelectStar && selectStarRE.MatchString(sql) {
		reasons = append(reasons, ReasonSelectStar)
	}

	return Decision{OK: len(reasons) == 0, Reasons: reasons}
}
