// Package policy defines the immutable ruleset that governs what generated
// SQL is admissible and how result sizes are bounded. A single Policy value
// is constructed at startup and passed explicitly to every component that
// needs it; there is no ambient default.
package policy

// Policy holds every safety and rewrite threshold. Values are read-only
// after construction and may be shared by reference across concurrent runs.
type Policy struct {
	// Hard guarantees.
	AllowOnlySelect     bool
	SingleStatementOnly bool
	DisallowSemicolons  bool

	// Safety blocks.
	DisallowComments     bool // -- and /* */
	DisallowPragmaAttach bool
	DisallowWrites       bool

	// Optional tightening.
	DisallowWith       bool
	DisallowSelectStar bool

	// Limit policy, enforced by the rewriter.
	DefaultLimit int
	MaxLimit     int
}

// Default returns the standard ruleset: a single read-only SELECT (CTEs
// allowed), no comments, no escape hatches, LIMIT 200 appended when missing
// and capped at 1000.
func Default() Policy {
	return Policy{
		AllowOnlySelect:      true,
		SingleStatementOnly:  true,
		DisallowSemicolons:   true,
		DisallowComments:     true,
		DisallowPragmaAttach: true,
		DisallowWrites:       true,
		DefaultLimit:         200,
		MaxLimit:             1000,
	}
}

// ForbiddenKeywords are rejected anywhere in a candidate statement,
// case-insensitive. The set covers write and schema-change verbs,
// transaction control, and the ATTACH/PRAGMA escape hatches.
var ForbiddenKeywords = []string{
	// Writes / schema changes.
	"INSERT", "UPDATE", "DELETE", "REPLACE", "UPSERT",
	"CREATE", "ALTER", "DROP", "TRUNCATE",
	// Transaction / admin.
	"BEGIN", "COMMIT", "ROLLBACK", "SAVEPOINT", "RELEASE",
	"VACUUM", "REINDEX",
	// Escape hatches.
	"ATTACH", "DETACH", "PRAGMA",
}
