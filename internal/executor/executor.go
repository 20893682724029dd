// Package executor runs validated, rewritten SQL against a SQLite database
// under hard resource bounds. It is the only component that touches external
// state: connections are read-only, rows are streamed and capped, and total
// wall-clock cost is bounded.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Kind classifies an execution failure so the retry controller can translate
// it into feedback with a plain switch instead of unwrapping driver errors.
type Kind string

const (
	// KindTimeout: total wall-clock cost exceeded the configured bound.
	KindTimeout Kind = "timeout"
	// KindRowLimit: the result set exceeded the configured row bound.
	KindRowLimit Kind = "row_limit"
	// KindSQLite: the engine rejected or failed the statement.
	KindSQLite Kind = "sqlite"
)

// Error is a tagged execution failure.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Result holds one successful execution: columns in result order (duplicates
// preserved), rows as ordered tuples of driver-typed scalars, and elapsed
// wall-clock time.
type Result struct {
	Columns         []string
	Rows            [][]any
	RowCount        int
	ExecutionTimeMs int64
}

// Executor executes statements against one SQLite file in read-only mode.
//
// Precondition: every statement passed to Execute must come from an
// immediately preceding successful validate + rewrite pass. The executor
// does not re-check this; the retry controller enforces the ordering.
type Executor struct {
	dbPath  string
	timeout time.Duration
	maxRows int
}

// New creates an Executor for the database at dbPath with the given
// wall-clock bound in milliseconds and maximum returned row count.
func New(dbPath string, timeoutMs int, maxRows int) *Executor {
	return &Executor{
		dbPath:  dbPath,
		timeout: time.Duration(timeoutMs) * time.Millisecond,
		maxRows: maxRows,
	}
}

func (e *Executor) readOnlyDSN() string {
	return fmt.Sprintf("file:%s?mode=ro", e.dbPath)
}

// Execute opens a fresh read-only connection for the duration of the call,
// streams rows up to the row bound, and applies the wall-clock bound after
// the read completes. A slow but successful query is still reported as a
// timeout failure: the bound is a guarantee on total attempt cost, not a
// preemptive cancellation.
func (e *Executor) Execute(ctx context.Context, query string) (*Result, error) {
	start := time.Now()

	db, err := sql.Open("sqlite", e.readOnlyDSN())
	if err != nil {
		return nil, &Error{Kind: KindSQLite, Message: fmt.Sprintf("opening database: %v", err)}
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	// Best-effort engine-level lock wait bound.
	busyMs := e.timeout.Milliseconds()
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", busyMs)); err != nil {
		return nil, &Error{Kind: KindSQLite, Message: fmt.Sprintf("setting busy timeout: %v", err)}
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, &Error{Kind: KindSQLite, Message: err.Error()}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &Error{Kind: KindSQLite, Message: fmt.Sprintf("reading columns: %v", err)}
	}

	// Stream one row at a time and abort as soon as the bound is crossed,
	// rather than draining the cursor. This bounds memory even for runaway
	// queries validation could not anticipate.
	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &Error{Kind: KindSQLite, Message: fmt.Sprintf("scanning row: %v", err)}
		}
		out = append(out, vals)
		if len(out) > e.maxRows {
			return nil, &Error{
				Kind:    KindRowLimit,
				Message: fmt.Sprintf("row_limit_exceeded: %d > %d", len(out), e.maxRows),
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, &Error{Kind: KindSQLite, Message: err.Error()}
	}

	elapsed := time.Since(start)
	if elapsed > e.timeout {
		return nil, &Error{
			Kind:    KindTimeout,
			Message: fmt.Sprintf("timeout_exceeded: %dms > %dms", elapsed.Milliseconds(), e.timeout.Milliseconds()),
		}
	}

	return &Result{
		Columns:         cols,
		Rows:            out,
		RowCount:        len(out),
		ExecutionTimeMs: elapsed.Milliseconds(),
	}, nil
}
