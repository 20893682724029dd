// Package audit persists every run and attempt so past generations can be
// inspected long after the model output is gone.
package audit

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/shuvo-iitkgp/data-query-copilot/internal/retry"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the audit SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the audit database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "dqc.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			return fmt.Errorf("parsing migration version from %q: %w", entry.Name(), err)
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

// FromResult converts a retry result into a persistable Run.
func FromResult(id, question, schemaVersion string, res retry.Result) Run {
	run := Run{
		ID:            id,
		CreatedAt:     time.Now().UTC(),
		Question:      question,
		OK:            res.OK,
		StopReason:    res.StopReason,
		FinalSQL:      res.FinalSQL,
		AttemptCount:  len(res.Attempts),
		SchemaVersion: schemaVersion,
	}
	if res.Execution != nil {
		run.RowCount = res.Execution.RowCount
	}
	for _, a := range res.Attempts {
		reasons, _ := json.Marshal(a.ValidationReasons)
		row := AttemptRow{
			RunID:             id,
			Number:            a.Number,
			RawOutput:         a.RawOutput,
			ExtractedSQL:      a.ExtractedSQL,
			FinalSQL:          a.FinalSQL,
			ValidationOK:      a.ValidationOK,
			ValidationReasons: string(reasons),
			LatencyMs:         a.LatencyMs,
		}
		if a.Feedback != nil {
			row.FeedbackCategory = a.Feedback.Category
			row.FeedbackMessage = a.Feedback.Message
		}
		run.Attempts = append(run.Attempts, row)
	}
	return run
}

// SaveRun persists a run and its attempts in one transaction.
func (s *Store) SaveRun(run Run) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning save transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (id, created_at, question, ok, stop_reason, final_sql, row_count, attempt_count, schema_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UTC().Format(time.RFC3339), run.Question, boolToInt(run.OK),
		run.StopReason, run.FinalSQL, run.RowCount, run.AttemptCount, run.SchemaVersion,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	for _, a := range run.Attempts {
		_, err = tx.Exec(`
			INSERT INTO attempts (run_id, number, raw_output, extracted_sql, final_sql, validation_ok, validation_reasons, feedback_category, feedback_message, latency_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.RunID, a.Number, a.RawOutput, a.ExtractedSQL, a.FinalSQL, boolToInt(a.ValidationOK),
			a.ValidationReasons, a.FeedbackCategory, a.FeedbackMessage, a.LatencyMs,
		)
		if err != nil {
			return fmt.Errorf("inserting attempt %d: %w", a.Number, err)
		}
	}

	return tx.Commit()
}

// GetRun loads one run with its attempts.
func (s *Store) GetRun(id string) (Run, error) {
	var run Run
	var createdAt string
	var ok int
	err := s.db.QueryRow(`
		SELECT id, created_at, question, ok, stop_reason, final_sql, row_count, attempt_count, schema_version
		FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &createdAt, &run.Question, &ok, &run.StopReason, &run.FinalSQL, &run.RowCount, &run.AttemptCount, &run.SchemaVersion)
	if err == sql.ErrNoRows {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, err
	}
	run.OK = ok != 0
	if run.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Run{}, fmt.Errorf("parsing created_at: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT run_id, number, raw_output, extracted_sql, final_sql, validation_ok, validation_reasons, feedback_category, feedback_message, latency_ms
		FROM attempts WHERE run_id = ? ORDER BY number ASC`, id,
	)
	if err != nil {
		return Run{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var a AttemptRow
		var vok int
		if err := rows.Scan(&a.RunID, &a.Number, &a.RawOutput, &a.ExtractedSQL, &a.FinalSQL, &vok, &a.ValidationReasons, &a.FeedbackCategory, &a.FeedbackMessage, &a.LatencyMs); err != nil {
			return Run{}, err
		}
		a.ValidationOK = vok != 0
		run.Attempts = append(run.Attempts, a)
	}
	return run, rows.Err()
}

// ListRuns returns the most recent runs without their attempts.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT id, created_at, question, ok, stop_reason, final_sql, row_count, attempt_count, schema_version
		FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Run
	for rows.Next() {
		var run Run
		var createdAt string
		var ok int
		if err := rows.Scan(&run.ID, &createdAt, &run.Question, &ok, &run.StopReason, &run.FinalSQL, &run.RowCount, &run.AttemptCount, &run.SchemaVersion); err != nil {
			return nil, err
		}
		run.OK = ok != 0
		if run.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, run)
	}
	return results, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
