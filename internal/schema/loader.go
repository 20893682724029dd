// Package schema introspects a SQLite database into a deterministic,
// versioned snapshot used both for prompt construction and for change
// detection across runs.
package schema

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	_ "modernc.org/sqlite"
)

// Column describes one table column as reported by PRAGMA table_info.
type Column struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	NotNull    bool   `json:"not_null"`
	Default    string `json:"default,omitempty"`
	PrimaryKey bool   `json:"primary_key"`
}

// ForeignKey describes one outgoing reference.
type ForeignKey struct {
	Column    string `json:"column"`
	RefTable  string `json:"ref_table"`
	RefColumn string `json:"ref_column"`
}

// ColumnStats carries optional per-column profile numbers. Only populated
// when stats collection is requested; pruned first when the prompt
// serialization runs out of space.
type ColumnStats struct {
	NullCount int64  `json:"null_count"`
	Min       string `json:"min,omitempty"`
	Max       string `json:"max,omitempty"`
}

// Table is one user table with columns and foreign keys in deterministic
// order.
type Table struct {
	Name        string                 `json:"name"`
	Columns     []Column               `json:"columns"`
	ForeignKeys []ForeignKey           `json:"foreign_keys,omitempty"`
	RowCount    int64                  `json:"row_count,omitempty"`
	Stats       map[string]ColumnStats `json:"stats,omitempty"`
}

// Schema is a full snapshot. Version is a stable content hash: two loads of
// an unchanged database produce the same Version regardless of load order.
type Schema struct {
	Dialect string  `json:"dialect"`
	Tables  []Table `json:"tables"`
	Version string  `json:"version"`
}

// LoadOptions controls optional profile collection.
type LoadOptions struct {
	// WithRowCounts runs COUNT(*) per table.
	WithRowCounts bool
	// WithColumnStats additionally collects null counts and min/max per
	// column. Implies WithRowCounts.
	WithColumnStats bool
}

// Load introspects the SQLite database at dbPath. Internal sqlite_* tables
// are skipped. Tables, columns within a table (by declared order), and
// foreign keys are emitted in deterministic order so the Version hash is
// stable.
func Load(ctx context.Context, dbPath string, opts LoadOptions) (*Schema, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", dbPath))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	names, err := listTables(ctx, db)
	if err != nil {
		return nil, err
	}

	s := &Schema{Dialect: "sqlite", Tables: make([]Table, 0, len(names))}
	for _, name := range names {
		tbl, err := loadTable(ctx, db, name, opts)
		if err != nil {
			return nil, fmt.Errorf("introspecting table %s: %w", name, err)
		}
		s.Tables = append(s.Tables, tbl)
	}

	v, err := hashSchema(s)
	if err != nil {
		return nil, err
	}
	s.Version = v
	return s, nil
}

func listTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func loadTable(ctx context.Context, db *sql.DB, name string, opts LoadOptions) (Table, error) {
	tbl := Table{Name: name}

	cols, err := loadColumns(ctx, db, name)
	if err != nil {
		return tbl, err
	}
	tbl.Columns = cols

	fks, err := loadForeignKeys(ctx, db, name)
	if err != nil {
		return tbl, err
	}
	tbl.ForeignKeys = fks

	if opts.WithRowCounts || opts.WithColumnStats {
		var count int64
		// Identifier comes from sqlite_master, not user input.
		q := fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, name)
		if err := db.QueryRowContext(ctx, q).Scan(&count); err != nil {
			return tbl, fmt.Errorf("counting rows: %w", err)
		}
		tbl.RowCount = count
	}

	if opts.WithColumnStats {
		stats := make(map[string]ColumnStats, len(cols))
		for _, c := range cols {
			st, err := loadColumnStats(ctx, db, name, c.Name)
			if err != nil {
				return tbl, err
			}
			stats[c.Name] = st
		}
		tbl.Stats = stats
	}

	return tbl, nil
}

func loadColumns(ctx context.Context, db *sql.DB, table string) ([]Column, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info("%s")`, table))
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scanning column: %w", err)
		}
		cols = append(cols, Column{
			Name:       name,
			Type:       typ,
			NotNull:    notNull != 0,
			Default:    dflt.String,
			PrimaryKey: pk != 0,
		})
	}
	return cols, rows.Err()
}

func loadForeignKeys(ctx context.Context, db *sql.DB, table string) ([]ForeignKey, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA foreign_key_list("%s")`, table))
	if err != nil {
		return nil, fmt.Errorf("reading foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []ForeignKey
	for rows.Next() {
		var (
			id, seq          int
			refTable         string
			from, to         sql.NullString
			onUpdate, onDel  string
			match            string
		)
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDel, &match); err != nil {
			return nil, fmt.Errorf("scanning foreign key: %w", err)
		}
		fks = append(fks, ForeignKey{
			Column:    from.String,
			RefTable:  refTable,
			RefColumn: to.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(fks, func(i, j int) bool {
		if fks[i].Column != fks[j].Column {
			return fks[i].Column < fks[j].Column
		}
		return fks[i].RefTable < fks[j].RefTable
	})
	return fks, nil
}

func loadColumnStats(ctx context.Context, db *sql.DB, table, column string) (ColumnStats, error) {
	var st ColumnStats
	q := fmt.Sprintf(
		`SELECT COUNT(*) - COUNT("%[2]s"), COALESCE(MIN("%[2]s"), ''), COALESCE(MAX("%[2]s"), '') FROM "%[1]s"`,
		table, column)
	if err := db.QueryRowContext(ctx, q).Scan(&st.NullCount, &st.Min, &st.Max); err != nil {
		return st, fmt.Errorf("profiling %s.%s: %w", table, column, err)
	}
	return st, nil
}

// hashSchema produces a stable hex digest of the structural parts of the
// snapshot. Stats and row counts are excluded so profiling does not change
// the version; JSON key order is deterministic for struct fields.
func hashSchema(s *Schema) (string, error) {
	type hashTable struct {
		Name        string       `json:"name"`
		Columns     []Column     `json:"columns"`
		ForeignKeys []ForeignKey `json:"foreign_keys,omitempty"`
	}
	ht := make([]hashTable, len(s.Tables))
	for i, t := range s.Tables {
		ht[i] = hashTable{Name: t.Name, Columns: t.Columns, ForeignKeys: t.ForeignKeys}
	}
	b, err := json.Marshal(struct {
		Dialect string      `json:"dialect"`
		Tables  []hashTable `json:"tables"`
	}{s.Dialect, ht})
	if err != nil {
		return "", fmt.Errorf("hashing schema: %w", err)
	}
	sum := sha256.Sum256(b)
	return fmt.Sprintf("%x", sum), nil
}
