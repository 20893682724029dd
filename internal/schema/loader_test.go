package schema

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
)

func newFixtureDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open fixture: %v", err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE states (code TEXT PRIMARY KEY, name TEXT NOT NULL)`,
		`CREATE TABLE fuel_stations (
			id INTEGER PRIMARY KEY,
			state TEXT NOT NULL REFERENCES states(code),
			city TEXT,
			opened INTEGER DEFAULT 0
		)`,
		`INSERT INTO states VALUES ('CA','California'),('WA','Washington')`,
		`INSERT INTO fuel_stations (state, city) VALUES ('CA','Oakland'),('CA',NULL),('WA','Seattle')`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("seed fixture: %v", err)
		}
	}
	return path
}

func TestLoad(t *testing.T) {
	path := newFixtureDB(t)
	s, err := Load(context.Background(), path, LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if s.Dialect != "sqlite" {
		t.Errorf("Dialect = %q", s.Dialect)
	}
	if len(s.Tables) != 2 {
		t.Fatalf("tables = %d, want 2", len(s.Tables))
	}
	// Alphabetical table order.
	if s.Tables[0].Name != "fuel_stations" || s.Tables[1].Name != "states" {
		t.Errorf("table order = [%s %s]", s.Tables[0].Name, s.Tables[1].Name)
	}

	fs := s.Tables[0]
	if len(fs.Columns) != 4 {
		t.Fatalf("fuel_stations columns = %d, want 4", len(fs.Columns))
	}
	id := fs.Columns[0]
	if id.Name != "id" || !id.PrimaryKey {
		t.Errorf("first column = %+v, want primary key id", id)
	}
	state := fs.Columns[1]
	if state.Name != "state" || !state.NotNull || state.Type != "TEXT" {
		t.Errorf("state column = %+v", state)
	}
	if fs.Columns[3].Default != "0" {
		t.Errorf("opened default = %q, want 0", fs.Columns[3].Default)
	}

	if len(fs.ForeignKeys) != 1 {
		t.Fatalf("foreign keys = %d, want 1", len(fs.ForeignKeys))
	}
	fk := fs.ForeignKeys[0]
	if fk.Column != "state" || fk.RefTable != "states" || fk.RefColumn != "code" {
		t.Errorf("fk = %+v", fk)
	}

	if s.Version == "" || len(s.Version) != 64 {
		t.Errorf("Version = %q, want sha256 hex", s.Version)
	}
}

func TestLoad_VersionStableAcrossLoads(t *testing.T) {
	path := newFixtureDB(t)
	ctx := context.Background()

	a, err := Load(ctx, path, LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	b, err := Load(ctx, path, LoadOptions{WithRowCounts: true})
	if err != nil {
		t.Fatalf("Load with counts: %v", err)
	}
	if a.Version != b.Version {
		t.Errorf("version changed with profiling: %s vs %s", a.Version, b.Version)
	}
}

func TestLoad_VersionChangesWithSchema(t *testing.T) {
	path := newFixtureDB(t)
	ctx := context.Background()

	before, err := Load(ctx, path, LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := db.Exec(`ALTER TABLE fuel_stations ADD COLUMN zip TEXT`); err != nil {
		t.Fatalf("alter: %v", err)
	}
	db.Close()

	after, err := Load(ctx, path, LoadOptions{})
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if before.Version == after.Version {
		t.Error("version unchanged after ALTER TABLE")
	}
}

func TestLoad_Stats(t *testing.T) {
	path := newFixtureDB(t)
	s, err := Load(context.Background(), path, LoadOptions{WithColumnStats: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	fs := s.Tables[0]
	if fs.RowCount != 3 {
		t.Errorf("fuel_stations row count = %d, want 3", fs.RowCount)
	}
	st, ok := fs.Stats["city"]
	if !ok {
		t.Fatal("no stats for city column")
	}
	if st.NullCount != 1 {
		t.Errorf("city null count = %d, want 1", st.NullCount)
	}
}

func TestSerializeForPrompt(t *testing.T) {
	path := newFixtureDB(t)
	s, err := Load(context.Background(), path, LoadOptions{WithColumnStats: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	full := SerializeForPrompt(s, 0)
	for _, want := range []string{
		"TABLE fuel_stations",
		"TABLE states",
		"id INTEGER PRIMARY KEY",
		"state TEXT NOT NULL",
		"FK state -> states.code",
		"nulls=",
	} {
		if !strings.Contains(full, want) {
			t.Errorf("serialization missing %q:\n%s", want, full)
		}
	}

	// Deterministic.
	if again := SerializeForPrompt(s, 0); again != full {
		t.Error("serialization not deterministic")
	}

	// Stats pruned first under pressure; skeleton survives.
	trimmed := SerializeForPrompt(s, len(full)-1)
	if strings.Contains(trimmed, "nulls=") {
		t.Error("stats not pruned under maxChars pressure")
	}
	if !strings.Contains(trimmed, "TABLE fuel_stations") {
		t.Error("table skeleton dropped under maxChars pressure")
	}
}

func TestService_CachesAndRefreshes(t *testing.T) {
	path := newFixtureDB(t)
	ctx := context.Background()
	svc := NewService(path, 0, LoadOptions{})

	v1, err := svc.Version(ctx)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE extras (id INTEGER PRIMARY KEY)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	db.Close()

	// Cache still serves the old snapshot.
	v2, err := svc.Version(ctx)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v2 != v1 {
		t.Error("cached version changed without Refresh")
	}

	if _, err := svc.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	v3, err := svc.Version(ctx)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v3 == v1 {
		t.Error("version unchanged after Refresh over modified database")
	}
}
