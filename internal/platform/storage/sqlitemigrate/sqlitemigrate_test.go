package sqlitemigrate

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "migrate.db")
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlDB
}

func TestApplyRunsMigrationsInOrder(t *testing.T) {
	sqlDB := openTestDB(t)
	fsys := fstest.MapFS{
		"002_add_column.sql": {Data: []byte("-- +migrate Up\nALTER TABLE things ADD COLUMN label TEXT;\n-- +migrate Down\n")},
		"001_init.sql":       {Data: []byte("-- +migrate Up\nCREATE TABLE things (id TEXT PRIMARY KEY);\n-- +migrate Down\nDROP TABLE things;\n")},
	}

	if err := Apply(sqlDB, fsys); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if _, err := sqlDB.Exec("INSERT INTO things (id, label) VALUES ('a', 'first')"); err != nil {
		t.Fatalf("expected migrated schema usable: %v", err)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	sqlDB := openTestDB(t)
	fsys := fstest.MapFS{
		"001_init.sql": {Data: []byte("CREATE TABLE things (id TEXT PRIMARY KEY);")},
	}

	if err := Apply(sqlDB, fsys); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if err := Apply(sqlDB, fsys); err != nil {
		t.Fatalf("second apply: %v", err)
	}

	var count int
	if err := sqlDB.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one recorded migration, got %d", count)
	}
}

func TestUpSectionExtraction(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (id TEXT);\n-- +migrate Down\nDROP TABLE a;\n"
	up := upSection(content)
	if up != "\nCREATE TABLE a (id TEXT);\n" {
		t.Fatalf("unexpected up section %q", up)
	}
}
