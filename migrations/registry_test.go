package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	integrations "github.com/goliatone/go-integrations"
	_ "github.com/mattn/go-sqlite3"
)

func TestFilesystems_ReturnsPostgresAndSQLite(t *testing.T) {
	filesystems, err := Filesystems()
	if err != nil {
		t.Fatalf("filesystems: %v", err)
	}
	if len(filesystems) != 2 {
		t.Fatalf("expected 2 filesystems, got %d", len(filesystems))
	}

	var postgresFound bool
	var sqliteFound bool
	for _, entry := range filesystems {
		matches, globErr := fs.Glob(entry.FS, "*.up.sql")
		if globErr != nil {
			t.Fatalf("glob %s: %v", entry.Dialect, globErr)
		}
		if len(matches) == 0 {
			t.Fatalf("expected %s migration files, got none", entry.Dialect)
		}
		switch entry.Dialect {
		case DialectPostgres:
			postgresFound = true
		case DialectSQLite:
			sqliteFound = true
		}
	}
	if !postgresFound || !sqliteFound {
		t.Fatalf("expected postgres and sqlite filesystems, got %#v", filesystems)
	}
}

func TestFilesystems_RejectsSourceWithoutMigrations(t *testing.T) {
	source := fstest.MapFS{"README.md": &fstest.MapFile{Data: []byte("nothing here")}}
	if _, err := Filesystems(source); err == nil {
		t.Fatalf("expected a source without migrations to fail")
	}
}

func TestRegister_UsesValidationTargets(t *testing.T) {
	var calls []string
	var label string
	_, err := Register(context.Background(), func(_ context.Context, dialect string, sourceLabel string, _ fs.FS) error {
		calls = append(calls, dialect)
		label = sourceLabel
		return nil
	}, WithValidationTargets(DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(calls) != 1 || calls[0] != DialectSQLite {
		t.Fatalf("expected a single sqlite registration, got %v", calls)
	}
	if label != "go-integrations" {
		t.Fatalf("unexpected source label %q", label)
	}
}

func TestRegister_RequiresRegisterFunc(t *testing.T) {
	if _, err := Register(context.Background(), nil); err == nil {
		t.Fatalf("expected nil register function to fail")
	}
}

func TestKVEntriesMigrationPair_ExistsForBothDialects(t *testing.T) {
	root := integrations.GetMigrationsFS()
	paths := []string{
		"data/sql/migrations/00001_integrations_kv_entries.up.sql",
		"data/sql/migrations/00001_integrations_kv_entries.down.sql",
		"data/sql/migrations/sqlite/00001_integrations_kv_entries.up.sql",
		"data/sql/migrations/sqlite/00001_integrations_kv_entries.down.sql",
	}
	for _, migrationPath := range paths {
		content, err := fs.ReadFile(root, migrationPath)
		if err != nil {
			t.Fatalf("read migration %s: %v", migrationPath, err)
		}
		if strings.TrimSpace(string(content)) == "" {
			t.Fatalf("expected migration %s to have SQL content", migrationPath)
		}
	}
}

func TestSQLiteKVEntriesMigration_ApplyAndRollback(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-kv-entries?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	sqliteMigrations, err := fs.Sub(integrations.GetMigrationsFS(), "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}
	ctx := context.Background()
	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_integrations_kv_entries.up.sql"); err != nil {
		t.Fatalf("apply kv migration up: %v", err)
	}

	insert := `INSERT INTO integrations_kv_entries (id, entry_key, value, expires_at) VALUES (?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, insert, "a", "state:x", []byte("u1"), "2026-01-01 00:00:00+00:00"); err != nil {
		t.Fatalf("insert row: %v", err)
	}
	if _, err := db.ExecContext(ctx, insert, "b", "state:x", []byte("u2"), "2026-01-01 00:00:00+00:00"); err == nil {
		t.Fatalf("expected entry_key uniqueness violation")
	}

	if err := execSQLMigration(ctx, db, sqliteMigrations, "00001_integrations_kv_entries.down.sql"); err != nil {
		t.Fatalf("apply kv migration down: %v", err)
	}
	var count int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`,
		"integrations_kv_entries",
	).Scan(&count); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected kv table to be dropped after down migration")
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
