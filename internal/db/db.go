package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/scratchpad/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// FileName is the database file created inside the storage directory.
const FileName = "scratchpad.db"

// Querier is satisfied by *sql.DB and *sql.Tx, so every query helper can run
// inside or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Init initializes the SQLite database at baseDir/scratchpad.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.scratchpad.
func Init(baseDir string) (*sql.DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	// best-effort, may not work on all platforms
	_ = os.Chmod(baseDir, 0700)

	// Pragmas in the connection string apply to every pooled connection
	dbPath := filepath.Join(baseDir, FileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: scratchpads, namespaces, embeddings, store_meta
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS scratchpads (
		  tenant_id       TEXT NOT NULL,
		  scratch_id      TEXT NOT NULL,
		  namespace       TEXT,
		  title           TEXT,
		  description     TEXT,
		  summary         TEXT,
		  tags_json       TEXT NOT NULL DEFAULT '[]',
		  cell_tags_json  TEXT NOT NULL DEFAULT '[]',
		  cell_count      INTEGER NOT NULL DEFAULT 0,
		  metadata_json   TEXT NOT NULL DEFAULT '{}',
		  cells_json      TEXT NOT NULL DEFAULT '[]',
		  schemas_json    TEXT NOT NULL DEFAULT '{}',
		  created_at      INTEGER NOT NULL,
		  updated_at      INTEGER NOT NULL,
		  last_access_at  INTEGER NOT NULL,
		  PRIMARY KEY (tenant_id, scratch_id)
		);

		CREATE INDEX IF NOT EXISTS idx_scratchpads_lru
		ON scratchpads(tenant_id, last_access_at, created_at, scratch_id);

		CREATE INDEX IF NOT EXISTS idx_scratchpads_namespace
		ON scratchpads(tenant_id, namespace)
		WHERE namespace IS NOT NULL;

		CREATE TABLE IF NOT EXISTS namespaces (
		  tenant_id   TEXT NOT NULL,
		  namespace   TEXT NOT NULL,
		  created_at  INTEGER NOT NULL,
		  PRIMARY KEY (tenant_id, namespace)
		);

		CREATE TABLE IF NOT EXISTS embeddings (
		  tenant_id    TEXT NOT NULL,
		  scratch_id   TEXT NOT NULL,
		  cell_id      TEXT NOT NULL DEFAULT '',
		  cell_index   INTEGER NOT NULL,
		  namespace    TEXT,
		  tags_json    TEXT NOT NULL DEFAULT '[]',
		  title        TEXT,
		  description  TEXT,
		  summary      TEXT,
		  snippet      TEXT NOT NULL DEFAULT '',
		  vector       BLOB NOT NULL,
		  updated_at   INTEGER NOT NULL,
		  PRIMARY KEY (tenant_id, scratch_id, cell_id)
		);

		CREATE INDEX IF NOT EXISTS idx_embeddings_namespace
		ON embeddings(tenant_id, namespace);

		CREATE TABLE IF NOT EXISTS store_meta (
		  key    TEXT PRIMARY KEY,
		  value  TEXT NOT NULL
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}

// RequiredColumns lists the columns the storage engine reads, per table.
var RequiredColumns = map[string][]string{
	"scratchpads": {"tenant_id", "scratch_id", "namespace", "tags_json", "cell_tags_json",
		"cell_count", "metadata_json", "cells_json", "schemas_json",
		"created_at", "updated_at", "last_access_at"},
	"namespaces": {"tenant_id", "namespace", "created_at"},
	"embeddings": {"tenant_id", "scratch_id", "cell_id", "cell_index", "namespace",
		"tags_json", "snippet", "vector"},
}

// MissingColumns reports required columns absent from an existing database,
// keyed by table. An empty result means the layout is usable.
func MissingColumns(ctx context.Context, q Querier) (map[string][]string, error) {
	missing := make(map[string][]string)
	for table, want := range RequiredColumns {
		rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
		if err != nil {
			return nil, fmt.Errorf("table_info %s: %w", table, err)
		}
		have := make(map[string]bool)
		for rows.Next() {
			var (
				cid        int
				name, kind string
				notNull    int
				dflt       sql.NullString
				pk         int
			)
			if err := rows.Scan(&cid, &name, &kind, &notNull, &dflt, &pk); err != nil {
				rows.Close()
				return nil, fmt.Errorf("table_info %s: %w", table, err)
			}
			have[name] = true
		}
		rows.Close()
		for _, col := range want {
			if !have[col] {
				missing[table] = append(missing[table], col)
			}
		}
	}
	return missing, nil
}
