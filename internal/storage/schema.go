package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// SchemaVersion is bumped whenever a table definition changes.
const SchemaVersion = "1"

// CreateSchema creates all tables and indexes for extraction runs.
// Idempotent: existing tables are left in place.
//
// Must be called with SQLite PRAGMA foreign_keys = ON.
func CreateSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	tables := []struct {
		name string
		ddl  string
	}{
		{"metadata", createMetadataTable},
		{"runs", createRunsTable},
		{"symbols", createSymbolsTable},
		{"imports", createImportsTable},
		{"calls", createCallsTable},
		{"extraction_errors", createErrorsTable},
	}

	for _, table := range tables {
		if _, err := tx.Exec(table.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}

	for i, idx := range indexes {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index %d: %w", i+1, err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(
		`INSERT INTO metadata (key, value, updated_at) VALUES ('schema_version', ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		SchemaVersion, now,
	); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}
	return nil
}

// GetSchemaVersion returns the recorded schema version, or "0" for a new database.
func GetSchemaVersion(db *sql.DB) (string, error) {
	var tableExists int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='metadata'").Scan(&tableExists)
	if err != nil {
		return "", fmt.Errorf("failed to check metadata existence: %w", err)
	}
	if tableExists == 0 {
		return "0", nil
	}

	var version string
	err = db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&version)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("schema_version key not found in metadata")
	}
	if err != nil {
		return "", fmt.Errorf("failed to query schema version: %w", err)
	}
	return version, nil
}

const createMetadataTable = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TEXT NOT NULL
)
`

const createRunsTable = `
CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,                     -- UUID
    root TEXT NOT NULL,                          -- Scanned directory
    started_at TEXT NOT NULL,                    -- RFC3339
    total_files INTEGER NOT NULL,
    total_symbols INTEGER NOT NULL,
    total_calls INTEGER NOT NULL,
    total_imports INTEGER NOT NULL,
    total_errors INTEGER NOT NULL,
    total_resolved INTEGER NOT NULL,
    total_unresolved INTEGER NOT NULL,
    summary_json TEXT NOT NULL                   -- Full Summary as JSON
)
`

const createSymbolsTable = `
CREATE TABLE IF NOT EXISTS symbols (
    run_id TEXT NOT NULL,
    seq INTEGER NOT NULL,                        -- Position in the run's output
    path TEXT NOT NULL,
    symbol_name TEXT NOT NULL,
    symbol_type TEXT NOT NULL,                   -- function, method, class, ...
    line_start INTEGER NOT NULL,
    line_end INTEGER NOT NULL,
    parameters INTEGER,                          -- NULL for non-callables
    is_exported INTEGER NOT NULL,                -- Boolean
    parent_symbol TEXT,
    docstring TEXT,
    PRIMARY KEY (run_id, seq),
    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
)
`

const createImportsTable = `
CREATE TABLE IF NOT EXISTS imports (
    run_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    file TEXT NOT NULL,
    imported_path TEXT NOT NULL,
    imported_symbols TEXT,                       -- NULL for whole-module, name, or *
    import_type TEXT NOT NULL,
    alias TEXT,
    line INTEGER NOT NULL,
    PRIMARY KEY (run_id, seq),
    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
)
`

const createCallsTable = `
CREATE TABLE IF NOT EXISTS calls (
    run_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    caller_file TEXT NOT NULL,
    caller_symbol TEXT NOT NULL,
    callee_symbol TEXT NOT NULL,
    callee_object TEXT,
    call_type TEXT NOT NULL,
    line INTEGER NOT NULL,
    callee_file TEXT,                            -- Set when resolved
    resolution_status TEXT NOT NULL,
    is_dynamic_code_execution INTEGER NOT NULL,  -- Boolean
    PRIMARY KEY (run_id, seq),
    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
)
`

const createErrorsTable = `
CREATE TABLE IF NOT EXISTS extraction_errors (
    run_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    file TEXT,                                   -- NULL for whole-language failures
    line INTEGER,
    code TEXT NOT NULL,
    message TEXT NOT NULL,
    recoverable INTEGER NOT NULL,                -- Boolean
    PRIMARY KEY (run_id, seq),
    FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
)
`

var indexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(run_id, symbol_name)",
	"CREATE INDEX IF NOT EXISTS idx_symbols_path ON symbols(run_id, path)",
	"CREATE INDEX IF NOT EXISTS idx_imports_file ON imports(run_id, file)",
	"CREATE INDEX IF NOT EXISTS idx_calls_callee ON calls(run_id, callee_symbol)",
	"CREATE INDEX IF NOT EXISTS idx_calls_status ON calls(run_id, resolution_status)",
	"CREATE INDEX IF NOT EXISTS idx_errors_code ON extraction_errors(run_id, code)",
}
