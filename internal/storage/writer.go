package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mvp-joe/symbol-scanner/internal/extraction"
)

// rowsPerInsert keeps multi-row INSERTs under SQLite's bound-variable limit.
const rowsPerInsert = 64

// Writer persists RepositoryExtractions to SQLite, one run per Write.
type Writer struct {
	db     *sql.DB
	ownsDB bool // true if we opened the connection, false if shared
}

// Open opens (or creates) a database file, enables foreign keys and creates
// the schema.
func Open(dbPath string) (*Writer, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps the foreign_keys pragma in effect.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Writer{db: db, ownsDB: true}, nil
}

// NewWriterWithDB creates a Writer using an existing connection whose schema
// already exists. The caller owns the connection.
func NewWriterWithDB(db *sql.DB) *Writer {
	return &Writer{db: db, ownsDB: false}
}

// DB returns the underlying connection.
func (w *Writer) DB() *sql.DB {
	return w.db
}

// Close closes the database connection if owned by this writer.
func (w *Writer) Close() error {
	if !w.ownsDB || w.db == nil {
		return nil
	}
	return w.db.Close()
}

// Write stores one run in a single transaction. Rows keep their output order
// in the seq column.
func (w *Writer) Write(ctx context.Context, runID, root string, repo *extraction.RepositoryExtraction) error {
	if repo == nil {
		return fmt.Errorf("repository extraction cannot be nil")
	}

	summary, err := json.Marshal(repo.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	s := repo.Summary
	_, err = sq.Insert("runs").
		Columns(
			"run_id", "root", "started_at",
			"total_files", "total_symbols", "total_calls", "total_imports", "total_errors",
			"total_resolved", "total_unresolved", "summary_json",
		).
		Values(
			runID, root, time.Now().UTC().Format(time.RFC3339),
			s.TotalFiles, s.TotalSymbols, s.TotalCalls, s.TotalImports, s.TotalErrors,
			s.Resolution.TotalResolved, s.Resolution.TotalUnresolved, string(summary),
		).
		RunWith(tx).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", runID, err)
	}

	if err := writeSymbols(ctx, tx, runID, repo.Symbols); err != nil {
		return fmt.Errorf("failed to write symbols: %w", err)
	}
	if err := writeImports(ctx, tx, runID, repo.Imports); err != nil {
		return fmt.Errorf("failed to write imports: %w", err)
	}
	if err := writeCalls(ctx, tx, runID, repo.Calls); err != nil {
		return fmt.Errorf("failed to write calls: %w", err)
	}
	if err := writeErrors(ctx, tx, runID, repo.Errors); err != nil {
		return fmt.Errorf("failed to write errors: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteRun removes a run and, by cascade, all of its rows.
func (w *Writer) DeleteRun(ctx context.Context, runID string) error {
	if _, err := sq.Delete("runs").Where(sq.Eq{"run_id": runID}).RunWith(w.db).ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to delete run %s: %w", runID, err)
	}
	return nil
}

// insertChunked runs one multi-row INSERT per rowsPerInsert rows.
func insertChunked(ctx context.Context, tx *sql.Tx, table string, columns []string, n int, row func(i int) []any) error {
	for start := 0; start < n; start += rowsPerInsert {
		end := min(start+rowsPerInsert, n)
		q := sq.Insert(table).Columns(columns...)
		for i := start; i < end; i++ {
			q = q.Values(row(i)...)
		}
		if _, err := q.RunWith(tx).ExecContext(ctx); err != nil {
			return fmt.Errorf("failed to insert %s rows %d-%d: %w", table, start, end-1, err)
		}
	}
	return nil
}

func writeSymbols(ctx context.Context, tx *sql.Tx, runID string, symbols []extraction.Symbol) error {
	return insertChunked(ctx, tx, "symbols",
		[]string{
			"run_id", "seq", "path", "symbol_name", "symbol_type", "line_start", "line_end",
			"parameters", "is_exported", "parent_symbol", "docstring",
		},
		len(symbols),
		func(i int) []any {
			s := symbols[i]
			var params any
			if s.Parameters != nil {
				params = *s.Parameters
			}
			return []any{
				runID, i, s.Path, s.Name, string(s.Type), s.LineStart, s.LineEnd,
				params, s.IsExported, nullable(s.ParentSymbol), nullable(s.Docstring),
			}
		})
}

func writeImports(ctx context.Context, tx *sql.Tx, runID string, imports []extraction.Import) error {
	return insertChunked(ctx, tx, "imports",
		[]string{"run_id", "seq", "file", "imported_path", "imported_symbols", "import_type", "alias", "line"},
		len(imports),
		func(i int) []any {
			imp := imports[i]
			return []any{
				runID, i, imp.File, imp.ImportedPath, nullable(imp.ImportedSymbols),
				imp.ImportType, nullable(imp.Alias), imp.Line,
			}
		})
}

func writeCalls(ctx context.Context, tx *sql.Tx, runID string, calls []extraction.Call) error {
	return insertChunked(ctx, tx, "calls",
		[]string{
			"run_id", "seq", "caller_file", "caller_symbol", "callee_symbol", "callee_object",
			"call_type", "line", "callee_file", "resolution_status", "is_dynamic_code_execution",
		},
		len(calls),
		func(i int) []any {
			c := calls[i]
			return []any{
				runID, i, c.CallerFile, c.CallerSymbol, c.CalleeSymbol, nullable(c.CalleeObject),
				string(c.CallType), c.Line, nullable(c.CalleeFile), string(c.ResolutionStatus),
				c.IsDynamicCodeExecution,
			}
		})
}

func writeErrors(ctx context.Context, tx *sql.Tx, runID string, errs []extraction.ExtractionError) error {
	return insertChunked(ctx, tx, "extraction_errors",
		[]string{"run_id", "seq", "file", "line", "code", "message", "recoverable"},
		len(errs),
		func(i int) []any {
			e := errs[i]
			var line any
			if e.Line > 0 {
				line = e.Line
			}
			return []any{runID, i, nullable(e.File), line, string(e.Code), e.Message, e.Recoverable}
		})
}

// nullable stores empty strings as NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
