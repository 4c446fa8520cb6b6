package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/mvp-joe/symbol-scanner/internal/extraction"
)

// Run is one stored extraction run.
type Run struct {
	ID        string
	Root      string
	StartedAt string
	Summary   extraction.Summary
}

// ListRuns returns stored runs, newest first.
func ListRuns(ctx context.Context, db *sql.DB) ([]Run, error) {
	rows, err := sq.Select("run_id", "root", "started_at", "summary_json").
		From("runs").
		OrderBy("started_at DESC", "run_id").
		RunWith(db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var summary string
		if err := rows.Scan(&r.ID, &r.Root, &r.StartedAt, &summary); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if err := json.Unmarshal([]byte(summary), &r.Summary); err != nil {
			return nil, fmt.Errorf("failed to decode summary of run %s: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LoadRun reads a stored run back in its original output order.
func LoadRun(ctx context.Context, db *sql.DB, runID string) (*extraction.RepositoryExtraction, error) {
	var summary string
	err := sq.Select("summary_json").From("runs").Where(sq.Eq{"run_id": runID}).
		RunWith(db).QueryRowContext(ctx).Scan(&summary)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %s: %w", runID, err)
	}

	repo := extraction.NewRepositoryExtraction()
	if err := json.Unmarshal([]byte(summary), &repo.Summary); err != nil {
		return nil, fmt.Errorf("failed to decode summary of run %s: %w", runID, err)
	}

	if err := loadSymbols(ctx, db, runID, repo); err != nil {
		return nil, err
	}
	if err := loadImports(ctx, db, runID, repo); err != nil {
		return nil, err
	}
	if err := loadCalls(ctx, db, runID, repo); err != nil {
		return nil, err
	}
	if err := loadErrors(ctx, db, runID, repo); err != nil {
		return nil, err
	}
	return repo, nil
}

func query(ctx context.Context, db *sql.DB, table, runID string, columns ...string) (*sql.Rows, error) {
	rows, err := sq.Select(columns...).From(table).
		Where(sq.Eq{"run_id": runID}).
		OrderBy("seq").
		RunWith(db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	return rows, nil
}

func loadSymbols(ctx context.Context, db *sql.DB, runID string, repo *extraction.RepositoryExtraction) error {
	rows, err := query(ctx, db, "symbols", runID,
		"path", "symbol_name", "symbol_type", "line_start", "line_end",
		"parameters", "is_exported", "parent_symbol", "docstring")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var s extraction.Symbol
		var typ string
		var params sql.NullInt64
		var parent, doc sql.NullString
		if err := rows.Scan(&s.Path, &s.Name, &typ, &s.LineStart, &s.LineEnd, &params, &s.IsExported, &parent, &doc); err != nil {
			return fmt.Errorf("failed to scan symbol: %w", err)
		}
		s.Type = extraction.SymbolType(typ)
		if params.Valid {
			s.Parameters = extraction.IntPtr(int(params.Int64))
		}
		s.ParentSymbol = parent.String
		s.Docstring = doc.String
		repo.Symbols = append(repo.Symbols, s)
	}
	return rows.Err()
}

func loadImports(ctx context.Context, db *sql.DB, runID string, repo *extraction.RepositoryExtraction) error {
	rows, err := query(ctx, db, "imports", runID,
		"file", "imported_path", "imported_symbols", "import_type", "alias", "line")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var imp extraction.Import
		var symbols, alias sql.NullString
		if err := rows.Scan(&imp.File, &imp.ImportedPath, &symbols, &imp.ImportType, &alias, &imp.Line); err != nil {
			return fmt.Errorf("failed to scan import: %w", err)
		}
		imp.ImportedSymbols = symbols.String
		imp.Alias = alias.String
		repo.Imports = append(repo.Imports, imp)
	}
	return rows.Err()
}

func loadCalls(ctx context.Context, db *sql.DB, runID string, repo *extraction.RepositoryExtraction) error {
	rows, err := query(ctx, db, "calls", runID,
		"caller_file", "caller_symbol", "callee_symbol", "callee_object", "call_type",
		"line", "callee_file", "resolution_status", "is_dynamic_code_execution")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var c extraction.Call
		var object, calleeFile sql.NullString
		var callType, status string
		if err := rows.Scan(&c.CallerFile, &c.CallerSymbol, &c.CalleeSymbol, &object, &callType,
			&c.Line, &calleeFile, &status, &c.IsDynamicCodeExecution); err != nil {
			return fmt.Errorf("failed to scan call: %w", err)
		}
		c.CalleeObject = object.String
		c.CalleeFile = calleeFile.String
		c.CallType = extraction.CallType(callType)
		c.ResolutionStatus = extraction.ResolutionStatus(status)
		repo.Calls = append(repo.Calls, c)
	}
	return rows.Err()
}

func loadErrors(ctx context.Context, db *sql.DB, runID string, repo *extraction.RepositoryExtraction) error {
	rows, err := query(ctx, db, "extraction_errors", runID,
		"file", "line", "code", "message", "recoverable")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var e extraction.ExtractionError
		var file sql.NullString
		var line sql.NullInt64
		var code string
		if err := rows.Scan(&file, &line, &code, &e.Message, &e.Recoverable); err != nil {
			return fmt.Errorf("failed to scan error: %w", err)
		}
		e.File = file.String
		e.Line = int(line.Int64)
		e.Code = extraction.ErrorCode(code)
		repo.Errors = append(repo.Errors, e)
	}
	return rows.Err()
}
