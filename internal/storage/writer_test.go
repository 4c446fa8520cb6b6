package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/symbol-scanner/internal/extraction"
)

// Test Plan for Writer:
// - CreateSchema is idempotent and records the schema version
// - Write stores every row of a run and LoadRun reads it back in output order
// - Empty strings and nil parameters are stored as NULL
// - Runs larger than one INSERT chunk are written completely
// - Runs are isolated; DeleteRun cascades to child rows
// - Open creates a file database with the schema

func sampleRepo() *extraction.RepositoryExtraction {
	repo := extraction.NewRepositoryExtraction()

	a := extraction.NewExtractionResult()
	a.Symbols = append(a.Symbols,
		extraction.Symbol{Path: "pkg/a.py", Name: "Greeter", Type: extraction.SymbolClass, LineStart: 1, LineEnd: 9, IsExported: true, Docstring: "Says hello."},
		extraction.Symbol{Path: "pkg/a.py", Name: "greet", Type: extraction.SymbolMethod, LineStart: 3, LineEnd: 4, Parameters: extraction.IntPtr(1), IsExported: true, ParentSymbol: "Greeter"},
	)
	a.Imports = append(a.Imports,
		extraction.Import{File: "pkg/a.py", ImportedPath: "os", ImportType: "static", Line: 1},
		extraction.Import{File: "pkg/a.py", ImportedPath: "typing", ImportedSymbols: "List", Alias: "L", ImportType: "static", Line: 2},
	)
	a.Calls = append(a.Calls,
		extraction.Call{CallerFile: "pkg/a.py", CallerSymbol: "greet", CalleeSymbol: "print", CallType: extraction.CallSync, Line: 4, ResolutionStatus: extraction.Unresolved},
		extraction.Call{CallerFile: "pkg/a.py", CallerSymbol: "<module>", CalleeSymbol: "exec", CallType: extraction.CallSync, Line: 10, ResolutionStatus: extraction.Unresolved, IsDynamicCodeExecution: true},
		extraction.Call{CallerFile: "pkg/a.py", CallerSymbol: "greet", CalleeSymbol: "helper", CalleeObject: "util", CallType: extraction.CallDynamic, Line: 4, CalleeFile: "pkg/util.py", ResolutionStatus: extraction.ResolvedCrossFile},
	)
	a.AddError("pkg/a.py", 12, extraction.ErrSyntax, true, "unexpected token")
	repo.Append("pkg/a.py", extraction.Python, a)

	repo.Errors = append(repo.Errors, extraction.ExtractionError{Code: extraction.ErrBackendTimeout, Message: "timed out"})
	repo.Summary.Backends["python"] = "syntactic"
	repo.ComputeSummary()
	return repo
}

func TestCreateSchema_Idempotent(t *testing.T) {
	t.Parallel()

	db := NewTestDB(t)
	require.NoError(t, CreateSchema(db))

	version, err := GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, version)
}

func TestGetSchemaVersion_NewDatabase(t *testing.T) {
	t.Parallel()

	w, err := Open(NewTestDBPath(t))
	require.NoError(t, err)
	defer w.Close()

	_, err = w.DB().Exec("DROP TABLE metadata")
	require.NoError(t, err)

	version, err := GetSchemaVersion(w.DB())
	require.NoError(t, err)
	assert.Equal(t, "0", version)
}

func TestWriter_WriteAndLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := NewTestDB(t)
	w := NewWriterWithDB(db)

	repo := sampleRepo()
	require.NoError(t, w.Write(ctx, "run-1", "/src", repo))

	loaded, err := LoadRun(ctx, db, "run-1")
	require.NoError(t, err)

	assert.Equal(t, repo.Symbols, loaded.Symbols)
	assert.Equal(t, repo.Imports, loaded.Imports)
	assert.Equal(t, repo.Calls, loaded.Calls)
	assert.Equal(t, repo.Errors, loaded.Errors)
	assert.Equal(t, repo.Summary, loaded.Summary)

	var nullParams int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM symbols WHERE parameters IS NULL AND parent_symbol IS NULL`).Scan(&nullParams))
	assert.Equal(t, 1, nullParams)

	var nullFile int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM extraction_errors WHERE file IS NULL AND line IS NULL`).Scan(&nullFile))
	assert.Equal(t, 1, nullFile)

	var unresolved int
	require.NoError(t, db.QueryRow(`SELECT total_unresolved FROM runs WHERE run_id = 'run-1'`).Scan(&unresolved))
	assert.Equal(t, 2, unresolved)
}

func TestWriter_LargeRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := NewTestDB(t)

	repo := extraction.NewRepositoryExtraction()
	res := extraction.NewExtractionResult()
	for i := 0; i < 3*rowsPerInsert+5; i++ {
		res.Symbols = append(res.Symbols, extraction.Symbol{
			Path: "big.js", Name: fmt.Sprintf("fn%d", i), Type: extraction.SymbolFunction,
			LineStart: i + 1, LineEnd: i + 1, Parameters: extraction.IntPtr(0),
		})
	}
	repo.Append("big.js", extraction.JavaScript, res)
	repo.ComputeSummary()

	require.NoError(t, NewWriterWithDB(db).Write(ctx, "big", "/src", repo))

	loaded, err := LoadRun(ctx, db, "big")
	require.NoError(t, err)
	require.Len(t, loaded.Symbols, len(repo.Symbols))
	assert.Equal(t, "fn0", loaded.Symbols[0].Name)
	assert.Equal(t, fmt.Sprintf("fn%d", len(repo.Symbols)-1), loaded.Symbols[len(repo.Symbols)-1].Name)
}

func TestWriter_RunsAreIsolated(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := NewTestDB(t)
	w := NewWriterWithDB(db)

	require.NoError(t, w.Write(ctx, "a", "/one", sampleRepo()))
	require.NoError(t, w.Write(ctx, "b", "/two", sampleRepo()))

	runs, err := ListRuns(ctx, db)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 2, runs[0].Summary.TotalSymbols)

	require.NoError(t, w.DeleteRun(ctx, "a"))

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM calls WHERE run_id = 'a'`).Scan(&count))
	assert.Zero(t, count)
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM calls WHERE run_id = 'b'`).Scan(&count))
	assert.Equal(t, 3, count)

	_, err = LoadRun(ctx, db, "a")
	assert.Error(t, err)
}

func TestWriter_DuplicateRunFails(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	w := NewWriterWithDB(NewTestDB(t))

	require.NoError(t, w.Write(ctx, "dup", "/src", sampleRepo()))
	assert.Error(t, w.Write(ctx, "dup", "/src", sampleRepo()))
	assert.Error(t, w.Write(ctx, "nil", "/src", nil))
}

func TestOpen_FileDatabase(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := NewTestDBPath(t)

	w, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(ctx, "persisted", "/src", sampleRepo()))
	require.NoError(t, w.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	runs, err := ListRuns(ctx, reopened.DB())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "persisted", runs[0].ID)
	assert.Equal(t, "/src", runs[0].Root)
}
