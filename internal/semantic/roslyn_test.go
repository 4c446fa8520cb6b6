package semantic

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/mvp-joe/symbol-scanner/internal/extraction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for RoslynBackend:
// - Analyzer output is normalized: types, legacy fields, split imports, path cleanup
// - Records for files outside the requested set are dropped
// - Every requested file gets a result, even without records
// - Command line substitutes the tool path and appends the root
// - Timeout maps to ErrBackendTimeout, missing executable to ErrBackendUnavailable
// - Non-zero exit and malformed JSON map to ErrBackendFailure
// - Parent cancellation is returned as the context error
// - ExtractFile reports backend errors as one non-recoverable ExtractionError

type fakeRunner struct {
	stdout []byte
	stderr []byte
	err    error
	block  bool

	dir  string
	name string
	args []string
}

func (f *fakeRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, error) {
	f.dir, f.name, f.args = dir, name, args
	if f.block {
		<-ctx.Done()
		return nil, nil, ctx.Err()
	}
	return f.stdout, f.stderr, f.err
}

func loadFixture(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile("../../testdata/semantic/orders.json")
	require.NoError(t, err)
	return data
}

func TestRoslynBackend_ExtractBatchNormalizes(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{stdout: loadFixture(t)}
	backend := NewRoslynBackend(WithRunner(runner), WithToolPath("/opt/roslyn-tool"))

	files := []extraction.SourceFile{
		{Path: "/repo/Service.cs", RelPath: "Service.cs"},
		{Path: "/repo/Empty.cs", RelPath: "Empty.cs"},
	}
	batch, err := backend.ExtractBatch(context.Background(), "/repo", files)
	require.NoError(t, err)

	assert.Equal(t, "/repo", runner.dir)
	assert.Equal(t, "dotnet", runner.name)
	assert.Equal(t, []string{"run", "--project", "/opt/roslyn-tool", "--", "/repo"}, runner.args)

	require.Len(t, batch.Files, 2)
	empty := batch.Files["Empty.cs"]
	require.NotNil(t, empty)
	assert.Empty(t, empty.Symbols)

	res := batch.Files["Service.cs"]
	require.NotNil(t, res)
	require.Len(t, res.Symbols, 12)
	for _, sym := range res.Symbols {
		assert.Equal(t, "Service.cs", sym.Path)
		assert.NotEqual(t, "Other", sym.Name)
	}

	byName := map[string]extraction.Symbol{}
	for _, sym := range res.Symbols {
		byName[sym.Name+"/"+string(sym.Type)] = sym
	}
	assert.Contains(t, byName, "OrderService/method")
	assert.Contains(t, byName, "Status/class")
	assert.Contains(t, byName, "Changed/field")
	assert.Contains(t, byName, "IOrderService/interface")
	assert.Equal(t, 1, *byName["OrderService/method"].Parameters)
	assert.Nil(t, byName["Changed/field"].Parameters)
	assert.False(t, byName["Compute/method"].IsExported)

	require.Len(t, res.Calls, 4)
	assert.Equal(t, extraction.CallDynamic, res.Calls[0].CallType)
	assert.Equal(t, 30, res.Calls[0].Line)
	assert.Equal(t, extraction.CallSync, res.Calls[1].CallType)
	assert.Equal(t, "Validation.cs", res.Calls[1].CalleeFile)
	assert.True(t, res.Calls[1].CalleeFromBackend)
	assert.False(t, res.Calls[0].CalleeFromBackend)
	assert.Equal(t, extraction.CallEvent, res.Calls[2].CallType)
	assert.Equal(t, 32, res.Calls[2].Line)
	assert.Equal(t, extraction.CallConstructor, res.Calls[3].CallType)
	for _, c := range res.Calls {
		assert.Equal(t, extraction.Unresolved, c.ResolutionStatus)
	}

	require.Len(t, res.Imports, 5)
	assert.Equal(t, "List", res.Imports[1].ImportedSymbols)
	assert.Equal(t, "Dictionary", res.Imports[2].ImportedSymbols)
	assert.Equal(t, "using_static", res.Imports[3].ImportType)
	assert.Equal(t, "Json", res.Imports[4].Alias)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, extraction.ErrSyntax, res.Errors[0].Code)
	assert.True(t, res.Errors[0].Recoverable)
}

func TestRoslynBackend_SymbolOrderIsByLine(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{stdout: []byte(`{"symbols":[
		{"path":"A.cs","symbol_name":"Late","symbol_type":"method","line_start":9,"line_end":9,"parent_symbol":"A"},
		{"path":"A.cs","symbol_name":"A","symbol_type":"class","line_start":1,"line_end":10},
		{"path":"A.cs","symbol_name":"Mystery","symbol_type":"namespace","line_start":1,"line_end":1}
	]}`)}
	backend := NewRoslynBackend(WithRunner(runner))

	batch, err := backend.ExtractBatch(context.Background(), "/repo", []extraction.SourceFile{{Path: "/repo/A.cs", RelPath: "A.cs"}})
	require.NoError(t, err)

	res := batch.Files["A.cs"]
	require.Len(t, res.Symbols, 2)
	assert.Equal(t, "A", res.Symbols[0].Name)
	assert.Equal(t, "Late", res.Symbols[1].Name)
	assert.Equal(t, 0, *res.Symbols[1].Parameters)
}

func TestRoslynBackend_Failures(t *testing.T) {
	t.Parallel()

	files := []extraction.SourceFile{{Path: "/repo/A.cs", RelPath: "A.cs"}}

	tests := []struct {
		name    string
		runner  *fakeRunner
		timeout time.Duration
		want    error
	}{
		{
			name:    "timeout",
			runner:  &fakeRunner{block: true},
			timeout: 20 * time.Millisecond,
			want:    ErrBackendTimeout,
		},
		{
			name:   "missing executable",
			runner: &fakeRunner{err: &exec.Error{Name: "dotnet", Err: exec.ErrNotFound}},
			want:   ErrBackendUnavailable,
		},
		{
			name:   "non-zero exit",
			runner: &fakeRunner{err: errors.New("exit status 1"), stderr: []byte("Unhandled exception")},
			want:   ErrBackendFailure,
		},
		{
			name:   "malformed json",
			runner: &fakeRunner{stdout: []byte(`{"symbols": [`)},
			want:   ErrBackendFailure,
		},
		{
			name:   "empty output",
			runner: &fakeRunner{},
			want:   ErrBackendFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			backend := NewRoslynBackend(WithRunner(tt.runner), WithTimeout(tt.timeout))

			batch, err := backend.ExtractBatch(context.Background(), "/repo", files)
			assert.Nil(t, batch)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRoslynBackend_ParentCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	backend := NewRoslynBackend(WithRunner(&fakeRunner{block: true}))
	_, err := backend.ExtractBatch(ctx, "/repo", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrBackendTimeout)
}

func TestRoslynBackend_ExtractFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "Service.cs")
	require.NoError(t, os.WriteFile(path, []byte("class A {}"), 0o644))

	backend := NewRoslynBackend(WithRunner(&fakeRunner{stdout: loadFixture(t)}))
	res := backend.ExtractFile(context.Background(), path, "src/Service.cs")

	require.NotEmpty(t, res.Symbols)
	for _, sym := range res.Symbols {
		assert.Equal(t, "src/Service.cs", sym.Path)
	}
	for _, c := range res.Calls {
		assert.Equal(t, "src/Service.cs", c.CallerFile)
	}

	failing := NewRoslynBackend(WithRunner(&fakeRunner{err: &exec.Error{Name: "dotnet", Err: exec.ErrNotFound}}))
	res = failing.ExtractFile(context.Background(), path, "src/Service.cs")
	require.Len(t, res.Errors, 1)
	assert.Equal(t, extraction.ErrBackendUnavailable, res.Errors[0].Code)
	assert.False(t, res.Errors[0].Recoverable)
	assert.Equal(t, "src/Service.cs", res.Errors[0].File)
}

func TestErrorCode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, extraction.ErrBackendTimeout, ErrorCode(ErrBackendTimeout))
	assert.Equal(t, extraction.ErrBackendUnavailable, ErrorCode(errors.Join(errors.New("x"), ErrBackendUnavailable)))
	assert.Equal(t, extraction.ErrBackendFailure, ErrorCode(errors.New("anything else")))
}

func TestSymbolList(t *testing.T) {
	t.Parallel()

	out, err := parseOutput([]byte(`{"imports":[
		{"file":"a.cs","imported_path":"A","imported_symbols":null},
		{"file":"a.cs","imported_path":"B","imported_symbols":["X","Y"]},
		{"file":"a.cs","imported_path":"C","imported_symbols":" P ,, Q "}
	]}`))
	require.NoError(t, err)

	assert.Nil(t, []string(out.Imports[0].ImportedSymbols))
	assert.Equal(t, []string{"X", "Y"}, []string(out.Imports[1].ImportedSymbols))
	assert.Equal(t, []string{"P", "Q"}, []string(out.Imports[2].ImportedSymbols))
}
