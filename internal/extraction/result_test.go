package extraction

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for extraction results:
// - Empty results serialize lists as [] not null
// - FailedResult carries exactly one non-recoverable error
// - Append records the file language and copies namespaces
// - ComputeSummary counts files, symbols, calls, imports and errors per type
// - ComputeSummary keeps scanner-owned fields (backends, failed languages)
// - CountResolution derives totals from call statuses
// - ComputeSummary alone reports every unresolved call when nothing resolved them
// - Import helpers classify wildcard and whole-module imports

func TestNewExtractionResult_SerializesEmptyLists(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(NewExtractionResult())
	require.NoError(t, err)
	assert.JSONEq(t, `{"symbols":[],"imports":[],"calls":[],"errors":[]}`, string(data))
}

func TestFailedResult(t *testing.T) {
	t.Parallel()

	r := FailedResult("a.py", ErrRead, "cannot read %s", "a.py")
	require.Len(t, r.Errors, 1)
	assert.Equal(t, ErrRead, r.Errors[0].Code)
	assert.Equal(t, "cannot read a.py", r.Errors[0].Message)
	assert.False(t, r.Errors[0].Recoverable)
	assert.Empty(t, r.Symbols)
	assert.NotNil(t, r.Symbols)
}

func TestRepositoryExtraction_AppendAndSummary(t *testing.T) {
	t.Parallel()

	py := NewExtractionResult()
	py.Symbols = append(py.Symbols,
		Symbol{Path: "a.py", Name: "f", Type: SymbolFunction},
		Symbol{Path: "a.py", Name: "C", Type: SymbolClass},
	)
	py.Imports = append(py.Imports, Import{File: "a.py", ImportedPath: "os", ImportType: "static"})
	py.Calls = append(py.Calls,
		Call{CallerFile: "a.py", CalleeSymbol: "g", CallType: CallSync, ResolutionStatus: ResolvedSameFile},
		Call{CallerFile: "a.py", CalleeSymbol: "h", CallType: CallDynamic, ResolutionStatus: Unresolved},
	)

	cs := NewExtractionResult()
	cs.Symbols = append(cs.Symbols, Symbol{Path: "B.cs", Name: "B", Type: SymbolClass})
	cs.Calls = append(cs.Calls, Call{CallerFile: "B.cs", CalleeSymbol: "f", CallType: CallSync, ResolutionStatus: ResolvedCrossFile})
	cs.Errors = append(cs.Errors, ExtractionError{File: "B.cs", Code: ErrSyntax, Recoverable: true})
	cs.Namespaces = []string{"Acme"}

	repo := NewRepositoryExtraction()
	repo.Summary.Backends["python"] = "syntactic"
	repo.Summary.FailedLanguages = []string{"csharp"}
	repo.Append("a.py", Python, py)
	repo.Append("B.cs", CSharp, cs)
	repo.Append("empty.js", JavaScript, nil)

	repo.ComputeSummary()

	s := repo.Summary
	assert.Equal(t, 3, s.TotalFiles)
	assert.Equal(t, map[string]int{"python": 1, "csharp": 1, "javascript": 1}, s.FilesByLanguage)
	assert.Equal(t, 3, s.TotalSymbols)
	assert.Equal(t, map[string]int{"function": 1, "class": 2}, s.SymbolsByType)
	assert.Equal(t, 3, s.TotalCalls)
	assert.Equal(t, map[string]int{"sync": 2, "dynamic": 1}, s.CallsByType)
	assert.Equal(t, 1, s.TotalImports)
	assert.Equal(t, 1, s.TotalErrors)
	assert.Equal(t, "syntactic", s.Backends["python"])
	assert.Equal(t, []string{"csharp"}, s.FailedLanguages)

	assert.Equal(t, 1, s.Resolution.ResolvedSameFile)
	assert.Equal(t, 1, s.Resolution.ResolvedCrossFile)
	assert.Equal(t, 2, s.Resolution.TotalResolved)
	assert.Equal(t, 1, s.Resolution.TotalUnresolved)

	assert.Equal(t, []string{"Acme"}, repo.Namespaces["B.cs"])
	assert.Equal(t, []string{"B.cs", "a.py", "empty.js"}, repo.Files())

	// Appended slices are copies.
	repo.Calls[0].CalleeFile = "x.py"
	assert.Empty(t, py.Calls[0].CalleeFile)
}

func TestComputeSummary_CountsUnresolvedWithoutResolver(t *testing.T) {
	t.Parallel()

	res := NewExtractionResult()
	for _, name := range []string{"a", "b", "c"} {
		res.Calls = append(res.Calls, Call{CallerFile: "m.py", CalleeSymbol: name, CallType: CallSync, ResolutionStatus: Unresolved})
	}
	repo := NewRepositoryExtraction()
	repo.Append("m.py", Python, res)

	repo.ComputeSummary()

	assert.Equal(t, 3, repo.Summary.Resolution.TotalUnresolved)
	assert.Zero(t, repo.Summary.Resolution.TotalResolved)
}

func TestImportHelpers(t *testing.T) {
	t.Parallel()

	star := Import{ImportedPath: "m", ImportedSymbols: Wildcard}
	assert.True(t, star.IsWildcard())
	assert.False(t, star.IsWholeModule())

	whole := Import{ImportedPath: "numpy", Alias: "np"}
	assert.True(t, whole.IsWholeModule())
	assert.Equal(t, "np", whole.LocalName())

	named := Import{ImportedPath: "m", ImportedSymbols: "f"}
	assert.Equal(t, "f", named.LocalName())
}

func TestErrorCode_IsBackendFailure(t *testing.T) {
	t.Parallel()

	assert.True(t, ErrBackendTimeout.IsBackendFailure())
	assert.True(t, ErrBackendUnavailable.IsBackendFailure())
	assert.True(t, ErrBackendFailure.IsBackendFailure())
	assert.False(t, ErrSyntax.IsBackendFailure())
	assert.False(t, ErrRead.IsBackendFailure())
}
