package resolver

import (
	"context"
	"testing"

	"github.com/mvp-joe/symbol-scanner/internal/extraction"
	"github.com/stretchr/testify/require"
)

// testFile describes one file of a hand-built repository.
type testFile struct {
	path       string
	symbols    []extraction.Symbol
	imports    []extraction.Import
	calls      []extraction.Call
	namespaces []string
}

func (f testFile) declares(names ...string) testFile {
	for _, n := range names {
		f.symbols = append(f.symbols, extraction.Symbol{
			Path: f.path, Name: n, Type: extraction.SymbolFunction, IsExported: true,
		})
	}
	return f
}

func (f testFile) member(parent, name string, exported bool) testFile {
	f.symbols = append(f.symbols, extraction.Symbol{
		Path: f.path, Name: name, Type: extraction.SymbolMethod, ParentSymbol: parent, IsExported: exported,
	})
	return f
}

func (f testFile) importing(path, symbols, alias, typ string) testFile {
	if typ == "" {
		typ = "static"
	}
	f.imports = append(f.imports, extraction.Import{
		File: f.path, ImportedPath: path, ImportedSymbols: symbols, Alias: alias, ImportType: typ,
	})
	return f
}

func (f testFile) calling(callee, object string) testFile {
	typ := extraction.CallSync
	if object != "" {
		typ = extraction.CallDynamic
	}
	f.calls = append(f.calls, extraction.Call{
		CallerFile: f.path, CallerSymbol: extraction.ModuleCaller, CalleeSymbol: callee,
		CalleeObject: object, CallType: typ, ResolutionStatus: extraction.Unresolved,
	})
	return f
}

func file(path string) testFile {
	return testFile{path: path}
}

func buildRepo(t *testing.T, files ...testFile) *extraction.RepositoryExtraction {
	t.Helper()
	repo := extraction.NewRepositoryExtraction()
	for _, f := range files {
		lang, ok := extraction.LanguageForPath(f.path)
		require.True(t, ok, f.path)
		res := extraction.NewExtractionResult()
		res.Symbols = append(res.Symbols, f.symbols...)
		res.Imports = append(res.Imports, f.imports...)
		res.Calls = append(res.Calls, f.calls...)
		res.Namespaces = f.namespaces
		repo.Append(f.path, lang, res)
	}
	repo.ComputeSummary()
	return repo
}

func resolve(t *testing.T, opts []Option, files ...testFile) *extraction.RepositoryExtraction {
	t.Helper()
	repo := buildRepo(t, files...)
	New(opts...).Resolve(context.Background(), repo)
	return repo
}

// callTo returns the only call of repo from caller to callee.
func callTo(t *testing.T, repo *extraction.RepositoryExtraction, caller, callee string) extraction.Call {
	t.Helper()
	var found []extraction.Call
	for _, c := range repo.Calls {
		if c.CallerFile == caller && c.CalleeSymbol == callee {
			found = append(found, c)
		}
	}
	require.Len(t, found, 1, "calls from %s to %s", caller, callee)
	return found[0]
}
