package semantic

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mvp-joe/symbol-scanner/internal/extraction"
	"github.com/mvp-joe/symbol-scanner/internal/parsers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// On valid input the semantic and syntactic backends agree on class and
// method names and on parent attribution. Lines may differ by one.
func TestRoslynBackend_ParityWithSyntacticExtractor(t *testing.T) {
	t.Parallel()

	root, err := filepath.Abs("../../testdata/code/csharp")
	require.NoError(t, err)
	path := filepath.Join(root, "Service.cs")

	syntactic := parsers.NewCSharpExtractor().ExtractFile(context.Background(), path, "Service.cs")
	require.Empty(t, syntactic.Errors)

	backend := NewRoslynBackend(WithRunner(&fakeRunner{stdout: loadFixture(t)}))
	batch, err := backend.ExtractBatch(context.Background(), root, []extraction.SourceFile{{Path: path, RelPath: "Service.cs"}})
	require.NoError(t, err)
	semantic := batch.Files["Service.cs"]

	type key struct {
		name, parent string
		typ          extraction.SymbolType
	}
	index := func(res *extraction.ExtractionResult) map[key]extraction.Symbol {
		out := map[key]extraction.Symbol{}
		for _, sym := range res.Symbols {
			switch sym.Type {
			case extraction.SymbolClass, extraction.SymbolInterface, extraction.SymbolMethod:
				out[key{sym.Name, sym.ParentSymbol, sym.Type}] = sym
			}
		}
		return out
	}

	want := index(syntactic)
	got := index(semantic)
	require.Equal(t, len(want), len(got))

	for k, syn := range want {
		sem, ok := got[k]
		if !assert.True(t, ok, "semantic backend is missing %+v", k) {
			continue
		}
		assert.InDelta(t, syn.LineStart, sem.LineStart, 1, "%s line_start", k.name)
		assert.InDelta(t, syn.LineEnd, sem.LineEnd, 1, "%s line_end", k.name)
		if syn.Parameters != nil && sem.Parameters != nil {
			assert.Equal(t, *syn.Parameters, *sem.Parameters, "%s parameters", k.name)
		}
	}
}
