package parsers

import (
	"context"
	"testing"

	"github.com/mvp-joe/symbol-scanner/internal/extraction"
	"github.com/stretchr/testify/require"
)

func extractSource(t *testing.T, e Extractor, relPath, source string) *extraction.ExtractionResult {
	t.Helper()
	result := e.ExtractSource(context.Background(), relPath, []byte(source))
	require.NotNil(t, result)
	return result
}

func findSymbol(t *testing.T, result *extraction.ExtractionResult, name string) extraction.Symbol {
	t.Helper()
	for _, sym := range result.Symbols {
		if sym.Name == name {
			return sym
		}
	}
	require.Failf(t, "symbol not found", "no symbol named %q", name)
	return extraction.Symbol{}
}

func symbolNames(result *extraction.ExtractionResult) []string {
	names := make([]string, 0, len(result.Symbols))
	for _, sym := range result.Symbols {
		names = append(names, sym.Name)
	}
	return names
}

func symbolsOfType(result *extraction.ExtractionResult, symType extraction.SymbolType) []string {
	var names []string
	for _, sym := range result.Symbols {
		if sym.Type == symType {
			names = append(names, sym.Name)
		}
	}
	return names
}

func findCall(t *testing.T, result *extraction.ExtractionResult, callee string) extraction.Call {
	t.Helper()
	for _, c := range result.Calls {
		if c.CalleeSymbol == callee {
			return c
		}
	}
	require.Failf(t, "call not found", "no call to %q", callee)
	return extraction.Call{}
}

func errorsWithCode(result *extraction.ExtractionResult, code extraction.ErrorCode) []extraction.ExtractionError {
	var out []extraction.ExtractionError
	for _, e := range result.Errors {
		if e.Code == code {
			out = append(out, e)
		}
	}
	return out
}

func params(sym extraction.Symbol) int {
	if sym.Parameters == nil {
		return -1
	}
	return *sym.Parameters
}
