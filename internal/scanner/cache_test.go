package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/symbol-scanner/internal/extraction"
)

// Test Plan for ResultCache:
// - Keys differ by path, content and backend
// - Set then Get returns the same result

func TestResultCache_Key(t *testing.T) {
	t.Parallel()

	c, err := NewResultCache(10)
	require.NoError(t, err)
	defer c.Close()

	base := c.Key("a.py", []byte("x = 1"), "syntactic:python")
	assert.Equal(t, base, c.Key("a.py", []byte("x = 1"), "syntactic:python"))
	assert.NotEqual(t, base, c.Key("b.py", []byte("x = 1"), "syntactic:python"))
	assert.NotEqual(t, base, c.Key("a.py", []byte("x = 2"), "syntactic:python"))
	assert.NotEqual(t, base, c.Key("a.py", []byte("x = 1"), "semantic:python"))
}

func TestResultCache_GetSet(t *testing.T) {
	t.Parallel()

	c, err := NewResultCache(10)
	require.NoError(t, err)
	defer c.Close()

	key := c.Key("a.py", []byte("def f(): pass"), "syntactic:python")
	_, ok := c.Get(key)
	assert.False(t, ok)

	res := extraction.NewExtractionResult()
	res.Symbols = append(res.Symbols, extraction.Symbol{Path: "a.py", Name: "f", Type: extraction.SymbolFunction})
	c.Set(key, res)

	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Same(t, res, got)
	assert.Equal(t, 1, c.Len())
}
