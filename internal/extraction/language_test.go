package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLanguageForPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want Language
		ok   bool
	}{
		{"src/app.py", Python, true},
		{"stubs/types.pyi", Python, true},
		{"Service.CS", CSharp, true},
		{"web/app.jsx", JavaScript, true},
		{"web/server.cjs", JavaScript, true},
		{"web/view.tsx", TypeScript, true},
		{"lib/mod.mts", TypeScript, true},
		{"README.md", "", false},
		{"Makefile", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			got, ok := LanguageForPath(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLanguage(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]Language{
		"python": Python, "py": Python, "C#": CSharp, "cs": CSharp,
		" JS ": JavaScript, "typescript": TypeScript,
	} {
		got, ok := ParseLanguage(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}

	_, ok := ParseLanguage("cobol")
	assert.False(t, ok)
}

func TestLanguage_Family(t *testing.T) {
	t.Parallel()

	assert.Equal(t, JavaScript.Family(), TypeScript.Family())
	assert.NotEqual(t, Python.Family(), CSharp.Family())
}
