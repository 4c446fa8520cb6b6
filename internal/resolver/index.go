package resolver

import (
	"sort"

	"github.com/mvp-joe/symbol-scanner/internal/extraction"
)

// Declaration is one place a name is declared.
type Declaration struct {
	Path         string
	Name         string
	Type         extraction.SymbolType
	ParentSymbol string
	Exported     bool
	Line         int
}

// Index maps declared names to their declarations, globally and per file.
// It is built once per resolution pass and read-only afterwards.
type Index struct {
	byName map[string][]Declaration
	byFile map[string]map[string][]Declaration
}

// NewIndex indexes symbols.
func NewIndex(symbols []extraction.Symbol) *Index {
	x := &Index{
		byName: make(map[string][]Declaration),
		byFile: make(map[string]map[string][]Declaration),
	}
	for _, sym := range symbols {
		d := Declaration{
			Path:         sym.Path,
			Name:         sym.Name,
			Type:         sym.Type,
			ParentSymbol: sym.ParentSymbol,
			Exported:     sym.IsExported,
			Line:         sym.LineStart,
		}
		x.byName[sym.Name] = append(x.byName[sym.Name], d)
		names, ok := x.byFile[sym.Path]
		if !ok {
			names = make(map[string][]Declaration)
			x.byFile[sym.Path] = names
		}
		names[sym.Name] = append(names[sym.Name], d)
	}
	return x
}

// Declares reports whether path declares name.
func (x *Index) Declares(path, name string) bool {
	return len(x.byFile[path][name]) > 0
}

// DeclaresTopLevel reports whether path declares name outside any class.
// Only those declarations can be bound by an import.
func (x *Index) DeclaresTopLevel(path, name string) bool {
	for _, d := range x.byFile[path][name] {
		if d.ParentSymbol == "" {
			return true
		}
	}
	return false
}

// DeclaresExported reports whether path declares name as exported at the
// top level.
func (x *Index) DeclaresExported(path, name string) bool {
	for _, d := range x.byFile[path][name] {
		if d.Exported && d.ParentSymbol == "" {
			return true
		}
	}
	return false
}

// Lookup returns the first declaration of name in path. It is how a symbol's
// ParentSymbol is turned back into a declaration.
func (x *Index) Lookup(path, name string) (Declaration, bool) {
	decls := x.byFile[path][name]
	if len(decls) == 0 {
		return Declaration{}, false
	}
	return decls[0], true
}

// Files returns the sorted set of files declaring name that satisfy keep.
func (x *Index) Files(name string, keep func(Declaration) bool) []string {
	seen := make(map[string]bool)
	var files []string
	for _, d := range x.byName[name] {
		if seen[d.Path] || !keep(d) {
			continue
		}
		seen[d.Path] = true
		files = append(files, d.Path)
	}
	sort.Strings(files)
	return files
}
