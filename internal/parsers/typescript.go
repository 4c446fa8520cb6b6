package parsers

import (
	"github.com/mvp-joe/symbol-scanner/internal/extraction"
	sitter "github.com/tree-sitter/go-tree-sitter"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// TypeScriptExtractor extracts TypeScript files. .tsx files use the TSX grammar.
type TypeScriptExtractor struct {
	*treeSitterExtractor
}

// NewTypeScriptExtractor creates a new TypeScript extractor.
func NewTypeScriptExtractor(opts ...Option) *TypeScriptExtractor {
	lang := sitter.NewLanguage(typescript.LanguageTypescript())
	p := newTreeSitterExtractor(
		extraction.TypeScript, lang, []string{".ts", ".tsx", ".mts", ".cts"},
		ecmaErrorScopes, visitECMAScript, opts)
	p.grammarByExt = map[string]*sitter.Language{
		".tsx": sitter.NewLanguage(typescript.LanguageTSX()),
	}
	return &TypeScriptExtractor{treeSitterExtractor: p}
}

func (v *ecmaVisitor) tsInterface(node *sitter.Node) {
	v.tsNamed(node, extraction.SymbolInterface)
}

// Type aliases have no runtime presence; they are recorded as variables.
func (v *ecmaVisitor) tsTypeAlias(node *sitter.Node) {
	v.tsNamed(node, extraction.SymbolVariable)
}

func (v *ecmaVisitor) tsEnum(node *sitter.Node) {
	v.tsNamed(node, extraction.SymbolClass)
}

func (v *ecmaVisitor) tsNamed(node *sitter.Node, symType extraction.SymbolType) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	v.f.addSymbol(extraction.Symbol{
		Name:       v.f.text(nameNode),
		Type:       symType,
		LineStart:  startLine(node),
		LineEnd:    endLine(node),
		IsExported: isExportedDecl(node),
		Docstring:  v.jsDoc(node),
	})
}

func (v *ecmaVisitor) tsAbstractMethod(node *sitter.Node, scope ecmaScope) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil || scope.parentClass == "" {
		return
	}
	v.f.addSymbol(extraction.Symbol{
		Name:         v.f.text(nameNode),
		Type:         extraction.SymbolMethod,
		LineStart:    startLine(node),
		LineEnd:      endLine(node),
		Parameters:   extraction.IntPtr(v.countParameters(node)),
		IsExported:   !v.isPrivate(node),
		ParentSymbol: scope.parentClass,
		Docstring:    v.jsDoc(node),
	})
}
