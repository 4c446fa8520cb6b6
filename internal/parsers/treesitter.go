package parsers

import (
	"context"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/mvp-joe/symbol-scanner/internal/extraction"
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// DefaultMaxFileBytes is the size above which a file is not parsed.
const DefaultMaxFileBytes int64 = 5 << 20

// Extractor turns one source file into symbols, imports and calls.
// Implementations are safe for concurrent use.
type Extractor interface {
	Language() extraction.Language
	Extensions() []string
	ExtractFile(ctx context.Context, path, relPath string) *extraction.ExtractionResult
	ExtractSource(ctx context.Context, relPath string, source []byte) *extraction.ExtractionResult
}

// Option configures an extractor.
type Option func(*treeSitterExtractor)

// WithMaxFileBytes overrides DefaultMaxFileBytes. Zero or negative disables the limit.
func WithMaxFileBytes(n int64) Option {
	return func(p *treeSitterExtractor) {
		p.maxFileBytes = n
	}
}

// fileVisitor walks one parsed file and appends to f.result.
type fileVisitor func(f *sourceFile)

// treeSitterExtractor provides the parsing shared by every language.
// A new sitter.Parser is created per call, so one extractor can serve many goroutines.
type treeSitterExtractor struct {
	lang         extraction.Language
	extensions   []string
	grammar      *sitter.Language
	grammarByExt map[string]*sitter.Language
	maxFileBytes int64
	scopes       errorScopes
	visit        fileVisitor
}

func newTreeSitterExtractor(lang extraction.Language, grammar *sitter.Language, extensions []string, scopes errorScopes, visit fileVisitor, opts []Option) *treeSitterExtractor {
	p := &treeSitterExtractor{
		lang:         lang,
		extensions:   extensions,
		grammar:      grammar,
		maxFileBytes: DefaultMaxFileBytes,
		scopes:       scopes,
		visit:        visit,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *treeSitterExtractor) Language() extraction.Language {
	return p.lang
}

func (p *treeSitterExtractor) Extensions() []string {
	return append([]string(nil), p.extensions...)
}

// ExtractFile reads the file and extracts it. Read failures are reported as a
// single non-recoverable READ_ERROR.
func (p *treeSitterExtractor) ExtractFile(ctx context.Context, filePath, relPath string) *extraction.ExtractionResult {
	info, err := os.Stat(filePath)
	if err != nil {
		return extraction.FailedResult(relPath, extraction.ErrRead, "failed to stat file: %v", err)
	}
	if p.maxFileBytes > 0 && info.Size() > p.maxFileBytes {
		return extraction.FailedResult(relPath, extraction.ErrRead,
			"file size %d exceeds limit of %d bytes", info.Size(), p.maxFileBytes)
	}

	source, err := os.ReadFile(filePath)
	if err != nil {
		return extraction.FailedResult(relPath, extraction.ErrRead, "failed to read file: %v", err)
	}

	return p.ExtractSource(ctx, relPath, source)
}

// ExtractSource parses source and extracts it. It never fails: syntax problems
// are recorded in the result's error list.
func (p *treeSitterExtractor) ExtractSource(ctx context.Context, relPath string, source []byte) *extraction.ExtractionResult {
	parser := sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(p.grammarFor(relPath)); err != nil {
		return extraction.FailedResult(relPath, extraction.ErrSyntax, "failed to load %s grammar: %v", p.lang, err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return extraction.FailedResult(relPath, extraction.ErrSyntax, "failed to parse %s file", p.lang)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.IsError() {
		return extraction.FailedResult(relPath, extraction.ErrSyntax, "no %s declarations could be parsed", p.lang)
	}

	f := &sourceFile{
		relPath: relPath,
		source:  source,
		root:    root,
		result:  extraction.NewExtractionResult(),
	}

	p.visit(f)
	if root.HasError() {
		p.scopes.collect(f, root)
	}

	sort.SliceStable(f.result.Errors, func(i, j int) bool {
		return f.result.Errors[i].Line < f.result.Errors[j].Line
	})
	return f.result
}

func (p *treeSitterExtractor) grammarFor(relPath string) *sitter.Language {
	if g, ok := p.grammarByExt[strings.ToLower(path.Ext(relPath))]; ok {
		return g
	}
	return p.grammar
}

// sourceFile is the per-call state handed to a fileVisitor.
type sourceFile struct {
	relPath string
	source  []byte
	root    *sitter.Node
	result  *extraction.ExtractionResult
}

func (f *sourceFile) text(node *sitter.Node) string {
	return nodeText(node, f.source)
}

func (f *sourceFile) addSymbol(sym extraction.Symbol) {
	sym.Path = f.relPath
	f.result.Symbols = append(f.result.Symbols, sym)
}

func (f *sourceFile) addImport(imp extraction.Import) {
	imp.File = f.relPath
	f.result.Imports = append(f.result.Imports, imp)
}

func (f *sourceFile) addCall(call extraction.Call) {
	call.CallerFile = f.relPath
	if call.CallerSymbol == "" {
		call.CallerSymbol = extraction.ModuleCaller
	}
	call.ResolutionStatus = extraction.Unresolved
	f.result.Calls = append(f.result.Calls, call)
}

func (f *sourceFile) unsupported(node *sitter.Node, format string, args ...any) {
	f.result.AddError(f.relPath, startLine(node), extraction.ErrUnsupportedConstruct, true, format, args...)
}

// errorScopes describes how parse errors group into regions for one grammar.
type errorScopes struct {
	// containers are descended into when they contain errors.
	containers map[string]bool
	// declarations close an open error region.
	declarations map[string]bool
}

// collect records one recoverable SYNTAX_ERROR per distinct error region under node.
// Consecutive erroneous siblings form a single region; a well-formed
// declaration between them starts a new one.
func (s errorScopes) collect(f *sourceFile, node *sitter.Node) {
	open := false
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		switch {
		case child.IsError() || child.IsMissing():
			if !open {
				s.report(f, child)
				open = true
			}
		case child.IsExtra():
			// comments never affect regions
		case s.containers[child.Kind()] && child.HasError():
			open = false
			s.collect(f, child)
		case child.HasError():
			if !open {
				s.report(f, child)
				open = true
			}
		case s.declarations[child.Kind()]:
			open = false
		}
	}
}

func (s errorScopes) report(f *sourceFile, node *sitter.Node) {
	line := startLine(node)
	if bad := firstErrorNode(node); bad != nil {
		line = startLine(bad)
		node = bad
	}

	if node.IsMissing() {
		f.result.AddError(f.relPath, line, extraction.ErrSyntax, true, "missing %q", node.Kind())
		return
	}
	f.result.AddError(f.relPath, line, extraction.ErrSyntax, true, "syntax error near %q", snippet(f.text(node)))
}

// firstErrorNode returns the first ERROR or MISSING node in node's subtree.
func firstErrorNode(node *sitter.Node) *sitter.Node {
	var found *sitter.Node
	walkTree(node, func(n *sitter.Node) bool {
		if found != nil {
			return false
		}
		if n.IsError() || n.IsMissing() {
			found = n
			return false
		}
		return n.HasError()
	})
	return found
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const max = 40
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}

func set(kinds ...string) map[string]bool {
	m := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return m
}

// nodeText extracts the text content of a tree-sitter node.
func nodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}

func startLine(node *sitter.Node) int {
	return int(node.StartPosition().Row) + 1
}

func endLine(node *sitter.Node) int {
	return int(node.EndPosition().Row) + 1
}

// walkTree recursively walks a tree-sitter tree and calls the visitor for each node.
// Returning false from the visitor skips the node's children.
func walkTree(node *sitter.Node, visitor func(*sitter.Node) bool) {
	if node == nil {
		return
	}

	if !visitor(node) {
		return
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		walkTree(node.Child(i), visitor)
	}
}

// findChildByType finds the first child node with the given type.
func findChildByType(node *sitter.Node, nodeType string) *sitter.Node {
	if node == nil {
		return nil
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.Kind() == nodeType {
			return child
		}
	}
	return nil
}

// findChildrenByType finds all child nodes with the given type.
func findChildrenByType(node *sitter.Node, nodeType string) []*sitter.Node {
	var results []*sitter.Node
	if node == nil {
		return results
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.Kind() == nodeType {
			results = append(results, child)
		}
	}
	return results
}

// namedChildren returns node's named, non-extra children.
func namedChildren(node *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	if node == nil {
		return out
	}
	for i := uint(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(i)
		if child != nil && !child.IsExtra() {
			out = append(out, child)
		}
	}
	return out
}

// enclosing returns the nearest ancestor of node whose kind is in kinds.
func enclosing(node *sitter.Node, kinds map[string]bool) *sitter.Node {
	for cur := node.Parent(); cur != nil; cur = cur.Parent() {
		if kinds[cur.Kind()] {
			return cur
		}
	}
	return nil
}

// hasChildToken reports whether node has a direct child of the given kind,
// named or anonymous.
func hasChildToken(node *sitter.Node, kind string) bool {
	return findChildByType(node, kind) != nil
}

// stringLiteral returns the unquoted value of a string literal node, or "" if
// the node is not a plain string.
func stringLiteral(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	text := nodeText(node, source)
	for _, q := range []string{`"""`, `'''`, `"`, `'`, "`"} {
		if len(text) >= 2*len(q) && strings.HasPrefix(text, q) && strings.HasSuffix(text, q) {
			return text[len(q) : len(text)-len(q)]
		}
	}
	return ""
}

func isDunder(name string) bool {
	return len(name) > 4 && strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")
}
