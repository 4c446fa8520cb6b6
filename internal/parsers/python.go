package parsers

import (
	"strings"

	"github.com/mvp-joe/symbol-scanner/internal/extraction"
	sitter "github.com/tree-sitter/go-tree-sitter"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// Builtins that execute code built at runtime.
var pythonDynamicExec = set("eval", "exec", "compile")

var pythonErrorScopes = errorScopes{
	containers:   set("module", "class_definition", "block", "decorated_definition"),
	declarations: set("function_definition", "class_definition", "decorated_definition"),
}

// PythonExtractor extracts Python files.
type PythonExtractor struct {
	*treeSitterExtractor
}

// NewPythonExtractor creates a new Python extractor.
func NewPythonExtractor(opts ...Option) *PythonExtractor {
	lang := sitter.NewLanguage(python.Language())
	return &PythonExtractor{
		treeSitterExtractor: newTreeSitterExtractor(
			extraction.Python, lang, []string{".py", ".pyi"},
			pythonErrorScopes, visitPython, opts),
	}
}

func visitPython(f *sourceFile) {
	v := &pythonVisitor{f: f}
	v.walk(f.root, "")
}

type pythonVisitor struct {
	f *sourceFile
}

func (v *pythonVisitor) walk(node *sitter.Node, parentClass string) {
	if node == nil {
		return
	}

	switch node.Kind() {
	case "function_definition":
		v.function(node, parentClass)
	case "class_definition":
		v.class(node, parentClass)
		return
	case "call":
		v.call(node)
	case "import_statement":
		v.importStatement(node)
	case "import_from_statement":
		v.importFrom(node)
	case "future_import_statement":
		v.futureImport(node)
	case "assignment":
		if parentClass == "" && isPythonModuleLevel(node) {
			v.assignment(node)
		}
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		v.walk(node.Child(i), parentClass)
	}
}

func (v *pythonVisitor) function(node *sitter.Node, parentClass string) {
	// Functions with parse errors in their definition are skipped.
	if node.HasError() {
		return
	}
	body := node.ChildByFieldName("body")
	if body != nil && len(namedChildren(body)) == 0 {
		return
	}
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}

	name := v.f.text(nameNode)
	symType := extraction.SymbolFunction
	if parentClass != "" {
		symType = extraction.SymbolMethod
	}

	v.f.addSymbol(extraction.Symbol{
		Name:         name,
		Type:         symType,
		LineStart:    startLine(node),
		LineEnd:      endLine(node),
		Parameters:   extraction.IntPtr(v.countParameters(node.ChildByFieldName("parameters"), parentClass != "")),
		IsExported:   !strings.HasPrefix(name, "_"),
		ParentSymbol: parentClass,
		Docstring:    v.docstring(body),
	})
}

func (v *pythonVisitor) class(node *sitter.Node, parentClass string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := v.f.text(nameNode)
	body := node.ChildByFieldName("body")

	v.f.addSymbol(extraction.Symbol{
		Name:         name,
		Type:         extraction.SymbolClass,
		LineStart:    startLine(node),
		LineEnd:      endLine(node),
		IsExported:   !strings.HasPrefix(name, "_"),
		ParentSymbol: parentClass,
		Docstring:    v.docstring(body),
	})

	// Calls in the base class list belong to the enclosing scope.
	v.walk(node.ChildByFieldName("superclasses"), parentClass)

	if body != nil {
		for i := uint(0); i < body.ChildCount(); i++ {
			v.walk(body.Child(i), name)
		}
	}
}

// countParameters counts declared parameters, leaving out *args, **kwargs and
// a leading self/cls on methods.
func (v *pythonVisitor) countParameters(params *sitter.Node, isMethod bool) int {
	if params == nil {
		return 0
	}

	count := 0
	first := true
	for _, child := range namedChildren(params) {
		switch child.Kind() {
		case "identifier", "typed_parameter", "default_parameter", "typed_default_parameter":
		default:
			continue
		}
		if child.Kind() == "typed_parameter" &&
			(findChildByType(child, "list_splat_pattern") != nil || findChildByType(child, "dictionary_splat_pattern") != nil) {
			continue
		}

		if first && isMethod {
			first = false
			if n := v.parameterName(child); n == "self" || n == "cls" {
				continue
			}
		}
		first = false
		count++
	}
	return count
}

func (v *pythonVisitor) parameterName(param *sitter.Node) string {
	switch param.Kind() {
	case "identifier":
		return v.f.text(param)
	case "default_parameter", "typed_default_parameter":
		return v.f.text(param.ChildByFieldName("name"))
	case "typed_parameter":
		return v.f.text(findChildByType(param, "identifier"))
	}
	return ""
}

// docstring returns the leading string literal of a block.
func (v *pythonVisitor) docstring(body *sitter.Node) string {
	children := namedChildren(body)
	if len(children) == 0 || children[0].Kind() != "expression_statement" {
		return ""
	}
	str := children[0].NamedChild(0)
	if str == nil || str.Kind() != "string" {
		return ""
	}
	if content := findChildByType(str, "string_content"); content != nil {
		return strings.TrimSpace(v.f.text(content))
	}
	return strings.TrimSpace(stringLiteral(str, v.f.source))
}

func (v *pythonVisitor) call(node *sitter.Node) {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return
	}

	call := extraction.Call{
		CallerSymbol: v.enclosingFunction(node),
		Line:         startLine(node),
	}

	switch fn.Kind() {
	case "identifier":
		call.CalleeSymbol = v.f.text(fn)
		call.CallType = extraction.CallSync
		call.IsDynamicCodeExecution = pythonDynamicExec[call.CalleeSymbol]
		if call.CalleeSymbol == "__import__" {
			v.dynamicImport(node)
		}
	case "attribute":
		attr := fn.ChildByFieldName("attribute")
		if attr == nil {
			return
		}
		call.CalleeSymbol = v.f.text(attr)
		call.CalleeObject = v.rootObject(fn)
		call.CallType = extraction.CallDynamic
		if call.CalleeSymbol == "import_module" && call.CalleeObject == "importlib" {
			v.dynamicImport(node)
		}
	default:
		return
	}

	if parent := node.Parent(); parent != nil && parent.Kind() == "await" {
		call.CallType = extraction.CallAsync
	}
	v.f.addCall(call)
}

// rootObject returns the leftmost identifier of an attribute chain
// ("os" for os.path.join), or "" when the chain starts with an expression.
func (v *pythonVisitor) rootObject(attr *sitter.Node) string {
	cur := attr
	for cur != nil && cur.Kind() == "attribute" {
		cur = cur.ChildByFieldName("object")
	}
	if cur != nil && cur.Kind() == "identifier" {
		return v.f.text(cur)
	}
	return ""
}

var pythonScopes = set("function_definition")

func (v *pythonVisitor) enclosingFunction(node *sitter.Node) string {
	fn := enclosing(node, pythonScopes)
	if fn == nil {
		return extraction.ModuleCaller
	}
	return v.f.text(fn.ChildByFieldName("name"))
}

// dynamicImport records __import__("m") and importlib.import_module("m") when
// the module name is a literal.
func (v *pythonVisitor) dynamicImport(call *sitter.Node) {
	args := namedChildren(call.ChildByFieldName("arguments"))
	if len(args) == 0 || args[0].Kind() != "string" {
		return
	}
	module := v.pythonString(args[0])
	if module == "" {
		return
	}
	v.f.addImport(extraction.Import{
		ImportedPath: module,
		ImportType:   "dynamic",
		Line:         startLine(call),
	})
}

func (v *pythonVisitor) pythonString(str *sitter.Node) string {
	if content := findChildByType(str, "string_content"); content != nil {
		return v.f.text(content)
	}
	return stringLiteral(str, v.f.source)
}

func (v *pythonVisitor) importType(node *sitter.Node) string {
	if v.inTypeChecking(node) {
		return "type_checking"
	}
	return "static"
}

// inTypeChecking reports whether node sits under "if TYPE_CHECKING:".
func (v *pythonVisitor) inTypeChecking(node *sitter.Node) bool {
	for cur := node.Parent(); cur != nil; cur = cur.Parent() {
		if cur.Kind() != "if_statement" {
			continue
		}
		cond := v.f.text(cur.ChildByFieldName("condition"))
		if cond == "TYPE_CHECKING" || strings.HasSuffix(cond, ".TYPE_CHECKING") {
			return true
		}
	}
	return false
}

// importStatement handles "import a.b" and "import a.b as c".
func (v *pythonVisitor) importStatement(node *sitter.Node) {
	importType := v.importType(node)
	for _, child := range namedChildren(node) {
		imp := extraction.Import{ImportType: importType, Line: startLine(node)}
		switch child.Kind() {
		case "dotted_name":
			imp.ImportedPath = v.f.text(child)
		case "aliased_import":
			imp.ImportedPath = v.f.text(child.ChildByFieldName("name"))
			imp.Alias = v.f.text(child.ChildByFieldName("alias"))
		default:
			continue
		}
		if imp.ImportedPath != "" {
			v.f.addImport(imp)
		}
	}
}

// importFrom handles "from m import a, b as c" and "from m import *",
// one record per imported name.
func (v *pythonVisitor) importFrom(node *sitter.Node) {
	module := v.f.text(node.ChildByFieldName("module_name"))
	if module == "" {
		return
	}
	importType := v.importType(node)
	line := startLine(node)

	afterImport := false
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil || child.IsExtra() {
			continue
		}
		if child.Kind() == "import" {
			afterImport = true
			continue
		}
		if !afterImport {
			continue
		}

		imp := extraction.Import{ImportedPath: module, ImportType: importType, Line: line}
		switch child.Kind() {
		case "wildcard_import":
			imp.ImportedSymbols = extraction.Wildcard
		case "dotted_name", "identifier":
			imp.ImportedSymbols = v.f.text(child)
		case "aliased_import":
			imp.ImportedSymbols = v.f.text(child.ChildByFieldName("name"))
			imp.Alias = v.f.text(child.ChildByFieldName("alias"))
		default:
			continue
		}
		v.f.addImport(imp)
	}
}

func (v *pythonVisitor) futureImport(node *sitter.Node) {
	for _, child := range namedChildren(node) {
		if child.Kind() != "dotted_name" {
			continue
		}
		v.f.addImport(extraction.Import{
			ImportedPath:    "__future__",
			ImportedSymbols: v.f.text(child),
			ImportType:      "static",
			Line:            startLine(node),
		})
	}
}

// isPythonModuleLevel reports whether an assignment is a statement directly
// in the module body, outside any control flow.
func isPythonModuleLevel(node *sitter.Node) bool {
	stmt := node.Parent()
	if stmt == nil || stmt.Kind() != "expression_statement" {
		return false
	}
	module := stmt.Parent()
	return module != nil && module.Kind() == "module"
}

// assignment emits one variable per plain name bound by a module-level
// assignment, following chains like a = b = c = 1.
func (v *pythonVisitor) assignment(stmt *sitter.Node) {
	for cur := stmt; cur != nil && cur.Kind() == "assignment"; cur = cur.ChildByFieldName("right") {
		// "x: int" declares a type without binding a value.
		if !hasChildToken(cur, "=") {
			return
		}
		v.targets(cur.ChildByFieldName("left"), stmt)
	}
}

func (v *pythonVisitor) targets(target, stmt *sitter.Node) {
	if target == nil {
		return
	}
	switch target.Kind() {
	case "identifier":
		name := v.f.text(target)
		if isDunder(name) {
			return
		}
		v.f.addSymbol(extraction.Symbol{
			Name:       name,
			Type:       extraction.SymbolVariable,
			LineStart:  startLine(stmt),
			LineEnd:    endLine(stmt),
			IsExported: !strings.HasPrefix(name, "_"),
		})
	case "pattern_list", "tuple_pattern", "list_pattern", "list_splat_pattern", "parenthesized_expression":
		for _, child := range namedChildren(target) {
			v.targets(child, stmt)
		}
	}
	// attribute and subscript targets rebind existing objects; they are not new names.
}
