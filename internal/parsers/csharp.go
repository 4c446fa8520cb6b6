package parsers

import (
	"strings"

	"github.com/mvp-joe/symbol-scanner/internal/extraction"
	sitter "github.com/tree-sitter/go-tree-sitter"
	csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
)

var csharpErrorScopes = errorScopes{
	containers: set(
		"compilation_unit", "namespace_declaration", "file_scoped_namespace_declaration",
		"declaration_list", "class_declaration", "struct_declaration",
		"interface_declaration", "record_declaration",
	),
	declarations: set(
		"namespace_declaration", "class_declaration", "struct_declaration",
		"interface_declaration", "record_declaration", "enum_declaration",
		"delegate_declaration", "method_declaration", "constructor_declaration",
		"property_declaration", "field_declaration", "event_declaration",
		"event_field_declaration",
	),
}

// Type declarations whose members are extracted with the type as parent.
var csharpTypeKinds = map[string]extraction.SymbolType{
	"class_declaration":     extraction.SymbolClass,
	"struct_declaration":    extraction.SymbolClass,
	"record_declaration":    extraction.SymbolClass,
	"interface_declaration": extraction.SymbolInterface,
}

// Node kinds that can appear as a method's return type.
var csharpTypeNodes = set(
	"predefined_type", "generic_name", "qualified_name", "nullable_type",
	"array_type", "pointer_type", "tuple_type", "ref_type", "implicit_type",
)

var (
	csharpMembers    = set("method_declaration", "local_function_statement", "constructor_declaration", "property_declaration", "accessor_declaration")
	csharpProperties = set("property_declaration")
)

// CSharpExtractor extracts C# files with the tree-sitter grammar.
type CSharpExtractor struct {
	*treeSitterExtractor
}

// NewCSharpExtractor creates a new C# extractor.
func NewCSharpExtractor(opts ...Option) *CSharpExtractor {
	lang := sitter.NewLanguage(csharp.Language())
	return &CSharpExtractor{
		treeSitterExtractor: newTreeSitterExtractor(
			extraction.CSharp, lang, []string{".cs"},
			csharpErrorScopes, visitCSharp, opts),
	}
}

func visitCSharp(f *sourceFile) {
	v := &csharpVisitor{f: f}

	// A file-scoped namespace applies to every declaration in the file,
	// whether the grammar nests them under it or not.
	namespace := ""
	if ns := findChildByType(f.root, "file_scoped_namespace_declaration"); ns != nil {
		namespace = v.f.text(ns.ChildByFieldName("name"))
		v.addNamespace(namespace)
	}
	v.walk(f.root, "", namespace)
}

type csharpVisitor struct {
	f *sourceFile
}

func (v *csharpVisitor) walk(node *sitter.Node, parentType, namespace string) {
	if node == nil {
		return
	}

	kind := node.Kind()
	switch kind {
	case "namespace_declaration":
		ns := v.f.text(node.ChildByFieldName("name"))
		if namespace != "" {
			ns = namespace + "." + ns
		}
		v.addNamespace(ns)
		v.walkChildren(node, parentType, ns)
		return
	case "class_declaration", "struct_declaration", "record_declaration", "interface_declaration":
		v.typeDeclaration(node, csharpTypeKinds[kind], parentType, namespace)
		return
	case "enum_declaration", "delegate_declaration":
		v.addType(node, extraction.SymbolClass, parentType)
		return
	case "method_declaration", "local_function_statement", "constructor_declaration",
		"property_declaration", "event_declaration", "field_declaration", "event_field_declaration":
		// A member whose own declaration failed to parse is skipped, but the
		// calls inside it are still collected.
		if !node.HasError() {
			v.memberDeclaration(node, kind, parentType)
		}
	case "operator_declaration", "conversion_operator_declaration":
		v.f.unsupported(node, "%s is not extracted", strings.ReplaceAll(kind, "_", " "))
		return
	case "invocation_expression":
		v.invocation(node)
	case "object_creation_expression":
		v.objectCreation(node)
	case "using_directive":
		v.using(node)
		return
	case "extern_alias_directive":
		v.externAlias(node)
		return
	}

	v.walkChildren(node, parentType, namespace)
}

func (v *csharpVisitor) walkChildren(node *sitter.Node, parentType, namespace string) {
	for i := uint(0); i < node.ChildCount(); i++ {
		v.walk(node.Child(i), parentType, namespace)
	}
}

func (v *csharpVisitor) addNamespace(ns string) {
	if ns == "" {
		return
	}
	for _, existing := range v.f.result.Namespaces {
		if existing == ns {
			return
		}
	}
	v.f.result.Namespaces = append(v.f.result.Namespaces, ns)
}

func (v *csharpVisitor) typeDeclaration(node *sitter.Node, symType extraction.SymbolType, parentType, namespace string) {
	name := v.addType(node, symType, parentType)
	if name == "" {
		return
	}

	// Base lists and attributes can hold calls; they belong to the outer scope.
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if child.Kind() == "declaration_list" {
			v.walkChildren(child, name, namespace)
			continue
		}
		v.walk(child, parentType, namespace)
	}
}

// addType emits a class/interface symbol and returns its name.
func (v *csharpVisitor) addType(node *sitter.Node, symType extraction.SymbolType, parentType string) string {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		nameNode = findChildByType(node, "identifier")
	}
	if nameNode == nil {
		return ""
	}
	name := v.f.text(nameNode)

	v.f.addSymbol(extraction.Symbol{
		Name:         name,
		Type:         symType,
		LineStart:    startLine(node),
		LineEnd:      endLine(node),
		IsExported:   v.isExported(node),
		ParentSymbol: parentType,
		Docstring:    v.xmlDoc(node),
	})
	return name
}

func (v *csharpVisitor) memberDeclaration(node *sitter.Node, kind, parentType string) {
	switch kind {
	case "method_declaration":
		v.method(node, parentType, v.isExported(node))
	case "local_function_statement":
		v.method(node, parentType, false)
	case "constructor_declaration":
		v.constructor(node, parentType)
	case "property_declaration", "event_declaration":
		v.member(node, extraction.SymbolProperty, parentType)
	case "field_declaration", "event_field_declaration":
		v.fields(node, parentType)
	}
}

// method emits methods and local functions. Local functions belong to the
// enclosing type and are never exported.
func (v *csharpVisitor) method(node *sitter.Node, parentType string, exported bool) {
	nameNode := methodNameNode(node)
	if nameNode == nil {
		return
	}
	v.f.addSymbol(extraction.Symbol{
		Name:         v.f.text(nameNode),
		Type:         extraction.SymbolMethod,
		LineStart:    startLine(node),
		LineEnd:      endLine(node),
		Parameters:   extraction.IntPtr(countCSharpParameters(node)),
		IsExported:   exported,
		ParentSymbol: parentType,
		Docstring:    v.xmlDoc(node),
	})
}

func (v *csharpVisitor) constructor(node *sitter.Node, parentType string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		nameNode = findChildByType(node, "identifier")
	}
	if nameNode == nil {
		return
	}
	v.f.addSymbol(extraction.Symbol{
		Name:         v.f.text(nameNode),
		Type:         extraction.SymbolMethod,
		LineStart:    startLine(node),
		LineEnd:      endLine(node),
		Parameters:   extraction.IntPtr(countCSharpParameters(node)),
		IsExported:   v.isExported(node),
		ParentSymbol: parentType,
		Docstring:    v.xmlDoc(node),
	})
}

// member emits properties and events declared with accessors.
func (v *csharpVisitor) member(node *sitter.Node, symType extraction.SymbolType, parentType string) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	v.f.addSymbol(extraction.Symbol{
		Name:         v.f.text(nameNode),
		Type:         symType,
		LineStart:    startLine(node),
		LineEnd:      endLine(node),
		IsExported:   v.isExported(node),
		ParentSymbol: parentType,
		Docstring:    v.xmlDoc(node),
	})
}

// fields emits one field per declarator: "int a, b;" declares two.
func (v *csharpVisitor) fields(node *sitter.Node, parentType string) {
	decl := findChildByType(node, "variable_declaration")
	if decl == nil {
		return
	}
	exported := v.isExported(node)
	doc := v.xmlDoc(node)

	for _, declarator := range findChildrenByType(decl, "variable_declarator") {
		nameNode := declarator.ChildByFieldName("name")
		if nameNode == nil {
			nameNode = findChildByType(declarator, "identifier")
		}
		if nameNode == nil || nameNode.Kind() != "identifier" {
			continue
		}
		v.f.addSymbol(extraction.Symbol{
			Name:         v.f.text(nameNode),
			Type:         extraction.SymbolField,
			LineStart:    startLine(node),
			LineEnd:      endLine(node),
			IsExported:   exported,
			ParentSymbol: parentType,
			Docstring:    doc,
		})
	}
}

// methodNameNode finds a method's name, skipping a return type that is itself
// an identifier ("Task<T> Run<T>()" or "Foo Make()").
func methodNameNode(node *sitter.Node) *sitter.Node {
	if name := node.ChildByFieldName("name"); name != nil {
		return name
	}

	sawType := false
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		switch {
		case child == nil:
			continue
		case csharpTypeNodes[child.Kind()]:
			sawType = true
		case child.Kind() == "identifier":
			if sawType {
				return child
			}
			sawType = true
		case child.Kind() == "parameter_list":
			return nil
		}
	}
	return nil
}

func countCSharpParameters(node *sitter.Node) int {
	params := node.ChildByFieldName("parameters")
	if params == nil {
		params = findChildByType(node, "parameter_list")
	}
	return len(findChildrenByType(params, "parameter"))
}

// isExported treats public, internal and protected as exported and private
// as not; members without a modifier count as exported.
func (v *csharpVisitor) isExported(node *sitter.Node) bool {
	for _, mod := range findChildrenByType(node, "modifier") {
		switch v.f.text(mod) {
		case "private":
			return false
		case "public", "internal", "protected":
			return true
		}
	}
	return true
}

// xmlDoc returns the <summary> text of the /// comment block above node.
func (v *csharpVisitor) xmlDoc(node *sitter.Node) string {
	var comments []string
	for prev := node.PrevSibling(); prev != nil && prev.Kind() == "comment"; prev = prev.PrevSibling() {
		text := v.f.text(prev)
		if !strings.HasPrefix(text, "///") {
			break
		}
		comments = append([]string{text}, comments...)
	}
	if len(comments) == 0 {
		return ""
	}

	var summary []string
	inSummary := false
	for _, raw := range strings.Split(strings.Join(comments, "\n"), "\n") {
		line := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "///"))
		if strings.Contains(line, "<summary>") {
			inSummary = true
			line = strings.TrimSpace(strings.ReplaceAll(line, "<summary>", ""))
		}
		if strings.Contains(line, "</summary>") {
			if line = strings.TrimSpace(strings.ReplaceAll(line, "</summary>", "")); line != "" {
				summary = append(summary, line)
			}
			break
		}
		if inSummary && line != "" {
			summary = append(summary, line)
		}
	}
	return strings.Join(summary, " ")
}

func (v *csharpVisitor) invocation(node *sitter.Node) {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		fn = node.Child(0)
	}
	if fn == nil {
		return
	}

	call := extraction.Call{
		CallerSymbol: v.enclosingMember(node),
		Line:         startLine(node),
		CallType:     extraction.CallSync,
	}

	switch fn.Kind() {
	case "identifier":
		call.CalleeSymbol = v.f.text(fn)
	case "generic_name":
		call.CalleeSymbol = v.f.text(findChildByType(fn, "identifier"))
	case "member_access_expression":
		call.CalleeSymbol = v.simpleName(fn.ChildByFieldName("name"))
		call.CalleeObject = v.receiver(fn.ChildByFieldName("expression"))
		call.CallType = extraction.CallDynamic
	case "conditional_access_expression":
		// Handler?.Invoke(...)
		target := fn.ChildByFieldName("condition")
		if target == nil {
			target = fn.NamedChild(0)
		}
		v.conditionalCall(&call, target, findChildByType(fn, "member_binding_expression"))
	case "member_binding_expression":
		// ?.Invoke(...) nested under the conditional access
		parent := node.Parent()
		if parent == nil || parent.Kind() != "conditional_access_expression" {
			return
		}
		target := parent.ChildByFieldName("condition")
		if target == nil {
			target = parent.NamedChild(0)
		}
		v.conditionalCall(&call, target, fn)
	}

	if call.CalleeSymbol == "" {
		return
	}
	if parent := node.Parent(); parent != nil && parent.Kind() == "await_expression" {
		call.CallType = extraction.CallAsync
	}
	v.f.addCall(call)
}

// conditionalCall fills call for "target?.Member()". Raising an event through
// ?.Invoke() is recorded as an event call on the target.
func (v *csharpVisitor) conditionalCall(call *extraction.Call, target, binding *sitter.Node) {
	if binding == nil {
		return
	}
	member := v.simpleName(binding.ChildByFieldName("name"))
	if member == "" {
		member = v.simpleName(findChildByType(binding, "identifier"))
	}
	targetName := v.receiver(target)

	if member == "Invoke" && target != nil && target.Kind() == "identifier" {
		call.CalleeSymbol = targetName
		call.CallType = extraction.CallEvent
		return
	}
	call.CalleeSymbol = member
	call.CalleeObject = targetName
	call.CallType = extraction.CallDynamic
}

func (v *csharpVisitor) simpleName(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	if node.Kind() == "generic_name" {
		return v.f.text(findChildByType(node, "identifier"))
	}
	return v.f.text(node)
}

// receiver returns the root object of a member access chain.
func (v *csharpVisitor) receiver(node *sitter.Node) string {
	for node != nil {
		switch node.Kind() {
		case "identifier", "predefined_type":
			return v.f.text(node)
		case "this_expression", "this":
			return "this"
		case "base_expression", "base":
			return "base"
		case "generic_name":
			return v.f.text(findChildByType(node, "identifier"))
		case "member_access_expression":
			node = node.ChildByFieldName("expression")
		default:
			return ""
		}
	}
	return ""
}

func (v *csharpVisitor) objectCreation(node *sitter.Node) {
	typeNode := node.ChildByFieldName("type")
	if typeNode == nil {
		return
	}
	name := ""
	switch typeNode.Kind() {
	case "identifier":
		name = v.f.text(typeNode)
	case "generic_name":
		name = v.f.text(findChildByType(typeNode, "identifier"))
	case "qualified_name":
		name = v.simpleName(typeNode.ChildByFieldName("name"))
		if name == "" {
			text := v.f.text(typeNode)
			name = text[strings.LastIndex(text, ".")+1:]
		}
	default:
		return
	}
	if i := strings.IndexByte(name, '<'); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return
	}

	v.f.addCall(extraction.Call{
		CallerSymbol: v.enclosingMember(node),
		CalleeSymbol: name,
		CallType:     extraction.CallConstructor,
		Line:         startLine(node),
	})
}

// enclosingMember names the method, constructor or property that contains
// node. Accessors are reported as "Property.get".
func (v *csharpVisitor) enclosingMember(node *sitter.Node) string {
	for cur := enclosing(node, csharpMembers); cur != nil; cur = enclosing(cur, csharpMembers) {
		switch cur.Kind() {
		case "method_declaration", "local_function_statement":
			if name := methodNameNode(cur); name != nil {
				return v.f.text(name)
			}
		case "constructor_declaration", "property_declaration":
			if name := cur.ChildByFieldName("name"); name != nil {
				return v.f.text(name)
			}
		case "accessor_declaration":
			prop := enclosing(cur, csharpProperties)
			if prop == nil {
				continue
			}
			propName := v.f.text(prop.ChildByFieldName("name"))
			for i := uint(0); i < cur.ChildCount(); i++ {
				switch tok := v.f.text(cur.Child(i)); tok {
				case "get", "set", "init":
					return propName + "." + tok
				}
			}
			return propName
		}
	}
	return extraction.ModuleCaller
}

// using handles plain, static, global and alias using directives.
func (v *csharpVisitor) using(node *sitter.Node) {
	isStatic := hasChildToken(node, "static")
	isGlobal := hasChildToken(node, "global")
	hasAlias := hasChildToken(node, "=")

	var target *sitter.Node
	alias := ""
	for _, child := range namedChildren(node) {
		switch child.Kind() {
		case "qualified_name", "generic_name", "alias_qualified_name":
			target = child
		case "identifier":
			if hasAlias && alias == "" {
				alias = v.f.text(child)
			} else if target == nil {
				target = child
			}
		case "name_equals":
			alias = v.f.text(findChildByType(child, "identifier"))
		}
	}
	if target == nil {
		return
	}

	importType := "static"
	switch {
	case isGlobal:
		importType = "global"
	case isStatic:
		importType = "using_static"
	}

	v.f.addImport(extraction.Import{
		ImportedPath: v.f.text(target),
		ImportType:   importType,
		Alias:        alias,
		Line:         startLine(node),
	})
}

func (v *csharpVisitor) externAlias(node *sitter.Node) {
	name := findChildByType(node, "identifier")
	if name == nil {
		return
	}
	v.f.addImport(extraction.Import{
		ImportedPath: v.f.text(name),
		ImportType:   "extern",
		Line:         startLine(node),
	})
}
