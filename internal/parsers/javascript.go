package parsers

import (
	"strings"

	"github.com/mvp-joe/symbol-scanner/internal/extraction"
	sitter "github.com/tree-sitter/go-tree-sitter"
	javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
)

// Globals that evaluate code built at runtime.
var ecmaDynamicExec = set("eval", "Function")

var ecmaErrorScopes = errorScopes{
	containers: set(
		"program", "export_statement", "class_declaration", "abstract_class_declaration",
		"class_body", "statement_block",
	),
	declarations: set(
		"function_declaration", "generator_function_declaration", "class_declaration",
		"abstract_class_declaration", "lexical_declaration", "variable_declaration",
		"method_definition", "export_statement", "public_field_definition", "field_definition",
		"interface_declaration", "type_alias_declaration", "enum_declaration",
		"abstract_method_signature",
	),
}

var ecmaFunctionValues = set("arrow_function", "function_expression", "function", "generator_function")

var ecmaParameterKinds = set(
	"identifier", "assignment_pattern", "rest_pattern", "object_pattern", "array_pattern",
	"required_parameter", "optional_parameter", "rest_parameter",
)

// JavaScriptExtractor extracts JavaScript files, including JSX.
type JavaScriptExtractor struct {
	*treeSitterExtractor
}

// NewJavaScriptExtractor creates a new JavaScript extractor.
func NewJavaScriptExtractor(opts ...Option) *JavaScriptExtractor {
	lang := sitter.NewLanguage(javascript.Language())
	return &JavaScriptExtractor{
		treeSitterExtractor: newTreeSitterExtractor(
			extraction.JavaScript, lang, []string{".js", ".jsx", ".mjs", ".cjs"},
			ecmaErrorScopes, visitECMAScript, opts),
	}
}

func visitECMAScript(f *sourceFile) {
	v := &ecmaVisitor{f: f}
	v.walk(f.root, ecmaScope{caller: extraction.ModuleCaller})
}

// ecmaScope is the lexical context threaded through the walk.
type ecmaScope struct {
	parentClass string
	caller      string
}

// ecmaVisitor handles both JavaScript and TypeScript trees. TypeScript-only
// node kinds never occur in JavaScript trees.
type ecmaVisitor struct {
	f *sourceFile
}

func (v *ecmaVisitor) walk(node *sitter.Node, scope ecmaScope) {
	if node == nil {
		return
	}

	switch node.Kind() {
	case "export_statement":
		v.reExport(node)
	case "function_declaration", "generator_function_declaration":
		v.function(node, scope)
		return
	case "class_declaration", "abstract_class_declaration", "class":
		v.class(node, scope)
		return
	case "method_definition":
		v.method(node, scope)
		return
	case "public_field_definition", "field_definition":
		v.field(node, scope)
	case "lexical_declaration", "variable_declaration":
		if isECMAModuleLevel(node) {
			v.declaration(node, scope)
			return
		}
	case "call_expression":
		if !v.call(node, scope) {
			return
		}
	case "new_expression":
		v.newExpression(node, scope)
	case "import_statement":
		v.importStatement(node)
		return
	case "interface_declaration":
		v.tsInterface(node)
		return
	case "type_alias_declaration":
		v.tsTypeAlias(node)
		return
	case "enum_declaration":
		v.tsEnum(node)
		return
	case "abstract_method_signature":
		v.tsAbstractMethod(node, scope)
		return
	case "function_signature":
		// Overload signatures have no body and are not separate symbols.
		return
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		v.walk(node.Child(i), scope)
	}
}

func isExportedDecl(node *sitter.Node) bool {
	parent := node.Parent()
	return parent != nil && parent.Kind() == "export_statement"
}

// isECMAModuleLevel reports whether a declaration is a top-level statement,
// optionally wrapped in export.
func isECMAModuleLevel(node *sitter.Node) bool {
	parent := node.Parent()
	if parent != nil && parent.Kind() == "export_statement" {
		parent = parent.Parent()
	}
	return parent != nil && parent.Kind() == "program"
}

func (v *ecmaVisitor) function(node *sitter.Node, scope ecmaScope) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		// export default function () {}
		v.walk(node.ChildByFieldName("body"), scope)
		return
	}
	name := v.f.text(nameNode)

	v.f.addSymbol(extraction.Symbol{
		Name:       name,
		Type:       extraction.SymbolFunction,
		LineStart:  startLine(node),
		LineEnd:    endLine(node),
		Parameters: extraction.IntPtr(v.countParameters(node)),
		IsExported: isExportedDecl(node),
		Docstring:  v.jsDoc(node),
	})

	v.walk(node.ChildByFieldName("body"), ecmaScope{caller: name})
}

func (v *ecmaVisitor) class(node *sitter.Node, scope ecmaScope) {
	// Class expressions are values, not declarations.
	name := ""
	if node.Kind() != "class" {
		name = v.f.text(node.ChildByFieldName("name"))
	}

	if name != "" {
		v.f.addSymbol(extraction.Symbol{
			Name:       name,
			Type:       extraction.SymbolClass,
			LineStart:  startLine(node),
			LineEnd:    endLine(node),
			IsExported: isExportedDecl(node),
			Docstring:  v.jsDoc(node),
		})
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if child.Kind() == "class_body" && name != "" {
			v.walkChildren(child, ecmaScope{parentClass: name, caller: scope.caller})
			continue
		}
		v.walk(child, scope)
	}
}

func (v *ecmaVisitor) walkChildren(node *sitter.Node, scope ecmaScope) {
	for i := uint(0); i < node.ChildCount(); i++ {
		v.walk(node.Child(i), scope)
	}
}

func (v *ecmaVisitor) method(node *sitter.Node, scope ecmaScope) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	if nameNode.Kind() == "computed_property_name" {
		v.f.unsupported(node, "computed method name %s is not extracted", snippet(v.f.text(nameNode)))
		v.walk(node.ChildByFieldName("body"), scope)
		return
	}
	name := strings.Trim(v.f.text(nameNode), `"'`)

	if scope.parentClass == "" {
		// Object literal methods are not declarations; keep their calls.
		v.walk(node.ChildByFieldName("body"), ecmaScope{caller: name})
		return
	}

	v.f.addSymbol(extraction.Symbol{
		Name:         name,
		Type:         extraction.SymbolMethod,
		LineStart:    startLine(node),
		LineEnd:      endLine(node),
		Parameters:   extraction.IntPtr(v.countParameters(node)),
		IsExported:   !strings.HasPrefix(name, "#") && !v.isPrivate(node),
		ParentSymbol: scope.parentClass,
		Docstring:    v.jsDoc(node),
	})

	v.walk(node.ChildByFieldName("body"), ecmaScope{caller: name})
}

func (v *ecmaVisitor) field(node *sitter.Node, scope ecmaScope) {
	if scope.parentClass == "" {
		return
	}
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		nameNode = node.ChildByFieldName("property")
	}
	if nameNode == nil {
		return
	}
	if nameNode.Kind() == "computed_property_name" {
		v.f.unsupported(node, "computed field name %s is not extracted", snippet(v.f.text(nameNode)))
		return
	}
	name := v.f.text(nameNode)

	v.f.addSymbol(extraction.Symbol{
		Name:         name,
		Type:         extraction.SymbolField,
		LineStart:    startLine(node),
		LineEnd:      endLine(node),
		IsExported:   !strings.HasPrefix(name, "#") && !v.isPrivate(node),
		ParentSymbol: scope.parentClass,
		Docstring:    v.jsDoc(node),
	})
}

// isPrivate reports a TypeScript "private" accessibility modifier.
func (v *ecmaVisitor) isPrivate(node *sitter.Node) bool {
	mod := findChildByType(node, "accessibility_modifier")
	return mod != nil && v.f.text(mod) == "private"
}

// declaration handles module-level const/let/var. A declarator bound to a
// function value is a function; anything else declares variables.
func (v *ecmaVisitor) declaration(node *sitter.Node, scope ecmaScope) {
	exported := isExportedDecl(node)
	doc := v.jsDoc(node)

	for _, declarator := range findChildrenByType(node, "variable_declarator") {
		nameNode := declarator.ChildByFieldName("name")
		value := declarator.ChildByFieldName("value")
		if nameNode == nil {
			continue
		}

		if nameNode.Kind() == "identifier" && value != nil && ecmaFunctionValues[value.Kind()] {
			name := v.f.text(nameNode)
			v.f.addSymbol(extraction.Symbol{
				Name:       name,
				Type:       extraction.SymbolFunction,
				LineStart:  startLine(node),
				LineEnd:    endLine(node),
				Parameters: extraction.IntPtr(v.countParameters(value)),
				IsExported: exported,
				Docstring:  doc,
			})
			v.walk(value.ChildByFieldName("body"), ecmaScope{caller: name})
			continue
		}

		for _, name := range v.bindingNames(nameNode) {
			if isDunder(name) {
				continue
			}
			v.f.addSymbol(extraction.Symbol{
				Name:       name,
				Type:       extraction.SymbolVariable,
				LineStart:  startLine(node),
				LineEnd:    endLine(node),
				IsExported: exported,
			})
		}
		v.walk(value, scope)
	}
}

// bindingNames expands a binding pattern into the names it declares.
func (v *ecmaVisitor) bindingNames(pattern *sitter.Node) []string {
	if pattern == nil {
		return nil
	}
	switch pattern.Kind() {
	case "identifier", "shorthand_property_identifier_pattern":
		return []string{v.f.text(pattern)}
	case "assignment_pattern", "object_assignment_pattern":
		return v.bindingNames(pattern.ChildByFieldName("left"))
	case "pair_pattern":
		return v.bindingNames(pattern.ChildByFieldName("value"))
	case "object_pattern", "array_pattern", "rest_pattern":
		var names []string
		for _, child := range namedChildren(pattern) {
			names = append(names, v.bindingNames(child)...)
		}
		return names
	}
	return nil
}

// countParameters counts formal parameters. A TypeScript "this" parameter
// only types the receiver and is not counted.
func (v *ecmaVisitor) countParameters(node *sitter.Node) int {
	if single := node.ChildByFieldName("parameter"); single != nil {
		return 1
	}
	params := node.ChildByFieldName("parameters")
	if params == nil {
		params = findChildByType(node, "formal_parameters")
	}

	count := 0
	for _, child := range namedChildren(params) {
		if !ecmaParameterKinds[child.Kind()] {
			continue
		}
		if pattern := child.ChildByFieldName("pattern"); pattern != nil && pattern.Kind() == "this" {
			continue
		}
		count++
	}
	return count
}

// jsDoc returns the description of the /** */ comment above node, up to the first tag.
func (v *ecmaVisitor) jsDoc(node *sitter.Node) string {
	target := node
	if isExportedDecl(node) {
		target = node.Parent()
	}
	prev := target.PrevSibling()
	if prev == nil || prev.Kind() != "comment" {
		return ""
	}
	text := strings.TrimSpace(v.f.text(prev))
	if !strings.HasPrefix(text, "/**") {
		return ""
	}
	text = strings.TrimSuffix(strings.TrimPrefix(text, "/**"), "*/")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "*"))
		if strings.HasPrefix(line, "@") {
			break
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, " ")
}

// call records a call expression. It returns false when the node was an
// import (require or import()) whose arguments need no further walking.
func (v *ecmaVisitor) call(node *sitter.Node, scope ecmaScope) bool {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return true
	}

	call := extraction.Call{
		CallerSymbol: scope.caller,
		Line:         startLine(node),
		CallType:     extraction.CallSync,
	}

	switch fn.Kind() {
	case "import":
		v.moduleCall(node, "dynamic")
		return false
	case "identifier":
		call.CalleeSymbol = v.f.text(fn)
		if call.CalleeSymbol == "require" && v.moduleCall(node, "require") {
			return false
		}
		call.IsDynamicCodeExecution = ecmaDynamicExec[call.CalleeSymbol]
	case "member_expression":
		prop := fn.ChildByFieldName("property")
		if prop == nil {
			return true
		}
		call.CalleeSymbol = v.f.text(prop)
		call.CalleeObject = v.rootObject(fn)
		call.CallType = extraction.CallDynamic
	default:
		return true
	}

	if parent := node.Parent(); parent != nil && parent.Kind() == "await_expression" {
		call.CallType = extraction.CallAsync
	}
	v.f.addCall(call)
	return true
}

// rootObject returns the leftmost identifier (or this/super) of a member chain.
func (v *ecmaVisitor) rootObject(member *sitter.Node) string {
	cur := member
	for cur != nil && cur.Kind() == "member_expression" {
		cur = cur.ChildByFieldName("object")
	}
	if cur == nil {
		return ""
	}
	switch cur.Kind() {
	case "identifier", "this", "super":
		return v.f.text(cur)
	}
	return ""
}

// moduleCall records require("m") and import("m") with a literal argument.
// A require bound by a declarator takes the bound names as aliases.
func (v *ecmaVisitor) moduleCall(node *sitter.Node, importType string) bool {
	args := namedChildren(node.ChildByFieldName("arguments"))
	if len(args) == 0 || args[0].Kind() != "string" {
		return false
	}
	module := v.stringValue(args[0])
	if module == "" {
		return false
	}

	imp := extraction.Import{ImportedPath: module, ImportType: importType, Line: startLine(node)}
	declarator := node.Parent()
	if importType != "require" || declarator == nil || declarator.Kind() != "variable_declarator" {
		v.f.addImport(imp)
		return true
	}

	switch pattern := declarator.ChildByFieldName("name"); {
	case pattern != nil && pattern.Kind() == "identifier":
		imp.Alias = v.f.text(pattern)
		v.f.addImport(imp)
	case pattern != nil && pattern.Kind() == "object_pattern":
		// const { a, b: c } = require("m")
		for _, prop := range namedChildren(pattern) {
			named := imp
			switch prop.Kind() {
			case "shorthand_property_identifier_pattern":
				named.ImportedSymbols = v.f.text(prop)
			case "pair_pattern":
				named.ImportedSymbols = v.f.text(prop.ChildByFieldName("key"))
				if alias := v.f.text(prop.ChildByFieldName("value")); alias != named.ImportedSymbols {
					named.Alias = alias
				}
			default:
				continue
			}
			v.f.addImport(named)
		}
	default:
		v.f.addImport(imp)
	}
	return true
}

func (v *ecmaVisitor) stringValue(str *sitter.Node) string {
	if frag := findChildByType(str, "string_fragment"); frag != nil {
		return v.f.text(frag)
	}
	return stringLiteral(str, v.f.source)
}

func (v *ecmaVisitor) newExpression(node *sitter.Node, scope ecmaScope) {
	ctor := node.ChildByFieldName("constructor")
	if ctor == nil {
		return
	}
	call := extraction.Call{
		CallerSymbol: scope.caller,
		CallType:     extraction.CallConstructor,
		Line:         startLine(node),
	}
	switch ctor.Kind() {
	case "identifier":
		call.CalleeSymbol = v.f.text(ctor)
	case "member_expression":
		call.CalleeSymbol = v.f.text(ctor.ChildByFieldName("property"))
		call.CalleeObject = v.rootObject(ctor)
	}
	if call.CalleeSymbol == "" {
		return
	}
	v.f.addCall(call)
}

func (v *ecmaVisitor) importStatement(node *sitter.Node) {
	module := v.stringValue(node.ChildByFieldName("source"))
	if module == "" {
		return
	}
	line := startLine(node)

	clause := findChildByType(node, "import_clause")
	if clause == nil {
		v.f.addImport(extraction.Import{ImportedPath: module, ImportType: "side_effect", Line: line})
		return
	}

	importType := "static"
	if hasChildToken(node, "type") {
		importType = "type_import"
	}

	for _, child := range namedChildren(clause) {
		switch child.Kind() {
		case "identifier":
			// import React from "react"
			v.f.addImport(extraction.Import{ImportedPath: module, ImportType: importType, Alias: v.f.text(child), Line: line})
		case "namespace_import":
			// import * as ns from "./mod"
			v.f.addImport(extraction.Import{
				ImportedPath:    module,
				ImportedSymbols: extraction.Wildcard,
				ImportType:      importType,
				Alias:           v.f.text(findChildByType(child, "identifier")),
				Line:            line,
			})
		case "named_imports":
			for _, spec := range findChildrenByType(child, "import_specifier") {
				specType := importType
				if hasChildToken(spec, "type") {
					specType = "type_import"
				}
				v.f.addImport(extraction.Import{
					ImportedPath:    module,
					ImportedSymbols: v.f.text(spec.ChildByFieldName("name")),
					ImportType:      specType,
					Alias:           v.f.text(spec.ChildByFieldName("alias")),
					Line:            line,
				})
			}
		}
	}
}

// reExport records "export ... from" statements.
func (v *ecmaVisitor) reExport(node *sitter.Node) {
	source := node.ChildByFieldName("source")
	if source == nil {
		return
	}
	module := v.stringValue(source)
	if module == "" {
		return
	}
	line := startLine(node)

	if clause := findChildByType(node, "export_clause"); clause != nil {
		for _, spec := range findChildrenByType(clause, "export_specifier") {
			v.f.addImport(extraction.Import{
				ImportedPath:    module,
				ImportedSymbols: v.f.text(spec.ChildByFieldName("name")),
				ImportType:      "re_export",
				Alias:           v.f.text(spec.ChildByFieldName("alias")),
				Line:            line,
			})
		}
		return
	}

	// export * from "./mod" and export * as ns from "./mod"
	imp := extraction.Import{
		ImportedPath:    module,
		ImportedSymbols: extraction.Wildcard,
		ImportType:      "re_export",
		Line:            line,
	}
	if ns := findChildByType(node, "namespace_export"); ns != nil {
		imp.Alias = v.f.text(ns.NamedChild(0))
	}
	v.f.addImport(imp)
}
