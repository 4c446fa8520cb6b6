package extraction

// SymbolType classifies a declared program entity.
type SymbolType string

const (
	SymbolFunction  SymbolType = "function"
	SymbolMethod    SymbolType = "method"
	SymbolClass     SymbolType = "class"
	SymbolInterface SymbolType = "interface"
	SymbolProperty  SymbolType = "property"
	SymbolField     SymbolType = "field"
	SymbolVariable  SymbolType = "variable"
)

// CallType classifies a call site.
type CallType string

const (
	CallSync        CallType = "sync"        // foo()
	CallAsync       CallType = "async"       // await foo()
	CallDynamic     CallType = "dynamic"     // obj.foo()
	CallConstructor CallType = "constructor" // new Foo()
	CallEvent       CallType = "event"       // Changed?.Invoke()
)

// ResolutionStatus records whether a call's target was matched to a declaration.
type ResolutionStatus string

const (
	Unresolved        ResolutionStatus = "unresolved"
	ResolvedSameFile  ResolutionStatus = "resolved_same_file"
	ResolvedCrossFile ResolutionStatus = "resolved_cross_file"
)

// ModuleCaller is the caller name recorded for calls made outside any function.
const ModuleCaller = "<module>"

// Wildcard is the ImportedSymbols sentinel for star imports.
const Wildcard = "*"

// SourceFile is one candidate file handed over by the file walker.
type SourceFile struct {
	Path    string // Absolute path on disk
	RelPath string // Repository-relative path with forward slashes
}

// Symbol is one declared program entity.
//
// ParentSymbol is the unqualified name of the enclosing class or interface.
// It is a name, not a reference: look the parent up by (Path, ParentSymbol).
type Symbol struct {
	Path         string     `json:"path"`
	Name         string     `json:"symbol_name"`
	Type         SymbolType `json:"symbol_type"`
	LineStart    int        `json:"line_start"`
	LineEnd      int        `json:"line_end"`
	Parameters   *int       `json:"parameters,omitempty"` // nil for non-callables
	IsExported   bool       `json:"is_exported"`
	ParentSymbol string     `json:"parent_symbol,omitempty"`
	Docstring    string     `json:"docstring,omitempty"`
}

// Import is one dependency edge declared by a file.
type Import struct {
	File            string `json:"file"`
	ImportedPath    string `json:"imported_path"`              // Module or namespace identifier
	ImportedSymbols string `json:"imported_symbols,omitempty"` // "" for whole-module, a name, or "*"
	ImportType      string `json:"import_type"`
	Alias           string `json:"alias,omitempty"` // Local binding name when it differs
	Line            int    `json:"line"`
}

// IsWildcard reports whether the import binds every exported name of the target.
func (i Import) IsWildcard() bool {
	return i.ImportedSymbols == Wildcard
}

// IsWholeModule reports whether the import binds the module itself.
func (i Import) IsWholeModule() bool {
	return i.ImportedSymbols == ""
}

// LocalName returns the name the import binds in the importing file.
func (i Import) LocalName() string {
	if i.Alias != "" {
		return i.Alias
	}
	return i.ImportedSymbols
}

// Call is one call-site occurrence.
type Call struct {
	CallerFile             string           `json:"caller_file"`
	CallerSymbol           string           `json:"caller_symbol"`
	CalleeSymbol           string           `json:"callee_symbol"`
	CalleeObject           string           `json:"callee_object,omitempty"`
	CallType               CallType         `json:"call_type"`
	Line                   int              `json:"line"`
	CalleeFile             string           `json:"callee_file,omitempty"`
	ResolutionStatus       ResolutionStatus `json:"resolution_status"`
	IsDynamicCodeExecution bool             `json:"is_dynamic_code_execution,omitempty"`

	// CalleeFromBackend marks a CalleeFile supplied by the extractor itself.
	// The resolver keeps such targets and recomputes everything else.
	CalleeFromBackend bool `json:"-"`
}

// ExtractionError records a problem found while extracting a file.
// Recoverable errors mean the rest of the file was still extracted.
type ExtractionError struct {
	File        string    `json:"file,omitempty"`
	Line        int       `json:"line,omitempty"`
	Code        ErrorCode `json:"code"`
	Message     string    `json:"message"`
	Recoverable bool      `json:"recoverable"`
}

// ExtractionResult is everything one extractor produced for one file.
type ExtractionResult struct {
	Symbols []Symbol          `json:"symbols"`
	Imports []Import          `json:"imports"`
	Calls   []Call            `json:"calls"`
	Errors  []ExtractionError `json:"errors"`

	// Namespaces declared by the file (C#).
	Namespaces []string `json:"-"`
}

// RepositoryExtraction is the merged extraction of a whole run.
type RepositoryExtraction struct {
	Symbols []Symbol          `json:"symbols"`
	Imports []Import          `json:"imports"`
	Calls   []Call            `json:"calls"`
	Errors  []ExtractionError `json:"errors"`
	Summary Summary           `json:"summary"`

	// Per-file facts for the resolver, keyed by relative path.
	Languages  map[string]Language `json:"-"`
	Namespaces map[string][]string `json:"-"`
}

// Summary holds repository-wide counters.
type Summary struct {
	TotalFiles      int               `json:"total_files"`
	TotalSymbols    int               `json:"total_symbols"`
	TotalCalls      int               `json:"total_calls"`
	TotalImports    int               `json:"total_imports"`
	TotalErrors     int               `json:"total_errors"`
	FilesByLanguage map[string]int    `json:"files_by_language"`
	SymbolsByType   map[string]int    `json:"symbols_by_type"`
	CallsByType     map[string]int    `json:"calls_by_type"`
	ImportsByType   map[string]int    `json:"imports_by_type"`
	Backends        map[string]string `json:"backends"`
	FailedLanguages []string          `json:"failed_languages,omitempty"`
	Resolution      ResolutionSummary `json:"resolution"`
}

// ResolutionSummary counts call resolution outcomes.
// TotalResolved is ResolvedSameFile + ResolvedCrossFile; the remaining fields
// break the totals down further.
type ResolutionSummary struct {
	TotalResolved       int `json:"total_resolved"`
	TotalUnresolved     int `json:"total_unresolved"`
	ResolvedSameFile    int `json:"resolved_same_file"`
	ResolvedCrossFile   int `json:"resolved_cross_file"`
	ResolvedModuleAttr  int `json:"resolved_module_attr"` // subset of ResolvedCrossFile
	UnresolvedBuiltin   int `json:"unresolved_builtin"`
	UnresolvedDynamic   int `json:"unresolved_dynamic"`
	UnresolvedExternal  int `json:"unresolved_external"`
	UnresolvedAmbiguous int `json:"unresolved_ambiguous"`
}
