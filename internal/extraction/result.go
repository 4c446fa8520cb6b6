package extraction

import (
	"fmt"
	"sort"
)

// NewExtractionResult returns a result with non-nil, empty slices so that it
// serializes as [] rather than null.
func NewExtractionResult() *ExtractionResult {
	return &ExtractionResult{
		Symbols: []Symbol{},
		Imports: []Import{},
		Calls:   []Call{},
		Errors:  []ExtractionError{},
	}
}

// FailedResult returns an empty result carrying a single non-recoverable error.
func FailedResult(file string, code ErrorCode, format string, args ...any) *ExtractionResult {
	r := NewExtractionResult()
	r.Errors = append(r.Errors, ExtractionError{
		File:        file,
		Code:        code,
		Message:     fmt.Sprintf(format, args...),
		Recoverable: false,
	})
	return r
}

// AddError appends an error.
func (r *ExtractionResult) AddError(file string, line int, code ErrorCode, recoverable bool, format string, args ...any) {
	r.Errors = append(r.Errors, ExtractionError{
		File:        file,
		Line:        line,
		Code:        code,
		Message:     fmt.Sprintf(format, args...),
		Recoverable: recoverable,
	})
}

// IntPtr returns a pointer to n, for Symbol.Parameters.
func IntPtr(n int) *int {
	return &n
}

// NewRepositoryExtraction returns an empty repository extraction.
func NewRepositoryExtraction() *RepositoryExtraction {
	return &RepositoryExtraction{
		Symbols:    []Symbol{},
		Imports:    []Import{},
		Calls:      []Call{},
		Errors:     []ExtractionError{},
		Languages:  make(map[string]Language),
		Namespaces: make(map[string][]string),
		Summary:    emptySummary(),
	}
}

func emptySummary() Summary {
	return Summary{
		FilesByLanguage: map[string]int{},
		SymbolsByType:   map[string]int{},
		CallsByType:     map[string]int{},
		ImportsByType:   map[string]int{},
		Backends:        map[string]string{},
	}
}

// Append concatenates one file's result. Slices are copied by value, so later
// annotation of the repository calls never touches the per-file result.
func (r *RepositoryExtraction) Append(relPath string, lang Language, res *ExtractionResult) {
	r.Languages[relPath] = lang
	if res == nil {
		return
	}
	r.Symbols = append(r.Symbols, res.Symbols...)
	r.Imports = append(r.Imports, res.Imports...)
	r.Calls = append(r.Calls, res.Calls...)
	r.Errors = append(r.Errors, res.Errors...)
	if len(res.Namespaces) > 0 {
		r.Namespaces[relPath] = append([]string(nil), res.Namespaces...)
	}
}

// ComputeSummary recomputes every counter from the current contents.
// Backends and FailedLanguages are set by the scanner and preserved.
func (r *RepositoryExtraction) ComputeSummary() {
	s := emptySummary()
	s.Backends = r.Summary.Backends
	if s.Backends == nil {
		s.Backends = map[string]string{}
	}
	s.FailedLanguages = r.Summary.FailedLanguages
	s.Resolution = r.Summary.Resolution

	s.TotalFiles = len(r.Languages)
	for _, lang := range r.Languages {
		s.FilesByLanguage[string(lang)]++
	}
	s.TotalSymbols = len(r.Symbols)
	for _, sym := range r.Symbols {
		s.SymbolsByType[string(sym.Type)]++
	}
	s.TotalCalls = len(r.Calls)
	for _, c := range r.Calls {
		s.CallsByType[string(c.CallType)]++
	}
	s.TotalImports = len(r.Imports)
	for _, imp := range r.Imports {
		s.ImportsByType[imp.ImportType]++
	}
	s.TotalErrors = len(r.Errors)

	r.Summary = s
	r.CountResolution()
}

// CountResolution recomputes the headline resolution counters from the call
// statuses. Breakdown counters are left as the resolver set them.
func (r *RepositoryExtraction) CountResolution() {
	res := &r.Summary.Resolution
	res.ResolvedSameFile = 0
	res.ResolvedCrossFile = 0
	res.TotalUnresolved = 0
	for _, c := range r.Calls {
		switch c.ResolutionStatus {
		case ResolvedSameFile:
			res.ResolvedSameFile++
		case ResolvedCrossFile:
			res.ResolvedCrossFile++
		default:
			res.TotalUnresolved++
		}
	}
	res.TotalResolved = res.ResolvedSameFile + res.ResolvedCrossFile
}

// Files returns the extracted file paths in sorted order.
func (r *RepositoryExtraction) Files() []string {
	files := make([]string, 0, len(r.Languages))
	for f := range r.Languages {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}
