package semantic

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mvp-joe/symbol-scanner/internal/extraction"
)

// analyzerOutput is the document printed by the analyzer.
// Older analyzer builds write line_number instead of line and module_alias
// instead of alias; both spellings are accepted.
type analyzerOutput struct {
	Symbols []analyzerSymbol `json:"symbols"`
	Calls   []analyzerCall   `json:"calls"`
	Imports []analyzerImport `json:"imports"`
	Errors  []analyzerError  `json:"errors"`
}

type analyzerSymbol struct {
	Path         string `json:"path"`
	Name         string `json:"symbol_name"`
	Type         string `json:"symbol_type"`
	LineStart    int    `json:"line_start"`
	LineEnd      int    `json:"line_end"`
	Parameters   *int   `json:"parameters"`
	IsExported   *bool  `json:"is_exported"`
	ParentSymbol string `json:"parent_symbol"`
	Docstring    string `json:"docstring"`
}

type analyzerCall struct {
	CallerFile             string `json:"caller_file"`
	CallerSymbol           string `json:"caller_symbol"`
	CalleeSymbol           string `json:"callee_symbol"`
	CalleeObject           string `json:"callee_object"`
	CalleeFile             string `json:"callee_file"`
	CallType               string `json:"call_type"`
	Line                   int    `json:"line"`
	LineNumber             int    `json:"line_number"`
	IsDynamicCodeExecution bool   `json:"is_dynamic_code_execution"`
}

type analyzerImport struct {
	File            string     `json:"file"`
	ImportedPath    string     `json:"imported_path"`
	ImportedSymbols symbolList `json:"imported_symbols"`
	ImportType      string     `json:"import_type"`
	Alias           string     `json:"alias"`
	ModuleAlias     string     `json:"module_alias"`
	Line            int        `json:"line"`
	LineNumber      int        `json:"line_number"`
}

type analyzerError struct {
	File        string `json:"file"`
	Line        int    `json:"line"`
	Code        string `json:"code"`
	Message     string `json:"message"`
	Recoverable *bool  `json:"recoverable"`
}

// symbolList accepts imported_symbols as null, a comma-joined string or a list.
type symbolList []string

func (s *symbolList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*s = list
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return err
	}
	*s = nil
	for _, part := range strings.Split(joined, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*s = append(*s, part)
		}
	}
	return nil
}

var symbolTypes = map[string]extraction.SymbolType{
	"class":       extraction.SymbolClass,
	"struct":      extraction.SymbolClass,
	"record":      extraction.SymbolClass,
	"enum":        extraction.SymbolClass,
	"delegate":    extraction.SymbolClass,
	"interface":   extraction.SymbolInterface,
	"method":      extraction.SymbolMethod,
	"constructor": extraction.SymbolMethod,
	"function":    extraction.SymbolMethod,
	"property":    extraction.SymbolProperty,
	"field":       extraction.SymbolField,
	"event":       extraction.SymbolField,
}

var callTypes = map[string]extraction.CallType{
	"sync":        extraction.CallSync,
	"direct":      extraction.CallSync,
	"static":      extraction.CallSync,
	"async":       extraction.CallAsync,
	"await":       extraction.CallAsync,
	"dynamic":     extraction.CallDynamic,
	"virtual":     extraction.CallDynamic,
	"interface":   extraction.CallDynamic,
	"method":      extraction.CallDynamic,
	"constructor": extraction.CallConstructor,
	"new":         extraction.CallConstructor,
	"event":       extraction.CallEvent,
	"delegate":    extraction.CallEvent,
}

var errorCodes = map[string]extraction.ErrorCode{
	string(extraction.ErrSyntax):               extraction.ErrSyntax,
	string(extraction.ErrUnsupportedConstruct): extraction.ErrUnsupportedConstruct,
	string(extraction.ErrRead):                 extraction.ErrRead,
}

func parseOutput(data []byte) (*analyzerOutput, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty analyzer output")
	}
	var out analyzerOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("invalid analyzer output: %w", err)
	}
	return &out, nil
}

// normalize converts the analyzer document into per-file results for the
// requested files. Records for other files are dropped.
func (o *analyzerOutput) normalize(root string, files []extraction.SourceFile) map[string]*extraction.ExtractionResult {
	results := make(map[string]*extraction.ExtractionResult, len(files))
	for _, f := range files {
		results[f.RelPath] = extraction.NewExtractionResult()
	}
	lookup := func(p string) (string, *extraction.ExtractionResult) {
		rel := relativePath(root, p)
		return rel, results[rel]
	}

	for _, s := range o.Symbols {
		rel, res := lookup(s.Path)
		typ, ok := symbolTypes[strings.ToLower(s.Type)]
		if res == nil || !ok || s.Name == "" {
			continue
		}
		sym := extraction.Symbol{
			Path:         rel,
			Name:         s.Name,
			Type:         typ,
			LineStart:    max(s.LineStart, 1),
			LineEnd:      max(s.LineEnd, s.LineStart, 1),
			IsExported:   s.IsExported == nil || *s.IsExported,
			ParentSymbol: s.ParentSymbol,
			Docstring:    strings.TrimSpace(s.Docstring),
		}
		if typ == extraction.SymbolMethod {
			sym.Parameters = extraction.IntPtr(0)
			if s.Parameters != nil {
				sym.Parameters = extraction.IntPtr(*s.Parameters)
			}
		}
		res.Symbols = append(res.Symbols, sym)
	}

	for _, c := range o.Calls {
		rel, res := lookup(c.CallerFile)
		if res == nil || c.CalleeSymbol == "" {
			continue
		}
		call := extraction.Call{
			CallerFile:             rel,
			CallerSymbol:           c.CallerSymbol,
			CalleeSymbol:           c.CalleeSymbol,
			CalleeObject:           c.CalleeObject,
			CallType:               callTypes[strings.ToLower(c.CallType)],
			Line:                   firstPositive(c.Line, c.LineNumber, 1),
			ResolutionStatus:       extraction.Unresolved,
			IsDynamicCodeExecution: c.IsDynamicCodeExecution,
		}
		if call.CallerSymbol == "" {
			call.CallerSymbol = extraction.ModuleCaller
		}
		if call.CallType == "" {
			call.CallType = extraction.CallSync
		}
		if c.CalleeFile != "" {
			call.CalleeFile = relativePath(root, c.CalleeFile)
			call.CalleeFromBackend = true
		}
		res.Calls = append(res.Calls, call)
	}

	for _, imp := range o.Imports {
		rel, res := lookup(imp.File)
		if res == nil || imp.ImportedPath == "" {
			continue
		}
		base := extraction.Import{
			File:         rel,
			ImportedPath: imp.ImportedPath,
			ImportType:   imp.ImportType,
			Alias:        imp.Alias,
			Line:         firstPositive(imp.Line, imp.LineNumber, 1),
		}
		if base.Alias == "" {
			base.Alias = imp.ModuleAlias
		}
		if base.ImportType == "" {
			base.ImportType = "static"
		}
		if len(imp.ImportedSymbols) == 0 {
			res.Imports = append(res.Imports, base)
			continue
		}
		for _, name := range imp.ImportedSymbols {
			one := base
			one.ImportedSymbols = name
			res.Imports = append(res.Imports, one)
		}
	}

	for _, e := range o.Errors {
		rel, res := lookup(e.File)
		if res == nil {
			continue
		}
		code, ok := errorCodes[e.Code]
		if !ok {
			code = extraction.ErrSyntax
		}
		res.Errors = append(res.Errors, extraction.ExtractionError{
			File:        rel,
			Line:        e.Line,
			Code:        code,
			Message:     e.Message,
			Recoverable: e.Recoverable == nil || *e.Recoverable,
		})
	}

	for _, res := range results {
		sort.SliceStable(res.Symbols, func(i, j int) bool { return res.Symbols[i].LineStart < res.Symbols[j].LineStart })
		sort.SliceStable(res.Calls, func(i, j int) bool { return res.Calls[i].Line < res.Calls[j].Line })
		sort.SliceStable(res.Imports, func(i, j int) bool { return res.Imports[i].Line < res.Imports[j].Line })
		sort.SliceStable(res.Errors, func(i, j int) bool { return res.Errors[i].Line < res.Errors[j].Line })
	}
	return results
}

// relativePath turns an analyzer path into a forward-slash path relative to root.
func relativePath(root, p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	if filepath.IsAbs(filepath.FromSlash(p)) {
		if rel, err := filepath.Rel(root, filepath.FromSlash(p)); err == nil {
			p = filepath.ToSlash(rel)
		}
	}
	return path.Clean(strings.TrimPrefix(p, "./"))
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
