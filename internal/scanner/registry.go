package scanner

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/mvp-joe/symbol-scanner/internal/extraction"
	"github.com/mvp-joe/symbol-scanner/internal/parsers"
	"github.com/mvp-joe/symbol-scanner/internal/semantic"
)

// BackendMode is the configured backend policy for one language.
type BackendMode string

const (
	// ModeAuto uses the semantic backend when it is available, else the syntactic one.
	ModeAuto BackendMode = "auto"
	// ModeSyntactic always uses the tree-sitter extractor.
	ModeSyntactic BackendMode = "syntactic"
	// ModeSemantic requires the semantic backend; files fail if it is unavailable.
	ModeSemantic BackendMode = "semantic"
)

// ParseBackendMode validates a mode name. Empty means ModeAuto.
func ParseBackendMode(s string) (BackendMode, error) {
	switch BackendMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeSyntactic:
		return ModeSyntactic, nil
	case ModeSemantic:
		return ModeSemantic, nil
	}
	return "", fmt.Errorf("unknown backend mode %q (want auto, syntactic or semantic)", s)
}

// Availability records, per language, whether its semantic backend can run.
type Availability map[extraction.Language]bool

// SemanticBackend is an extractor that analyzes a language's files in one batch.
type SemanticBackend interface {
	parsers.Extractor
	ExtractBatch(ctx context.Context, root string, files []extraction.SourceFile) (*semantic.BatchResult, error)
}

// BackendKind tags a Selection.
type BackendKind string

const (
	Syntactic BackendKind = "syntactic"
	Semantic  BackendKind = "semantic"
)

// Selection is the backend chosen for one language for one run.
// Exactly one of Syntactic and Semantic is set, according to Kind.
// A Semantic selection with Unavailable set fails every file of the language.
type Selection struct {
	Language    extraction.Language
	Kind        BackendKind
	Syntactic   parsers.Extractor
	Semantic    SemanticBackend
	Unavailable bool
}

// Plan is the set of selections for one run.
type Plan struct {
	selections map[extraction.Language]*Selection
}

// For returns the selection for lang.
func (p *Plan) For(lang extraction.Language) (*Selection, bool) {
	sel, ok := p.selections[lang]
	return sel, ok
}

// Languages returns the planned languages in extraction.AllLanguages order.
func (p *Plan) Languages() []extraction.Language {
	var out []extraction.Language
	for _, lang := range extraction.AllLanguages {
		if _, ok := p.selections[lang]; ok {
			out = append(out, lang)
		}
	}
	return out
}

// Registry maps extensions to languages and holds the backends for each language.
// Configure it before the first Select; it is read-only afterwards.
type Registry struct {
	byExt     map[string]extraction.Language
	syntactic map[extraction.Language]parsers.Extractor
	semantic  map[extraction.Language]SemanticBackend
	modes     map[extraction.Language]BackendMode
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byExt:     make(map[string]extraction.Language),
		syntactic: make(map[extraction.Language]parsers.Extractor),
		semantic:  make(map[extraction.Language]SemanticBackend),
		modes:     make(map[extraction.Language]BackendMode),
	}
}

// DefaultRegistry registers the tree-sitter extractors for every supported language.
func DefaultRegistry(opts ...parsers.Option) *Registry {
	r := NewRegistry()
	r.RegisterSyntactic(parsers.NewPythonExtractor(opts...))
	r.RegisterSyntactic(parsers.NewCSharpExtractor(opts...))
	r.RegisterSyntactic(parsers.NewJavaScriptExtractor(opts...))
	r.RegisterSyntactic(parsers.NewTypeScriptExtractor(opts...))
	return r
}

// RegisterSyntactic adds a syntactic extractor and claims its extensions.
func (r *Registry) RegisterSyntactic(e parsers.Extractor) {
	r.syntactic[e.Language()] = e
	r.claim(e)
}

// RegisterSemantic adds a semantic backend and claims its extensions.
func (r *Registry) RegisterSemantic(b SemanticBackend) {
	r.semantic[b.Language()] = b
	r.claim(b)
}

func (r *Registry) claim(e parsers.Extractor) {
	for _, ext := range e.Extensions() {
		r.byExt[strings.ToLower(ext)] = e.Language()
	}
}

// SetMode sets the backend policy for lang. Languages without a mode use ModeAuto.
func (r *Registry) SetMode(lang extraction.Language, mode BackendMode) {
	r.modes[lang] = mode
}

// LanguageFor returns the registered language for a path, by extension.
func (r *Registry) LanguageFor(p string) (extraction.Language, bool) {
	lang, ok := r.byExt[strings.ToLower(path.Ext(p))]
	return lang, ok
}

// Select decides the backend for every registered language.
// It is called once per run; the resulting Plan is never revised mid-run.
func (r *Registry) Select(avail Availability) *Plan {
	plan := &Plan{selections: make(map[extraction.Language]*Selection)}

	for _, lang := range extraction.AllLanguages {
		syn, hasSyn := r.syntactic[lang]
		sem, hasSem := r.semantic[lang]
		if !hasSyn && !hasSem {
			continue
		}
		canRunSemantic := hasSem && avail[lang]

		mode := r.modes[lang]
		if mode == "" {
			mode = ModeAuto
		}
		if !hasSyn {
			mode = ModeSemantic
		}

		sel := &Selection{Language: lang}
		switch {
		case mode == ModeSyntactic:
			sel.Kind, sel.Syntactic = Syntactic, syn
		case canRunSemantic:
			sel.Kind, sel.Semantic = Semantic, sem
		case mode == ModeSemantic:
			sel.Kind, sel.Semantic, sel.Unavailable = Semantic, sem, true
		default:
			sel.Kind, sel.Syntactic = Syntactic, syn
		}
		plan.selections[lang] = sel
	}
	return plan
}
