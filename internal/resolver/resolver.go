// Package resolver links call sites to the files that declare their targets.
//
// Resolution is a heuristic over names and imports. A call is only marked
// resolved when exactly one declaration is visible to the caller; ambiguous
// and unknown targets stay unresolved and are counted in the summary.
package resolver

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mvp-joe/symbol-scanner/internal/extraction"
)

const tracerName = "github.com/mvp-joe/symbol-scanner/internal/resolver"

// outcome is the reason a call ended in its resolution status.
type outcome int

const (
	sameFile outcome = iota
	crossFile
	moduleAttr
	builtin
	dynamic
	external
	ambiguous
)

// Resolver annotates the calls of a RepositoryExtraction.
type Resolver struct {
	namespaceScoped bool
	logger          *slog.Logger
	tracer          trace.Tracer
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithNamespaceScoped restricts C# candidates to files sharing or opening the
// caller's namespaces. By default every C# file is visible to every other.
func WithNamespaceScoped(enabled bool) Option {
	return func(r *Resolver) {
		r.namespaceScoped = enabled
	}
}

// WithLogger sets the logger. Nil means slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithTracerProvider sets the tracer provider. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Resolver) {
		if tp != nil {
			r.tracer = tp.Tracer(tracerName)
		}
	}
}

// New creates a resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.tracer == nil {
		r.tracer = otel.GetTracerProvider().Tracer(tracerName)
	}
	return r
}

// pass holds the shared read-only structures of one resolution run.
type pass struct {
	*Resolver
	repo    *extraction.RepositoryExtraction
	index   *Index
	imports *ImportGraph
}

// Resolve sets ResolutionStatus and CalleeFile on every call of repo and
// recomputes the resolution summary. It never fails and may be run again on
// the same repo.
func (r *Resolver) Resolve(ctx context.Context, repo *extraction.RepositoryExtraction) {
	start := time.Now()
	_, span := r.tracer.Start(ctx, "resolver.Resolve",
		trace.WithAttributes(attribute.Int("calls", len(repo.Calls))))
	defer span.End()

	index := NewIndex(repo.Symbols)
	p := &pass{
		Resolver: r,
		repo:     repo,
		index:    index,
		imports:  BuildImportGraph(repo, index),
	}

	var counts [ambiguous + 1]int
	for i := range repo.Calls {
		counts[p.resolveCall(&repo.Calls[i])]++
	}

	res := &repo.Summary.Resolution
	res.ResolvedModuleAttr = counts[moduleAttr]
	res.UnresolvedBuiltin = counts[builtin]
	res.UnresolvedDynamic = counts[dynamic]
	res.UnresolvedExternal = counts[external]
	res.UnresolvedAmbiguous = counts[ambiguous]
	repo.CountResolution()

	span.SetAttributes(
		attribute.Int("resolved", res.TotalResolved),
		attribute.Int("unresolved", res.TotalUnresolved),
		attribute.Int("import_edges", p.imports.EdgeCount()),
	)
	r.logger.Debug("calls resolved",
		"resolved_same_file", res.ResolvedSameFile,
		"resolved_cross_file", res.ResolvedCrossFile,
		"unresolved", res.TotalUnresolved,
		"duration", time.Since(start))
}

func (p *pass) resolveCall(c *extraction.Call) outcome {
	// A target supplied by a semantic backend wins. Targets from an earlier
	// pass are not trusted, so resolving twice gives the same counts.
	if c.CalleeFromBackend {
		if c.CalleeFile == "" || c.CalleeFile == c.CallerFile {
			return p.markSameFile(c)
		}
		return p.markCrossFile(c, c.CalleeFile, crossFile)
	}

	lang := p.repo.Languages[c.CallerFile]
	object := rootName(c.CalleeObject)
	fi := p.imports.For(c.CallerFile)

	if p.index.Declares(c.CallerFile, c.CalleeSymbol) && p.sameFileVisible(c, lang, object, fi) {
		return p.markSameFile(c)
	}
	p.markUnresolved(c)

	if object == "" && isBuiltin(lang, c.CalleeSymbol) {
		return builtin
	}
	if receivers[object] {
		return dynamic
	}

	if object != "" && lang != extraction.CSharp {
		if target, ok := fi.ModuleAliases[object]; ok {
			if files := p.imports.Exporters(p.index, target, c.CalleeSymbol); len(files) == 1 {
				return p.markCrossFile(c, files[0], moduleAttr)
			}
		}
		// Attribute access on a value needs its type.
		return dynamic
	}

	var candidates []string
	if lang == extraction.CSharp {
		candidates = p.csharpCandidates(c, object)
	} else {
		candidates = p.importedCandidates(c, fi)
	}

	switch len(candidates) {
	case 1:
		return p.markCrossFile(c, candidates[0], crossFile)
	case 0:
		if object != "" {
			return dynamic
		}
		return external
	default:
		return ambiguous
	}
}

// sameFileVisible filters same-file matches for qualified calls. A call
// through an imported module never targets the caller's file, and in C#
// Type.Member() only matches a member of Type.
func (p *pass) sameFileVisible(c *extraction.Call, lang extraction.Language, object string, fi *FileImports) bool {
	if object == "" || receivers[object] {
		return true
	}
	if lang != extraction.CSharp {
		_, isModule := fi.ModuleAliases[object]
		return !isModule
	}
	for _, d := range p.index.byFile[c.CallerFile][c.CalleeSymbol] {
		if d.ParentSymbol == object {
			return true
		}
	}
	return false
}

// importedCandidates lists files exposing the callee through name imports or
// star imports (Python, JavaScript, TypeScript).
func (p *pass) importedCandidates(c *extraction.Call, fi *FileImports) []string {
	family := p.repo.Languages[c.CallerFile].Family()
	seen := make(map[string]bool)
	var out []string
	add := func(files []string) {
		for _, f := range files {
			if !seen[f] && p.repo.Languages[f].Family() == family {
				seen[f] = true
				out = append(out, f)
			}
		}
	}

	for _, b := range fi.Names[c.CalleeSymbol] {
		add(p.imports.Exporters(p.index, b.file, b.original))
	}
	for _, src := range fi.StarSources {
		if p.index.DeclaresExported(src, c.CalleeSymbol) {
			add([]string{src})
		} else {
			add(p.imports.Exporters(p.index, src, c.CalleeSymbol))
		}
	}
	return out
}

// csharpCandidates lists C# files declaring the callee that the caller can see.
func (p *pass) csharpCandidates(c *extraction.Call, object string) []string {
	var visible map[string]bool
	if p.namespaceScoped {
		visible = p.visibleNamespaces(c.CallerFile)
	}
	return p.index.Files(c.CalleeSymbol, func(d Declaration) bool {
		if d.Path == c.CallerFile || !d.Exported || p.repo.Languages[d.Path] != extraction.CSharp {
			return false
		}
		if object != "" && d.ParentSymbol != object {
			return false
		}
		if visible == nil {
			return true
		}
		namespaces := p.repo.Namespaces[d.Path]
		if len(namespaces) == 0 {
			return true
		}
		for _, ns := range namespaces {
			if visible[ns] {
				return true
			}
		}
		return false
	})
}

// visibleNamespaces is the caller's own namespaces, their parents, and its usings.
func (p *pass) visibleNamespaces(file string) map[string]bool {
	visible := make(map[string]bool)
	for _, ns := range p.repo.Namespaces[file] {
		for ns != "" {
			visible[ns] = true
			i := strings.LastIndex(ns, ".")
			if i < 0 {
				break
			}
			ns = ns[:i]
		}
	}
	for _, ns := range p.imports.For(file).Usings {
		visible[ns] = true
	}
	return visible
}

func (p *pass) markSameFile(c *extraction.Call) outcome {
	c.ResolutionStatus = extraction.ResolvedSameFile
	c.CalleeFile = ""
	return sameFile
}

func (p *pass) markCrossFile(c *extraction.Call, file string, o outcome) outcome {
	c.ResolutionStatus = extraction.ResolvedCrossFile
	c.CalleeFile = file
	return o
}

func (p *pass) markUnresolved(c *extraction.Call) {
	c.ResolutionStatus = extraction.Unresolved
	c.CalleeFile = ""
}

// rootName returns the first segment of a dotted receiver, without call parens.
func rootName(object string) string {
	if i := strings.IndexAny(object, ".("); i >= 0 {
		object = object[:i]
	}
	return strings.TrimSpace(object)
}
