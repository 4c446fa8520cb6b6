package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/mvp-joe/symbol-scanner/internal/config"
	"github.com/mvp-joe/symbol-scanner/internal/discovery"
	"github.com/mvp-joe/symbol-scanner/internal/extraction"
	"github.com/mvp-joe/symbol-scanner/internal/parsers"
	"github.com/mvp-joe/symbol-scanner/internal/resolver"
	"github.com/mvp-joe/symbol-scanner/internal/scanner"
	"github.com/mvp-joe/symbol-scanner/internal/semantic"
)

// pipeline is everything one scan of a root needs, built once from config.
type pipeline struct {
	root     string
	walker   *discovery.Walker
	registry *scanner.Registry
	scanner  *scanner.Scanner
	cache    *scanner.ResultCache
	avail    scanner.Availability
	resolve  bool
}

// newPipeline wires config into the registry, resolver, cache and walker.
// semanticLangs lists languages whose semantic toolchain the caller asserts
// is installed, on top of the config's availability flags.
func newPipeline(root string, cfg *config.Config, semanticLangs []string, progress scanner.ProgressReporter, logger *slog.Logger) (*pipeline, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", root, err)
	}

	registry := scanner.DefaultRegistry(parsers.WithMaxFileBytes(cfg.Scan.MaxFileBytes))

	cs := cfg.Backends.CSharp
	registry.RegisterSemantic(semantic.NewRoslynBackend(
		semantic.WithCommand(cs.Command),
		semantic.WithToolPath(cs.ToolPath),
		semantic.WithTimeout(cs.Timeout),
		semantic.WithLogger(logger),
	))
	mode, err := scanner.ParseBackendMode(cs.Mode)
	if err != nil {
		return nil, err
	}
	registry.SetMode(extraction.CSharp, mode)

	avail := scanner.Availability{extraction.CSharp: cs.Available}
	for _, name := range semanticLangs {
		lang, ok := extraction.ParseLanguage(name)
		if !ok {
			return nil, fmt.Errorf("unknown language %q for --semantic", name)
		}
		avail[lang] = true
	}

	walker, err := discovery.NewWalker(absRoot, cfg.Paths.Include, cfg.Paths.Ignore, func(rel string) bool {
		_, ok := registry.LanguageFor(rel)
		return ok
	})
	if err != nil {
		return nil, err
	}

	opts := []scanner.Option{
		scanner.WithWorkers(cfg.Scan.Workers),
		scanner.WithMaxFileBytes(cfg.Scan.MaxFileBytes),
		scanner.WithProgress(progress),
		scanner.WithLogger(logger),
		scanner.WithResolver(resolver.New(
			resolver.WithNamespaceScoped(cfg.Resolver.NamespaceScoped),
			resolver.WithLogger(logger),
		)),
	}

	p := &pipeline{
		root:     absRoot,
		walker:   walker,
		registry: registry,
		avail:    avail,
		resolve:  cfg.Resolver.Enabled,
	}
	if cfg.Scan.CacheSize > 0 {
		cache, err := scanner.NewResultCache(cfg.Scan.CacheSize)
		if err != nil {
			return nil, err
		}
		p.cache = cache
		opts = append(opts, scanner.WithCache(cache))
	}
	p.scanner = scanner.New(registry, opts...)
	return p, nil
}

// run discovers files and extracts them.
func (p *pipeline) run(ctx context.Context) (*extraction.RepositoryExtraction, error) {
	files, err := p.walker.Walk()
	if err != nil {
		return nil, err
	}
	return p.scanner.ExtractDirectory(ctx, p.root, files, p.resolve, p.avail)
}

// matches reports whether an absolute path is a file the pipeline scans.
func (p *pipeline) matches(path string) bool {
	rel, err := filepath.Rel(p.root, path)
	if err != nil {
		return false
	}
	return p.walker.Match(filepath.ToSlash(rel))
}

// skipDir reports whether an absolute directory path is ignored.
func (p *pipeline) skipDir(path string) bool {
	rel, err := filepath.Rel(p.root, path)
	if err != nil {
		return false
	}
	return p.walker.IgnoresDir(filepath.ToSlash(rel))
}

func (p *pipeline) close() {
	if p.cache != nil {
		p.cache.Close()
	}
}
