package scanner

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/mvp-joe/symbol-scanner/internal/extraction"
	"github.com/mvp-joe/symbol-scanner/internal/parsers"
	"github.com/mvp-joe/symbol-scanner/internal/resolver"
	"github.com/mvp-joe/symbol-scanner/internal/semantic"
)

const tracerName = "github.com/mvp-joe/symbol-scanner/internal/scanner"

// Scanner extracts a set of files with the backends chosen by a Registry and
// merges the results into one RepositoryExtraction.
//
// Output order follows the input file order regardless of worker count, so
// repeated scans of the same tree serialize to identical bytes.
type Scanner struct {
	registry     *Registry
	resolver     *resolver.Resolver
	workers      int
	maxFileBytes int64
	cache        *ResultCache
	progress     ProgressReporter
	logger       *slog.Logger
	tracer       trace.Tracer
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithWorkers sets the number of files extracted concurrently.
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithMaxFileBytes is the size above which cached lookups are skipped and the
// extractor reports READ_ERROR. It should match the extractors' limit.
func WithMaxFileBytes(n int64) Option {
	return func(s *Scanner) {
		s.maxFileBytes = n
	}
}

// WithCache enables the content cache.
func WithCache(c *ResultCache) Option {
	return func(s *Scanner) {
		s.cache = c
	}
}

// WithProgress sets the progress reporter.
func WithProgress(p ProgressReporter) Option {
	return func(s *Scanner) {
		if p != nil {
			s.progress = p
		}
	}
}

// WithResolver replaces the default call resolver used by ExtractDirectory.
func WithResolver(r *resolver.Resolver) Option {
	return func(s *Scanner) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithLogger sets the logger. Nil means slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// WithTracerProvider sets the tracer provider. Defaults to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Scanner) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// New creates a scanner over registry.
func New(registry *Registry, opts ...Option) *Scanner {
	s := &Scanner{
		registry:     registry,
		workers:      runtime.NumCPU(),
		maxFileBytes: parsers.DefaultMaxFileBytes,
		progress:     NoOpProgressReporter{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = otel.GetTracerProvider().Tracer(tracerName)
	}
	if s.resolver == nil {
		s.resolver = resolver.New(resolver.WithLogger(s.logger))
	}
	return s
}

// entry is one file with a registered language, at its position in the output.
type entry struct {
	file extraction.SourceFile
	lang extraction.Language
}

// ExtractDirectory scans files and, if resolveCalls is set, resolves calls
// across the whole result.
func (s *Scanner) ExtractDirectory(ctx context.Context, root string, files []extraction.SourceFile, resolveCalls bool, avail Availability) (*extraction.RepositoryExtraction, error) {
	start := time.Now()

	repo, err := s.scan(ctx, root, files, avail)
	if err != nil {
		return nil, err
	}
	if resolveCalls {
		s.resolver.Resolve(ctx, repo)
	}

	s.progress.OnComplete(repo.Summary, time.Since(start))
	return repo, nil
}

// Scan extracts files without call resolution. Files whose extension has no
// registered language are skipped. Per-file problems are recorded as
// ExtractionErrors; an error is returned only if ctx is cancelled.
func (s *Scanner) Scan(ctx context.Context, root string, files []extraction.SourceFile, avail Availability) (*extraction.RepositoryExtraction, error) {
	start := time.Now()

	repo, err := s.scan(ctx, root, files, avail)
	if err != nil {
		return nil, err
	}

	s.progress.OnComplete(repo.Summary, time.Since(start))
	return repo, nil
}

func (s *Scanner) scan(ctx context.Context, root string, files []extraction.SourceFile, avail Availability) (*extraction.RepositoryExtraction, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "scanner.Scan",
		trace.WithAttributes(
			attribute.String("root", root),
			attribute.Int("input_files", len(files)),
		),
	)
	defer span.End()

	plan := s.registry.Select(avail)

	var entries []entry
	for _, f := range files {
		if lang, ok := s.registry.LanguageFor(f.RelPath); ok {
			entries = append(entries, entry{file: f, lang: lang})
		}
	}

	results := make([]*extraction.ExtractionResult, len(entries))
	batches := make(map[extraction.Language][]int)
	used := make(map[extraction.Language]bool)

	s.progress.OnScanStart(len(entries))

	for i, e := range entries {
		used[e.lang] = true
		if sel, _ := plan.For(e.lang); sel.Kind == Semantic {
			batches[e.lang] = append(batches[e.lang], i)
		}
	}

	// One slot per planned language keeps aggregate errors in language order.
	languages := plan.Languages()
	aggregate := make([]*extraction.ExtractionError, len(languages))

	var semanticRuns errgroup.Group
	for li, lang := range languages {
		indexes, ok := batches[lang]
		if !ok {
			continue
		}
		sel, _ := plan.For(lang)
		semanticRuns.Go(func() error {
			err := s.runBatch(ctx, root, sel, entries, indexes, results)
			if err == nil {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			aggregate[li] = &extraction.ExtractionError{
				Code:        semantic.ErrorCode(err),
				Message:     err.Error(),
				Recoverable: false,
			}
			return nil
		})
	}

	pool, poolCtx := errgroup.WithContext(ctx)
	pool.SetLimit(s.workers)
	for i, e := range entries {
		sel, _ := plan.For(e.lang)
		if sel.Kind != Syntactic {
			continue
		}
		pool.Go(func() error {
			if err := poolCtx.Err(); err != nil {
				return err
			}
			results[i] = s.extractSyntactic(poolCtx, sel, e)
			s.progress.OnFileScanned(e.file.RelPath)
			return nil
		})
	}

	poolErr := pool.Wait()
	batchErr := semanticRuns.Wait()
	if err := errors.Join(poolErr, batchErr); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	repo := extraction.NewRepositoryExtraction()
	for i, e := range entries {
		repo.Append(e.file.RelPath, e.lang, results[i])
	}

	for li, lang := range languages {
		if !used[lang] {
			continue
		}
		sel, _ := plan.For(lang)
		repo.Summary.Backends[string(lang)] = string(sel.Kind)
		if sel.Unavailable || aggregate[li] != nil {
			repo.Summary.FailedLanguages = append(repo.Summary.FailedLanguages, string(lang))
		}
		if aggregate[li] != nil {
			repo.Errors = append(repo.Errors, *aggregate[li])
		}
	}

	repo.ComputeSummary()
	s.record(repo, entries, plan)
	scanDuration.Observe(time.Since(start).Seconds())

	span.SetAttributes(
		attribute.Int("files", repo.Summary.TotalFiles),
		attribute.Int("symbols", repo.Summary.TotalSymbols),
		attribute.Int("errors", repo.Summary.TotalErrors),
	)
	s.logger.Info("scan complete",
		"files", repo.Summary.TotalFiles,
		"symbols", repo.Summary.TotalSymbols,
		"errors", repo.Summary.TotalErrors,
		"duration", time.Since(start))
	return repo, nil
}

// extractSyntactic extracts one file, consulting the cache when enabled.
func (s *Scanner) extractSyntactic(ctx context.Context, sel *Selection, e entry) *extraction.ExtractionResult {
	if s.cache == nil {
		return s.extractFile(ctx, sel.Syntactic, e)
	}

	content, ok := s.readForCache(e.file.Path)
	if !ok {
		return s.extractFile(ctx, sel.Syntactic, e)
	}

	key := s.cache.Key(e.file.RelPath, content, string(sel.Kind)+":"+string(e.lang))
	if res, ok := s.cache.Get(key); ok {
		cacheLookups.WithLabelValues("hit").Inc()
		return res
	}
	cacheLookups.WithLabelValues("miss").Inc()

	res := sel.Syntactic.ExtractSource(ctx, e.file.RelPath, content)
	s.cache.Set(key, res)
	return res
}

func (s *Scanner) extractFile(ctx context.Context, ex parsers.Extractor, e entry) *extraction.ExtractionResult {
	start := time.Now()
	res := ex.ExtractFile(ctx, e.file.Path, e.file.RelPath)
	s.logger.Debug("extracted file",
		"file", e.file.RelPath,
		"language", e.lang,
		"backend", Syntactic,
		"duration", time.Since(start))
	return res
}

// readForCache reads a file for hashing. Files that fail to stat or read, or
// exceed the size limit, are left to the extractor so it can report them.
func (s *Scanner) readForCache(path string) ([]byte, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, false
	}
	if s.maxFileBytes > 0 && info.Size() > s.maxFileBytes {
		return nil, false
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return content, true
}

// runBatch runs one semantic backend over its files and fills their result
// slots. A returned error fails the whole language; each file keeps an empty
// result so it is still counted.
func (s *Scanner) runBatch(ctx context.Context, root string, sel *Selection, entries []entry, indexes []int, results []*extraction.ExtractionResult) error {
	ctx, span := s.tracer.Start(ctx, "scanner.runBatch",
		trace.WithAttributes(
			attribute.String("language", string(sel.Language)),
			attribute.Int("files", len(indexes)),
		),
	)
	defer span.End()

	if sel.Unavailable || sel.Semantic == nil {
		for _, i := range indexes {
			rel := entries[i].file.RelPath
			results[i] = extraction.FailedResult(rel, extraction.ErrBackendUnavailable,
				"semantic backend for %s is required but not available", sel.Language)
			s.progress.OnFileScanned(rel)
		}
		backendRuns.WithLabelValues(string(sel.Language), "unavailable").Inc()
		s.logger.Warn("semantic backend unavailable",
			"language", sel.Language,
			"files", len(indexes))
		return nil
	}

	files := make([]extraction.SourceFile, len(indexes))
	for j, i := range indexes {
		files[j] = entries[i].file
	}

	s.progress.OnBackendStart(sel.Language, len(files))
	batch, err := sel.Semantic.ExtractBatch(ctx, root, files)
	s.progress.OnBackendComplete(sel.Language, err)

	if err != nil {
		for _, i := range indexes {
			results[i] = extraction.NewExtractionResult()
		}
		if ctx.Err() == nil {
			span.RecordError(err)
			backendRuns.WithLabelValues(string(sel.Language), outcome(err)).Inc()
			s.logger.Error("semantic backend failed",
				"language", sel.Language,
				"backend", Semantic,
				"error", err)
		}
		return err
	}

	for _, i := range indexes {
		rel := entries[i].file.RelPath
		if res, ok := batch.Files[rel]; ok && res != nil {
			results[i] = res
		} else {
			results[i] = extraction.NewExtractionResult()
		}
		s.progress.OnFileScanned(rel)
	}
	backendRuns.WithLabelValues(string(sel.Language), "ok").Inc()
	s.logger.Debug("semantic batch complete",
		"language", sel.Language,
		"backend", Semantic,
		"files", len(files),
		"duration", batch.Duration)
	return nil
}

func (s *Scanner) record(repo *extraction.RepositoryExtraction, entries []entry, plan *Plan) {
	for _, e := range entries {
		sel, _ := plan.For(e.lang)
		filesScanned.WithLabelValues(string(e.lang), string(sel.Kind)).Inc()
	}
	for _, e := range repo.Errors {
		extractionErrors.WithLabelValues(string(e.Code)).Inc()
	}
}

func outcome(err error) string {
	switch semantic.ErrorCode(err) {
	case extraction.ErrBackendTimeout:
		return "timeout"
	case extraction.ErrBackendUnavailable:
		return "unavailable"
	}
	return "failure"
}
