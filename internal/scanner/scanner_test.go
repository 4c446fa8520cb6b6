package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"

	"github.com/mvp-joe/symbol-scanner/internal/extraction"
	"github.com/mvp-joe/symbol-scanner/internal/semantic"
)

// Test Plan for Scanner:
// - Files are extracted in input order; unknown extensions are skipped
// - Output is byte-identical across runs and worker counts
// - Semantic selection routes a language through one batch call
// - Required-but-unavailable semantic backend fails every file of the language
// - Batch failure yields one aggregate error after all per-file errors
// - Cancellation returns the context error and leaks no goroutines
// - The content cache serves unchanged files on the second run
// - ExtractDirectory runs resolution; Scan does not
// - Progress and tracing hooks fire

const fixtureRoot = "../../testdata/code"

func fixtureFiles(t *testing.T) []extraction.SourceFile {
	t.Helper()
	rels := []string{
		"python/simple.py",
		"csharp/Service.cs",
		"go/simple.go",
		"javascript/app.js",
		"typescript/service.ts",
		"typescript/view.tsx",
	}
	root, err := filepath.Abs(fixtureRoot)
	require.NoError(t, err)

	files := make([]extraction.SourceFile, len(rels))
	for i, rel := range rels {
		files[i] = extraction.SourceFile{Path: filepath.Join(root, filepath.FromSlash(rel)), RelPath: rel}
	}
	return files
}

func writeFiles(t *testing.T, files map[string]string) (string, []extraction.SourceFile) {
	t.Helper()
	root := t.TempDir()
	var out []extraction.SourceFile
	for _, rel := range sortedKeys(files) {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(files[rel]), 0o644))
		out = append(out, extraction.SourceFile{Path: path, RelPath: rel})
	}
	return root, out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestScanner_FixturesInInputOrder(t *testing.T) {
	t.Parallel()

	s := New(DefaultRegistry(), WithWorkers(4))
	repo, err := s.Scan(context.Background(), fixtureRoot, fixtureFiles(t), nil)
	require.NoError(t, err)

	assert.Equal(t, 5, repo.Summary.TotalFiles)
	assert.Equal(t, map[string]int{"python": 1, "csharp": 1, "javascript": 1, "typescript": 2}, repo.Summary.FilesByLanguage)
	for _, e := range repo.Errors {
		assert.True(t, e.Recoverable, "fixture error %s: %s", e.Code, e.Message)
	}
	assert.Equal(t, map[string]string{
		"python": "syntactic", "csharp": "syntactic", "javascript": "syntactic", "typescript": "syntactic",
	}, repo.Summary.Backends)

	var order []string
	for _, sym := range repo.Symbols {
		if len(order) == 0 || order[len(order)-1] != sym.Path {
			order = append(order, sym.Path)
		}
	}
	assert.Equal(t, []string{
		"python/simple.py", "csharp/Service.cs", "javascript/app.js",
		"typescript/service.ts", "typescript/view.tsx",
	}, order)

	for _, c := range repo.Calls {
		assert.Equal(t, extraction.Unresolved, c.ResolutionStatus)
	}
}

func TestScanner_Idempotent(t *testing.T) {
	t.Parallel()

	files := fixtureFiles(t)
	marshal := func(workers int) []byte {
		s := New(DefaultRegistry(), WithWorkers(workers))
		repo, err := s.ExtractDirectory(context.Background(), fixtureRoot, files, true, nil)
		require.NoError(t, err)
		data, err := json.Marshal(repo)
		require.NoError(t, err)
		return data
	}

	first := marshal(1)
	assert.Equal(t, first, marshal(8))
	assert.True(t, bytes.Equal(first, marshal(3)))
}

func TestScanner_SemanticBatch(t *testing.T) {
	t.Parallel()

	csResult := extraction.NewExtractionResult()
	csResult.Symbols = append(csResult.Symbols, extraction.Symbol{Path: "csharp/Service.cs", Name: "FromBackend", Type: extraction.SymbolClass})

	r := DefaultRegistry()
	r.RegisterSemantic(&fakeBackend{files: map[string]*extraction.ExtractionResult{"csharp/Service.cs": csResult}})

	s := New(r)
	repo, err := s.Scan(context.Background(), fixtureRoot, fixtureFiles(t), Availability{extraction.CSharp: true})
	require.NoError(t, err)

	assert.Equal(t, "semantic", repo.Summary.Backends["csharp"])
	assert.Equal(t, "syntactic", repo.Summary.Backends["python"])

	var csNames []string
	for _, sym := range repo.Symbols {
		if sym.Path == "csharp/Service.cs" {
			csNames = append(csNames, sym.Name)
		}
	}
	assert.Equal(t, []string{"FromBackend"}, csNames, "no syntactic C# symbols are mixed in")
}

func TestScanner_RequiredBackendUnavailable(t *testing.T) {
	t.Parallel()

	root, files := writeFiles(t, map[string]string{
		"A.cs":  "class A {}",
		"B.cs":  "class B {}",
		"a.py":  "def f():\n    pass\n",
	})

	r := DefaultRegistry()
	r.RegisterSemantic(&fakeBackend{})
	r.SetMode(extraction.CSharp, ModeSemantic)

	repo, err := New(r).Scan(context.Background(), root, files, Availability{})
	require.NoError(t, err)

	require.Len(t, repo.Errors, 2)
	for i, rel := range []string{"A.cs", "B.cs"} {
		assert.Equal(t, rel, repo.Errors[i].File)
		assert.Equal(t, extraction.ErrBackendUnavailable, repo.Errors[i].Code)
		assert.False(t, repo.Errors[i].Recoverable)
	}
	assert.Equal(t, []string{"csharp"}, repo.Summary.FailedLanguages)
	assert.Equal(t, 3, repo.Summary.TotalFiles)
	assert.Equal(t, 1, repo.Summary.TotalSymbols)
}

func TestScanner_BatchFailureIsAggregate(t *testing.T) {
	t.Parallel()

	root, files := writeFiles(t, map[string]string{
		"A.cs":    "class A {}",
		"B.cs":    "class B {}",
		"bad.py":  "def f(:\n",
		"good.py": "def g():\n    return 1\n",
	})

	r := DefaultRegistry()
	r.RegisterSemantic(&fakeBackend{err: semantic.ErrBackendTimeout})

	repo, err := New(r).Scan(context.Background(), root, files, Availability{extraction.CSharp: true})
	require.NoError(t, err)

	require.NotEmpty(t, repo.Errors)
	last := repo.Errors[len(repo.Errors)-1]
	assert.Equal(t, extraction.ErrBackendTimeout, last.Code)
	assert.False(t, last.Recoverable)
	assert.Empty(t, last.File)
	for _, e := range repo.Errors[:len(repo.Errors)-1] {
		assert.Equal(t, "bad.py", e.File)
	}

	assert.Equal(t, []string{"csharp"}, repo.Summary.FailedLanguages)
	assert.Equal(t, 4, repo.Summary.TotalFiles)
	assert.Equal(t, 2, repo.Summary.FilesByLanguage["csharp"])
}

func TestScanner_CancellationDoesNotLeak(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	r := DefaultRegistry()
	r.RegisterSemantic(&fakeBackend{block: true})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	repo, err := New(r, WithWorkers(2)).Scan(ctx, fixtureRoot, fixtureFiles(t), Availability{extraction.CSharp: true})
	assert.Nil(t, repo)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestScanner_CacheServesUnchangedFiles(t *testing.T) {
	root, files := writeFiles(t, map[string]string{
		"a.py": "def f():\n    return 1\n",
		"b.py": "def g():\n    return 2\n",
	})

	cache, err := NewResultCache(100)
	require.NoError(t, err)
	defer cache.Close()

	s := New(DefaultRegistry(), WithCache(cache))
	hits := testutil.ToFloat64(cacheLookups.WithLabelValues("hit"))

	first, err := s.Scan(context.Background(), root, files, nil)
	require.NoError(t, err)
	assert.Equal(t, hits, testutil.ToFloat64(cacheLookups.WithLabelValues("hit")))

	require.NoError(t, os.WriteFile(files[1].Path, []byte("def h():\n    return 3\n"), 0o644))

	second, err := s.Scan(context.Background(), root, files, nil)
	require.NoError(t, err)
	assert.Equal(t, hits+1, testutil.ToFloat64(cacheLookups.WithLabelValues("hit")))

	assert.Equal(t, first.Symbols[0], second.Symbols[0])
	assert.Equal(t, "h", second.Symbols[1].Name)
}

func TestScanner_ExtractDirectoryResolves(t *testing.T) {
	t.Parallel()

	root, files := writeFiles(t, map[string]string{
		"a.py": "def helper():\n    return 1\n",
		"b.py": "from a import helper\n\ndef main():\n    helper()\n    missing()\n",
	})

	s := New(DefaultRegistry())
	repo, err := s.ExtractDirectory(context.Background(), root, files, true, nil)
	require.NoError(t, err)

	res := repo.Summary.Resolution
	assert.Equal(t, 1, res.ResolvedCrossFile)
	assert.Equal(t, 1, res.TotalUnresolved)

	unresolved, err := s.ExtractDirectory(context.Background(), root, files, false, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, unresolved.Summary.Resolution.TotalResolved)
}

type recordingProgress struct {
	NoOpProgressReporter
	mu      sync.Mutex
	total   int
	scanned []string
	done    bool
}

func (p *recordingProgress) OnScanStart(total int) { p.total = total }

func (p *recordingProgress) OnFileScanned(rel string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scanned = append(p.scanned, rel)
}

func (p *recordingProgress) OnComplete(extraction.Summary, time.Duration) { p.done = true }

func TestScanner_ProgressAndSpans(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	progress := &recordingProgress{}

	s := New(DefaultRegistry(), WithProgress(progress), WithTracerProvider(tp))
	_, err := s.Scan(context.Background(), fixtureRoot, fixtureFiles(t), nil)
	require.NoError(t, err)

	assert.Equal(t, 5, progress.total)
	assert.Len(t, progress.scanned, 5)
	assert.True(t, progress.done)

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	assert.Contains(t, names, "scanner.Scan")
}
