package semantic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mvp-joe/symbol-scanner/internal/extraction"
)

const (
	// DefaultTimeout bounds one run of the analyzer over a whole repository.
	DefaultTimeout = 5 * time.Minute

	// ToolPathPlaceholder in a command argument is replaced by the configured tool path.
	ToolPathPlaceholder = "{tool_path}"
)

// DefaultCommand runs the Roslyn analyzer project; the scanned root is appended.
var DefaultCommand = []string{"dotnet", "run", "--project", ToolPathPlaceholder, "--"}

var (
	// ErrBackendTimeout means the analyzer did not finish within its timeout.
	ErrBackendTimeout = errors.New("semantic backend timed out")

	// ErrBackendUnavailable means the analyzer executable could not be started.
	ErrBackendUnavailable = errors.New("semantic backend unavailable")

	// ErrBackendFailure means the analyzer exited non-zero or wrote unusable output.
	ErrBackendFailure = errors.New("semantic backend failed")
)

// ErrorCode maps a backend error onto the extraction error taxonomy.
func ErrorCode(err error) extraction.ErrorCode {
	switch {
	case errors.Is(err, ErrBackendTimeout):
		return extraction.ErrBackendTimeout
	case errors.Is(err, ErrBackendUnavailable):
		return extraction.ErrBackendUnavailable
	default:
		return extraction.ErrBackendFailure
	}
}

// BatchResult holds one result per requested file, keyed by relative path.
// Every requested file has an entry, possibly empty.
type BatchResult struct {
	Files    map[string]*extraction.ExtractionResult
	Duration time.Duration
}

// RoslynBackend extracts C# through an external Roslyn-based analyzer.
// The analyzer is given a directory and prints one JSON document for every
// C# file beneath it.
type RoslynBackend struct {
	command  []string
	toolPath string
	timeout  time.Duration
	runner   Runner
	logger   *slog.Logger
}

// Option configures a RoslynBackend.
type Option func(*RoslynBackend)

// WithCommand replaces DefaultCommand. Empty commands are ignored.
func WithCommand(command []string) Option {
	return func(b *RoslynBackend) {
		if len(command) > 0 {
			b.command = append([]string(nil), command...)
		}
	}
}

// WithToolPath sets the value substituted for ToolPathPlaceholder.
func WithToolPath(path string) Option {
	return func(b *RoslynBackend) {
		b.toolPath = path
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(b *RoslynBackend) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithRunner replaces the os/exec runner.
func WithRunner(r Runner) Option {
	return func(b *RoslynBackend) {
		b.runner = r
	}
}

// WithLogger sets the logger. Nil means slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *RoslynBackend) {
		b.logger = logger
	}
}

// NewRoslynBackend creates a backend with DefaultCommand and DefaultTimeout.
func NewRoslynBackend(opts ...Option) *RoslynBackend {
	b := &RoslynBackend{
		command:  DefaultCommand,
		toolPath: "roslyn-tool",
		timeout:  DefaultTimeout,
		runner:   execRunner{},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

func (b *RoslynBackend) Language() extraction.Language {
	return extraction.CSharp
}

func (b *RoslynBackend) Extensions() []string {
	return []string{".cs"}
}

// ExtractBatch runs the analyzer once over root and returns results for files.
//
// Backend problems are returned as errors wrapping ErrBackendTimeout,
// ErrBackendUnavailable or ErrBackendFailure. If ctx itself is cancelled the
// context error is returned instead.
func (b *RoslynBackend) ExtractBatch(ctx context.Context, root string, files []extraction.SourceFile) (*BatchResult, error) {
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	name, args := b.commandLine(root)
	b.logger.Debug("starting semantic backend",
		"backend", "roslyn",
		"command", name,
		"files", len(files))

	stdout, stderr, err := b.runner.Run(runCtx, root, name, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrBackendTimeout, b.timeout)
		}
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, name, err)
		}
		if msg := strings.TrimSpace(string(stderr)); msg != "" {
			return nil, fmt.Errorf("%w: %v: %s", ErrBackendFailure, err, snippet(msg))
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendFailure, err)
	}

	out, err := parseOutput(stdout)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendFailure, err)
	}

	result := &BatchResult{
		Files:    out.normalize(root, files),
		Duration: time.Since(start),
	}
	b.logger.Debug("semantic backend finished",
		"backend", "roslyn",
		"files", len(files),
		"duration", result.Duration)
	return result, nil
}

// ExtractFile analyzes a single file by running the analyzer over its directory.
func (b *RoslynBackend) ExtractFile(ctx context.Context, path, relPath string) *extraction.ExtractionResult {
	dir := filepath.Dir(path)
	base := filepath.Base(path)

	batch, err := b.ExtractBatch(ctx, dir, []extraction.SourceFile{{Path: path, RelPath: base}})
	if err != nil {
		return extraction.FailedResult(relPath, ErrorCode(err), "%v", err)
	}
	return relocate(batch.Files[base], relPath)
}

// ExtractSource writes source to a temporary directory and analyzes it there.
func (b *RoslynBackend) ExtractSource(ctx context.Context, relPath string, source []byte) *extraction.ExtractionResult {
	dir, err := os.MkdirTemp("", "symscan-roslyn-*")
	if err != nil {
		return extraction.FailedResult(relPath, extraction.ErrRead, "failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, filepath.Base(relPath))
	if err := os.WriteFile(path, source, 0o644); err != nil {
		return extraction.FailedResult(relPath, extraction.ErrRead, "failed to write temp file: %v", err)
	}
	return b.ExtractFile(ctx, path, relPath)
}

func (b *RoslynBackend) commandLine(root string) (string, []string) {
	args := make([]string, 0, len(b.command))
	for _, arg := range b.command[1:] {
		args = append(args, strings.ReplaceAll(arg, ToolPathPlaceholder, b.toolPath))
	}
	args = append(args, root)
	return b.command[0], args
}

// relocate rewrites every path in res from its temporary name to relPath.
func relocate(res *extraction.ExtractionResult, relPath string) *extraction.ExtractionResult {
	if res == nil {
		return extraction.NewExtractionResult()
	}
	for i := range res.Symbols {
		res.Symbols[i].Path = relPath
	}
	for i := range res.Imports {
		res.Imports[i].File = relPath
	}
	for i := range res.Calls {
		if res.Calls[i].CalleeFile == res.Calls[i].CallerFile {
			res.Calls[i].CalleeFile = relPath
		}
		res.Calls[i].CallerFile = relPath
	}
	for i := range res.Errors {
		res.Errors[i].File = relPath
	}
	return res
}

func snippet(s string) string {
	const limit = 512
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
