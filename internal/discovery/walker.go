// Package discovery finds the source files a scan should read.
package discovery

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/mvp-joe/symbol-scanner/internal/extraction"
)

// configDir is never scanned.
const configDir = ".symscan"

type compiledPattern struct {
	pattern string
	glob    glob.Glob
	rooted  glob.Glob // pattern without a leading "**/", nil otherwise
}

// Walker walks a directory tree applying include and ignore globs.
type Walker struct {
	rootDir        string
	includes       []compiledPattern
	ignorePatterns []compiledPattern
	accept         func(relPath string) bool
}

// NewWalker compiles the patterns. An empty include list accepts every path;
// accept filters the remaining files (typically by registered extension) and
// may be nil.
func NewWalker(rootDir string, include, ignore []string, accept func(relPath string) bool) (*Walker, error) {
	w := &Walker{rootDir: rootDir, accept: accept}

	var err error
	if w.includes, err = compile(include); err != nil {
		return nil, err
	}
	if w.ignorePatterns, err = compile(ignore); err != nil {
		return nil, err
	}
	return w, nil
}

func compile(patterns []string) ([]compiledPattern, error) {
	out := make([]compiledPattern, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}
		cp := compiledPattern{pattern: pattern, glob: g}
		if rest, ok := strings.CutPrefix(pattern, "**/"); ok {
			if rg, err := glob.Compile(rest, '/'); err == nil {
				cp.rooted = rg
			}
		}
		out = append(out, cp)
	}
	return out, nil
}

// Walk returns the matching files sorted by relative path. Ignored
// directories are not descended into.
func (w *Walker) Walk() ([]extraction.SourceFile, error) {
	root, err := filepath.Abs(w.rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %s: %w", w.rootDir, err)
	}

	var files []extraction.SourceFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if w.shouldIgnore(relPath) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		if !w.Match(relPath) {
			return nil
		}
		files = append(files, extraction.SourceFile{Path: path, RelPath: relPath})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

// Match reports whether a relative file path would be returned by Walk.
func (w *Walker) Match(relPath string) bool {
	if w.shouldIgnore(relPath) {
		return false
	}
	if len(w.includes) > 0 && !matchesAny(relPath, w.includes) {
		return false
	}
	return w.accept == nil || w.accept(relPath)
}

// IgnoresDir reports whether a relative directory path is excluded, along
// with everything beneath it.
func (w *Walker) IgnoresDir(relPath string) bool {
	return w.shouldIgnore(relPath)
}

// shouldIgnore checks a path and each of its parent directories.
func (w *Walker) shouldIgnore(relPath string) bool {
	if relPath == configDir || strings.HasPrefix(relPath, configDir+"/") {
		return true
	}
	if matchesAny(relPath, w.ignorePatterns) {
		return true
	}
	// "node_modules" matches "node_modules/**"
	return matchesAny(relPath+"/**", w.ignorePatterns)
}

// matchesAny lets "**/*.py" match root-level files too.
func matchesAny(path string, patterns []compiledPattern) bool {
	rootLevel := !strings.Contains(path, "/")
	for _, cp := range patterns {
		if cp.glob.Match(path) {
			return true
		}
		if rootLevel && cp.rooted != nil && cp.rooted.Match(path) {
			return true
		}
	}
	return false
}
