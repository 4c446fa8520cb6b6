package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for FileWatcher:
// - NewFileWatcher returns error with invalid directory
// - Rapid changes are coalesced into one sorted, deduplicated callback
// - The filter drops non-matching files
// - Skipped directories are not watched
// - New directories are watched recursively
// - Pause accumulates; Resume fires immediately
// - Stop is idempotent and safe before Start

const testDebounce = 50 * time.Millisecond

func pyOnly(path string) bool { return strings.HasSuffix(path, ".py") }

type recorder struct {
	mu    sync.Mutex
	calls [][]string
	ch    chan struct{}
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan struct{}, 16)}
}

func (r *recorder) callback(files []string) {
	r.mu.Lock()
	r.calls = append(r.calls, files)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *recorder) wait(t *testing.T) []string {
	t.Helper()
	select {
	case <-r.ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for callback")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

func (r *recorder) expectNone(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case <-r.ch:
		t.Fatal("unexpected callback")
	case <-time.After(d):
	}
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestNewFileWatcher_InvalidDirectory(t *testing.T) {
	t.Parallel()

	w, err := NewFileWatcher([]string{filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)
	assert.Nil(t, w)
}

func TestFileWatcher_CoalescesChanges(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := NewFileWatcher([]string{dir}, WithDebounce(testDebounce), WithFilter(pyOnly))
	require.NoError(t, err)
	defer w.Stop()

	rec := newRecorder()
	require.NoError(t, w.Start(context.Background(), rec.callback))

	b := filepath.Join(dir, "b.py")
	a := filepath.Join(dir, "a.py")
	write(t, b, "x = 1")
	write(t, a, "y = 2")
	write(t, b, "x = 3")
	write(t, filepath.Join(dir, "notes.txt"), "ignored")

	files := rec.wait(t)
	assert.Equal(t, []string{a, b}, files)
	rec.expectNone(t, 4*testDebounce)
}

func TestFileWatcher_SkipDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	skipped := filepath.Join(dir, "node_modules")
	require.NoError(t, os.MkdirAll(skipped, 0755))

	w, err := NewFileWatcher([]string{dir},
		WithDebounce(testDebounce),
		WithFilter(pyOnly),
		WithSkipDir(func(path string) bool { return filepath.Base(path) == "node_modules" }),
	)
	require.NoError(t, err)
	defer w.Stop()

	rec := newRecorder()
	require.NoError(t, w.Start(context.Background(), rec.callback))

	write(t, filepath.Join(skipped, "dep.py"), "x = 1")
	rec.expectNone(t, 4*testDebounce)

	kept := filepath.Join(dir, "kept.py")
	write(t, kept, "x = 1")
	assert.Equal(t, []string{kept}, rec.wait(t))
}

func TestFileWatcher_NewDirectoryIsWatched(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := NewFileWatcher([]string{dir}, WithDebounce(testDebounce), WithFilter(pyOnly))
	require.NoError(t, err)
	defer w.Stop()

	rec := newRecorder()
	require.NoError(t, w.Start(context.Background(), rec.callback))

	sub := filepath.Join(dir, "pkg")
	require.NoError(t, os.MkdirAll(sub, 0755))
	time.Sleep(2 * testDebounce) // let the watcher pick up the new directory

	file := filepath.Join(sub, "mod.py")
	write(t, file, "def f(): pass")
	assert.Contains(t, rec.wait(t), file)
}

func TestFileWatcher_PauseResume(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := NewFileWatcher([]string{dir}, WithDebounce(testDebounce))
	require.NoError(t, err)
	defer w.Stop()

	rec := newRecorder()
	require.NoError(t, w.Start(context.Background(), rec.callback))

	w.Pause()
	file := filepath.Join(dir, "a.py")
	write(t, file, "x = 1")
	rec.expectNone(t, 4*testDebounce)

	w.Resume()
	assert.Equal(t, []string{file}, rec.wait(t))
}

func TestFileWatcher_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	notStarted, err := NewFileWatcher([]string{t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, notStarted.Stop())
	require.NoError(t, notStarted.Stop())

	started, err := NewFileWatcher([]string{t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, started.Start(context.Background(), func([]string) {}))

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = started.Stop()
		}()
	}
	wg.Wait()
}
