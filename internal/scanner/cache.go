package scanner

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/maypok86/otter"

	"github.com/mvp-joe/symbol-scanner/internal/extraction"
)

// ResultCache keeps per-file extraction results keyed by path, content hash
// and backend, so unchanged files are not parsed again between runs.
// Cached results are shared and must not be mutated.
type ResultCache struct {
	cache otter.Cache[string, *extraction.ExtractionResult]
}

// NewResultCache creates a cache holding up to capacity results.
func NewResultCache(capacity int) (*ResultCache, error) {
	c, err := otter.MustBuilder[string, *extraction.ExtractionResult](capacity).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build result cache: %w", err)
	}
	return &ResultCache{cache: c}, nil
}

// Key builds the cache key for one file's content under one backend.
func (c *ResultCache) Key(relPath string, content []byte, backend string) string {
	return fmt.Sprintf("%s\x00%016x\x00%s", relPath, xxhash.Sum64(content), backend)
}

// Get returns the cached result for key.
func (c *ResultCache) Get(key string) (*extraction.ExtractionResult, bool) {
	return c.cache.Get(key)
}

// Set stores a result.
func (c *ResultCache) Set(key string, res *extraction.ExtractionResult) {
	c.cache.Set(key, res)
}

// Len returns the number of cached results.
func (c *ResultCache) Len() int {
	return c.cache.Size()
}

// Close releases the cache's background resources.
func (c *ResultCache) Close() {
	c.cache.Close()
}
