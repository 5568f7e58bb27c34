package javaparse

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"refit/internal/source"
)

// DefaultCacheSize bounds the number of parsed snapshots kept in memory.
const DefaultCacheSize = 256

type cacheKey struct {
	hash [32]byte
	file source.FileID
}

// Cache memoizes Parse results per file snapshot. Trees are immutable, so a
// cached Result can be shared by concurrent callers.
type Cache struct {
	entries *lru.Cache[cacheKey, *Result]
}

// NewCache creates a cache holding at most size results.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[cacheKey, *Result](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

// Parse returns the cached result for file or parses it.
func (c *Cache) Parse(ctx context.Context, file *source.File) (*Result, error) {
	if c == nil {
		return Parse(ctx, file)
	}
	if file == nil {
		return nil, ErrNoFile
	}
	key := cacheKey{hash: file.Hash, file: file.ID}
	if res, ok := c.entries.Get(key); ok {
		return res, nil
	}
	res, err := Parse(ctx, file)
	if err != nil {
		return nil, err
	}
	c.entries.Add(key, res)
	return res, nil
}

// Len returns the number of cached snapshots.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}
