//go:build test

package cache

const (
	// MaxCacheTries is the maximum number of slots checked using open addressing before taking over a block in cache.
	MaxCacheTries = 2

	// MaxDirtyBlocks is the number of maximum dirty blocks triggering a flush of data blocks.
	MaxDirtyBlocks = 2

	// DefaultSize is the default size of the cache in bytes.
	DefaultSize = 16 * 1024
)
