//go:build !test

package cache

const (
	// MaxCacheTries is the maximum number of slots checked using open addressing before taking over a block in cache.
	MaxCacheTries = 10

	// MaxDirtyBlocks is the number of maximum dirty blocks triggering a flush of data blocks.
	MaxDirtyBlocks = 10000

	// DefaultSize is the default size of the cache in bytes.
	DefaultSize = 4 * 1024 * 1024
)
