package cache

import (
	"github.com/cespare/xxhash/v2"
	"github.com/outofforest/photon"
	"github.com/pkg/errors"

	"github.com/outofforest/oledoc/blocks"
	"github.com/outofforest/oledoc/persistence"
	"github.com/outofforest/oledoc/pkg/mlog"
)

// Cache caches blocks of the container and delays writes until commit.
type Cache struct {
	store       *persistence.Store
	blockSize   int64
	slotSize    int64
	nSlots      int64
	data        []byte
	dirtyBlocks map[int64]struct{}
}

// New creates new cache.
func New(store *persistence.Store, size int64) *Cache {
	blockSize := store.BlockSize()
	slotSize := CacheHeaderSize + blockSize
	nSlots := size / slotSize
	if nSlots < 1 {
		nSlots = 1
	}

	return &Cache{
		store:       store,
		blockSize:   blockSize,
		slotSize:    slotSize,
		nSlots:      nSlots,
		data:        make([]byte, nSlots*slotSize),
		dirtyBlocks: make(map[int64]struct{}, min(MaxDirtyBlocks, nSlots)),
	}
}

// Store returns the underlying store.
func (c *Cache) Store() *persistence.Store {
	return c.store
}

// BlockSize returns the size of the cached block.
func (c *Cache) BlockSize() int64 {
	return c.blockSize
}

// ReadBlock copies content of the block to p.
func (c *Cache) ReadBlock(address blocks.BlockAddress, p []byte) error {
	if int64(len(p)) != c.blockSize {
		return errors.Errorf("invalid size of output buffer: %d", len(p))
	}

	cacheAddress, err := c.findCachedBlock(address)
	if err != nil {
		return err
	}

	h, data := c.slot(cacheAddress)
	if h.V.State != fetchedBlockState && h.V.State != dirtyBlockState {
		if err := c.store.ReadBlock(address, data); err != nil {
			h.V.State = invalidBlockState
			return err
		}
		h.V.Address = address
		h.V.State = fetchedBlockState
	}

	copy(p, data)
	return nil
}

// WriteBlock stores content of the block in cache. It is written to the device later.
func (c *Cache) WriteBlock(address blocks.BlockAddress, p []byte) error {
	if int64(len(p)) != c.blockSize {
		return errors.Errorf("invalid size of input buffer: %d", len(p))
	}
	if !address.IsRegular() {
		return blocks.Corruptf("writing block with sentinel address 0x%08x", uint32(address))
	}

	if len(c.dirtyBlocks) >= MaxDirtyBlocks {
		if err := c.commitData(); err != nil {
			return err
		}
	}

	cacheAddress, err := c.findCachedBlock(address)
	if err != nil {
		return err
	}

	h, data := c.slot(cacheAddress)
	h.V.Address = address
	h.V.State = dirtyBlockState
	copy(data, p)
	c.dirtyBlocks[cacheAddress] = struct{}{}

	return nil
}

// Commit writes dirty blocks and the header to the device and syncs it.
func (c *Cache) Commit() error {
	if err := c.commitData(); err != nil {
		return err
	}
	if err := c.store.WriteHeader(); err != nil {
		return err
	}
	return c.store.Sync()
}

func (c *Cache) commitData() error {
	mlog.Printf2("cache/cache", "commitData %d blocks", len(c.dirtyBlocks))

	for cacheAddress := range c.dirtyBlocks {
		h, data := c.slot(cacheAddress)
		if err := c.store.WriteBlock(h.V.Address, data); err != nil {
			return err
		}
		h.V.State = fetchedBlockState
	}

	// This is intentionally done in separate loop to take advantage of the optimisation
	// golang applies when seeing this code.
	for cacheAddress := range c.dirtyBlocks {
		delete(c.dirtyBlocks, cacheAddress)
	}

	return nil
}

func (c *Cache) findCachedBlock(address blocks.BlockAddress) (int64, error) {
	// If there is no free slot found in `MaxCacheTries` tries, the first tried one is taken over.
	selectedCacheAddress := int64(xxhash.Sum64(photon.NewFromValue(&address).B) % uint64(c.nSlots))
	var invalidCacheAddressFound bool

	for i, cacheAddress := int64(0), selectedCacheAddress; i < MaxCacheTries && i < c.nSlots; i, cacheAddress = i+1,
		(cacheAddress+1)%c.nSlots {
		h, _ := c.slot(cacheAddress)

		switch h.V.State {
		case freeBlockState:
			if invalidCacheAddressFound {
				return selectedCacheAddress, nil
			}
			return cacheAddress, nil
		case invalidBlockState:
			if !invalidCacheAddressFound {
				invalidCacheAddressFound = true
				selectedCacheAddress = cacheAddress
			}
		case fetchedBlockState, dirtyBlockState:
			if h.V.Address == address {
				return cacheAddress, nil
			}
		}
	}

	h, data := c.slot(selectedCacheAddress)
	switch h.V.State {
	case dirtyBlockState:
		if err := c.store.WriteBlock(h.V.Address, data); err != nil {
			return 0, err
		}
		delete(c.dirtyBlocks, selectedCacheAddress)
		h.V.State = invalidBlockState
	case fetchedBlockState:
		h.V.State = invalidBlockState
	}

	return selectedCacheAddress, nil
}

func (c *Cache) slot(cacheAddress int64) (photon.Union[*header], []byte) {
	offset := cacheAddress * c.slotSize
	dataOffset := offset + CacheHeaderSize
	return photon.NewFromBytes[header](c.data[offset:]), c.data[dataOffset : dataOffset+c.blockSize]
}
