package stream

import (
	"io"

	"github.com/pkg/errors"

	"github.com/outofforest/oledoc/bat"
	"github.com/outofforest/oledoc/blocks"
)

// BlockStore is the store of fixed-size blocks managed by an allocation table.
type BlockStore interface {
	BlockSize() int64
	Table() *bat.Table
	ReadBlock(address blocks.BlockAddress, p []byte) error
	WriteBlock(address blocks.BlockAddress, p []byte) error
}

// Iterator iterates over blocks of the chain. It keeps its own loop detector, so many iterators may walk
// the same store independently.
type Iterator struct {
	store    BlockStore
	next     blocks.BlockAddress
	detector *bat.Detector
	buf      []byte
}

// NewIterator returns iterator starting at the start block. Nothing is read until Next is called.
func NewIterator(store BlockStore, start blocks.BlockAddress) *Iterator {
	return &Iterator{
		store:    store,
		next:     start,
		detector: bat.NewDetector(),
		buf:      make([]byte, store.BlockSize()),
	}
}

// Next returns the address and the content of the next block. The content is valid until the next call.
// io.EOF is returned after the last block.
func (it *Iterator) Next() (blocks.BlockAddress, []byte, error) {
	if it.next == blocks.EndOfChain {
		return 0, nil, io.EOF
	}
	address := it.next
	if err := it.detector.Claim(address); err != nil {
		return 0, nil, err
	}
	next, err := it.store.Table().Next(address)
	if err != nil {
		return 0, nil, err
	}
	if next != blocks.EndOfChain && !next.IsRegular() {
		return 0, nil, blocks.Corruptf("block %d is followed by 0x%08x", address, uint32(next))
	}
	if err := it.store.ReadBlock(address, it.buf); err != nil {
		return 0, nil, err
	}
	it.next = next
	return address, it.buf, nil
}

// Store writes all the content of the reader into new chain. Blocks are allocated one by one, so the size
// does not need to be known in advance. On failure blocks allocated so far are released.
func Store(store BlockStore, r io.Reader) (blocks.BlockAddress, int64, error) {
	start, size, err := storeChain(store, r)
	if err != nil {
		return 0, 0, release(store, start, err)
	}
	return start, size, nil
}

func storeChain(store BlockStore, r io.Reader) (blocks.BlockAddress, int64, error) {
	table := store.Table()
	buf := make([]byte, store.BlockSize())
	start := blocks.EndOfChain
	last := blocks.EndOfChain
	var size int64

	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			pad(buf[n:])
			address, err := table.Extend(last, 1)
			if err != nil {
				return start, 0, err
			}
			if start == blocks.EndOfChain {
				start = address
			}
			last = address
			if err := store.WriteBlock(address, buf); err != nil {
				return start, 0, err
			}
			size += int64(n)
		}

		switch {
		case err == nil:
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return start, size, nil
		default:
			return start, 0, errors.WithStack(err)
		}
	}
}

// StoreBytes writes data into new chain allocated at once. On failure the chain is released.
func StoreBytes(store BlockStore, data []byte) (blocks.BlockAddress, error) {
	blockSize := store.BlockSize()
	start, err := store.Table().AllocateChain(blocks.NumBlocks(int64(len(data)), blockSize))
	if err != nil {
		return 0, err
	}

	buf := make([]byte, blockSize)
	it := start
	for offset := int64(0); offset < int64(len(data)); offset += blockSize {
		pad(buf[copy(buf, data[offset:]):])
		if err := store.WriteBlock(it, buf); err != nil {
			return 0, release(store, start, err)
		}
		if it, err = store.Table().Next(it); err != nil {
			return 0, release(store, start, err)
		}
	}
	return start, nil
}

func release(store BlockStore, start blocks.BlockAddress, cause error) error {
	if err := Free(store, start); err != nil {
		return errors.WithMessagef(cause, "releasing partial chain failed: %v", err)
	}
	return cause
}

// Update releases the old chain and stores the data in the new one.
func Update(store BlockStore, start blocks.BlockAddress, data []byte) (blocks.BlockAddress, error) {
	if err := Free(store, start); err != nil {
		return 0, err
	}
	return StoreBytes(store, data)
}

// Free releases all the blocks of the chain.
func Free(store BlockStore, start blocks.BlockAddress) error {
	if start == blocks.EndOfChain {
		return nil
	}
	return store.Table().FreeChain(start)
}

// ReadAll reads size bytes of the chain. The chain is resolved first, so the size is verified against its
// capacity before anything is allocated.
func ReadAll(store BlockStore, start blocks.BlockAddress, size int64) ([]byte, error) {
	if size < 0 {
		return nil, blocks.Corruptf("invalid stream size %d", size)
	}
	chain, err := store.Table().Chain(start)
	if err != nil {
		return nil, err
	}
	if capacity := int64(len(chain)) * store.BlockSize(); size > capacity {
		return nil, blocks.Corruptf("stream of size %d exceeds capacity %d of its chain", size, capacity)
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(NewReader(store, start, size), data); err != nil {
		return nil, err
	}
	return data, nil
}

func pad(b []byte) {
	for i := range b {
		b[i] = blocks.Filler
	}
}
