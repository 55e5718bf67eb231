package stream

import (
	"io"

	"github.com/pkg/errors"

	"github.com/outofforest/oledoc/bat"
	"github.com/outofforest/oledoc/blocks"
)

var _ io.ReadSeeker = &Reader{}

// Reader reads the content of the chain. Block addresses are resolved lazily and remembered, so seeking
// backwards does not walk the chain again.
type Reader struct {
	store    BlockStore
	size     int64
	pos      int64
	chain    []blocks.BlockAddress
	next     blocks.BlockAddress
	detector *bat.Detector

	buf      []byte
	bufIndex int64
}

// NewReader returns reader of size bytes stored in the chain starting at start.
func NewReader(store BlockStore, start blocks.BlockAddress, size int64) *Reader {
	return &Reader{
		store:    store,
		size:     size,
		next:     start,
		detector: bat.NewDetector(),
		buf:      make([]byte, store.BlockSize()),
		bufIndex: -1,
	}
}

// Size returns the size of the stream.
func (r *Reader) Size() int64 {
	return r.size
}

// Read reads data from the stream.
func (r *Reader) Read(p []byte) (int, error) {
	if r.pos >= r.size {
		return 0, io.EOF
	}

	var n int
	for n < len(p) && r.pos < r.size {
		blockSize := r.store.BlockSize()
		index := r.pos / blockSize
		if err := r.load(index); err != nil {
			return n, err
		}
		offset := r.pos % blockSize
		end := min(blockSize, r.size-index*blockSize)
		c := copy(p[n:], r.buf[offset:end])
		n += c
		r.pos += int64(c)
	}
	return n, nil
}

// Seek seeks the position.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += r.pos
	case io.SeekEnd:
		offset += r.size
	default:
		return 0, errors.Errorf("invalid whence: %d", whence)
	}
	if offset < 0 {
		return 0, errors.Errorf("invalid offset: %d", offset)
	}
	r.pos = offset
	return offset, nil
}

func (r *Reader) load(index int64) error {
	if index == r.bufIndex {
		return nil
	}
	for int64(len(r.chain)) <= index {
		if r.next == blocks.EndOfChain {
			return blocks.Corruptf("chain ends after %d blocks, stream of size %d expected", len(r.chain), r.size)
		}
		if err := r.detector.Claim(r.next); err != nil {
			return err
		}
		r.chain = append(r.chain, r.next)
		next, err := r.store.Table().Next(r.next)
		if err != nil {
			return err
		}
		if next != blocks.EndOfChain && !next.IsRegular() {
			return blocks.Corruptf("block %d is followed by 0x%08x", r.next, uint32(next))
		}
		r.next = next
	}
	if err := r.store.ReadBlock(r.chain[index], r.buf); err != nil {
		r.bufIndex = -1
		return err
	}
	r.bufIndex = index
	return nil
}
