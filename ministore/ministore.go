package ministore

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/outofforest/oledoc/bat"
	"github.com/outofforest/oledoc/blocks"
	"github.com/outofforest/oledoc/pkg/mlog"
	"github.com/outofforest/oledoc/stream"
)

var _ stream.BlockStore = &Store{}

// Store keeps mini blocks inside the chain of the root entry stored in the main store.
type Store struct {
	parent stream.BlockStore
	table  *bat.Table
	chain  []blocks.BlockAddress
	buf    []byte
}

// New returns empty mini store.
func New(parent stream.BlockStore) *Store {
	return &Store{
		parent: parent,
		table:  bat.NewMini(parent.BlockSize()),
		buf:    make([]byte, parent.BlockSize()),
	}
}

// Load loads mini store whose blocks are kept in the chain starting at rootStart and whose allocation table
// is kept in nTableBlocks blocks starting at tableStart.
func Load(parent stream.BlockStore, rootStart, tableStart blocks.BlockAddress, nTableBlocks int64) (*Store,
	error,
) {
	s := New(parent)

	tableChain, err := parent.Table().Chain(tableStart)
	if err != nil {
		return nil, errors.WithMessage(err, "reading mini allocation table chain failed")
	}
	if int64(len(tableChain)) != nTableBlocks {
		return nil, blocks.Corruptf("header declares %d mini allocation table blocks, chain has %d", nTableBlocks,
			len(tableChain))
	}
	if len(tableChain) > 0 {
		data, err := stream.ReadAll(parent, tableStart, int64(len(tableChain))*parent.BlockSize())
		if err != nil {
			return nil, errors.WithMessage(err, "reading mini allocation table failed")
		}
		s.table = bat.LoadMini(parent.BlockSize(), data)
	}

	if rootStart != blocks.EndOfChain {
		chain, err := parent.Table().Chain(rootStart)
		if err != nil {
			return nil, errors.WithMessage(err, "reading mini stream chain failed")
		}
		s.chain = chain
	}

	mlog.Printf2("ministore/ministore", "Load %d mini table entries, %d blocks of mini stream", s.table.Len(),
		len(s.chain))

	return s, nil
}

// BlockSize returns the size of the mini block.
func (s *Store) BlockSize() int64 {
	return blocks.MiniBlockSize
}

// Table returns the mini allocation table.
func (s *Store) Table() *bat.Table {
	return s.table
}

// ReadBlock reads the mini block.
func (s *Store) ReadBlock(address blocks.BlockAddress, p []byte) error {
	if int64(len(p)) != blocks.MiniBlockSize {
		return errors.Errorf("invalid size of output buffer: %d", len(p))
	}
	parentAddress, offset, err := s.locate(address)
	if err != nil {
		return err
	}
	if err := s.parent.ReadBlock(parentAddress, s.buf); err != nil {
		return err
	}
	copy(p, s.buf[offset:])
	return nil
}

// WriteBlock writes the mini block. Mini stream is extended if the block lies beyond its end.
func (s *Store) WriteBlock(address blocks.BlockAddress, p []byte) error {
	if int64(len(p)) != blocks.MiniBlockSize {
		return errors.Errorf("invalid size of input buffer: %d", len(p))
	}
	if err := s.ensure(address); err != nil {
		return err
	}
	parentAddress, offset, err := s.locate(address)
	if err != nil {
		return err
	}
	if err := s.parent.ReadBlock(parentAddress, s.buf); err != nil {
		return err
	}
	copy(s.buf[offset:], p)
	return s.parent.WriteBlock(parentAddress, s.buf)
}

// RootStart returns the first block of the mini stream in the main store.
func (s *Store) RootStart() blocks.BlockAddress {
	if len(s.chain) == 0 {
		return blocks.EndOfChain
	}
	return s.chain[0]
}

// Size returns the size of the mini stream.
func (s *Store) Size() int64 {
	return int64(len(s.chain)) * s.parent.BlockSize()
}

// Chain returns blocks of the main store occupied by the mini stream.
func (s *Store) Chain() []blocks.BlockAddress {
	return s.chain
}

// EncodeTable returns the content of the mini allocation table.
func (s *Store) EncodeTable() []byte {
	buf := &bytes.Buffer{}
	for i := int64(0); i < s.table.NumBlocks(); i++ {
		buf.Write(s.table.EncodeBlock(i))
	}
	return buf.Bytes()
}

func (s *Store) locate(address blocks.BlockAddress) (blocks.BlockAddress, int64, error) {
	if !address.IsRegular() {
		return 0, 0, blocks.Corruptf("mini block with sentinel address 0x%08x", uint32(address))
	}
	pos := int64(address) * blocks.MiniBlockSize
	index := pos / s.parent.BlockSize()
	if index >= int64(len(s.chain)) {
		return 0, 0, blocks.Corruptf("mini block %d lies beyond mini stream of %d blocks", address, len(s.chain))
	}
	return s.chain[index], pos % s.parent.BlockSize(), nil
}

func (s *Store) ensure(address blocks.BlockAddress) error {
	required := blocks.NumBlocks((int64(address)+1)*blocks.MiniBlockSize, s.parent.BlockSize())
	for int64(len(s.chain)) < required {
		last := blocks.EndOfChain
		if len(s.chain) > 0 {
			last = s.chain[len(s.chain)-1]
		}
		next, err := s.parent.Table().Extend(last, 1)
		if err != nil {
			return err
		}
		for i := range s.buf {
			s.buf[i] = blocks.Filler
		}
		if err := s.parent.WriteBlock(next, s.buf); err != nil {
			return err
		}
		s.chain = append(s.chain, next)
	}
	return nil
}
