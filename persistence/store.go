package persistence

import (
	"encoding/binary"
	"io"

	"github.com/outofforest/photon"
	"github.com/pkg/errors"

	"github.com/outofforest/oledoc/blocks"
	"github.com/outofforest/oledoc/blocks/header"
)

// Store represents persistent storage of the container.
type Store struct {
	dev       Dev
	header    photon.Union[*header.Header]
	blockSize int64
}

// OpenStore opens the persistent store.
func OpenStore(dev Dev) (*Store, error) {
	h, err := loadHeader(dev)
	if err != nil {
		return nil, err
	}
	if err := h.V.Validate(); err != nil {
		return nil, err
	}

	return &Store{
		dev:       dev,
		header:    h,
		blockSize: h.V.BlockSize(),
	}, nil
}

// Header returns the header. Changes are persisted by WriteHeader.
func (s *Store) Header() *header.Header {
	return s.header.V
}

// BlockSize returns the size of the big block.
func (s *Store) BlockSize() int64 {
	return s.blockSize
}

// NumBlocks returns the number of blocks, including the partial one, present on the device.
func (s *Store) NumBlocks() int64 {
	return blocks.NumBlocks(s.dev.Size()-s.blockSize, s.blockSize)
}

// ReadBlock reads raw block bytes from the addressed block. Missing tail of the last block is zeroed.
func (s *Store) ReadBlock(address blocks.BlockAddress, p []byte) error {
	if int64(len(p)) != s.blockSize {
		return errors.Errorf("invalid size of output buffer: %d", len(p))
	}
	if !address.IsRegular() {
		return blocks.Corruptf("reading block with sentinel address 0x%08x", uint32(address))
	}

	offset := s.offset(address)
	if offset >= s.dev.Size() {
		return errors.Wrapf(blocks.ErrTruncated, "block %d starts at %d, device size is %d", address, offset,
			s.dev.Size())
	}
	if _, err := s.dev.Seek(offset, io.SeekStart); err != nil {
		return errors.WithStack(err)
	}
	n, err := io.ReadFull(s.dev, p)
	switch {
	case err == nil:
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		clear(p[n:])
	default:
		return errors.WithStack(err)
	}
	return nil
}

// WriteBlock writes raw block bytes to the addressed block.
func (s *Store) WriteBlock(address blocks.BlockAddress, p []byte) error {
	if int64(len(p)) != s.blockSize {
		return errors.Errorf("invalid size of input buffer: %d", len(p))
	}
	if !address.IsRegular() {
		return blocks.Corruptf("writing block with sentinel address 0x%08x", uint32(address))
	}

	if _, err := s.dev.Seek(s.offset(address), io.SeekStart); err != nil {
		return errors.WithStack(err)
	}
	if _, err := s.dev.Write(p); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// WriteHeader writes the header to the device.
func (s *Store) WriteHeader() error {
	if _, err := s.dev.Seek(0, io.SeekStart); err != nil {
		return errors.WithStack(err)
	}
	if _, err := s.dev.Write(headerBlock(s.header.V, s.blockSize)); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Sync forces data to be written to the dev.
func (s *Store) Sync() error {
	return errors.WithStack(s.dev.Sync())
}

func (s *Store) offset(address blocks.BlockAddress) int64 {
	return (int64(address) + 1) * s.blockSize
}

func loadHeader(dev Dev) (photon.Union[*header.Header], error) {
	if _, err := dev.Seek(0, io.SeekStart); err != nil {
		return photon.Union[*header.Header]{}, errors.WithStack(err)
	}

	h := header.Decode(make([]byte, blocks.HeaderSize))
	if _, err := io.ReadFull(dev, h.B); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return photon.Union[*header.Header]{}, errors.Wrap(blocks.ErrTruncated, "header is incomplete")
		}
		return photon.Union[*header.Header]{}, errors.WithStack(err)
	}
	return h, nil
}

func putAddresses(b []byte, addresses ...blocks.BlockAddress) {
	for i, a := range addresses {
		binary.LittleEndian.PutUint32(b[4*i:], uint32(a))
	}
}
