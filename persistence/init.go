package persistence

import (
	"io"

	"github.com/pkg/errors"

	"github.com/outofforest/oledoc/blocks"
	"github.com/outofforest/oledoc/blocks/entry"
	"github.com/outofforest/oledoc/blocks/header"
	"github.com/outofforest/oledoc/pkg/mlog"
)

// Dev is the interface required from the device.
type Dev interface {
	io.ReadWriteSeeker
	Sync() error
	Size() int64
}

// ErrAlreadyInitialized is returned if during initialization, another container is detected on the device.
var ErrAlreadyInitialized = errors.New("compound file has been already initialized on the provided device")

// Initialize writes empty container to the device. Block 0 keeps the allocation table and block 1 keeps
// the property table containing only the root entry.
func Initialize(dev Dev, blockSize int64, overwrite bool) error {
	if !overwrite {
		if err := validateDev(dev); err != nil {
			return err
		}
	}

	h, err := header.New(blockSize)
	if err != nil {
		return err
	}
	h.NumFATSectors = 1
	h.DIFAT[0] = 0
	h.FirstDirBlock = 1
	if !h.IsVersion3() {
		h.NumDirSectors = 1
	}

	fat := make([]byte, blockSize)
	putAddresses(fat, blocks.FATSector, blocks.EndOfChain)
	for i := int64(2); i < blocks.EntriesPerBlock(blockSize); i++ {
		putAddresses(fat[i*4:], blocks.FreeBlock)
	}

	root := entry.Empty()
	if err := root.SetName(entry.RootName); err != nil {
		return err
	}
	root.Type = entry.RootType
	root.Color = entry.Black

	dir := make([]byte, 0, blockSize)
	dir = append(dir, entry.Encode(&root)...)
	for int64(len(dir)) < blockSize {
		empty := entry.Empty()
		dir = append(dir, entry.Encode(&empty)...)
	}

	mlog.Printf2("persistence/init", "Initialize block size %d", blockSize)

	if _, err := dev.Seek(0, io.SeekStart); err != nil {
		return errors.WithStack(err)
	}
	for _, b := range [][]byte{headerBlock(&h, blockSize), fat, dir} {
		if _, err := dev.Write(b); err != nil {
			return errors.WithStack(err)
		}
	}

	return dev.Sync()
}

func validateDev(dev Dev) error {
	if dev.Size() < blocks.HeaderSize {
		return nil
	}
	h, err := loadHeader(dev)
	if err != nil {
		return err
	}
	if h.V.Signature == header.Signature {
		return errors.WithStack(ErrAlreadyInitialized)
	}
	return nil
}

func headerBlock(h *header.Header, blockSize int64) []byte {
	b := make([]byte, blockSize)
	copy(b, header.Encode(h))
	return b
}
