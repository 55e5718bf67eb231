package oledoc

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/outofforest/oledoc/bat"
	"github.com/outofforest/oledoc/blocks"
	"github.com/outofforest/oledoc/blocks/entry"
	"github.com/outofforest/oledoc/pkg/mlog"
	"github.com/outofforest/oledoc/property"
	"github.com/outofforest/oledoc/stream"
)

// Commit stores all the changes on the device.
func (fs *FileSystem) Commit() error {
	if err := fs.ready(); err != nil {
		return err
	}

	handles := make([]property.Handle, 0, len(fs.pending))
	for h := range fs.pending {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	for _, h := range handles {
		if err := fs.materialize(h); err != nil {
			return err
		}
	}

	h := fs.store.Header()
	blockSize := fs.big.BlockSize()

	miniTable := fs.mini.EncodeTable()
	miniTableStart, err := stream.Update(fs.big, h.FirstMiniFATBlock, miniTable)
	if err != nil {
		return err
	}
	h.FirstMiniFATBlock = miniTableStart
	h.NumMiniFATSectors = uint32(blocks.NumBlocks(int64(len(miniTable)), blockSize))

	root, err := fs.props.Get(property.RootHandle)
	if err != nil {
		return err
	}
	root.StartBlock = fs.mini.RootStart()
	root.Size = fs.mini.Size()

	dir, err := fs.props.Serialize(blockSize)
	if err != nil {
		return err
	}
	dirStart, err := stream.Update(fs.big, h.FirstDirBlock, dir)
	if err != nil {
		return err
	}
	h.FirstDirBlock = dirStart
	if !h.IsVersion3() {
		h.NumDirSectors = uint32(int64(len(dir)) / blockSize)
	}

	// Table is stored last because storing other chains might grow it.
	table := fs.big.Table()
	for i, address := range table.FATSectors() {
		if err := fs.cache.WriteBlock(address, table.EncodeBlock(int64(i))); err != nil {
			return err
		}
	}
	for i, address := range table.DIFATSectors() {
		if err := fs.cache.WriteBlock(address, table.EncodeDIFATBlock(int64(i))); err != nil {
			return err
		}
	}
	table.UpdateHeader(h)

	mlog.Printf("Commit: %d FAT sectors, %d DIFAT sectors, %d properties", len(table.FATSectors()),
		len(table.DIFATSectors()), fs.props.Count())

	return fs.cache.Commit()
}

// CheckIntegrity verifies that no block belongs to two chains and that every document fits in its chain.
func (fs *FileSystem) CheckIntegrity() error {
	if err := fs.ready(); err != nil {
		return err
	}

	h := fs.store.Header()
	table := fs.big.Table()
	detector := bat.NewDetector()

	for _, address := range table.FATSectors() {
		if err := detector.Claim(address); err != nil {
			return errors.WithMessage(err, "FAT sector")
		}
	}
	for _, address := range table.DIFATSectors() {
		if err := detector.Claim(address); err != nil {
			return errors.WithMessage(err, "DIFAT sector")
		}
	}
	if _, err := table.ClaimChain(detector, h.FirstDirBlock); err != nil {
		return errors.WithMessage(err, "property table")
	}
	if _, err := table.ClaimChain(detector, h.FirstMiniFATBlock); err != nil {
		return errors.WithMessage(err, "mini allocation table")
	}
	if _, err := table.ClaimChain(detector, fs.mini.RootStart()); err != nil {
		return errors.WithMessage(err, "mini stream")
	}

	miniDetector := bat.NewDetector()
	miniBlocks := fs.mini.Size() / blocks.MiniBlockSize
	return fs.props.Walk(func(handle property.Handle, p *property.Property) error {
		if p.Type != entry.StreamType {
			return nil
		}
		if _, exists := fs.pending[handle]; exists {
			return nil
		}

		var chain []blocks.BlockAddress
		var err error
		blockSize := blocks.MiniBlockSize
		if p.Size < blocks.BigBlockMinimumDocumentSize {
			chain, err = fs.mini.Table().ClaimChain(miniDetector, p.StartBlock)
			for _, address := range chain {
				if int64(address) >= miniBlocks {
					return blocks.Corruptf("document %q uses mini block %d beyond the mini stream", p.Name, address)
				}
			}
		} else {
			blockSize = fs.big.BlockSize()
			chain, err = table.ClaimChain(detector, p.StartBlock)
		}
		if err != nil {
			return errors.WithMessagef(err, "document %q", p.Name)
		}
		if int64(len(chain)) != blocks.NumBlocks(p.Size, blockSize) {
			return blocks.Corruptf("document %q of size %d is stored in %d blocks", p.Name, p.Size, len(chain))
		}
		return nil
	})
}
