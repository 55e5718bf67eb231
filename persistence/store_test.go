package persistence

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/oledoc/blocks"
	"github.com/outofforest/oledoc/blocks/entry"
	"github.com/outofforest/oledoc/blocks/header"
	"github.com/outofforest/oledoc/pkg/memdev"
)

func TestValidInitialization(t *testing.T) {
	requireT := require.New(t)

	for _, blockSize := range []int64{blocks.SmallBlockSize, blocks.LargeBlockSize} {
		dev := memdev.New(0)
		requireT.NoError(Initialize(dev, blockSize, false))
		requireT.EqualValues(3*blockSize, dev.Size())

		store, err := OpenStore(dev)
		requireT.NoError(err)
		requireT.Equal(blockSize, store.BlockSize())
		requireT.EqualValues(2, store.NumBlocks())
		requireT.EqualValues(1, store.Header().NumFATSectors)
		requireT.Equal(blocks.BlockAddress(1), store.Header().FirstDirBlock)

		fat := make([]byte, blockSize)
		requireT.NoError(store.ReadBlock(0, fat))
		requireT.Equal(uint32(blocks.FATSector), binary.LittleEndian.Uint32(fat))
		requireT.Equal(uint32(blocks.EndOfChain), binary.LittleEndian.Uint32(fat[4:]))
		requireT.Equal(uint32(blocks.FreeBlock), binary.LittleEndian.Uint32(fat[8:]))

		dir := make([]byte, blockSize)
		requireT.NoError(store.ReadBlock(1, dir))
		root := entry.Decode(dir)
		name, err := root.V.DecodeName()
		requireT.NoError(err)
		requireT.Equal(entry.RootName, name)
		requireT.Equal(entry.RootType, root.V.Type)
	}
}

func TestOverwrite(t *testing.T) {
	requireT := require.New(t)

	dev := memdev.New(0)
	requireT.NoError(Initialize(dev, blocks.SmallBlockSize, false))
	requireT.ErrorIs(Initialize(dev, blocks.SmallBlockSize, false), ErrAlreadyInitialized)
	requireT.NoError(Initialize(dev, blocks.LargeBlockSize, true))

	store, err := OpenStore(dev)
	requireT.NoError(err)
	requireT.Equal(blocks.LargeBlockSize, store.BlockSize())
}

func TestInvalidSignature(t *testing.T) {
	requireT := require.New(t)

	dev := memdev.New(0)
	requireT.NoError(Initialize(dev, blocks.SmallBlockSize, false))
	dev.Bytes()[0] = 0

	_, err := OpenStore(dev)
	requireT.ErrorIs(err, blocks.ErrFormat)
}

func TestTruncatedHeader(t *testing.T) {
	requireT := require.New(t)

	dev := memdev.NewFromBytes(header.Signature[:])
	_, err := OpenStore(dev)
	requireT.ErrorIs(err, blocks.ErrTruncated)
	requireT.ErrorIs(err, blocks.ErrFormat)
}

func TestReadBlockBeyondEnd(t *testing.T) {
	requireT := require.New(t)

	dev := memdev.New(0)
	requireT.NoError(Initialize(dev, blocks.SmallBlockSize, false))
	store, err := OpenStore(dev)
	requireT.NoError(err)

	p := make([]byte, blocks.SmallBlockSize)
	requireT.ErrorIs(store.ReadBlock(2, p), blocks.ErrTruncated)
	requireT.ErrorIs(store.ReadBlock(blocks.EndOfChain, p), blocks.ErrCorrupt)
	requireT.Error(store.ReadBlock(0, p[:10]))
}

func TestPartialLastBlockIsZeroFilled(t *testing.T) {
	requireT := require.New(t)

	dev := memdev.New(0)
	requireT.NoError(Initialize(dev, blocks.SmallBlockSize, false))
	_, err := dev.Write([]byte{1, 2, 3})
	requireT.NoError(err)

	store, err := OpenStore(dev)
	requireT.NoError(err)
	requireT.EqualValues(3, store.NumBlocks())

	p := bytes.Repeat([]byte{0xAA}, int(blocks.SmallBlockSize))
	requireT.NoError(store.ReadBlock(2, p))
	requireT.Equal([]byte{1, 2, 3, 0, 0}, p[:5])
	requireT.Equal(make([]byte, blocks.SmallBlockSize-3), p[3:])
}

func TestWriteBlockAndHeader(t *testing.T) {
	requireT := require.New(t)

	dev := memdev.New(0)
	requireT.NoError(Initialize(dev, blocks.SmallBlockSize, false))
	store, err := OpenStore(dev)
	requireT.NoError(err)

	p := bytes.Repeat([]byte{0x42}, int(blocks.SmallBlockSize))
	requireT.NoError(store.WriteBlock(4, p))
	requireT.EqualValues(6*blocks.SmallBlockSize, dev.Size())

	store.Header().FirstMiniFATBlock = 4
	requireT.NoError(store.WriteHeader())
	requireT.NoError(store.Sync())

	store2, err := OpenStore(dev)
	requireT.NoError(err)
	requireT.Equal(blocks.BlockAddress(4), store2.Header().FirstMiniFATBlock)

	read := make([]byte, blocks.SmallBlockSize)
	requireT.NoError(store2.ReadBlock(4, read))
	requireT.Equal(p, read)
}
