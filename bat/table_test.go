package bat

import (
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/oledoc/blocks"
	"github.com/outofforest/oledoc/blocks/header"
)

const blockSize = blocks.SmallBlockSize

type memReader map[blocks.BlockAddress][]byte

func (r memReader) BlockSize() int64 {
	return blockSize
}

func (r memReader) ReadBlock(address blocks.BlockAddress, p []byte) error {
	b, ok := r[address]
	if !ok {
		return errors.Wrapf(blocks.ErrTruncated, "block %d", address)
	}
	copy(p, b)
	return nil
}

func encodeEntries(entries ...blocks.BlockAddress) []byte {
	b := make([]byte, blockSize)
	for i := range b {
		b[i] = 0xFF
	}
	for i, e := range entries {
		binary.LittleEndian.PutUint32(b[4*i:], uint32(e))
	}
	return b
}

func chainOf(t *testing.T, table *Table, start blocks.BlockAddress) []blocks.BlockAddress {
	chain, err := table.Chain(start)
	require.NoError(t, err)
	return chain
}

func TestAllocateGrowsWithFATSector(t *testing.T) {
	requireT := require.New(t)

	table := New(blockSize)
	start, err := table.AllocateChain(3)
	requireT.NoError(err)

	// Block 0 is taken by the FAT sector itself.
	requireT.Equal(blocks.BlockAddress(1), start)
	requireT.Equal([]blocks.BlockAddress{1, 2, 3}, chainOf(t, table, start))
	requireT.Equal([]blocks.BlockAddress{0}, table.FATSectors())
	requireT.EqualValues(128, table.Len())

	next, err := table.Next(0)
	requireT.NoError(err)
	requireT.Equal(blocks.FATSector, next)
}

func TestAllocateReusesFreedBlocks(t *testing.T) {
	requireT := require.New(t)

	table := New(blockSize)
	first, err := table.AllocateChain(2)
	requireT.NoError(err)
	second, err := table.AllocateChain(2)
	requireT.NoError(err)
	requireT.Equal([]blocks.BlockAddress{3, 4}, chainOf(t, table, second))

	requireT.NoError(table.FreeChain(first))
	third, err := table.AllocateChain(3)
	requireT.NoError(err)
	requireT.Equal([]blocks.BlockAddress{1, 2, 5}, chainOf(t, table, third))
}

func TestAllocateZeroBlocks(t *testing.T) {
	requireT := require.New(t)

	table := New(blockSize)
	start, err := table.AllocateChain(0)
	requireT.NoError(err)
	requireT.Equal(blocks.EndOfChain, start)
	requireT.Empty(chainOf(t, table, start))
}

func TestGrowingAcrossManyFATSectors(t *testing.T) {
	requireT := require.New(t)

	table := New(blockSize)
	start, err := table.AllocateChain(1000)
	requireT.NoError(err)

	chain := chainOf(t, table, start)
	requireT.Len(chain, 1000)

	fatSectors := map[blocks.BlockAddress]bool{}
	for _, s := range table.FATSectors() {
		fatSectors[s] = true
	}
	for _, b := range chain {
		requireT.False(fatSectors[b], "block %d is both data and FAT sector", b)
	}
	requireT.Len(table.FATSectors(), 8)
	requireT.Empty(table.DIFATSectors())
}

func TestGrowingAddsDIFATSectors(t *testing.T) {
	requireT := require.New(t)

	table := New(blockSize)
	_, err := table.AllocateChain(110 * 127)
	requireT.NoError(err)

	requireT.Greater(len(table.FATSectors()), blocks.InlineDIFATEntries)
	requireT.Len(table.DIFATSectors(), 1)

	difat := table.DIFATSectors()[0]
	next, err := table.Next(difat)
	requireT.NoError(err)
	requireT.Equal(blocks.DIFATSector, next)

	h, err := header.New(blockSize)
	requireT.NoError(err)
	table.UpdateHeader(&h)
	requireT.EqualValues(len(table.FATSectors()), h.NumFATSectors)
	requireT.Equal(difat, h.FirstDIFATBlock)
	requireT.EqualValues(1, h.NumDIFATSectors)

	// Header and DIFAT sector together address all FAT sectors and the table loads back.
	reader := memReader{difat: table.EncodeDIFATBlock(0)}
	for i, s := range table.FATSectors() {
		reader[s] = table.EncodeBlock(int64(i))
	}
	loaded, err := Load(&h, reader)
	requireT.NoError(err)
	requireT.Equal(table.FATSectors(), loaded.FATSectors())
	requireT.Equal(table.DIFATSectors(), loaded.DIFATSectors())
	requireT.Equal(table.Len(), loaded.Len())
}

func TestFreeChainDetectsLoop(t *testing.T) {
	requireT := require.New(t)

	table := New(blockSize)
	start, err := table.AllocateChain(3)
	requireT.NoError(err)

	// 1 -> 2 -> 3 -> 1
	requireT.NoError(table.SetNext(3, 1))
	err = table.FreeChain(start)
	requireT.ErrorIs(err, blocks.ErrCorrupt)

	// Nothing has been released.
	next, err := table.Next(1)
	requireT.NoError(err)
	requireT.Equal(blocks.BlockAddress(2), next)
}

func TestChainReachingFreeBlockIsCorrupt(t *testing.T) {
	requireT := require.New(t)

	table := New(blockSize)
	start, err := table.AllocateChain(2)
	requireT.NoError(err)
	requireT.NoError(table.SetNext(2, blocks.FreeBlock))

	_, err = table.Chain(start)
	requireT.ErrorIs(err, blocks.ErrCorrupt)

	_, err = table.Next(10000)
	requireT.ErrorIs(err, blocks.ErrCorrupt)
}

func TestExtend(t *testing.T) {
	requireT := require.New(t)

	table := New(blockSize)
	start, err := table.Extend(blocks.EndOfChain, 1)
	requireT.NoError(err)
	_, err = table.AllocateChain(1)
	requireT.NoError(err)
	_, err = table.Extend(start, 2)
	requireT.NoError(err)

	requireT.Equal([]blocks.BlockAddress{1, 3, 4}, chainOf(t, table, start))

	_, err = table.Extend(start, 1)
	requireT.ErrorIs(err, blocks.ErrCorrupt)
}

func TestLoad(t *testing.T) {
	requireT := require.New(t)

	h, err := header.New(blockSize)
	requireT.NoError(err)
	h.NumFATSectors = 1
	h.DIFAT[0] = 0

	reader := memReader{0: encodeEntries(blocks.FATSector, 2, blocks.EndOfChain)}
	table, err := Load(&h, reader)
	requireT.NoError(err)
	requireT.Equal([]blocks.BlockAddress{1, 2}, chainOf(t, table, 1))
}

func TestLoadDoubleClaimedFATSector(t *testing.T) {
	requireT := require.New(t)

	h, err := header.New(blockSize)
	requireT.NoError(err)
	h.NumFATSectors = 2
	h.DIFAT[0] = 0
	h.DIFAT[1] = 0

	reader := memReader{0: encodeEntries(blocks.FATSector)}
	_, err = Load(&h, reader)
	requireT.ErrorIs(err, blocks.ErrCorrupt)
	requireT.ErrorIs(err, blocks.ErrFormat)
}

func TestLoadDIFATLoop(t *testing.T) {
	requireT := require.New(t)

	h, err := header.New(blockSize)
	requireT.NoError(err)
	h.NumFATSectors = 110
	for i := range h.DIFAT {
		h.DIFAT[i] = blocks.BlockAddress(i)
	}
	h.FirstDIFATBlock = 200
	h.NumDIFATSectors = 2

	difat := make([]blocks.BlockAddress, 128)
	for i := range difat {
		difat[i] = blocks.FreeBlock
	}
	difat[0] = 109
	difat[127] = 200
	reader := memReader{200: encodeEntries(difat...)}

	_, err = Load(&h, reader)
	requireT.ErrorIs(err, blocks.ErrCorrupt)
}

func TestLoadTruncated(t *testing.T) {
	requireT := require.New(t)

	h, err := header.New(blockSize)
	requireT.NoError(err)
	h.NumFATSectors = 1
	h.DIFAT[0] = 5

	_, err = Load(&h, memReader{})
	requireT.ErrorIs(err, blocks.ErrTruncated)
}

func TestMiniTable(t *testing.T) {
	requireT := require.New(t)

	table := NewMini(blockSize)
	start, err := table.AllocateChain(130)
	requireT.NoError(err)
	requireT.Equal(blocks.BlockAddress(0), start)
	requireT.Empty(table.FATSectors())
	requireT.EqualValues(256, table.Len())
	requireT.EqualValues(2, table.NumBlocks())

	data := append(table.EncodeBlock(0), table.EncodeBlock(1)...)
	loaded := LoadMini(blockSize, data)
	requireT.Equal(chainOf(t, table, start), chainOf(t, loaded, start))
}

func TestPlanned(t *testing.T) {
	requireT := require.New(t)

	table := NewPlanned(blockSize, 10)
	requireT.NoError(table.Link(2, 3))
	requireT.NoError(table.MarkFATSector(9))
	requireT.Equal([]blocks.BlockAddress{2, 3, 4}, chainOf(t, table, 2))
	requireT.Error(table.Link(8, 3))

	b := table.EncodeBlock(0)
	requireT.Equal(uint32(blocks.FATSector), binary.LittleEndian.Uint32(b[36:]))
	requireT.Equal(uint32(blocks.FreeBlock), binary.LittleEndian.Uint32(b[40:]))
}

func TestDIFATSectorsRequired(t *testing.T) {
	requireT := require.New(t)

	requireT.EqualValues(0, DIFATSectorsRequired(109, 128))
	requireT.EqualValues(1, DIFATSectorsRequired(110, 128))
	requireT.EqualValues(1, DIFATSectorsRequired(109+127, 128))
	requireT.EqualValues(2, DIFATSectorsRequired(109+128, 128))
}

func TestDetector(t *testing.T) {
	requireT := require.New(t)

	d := NewDetector()
	requireT.NoError(d.Claim(5))
	requireT.True(d.Claimed(5))
	requireT.ErrorIs(d.Claim(5), blocks.ErrCorrupt)
	requireT.ErrorIs(d.Claim(blocks.EndOfChain), blocks.ErrCorrupt)
	requireT.EqualValues(1, d.Count())
}
