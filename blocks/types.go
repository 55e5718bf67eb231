package blocks

// BlockAddress is the index of the block in the container, or one of the sentinels.
type BlockAddress uint32

// Sentinels stored in allocation tables instead of next block index.
const (
	// FreeBlock marks unused entry.
	FreeBlock BlockAddress = 0xFFFFFFFF

	// EndOfChain terminates the chain.
	EndOfChain BlockAddress = 0xFFFFFFFE

	// FATSector marks the block used by the allocation table itself.
	FATSector BlockAddress = 0xFFFFFFFD

	// DIFATSector marks the block used by the extended allocation table.
	DIFATSector BlockAddress = 0xFFFFFFFC

	// MaxRegular is the highest index which may address a real block.
	MaxRegular BlockAddress = 0xFFFFFFFA
)

// IsRegular returns true if address points to a real block.
func (a BlockAddress) IsRegular() bool {
	return a <= MaxRegular
}

const (
	// SmallBlockSize is the size of the block used by major version 3.
	SmallBlockSize int64 = 512

	// LargeBlockSize is the size of the block used by major version 4.
	LargeBlockSize int64 = 4096

	// MiniBlockSize is the size of the block in the mini stream.
	MiniBlockSize int64 = 64

	// BigBlockMinimumDocumentSize is the size starting from which documents are stored in the main store.
	BigBlockMinimumDocumentSize int64 = 4096

	// HeaderSize is the size of the meaningful part of the header.
	HeaderSize int64 = 512

	// EntrySize is the size of the property entry.
	EntrySize int64 = 128

	// InlineDIFATEntries is the number of FAT sector indices stored in the header.
	InlineDIFATEntries = 109

	// Filler is the byte used to fill unused space at the end of blocks.
	Filler byte = 0xFF
)

// EntriesPerBlock returns the number of allocation table entries fitting into one block.
func EntriesPerBlock(blockSize int64) int64 {
	return blockSize / 4
}

// NumBlocks returns the number of blocks required to store size bytes.
func NumBlocks(size, blockSize int64) int64 {
	return (size + blockSize - 1) / blockSize
}
