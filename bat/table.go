package bat

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/outofforest/oledoc/blocks"
	"github.com/outofforest/oledoc/blocks/header"
	"github.com/outofforest/oledoc/pkg/mlog"
)

// BlockReader reads blocks of the main store.
type BlockReader interface {
	BlockSize() int64
	ReadBlock(address blocks.BlockAddress, p []byte) error
}

// Table is the block allocation table. The main table keeps its own blocks (FAT sectors) and the blocks
// of the extended table (DIFAT sectors) inside itself. The mini table is stored in an ordinary chain of the
// main store, so it grows without self-references.
type Table struct {
	entries         []blocks.BlockAddress
	entriesPerBlock int64
	mini            bool

	fatSectors   []blocks.BlockAddress
	difatSectors []blocks.BlockAddress

	// firstFree is the lowest index which might be free.
	firstFree int64
}

// New returns empty main allocation table.
func New(blockSize int64) *Table {
	return &Table{
		entriesPerBlock: blocks.EntriesPerBlock(blockSize),
	}
}

// NewMini returns empty mini allocation table stored in blocks of the provided size.
func NewMini(blockSize int64) *Table {
	return &Table{
		entriesPerBlock: blocks.EntriesPerBlock(blockSize),
		mini:            true,
	}
}

// Load loads the main allocation table using FAT sector indices stored in header and DIFAT chain.
func Load(h *header.Header, reader BlockReader) (*Table, error) {
	t := New(reader.BlockSize())
	detector := NewDetector()

	nFAT := int(h.NumFATSectors)
	for i := 0; i < nFAT && i < blocks.InlineDIFATEntries; i++ {
		if err := t.addFATSector(detector, h.DIFAT[i]); err != nil {
			return nil, err
		}
	}

	buf := make([]byte, reader.BlockSize())
	next := h.FirstDIFATBlock
	for i := uint32(0); i < h.NumDIFATSectors; i++ {
		if err := detector.Claim(next); err != nil {
			return nil, errors.WithMessagef(err, "DIFAT sector %d", i)
		}
		if err := reader.ReadBlock(next, buf); err != nil {
			return nil, err
		}
		t.difatSectors = append(t.difatSectors, next)

		for j := int64(0); j < t.entriesPerBlock-1 && len(t.fatSectors) < nFAT; j++ {
			if err := t.addFATSector(detector, address(buf, j)); err != nil {
				return nil, err
			}
		}
		next = address(buf, t.entriesPerBlock-1)
	}

	if len(t.fatSectors) != nFAT {
		return nil, blocks.Corruptf("header declares %d FAT sectors, %d found", nFAT, len(t.fatSectors))
	}

	t.entries = make([]blocks.BlockAddress, 0, int64(nFAT)*t.entriesPerBlock)
	for _, fatSector := range t.fatSectors {
		if err := reader.ReadBlock(fatSector, buf); err != nil {
			return nil, err
		}
		t.entries = append(t.entries, decode(buf)...)
	}

	mlog.Printf2("bat/table", "Load %d FAT sectors, %d DIFAT sectors", len(t.fatSectors), len(t.difatSectors))

	return t, nil
}

// LoadMini builds mini allocation table from the content of its chain.
func LoadMini(blockSize int64, data []byte) *Table {
	t := NewMini(blockSize)
	t.entries = decode(data)
	return t
}

// NewPlanned returns main allocation table of the provided length having all entries free. It is used to
// build the table of a freshly laid out container.
func NewPlanned(blockSize, length int64) *Table {
	t := New(blockSize)
	t.entries = make([]blocks.BlockAddress, length)
	for i := range t.entries {
		t.entries[i] = blocks.FreeBlock
	}
	return t
}

// Len returns the number of entries in the table.
func (t *Table) Len() int64 {
	return int64(len(t.entries))
}

// EntriesPerBlock returns the number of entries stored in one block of the table.
func (t *Table) EntriesPerBlock() int64 {
	return t.entriesPerBlock
}

// Next returns the block following the provided one in its chain.
func (t *Table) Next(index blocks.BlockAddress) (blocks.BlockAddress, error) {
	if !index.IsRegular() || int64(index) >= int64(len(t.entries)) {
		return 0, blocks.Corruptf("block %d is outside of allocation table of length %d", index, len(t.entries))
	}
	return t.entries[index], nil
}

// SetNext sets the block following the provided one.
func (t *Table) SetNext(index, next blocks.BlockAddress) error {
	if !index.IsRegular() || int64(index) >= int64(len(t.entries)) {
		return blocks.Corruptf("block %d is outside of allocation table of length %d", index, len(t.entries))
	}
	if next == blocks.FreeBlock {
		t.release(index)
		return nil
	}
	t.entries[index] = next
	return nil
}

// AllocateChain allocates chain of n blocks taken from the first free entries, growing the table if needed.
func (t *Table) AllocateChain(n int64) (blocks.BlockAddress, error) {
	if n == 0 {
		return blocks.EndOfChain, nil
	}

	chain := make([]blocks.BlockAddress, 0, n)
	for i := t.firstFree; int64(len(chain)) < n; i++ {
		if i == int64(len(t.entries)) {
			if err := t.grow(); err != nil {
				return 0, err
			}
		}
		if t.entries[i] == blocks.FreeBlock {
			chain = append(chain, blocks.BlockAddress(i))
		}
	}

	for i := 0; i < len(chain)-1; i++ {
		t.entries[chain[i]] = chain[i+1]
	}
	t.entries[chain[len(chain)-1]] = blocks.EndOfChain
	t.firstFree = int64(chain[len(chain)-1]) + 1

	mlog.Printf2("bat/table", "AllocateChain %d blocks starting at %d, mini: %t", n, chain[0], t.mini)

	return chain[0], nil
}

// Extend allocates n blocks and appends them to the chain ending with last block. If last is EndOfChain,
// new chain is created. The first of the new blocks is returned.
func (t *Table) Extend(last blocks.BlockAddress, n int64) (blocks.BlockAddress, error) {
	if last != blocks.EndOfChain {
		next, err := t.Next(last)
		if err != nil {
			return 0, err
		}
		if next != blocks.EndOfChain {
			return 0, blocks.Corruptf("block %d is not the last one in its chain", last)
		}
	}

	first, err := t.AllocateChain(n)
	if err != nil {
		return 0, err
	}
	if last != blocks.EndOfChain {
		t.entries[last] = first
	}
	return first, nil
}

// Chain returns all the blocks of the chain starting at start.
func (t *Table) Chain(start blocks.BlockAddress) ([]blocks.BlockAddress, error) {
	return t.ClaimChain(NewDetector(), start)
}

// ClaimChain returns all the blocks of the chain, claiming each of them in the provided detector.
func (t *Table) ClaimChain(detector *Detector, start blocks.BlockAddress) ([]blocks.BlockAddress, error) {
	var chain []blocks.BlockAddress
	for current := start; current != blocks.EndOfChain; {
		if err := detector.Claim(current); err != nil {
			return nil, err
		}
		next, err := t.Next(current)
		if err != nil {
			return nil, err
		}
		if next != blocks.EndOfChain && !next.IsRegular() {
			return nil, blocks.Corruptf("chain starting at %d reaches block %d marked as 0x%08x", start, current,
				uint32(next))
		}
		chain = append(chain, current)
		current = next
	}
	return chain, nil
}

// FreeChain releases all the blocks of the chain. The chain is verified before anything is released.
func (t *Table) FreeChain(start blocks.BlockAddress) error {
	chain, err := t.Chain(start)
	if err != nil {
		return err
	}
	for _, index := range chain {
		t.release(index)
	}

	mlog.Printf2("bat/table", "FreeChain %d blocks starting at %d, mini: %t", len(chain), start, t.mini)

	return nil
}

// Link links n consecutive blocks starting at start into a chain.
func (t *Table) Link(start blocks.BlockAddress, n int64) error {
	if n == 0 {
		return nil
	}
	if int64(start)+n > int64(len(t.entries)) {
		return errors.Errorf("chain %d+%d exceeds table of length %d", start, n, len(t.entries))
	}
	for i := int64(0); i < n-1; i++ {
		t.entries[int64(start)+i] = start + blocks.BlockAddress(i+1)
	}
	t.entries[int64(start)+n-1] = blocks.EndOfChain
	return nil
}

// MarkFATSector registers block as the next FAT sector.
func (t *Table) MarkFATSector(index blocks.BlockAddress) error {
	if err := t.SetNext(index, blocks.FATSector); err != nil {
		return err
	}
	t.fatSectors = append(t.fatSectors, index)
	return nil
}

// MarkDIFATSector registers block as the next DIFAT sector.
func (t *Table) MarkDIFATSector(index blocks.BlockAddress) error {
	if err := t.SetNext(index, blocks.DIFATSector); err != nil {
		return err
	}
	t.difatSectors = append(t.difatSectors, index)
	return nil
}

// FATSectors returns blocks storing the table.
func (t *Table) FATSectors() []blocks.BlockAddress {
	return t.fatSectors
}

// DIFATSectors returns blocks storing the extended table.
func (t *Table) DIFATSectors() []blocks.BlockAddress {
	return t.difatSectors
}

// NumBlocks returns the number of blocks required to store the table.
func (t *Table) NumBlocks() int64 {
	return blocks.NumBlocks(int64(len(t.entries)), t.entriesPerBlock)
}

// EncodeBlock returns the content of i-th block of the table. Entries beyond the table are free.
func (t *Table) EncodeBlock(i int64) []byte {
	b := make([]byte, t.entriesPerBlock*4)
	for j := int64(0); j < t.entriesPerBlock; j++ {
		v := blocks.FreeBlock
		if index := i*t.entriesPerBlock + j; index < int64(len(t.entries)) {
			v = t.entries[index]
		}
		binary.LittleEndian.PutUint32(b[4*j:], uint32(v))
	}
	return b
}

// EncodeDIFATBlock returns the content of i-th DIFAT sector.
func (t *Table) EncodeDIFATBlock(i int64) []byte {
	b := make([]byte, t.entriesPerBlock*4)
	perBlock := t.entriesPerBlock - 1
	for j := int64(0); j < perBlock; j++ {
		v := blocks.FreeBlock
		if index := blocks.InlineDIFATEntries + i*perBlock + j; index < int64(len(t.fatSectors)) {
			v = t.fatSectors[index]
		}
		binary.LittleEndian.PutUint32(b[4*j:], uint32(v))
	}
	next := blocks.EndOfChain
	if i+1 < int64(len(t.difatSectors)) {
		next = t.difatSectors[i+1]
	}
	binary.LittleEndian.PutUint32(b[4*perBlock:], uint32(next))
	return b
}

// UpdateHeader stores locations of FAT and DIFAT sectors in the header.
func (t *Table) UpdateHeader(h *header.Header) {
	h.NumFATSectors = uint32(len(t.fatSectors))
	for i := range h.DIFAT {
		h.DIFAT[i] = blocks.FreeBlock
		if i < len(t.fatSectors) {
			h.DIFAT[i] = t.fatSectors[i]
		}
	}
	h.NumDIFATSectors = uint32(len(t.difatSectors))
	h.FirstDIFATBlock = blocks.EndOfChain
	if len(t.difatSectors) > 0 {
		h.FirstDIFATBlock = t.difatSectors[0]
	}
}

// DIFATSectorsRequired returns the number of DIFAT sectors needed to address nFAT FAT sectors.
func DIFATSectorsRequired(nFAT, entriesPerBlock int64) int64 {
	if nFAT <= blocks.InlineDIFATEntries {
		return 0
	}
	return blocks.NumBlocks(nFAT-blocks.InlineDIFATEntries, entriesPerBlock-1)
}

func (t *Table) grow() error {
	start := int64(len(t.entries))
	if start+t.entriesPerBlock > int64(blocks.MaxRegular) {
		return blocks.Corruptf("allocation table overflow")
	}

	for i := int64(0); i < t.entriesPerBlock; i++ {
		t.entries = append(t.entries, blocks.FreeBlock)
	}
	if t.mini {
		return nil
	}

	// New FAT sector describes itself, so it is placed at the first index of the new range.
	t.entries[start] = blocks.FATSector
	t.fatSectors = append(t.fatSectors, blocks.BlockAddress(start))

	if DIFATSectorsRequired(int64(len(t.fatSectors)), t.entriesPerBlock) > int64(len(t.difatSectors)) {
		t.entries[start+1] = blocks.DIFATSector
		t.difatSectors = append(t.difatSectors, blocks.BlockAddress(start+1))
	}

	mlog.Printf2("bat/table", "grow: %d entries, %d FAT sectors, %d DIFAT sectors", len(t.entries),
		len(t.fatSectors), len(t.difatSectors))

	return nil
}

func (t *Table) release(index blocks.BlockAddress) {
	t.entries[index] = blocks.FreeBlock
	if int64(index) < t.firstFree {
		t.firstFree = int64(index)
	}
}

func (t *Table) addFATSector(detector *Detector, index blocks.BlockAddress) error {
	if err := detector.Claim(index); err != nil {
		return errors.WithMessagef(err, "FAT sector %d", len(t.fatSectors))
	}
	t.fatSectors = append(t.fatSectors, index)
	return nil
}

func decode(b []byte) []blocks.BlockAddress {
	entries := make([]blocks.BlockAddress, len(b)/4)
	for i := range entries {
		entries[i] = blocks.BlockAddress(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return entries
}

func address(b []byte, i int64) blocks.BlockAddress {
	return blocks.BlockAddress(binary.LittleEndian.Uint32(b[4*i:]))
}
