package header

import (
	"github.com/outofforest/photon"

	"github.com/outofforest/oledoc/blocks"
)

// Signature identifies compound files.
var Signature = [8]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

const (
	minorVersion = 0x003E
	byteOrder    = 0xFFFE

	majorVersion3 = 3
	majorVersion4 = 4

	sectorShift3    = 9
	sectorShift4    = 12
	miniSectorShift = 6
)

// Header is the first block of the container. Its layout is the on-disk one, so it is read and written
// by overlaying bytes with photon.
type Header struct {
	Signature       [8]byte
	ClassID         [16]byte
	MinorVersion    uint16
	MajorVersion    uint16
	ByteOrder       uint16
	SectorShift     uint16
	MiniSectorShift uint16
	Reserved        [6]byte

	NumDirSectors uint32
	NumFATSectors uint32
	FirstDirBlock blocks.BlockAddress
	TxSignature   uint32
	MiniCutoff    uint32

	FirstMiniFATBlock blocks.BlockAddress
	NumMiniFATSectors uint32

	FirstDIFATBlock blocks.BlockAddress
	NumDIFATSectors uint32

	DIFAT [blocks.InlineDIFATEntries]blocks.BlockAddress
}

// New returns header of the empty container using provided block size.
func New(blockSize int64) (Header, error) {
	h := Header{
		Signature:         Signature,
		MinorVersion:      minorVersion,
		ByteOrder:         byteOrder,
		MiniSectorShift:   miniSectorShift,
		FirstDirBlock:     blocks.EndOfChain,
		MiniCutoff:        uint32(blocks.BigBlockMinimumDocumentSize),
		FirstMiniFATBlock: blocks.EndOfChain,
		FirstDIFATBlock:   blocks.EndOfChain,
	}
	switch blockSize {
	case blocks.SmallBlockSize:
		h.MajorVersion = majorVersion3
		h.SectorShift = sectorShift3
	case blocks.LargeBlockSize:
		h.MajorVersion = majorVersion4
		h.SectorShift = sectorShift4
	default:
		return Header{}, blocks.Formatf("unsupported block size: %d", blockSize)
	}
	for i := range h.DIFAT {
		h.DIFAT[i] = blocks.FreeBlock
	}
	return h, nil
}

// Decode overlays header on the bytes.
func Decode(b []byte) photon.Union[*Header] {
	return photon.NewFromBytes[Header](b)
}

// Encode returns header bytes.
func Encode(h *Header) []byte {
	return photon.NewFromValue(h).B
}

// BlockSize returns the size of the big block.
func (h *Header) BlockSize() int64 {
	return 1 << h.SectorShift
}

// Validate verifies that header describes supported container.
func (h *Header) Validate() error {
	if h.Signature != Signature {
		return blocks.Formatf("invalid signature: %x", h.Signature)
	}
	if h.ByteOrder != byteOrder {
		return blocks.Formatf("invalid byte order mark: 0x%04x", h.ByteOrder)
	}
	switch {
	case h.MajorVersion == majorVersion3 && h.SectorShift == sectorShift3:
	case h.MajorVersion == majorVersion4 && h.SectorShift == sectorShift4:
	default:
		return blocks.Formatf("unsupported version %d with sector shift %d", h.MajorVersion, h.SectorShift)
	}
	if h.MiniSectorShift != miniSectorShift {
		return blocks.Formatf("unsupported mini sector shift: %d", h.MiniSectorShift)
	}
	if int64(h.MiniCutoff) != blocks.BigBlockMinimumDocumentSize {
		return blocks.Formatf("unsupported mini stream cutoff: %d", h.MiniCutoff)
	}
	if h.NumDIFATSectors == 0 && h.NumFATSectors > blocks.InlineDIFATEntries {
		return blocks.Formatf("%d FAT sectors declared without DIFAT sectors", h.NumFATSectors)
	}
	return nil
}

// IsVersion3 returns true if the container uses 512-byte blocks.
func (h *Header) IsVersion3() bool {
	return h.MajorVersion == majorVersion3
}
