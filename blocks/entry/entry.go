package entry

import (
	"github.com/outofforest/photon"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"

	"github.com/outofforest/oledoc/blocks"
)

// Type is the type of the property entry.
type Type byte

// Entry types.
const (
	EmptyType   Type = 0
	StorageType Type = 1
	StreamType  Type = 2
	RootType    Type = 5
)

// Color is the color of the node in the red-black tree of siblings.
type Color byte

// Node colors.
const (
	Red   Color = 0
	Black Color = 1
)

// RootName is the name of the root entry.
const RootName = "Root Entry"

// MaxNameLength is the maximum number of UTF-16 code units in the name, terminator excluded.
const MaxNameLength = 31

// Entry is the on-disk property entry.
type Entry struct {
	Name       [64]byte
	NameLength uint16
	Type       Type
	Color      Color
	Left       blocks.BlockAddress
	Right      blocks.BlockAddress
	Child      blocks.BlockAddress
	ClassID    [16]byte
	StateBits  uint32
	Created    [8]byte
	Modified   [8]byte
	StartBlock blocks.BlockAddress
	Size       uint64
}

// NoSibling marks absent tree link.
const NoSibling = blocks.FreeBlock

var utf16 = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// Empty returns unused entry.
func Empty() Entry {
	return Entry{
		Left:       NoSibling,
		Right:      NoSibling,
		Child:      NoSibling,
		StartBlock: blocks.EndOfChain,
	}
}

// Decode overlays entry on the bytes.
func Decode(b []byte) photon.Union[*Entry] {
	return photon.NewFromBytes[Entry](b)
}

// Encode returns entry bytes.
func Encode(e *Entry) []byte {
	return photon.NewFromValue(e).B
}

// DecodeName returns the name stored in the entry.
func (e *Entry) DecodeName() (string, error) {
	n := int(e.NameLength)
	if n == 0 {
		return "", nil
	}
	if n%2 != 0 || n > len(e.Name) {
		return "", blocks.Formatf("invalid name length: %d", n)
	}
	// Length includes the terminator.
	name, err := utf16.NewDecoder().Bytes(e.Name[:n-2])
	if err != nil {
		return "", blocks.Formatf("invalid name: %s", err)
	}
	return string(name), nil
}

// SetName stores the name in the entry.
func (e *Entry) SetName(name string) error {
	encoded, err := EncodeName(name)
	if err != nil {
		return err
	}
	e.Name = [64]byte{}
	copy(e.Name[:], encoded)
	e.NameLength = uint16(len(encoded) + 2)
	return nil
}

// EncodeName returns UTF-16LE representation of the name without terminator.
func EncodeName(name string) ([]byte, error) {
	encoded, err := utf16.NewEncoder().Bytes([]byte(name))
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if len(encoded)/2 > MaxNameLength {
		return nil, errors.Errorf("name %q is longer than %d characters", name, MaxNameLength)
	}
	return encoded, nil
}
