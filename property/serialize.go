package property

import (
	"github.com/RoaringBitmap/roaring"
	"github.com/pkg/errors"

	"github.com/outofforest/oledoc/blocks"
	"github.com/outofforest/oledoc/blocks/entry"
	"github.com/outofforest/oledoc/pkg/mlog"
)

// Load builds the table from the content of the property chain. Siblings are read in their tree order.
// For major version 3 upper 32 bits of sizes are ignored.
func Load(data []byte, version3 bool) (*Table, error) {
	n := int64(len(data)) / blocks.EntrySize
	if n == 0 {
		return nil, blocks.Corruptf("property table is empty")
	}

	entryAt := func(i blocks.BlockAddress) (*entry.Entry, error) {
		if int64(i) >= n {
			return nil, blocks.Corruptf("property %d is outside of table of %d entries", i, n)
		}
		offset := int64(i) * blocks.EntrySize
		return entry.Decode(data[offset : offset+blocks.EntrySize]).V, nil
	}

	rootEntry, err := entryAt(0)
	if err != nil {
		return nil, err
	}
	if rootEntry.Type != entry.RootType {
		return nil, blocks.Corruptf("first property has type %d, root expected", rootEntry.Type)
	}

	t := New()
	root := t.props[RootHandle]
	root.ClassID = rootEntry.ClassID
	root.StateBits = rootEntry.StateBits
	root.Created = rootEntry.Created
	root.Modified = rootEntry.Modified
	root.StartBlock = rootEntry.StartBlock
	root.Size = entrySize(rootEntry, version3)

	visited := roaring.New()
	visited.Add(0)

	var loadDir func(parent Handle, child blocks.BlockAddress) error
	var loadSiblings func(parent Handle, index blocks.BlockAddress) error

	loadSiblings = func(parent Handle, index blocks.BlockAddress) error {
		if index == entry.NoSibling {
			return nil
		}
		if !visited.CheckedAdd(uint32(index)) {
			return blocks.Corruptf("property %d is referenced twice", index)
		}
		e, err := entryAt(index)
		if err != nil {
			return err
		}
		if e.Type != entry.StorageType && e.Type != entry.StreamType {
			return blocks.Corruptf("property %d has invalid type %d", index, e.Type)
		}
		name, err := e.DecodeName()
		if err != nil {
			return err
		}

		if err := loadSiblings(parent, e.Left); err != nil {
			return err
		}
		h, err := t.AddChild(parent, Property{
			Name:       name,
			Type:       e.Type,
			ClassID:    e.ClassID,
			StateBits:  e.StateBits,
			Created:    e.Created,
			Modified:   e.Modified,
			StartBlock: e.StartBlock,
			Size:       entrySize(e, version3),
		})
		if err != nil {
			return blocks.Corruptf("property %d: %s", index, err)
		}
		if e.Type == entry.StorageType {
			if err := loadDir(h, e.Child); err != nil {
				return err
			}
		}
		return loadSiblings(parent, e.Right)
	}
	loadDir = func(parent Handle, child blocks.BlockAddress) error {
		return loadSiblings(parent, child)
	}

	if err := loadDir(RootHandle, rootEntry.Child); err != nil {
		return nil, err
	}

	mlog.Printf2("property/serialize", "Load %d properties out of %d entries", visited.GetCardinality(), n)

	return t, nil
}

// Indices assigns entry indices to live properties: the root first, then depth-first in insertion order.
func (t *Table) Indices() map[Handle]blocks.BlockAddress {
	indices := make(map[Handle]blocks.BlockAddress, len(t.props))
	_ = t.Walk(func(h Handle, p *Property) error {
		indices[h] = blocks.BlockAddress(len(indices))
		return nil
	})
	return indices
}

// Serialize flattens the tree into entries. The result is padded with empty entries to the multiple of
// the block size.
func (t *Table) Serialize(blockSize int64) ([]byte, error) {
	indices := t.Indices()
	count := int64(len(indices))
	size := blocks.NumBlocks(count*blocks.EntrySize, blockSize) * blockSize
	data := make([]byte, size)

	empty := entry.Empty()
	emptyBytes := entry.Encode(&empty)
	for offset := count * blocks.EntrySize; offset < size; offset += blocks.EntrySize {
		copy(data[offset:], emptyBytes)
	}

	err := t.Walk(func(h Handle, p *Property) error {
		e := entry.Empty()
		if err := e.SetName(p.Name); err != nil {
			return errors.Wrapf(ErrNameTooLong, "%q", p.Name)
		}
		e.Type = p.Type
		e.Color = entry.Black
		e.ClassID = p.ClassID
		e.StateBits = p.StateBits
		e.Created = p.Created
		e.Modified = p.Modified
		e.StartBlock = p.StartBlock
		e.Size = uint64(p.Size)

		if p.IsDirectory() {
			children := t.sortedChildren(p)
			root, nodes := balance(len(children))
			if root >= 0 {
				e.Child = indices[children[root]]
			}
			// Siblings get their links and colors while the parent is visited.
			for i, c := range children {
				offset := int64(indices[c]) * blocks.EntrySize
				ce := entry.Decode(data[offset : offset+blocks.EntrySize]).V
				ce.Color = nodes[i].color
				ce.Left = siblingIndex(indices, children, nodes[i].left)
				ce.Right = siblingIndex(indices, children, nodes[i].right)
			}
		}

		offset := int64(indices[h]) * blocks.EntrySize
		current := entry.Decode(data[offset : offset+blocks.EntrySize]).V
		if h != RootHandle {
			e.Color, e.Left, e.Right = current.Color, current.Left, current.Right
		}
		copy(data[offset:], entry.Encode(&e))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func siblingIndex(indices map[Handle]blocks.BlockAddress, children []Handle, i int) blocks.BlockAddress {
	if i < 0 {
		return entry.NoSibling
	}
	return indices[children[i]]
}

func entrySize(e *entry.Entry, version3 bool) int64 {
	if version3 {
		return int64(uint32(e.Size))
	}
	return int64(e.Size)
}
