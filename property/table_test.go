package property

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/oledoc/blocks"
	"github.com/outofforest/oledoc/blocks/entry"
)

func names(t *testing.T, table *Table, parent Handle) []string {
	children, err := table.Children(parent)
	require.NoError(t, err)
	result := make([]string, 0, len(children))
	for _, c := range children {
		p, err := table.Get(c)
		require.NoError(t, err)
		result = append(result, p.Name)
	}
	return result
}

func TestAddAndFind(t *testing.T) {
	requireT := require.New(t)

	table := New()
	h, err := table.AddChild(RootHandle, Property{Name: "Workbook", Type: entry.StreamType})
	requireT.NoError(err)

	found, err := table.Find(RootHandle, "WORKBOOK")
	requireT.NoError(err)
	requireT.Equal(h, found)

	_, err = table.AddChild(RootHandle, Property{Name: "workbook", Type: entry.StreamType})
	requireT.ErrorIs(err, ErrDuplicateName)

	_, err = table.Find(RootHandle, "Missing")
	requireT.ErrorIs(err, ErrNotFound)

	_, err = table.AddChild(h, Property{Name: "Child", Type: entry.StreamType})
	requireT.ErrorIs(err, ErrNotDirectory)

	_, err = table.AddChild(RootHandle, Property{Name: strings.Repeat("x", 32), Type: entry.StreamType})
	requireT.ErrorIs(err, ErrNameTooLong)

	_, err = table.AddChild(RootHandle, Property{Name: strings.Repeat("x", 31), Type: entry.StreamType})
	requireT.NoError(err)
}

func TestRenameToTakenNameLeavesTreeUnchanged(t *testing.T) {
	requireT := require.New(t)

	table := New()
	a, err := table.AddChild(RootHandle, Property{Name: "A", Type: entry.StorageType})
	requireT.NoError(err)
	_, err = table.AddChild(RootHandle, Property{Name: "B", Type: entry.StorageType})
	requireT.NoError(err)

	requireT.ErrorIs(table.RenameChild(RootHandle, a, "b"), ErrDuplicateName)
	requireT.Equal([]string{"A", "B"}, names(t, table, RootHandle))
	found, err := table.Find(RootHandle, "A")
	requireT.NoError(err)
	requireT.Equal(a, found)

	requireT.NoError(table.RenameChild(RootHandle, a, "a"))
	requireT.NoError(table.RenameChild(RootHandle, a, "C"))
	requireT.Equal([]string{"C", "B"}, names(t, table, RootHandle))
	_, err = table.Find(RootHandle, "A")
	requireT.ErrorIs(err, ErrNotFound)
}

func TestRemove(t *testing.T) {
	requireT := require.New(t)

	table := New()
	dir, err := table.AddChild(RootHandle, Property{Name: "Dir", Type: entry.StorageType})
	requireT.NoError(err)
	doc, err := table.AddChild(dir, Property{Name: "Doc", Type: entry.StreamType})
	requireT.NoError(err)

	requireT.ErrorIs(table.RemoveChild(RootHandle, dir), ErrDirectoryNotEmpty)
	requireT.ErrorIs(table.RemoveChild(RootHandle, doc), ErrNotFound)

	requireT.NoError(table.RemoveChild(dir, doc))
	requireT.NoError(table.RemoveChild(RootHandle, dir))
	requireT.Empty(names(t, table, RootHandle))
	requireT.Equal(1, table.Count())

	_, err = table.Get(doc)
	requireT.ErrorIs(err, ErrNotFound)
}

func TestCompare(t *testing.T) {
	assertT := assert.New(t)

	assertT.Negative(Compare("ZZ", "AAA"))
	assertT.Positive(Compare("b", "A"))
	assertT.Zero(Compare("abc", "ABC"))
	assertT.Negative(Compare("\x05Summary", "Workbook12"))
}

func TestBalance(t *testing.T) {
	requireT := require.New(t)

	root, nodes := balance(0)
	requireT.Equal(-1, root)
	requireT.Empty(nodes)

	for n := 1; n <= 40; n++ {
		root, nodes := balance(n)

		var blackHeight func(i int) int
		blackHeight = func(i int) int {
			if i < 0 {
				return 0
			}
			l, r := blackHeight(nodes[i].left), blackHeight(nodes[i].right)
			requireT.Equal(l, r, "n=%d node=%d", n, i)
			if nodes[i].color == entry.Red {
				for _, c := range []int{nodes[i].left, nodes[i].right} {
					if c >= 0 {
						requireT.Equal(entry.Black, nodes[c].color)
					}
				}
				return l
			}
			return l + 1
		}
		blackHeight(root)
		requireT.Equal(entry.Black, nodes[root].color)

		// In-order traversal preserves the sorted order.
		var order []int
		var walk func(i int)
		walk = func(i int) {
			if i < 0 {
				return
			}
			walk(nodes[i].left)
			order = append(order, i)
			walk(nodes[i].right)
		}
		walk(root)
		for i := range order {
			requireT.Equal(i, order[i])
		}
	}
}

func TestSerializeAndLoad(t *testing.T) {
	requireT := require.New(t)

	table := New()
	root, err := table.Get(RootHandle)
	requireT.NoError(err)
	root.StartBlock = 3
	root.Size = 128

	dir, err := table.AddChild(RootHandle, Property{Name: "Storage", Type: entry.StorageType, ClassID: [16]byte{1}})
	requireT.NoError(err)
	for _, name := range []string{"zeta", "Alpha", "mid", "b"} {
		_, err := table.AddChild(dir, Property{Name: name, Type: entry.StreamType, StartBlock: 7, Size: 10})
		requireT.NoError(err)
	}
	_, err = table.AddChild(RootHandle, Property{Name: "Doc", Type: entry.StreamType, StartBlock: 1, Size: 5000})
	requireT.NoError(err)

	data, err := table.Serialize(blocks.SmallBlockSize)
	requireT.NoError(err)
	requireT.Len(data, 2*int(blocks.SmallBlockSize))

	// Unused entries are empty.
	last := entry.Decode(data[len(data)-int(blocks.EntrySize):]).V
	requireT.Equal(entry.EmptyType, last.Type)
	requireT.Equal(entry.NoSibling, last.Left)

	loaded, err := Load(data, true)
	requireT.NoError(err)
	requireT.Equal(7, loaded.Count())

	loadedRoot, err := loaded.Get(RootHandle)
	requireT.NoError(err)
	requireT.Equal(blocks.BlockAddress(3), loadedRoot.StartBlock)
	requireT.EqualValues(128, loadedRoot.Size)

	// Loaded siblings come in the tree order.
	requireT.Equal([]string{"Doc", "Storage"}, names(t, loaded, RootHandle))
	loadedDir, err := loaded.Find(RootHandle, "storage")
	requireT.NoError(err)
	requireT.Equal([]string{"b", "mid", "zeta", "Alpha"}, names(t, loaded, loadedDir))

	p, err := loaded.Get(loadedDir)
	requireT.NoError(err)
	requireT.Equal([16]byte{1}, p.ClassID)

	doc, err := loaded.Find(RootHandle, "doc")
	requireT.NoError(err)
	p, err = loaded.Get(doc)
	requireT.NoError(err)
	requireT.EqualValues(5000, p.Size)
	requireT.Equal(blocks.BlockAddress(1), p.StartBlock)
}

func TestLoadDetectsLoop(t *testing.T) {
	requireT := require.New(t)

	table := New()
	_, err := table.AddChild(RootHandle, Property{Name: "A", Type: entry.StreamType})
	requireT.NoError(err)

	data, err := table.Serialize(blocks.SmallBlockSize)
	requireT.NoError(err)

	e := entry.Decode(data[blocks.EntrySize : 2*blocks.EntrySize]).V
	e.Left = 1

	_, err = Load(data, true)
	requireT.ErrorIs(err, blocks.ErrCorrupt)

	e.Left = 100
	_, err = Load(data, true)
	requireT.ErrorIs(err, blocks.ErrCorrupt)
}

func TestLoadRequiresRoot(t *testing.T) {
	requireT := require.New(t)

	empty := entry.Empty()
	_, err := Load(entry.Encode(&empty), false)
	requireT.ErrorIs(err, blocks.ErrCorrupt)

	_, err = Load(nil, false)
	requireT.ErrorIs(err, blocks.ErrCorrupt)
}
