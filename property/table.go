package property

import (
	"github.com/pkg/errors"
	"golang.org/x/text/cases"

	"github.com/outofforest/oledoc/blocks"
	"github.com/outofforest/oledoc/blocks/entry"
)

var (
	// ErrDuplicateName is returned if sibling with the same name exists.
	ErrDuplicateName = errors.New("duplicate name")

	// ErrDirectoryNotEmpty is returned on attempt to remove directory having children.
	ErrDirectoryNotEmpty = errors.New("directory is not empty")

	// ErrNameTooLong is returned if name does not fit into the entry.
	ErrNameTooLong = errors.New("name too long")

	// ErrNotDirectory is returned if children are requested from a document.
	ErrNotDirectory = errors.New("not a directory")

	// ErrNotFound is returned if property does not exist.
	ErrNotFound = errors.New("property not found")
)

// Handle addresses property in the table.
type Handle int

const (
	// NoHandle means absent property.
	NoHandle Handle = -1

	// RootHandle is the handle of the root entry.
	RootHandle Handle = 0
)

// Property is the node of the tree.
type Property struct {
	Name       string
	Type       entry.Type
	ClassID    [16]byte
	StateBits  uint32
	Created    [8]byte
	Modified   [8]byte
	StartBlock blocks.BlockAddress
	Size       int64
	Parent     Handle

	children []Handle
	index    map[string]Handle
}

// IsDirectory returns true for storages and the root.
func (p *Property) IsDirectory() bool {
	return p.Type == entry.StorageType || p.Type == entry.RootType
}

// Table is the arena of properties. Handles of removed properties are never reused.
type Table struct {
	props []*Property
}

// New returns table containing the root only.
func New() *Table {
	return &Table{
		props: []*Property{
			{
				Name:       entry.RootName,
				Type:       entry.RootType,
				StartBlock: blocks.EndOfChain,
				Parent:     NoHandle,
				index:      map[string]Handle{},
			},
		},
	}
}

// Get returns property addressed by the handle.
func (t *Table) Get(h Handle) (*Property, error) {
	if h < 0 || int(h) >= len(t.props) || t.props[h] == nil {
		return nil, errors.Wrapf(ErrNotFound, "handle %d", h)
	}
	return t.props[h], nil
}

// Children returns children of the directory in insertion order.
func (t *Table) Children(parent Handle) ([]Handle, error) {
	p, err := t.directory(parent)
	if err != nil {
		return nil, err
	}
	return append([]Handle{}, p.children...), nil
}

// Find returns the child of the directory having the name. Comparison is case-insensitive.
func (t *Table) Find(parent Handle, name string) (Handle, error) {
	p, err := t.directory(parent)
	if err != nil {
		return NoHandle, err
	}
	h, exists := p.index[fold(name)]
	if !exists {
		return NoHandle, errors.Wrapf(ErrNotFound, "name %q", name)
	}
	return h, nil
}

// AddChild adds property to the directory.
func (t *Table) AddChild(parent Handle, p Property) (Handle, error) {
	dir, err := t.directory(parent)
	if err != nil {
		return NoHandle, err
	}
	if err := ValidateName(p.Name); err != nil {
		return NoHandle, err
	}
	key := fold(p.Name)
	if _, exists := dir.index[key]; exists {
		return NoHandle, errors.Wrapf(ErrDuplicateName, "name %q", p.Name)
	}

	h := Handle(len(t.props))
	p.Parent = parent
	p.children = nil
	p.index = nil
	if p.IsDirectory() {
		p.index = map[string]Handle{}
	}
	t.props = append(t.props, &p)
	dir.children = append(dir.children, h)
	dir.index[key] = h
	return h, nil
}

// RemoveChild removes the property from its directory. Directory must be empty.
func (t *Table) RemoveChild(parent, child Handle) error {
	dir, err := t.directory(parent)
	if err != nil {
		return err
	}
	p, err := t.Get(child)
	if err != nil {
		return err
	}
	if p.Parent != parent {
		return errors.Wrapf(ErrNotFound, "%q is not a child of %q", p.Name, dir.Name)
	}
	if len(p.children) > 0 {
		return errors.Wrapf(ErrDirectoryNotEmpty, "%q", p.Name)
	}

	delete(dir.index, fold(p.Name))
	for i, h := range dir.children {
		if h == child {
			dir.children = append(dir.children[:i], dir.children[i+1:]...)
			break
		}
	}
	t.props[child] = nil
	return nil
}

// RenameChild renames the property. The tree is left unchanged if the name is taken by a sibling.
func (t *Table) RenameChild(parent, child Handle, newName string) error {
	dir, err := t.directory(parent)
	if err != nil {
		return err
	}
	p, err := t.Get(child)
	if err != nil {
		return err
	}
	if p.Parent != parent {
		return errors.Wrapf(ErrNotFound, "%q is not a child of %q", p.Name, dir.Name)
	}
	if err := ValidateName(newName); err != nil {
		return err
	}

	oldKey, newKey := fold(p.Name), fold(newName)
	if h, exists := dir.index[newKey]; exists && h != child {
		return errors.Wrapf(ErrDuplicateName, "name %q", newName)
	}
	delete(dir.index, oldKey)
	dir.index[newKey] = child
	p.Name = newName
	return nil
}

// Walk calls the function for every property, parents before children, siblings in insertion order.
func (t *Table) Walk(fn func(h Handle, p *Property) error) error {
	var walk func(h Handle) error
	walk = func(h Handle) error {
		p := t.props[h]
		if err := fn(h, p); err != nil {
			return err
		}
		for _, c := range p.children {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(RootHandle)
}

// Count returns the number of live properties.
func (t *Table) Count() int {
	var n int
	for _, p := range t.props {
		if p != nil {
			n++
		}
	}
	return n
}

// ValidateName checks that the name may be stored in the entry.
func ValidateName(name string) error {
	if name == "" {
		return errors.New("name must not be empty")
	}
	if _, err := entry.EncodeName(name); err != nil {
		return errors.Wrapf(ErrNameTooLong, "%q", name)
	}
	return nil
}

func (t *Table) directory(h Handle) (*Property, error) {
	p, err := t.Get(h)
	if err != nil {
		return nil, err
	}
	if !p.IsDirectory() {
		return nil, errors.Wrapf(ErrNotDirectory, "%q", p.Name)
	}
	return p, nil
}

func fold(name string) string {
	return cases.Fold().String(name)
}
