package oledoc

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/outofforest/oledoc/blocks"
	"github.com/outofforest/oledoc/blocks/entry"
	"github.com/outofforest/oledoc/property"
	"github.com/outofforest/oledoc/stream"
)

// Entry is the node of the directory tree.
type Entry interface {
	Name() string
	IsDirectory() bool

	handle() property.Handle
}

var (
	_ Entry = &DirectoryEntry{}
	_ Entry = &DocumentEntry{}
)

// DirectoryEntry is the directory, called storage by the format.
type DirectoryEntry struct {
	fs *FileSystem
	h  property.Handle
}

// Name returns the name of the directory.
func (d *DirectoryEntry) Name() string {
	return d.fs.name(d.h)
}

// IsDirectory returns true.
func (d *DirectoryEntry) IsDirectory() bool {
	return true
}

func (d *DirectoryEntry) handle() property.Handle {
	return d.h
}

// Entries returns children in insertion order.
func (d *DirectoryEntry) Entries() ([]Entry, error) {
	if err := d.fs.ready(); err != nil {
		return nil, err
	}
	children, err := d.fs.props.Children(d.h)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(children))
	for _, c := range children {
		e, err := d.fs.entry(c)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Entry returns the child having the name. Comparison is case-insensitive.
func (d *DirectoryEntry) Entry(name string) (Entry, error) {
	if err := d.fs.ready(); err != nil {
		return nil, err
	}
	h, err := d.fs.props.Find(d.h, name)
	if err != nil {
		return nil, err
	}
	return d.fs.entry(h)
}

// HasEntry returns true if child having the name exists.
func (d *DirectoryEntry) HasEntry(name string) bool {
	_, err := d.Entry(name)
	return err == nil
}

// CreateDocument creates the document containing all the bytes of the reader. Documents smaller than
// blocks.BigBlockMinimumDocumentSize are kept in the mini stream.
func (d *DirectoryEntry) CreateDocument(name string, r io.Reader) (*DocumentEntry, error) {
	if err := d.fs.ready(); err != nil {
		return nil, err
	}
	h, err := d.fs.props.AddChild(d.h, property.Property{
		Name:       name,
		Type:       entry.StreamType,
		StartBlock: blocks.EndOfChain,
	})
	if err != nil {
		return nil, err
	}
	if err := d.fs.storeDocument(h, r); err != nil {
		_ = d.fs.props.RemoveChild(d.h, h)
		return nil, err
	}
	return &DocumentEntry{fs: d.fs, h: h}, nil
}

// CreateDocumentWriter creates the document of the declared size whose content is produced later, when
// the document is written or read for the first time.
func (d *DirectoryEntry) CreateDocumentWriter(name string, size int64, producer Producer) (*DocumentEntry, error) {
	if err := d.fs.ready(); err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, errors.Errorf("invalid document size: %d", size)
	}
	h, err := d.fs.props.AddChild(d.h, property.Property{
		Name:       name,
		Type:       entry.StreamType,
		StartBlock: blocks.EndOfChain,
		Size:       size,
	})
	if err != nil {
		return nil, err
	}
	d.fs.pending[h] = pendingDocument{size: size, producer: producer}
	return &DocumentEntry{fs: d.fs, h: h}, nil
}

// CreateDirectory creates the subdirectory.
func (d *DirectoryEntry) CreateDirectory(name string) (*DirectoryEntry, error) {
	if err := d.fs.ready(); err != nil {
		return nil, err
	}
	h, err := d.fs.props.AddChild(d.h, property.Property{
		Name:       name,
		Type:       entry.StorageType,
		StartBlock: blocks.EndOfChain,
	})
	if err != nil {
		return nil, err
	}
	return &DirectoryEntry{fs: d.fs, h: h}, nil
}

// Delete deletes the child. Directory must be empty. Blocks of the document are released.
func (d *DirectoryEntry) Delete(e Entry) error {
	if err := d.fs.ready(); err != nil {
		return err
	}
	p, err := d.fs.props.Get(e.handle())
	if err != nil {
		return err
	}
	if p.Parent != d.h {
		return errors.Wrapf(property.ErrNotFound, "%q is not a child of %q", p.Name, d.Name())
	}
	if !p.IsDirectory() {
		if err := d.fs.freeDocument(e.handle()); err != nil {
			return err
		}
	}
	return d.fs.props.RemoveChild(d.h, e.handle())
}

// Rename renames the child. Nothing is changed if the name is taken by a sibling.
func (d *DirectoryEntry) Rename(e Entry, newName string) error {
	if err := d.fs.ready(); err != nil {
		return err
	}
	return d.fs.props.RenameChild(d.h, e.handle(), newName)
}

// ClassID returns the class ID of the storage.
func (d *DirectoryEntry) ClassID() [16]byte {
	p, err := d.fs.props.Get(d.h)
	if err != nil {
		return [16]byte{}
	}
	return p.ClassID
}

// SetClassID sets the class ID of the storage.
func (d *DirectoryEntry) SetClassID(classID [16]byte) error {
	if err := d.fs.ready(); err != nil {
		return err
	}
	p, err := d.fs.props.Get(d.h)
	if err != nil {
		return err
	}
	p.ClassID = classID
	return nil
}

// StateBits returns user-defined flags of the storage.
func (d *DirectoryEntry) StateBits() uint32 {
	p, err := d.fs.props.Get(d.h)
	if err != nil {
		return 0
	}
	return p.StateBits
}

// SetStateBits sets user-defined flags of the storage.
func (d *DirectoryEntry) SetStateBits(bits uint32) error {
	if err := d.fs.ready(); err != nil {
		return err
	}
	p, err := d.fs.props.Get(d.h)
	if err != nil {
		return err
	}
	p.StateBits = bits
	return nil
}

// DocumentEntry is the document, called stream by the format.
type DocumentEntry struct {
	fs *FileSystem
	h  property.Handle
}

// Name returns the name of the document.
func (d *DocumentEntry) Name() string {
	return d.fs.name(d.h)
}

// IsDirectory returns false.
func (d *DocumentEntry) IsDirectory() bool {
	return false
}

func (d *DocumentEntry) handle() property.Handle {
	return d.h
}

// Size returns the size of the document.
func (d *DocumentEntry) Size() int64 {
	p, err := d.fs.props.Get(d.h)
	if err != nil {
		return 0
	}
	return p.Size
}

// OpenReadStream returns the reader of the document content.
func (d *DocumentEntry) OpenReadStream() (io.ReadSeeker, error) {
	if err := d.fs.ready(); err != nil {
		return nil, err
	}
	if err := d.fs.materialize(d.h); err != nil {
		return nil, err
	}
	p, err := d.fs.props.Get(d.h)
	if err != nil {
		return nil, err
	}
	return stream.NewReader(d.fs.storeFor(p.Size), p.StartBlock, p.Size), nil
}

// Bytes returns the content of the document.
func (d *DocumentEntry) Bytes() ([]byte, error) {
	if err := d.fs.ready(); err != nil {
		return nil, err
	}
	if err := d.fs.materialize(d.h); err != nil {
		return nil, err
	}
	p, err := d.fs.props.Get(d.h)
	if err != nil {
		return nil, err
	}
	return stream.ReadAll(d.fs.storeFor(p.Size), p.StartBlock, p.Size)
}

// OpenWriteStream returns the writer replacing the content of the document. New content is stored when
// the writer is closed.
func (d *DocumentEntry) OpenWriteStream(sizeHint int64) (io.WriteCloser, error) {
	if err := d.fs.ready(); err != nil {
		return nil, err
	}
	w := &documentWriter{doc: d}
	if sizeHint > 0 {
		w.buf.Grow(int(sizeHint))
	}
	return w, nil
}

type documentWriter struct {
	doc    *DocumentEntry
	buf    bytes.Buffer
	closed bool
}

func (w *documentWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("writer is closed")
	}
	return w.buf.Write(p)
}

func (w *documentWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	fs := w.doc.fs
	if err := fs.ready(); err != nil {
		return err
	}
	return fs.replaceDocument(w.doc.h, &w.buf)
}

func (fs *FileSystem) name(h property.Handle) string {
	p, err := fs.props.Get(h)
	if err != nil {
		return ""
	}
	return p.Name
}

func (fs *FileSystem) entry(h property.Handle) (Entry, error) {
	p, err := fs.props.Get(h)
	if err != nil {
		return nil, err
	}
	if p.IsDirectory() {
		return &DirectoryEntry{fs: fs, h: h}, nil
	}
	return &DocumentEntry{fs: fs, h: h}, nil
}

// storeDocument stores the content of the reader and assigns it to the document.
func (fs *FileSystem) storeDocument(h property.Handle, r io.Reader) error {
	p, err := fs.props.Get(h)
	if err != nil {
		return err
	}
	start, size, err := fs.storeContent(r)
	if err != nil {
		return err
	}
	p.StartBlock, p.Size = start, size
	return nil
}

// replaceDocument stores new content of the document. The old chain is released only after the new content
// is stored, so a failure leaves the document unchanged.
func (fs *FileSystem) replaceDocument(h property.Handle, r io.Reader) error {
	p, err := fs.props.Get(h)
	if err != nil {
		return err
	}
	start, size, err := fs.storeContent(r)
	if err != nil {
		return err
	}
	if _, exists := fs.pending[h]; exists {
		delete(fs.pending, h)
	} else if err := stream.Free(fs.storeFor(p.Size), p.StartBlock); err != nil {
		return err
	}
	p.StartBlock, p.Size = start, size
	return nil
}

// storeContent stores the content of the reader in the mini or the big store. Only the bytes required to
// choose between them are buffered.
func (fs *FileSystem) storeContent(r io.Reader) (blocks.BlockAddress, int64, error) {
	sample := make([]byte, blocks.BigBlockMinimumDocumentSize)
	n, err := io.ReadFull(r, sample)
	switch {
	case err == nil:
		return stream.Store(fs.big, io.MultiReader(bytes.NewReader(sample), r))
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		start, err := stream.StoreBytes(fs.mini, sample[:n])
		if err != nil {
			return 0, 0, err
		}
		return start, int64(n), nil
	default:
		return 0, 0, errors.WithStack(err)
	}
}

// freeDocument releases blocks of the document.
func (fs *FileSystem) freeDocument(h property.Handle) error {
	p, err := fs.props.Get(h)
	if err != nil {
		return err
	}
	if _, exists := fs.pending[h]; exists {
		delete(fs.pending, h)
	} else if err := stream.Free(fs.storeFor(p.Size), p.StartBlock); err != nil {
		return err
	}
	p.StartBlock, p.Size = blocks.EndOfChain, 0
	return nil
}

// materialize runs the producer of the pending document and stores its output.
func (fs *FileSystem) materialize(h property.Handle) error {
	pending, exists := fs.pending[h]
	if !exists {
		return nil
	}
	buf := &bytes.Buffer{}
	if err := produce(buf, pending); err != nil {
		return err
	}
	if err := fs.storeDocument(h, buf); err != nil {
		return err
	}
	delete(fs.pending, h)
	return nil
}

// produce runs the producer writing exactly the declared number of bytes to the writer. Missing bytes are
// filled with blocks.Filler.
func produce(w io.Writer, pending pendingDocument) error {
	lw := &limitedWriter{w: w, limit: pending.size}
	if err := pending.producer(lw); err != nil {
		return err
	}
	return writeFiller(w, pending.size-lw.n)
}

type limitedWriter struct {
	w     io.Writer
	n     int64
	limit int64
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if w.n+int64(len(p)) > w.limit {
		return 0, errors.Wrapf(ErrSizeExceeded, "declared size is %d", w.limit)
	}
	n, err := w.w.Write(p)
	w.n += int64(n)
	return n, errors.WithStack(err)
}

func writeFiller(w io.Writer, n int64) error {
	if n <= 0 {
		return nil
	}
	if _, err := w.Write(bytes.Repeat([]byte{blocks.Filler}, int(n))); err != nil {
		return errors.WithStack(err)
	}
	return nil
}
