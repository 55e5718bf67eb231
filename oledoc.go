package oledoc

import (
	"io"

	"github.com/pkg/errors"

	"github.com/outofforest/oledoc/bat"
	"github.com/outofforest/oledoc/blocks"
	"github.com/outofforest/oledoc/blocks/entry"
	"github.com/outofforest/oledoc/cache"
	"github.com/outofforest/oledoc/ministore"
	"github.com/outofforest/oledoc/persistence"
	"github.com/outofforest/oledoc/pkg/filedev"
	"github.com/outofforest/oledoc/pkg/memdev"
	"github.com/outofforest/oledoc/pkg/mlog"
	"github.com/outofforest/oledoc/property"
	"github.com/outofforest/oledoc/stream"
)

var (
	// ErrNotReady is returned if file system is used before it is completely opened.
	ErrNotReady = errors.New("file system is not ready")

	// ErrClosed is returned if file system is used after it has been closed.
	ErrClosed = errors.New("file system is closed")

	// ErrSizeExceeded is returned if document producer writes more bytes than declared.
	ErrSizeExceeded = errors.New("document size exceeded")
)

type state int

const (
	stateUnopened state = iota
	stateHeaderParsed
	stateTablesLoaded
	stateTreeBuilt
	stateReady
	stateClosed
)

// Config is the configuration of new file system.
type Config struct {
	// BlockSize is the size of the big block, 512 for major version 3 or 4096 for major version 4.
	BlockSize int64

	// CacheSize is the size of the block cache in bytes.
	CacheSize int64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BlockSize: blocks.SmallBlockSize,
		CacheSize: cache.DefaultSize,
	}
}

// Producer writes the content of the document when it is requested.
type Producer func(w io.Writer) error

type pendingDocument struct {
	size     int64
	producer Producer
}

// FileSystem is the compound file.
type FileSystem struct {
	state   state
	store   *persistence.Store
	cache   *cache.Cache
	big     *bigStore
	mini    *ministore.Store
	props   *property.Table
	pending map[property.Handle]pendingDocument
	closer  io.Closer
}

// Create creates empty file system kept in memory.
func Create(config Config) (*FileSystem, error) {
	dev := memdev.New(0)
	if err := persistence.Initialize(dev, config.BlockSize, true); err != nil {
		return nil, err
	}
	return open(dev, config.CacheSize)
}

// Open opens file system stored on the device.
func Open(dev persistence.Dev) (*FileSystem, error) {
	return open(dev, cache.DefaultSize)
}

// OpenBytes opens file system stored in the buffer. The buffer is copied.
func OpenBytes(b []byte) (*FileSystem, error) {
	return Open(memdev.NewFromBytes(b))
}

// OpenFile opens file system stored in the file. Close must be called to release the file.
func OpenFile(path string) (*FileSystem, error) {
	dev, err := filedev.Open(path, true)
	if err != nil {
		return nil, err
	}
	fs, err := Open(dev)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	fs.closer = dev
	return fs, nil
}

// CreateFile creates empty file system stored in the file. Existing file is truncated.
func CreateFile(path string, config Config) (*FileSystem, error) {
	dev, err := filedev.Create(path)
	if err != nil {
		return nil, err
	}
	if err := persistence.Initialize(dev, config.BlockSize, true); err != nil {
		_ = dev.Close()
		return nil, err
	}
	fs, err := open(dev, config.CacheSize)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	fs.closer = dev
	return fs, nil
}

func open(dev persistence.Dev, cacheSize int64) (*FileSystem, error) {
	fs := &FileSystem{
		state:   stateUnopened,
		pending: map[property.Handle]pendingDocument{},
	}

	var err error
	fs.store, err = persistence.OpenStore(dev)
	if err != nil {
		return nil, err
	}
	fs.state = stateHeaderParsed

	h := fs.store.Header()
	fs.cache = cache.New(fs.store, cacheSize)
	table, err := bat.Load(h, fs.cache)
	if err != nil {
		return nil, err
	}
	fs.big = &bigStore{cache: fs.cache, table: table}

	dirChain, err := table.Chain(h.FirstDirBlock)
	if err != nil {
		return nil, errors.WithMessage(err, "reading property table chain failed")
	}
	dirData, err := stream.ReadAll(fs.big, h.FirstDirBlock, int64(len(dirChain))*fs.big.BlockSize())
	if err != nil {
		return nil, err
	}
	if int64(len(dirData)) < blocks.EntrySize {
		return nil, blocks.Corruptf("property table is empty")
	}
	rootStart := entry.Decode(dirData[:blocks.EntrySize]).V.StartBlock

	fs.mini, err = ministore.Load(fs.big, rootStart, h.FirstMiniFATBlock, int64(h.NumMiniFATSectors))
	if err != nil {
		return nil, err
	}
	fs.state = stateTablesLoaded

	fs.props, err = property.Load(dirData, h.IsVersion3())
	if err != nil {
		return nil, err
	}
	if err := fs.validateDocuments(); err != nil {
		return nil, err
	}
	fs.state = stateTreeBuilt

	mlog.Printf("Open: block size %d, %d properties", fs.big.BlockSize(), fs.props.Count())

	fs.state = stateReady
	return fs, nil
}

// Root returns the root directory.
func (fs *FileSystem) Root() *DirectoryEntry {
	return &DirectoryEntry{fs: fs, h: property.RootHandle}
}

// Find returns the entry addressed by the path of names starting at the root.
func (fs *FileSystem) Find(path ...string) (Entry, error) {
	if err := fs.ready(); err != nil {
		return nil, err
	}
	var current Entry = fs.Root()
	for _, name := range path {
		dir, ok := current.(*DirectoryEntry)
		if !ok {
			return nil, errors.Wrapf(property.ErrNotDirectory, "%q", current.Name())
		}
		next, err := dir.Entry(name)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

// BlockSize returns the size of the big block.
func (fs *FileSystem) BlockSize() int64 {
	return fs.store.BlockSize()
}

// Close releases the device. Changes which were not committed are lost.
func (fs *FileSystem) Close() error {
	if fs.state == stateClosed {
		return nil
	}
	fs.state = stateClosed
	if fs.closer != nil {
		return errors.WithStack(fs.closer.Close())
	}
	return nil
}

func (fs *FileSystem) ready() error {
	switch fs.state {
	case stateReady:
		return nil
	case stateClosed:
		return errors.WithStack(ErrClosed)
	default:
		return errors.WithStack(ErrNotReady)
	}
}

// storeFor returns the store keeping documents of the size.
// validateDocuments verifies that every document fits into its chain, so sizes may be trusted afterwards.
func (fs *FileSystem) validateDocuments() error {
	return fs.props.Walk(func(h property.Handle, p *property.Property) error {
		if p.IsDirectory() {
			return nil
		}
		if p.Size < 0 {
			return blocks.Corruptf("document %q has invalid size %d", p.Name, p.Size)
		}
		if p.Size == 0 {
			return nil
		}
		store := fs.storeFor(p.Size)
		chain, err := store.Table().Chain(p.StartBlock)
		if err != nil {
			return errors.WithMessagef(err, "document %q", p.Name)
		}
		if capacity := int64(len(chain)) * store.BlockSize(); p.Size > capacity {
			return blocks.Corruptf("document %q of size %d exceeds capacity %d of its chain", p.Name, p.Size,
				capacity)
		}
		return nil
	})
}

func (fs *FileSystem) storeFor(size int64) stream.BlockStore {
	if size < blocks.BigBlockMinimumDocumentSize {
		return fs.mini
	}
	return fs.big
}

var _ stream.BlockStore = &bigStore{}

type bigStore struct {
	cache *cache.Cache
	table *bat.Table
}

func (s *bigStore) BlockSize() int64 {
	return s.cache.BlockSize()
}

func (s *bigStore) Table() *bat.Table {
	return s.table
}

func (s *bigStore) ReadBlock(address blocks.BlockAddress, p []byte) error {
	return s.cache.ReadBlock(address, p)
}

func (s *bigStore) WriteBlock(address blocks.BlockAddress, p []byte) error {
	return s.cache.WriteBlock(address, p)
}
