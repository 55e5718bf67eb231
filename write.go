package oledoc

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/outofforest/oledoc/bat"
	"github.com/outofforest/oledoc/blocks"
	"github.com/outofforest/oledoc/blocks/entry"
	"github.com/outofforest/oledoc/blocks/header"
	"github.com/outofforest/oledoc/pkg/mlog"
	"github.com/outofforest/oledoc/property"
	"github.com/outofforest/oledoc/stream"
)

type plannedDocument struct {
	handle  property.Handle
	index   blocks.BlockAddress
	size    int64
	start   blocks.BlockAddress
	nBlocks int64
}

// layout is the placement of all the objects in the freshly written container.
type layout struct {
	blockSize int64

	bigDocs  []plannedDocument
	miniDocs []plannedDocument

	dirStart    blocks.BlockAddress
	dirBlocks   int64
	miniStart   blocks.BlockAddress
	miniBlocks  int64
	miniSize    int64
	sbatStart   blocks.BlockAddress
	sbatBlocks  int64
	fatStart    blocks.BlockAddress
	fatBlocks   int64
	difatStart  blocks.BlockAddress
	difatBlocks int64

	table     *bat.Table
	miniTable *bat.Table
}

// Write writes the container to w, laying all the chains out contiguously in the order: big documents,
// property table, mini stream, mini allocation table, allocation table, extended allocation table.
// Producers of pending documents are called while their content is written.
func (fs *FileSystem) Write(w io.Writer) error {
	if err := fs.ready(); err != nil {
		return err
	}

	l, err := fs.plan()
	if err != nil {
		return err
	}

	mlog.Printf("Write: %d big documents, %d mini documents, %d FAT sectors, %d DIFAT sectors", len(l.bigDocs),
		len(l.miniDocs), l.fatBlocks, l.difatBlocks)

	h, err := header.New(l.blockSize)
	if err != nil {
		return err
	}
	h.ClassID = fs.store.Header().ClassID
	h.FirstDirBlock = l.dirStart
	if !h.IsVersion3() {
		h.NumDirSectors = uint32(l.dirBlocks)
	}
	h.FirstMiniFATBlock = l.sbatStart
	h.NumMiniFATSectors = uint32(l.sbatBlocks)
	l.table.UpdateHeader(&h)

	headerBlock := make([]byte, l.blockSize)
	copy(headerBlock, header.Encode(&h))
	if err := write(w, headerBlock); err != nil {
		return err
	}

	for _, doc := range l.bigDocs {
		if err := fs.writeDocument(w, doc, l.blockSize); err != nil {
			return err
		}
	}

	dir, err := fs.props.Serialize(l.blockSize)
	if err != nil {
		return err
	}
	rootEntry := entry.Decode(dir[:blocks.EntrySize]).V
	rootEntry.StartBlock = l.miniStart
	rootEntry.Size = uint64(l.miniSize)
	for _, doc := range append(append([]plannedDocument{}, l.bigDocs...), l.miniDocs...) {
		offset := int64(doc.index) * blocks.EntrySize
		e := entry.Decode(dir[offset : offset+blocks.EntrySize]).V
		e.StartBlock = doc.start
		e.Size = uint64(doc.size)
	}
	if err := write(w, dir); err != nil {
		return err
	}

	var written int64
	for _, doc := range l.miniDocs {
		if err := fs.writeDocument(w, doc, blocks.MiniBlockSize); err != nil {
			return err
		}
		written += doc.nBlocks * blocks.MiniBlockSize
	}
	if err := writeFiller(w, l.miniBlocks*l.blockSize-written); err != nil {
		return err
	}

	for i := int64(0); i < l.sbatBlocks; i++ {
		if err := write(w, l.miniTable.EncodeBlock(i)); err != nil {
			return err
		}
	}
	for i := int64(0); i < l.fatBlocks; i++ {
		if err := write(w, l.table.EncodeBlock(i)); err != nil {
			return err
		}
	}
	for i := int64(0); i < l.difatBlocks; i++ {
		if err := write(w, l.table.EncodeDIFATBlock(i)); err != nil {
			return err
		}
	}
	return nil
}

func (fs *FileSystem) plan() (*layout, error) {
	l := &layout{
		blockSize: fs.big.BlockSize(),
		miniStart: blocks.EndOfChain,
		sbatStart: blocks.EndOfChain,
	}

	indices := fs.props.Indices()
	err := fs.props.Walk(func(h property.Handle, p *property.Property) error {
		if p.Type != entry.StreamType {
			return nil
		}
		doc := plannedDocument{
			handle: h,
			index:  indices[h],
			size:   p.Size,
			start:  blocks.EndOfChain,
		}
		if p.Size < blocks.BigBlockMinimumDocumentSize {
			doc.nBlocks = blocks.NumBlocks(p.Size, blocks.MiniBlockSize)
			l.miniDocs = append(l.miniDocs, doc)
		} else {
			doc.nBlocks = blocks.NumBlocks(p.Size, l.blockSize)
			l.bigDocs = append(l.bigDocs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var next int64
	for i := range l.bigDocs {
		l.bigDocs[i].start = blocks.BlockAddress(next)
		next += l.bigDocs[i].nBlocks
	}

	l.dirStart = blocks.BlockAddress(next)
	l.dirBlocks = blocks.NumBlocks(int64(len(indices))*blocks.EntrySize, l.blockSize)
	next += l.dirBlocks

	var miniNext int64
	for i := range l.miniDocs {
		if l.miniDocs[i].nBlocks > 0 {
			l.miniDocs[i].start = blocks.BlockAddress(miniNext)
		}
		miniNext += l.miniDocs[i].nBlocks
	}
	l.miniSize = miniNext * blocks.MiniBlockSize
	l.miniBlocks = blocks.NumBlocks(l.miniSize, l.blockSize)
	if l.miniBlocks > 0 {
		l.miniStart = blocks.BlockAddress(next)
		next += l.miniBlocks
	}

	l.sbatBlocks = blocks.NumBlocks(miniNext*4, l.blockSize)
	if l.sbatBlocks > 0 {
		l.sbatStart = blocks.BlockAddress(next)
		next += l.sbatBlocks
	}

	// Table blocks describe themselves, so their number is searched iteratively.
	epb := blocks.EntriesPerBlock(l.blockSize)
	for {
		fatBlocks := blocks.NumBlocks(next+l.fatBlocks+l.difatBlocks, epb)
		difatBlocks := bat.DIFATSectorsRequired(fatBlocks, epb)
		if fatBlocks == l.fatBlocks && difatBlocks == l.difatBlocks {
			break
		}
		l.fatBlocks, l.difatBlocks = fatBlocks, difatBlocks
	}
	if next+l.fatBlocks+l.difatBlocks > int64(blocks.MaxRegular) {
		return nil, errors.Errorf("container of %d blocks is too large", next+l.fatBlocks+l.difatBlocks)
	}
	l.fatStart = blocks.BlockAddress(next)
	l.difatStart = blocks.BlockAddress(next + l.fatBlocks)

	l.table = bat.NewPlanned(l.blockSize, l.fatBlocks*epb)
	for _, doc := range l.bigDocs {
		if err := l.table.Link(doc.start, doc.nBlocks); err != nil {
			return nil, err
		}
	}
	for _, chain := range []struct {
		start blocks.BlockAddress
		n     int64
	}{
		{start: l.dirStart, n: l.dirBlocks},
		{start: l.miniStart, n: l.miniBlocks},
		{start: l.sbatStart, n: l.sbatBlocks},
	} {
		if err := l.table.Link(chain.start, chain.n); err != nil {
			return nil, err
		}
	}
	for i := int64(0); i < l.fatBlocks; i++ {
		if err := l.table.MarkFATSector(l.fatStart + blocks.BlockAddress(i)); err != nil {
			return nil, err
		}
	}
	for i := int64(0); i < l.difatBlocks; i++ {
		if err := l.table.MarkDIFATSector(l.difatStart + blocks.BlockAddress(i)); err != nil {
			return nil, err
		}
	}

	l.miniTable = bat.LoadMini(l.blockSize, bytes.Repeat([]byte{blocks.Filler}, int(l.sbatBlocks*l.blockSize)))
	for _, doc := range l.miniDocs {
		if err := l.miniTable.Link(doc.start, doc.nBlocks); err != nil {
			return nil, err
		}
	}

	return l, nil
}

// writeDocument writes the document padded to the multiple of the block size.
func (fs *FileSystem) writeDocument(w io.Writer, doc plannedDocument, blockSize int64) error {
	padding := doc.nBlocks*blockSize - doc.size

	if pending, exists := fs.pending[doc.handle]; exists {
		if err := produce(w, pending); err != nil {
			return err
		}
		return writeFiller(w, padding)
	}

	p, err := fs.props.Get(doc.handle)
	if err != nil {
		return err
	}
	r := stream.NewReader(fs.storeFor(p.Size), p.StartBlock, p.Size)
	if _, err := io.Copy(w, r); err != nil {
		return errors.WithStack(err)
	}
	return writeFiller(w, padding)
}

func write(w io.Writer, b []byte) error {
	_, err := w.Write(b)
	return errors.WithStack(err)
}
