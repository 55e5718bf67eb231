package memdev

import (
	"io"

	"github.com/pkg/errors"
)

var (
	_ io.Seeker = &MemDev{}
	_ io.Reader = &MemDev{}
	_ io.Writer = &MemDev{}
)

// MemDev simulates device io operations in memory. Writing past the end grows the device.
type MemDev struct {
	offset int64
	data   []byte
}

// New returns new memdev.
func New(size int64) *MemDev {
	return &MemDev{
		data: make([]byte, size),
	}
}

// NewFromBytes returns memdev initialized with the content. The slice is copied.
func NewFromBytes(b []byte) *MemDev {
	return &MemDev{
		data: append([]byte{}, b...),
	}
}

// Seek seeks the position.
func (md *MemDev) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset = md.offset + offset
	case io.SeekEnd:
		offset = int64(len(md.data)) + offset
	default:
		return 0, errors.Errorf("invalid whence: %d", whence)
	}

	if offset < 0 {
		return 0, errors.Errorf("invalid offset: %d", offset)
	}

	md.offset = offset
	return offset, nil
}

// Read reads data from the memdev.
func (md *MemDev) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if md.offset >= int64(len(md.data)) {
		return 0, io.EOF
	}
	n := copy(p, md.data[md.offset:])
	md.offset += int64(n)
	return n, nil
}

// Write writes data to the memdev.
func (md *MemDev) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if end := md.offset + int64(len(p)); end > int64(len(md.data)) {
		if end <= int64(cap(md.data)) {
			md.data = md.data[:end]
		} else {
			data := make([]byte, end, 2*end)
			copy(data, md.data)
			md.data = data
		}
	}
	n := copy(md.data[md.offset:], p)
	md.offset += int64(n)
	return n, nil
}

// Sync does nothing because there is nothing to sync.
func (md *MemDev) Sync() error {
	return nil
}

// Size returns the byte size of the memdev.
func (md *MemDev) Size() int64 {
	return int64(len(md.data))
}

// Bytes returns the content of the memdev.
func (md *MemDev) Bytes() []byte {
	return md.data
}
