package memdev

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeekStart(t *testing.T) {
	assertT := assert.New(t)

	dev := newDev()

	o, err := dev.Seek(-1, io.SeekStart)
	assertT.Error(err)
	assertT.EqualValues(0, o)

	o, err = dev.Seek(0, io.SeekStart)
	assertT.NoError(err)
	assertT.EqualValues(0, o)

	o, err = dev.Seek(5, io.SeekStart)
	assertT.NoError(err)
	assertT.EqualValues(5, o)

	o, err = dev.Seek(11, io.SeekStart)
	assertT.NoError(err)
	assertT.EqualValues(11, o)
}

func TestSeekCurrent(t *testing.T) {
	assertT := assert.New(t)

	dev := newDev()

	o, err := dev.Seek(-1, io.SeekCurrent)
	assertT.Error(err)
	assertT.EqualValues(0, o)

	o, err = dev.Seek(10, io.SeekCurrent)
	assertT.NoError(err)
	assertT.EqualValues(10, o)

	o, err = dev.Seek(-5, io.SeekCurrent)
	assertT.NoError(err)
	assertT.EqualValues(5, o)
}

func TestSeekEnd(t *testing.T) {
	assertT := assert.New(t)

	dev := newDev()

	o, err := dev.Seek(-11, io.SeekEnd)
	assertT.Error(err)
	assertT.EqualValues(0, o)

	o, err = dev.Seek(-4, io.SeekEnd)
	assertT.NoError(err)
	assertT.EqualValues(6, o)
}

func TestReadWrite(t *testing.T) {
	requireT := require.New(t)

	dev := newDev()

	n, err := dev.Write([]byte{1, 2, 3})
	requireT.NoError(err)
	requireT.Equal(3, n)

	_, err = dev.Seek(1, io.SeekStart)
	requireT.NoError(err)

	buf := make([]byte, 2)
	n, err = dev.Read(buf)
	requireT.NoError(err)
	requireT.Equal(2, n)
	requireT.Equal([]byte{2, 3}, buf)

	_, err = dev.Seek(0, io.SeekEnd)
	requireT.NoError(err)
	n, err = dev.Read(buf)
	requireT.ErrorIs(err, io.EOF)
	requireT.Zero(n)
}

func TestWritePastEndGrows(t *testing.T) {
	requireT := require.New(t)

	dev := newDev()

	_, err := dev.Seek(15, io.SeekStart)
	requireT.NoError(err)

	_, err = dev.Write([]byte{9, 9})
	requireT.NoError(err)
	requireT.EqualValues(17, dev.Size())
	requireT.Equal([]byte{0, 0, 0, 0, 0, 9, 9}, dev.Bytes()[10:])
}

func TestNewFromBytesCopies(t *testing.T) {
	requireT := require.New(t)

	src := []byte{1, 2, 3}
	dev := NewFromBytes(src)
	src[0] = 7
	requireT.Equal([]byte{1, 2, 3}, dev.Bytes())
}

func newDev() *MemDev {
	return New(10)
}
