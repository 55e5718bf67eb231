package filedev

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileDev(t *testing.T) {
	requireT := require.New(t)

	path := filepath.Join(t.TempDir(), "dev")
	_, err := Open(path, false)
	requireT.ErrorIs(err, os.ErrNotExist)

	dev, err := Create(path)
	requireT.NoError(err)
	defer dev.Close()

	requireT.EqualValues(0, dev.Size())

	_, err = dev.Seek(4, io.SeekStart)
	requireT.NoError(err)
	_, err = dev.Write([]byte{1, 2})
	requireT.NoError(err)
	requireT.NoError(dev.Sync())
	requireT.EqualValues(6, dev.Size())

	_, err = dev.Seek(0, io.SeekStart)
	requireT.NoError(err)
	buf := make([]byte, 6)
	_, err = io.ReadFull(dev, buf)
	requireT.NoError(err)
	requireT.Equal([]byte{0, 0, 0, 0, 1, 2}, buf)

	_, err = dev.Read(buf)
	requireT.ErrorIs(err, io.EOF)
}
