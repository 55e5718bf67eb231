package build

import (
	"bytes"
	"context"

	"github.com/outofforest/build"
	"github.com/pkg/errors"

	"github.com/outofforest/oledoc"
)

// smokeDocuments are stored on both sides of the mini stream cutoff.
var smokeDocuments = map[string]int{
	"Workbook":             10000,
	"\x05SummaryInformation": 200,
}

// smokeTest writes a container through the public API, reads it back and verifies its block chains.
func smokeTest(ctx context.Context, deps build.DepsFunc) error {
	deps(goTests)

	for _, blockSize := range []int64{512, 4096} {
		if err := roundTrip(oledoc.Config{BlockSize: blockSize, CacheSize: 64 * blockSize}); err != nil {
			return errors.WithMessagef(err, "block size %d", blockSize)
		}
	}
	return nil
}

func roundTrip(config oledoc.Config) error {
	fs, err := oledoc.Create(config)
	if err != nil {
		return err
	}
	for name, size := range smokeDocuments {
		if _, err := fs.Root().CreateDocument(name, bytes.NewReader(content(name, size))); err != nil {
			return err
		}
	}
	buf := &bytes.Buffer{}
	if err := fs.Write(buf); err != nil {
		return err
	}
	if err := fs.Close(); err != nil {
		return err
	}

	fs, err = oledoc.OpenBytes(buf.Bytes())
	if err != nil {
		return err
	}
	defer fs.Close()

	if err := fs.CheckIntegrity(); err != nil {
		return err
	}
	for name, size := range smokeDocuments {
		e, err := fs.Find(name)
		if err != nil {
			return err
		}
		doc, ok := e.(*oledoc.DocumentEntry)
		if !ok {
			return errors.Errorf("%q is not a document", name)
		}
		data, err := doc.Bytes()
		if err != nil {
			return err
		}
		if !bytes.Equal(data, content(name, size)) {
			return errors.Errorf("content of %q differs after reopening", name)
		}
	}
	return nil
}

func content(name string, size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = name[i%len(name)] ^ byte(i)
	}
	return data
}
