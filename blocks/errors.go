package blocks

import (
	"github.com/pkg/errors"
)

var (
	// ErrFormat is returned when the device does not contain valid compound file.
	ErrFormat = errors.New("invalid compound file")

	// ErrCorrupt is returned when block chains or allocation tables are inconsistent.
	ErrCorrupt = errors.WithMessage(ErrFormat, "corrupted container")

	// ErrTruncated is returned when the referenced block lies beyond the end of the device.
	ErrTruncated = errors.WithMessage(ErrFormat, "truncated container")
)

// Corruptf returns ErrCorrupt annotated with the details.
func Corruptf(format string, args ...any) error {
	return errors.Wrapf(ErrCorrupt, format, args...)
}

// Formatf returns ErrFormat annotated with the details.
func Formatf(format string, args ...any) error {
	return errors.Wrapf(ErrFormat, format, args...)
}
