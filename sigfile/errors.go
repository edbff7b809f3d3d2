// Package sigfile persists and reconstructs multi-dimensional scientific
// signal records to and from SGC hierarchical container files.
//
// A SignalRecord couples an n-dimensional numeric array (dense, ragged,
// or lazily backed by an open file) with ordered axis descriptors and
// arbitrarily nested metadata. Write maps every metadata leaf to a group,
// attribute, or dataset; Read reconstructs the record, eagerly or lazily.
package sigfile

import (
	"errors"

	"github.com/robert-malhotra/go-sigfile/container"
)

// Common errors
var (
	// ErrInvalidFormat is returned when a file lacks the required format
	// attributes or structural groups.
	ErrInvalidFormat = errors.New("not a valid SigFile container")

	// ErrModeConflict is returned when an overwrite targets a file handle
	// that is open read-only. Reopen the file writable to overwrite it.
	ErrModeConflict = errors.New("file handle is read-only")

	// ErrConfig is returned for invalid write option combinations before
	// any I/O is performed.
	ErrConfig = errors.New("invalid write options")

	// ErrShapeMismatch is returned when a destination dataset's shape or
	// dtype is incompatible with the source value.
	ErrShapeMismatch = container.ErrShapeMismatch

	// ErrUnsupportedValue is returned when a metadata leaf has a type the
	// classifier cannot map to an on-disk encoding.
	ErrUnsupportedValue = errors.New("unsupported value type")
)
