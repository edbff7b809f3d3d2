// Package container implements the SGC hierarchical container format:
// named nested groups, per-node key/value attributes, and typed
// n-dimensional datasets with chunked, optionally compressed storage.
//
// The on-disk layout is a fixed header (magic, container version, index
// location), a body of appended chunk payloads, and a serialized index of
// the group tree written on flush. The header is patched after the index
// is written, so a reader always sees a consistent tree.
package container

import "errors"

// Common errors
var (
	ErrNotContainer  = errors.New("not an SGC container file")
	ErrNotFound      = errors.New("object not found")
	ErrNotWritable   = errors.New("file is not writable")
	ErrClosed        = errors.New("file is closed")
	ErrShapeMismatch = errors.New("dataset shape or dtype mismatch")
	ErrBadAttr       = errors.New("unsupported attribute value type")
	ErrCorrupt       = errors.New("corrupt container index")
)
