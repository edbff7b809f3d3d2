// Package binary provides low-level binary I/O for reading and writing
// SGC container files. All multi-byte values are little-endian.
package binary

import (
	"encoding/binary"
	"io"
	"math"
)

// Writer provides methods for writing container binary data at absolute
// file offsets.
type Writer struct {
	w   io.WriterAt
	pos int64
}

// NewWriter creates a binary writer over w.
func NewWriter(w io.WriterAt) *Writer {
	return &Writer{w: w}
}

// At returns a new writer positioned at the given offset.
// The new writer shares the underlying io.WriterAt but has independent position.
func (w *Writer) At(offset int64) *Writer {
	return &Writer{w: w.w, pos: offset}
}

// Pos returns the current write position.
func (w *Writer) Pos() int64 {
	return w.pos
}

// WriteBytes writes the given bytes at the current position.
func (w *Writer) WriteBytes(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	n, err := w.w.WriteAt(data, w.pos)
	w.pos += int64(n)
	return err
}

// WriteUint8 writes an unsigned 8-bit integer.
func (w *Writer) WriteUint8(v uint8) error {
	return w.WriteBytes([]byte{v})
}

// WriteUint16 writes an unsigned 16-bit integer.
func (w *Writer) WriteUint16(v uint16) error {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, v)
	return w.WriteBytes(buf)
}

// WriteUint32 writes an unsigned 32-bit integer.
func (w *Writer) WriteUint32(v uint32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return w.WriteBytes(buf)
}

// WriteUint64 writes an unsigned 64-bit integer.
func (w *Writer) WriteUint64(v uint64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return w.WriteBytes(buf)
}

// WriteInt64 writes a signed 64-bit integer.
func (w *Writer) WriteInt64(v int64) error {
	return w.WriteUint64(uint64(v))
}

// WriteFloat64 writes an IEEE-754 64-bit float.
func (w *Writer) WriteFloat64(v float64) error {
	return w.WriteUint64(math.Float64bits(v))
}

// WriteString writes a length-prefixed UTF-8 string (u32 length + bytes).
// Strings over MaxStringLen are rejected with ErrStringTooLong; the reader
// applies the same limit.
func (w *Writer) WriteString(s string) error {
	if len(s) > MaxStringLen {
		return ErrStringTooLong
	}
	if err := w.WriteUint32(uint32(len(s))); err != nil {
		return err
	}
	return w.WriteBytes([]byte(s))
}
