package binary

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// ErrStringTooLong is returned when a length-prefixed string exceeds the
// sanity limit: on read it indicates a corrupt index, on write it rejects
// a string the format cannot round-trip.
var ErrStringTooLong = errors.New("string length exceeds sanity limit")

// MaxStringLen bounds length-prefixed strings. The writer enforces it so
// every string it accepts can be read back; the reader enforces it so a
// corrupt length field cannot trigger a huge allocation.
const MaxStringLen = 1 << 24

// Reader provides methods for reading container binary data at absolute
// file offsets.
type Reader struct {
	r   io.ReaderAt
	pos int64
}

// NewReader creates a binary reader over r.
func NewReader(r io.ReaderAt) *Reader {
	return &Reader{r: r}
}

// At returns a new reader positioned at the given offset.
// The new reader shares the underlying io.ReaderAt but has independent position.
func (r *Reader) At(offset int64) *Reader {
	return &Reader{r: r.r, pos: offset}
}

// Pos returns the current read position.
func (r *Reader) Pos() int64 {
	return r.pos
}

// ReadBytes reads exactly n bytes from the current position.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := r.r.ReadAt(buf, r.pos); err != nil {
		return nil, err
	}
	r.pos += int64(n)
	return buf, nil
}

// ReadUint8 reads an unsigned 8-bit integer.
func (r *Reader) ReadUint8() (uint8, error) {
	buf, err := r.ReadBytes(1)
	if err != nil {
		return 0, err
	}
	return buf[0], nil
}

// ReadUint16 reads an unsigned 16-bit integer.
func (r *Reader) ReadUint16() (uint16, error) {
	buf, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}

// ReadUint32 reads an unsigned 32-bit integer.
func (r *Reader) ReadUint32() (uint32, error) {
	buf, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf), nil
}

// ReadUint64 reads an unsigned 64-bit integer.
func (r *Reader) ReadUint64() (uint64, error) {
	buf, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// ReadInt64 reads a signed 64-bit integer.
func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

// ReadFloat64 reads an IEEE-754 64-bit float.
func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	return math.Float64frombits(v), err
}

// ReadString reads a length-prefixed UTF-8 string (u32 length + bytes).
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	if n > MaxStringLen {
		return "", ErrStringTooLong
	}
	buf, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(buf), nil
}
