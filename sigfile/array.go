package sigfile

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/robert-malhotra/go-sigfile/container"
)

// Array is a dense n-dimensional array: an element type, a shape, and a
// flat row-major slice of values.
type Array struct {
	dtype container.DType
	shape []int
	data  any // flat typed slice, length = product(shape)
}

// NewArray creates an Array from a flat slice and a row-major shape.
// Supported slice types are []int8 through []int64, []uint8 through
// []uint64, []float32, []float64, []bool, and []int (stored as int64).
// With no shape the array is one-dimensional.
func NewArray(data any, shape ...int) (*Array, error) {
	dt, norm, n, err := normalizeSlice(data)
	if err != nil {
		return nil, err
	}
	if len(shape) == 0 {
		shape = []int{n}
	}
	total := 1
	for _, s := range shape {
		if s < 0 {
			return nil, fmt.Errorf("negative dimension %d", s)
		}
		total *= s
	}
	if total != n {
		return nil, fmt.Errorf("shape %v needs %d elements, slice has %d", shape, total, n)
	}
	sh := make([]int, len(shape))
	copy(sh, shape)
	return &Array{dtype: dt, shape: sh, data: norm}, nil
}

// MustArray is NewArray that panics on error, for statically known shapes.
func MustArray(data any, shape ...int) *Array {
	a, err := NewArray(data, shape...)
	if err != nil {
		panic(err)
	}
	return a
}

// DType returns the element type.
func (a *Array) DType() container.DType { return a.dtype }

// Shape returns the row-major shape.
func (a *Array) Shape() []int {
	out := make([]int, len(a.shape))
	copy(out, a.shape)
	return out
}

// Len returns the total number of elements.
func (a *Array) Len() int {
	total := 1
	for _, s := range a.shape {
		total *= s
	}
	return total
}

// Data returns the flat typed slice backing the array.
func (a *Array) Data() any { return a.data }

// Float64s returns the flat data as []float64, converting if necessary.
// It is a convenience for numeric post-processing and tests.
func (a *Array) Float64s() []float64 {
	out := make([]float64, a.Len())
	switch d := a.data.(type) {
	case []float64:
		copy(out, d)
	case []float32:
		for i, v := range d {
			out[i] = float64(v)
		}
	case []int64:
		for i, v := range d {
			out[i] = float64(v)
		}
	case []int32:
		for i, v := range d {
			out[i] = float64(v)
		}
	case []int16:
		for i, v := range d {
			out[i] = float64(v)
		}
	case []int8:
		for i, v := range d {
			out[i] = float64(v)
		}
	case []uint64:
		for i, v := range d {
			out[i] = float64(v)
		}
	case []uint32:
		for i, v := range d {
			out[i] = float64(v)
		}
	case []uint16:
		for i, v := range d {
			out[i] = float64(v)
		}
	case []uint8:
		for i, v := range d {
			out[i] = float64(v)
		}
	case []bool:
		for i, v := range d {
			if v {
				out[i] = 1
			}
		}
	}
	return out
}

// Bytes encodes the array's elements as little-endian row-major bytes.
func (a *Array) Bytes() []byte {
	return encodeSlice(a.data)
}

// shapeU64 returns the shape as []uint64 for the container layer.
func (a *Array) shapeU64() []uint64 {
	out := make([]uint64, len(a.shape))
	for i, s := range a.shape {
		out[i] = uint64(s)
	}
	return out
}

// arrayFromBytes decodes little-endian row-major bytes into an Array.
func arrayFromBytes(dt container.DType, raw []byte, shape []int) (*Array, error) {
	data, err := decodeSlice(dt, raw)
	if err != nil {
		return nil, err
	}
	return NewArray(data, shape...)
}

// Ragged is a sequence of one-dimensional rows with differing lengths,
// all sharing the element type of the first row.
type Ragged struct {
	dtype container.DType
	rows  []any // flat typed slices
}

// NewRagged creates a Ragged array from flat row slices. The element
// dtype is taken from the first row; every row must share it.
func NewRagged(rows ...any) (*Ragged, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("ragged array needs at least one row")
	}
	dt, first, _, err := normalizeSlice(rows[0])
	if err != nil {
		return nil, fmt.Errorf("row 0: %w", err)
	}
	norm := make([]any, len(rows))
	norm[0] = first
	for i := 1; i < len(rows); i++ {
		rdt, r, _, err := normalizeSlice(rows[i])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if rdt != dt {
			return nil, fmt.Errorf("row %d: dtype %s differs from first row's %s", i, rdt, dt)
		}
		norm[i] = r
	}
	return &Ragged{dtype: dt, rows: norm}, nil
}

// DType returns the per-row element type.
func (r *Ragged) DType() container.DType { return r.dtype }

// Rows returns the number of rows.
func (r *Ragged) Rows() int { return len(r.rows) }

// Row returns row i as its flat typed slice.
func (r *Ragged) Row(i int) any { return r.rows[i] }

// RowLen returns the element count of row i.
func (r *Ragged) RowLen(i int) int {
	_, _, n, _ := normalizeSlice(r.rows[i])
	return n
}

// normalizeSlice maps a supported Go slice to its canonical stored form,
// returning the dtype, the (possibly converted) slice, and its length.
func normalizeSlice(data any) (container.DType, any, int, error) {
	switch d := data.(type) {
	case []uint8:
		return container.Uint8, d, len(d), nil
	case []int8:
		return container.Int8, d, len(d), nil
	case []uint16:
		return container.Uint16, d, len(d), nil
	case []int16:
		return container.Int16, d, len(d), nil
	case []uint32:
		return container.Uint32, d, len(d), nil
	case []int32:
		return container.Int32, d, len(d), nil
	case []uint64:
		return container.Uint64, d, len(d), nil
	case []int64:
		return container.Int64, d, len(d), nil
	case []int:
		conv := make([]int64, len(d))
		for i, v := range d {
			conv[i] = int64(v)
		}
		return container.Int64, conv, len(conv), nil
	case []float32:
		return container.Float32, d, len(d), nil
	case []float64:
		return container.Float64, d, len(d), nil
	case []bool:
		return container.Bool, d, len(d), nil
	default:
		return 0, nil, 0, fmt.Errorf("%w: %T is not a supported array slice", ErrUnsupportedValue, data)
	}
}

// encodeSlice serializes a canonical typed slice as little-endian bytes.
func encodeSlice(data any) []byte {
	switch d := data.(type) {
	case []uint8:
		out := make([]byte, len(d))
		copy(out, d)
		return out
	case []int8:
		out := make([]byte, len(d))
		for i, v := range d {
			out[i] = byte(v)
		}
		return out
	case []uint16:
		out := make([]byte, 2*len(d))
		for i, v := range d {
			binary.LittleEndian.PutUint16(out[2*i:], v)
		}
		return out
	case []int16:
		out := make([]byte, 2*len(d))
		for i, v := range d {
			binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
		}
		return out
	case []uint32:
		out := make([]byte, 4*len(d))
		for i, v := range d {
			binary.LittleEndian.PutUint32(out[4*i:], v)
		}
		return out
	case []int32:
		out := make([]byte, 4*len(d))
		for i, v := range d {
			binary.LittleEndian.PutUint32(out[4*i:], uint32(v))
		}
		return out
	case []uint64:
		out := make([]byte, 8*len(d))
		for i, v := range d {
			binary.LittleEndian.PutUint64(out[8*i:], v)
		}
		return out
	case []int64:
		out := make([]byte, 8*len(d))
		for i, v := range d {
			binary.LittleEndian.PutUint64(out[8*i:], uint64(v))
		}
		return out
	case []float32:
		out := make([]byte, 4*len(d))
		for i, v := range d {
			binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
		}
		return out
	case []float64:
		out := make([]byte, 8*len(d))
		for i, v := range d {
			binary.LittleEndian.PutUint64(out[8*i:], math.Float64bits(v))
		}
		return out
	case []bool:
		out := make([]byte, len(d))
		for i, v := range d {
			if v {
				out[i] = 1
			}
		}
		return out
	default:
		return nil
	}
}

// decodeSlice deserializes little-endian bytes into a canonical typed slice.
func decodeSlice(dt container.DType, raw []byte) (any, error) {
	size := dt.Size()
	if size == 0 {
		return nil, fmt.Errorf("cannot decode dtype %s", dt)
	}
	if len(raw)%size != 0 {
		return nil, fmt.Errorf("%d bytes is not a multiple of %s element size %d", len(raw), dt, size)
	}
	n := len(raw) / size

	switch dt {
	case container.Uint8:
		out := make([]uint8, n)
		copy(out, raw)
		return out, nil
	case container.Int8:
		out := make([]int8, n)
		for i := range out {
			out[i] = int8(raw[i])
		}
		return out, nil
	case container.Uint16:
		out := make([]uint16, n)
		for i := range out {
			out[i] = binary.LittleEndian.Uint16(raw[2*i:])
		}
		return out, nil
	case container.Int16:
		out := make([]int16, n)
		for i := range out {
			out[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
		}
		return out, nil
	case container.Uint32:
		out := make([]uint32, n)
		for i := range out {
			out[i] = binary.LittleEndian.Uint32(raw[4*i:])
		}
		return out, nil
	case container.Int32:
		out := make([]int32, n)
		for i := range out {
			out[i] = int32(binary.LittleEndian.Uint32(raw[4*i:]))
		}
		return out, nil
	case container.Uint64:
		out := make([]uint64, n)
		for i := range out {
			out[i] = binary.LittleEndian.Uint64(raw[8*i:])
		}
		return out, nil
	case container.Int64:
		out := make([]int64, n)
		for i := range out {
			out[i] = int64(binary.LittleEndian.Uint64(raw[8*i:]))
		}
		return out, nil
	case container.Float32:
		out := make([]float32, n)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
		}
		return out, nil
	case container.Float64:
		out := make([]float64, n)
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
		}
		return out, nil
	case container.Bool:
		out := make([]bool, n)
		for i := range out {
			out[i] = raw[i] != 0
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot decode dtype %s", dt)
	}
}
