package container

import "fmt"

// DType identifies the element type of a dataset.
type DType uint8

const (
	Uint8 DType = iota
	Int8
	Uint16
	Int16
	Uint32
	Int32
	Uint64
	Int64
	Float32
	Float64
	Bool   // stored as one byte per element
	String // UTF-8 bytes; only valid for variable-length datasets
)

// Size returns the storage size of one element in bytes.
func (d DType) Size() int {
	switch d {
	case Uint8, Int8, Bool, String:
		return 1
	case Uint16, Int16:
		return 2
	case Uint32, Int32, Float32:
		return 4
	case Uint64, Int64, Float64:
		return 8
	default:
		return 0
	}
}

// String returns the dtype's name.
func (d DType) String() string {
	switch d {
	case Uint8:
		return "uint8"
	case Int8:
		return "int8"
	case Uint16:
		return "uint16"
	case Int16:
		return "int16"
	case Uint32:
		return "uint32"
	case Int32:
		return "int32"
	case Uint64:
		return "uint64"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Bool:
		return "bool"
	case String:
		return "string"
	default:
		return fmt.Sprintf("dtype(%d)", uint8(d))
	}
}

// valid reports whether d is a known dtype.
func (d DType) valid() bool {
	return d <= String
}
