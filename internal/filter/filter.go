// Package filter implements the chunk filter pipeline for SGC containers.
//
// On write, filters are applied in order (shuffle first, then compression);
// on read they are applied in reverse. Each filter transforms a chunk's
// bytes between its decoded and encoded forms.
package filter

import "fmt"

// Codec identifies a compression codec.
type Codec uint8

const (
	// CodecNone stores chunks uncompressed.
	CodecNone Codec = 0
	// CodecZlib is DEFLATE with a zlib wrapper.
	CodecZlib Codec = 1
	// CodecZstd is Zstandard.
	CodecZstd Codec = 2
)

// String returns the codec's name as used in user-facing options.
func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecZlib:
		return "zlib"
	case CodecZstd:
		return "zstd"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// ParseCodec maps a user-facing compression name to a Codec.
// "default" and "gzip" are accepted as aliases for zlib.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "none", "":
		return CodecNone, nil
	case "zlib", "gzip", "default":
		return CodecZlib, nil
	case "zstd":
		return CodecZstd, nil
	default:
		return CodecNone, fmt.Errorf("unknown compression %q", name)
	}
}

// Filter is implemented by all chunk filters.
type Filter interface {
	// Encode transforms decoded data to its stored form.
	Encode(input []byte) ([]byte, error)

	// Decode transforms stored data back to its decoded form.
	Decode(input []byte) ([]byte, error)
}

// newCodec returns the Filter for a codec, or nil for CodecNone.
func newCodec(c Codec, level int) (Filter, error) {
	switch c {
	case CodecNone:
		return nil, nil
	case CodecZlib:
		return newZlib(level), nil
	case CodecZstd:
		return newZstd(level)
	default:
		return nil, fmt.Errorf("unsupported codec ID %d; this dataset cannot be read", uint8(c))
	}
}
