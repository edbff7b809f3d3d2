package container

import "github.com/robert-malhotra/go-sigfile/internal/filter"

// Codec re-exports the filter codec identifiers for dataset options.
type Codec = filter.Codec

const (
	CodecNone = filter.CodecNone
	CodecZlib = filter.CodecZlib
	CodecZstd = filter.CodecZstd
)

// ParseCodec maps a user-facing compression name ("none", "zlib", "gzip",
// "zstd", "default") to a Codec.
func ParseCodec(name string) (Codec, error) {
	return filter.ParseCodec(name)
}

// DatasetOption configures dataset creation.
type DatasetOption func(*datasetOptions)

type datasetOptions struct {
	chunks  []uint64
	codec   Codec
	level   int
	shuffle bool
}

func defaultDatasetOptions() *datasetOptions {
	return &datasetOptions{
		codec:   CodecZlib,
		level:   6,
		shuffle: true,
	}
}

// WithChunks sets the chunk shape. It is clipped to the dataset shape
// along every dimension; missing or zero entries default to the full
// extent of that dimension.
func WithChunks(dims ...uint64) DatasetOption {
	return func(o *datasetOptions) {
		o.chunks = dims
	}
}

// WithCodec sets the compression codec (default zlib).
func WithCodec(c Codec) DatasetOption {
	return func(o *datasetOptions) {
		o.codec = c
	}
}

// WithCompressionLevel sets the codec-specific compression level.
func WithCompressionLevel(level int) DatasetOption {
	return func(o *datasetOptions) {
		o.level = level
	}
}

// WithoutShuffle disables the byte shuffle filter, which is otherwise
// enabled by default to improve compression of numeric data.
func WithoutShuffle() DatasetOption {
	return func(o *datasetOptions) {
		o.shuffle = false
	}
}
