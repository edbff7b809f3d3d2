package sigfile

import (
	"log/slog"

	"github.com/robert-malhotra/go-sigfile/container"
)

// WriteOption configures a Write call.
type WriteOption func(*writeOptions)

type writeOptions struct {
	chunks       []uint64
	compression  string
	level        int
	shuffle      bool
	closeFile    bool
	writeDataset bool
	appendMode   bool
	file         *container.File
	logger       *slog.Logger
	policy       VersionPolicy
}

func defaultWriteOptions() *writeOptions {
	return &writeOptions{
		compression:  "default",
		level:        6,
		shuffle:      true,
		closeFile:    true,
		writeDataset: true,
		policy:       DefaultVersionPolicy(),
	}
}

// WithChunks sets an explicit chunk shape for the main dataset,
// overriding the byte-budget heuristic. It is clipped so no chunk
// dimension exceeds the dataset shape.
func WithChunks(dims ...uint64) WriteOption {
	return func(o *writeOptions) {
		o.chunks = dims
	}
}

// WithCompression selects the chunk compression: "default"/"zlib"/"gzip",
// "zstd", or "none".
func WithCompression(name string) WriteOption {
	return func(o *writeOptions) {
		o.compression = name
	}
}

// WithCompressionLevel sets the codec-specific compression level.
func WithCompressionLevel(level int) WriteOption {
	return func(o *writeOptions) {
		o.level = level
	}
}

// WithoutShuffle disables the byte shuffle filter, which is otherwise
// enabled by default to improve compression.
func WithoutShuffle() WriteOption {
	return func(o *writeOptions) {
		o.shuffle = false
	}
}

// CloseFile controls whether the container is closed before Write
// returns (the default). With CloseFile(false) the file stays open and
// the record's Data is repointed at a Lazy view of the stored dataset,
// which then owns the handle.
func CloseFile(close bool) WriteOption {
	return func(o *writeOptions) {
		o.closeFile = close
	}
}

// WriteDataset controls whether the main data array is written (the
// default). WriteDataset(false) performs an attribute/metadata-only
// update and requires an append-capable target: combining it with a
// truncating open is a configuration error, rejected before any I/O.
func WriteDataset(write bool) WriteOption {
	return func(o *writeOptions) {
		o.writeDataset = write
	}
}

// Append opens the target read-write instead of truncating it. The
// container must already exist.
func Append() WriteOption {
	return func(o *writeOptions) {
		o.appendMode = true
	}
}

// WithFile writes into an already-open container handle instead of
// opening the path, avoiding a double open when the record's lazy data
// is backed by the same file. A read-only handle fails with
// ErrModeConflict before any byte is written.
func WithFile(f *container.File) WriteOption {
	return func(o *writeOptions) {
		o.file = f
	}
}

// WithLogger sets the logger used for warnings (default slog.Default()).
func WithLogger(logger *slog.Logger) WriteOption {
	return func(o *writeOptions) {
		o.logger = logger
	}
}

// WithVersionPolicy overrides the version policy used to stamp the file.
func WithVersionPolicy(p VersionPolicy) WriteOption {
	return func(o *writeOptions) {
		o.policy = p
	}
}

// ReadOption configures a Read call.
type ReadOption func(*readOptions)

type readOptions struct {
	lazy   bool
	logger *slog.Logger
	policy VersionPolicy
}

func defaultReadOptions() *readOptions {
	return &readOptions{
		policy: DefaultVersionPolicy(),
	}
}

// WithLazy controls materialization: with lazy true, dense numeric
// datasets are returned as Lazy handles and the backing file must stay
// open for their remaining lifetime; with lazy false (the default)
// everything is read into memory and the file is closed before Read
// returns.
func WithLazy(lazy bool) ReadOption {
	return func(o *readOptions) {
		o.lazy = lazy
	}
}

// WithReadLogger sets the logger used for warnings (default slog.Default()).
func WithReadLogger(logger *slog.Logger) ReadOption {
	return func(o *readOptions) {
		o.logger = logger
	}
}

// WithReadVersionPolicy overrides the version policy consulted before
// structural interpretation.
func WithReadVersionPolicy(p VersionPolicy) ReadOption {
	return func(o *readOptions) {
		o.policy = p
	}
}
