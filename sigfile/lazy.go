package sigfile

import (
	"fmt"

	"github.com/robert-malhotra/go-sigfile/container"
	"github.com/robert-malhotra/go-sigfile/internal/chunkgrid"
)

// Lazy is an out-of-core array handle. Element data stays on disk until
// accessed chunk by chunk; the backing container file must remain open
// for the handle's remaining lifetime. Closing the handle closes the
// file and invalidates every other Lazy served by it.
type Lazy struct {
	file *container.File
	ds   *container.Dataset
}

// newLazy wraps an open dataset. Ownership of the file handle transfers
// to the returned Lazy.
func newLazy(f *container.File, ds *container.Dataset) *Lazy {
	return &Lazy{file: f, ds: ds}
}

// DType returns the element type.
func (l *Lazy) DType() container.DType { return l.ds.DType() }

// Shape returns the dataset shape.
func (l *Lazy) Shape() []int {
	dims := l.ds.Shape()
	out := make([]int, len(dims))
	for i, d := range dims {
		out[i] = int(d)
	}
	return out
}

// Len returns the total number of elements.
func (l *Lazy) Len() int {
	total := 1
	for _, d := range l.Shape() {
		total *= d
	}
	return total
}

// ChunkShape returns the stored chunk shape.
func (l *Lazy) ChunkShape() []uint64 { return l.ds.ChunkShape() }

// NumChunks returns the number of stored chunks.
func (l *Lazy) NumChunks() int { return l.ds.NumChunks() }

// Grid returns the dataset's chunk grid.
func (l *Lazy) Grid() chunkgrid.Grid { return l.ds.Grid() }

// ReadChunk reads one decoded chunk by its row-major grid index as a
// typed flat slice.
func (l *Lazy) ReadChunk(i int) (any, error) {
	raw, err := l.ds.ReadChunk(i)
	if err != nil {
		return nil, err
	}
	return decodeSlice(l.DType(), raw)
}

// Materialize reads the whole dataset into memory as a dense Array.
func (l *Lazy) Materialize() (*Array, error) {
	raw, err := l.ds.Read()
	if err != nil {
		return nil, fmt.Errorf("materializing %s: %w", l.ds.Path(), err)
	}
	return arrayFromBytes(l.DType(), raw, l.Shape())
}

// File returns the backing container file.
func (l *Lazy) File() *container.File { return l.file }

// Writable reports whether the backing file accepts writes.
func (l *Lazy) Writable() bool { return l.file.Writable() }

// Close closes the backing file.
func (l *Lazy) Close() error { return l.file.Close() }
