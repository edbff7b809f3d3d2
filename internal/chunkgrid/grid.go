// Package chunkgrid implements the mapping between a dataset's n-dimensional
// element space and its grid of storage chunks.
//
// Chunks are ordered row-major over the grid. Edge chunks are clipped to the
// dataset shape, so stored chunks never contain padding.
package chunkgrid

import "fmt"

// Grid describes the chunk layout of one dataset.
type Grid struct {
	dims   []uint64 // dataset shape, row-major
	chunks []uint64 // chunk shape, clipped to dims
}

// New creates a grid for a dataset shape and requested chunk shape.
// The chunk shape is clipped so it never exceeds the dataset shape along
// any dimension; zero or missing chunk dimensions default to the full
// extent of that dimension.
func New(dims, chunkDims []uint64) Grid {
	d := make([]uint64, len(dims))
	copy(d, dims)

	c := make([]uint64, len(dims))
	for i := range c {
		var want uint64
		if i < len(chunkDims) {
			want = chunkDims[i]
		}
		if want == 0 || want > d[i] {
			want = d[i]
		}
		if want == 0 {
			want = 1 // zero-extent dimension still needs a nonzero grid step
		}
		c[i] = want
	}
	return Grid{dims: d, chunks: c}
}

// Dims returns the dataset shape.
func (g Grid) Dims() []uint64 { return g.dims }

// ChunkDims returns the clipped chunk shape.
func (g Grid) ChunkDims() []uint64 { return g.chunks }

// Counts returns the number of chunks along each dimension.
func (g Grid) Counts() []uint64 {
	n := make([]uint64, len(g.dims))
	for i := range g.dims {
		n[i] = (g.dims[i] + g.chunks[i] - 1) / g.chunks[i]
	}
	return n
}

// NumChunks returns the total number of chunks. A scalar (0-dimensional)
// dataset has exactly one chunk; a dataset with a zero-extent dimension
// has none.
func (g Grid) NumChunks() int {
	total := 1
	for _, n := range g.Counts() {
		total *= int(n)
	}
	return total
}

// NumElements returns the total number of elements in the dataset.
func (g Grid) NumElements() uint64 {
	total := uint64(1)
	for _, d := range g.dims {
		total *= d
	}
	return total
}

// Coords returns the grid coordinates of chunk i in row-major order.
func (g Grid) Coords(i int) []uint64 {
	counts := g.Counts()
	coords := make([]uint64, len(counts))
	for d := len(counts) - 1; d >= 0; d-- {
		coords[d] = uint64(i) % counts[d]
		i /= int(counts[d])
	}
	return coords
}

// Origin returns the element offset of a chunk's first element.
func (g Grid) Origin(coords []uint64) []uint64 {
	origin := make([]uint64, len(coords))
	for d := range coords {
		origin[d] = coords[d] * g.chunks[d]
	}
	return origin
}

// ChunkShape returns the shape of the chunk at the given grid coordinates,
// clipped at the dataset's edges.
func (g Grid) ChunkShape(coords []uint64) []uint64 {
	shape := make([]uint64, len(coords))
	for d := range coords {
		start := coords[d] * g.chunks[d]
		end := start + g.chunks[d]
		if end > g.dims[d] {
			end = g.dims[d]
		}
		shape[d] = end - start
	}
	return shape
}

// ChunkElements returns the number of elements in chunk i.
func (g Grid) ChunkElements(i int) uint64 {
	total := uint64(1)
	for _, s := range g.ChunkShape(g.Coords(i)) {
		total *= s
	}
	return total
}

// Equal reports whether two grids have identical dataset and chunk shapes.
func (g Grid) Equal(other Grid) bool {
	if len(g.dims) != len(other.dims) {
		return false
	}
	for i := range g.dims {
		if g.dims[i] != other.dims[i] || g.chunks[i] != other.chunks[i] {
			return false
		}
	}
	return true
}

// strides returns row-major element strides for a shape.
func strides(dims []uint64) []uint64 {
	s := make([]uint64, len(dims))
	acc := uint64(1)
	for i := len(dims) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= dims[i]
	}
	return s
}

// Extract copies chunk i out of a full row-major dataset buffer.
func (g Grid) Extract(raw []byte, elemSize, i int) ([]byte, error) {
	shape := g.ChunkShape(g.Coords(i))
	out := make([]byte, g.ChunkElements(i)*uint64(elemSize))
	if err := g.copyChunk(out, raw, elemSize, i, shape, true); err != nil {
		return nil, err
	}
	return out, nil
}

// Place copies a decoded chunk i into a full row-major dataset buffer.
func (g Grid) Place(raw []byte, chunk []byte, elemSize, i int) error {
	shape := g.ChunkShape(g.Coords(i))
	want := g.ChunkElements(i) * uint64(elemSize)
	if uint64(len(chunk)) != want {
		return fmt.Errorf("chunk %d: got %d bytes, want %d", i, len(chunk), want)
	}
	return g.copyChunk(chunk, raw, elemSize, i, shape, false)
}

// copyChunk moves a chunk's rows between the chunk buffer and the full
// dataset buffer. When extract is true, data flows dataset -> chunk.
func (g Grid) copyChunk(chunkBuf, raw []byte, elemSize, i int, shape []uint64, extract bool) error {
	origin := g.Origin(g.Coords(i))
	srcStrides := strides(g.dims)

	ndim := len(shape)
	if ndim == 0 {
		// Scalar dataset: a single element.
		if extract {
			copy(chunkBuf, raw[:elemSize])
		} else {
			copy(raw[:elemSize], chunkBuf)
		}
		return nil
	}

	// Copy contiguous runs along the innermost dimension, walking an
	// odometer over the outer dimensions of the chunk shape.
	runLen := int(shape[ndim-1]) * elemSize
	outer := make([]uint64, ndim-1)
	chunkOff := 0
	for {
		srcElem := origin[ndim-1]
		for d := 0; d < ndim-1; d++ {
			srcElem += (origin[d] + outer[d]) * srcStrides[d]
		}
		srcOff := int(srcElem) * elemSize
		if srcOff+runLen > len(raw) || chunkOff+runLen > len(chunkBuf) {
			return fmt.Errorf("chunk %d: run out of bounds", i)
		}
		if extract {
			copy(chunkBuf[chunkOff:chunkOff+runLen], raw[srcOff:srcOff+runLen])
		} else {
			copy(raw[srcOff:srcOff+runLen], chunkBuf[chunkOff:chunkOff+runLen])
		}
		chunkOff += runLen

		// Advance the odometer.
		d := ndim - 2
		for ; d >= 0; d-- {
			outer[d]++
			if outer[d] < shape[d] {
				break
			}
			outer[d] = 0
		}
		if d < 0 {
			return nil
		}
	}
}

// Split cuts a full row-major dataset buffer into per-chunk buffers.
func (g Grid) Split(raw []byte, elemSize int) ([][]byte, error) {
	n := g.NumChunks()
	out := make([][]byte, n)
	for i := 0; i < n; i++ {
		chunk, err := g.Extract(raw, elemSize, i)
		if err != nil {
			return nil, err
		}
		out[i] = chunk
	}
	return out, nil
}

// Assemble rebuilds the full row-major dataset buffer from per-chunk buffers.
func (g Grid) Assemble(chunks [][]byte, elemSize int) ([]byte, error) {
	if len(chunks) != g.NumChunks() {
		return nil, fmt.Errorf("got %d chunks, want %d", len(chunks), g.NumChunks())
	}
	raw := make([]byte, g.NumElements()*uint64(elemSize))
	for i, chunk := range chunks {
		if err := g.Place(raw, chunk, elemSize, i); err != nil {
			return nil, err
		}
	}
	return raw, nil
}
