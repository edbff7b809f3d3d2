package sigfile

import (
	"fmt"

	"github.com/robert-malhotra/go-sigfile/container"
	"github.com/robert-malhotra/go-sigfile/internal/chunkgrid"
)

// targetChunkBytes is the per-chunk byte budget of the chunking
// heuristic, balancing I/O call overhead against memory footprint.
const targetChunkBytes = 1 << 20

// heuristicChunks picks a chunk shape for a dataset. The trailing
// signalDims dimensions are kept whole so one chunk always spans entire
// signal slices; the largest navigation-side dimension is halved until
// the chunk fits the byte budget. The result never exceeds the dataset
// shape along any dimension.
func heuristicChunks(dims []uint64, elemSize, signalDims int) []uint64 {
	chunks := make([]uint64, len(dims))
	copy(chunks, dims)
	if len(chunks) == 0 {
		return chunks
	}
	if signalDims < 0 || signalDims > len(chunks) {
		signalDims = len(chunks)
	}

	bytes := func() uint64 {
		total := uint64(elemSize)
		for _, c := range chunks {
			if c > 0 {
				total *= c
			}
		}
		return total
	}

	navEnd := len(chunks) - signalDims
	for bytes() > targetChunkBytes {
		// Halve the largest navigation dimension still divisible.
		largest := -1
		for d := 0; d < navEnd; d++ {
			if chunks[d] > 1 && (largest < 0 || chunks[d] > chunks[largest]) {
				largest = d
			}
		}
		if largest < 0 {
			break // nothing left to shrink
		}
		chunks[largest] = (chunks[largest] + 1) / 2
	}
	return chunks
}

// storeDense writes a fully in-memory array as a dense dataset. Go
// slices are always contiguous, so this is a single bulk write.
func storeDense(g *container.Group, key string, arr *Array, opts []container.DatasetOption) (*container.Dataset, error) {
	ds, err := g.RequireDataset(key, arr.DType(), arr.shapeU64(), opts...)
	if err != nil {
		return nil, fmt.Errorf("storing %q in %s: %w", key, g.Path(), err)
	}
	if err := ds.Write(arr.Bytes()); err != nil {
		return nil, fmt.Errorf("storing %q in %s: %w", key, g.Path(), err)
	}
	return ds, nil
}

// storeLazy streams an out-of-core array into a dense dataset. When the
// source chunk grid matches the destination's, chunks are copied one to
// one; otherwise the copy rechunks through one destination chunk of
// memory at a time, bounding the peak footprint regardless of total
// array size.
func storeLazy(g *container.Group, key string, lz *Lazy, opts []container.DatasetOption) (*container.Dataset, error) {
	dims := make([]uint64, 0, len(lz.Shape()))
	for _, d := range lz.Shape() {
		dims = append(dims, uint64(d))
	}
	ds, err := g.RequireDataset(key, lz.DType(), dims, opts...)
	if err != nil {
		return nil, fmt.Errorf("storing %q in %s: %w", key, g.Path(), err)
	}

	srcGrid := lz.Grid()
	dstGrid := ds.Grid()
	elemSize := lz.DType().Size()

	if srcGrid.Equal(dstGrid) {
		for i := 0; i < ds.NumChunks(); i++ {
			raw, err := lz.ds.ReadChunk(i)
			if err != nil {
				return nil, fmt.Errorf("storing %q in %s: %w", key, g.Path(), err)
			}
			if err := ds.WriteChunk(i, raw); err != nil {
				return nil, fmt.Errorf("storing %q in %s: %w", key, g.Path(), err)
			}
		}
		return ds, nil
	}

	for i := 0; i < ds.NumChunks(); i++ {
		coords := dstGrid.Coords(i)
		origin := dstGrid.Origin(coords)
		shape := dstGrid.ChunkShape(coords)

		buf := make([]byte, dstGrid.ChunkElements(i)*uint64(elemSize))
		hi := make([]uint64, len(origin))
		for d := range hi {
			hi[d] = origin[d] + shape[d]
		}
		for _, j := range srcGrid.OverlappingChunks(origin, hi) {
			srcRaw, err := lz.ds.ReadChunk(j)
			if err != nil {
				return nil, fmt.Errorf("storing %q in %s: %w", key, g.Path(), err)
			}
			srcCoords := srcGrid.Coords(j)
			chunkgrid.CopyOverlap(
				buf, origin, shape,
				srcRaw, srcGrid.Origin(srcCoords), srcGrid.ChunkShape(srcCoords),
				elemSize)
		}
		if err := ds.WriteChunk(i, buf); err != nil {
			return nil, fmt.Errorf("storing %q in %s: %w", key, g.Path(), err)
		}
	}
	return ds, nil
}

// storeRagged writes each row of a ragged array independently. The
// stored element dtype is the first row's, enforced at construction.
func storeRagged(g *container.Group, key string, rg *Ragged, opts []container.DatasetOption) (*container.Dataset, error) {
	ds, err := g.RequireRaggedDataset(key, rg.DType(), uint64(rg.Rows()), opts...)
	if err != nil {
		return nil, fmt.Errorf("storing %q in %s: %w", key, g.Path(), err)
	}
	for i := 0; i < rg.Rows(); i++ {
		raw := encodeSlice(rg.Row(i))
		if err := ds.WriteRow(i, raw, uint64(rg.RowLen(i))); err != nil {
			return nil, fmt.Errorf("storing %q in %s: %w", key, g.Path(), err)
		}
	}
	return ds, nil
}

// storeUnicode writes a string list as a variable-length UTF-8 dataset.
func storeUnicode(g *container.Group, key string, strs []string, opts []container.DatasetOption) (*container.Dataset, error) {
	ds, err := g.RequireRaggedDataset(key, container.String, uint64(len(strs)), opts...)
	if err != nil {
		return nil, fmt.Errorf("storing %q in %s: %w", key, g.Path(), err)
	}
	for i, s := range strs {
		if err := ds.WriteRow(i, []byte(s), uint64(len(s))); err != nil {
			return nil, fmt.Errorf("storing %q in %s: %w", key, g.Path(), err)
		}
	}
	return ds, nil
}
