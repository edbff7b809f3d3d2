package chunkgrid

// OverlappingChunks returns the row-major indices of every chunk in g that
// intersects the half-open element region [lo, hi).
func (g Grid) OverlappingChunks(lo, hi []uint64) []int {
	ndim := len(g.dims)
	if ndim == 0 {
		return []int{0}
	}

	first := make([]uint64, ndim)
	last := make([]uint64, ndim)
	for d := 0; d < ndim; d++ {
		if hi[d] <= lo[d] {
			return nil
		}
		first[d] = lo[d] / g.chunks[d]
		last[d] = (hi[d] - 1) / g.chunks[d]
	}

	counts := g.Counts()
	var out []int
	coords := make([]uint64, ndim)
	copy(coords, first)
	for {
		idx := 0
		for d := 0; d < ndim; d++ {
			idx = idx*int(counts[d]) + int(coords[d])
		}
		out = append(out, idx)

		d := ndim - 1
		for ; d >= 0; d-- {
			coords[d]++
			if coords[d] <= last[d] {
				break
			}
			coords[d] = first[d]
		}
		if d < 0 {
			return out
		}
	}
}

// CopyOverlap copies the intersection of two chunk-local, row-major
// buffers. Each buffer covers the element region starting at its origin
// with its shape; only the overlapping region is copied, in contiguous
// runs along the innermost dimension.
func CopyOverlap(dst []byte, dstOrigin, dstShape []uint64, src []byte, srcOrigin, srcShape []uint64, elemSize int) {
	ndim := len(dstShape)
	if ndim == 0 {
		copy(dst[:elemSize], src[:elemSize])
		return
	}

	lo := make([]uint64, ndim)
	hi := make([]uint64, ndim)
	for d := 0; d < ndim; d++ {
		lo[d] = maxU64(dstOrigin[d], srcOrigin[d])
		hi[d] = minU64(dstOrigin[d]+dstShape[d], srcOrigin[d]+srcShape[d])
		if hi[d] <= lo[d] {
			return // no overlap
		}
	}

	dstStrides := strides(dstShape)
	srcStrides := strides(srcShape)

	runLen := int(hi[ndim-1]-lo[ndim-1]) * elemSize
	pos := make([]uint64, ndim-1)
	copy(pos, lo[:ndim-1])
	for {
		dstElem := lo[ndim-1] - dstOrigin[ndim-1]
		srcElem := lo[ndim-1] - srcOrigin[ndim-1]
		for d := 0; d < ndim-1; d++ {
			dstElem += (pos[d] - dstOrigin[d]) * dstStrides[d]
			srcElem += (pos[d] - srcOrigin[d]) * srcStrides[d]
		}
		dOff := int(dstElem) * elemSize
		sOff := int(srcElem) * elemSize
		copy(dst[dOff:dOff+runLen], src[sOff:sOff+runLen])

		d := ndim - 2
		for ; d >= 0; d-- {
			pos[d]++
			if pos[d] < hi[d] {
				break
			}
			pos[d] = lo[d]
		}
		if d < 0 {
			return
		}
	}
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
