package container

import (
	"bytes"
	"fmt"
	"io"

	"github.com/batchatco/go-thrower"

	"github.com/robert-malhotra/go-sigfile/internal/binary"
	"github.com/robert-malhotra/go-sigfile/internal/chunkgrid"
)

// Attribute kind tags in the serialized index.
const (
	attrInt64 = iota
	attrFloat64
	attrBool
	attrString
)

// Dataset flag bits.
const dsFlagVarLen = 1 << 0

// maxIndexDepth bounds group nesting during decode so a corrupt index
// cannot recurse without limit.
const maxIndexDepth = 200

// sliceWriter adapts a growable byte slice to io.WriterAt so the index
// can be serialized with the same binary.Writer used for the file body.
type sliceWriter struct {
	buf []byte
}

func (s *sliceWriter) WriteAt(p []byte, off int64) (int, error) {
	end := int(off) + len(p)
	if end > len(s.buf) {
		grown := make([]byte, end)
		copy(grown, s.buf)
		s.buf = grown
	}
	copy(s.buf[off:], p)
	return len(p), nil
}

// encodeIndex serializes the group tree rooted at g.
func encodeIndex(root *Group) ([]byte, error) {
	sw := &sliceWriter{}
	w := binary.NewWriter(sw)
	if err := encodeGroup(w, root); err != nil {
		return nil, err
	}
	return sw.buf, nil
}

func encodeGroup(w *binary.Writer, g *Group) error {
	if err := w.WriteString(g.name); err != nil {
		return err
	}

	if err := w.WriteUint32(uint32(len(g.attrOrder))); err != nil {
		return err
	}
	for _, name := range g.attrOrder {
		if err := encodeAttr(w, name, g.attrs[name]); err != nil {
			return fmt.Errorf("attribute %q on %s: %w", name, g.path, err)
		}
	}

	if err := w.WriteUint32(uint32(len(g.dsOrder))); err != nil {
		return err
	}
	for _, name := range g.dsOrder {
		if err := encodeDataset(w, g.datasets[name]); err != nil {
			return fmt.Errorf("dataset %q in %s: %w", name, g.path, err)
		}
	}

	if err := w.WriteUint32(uint32(len(g.childOrder))); err != nil {
		return err
	}
	for _, name := range g.childOrder {
		if err := encodeGroup(w, g.children[name]); err != nil {
			return err
		}
	}
	return nil
}

func encodeAttr(w *binary.Writer, name string, value any) error {
	if err := w.WriteString(name); err != nil {
		return err
	}
	switch v := value.(type) {
	case int64:
		if err := w.WriteUint8(attrInt64); err != nil {
			return err
		}
		return w.WriteInt64(v)
	case float64:
		if err := w.WriteUint8(attrFloat64); err != nil {
			return err
		}
		return w.WriteFloat64(v)
	case bool:
		if err := w.WriteUint8(attrBool); err != nil {
			return err
		}
		b := uint8(0)
		if v {
			b = 1
		}
		return w.WriteUint8(b)
	case string:
		if err := w.WriteUint8(attrString); err != nil {
			return err
		}
		return w.WriteString(v)
	default:
		return fmt.Errorf("%w: %T", ErrBadAttr, value)
	}
}

func encodeDataset(w *binary.Writer, ds *Dataset) error {
	if err := w.WriteString(ds.name); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(ds.dtype)); err != nil {
		return err
	}
	var flags uint8
	if ds.varlen {
		flags |= dsFlagVarLen
	}
	if err := w.WriteUint8(flags); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(ds.spec.Codec)); err != nil {
		return err
	}
	shuf := uint8(0)
	if ds.spec.Shuffle {
		shuf = 1
	}
	if err := w.WriteUint8(shuf); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(ds.spec.Level)); err != nil {
		return err
	}

	if err := w.WriteUint32(uint32(len(ds.dims))); err != nil {
		return err
	}
	for _, d := range ds.dims {
		if err := w.WriteUint64(d); err != nil {
			return err
		}
	}

	if ds.varlen {
		if err := w.WriteUint32(uint32(len(ds.rows))); err != nil {
			return err
		}
		for _, row := range ds.rows {
			if err := w.WriteUint64(row.off); err != nil {
				return err
			}
			if err := w.WriteUint64(row.size); err != nil {
				return err
			}
			if err := w.WriteUint64(row.count); err != nil {
				return err
			}
		}
		return nil
	}

	chunkDims := ds.grid.ChunkDims()
	if err := w.WriteUint32(uint32(len(chunkDims))); err != nil {
		return err
	}
	for _, c := range chunkDims {
		if err := w.WriteUint64(c); err != nil {
			return err
		}
	}
	if err := w.WriteUint32(uint32(len(ds.chunks))); err != nil {
		return err
	}
	for _, ext := range ds.chunks {
		if err := w.WriteUint64(ext.off); err != nil {
			return err
		}
		if err := w.WriteUint64(ext.size); err != nil {
			return err
		}
	}
	return nil
}

// readIndex reads and decodes the index footer into a group tree.
//
// The decoder is deeply recursive over untrusted input, so it throws
// internally and converts back to an error at this boundary.
func (f *File) readIndex(off, length uint64) (root *Group, err error) {
	defer thrower.RecoverError(&err)

	if length > 1<<31 {
		return nil, fmt.Errorf("%w: implausible index length %d", ErrCorrupt, length)
	}
	r := f.reader.At(int64(off))
	buf, err := r.ReadBytes(int(length))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	br := binary.NewReader(bytes.NewReader(buf))
	root = decodeGroup(br, f, nil, 0, int64(len(buf)))
	return root, nil
}

// must throws a corrupt-index error if err is non-nil.
func must(err error) {
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			thrower.Throw(fmt.Errorf("%w: truncated", ErrCorrupt))
		}
		thrower.Throw(fmt.Errorf("%w: %v", ErrCorrupt, err))
	}
}

// mustCount throws when a count field claims more fixed-size entries than
// the remaining index bytes can hold, so a corrupt count cannot force a
// huge allocation.
func mustCount(n uint32, entryBytes int64, r *binary.Reader, end int64) {
	if int64(n)*entryBytes > end-r.Pos() {
		thrower.Throw(fmt.Errorf("%w: count %d exceeds remaining index bytes", ErrCorrupt, n))
	}
}

func decodeGroup(r *binary.Reader, f *File, parent *Group, depth int, end int64) *Group {
	if depth > maxIndexDepth {
		thrower.Throw(fmt.Errorf("%w: group nesting exceeds %d", ErrCorrupt, maxIndexDepth))
	}

	name, err := r.ReadString()
	must(err)
	g := newGroup(f, parent, name)

	nattrs, err := r.ReadUint32()
	must(err)
	for i := uint32(0); i < nattrs; i++ {
		aname, avalue := decodeAttr(r)
		if _, exists := g.attrs[aname]; !exists {
			g.attrOrder = append(g.attrOrder, aname)
		}
		g.attrs[aname] = avalue
	}

	ndatasets, err := r.ReadUint32()
	must(err)
	for i := uint32(0); i < ndatasets; i++ {
		ds := decodeDataset(r, g, end)
		g.addDataset(ds)
	}

	nchildren, err := r.ReadUint32()
	must(err)
	for i := uint32(0); i < nchildren; i++ {
		child := decodeGroup(r, f, g, depth+1, end)
		if _, exists := g.children[child.name]; !exists {
			g.childOrder = append(g.childOrder, child.name)
		}
		g.children[child.name] = child
	}

	return g
}

func decodeAttr(r *binary.Reader) (string, any) {
	name, err := r.ReadString()
	must(err)
	kind, err := r.ReadUint8()
	must(err)

	switch kind {
	case attrInt64:
		v, err := r.ReadInt64()
		must(err)
		return name, v
	case attrFloat64:
		v, err := r.ReadFloat64()
		must(err)
		return name, v
	case attrBool:
		v, err := r.ReadUint8()
		must(err)
		return name, v != 0
	case attrString:
		v, err := r.ReadString()
		must(err)
		return name, v
	default:
		thrower.Throw(fmt.Errorf("%w: unknown attribute kind %d for %q", ErrCorrupt, kind, name))
		return "", nil // unreachable
	}
}

func decodeDataset(r *binary.Reader, g *Group, end int64) *Dataset {
	name, err := r.ReadString()
	must(err)
	rawDType, err := r.ReadUint8()
	must(err)
	dt := DType(rawDType)
	if !dt.valid() {
		thrower.Throw(fmt.Errorf("%w: unknown dtype %d for dataset %q", ErrCorrupt, rawDType, name))
	}
	flags, err := r.ReadUint8()
	must(err)
	codec, err := r.ReadUint8()
	must(err)
	shuf, err := r.ReadUint8()
	must(err)
	level, err := r.ReadUint8()
	must(err)

	ndims, err := r.ReadUint32()
	must(err)
	mustCount(ndims, 8, r, end)
	dims := make([]uint64, ndims)
	for i := range dims {
		dims[i], err = r.ReadUint64()
		must(err)
	}

	options := &datasetOptions{
		codec:   Codec(codec),
		level:   int(int8(level)),
		shuffle: shuf != 0,
	}

	if flags&dsFlagVarLen != 0 {
		ds, err := newDataset(g, name, dt, dims, chunkgrid.New(nil, nil), options)
		must(err)
		ds.varlen = true

		nrows, err := r.ReadUint32()
		must(err)
		mustCount(nrows, 24, r, end)
		ds.rows = make([]rowExtent, nrows)
		for i := range ds.rows {
			ds.rows[i].off, err = r.ReadUint64()
			must(err)
			ds.rows[i].size, err = r.ReadUint64()
			must(err)
			ds.rows[i].count, err = r.ReadUint64()
			must(err)
		}
		return ds
	}

	nchunkDims, err := r.ReadUint32()
	must(err)
	mustCount(nchunkDims, 8, r, end)
	chunkDims := make([]uint64, nchunkDims)
	for i := range chunkDims {
		chunkDims[i], err = r.ReadUint64()
		must(err)
	}

	grid := chunkgrid.New(dims, chunkDims)
	ds, derr := newDataset(g, name, dt, dims, grid, options)
	must(derr)

	nchunks, err := r.ReadUint32()
	must(err)
	mustCount(nchunks, 16, r, end)
	if int(nchunks) != grid.NumChunks() {
		thrower.Throw(fmt.Errorf("%w: dataset %q has %d chunk extents, grid expects %d",
			ErrCorrupt, name, nchunks, grid.NumChunks()))
	}
	ds.chunks = make([]extent, nchunks)
	for i := range ds.chunks {
		ds.chunks[i].off, err = r.ReadUint64()
		must(err)
		ds.chunks[i].size, err = r.ReadUint64()
		must(err)
	}
	return ds
}
