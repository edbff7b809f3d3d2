package container

import (
	"fmt"
	"path"

	"github.com/robert-malhotra/go-sigfile/internal/chunkgrid"
	"github.com/robert-malhotra/go-sigfile/internal/filter"
)

// extent locates one stored chunk payload in the file body.
type extent struct {
	off  uint64
	size uint64
}

// rowExtent locates one stored variable-length row.
type rowExtent struct {
	off   uint64
	size  uint64
	count uint64 // element count of the decoded row
}

// Dataset is a typed n-dimensional dataset within a group, stored as a
// grid of filtered chunks, or as independently sized rows when
// variable-length.
type Dataset struct {
	file *File
	name string
	path string

	dtype DType
	dims  []uint64
	grid  chunkgrid.Grid
	spec  filter.Spec
	pipe  *filter.Pipeline

	chunks []extent // dense datasets, row-major grid order

	varlen bool
	rows   []rowExtent // variable-length datasets
}

// CreateDataset creates a dense dataset. The chunk shape defaults to the
// full dataset shape (a single chunk) unless WithChunks is given; it is
// clipped so no chunk dimension exceeds the dataset's shape.
func (g *Group) CreateDataset(name string, dt DType, dims []uint64, opts ...DatasetOption) (*Dataset, error) {
	if !g.file.Writable() {
		return nil, ErrNotWritable
	}
	if name == "" {
		return nil, fmt.Errorf("dataset name cannot be empty")
	}
	if !dt.valid() || dt == String {
		return nil, fmt.Errorf("dataset %q: invalid dense dtype %s", name, dt)
	}
	if _, exists := g.datasets[name]; exists {
		return nil, fmt.Errorf("dataset %q already exists in %s", name, g.path)
	}

	options := defaultDatasetOptions()
	for _, opt := range opts {
		opt(options)
	}

	grid := chunkgrid.New(dims, options.chunks)
	ds, err := newDataset(g, name, dt, dims, grid, options)
	if err != nil {
		return nil, err
	}
	ds.chunks = make([]extent, grid.NumChunks())
	g.addDataset(ds)
	return ds, nil
}

// RequireDataset returns the named dense dataset, creating it if absent.
// An existing dataset must match the requested dtype and shape exactly;
// a mismatch returns ErrShapeMismatch.
func (g *Group) RequireDataset(name string, dt DType, dims []uint64, opts ...DatasetOption) (*Dataset, error) {
	if ds, ok := g.datasets[name]; ok {
		if ds.varlen {
			return nil, fmt.Errorf("dataset %s: %w: existing dataset is variable-length", ds.path, ErrShapeMismatch)
		}
		if ds.dtype != dt || !sameDims(ds.dims, dims) {
			return nil, fmt.Errorf("dataset %s: %w: have %s %v, want %s %v",
				ds.path, ErrShapeMismatch, ds.dtype, ds.dims, dt, dims)
		}
		return ds, nil
	}
	return g.CreateDataset(name, dt, dims, opts...)
}

// CreateRaggedDataset creates a variable-length dataset with nrows
// independently shaped rows of element type dt.
func (g *Group) CreateRaggedDataset(name string, dt DType, nrows uint64, opts ...DatasetOption) (*Dataset, error) {
	if !g.file.Writable() {
		return nil, ErrNotWritable
	}
	if name == "" {
		return nil, fmt.Errorf("dataset name cannot be empty")
	}
	if !dt.valid() {
		return nil, fmt.Errorf("dataset %q: invalid dtype %s", name, dt)
	}
	if _, exists := g.datasets[name]; exists {
		return nil, fmt.Errorf("dataset %q already exists in %s", name, g.path)
	}

	options := defaultDatasetOptions()
	for _, opt := range opts {
		opt(options)
	}

	ds, err := newDataset(g, name, dt, []uint64{nrows}, chunkgrid.New(nil, nil), options)
	if err != nil {
		return nil, err
	}
	ds.varlen = true
	ds.rows = make([]rowExtent, nrows)
	g.addDataset(ds)
	return ds, nil
}

// RequireRaggedDataset returns the named variable-length dataset, creating
// it if absent. An existing dataset must match dtype and row count.
func (g *Group) RequireRaggedDataset(name string, dt DType, nrows uint64, opts ...DatasetOption) (*Dataset, error) {
	if ds, ok := g.datasets[name]; ok {
		if !ds.varlen {
			return nil, fmt.Errorf("dataset %s: %w: existing dataset is dense", ds.path, ErrShapeMismatch)
		}
		if ds.dtype != dt || uint64(len(ds.rows)) != nrows {
			return nil, fmt.Errorf("dataset %s: %w: have %s rows=%d, want %s rows=%d",
				ds.path, ErrShapeMismatch, ds.dtype, len(ds.rows), dt, nrows)
		}
		return ds, nil
	}
	return g.CreateRaggedDataset(name, dt, nrows, opts...)
}

func newDataset(g *Group, name string, dt DType, dims []uint64, grid chunkgrid.Grid, options *datasetOptions) (*Dataset, error) {
	spec := filter.Spec{
		Codec:    options.codec,
		Level:    options.level,
		Shuffle:  options.shuffle,
		ElemSize: dt.Size(),
	}
	pipe, err := filter.NewPipeline(spec)
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", name, err)
	}

	dsPath := path.Join(g.path, name)
	if g.path == "/" || g.path == "" {
		dsPath = "/" + name
	}

	d := make([]uint64, len(dims))
	copy(d, dims)

	return &Dataset{
		file:  g.file,
		name:  name,
		path:  dsPath,
		dtype: dt,
		dims:  d,
		grid:  grid,
		spec:  spec,
		pipe:  pipe,
	}, nil
}

// Name returns the dataset's name.
func (ds *Dataset) Name() string { return ds.name }

// Path returns the dataset's absolute path within the container.
func (ds *Dataset) Path() string { return ds.path }

// DType returns the element type.
func (ds *Dataset) DType() DType { return ds.dtype }

// Shape returns the dataset shape. For variable-length datasets this is
// the one-dimensional row count.
func (ds *Dataset) Shape() []uint64 {
	out := make([]uint64, len(ds.dims))
	copy(out, ds.dims)
	return out
}

// ChunkShape returns the effective (clipped) chunk shape.
func (ds *Dataset) ChunkShape() []uint64 {
	return ds.grid.ChunkDims()
}

// Grid returns the dataset's chunk grid.
func (ds *Dataset) Grid() chunkgrid.Grid { return ds.grid }

// NumChunks returns the number of chunks of a dense dataset.
func (ds *Dataset) NumChunks() int { return len(ds.chunks) }

// Codec returns the compression codec applied to chunks.
func (ds *Dataset) Codec() Codec { return ds.spec.Codec }

// Shuffled reports whether the byte shuffle filter is enabled.
func (ds *Dataset) Shuffled() bool { return ds.spec.Shuffle }

// IsVarLen reports whether this is a variable-length (ragged) dataset.
func (ds *Dataset) IsVarLen() bool { return ds.varlen }

// Rows returns the row count of a variable-length dataset.
func (ds *Dataset) Rows() int { return len(ds.rows) }

// Write stores a full dense dataset from its row-major raw bytes,
// splitting into chunks and running each through the filter pipeline.
func (ds *Dataset) Write(raw []byte) error {
	if ds.varlen {
		return fmt.Errorf("dataset %s: Write on variable-length dataset", ds.path)
	}
	want := ds.grid.NumElements() * uint64(ds.dtype.Size())
	if uint64(len(raw)) != want {
		return fmt.Errorf("dataset %s: %w: got %d bytes, want %d", ds.path, ErrShapeMismatch, len(raw), want)
	}
	for i := range ds.chunks {
		decoded, err := ds.grid.Extract(raw, ds.dtype.Size(), i)
		if err != nil {
			return fmt.Errorf("dataset %s: %w", ds.path, err)
		}
		if err := ds.WriteChunk(i, decoded); err != nil {
			return err
		}
	}
	return nil
}

// WriteChunk stores one decoded chunk by its row-major grid index. The
// decoded size must match the chunk's clipped shape exactly.
func (ds *Dataset) WriteChunk(i int, decoded []byte) error {
	if !ds.file.Writable() {
		return ErrNotWritable
	}
	if ds.varlen {
		return fmt.Errorf("dataset %s: WriteChunk on variable-length dataset", ds.path)
	}
	if i < 0 || i >= len(ds.chunks) {
		return fmt.Errorf("dataset %s: chunk index %d out of range [0,%d)", ds.path, i, len(ds.chunks))
	}
	want := ds.grid.ChunkElements(i) * uint64(ds.dtype.Size())
	if uint64(len(decoded)) != want {
		return fmt.Errorf("dataset %s chunk %d: %w: got %d bytes, want %d",
			ds.path, i, ErrShapeMismatch, len(decoded), want)
	}

	encoded, err := ds.pipe.Encode(decoded)
	if err != nil {
		return fmt.Errorf("dataset %s chunk %d: %w", ds.path, i, err)
	}

	ext := ds.chunks[i]
	if ext.off == 0 || uint64(len(encoded)) > ext.size {
		ext.off = ds.file.allocate(uint64(len(encoded)))
	}
	ext.size = uint64(len(encoded))

	w := ds.file.writer.At(int64(ext.off))
	if err := w.WriteBytes(encoded); err != nil {
		return fmt.Errorf("dataset %s chunk %d: writing: %w", ds.path, i, err)
	}
	ds.chunks[i] = ext
	return nil
}

// Read materializes the full dense dataset as row-major raw bytes.
func (ds *Dataset) Read() ([]byte, error) {
	if ds.varlen {
		return nil, fmt.Errorf("dataset %s: Read on variable-length dataset", ds.path)
	}
	chunks := make([][]byte, len(ds.chunks))
	for i := range ds.chunks {
		decoded, err := ds.ReadChunk(i)
		if err != nil {
			return nil, err
		}
		chunks[i] = decoded
	}
	raw, err := ds.grid.Assemble(chunks, ds.dtype.Size())
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", ds.path, err)
	}
	return raw, nil
}

// ReadChunk reads and decodes one chunk by its row-major grid index.
func (ds *Dataset) ReadChunk(i int) ([]byte, error) {
	if ds.file.closed {
		return nil, ErrClosed
	}
	if ds.varlen {
		return nil, fmt.Errorf("dataset %s: ReadChunk on variable-length dataset", ds.path)
	}
	if i < 0 || i >= len(ds.chunks) {
		return nil, fmt.Errorf("dataset %s: chunk index %d out of range [0,%d)", ds.path, i, len(ds.chunks))
	}
	ext := ds.chunks[i]
	if ext.off == 0 {
		// Never written: all zeros, the decoded size of the chunk.
		return make([]byte, ds.grid.ChunkElements(i)*uint64(ds.dtype.Size())), nil
	}
	r := ds.file.reader.At(int64(ext.off))
	encoded, err := r.ReadBytes(int(ext.size))
	if err != nil {
		return nil, fmt.Errorf("dataset %s chunk %d: reading: %w", ds.path, i, err)
	}
	decoded, err := ds.pipe.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("dataset %s chunk %d: %w", ds.path, i, err)
	}
	return decoded, nil
}

// WriteRow stores one row of a variable-length dataset. count is the
// number of elements in the decoded row.
func (ds *Dataset) WriteRow(i int, decoded []byte, count uint64) error {
	if !ds.file.Writable() {
		return ErrNotWritable
	}
	if !ds.varlen {
		return fmt.Errorf("dataset %s: WriteRow on dense dataset", ds.path)
	}
	if i < 0 || i >= len(ds.rows) {
		return fmt.Errorf("dataset %s: row %d out of range [0,%d)", ds.path, i, len(ds.rows))
	}
	if uint64(len(decoded)) != count*uint64(ds.dtype.Size()) {
		return fmt.Errorf("dataset %s row %d: %w: got %d bytes for %d elements of %s",
			ds.path, i, ErrShapeMismatch, len(decoded), count, ds.dtype)
	}

	encoded, err := ds.pipe.Encode(decoded)
	if err != nil {
		return fmt.Errorf("dataset %s row %d: %w", ds.path, i, err)
	}

	ext := ds.rows[i]
	if ext.off == 0 || uint64(len(encoded)) > ext.size {
		ext.off = ds.file.allocate(uint64(len(encoded)))
	}
	ext.size = uint64(len(encoded))
	ext.count = count

	w := ds.file.writer.At(int64(ext.off))
	if err := w.WriteBytes(encoded); err != nil {
		return fmt.Errorf("dataset %s row %d: writing: %w", ds.path, i, err)
	}
	ds.rows[i] = ext
	return nil
}

// ReadRow reads one decoded row of a variable-length dataset and its
// element count.
func (ds *Dataset) ReadRow(i int) ([]byte, uint64, error) {
	if ds.file.closed {
		return nil, 0, ErrClosed
	}
	if !ds.varlen {
		return nil, 0, fmt.Errorf("dataset %s: ReadRow on dense dataset", ds.path)
	}
	if i < 0 || i >= len(ds.rows) {
		return nil, 0, fmt.Errorf("dataset %s: row %d out of range [0,%d)", ds.path, i, len(ds.rows))
	}
	ext := ds.rows[i]
	if ext.off == 0 {
		return nil, 0, nil // never written: empty row
	}
	r := ds.file.reader.At(int64(ext.off))
	encoded, err := r.ReadBytes(int(ext.size))
	if err != nil {
		return nil, 0, fmt.Errorf("dataset %s row %d: reading: %w", ds.path, i, err)
	}
	decoded, err := ds.pipe.Decode(encoded)
	if err != nil {
		return nil, 0, fmt.Errorf("dataset %s row %d: %w", ds.path, i, err)
	}
	return decoded, ext.count, nil
}

func sameDims(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
