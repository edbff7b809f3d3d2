package sigfile

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/robert-malhotra/go-sigfile/container"
)

// Read reconstructs every SignalRecord stored in the container at path.
//
// The version negotiator runs before any structural interpretation: a
// missing or foreign format tag rejects the file, a newer version logs a
// warning and reads best-effort. With WithLazy(true) the main datasets
// are returned as Lazy handles and the backing file stays open, owned by
// them; otherwise everything is materialized and the file is closed
// before returning.
func Read(path string, opts ...ReadOption) ([]*SignalRecord, error) {
	o := defaultReadOptions()
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	f, err := container.Open(path)
	if err != nil {
		if errors.Is(err, container.ErrNotContainer) {
			return nil, fmt.Errorf("read %s: %w: %v", path, ErrInvalidFormat, err)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	records, err := readAll(f, o, logger)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	// The file stays open only when some record actually holds a Lazy
	// handle to it. Ragged and string records are always materialized, so
	// a lazy read that produced none would otherwise leak the descriptor.
	if !o.lazy || !anyLazyData(records) {
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("read %s: closing: %w", path, err)
		}
	}
	return records, nil
}

func anyLazyData(records []*SignalRecord) bool {
	for _, rec := range records {
		if rec.Attributes.Lazy {
			return true
		}
	}
	return false
}

func readAll(f *container.File, o *readOptions, logger *slog.Logger) ([]*SignalRecord, error) {
	root := f.Root()

	format, _ := root.Attr(attrFileFormat)
	version, _ := root.Attr(attrFileVersion)
	formatStr, _ := format.(string)
	versionStr, _ := version.(string)
	if err := o.policy.CheckRead(formatStr, versionStr, logger); err != nil {
		return nil, err
	}

	exps, err := root.Group(experimentsGroup)
	if err != nil {
		return nil, fmt.Errorf("%w: missing %s group", ErrInvalidFormat, experimentsGroup)
	}

	var records []*SignalRecord
	for _, name := range exps.Groups() {
		expg, err := exps.Group(name)
		if err != nil {
			return nil, err
		}
		rec, err := readExperiment(f, expg, o.lazy)
		if err != nil {
			return nil, fmt.Errorf("experiment %q: %w", name, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// readExperiment reconstructs one record from its experiment group.
func readExperiment(f *container.File, expg *container.Group, lazy bool) (*SignalRecord, error) {
	rec := &SignalRecord{}

	ds, err := expg.Dataset(dataKey)
	if err != nil {
		return nil, fmt.Errorf("%w: missing %s dataset", ErrInvalidFormat, dataKey)
	}

	switch {
	case ds.IsVarLen() && ds.DType() == container.String:
		strs, err := readUnicode(ds)
		if err != nil {
			return nil, err
		}
		rec.Data = strs
	case ds.IsVarLen():
		// Ragged data is reconstructed as independently shaped rows and
		// is never coerced into a dense array; lazy mode does not apply.
		rg, err := readRagged(ds)
		if err != nil {
			return nil, err
		}
		rec.Data = rg
	case lazy:
		rec.Data = newLazy(f, ds)
		rec.Attributes.Lazy = true
	default:
		arr, err := readDense(ds)
		if err != nil {
			return nil, err
		}
		rec.Data = arr
	}

	if rec.Axes, err = readAxes(expg); err != nil {
		return nil, err
	}

	if rec.Metadata, err = readOptionalMap(expg, metadataGroup); err != nil {
		return nil, err
	}
	if rec.OriginalMetadata, err = readOptionalMap(expg, origMetadataGroup); err != nil {
		return nil, err
	}
	if rec.TransientParameters, err = readOptionalMap(expg, transientGroup); err != nil {
		return nil, err
	}
	if rec.LearningResults, err = readOptionalMap(expg, learningGroup); err != nil {
		return nil, err
	}

	return rec, nil
}

// readDense materializes a dense dataset as an Array.
func readDense(ds *container.Dataset) (*Array, error) {
	raw, err := ds.Read()
	if err != nil {
		return nil, err
	}
	dims := ds.Shape()
	shape := make([]int, len(dims))
	for i, d := range dims {
		shape[i] = int(d)
	}
	arr, err := arrayFromBytes(ds.DType(), raw, shape)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", ds.Path(), err)
	}
	return arr, nil
}

// readRagged reconstructs a variable-length dataset as a Ragged array.
func readRagged(ds *container.Dataset) (*Ragged, error) {
	rows := make([]any, ds.Rows())
	for i := range rows {
		raw, _, err := ds.ReadRow(i)
		if err != nil {
			return nil, err
		}
		row, err := decodeSlice(ds.DType(), raw)
		if err != nil {
			return nil, fmt.Errorf("dataset %s row %d: %w", ds.Path(), i, err)
		}
		rows[i] = row
	}
	return NewRagged(rows...)
}

// readUnicode reconstructs a variable-length string dataset.
func readUnicode(ds *container.Dataset) ([]string, error) {
	out := make([]string, ds.Rows())
	for i := range out {
		raw, _, err := ds.ReadRow(i)
		if err != nil {
			return nil, err
		}
		out[i] = string(raw)
	}
	return out, nil
}

// readAxes reassembles the ordered axis list using each child group's
// stored position index, not the backend's child order.
func readAxes(expg *container.Group) ([]Axis, error) {
	ag, err := expg.Group(axesGroupName)
	if err != nil {
		return nil, nil // absent axes are simply not present
	}

	type indexed struct {
		index int64
		axis  Axis
	}
	var axes []indexed
	for _, name := range ag.Groups() {
		g, err := ag.Group(name)
		if err != nil {
			return nil, err
		}
		idx, ok := g.Attr(axisIndexAttr)
		if !ok {
			return nil, fmt.Errorf("%w: axis group %q lacks %s attribute", ErrInvalidFormat, name, axisIndexAttr)
		}
		index, ok := idx.(int64)
		if !ok {
			return nil, fmt.Errorf("%w: axis group %q has non-integer index", ErrInvalidFormat, name)
		}
		ax, err := readAxis(g)
		if err != nil {
			return nil, fmt.Errorf("axis group %q: %w", name, err)
		}
		axes = append(axes, indexed{index: index, axis: ax})
	}

	sort.Slice(axes, func(i, j int) bool { return axes[i].index < axes[j].index })
	out := make([]Axis, len(axes))
	for i, a := range axes {
		out[i] = a.axis
	}
	return out, nil
}

func readAxis(g *container.Group) (Axis, error) {
	var ax Axis
	if v, ok := g.Attr("name"); ok {
		ax.Name, _ = v.(string)
	}
	if v, ok := g.Attr("units"); ok {
		ax.Units, _ = v.(string)
	}
	if v, ok := g.Attr("navigate"); ok {
		ax.Navigate, _ = v.(bool)
	}
	if v, ok := g.Attr("binned"); ok {
		ax.Binned, _ = v.(bool)
	}

	uniform := true
	if v, ok := g.Attr("uniform"); ok {
		uniform, _ = v.(bool)
	}
	if uniform {
		if v, ok := g.Attr("offset"); ok {
			ax.Offset, _ = v.(float64)
		}
		if v, ok := g.Attr("scale"); ok {
			ax.Scale, _ = v.(float64)
		}
		if v, ok := g.Attr("size"); ok {
			size, _ := v.(int64)
			ax.Size = int(size)
		}
		return ax, nil
	}

	ds, err := g.Dataset(axisValuesKey)
	if err != nil {
		return ax, fmt.Errorf("%w: explicit axis lacks %s dataset", ErrInvalidFormat, axisValuesKey)
	}
	arr, err := readDense(ds)
	if err != nil {
		return ax, err
	}
	values, ok := arr.Data().([]float64)
	if !ok {
		values = arr.Float64s()
	}
	ax.Values = values
	ax.Size = len(values)
	return ax, nil
}

// readOptionalMap reads a nested metadata group, returning an empty map
// when the group is absent.
func readOptionalMap(parent *container.Group, name string) (Map, error) {
	g, err := parent.Group(name)
	if err != nil {
		return Map{}, nil // not present is not an error
	}
	return readTree(g)
}

// readTree mirrors writeTree: attributes become scalars, datasets become
// arrays (dense, ragged, or string lists), child groups recurse.
func readTree(g *container.Group) (Map, error) {
	m := Map{}

	for _, name := range g.AttrNames() {
		v, _ := g.Attr(name)
		m[name] = v
	}

	for _, name := range g.Datasets() {
		ds, err := g.Dataset(name)
		if err != nil {
			return nil, err
		}
		switch {
		case ds.IsVarLen() && ds.DType() == container.String:
			strs, err := readUnicode(ds)
			if err != nil {
				return nil, err
			}
			m[name] = strs
		case ds.IsVarLen():
			rg, err := readRagged(ds)
			if err != nil {
				return nil, err
			}
			m[name] = rg
		default:
			arr, err := readDense(ds)
			if err != nil {
				return nil, err
			}
			m[name] = arr
		}
	}

	for _, name := range g.Groups() {
		child, err := g.Group(name)
		if err != nil {
			return nil, err
		}
		sub, err := readTree(child)
		if err != nil {
			return nil, err
		}
		m[name] = sub
	}

	return m, nil
}
