package sigfile

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/robert-malhotra/go-sigfile/container"
)

// Child names within an experiment group.
const (
	dataKey            = "data"
	axesGroupName      = "axes"
	metadataGroup      = "metadata"
	origMetadataGroup  = "original_metadata"
	transientGroup     = "transient_parameters"
	learningGroup      = "learning_results"
	untitledRecord     = "__unnamed__"
	axisIndexAttr      = "index"
	axisValuesKey      = "values"
)

// sanitizeTitle derives a group name from a record title. The path
// separator is not a valid group name character, so it is replaced by a
// hyphen. The replacement is lossy and is also applied to the stored
// metadata title.
func sanitizeTitle(title string) string {
	if title == "" {
		return untitledRecord
	}
	return strings.ReplaceAll(title, "/", "-")
}

// Write persists a SignalRecord to a container at path.
//
// The root is stamped with the format tag and version, the record is
// written under Experiments/<sanitized title>, and each metadata leaf is
// classified and stored as a child group, attribute, or dataset. An
// existing record group with the same name is replaced, not merged.
func Write(path string, rec *SignalRecord, opts ...WriteOption) error {
	o := defaultWriteOptions()
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	codec, err := container.ParseCodec(o.compression)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}

	// WriteDataset(false) only updates attributes and metadata, so the
	// container must already exist and be opened appendable. Rejected
	// before any I/O.
	if !o.writeDataset && !o.appendMode && o.file == nil {
		return fmt.Errorf("%w: WriteDataset(false) requires Append() or an already-open handle", ErrConfig)
	}

	f := o.file
	owned := false
	if f != nil {
		if f.Closed() {
			return fmt.Errorf("write %s: %w", path, container.ErrClosed)
		}
		if !f.Writable() {
			// The caller holds this handle read-only (typically backing a
			// lazy record on the same file). Overwriting through it would
			// corrupt the lazily referenced array.
			return fmt.Errorf("write %s: %w: reopen the file writable to overwrite a lazy record", path, ErrModeConflict)
		}
	} else if o.appendMode {
		f, err = container.OpenReadWrite(path)
		if err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		owned = true
	} else {
		if err := checkLazySelfTarget(rec, path); err != nil {
			return err
		}
		f, err = container.Create(path)
		if err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		owned = true
	}

	dataDS, err := writeRecord(f, rec, o, codec, logger)
	if err != nil {
		if owned {
			f.Close()
		}
		return fmt.Errorf("write %s: %w", path, err)
	}

	if o.closeFile {
		if err := f.Close(); err != nil {
			return fmt.Errorf("write %s: closing: %w", path, err)
		}
		return nil
	}

	if err := f.Flush(); err != nil {
		return fmt.Errorf("write %s: flushing: %w", path, err)
	}
	// Leave the file open for continued lazy access: the record's data
	// becomes a lazy view of the stored dataset, which owns the handle.
	if dataDS != nil {
		rec.Data = newLazy(f, dataDS)
		rec.Attributes.Lazy = true
	}
	return nil
}

// checkLazySelfTarget rejects a truncating write to the file that backs
// the record's own lazy data, which would destroy the source before it
// could be copied. The target is identified by handle metadata, never by
// comparing path strings.
func checkLazySelfTarget(rec *SignalRecord, path string) error {
	lz, ok := rec.Data.(*Lazy)
	if !ok || lz.File().Closed() {
		return nil
	}
	src, err := lz.File().Stat()
	if err != nil {
		return nil
	}
	dst, err := os.Stat(path)
	if err != nil {
		return nil
	}
	if os.SameFile(src, dst) {
		return fmt.Errorf("write %s: %w: record data is lazily backed by the target file; use WithFile or Append", path, ErrModeConflict)
	}
	return nil
}

// writeRecord stamps the root and writes one record's group tree.
// It returns the main data dataset, if one was written or already exists.
func writeRecord(f *container.File, rec *SignalRecord, o *writeOptions, codec container.Codec, logger *slog.Logger) (*container.Dataset, error) {
	root := f.Root()
	if err := root.SetAttr(attrFileFormat, FileFormat); err != nil {
		return nil, err
	}
	if err := root.SetAttr(attrFileVersion, o.policy.Current); err != nil {
		return nil, err
	}

	exps, err := root.RequireGroup(experimentsGroup)
	if err != nil {
		return nil, err
	}

	name := sanitizeTitle(rec.Title())
	if title := rec.Title(); title != "" && title != name {
		logger.Warn("record title contains path separators, storing sanitized name",
			"title", title, "stored", name)
	}
	if o.writeDataset {
		// Collisions are overwritten, not merged.
		if err := exps.RemoveGroup(name); err != nil {
			return nil, err
		}
	}
	expg, err := exps.RequireGroup(name)
	if err != nil {
		return nil, err
	}

	base := []container.DatasetOption{
		container.WithCodec(codec),
		container.WithCompressionLevel(o.level),
	}
	if !o.shuffle {
		base = append(base, container.WithoutShuffle())
	}

	var dataDS *container.Dataset
	if o.writeDataset {
		dataDS, err = writeData(expg, rec, o, base)
		if err != nil {
			return nil, err
		}
	} else if ds, derr := expg.Dataset(dataKey); derr == nil {
		dataDS = ds
	}

	if err := writeAxes(expg, rec.Axes, base); err != nil {
		return nil, err
	}

	meta := rec.Metadata
	if title := rec.Title(); title != "" && title != sanitizeTitle(title) {
		meta = withSanitizedTitle(meta, sanitizeTitle(title))
	}
	if err := writeMap(expg, metadataGroup, meta, base); err != nil {
		return nil, err
	}
	if err := writeMap(expg, origMetadataGroup, rec.OriginalMetadata, base); err != nil {
		return nil, err
	}
	if err := writeMap(expg, transientGroup, rec.TransientParameters, base); err != nil {
		return nil, err
	}
	if len(rec.LearningResults) > 0 {
		if err := writeMap(expg, learningGroup, rec.LearningResults, base); err != nil {
			return nil, err
		}
	}

	return dataDS, nil
}

// writeData stores the record's main array under the experiment group.
func writeData(expg *container.Group, rec *SignalRecord, o *writeOptions, base []container.DatasetOption) (*container.Dataset, error) {
	if rec.Data == nil {
		return nil, fmt.Errorf("record %q: %w: record has no data", expg.Name(), ErrUnsupportedValue)
	}
	enc, err := classify(rec.Data)
	if err != nil {
		return nil, fmt.Errorf("record %q data: %w", expg.Name(), err)
	}

	switch enc {
	case encDenseArray:
		if lz, ok := rec.Data.(*Lazy); ok {
			opts := append(base, container.WithChunks(mainChunks(o, lazyDims(lz), lz.DType().Size(), signalDims(rec.Axes))...))
			return storeLazy(expg, dataKey, lz, opts)
		}
		arr, err := asArray(rec.Data)
		if err != nil {
			return nil, fmt.Errorf("record %q data: %w", expg.Name(), err)
		}
		opts := append(base, container.WithChunks(mainChunks(o, arr.shapeU64(), arr.DType().Size(), signalDims(rec.Axes))...))
		return storeDense(expg, dataKey, arr, opts)
	case encRaggedArray:
		rg, err := asRagged(rec.Data)
		if err != nil {
			return nil, fmt.Errorf("record %q data: %w", expg.Name(), err)
		}
		return storeRagged(expg, dataKey, rg, base)
	case encUnicodeSeq:
		return storeUnicode(expg, dataKey, rec.Data.([]string), base)
	default:
		return nil, fmt.Errorf("record %q data: %w: %s cannot be the main array", expg.Name(), ErrUnsupportedValue, enc)
	}
}

// mainChunks returns the caller's explicit chunk shape, or the heuristic.
func mainChunks(o *writeOptions, dims []uint64, elemSize, sigDims int) []uint64 {
	if o.chunks != nil {
		return o.chunks
	}
	return heuristicChunks(dims, elemSize, sigDims)
}

func lazyDims(lz *Lazy) []uint64 {
	shape := lz.Shape()
	dims := make([]uint64, len(shape))
	for i, d := range shape {
		dims[i] = uint64(d)
	}
	return dims
}

// signalDims counts the trailing non-navigation axes.
func signalDims(axes []Axis) int {
	n := 0
	for _, ax := range axes {
		if !ax.Navigate {
			n++
		}
	}
	if n == 0 {
		return len(axes)
	}
	return n
}

// writeAxes writes the ordered axis descriptors as axes/<index> child
// groups, each tagged with its position so read-back order never depends
// on the backend's child ordering.
func writeAxes(expg *container.Group, axes []Axis, base []container.DatasetOption) error {
	if len(axes) == 0 {
		return nil
	}
	ag, err := expg.RequireGroup(axesGroupName)
	if err != nil {
		return err
	}
	for i, ax := range axes {
		g, err := ag.RequireGroup(strconv.Itoa(i))
		if err != nil {
			return err
		}
		if err := g.SetAttr(axisIndexAttr, i); err != nil {
			return err
		}
		if err := g.SetAttr("name", ax.Name); err != nil {
			return err
		}
		if err := g.SetAttr("units", ax.Units); err != nil {
			return err
		}
		if err := g.SetAttr("navigate", ax.Navigate); err != nil {
			return err
		}
		if err := g.SetAttr("binned", ax.Binned); err != nil {
			return err
		}
		if err := g.SetAttr("uniform", ax.IsUniform()); err != nil {
			return err
		}
		if ax.IsUniform() {
			if err := g.SetAttr("offset", ax.Offset); err != nil {
				return err
			}
			if err := g.SetAttr("scale", ax.Scale); err != nil {
				return err
			}
			if err := g.SetAttr("size", ax.Size); err != nil {
				return err
			}
			continue
		}
		arr, err := NewArray(ax.AxisValues())
		if err != nil {
			return fmt.Errorf("axis %d: %w", i, err)
		}
		if _, err := storeDense(g, axisValuesKey, arr, base); err != nil {
			return fmt.Errorf("axis %d: %w", i, err)
		}
	}
	return nil
}

// writeMap writes a nested metadata mapping as a child group.
func writeMap(parent *container.Group, name string, m Map, base []container.DatasetOption) error {
	g, err := parent.RequireGroup(name)
	if err != nil {
		return err
	}
	return writeTree(g, m, base)
}

// writeTree recursively descends a nested mapping, classifying each leaf
// and storing it as an attribute, dataset, or child group. Keys are
// visited in sorted order so repeated writes produce identical files.
func writeTree(g *container.Group, m Map, base []container.DatasetOption) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := m[key]
		enc, err := classify(value)
		if err != nil {
			return fmt.Errorf("key %q in %s: %w", key, g.Path(), err)
		}
		switch enc {
		case encGroup:
			child, err := g.RequireGroup(key)
			if err != nil {
				return err
			}
			if err := writeTree(child, value.(Map), base); err != nil {
				return err
			}
		case encScalarAttr:
			if err := g.SetAttr(key, value); err != nil {
				return err
			}
		case encDenseArray:
			arr, err := asArray(value)
			if err != nil {
				return fmt.Errorf("key %q in %s: %w", key, g.Path(), err)
			}
			if _, err := storeDense(g, key, arr, base); err != nil {
				return err
			}
		case encRaggedArray:
			rg, err := asRagged(value)
			if err != nil {
				return fmt.Errorf("key %q in %s: %w", key, g.Path(), err)
			}
			if _, err := storeRagged(g, key, rg, base); err != nil {
				return err
			}
		case encUnicodeSeq:
			if _, err := storeUnicode(g, key, value.([]string), base); err != nil {
				return err
			}
		}
	}
	return nil
}

// withSanitizedTitle returns a copy of the metadata with
// General.title replaced by the sanitized group name. The original
// title is not recoverable from the file.
func withSanitizedTitle(m Map, title string) Map {
	out := make(Map, len(m))
	for k, v := range m {
		out[k] = v
	}
	general, _ := m["General"].(Map)
	newGeneral := make(Map, len(general)+1)
	for k, v := range general {
		newGeneral[k] = v
	}
	newGeneral["title"] = title
	out["General"] = newGeneral
	return out
}
