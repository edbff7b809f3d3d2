package container

import (
	"fmt"
	"path"

	"github.com/robert-malhotra/go-sigfile/internal/binary"
)

// Group is a named node in the container hierarchy. It holds attributes,
// child groups, and datasets. Children keep their insertion order so the
// index round-trips deterministically.
type Group struct {
	file *File
	name string
	path string

	attrs     map[string]any
	attrOrder []string

	children   map[string]*Group
	childOrder []string

	datasets map[string]*Dataset
	dsOrder  []string
}

func newGroup(f *File, parent *Group, name string) *Group {
	p := "/"
	if parent != nil {
		p = path.Join(parent.path, name)
		if parent.path == "/" || parent.path == "" {
			p = "/" + name
		}
	}
	return &Group{
		file:     f,
		name:     name,
		path:     p,
		attrs:    make(map[string]any),
		children: make(map[string]*Group),
		datasets: make(map[string]*Dataset),
	}
}

// Name returns the group's own name; the root group's name is empty.
func (g *Group) Name() string { return g.name }

// Path returns the absolute path of the group within the container.
func (g *Group) Path() string { return g.path }

// SetAttr sets an attribute on the group. Supported value types are Go
// integers (stored as int64), floats (stored as float64), bool, and
// string. Other types return ErrBadAttr.
func (g *Group) SetAttr(name string, value any) error {
	if !g.file.Writable() {
		return ErrNotWritable
	}
	v, err := normalizeAttr(value)
	if err != nil {
		return fmt.Errorf("attribute %q on %s: %w", name, g.path, err)
	}
	if _, exists := g.attrs[name]; !exists {
		g.attrOrder = append(g.attrOrder, name)
	}
	g.attrs[name] = v
	return nil
}

// Attr returns an attribute value and whether it is present.
// Values are int64, float64, bool, or string.
func (g *Group) Attr(name string) (any, bool) {
	v, ok := g.attrs[name]
	return v, ok
}

// AttrNames returns attribute names in insertion order.
func (g *Group) AttrNames() []string {
	out := make([]string, len(g.attrOrder))
	copy(out, g.attrOrder)
	return out
}

// RequireGroup returns the named child group, creating it if absent.
func (g *Group) RequireGroup(name string) (*Group, error) {
	if child, ok := g.children[name]; ok {
		return child, nil
	}
	if !g.file.Writable() {
		return nil, ErrNotWritable
	}
	if name == "" {
		return nil, fmt.Errorf("group name cannot be empty")
	}
	child := newGroup(g.file, g, name)
	g.children[name] = child
	g.childOrder = append(g.childOrder, name)
	return child, nil
}

// Group returns the named child group.
func (g *Group) Group(name string) (*Group, error) {
	child, ok := g.children[name]
	if !ok {
		return nil, fmt.Errorf("group %q in %s: %w", name, g.path, ErrNotFound)
	}
	return child, nil
}

// Groups returns the names of child groups in insertion order.
func (g *Group) Groups() []string {
	out := make([]string, len(g.childOrder))
	copy(out, g.childOrder)
	return out
}

// RemoveGroup deletes the named child group and everything under it from
// the tree. Space already written by its datasets is not reclaimed.
func (g *Group) RemoveGroup(name string) error {
	if !g.file.Writable() {
		return ErrNotWritable
	}
	if _, ok := g.children[name]; !ok {
		return nil
	}
	delete(g.children, name)
	for i, n := range g.childOrder {
		if n == name {
			g.childOrder = append(g.childOrder[:i], g.childOrder[i+1:]...)
			break
		}
	}
	return nil
}

// Dataset returns the named dataset.
func (g *Group) Dataset(name string) (*Dataset, error) {
	ds, ok := g.datasets[name]
	if !ok {
		return nil, fmt.Errorf("dataset %q in %s: %w", name, g.path, ErrNotFound)
	}
	return ds, nil
}

// Datasets returns the names of datasets in insertion order.
func (g *Group) Datasets() []string {
	out := make([]string, len(g.dsOrder))
	copy(out, g.dsOrder)
	return out
}

// addDataset registers a freshly created dataset.
func (g *Group) addDataset(ds *Dataset) {
	if _, exists := g.datasets[ds.name]; !exists {
		g.dsOrder = append(g.dsOrder, ds.name)
	}
	g.datasets[ds.name] = ds
}

// normalizeAttr coerces a supported Go value to its canonical stored form.
func normalizeAttr(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case bool:
		return v, nil
	case string:
		if len(v) > binary.MaxStringLen {
			return nil, fmt.Errorf("%w: string of %d bytes exceeds the %d byte limit",
				ErrBadAttr, len(v), binary.MaxStringLen)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrBadAttr, value)
	}
}
