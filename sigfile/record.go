package sigfile

import (
	"log/slog"
	"math"
)

// Map is a nested string-keyed metadata mapping. Values may be scalars
// (numeric, bool, string), supported Go slices, *Array, *Ragged,
// []string, or nested Maps.
type Map = map[string]any

// RecordAttrs holds record-level flags.
type RecordAttrs struct {
	// Lazy reports whether Data is backed by an out-of-core array whose
	// file must stay open for the record's remaining lifetime.
	Lazy bool
}

// SignalRecord is the unit persisted to and reconstructed from a
// container file.
type SignalRecord struct {
	// Data is the main array: *Array, *Ragged, or *Lazy.
	Data any

	// Axes describe the array's dimensions, in dimension order.
	Axes []Axis

	Metadata         Map
	OriginalMetadata Map

	// TransientParameters are ephemeral hints (e.g. originating path) that
	// are not round-trip critical.
	TransientParameters Map

	// LearningResults holds optional decomposition output.
	LearningResults Map

	Attributes RecordAttrs
}

// Title returns Metadata["General"]["title"], or "" if absent.
func (r *SignalRecord) Title() string {
	general, ok := r.Metadata["General"].(Map)
	if !ok {
		return ""
	}
	title, _ := general["title"].(string)
	return title
}

// Axis describes one dimension of a record's data. A uniform axis is
// fully described by offset, scale, and size; an explicit axis carries
// its full coordinate list in Values (non-nil Values means explicit).
type Axis struct {
	Name     string
	Units    string
	Navigate bool
	Binned   bool

	Offset float64
	Scale  float64
	Size   int

	Values []float64
}

// UniformAxis creates an equally spaced axis.
func UniformAxis(name string, offset, scale float64, size int) Axis {
	return Axis{Name: name, Offset: offset, Scale: scale, Size: size}
}

// ExplicitAxis creates an axis from its full coordinate list.
func ExplicitAxis(name string, values []float64) Axis {
	return Axis{Name: name, Size: len(values), Values: values}
}

// IsUniform reports whether the axis is described by offset and scale.
func (a Axis) IsUniform() bool { return a.Values == nil }

// AxisValues materializes the axis coordinates.
func (a Axis) AxisValues() []float64 {
	if a.Values != nil {
		out := make([]float64, len(a.Values))
		copy(out, a.Values)
		return out
	}
	out := make([]float64, a.Size)
	for i := range out {
		out[i] = a.Offset + float64(i)*a.Scale
	}
	return out
}

// DefaultUniformityTol is the default relative spacing variation below
// which InferAxis treats coordinates as equally spaced.
const DefaultUniformityTol = 0.01

// InferAxis builds an axis from explicit coordinates, collapsing to a
// uniform axis when the spacing varies by at most tol relative to the
// mean spacing. Above the tolerance it logs a debug note and keeps the
// full coordinate list. tol <= 0 selects DefaultUniformityTol; a nil
// logger selects slog.Default().
func InferAxis(name string, values []float64, tol float64, logger *slog.Logger) Axis {
	if tol <= 0 {
		tol = DefaultUniformityTol
	}
	if logger == nil {
		logger = slog.Default()
	}
	if len(values) < 2 {
		return ExplicitAxis(name, values)
	}

	mean := (values[len(values)-1] - values[0]) / float64(len(values)-1)
	if mean == 0 {
		return ExplicitAxis(name, values)
	}
	for i := 1; i < len(values); i++ {
		step := values[i] - values[i-1]
		if math.Abs(step-mean)/math.Abs(mean) > tol {
			logger.Warn("axis spacing not uniform, keeping explicit values",
				"axis", name, "tolerance", tol)
			return ExplicitAxis(name, values)
		}
	}
	return UniformAxis(name, values[0], mean, len(values))
}
