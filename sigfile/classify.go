package sigfile

import (
	"fmt"
	"reflect"
)

// encoding is the on-disk strategy chosen for one metadata leaf. It is
// computed once per leaf; the store layer dispatches on it exhaustively
// instead of re-inspecting the value.
type encoding int

const (
	encScalarAttr encoding = iota // numeric/bool/string group attribute
	encGroup                      // nested mapping, recurse
	encDenseArray                 // uniform-shape array dataset
	encRaggedArray                // variable-length per-row dataset
	encUnicodeSeq                 // variable-length string dataset
)

func (e encoding) String() string {
	switch e {
	case encScalarAttr:
		return "scalar-attr"
	case encGroup:
		return "group"
	case encDenseArray:
		return "dense-array"
	case encRaggedArray:
		return "ragged-array"
	case encUnicodeSeq:
		return "unicode-sequence"
	default:
		return fmt.Sprintf("encoding(%d)", int(e))
	}
}

// classify inspects one value reachable during recursive descent of a
// nested record and returns its encoding. It is pure: no side effects,
// deterministic ties (an empty array is dense with size 0, never ragged).
func classify(value any) (encoding, error) {
	switch v := value.(type) {
	case Map:
		return encGroup, nil
	case *Array, *Lazy:
		return encDenseArray, nil
	case *Ragged:
		return encRaggedArray, nil
	case []string:
		return encUnicodeSeq, nil
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return encScalarAttr, nil
	case nil:
		return 0, fmt.Errorf("%w: nil value", ErrUnsupportedValue)
	default:
		return classifySlice(v)
	}
}

// classifySlice handles raw Go slices: flat numeric slices are dense
// one-dimensional arrays; slices of slices are dense when every row has
// the same length and ragged otherwise.
func classifySlice(value any) (encoding, error) {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice {
		return 0, fmt.Errorf("%w: %T", ErrUnsupportedValue, value)
	}

	if rv.Type().Elem().Kind() != reflect.Slice {
		// Flat slice: defer type validation to normalizeSlice.
		if _, _, _, err := normalizeSlice(value); err != nil {
			return 0, err
		}
		return encDenseArray, nil
	}

	// Slice of slices: uniform row lengths mean a dense 2-D array.
	if rv.Len() == 0 {
		return encDenseArray, nil
	}
	rowLen := rv.Index(0).Len()
	for i := 1; i < rv.Len(); i++ {
		if rv.Index(i).Len() != rowLen {
			return encRaggedArray, nil
		}
	}
	return encDenseArray, nil
}

// asArray converts a dense-classified value to an *Array.
func asArray(value any) (*Array, error) {
	switch v := value.(type) {
	case *Array:
		return v, nil
	case *Lazy:
		return v.Materialize()
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Slice {
		return flatten2D(rv)
	}
	return NewArray(value)
}

// flatten2D turns a uniform slice-of-slices into a 2-D Array.
func flatten2D(rv reflect.Value) (*Array, error) {
	rows := rv.Len()
	cols := 0
	if rows > 0 {
		cols = rv.Index(0).Len()
	}
	flat := reflect.MakeSlice(rv.Type().Elem(), 0, rows*cols)
	for i := 0; i < rows; i++ {
		row := rv.Index(i)
		if row.Len() != cols {
			return nil, fmt.Errorf("%w: row %d length %d differs from %d", ErrShapeMismatch, i, row.Len(), cols)
		}
		flat = reflect.AppendSlice(flat, row)
	}
	return NewArray(flat.Interface(), rows, cols)
}

// asRagged converts a ragged-classified value to a *Ragged.
func asRagged(value any) (*Ragged, error) {
	if v, ok := value.(*Ragged); ok {
		return v, nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() != reflect.Slice {
		return nil, fmt.Errorf("%w: %T is not ragged", ErrUnsupportedValue, value)
	}
	rows := make([]any, rv.Len())
	for i := range rows {
		rows[i] = rv.Index(i).Interface()
	}
	return NewRagged(rows...)
}
