package filter

import "fmt"

// Spec describes the filter pipeline applied to a dataset's chunks.
// It is stored verbatim in the container index so readers can rebuild
// the same pipeline.
type Spec struct {
	Codec    Codec
	Level    int  // codec-specific compression level
	Shuffle  bool // byte shuffle before compression
	ElemSize int  // element size in bytes, used by shuffle
}

// Pipeline applies a filter Spec to chunk data in both directions.
type Pipeline struct {
	filters []Filter
}

// NewPipeline builds the pipeline for a Spec. Filters run in slice order
// on encode and in reverse order on decode.
func NewPipeline(spec Spec) (*Pipeline, error) {
	p := &Pipeline{}

	if spec.Shuffle && spec.ElemSize > 1 {
		p.filters = append(p.filters, NewShuffle(spec.ElemSize))
	}

	codec, err := newCodec(spec.Codec, spec.Level)
	if err != nil {
		return nil, err
	}
	if codec != nil {
		p.filters = append(p.filters, codec)
	}

	return p, nil
}

// Encode transforms a decoded chunk into its stored form.
func (p *Pipeline) Encode(input []byte) ([]byte, error) {
	data := input
	for _, f := range p.filters {
		var err error
		data, err = f.Encode(data)
		if err != nil {
			return nil, fmt.Errorf("filter encode: %w", err)
		}
	}
	return data, nil
}

// Decode transforms a stored chunk back into its decoded form.
func (p *Pipeline) Decode(input []byte) ([]byte, error) {
	data := input
	for i := len(p.filters) - 1; i >= 0; i-- {
		var err error
		data, err = p.filters[i].Decode(data)
		if err != nil {
			return nil, fmt.Errorf("filter decode: %w", err)
		}
	}
	return data, nil
}
