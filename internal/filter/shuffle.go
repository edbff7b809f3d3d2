package filter

// Shuffle implements the byte shuffle filter. It rearranges bytes so that
// equal byte positions of all elements are grouped together (all MSBs,
// then all next bytes, and so on), which improves compression of numeric
// data with small per-element deltas.
type Shuffle struct {
	elemSize int
}

// NewShuffle creates a shuffle filter for elements of the given byte size.
func NewShuffle(elemSize int) *Shuffle {
	if elemSize < 1 {
		elemSize = 1
	}
	return &Shuffle{elemSize: elemSize}
}

// Encode applies the shuffle transformation.
// Input is organized as: [elem0][elem1]...[elemM]
// Output is organized as: [all byte 0s][all byte 1s]...[all byte N-1s]
func (f *Shuffle) Encode(input []byte) ([]byte, error) {
	if f.elemSize <= 1 {
		return input, nil
	}

	numElems := len(input) / f.elemSize
	if numElems == 0 {
		return input, nil
	}

	output := make([]byte, len(input))
	for i := 0; i < numElems; i++ {
		for j := 0; j < f.elemSize; j++ {
			output[j*numElems+i] = input[i*f.elemSize+j]
		}
	}
	// Trailing bytes that do not form a whole element pass through.
	copy(output[numElems*f.elemSize:], input[numElems*f.elemSize:])
	return output, nil
}

// Decode reverses the shuffle transformation.
func (f *Shuffle) Decode(input []byte) ([]byte, error) {
	if f.elemSize <= 1 {
		return input, nil
	}

	numElems := len(input) / f.elemSize
	if numElems == 0 {
		return input, nil
	}

	output := make([]byte, len(input))
	for i := 0; i < numElems; i++ {
		for j := 0; j < f.elemSize; j++ {
			output[i*f.elemSize+j] = input[j*numElems+i]
		}
	}
	copy(output[numElems*f.elemSize:], input[numElems*f.elemSize:])
	return output, nil
}
