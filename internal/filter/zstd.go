package filter

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Zstd implements Zstandard compression.
type Zstd struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstd(level int) (*Zstd, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &Zstd{enc: enc, dec: dec}, nil
}

func (f *Zstd) Encode(input []byte) ([]byte, error) {
	return f.enc.EncodeAll(input, nil), nil
}

func (f *Zstd) Decode(input []byte) ([]byte, error) {
	output, err := f.dec.DecodeAll(input, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return output, nil
}
