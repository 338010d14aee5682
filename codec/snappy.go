package codec

import (
	"fmt"

	"github.com/golang/snappy"
)

// Snappy wraps another Codec and compresses its output with Snappy.
type Snappy[T any] struct {
	Inner Codec[T]
}

// NewSnappy returns a Snappy codec around inner.
func NewSnappy[T any](inner Codec[T]) Snappy[T] {
	return Snappy[T]{Inner: inner}
}

// Marshal encodes v with the inner codec and compresses the result.
func (s Snappy[T]) Marshal(v T) ([]byte, error) {
	raw, err := s.Inner.Marshal(v)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, raw), nil
}

// Unmarshal decompresses data and decodes it with the inner codec.
func (s Snappy[T]) Unmarshal(data []byte) (T, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("snappy decode failed: %w", err)
	}
	return s.Inner.Unmarshal(raw)
}
