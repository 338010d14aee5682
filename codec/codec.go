// Package codec serialises cached items for tiers that store raw bytes
// (redis, memcache, freecache).
//
// An encoded item is laid out as:
//
//	[1 byte n][n bytes time.MarshalBinary(ExpiresAt)][value bytes]
//
// The value bytes are produced by a [Codec].
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Keksclan/layercache/cache"
)

// ErrShortItem is returned by DecodeItem when the payload is truncated.
var ErrShortItem = errors.New("codec: truncated item")

// Codec converts values of type T to and from bytes.
type Codec[T any] interface {
	Marshal(v T) ([]byte, error)
	Unmarshal(data []byte) (T, error)
}

// JSON is a Codec using encoding/json.
type JSON[T any] struct{}

// Marshal encodes v as JSON.
func (JSON[T]) Marshal(v T) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal decodes JSON into a new T.
func (JSON[T]) Unmarshal(data []byte) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}

// Raw is a Codec for []byte values that copies bytes through unchanged.
type Raw struct{}

// Marshal returns v.
func (Raw) Marshal(v []byte) ([]byte, error) { return v, nil }

// Unmarshal returns a copy of data.
func (Raw) Unmarshal(data []byte) ([]byte, error) {
	return append([]byte(nil), data...), nil
}

// EncodeItem serialises item using c for the value.
func EncodeItem[T any](c Codec[T], item cache.Item[T]) ([]byte, error) {
	ts, err := item.ExpiresAt.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("codec: marshal expiry: %w", err)
	}
	val, err := c.Marshal(item.Value)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal value: %w", err)
	}

	buf := make([]byte, 0, 1+len(ts)+len(val))
	buf = append(buf, byte(len(ts)))
	buf = append(buf, ts...)
	return append(buf, val...), nil
}

// DecodeItem is the inverse of EncodeItem.
func DecodeItem[T any](c Codec[T], data []byte) (cache.Item[T], error) {
	var item cache.Item[T]
	if len(data) < 1 || len(data) < 1+int(data[0]) {
		return item, ErrShortItem
	}
	n := int(data[0])

	var exp time.Time
	if err := exp.UnmarshalBinary(data[1 : 1+n]); err != nil {
		return item, fmt.Errorf("codec: unmarshal expiry: %w", err)
	}
	v, err := c.Unmarshal(data[1+n:])
	if err != nil {
		return item, fmt.Errorf("codec: unmarshal value: %w", err)
	}
	return cache.NewItem(v, exp), nil
}
