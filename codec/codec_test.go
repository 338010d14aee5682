package codec

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Keksclan/layercache/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type user struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestEncodeDecodeItem_JSON(t *testing.T) {
	exp := time.Date(2030, 1, 2, 3, 4, 5, 6, time.UTC)
	in := cache.NewItem(user{ID: 7, Name: "ada"}, exp)

	data, err := EncodeItem[user](JSON[user]{}, in)
	require.NoError(t, err)

	out, err := DecodeItem[user](JSON[user]{}, data)
	require.NoError(t, err)
	assert.Equal(t, in.Value, out.Value)
	assert.True(t, exp.Equal(out.ExpiresAt), "expiry %v != %v", out.ExpiresAt, exp)
}

func TestEncodeDecodeItem_NoExpiry(t *testing.T) {
	data, err := EncodeItem[[]byte](Raw{}, cache.NewItem([]byte("x"), cache.NoExpiry))
	require.NoError(t, err)

	out, err := DecodeItem[[]byte](Raw{}, data)
	require.NoError(t, err)
	assert.True(t, out.NeverExpires())
	assert.Equal(t, []byte("x"), out.Value)
}

func TestDecodeItem_Truncated(t *testing.T) {
	_, err := DecodeItem[[]byte](Raw{}, nil)
	assert.True(t, errors.Is(err, ErrShortItem))

	_, err = DecodeItem[[]byte](Raw{}, []byte{15, 1, 2})
	assert.True(t, errors.Is(err, ErrShortItem))
}

func TestDecodeItem_BadValue(t *testing.T) {
	data, err := EncodeItem[[]byte](Raw{}, cache.NewItem([]byte("not json"), cache.NoExpiry))
	require.NoError(t, err)

	_, err = DecodeItem[user](JSON[user]{}, data)
	assert.Error(t, err)
}

func TestSnappy_RoundTripAndCompresses(t *testing.T) {
	c := NewSnappy[string](JSON[string]{})
	v := strings.Repeat("layer", 500)

	data, err := c.Marshal(v)
	require.NoError(t, err)
	assert.Less(t, len(data), len(v))

	out, err := c.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, v, out)
}

func TestSnappy_CorruptInput(t *testing.T) {
	c := NewSnappy[[]byte](Raw{})
	_, err := c.Unmarshal([]byte{0xff, 0xff, 0xff, 0xff, 0xff})
	assert.Error(t, err)
}

func TestRaw_UnmarshalCopies(t *testing.T) {
	src := []byte("abc")
	out, err := Raw{}.Unmarshal(src)
	require.NoError(t, err)
	src[0] = 'z'
	assert.True(t, bytes.Equal(out, []byte("abc")))
}
