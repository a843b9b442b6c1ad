package leb128

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUvarintRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 127, 128, 300, 0xffffffff}
	for _, v := range values {
		enc := EncodeUint32(v)
		got, num, err := LoadUint32(enc)
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Equal(t, uint64(len(enc)), num)

		got2, num2, err := ReadUint32(bytes.NewReader(enc))
		require.NoError(t, err)
		assert.Equal(t, v, got2)
		assert.Equal(t, uint64(len(enc)), num2)
	}
}

func TestVarintRoundTrip(t *testing.T) {
	values := []int32{0, -1, 1, 63, -64, 64, -65, 1 << 20, -(1 << 20)}
	for _, v := range values {
		enc := EncodeInt32(v)
		got, num, err := LoadInt32(enc)
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Equal(t, uint64(len(enc)), num)

		got2, num2, err := ReadInt32(bytes.NewReader(enc))
		require.NoError(t, err)
		assert.Equal(t, v, got2)
		assert.Equal(t, uint64(len(enc)), num2)
	}
}

func TestUint64RoundTrip(t *testing.T) {
	v := uint64(1) << 63
	enc := EncodeUint64(v)
	got, _, err := LoadUint64(enc)
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

func TestInt64RoundTrip(t *testing.T) {
	v := int64(-1) << 40
	enc := EncodeInt64(v)
	got, _, err := LoadInt64(enc)
	require.NoError(t, err)
	assert.Equal(t, v, got)
}

// TestKnownEncodings pins LEB128 byte sequences against the WebAssembly spec's
// own worked examples, so a shift/mask regression can't slip past
// round-trip-only coverage.
func TestKnownEncodings(t *testing.T) {
	assert.Equal(t, []byte{0xe5, 0x8e, 0x26}, EncodeUint32(624485))
	assert.Equal(t, []byte{0x9b, 0xf1, 0x59}, EncodeInt32(-624485))

	v, num, err := LoadUint32([]byte{0xe5, 0x8e, 0x26})
	require.NoError(t, err)
	assert.Equal(t, uint32(624485), v)
	assert.Equal(t, uint64(3), num)
}

func TestDecodeInt33AsInt64(t *testing.T) {
	// A single 0x7f byte: value -1 in the signed-varint encoding.
	v, num, err := DecodeInt33AsInt64(bytes.NewReader([]byte{0x7f}))
	require.NoError(t, err)
	assert.Equal(t, int64(-1), v)
	assert.Equal(t, uint64(1), num)
}

func TestLoadUint32Truncated(t *testing.T) {
	_, _, err := LoadUint32([]byte{0x80})
	assert.Error(t, err)
}
