package xdr

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPadding(t *testing.T) {
	cases := map[uint32]uint32{0: 0, 1: 3, 2: 2, 3: 1, 4: 0, 5: 3, 8: 0}
	for in, want := range cases {
		assert.Equal(t, want, Padding(in), "padding(%d)", in)
	}
}

func TestEncoderDecoderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	require.NoError(t, enc.WriteByte(0x7f))
	require.NoError(t, enc.WriteInt16(-5))
	require.NoError(t, enc.WriteUint16(500))
	require.NoError(t, enc.WriteInt32(-123456))
	require.NoError(t, enc.WriteUint32(123456))
	require.NoError(t, enc.WriteInt64(-9_000_000_000))
	require.NoError(t, enc.WriteUint64(9_000_000_000))
	require.NoError(t, enc.WriteFloat32(3.5))
	require.NoError(t, enc.WriteFloat64(2.71828))
	require.NoError(t, enc.WriteBool(true))
	require.NoError(t, enc.WriteString("hello"))
	require.NoError(t, enc.WriteOpaque([]byte{1, 2, 3}))

	assert.Equal(t, 0, buf.Len()%4, "every XDR write must leave the stream 4-byte aligned")

	dec := NewDecoder(&buf)

	b, err := dec.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x7f), b)

	i16, err := dec.ReadInt16()
	require.NoError(t, err)
	assert.Equal(t, int16(-5), i16)

	u16, err := dec.ReadUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(500), u16)

	i32, err := dec.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(-123456), i32)

	u32, err := dec.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(123456), u32)

	i64, err := dec.ReadInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(-9_000_000_000), i64)

	u64, err := dec.ReadUint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(9_000_000_000), u64)

	f32, err := dec.ReadFloat32()
	require.NoError(t, err)
	assert.Equal(t, float32(3.5), f32)

	f64, err := dec.ReadFloat64()
	require.NoError(t, err)
	assert.Equal(t, 2.71828, f64)

	bl, err := dec.ReadBool()
	require.NoError(t, err)
	assert.True(t, bl)

	s, err := dec.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	op, err := dec.ReadOpaque()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, op)
}

func TestWriteStringAlignsFourByteBoundary(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	require.NoError(t, enc.WriteString("abc"))
	// 4 (length) + 3 (data) + 1 (pad) = 8
	assert.Equal(t, 8, buf.Len())

	buf.Reset()
	require.NoError(t, enc.WriteString("test"))
	// 4 (length) + 4 (data) + 0 (pad) = 8
	assert.Equal(t, 8, buf.Len())
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, bytes.ErrTooLarge
}

func TestEncoderPropagatesSinkErrors(t *testing.T) {
	enc := NewEncoder(failingWriter{})
	err := enc.WriteUint32(1)
	require.Error(t, err)
}
