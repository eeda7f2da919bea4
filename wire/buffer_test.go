package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferUint32RoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, 256, 1 << 31, ^uint32(0)} {
		buf := NewWriteBuffer(4)
		buf.AppendUint32(v)

		got, err := NewBuffer(buf.Bytes()).ConsumeUint32()
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestBufferUint64RoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 256, 1 << 32, ^uint64(0)} {
		buf := NewWriteBuffer(8)
		buf.AppendUint64(v)

		got, err := NewBuffer(buf.Bytes()).ConsumeUint64()
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestBufferByteStringRoundTrip(t *testing.T) {
	for _, v := range [][]byte{{}, []byte("/foo"), bytes.Repeat([]byte{0xAB}, 300)} {
		buf := NewWriteBuffer(4 + len(v))
		buf.AppendByteSlice(v)

		got, err := NewBuffer(buf.Bytes()).ConsumeByteSlice()
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestBufferStringRoundTrip(t *testing.T) {
	want := "/foo/bar"
	buf := NewWriteBuffer(4 + len(want))
	buf.AppendString(want)

	got, err := NewBuffer(buf.Bytes()).ConsumeString()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestBufferConsumeShort(t *testing.T) {
	_, err := NewBuffer(nil).ConsumeUint32()
	assert.ErrorIs(t, err, ErrShortPacket)

	_, err = NewBuffer([]byte{0, 0, 0, 5, 1, 2}).ConsumeByteSlice()
	assert.ErrorIs(t, err, ErrShortPacket)
}

func TestBufferHandleRoundTrip(t *testing.T) {
	var h [8]byte
	copy(h[:], []byte{1, 2, 3, 4, 5, 6, 7, 8})

	buf := NewWriteBuffer(12)
	buf.AppendHandle(h)

	got, err := NewBuffer(buf.Bytes()).ConsumeHandle()
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestBufferHandleWrongLength(t *testing.T) {
	buf := NewWriteBuffer(8)
	buf.AppendString("short")

	_, err := NewBuffer(buf.Bytes()).ConsumeHandle()
	assert.Error(t, err)
}

func TestBufferReserveAndPatch(t *testing.T) {
	buf := NewWriteBuffer(16)
	mark := buf.Reserve(4)
	buf.AppendString("payload")

	bodyLen := uint32(len(buf.Bytes()) - mark - 4)
	buf.PatchUint32(mark, bodyLen)

	got, err := NewBuffer(buf.Bytes()[mark:]).ConsumeUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(4+len("payload")), got)
}
