package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadMessageRoundTrip(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, WriteMessage(&out, []byte("hello")))

	got, err := ReadMessage(&out, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestReadMessageRejectsZeroLength(t *testing.T) {
	_, err := ReadMessage(bytes.NewReader([]byte{0, 0, 0, 0}), 0)
	assert.ErrorIs(t, err, ErrZeroLength)
}

func TestReadMessageRejectsOverLength(t *testing.T) {
	_, err := ReadMessage(bytes.NewReader([]byte{0, 0, 0, 10}), 4)
	assert.ErrorIs(t, err, ErrMessageTooLong)
}
