package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewxrjk/go-sftpserver/wire"
)

func noopHandler(_ *wire.Buffer, _ uint32, _ *wire.Buffer) error { return nil }

func TestCommandBinarySearchFindsEntry(t *testing.T) {
	d := &Descriptor{
		Commands: []CommandEntry{
			{Code: wire.PacketOpen, Handler: noopHandler},
			{Code: wire.PacketClose, Handler: noopHandler},
			{Code: wire.PacketRead, Handler: noopHandler},
		},
	}
	d.SortTables()

	h, ok := d.Command(wire.PacketClose)
	require.True(t, ok)
	assert.NotNil(t, h)

	_, ok = d.Command(wire.PacketWrite)
	assert.False(t, ok)
}

func TestExtensionBinarySearchFindsEntry(t *testing.T) {
	d := &Descriptor{
		Extensions: []ExtensionEntry{
			{Name: "statvfs@openssh.org", Handler: noopHandler},
			{Name: "posix-rename@openssh.org", Handler: noopHandler},
		},
	}
	d.SortTables()

	h, ok := d.Extension("posix-rename@openssh.org")
	require.True(t, ok)
	assert.NotNil(t, h)

	_, ok = d.Extension("unknown@example.com")
	assert.False(t, ok)
}

func TestPreInitOnlyHandlesInit(t *testing.T) {
	d := PreInit(noopHandler)

	_, ok := d.Command(wire.PacketInit)
	assert.True(t, ok)

	_, ok = d.Command(wire.PacketOpen)
	assert.False(t, ok)
}

func TestV3FilenameCodecRoundTripsOpaqueBytes(t *testing.T) {
	raw := []byte{0xFF, 0x00, 0x80, 'a'}
	got, err := DecodeFilenameV3(EncodeFilenameV3(string(raw)))
	require.NoError(t, err)
	assert.Equal(t, string(raw), got)
}
