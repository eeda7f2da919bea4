package engine

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ewxrjk/go-sftpserver/wire"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	s, err := NewServer(&bytes.Buffer{}, &bytes.Buffer{}, root)
	require.NoError(t, err)
	s.setDescriptor(s.buildDescriptor(5))
	return s, root
}

func readStatus(t *testing.T, out *wire.Buffer) (wire.Status, string) {
	t.Helper()
	b := wire.NewBuffer(out.Bytes())
	length, err := b.ConsumeUint32()
	require.NoError(t, err)
	require.Equal(t, int(length), b.Len())
	typ, err := b.ConsumeUint8()
	require.NoError(t, err)
	require.Equal(t, wire.PacketStatus, wire.PacketType(typ))
	_, err = b.ConsumeUint32() // reqID
	require.NoError(t, err)
	status, err := b.ConsumeUint32()
	require.NoError(t, err)
	msg, err := b.ConsumeString()
	require.NoError(t, err)
	return wire.Status(status), msg
}

func TestHandleMkdirCreatesDirectory(t *testing.T) {
	s, root := newTestServer(t)

	body := wire.NewWriteBuffer(32)
	body.AppendString("sub")
	body.AppendUint32(0) // attrs flags
	body.AppendUint8(0)  // attrs type byte

	out := wire.NewWriteBuffer(32)
	require.NoError(t, s.handleMkdir(body, 1, out))
	status, _ := readStatus(t, out)
	require.Equal(t, wire.StatusOK, status)

	fi, err := os.Stat(filepath.Join(root, "sub"))
	require.NoError(t, err)
	require.True(t, fi.IsDir())
}

func TestOpenWriteReadCloseRoundTrip(t *testing.T) {
	s, _ := newTestServer(t)

	openBody := wire.NewWriteBuffer(64)
	openBody.AppendString("greeting.txt")
	openBody.AppendUint32(wire.ACE4ReadData | wire.ACE4WriteData)
	openBody.AppendUint32(wire.DispositionCreateTruncate)
	openBody.AppendUint32(0) // attrs flags
	openBody.AppendUint8(0) // attrs type byte

	openOut := wire.NewWriteBuffer(64)
	require.NoError(t, s.handleOpen(openBody, 1, openOut))

	ob := wire.NewBuffer(openOut.Bytes())
	_, err := ob.ConsumeUint32() // length
	require.NoError(t, err)
	typ, err := ob.ConsumeUint8()
	require.NoError(t, err)
	require.Equal(t, wire.PacketHandle, wire.PacketType(typ))
	_, err = ob.ConsumeUint32() // reqID
	require.NoError(t, err)
	h, err := ob.ConsumeHandle()
	require.NoError(t, err)

	writeBody := wire.NewWriteBuffer(64)
	writeBody.AppendHandle(h)
	writeBody.AppendUint64(0)
	writeBody.AppendByteSlice([]byte("hello"))
	writeOut := wire.NewWriteBuffer(64)
	require.NoError(t, s.handleWrite(writeBody, 2, writeOut))
	status, _ := readStatus(t, writeOut)
	require.Equal(t, wire.StatusOK, status)

	readBody := wire.NewWriteBuffer(64)
	readBody.AppendHandle(h)
	readBody.AppendUint64(0)
	readBody.AppendUint32(5)
	readOut := wire.NewWriteBuffer(64)
	require.NoError(t, s.handleRead(readBody, 3, readOut))

	rb := wire.NewBuffer(readOut.Bytes())
	_, err = rb.ConsumeUint32()
	require.NoError(t, err)
	typ, err = rb.ConsumeUint8()
	require.NoError(t, err)
	require.Equal(t, wire.PacketData, wire.PacketType(typ))
	_, err = rb.ConsumeUint32()
	require.NoError(t, err)
	data, err := rb.ConsumeByteSlice()
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	closeBody := wire.NewWriteBuffer(16)
	closeBody.AppendHandle(h)
	closeOut := wire.NewWriteBuffer(16)
	require.NoError(t, s.handleClose(closeBody, 4, closeOut))
	status, _ = readStatus(t, closeOut)
	require.Equal(t, wire.StatusOK, status)
}

func TestHandleRealpathCanonicalizesLexically(t *testing.T) {
	s, root := newTestServer(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "a"), 0755))

	body := wire.NewWriteBuffer(32)
	body.AppendString("/a/../a/./b")
	out := wire.NewWriteBuffer(32)
	require.NoError(t, s.handleRealpath(body, 1, out))

	b := wire.NewBuffer(out.Bytes())
	_, err := b.ConsumeUint32()
	require.NoError(t, err)
	typ, err := b.ConsumeUint8()
	require.NoError(t, err)
	require.Equal(t, wire.PacketName, wire.PacketType(typ))
	_, err = b.ConsumeUint32()
	require.NoError(t, err)
	count, err := b.ConsumeUint32()
	require.NoError(t, err)
	require.Equal(t, uint32(1), count)
	name, err := b.ConsumeString()
	require.NoError(t, err)
	require.Equal(t, "/a/b", name)
}

func TestHandleLstatRepliesWithAttrsForSymlink(t *testing.T) {
	s, root := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "target"), []byte("x"), 0644))
	require.NoError(t, os.Symlink("target", filepath.Join(root, "link")))

	lstatBody := wire.NewWriteBuffer(16)
	lstatBody.AppendString("link")
	lstatBody.AppendUint32(wire.AttrSize | wire.AttrPermissions)
	lstatOut := wire.NewWriteBuffer(64)
	require.NoError(t, s.handleLstat(lstatBody, 1, lstatOut))

	b := wire.NewBuffer(lstatOut.Bytes())
	_, err := b.ConsumeUint32()
	require.NoError(t, err)
	typ, err := b.ConsumeUint8()
	require.NoError(t, err)
	require.Equal(t, wire.PacketAttrs, wire.PacketType(typ))
}
