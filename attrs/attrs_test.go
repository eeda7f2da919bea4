package attrs

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ewxrjk/go-sftpserver/wire"
)

func TestV3RoundTrip(t *testing.T) {
	a := &Attributes{
		Valid:       wire.AttrSize | wire.AttrUIDGID | wire.AttrPermissions | wire.AttrACModTime,
		Size:        4096,
		UID:         1000,
		GID:         1000,
		Permissions: 0644,
		Atime:       time.Unix(1700000000, 0),
		Mtime:       time.Unix(1700000100, 0),
		Type:        TypeRegular,
	}

	buf := wire.NewWriteBuffer(32)
	EmitV3(buf, a)

	got, err := ParseV3(wire.NewBuffer(buf.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, a.Size, got.Size)
	assert.Equal(t, a.UID, got.UID)
	assert.Equal(t, a.GID, got.GID)
	assert.Equal(t, os.FileMode(0644), got.Permissions)
	assert.Equal(t, a.Atime.Unix(), got.Atime.Unix())
	assert.Equal(t, a.Mtime.Unix(), got.Mtime.Unix())
}

func TestV3ParseSkipsExtendedPairs(t *testing.T) {
	buf := wire.NewWriteBuffer(64)
	buf.AppendUint32(wire.AttrSize | wire.AttrExtended)
	buf.AppendUint64(123)
	buf.AppendUint32(1) // one extended pair
	buf.AppendString("vendor-ext")
	buf.AppendString("some-data")

	got, err := ParseV3(wire.NewBuffer(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, uint64(123), got.Size)
}

func TestV4RoundTripWithoutCtime(t *testing.T) {
	a := &Attributes{
		Valid:       wire.AttrSize | wire.AttrOwnerGroup | wire.AttrPermissions | wire.AttrModifyTime,
		Size:        77,
		Owner:       "alice",
		Group:       "staff",
		Permissions: 0600,
		Mtime:       time.Unix(1700000200, 0),
		Type:        TypeRegular,
	}

	buf := wire.NewWriteBuffer(64)
	EmitV4(buf, a, 4)

	got, err := ParseV4(wire.NewBuffer(buf.Bytes()), 4)
	require.NoError(t, err)

	assert.Equal(t, a.Size, got.Size)
	assert.Equal(t, a.Owner, got.Owner)
	assert.Equal(t, a.Group, got.Group)
	assert.Equal(t, os.FileMode(0600), got.Permissions)
	assert.Equal(t, a.Mtime.Unix(), got.Mtime.Unix())
	assert.Equal(t, TypeRegular, got.Type)
}

func TestV6RoundTripWithCtimeAndSubsecond(t *testing.T) {
	a := &Attributes{
		Valid: wire.AttrSize | wire.AttrModifyTime | wire.AttrCtime | wire.AttrSubsecondTimes |
			wire.AttrBits,
		Size:            55,
		Mtime:           time.Unix(1700000300, 0),
		MtimeNsec:       1234,
		Ctime:           time.Unix(1700000300, 0),
		CtimeNsec:       5678,
		AttribBits:      0x1,
		AttribBitsValid: 0x3,
		Type:            TypeDirectory,
	}

	buf := wire.NewWriteBuffer(96)
	EmitV4(buf, a, 6)

	got, err := ParseV4(wire.NewBuffer(buf.Bytes()), 6)
	require.NoError(t, err)

	assert.Equal(t, a.MtimeNsec, got.MtimeNsec)
	assert.Equal(t, a.CtimeNsec, got.CtimeNsec)
	assert.Equal(t, a.AttribBits, got.AttribBits)
	assert.Equal(t, a.AttribBitsValid, got.AttribBitsValid)
	assert.True(t, got.IsDir())
}

func TestEmitV4DropsCtimeBelowV6(t *testing.T) {
	a := &Attributes{
		Valid: wire.AttrModifyTime | wire.AttrCtime,
		Mtime: time.Unix(1700000400, 0),
		Ctime: time.Unix(1700000400, 0),
		Type:  TypeRegular,
	}

	buf := wire.NewWriteBuffer(64)
	EmitV4(buf, a, 4)

	got, err := ParseV4(wire.NewBuffer(buf.Bytes()), 4)
	require.NoError(t, err)
	assert.True(t, got.Ctime.IsZero())
}

func TestFromFileInfoClassifiesDirectory(t *testing.T) {
	dir := t.TempDir()
	fi, err := os.Stat(dir)
	require.NoError(t, err)

	a := FromFileInfo(fi)
	assert.True(t, a.IsDir())
	assert.Equal(t, TypeDirectory, a.Type)
}
