package handle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempFile(t *testing.T) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "handle-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestNewFileThenGetFileReturnsSameFD(t *testing.T) {
	tbl := New()
	f := tempFile(t)

	id, err := tbl.NewFile(f, "/tmp/x", FlagAppend)
	require.NoError(t, err)

	got, flags, err := tbl.GetFile(id)
	require.NoError(t, err)
	assert.Same(t, f, got)
	assert.Equal(t, FlagAppend, flags)
}

func TestCloseInvalidatesHandle(t *testing.T) {
	tbl := New()
	f := tempFile(t)

	id, err := tbl.NewFile(f, "/tmp/x", 0)
	require.NoError(t, err)
	require.NoError(t, tbl.Close(id))

	_, _, err = tbl.GetFile(id)
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestCloseTwiceFails(t *testing.T) {
	tbl := New()
	f := tempFile(t)

	id, err := tbl.NewFile(f, "/tmp/x", 0)
	require.NoError(t, err)
	require.NoError(t, tbl.Close(id))

	err = tbl.Close(id)
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestSlotReuseGetsFreshTag(t *testing.T) {
	tbl := New()

	f1 := tempFile(t)
	id1, err := tbl.NewFile(f1, "/tmp/x", 0)
	require.NoError(t, err)
	require.NoError(t, tbl.Close(id1))

	f2 := tempFile(t)
	id2, err := tbl.NewFile(f2, "/tmp/y", 0)
	require.NoError(t, err)

	// Same slot index may be reused, but the old id must stay invalid.
	_, _, err = tbl.GetFile(id1)
	assert.ErrorIs(t, err, ErrInvalidHandle)

	got, _, err := tbl.GetFile(id2)
	require.NoError(t, err)
	assert.Same(t, f2, got)
}

func TestWrongKindLookupFails(t *testing.T) {
	tbl := New()
	f := tempFile(t)

	id, err := tbl.NewFile(f, "/tmp/x", 0)
	require.NoError(t, err)

	_, _, err = tbl.GetDir(id)
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestOutOfRangeSlotIndexFails(t *testing.T) {
	tbl := New()
	_, _, err := tbl.GetFile(Encode(999, 1))
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestTagZeroNeverValid(t *testing.T) {
	tbl := New()
	f := tempFile(t)
	_, err := tbl.NewFile(f, "/tmp/x", 0)
	require.NoError(t, err)

	_, _, err = tbl.GetFile(Encode(0, 0))
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestTableFullAtMaxHandles(t *testing.T) {
	tbl := New()
	dir := t.TempDir()

	for i := 0; i < MaxHandles; i++ {
		f, err := os.CreateTemp(dir, "h")
		require.NoError(t, err)
		t.Cleanup(func() { _ = f.Close() })
		_, err = tbl.NewFile(f, filepath.Join(dir, "h"), 0)
		require.NoError(t, err)
	}

	extra := tempFile(t)
	_, err := tbl.NewFile(extra, "/tmp/overflow", 0)
	assert.ErrorIs(t, err, ErrTableFull)
}

func TestPathAndFlagsRoundTrip(t *testing.T) {
	tbl := New()
	f := tempFile(t)

	id, err := tbl.NewFile(f, "/tmp/named", FlagText)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/named", tbl.Path(id))
	assert.Equal(t, FlagText, tbl.GetFlags(id))
}

func TestCloseAllClosesOpenHandles(t *testing.T) {
	tbl := New()
	f1 := tempFile(t)
	f2 := tempFile(t)

	id1, err := tbl.NewFile(f1, "/tmp/a", 0)
	require.NoError(t, err)
	id2, err := tbl.NewFile(f2, "/tmp/b", 0)
	require.NoError(t, err)

	tbl.CloseAll()

	_, _, err = tbl.GetFile(id1)
	assert.ErrorIs(t, err, ErrInvalidHandle)
	_, _, err = tbl.GetFile(id2)
	assert.ErrorIs(t, err, ErrInvalidHandle)
}
