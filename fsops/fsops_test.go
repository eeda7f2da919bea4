package fsops

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveConfinesToRoot(t *testing.T) {
	r := NewRoot("/srv/sftp")
	assert.Equal(t, "/srv/sftp/etc/passwd", r.Resolve("/../../etc/passwd"))
	assert.Equal(t, "/srv/sftp/a/b", r.Resolve("a/b"))
}

func TestMkdirWriteReadFileRoundTrip(t *testing.T) {
	root := t.TempDir()
	r := NewRoot(root)

	require.NoError(t, r.Mkdir("/sub", 0755))

	f, err := r.Open("/sub/file.txt", os.O_CREATE|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("hello")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	fi, err := r.Stat("/sub/file.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), fi.Size())
}

func TestSymlinkReadlinkThenRename(t *testing.T) {
	root := t.TempDir()
	r := NewRoot(root)

	f, err := r.Open("/a.txt", os.O_CREATE|os.O_WRONLY, 0644)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, r.Symlink("a.txt", "/link"))
	target, err := r.Readlink("/link")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", target)

	require.NoError(t, r.Rename("/a.txt", "/b.txt"))
	_, err = r.Stat("/a.txt")
	assert.Error(t, err)
	_, err = r.Stat("/b.txt")
	assert.NoError(t, err)
}

func TestPosixRenameOverwritesExistingTarget(t *testing.T) {
	root := t.TempDir()
	r := NewRoot(root)

	for _, name := range []string{"/src.txt", "/dst.txt"} {
		f, err := r.Open(name, os.O_CREATE|os.O_WRONLY, 0644)
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}

	require.NoError(t, r.PosixRename("/src.txt", "/dst.txt"))
	_, err := r.Stat("/src.txt")
	assert.Error(t, err)
}

func TestStatOwnershipReadsUnixFields(t *testing.T) {
	root := t.TempDir()
	fi, err := os.Stat(root)
	require.NoError(t, err)

	_, _, _, ok := StatOwnership(fi)
	assert.True(t, ok)
}
