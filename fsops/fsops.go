// Package fsops is the POSIX filesystem collaborator the command handlers
// drive: an FS interface plus an OS-backed implementation rooted under a
// configured directory, grounded on the teacher's request-filesystem.go
// fsRoot type, generalized to the full operation set §4.5/§4.6 needs.
package fsops

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// FS is everything a command handler needs from the underlying
// filesystem. All paths passed in are already canonicalized relative to
// the server root (see the fsops.Root wrapper below).
type FS interface {
	Open(path string, flag int, perm os.FileMode) (*os.File, error)
	Stat(path string) (os.FileInfo, error)
	Lstat(path string) (os.FileInfo, error)
	Mkdir(path string, perm os.FileMode) error
	Rmdir(path string) error
	Remove(path string) error
	Rename(oldpath, newpath string) error
	PosixRename(oldpath, newpath string) error
	Link(oldpath, newpath string) error
	Symlink(oldpath, newpath string) error
	Readlink(path string) (string, error)
	Chmod(path string, mode os.FileMode) error
	Chown(path string, uid, gid int) error
	Truncate(path string, size int64) error
	Chtimes(path string, atime, mtime time.Time) error
	Opendir(path string) (*os.File, error)
	StatVFS(path string) (*StatVFS, error)
}

// Root is an FS implementation confined under a root directory, exactly
// as the teacher's fsRoot confines every request path under fs.root
// before touching the real filesystem.
type Root struct {
	root string
}

// NewRoot creates an FS rooted at dir. dir must already exist.
func NewRoot(dir string) *Root {
	return &Root{root: dir}
}

// Resolve maps an SFTP-visible path to the real filesystem path, clamping
// any attempt to escape the root the way the teacher's fs.path does.
func (r *Root) Resolve(path string) string {
	rooted := filepath.Clean("/" + path)
	return filepath.Join(r.root, rooted)
}

func (r *Root) Open(path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(r.Resolve(path), flag, perm)
}

func (r *Root) Stat(path string) (os.FileInfo, error) { return os.Stat(r.Resolve(path)) }

func (r *Root) Lstat(path string) (os.FileInfo, error) { return os.Lstat(r.Resolve(path)) }

func (r *Root) Mkdir(path string, perm os.FileMode) error {
	return os.Mkdir(r.Resolve(path), perm)
}

func (r *Root) Rmdir(path string) error { return os.Remove(r.Resolve(path)) }

func (r *Root) Remove(path string) error { return os.Remove(r.Resolve(path)) }

// Rename is a plain os.Rename under the root and, like PosixRename,
// replaces an existing target. The engine's non-overwriting RENAME
// (nonOverwritingRename) uses Link and Remove, and calls Rename only for
// directories or when linking fails for a reason other than an existing
// target.
func (r *Root) Rename(oldpath, newpath string) error {
	return os.Rename(r.Resolve(oldpath), r.Resolve(newpath))
}

// PosixRename implements the posix-rename@openssh.org extension and the
// v5+ native rename with RenameOverwrite: plain POSIX atomic replace.
func (r *Root) PosixRename(oldpath, newpath string) error {
	return os.Rename(r.Resolve(oldpath), r.Resolve(newpath))
}

func (r *Root) Link(oldpath, newpath string) error {
	return os.Link(r.Resolve(oldpath), r.Resolve(newpath))
}

func (r *Root) Symlink(oldpath, newpath string) error {
	return os.Symlink(oldpath, r.Resolve(newpath))
}

func (r *Root) Readlink(path string) (string, error) {
	return os.Readlink(r.Resolve(path))
}

func (r *Root) Chmod(path string, mode os.FileMode) error {
	return os.Chmod(r.Resolve(path), mode)
}

func (r *Root) Chown(path string, uid, gid int) error {
	return os.Chown(r.Resolve(path), uid, gid)
}

func (r *Root) Truncate(path string, size int64) error {
	return os.Truncate(r.Resolve(path), size)
}

func (r *Root) Chtimes(path string, atime, mtime time.Time) error {
	return os.Chtimes(r.Resolve(path), atime, mtime)
}

func (r *Root) Opendir(path string) (*os.File, error) {
	return os.Open(r.Resolve(path))
}

// ReadDirnames lists directory entries, each carrying its own Lstat'd
// FileInfo, the way READDIR needs them for attribute+longname emission.
func (r *Root) ReadDirnames(dir *os.File) ([]fs.FileInfo, error) {
	entries, err := dir.ReadDir(-1)
	if err != nil {
		return nil, err
	}
	infos := make([]fs.FileInfo, 0, len(entries))
	for _, e := range entries {
		fi, err := e.Info()
		if err != nil {
			return infos, err
		}
		infos = append(infos, fi)
	}
	return infos, nil
}
