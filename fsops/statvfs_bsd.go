//go:build darwin || dragonfly || freebsd || openbsd

package fsops

import "golang.org/x/sys/unix"

// maxPathLen mirrors statvfs_darwinlike.go: these platforms' statfs
// doesn't report a name-length limit, so the extension falls back to a
// fixed PATH_MAX-derived constant.
const maxPathLen = 1024

// StatVFS implements the statvfs@openssh.org extension on BSD-family
// platforms via golang.org/x/sys/unix, grounded on the teacher's
// localfs/statvfs/statvfs_bsd_common.go and statvfs_darwinlike.go (which
// use raw syscall.Statfs_t; here reshaped onto x/sys/unix as the pack's
// other repos do for cross-BSD portability).
func (r *Root) StatVFS(path string) (*StatVFS, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(r.Resolve(path), &stat); err != nil {
		return nil, err
	}

	return &StatVFS{
		Bsize:   uint64(stat.Bsize),
		Frsize:  uint64(stat.Bsize),
		Blocks:  uint64(stat.Blocks),
		Bfree:   uint64(stat.Bfree),
		Bavail:  uint64(stat.Bavail),
		Files:   uint64(stat.Files),
		Ffree:   uint64(stat.Ffree),
		Favail:  uint64(stat.Ffree),
		Namemax: maxPathLen,
	}, nil
}
