//go:build linux

package fsops

import "syscall"

// StatVFS implements the statvfs@openssh.org extension, grounded directly
// on the teacher's localfs/statvfs/statvfs_linux.go and
// server_statvfs_linux.go.
func (r *Root) StatVFS(path string) (*StatVFS, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(r.Resolve(path), &stat); err != nil {
		return nil, err
	}

	frsize := stat.Frsize
	if frsize == 0 {
		frsize = stat.Bsize
	}

	return &StatVFS{
		Bsize:   uint64(stat.Bsize),
		Frsize:  uint64(frsize),
		Blocks:  stat.Blocks,
		Bfree:   stat.Bfree,
		Bavail:  stat.Bavail,
		Files:   stat.Files,
		Ffree:   stat.Ffree,
		Favail:  stat.Ffree, // no exact POSIX equivalent, matches OpenSSH's own fallback
		Fsid:    uint64(stat.Fsid.X__val[0])<<32 | uint64(uint32(stat.Fsid.X__val[1])),
		Flag:    uint64(stat.Flags),
		Namemax: uint64(stat.Namelen),
	}, nil
}
