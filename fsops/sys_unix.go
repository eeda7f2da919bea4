//go:build !windows && !plan9

package fsops

import (
	"os"
	"syscall"
)

// StatOwnership extracts uid, gid, and hard-link count from a FileInfo
// produced by this package's Stat/Lstat, the portable parts of
// os.FileInfo.Sys() that the attribute emitters need for v3 UID/GID and
// the v4+ link-count field. Grounded on the teacher's localfs id-lookup
// callers, which reach through Sys() the same way.
func StatOwnership(fi os.FileInfo) (uid, gid uint32, nlink uint32, ok bool) {
	st, isStat := fi.Sys().(*syscall.Stat_t)
	if !isStat {
		return 0, 0, 0, false
	}
	return uint32(st.Uid), uint32(st.Gid), uint32(st.Nlink), true
}
