//go:build windows || plan9

package fsops

import "errors"

// StatVFS is unimplemented on platforms without a statfs-family syscall,
// grounded on the teacher's localfs/statvfs/statvfs_stubs.go /
// statvfs_plan9.go.
func (r *Root) StatVFS(path string) (*StatVFS, error) {
	return nil, errors.New("fsops: statvfs not supported on this platform")
}
