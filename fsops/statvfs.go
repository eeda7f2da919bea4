package fsops

// StatVFS is the canonical reply shape for the statvfs@openssh.org and
// space-available extensions (§4.11), grounded on the teacher's
// packet-statvfs.go StatVFS struct.
type StatVFS struct {
	Bsize   uint64
	Frsize  uint64
	Blocks  uint64
	Bfree   uint64
	Bavail  uint64
	Files   uint64
	Ffree   uint64
	Favail  uint64
	Fsid    uint64
	Flag    uint64
	Namemax uint64
}

// SpaceAvailable reduces a StatVFS to the single BytesOnDevice /
// UnusedBytesOnDevice pair the space-available extension reports.
func (v *StatVFS) SpaceAvailable() (bytesOnDevice, unusedBytesOnDevice uint64) {
	return v.Frsize * v.Blocks, v.Frsize * v.Bavail
}
