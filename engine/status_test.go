package engine

import (
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ewxrjk/go-sftpserver/wire"
)

func TestErrnoToStatusMapsCommonErrors(t *testing.T) {
	assert.Equal(t, wire.StatusOK, ErrnoToStatus(nil))
	assert.Equal(t, wire.StatusNoSuchFile, ErrnoToStatus(os.ErrNotExist))
	assert.Equal(t, wire.StatusFileAlreadyExists, ErrnoToStatus(os.ErrExist))
	assert.Equal(t, wire.StatusPermissionDenied, ErrnoToStatus(os.ErrPermission))
}

func TestErrnoToStatusMapsSyscallErrno(t *testing.T) {
	assert.Equal(t, wire.StatusNotADirectory, ErrnoToStatus(syscall.ENOTDIR))
	assert.Equal(t, wire.StatusDirNotEmpty, ErrnoToStatus(syscall.ENOTEMPTY))
	assert.Equal(t, wire.StatusLinkLoop, ErrnoToStatus(syscall.ELOOP))
}

func TestErrnoToStatusUnwrapsPathError(t *testing.T) {
	wrapped := &os.PathError{Op: "open", Path: "/x", Err: syscall.ENOENT}
	assert.Equal(t, wire.StatusNoSuchFile, ErrnoToStatus(wrapped))
}

func TestRemapStatusPassesThroughWithinCeiling(t *testing.T) {
	assert.Equal(t, wire.StatusNoSuchFile, RemapStatus(wire.StatusOPUnsupported, wire.StatusNoSuchFile))
}

func TestRemapStatusClampsAboveCeiling(t *testing.T) {
	assert.Equal(t, wire.StatusBadMessage, RemapStatus(wire.StatusOPUnsupported, wire.StatusInvalidFilename))
	assert.Equal(t, wire.StatusNoSuchFile, RemapStatus(wire.StatusOPUnsupported, wire.StatusNoSuchPath))
	assert.Equal(t, wire.StatusFailure, RemapStatus(wire.StatusOPUnsupported, wire.StatusDirNotEmpty))
}
