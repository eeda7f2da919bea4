// Package engine wires together the worker pool, dispatch loop, command
// handlers, and extensions into a running server, grounded on the
// teacher's request-server.go Serve loop and server.go dispatch switch,
// generalized to the full multi-version protocol table of §4.
package engine

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"syscall"

	"github.com/ewxrjk/go-sftpserver/wire"
)

// ErrnoToStatus maps an OS error to an SFTP status code per the table in
// §4.10/§7, grounded on the teacher's stat_posix.go translateErrno.
func ErrnoToStatus(err error) wire.Status {
	if err == nil {
		return wire.StatusOK
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EPERM, syscall.EACCES:
			return wire.StatusPermissionDenied
		case syscall.ENOENT:
			return wire.StatusNoSuchFile
		case syscall.EIO:
			return wire.StatusFileCorrupt
		case syscall.ENOSPC:
			return wire.StatusNoSpaceOnFilesystem
		case syscall.ENOTDIR:
			return wire.StatusNotADirectory
		case syscall.EISDIR:
			return wire.StatusFileIsADirectory
		case syscall.EEXIST:
			return wire.StatusFileAlreadyExists
		case syscall.EROFS:
			return wire.StatusWriteProtect
		case syscall.ELOOP:
			return wire.StatusLinkLoop
		case syscall.ENAMETOOLONG:
			return wire.StatusInvalidFilename
		case syscall.ENOTEMPTY:
			return wire.StatusDirNotEmpty
		case syscall.EDQUOT:
			return wire.StatusQuotaExceeded
		}
		return wire.StatusFailure
	}

	if errors.Is(err, os.ErrNotExist) {
		return wire.StatusNoSuchFile
	}
	if errors.Is(err, os.ErrExist) {
		return wire.StatusFileAlreadyExists
	}
	if errors.Is(err, os.ErrPermission) {
		return wire.StatusPermissionDenied
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return ErrnoToStatus(pathErr.Err)
	}

	if errors.Is(err, io.EOF) {
		return wire.StatusEOF
	}

	return wire.StatusFailure
}

// RemapStatus clamps status to the negotiated version's ceiling, per
// §4.10: a status value the client's version predates is remapped to the
// nearest status it does understand.
func RemapStatus(ceiling wire.Status, status wire.Status) wire.Status {
	if status <= ceiling {
		return status
	}
	switch status {
	case wire.StatusInvalidFilename:
		return wire.StatusBadMessage
	case wire.StatusNoSuchPath:
		return wire.StatusNoSuchFile
	default:
		return wire.StatusFailure
	}
}
