package engine

import (
	"bufio"
	"io"

	"github.com/pkg/errors"

	"github.com/ewxrjk/go-sftpserver/handle"
	"github.com/ewxrjk/go-sftpserver/wire"
)

// errVersionSelectMisuse is returned by dispatch's version-select handling
// (not by extVersionSelect itself) when the client sends version-select
// anywhere but the first post-INIT request; the
// dispatch loop treats any error return as a signal to tear the
// connection down (§4.4: "illegal at any other time is a fatal protocol
// violation").
var errVersionSelectMisuse = errors.New("engine: version-select sent outside its legal window")

// extPosixRename implements posix-rename@openssh.org (§4.11): an
// unconditional POSIX rename, overwriting any existing target.
func (s *Server) extPosixRename(body *wire.Buffer, reqID uint32, out *wire.Buffer) error {
	oldpath, err := body.ConsumeString()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed posix-rename@openssh.org")
		return nil
	}
	newpath, err := body.ConsumeString()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed posix-rename@openssh.org")
		return nil
	}
	if s.readOnly {
		s.sendStatus(out, reqID, wire.StatusPermissionDenied, "server is read-only")
		return nil
	}
	if err := s.fs.PosixRename(oldpath, newpath); err != nil {
		s.sendStatus(out, reqID, ErrnoToStatus(err), err.Error())
		return nil
	}
	s.sendStatus(out, reqID, wire.StatusOK, "")
	return nil
}

// extStatVFS implements statvfs@openssh.org (§4.11): an
// SSH_FXP_EXTENDED_REPLY whose body is the eleven u64 statvfs fields, in
// OpenSSH's documented order.
func (s *Server) extStatVFS(body *wire.Buffer, reqID uint32, out *wire.Buffer) error {
	path, err := body.ConsumeString()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed statvfs@openssh.org")
		return nil
	}
	v, err := s.fs.StatVFS(path)
	if err != nil {
		s.sendStatus(out, reqID, ErrnoToStatus(err), err.Error())
		return nil
	}

	payload := wire.NewWriteBuffer(96)
	payload.AppendUint64(v.Bsize)
	payload.AppendUint64(v.Frsize)
	payload.AppendUint64(v.Blocks)
	payload.AppendUint64(v.Bfree)
	payload.AppendUint64(v.Bavail)
	payload.AppendUint64(v.Files)
	payload.AppendUint64(v.Ffree)
	payload.AppendUint64(v.Favail)
	payload.AppendUint64(v.Fsid)
	payload.AppendUint64(v.Flag)
	payload.AppendUint64(v.Namemax)
	SendExtendedReply(out, reqID, payload.Bytes())
	return nil
}

// extSpaceAvailable implements the space-available extension (§4.11):
// reports device and user-visible free space in bytes.
func (s *Server) extSpaceAvailable(body *wire.Buffer, reqID uint32, out *wire.Buffer) error {
	path, err := body.ConsumeString()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed space-available")
		return nil
	}
	v, err := s.fs.StatVFS(path)
	if err != nil {
		s.sendStatus(out, reqID, ErrnoToStatus(err), err.Error())
		return nil
	}
	bytesOnDevice, unusedOnDevice := v.SpaceAvailable()

	payload := wire.NewWriteBuffer(36)
	payload.AppendUint64(bytesOnDevice)
	payload.AppendUint64(unusedOnDevice)
	payload.AppendUint64(v.Frsize * v.Bavail) // bytes-available-to-user: no quota model, same as unused-on-device
	payload.AppendUint64(v.Frsize * v.Bavail)
	payload.AppendUint32(uint32(v.Frsize))
	SendExtendedReply(out, reqID, payload.Bytes())
	return nil
}

// extTextSeek implements the text-seek extension: seek an open handle to
// the start of the given line number, by scanning for newlines from the
// beginning of the file.
func (s *Server) extTextSeek(body *wire.Buffer, reqID uint32, out *wire.Buffer) error {
	h, err := body.ConsumeHandle()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed text-seek")
		return nil
	}
	line, err := body.ConsumeUint64()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed text-seek")
		return nil
	}

	id := handle.ID(h)
	f, _, ferr := s.handles.GetFile(id)
	if ferr != nil {
		s.sendStatus(out, reqID, wire.StatusInvalidHandle, "invalid handle")
		return nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		s.sendStatus(out, reqID, ErrnoToStatus(err), err.Error())
		return nil
	}
	reader := bufio.NewReader(f)
	var offset int64
	for n := uint64(0); n < line; n++ {
		chunk, err := reader.ReadBytes('\n')
		offset += int64(len(chunk))
		if err != nil {
			break
		}
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		s.sendStatus(out, reqID, ErrnoToStatus(err), err.Error())
		return nil
	}
	s.sendStatus(out, reqID, wire.StatusOK, "")
	return nil
}

// extHardlink implements hardlink@openssh.com.
func (s *Server) extHardlink(body *wire.Buffer, reqID uint32, out *wire.Buffer) error {
	oldpath, err := body.ConsumeString()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed hardlink@openssh.com")
		return nil
	}
	newpath, err := body.ConsumeString()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed hardlink@openssh.com")
		return nil
	}
	if s.readOnly {
		s.sendStatus(out, reqID, wire.StatusPermissionDenied, "server is read-only")
		return nil
	}
	if err := s.fs.Link(oldpath, newpath); err != nil {
		s.sendStatus(out, reqID, ErrnoToStatus(err), err.Error())
		return nil
	}
	s.sendStatus(out, reqID, wire.StatusOK, "")
	return nil
}

// extVersionSelect implements the v6 version-select extension (§4.4):
// legal only as the very first request after VERSION. The dispatch loop
// has already consumed the legality window synchronously, in receive
// order, before this handler ever runs (see dispatch.go); a misuse
// report there short-circuits before reaching this body at all.
func (s *Server) extVersionSelect(body *wire.Buffer, reqID uint32, out *wire.Buffer) error {
	arg, err := body.ConsumeString()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed version-select")
		return nil
	}

	version, ok := parseVersionSelectArg(arg)
	if !ok {
		s.sendStatus(out, reqID, wire.StatusInvalidParameter, "unsupported version")
		return nil
	}

	s.setDescriptor(s.buildDescriptor(version))
	s.sendStatus(out, reqID, wire.StatusOK, "")
	return nil
}
