package engine

import (
	"os"

	"github.com/ewxrjk/go-sftpserver/attrs"
	"github.com/ewxrjk/go-sftpserver/handle"
	"github.com/ewxrjk/go-sftpserver/wire"
)

// openRequest is the version-independent result of parsing an OPEN
// packet's access/flags fields into the ACE4-flavored shape §4.6
// describes, whether the client sent v3/v4 pflags or v5/v6
// access-mask+disposition fields.
type openRequest struct {
	access uint32 // ACE4 mask
	flags  uint32 // disposition (low 3 bits) + modifier bits
	attrs  *attrs.Attributes
}

// pflagsToOpenRequest translates v3/v4 POSIX-style pflags (§4.5 "OPEN
// (v3/v4)") into the ACE4-flavored openRequest generic open expects.
func pflagsToOpenRequest(pflags uint32, a *attrs.Attributes) openRequest {
	var req openRequest
	if pflags&wire.PFlagRead != 0 {
		req.access |= wire.ACE4ReadData
	}
	if pflags&wire.PFlagWrite != 0 {
		req.access |= wire.ACE4WriteData
	}
	if req.access == 0 {
		req.access = wire.ACE4ReadData
	}

	switch {
	case pflags&wire.PFlagCreat != 0 && pflags&wire.PFlagExcl != 0:
		req.flags = wire.DispositionCreateNew
	case pflags&wire.PFlagCreat != 0 && pflags&wire.PFlagTrunc != 0:
		req.flags = wire.DispositionCreateTruncate
	case pflags&wire.PFlagCreat != 0:
		req.flags = wire.DispositionOpenOrCreate
	case pflags&wire.PFlagTrunc != 0:
		req.flags = wire.DispositionTruncateExisting
	default:
		req.flags = wire.DispositionOpenExisting
	}

	if pflags&wire.PFlagAppend != 0 {
		req.flags |= wire.FlagAppendData
	}
	if pflags&wire.PFlagText != 0 {
		req.flags |= wire.FlagTextMode
	}
	req.attrs = a
	return req
}

// handleOpen implements OPEN for every version: v3/v4 encode pflags, v5/6
// encode access+flags directly, but both funnel into genericOpen (§4.6).
func (s *Server) handleOpen(body *wire.Buffer, reqID uint32, out *wire.Buffer) error {
	path, err := body.ConsumeString()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed OPEN")
		return nil
	}

	desc := s.currentDescriptor()

	var req openRequest
	if desc.Version >= 5 {
		access, err := body.ConsumeUint32()
		if err != nil {
			s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed OPEN")
			return nil
		}
		flags, err := body.ConsumeUint32()
		if err != nil {
			s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed OPEN")
			return nil
		}
		a, err := attrs.ParseV4(body, desc.Version)
		if err != nil {
			s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed OPEN")
			return nil
		}
		req = openRequest{access: access, flags: flags, attrs: a}
	} else {
		pflags, err := body.ConsumeUint32()
		if err != nil {
			s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed OPEN")
			return nil
		}
		var a *attrs.Attributes
		if desc.Version >= 4 {
			a, err = attrs.ParseV4(body, desc.Version)
		} else {
			a, err = attrs.ParseV3(body)
		}
		if err != nil {
			s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed OPEN")
			return nil
		}
		req = pflagsToOpenRequest(pflags, a)
	}

	id, status, msg := s.genericOpen(path, req)
	if status != wire.StatusOK {
		s.sendStatus(out, reqID, status, msg)
		return nil
	}
	SendHandle(out, reqID, id)
	return nil
}

// genericOpen implements §4.6 in full: access/modifier/disposition
// mapping, read-only enforcement, NOFOLLOW, DELETE_ON_CLOSE, and initial
// attribute application on create.
func (s *Server) genericOpen(path string, req openRequest) (handle.ID, wire.Status, string) {
	disposition := req.flags & wire.DispositionMask
	notOpenExisting := disposition != wire.DispositionOpenExisting
	deleteOnClose := req.flags&wire.FlagDeleteOnClose != 0

	if s.readOnly && (notOpenExisting || deleteOnClose) {
		return handle.ID{}, wire.StatusPermissionDenied, "server is read-only"
	}

	if req.flags&(wire.FlagBlockRead|wire.FlagBlockWrite|wire.FlagBlockDelete) != 0 {
		return handle.ID{}, wire.StatusOPUnsupported, "mandatory locking not supported"
	}

	var osFlags int
	switch {
	case req.access&wire.ACE4ReadData != 0 && req.access&wire.ACE4WriteData != 0:
		osFlags = os.O_RDWR
	case req.access&wire.ACE4WriteData != 0:
		osFlags = os.O_WRONLY
	default:
		osFlags = os.O_RDONLY
	}

	var handleFlags handle.Flags
	if req.flags&(wire.FlagAppendData|wire.FlagAppendDataAtomic) != 0 {
		osFlags |= os.O_APPEND
		handleFlags |= handle.FlagAppend
	}
	if req.flags&wire.FlagTextMode != 0 {
		handleFlags |= handle.FlagText
	}

	noFollow := req.flags&wire.FlagNoFollow != 0
	if noFollow {
		if fi, err := s.fs.Lstat(path); err == nil && fi.Mode()&os.ModeSymlink != 0 {
			return handle.ID{}, wire.StatusLinkLoop, "path is a symlink"
		}
	}

	created := false
	switch disposition {
	case wire.DispositionCreateNew:
		osFlags |= os.O_CREATE | os.O_EXCL
		created = true
	case wire.DispositionCreateTruncate:
		osFlags |= os.O_CREATE | os.O_TRUNC
		created = true
	case wire.DispositionOpenOrCreate:
		osFlags |= os.O_CREATE
	case wire.DispositionOpenExisting:
		// no O_CREATE
	case wire.DispositionTruncateExisting:
		osFlags |= os.O_TRUNC
	}

	perm := os.FileMode(0644)
	if req.attrs != nil && req.attrs.Valid&wire.AttrPermissions != 0 {
		perm = req.attrs.Permissions.Perm()
	}

	f, err := s.fs.Open(path, osFlags, perm)
	if err != nil {
		return handle.ID{}, ErrnoToStatus(err), err.Error()
	}

	if created && req.attrs != nil {
		if applyErr := s.applyInitialAttributes(path, req.attrs); applyErr != nil {
			_ = f.Close()
			_ = s.fs.Remove(path)
			return handle.ID{}, ErrnoToStatus(applyErr), applyErr.Error()
		}
	}

	if deleteOnClose {
		if err := s.fs.Remove(path); err != nil {
			_ = f.Close()
			return handle.ID{}, ErrnoToStatus(err), err.Error()
		}
	}

	id, err := s.handles.NewFile(f, path, handleFlags)
	if err != nil {
		_ = f.Close()
		return handle.ID{}, wire.StatusFailure, err.Error()
	}
	return id, wire.StatusOK, ""
}

// applyInitialAttributes applies SIZE/PERMISSIONS/owner/times to a
// freshly-created file, per §4.6 ("apply initial attributes").
func (s *Server) applyInitialAttributes(path string, a *attrs.Attributes) error {
	if a.Valid&wire.AttrSize != 0 {
		if err := s.fs.Truncate(path, int64(a.Size)); err != nil {
			return err
		}
	}
	if a.Valid&(wire.AttrUIDGID|wire.AttrOwnerGroup) != 0 {
		uid, gid := s.resolveOwnership(a)
		if err := s.fs.Chown(path, int(uid), int(gid)); err != nil {
			return err
		}
	}
	if a.Valid&wire.AttrPermissions != 0 {
		if err := s.fs.Chmod(path, a.Permissions.Perm()); err != nil {
			return err
		}
	}
	if a.Valid&(wire.AttrACModTime|wire.AttrAccessTime|wire.AttrModifyTime) != 0 {
		atime, mtime := a.Atime, a.Mtime
		if atime.IsZero() || mtime.IsZero() {
			if fi, err := s.fs.Stat(path); err == nil {
				if atime.IsZero() {
					atime = fi.ModTime()
				}
				if mtime.IsZero() {
					mtime = fi.ModTime()
				}
			}
		}
		if err := s.fs.Chtimes(path, atime, mtime); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) resolveOwnership(a *attrs.Attributes) (uid, gid uint32) {
	uid, gid = a.UID, a.GID
	if a.Valid&wire.AttrOwnerGroup != 0 {
		if n, ok := s.resolver.NameToUID(a.Owner); ok {
			uid = n
		}
		if n, ok := s.resolver.NameToGID(a.Group); ok {
			gid = n
		}
	}
	return uid, gid
}

// handleClose implements CLOSE (§4.5): close the FD or directory stream,
// reporting OS errors.
func (s *Server) handleClose(body *wire.Buffer, reqID uint32, out *wire.Buffer) error {
	h, err := body.ConsumeHandle()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed CLOSE")
		return nil
	}
	id := handle.ID(h)
	if closeErr := s.handles.Close(id); closeErr != nil {
		if closeErr == handle.ErrInvalidHandle {
			s.sendStatus(out, reqID, wire.StatusInvalidHandle, "invalid handle")
			return nil
		}
		s.sendStatus(out, reqID, ErrnoToStatus(closeErr), closeErr.Error())
		return nil
	}
	s.sendStatus(out, reqID, wire.StatusOK, "")
	return nil
}
