package engine

import (
	"os"

	"github.com/pkg/errors"

	"github.com/ewxrjk/go-sftpserver/wire"
)

// handleRename implements RENAME for every version. v3/v4 never
// overwrite an existing target: the handler links the new name to the
// old file then unlinks the old one, so an existing target surfaces as
// FILE_ALREADY_EXISTS rather than being silently replaced the way
// os.Rename would. v5/v6 add OVERWRITE/ATOMIC/NATIVE flags; OVERWRITE or
// NATIVE requests POSIX overwrite semantics and is honored via
// PosixRename, while ATOMIC alone still takes the link-then-unlink path.
func (s *Server) handleRename(body *wire.Buffer, reqID uint32, out *wire.Buffer) error {
	oldpath, err := body.ConsumeString()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed RENAME")
		return nil
	}
	newpath, err := body.ConsumeString()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed RENAME")
		return nil
	}

	desc := s.currentDescriptor()
	var flags uint32
	if desc.Version >= 5 {
		if flags, err = body.ConsumeUint32(); err != nil {
			s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed RENAME")
			return nil
		}
	}

	if s.readOnly {
		s.sendStatus(out, reqID, wire.StatusPermissionDenied, "server is read-only")
		return nil
	}

	overwrite := flags&(wire.RenameOverwrite|wire.RenameNative) != 0
	if overwrite {
		if err := s.fs.PosixRename(oldpath, newpath); err != nil {
			s.sendStatus(out, reqID, ErrnoToStatus(err), err.Error())
			return nil
		}
		s.sendStatus(out, reqID, wire.StatusOK, "")
		return nil
	}

	if err := s.nonOverwritingRename(oldpath, newpath); err != nil {
		s.sendStatus(out, reqID, ErrnoToStatus(err), err.Error())
		return nil
	}
	s.sendStatus(out, reqID, wire.StatusOK, "")
	return nil
}

// nonOverwritingRename implements the link-then-unlink strategy the v3/v4
// draft requires: hard-link newpath to oldpath, then remove oldpath. If
// linking is unsupported (e.g. a cross-device rename, or a directory,
// which cannot be hard-linked), fall back to a plain rename, which
// replaces an existing newpath the way a POSIX rename does.
func (s *Server) nonOverwritingRename(oldpath, newpath string) error {
	if fi, err := s.fs.Lstat(oldpath); err == nil && fi.IsDir() {
		return s.fs.Rename(oldpath, newpath)
	}

	if err := s.fs.Link(oldpath, newpath); err != nil {
		if os.IsExist(err) {
			return err
		}
		return s.fs.Rename(oldpath, newpath)
	}
	return s.fs.Remove(oldpath)
}

// parseSymlinkArgs reads the two path arguments of a SYMLINK request,
// swapping them when s.reverseSymlinkQuirk is set to match OpenSSH's
// historical (targetpath, linkpath) vs. the draft's (linkpath,
// targetpath) argument order confusion (§9 Open Question).
func (s *Server) parseSymlinkArgs(body *wire.Buffer) (linkpath, targetpath string, err error) {
	first, err := body.ConsumeString()
	if err != nil {
		return "", "", err
	}
	second, err := body.ConsumeString()
	if err != nil {
		return "", "", err
	}
	if s.reverseSymlinkQuirk {
		return second, first, nil
	}
	return first, second, nil
}

// handleSymlinkLegacy implements SYMLINK (v3-v5, draft-02 §6.10). The
// wire argument order is (linkpath, targetpath) per the draft, but many
// clients and OpenSSH's own server swap them; reverseSymlinkQuirk
// compensates.
func (s *Server) handleSymlinkLegacy(body *wire.Buffer, reqID uint32, out *wire.Buffer) error {
	linkpath, targetpath, err := s.parseSymlinkArgs(body)
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed SYMLINK")
		return nil
	}
	if s.readOnly {
		s.sendStatus(out, reqID, wire.StatusPermissionDenied, "server is read-only")
		return nil
	}
	if err := s.fs.Symlink(targetpath, linkpath); err != nil {
		s.sendStatus(out, reqID, ErrnoToStatus(err), err.Error())
		return nil
	}
	s.sendStatus(out, reqID, wire.StatusOK, "")
	return nil
}

// handleLinkV6 implements LINK (v6, draft-13 §6.9): wire order is
// (newlinkpath, existingpath, symbolic). Hard-linking a directory is
// rejected (most filesystems forbid it outright; we report it uniformly
// as FILE_IS_A_DIRECTORY rather than leaking the underlying EPERM/EXDEV).
func (s *Server) handleLinkV6(body *wire.Buffer, reqID uint32, out *wire.Buffer) error {
	newpath, err := body.ConsumeString()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed LINK")
		return nil
	}
	existing, err := body.ConsumeString()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed LINK")
		return nil
	}
	symbolic, err := body.ConsumeBool()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed LINK")
		return nil
	}
	if s.readOnly {
		s.sendStatus(out, reqID, wire.StatusPermissionDenied, "server is read-only")
		return nil
	}

	if symbolic {
		if err := s.fs.Symlink(existing, newpath); err != nil {
			s.sendStatus(out, reqID, ErrnoToStatus(err), err.Error())
			return nil
		}
		s.sendStatus(out, reqID, wire.StatusOK, "")
		return nil
	}

	if fi, err := s.fs.Lstat(existing); err == nil && fi.IsDir() {
		s.sendStatus(out, reqID, wire.StatusFileIsADirectory, "cannot hardlink a directory")
		return nil
	}
	if err := s.fs.Link(existing, newpath); err != nil {
		if errors.Is(err, os.ErrPermission) {
			s.sendStatus(out, reqID, wire.StatusOPUnsupported, err.Error())
			return nil
		}
		s.sendStatus(out, reqID, ErrnoToStatus(err), err.Error())
		return nil
	}
	s.sendStatus(out, reqID, wire.StatusOK, "")
	return nil
}
