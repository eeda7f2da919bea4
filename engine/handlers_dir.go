package engine

import (
	"io"
	"os"

	"github.com/ewxrjk/go-sftpserver/attrs"
	"github.com/ewxrjk/go-sftpserver/handle"
	"github.com/ewxrjk/go-sftpserver/wire"
)

// handleOpendir implements OPENDIR: opens the directory stream and
// allocates a directory handle (§4.2's new_dir).
func (s *Server) handleOpendir(body *wire.Buffer, reqID uint32, out *wire.Buffer) error {
	path, err := body.ConsumeString()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed OPENDIR")
		return nil
	}

	d, err := s.fs.Opendir(path)
	if err != nil {
		s.sendStatus(out, reqID, ErrnoToStatus(err), err.Error())
		return nil
	}
	fi, err := d.Stat()
	if err != nil || !fi.IsDir() {
		_ = d.Close()
		s.sendStatus(out, reqID, wire.StatusNotADirectory, "not a directory")
		return nil
	}

	id, err := s.handles.NewDir(d, path)
	if err != nil {
		_ = d.Close()
		s.sendStatus(out, reqID, wire.StatusFailure, err.Error())
		return nil
	}
	SendHandle(out, reqID, id)
	return nil
}

// handleReaddir implements READDIR (§4.5): up to MaxNamesPerReaddir
// entries per response, v3 entries additionally carrying an ls-style
// longname (readlink is invoked for symlink entries to assemble it).
func (s *Server) handleReaddir(body *wire.Buffer, reqID uint32, out *wire.Buffer) error {
	h, err := body.ConsumeHandle()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed READDIR")
		return nil
	}

	id := handle.ID(h)
	dirIface, dirPath, err := s.handles.GetDir(id)
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusInvalidHandle, "invalid handle")
		return nil
	}
	dir, ok := dirIface.(*os.File)
	if !ok {
		s.sendStatus(out, reqID, wire.StatusFailure, "handle is not a directory stream")
		return nil
	}

	infos, readErr := dir.Readdir(wire.MaxNamesPerReaddir)
	if len(infos) == 0 {
		if readErr == io.EOF || readErr == nil {
			s.sendStatus(out, reqID, wire.StatusEOF, "EOF")
			return nil
		}
		s.sendStatus(out, reqID, ErrnoToStatus(readErr), readErr.Error())
		return nil
	}

	desc := s.currentDescriptor()
	entries := make([]NameEntry, 0, len(infos))
	for _, fi := range infos {
		a := s.buildAttributes(fi, desc.Version, false)
		entry := NameEntry{Name: fi.Name(), Attrs: a}
		if desc.Version < 4 {
			if fi.Mode()&os.ModeSymlink != 0 {
				if target, err := s.fs.Readlink(dirPath + "/" + fi.Name()); err == nil {
					a.Target = target
				}
			}
			entry.LongName = attrs.FormatLongname(a, s.resolver)
		}
		entries = append(entries, entry)
	}

	SendNames(out, reqID, desc.Version, entries)
	return nil
}

// handleRemove implements REMOVE (§4.5): unlink semantics, restricted
// against directories per the spec's deliberate choice to not allow
// REMOVE on a directory (use RMDIR).
func (s *Server) handleRemove(body *wire.Buffer, reqID uint32, out *wire.Buffer) error {
	path, err := body.ConsumeString()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed REMOVE")
		return nil
	}
	if s.readOnly {
		s.sendStatus(out, reqID, wire.StatusPermissionDenied, "server is read-only")
		return nil
	}
	if fi, statErr := s.fs.Lstat(path); statErr == nil && fi.IsDir() {
		s.sendStatus(out, reqID, wire.StatusFileIsADirectory, "is a directory")
		return nil
	}
	if err := s.fs.Remove(path); err != nil {
		s.sendStatus(out, reqID, ErrnoToStatus(err), err.Error())
		return nil
	}
	s.sendStatus(out, reqID, wire.StatusOK, "")
	return nil
}

// handleRmdir implements RMDIR.
func (s *Server) handleRmdir(body *wire.Buffer, reqID uint32, out *wire.Buffer) error {
	path, err := body.ConsumeString()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed RMDIR")
		return nil
	}
	if s.readOnly {
		s.sendStatus(out, reqID, wire.StatusPermissionDenied, "server is read-only")
		return nil
	}
	if err := s.fs.Rmdir(path); err != nil {
		s.sendStatus(out, reqID, ErrnoToStatus(err), err.Error())
		return nil
	}
	s.sendStatus(out, reqID, wire.StatusOK, "")
	return nil
}

// defaultDirPermissions is applied to MKDIR when the request's
// attributes carry no permissions, per §4.5 ("apply DEFAULT_PERMISSIONS
// (0755)").
const defaultDirPermissions = 0755

// handleMkdir implements MKDIR.
func (s *Server) handleMkdir(body *wire.Buffer, reqID uint32, out *wire.Buffer) error {
	path, err := body.ConsumeString()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed MKDIR")
		return nil
	}

	desc := s.currentDescriptor()
	var a *attrs.Attributes
	if desc.Version >= 4 {
		a, err = attrs.ParseV4(body, desc.Version)
	} else {
		a, err = attrs.ParseV3(body)
	}
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed MKDIR")
		return nil
	}

	if s.readOnly {
		s.sendStatus(out, reqID, wire.StatusPermissionDenied, "server is read-only")
		return nil
	}

	perm := os.FileMode(defaultDirPermissions)
	if a.Valid&wire.AttrPermissions != 0 {
		perm = a.Permissions.Perm()
	}
	if err := s.fs.Mkdir(path, perm); err != nil {
		s.sendStatus(out, reqID, ErrnoToStatus(err), err.Error())
		return nil
	}
	s.sendStatus(out, reqID, wire.StatusOK, "")
	return nil
}
