package engine

import (
	"github.com/ewxrjk/go-sftpserver/attrs"
	"github.com/ewxrjk/go-sftpserver/handle"
	"github.com/ewxrjk/go-sftpserver/wire"
)

// applyAttributeChanges writes a's requested fields to path in the fixed
// order §4.5 specifies: truncate, then chown, then chmod, then utimes. A
// ctime-set request is silently ignored (there is no POSIX call to set
// it directly). The first failing step's error is returned. Shares its
// field-application order with genericOpen's applyInitialAttributes
// (§4.6), since both implement the same "apply requested attributes"
// step of the spec.
func (s *Server) applyAttributeChanges(path string, a *attrs.Attributes) error {
	return s.applyInitialAttributes(path, a)
}

// handleSetstat implements SETSTAT.
func (s *Server) handleSetstat(body *wire.Buffer, reqID uint32, out *wire.Buffer) error {
	path, err := body.ConsumeString()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed SETSTAT")
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
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed SETSTAT")
		return nil
	}
	if s.readOnly {
		s.sendStatus(out, reqID, wire.StatusPermissionDenied, "server is read-only")
		return nil
	}
	if err := s.applyAttributeChanges(path, a); err != nil {
		s.sendStatus(out, reqID, ErrnoToStatus(err), err.Error())
		return nil
	}
	s.sendStatus(out, reqID, wire.StatusOK, "")
	return nil
}

// handleFsetstat implements FSETSTAT, applying the same changes to an
// already-open file handle's recorded path.
func (s *Server) handleFsetstat(body *wire.Buffer, reqID uint32, out *wire.Buffer) error {
	h, err := body.ConsumeHandle()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed FSETSTAT")
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
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed FSETSTAT")
		return nil
	}
	if s.readOnly {
		s.sendStatus(out, reqID, wire.StatusPermissionDenied, "server is read-only")
		return nil
	}

	id := handle.ID(h)
	path := s.handles.Path(id)
	if path == "" {
		s.sendStatus(out, reqID, wire.StatusInvalidHandle, "invalid handle")
		return nil
	}
	if err := s.applyAttributeChanges(path, a); err != nil {
		s.sendStatus(out, reqID, ErrnoToStatus(err), err.Error())
		return nil
	}
	s.sendStatus(out, reqID, wire.StatusOK, "")
	return nil
}
