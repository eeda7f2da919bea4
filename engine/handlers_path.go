package engine

import (
	"os"
	"strings"

	"github.com/ewxrjk/go-sftpserver/attrs"
	"github.com/ewxrjk/go-sftpserver/handle"
	"github.com/ewxrjk/go-sftpserver/realpath"
	"github.com/ewxrjk/go-sftpserver/wire"
)

// virtualReadlink adapts s.fs to realpath.Readlink: Lstat first so a
// missing path is reported as "not a link" rather than an error, exactly
// the distinction original_source/realpath.c's EINVAL-on-non-link check
// makes for a readlink(2) call.
func (s *Server) virtualReadlink(path string) (string, bool, error) {
	fi, err := s.fs.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	if fi.Mode()&os.ModeSymlink == 0 {
		return "", false, nil
	}
	target, err := s.fs.Readlink(path)
	if err != nil {
		return "", false, err
	}
	return target, true, nil
}

// canonicalize runs the lexical canonicalization algorithm of §4.5
// against the server's virtual root ("/"), optionally chasing symlinks.
func (s *Server) canonicalize(path string, follow bool) (string, error) {
	var rl realpath.Readlink
	if follow {
		rl = s.virtualReadlink
	}
	return realpath.Resolve("/", path, follow, rl)
}

// handleRealpath implements REALPATH (§4.5). v3-v5 canonicalize lexically
// only, never following a trailing symlink, as if under NO_CHECK; v6
// additionally accepts a control byte and zero or more compose-path
// arguments, then applies NO_CHECK/STAT_IF/STAT_ALWAYS. An absolute
// compose argument resets the path instead of being appended.
func (s *Server) handleRealpath(body *wire.Buffer, reqID uint32, out *wire.Buffer) error {
	path, err := body.ConsumeString()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed REALPATH")
		return nil
	}

	desc := s.currentDescriptor()
	control := wire.RealpathNoCheck
	if desc.Version >= 6 {
		if body.Len() > 0 {
			b, err := body.ConsumeUint8()
			if err != nil {
				s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed REALPATH")
				return nil
			}
			control = b
			for body.Len() > 0 {
				extra, err := body.ConsumeString()
				if err != nil {
					s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed REALPATH")
					return nil
				}
				if strings.HasPrefix(extra, "/") {
					path = extra
				} else {
					path = path + "/" + extra
				}
			}
		}
	}

	follow := control != wire.RealpathNoCheck
	resolved, err := s.canonicalize(path, follow)
	if err != nil {
		if err == realpath.ErrLinkLoop {
			s.sendStatus(out, reqID, wire.StatusLinkLoop, err.Error())
			return nil
		}
		s.sendStatus(out, reqID, ErrnoToStatus(err), err.Error())
		return nil
	}

	var fi os.FileInfo
	switch control {
	case wire.RealpathStatAlways:
		fi, err = s.fs.Stat(resolved)
		if err != nil {
			s.sendStatus(out, reqID, ErrnoToStatus(err), err.Error())
			return nil
		}
	case wire.RealpathStatIf:
		fi, _ = s.fs.Stat(resolved)
	}

	entry := NameEntry{Name: resolved}
	if fi != nil {
		entry.Attrs = s.buildAttributes(fi, desc.Version, false)
	} else {
		entry.Attrs = &attrs.Attributes{Name: resolved, Type: attrs.TypeUnknown}
	}
	SendNames(out, reqID, desc.Version, []NameEntry{entry})
	return nil
}

// statReply builds and sends an SSH_FXP_ATTRS reply for fi, resolving
// OWNERGROUP only when the negotiated version is v4+ (v3 attributes
// always carry numeric uid/gid, never names). requestMask is the trailing
// attribute-mask word a v4+ STAT/LSTAT/FSTAT request carries (§4.5: "the
// response honors the request's flags mask (v4+) for which attribute
// categories to include"); v3 requests carry no such field, so callers
// pass 0xFFFFFFFF (request everything) in that case.
func (s *Server) statReply(reqID uint32, out *wire.Buffer, fi os.FileInfo, requestMask uint32) {
	desc := s.currentDescriptor()
	a := s.buildAttributes(fi, desc.Version, desc.Version >= 4 && requestMask&wire.AttrOwnerGroup != 0)
	a.Valid &= requestMask
	SendAttrs(out, reqID, desc.Version, a)
}

// consumeAttrMask reads the v4+ trailing attribute-mask word STAT, LSTAT,
// and FSTAT requests carry (draft-ietf-secsh-filexfer §4.5 has them as
// `path, flags` / `handle, flags` beyond v3's bare `path`/`handle`). v3
// requests have no such field, so the mask there is implicitly "all".
func consumeAttrMask(body *wire.Buffer, version int) (uint32, error) {
	if version < 4 {
		return 0xFFFFFFFF, nil
	}
	return body.ConsumeUint32()
}

// handleStat implements STAT: follows symlinks.
func (s *Server) handleStat(body *wire.Buffer, reqID uint32, out *wire.Buffer) error {
	desc := s.currentDescriptor()
	path, err := body.ConsumeString()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed STAT")
		return nil
	}
	mask, err := consumeAttrMask(body, desc.Version)
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed STAT")
		return nil
	}
	fi, err := s.fs.Stat(path)
	if err != nil {
		s.sendStatus(out, reqID, ErrnoToStatus(err), err.Error())
		return nil
	}
	s.statReply(reqID, out, fi, mask)
	return nil
}

// handleLstat implements LSTAT: does not follow a final symlink.
func (s *Server) handleLstat(body *wire.Buffer, reqID uint32, out *wire.Buffer) error {
	desc := s.currentDescriptor()
	path, err := body.ConsumeString()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed LSTAT")
		return nil
	}
	mask, err := consumeAttrMask(body, desc.Version)
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed LSTAT")
		return nil
	}
	fi, err := s.fs.Lstat(path)
	if err != nil {
		s.sendStatus(out, reqID, ErrnoToStatus(err), err.Error())
		return nil
	}
	s.statReply(reqID, out, fi, mask)
	return nil
}

// handleFstat implements FSTAT: operates on an already-open handle,
// which may be a file or a directory stream.
func (s *Server) handleFstat(body *wire.Buffer, reqID uint32, out *wire.Buffer) error {
	desc := s.currentDescriptor()
	h, err := body.ConsumeHandle()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed FSTAT")
		return nil
	}
	mask, err := consumeAttrMask(body, desc.Version)
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed FSTAT")
		return nil
	}
	id := handle.ID(h)

	if f, _, ferr := s.handles.GetFile(id); ferr == nil {
		fi, err := f.Stat()
		if err != nil {
			s.sendStatus(out, reqID, ErrnoToStatus(err), err.Error())
			return nil
		}
		s.statReply(reqID, out, fi, mask)
		return nil
	}
	if d, _, derr := s.handles.GetDir(id); derr == nil {
		if f, ok := d.(*os.File); ok {
			fi, err := f.Stat()
			if err != nil {
				s.sendStatus(out, reqID, ErrnoToStatus(err), err.Error())
				return nil
			}
			s.statReply(reqID, out, fi, mask)
			return nil
		}
	}
	s.sendStatus(out, reqID, wire.StatusInvalidHandle, "invalid handle")
	return nil
}

// handleReadlink implements READLINK.
func (s *Server) handleReadlink(body *wire.Buffer, reqID uint32, out *wire.Buffer) error {
	path, err := body.ConsumeString()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed READLINK")
		return nil
	}
	target, err := s.fs.Readlink(path)
	if err != nil {
		s.sendStatus(out, reqID, ErrnoToStatus(err), err.Error())
		return nil
	}
	desc := s.currentDescriptor()
	SendNames(out, reqID, desc.Version, []NameEntry{{Name: target, Attrs: &attrs.Attributes{Name: target, Type: attrs.TypeUnknown}}})
	return nil
}
