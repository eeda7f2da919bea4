package engine

import (
	"os"

	"github.com/ewxrjk/go-sftpserver/attrs"
	"github.com/ewxrjk/go-sftpserver/fsops"
	"github.com/ewxrjk/go-sftpserver/wire"
)

// buildAttributes turns an os.FileInfo into the canonical Attributes
// record, resolving owner/group names for v4+ only when the caller asks
// for OWNERGROUP via wantOwnerGroup, per §4.5 ("OWNERGROUP is
// resolved lazily via pwent/grent only when asked for").
func (s *Server) buildAttributes(fi os.FileInfo, version int, wantOwnerGroup bool) *attrs.Attributes {
	a := attrs.FromFileInfo(fi)

	uid, gid, nlink, ok := fsops.StatOwnership(fi)
	if ok {
		a.UID, a.GID, a.LinkCount = uid, gid, nlink
		if version >= 6 {
			a.Valid |= wire.AttrLinkCount
		}
		if version < 4 {
			a.Valid |= wire.AttrUIDGID
		} else if wantOwnerGroup {
			a.Owner = s.resolver.UIDToName(uid)
			a.Group = s.resolver.GIDToName(gid)
			a.Valid |= wire.AttrOwnerGroup
		}
	}

	a.Name = fi.Name()
	return a
}
