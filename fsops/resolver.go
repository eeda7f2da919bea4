package fsops

import (
	"os/user"
	"strconv"
)

// NameResolver translates between numeric uid/gid (the v3 wire form) and
// owner/group name strings (the v4+ wire form), the Go equivalent of the
// C implementation's pwent/grent lookups, grounded on the teacher's
// localfs/id_lookup.go LookupUserName/LookupGroupName.
type NameResolver interface {
	UIDToName(uid uint32) string
	GIDToName(gid uint32) string
	NameToUID(name string) (uint32, bool)
	NameToGID(name string) (uint32, bool)
}

// OSResolver resolves names via os/user, the same package the teacher
// uses.
type OSResolver struct{}

func (OSResolver) UIDToName(uid uint32) string {
	u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10))
	if err != nil {
		return strconv.FormatUint(uint64(uid), 10)
	}
	return u.Username
}

func (OSResolver) GIDToName(gid uint32) string {
	g, err := user.LookupGroupId(strconv.FormatUint(uint64(gid), 10))
	if err != nil {
		return strconv.FormatUint(uint64(gid), 10)
	}
	return g.Name
}

func (OSResolver) NameToUID(name string) (uint32, bool) {
	u, err := user.Lookup(name)
	if err != nil {
		return 0, false
	}
	n, err := strconv.ParseUint(u.Uid, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

func (OSResolver) NameToGID(name string) (uint32, bool) {
	g, err := user.LookupGroup(name)
	if err != nil {
		return 0, false
	}
	n, err := strconv.ParseUint(g.Gid, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}
