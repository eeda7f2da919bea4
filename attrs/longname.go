package attrs

import (
	"fmt"
	"time"
)

// NameResolver is the minimal interface longname formatting needs to turn
// numeric owner/group into display names; fsops.NameResolver satisfies
// it.
type NameResolver interface {
	UIDToName(uid uint32) string
	GIDToName(gid uint32) string
}

// modeString renders a with ls -l's permission-and-type string, e.g.
// "drwxr-xr-x" or "-rw-r--r--".
func modeString(a *Attributes) string {
	var typeChar byte
	switch a.Type {
	case TypeDirectory:
		typeChar = 'd'
	case TypeSymlink:
		typeChar = 'l'
	case TypeSocket:
		typeChar = 's'
	case TypeCharDevice:
		typeChar = 'c'
	case TypeBlockDevice:
		typeChar = 'b'
	case TypeFIFO:
		typeChar = 'p'
	default:
		typeChar = '-'
	}

	perm := a.Permissions.Perm()
	rwx := "rwxrwxrwx"
	out := make([]byte, 10)
	out[0] = typeChar
	for i := 0; i < 9; i++ {
		if perm&(1<<uint(8-i)) != 0 {
			out[i+1] = rwx[i]
		} else {
			out[i+1] = '-'
		}
	}
	return string(out)
}

// FormatLongname renders the ls -l style line used in v3 READDIR
// responses (§4.5), grounded directly on the teacher's longname.go
// FormatLongname, generalized from os.FileInfo to the canonical
// Attributes record so it works uniformly whether the owner/group came
// from a v3 numeric uid/gid or were already resolved to names.
func FormatLongname(a *Attributes, resolver NameResolver) string {
	owner := a.Owner
	group := a.Group
	if owner == "" && resolver != nil {
		owner = resolver.UIDToName(a.UID)
	}
	if group == "" && resolver != nil {
		group = resolver.GIDToName(a.GID)
	}
	if owner == "" {
		owner = fmt.Sprint(a.UID)
	}
	if group == "" {
		group = fmt.Sprint(a.GID)
	}

	links := a.LinkCount
	if links == 0 {
		links = 1
	}

	mtime := a.Mtime
	month := mtime.Format("Jan")
	day := mtime.Format("2")

	var yearOrTime string
	if mtime.Before(time.Now().AddDate(0, -6, 0)) {
		yearOrTime = mtime.Format("2006")
	} else {
		yearOrTime = mtime.Format("15:04")
	}

	name := a.Name
	if a.Target != "" {
		name += " -> " + a.Target
	}

	return fmt.Sprintf("%s %4d %-8s %-8s %8d %s % 2s %5s %s",
		modeString(a), links, owner, group, int64(a.Size), month, day, yearOrTime, name)
}
