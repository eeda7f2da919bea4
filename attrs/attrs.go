// Package attrs implements the canonical internal attribute record (a
// superset of every wire version's on-the-wire attribute form) and its
// per-version marshaling, grounded on the teacher's attrs.go and
// internal/encoding/ssh/filexfer attribute handling, generalized to
// versions 3-6 per §3/§4.5 of the spec.
package attrs

import (
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/ewxrjk/go-sftpserver/wire"
)

// FileType enumerates the canonical file type codes (§3).
type FileType uint8

const (
	TypeRegular FileType = iota + 1
	TypeDirectory
	TypeSymlink
	TypeSpecial
	TypeUnknown
	TypeSocket
	TypeCharDevice
	TypeBlockDevice
	TypeFIFO
)

// Attributes is the canonical internal attribute record: a superset of
// every wire version's fields, with Valid marking which are populated.
type Attributes struct {
	Valid uint32

	Size           uint64
	AllocationSize uint64
	LinkCount      uint32

	UID uint32 // v3
	GID uint32 // v3

	Owner string // v4+
	Group string // v4+

	Permissions os.FileMode

	Atime     time.Time
	AtimeNsec uint32
	Mtime     time.Time
	MtimeNsec uint32
	Ctime     time.Time
	CtimeNsec uint32
	Createtime     time.Time
	CreatetimeNsec uint32

	ACL []byte // opaque, parsed and discarded

	AttribBits      uint32
	AttribBitsValid uint32

	TextHint          uint8
	MimeType          string
	UntranslatedName  string

	Type FileType

	// Populated only when emitting name-list (READDIR/REALPATH) entries.
	Name     string
	LongName string
	Target   string
}

// IsDir reports whether the record describes a directory.
func (a *Attributes) IsDir() bool { return a.Type == TypeDirectory }

// FromFileInfo builds a canonical Attributes record from a standard
// library FileInfo, filling in the fields that POSIX stat can supply.
// UID/GID/owner/group must be set by the caller from the platform-specific
// Sys() data, since os.FileInfo alone doesn't expose them portably.
//
// Both wireAttrACModTime and wireAttrModifyTime are set: EmitV3 reads the
// former as atime+mtime and discards the latter, while EmitV4 reads the
// former as atime only and requires the latter for mtime (§4.5) — setting
// both lets one Valid mask serve every wire version.
func FromFileInfo(fi os.FileInfo) *Attributes {
	a := &Attributes{
		Valid:       wireAttrSize | wireAttrPermissions | wireAttrACModTime | wireAttrModifyTime,
		Size:        uint64(fi.Size()),
		Permissions: fi.Mode(),
		Mtime:       fi.ModTime(),
		Atime:       fi.ModTime(),
		Type:        fileTypeFromMode(fi.Mode()),
	}
	return a
}

func fileTypeFromMode(m os.FileMode) FileType {
	switch {
	case m&os.ModeSymlink != 0:
		return TypeSymlink
	case m.IsDir():
		return TypeDirectory
	case m&os.ModeSocket != 0:
		return TypeSocket
	case m&os.ModeDevice != 0 && m&os.ModeCharDevice != 0:
		return TypeCharDevice
	case m&os.ModeDevice != 0:
		return TypeBlockDevice
	case m&os.ModeNamedPipe != 0:
		return TypeFIFO
	case m.IsRegular():
		return TypeRegular
	default:
		return TypeUnknown
	}
}

// Wire-level valid-flag bits shared by v3 and v4+ encodings, matching
// wire/constants.go.
const (
	wireAttrSize         = wire.AttrSize
	wireAttrUIDGID       = wire.AttrUIDGID
	wireAttrPermissions  = wire.AttrPermissions
	wireAttrACModTime    = wire.AttrACModTime
	wireAttrCreateTime   = wire.AttrCreateTime
	wireAttrModifyTime   = wire.AttrModifyTime
	wireAttrACL          = wire.AttrACL
	wireAttrOwnerGroup   = wire.AttrOwnerGroup
	wireAttrSubsecond    = wire.AttrSubsecondTimes
	wireAttrAllocSize    = wire.AttrAllocationSize
	wireAttrTextHint     = wire.AttrTextHint
	wireAttrMimeType     = wire.AttrMimeType
	wireAttrLinkCount    = wire.AttrLinkCount
	wireAttrUntranslated = wire.AttrUntranslatedName
	wireAttrCtime        = wire.AttrCtime
	wireAttrExtended     = wire.AttrExtended
	wireAttrBits         = wire.AttrBits
)

// ErrTruncated wraps wire.ErrShortPacket under an "attrs" prefix. The
// parse functions in this package do not return it: on a short buffer
// they return the wire package's errors (such as wire.ErrShortPacket)
// directly.
var ErrTruncated = errors.Wrap(wire.ErrShortPacket, "attrs")

// ParseV3 parses a v3-encoded attribute block (§6).
func ParseV3(b *wire.Buffer) (*Attributes, error) {
	flags, err := b.ConsumeUint32()
	if err != nil {
		return nil, err
	}
	a := &Attributes{Valid: flags &^ wireAttrExtended}

	if flags&wireAttrSize != 0 {
		if a.Size, err = b.ConsumeUint64(); err != nil {
			return nil, err
		}
	}
	if flags&wireAttrUIDGID != 0 {
		if a.UID, err = b.ConsumeUint32(); err != nil {
			return nil, err
		}
		if a.GID, err = b.ConsumeUint32(); err != nil {
			return nil, err
		}
	}
	if flags&wireAttrPermissions != 0 {
		perm, err := b.ConsumeUint32()
		if err != nil {
			return nil, err
		}
		a.Permissions = os.FileMode(perm & 0777)
	}
	if flags&wireAttrACModTime != 0 {
		atime, err := b.ConsumeUint32()
		if err != nil {
			return nil, err
		}
		mtime, err := b.ConsumeUint32()
		if err != nil {
			return nil, err
		}
		a.Atime = time.Unix(int64(atime), 0)
		a.Mtime = time.Unix(int64(mtime), 0)
	}
	if flags&wireAttrExtended != 0 {
		count, err := b.ConsumeUint32()
		if err != nil {
			return nil, err
		}
		for i := uint32(0); i < count; i++ {
			if _, err := b.ConsumeString(); err != nil {
				return nil, err
			}
			if _, err := b.ConsumeString(); err != nil {
				return nil, err
			}
		}
	}
	return a, nil
}

// EmitV3 appends a's v3 wire encoding to b, honoring a.Valid.
func EmitV3(b *wire.Buffer, a *Attributes) {
	flags := a.Valid &^ (wireAttrOwnerGroup | wireAttrCreateTime | wireAttrModifyTime |
		wireAttrCtime | wireAttrACL | wireAttrSubsecond | wireAttrAllocSize |
		wireAttrTextHint | wireAttrMimeType | wireAttrLinkCount | wireAttrUntranslated)
	b.AppendUint32(flags)

	if flags&wireAttrSize != 0 {
		b.AppendUint64(a.Size)
	}
	if flags&wireAttrUIDGID != 0 {
		b.AppendUint32(a.UID)
		b.AppendUint32(a.GID)
	}
	if flags&wireAttrPermissions != 0 {
		b.AppendUint32(uint32(a.Permissions.Perm()) | v3TypeBits(a))
	}
	if flags&wireAttrACModTime != 0 {
		b.AppendUint32(uint32(a.Atime.Unix()))
		b.AppendUint32(uint32(a.Mtime.Unix()))
	}
}

// v3TypeBits folds the canonical FileType into the upper bits of a POSIX
// mode word the way v3 clients expect (S_IFDIR, S_IFLNK, ...).
func v3TypeBits(a *Attributes) uint32 {
	switch a.Type {
	case TypeDirectory:
		return 0040000
	case TypeSymlink:
		return 0120000
	case TypeSocket:
		return 0140000
	case TypeCharDevice:
		return 0020000
	case TypeBlockDevice:
		return 0060000
	case TypeFIFO:
		return 0010000
	default:
		return 0100000
	}
}

// ParseV4 parses a v4+ attribute block. version selects the fields that
// differ between v4, v5, and v6 (ctime, attrib-bits valid-mask);
// subsecond times are read whenever the SUBSECOND_TIMES flag is set.
func ParseV4(b *wire.Buffer, version int) (*Attributes, error) {
	flags, err := b.ConsumeUint32()
	if err != nil {
		return nil, err
	}
	typeByte, err := b.ConsumeUint8()
	if err != nil {
		return nil, err
	}
	a := &Attributes{Valid: flags &^ wireAttrExtended, Type: FileType(typeByte)}

	if flags&wireAttrSize != 0 {
		if a.Size, err = b.ConsumeUint64(); err != nil {
			return nil, err
		}
	}
	if flags&wireAttrAllocSize != 0 {
		if a.AllocationSize, err = b.ConsumeUint64(); err != nil {
			return nil, err
		}
	}
	if flags&wireAttrOwnerGroup != 0 {
		if a.Owner, err = b.ConsumeString(); err != nil {
			return nil, err
		}
		if a.Group, err = b.ConsumeString(); err != nil {
			return nil, err
		}
	}
	if flags&wireAttrPermissions != 0 {
		perm, err := b.ConsumeUint32()
		if err != nil {
			return nil, err
		}
		a.Permissions = os.FileMode(perm & 0777)
	}
	subsecond := flags&wireAttrSubsecond != 0
	if flags&wireAttrACModTime != 0 {
		if a.Atime, a.AtimeNsec, err = consumeTime(b, subsecond); err != nil {
			return nil, err
		}
	}
	if flags&wireAttrCreateTime != 0 {
		if a.Createtime, a.CreatetimeNsec, err = consumeTime(b, subsecond); err != nil {
			return nil, err
		}
	}
	if flags&wireAttrModifyTime != 0 {
		if a.Mtime, a.MtimeNsec, err = consumeTime(b, subsecond); err != nil {
			return nil, err
		}
	}
	if version >= 6 && flags&wireAttrCtime != 0 {
		if a.Ctime, a.CtimeNsec, err = consumeTime(b, subsecond); err != nil {
			return nil, err
		}
	}
	if flags&wireAttrACL != 0 {
		if a.ACL, err = b.ConsumeByteSlice(); err != nil {
			return nil, err
		}
	}
	if flags&wireAttrBits != 0 {
		if a.AttribBits, err = b.ConsumeUint32(); err != nil {
			return nil, err
		}
		if version >= 6 {
			if a.AttribBitsValid, err = b.ConsumeUint32(); err != nil {
				return nil, err
			}
		}
	}
	if flags&wireAttrTextHint != 0 {
		if a.TextHint, err = b.ConsumeUint8(); err != nil {
			return nil, err
		}
	}
	if flags&wireAttrMimeType != 0 {
		if a.MimeType, err = b.ConsumeString(); err != nil {
			return nil, err
		}
	}
	if flags&wireAttrLinkCount != 0 {
		if a.LinkCount, err = b.ConsumeUint32(); err != nil {
			return nil, err
		}
	}
	if flags&wireAttrUntranslated != 0 {
		if a.UntranslatedName, err = b.ConsumeString(); err != nil {
			return nil, err
		}
	}
	if flags&wireAttrExtended != 0 {
		count, err := b.ConsumeUint32()
		if err != nil {
			return nil, err
		}
		for i := uint32(0); i < count; i++ {
			if _, err := b.ConsumeString(); err != nil {
				return nil, err
			}
			if _, err := b.ConsumeString(); err != nil {
				return nil, err
			}
		}
	}
	return a, nil
}

func consumeTime(b *wire.Buffer, subsecond bool) (time.Time, uint32, error) {
	secs, err := b.ConsumeInt64()
	if err != nil {
		return time.Time{}, 0, err
	}
	var nsec uint32
	if subsecond {
		if nsec, err = b.ConsumeUint32(); err != nil {
			return time.Time{}, 0, err
		}
	}
	return time.Unix(secs, 0), nsec, nil
}

// EmitV4 appends a's v4+ wire encoding to b for the given negotiated
// version, honoring a.Valid and clamping fields the version doesn't
// support (ctime is v6-only, §4.5/§6).
func EmitV4(b *wire.Buffer, a *Attributes, version int) {
	flags := a.Valid
	if version < 6 {
		flags &^= wireAttrCtime
	}
	b.AppendUint32(flags)
	b.AppendUint8(uint8(a.Type))

	if flags&wireAttrSize != 0 {
		b.AppendUint64(a.Size)
	}
	if flags&wireAttrAllocSize != 0 {
		b.AppendUint64(a.AllocationSize)
	}
	if flags&wireAttrOwnerGroup != 0 {
		b.AppendString(a.Owner)
		b.AppendString(a.Group)
	}
	if flags&wireAttrPermissions != 0 {
		b.AppendUint32(uint32(a.Permissions.Perm()))
	}
	subsecond := flags&wireAttrSubsecond != 0
	if flags&wireAttrACModTime != 0 {
		appendTime(b, a.Atime, a.AtimeNsec, subsecond)
	}
	if flags&wireAttrCreateTime != 0 {
		appendTime(b, a.Createtime, a.CreatetimeNsec, subsecond)
	}
	if flags&wireAttrModifyTime != 0 {
		appendTime(b, a.Mtime, a.MtimeNsec, subsecond)
	}
	if version >= 6 && flags&wireAttrCtime != 0 {
		appendTime(b, a.Ctime, a.CtimeNsec, subsecond)
	}
	if flags&wireAttrACL != 0 {
		b.AppendByteSlice(a.ACL)
	}
	if flags&wireAttrBits != 0 {
		b.AppendUint32(a.AttribBits)
		if version >= 6 {
			b.AppendUint32(a.AttribBitsValid)
		}
	}
	if flags&wireAttrTextHint != 0 {
		b.AppendUint8(a.TextHint)
	}
	if flags&wireAttrMimeType != 0 {
		b.AppendString(a.MimeType)
	}
	if flags&wireAttrLinkCount != 0 {
		b.AppendUint32(a.LinkCount)
	}
	if flags&wireAttrUntranslated != 0 {
		b.AppendString(a.UntranslatedName)
	}
}

func appendTime(b *wire.Buffer, t time.Time, nsec uint32, subsecond bool) {
	b.AppendInt64(t.Unix())
	if subsecond {
		b.AppendUint32(nsec)
	}
}
