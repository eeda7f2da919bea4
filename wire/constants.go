package wire

// PacketType is the first byte of every SFTP message.
type PacketType uint8

// Message type codes, per §6 of the spec and the secsh-filexfer drafts.
const (
	PacketInit    PacketType = 1
	PacketVersion PacketType = 2
	PacketOpen    PacketType = 3
	PacketClose   PacketType = 4
	PacketRead    PacketType = 5
	PacketWrite   PacketType = 6
	PacketLstat   PacketType = 7
	PacketFstat   PacketType = 8
	PacketSetstat PacketType = 9
	PacketFsetstat PacketType = 10
	PacketOpendir PacketType = 11
	PacketReaddir PacketType = 12
	PacketRemove  PacketType = 13
	PacketMkdir   PacketType = 14
	PacketRmdir   PacketType = 15
	PacketRealpath PacketType = 16
	PacketStat    PacketType = 17
	PacketRename  PacketType = 18
	PacketReadlink PacketType = 19
	// Symlink (v3-5) and Link (v6) use the wire values 20 and 21
	// respectively; each version's table lists only the one it supports.
	PacketSymlink PacketType = 20
	PacketLink    PacketType = 21

	PacketStatus        PacketType = 101
	PacketHandle        PacketType = 102
	PacketData          PacketType = 103
	PacketName          PacketType = 104
	PacketAttrs         PacketType = 105
	PacketExtended      PacketType = 200
	PacketExtendedReply PacketType = 201
)

// Status is an SSH_FX_* reply code.
type Status uint32

const (
	StatusOK                     Status = 0
	StatusEOF                    Status = 1
	StatusNoSuchFile             Status = 2
	StatusPermissionDenied       Status = 3
	StatusFailure                Status = 4
	StatusBadMessage             Status = 5
	StatusNoConnection           Status = 6
	StatusConnectionLost         Status = 7
	StatusOPUnsupported          Status = 8
	// v4+
	StatusInvalidHandle          Status = 9
	StatusNoSuchPath             Status = 10
	StatusFileAlreadyExists      Status = 11
	StatusWriteProtect           Status = 12
	StatusNoMedia                Status = 13
	// v5+
	StatusNoSpaceOnFilesystem    Status = 14
	StatusQuotaExceeded          Status = 15
	StatusUnknownPrincipal       Status = 16
	StatusLockConflict           Status = 17
	// v6
	StatusDirNotEmpty            Status = 18
	StatusNotADirectory          Status = 19
	StatusInvalidFilename        Status = 20
	StatusLinkLoop               Status = 21
	StatusCannotDelete           Status = 22
	StatusInvalidParameter       Status = 23
	StatusFileIsADirectory       Status = 24
	StatusByteRangeLockConflict  Status = 25
	StatusByteRangeLockRefused   Status = 26
	StatusDeletePending          Status = 27
	StatusFileCorrupt            Status = 28
	StatusOwnerInvalid           Status = 29
	StatusGroupInvalid           Status = 30
	StatusNoMatchingByteRangeLock Status = 31
)

// StatusCeiling is the highest status code a given negotiated version may
// send on the wire; see §4.10.
func StatusCeiling(version int) Status {
	switch version {
	case 3:
		return StatusOPUnsupported
	case 4:
		return StatusNoMedia
	case 5:
		return StatusLockConflict
	default:
		return StatusNoMatchingByteRangeLock
	}
}

// Attribute valid-mask bits, v3 (draft-02 §5) and v4+ (draft-13 §5).
const (
	AttrSize           uint32 = 0x00000001
	AttrUIDGID         uint32 = 0x00000002 // v3 only
	AttrPermissions    uint32 = 0x00000004
	AttrACModTime      uint32 = 0x00000008 // v3 only (atime+mtime)
	AttrAccessTime     uint32 = 0x00000008 // v4+ (aliases v3 bit 3)
	AttrCreateTime     uint32 = 0x00000010
	AttrModifyTime     uint32 = 0x00000020
	AttrACL            uint32 = 0x00000040
	AttrOwnerGroup     uint32 = 0x00000080
	AttrSubsecondTimes uint32 = 0x00000100
	AttrBits           uint32 = 0x00000200 // v5+ attrib_bits
	AttrAllocationSize uint32 = 0x00000400 // v6
	AttrTextHint       uint32 = 0x00000800 // v6
	AttrMimeType       uint32 = 0x00001000 // v6
	AttrLinkCount      uint32 = 0x00002000 // v6
	AttrUntranslatedName uint32 = 0x00004000 // v6
	AttrCtime          uint32 = 0x00008000 // v6
	AttrExtended       uint32 = 0x80000000
)

// File type enum, v4+ Attributes.Type field.
const (
	FileTypeRegular   uint8 = 1
	FileTypeDirectory uint8 = 2
	FileTypeSymlink   uint8 = 3
	FileTypeSpecial   uint8 = 4
	FileTypeUnknown   uint8 = 5
	FileTypeSocket    uint8 = 6
	FileTypeCharDevice uint8 = 7
	FileTypeBlockDevice uint8 = 8
	FileTypeFIFO      uint8 = 9
)

// v3 OPEN pflags (draft-02 §6.3).
const (
	PFlagRead   uint32 = 0x00000001
	PFlagWrite  uint32 = 0x00000002
	PFlagAppend uint32 = 0x00000004
	PFlagCreat  uint32 = 0x00000008
	PFlagTrunc  uint32 = 0x00000010
	PFlagExcl   uint32 = 0x00000020
	PFlagText   uint32 = 0x00000040
)

// v5/v6 OPEN desired-access bits (ACE4 mask, a subset relevant to a plain
// POSIX filesystem back end).
const (
	ACE4ReadData        uint32 = 0x00000001
	ACE4ListDirectory   uint32 = 0x00000001
	ACE4WriteData       uint32 = 0x00000002
	ACE4AddFile         uint32 = 0x00000002
	ACE4AppendData      uint32 = 0x00000004
	ACE4AddSubdirectory uint32 = 0x00000004
	ACE4ReadAttributes  uint32 = 0x00000080
	ACE4WriteAttributes uint32 = 0x00000100
	ACE4Delete          uint32 = 0x00010000
	ACE4ReadACL         uint32 = 0x00020000
	ACE4WriteACL        uint32 = 0x00040000
	ACE4WriteOwner      uint32 = 0x00080000
	ACE4Synchronize     uint32 = 0x00100000
)

// v5/v6 OPEN flags field: low 3 bits are the disposition, remaining bits
// are modifiers.
const (
	DispositionMask          uint32 = 0x00000007
	DispositionCreateNew     uint32 = 0x00000000
	DispositionCreateTruncate uint32 = 0x00000001
	DispositionOpenExisting  uint32 = 0x00000002
	DispositionOpenOrCreate  uint32 = 0x00000003
	DispositionTruncateExisting uint32 = 0x00000004

	FlagAppendData       uint32 = 0x00000008
	FlagAppendDataAtomic uint32 = 0x00000010
	FlagTextMode         uint32 = 0x00000020
	FlagBlockRead        uint32 = 0x00000040
	FlagBlockWrite       uint32 = 0x00000080
	FlagBlockDelete      uint32 = 0x00000100
	FlagBlockAdvisory    uint32 = 0x00000200
	FlagNoFollow         uint32 = 0x00000400
	FlagDeleteOnClose    uint32 = 0x00000800
)

// v5/v6 RENAME flags.
const (
	RenameOverwrite uint32 = 0x00000001
	RenameAtomic    uint32 = 0x00000002
	RenameNative    uint32 = 0x00000004
)

// v6 REALPATH control byte.
const (
	RealpathNoCheck    uint8 = 0x00
	RealpathStatIf     uint8 = 0x01
	RealpathStatAlways uint8 = 0x02
)

// MaxMessageLength is the default fatal threshold for an inbound frame
// (excludes the 4-byte length prefix itself).
const MaxMessageLength = 1 << 20 // 1 MiB

// MaxReadLength is the default cap on a READ request's requested length.
const MaxReadLength = 1 << 20 // 1 MiB

// MaxNamesPerReaddir bounds how many entries a single READDIR reply sends.
const MaxNamesPerReaddir = 32
