package engine

import (
	"strconv"

	"github.com/ewxrjk/go-sftpserver/protocol"
	"github.com/ewxrjk/go-sftpserver/wire"
)

const maxSupportedVersion = 6

// handleInit implements INIT/VERSION negotiation per §4.4: the chosen
// version is min(client_version, 6); clients below v3 get OP_UNSUPPORTED
// on a STATUS message since VERSION has no status field to carry it.
func (s *Server) handleInit(body *wire.Buffer, _ uint32, out *wire.Buffer) error {
	clientVersion, err := body.ConsumeUint32()
	if err != nil {
		s.sendStatus(out, 0, wire.StatusBadMessage, "malformed INIT")
		return nil
	}

	if clientVersion < 3 {
		s.sendStatus(out, 0, wire.StatusOPUnsupported, "client protocol version too old")
		return nil
	}

	chosen := int(clientVersion)
	if chosen > maxSupportedVersion {
		chosen = maxSupportedVersion
	}

	desc := s.buildDescriptor(chosen)
	extensionNames := make([]string, len(desc.Extensions))
	for i, e := range desc.Extensions {
		extensionNames[i] = e.Name
	}

	extensions := map[string]string{
		"vendor-id": vendorID(),
	}
	symlinkOrder := "linkpath-targetpath"
	if s.reverseSymlinkQuirk {
		symlinkOrder = "targetpath-linkpath"
	}
	extensions["symlink-order@rjk.greenend.org.uk"] = symlinkOrder

	if chosen >= 4 {
		extensions["newline"] = "\n"
	}
	if chosen == 5 {
		extensions["supported"] = supportedBlock(extensionNames)
	}
	if chosen == 6 {
		extensions["supported2"] = supported2Block(extensionNames)
		extensions["versions"] = "3,4,5,6"
		extensions["link-order@rjk.greenend.org.uk"] = symlinkOrder
	}

	SendVersion(out, uint32(chosen), extensions)

	s.setDescriptor(desc)
	if chosen == 6 {
		s.openVersionSelectWindow()
	}
	return nil
}

// supportedAttrMask and supportedOpenFlags mirror the bits the original
// server's VERSION handshake advertises for "supported"/"supported2"
// (sftpserver.c): the attribute categories this server actually
// populates, and the OPEN flag bits it actually understands.
const supportedAttrMask = wire.AttrSize | wire.AttrPermissions | wire.AttrAccessTime |
	wire.AttrModifyTime | wire.AttrOwnerGroup | wire.AttrSubsecondTimes
const supportedOpenFlagsV5 = wire.DispositionMask | wire.FlagAppendData | wire.FlagAppendDataAtomic | wire.FlagTextMode
const supportedOpenFlagsV6 = supportedOpenFlagsV5 | wire.FlagNoFollow | wire.FlagDeleteOnClose

// vendorID builds the v5+ vendor-id extension's sub-block: vendor-name,
// product-name, product-version, and a product-build-number, per
// draft-ietf-secsh-filexfer and the original server's vendor-id block
// in sftpserver.c.
func vendorID() string {
	b := wire.NewWriteBuffer(64)
	b.AppendString("go-sftpserver")
	b.AppendString("go-sftpserver")
	b.AppendString("1")
	b.AppendUint64(0)
	return string(b.Bytes())
}

// supportedBlock builds the v5 "supported" extension's sub-block
// (draft-ietf-secsh-filexfer-05 §4.4): the attribute/open-flag/access
// masks this server honors, followed by the names of the other
// extensions it implements, grounded on sftpserver.c's "supported"
// handling.
func supportedBlock(extensionNames []string) string {
	b := wire.NewWriteBuffer(64)
	b.AppendUint32(supportedAttrMask)
	b.AppendUint32(0) // supported-attribute-bits: no v5+ attrib-bits field support
	b.AppendUint32(supportedOpenFlagsV5)
	b.AppendUint32(0xFFFFFFFF) // supported-access-mask
	b.AppendUint32(0)          // max-read-size: unpromised, see sftpserver.c
	for _, name := range extensionNames {
		b.AppendString(name)
	}
	return string(b.Bytes())
}

// supported2Block builds the v6 "supported2" extension's sub-block
// (draft-ietf-secsh-filexfer-13 §5.4), grounded on sftpserver.c's
// "supported2" handling.
func supported2Block(extensionNames []string) string {
	b := wire.NewWriteBuffer(96)
	b.AppendUint32(supportedAttrMask)
	b.AppendUint32(0) // supported-attribute-bits
	b.AppendUint32(supportedOpenFlagsV6)
	b.AppendUint32(0xFFFFFFFF) // supported-access-mask
	b.AppendUint32(0)          // max-read-size
	b.AppendUint16(1)          // supported-open-block-vector
	b.AppendUint16(1)          // supported-block-vector
	b.AppendUint32(0)          // attrib-extension-count
	b.AppendUint32(uint32(len(extensionNames)))
	for _, name := range extensionNames {
		b.AppendString(name)
	}
	return string(b.Bytes())
}

// buildDescriptor constructs the static per-version protocol table of §3,
// binding each request-type code and extension name to this Server's
// handler methods.
func (s *Server) buildDescriptor(version int) *protocol.Descriptor {
	d := &protocol.Descriptor{
		Version:       version,
		AttrValidMask: attrValidMask(version),
		StatusCeiling: wire.StatusCeiling(version),
	}

	if version >= 4 {
		d.EncodeFilename = protocol.EncodeFilenameUTF8
		d.DecodeFilename = protocol.DecodeFilenameUTF8
	} else {
		d.EncodeFilename = protocol.EncodeFilenameV3
		d.DecodeFilename = protocol.DecodeFilenameV3
	}

	d.Commands = []protocol.CommandEntry{
		{Code: wire.PacketOpen, Handler: s.handleOpen},
		{Code: wire.PacketClose, Handler: s.handleClose},
		{Code: wire.PacketRead, Handler: s.handleRead},
		{Code: wire.PacketWrite, Handler: s.handleWrite},
		{Code: wire.PacketLstat, Handler: s.handleLstat},
		{Code: wire.PacketFstat, Handler: s.handleFstat},
		{Code: wire.PacketSetstat, Handler: s.handleSetstat},
		{Code: wire.PacketFsetstat, Handler: s.handleFsetstat},
		{Code: wire.PacketOpendir, Handler: s.handleOpendir},
		{Code: wire.PacketReaddir, Handler: s.handleReaddir},
		{Code: wire.PacketRemove, Handler: s.handleRemove},
		{Code: wire.PacketMkdir, Handler: s.handleMkdir},
		{Code: wire.PacketRmdir, Handler: s.handleRmdir},
		{Code: wire.PacketRealpath, Handler: s.handleRealpath},
		{Code: wire.PacketStat, Handler: s.handleStat},
		{Code: wire.PacketRename, Handler: s.handleRename},
		{Code: wire.PacketReadlink, Handler: s.handleReadlink},
	}
	if version >= 6 {
		d.Commands = append(d.Commands, protocol.CommandEntry{Code: wire.PacketLink, Handler: s.handleLinkV6})
	} else {
		d.Commands = append(d.Commands, protocol.CommandEntry{Code: wire.PacketSymlink, Handler: s.handleSymlinkLegacy})
	}

	d.Extensions = []protocol.ExtensionEntry{
		{Name: "posix-rename@openssh.org", Handler: s.extPosixRename},
		{Name: "statvfs@openssh.org", Handler: s.extStatVFS},
		{Name: "space-available", Handler: s.extSpaceAvailable},
		{Name: "text-seek", Handler: s.extTextSeek},
		{Name: "hardlink@openssh.com", Handler: s.extHardlink},
	}
	if version == 6 {
		d.Extensions = append(d.Extensions, protocol.ExtensionEntry{Name: "version-select", Handler: s.extVersionSelect})
	}

	d.SortTables()
	return d
}

func attrValidMask(version int) uint32 {
	mask := wire.AttrSize | wire.AttrPermissions
	if version < 4 {
		mask |= wire.AttrUIDGID | wire.AttrACModTime
		return mask
	}
	mask |= wire.AttrOwnerGroup | wire.AttrAccessTime | wire.AttrCreateTime | wire.AttrModifyTime |
		wire.AttrACL | wire.AttrSubsecondTimes
	if version >= 6 {
		mask |= wire.AttrCtime | wire.AttrBits | wire.AttrAllocationSize | wire.AttrTextHint |
			wire.AttrMimeType | wire.AttrLinkCount | wire.AttrUntranslatedName
	}
	return mask
}

// parseVersionSelectArg parses the "3"/"4"/"5"/"6" argument of the
// version-select extension.
func parseVersionSelectArg(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 3 || n > maxSupportedVersion {
		return 0, false
	}
	return n, true
}
