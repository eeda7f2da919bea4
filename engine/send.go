package engine

import (
	"github.com/ewxrjk/go-sftpserver/attrs"
	"github.com/ewxrjk/go-sftpserver/handle"
	"github.com/ewxrjk/go-sftpserver/wire"
)

// beginMessage reserves the 4-byte length prefix and appends the type
// byte and (when reqID is non-nil) the request id, mirroring the
// begin/end reserve-and-patch discipline of §4.1.
func beginMessage(out *wire.Buffer, typ wire.PacketType, reqID *uint32) int {
	mark := out.Reserve(4)
	out.AppendUint8(uint8(typ))
	if reqID != nil {
		out.AppendUint32(*reqID)
	}
	return mark
}

// endMessage back-patches the length prefix reserved by beginMessage.
func endMessage(out *wire.Buffer, mark int) {
	out.PatchUint32(mark, uint32(len(out.Bytes())-mark-4))
}

// SendStatus appends an SSH_FXP_STATUS reply with an English message, per
// §4.10/§7 ("status message is UTF-8, language tag en"). This is the raw
// encoder: it does not remap status. Every STATUS reply, INIT failures
// included, goes through the (*Server).sendStatus wrapper below, which
// remaps and then calls it.
func SendStatus(out *wire.Buffer, reqID uint32, status wire.Status, message string) {
	mark := beginMessage(out, wire.PacketStatus, &reqID)
	out.AppendUint32(uint32(status))
	out.AppendString(message)
	out.AppendString("en")
	endMessage(out, mark)
}

// sendStatus appends an SSH_FXP_STATUS reply, first laundering status
// through RemapStatus against the negotiated version's ceiling (§4.10:
// "any status above the current ceiling is remapped before sending"),
// the way the original launders centrally in sftp_send_status
// (status.c). Every handler's STATUS replies go through this single
// choke point rather than remembering to call RemapStatus themselves.
//
// Before INIT completes the descriptor's Version is 0 and its
// StatusCeiling is the zero value; fall back to the v3 ceiling so an
// INIT-time BAD_MESSAGE/OP_UNSUPPORTED isn't clamped down to FAILURE.
func (s *Server) sendStatus(out *wire.Buffer, reqID uint32, status wire.Status, message string) {
	desc := s.currentDescriptor()
	ceiling := desc.StatusCeiling
	if desc.Version == 0 {
		ceiling = wire.StatusCeiling(3)
	}
	SendStatus(out, reqID, RemapStatus(ceiling, status), message)
}

// SendHandle appends an SSH_FXP_HANDLE reply.
func SendHandle(out *wire.Buffer, reqID uint32, id handle.ID) {
	mark := beginMessage(out, wire.PacketHandle, &reqID)
	out.AppendHandle([8]byte(id))
	endMessage(out, mark)
}

// SendData appends an SSH_FXP_DATA reply.
func SendData(out *wire.Buffer, reqID uint32, data []byte) {
	mark := beginMessage(out, wire.PacketData, &reqID)
	out.AppendByteSlice(data)
	endMessage(out, mark)
}

// SendAttrs appends an SSH_FXP_ATTRS reply, using the negotiated
// version's attribute codec.
func SendAttrs(out *wire.Buffer, reqID uint32, version int, a *attrs.Attributes) {
	mark := beginMessage(out, wire.PacketAttrs, &reqID)
	if version >= 4 {
		attrs.EmitV4(out, a, version)
	} else {
		attrs.EmitV3(out, a)
	}
	endMessage(out, mark)
}

// NameEntry is one entry of an SSH_FXP_NAME reply.
type NameEntry struct {
	Name     string
	LongName string // v3 only
	Attrs    *attrs.Attributes
}

// SendNames appends an SSH_FXP_NAME reply, capping at
// wire.MaxNamesPerReaddir per §4.5 ("Emit up to MAXNAMES entries").
func SendNames(out *wire.Buffer, reqID uint32, version int, entries []NameEntry) {
	if len(entries) > wire.MaxNamesPerReaddir {
		entries = entries[:wire.MaxNamesPerReaddir]
	}
	mark := beginMessage(out, wire.PacketName, &reqID)
	out.AppendUint32(uint32(len(entries)))
	for _, e := range entries {
		out.AppendString(e.Name)
		if version < 4 {
			out.AppendString(e.LongName)
		}
		if version >= 4 {
			attrs.EmitV4(out, e.Attrs, version)
		} else {
			attrs.EmitV3(out, e.Attrs)
		}
	}
	endMessage(out, mark)
}

// SendExtendedReply appends an SSH_FXP_EXTENDED_REPLY whose body has
// already been built by the caller into payload. payload's fields (e.g.
// statvfs@openssh.org's eleven u64s) follow the type byte and request id
// directly, with no outer length prefix of their own.
func SendExtendedReply(out *wire.Buffer, reqID uint32, payload []byte) {
	mark := beginMessage(out, wire.PacketExtendedReply, &reqID)
	out.AppendRaw(payload)
	endMessage(out, mark)
}

// SendVersion appends the SSH_FXP_VERSION reply (no request id), per
// §4.4.
func SendVersion(out *wire.Buffer, version uint32, extensions map[string]string) {
	mark := beginMessage(out, wire.PacketVersion, nil)
	out.AppendUint32(version)
	for name, value := range extensions {
		out.AppendString(name)
		out.AppendString(value)
	}
	endMessage(out, mark)
}
