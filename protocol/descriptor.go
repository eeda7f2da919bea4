// Package protocol holds the per-version protocol descriptor: the static
// table of command/extension handlers, the accepted attribute valid-mask,
// the status ceiling, and the filename codec functions that differ
// between wire versions 3 through 6 (the name-list and attribute codecs
// are not part of the descriptor; callers choose them by Version), per §3
// ("Protocol descriptor") and §4.4 of the spec. Grounded on the teacher's
// packet-typing.go dispatch-by-type-code switch, generalized from a
// single fixed table into one table per negotiated version, and on
// internal/encoding/ssh/filexfer's per-packet Marshal/Unmarshal split for
// the polymorphic codec hooks.
package protocol

import (
	"sort"

	"github.com/ewxrjk/go-sftpserver/wire"
)

// HandlerFunc executes one command or extension. body is positioned just
// past the request-type byte (and, for non-INIT requests, the request
// id); reqID is 0 for INIT. Implementations append their response
// directly to out using wire's reserve/patch helpers and return an error
// only for conditions the caller must translate into a fatal connection
// teardown — ordinary failures are reported by appending a STATUS message
// to out and returning nil.
type HandlerFunc func(body *wire.Buffer, reqID uint32, out *wire.Buffer) error

// CommandEntry binds one request-type byte to its handler.
type CommandEntry struct {
	Code    wire.PacketType
	Handler HandlerFunc
}

// ExtensionEntry binds one SSH_FXP_EXTENDED name to its handler.
type ExtensionEntry struct {
	Name    string
	Handler HandlerFunc
}

// Descriptor is the static per-version protocol table described in §3.
type Descriptor struct {
	Version       int
	Commands      []CommandEntry   // must stay sorted by Code
	Extensions    []ExtensionEntry // must stay sorted by Name
	AttrValidMask uint32
	StatusCeiling wire.Status

	// EncodeFilename/DecodeFilename implement the version-dependent
	// filename codec of §4.1/§6: v3 treats filenames as opaque local
	// bytes, v4+ requires UTF-8.
	EncodeFilename func(name string) []byte
	DecodeFilename func(raw []byte) (string, error)
}

// Command finds the handler for a request-type byte via binary search,
// the Go equivalent of the spec's sorted-table binary search (§4.4).
func (d *Descriptor) Command(code wire.PacketType) (HandlerFunc, bool) {
	i := sort.Search(len(d.Commands), func(i int) bool { return d.Commands[i].Code >= code })
	if i < len(d.Commands) && d.Commands[i].Code == code {
		return d.Commands[i].Handler, true
	}
	return nil, false
}

// Extension finds the handler for an SSH_FXP_EXTENDED name via binary
// search.
func (d *Descriptor) Extension(name string) (HandlerFunc, bool) {
	i := sort.Search(len(d.Extensions), func(i int) bool { return d.Extensions[i].Name >= name })
	if i < len(d.Extensions) && d.Extensions[i].Name == name {
		return d.Extensions[i].Handler, true
	}
	return nil, false
}

// SortTables sorts Commands and Extensions in place; callers building a
// Descriptor literal should call this once before first use unless they
// already listed entries in order.
func (d *Descriptor) SortTables() {
	sort.Slice(d.Commands, func(i, j int) bool { return d.Commands[i].Code < d.Commands[j].Code })
	sort.Slice(d.Extensions, func(i, j int) bool { return d.Extensions[i].Name < d.Extensions[j].Name })
}

// PreInit returns the descriptor installed before INIT has been
// processed: a table holding only INIT, per §3's "Global state" and §4.4.
func PreInit(initHandler HandlerFunc) *Descriptor {
	return &Descriptor{
		Version:  0,
		Commands: []CommandEntry{{Code: wire.PacketInit, Handler: initHandler}},
	}
}

// EncodeFilenameV3 treats the name as opaque bytes in the local encoding,
// per §4.1/§6 ("v3: raw bytes treated as local encoding").
func EncodeFilenameV3(name string) []byte { return []byte(name) }

// DecodeFilenameV3 is the inverse of EncodeFilenameV3: v3 never validates
// encoding, it only round-trips bytes.
func DecodeFilenameV3(raw []byte) (string, error) { return string(raw), nil }

// EncodeFilenameUTF8 is the v4+ filename codec: names are UTF-8.
func EncodeFilenameUTF8(name string) []byte { return []byte(name) }

// DecodeFilenameUTF8 is the v4+ filename codec. Neither it nor the wire
// package's ConsumeString validates UTF-8: the bytes pass through
// unchanged so that round-trip fidelity (§6) holds even for names a
// stricter validator would reject.
func DecodeFilenameUTF8(raw []byte) (string, error) { return string(raw), nil }
