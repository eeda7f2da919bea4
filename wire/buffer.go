// Package wire implements the length-prefixed, big-endian wire encoding
// used by the SSH_FXP_* messages of the secsh-filexfer drafts.
package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/ewxrjk/go-sftpserver/arena"
)

// ErrShortPacket is returned when a Buffer does not contain enough bytes
// to satisfy a Consume call.
var ErrShortPacket = errors.New("wire: packet too short")

// ErrLongString is returned when a length-prefixed byte string declares a
// length the protocol forbids (0xFFFFFFFF, per secsh-filexfer).
var ErrLongString = errors.New("wire: string length out of range")

// Buffer wraps the encode/decode details of the wire format: unsigned
// big-endian u8/u16/u32/u64 and length-prefixed byte strings.
//
// A Buffer is not safe for concurrent use; callers own one per request via
// the per-request arena (see package arena).
type Buffer struct {
	b     []byte
	off   int
	arena *arena.Arena
}

// NewBuffer wraps buf for reading. The Buffer takes ownership of buf.
func NewBuffer(buf []byte) *Buffer {
	return &Buffer{b: buf}
}

// NewWriteBuffer returns a Buffer ready for appending, with size bytes of
// backing capacity preallocated on the general heap.
func NewWriteBuffer(size int) *Buffer {
	return &Buffer{b: make([]byte, 0, size)}
}

// NewArenaBuffer returns a Buffer ready for appending whose growth is
// served entirely by a instead of make (§4.3): every byte the reply
// accumulates lives in the request's arena and is freed in bulk when the
// arena is destroyed, rather than trickling through the general heap.
func NewArenaBuffer(a *arena.Arena) *Buffer {
	return &Buffer{arena: a}
}

// grow extends b.b by n bytes, zero-filled, returning the old length (the
// offset the caller should write the new bytes at). When the Buffer is
// arena-backed the extension is served by arena.Grow instead of append,
// so the backing array is bump-allocated rather than heap-allocated.
func (b *Buffer) grow(n int) int {
	old := len(b.b)
	if b.arena != nil {
		b.b = b.arena.Grow(b.b, old+n)
	} else {
		b.b = append(b.b, make([]byte, n)...)
	}
	return old
}

// write appends p to b, through grow so arena-backed Buffers bump-allocate.
func (b *Buffer) write(p []byte) {
	old := b.grow(len(p))
	copy(b.b[old:], p)
}

// Bytes returns the unconsumed bytes of the Buffer.
func (b *Buffer) Bytes() []byte { return b.b[b.off:] }

// Len returns the number of unconsumed bytes remaining.
func (b *Buffer) Len() int { return len(b.b) - b.off }

func (b *Buffer) ConsumeUint8() (uint8, error) {
	if b.Len() < 1 {
		return 0, ErrShortPacket
	}
	v := b.b[b.off]
	b.off++
	return v, nil
}

func (b *Buffer) AppendUint8(v uint8) { b.write([]byte{v}) }

func (b *Buffer) ConsumeBool() (bool, error) {
	v, err := b.ConsumeUint8()
	return v != 0, err
}

func (b *Buffer) AppendBool(v bool) {
	if v {
		b.AppendUint8(1)
	} else {
		b.AppendUint8(0)
	}
}

func (b *Buffer) ConsumeUint16() (uint16, error) {
	if b.Len() < 2 {
		return 0, ErrShortPacket
	}
	v := binary.BigEndian.Uint16(b.b[b.off:])
	b.off += 2
	return v, nil
}

func (b *Buffer) AppendUint16(v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	b.write(tmp[:])
}

func (b *Buffer) ConsumeUint32() (uint32, error) {
	if b.Len() < 4 {
		return 0, ErrShortPacket
	}
	v := binary.BigEndian.Uint32(b.b[b.off:])
	b.off += 4
	return v, nil
}

func (b *Buffer) AppendUint32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	b.write(tmp[:])
}

func (b *Buffer) ConsumeUint64() (uint64, error) {
	if b.Len() < 8 {
		return 0, ErrShortPacket
	}
	v := binary.BigEndian.Uint64(b.b[b.off:])
	b.off += 8
	return v, nil
}

func (b *Buffer) AppendUint64(v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	b.write(tmp[:])
}

// ConsumeInt64 reinterprets the next 8 bytes as signed, per the DESIGN.md
// note on v4+ time fields: the wire is a bit-exact 64-bit quantity whether
// the draft in question calls it signed or unsigned.
func (b *Buffer) ConsumeInt64() (int64, error) {
	u, err := b.ConsumeUint64()
	return int64(u), err
}

func (b *Buffer) AppendInt64(v int64) { b.AppendUint64(uint64(v)) }

// ConsumeByteSlice consumes a length-prefixed byte string. The returned
// slice aliases the Buffer's backing array.
func (b *Buffer) ConsumeByteSlice() ([]byte, error) {
	length, err := b.ConsumeUint32()
	if err != nil {
		return nil, err
	}
	if length == 0xFFFFFFFF {
		return nil, ErrLongString
	}
	if b.Len() < int(length) {
		return nil, ErrShortPacket
	}
	v := b.b[b.off : b.off+int(length) : b.off+int(length)]
	b.off += int(length)
	return v, nil
}

func (b *Buffer) AppendByteSlice(v []byte) {
	b.AppendUint32(uint32(len(v)))
	b.write(v)
}

// AppendRaw appends v with no length prefix, for callers that have
// already built a complete sub-message body (e.g. an EXTENDED_REPLY
// payload whose own field layout carries no outer length word).
func (b *Buffer) AppendRaw(v []byte) {
	b.write(v)
}

// ConsumeString consumes a length-prefixed UTF-8 string.
func (b *Buffer) ConsumeString() (string, error) {
	v, err := b.ConsumeByteSlice()
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func (b *Buffer) AppendString(v string) { b.AppendByteSlice([]byte(v)) }

// ConsumeHandle consumes an 8-byte opaque handle string; any other length
// is a protocol error (BAD_MESSAGE), per §4.1 of the spec.
func (b *Buffer) ConsumeHandle() ([8]byte, error) {
	var h [8]byte
	raw, err := b.ConsumeByteSlice()
	if err != nil {
		return h, err
	}
	if len(raw) != 8 {
		return h, errors.Errorf("wire: handle length %d, want 8", len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

func (b *Buffer) AppendHandle(h [8]byte) { b.AppendByteSlice(h[:]) }

// Reserve appends n zero bytes and returns their offset, for later
// back-patching (used to reserve a length prefix before the length of the
// following sub-block is known).
func (b *Buffer) Reserve(n int) int {
	return b.grow(n)
}

// PatchUint32 overwrites the 4 bytes at offset with v, big-endian. Used to
// back-patch a length reserved earlier with Reserve.
func (b *Buffer) PatchUint32(offset int, v uint32) {
	binary.BigEndian.PutUint32(b.b[offset:offset+4], v)
}
