// Package handle implements the opaque, tag-validated handle table over
// open file descriptors and directory streams, as described in §3 and
// §4.2 of the spec and grounded on original_source/handle.c.
package handle

import (
	"encoding/binary"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// MaxHandles is the maximum number of concurrently open handles.
const MaxHandles = 128

// ErrInvalidHandle is returned when a lookup's (slot, tag) pair does not
// match a currently-open handle.
var ErrInvalidHandle = errors.New("handle: invalid handle")

// ErrTableFull is returned when MaxHandles concurrent handles are already
// in use.
var ErrTableFull = errors.New("handle: table full")

// Flags recorded alongside an open file handle.
type Flags uint32

const (
	FlagAppend Flags = 1 << iota
	FlagText
)

type kind uint8

const (
	kindFree kind = iota
	kindFile
	kindDir
)

// Dir is the minimal directory-stream interface the handle table stores;
// satisfied by *os.File opened on a directory.
type Dir interface {
	Readdir(n int) ([]os.FileInfo, error)
	Close() error
}

type slot struct {
	kind  kind
	tag   uint32
	path  string
	flags Flags
	file  *os.File
	dir   Dir
}

// ID is the externalized 8-byte handle: (slotIndex, generation tag), both
// network-order, as specified in §3.
type ID [8]byte

// Encode packs a slot index and generation tag into the wire handle form.
func Encode(slotIndex, tag uint32) ID {
	var id ID
	binary.BigEndian.PutUint32(id[0:4], slotIndex)
	binary.BigEndian.PutUint32(id[4:8], tag)
	return id
}

func (id ID) parts() (slotIndex, tag uint32) {
	return binary.BigEndian.Uint32(id[0:4]), binary.BigEndian.Uint32(id[4:8])
}

// Table is a process-wide, mutex-protected vector of handle slots. The
// zero value is not usable; use New.
type Table struct {
	mu       sync.Mutex
	slots    []slot
	sequence uint32
}

// New creates an empty handle table.
func New() *Table {
	return &Table{}
}

// findFreeSlot must be called with t.mu held. It returns the index of a
// free slot, growing the table geometrically up to MaxHandles.
func (t *Table) findFreeSlot() (int, error) {
	for n := range t.slots {
		if t.slots[n].kind == kindFree {
			return n, nil
		}
	}
	if len(t.slots) >= MaxHandles {
		return 0, ErrTableFull
	}
	grow := len(t.slots) * 2
	if grow == 0 {
		grow = 16
	}
	if grow > MaxHandles {
		grow = MaxHandles
	}
	n := len(t.slots)
	t.slots = append(t.slots, make([]slot, grow-len(t.slots))...)
	return n, nil
}

func (t *Table) nextTag() uint32 {
	t.sequence++
	for t.sequence == 0 {
		t.sequence++ // tag 0 is reserved, never assigned
	}
	return t.sequence
}

// NewFile allocates a handle over an open file descriptor.
func (t *Table) NewFile(f *os.File, path string, flags Flags) (ID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, err := t.findFreeSlot()
	if err != nil {
		return ID{}, err
	}
	tag := t.nextTag()
	t.slots[n] = slot{kind: kindFile, tag: tag, path: path, flags: flags, file: f}
	return Encode(uint32(n), tag), nil
}

// NewDir allocates a handle over a directory stream.
func (t *Table) NewDir(d Dir, path string) (ID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, err := t.findFreeSlot()
	if err != nil {
		return ID{}, err
	}
	tag := t.nextTag()
	t.slots[n] = slot{kind: kindDir, tag: tag, path: path, dir: d}
	return Encode(uint32(n), tag), nil
}

func (t *Table) lookup(id ID, want kind) (*slot, error) {
	n, tag := id.parts()
	if int(n) >= len(t.slots) {
		return nil, ErrInvalidHandle
	}
	s := &t.slots[n]
	if s.kind != want || s.tag != tag || s.tag == 0 {
		return nil, ErrInvalidHandle
	}
	return s, nil
}

// GetFile returns the open file and recorded flags for id.
func (t *Table) GetFile(id ID) (*os.File, Flags, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.lookup(id, kindFile)
	if err != nil {
		return nil, 0, err
	}
	return s.file, s.flags, nil
}

// GetDir returns the directory stream and path for id.
func (t *Table) GetDir(id ID) (Dir, string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, err := t.lookup(id, kindDir)
	if err != nil {
		return nil, "", err
	}
	return s.dir, s.path, nil
}

// GetFlags returns the recorded flags for id, or 0 if id is invalid.
func (t *Table) GetFlags(id ID) Flags {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, tag := id.parts()
	if int(n) >= len(t.slots) {
		return 0
	}
	s := &t.slots[n]
	if s.tag != tag || s.tag == 0 {
		return 0
	}
	return s.flags
}

// Path returns the path recorded when id was opened, for longname
// generation and error messages. Returns "" if id is invalid.
func (t *Table) Path(id ID) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, tag := id.parts()
	if int(n) >= len(t.slots) {
		return ""
	}
	s := &t.slots[n]
	if s.tag != tag || s.tag == 0 {
		return ""
	}
	return s.path
}

// Close closes the underlying FD or directory stream and frees the slot.
// The slot's tag is zeroed so any later use of id returns ErrInvalidHandle.
func (t *Table) Close(id ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, tag := id.parts()
	if int(n) >= len(t.slots) {
		return ErrInvalidHandle
	}
	s := &t.slots[n]
	if s.tag != tag || s.tag == 0 {
		return ErrInvalidHandle
	}

	s.tag = 0 // free the slot regardless of close outcome below
	kindWas := s.kind
	s.kind = kindFree

	var closeErr error
	switch kindWas {
	case kindFile:
		closeErr = s.file.Close()
	case kindDir:
		closeErr = s.dir.Close()
	default:
		closeErr = ErrInvalidHandle
	}
	s.file = nil
	s.dir = nil
	s.path = ""
	return closeErr
}

// CloseAll closes every currently-open handle, ignoring individual close
// errors, for use during connection teardown.
func (t *Table) CloseAll() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for n := range t.slots {
		s := &t.slots[n]
		switch s.kind {
		case kindFile:
			_ = s.file.Close()
		case kindDir:
			_ = s.dir.Close()
		}
		*s = slot{}
	}
}
