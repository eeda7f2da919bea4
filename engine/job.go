package engine

import (
	"io"

	"github.com/ewxrjk/go-sftpserver/arena"
	"github.com/ewxrjk/go-sftpserver/wire"
)

// Job is an in-memory record for one inbound request, per §3 ("Job").
type Job struct {
	raw   []byte // owned message bytes, including the type byte
	body  *wire.Buffer
	reqID uint32
	hasID bool

	arena *arena.Arena
}

// newJob builds a Job from a raw, already-length-delimited message whose
// bytes were themselves allocated from a (see readJob), and wraps body in
// an arena-backed wire.Buffer so request parsing and the eventual reply
// both bump-allocate from the same per-request arena instead of the
// general heap (§4.3).
func newJob(a *arena.Arena, raw []byte) *Job {
	j := &Job{raw: raw, arena: a}
	typ := wire.PacketType(raw[0])
	rest := raw[1:]
	if typ != wire.PacketInit && typ != wire.PacketVersion {
		buf := wire.NewBuffer(rest)
		id, err := buf.ConsumeUint32()
		if err == nil {
			j.reqID = id
			j.hasID = true
			rest = buf.Bytes()
		}
	}
	j.body = wire.NewBuffer(rest)
	return j
}

// readJob reads one length-prefixed message from r into a freshly
// created per-request arena (§4.3) and returns the Job built from it.
// Per-request arenas default to a modest chunk size; most requests never
// allocate more than a path or two plus their reply. On error the arena
// is destroyed immediately since no Job survives to release it.
func readJob(r io.Reader, maxLength uint32) (*Job, error) {
	a := arena.New(512)
	raw, err := wire.ReadMessageWith(r, maxLength, a.Alloc)
	if err != nil {
		a.Destroy()
		return nil, err
	}
	return newJob(a, raw), nil
}

// Type returns the request's wire type code.
func (j *Job) Type() wire.PacketType { return wire.PacketType(j.raw[0]) }

// Release destroys the job's arena; called once the handler has
// responded and the serializer has released the job, per §3.
func (j *Job) Release() { j.arena.Destroy() }
