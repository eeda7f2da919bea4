// Package arena implements a per-request bump allocator with bulk-free
// semantics, in the spirit of the teacher's allocator.go page pool but
// reshaped as a true chunk-chained arena: allocations are never freed
// individually, only the whole arena is destroyed at once.
//
// An Arena is not safe for concurrent use. Each Job (and each worker's
// scratch arena) owns exactly one.
package arena

const defaultChunkSize = 4096

type chunk struct {
	buf  []byte
	used int
	next *chunk
}

// Arena is a bump allocator made of chunks chained newest-first.
type Arena struct {
	head      *chunk
	chunkSize int
}

// New creates an Arena whose chunks are at least chunkSize bytes (rounded
// up for large single allocations). A chunkSize of 0 uses a reasonable
// default.
func New(chunkSize int) *Arena {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	return &Arena{chunkSize: chunkSize}
}

// Alloc returns an n-byte, zero-filled region. The slice is only valid
// until the next Destroy.
func (a *Arena) Alloc(n int) []byte {
	if n < 0 {
		panic("arena: negative allocation size")
	}
	if n == 0 {
		return nil
	}

	if a.head == nil || a.head.used+n > len(a.head.buf) {
		size := a.chunkSize
		if n > size {
			size = n
		}
		a.head = &chunk{buf: make([]byte, size), next: a.head}
	}

	c := a.head
	b := c.buf[c.used : c.used+n : c.used+n]
	c.used += n
	return b
}

// Grow extends the most-recently-returned allocation old (length oldLen)
// to newLen bytes in place when possible (old is the tail allocation of
// the newest chunk), zero-filling the newly exposed bytes; otherwise it
// falls back to allocate+copy.
func (a *Arena) Grow(old []byte, newLen int) []byte {
	if newLen <= len(old) {
		return a.Shrink(old, newLen)
	}

	if a.head != nil {
		c := a.head
		// old must be the tail allocation of the current chunk: its end
		// must coincide with c.used, and its start must lie within c.buf.
		if len(old) == 0 {
			return a.Alloc(newLen)
		}
		end := c.used
		start := end - len(old)
		if start >= 0 && start+len(old) <= len(c.buf) && &c.buf[start] == &old[0] {
			extra := newLen - len(old)
			if c.used+extra <= len(c.buf) {
				grown := c.buf[start : start+newLen : start+newLen]
				for i := len(old); i < newLen; i++ {
					grown[i] = 0
				}
				c.used += extra
				return grown
			}
		}
	}

	fresh := a.Alloc(newLen)
	copy(fresh, old)
	return fresh
}

// Shrink truncates the most-recent allocation old to newLen bytes in
// place when possible, reclaiming the tail space for subsequent
// allocations from the same chunk.
func (a *Arena) Shrink(old []byte, newLen int) []byte {
	if newLen < 0 || newLen > len(old) {
		panic("arena: invalid shrink length")
	}

	if len(old) == 0 {
		return old[:newLen]
	}

	if a.head != nil {
		c := a.head
		end := c.used
		start := end - len(old)
		if start >= 0 && &c.buf[start] == &old[0] {
			c.used = start + newLen
			for i := start + newLen; i < end; i++ {
				c.buf[i] = 0
			}
			return c.buf[start : start+newLen : start+newLen]
		}
	}

	return old[:newLen]
}

// Destroy releases every chunk. The Arena may be reused afterward as if
// newly created (equivalent to a bulk-free + reset).
func (a *Arena) Destroy() {
	a.head = nil
}

// Reset is an alias for Destroy, named for the worker-pool's per-job
// reset-after-each-job usage (§4.8).
func (a *Arena) Reset() { a.Destroy() }
