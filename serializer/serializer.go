// Package serializer implements the request-ordering discipline of §4.7:
// a process-wide queue that lets non-conflicting READ/WRITE operations on
// the same or different handles run concurrently while everything else
// executes in strict receive order. Grounded on the teacher's
// mutex+condition-variable idioms (conn.go's output mutex, request.go's
// sync.RWMutex state) generalized into a proper ordering queue, since the
// teacher repo has no equivalent serializer of its own.
package serializer

import (
	"sync"

	"github.com/ewxrjk/go-sftpserver/handle"
)

// Kind distinguishes READ/WRITE jobs (candidates for reordering) from
// every other request type (always FIFO).
type Kind int

const (
	KindOther Kind = iota
	KindRead
	KindWrite
)

// node is one entry in the serialization queue, newest-first.
type node struct {
	kind   Kind
	handle handle.ID
	offset uint64
	length uint64
	flags  handle.Flags

	done bool
	next *node
	prev *node
}

// Queue is the process-wide serialization queue described in §3 and
// §4.7. The zero value is not usable; use New.
type Queue struct {
	mu   sync.Mutex
	cond *sync.Cond
	head *node // newest
	tail *node // oldest

	// Reorder, when false, makes every job behave as FIFO-only, per the
	// spec's "Reorder-enabled flag" global (§3) and the Open Questions'
	// configurable-switch resolution (§9).
	Reorder bool
}

// New creates a Queue with reordering enabled by default, matching the
// protocol draft's as-if semantics; callers needing strict FIFO behavior
// set Reorder = false. READs on the same handle are never reordered
// either way (see reorderable).
func New() *Queue {
	q := &Queue{Reorder: true}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Ticket is the handle returned by Register; pass it to Wait and Release.
type Ticket struct {
	n *node
}

// Register pushes a new job onto the head of the queue. kind/handle/
// offset/length are the cheaply-extracted metadata described in §4.7 and
// §4.9 step 4; for KindOther, offset/length are ignored and the job is
// treated as covering everything.
func (q *Queue) Register(kind Kind, h handle.ID, offset, length uint64, flags handle.Flags) *Ticket {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := &node{kind: kind, handle: h, offset: offset, length: length, flags: flags}
	n.next = q.head
	if q.head != nil {
		q.head.prev = n
	}
	q.head = n
	if q.tail == nil {
		q.tail = n
	}
	return &Ticket{n: n}
}

// Wait blocks until every older, non-reorderable job has completed.
func (q *Queue) Wait(t *Ticket) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		blocked := false
		for older := t.n.next; older != nil; older = older.next {
			if older.done {
				continue
			}
			if !reorderable(q.Reorder, t.n, older) {
				blocked = true
				break
			}
		}
		if !blocked {
			return
		}
		q.cond.Wait()
	}
}

// Release marks t's job complete, unlinks it, and wakes every waiter.
func (q *Queue) Release(t *Ticket) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := t.n
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		q.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		q.tail = n.prev
	}
	n.done = true

	q.cond.Broadcast()
}

// reorderable implements the predicate of §4.7, including the documented
// Paramiko workaround: READs are never reorderable against other READs on
// the same handle, even though the draft would otherwise permit it.
func reorderable(reorderEnabled bool, a, b *node) bool {
	if !reorderEnabled {
		return false
	}
	if a.kind == KindOther || b.kind == KindOther {
		return false
	}
	if a.handle != b.handle {
		return true
	}
	if a.kind == KindRead && b.kind == KindRead {
		return false // Paramiko workaround, see DESIGN.md
	}
	if a.flags&(handle.FlagText|handle.FlagAppend) != 0 ||
		b.flags&(handle.FlagText|handle.FlagAppend) != 0 {
		return false
	}
	if a.kind == KindWrite || b.kind == KindWrite {
		return !rangesOverlap(a.offset, a.length, b.offset, b.length)
	}
	return true
}

func rangesOverlap(aOff, aLen, bOff, bLen uint64) bool {
	aEnd := aOff + aLen
	bEnd := bOff + bLen
	return aOff < bEnd && bOff < aEnd
}
