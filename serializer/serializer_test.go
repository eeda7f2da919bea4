package serializer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ewxrjk/go-sftpserver/handle"
)

var h1 = handle.Encode(0, 1)
var h2 = handle.Encode(1, 1)

func TestIndependentReadsOnDifferentHandlesDoNotBlock(t *testing.T) {
	q := New()
	t1 := q.Register(KindRead, h1, 0, 10, 0)
	t2 := q.Register(KindRead, h2, 0, 10, 0)

	done := make(chan struct{})
	go func() {
		q.Wait(t2)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait on independent handle blocked")
	}

	q.Release(t1)
	q.Release(t2)
}

func TestReadsOnSameHandleDoNotReorder(t *testing.T) {
	q := New()
	t1 := q.Register(KindRead, h1, 0, 10, 0)
	t2 := q.Register(KindRead, h1, 10, 10, 0)

	blocked := make(chan struct{})
	go func() {
		q.Wait(t2)
		close(blocked)
	}()

	select {
	case <-blocked:
		t.Fatal("Paramiko workaround: same-handle READ/READ must not reorder")
	case <-time.After(50 * time.Millisecond):
	}

	q.Release(t1)

	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("t2 never unblocked after t1 released")
	}
	q.Release(t2)
}

func TestNonOverlappingWritesReorder(t *testing.T) {
	q := New()
	t1 := q.Register(KindWrite, h1, 0, 10, 0)
	t2 := q.Register(KindWrite, h1, 100, 10, 0)

	done := make(chan struct{})
	go func() {
		q.Wait(t2)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("non-overlapping writes should not block each other")
	}

	q.Release(t1)
	q.Release(t2)
}

func TestOverlappingWritesBlock(t *testing.T) {
	q := New()
	t1 := q.Register(KindWrite, h1, 0, 10, 0)
	t2 := q.Register(KindWrite, h1, 5, 10, 0)

	blocked := make(chan struct{})
	go func() {
		q.Wait(t2)
		close(blocked)
	}()

	select {
	case <-blocked:
		t.Fatal("overlapping writes must serialize")
	case <-time.After(50 * time.Millisecond):
	}

	q.Release(t1)

	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("t2 never unblocked")
	}
	q.Release(t2)
}

func TestNonReadWriteNeverReorders(t *testing.T) {
	q := New()
	t1 := q.Register(KindOther, handle.ID{}, 0, 0, 0)
	t2 := q.Register(KindRead, h1, 0, 10, 0)

	blocked := make(chan struct{})
	go func() {
		q.Wait(t2)
		close(blocked)
	}()

	select {
	case <-blocked:
		t.Fatal("any job behind a non-READ/WRITE must wait for it")
	case <-time.After(50 * time.Millisecond):
	}

	q.Release(t1)
	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("t2 never unblocked")
	}
	q.Release(t2)
}

func TestReorderDisabledForcesFIFO(t *testing.T) {
	q := New()
	q.Reorder = false
	t1 := q.Register(KindWrite, h1, 0, 10, 0)
	t2 := q.Register(KindWrite, h1, 100, 10, 0)

	blocked := make(chan struct{})
	go func() {
		q.Wait(t2)
		close(blocked)
	}()

	select {
	case <-blocked:
		t.Fatal("with Reorder disabled, even non-overlapping writes must serialize")
	case <-time.After(50 * time.Millisecond):
	}

	q.Release(t1)
	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("t2 never unblocked")
	}
	q.Release(t2)
	assert.False(t, q.Reorder)
}
