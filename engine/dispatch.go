package engine

import (
	"io"

	"github.com/ewxrjk/go-sftpserver/handle"
	"github.com/ewxrjk/go-sftpserver/serializer"
	"github.com/ewxrjk/go-sftpserver/wire"
)

// Serve runs the single-threaded reader/dispatch loop of §4.9: read one
// length-prefixed message at a time, register it with the serializer,
// and hand it to the worker pool. It returns nil on a clean EOF and a
// non-nil error for any fatal framing or protocol violation.
//
// Per §4.4/§4.9, the worker pool does not exist yet when INIT is handled,
// and for a v6 negotiation it must still not exist when the first
// post-INIT request is handled either, since that request might be
// version-select and its descriptor swap (§9: "the only mutations happen
// before workers start or via version-select ... before the worker pool
// exists") must be complete before any worker could possibly race it by
// reading the stale descriptor. So INIT and, for v6 only, the single
// request immediately following it run synchronously on this goroutine;
// the pool is created only once that is done.
func (s *Server) Serve() error {
	defer func() {
		if s.pool != nil {
			s.pool.Shutdown()
		}
		s.handles.CloseAll()
	}()

	job, err := readJob(s.in, s.maxMessageLength)
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	s.runSynchronously(job)
	if err := s.takeFatal(); err != nil {
		return err
	}

	if s.currentDescriptor().Version >= 6 {
		job, err := readJob(s.in, s.maxMessageLength)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		s.runSynchronously(job)
		if err := s.takeFatal(); err != nil {
			return err
		}
	}

	s.pool = newWorkerPool(s.workerCount)

	for {
		if err := s.takeFatal(); err != nil {
			return err
		}

		job, err := readJob(s.in, s.maxMessageLength)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		if job.Type() == wire.PacketInit {
			s.runSynchronously(job)
			continue
		}

		s.dispatch(job)
	}
}

// runSynchronously executes job inline, on the dispatch goroutine, instead
// of handing it to the (possibly not-yet-existent) worker pool: used for
// INIT itself and, for a v6 negotiation, the single request immediately
// following it (see Serve), so VERSION — and any descriptor swap the
// first post-INIT request performs — is always fully applied before any
// later request can possibly be processed by a worker.
func (s *Server) runSynchronously(job *Job) {
	defer job.Release()
	out := wire.NewArenaBuffer(job.arena)
	desc := s.currentDescriptor()

	var handler protocolHandler
	var found bool
	var isVersionSelect bool

	if job.Type() == wire.PacketExtended {
		peek := wire.NewBuffer(job.body.Bytes())
		name, err := peek.ConsumeString()
		if err != nil {
			s.sendStatus(out, job.reqID, wire.StatusBadMessage, "malformed EXTENDED")
			_ = s.writeMessage(out.Bytes())
			return
		}
		isVersionSelect = name == "version-select"
		handler, found = desc.Extension(name)
		job.body = peek
	} else {
		handler, found = desc.Command(job.Type())
	}

	// Mirrors dispatch()'s window bookkeeping (see there for why this must
	// happen before the handler runs rather than inside it), collapsed
	// here since everything on this path is already synchronous: no
	// wrapping closure is needed, just an ordinary legality check.
	if isVersionSelect {
		if !s.consumeVersionSelectWindow() {
			if found {
				s.sendStatus(out, job.reqID, wire.StatusInvalidParameter, "version-select is only legal as the first request")
				_ = s.writeMessage(out.Bytes())
				s.recordFatal(errVersionSelectMisuse)
			}
			return
		}
	} else {
		s.closeVersionSelectWindow()
	}

	if !found {
		s.sendStatus(out, job.reqID, wire.StatusOPUnsupported, "unsupported request type")
		_ = s.writeMessage(out.Bytes())
		return
	}

	if err := handler(job.body, job.reqID, out); err != nil {
		s.recordFatal(err)
		return
	}
	_ = s.writeMessage(out.Bytes())
}

// dispatch resolves job's handler, extracts the serializer metadata, and
// submits the work to the pool, per §4.9 steps 2-6.
func (s *Server) dispatch(job *Job) {
	desc := s.currentDescriptor()

	var handler protocolHandler
	var found bool
	var isVersionSelect bool

	if job.Type() == wire.PacketExtended {
		peek := wire.NewBuffer(job.body.Bytes())
		name, err := peek.ConsumeString()
		if err != nil {
			s.submitBadMessage(job, "malformed EXTENDED")
			return
		}
		isVersionSelect = name == "version-select"
		handler, found = desc.Extension(name)
		job.body = peek // advance past the consumed extension name
	} else {
		handler, found = desc.Command(job.Type())
	}

	// The version-select legality window must be consumed in strict
	// receive order: this happens synchronously here, on the single
	// dispatch goroutine, for both outcomes, rather than inside the
	// handler itself (which runs later on a pool worker and could race
	// against a subsequent request's closeVersionSelectWindow call).
	if isVersionSelect {
		legal := s.consumeVersionSelectWindow()
		if found {
			wrapped := handler
			handler = func(body *wire.Buffer, reqID uint32, out *wire.Buffer) error {
				if !legal {
					s.sendStatus(out, reqID, wire.StatusInvalidParameter, "version-select is only legal as the first request")
					return errVersionSelectMisuse
				}
				return wrapped(body, reqID, out)
			}
		}
	} else {
		s.closeVersionSelectWindow()
	}

	if !found {
		s.submitUnsupported(job, "unsupported request type")
		return
	}

	kind, h, offset, length := classifyForSerializer(job)
	var flags handle.Flags
	if kind != serializer.KindOther {
		flags = s.handles.GetFlags(h)
	}

	// Register on this (single-threaded) dispatch goroutine, in receive
	// order, so the queue's newest-first chain reflects arrival order
	// exactly as §4.9 step 4 requires; only Wait/Release happen on the
	// worker, since a job's position in that chain must be fixed before
	// any later-arriving job can register behind it.
	ticket := s.queue.Register(kind, h, offset, length, flags)

	s.pool.Submit(func() {
		defer job.Release()

		s.queue.Wait(ticket)

		out := wire.NewArenaBuffer(job.arena)
		err := handler(job.body, job.reqID, out)

		s.queue.Release(ticket)

		if err != nil {
			if len(out.Bytes()) > 0 {
				_ = s.writeMessage(out.Bytes())
			}
			s.recordFatal(err)
			return
		}
		_ = s.writeMessage(out.Bytes())
	})
}

// protocolHandler is a local alias avoiding a direct "protocol" import
// for the small amount of dispatch glue that only needs the function
// shape, not the descriptor type itself.
type protocolHandler = func(body *wire.Buffer, reqID uint32, out *wire.Buffer) error

// submitBadMessage replies BAD_MESSAGE for a request this server couldn't
// even parse, run inline since it never touches the filesystem.
func (s *Server) submitBadMessage(job *Job, msg string) {
	defer job.Release()
	out := wire.NewArenaBuffer(job.arena)
	s.sendStatus(out, job.reqID, wire.StatusBadMessage, msg)
	_ = s.writeMessage(out.Bytes())
}

// submitUnsupported replies OP_UNSUPPORTED for a request type or
// extension name with no table entry (§7: "no table entry"/"no extension
// entry" → OP_UNSUPPORTED), run inline since it never touches the
// filesystem.
func (s *Server) submitUnsupported(job *Job, msg string) {
	defer job.Release()
	out := wire.NewArenaBuffer(job.arena)
	s.sendStatus(out, job.reqID, wire.StatusOPUnsupported, msg)
	_ = s.writeMessage(out.Bytes())
}

// classifyForSerializer extracts the cheap metadata the serializer needs
// to decide reorderability (§4.7/§4.9 step 4), without disturbing job's
// own read position.
func classifyForSerializer(job *Job) (serializer.Kind, handle.ID, uint64, uint64) {
	switch job.Type() {
	case wire.PacketRead:
		peek := wire.NewBuffer(job.body.Bytes())
		h, err := peek.ConsumeHandle()
		if err != nil {
			return serializer.KindOther, handle.ID{}, 0, 0
		}
		offset, _ := peek.ConsumeUint64()
		length, _ := peek.ConsumeUint32()
		return serializer.KindRead, handle.ID(h), offset, uint64(length)
	case wire.PacketWrite:
		peek := wire.NewBuffer(job.body.Bytes())
		h, err := peek.ConsumeHandle()
		if err != nil {
			return serializer.KindOther, handle.ID{}, 0, 0
		}
		offset, _ := peek.ConsumeUint64()
		data, _ := peek.ConsumeByteSlice()
		return serializer.KindWrite, handle.ID(h), offset, uint64(len(data))
	default:
		return serializer.KindOther, handle.ID{}, 0, 0
	}
}
