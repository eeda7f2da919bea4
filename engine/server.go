package engine

import (
	"io"
	"io/ioutil"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/ewxrjk/go-sftpserver/fsops"
	"github.com/ewxrjk/go-sftpserver/handle"
	"github.com/ewxrjk/go-sftpserver/protocol"
	"github.com/ewxrjk/go-sftpserver/serializer"
)

const defaultWorkerCount = 4

// Server is the global state of §3: the negotiated protocol descriptor,
// the worker pool, read-only mode, and the two compatibility quirk
// flags. Grounded on the teacher's Server/NewServer/ServerOption shape in
// server.go, generalized from a v3-only driver-backed server to the
// full multi-version, filesystem-backed one this spec describes.
type Server struct {
	in  io.Reader
	out io.Writer
	outMu sync.Mutex

	fs       fsops.FS
	resolver fsops.NameResolver
	handles  *handle.Table
	queue    *serializer.Queue

	readOnly            bool
	reverseSymlinkQuirk bool
	reorderEnabled       bool
	workerCount          int
	maxMessageLength     uint32

	descMu     sync.Mutex
	descriptor *protocol.Descriptor

	pool *workerPool

	// versionSelectWindow is 1 exactly while the v6 version-select
	// extension is still legal: from the moment VERSION is sent until the
	// first post-INIT request (of any kind) is read off the wire (§4.4).
	versionSelectWindow int32

	fatalMu  sync.Mutex
	fatalErr error

	debugStream io.Writer
}

// recordFatal remembers the first fatal error a worker reports, e.g. a
// version-select protocol violation (§4.4); later calls are ignored.
func (s *Server) recordFatal(err error) {
	s.fatalMu.Lock()
	defer s.fatalMu.Unlock()
	if s.fatalErr == nil {
		s.fatalErr = err
	}
}

func (s *Server) takeFatal() error {
	s.fatalMu.Lock()
	defer s.fatalMu.Unlock()
	return s.fatalErr
}

// openVersionSelectWindow re-arms the version-select window; called once
// per negotiation, from handleInit.
func (s *Server) openVersionSelectWindow() { atomic.StoreInt32(&s.versionSelectWindow, 1) }

// closeVersionSelectWindow permanently closes the window for the current
// negotiation; called by the dispatch loop for every request that is not
// itself the version-select extension.
func (s *Server) closeVersionSelectWindow() { atomic.StoreInt32(&s.versionSelectWindow, 0) }

// consumeVersionSelectWindow reports whether this call is the first
// request after VERSION, atomically closing the window either way.
func (s *Server) consumeVersionSelectWindow() bool {
	return atomic.CompareAndSwapInt32(&s.versionSelectWindow, 1, 0)
}

// ServerOption configures a Server, in the style of the teacher's
// ServerOption/ReadOnly/WithDebug functions.
type ServerOption func(*Server) error

// NewServer creates a Server reading requests from in and writing
// responses to out, serving the filesystem rooted at root.
func NewServer(in io.Reader, out io.Writer, root string, options ...ServerOption) (*Server, error) {
	s := &Server{
		in:               in,
		out:              out,
		fs:               fsops.NewRoot(root),
		resolver:         fsops.OSResolver{},
		handles:          handle.New(),
		queue:            serializer.New(),
		reorderEnabled:   true,
		workerCount:      defaultWorkerCount,
		maxMessageLength: 0, // wire package default
		debugStream:      ioutil.Discard,
	}

	for _, o := range options {
		if err := o(s); err != nil {
			return nil, err
		}
	}
	s.queue.Reorder = s.reorderEnabled

	s.descriptor = protocol.PreInit(s.handleInit)
	return s, nil
}

// ReadOnly configures a Server to reject every mutating operation with
// PERMISSION_DENIED, per §3's "Read-only mode flag".
func ReadOnly() ServerOption {
	return func(s *Server) error {
		s.readOnly = true
		return nil
	}
}

// WithDebug enables debug logging to w, in the style of the teacher's
// WithDebug.
func WithDebug(w io.Writer) ServerOption {
	return func(s *Server) error {
		s.debugStream = w
		return nil
	}
}

// WithWorkerCount overrides the default worker pool size (§4.8 default
// N=4).
func WithWorkerCount(n int) ServerOption {
	return func(s *Server) error {
		if n <= 0 {
			return errors.New("engine: worker count must be positive")
		}
		s.workerCount = n
		return nil
	}
}

// WithReverseSymlinkQuirk sets the OpenSSH-compatible reversed v3/v4
// SYMLINK argument order (§4.5, §9 Open Question).
func WithReverseSymlinkQuirk() ServerOption {
	return func(s *Server) error {
		s.reverseSymlinkQuirk = true
		return nil
	}
}

// WithReorderDisabled disables the serializer's READ/WRITE reordering
// entirely, forcing strict FIFO. The Paramiko compatibility workaround
// (READs on the same handle never reorder) applies whether or not this
// option is set; it has no switch of its own.
func WithReorderDisabled() ServerOption {
	return func(s *Server) error {
		s.reorderEnabled = false
		return nil
	}
}

// WithNameResolver overrides the default os/user-backed NameResolver,
// e.g. for tests.
func WithNameResolver(r fsops.NameResolver) ServerOption {
	return func(s *Server) error {
		s.resolver = r
		return nil
	}
}

// WithMaxMessageLength overrides the default 1 MiB fatal message-length
// threshold of §4.1.
func WithMaxMessageLength(n uint32) ServerOption {
	return func(s *Server) error {
		s.maxMessageLength = n
		return nil
	}
}

func (s *Server) debugf(format string, args ...interface{}) {
	if s.debugStream == nil {
		return
	}
	_, _ = io.WriteString(s.debugStream, sprintfDebug(format, args...))
}

func (s *Server) currentDescriptor() *protocol.Descriptor {
	s.descMu.Lock()
	defer s.descMu.Unlock()
	return s.descriptor
}

func (s *Server) setDescriptor(d *protocol.Descriptor) {
	s.descMu.Lock()
	defer s.descMu.Unlock()
	s.descriptor = d
}

// writeMessage sends a fully-built message (already length-prefixed by
// the send.go helpers) under the output mutex, per §4.1's "written to the
// output stream under the output mutex (to prevent interleaving from
// concurrent workers)".
func (s *Server) writeMessage(payload []byte) error {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	_, err := s.out.Write(payload)
	return err
}
