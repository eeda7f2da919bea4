package engine

import (
	"io"

	"github.com/ewxrjk/go-sftpserver/handle"
	"github.com/ewxrjk/go-sftpserver/wire"
)

// handleRead implements READ (§4.5): a positional pread, capped at
// wire.MaxReadLength, that reports a short read as success and a
// zero-length read as EOF.
func (s *Server) handleRead(body *wire.Buffer, reqID uint32, out *wire.Buffer) error {
	h, err := body.ConsumeHandle()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed READ")
		return nil
	}
	offset, err := body.ConsumeUint64()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed READ")
		return nil
	}
	length, err := body.ConsumeUint32()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed READ")
		return nil
	}
	if length > wire.MaxReadLength {
		length = wire.MaxReadLength
	}

	id := handle.ID(h)
	f, flags, err := s.handles.GetFile(id)
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusInvalidHandle, "invalid handle")
		return nil
	}

	buf := make([]byte, length)
	var n int
	if flags&handle.FlagText != 0 {
		// TEXT mode reads from the handle's current position, ignoring
		// the offset the client supplied (§4.5).
		n, err = f.Read(buf)
	} else {
		n, err = f.ReadAt(buf, int64(offset))
	}

	if n == 0 {
		if err == nil || err == io.EOF {
			s.sendStatus(out, reqID, wire.StatusEOF, "EOF")
			return nil
		}
		s.sendStatus(out, reqID, ErrnoToStatus(err), err.Error())
		return nil
	}

	// A short read with an error other than EOF still delivers the bytes
	// read (§4.5: "short reads are permissible... return whatever was read").
	SendData(out, reqID, buf[:n])
	return nil
}

// handleWrite implements WRITE (§4.5): a positional pwrite, except for
// APPEND handles which always write at the current end of the file.
func (s *Server) handleWrite(body *wire.Buffer, reqID uint32, out *wire.Buffer) error {
	h, err := body.ConsumeHandle()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed WRITE")
		return nil
	}
	offset, err := body.ConsumeUint64()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed WRITE")
		return nil
	}
	data, err := body.ConsumeByteSlice()
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusBadMessage, "malformed WRITE")
		return nil
	}

	if s.readOnly {
		s.sendStatus(out, reqID, wire.StatusPermissionDenied, "server is read-only")
		return nil
	}

	id := handle.ID(h)
	f, flags, err := s.handles.GetFile(id)
	if err != nil {
		s.sendStatus(out, reqID, wire.StatusInvalidHandle, "invalid handle")
		return nil
	}

	if flags&handle.FlagAppend != 0 {
		_, err = f.Write(data)
	} else {
		_, err = f.WriteAt(data, int64(offset))
	}
	if err != nil {
		s.sendStatus(out, reqID, ErrnoToStatus(err), err.Error())
		return nil
	}
	s.sendStatus(out, reqID, wire.StatusOK, "")
	return nil
}
