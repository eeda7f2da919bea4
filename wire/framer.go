package wire

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// ErrZeroLength is a fatal framing error: a message declared length 0.
var ErrZeroLength = errors.New("wire: zero-length message")

// ErrMessageTooLong is a fatal framing error: a message exceeded the
// configured maximum.
var ErrMessageTooLong = errors.New("wire: message exceeds maximum length")

// ReadMessage reads one length-prefixed message from r: a 4-byte
// big-endian length followed by that many bytes of payload. maxLength
// bounds the payload length (§4.1); 0 means MaxMessageLength.
//
// ReadMessage never returns a partial payload: on any error the returned
// slice is nil. The payload is allocated with make; callers that want
// the bytes arena-backed (§4.3) should call ReadMessageWith instead.
func ReadMessage(r io.Reader, maxLength uint32) ([]byte, error) {
	return ReadMessageWith(r, maxLength, func(n int) []byte { return make([]byte, n) })
}

// ReadMessageWith is ReadMessage with the payload buffer obtained from
// alloc instead of make, so the caller can back it with a per-request
// arena (§4.3) rather than a one-off heap allocation.
func ReadMessageWith(r io.Reader, maxLength uint32, alloc func(int) []byte) ([]byte, error) {
	if maxLength == 0 {
		maxLength = MaxMessageLength
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(lenBuf[:])
	if length == 0 {
		return nil, ErrZeroLength
	}
	if length > maxLength {
		return nil, ErrMessageTooLong
	}

	payload := alloc(int(length))
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, errors.Wrap(err, "wire: short read of message body")
	}
	return payload, nil
}

// WriteMessage writes payload as a single length-prefixed message to w in
// one Write call, so that concurrent writers serialized by an external
// mutex never interleave partial frames.
func WriteMessage(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))

	// Avoid a short write splitting the length prefix from the body: a
	// single buffer, a single Write.
	full := make([]byte, 0, 4+len(payload))
	full = append(full, lenBuf[:]...)
	full = append(full, payload...)

	_, err := w.Write(full)
	return err
}
