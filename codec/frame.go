// Package codec defines the wire schema shared by the server and its clients.
//
// A reliable stream starts with a header written by the server, then carries
// frames: an unsigned varint payload length followed by the payload. Payloads
// are protobuf-wire encoded (see record.go and identity.go) so that unknown
// fields can be added later without breaking older peers.
package codec

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// Version of the wire schema announced in the stream header.
const Version byte = 1

// DefaultMaxFrameSize bounds a single payload when no limit is configured.
const DefaultMaxFrameSize = 64 << 10

const maxVarintLen = 10

// maxSkippedFrameSize bounds how far the reader skips over an oversized payload.
// A longer declared length is treated as a broken stream.
const maxSkippedFrameSize = 1 << 30

var magic = [4]byte{'C', 'H', 'A', 'T'}

var (
	// ErrMalformedFrame reports a frame that was read entirely but cannot be decoded.
	// The stream is still usable after it.
	ErrMalformedFrame = errors.New("codec: malformed frame")
	// ErrFrameTooLarge reports a payload above the reader limit. The payload was skipped.
	ErrFrameTooLarge = fmt.Errorf("%w: frame too large", ErrMalformedFrame)
	// ErrUnskippableFrame reports a declared length too large to skip. The stream is lost.
	ErrUnskippableFrame = errors.New("codec: frame length cannot be skipped")
	// ErrBadHeader reports a stream that does not start with the expected header.
	ErrBadHeader = errors.New("codec: unexpected stream header")
)

// Header returns the bytes a server writes before anything else on a stream.
func Header() []byte {
	return append(magic[:], Version)
}

// WriteHeader writes the stream header.
func WriteHeader(w io.Writer) error {
	_, err := w.Write(Header())
	return err
}

// ReadHeader consumes and validates the stream header.
func ReadHeader(r io.Reader) error {
	buf := make([]byte, len(magic)+1)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	if [4]byte(buf[:4]) != magic {
		return ErrBadHeader
	}
	if buf[4] != Version {
		return fmt.Errorf("%w: version %d, want %d", ErrBadHeader, buf[4], Version)
	}
	return nil
}

// Frame prefixes payload with its length.
func Frame(payload []byte) []byte {
	b := make([]byte, 0, protowire.SizeVarint(uint64(len(payload)))+len(payload))
	b = protowire.AppendVarint(b, uint64(len(payload)))
	return append(b, payload...)
}

// WriteFrame writes payload as a single frame.
func WriteFrame(w io.Writer, payload []byte) error {
	_, err := w.Write(Frame(payload))
	return err
}

// Reader reads frames from a stream.
// It is not safe for concurrent use.
type Reader struct {
	r            *bufio.Reader
	maxFrameSize int
}

// NewReader wraps r. A non-positive maxFrameSize selects DefaultMaxFrameSize.
func NewReader(r io.Reader, maxFrameSize int) *Reader {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return &Reader{r: bufio.NewReader(r), maxFrameSize: maxFrameSize}
}

// ReadHeader consumes the stream header through the buffer, so bytes read
// ahead of it stay available to ReadFrame.
func (r *Reader) ReadHeader() error {
	return ReadHeader(r.r)
}

// ReadFrame returns the next payload.
// Errors wrapping ErrMalformedFrame leave the stream aligned on the next frame,
// any other error is a transport failure (io.EOF on a clean end of stream).
func (r *Reader) ReadFrame() ([]byte, error) {
	size, err := r.readLength()
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedFrame)
	}
	if size > uint64(r.maxFrameSize) {
		if size > maxSkippedFrameSize {
			return nil, fmt.Errorf("%w: %d bytes", ErrUnskippableFrame, size)
		}
		if _, err := io.CopyN(io.Discard, r.r, int64(size)); err != nil {
			return nil, unexpected(err)
		}
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrFrameTooLarge, size, r.maxFrameSize)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return nil, unexpected(err)
	}
	return payload, nil
}

func (r *Reader) readLength() (uint64, error) {
	var x uint64
	var s uint
	for i := 0; i < maxVarintLen; i++ {
		b, err := r.r.ReadByte()
		if err != nil {
			if i > 0 {
				return 0, unexpected(err)
			}
			return 0, err
		}
		if b < 0x80 {
			if i == maxVarintLen-1 && b > 1 {
				return 0, fmt.Errorf("%w: length overflows", ErrMalformedFrame)
			}
			return x | uint64(b)<<s, nil
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
	return 0, fmt.Errorf("%w: length overflows", ErrMalformedFrame)
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// IsDecodeError reports whether err concerns a single frame rather than the transport.
func IsDecodeError(err error) bool {
	return errors.Is(err, ErrMalformedFrame)
}
