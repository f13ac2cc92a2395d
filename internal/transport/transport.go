// Package transport implements the BGP connection abstraction the FSM
// consumes (spec.md §4.5): a Send operation plus a stream of inbound
// bytes reassembled into complete frames. Reassembly is this package's
// responsibility, not the FSM's — it buffers until 19 bytes are
// available, reads the length field, waits for the full frame, and
// discards any stray trailing bytes a single TCP read delivered beyond
// the declared length, a behavior observed on some networks and called
// out explicitly in spec.md §4.5.
package transport

import (
	"net"

	"github.com/route-beacon/bgp-speaker/internal/bgp"
)

// Transport is the interface the FSM's server shell (internal/peerd)
// drives: Send enqueues one complete frame, Close tears the connection
// down. spec.md §9's "Callback for outbound send" note is modeled here
// as an interface rather than a bare function value so tests can
// substitute a capturing fake.
type Transport interface {
	Send(frame []byte) error
	Close() error
	RemoteAddr() net.Addr
}

// TCPTransport is the Transport backing a live net.Conn.
type TCPTransport struct {
	conn net.Conn
}

// NewTCPTransport wraps an already-established connection.
func NewTCPTransport(conn net.Conn) *TCPTransport {
	return &TCPTransport{conn: conn}
}

func (t *TCPTransport) Send(frame []byte) error {
	_, err := t.conn.Write(frame)
	return err
}

func (t *TCPTransport) Close() error {
	return t.conn.Close()
}

func (t *TCPTransport) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

// readChunkSize bounds a single underlying Read call.
const readChunkSize = 4096

// FrameReader reassembles the byte stream from a net.Conn into
// complete BGP frames (19-byte header plus declared-length body).
type FrameReader struct {
	conn net.Conn
	buf  []byte
}

// NewFrameReader constructs a FrameReader over conn.
func NewFrameReader(conn net.Conn) *FrameReader {
	return &FrameReader{conn: conn}
}

// ReadFrame blocks until one complete frame is available, or returns
// the underlying read error (including io.EOF) if the connection
// closes first. On a header decode failure the partial stream is
// discarded rather than retried — the caller is expected to raise a
// HeaderError event and drop the connection.
func (r *FrameReader) ReadFrame() ([]byte, error) {
	for len(r.buf) < bgp.HeaderLen {
		if err := r.fill(); err != nil {
			return nil, err
		}
	}

	header, err := bgp.DecodeHeader(r.buf[:bgp.HeaderLen])
	if err != nil {
		r.buf = nil
		return nil, err
	}

	for len(r.buf) < int(header.Length) {
		if err := r.fill(); err != nil {
			return nil, err
		}
	}

	frame := make([]byte, header.Length)
	copy(frame, r.buf[:header.Length])

	// Discard anything buffered beyond this frame's declared length
	// (spec.md §4.5) rather than carrying it forward as the start of
	// the next frame.
	r.buf = nil

	return frame, nil
}

func (r *FrameReader) fill() error {
	chunk := make([]byte, readChunkSize)
	n, err := r.conn.Read(chunk)
	if n > 0 {
		r.buf = append(r.buf, chunk[:n]...)
	}
	if err != nil {
		return err
	}
	return nil
}
