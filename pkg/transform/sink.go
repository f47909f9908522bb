package transform

import (
	"fmt"
	"io"
	"net"

	"github.com/Sentinel-Gate/wiregate/pkg/ringbuf"
)

// maxNetChunk bounds a single socket write.
const maxNetChunk = 0x10000000

// MemorySink collects output in memory. Sinks pass data through unchanged,
// so a sink may also sit in the middle of a chain.
type MemorySink struct {
	buf []byte
}

// NewMemorySink returns a sink appending to dst[:0]. Storage grows as
// needed; dst only seeds the initial capacity.
func NewMemorySink(dst []byte) *MemorySink {
	return &MemorySink{buf: dst[:0]}
}

// Bytes returns everything written so far.
func (s *MemorySink) Bytes() []byte { return s.buf }

// Len returns the number of bytes collected.
func (s *MemorySink) Len() int { return len(s.buf) }

// Reset discards collected bytes, keeping storage.
func (s *MemorySink) Reset() { s.buf = s.buf[:0] }

// RequiresNext implements Codec.
func (s *MemorySink) RequiresNext() bool { return false }

// Encode implements Codec.
func (s *MemorySink) Encode(p []byte, emit Emit) error {
	s.buf = append(s.buf, p...)
	return emit(p)
}

// End implements Codec.
func (s *MemorySink) End(Emit) error { return nil }

// FileSink writes output to an io.Writer, typically an *os.File.
type FileSink struct {
	w io.Writer
}

// NewFileSink returns a sink writing to w.
func NewFileSink(w io.Writer) (*FileSink, error) {
	if w == nil {
		return nil, ErrParam
	}
	return &FileSink{w: w}, nil
}

// RequiresNext implements Codec.
func (s *FileSink) RequiresNext() bool { return false }

// Encode implements Codec.
func (s *FileSink) Encode(p []byte, emit Emit) error {
	if s.w == nil {
		return ErrState
	}
	if _, err := s.w.Write(p); err != nil {
		return fmt.Errorf("transform: file sink: %w", err)
	}
	return emit(p)
}

// End releases the writer. The writer itself is not closed.
func (s *FileSink) End(Emit) error {
	s.w = nil
	return nil
}

// NetSink writes output to a connection.
type NetSink struct {
	conn net.Conn
}

// NewNetSink returns a sink writing to conn.
func NewNetSink(conn net.Conn) (*NetSink, error) {
	if conn == nil {
		return nil, ErrParam
	}
	return &NetSink{conn: conn}, nil
}

// RequiresNext implements Codec.
func (s *NetSink) RequiresNext() bool { return false }

// Encode implements Codec.
func (s *NetSink) Encode(p []byte, emit Emit) error {
	if s.conn == nil {
		return ErrState
	}
	for rest := p; len(rest) > 0; {
		chunk := rest
		if len(chunk) > maxNetChunk {
			chunk = chunk[:maxNetChunk]
		}
		n, err := s.conn.Write(chunk)
		if err != nil {
			return fmt.Errorf("transform: net sink: %w", err)
		}
		rest = rest[n:]
	}
	return emit(p)
}

// End releases the connection. The connection itself is not closed.
func (s *NetSink) End(Emit) error {
	s.conn = nil
	return nil
}

// BufferSink appends output to a queue-mode ring buffer.
type BufferSink struct {
	buf *ringbuf.Buffer
}

// NewBufferSink returns a sink writing to buf, which must be in queue mode.
func NewBufferSink(buf *ringbuf.Buffer) (*BufferSink, error) {
	if buf == nil || buf.Mode() != ringbuf.ModeQueue {
		return nil, ErrParam
	}
	return &BufferSink{buf: buf}, nil
}

// RequiresNext implements Codec.
func (s *BufferSink) RequiresNext() bool { return false }

// Encode implements Codec.
func (s *BufferSink) Encode(p []byte, emit Emit) error {
	if s.buf == nil {
		return ErrState
	}
	if err := s.buf.Put(p); err != nil {
		return fmt.Errorf("transform: buffer sink: %w", err)
	}
	return emit(p)
}

// End releases the buffer reference.
func (s *BufferSink) End(Emit) error {
	s.buf = nil
	return nil
}
