package http1

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

// conn wraps a net.Conn with reads bounded by a wait budget. A zero or
// negative budget blocks without a deadline.
type conn struct {
	nc net.Conn
	br *bufio.Reader
}

func newConn(nc net.Conn) *conn {
	return &conn{nc: nc, br: bufio.NewReader(nc)}
}

func (c *conn) deadline(wait time.Duration) {
	if wait > 0 {
		_ = c.nc.SetReadDeadline(time.Now().Add(wait))
	} else {
		_ = c.nc.SetReadDeadline(time.Time{})
	}
}

// recv reads whatever is available into p, up to len(p).
func (c *conn) recv(p []byte, wait time.Duration) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if c.br.Buffered() == 0 {
		c.deadline(wait)
	}
	n, err := c.br.Read(p)
	return n, classify(err)
}

// recvByte reads a single byte.
func (c *conn) recvByte(wait time.Duration) (byte, error) {
	if c.br.Buffered() == 0 {
		c.deadline(wait)
	}
	b, err := c.br.ReadByte()
	return b, classify(err)
}

// recvFull reads exactly len(p) bytes within one wait budget.
func (c *conn) recvFull(p []byte, wait time.Duration) (int, error) {
	c.deadline(wait)
	n, err := io.ReadFull(c.br, p)
	return n, classify(err)
}

// send writes all of p.
func (c *conn) send(p []byte) error {
	for len(p) > 0 {
		n, err := c.nc.Write(p)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNet, err)
		}
		p = p[n:]
	}
	return nil
}

func (c *conn) sendString(s string) error {
	return c.send([]byte(s))
}

func (c *conn) close() error {
	if c == nil || c.nc == nil {
		return nil
	}
	err := c.nc.Close()
	c.nc = nil
	return err
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return ErrClosed
	case errors.Is(err, os.ErrDeadlineExceeded):
		return ErrTimeout
	default:
		return fmt.Errorf("%w: %w", ErrNet, err)
	}
}
