package http1

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Sentinel-Gate/wiregate/pkg/ringbuf"
)

// statusMagic holds the accepted spellings of a status line prefix. Each
// position may match either row.
var statusMagic = [2]string{"HTTP/1.1", "http/1.0"}

// readResponseHeader classifies the response and parses its header.
//
// Up to eight bytes are read one at a time. If they stop matching an
// HTTP/1.x status line, or the stream ends early, the response is legacy
// 0.9: the bytes read become body and the body runs until close.
func (c *Client) readResponseHeader(wait time.Duration) error {
	c.header.Free()
	if err := c.header.Init(headerStep, ringbuf.ModeQueue, headerStep, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrMemory, err)
	}
	c.fields = nil
	c.bodyDone = false
	c.remaining = 0

	var tmp [8]byte
	count := 0
	legacy := false
	for i := 0; i < len(tmp); i++ {
		b, err := c.conn.recvByte(wait)
		if err != nil {
			if i == 0 {
				c.drop()
				return fmt.Errorf("%w: no response: %w", ErrNet, err)
			}
			legacy = true
			break
		}
		tmp[i] = b
		count = i + 1

		if i == 7 {
			switch b {
			case '1':
				c.version, c.persistent = Version11, true
			case '0':
				c.version, c.persistent = Version10, false
			default:
				c.drop()
				return fmt.Errorf("%w: %q", ErrVersion, tmp[:count])
			}
		} else if b != statusMagic[0][i] && b != statusMagic[1][i] {
			legacy = true
			break
		}
	}
	if err := c.header.Put(tmp[:count]); err != nil {
		return fmt.Errorf("%w: %w", ErrMemory, err)
	}
	if legacy {
		c.legacyBody()
		return nil
	}

	var code [4]byte
	if _, err := c.conn.recvFull(code[:], wait); err != nil {
		c.drop()
		return fmt.Errorf("%w: status: %w", ErrNet, err)
	}
	if err := c.header.Put(code[:]); err != nil {
		return fmt.Errorf("%w: %w", ErrMemory, err)
	}
	status, err := strconv.Atoi(strings.TrimSpace(string(code[:])))
	if err != nil || status < 0 {
		// not a status line after all
		c.legacyBody()
		return nil
	}
	c.code = status

	start := c.header.Len()
	for state := 0; state < 4; {
		ch, err := c.conn.recvByte(wait)
		if err != nil {
			c.drop()
			return fmt.Errorf("%w: header: %w", ErrNet, err)
		}
		if err := c.header.Put([]byte{ch}); err != nil {
			return fmt.Errorf("%w: %w", ErrMemory, err)
		}
		state = endOfHeader(state, ch)
	}

	raw := c.header.Bytes()
	c.fields = parseHeader(string(raw[start:]))

	length, lengthErr := strconv.ParseInt(c.fields.Get("Content-Length"), 10, 64)
	switch {
	case lengthErr == nil && length >= 0:
		c.framing = FramingFixed
		c.remaining = length
	case c.fields.Contains("Transfer-Encoding", "chunked"):
		c.framing = FramingChunked
	default:
		c.framing = FramingUntilClose
		c.persistent = false
	}
	if c.fields.Contains("Connection", "close") {
		c.persistent = false
	}

	c.status = StatusBody
	if c.framing == FramingFixed && c.remaining == 0 {
		c.finishBody()
	}
	return nil
}

func (c *Client) legacyBody() {
	c.version = Version09
	c.persistent = false
	c.code = 200
	c.framing = FramingUntilClose
	c.fields = make(Header)
	c.status = StatusBody
}

// chunkLength reads the next chunk-size line. Between chunks the stream
// carries the CRLF that ended the previous chunk's data; a two byte line is
// skipped. A zero size consumes the CRLF that ends the body.
func (c *Client) chunkLength(wait time.Duration) (int64, error) {
	var line [15]byte
	var ch byte
	count := 0
	for {
		ch, count = 0, 0
		for ch != '\n' && count < len(line) {
			b, err := c.conn.recvByte(wait)
			if err != nil {
				break
			}
			ch = b
			line[count] = b
			count++
		}
		// only a bare CRLF separates chunks
		if count != 2 || line[0] != '\r' || line[1] != '\n' {
			break
		}
	}

	if count <= 2 || ch != '\n' || line[count-2] != '\r' {
		return 0, ErrMalformedChunk
	}
	text := string(line[:count-2])
	if i := strings.IndexByte(text, ';'); i >= 0 {
		text = text[:i]
	}
	size, err := strconv.ParseUint(strings.TrimSpace(text), 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedChunk, text)
	}
	if size == 0 {
		var end [2]byte
		if _, err := c.conn.recvFull(end[:], wait); err != nil {
			return 0, fmt.Errorf("%w: missing terminator: %w", ErrMalformedChunk, err)
		}
	}
	return int64(size), nil
}
