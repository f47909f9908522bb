package http1

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/Sentinel-Gate/wiregate/pkg/ringbuf"
)

type sendState int

const (
	sendStart sendState = iota
	sendHeader
	sendBody
)

// Request is one parsed request on a server connection, and the writer for
// its response. Handlers must not retain it after returning.
type Request struct {
	ctx        context.Context
	method     string
	version    Version
	persistent bool
	path       string
	query      string
	fields     Header
	postLength int64

	state     sendState
	status    int
	fixedBody bool
	finished  bool
	bytesSent int64
	broken    bool
	worker    int
	remote    net.Addr
	conn      *conn
	wait      time.Duration
}

// readRequest reads and parses one request from c.
//
// The request line is read a byte at a time up to '\n'. For 1.0 and 1.1
// the header block is then read up to the blank line; the request line's
// own CRLF counts as the first half of it.
func readRequest(c *conn, wait time.Duration) (*Request, error) {
	var acc ringbuf.Buffer
	if err := acc.Init(headerStep, ringbuf.ModeQueue, headerStep, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMemory, err)
	}
	defer acc.Free()

	for {
		ch, err := c.recvByte(wait)
		if err != nil {
			return nil, err
		}
		if err := acc.Put([]byte{ch}); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMemory, err)
		}
		if ch == '\n' {
			break
		}
	}
	line := string(acc.Bytes())

	r := &Request{
		ctx:     context.Background(),
		version: Version09,
		conn:    c,
		wait:    wait,
	}
	var rest string
	switch {
	case len(line) > 4 && (line[0] == 'P' || line[0] == 'p') && line[4] == ' ':
		r.method, rest = "POST", line[5:]
	case len(line) > 3 && (line[0] == 'G' || line[0] == 'g') && line[3] == ' ':
		r.method, rest = "GET", line[4:]
	default:
		return nil, fmt.Errorf("%w: malformed request line %q", ErrParam, strings.TrimSpace(line))
	}
	rest = strings.TrimRight(rest, crlf)

	target := rest
	if i := strings.IndexByte(rest, ' '); i >= 0 {
		proto := rest[i:]
		switch {
		case strings.Contains(proto, "/1.1"):
			r.version, r.persistent = Version11, true
		case strings.Contains(proto, "/1.0"):
			r.version = Version10
		}
		target = rest[:i]
	}
	r.path, r.query = decodeTarget(target)

	r.fields = make(Header)
	if r.version >= Version10 {
		acc.Clear()
		for state := 2; state < 4; {
			ch, err := c.recvByte(wait)
			if err != nil {
				return nil, err
			}
			if err := acc.Put([]byte{ch}); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrMemory, err)
			}
			state = endOfHeader(state, ch)
		}
		r.fields = parseHeader(string(acc.Bytes()))
	}

	switch r.version {
	case Version10:
		r.persistent = r.fields.Contains("Connection", "keep-alive")
	case Version11:
		r.persistent = !r.fields.Contains("Connection", "close")
	}
	if r.method == "POST" {
		if n, err := strconv.ParseInt(r.fields.Get("Content-Length"), 10, 64); err == nil && n > 0 {
			r.postLength = n
		}
	}
	return r, nil
}

// decodeTarget turns a request target into a decoded path and a raw query.
// An absolute URI is cut at its third '/'. %XX escapes are decoded; an
// invalid escape is kept literally. An empty path becomes "/".
func decodeTarget(target string) (path, query string) {
	if !strings.HasPrefix(target, "/") {
		slashes, i := 0, 0
		for ; i < len(target); i++ {
			if target[i] == '/' {
				slashes++
				if slashes == 3 {
					break
				}
			}
		}
		target = target[i:]
	}

	var b strings.Builder
	b.Grow(len(target))
	for i := 0; i < len(target); i++ {
		ch := target[i]
		if ch == '?' {
			query = target[i+1:]
			break
		}
		if ch == '%' && i+2 < len(target) {
			if hi, ok := unhex(target[i+1]); ok {
				if lo, ok := unhex(target[i+2]); ok {
					b.WriteByte(hi<<4 | lo)
					i += 2
					continue
				}
			}
		}
		b.WriteByte(ch)
	}
	path = b.String()
	if path == "" {
		path = "/"
	}
	return path, query
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// Context returns the request context. It carries the request span.
func (r *Request) Context() context.Context { return r.ctx }

// Method returns "GET" or "POST".
func (r *Request) Method() string { return r.method }

// Version returns the request version.
func (r *Request) Version() Version { return r.version }

// Persistent reports whether the connection stays open after this request.
func (r *Request) Persistent() bool { return r.persistent }

// Path returns the percent-decoded request path.
func (r *Request) Path() string { return r.path }

// Query returns the raw query string, without the '?'.
func (r *Request) Query() string { return r.query }

// Header returns the named request header field.
func (r *Request) Header(name string) string { return r.fields.Get(name) }

// Headers returns all request header fields.
func (r *Request) Headers() Header { return r.fields }

// RemoteAddr returns the peer address.
func (r *Request) RemoteAddr() net.Addr { return r.remote }

// RemoteIP returns the peer IP, or the zero Addr if unknown.
func (r *Request) RemoteIP() netip.Addr {
	return remoteIP(r.remote)
}

// Worker returns the number of the worker serving the request.
func (r *Request) Worker() int { return r.worker }

// ContentLength returns the unread POST body length.
func (r *Request) ContentLength() int64 { return r.postLength }

// BasicAuth returns the credentials of a Basic Authorization header.
func (r *Request) BasicAuth() (user, password string, ok bool) {
	return ParseBasicCredential(r.Header("Authorization"))
}

// SendInit starts the response with a status line and Content-Type. Under
// 0.9 nothing is written.
func (r *Request) SendInit(code int, reason, mime string) error {
	if code < 100 || code > 999 || mime == "" {
		return ErrParam
	}
	if r.state != sendStart {
		return ErrOrder
	}
	r.state = sendHeader
	r.status = code

	if r.version == Version09 {
		return nil
	}
	minor := '0'
	if r.version == Version11 {
		minor = '1'
	}
	return r.send(fmt.Sprintf("HTTP/1.%c %d %s\r\nContent-Type: %s\r\n", minor, code, reason, mime))
}

// SendHead writes one raw header line. The CRLF is added. Under 0.9
// nothing is written.
func (r *Request) SendHead(line string) error {
	if line == "" {
		return ErrParam
	}
	if r.state != sendHeader {
		return ErrOrder
	}
	if r.version == Version09 {
		return nil
	}
	if name, _, ok := strings.Cut(line, ":"); ok && strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
		r.fixedBody = true
	}
	return r.send(line + crlf)
}

// Send writes body bytes. The first call ends the header section. Under
// 1.1 the body is chunked: every call writes one chunk and a zero-length
// call writes the terminal chunk. Otherwise bytes are written raw.
func (r *Request) Send(p []byte) error {
	if r.state == sendHeader {
		if err := r.endHeader(); err != nil {
			return err
		}
	}
	if r.state != sendBody {
		return ErrOrder
	}

	if r.version == Version11 && !r.fixedBody {
		if r.finished {
			return ErrOrder
		}
		if len(p) == 0 {
			r.finished = true
			return r.send("0\r\n\r\n")
		}
		if err := r.send(fmt.Sprintf("%X\r\n", len(p))); err != nil {
			return err
		}
		if err := r.sendBytes(p); err != nil {
			return err
		}
		return r.send(crlf)
	}
	return r.sendBytes(p)
}

// Write implements io.Writer on top of Send. Empty writes are ignored so
// they never terminate a chunked body.
func (r *Request) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := r.Send(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Recv reads POST body bytes, bounded by the remaining Content-Length. It
// returns io.EOF once the body is consumed.
func (r *Request) Recv(p []byte, wait time.Duration) (int, error) {
	if r.postLength <= 0 {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	get := int64(len(p))
	if get > r.postLength {
		get = r.postLength
	}
	n, err := r.conn.recv(p[:get], wait)
	r.postLength -= int64(n)
	if err != nil && n == 0 {
		r.broken = true
		return 0, err
	}
	return n, nil
}

// Read implements io.Reader over the POST body using the server wait
// budget.
func (r *Request) Read(p []byte) (int, error) {
	return r.Recv(p, r.wait)
}

// SendStatus writes a complete response with no body.
func (r *Request) SendStatus(code int, reason string) error {
	if err := r.SendInit(code, reason, "text/plain"); err != nil {
		return err
	}
	if err := r.SendHead("Content-Length: 0"); err != nil {
		return err
	}
	return r.endHeader()
}

func (r *Request) endHeader() error {
	r.state = sendBody
	switch {
	case r.version == Version11 && !r.fixedBody:
		return r.send("Transfer-Encoding: chunked\r\n\r\n")
	case r.version >= Version10:
		return r.send(crlf)
	}
	return nil
}

// complete finishes the exchange after the handler returned: it terminates
// an open chunked body, drains an unread POST body and decides whether the
// connection can carry another request.
func (r *Request) complete() bool {
	if r.state == sendHeader {
		if err := r.endHeader(); err != nil {
			return false
		}
	}
	if r.state == sendBody && r.version == Version11 && !r.fixedBody && !r.finished {
		if err := r.Send(nil); err != nil {
			return false
		}
	}
	if r.state == sendBody && r.version == Version10 && !r.fixedBody {
		// the body is delimited by close
		r.persistent = false
	}

	var scratch [512]byte
	for r.postLength > 0 {
		if _, err := r.Recv(scratch[:], r.wait); err != nil {
			return false
		}
	}
	return !r.broken
}

func (r *Request) send(s string) error {
	return r.sendBytes([]byte(s))
}

func (r *Request) sendBytes(p []byte) error {
	if err := r.conn.send(p); err != nil {
		r.broken = true
		return err
	}
	r.bytesSent += int64(len(p))
	return nil
}

func remoteIP(addr net.Addr) netip.Addr {
	if addr == nil {
		return netip.Addr{}
	}
	if tcp, ok := addr.(*net.TCPAddr); ok {
		ip, _ := netip.AddrFromSlice(tcp.IP)
		return ip.Unmap()
	}
	ap, err := netip.ParseAddrPort(addr.String())
	if err != nil {
		return netip.Addr{}
	}
	return ap.Addr().Unmap()
}
