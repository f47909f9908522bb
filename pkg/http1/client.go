package http1

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Sentinel-Gate/wiregate/pkg/ringbuf"
)

// ConnStatus is the state of a client connection.
type ConnStatus int

const (
	// StatusNone is a client that has not been opened.
	StatusNone ConnStatus = iota
	// StatusClosed is an opened client with no live transport.
	StatusClosed
	// StatusOpening is a client dialing its transport.
	StatusOpening
	// StatusIdle is a client ready for the next request.
	StatusIdle
	// StatusBody is a client with a response body to read.
	StatusBody
)

// String returns the status name.
func (s ConnStatus) String() string {
	switch s {
	case StatusClosed:
		return "closed"
	case StatusOpening:
		return "opening"
	case StatusIdle:
		return "idle"
	case StatusBody:
		return "body"
	default:
		return "none"
	}
}

// Client is an HTTP/1.x client bound to one origin. It is not safe for
// concurrent use; use one Client per goroutine.
type Client struct {
	logger      *slog.Logger
	resolver    Resolver
	dialTimeout time.Duration

	status     ConnStatus
	version    Version
	persistent bool
	framing    Framing
	remaining  int64
	bodyDone   bool
	code       int
	header     ringbuf.Buffer
	fields     Header

	pinID     string
	hostLine  string
	addr      string
	proxy     string
	proxyAuth string
	userAuth  string
	conn      *conn
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithResolver sets the resolver used by Open.
func WithResolver(r Resolver) ClientOption {
	return func(c *Client) {
		c.resolver = r
	}
}

// WithClientLogger sets the client logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDialTimeout bounds each transport dial.
func WithDialTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.dialTimeout = d
	}
}

// NewClient creates an unopened client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		dialTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.resolver == nil {
		c.resolver = NewCachingResolver(c.logger)
	}
	return c
}

type openConfig struct {
	proxy         string
	proxyUser     string
	proxyPassword string
	proxyCreds    bool
	user          string
	password      string
	userCreds     bool
}

// OpenOption configures Open.
type OpenOption func(*openConfig)

// WithProxy sends every request through the proxy at host:port instead of
// connecting to the origin.
func WithProxy(addr string) OpenOption {
	return func(o *openConfig) {
		o.proxy = addr
	}
}

// WithProxyAuth adds a Proxy-Authorization Basic header.
func WithProxyAuth(user, password string) OpenOption {
	return func(o *openConfig) {
		o.proxyUser, o.proxyPassword, o.proxyCreds = user, password, true
	}
}

// WithBasicAuth adds an Authorization Basic header.
func WithBasicAuth(user, password string) OpenOption {
	return func(o *openConfig) {
		o.user, o.password, o.userCreds = user, password, true
	}
}

// Open binds the client to the origin in uri, of the form
// http://host[:port][/anything]. The scheme is case-insensitive and the
// port defaults to 80. Without a proxy the host is resolved now. No
// connection is made until the first request.
func (c *Client) Open(ctx context.Context, uri string, opts ...OpenOption) error {
	if c.status != StatusNone {
		return ErrOrder
	}
	var cfg openConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	hostLine, host, port, err := parseURI(uri)
	if err != nil {
		return err
	}

	pinID := uuid.NewString()
	addr := cfg.proxy
	if addr == "" {
		ip, err := c.resolver.Resolve(ctx, host, pinID)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrURI, err)
		}
		addr = net.JoinHostPort(ip, strconv.Itoa(port))
	}

	var proxyAuth, userAuth string
	if cfg.proxyCreds {
		if proxyAuth, err = BasicCredential(cfg.proxyUser, cfg.proxyPassword); err != nil {
			c.resolver.Release(pinID)
			return err
		}
	}
	if cfg.userCreds {
		if userAuth, err = BasicCredential(cfg.user, cfg.password); err != nil {
			c.resolver.Release(pinID)
			return err
		}
	}

	c.pinID = pinID
	c.hostLine = hostLine
	c.addr = addr
	c.proxy = cfg.proxy
	c.proxyAuth = proxyAuth
	c.userAuth = userAuth
	c.remaining = 0
	c.status = StatusClosed

	c.logger.Debug("http client opened", "host", hostLine, "addr", addr, "proxy", cfg.proxy != "")
	return nil
}

// parseURI splits http://host[:port][/...] into the Host header value,
// the bare host and the port.
func parseURI(uri string) (hostLine, host string, port int, err error) {
	const scheme = "http://"
	if len(uri) < 9 || !strings.EqualFold(uri[:len(scheme)], scheme) {
		return "", "", 0, ErrURI
	}
	rest := uri[len(scheme):]
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" || len(rest) > maxHostname {
		return "", "", 0, ErrURI
	}

	host, port = rest, 80
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		p, err := strconv.ParseUint(rest[i+1:], 10, 32)
		if err != nil || p > 0xFFFF {
			return "", "", 0, ErrURI
		}
		host, port = rest[:i], int(p)
	}
	if host == "" {
		return "", "", 0, ErrURI
	}
	return rest, host, port, nil
}

// Status returns the connection status.
func (c *Client) Status() ConnStatus { return c.status }

// Version returns the version of the last response.
func (c *Client) Version() Version { return c.version }

// Framing returns the body framing of the last response.
func (c *Client) Framing() Framing { return c.framing }

// Persistent reports whether the connection will be reused.
func (c *Client) Persistent() bool { return c.persistent }

// StatusCode returns the status code of the last response.
func (c *Client) StatusCode() int { return c.code }

// Header returns the header fields of the last response.
func (c *Client) Header() Header { return c.fields }

// Get sends a GET for path and parses the response header. It returns the
// status code; the body is read with Recv.
func (c *Client) Get(ctx context.Context, path string, wait time.Duration) (int, error) {
	return c.exchange(ctx, "GET", path, nil, false, wait)
}

// Post sends a POST for path with body and parses the response header.
func (c *Client) Post(ctx context.Context, path string, body []byte, wait time.Duration) (int, error) {
	return c.exchange(ctx, "POST", path, body, true, wait)
}

func (c *Client) exchange(ctx context.Context, method, path string, body []byte, post bool, wait time.Duration) (int, error) {
	if path == "" {
		return 0, ErrParam
	}
	if c.status == StatusNone {
		return 0, ErrOrder
	}

	// reopen unless the last exchange left a reusable connection
	if !c.persistent {
		_ = c.conn.close()
		c.conn = nil
		c.status = StatusClosed
	}
	if c.status == StatusClosed {
		if err := c.dial(ctx); err != nil {
			return 0, err
		}
	} else if c.status != StatusIdle {
		return 0, ErrOrder
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s http://%s%s HTTP/1.1\r\nHost: %s\r\n", method, c.hostLine, path, c.hostLine)
	if c.proxyAuth != "" {
		sb.WriteString("Proxy-Authorization: " + c.proxyAuth + crlf)
	}
	if c.userAuth != "" {
		sb.WriteString("Authorization: " + c.userAuth + crlf)
	}
	sb.WriteString("Connection: Keep-Alive\r\n")
	if post {
		fmt.Fprintf(&sb, "Content-Length: %d\r\n", len(body))
	}
	sb.WriteString(crlf)

	if err := c.conn.sendString(sb.String()); err != nil {
		c.drop()
		return 0, err
	}
	if len(body) > 0 {
		if err := c.conn.send(body); err != nil {
			c.drop()
			return 0, err
		}
	}

	if err := c.readResponseHeader(wait); err != nil {
		return 0, err
	}
	c.logger.Debug("http response",
		"method", method,
		"path", path,
		"status", c.code,
		"version", c.version.String(),
		"framing", c.framing.String(),
	)
	return c.code, nil
}

func (c *Client) dial(ctx context.Context) error {
	c.status = StatusOpening
	d := net.Dialer{Timeout: c.dialTimeout}
	nc, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		c.status = StatusClosed
		return fmt.Errorf("%w: dial %s: %w", ErrNet, c.addr, err)
	}
	c.conn = newConn(nc)
	c.status = StatusIdle
	return nil
}

// drop closes the transport after a failure.
func (c *Client) drop() {
	_ = c.conn.close()
	c.conn = nil
	c.persistent = false
	c.status = StatusClosed
}

// finishBody marks the body as fully read.
func (c *Client) finishBody() {
	c.bodyDone = true
	c.status = StatusIdle
}

// Recv reads body bytes into p and returns the count read. It returns
// io.EOF once the body has been fully consumed.
//
// A timeout or transport failure under fixed or chunked framing closes the
// connection and is returned. Under read-until-close framing any end of
// stream, clean or not, simply ends the body.
func (c *Client) Recv(p []byte, wait time.Duration) (int, error) {
	if c.status != StatusBody {
		if c.bodyDone {
			return 0, io.EOF
		}
		return 0, ErrOrder
	}
	if len(p) == 0 {
		return 0, nil
	}

	total := 0
	if c.version == Version09 && c.header.Len() > 0 {
		total = c.header.Get(p)
		if total == len(p) {
			return total, nil
		}
		p = p[total:]
	}

	switch c.framing {
	case FramingFixed:
		get := int64(len(p))
		if get > c.remaining {
			get = c.remaining
		}
		n, err := c.conn.recv(p[:get], wait)
		c.remaining -= int64(n)
		total += n
		if err != nil && n == 0 {
			c.drop()
			return total, err
		}
		if c.remaining == 0 {
			c.finishBody()
		}
		return total, nil
	case FramingChunked:
		return c.recvChunked(p, total, wait)
	default:
		n, err := c.conn.recv(p, wait)
		total += n
		if err != nil && n == 0 {
			c.drop()
			c.bodyDone = true
			if total > 0 {
				return total, nil
			}
			return 0, io.EOF
		}
		return total, nil
	}
}

func (c *Client) recvChunked(p []byte, total int, wait time.Duration) (int, error) {
	for len(p) > 0 {
		if c.remaining > 0 {
			get := int64(len(p))
			if get > c.remaining {
				get = c.remaining
			}
			n, err := c.conn.recv(p[:get], wait)
			if err != nil && n == 0 {
				c.drop()
				return total, err
			}
			p = p[n:]
			c.remaining -= int64(n)
			total += n
		}

		if c.remaining == 0 {
			size, err := c.chunkLength(wait)
			if err != nil {
				c.drop()
				return total, err
			}
			if size == 0 {
				c.finishBody()
				return total, nil
			}
			c.remaining = size
		}
	}
	return total, nil
}

// Body returns an io.Reader over the rest of the current body, reading with
// the given wait budget.
func (c *Client) Body(wait time.Duration) io.Reader {
	return &bodyReader{c: c, wait: wait}
}

type bodyReader struct {
	c    *Client
	wait time.Duration
}

func (r *bodyReader) Read(p []byte) (int, error) {
	n, err := r.c.Recv(p, r.wait)
	if n > 0 && err == io.EOF {
		return n, nil
	}
	return n, err
}

// Close tears down the transport, releases the resolver pin and the
// stored credentials, and returns the client to its unopened state.
func (c *Client) Close() error {
	err := c.conn.close()
	if c.pinID != "" {
		c.resolver.Release(c.pinID)
	}
	c.header.Free()
	*c = Client{
		logger:      c.logger,
		resolver:    c.resolver,
		dialTimeout: c.dialTimeout,
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNet, err)
	}
	return nil
}
